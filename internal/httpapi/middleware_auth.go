package httpapi

import "net/http"

// requireBearer validates the Authorization header and, on success,
// stashes the parsed claims in the request context for downstream
// handlers.
func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeDetail(w, http.StatusForbidden, "Could not validate credentials")
			return
		}

		claims, err := s.issuer.Validate(header)
		if err != nil {
			writeDetail(w, http.StatusForbidden, "Could not validate credentials")
			return
		}

		next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
	})
}
