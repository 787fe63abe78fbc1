package httpapi

import (
	"encoding/json"
	"net/http"
)

type tokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token  string `json:"token"`
	UserID int64  `json:"user_id"`
	Exp    int64  `json:"exp"`
}

// handleToken implements POST /token: validate email/password against
// the user store and issue a bearer token.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed request body")
		return
	}

	user, err := s.users.Authenticate(req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	token, exp, err := s.issuer.Issue(user)
	if err != nil {
		s.log.WithError(err).Error("failed to issue token")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		Token:  token,
		UserID: user.ID,
		Exp:    exp.Unix(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
