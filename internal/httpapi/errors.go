package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ralt/signserver/internal/models"
)

type detailResponse struct {
	Detail string `json:"detail"`
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(detailResponse{Detail: detail})
}

// writeError maps the internal/models error taxonomy to a status
// code. SigningFailed never leaks its cause to the client: the
// generic detail goes on the wire, the cause is logged server-side by
// the caller before writeError is invoked.
func writeError(w http.ResponseWriter, err error) {
	var se *models.SignError
	if !errors.As(err, &se) {
		writeDetail(w, http.StatusInternalServerError, "internal error")
		return
	}

	switch se.Kind {
	case models.ErrBadRequest:
		writeDetail(w, http.StatusBadRequest, se.Msg)
	case models.ErrUnauthorized:
		writeDetail(w, http.StatusUnauthorized, se.Msg)
	case models.ErrSigningFailed:
		writeDetail(w, http.StatusInternalServerError, "signing failed")
	case models.ErrCanceled:
		writeDetail(w, http.StatusServiceUnavailable, "request canceled")
	default:
		writeDetail(w, http.StatusInternalServerError, "internal error")
	}
}
