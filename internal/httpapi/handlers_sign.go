package httpapi

import (
	"mime/multipart"
	"net/http"

	"github.com/ralt/signserver/internal/backend"
	"github.com/ralt/signserver/internal/models"
)

// multipartMaxMemory bounds how much of a multipart body chi/net/http
// buffers in memory before spilling to disk; the real upload bound
// enforcement happens inside the backend as bytes stream through it,
// not here.
const multipartMaxMemory = 32 << 20

// handleSign implements POST /sign: single file, returns the
// plaintext signature.
func (s *Server) handleSign(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMaxMemory); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed multipart body")
		return
	}

	keyid := r.FormValue("keyid")
	signType, algo, err := parseSignParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "missing file")
		return
	}
	defer file.Close()

	if !s.backend.KeyExists(keyid) {
		writeDetail(w, http.StatusBadRequest, "unknown keyid")
		return
	}

	sig, err := s.backend.Sign(r.Context(), keyid, backend.Upload{
		Filename: header.Filename,
		Content:  file,
	}, signType == models.DetachSign, algo)
	if err != nil {
		s.log.WithError(err).WithField("keyid", keyid).Warn("sign failed")
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte(sig))
}

// handleSignBatch implements POST /sign-batch with fail-fast
// semantics: the first per-file failure aborts the batch and is
// answered through writeError (400 with the message for a bad
// request such as an oversize file, 500 with a generic detail for a
// signing failure); no partial successes are returned.
func (s *Server) handleSignBatch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMaxMemory); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed multipart body")
		return
	}

	keyid := r.FormValue("keyid")
	signType, algo, err := parseSignParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if r.MultipartForm == nil || len(r.MultipartForm.File["files"]) == 0 {
		writeDetail(w, http.StatusBadRequest, "no files provided")
		return
	}

	if !s.backend.KeyExists(keyid) {
		writeDetail(w, http.StatusBadRequest, "unknown keyid")
		return
	}

	headers := r.MultipartForm.File["files"]
	uploads := make([]backend.Upload, 0, len(headers))
	var openFiles []multipart.File
	defer func() {
		for _, f := range openFiles {
			f.Close()
		}
	}()

	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			writeDetail(w, http.StatusBadRequest, "failed to read uploaded file")
			return
		}
		openFiles = append(openFiles, f)
		uploads = append(uploads, backend.Upload{Filename: h.Filename, Content: f})
	}

	results, err := s.backend.SignBatch(r.Context(), keyid, uploads, signType == models.DetachSign, algo)
	if err != nil {
		s.log.WithError(err).WithField("keyid", keyid).Warn("sign-batch failed")
		writeError(w, err)
		return
	}

	successful := 0
	for _, res := range results {
		if res.Success {
			successful++
		}
	}

	writeJSON(w, http.StatusOK, models.BatchResponse{
		Results:    results,
		Total:      len(results),
		Successful: successful,
	})
}

func parseSignParams(r *http.Request) (models.SignType, models.DigestAlgo, error) {
	signType, err := models.ParseSignType(r.FormValue("sign_type"))
	if err != nil {
		return 0, 0, err
	}
	algo := models.ParseDigestAlgo(r.FormValue("sign_algo"))
	return signType, algo, nil
}
