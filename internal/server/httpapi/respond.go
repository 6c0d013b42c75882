package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/healthmetrix/dynamic-consent/internal/common"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{"code": code, "message": message},
	})
}

func writePDF(w http.ResponseWriter, status int, pdf []byte) {
	w.Header().Set("content-type", "application/octet-stream")
	w.WriteHeader(status)
	_, _ = w.Write(pdf)
}

// writeServiceError maps the sentinel errors of the service layer onto HTTP
// statuses. Unknown errors become opaque 500s so internals never leak.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrAlreadyConsented):
		writeError(w, http.StatusConflict, "already_consented", "an active signed consent already exists")
	case errors.Is(err, common.ErrAlreadyWithdrawn):
		writeError(w, http.StatusConflict, "already_withdrawn", "consent has already been withdrawn")
	case errors.Is(err, common.ErrConsentNotFound),
		errors.Is(err, common.ErrSignedConsentNotFound),
		errors.Is(err, common.ErrCachedConsentNotFound),
		errors.Is(err, common.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "consent not found")
	case errors.Is(err, common.ErrEmptyDocument):
		writeError(w, http.StatusInternalServerError, "empty_document", "signed consent contains no document")
	case errors.Is(err, common.ErrUnauthorized), errors.Is(err, common.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "unauthorized", "credentials could not be verified")
	case errors.Is(err, common.ErrUnsupportedPlatform):
		writeError(w, http.StatusBadRequest, "unsupported_platform", "unknown signature platform")
	default:
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}
