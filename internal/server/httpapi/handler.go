package httpapi

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/healthmetrix/dynamic-consent/internal/common"
	"github.com/healthmetrix/dynamic-consent/internal/logging"
	"github.com/healthmetrix/dynamic-consent/internal/server/auth"
	"github.com/healthmetrix/dynamic-consent/internal/server/models"
)

// ConsentAPI is the slice of the consent service the HTTP layer needs.
type ConsentAPI interface {
	Cache(ctx context.Context, externalRefID, consentID string, document []byte) (string, error)
	Sign(ctx context.Context, documentID, externalRefID, firstName, familyName string, signaturePNG []byte, metadata map[string]string, email *string) error
	Withdraw(ctx context.Context, externalRefID, consentID string) error
	WithdrawByDocumentID(ctx context.Context, documentID string) error
	FetchSignedDocument(ctx context.Context, externalRefID, consentID string) ([]byte, error)
	FetchSignedDocumentByID(ctx context.Context, documentID string) ([]byte, error)
	Status(ctx context.Context, externalRefID string) (consented, withdrawn []models.ConsentInfo, err error)
}

// TokenAPI issues and opens encrypted signature session tokens.
type TokenAPI interface {
	Issue(token *models.SessionToken) (string, error)
	Open(encoded string) (*models.SessionToken, error)
}

// DocumentAPI generates option-marked consent documents.
type DocumentAPI interface {
	Generate(ctx context.Context, consentID string, options map[int]bool) ([]byte, error)
}

type Handler struct {
	consents  ConsentAPI
	tokens    TokenAPI
	documents DocumentAPI
	extractor auth.Extractor
	log       logging.Logger
}

func NewHandler(consents ConsentAPI, tokens TokenAPI, documents DocumentAPI, extractor auth.Extractor, log logging.Logger) *Handler {
	return &Handler{
		consents:  consents,
		tokens:    tokens,
		documents: documents,
		extractor: extractor,
		log:       log,
	}
}

// Router builds the REST surface.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Post("/api/v1/signatures", h.createSignature)
	r.Get("/api/v1/signatures/{documentId}", h.getSignature)
	r.Get("/api/v1/signatures/{documentId}/sign", h.signContext)
	r.Put("/api/v1/signatures/{documentId}/sign", h.signDocument)
	r.Post("/api/v1/signatures/{documentId}/withdraw", h.withdrawSignature)

	r.Get("/api/v2/signatures", h.getSignatureV2)
	r.Delete("/api/v2/signatures", h.withdrawSignatureV2)
	r.Get("/api/v2/signatures/status", h.signatureStatus)

	r.Post("/api/v1/consents/{consentId}/documents", h.generateDocument)
	return r
}

// platforms a signature flow may declare itself as originating from.
var knownPlatforms = map[string]struct{}{
	"web":     {},
	"android": {},
	"ios":     {},
}

func normalizePlatform(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	p := strings.ToLower(raw)
	if _, ok := knownPlatforms[p]; !ok {
		return "", fmt.Errorf("%w: %q", common.ErrUnsupportedPlatform, raw)
	}
	return p, nil
}

func bearerToken(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func (h *Handler) identity(r *http.Request) (*auth.Identity, error) {
	return h.extractor.Extract(r.Context(), bearerToken(r))
}

type createSignatureResponse struct {
	DocumentID string `json:"documentId"`
	Token      string `json:"token"`
}

func (h *Handler) createSignature(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	consentID := r.Header.Get("X-Hmx-Consent-Id")
	successURL := r.Header.Get("X-Hmx-Success-Redirect-Url")
	if consentID == "" || successURL == "" {
		writeError(w, http.StatusBadRequest, "missing_header", "X-Hmx-Consent-Id and X-Hmx-Success-Redirect-Url are required")
		return
	}
	platform, err := normalizePlatform(r.Header.Get("X-Hmx-Platform"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	authToken := bearerToken(r)
	identity, err := h.extractor.Extract(ctx, authToken)
	if err != nil {
		h.log.Info(ctx, "rejected signature creation", "error", err)
		writeServiceError(w, err)
		return
	}

	pdf, err := io.ReadAll(r.Body)
	if err != nil || len(pdf) == 0 {
		writeError(w, http.StatusBadRequest, "empty_document", "request body must contain the consent document")
		return
	}

	documentID, err := h.consents.Cache(ctx, identity.ExternalRefID, consentID, pdf)
	if err != nil {
		h.log.Error(ctx, "failed to cache consent document", "consentId", consentID, "error", err)
		writeServiceError(w, err)
		return
	}

	token, err := h.tokens.Issue(&models.SessionToken{
		SuccessRedirectURL: successURL,
		AuthToken:          authToken,
		CancelRedirectURL:  r.Header.Get("X-Hmx-Cancel-Redirect-Url"),
		ReviewConsentURL:   r.Header.Get("X-Hmx-Review-Consent-Url"),
		ConsentID:          consentID,
		Platform:           platform,
	})
	if err != nil {
		h.log.Error(ctx, "failed to issue session token", "error", err)
		writeError(w, http.StatusInternalServerError, "token_generation_failed", "failed to create token")
		return
	}

	writeJSON(w, http.StatusCreated, createSignatureResponse{DocumentID: documentID, Token: token})
}

type signContextResponse struct {
	ConsentID         string `json:"consentId"`
	Platform          string `json:"platform,omitempty"`
	CancelRedirectURL string `json:"cancelRedirectUrl,omitempty"`
	ReviewConsentURL  string `json:"reviewConsentUrl,omitempty"`
}

// signContext returns the session context a signing frontend needs to render
// the signature page. The auth token stays server-side only.
func (h *Handler) signContext(w http.ResponseWriter, r *http.Request) {
	session, err := h.tokens.Open(r.URL.Query().Get("token"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, signContextResponse{
		ConsentID:         session.ConsentID,
		Platform:          session.Platform,
		CancelRedirectURL: session.CancelRedirectURL,
		ReviewConsentURL:  session.ReviewConsentURL,
	})
}

const signatureDataURIPrefix = "data:image/png;base64,"

type signDocumentRequest struct {
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	Email     *string `json:"email,omitempty"`
	Token     string  `json:"token"`
	Signature string  `json:"signature"`
}

type signDocumentResponse struct {
	SuccessRedirectURL string `json:"successRedirectUrl"`
}

func (h *Handler) signDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	documentID := chi.URLParam(r, "documentId")

	var req signDocumentRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body could not be parsed")
		return
	}
	if req.FirstName == "" || req.LastName == "" {
		writeError(w, http.StatusBadRequest, "missing_field", "firstName and lastName are required")
		return
	}

	session, err := h.tokens.Open(req.Token)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	identity, err := h.extractor.Extract(ctx, session.AuthToken)
	if err != nil {
		h.log.Info(ctx, "rejected document signing", "documentId", documentID, "error", err)
		writeServiceError(w, err)
		return
	}

	signaturePNG, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(req.Signature, signatureDataURIPrefix))
	if err != nil || len(signaturePNG) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_signature", "signature must be a base64 PNG data URI")
		return
	}

	if err := h.consents.Sign(ctx, documentID, identity.ExternalRefID, req.FirstName, req.LastName, signaturePNG, identity.Metadata, req.Email); err != nil {
		h.log.Error(ctx, "failed to sign document", "documentId", documentID, "error", err)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, signDocumentResponse{SuccessRedirectURL: session.SuccessRedirectURL})
}

func (h *Handler) getSignature(w http.ResponseWriter, r *http.Request) {
	if _, err := h.identity(r); err != nil {
		writeServiceError(w, err)
		return
	}
	pdf, err := h.consents.FetchSignedDocumentByID(r.Context(), chi.URLParam(r, "documentId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writePDF(w, http.StatusOK, pdf)
}

func (h *Handler) getSignatureV2(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identity(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	consentID := r.URL.Query().Get("consentId")
	if consentID == "" {
		writeError(w, http.StatusBadRequest, "missing_parameter", "consentId is required")
		return
	}
	pdf, err := h.consents.FetchSignedDocument(r.Context(), identity.ExternalRefID, consentID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writePDF(w, http.StatusOK, pdf)
}

func (h *Handler) withdrawSignature(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := h.identity(r); err != nil {
		writeServiceError(w, err)
		return
	}
	documentID := chi.URLParam(r, "documentId")
	if err := h.consents.WithdrawByDocumentID(ctx, documentID); err != nil {
		h.log.Info(ctx, "failed to withdraw signature", "documentId", documentID, "error", err)
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) withdrawSignatureV2(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, err := h.identity(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	consentID := r.URL.Query().Get("consentId")
	if consentID == "" {
		writeError(w, http.StatusBadRequest, "missing_parameter", "consentId is required")
		return
	}
	if err := h.consents.Withdraw(ctx, identity.ExternalRefID, consentID); err != nil {
		h.log.Info(ctx, "failed to withdraw consent", "consentId", consentID, "error", err)
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type signatureStatusResponse struct {
	Consented []models.ConsentInfo `json:"consented"`
	Withdrawn []models.ConsentInfo `json:"withdrawn"`
}

func (h *Handler) signatureStatus(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identity(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	consented, withdrawn, err := h.consents.Status(r.Context(), identity.ExternalRefID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if consented == nil {
		consented = []models.ConsentInfo{}
	}
	if withdrawn == nil {
		withdrawn = []models.ConsentInfo{}
	}
	writeJSON(w, http.StatusOK, signatureStatusResponse{Consented: consented, Withdrawn: withdrawn})
}

type consentOption struct {
	OptionID  int  `json:"optionId"`
	Consented bool `json:"consented"`
}

type generateDocumentRequest struct {
	Options []consentOption `json:"options"`
}

func (h *Handler) generateDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	consentID := chi.URLParam(r, "consentId")

	var req generateDocumentRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body could not be parsed")
		return
	}
	options := make(map[int]bool, len(req.Options))
	for _, o := range req.Options {
		options[o.OptionID] = o.Consented
	}

	pdf, err := h.documents.Generate(ctx, consentID, options)
	if err != nil {
		h.log.Error(ctx, "failed to generate document", "consentId", consentID, "error", err)
		writeError(w, http.StatusBadRequest, "invalid_document", "document could not be generated")
		return
	}
	writePDF(w, http.StatusCreated, pdf)
}
