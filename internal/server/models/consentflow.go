// Package models holds the persistence-level types of the consent signing
// server.
package models

import "time"

// ConsentFlow is one episode of a user's relationship to one consent
// template: created unsigned at cache time, signed at most once, optionally
// withdrawn. At most one flow per (ConsentID, ExternalRefID) may be
// unwithdrawn at any time; the flow stores enforce this.
type ConsentFlow struct {
	ConsentFlowID string
	ExternalRefID string
	ConsentID     string
	SignedAt      *time.Time
	WithdrawnAt   *time.Time
}

// Active reports whether the flow has not been withdrawn.
func (f *ConsentFlow) Active() bool {
	return f.WithdrawnAt == nil
}

// Signed reports whether the flow has been signed.
func (f *ConsentFlow) Signed() bool {
	return f.SignedAt != nil
}

// ConsentInfo is the per-template status entry returned to clients.
type ConsentInfo struct {
	ConsentFlowID string     `json:"consentFlowId"`
	ConsentID     string     `json:"consentId"`
	SignedAt      time.Time  `json:"signedAt"`
	WithdrawnAt   *time.Time `json:"withdrawnAt,omitempty"`
}

// ToConsentInfo converts a signed flow into its status representation.
// Calling it on an unsigned flow is a programmer error.
func (f *ConsentFlow) ToConsentInfo() ConsentInfo {
	if f.SignedAt == nil {
		panic("models: ToConsentInfo called on unsigned flow")
	}
	return ConsentInfo{
		ConsentFlowID: f.ConsentFlowID,
		ConsentID:     f.ConsentID,
		SignedAt:      *f.SignedAt,
		WithdrawnAt:   f.WithdrawnAt,
	}
}
