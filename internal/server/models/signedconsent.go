package models

import (
	"bytes"
	"maps"
)

// SignedConsent is the finalized, cryptographically signed artifact for one
// consent flow. Created exactly once per flow at sign time; immutable
// thereafter.
type SignedConsent struct {
	ConsentFlowID string
	DocumentID    string
	Document      []byte
	FirstName     string
	FamilyName    string
	Email         *string
	Metadata      map[string]string
}

// Equal compares two signed consents field by field, including the embedded
// document bytes. Byte-for-byte document equality is part of the contract.
func (s *SignedConsent) Equal(other *SignedConsent) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.ConsentFlowID != other.ConsentFlowID ||
		s.DocumentID != other.DocumentID ||
		s.FirstName != other.FirstName ||
		s.FamilyName != other.FamilyName {
		return false
	}
	if (s.Email == nil) != (other.Email == nil) {
		return false
	}
	if s.Email != nil && *s.Email != *other.Email {
		return false
	}
	if !bytes.Equal(s.Document, other.Document) {
		return false
	}
	return maps.Equal(s.Metadata, other.Metadata)
}
