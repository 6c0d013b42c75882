package models

import "time"

// CachedConsent is the not-yet-signed working document staged at cache time.
// It is written once, read once at sign time, and never mutated.
type CachedConsent struct {
	DocumentID    string
	ConsentFlowID string
	ConsentID     string
	Document      []byte
	CreatedAt     time.Time
}
