package models

// SessionToken carries cross-request signing context through the client.
// It exists only encrypted outside the server: created at cache time,
// handed to the client, returned at sign time, then discarded.
type SessionToken struct {
	SuccessRedirectURL string `json:"successRedirectUrl"`
	AuthToken          string `json:"authToken"`
	CancelRedirectURL  string `json:"cancelRedirectUrl,omitempty"`
	ReviewConsentURL   string `json:"reviewConsentUrl,omitempty"`
	ConsentID          string `json:"consentId"`
	Platform           string `json:"platform,omitempty"`
}
