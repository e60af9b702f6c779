package domain

import "time"

// SessionKeyRecord is the cached bearer credential of one application.
type SessionKeyRecord struct {
	Application         string    `json:"-"`
	APIKey              string    `json:"apiKey"`
	EncryptedSessionKey string    `json:"encryptedSessionKey"`
	ExpiresAt           time.Time `json:"expiresAt"`
}

// IsValid reports whether the record can still be used for apiKey at now.
// A record whose expiry falls within allowance of now is stale.
func (r *SessionKeyRecord) IsValid(apiKey string, now time.Time, allowance time.Duration) bool {
	if r == nil {
		return false
	}
	if r.APIKey != apiKey {
		return false
	}
	if r.EncryptedSessionKey == "" {
		return false
	}
	return r.ExpiresAt.Add(-allowance).After(now)
}
