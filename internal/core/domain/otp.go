package domain

import "time"

// OTP is a short-lived one-time code bound to an identity. Verification
// matches on the (identity id, code) pair and consumes the record.
type OTP struct {
	IdentityID string     `json:"identity_id"`
	Code       string     `json:"code"`
	EmailSent  bool       `json:"email_sent"`
	SentAt     *time.Time `json:"sent_at,omitempty"`
	IssuedAt   time.Time  `json:"issued_at"`
}
