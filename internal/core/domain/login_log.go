package domain

import "time"

// LoginLog records a successful authentication for audit purposes.
type LoginLog struct {
	ID         string    `json:"id"`
	IdentityID string    `json:"identity_id"`
	Email      string    `json:"email"`
	Firstname  string    `json:"firstname"`
	Lastname   string    `json:"lastname"`
	At         time.Time `json:"at"`
}
