package ports

import (
	"context"
	"time"
)

// Queue names for identity lifecycle events.
const (
	QueueIdentityCreated  = "identity.created"
	QueueIdentityVerified = "identity.verified"
)

// IdentityCreatedEvent is published when a draft identity is created.
type IdentityCreatedEvent struct {
	IdentityID string    `json:"identity_id"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	CreatedAt  time.Time `json:"created_at"`
}

// IdentityVerifiedEvent is published when a draft is promoted.
type IdentityVerifiedEvent struct {
	IdentityID string    `json:"identity_id"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	VerifiedAt time.Time `json:"verified_at"`
}

// EventPublisher emits identity lifecycle events to the message broker.
// Publishing is best-effort from the orchestrator's perspective: failures
// are logged, never propagated to the caller.
type EventPublisher interface {
	PublishIdentityCreated(ctx context.Context, ev IdentityCreatedEvent) error
	PublishIdentityVerified(ctx context.Context, ev IdentityVerifiedEvent) error
}
