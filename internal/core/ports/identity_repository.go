package ports

import (
	"context"
	"time"

	"github.com/hvill/identity-service/internal/core/domain"
)

// IdentityUpdate carries targeted field updates for an identity. Nil fields
// are left untouched so a slow background write can never clobber a faster
// concurrent one.
type IdentityUpdate struct {
	RegistrationStep     *domain.RegistrationStep
	FaceEnrollmentStatus *domain.FaceEnrollmentStatus
	FaceRef              *string
	FaceEnrollmentError  *string
	IDVerificationID     *string
	IsActive             *bool
	Firstname            *string
	Middlename           *string
	Lastname             *string
	Email                *string
	Gender               *string
	Role                 *string
	Department           *string
	Phone                *string
}

// ListStaffFilter carries the query parameters for listing staff identities.
// Drafts are always excluded by the repository.
type ListStaffFilter struct {
	Role   string // optional: filter by role
	Active *bool  // optional: filter by active flag
	Search string // optional: partial match on firstname, lastname, or email
	Page   int    // 1-based
	Limit  int    // max rows per page (capped at 100 by the service)
}

// StaffStatistics aggregates identity counts for the staff dashboard.
type StaffStatistics struct {
	Total    int64            `json:"total"`
	ByRole   map[string]int64 `json:"by_role"`
	Active   int64            `json:"active"`
	Inactive int64            `json:"inactive"`
}

// IdentityRepository defines persistence operations for identities.
//
// Uniqueness of the email login identifier is enforced only among non-draft
// records; Promote relies on the storage layer to make the draft→verified
// flip atomic with respect to that constraint.
type IdentityRepository interface {
	Create(ctx context.Context, identity *domain.Identity) (*domain.Identity, error)
	FindByID(ctx context.Context, id string) (*domain.Identity, error)
	// FindNonDraftByEmail looks up an identity by email among non-draft
	// records only. Returns domain.ErrIdentityNotFound when absent.
	FindNonDraftByEmail(ctx context.Context, email string) (*domain.Identity, error)
	// UpdateFields applies the non-nil fields of update to the identity.
	UpdateFields(ctx context.Context, id string, update IdentityUpdate) error
	// Promote atomically flips a draft to a verified identity, setting
	// registration_completed to completedAt. It fails with
	// domain.ErrConflict when a non-draft identity already holds the same
	// email, and with domain.ErrIdentityNotFound when no promotable draft
	// matches id (caller distinguishes already-verified by re-reading).
	Promote(ctx context.Context, id string, completedAt time.Time) (*domain.Identity, error)
	// ListStaff returns a page of non-draft identities and the total count.
	ListStaff(ctx context.Context, filter ListStaffFilter) ([]*domain.Identity, int64, error)
	Statistics(ctx context.Context) (*StaffStatistics, error)
	// DeleteDraftsBefore reclaims drafts whose registration started before
	// cutoff and reports how many were removed.
	DeleteDraftsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// VerificationRepository defines persistence for ID-verification records.
type VerificationRepository interface {
	Create(ctx context.Context, v *domain.IDVerification) (*domain.IDVerification, error)
	FindByIdentity(ctx context.Context, identityID string) (*domain.IDVerification, error)
	// SetExtracted stores the OCR result and moves the record to status.
	SetExtracted(ctx context.Context, id string, fields domain.ExtractedFields, status domain.VerificationStatus) error
	SetStatus(ctx context.Context, id string, status domain.VerificationStatus) error
}

// LoginLogRepository appends authentication audit entries.
type LoginLogRepository interface {
	Append(ctx context.Context, log *domain.LoginLog) error
}
