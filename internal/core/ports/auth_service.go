package ports

import (
	"context"

	"github.com/hvill/identity-service/internal/core/domain"
)

// AuthService authenticates verified identities.
type AuthService interface {
	// Login checks the credential against a non-draft identity and returns
	// a signed token. A successful login is appended to the audit log.
	Login(ctx context.Context, email, password string) (string, *domain.Identity, error)
}

// CreateStaffInput provisions a staff identity directly: no draft phase, no
// OTP or face-enrollment gates.
type CreateStaffInput struct {
	Firstname  string
	Middlename string
	Lastname   string
	Email      string
	Password   string
	Phone      string
	Gender     string
	Role       string
	Department string
}

// UpdateStaffInput carries optional profile updates. Nil fields are left
// untouched.
type UpdateStaffInput struct {
	Firstname  *string
	Middlename *string
	Lastname   *string
	Email      *string
	Phone      *string
	Gender     *string
	Role       *string
	Department *string
	IsActive   *bool
}

// StaffService exposes the staff directory over non-draft identities.
// Department details come from the external scheduling service.
type StaffService interface {
	List(ctx context.Context, filter ListStaffFilter) ([]*StaffMember, int64, error)
	Get(ctx context.Context, id string) (*StaffMember, error)
	// Create provisions a staff identity as verified and active. Fails
	// with domain.ErrConflict when the email is already taken and with
	// domain.ErrInvalidRole for the patient role.
	Create(ctx context.Context, in CreateStaffInput) (*StaffMember, error)
	// Update applies the non-nil fields of in to a staff identity.
	Update(ctx context.Context, id string, in UpdateStaffInput) (*StaffMember, error)
	// Deactivate soft-deletes a staff identity by clearing its active flag.
	Deactivate(ctx context.Context, id string) (*domain.Identity, error)
	Statistics(ctx context.Context) (*StaffStatistics, error)
}

// Department is a scheduling-service department as seen by this service.
type Department struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// StaffMember is an identity enriched with its department details.
type StaffMember struct {
	*domain.Identity
	DepartmentDetails *Department `json:"department_details,omitempty"`
}

// SchedulingClient is the interface to the external scheduling service that
// owns departments. Lookups are read-only from this side.
type SchedulingClient interface {
	Departments(ctx context.Context) ([]Department, error)
	DepartmentByID(ctx context.Context, id string) (*Department, error)
}
