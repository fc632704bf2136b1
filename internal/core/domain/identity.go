package domain

import (
	"errors"
	"strings"
	"time"
)

// Roles an identity can hold. Patients self-register; staff tiers are
// provisioned through the staff directory.
const (
	RolePatient      = "patient"
	RoleReceptionist = "receptionist"
	RoleNurse        = "nurse"
	RoleDoctor       = "doctor"
	RoleAdmin        = "admin"
	RoleSuperAdmin   = "superadmin"
)

// ValidRole reports whether r is a known role.
func ValidRole(r string) bool {
	switch r {
	case RolePatient, RoleReceptionist, RoleNurse, RoleDoctor, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// ValidStaffRole reports whether r is a role the staff directory may
// provision. Patients only enter through self-registration.
func ValidStaffRole(r string) bool {
	return ValidRole(r) && r != RolePatient
}

// RegistrationStep represents the position of an identity in the
// registration state machine.
type RegistrationStep string

const (
	StepOne       RegistrationStep = "step1"    // draft created, OTP issued
	StepTwo       RegistrationStep = "step2"    // OTP confirmed
	StepThree     RegistrationStep = "step3"    // all gates satisfied, awaiting promotion
	StepCompleted RegistrationStep = "completed"
)

// validStepTransitions defines the allowed state machine transitions.
var validStepTransitions = map[RegistrationStep][]RegistrationStep{
	StepOne:   {StepTwo},
	StepTwo:   {StepThree, StepCompleted},
	StepThree: {StepCompleted},
}

// CanTransitionTo reports whether a transition from the current step to next is valid.
func (s RegistrationStep) CanTransitionTo(next RegistrationStep) bool {
	for _, allowed := range validStepTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// FaceEnrollmentStatus tracks the biometric enrollment gate.
type FaceEnrollmentStatus string

const (
	FaceEnrollmentPending   FaceEnrollmentStatus = "pending"
	FaceEnrollmentCompleted FaceEnrollmentStatus = "completed"
	FaceEnrollmentFailed    FaceEnrollmentStatus = "failed"
)

var ErrConflict = errors.New("email already registered")
var ErrIdentityNotFound = errors.New("identity not found")
var ErrInvalidOtp = errors.New("invalid or expired OTP")
var ErrPreconditionFailed = errors.New("registration gates not satisfied")
var ErrAlreadyVerified = errors.New("identity already verified")
var ErrInvalidCredentials = errors.New("invalid credentials")
var ErrInvalidTransition = errors.New("invalid registration step transition")
var ErrInvalidRole = errors.New("invalid role")
var ErrDepartmentNotFound = errors.New("department not found")

// ErrExternalTransient marks failures of an external backend that are safe
// to retry (timeouts, 5xx). ErrExternalConflict marks a semantic 4xx
// rejection that retries can never fix.
var ErrExternalTransient = errors.New("external service unavailable")
var ErrExternalConflict = errors.New("external service rejected request")

// Identity models an account in any lifecycle stage. While IsDraft is true
// the record is invisible to uniqueness checks, login, and staff listings.
type Identity struct {
	ID           string `json:"id"`
	Firstname    string `json:"firstname"`
	Middlename   string `json:"middlename,omitempty"`
	Lastname     string `json:"lastname"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Phone        string `json:"phone,omitempty"`
	Gender       string `json:"gender,omitempty"`
	Role         string `json:"role"`
	Department   string `json:"department,omitempty"`

	IsDraft    bool `json:"is_draft"`
	IsVerified bool `json:"is_verified"`
	IsActive   bool `json:"is_active"`

	RegistrationStep     RegistrationStep     `json:"registration_step"`
	FaceEnrollmentStatus FaceEnrollmentStatus `json:"face_enrollment_status"`
	FaceRef              string               `json:"face_ref,omitempty"`
	FaceEnrollmentError  string               `json:"face_enrollment_error,omitempty"`

	IDVerificationID string `json:"id_verification_id,omitempty"`

	RegistrationStarted   time.Time  `json:"registration_started"`
	RegistrationCompleted *time.Time `json:"registration_completed,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// FullName joins the name parts, skipping an empty middle name.
func (i *Identity) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{i.Firstname, i.Middlename, i.Lastname} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// OtpConfirmed reports whether the OTP gate has been satisfied.
func (i *Identity) OtpConfirmed() bool {
	return i.RegistrationStep == StepTwo || i.RegistrationStep == StepThree || i.RegistrationStep == StepCompleted
}
