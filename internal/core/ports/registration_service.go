package ports

import (
	"context"

	"github.com/hvill/identity-service/internal/core/domain"
)

// BeginRegistrationInput carries everything needed to open a draft identity.
type BeginRegistrationInput struct {
	Firstname  string
	Middlename string
	Lastname   string
	Email      string
	Password   string
	Gender     string
	Role       string
	Document   Document
}

// RegistrationStatus is the read-only projection returned by status polls.
type RegistrationStatus struct {
	RegistrationStep     domain.RegistrationStep     `json:"registration_step"`
	FaceEnrollmentStatus domain.FaceEnrollmentStatus `json:"face_enrollment_status"`
	FaceEnrollmentError  string                      `json:"face_enrollment_error,omitempty"`
	IDReviewStatus       domain.VerificationStatus   `json:"id_review_status"`
	IsVerified           bool                        `json:"is_verified"`
	OtpEmailSent         bool                        `json:"otp_email_sent"`
}

// RegistrationService drives an identity from draft through gated checks to
// promotion.
type RegistrationService interface {
	// BeginRegistration creates a draft identity: hashes the credential,
	// runs OCR extraction synchronously (bounded by the gateway timeout),
	// issues an OTP, and schedules face enrollment and OTP delivery as
	// background tasks. Fails with domain.ErrConflict when a non-draft
	// identity already uses the email.
	BeginRegistration(ctx context.Context, in BeginRegistrationInput) (*domain.Identity, error)
	// ConfirmOtp consumes the (identityID, code) pair and marks the OTP
	// gate satisfied. It never promotes the identity on its own.
	ConfirmOtp(ctx context.Context, identityID, code string) error
	// CompleteVerification promotes the draft once every gate is satisfied.
	// Fails with domain.ErrPreconditionFailed while gates are pending and
	// with domain.ErrAlreadyVerified when promotion already happened.
	CompleteVerification(ctx context.Context, identityID string) (*domain.Identity, error)
	// RegistrationStatus returns the current gate projection.
	RegistrationStatus(ctx context.Context, identityID string) (*RegistrationStatus, error)

	// Background task handlers, registered with the task runner at wiring
	// time. They are tolerant of re-execution: retries re-run the full body.
	HandleFaceEnrollment(ctx context.Context, payload any) error
	FaceEnrollmentExhausted(ctx context.Context, payload any, lastErr error)
	HandleNotification(ctx context.Context, payload any) error
	NotificationExhausted(ctx context.Context, payload any, lastErr error)
}
