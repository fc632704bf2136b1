package ports

import (
	"context"

	"github.com/hvill/identity-service/internal/core/domain"
)

// Document is an opaque uploaded image with its transport metadata.
type Document struct {
	Filename    string
	ContentType string
	Bytes       []byte
}

// ExtractOutcome classifies an OCR call that did not hard-fail.
type ExtractOutcome string

const (
	// ExtractSucceeded means structured fields were read off the document.
	ExtractSucceeded ExtractOutcome = "succeeded"
	// ExtractManualReview means the backend rejected the image with a
	// review-queue signal; registration continues without extracted fields.
	ExtractManualReview ExtractOutcome = "manual_review"
)

// ExtractResult is the outcome of an OCR extraction. Fields is nil unless
// Outcome is ExtractSucceeded.
type ExtractResult struct {
	Outcome ExtractOutcome
	Fields  *domain.ExtractedFields
}

// EnrollFaceInput carries everything the face-recognition backend needs to
// enroll a person from an ID document.
type EnrollFaceInput struct {
	IdentityID string
	FullName   string
	Email      string
	Document   Document
}

// EnrollmentResult holds the biometric reference returned by the backend.
type EnrollmentResult struct {
	FaceRef string
}

// VerificationGateway is the uniform client abstraction over the OCR and
// face-enrollment remote services. Implementations classify failures into
// domain.ErrExternalTransient (retryable) and domain.ErrExternalConflict
// (semantic rejection, never retried) and bound every call with a timeout.
type VerificationGateway interface {
	ExtractDocumentFields(ctx context.Context, doc Document) (*ExtractResult, error)
	EnrollFace(ctx context.Context, in EnrollFaceInput) (*EnrollmentResult, error)
}

// Notifier delivers the OTP code to the user over an external channel.
type Notifier interface {
	SendOTP(ctx context.Context, email, code string) error
}
