package domain

import "time"

// VerificationStatus is the review state of an ID-verification record.
type VerificationStatus string

const (
	VerificationPending      VerificationStatus = "pending"
	VerificationApproved     VerificationStatus = "approved"
	VerificationRejected     VerificationStatus = "rejected"
	VerificationManualReview VerificationStatus = "manual_review"
)

// ExtractedFields holds the structured fields read off an ID document.
type ExtractedFields struct {
	FullName       string     `json:"full_name,omitempty"`
	BirthDate      *time.Time `json:"birth_date,omitempty"`
	DocumentNumber string     `json:"document_number,omitempty"`
}

// IDVerification is the 1:1 companion record of an identity holding the
// stored document reference and the OCR extraction result.
type IDVerification struct {
	ID          string             `json:"id"`
	IdentityID  string             `json:"identity_id"`
	DocumentRef string             `json:"document_ref"`
	Extracted   ExtractedFields    `json:"extracted"`
	Status      VerificationStatus `json:"status"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}
