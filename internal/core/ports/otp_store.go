package ports

import (
	"context"
	"time"

	"github.com/hvill/identity-service/internal/core/domain"
)

// OTPStore holds live one-time codes. Codes are single-use: Consume removes
// the record atomically with the match, so a second confirmation of the same
// (identity, code) pair fails with domain.ErrInvalidOtp.
type OTPStore interface {
	Put(ctx context.Context, otp *domain.OTP) error
	// Consume deletes the (identityID, code) record if it exists, failing
	// with domain.ErrInvalidOtp when no live record matches.
	Consume(ctx context.Context, identityID, code string) error
	// MarkSent records successful email delivery of the code.
	MarkSent(ctx context.Context, identityID, code string, at time.Time) error
	// MarkSendFailed records that delivery was permanently abandoned.
	MarkSendFailed(ctx context.Context, identityID string) error
	// EmailSent reports whether the latest code for identityID was delivered.
	EmailSent(ctx context.Context, identityID string) (bool, error)
}
