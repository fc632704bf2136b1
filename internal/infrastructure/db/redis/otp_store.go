package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hvill/identity-service/internal/core/domain"
)

const defaultOTPTTL = 10 * time.Minute

// OTPStore keeps live one-time codes in Redis.
//
// Key layout:
//
//	otp:<identity_id>:<code>  → JSON {email_sent, sent_at, issued_at}, expires with the code
//	otp:sent:<identity_id>    → "1"/"0" delivery flag backing the status projection
//
// Consume uses GETDEL so a (identity, code) match and its removal are a
// single atomic step: the second confirmation of the same pair always fails.
type OTPStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewOTPStore creates an OTPStore. A non-positive ttl falls back to 10 minutes.
func NewOTPStore(client *redis.Client, ttl time.Duration) *OTPStore {
	if ttl <= 0 {
		ttl = defaultOTPTTL
	}
	return &OTPStore{client: client, ttl: ttl}
}

type otpRecord struct {
	EmailSent bool       `json:"email_sent"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
	IssuedAt  time.Time  `json:"issued_at"`
}

// Put stores a freshly issued code with the configured TTL and resets the
// delivery flag.
func (s *OTPStore) Put(ctx context.Context, otp *domain.OTP) error {
	raw, err := json.Marshal(otpRecord{IssuedAt: otp.IssuedAt})
	if err != nil {
		return fmt.Errorf("marshal otp: %w", err)
	}
	if err := s.client.Set(ctx, s.codeKey(otp.IdentityID, otp.Code), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}
	if err := s.client.Set(ctx, s.sentKey(otp.IdentityID), "0", s.ttl).Err(); err != nil {
		return fmt.Errorf("store otp sent flag: %w", err)
	}
	return nil
}

// Consume deletes the matching code, failing with domain.ErrInvalidOtp when
// no live record exists for the pair.
func (s *OTPStore) Consume(ctx context.Context, identityID, code string) error {
	err := s.client.GetDel(ctx, s.codeKey(identityID, code)).Err()
	if errors.Is(err, redis.Nil) {
		return domain.ErrInvalidOtp
	}
	if err != nil {
		return fmt.Errorf("consume otp: %w", err)
	}
	return nil
}

// MarkSent records successful delivery on the code record and flips the flag.
func (s *OTPStore) MarkSent(ctx context.Context, identityID, code string, at time.Time) error {
	raw, err := json.Marshal(otpRecord{EmailSent: true, SentAt: &at})
	if err != nil {
		return fmt.Errorf("marshal otp: %w", err)
	}
	// XX + KeepTTL: delivery metadata only lands on a still-live code. A
	// code consumed or expired between send and ack must stay gone, and
	// delivery must not extend the code's lifetime.
	args := redis.SetArgs{Mode: "XX", KeepTTL: true}
	if err := s.client.SetArgs(ctx, s.codeKey(identityID, code), raw, args).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("mark otp sent: %w", err)
	}
	if err := s.client.Set(ctx, s.sentKey(identityID), "1", s.ttl).Err(); err != nil {
		return fmt.Errorf("mark otp sent flag: %w", err)
	}
	return nil
}

// MarkSendFailed pins the delivery flag to false after retries are exhausted.
func (s *OTPStore) MarkSendFailed(ctx context.Context, identityID string) error {
	if err := s.client.Set(ctx, s.sentKey(identityID), "0", s.ttl).Err(); err != nil {
		return fmt.Errorf("mark otp send failed: %w", err)
	}
	return nil
}

// EmailSent reports whether the latest code for identityID was delivered.
func (s *OTPStore) EmailSent(ctx context.Context, identityID string) (bool, error) {
	v, err := s.client.Get(ctx, s.sentKey(identityID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read otp sent flag: %w", err)
	}
	return v == "1", nil
}

func (s *OTPStore) codeKey(identityID, code string) string {
	return fmt.Sprintf("otp:%s:%s", identityID, code)
}

func (s *OTPStore) sentKey(identityID string) string {
	return fmt.Sprintf("otp:sent:%s", identityID)
}
