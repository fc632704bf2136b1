package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/hvill/identity-service/internal/core/domain"
)

func newTestStore(t *testing.T, ttl time.Duration) (*OTPStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewOTPStore(client, ttl), mr
}

func TestOTPStore_ConsumeIsSingleUse(t *testing.T) {
	store, _ := newTestStore(t, time.Minute)
	ctx := context.Background()

	otp := &domain.OTP{IdentityID: "id-1", Code: "123456", IssuedAt: time.Now().UTC()}
	if err := store.Put(ctx, otp); err != nil {
		t.Fatalf("put: %v", err)
	}

	if err := store.Consume(ctx, "id-1", "123456"); err != nil {
		t.Fatalf("first consume: %v", err)
	}
	if err := store.Consume(ctx, "id-1", "123456"); !errors.Is(err, domain.ErrInvalidOtp) {
		t.Fatalf("second consume: got %v, want ErrInvalidOtp", err)
	}
}

func TestOTPStore_WrongCodeLeavesLiveCodeIntact(t *testing.T) {
	store, _ := newTestStore(t, time.Minute)
	ctx := context.Background()

	if err := store.Put(ctx, &domain.OTP{IdentityID: "id-1", Code: "123456", IssuedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("put: %v", err)
	}

	if err := store.Consume(ctx, "id-1", "999999"); !errors.Is(err, domain.ErrInvalidOtp) {
		t.Fatalf("wrong code: got %v, want ErrInvalidOtp", err)
	}
	if err := store.Consume(ctx, "id-1", "123456"); err != nil {
		t.Fatalf("right code after wrong attempt: %v", err)
	}
}

func TestOTPStore_MarkSentDoesNotResurrectConsumedCode(t *testing.T) {
	store, _ := newTestStore(t, time.Minute)
	ctx := context.Background()

	if err := store.Put(ctx, &domain.OTP{IdentityID: "id-1", Code: "123456", IssuedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Consume(ctx, "id-1", "123456"); err != nil {
		t.Fatalf("consume: %v", err)
	}

	// The delivery ack from a retried send can land after the user already
	// confirmed the code.
	if err := store.MarkSent(ctx, "id-1", "123456", time.Now().UTC()); err != nil {
		t.Fatalf("mark sent: %v", err)
	}

	if err := store.Consume(ctx, "id-1", "123456"); !errors.Is(err, domain.ErrInvalidOtp) {
		t.Fatalf("consume after late ack: got %v, want ErrInvalidOtp", err)
	}
}

func TestOTPStore_MarkSentDoesNotResurrectExpiredCode(t *testing.T) {
	store, mr := newTestStore(t, time.Minute)
	ctx := context.Background()

	if err := store.Put(ctx, &domain.OTP{IdentityID: "id-1", Code: "123456", IssuedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("put: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	if err := store.MarkSent(ctx, "id-1", "123456", time.Now().UTC()); err != nil {
		t.Fatalf("mark sent: %v", err)
	}

	if err := store.Consume(ctx, "id-1", "123456"); !errors.Is(err, domain.ErrInvalidOtp) {
		t.Fatalf("consume after expiry: got %v, want ErrInvalidOtp", err)
	}
}

func TestOTPStore_MarkSentKeepsExpiry(t *testing.T) {
	store, mr := newTestStore(t, time.Minute)
	ctx := context.Background()

	if err := store.Put(ctx, &domain.OTP{IdentityID: "id-1", Code: "123456", IssuedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.MarkSent(ctx, "id-1", "123456", time.Now().UTC()); err != nil {
		t.Fatalf("mark sent: %v", err)
	}

	if ttl := mr.TTL("otp:id-1:123456"); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("code key ttl after mark sent: %v", ttl)
	}

	mr.FastForward(2 * time.Minute)
	if err := store.Consume(ctx, "id-1", "123456"); !errors.Is(err, domain.ErrInvalidOtp) {
		t.Fatalf("consume after expiry: got %v, want ErrInvalidOtp", err)
	}
}

func TestOTPStore_DeliveryFlagLifecycle(t *testing.T) {
	store, _ := newTestStore(t, time.Minute)
	ctx := context.Background()

	if err := store.Put(ctx, &domain.OTP{IdentityID: "id-1", Code: "123456", IssuedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("put: %v", err)
	}

	sent, err := store.EmailSent(ctx, "id-1")
	if err != nil || sent {
		t.Fatalf("flag after put: sent=%v err=%v", sent, err)
	}

	if err := store.MarkSent(ctx, "id-1", "123456", time.Now().UTC()); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if sent, _ = store.EmailSent(ctx, "id-1"); !sent {
		t.Fatal("flag not set after mark sent")
	}

	if err := store.MarkSendFailed(ctx, "id-1"); err != nil {
		t.Fatalf("mark send failed: %v", err)
	}
	if sent, _ = store.EmailSent(ctx, "id-1"); sent {
		t.Fatal("flag not cleared after mark send failed")
	}
}
