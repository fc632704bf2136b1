package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/hvill/identity-service/internal/api/metrics"
	"github.com/hvill/identity-service/internal/core/domain"
	"github.com/hvill/identity-service/internal/core/ports"
)

// RegistrationService is the registration orchestrator: it drives an
// identity from draft through the OTP and face-enrollment gates to
// promotion.
//
// Promotion policy: a failed face enrollment blocks promotion until a manual
// re-enrollment brings the status back to completed. Duplicate promotion
// attempts fail with domain.ErrAlreadyVerified; the CAS inside the
// repository guarantees registration_completed is set exactly once.
type RegistrationService struct {
	identities    ports.IdentityRepository
	verifications ports.VerificationRepository
	otps          ports.OTPStore
	gateway       ports.VerificationGateway
	notifier      ports.Notifier
	runner        ports.TaskRunner
	events        ports.EventPublisher
	log           zerolog.Logger
}

func NewRegistrationService(
	identities ports.IdentityRepository,
	verifications ports.VerificationRepository,
	otps ports.OTPStore,
	gateway ports.VerificationGateway,
	notifier ports.Notifier,
	runner ports.TaskRunner,
	events ports.EventPublisher,
	log zerolog.Logger,
) *RegistrationService {
	return &RegistrationService{
		identities:    identities,
		verifications: verifications,
		otps:          otps,
		gateway:       gateway,
		notifier:      notifier,
		runner:        runner,
		events:        events,
		log:           log,
	}
}

// BeginRegistration opens a draft identity. The OCR extraction runs
// synchronously (bounded by the gateway timeout) but a flaky OCR backend
// never aborts registration: recoverable outcomes route the verification
// record to manual review and the flow continues. Face enrollment and OTP
// delivery go to the background task runner.
func (s *RegistrationService) BeginRegistration(ctx context.Context, in ports.BeginRegistrationInput) (*domain.Identity, error) {
	if in.Email == "" || in.Password == "" || in.Firstname == "" || in.Lastname == "" {
		return nil, domain.ErrInvalidCredentials
	}
	if !domain.ValidRole(in.Role) {
		return nil, domain.ErrInvalidCredentials
	}

	// Drafts are invisible to this check: only a promoted identity blocks
	// the email.
	if _, err := s.identities.FindNonDraftByEmail(ctx, in.Email); err == nil {
		return nil, domain.ErrConflict
	} else if !errors.Is(err, domain.ErrIdentityNotFound) {
		return nil, fmt.Errorf("begin registration: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	draft := &domain.Identity{
		Firstname:            in.Firstname,
		Middlename:           in.Middlename,
		Lastname:             in.Lastname,
		Email:                in.Email,
		PasswordHash:         string(hash),
		Gender:               in.Gender,
		Role:                 in.Role,
		IsDraft:              true,
		IsActive:             true,
		RegistrationStep:     domain.StepOne,
		FaceEnrollmentStatus: domain.FaceEnrollmentPending,
		RegistrationStarted:  now,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	created, err := s.identities.Create(ctx, draft)
	if err != nil {
		return nil, fmt.Errorf("create draft: %w", err)
	}

	verification, err := s.verifications.Create(ctx, &domain.IDVerification{
		IdentityID:  created.ID,
		DocumentRef: fmt.Sprintf("documents/%s/%s", created.ID, in.Document.Filename),
		Status:      domain.VerificationPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, fmt.Errorf("create verification record: %w", err)
	}
	if err := s.identities.UpdateFields(ctx, created.ID, ports.IdentityUpdate{IDVerificationID: &verification.ID}); err != nil {
		return nil, fmt.Errorf("link verification record: %w", err)
	}
	created.IDVerificationID = verification.ID

	s.extractDocument(ctx, verification.ID, in.Document)

	code, err := generateOTP()
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w", err)
	}
	if err := s.otps.Put(ctx, &domain.OTP{IdentityID: created.ID, Code: code, IssuedAt: now}); err != nil {
		return nil, fmt.Errorf("store otp: %w", err)
	}

	s.runner.Enqueue(ports.TaskNotification, ports.NotificationPayload{
		IdentityID: created.ID,
		Email:      created.Email,
		Code:       code,
	})
	s.runner.Enqueue(ports.TaskFaceEnrollment, ports.FaceEnrollmentPayload{
		IdentityID: created.ID,
		FullName:   created.FullName(),
		Email:      created.Email,
		Document:   in.Document,
	})

	if err := s.events.PublishIdentityCreated(ctx, ports.IdentityCreatedEvent{
		IdentityID: created.ID,
		Email:      created.Email,
		Role:       created.Role,
		CreatedAt:  now,
	}); err != nil {
		s.log.Warn().Err(err).Str("identity_id", created.ID).Msg("failed to publish identity.created")
	}

	metrics.RegistrationsStartedTotal.WithLabelValues(created.Role).Inc()
	s.log.Info().
		Str("identity_id", created.ID).
		Str("role", created.Role).
		Msg("draft identity created")

	return created, nil
}

// extractDocument performs the synchronous OCR step. Any failure downgrades
// the verification record to manual review; the draft is never lost to a
// flaky OCR call.
func (s *RegistrationService) extractDocument(ctx context.Context, verificationID string, doc ports.Document) {
	result, err := s.gateway.ExtractDocumentFields(ctx, doc)
	if err != nil {
		metrics.OcrExtractionsTotal.WithLabelValues("error").Inc()
		s.log.Warn().Err(err).Msg("ocr extraction failed, flagging for manual review")
		if err := s.verifications.SetStatus(ctx, verificationID, domain.VerificationManualReview); err != nil {
			s.log.Error().Err(err).Msg("failed to flag verification for manual review")
		}
		return
	}

	switch result.Outcome {
	case ports.ExtractSucceeded:
		metrics.OcrExtractionsTotal.WithLabelValues("succeeded").Inc()
		if err := s.verifications.SetExtracted(ctx, verificationID, *result.Fields, domain.VerificationApproved); err != nil {
			s.log.Error().Err(err).Msg("failed to store extracted fields")
		}
	case ports.ExtractManualReview:
		metrics.OcrExtractionsTotal.WithLabelValues("manual_review").Inc()
		if err := s.verifications.SetStatus(ctx, verificationID, domain.VerificationManualReview); err != nil {
			s.log.Error().Err(err).Msg("failed to flag verification for manual review")
		}
	}
}

// ConfirmOtp consumes the (identityID, code) pair and marks the OTP gate
// satisfied. The code is single-use; a second confirmation of the same pair
// fails with domain.ErrInvalidOtp. Confirmation never promotes on its own.
func (s *RegistrationService) ConfirmOtp(ctx context.Context, identityID, code string) error {
	if identityID == "" || code == "" {
		return domain.ErrInvalidOtp
	}

	if err := s.otps.Consume(ctx, identityID, code); err != nil {
		if errors.Is(err, domain.ErrInvalidOtp) {
			metrics.OtpConfirmationsTotal.WithLabelValues("invalid").Inc()
		}
		return err
	}
	metrics.OtpConfirmationsTotal.WithLabelValues("ok").Inc()

	identity, err := s.identities.FindByID(ctx, identityID)
	if err != nil {
		return err
	}

	// Already at step2 is a no-op; any other position must be a legal edge
	// of the state machine.
	if identity.RegistrationStep != domain.StepTwo {
		if err := s.advanceStep(ctx, identityID, identity.RegistrationStep, domain.StepTwo); err != nil {
			return err
		}
	}

	s.log.Info().Str("identity_id", identityID).Msg("otp confirmed")
	return nil
}

// advanceStep moves the registration pointer along the state machine,
// rejecting edges the machine does not define.
func (s *RegistrationService) advanceStep(ctx context.Context, identityID string, from, to domain.RegistrationStep) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("advance step %s to %s: %w", from, to, domain.ErrInvalidTransition)
	}
	if err := s.identities.UpdateFields(ctx, identityID, ports.IdentityUpdate{RegistrationStep: &to}); err != nil {
		return fmt.Errorf("advance registration step: %w", err)
	}
	return nil
}

// CompleteVerification promotes the draft once the OTP gate and the
// face-enrollment/ID-review gate are both satisfied. The repository CAS plus
// the partial unique index make two concurrent promotions for colliding
// emails impossible.
func (s *RegistrationService) CompleteVerification(ctx context.Context, identityID string) (*domain.Identity, error) {
	identity, err := s.identities.FindByID(ctx, identityID)
	if err != nil {
		return nil, err
	}

	if identity.IsVerified {
		metrics.PromotionsTotal.WithLabelValues("already_verified").Inc()
		return nil, domain.ErrAlreadyVerified
	}

	if !s.gatesSatisfied(ctx, identity) {
		metrics.PromotionsTotal.WithLabelValues("precondition_failed").Inc()
		return nil, domain.ErrPreconditionFailed
	}

	promoted, err := s.identities.Promote(ctx, identityID, time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrConflict):
			metrics.PromotionsTotal.WithLabelValues("conflict").Inc()
			return nil, domain.ErrConflict
		case errors.Is(err, domain.ErrIdentityNotFound):
			// The CAS matched nothing: either the draft vanished or a
			// concurrent call already promoted it.
			if current, readErr := s.identities.FindByID(ctx, identityID); readErr == nil && current.IsVerified {
				metrics.PromotionsTotal.WithLabelValues("already_verified").Inc()
				return nil, domain.ErrAlreadyVerified
			}
			metrics.PromotionsTotal.WithLabelValues("error").Inc()
			return nil, domain.ErrIdentityNotFound
		default:
			metrics.PromotionsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("promote: %w", err)
		}
	}

	if err := s.events.PublishIdentityVerified(ctx, ports.IdentityVerifiedEvent{
		IdentityID: promoted.ID,
		Email:      promoted.Email,
		Role:       promoted.Role,
		VerifiedAt: *promoted.RegistrationCompleted,
	}); err != nil {
		s.log.Warn().Err(err).Str("identity_id", promoted.ID).Msg("failed to publish identity.verified")
	}

	metrics.PromotionsTotal.WithLabelValues("promoted").Inc()
	s.log.Info().Str("identity_id", promoted.ID).Msg("identity promoted")
	return promoted, nil
}

// gatesSatisfied checks the two promotion gates independently: the gates may
// complete in either order.
func (s *RegistrationService) gatesSatisfied(ctx context.Context, identity *domain.Identity) bool {
	if !identity.OtpConfirmed() {
		return false
	}
	if identity.FaceEnrollmentStatus != domain.FaceEnrollmentCompleted {
		return false
	}

	// A rejected ID review blocks promotion; pending and manual review do
	// not hold the registration hostage to a human queue.
	if identity.IDVerificationID != "" {
		verification, err := s.verifications.FindByIdentity(ctx, identity.ID)
		if err == nil && verification.Status == domain.VerificationRejected {
			return false
		}
	}
	return true
}

// RegistrationStatus returns the read-only gate projection for polling.
func (s *RegistrationService) RegistrationStatus(ctx context.Context, identityID string) (*ports.RegistrationStatus, error) {
	identity, err := s.identities.FindByID(ctx, identityID)
	if err != nil {
		return nil, err
	}

	status := &ports.RegistrationStatus{
		RegistrationStep:     identity.RegistrationStep,
		FaceEnrollmentStatus: identity.FaceEnrollmentStatus,
		FaceEnrollmentError:  identity.FaceEnrollmentError,
		IsVerified:           identity.IsVerified,
	}

	sent, err := s.otps.EmailSent(ctx, identityID)
	if err != nil {
		s.log.Warn().Err(err).Str("identity_id", identityID).Msg("failed to read otp delivery flag")
	}
	status.OtpEmailSent = sent

	if verification, err := s.verifications.FindByIdentity(ctx, identityID); err == nil {
		status.IDReviewStatus = verification.Status
	}

	return status, nil
}

// HandleFaceEnrollment is the background handler for TaskFaceEnrollment.
// The gateway's enrollment call is upsert-like, so re-running the full body
// on retry is safe.
func (s *RegistrationService) HandleFaceEnrollment(ctx context.Context, payload any) error {
	p, ok := payload.(ports.FaceEnrollmentPayload)
	if !ok {
		return fmt.Errorf("face enrollment: unexpected payload %T: %w", payload, domain.ErrExternalConflict)
	}

	result, err := s.gateway.EnrollFace(ctx, ports.EnrollFaceInput{
		IdentityID: p.IdentityID,
		FullName:   p.FullName,
		Email:      p.Email,
		Document:   p.Document,
	})
	if err != nil {
		return err
	}

	completed := domain.FaceEnrollmentCompleted
	noError := ""
	if err := s.identities.UpdateFields(ctx, p.IdentityID, ports.IdentityUpdate{
		FaceEnrollmentStatus: &completed,
		FaceRef:              &result.FaceRef,
		FaceEnrollmentError:  &noError,
	}); err != nil {
		return fmt.Errorf("record enrollment: %w", err)
	}

	// Advance to step3 only when the OTP gate already passed; promotion
	// re-checks both gates regardless of ordering.
	if identity, err := s.identities.FindByID(ctx, p.IdentityID); err == nil && identity.RegistrationStep == domain.StepTwo {
		if err := s.advanceStep(ctx, p.IdentityID, domain.StepTwo, domain.StepThree); err != nil {
			s.log.Warn().Err(err).Str("identity_id", p.IdentityID).Msg("failed to advance registration step")
		}
	}

	s.log.Info().Str("identity_id", p.IdentityID).Msg("face enrollment completed")
	return nil
}

// FaceEnrollmentExhausted records the terminal failure on the identity. The
// user-visible effect is faceEnrollmentStatus=failed in the status poll.
func (s *RegistrationService) FaceEnrollmentExhausted(ctx context.Context, payload any, lastErr error) {
	p, ok := payload.(ports.FaceEnrollmentPayload)
	if !ok {
		return
	}

	failed := domain.FaceEnrollmentFailed
	msg := lastErr.Error()
	if err := s.identities.UpdateFields(ctx, p.IdentityID, ports.IdentityUpdate{
		FaceEnrollmentStatus: &failed,
		FaceEnrollmentError:  &msg,
	}); err != nil {
		s.log.Error().Err(err).Str("identity_id", p.IdentityID).Msg("failed to record enrollment failure")
		return
	}
	s.log.Error().Str("identity_id", p.IdentityID).Str("cause", msg).Msg("face enrollment failed terminally")
}

// HandleNotification is the background handler for TaskNotification.
// Re-sending the same code on retry is acceptable.
func (s *RegistrationService) HandleNotification(ctx context.Context, payload any) error {
	p, ok := payload.(ports.NotificationPayload)
	if !ok {
		return fmt.Errorf("notification: unexpected payload %T: %w", payload, domain.ErrExternalConflict)
	}

	if err := s.notifier.SendOTP(ctx, p.Email, p.Code); err != nil {
		return err
	}

	if err := s.otps.MarkSent(ctx, p.IdentityID, p.Code, time.Now().UTC()); err != nil {
		s.log.Warn().Err(err).Str("identity_id", p.IdentityID).Msg("failed to mark otp sent")
	}
	s.log.Info().Str("identity_id", p.IdentityID).Msg("otp email delivered")
	return nil
}

// NotificationExhausted pins the delivery flag to false permanently.
func (s *RegistrationService) NotificationExhausted(ctx context.Context, payload any, lastErr error) {
	p, ok := payload.(ports.NotificationPayload)
	if !ok {
		return
	}
	if err := s.otps.MarkSendFailed(ctx, p.IdentityID); err != nil {
		s.log.Error().Err(err).Str("identity_id", p.IdentityID).Msg("failed to record otp delivery failure")
		return
	}
	s.log.Error().Err(lastErr).Str("identity_id", p.IdentityID).Msg("otp delivery failed terminally")
}

// generateOTP returns a 6-digit numeric code from crypto/rand.
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
