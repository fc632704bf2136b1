package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/hvill/identity-service/internal/core/domain"
	"github.com/hvill/identity-service/internal/core/ports"
)

// StaffService exposes the staff directory. Drafts never appear in listings
// or statistics; department details come from the external scheduling
// service and degrade to nil when that service is unreachable.
type StaffService struct {
	identities ports.IdentityRepository
	scheduling ports.SchedulingClient
	log        zerolog.Logger
}

func NewStaffService(identities ports.IdentityRepository, scheduling ports.SchedulingClient, log zerolog.Logger) *StaffService {
	return &StaffService{identities: identities, scheduling: scheduling, log: log}
}

func (s *StaffService) List(ctx context.Context, filter ports.ListStaffFilter) ([]*ports.StaffMember, int64, error) {
	if filter.Limit <= 0 {
		filter.Limit = 10
	}

	identities, total, err := s.identities.ListStaff(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	members := make([]*ports.StaffMember, 0, len(identities))
	for _, identity := range identities {
		members = append(members, s.enrich(ctx, identity))
	}
	return members, total, nil
}

func (s *StaffService) Get(ctx context.Context, id string) (*ports.StaffMember, error) {
	identity, err := s.identities.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if identity.IsDraft {
		// Drafts are invisible to the directory.
		return nil, domain.ErrIdentityNotFound
	}
	return s.enrich(ctx, identity), nil
}

// Create provisions a staff identity directly as verified and active. Staff
// never pass through the draft pipeline, so the record is non-draft from the
// first write and the partial unique index guards its email immediately.
func (s *StaffService) Create(ctx context.Context, in ports.CreateStaffInput) (*ports.StaffMember, error) {
	if !domain.ValidStaffRole(in.Role) {
		return nil, domain.ErrInvalidRole
	}
	if in.Department != "" {
		if err := s.checkDepartment(ctx, in.Department); err != nil {
			return nil, err
		}
	}

	if _, err := s.identities.FindNonDraftByEmail(ctx, in.Email); err == nil {
		return nil, domain.ErrConflict
	} else if !errors.Is(err, domain.ErrIdentityNotFound) {
		return nil, fmt.Errorf("create staff: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	created, err := s.identities.Create(ctx, &domain.Identity{
		Firstname:             in.Firstname,
		Middlename:            in.Middlename,
		Lastname:              in.Lastname,
		Email:                 in.Email,
		PasswordHash:          string(hash),
		Phone:                 in.Phone,
		Gender:                in.Gender,
		Role:                  in.Role,
		Department:            in.Department,
		IsDraft:               false,
		IsVerified:            true,
		IsActive:              true,
		RegistrationStep:      domain.StepCompleted,
		FaceEnrollmentStatus:  domain.FaceEnrollmentPending,
		RegistrationStarted:   now,
		RegistrationCompleted: &now,
		CreatedAt:             now,
		UpdatedAt:             now,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("identity_id", created.ID).
		Str("role", created.Role).
		Msg("staff identity provisioned")
	return s.enrich(ctx, created), nil
}

// Update applies the non-nil fields of in to a staff identity.
func (s *StaffService) Update(ctx context.Context, id string, in ports.UpdateStaffInput) (*ports.StaffMember, error) {
	identity, err := s.identities.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if identity.IsDraft {
		return nil, domain.ErrIdentityNotFound
	}
	if in.Role != nil && !domain.ValidStaffRole(*in.Role) {
		return nil, domain.ErrInvalidRole
	}
	if in.Department != nil && *in.Department != "" {
		if err := s.checkDepartment(ctx, *in.Department); err != nil {
			return nil, err
		}
	}

	update := ports.IdentityUpdate{
		Firstname:  in.Firstname,
		Middlename: in.Middlename,
		Lastname:   in.Lastname,
		Email:      in.Email,
		Phone:      in.Phone,
		Gender:     in.Gender,
		Role:       in.Role,
		Department: in.Department,
		IsActive:   in.IsActive,
	}
	if err := s.identities.UpdateFields(ctx, id, update); err != nil {
		return nil, err
	}

	updated, err := s.identities.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, updated), nil
}

// checkDepartment verifies the department exists in the scheduling service.
// An unknown department blocks the write; an unreachable scheduling service
// does not, matching how listings degrade.
func (s *StaffService) checkDepartment(ctx context.Context, id string) error {
	_, err := s.scheduling.DepartmentByID(ctx, id)
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrDepartmentNotFound) {
		return err
	}
	s.log.Warn().Err(err).Str("department", id).Msg("department check skipped, scheduling service unreachable")
	return nil
}

// Deactivate soft-deletes a staff identity. The record stays for audit; it
// simply can no longer log in.
func (s *StaffService) Deactivate(ctx context.Context, id string) (*domain.Identity, error) {
	identity, err := s.identities.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if identity.IsDraft {
		return nil, domain.ErrIdentityNotFound
	}

	inactive := false
	if err := s.identities.UpdateFields(ctx, id, ports.IdentityUpdate{IsActive: &inactive}); err != nil {
		return nil, err
	}
	identity.IsActive = false
	return identity, nil
}

func (s *StaffService) Statistics(ctx context.Context) (*ports.StaffStatistics, error) {
	return s.identities.Statistics(ctx)
}

// enrich attaches department details, tolerating scheduling-service outages.
func (s *StaffService) enrich(ctx context.Context, identity *domain.Identity) *ports.StaffMember {
	member := &ports.StaffMember{Identity: identity}
	if identity.Department == "" {
		return member
	}

	department, err := s.scheduling.DepartmentByID(ctx, identity.Department)
	if err != nil {
		if !errors.Is(err, domain.ErrDepartmentNotFound) {
			s.log.Warn().Err(err).Str("identity_id", identity.ID).Msg("department lookup failed")
		}
		return member
	}
	member.DepartmentDetails = department
	return member
}
