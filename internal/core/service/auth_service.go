package service

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/hvill/identity-service/internal/core/domain"
	"github.com/hvill/identity-service/internal/core/ports"
)

// AuthService implements login for verified identities.
type AuthService struct {
	identities ports.IdentityRepository
	loginLogs  ports.LoginLogRepository
	jwtSecret  string
	tokenTTL   time.Duration
	log        zerolog.Logger
}

func NewAuthService(identities ports.IdentityRepository, loginLogs ports.LoginLogRepository, jwtSecret string, tokenTTL time.Duration, log zerolog.Logger) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthService{
		identities: identities,
		loginLogs:  loginLogs,
		jwtSecret:  jwtSecret,
		tokenTTL:   tokenTTL,
		log:        log,
	}
}

// Login authenticates against non-draft identities only: a draft cannot log
// in regardless of its credential. A successful login appends an audit entry.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *domain.Identity, error) {
	if email == "" || password == "" {
		return "", nil, domain.ErrInvalidCredentials
	}

	identity, err := s.identities.FindNonDraftByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrIdentityNotFound) {
			return "", nil, domain.ErrInvalidCredentials
		}
		return "", nil, err
	}

	if !identity.IsActive {
		return "", nil, domain.ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(password)) != nil {
		return "", nil, domain.ErrInvalidCredentials
	}

	token, err := s.generateToken(identity)
	if err != nil {
		return "", nil, err
	}

	if err := s.loginLogs.Append(ctx, &domain.LoginLog{
		IdentityID: identity.ID,
		Email:      identity.Email,
		Firstname:  identity.Firstname,
		Lastname:   identity.Lastname,
		At:         time.Now().UTC(),
	}); err != nil {
		s.log.Warn().Err(err).Str("identity_id", identity.ID).Msg("failed to append login log")
	}

	return token, identity, nil
}

func (s *AuthService) generateToken(identity *domain.Identity) (string, error) {
	claims := jwt.MapClaims{
		"sub":  identity.ID,
		"role": identity.Role,
		"exp":  time.Now().Add(s.tokenTTL).Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(s.jwtSecret))
}
