package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/adelbrx/univhub/internal/auth"
	"github.com/adelbrx/univhub/internal/config"
	"github.com/adelbrx/univhub/internal/domain"
	"github.com/adelbrx/univhub/internal/events"
	"github.com/adelbrx/univhub/internal/mail"
	"github.com/adelbrx/univhub/internal/repository"
	apperrors "github.com/adelbrx/univhub/pkg/util"
)

// Session bundles an issued token with its expiry for transport.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// AuthService coordinates signup, activation, login, and the password
// flows. Password hashing is an explicit step inside each mutating flow, not
// a hidden interceptor: only the flows below ever write password_hash, so a
// stored hash is never re-hashed by an unrelated update.
type AuthService struct {
	users      repository.UserRepository
	mailer     mail.Mailer
	dispatcher events.Dispatcher
	tokens     *auth.TokenManager

	bcryptCost    int
	activationTTL time.Duration
	resetTTL      time.Duration
	orgDomain     string
	baseURL       string
}

// AuthDependencies encapsulates collaborator requirements for the service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	Mailer     mail.Mailer
	Dispatcher events.Dispatcher
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:         deps.UserRepo,
		mailer:        deps.Mailer,
		dispatcher:    deps.Dispatcher,
		tokens:        auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL()),
		bcryptCost:    cfg.Auth.BcryptCost,
		activationTTL: cfg.Auth.ActivationTTL(),
		resetTTL:      cfg.Auth.PasswordResetTTL(),
		orgDomain:     cfg.Auth.OrgEmailDomain,
		baseURL:       cfg.App.PublicBaseURL,
	}
}

// Signup registers an inactive account and mails its activation link. The
// raw activation token leaves the process only through the mailer; the store
// keeps just the digest and expiry. If delivery fails the digest pair is
// cleared again before the error surfaces.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*domain.User, error) {
	if err := in.Validate(s.orgDomain); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	token, err := auth.NewSecretToken(s.activationTTL)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	user := &domain.User{
		ID:                       uuid.NewString(),
		FirstName:                in.FirstName,
		LastName:                 in.LastName,
		Email:                    domain.NormalizeEmail(in.Email),
		Photo:                    domain.DefaultPhoto,
		Role:                     domain.RoleUser,
		PasswordHash:             hash,
		Active:                   false,
		ActivationTokenDigest:    &token.Digest,
		ActivationTokenExpiresAt: &token.ExpiresAt,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}

	url := fmt.Sprintf("%s/api/v1/users/activateAccount/%s", s.baseURL, token.Raw)
	if err := s.mailer.Send(ctx, user.Email, mail.TemplateWelcome, mail.Vars{FirstName: user.FirstName, URL: url}); err != nil {
		_ = s.users.ClearActivation(ctx, user.ID)
		return nil, apperrors.NewDeliveryError(err)
	}

	s.publish(ctx, events.EventUserRegistered, user.Email)
	user.PasswordHash = ""
	return user, nil
}

// Activate consumes an activation token and logs the user in.
func (s *AuthService) Activate(ctx context.Context, rawToken string) (*domain.User, Session, error) {
	digest := auth.HashSecretToken(rawToken)
	user, err := s.users.Activate(ctx, digest, time.Now())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, Session{}, apperrors.NewInvalidOrExpiredToken()
		}
		return nil, Session{}, apperrors.MapError(err)
	}

	session, err := s.issueSession(user.Email)
	if err != nil {
		return nil, Session{}, err
	}
	s.publish(ctx, events.EventAccountActivated, user.Email)
	user.PasswordHash = ""
	return user, session, nil
}

// Login authenticates by email and password. A missing account and a wrong
// password fail identically so responses cannot be used to enumerate
// accounts.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, Session, error) {
	if email == "" || password == "" {
		return nil, Session{}, apperrors.NewValidationError("please provide email and password", nil)
	}

	user, err := s.users.GetByEmailWithPassword(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, Session{}, apperrors.NewInvalidCredentials()
		}
		return nil, Session{}, apperrors.MapError(err)
	}
	if !auth.PasswordMatches(user.PasswordHash, password) {
		return nil, Session{}, apperrors.NewInvalidCredentials()
	}

	session, err := s.issueSession(user.Email)
	if err != nil {
		return nil, Session{}, err
	}
	user.PasswordHash = ""
	return user, session, nil
}

// ForgotPassword mails a reset link to an existing account. Delivery failure
// triggers the compensating write that clears the just-persisted digest pair.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(email), false)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("user", nil)
		}
		return apperrors.MapError(err)
	}

	token, err := auth.NewSecretToken(s.resetTTL)
	if err != nil {
		return apperrors.MapError(err)
	}
	if err := s.users.SetPasswordReset(ctx, user.ID, token.Digest, token.ExpiresAt); err != nil {
		return apperrors.MapError(err)
	}

	url := fmt.Sprintf("%s/api/v1/users/resetPassword/%s", s.baseURL, token.Raw)
	if err := s.mailer.Send(ctx, user.Email, mail.TemplatePasswordReset, mail.Vars{FirstName: user.FirstName, URL: url}); err != nil {
		_ = s.users.ClearPasswordReset(ctx, user.ID)
		return apperrors.NewDeliveryError(err)
	}

	s.publish(ctx, events.EventPasswordResetRequested, user.Email)
	return nil
}

// ResetPassword consumes a reset token and sets the new password. Lookup and
// clearing share one store operation, so a token is usable exactly once even
// under concurrent attempts.
func (s *AuthService) ResetPassword(ctx context.Context, rawToken string, in NewPasswordInput) (*domain.User, Session, error) {
	if err := in.Validate(); err != nil {
		return nil, Session{}, err
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, Session{}, apperrors.MapError(err)
	}

	digest := auth.HashSecretToken(rawToken)
	user, err := s.users.ResetPassword(ctx, digest, hash, passwordChangeStamp(), time.Now())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, Session{}, apperrors.NewInvalidOrExpiredToken()
		}
		return nil, Session{}, apperrors.MapError(err)
	}

	session, err := s.issueSession(user.Email)
	if err != nil {
		return nil, Session{}, err
	}
	s.publish(ctx, events.EventPasswordChanged, user.Email)
	user.PasswordHash = ""
	return user, session, nil
}

// UpdatePassword changes the password of an authenticated caller after
// verifying the current one, then issues a fresh session. Tokens issued
// before this point turn stale through the access gate's password-changed-at
// rule.
func (s *AuthService) UpdatePassword(ctx context.Context, email, currentPassword string, in NewPasswordInput) (*domain.User, Session, error) {
	if currentPassword == "" {
		return nil, Session{}, apperrors.NewValidationError("please provide your current password", nil)
	}
	if err := in.Validate(); err != nil {
		return nil, Session{}, err
	}

	user, err := s.users.GetByEmailWithPassword(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, Session{}, apperrors.NewNotFound("user", nil)
		}
		return nil, Session{}, apperrors.MapError(err)
	}
	if !auth.PasswordMatches(user.PasswordHash, currentPassword) {
		return nil, Session{}, apperrors.NewInvalidCredentials()
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, Session{}, apperrors.MapError(err)
	}
	changedAt := passwordChangeStamp()
	if err := s.users.UpdatePassword(ctx, user.ID, hash, changedAt); err != nil {
		return nil, Session{}, apperrors.MapError(err)
	}
	user.PasswordChangedAt = &changedAt

	session, err := s.issueSession(user.Email)
	if err != nil {
		return nil, Session{}, err
	}
	s.publish(ctx, events.EventPasswordChanged, user.Email)
	user.PasswordHash = ""
	return user, session, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokens
}

func (s *AuthService) issueSession(email string) (Session, error) {
	token, expiresAt, err := s.tokens.Generate(email)
	if err != nil {
		return Session{}, apperrors.MapError(err)
	}
	return Session{Token: token, ExpiresAt: expiresAt}, nil
}

// passwordChangeStamp backdates the change by one second so a session issued
// in the same flow is not rejected as stale by its own change.
func passwordChangeStamp() time.Time {
	return time.Now().Add(-time.Second)
}

func (s *AuthService) publish(ctx context.Context, eventType events.EventType, email string) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Email:     email,
		Timestamp: time.Now(),
	})
}
