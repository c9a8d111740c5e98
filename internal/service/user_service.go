package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/adelbrx/univhub/internal/domain"
	"github.com/adelbrx/univhub/internal/repository"
	apperrors "github.com/adelbrx/univhub/pkg/util"
)

// AdminUpdateInput extends profile mutation with the fields only admins may
// touch. Nil/empty fields are left unchanged.
type AdminUpdateInput struct {
	FirstName string
	LastName  string
	Photo     string
	Role      string
	Active    *bool
}

// UserService covers profile reads and role-gated account administration.
// It never touches password or token fields; those belong to AuthService.
type UserService struct {
	users repository.UserRepository
}

// NewUserService builds the service.
func NewUserService(users repository.UserRepository) *UserService {
	return &UserService{users: users}
}

// GetByEmail returns a profile. Inactive accounts stay hidden unless the
// caller explicitly asks for them.
func (s *UserService) GetByEmail(ctx context.Context, email string, includeInactive bool) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(email), includeInactive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", nil)
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// List returns profiles; unactivated accounts never appear unless
// IncludeInactive is set.
func (s *UserService) List(ctx context.Context, opts repository.ListOptions) ([]domain.User, error) {
	users, err := s.users.List(ctx, opts)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

// UpdateProfile applies self-service mutations. Only name fields and the
// photo reference are writable here.
func (s *UserService) UpdateProfile(ctx context.Context, email string, in UpdateProfileInput) (*domain.User, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	user, err := s.GetByEmail(ctx, email, false)
	if err != nil {
		return nil, err
	}

	if in.FirstName != "" {
		user.FirstName = in.FirstName
	}
	if in.LastName != "" {
		user.LastName = in.LastName
	}
	if in.Photo != "" {
		user.Photo = in.Photo
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// AdminUpdate applies an administrative mutation, including role and active
// flag changes.
func (s *UserService) AdminUpdate(ctx context.Context, email string, in AdminUpdateInput) (*domain.User, error) {
	user, err := s.GetByEmail(ctx, email, true)
	if err != nil {
		return nil, err
	}

	if in.FirstName != "" {
		user.FirstName = in.FirstName
	}
	if in.LastName != "" {
		user.LastName = in.LastName
	}
	if in.Photo != "" {
		user.Photo = in.Photo
	}
	if in.Role != "" {
		role := domain.Role(in.Role)
		if !role.Valid() {
			return nil, apperrors.NewValidationError("invalid input data", map[string]any{"role": "unknown role"})
		}
		user.Role = role
	}
	if in.Active != nil {
		user.Active = *in.Active
	}

	if err := (UpdateProfileInput{FirstName: user.FirstName, LastName: user.LastName, Photo: user.Photo}).Validate(); err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// Deactivate soft-deletes an account by flipping active off; the record is
// never physically removed.
func (s *UserService) Deactivate(ctx context.Context, email string) error {
	if err := s.users.SoftDelete(ctx, domain.NormalizeEmail(email)); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("user", nil)
		}
		return apperrors.MapError(err)
	}
	return nil
}
