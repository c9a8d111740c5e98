package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adelbrx/univhub/internal/domain"
)

// ListOptions narrows and pages List results. Inactive records stay hidden
// unless IncludeInactive is set.
type ListOptions struct {
	Role            *domain.Role
	SortBy          string
	Limit           int
	Offset          int
	IncludeInactive bool
}

// UserRepository defines persistence access for accounts.
//
// Activate and ResetPassword are single-statement find-and-consume
// operations: the digest lookup and the clearing of the digest/expiry pair
// happen atomically, so a token can never be honored twice.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string, includeInactive bool) (*domain.User, error)
	GetByEmailWithPassword(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context, opts ListOptions) ([]domain.User, error)
	Activate(ctx context.Context, digest string, now time.Time) (*domain.User, error)
	ClearActivation(ctx context.Context, id string) error
	SetPasswordReset(ctx context.Context, id, digest string, expiresAt time.Time) error
	ClearPasswordReset(ctx context.Context, id string) error
	ResetPassword(ctx context.Context, digest, newHash string, changedAt, now time.Time) (*domain.User, error)
	UpdatePassword(ctx context.Context, id, newHash string, changedAt time.Time) error
	SoftDelete(ctx context.Context, email string) error
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `id, first_name, last_name, email, photo, role, password_hash, active,
        activation_token_digest, activation_token_expires_at,
        password_reset_token_digest, password_reset_expires_at,
        password_changed_at, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.Photo,
		&user.Role,
		&user.PasswordHash,
		&user.Active,
		&user.ActivationTokenDigest,
		&user.ActivationTokenExpiresAt,
		&user.PasswordResetTokenDigest,
		&user.PasswordResetExpiresAt,
		&user.PasswordChangedAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (id, first_name, last_name, email, photo, role, password_hash, active,
            activation_token_digest, activation_token_expires_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		user.ID,
		user.FirstName,
		user.LastName,
		user.Email,
		user.Photo,
		user.Role,
		user.PasswordHash,
		user.Active,
		user.ActivationTokenDigest,
		user.ActivationTokenExpiresAt,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
}

// Update writes profile-level fields only. Password and token fields move
// through their dedicated methods so a digest and its expiry always change
// together.
func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET first_name=$1, last_name=$2, email=$3, photo=$4, role=$5, active=$6, updated_at=NOW()
        WHERE id=$7`

	cmd, err := r.pool.Exec(ctx, query,
		user.FirstName,
		user.LastName,
		user.Email,
		user.Photo,
		user.Role,
		user.Active,
		user.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string, includeInactive bool) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email=$1`, userColumns)
	if !includeInactive {
		query += ` AND active <> FALSE`
	}
	user, err := scanUser(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		return nil, err
	}
	user.PasswordHash = ""
	return user, nil
}

func (r *userRepository) GetByEmailWithPassword(ctx context.Context, email string) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email=$1 AND active <> FALSE`, userColumns)
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

var sortColumns = map[string]string{
	"createdAt": "created_at",
	"email":     "email",
	"firstName": "first_name",
	"lastName":  "last_name",
	"role":      "role",
}

func (r *userRepository) List(ctx context.Context, opts ListOptions) ([]domain.User, error) {
	var conditions []string
	var args []any

	if !opts.IncludeInactive {
		conditions = append(conditions, "active <> FALSE")
	}
	if opts.Role != nil {
		args = append(args, *opts.Role)
		conditions = append(conditions, fmt.Sprintf("role=$%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM users`, userColumns)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	order := "created_at DESC"
	if col, ok := sortColumns[opts.SortBy]; ok {
		order = col + " ASC"
	}
	query += " ORDER BY " + order

	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = ""
		users = append(users, *user)
	}
	return users, rows.Err()
}

func (r *userRepository) Activate(ctx context.Context, digest string, now time.Time) (*domain.User, error) {
	query := fmt.Sprintf(`
        UPDATE users
        SET active=TRUE, activation_token_digest=NULL, activation_token_expires_at=NULL, updated_at=NOW()
        WHERE activation_token_digest=$1 AND activation_token_expires_at > $2
        RETURNING %s`, userColumns)

	return scanUser(r.pool.QueryRow(ctx, query, digest, now))
}

func (r *userRepository) ClearActivation(ctx context.Context, id string) error {
	const query = `
        UPDATE users
        SET activation_token_digest=NULL, activation_token_expires_at=NULL, updated_at=NOW()
        WHERE id=$1`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}

func (r *userRepository) SetPasswordReset(ctx context.Context, id, digest string, expiresAt time.Time) error {
	const query = `
        UPDATE users
        SET password_reset_token_digest=$1, password_reset_expires_at=$2, updated_at=NOW()
        WHERE id=$3`
	cmd, err := r.pool.Exec(ctx, query, digest, expiresAt, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) ClearPasswordReset(ctx context.Context, id string) error {
	const query = `
        UPDATE users
        SET password_reset_token_digest=NULL, password_reset_expires_at=NULL, updated_at=NOW()
        WHERE id=$1`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}

func (r *userRepository) ResetPassword(ctx context.Context, digest, newHash string, changedAt, now time.Time) (*domain.User, error) {
	query := fmt.Sprintf(`
        UPDATE users
        SET password_hash=$1, password_changed_at=$2,
            password_reset_token_digest=NULL, password_reset_expires_at=NULL, updated_at=NOW()
        WHERE password_reset_token_digest=$3 AND password_reset_expires_at > $4
        RETURNING %s`, userColumns)

	return scanUser(r.pool.QueryRow(ctx, query, newHash, changedAt, digest, now))
}

func (r *userRepository) UpdatePassword(ctx context.Context, id, newHash string, changedAt time.Time) error {
	const query = `
        UPDATE users SET password_hash=$1, password_changed_at=$2, updated_at=NOW()
        WHERE id=$3`
	cmd, err := r.pool.Exec(ctx, query, newHash, changedAt, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) SoftDelete(ctx context.Context, email string) error {
	const query = `UPDATE users SET active=FALSE, updated_at=NOW() WHERE email=$1`
	cmd, err := r.pool.Exec(ctx, query, email)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
