package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adelbrx/univhub/internal/auth"
	"github.com/adelbrx/univhub/internal/config"
	"github.com/adelbrx/univhub/internal/domain"
	"github.com/adelbrx/univhub/internal/events"
	"github.com/adelbrx/univhub/internal/mail"
	"github.com/adelbrx/univhub/internal/repository"
	apperrors "github.com/adelbrx/univhub/pkg/util"
)

// --- fakes ---

// memUserRepo is an in-memory UserRepository with the same find-and-consume
// semantics as the Postgres implementation.
type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User // keyed by email
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*domain.User)}
}

func (r *memUserRepo) byID(id string) *domain.User {
	for _, u := range r.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func copyUser(u *domain.User) *domain.User {
	copied := *u
	return &copied
}

func (r *memUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.users[user.Email]; exists {
		return &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.users[user.Email] = copyUser(user)
	return nil
}

func (r *memUserRepo) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := r.byID(user.ID)
	if stored == nil {
		return pgx.ErrNoRows
	}
	if stored.Email != user.Email {
		delete(r.users, stored.Email)
		r.users[user.Email] = stored
	}
	stored.FirstName = user.FirstName
	stored.LastName = user.LastName
	stored.Email = user.Email
	stored.Photo = user.Photo
	stored.Role = user.Role
	stored.Active = user.Active
	stored.UpdatedAt = time.Now()
	return nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string, includeInactive bool) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[email]
	if !ok || (!includeInactive && !user.Active) {
		return nil, pgx.ErrNoRows
	}
	copied := copyUser(user)
	copied.PasswordHash = ""
	return copied, nil
}

func (r *memUserRepo) GetByEmailWithPassword(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[email]
	if !ok || !user.Active {
		return nil, pgx.ErrNoRows
	}
	return copyUser(user), nil
}

func (r *memUserRepo) List(_ context.Context, opts repository.ListOptions) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.User
	for _, user := range r.users {
		if !opts.IncludeInactive && !user.Active {
			continue
		}
		if opts.Role != nil && user.Role != *opts.Role {
			continue
		}
		copied := copyUser(user)
		copied.PasswordHash = ""
		out = append(out, *copied)
	}
	return out, nil
}

func (r *memUserRepo) Activate(_ context.Context, digest string, now time.Time) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.ActivationTokenDigest != nil && *user.ActivationTokenDigest == digest &&
			user.ActivationTokenExpiresAt != nil && user.ActivationTokenExpiresAt.After(now) {
			user.Active = true
			user.ActivationTokenDigest = nil
			user.ActivationTokenExpiresAt = nil
			return copyUser(user), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memUserRepo) ClearActivation(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user := r.byID(id); user != nil {
		user.ActivationTokenDigest = nil
		user.ActivationTokenExpiresAt = nil
	}
	return nil
}

func (r *memUserRepo) SetPasswordReset(_ context.Context, id, digest string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user := r.byID(id)
	if user == nil {
		return pgx.ErrNoRows
	}
	user.PasswordResetTokenDigest = &digest
	user.PasswordResetExpiresAt = &expiresAt
	return nil
}

func (r *memUserRepo) ClearPasswordReset(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user := r.byID(id); user != nil {
		user.PasswordResetTokenDigest = nil
		user.PasswordResetExpiresAt = nil
	}
	return nil
}

func (r *memUserRepo) ResetPassword(_ context.Context, digest, newHash string, changedAt, now time.Time) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.PasswordResetTokenDigest != nil && *user.PasswordResetTokenDigest == digest &&
			user.PasswordResetExpiresAt != nil && user.PasswordResetExpiresAt.After(now) {
			user.PasswordHash = newHash
			user.PasswordChangedAt = &changedAt
			user.PasswordResetTokenDigest = nil
			user.PasswordResetExpiresAt = nil
			return copyUser(user), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memUserRepo) UpdatePassword(_ context.Context, id, newHash string, changedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user := r.byID(id)
	if user == nil {
		return pgx.ErrNoRows
	}
	user.PasswordHash = newHash
	user.PasswordChangedAt = &changedAt
	return nil
}

func (r *memUserRepo) SoftDelete(_ context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[email]
	if !ok {
		return pgx.ErrNoRows
	}
	user.Active = false
	return nil
}

type sentMail struct {
	To   string
	Kind mail.Template
	Vars mail.Vars
}

type fakeMailer struct {
	sent     []sentMail
	failWith error
}

func (m *fakeMailer) Send(_ context.Context, to string, kind mail.Template, vars mail.Vars) error {
	if m.failWith != nil {
		return m.failWith
	}
	m.sent = append(m.sent, sentMail{To: to, Kind: kind, Vars: vars})
	return nil
}

// --- helpers ---

func testConfig() config.Config {
	return config.Config{
		App: config.AppConfig{PublicBaseURL: "http://localhost:1205"},
		Auth: config.AuthConfig{
			JWTSecret:               "test-secret",
			SessionTTLMinutes:       60,
			ActivationTTLHours:      24,
			PasswordResetTTLMinutes: 10,
			BcryptCost:              4,
			OrgEmailDomain:          "univ-tlemcen.dz",
		},
	}
}

func newTestAuthService(repo repository.UserRepository, mailer mail.Mailer) *AuthService {
	return NewAuthService(testConfig(), AuthDependencies{
		UserRepo:   repo,
		Mailer:     mailer,
		Dispatcher: events.NewInMemoryDispatcher(),
	})
}

func validSignup() SignupInput {
	return SignupInput{
		FirstName:       "Amine",
		LastName:        "Benali",
		Email:           "a@univ-tlemcen.dz",
		Password:        "pass1234",
		PasswordConfirm: "pass1234",
	}
}

func domainErrCode(t *testing.T, err error) string {
	t.Helper()
	var domainErr *apperrors.DomainError
	require.True(t, errors.As(err, &domainErr), "expected DomainError, got %v", err)
	return domainErr.Code
}

// rawTokenFromMail pulls the raw token out of the delivered action URL.
func rawTokenFromMail(t *testing.T, m sentMail) string {
	t.Helper()
	idx := strings.LastIndex(m.Vars.URL, "/")
	require.Positive(t, idx)
	return m.Vars.URL[idx+1:]
}

func seedActiveUser(t *testing.T, repo *memUserRepo, email, password string) *domain.User {
	t.Helper()
	hash, err := auth.HashPassword(password, 4)
	require.NoError(t, err)
	user := &domain.User{
		ID:           email + "-id",
		FirstName:    "Amine",
		LastName:     "Benali",
		Email:        email,
		Photo:        domain.DefaultPhoto,
		Role:         domain.RoleUser,
		PasswordHash: hash,
		Active:       true,
	}
	require.NoError(t, repo.Create(context.Background(), user))
	return user
}

// --- signup ---

func TestSignupStoresInactiveRecordWithDigest(t *testing.T) {
	repo := newMemUserRepo()
	mailer := &fakeMailer{}
	svc := newTestAuthService(repo, mailer)

	user, err := svc.Signup(context.Background(), validSignup())
	require.NoError(t, err)

	assert.False(t, user.Active)
	assert.Empty(t, user.PasswordHash, "hash never leaves the service")
	assert.Equal(t, domain.RoleUser, user.Role)
	assert.Equal(t, domain.DefaultPhoto, user.Photo)

	stored := repo.users["a@univ-tlemcen.dz"]
	require.NotNil(t, stored)
	assert.False(t, stored.Active)
	assert.NotEqual(t, "pass1234", stored.PasswordHash)
	assert.True(t, auth.PasswordMatches(stored.PasswordHash, "pass1234"))
	require.NotNil(t, stored.ActivationTokenDigest)
	require.NotNil(t, stored.ActivationTokenExpiresAt)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), *stored.ActivationTokenExpiresAt, 5*time.Second)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, mail.TemplateWelcome, mailer.sent[0].Kind)
	assert.Equal(t, "a@univ-tlemcen.dz", mailer.sent[0].To)

	// only the digest is persisted; the mail carries the raw token
	raw := rawTokenFromMail(t, mailer.sent[0])
	assert.Equal(t, auth.HashSecretToken(raw), *stored.ActivationTokenDigest)
	assert.NotEqual(t, raw, *stored.ActivationTokenDigest)
}

func TestSignupNormalizesEmail(t *testing.T) {
	repo := newMemUserRepo()
	svc := newTestAuthService(repo, &fakeMailer{})

	in := validSignup()
	in.Email = "Amine@Univ-Tlemcen.DZ"
	user, err := svc.Signup(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "amine@univ-tlemcen.dz", user.Email)
}

func TestSignupValidationFailures(t *testing.T) {
	cases := map[string]func(*SignupInput){
		"foreign domain":       func(in *SignupInput) { in.Email = "a@gmail.com" },
		"not an email":         func(in *SignupInput) { in.Email = "univ-tlemcen.dz" },
		"short first name":     func(in *SignupInput) { in.FirstName = "Al" },
		"missing last name":    func(in *SignupInput) { in.LastName = "" },
		"short password":       func(in *SignupInput) { in.Password, in.PasswordConfirm = "short", "short" },
		"mismatched confirm":   func(in *SignupInput) { in.PasswordConfirm = "pass12345" },
		"missing confirmation": func(in *SignupInput) { in.PasswordConfirm = "" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			repo := newMemUserRepo()
			svc := newTestAuthService(repo, &fakeMailer{})

			in := validSignup()
			mutate(&in)
			_, err := svc.Signup(context.Background(), in)
			assert.Equal(t, "VALIDATION_FAILED", domainErrCode(t, err))
			assert.Empty(t, repo.users, "no record persisted on validation failure")
		})
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	repo := newMemUserRepo()
	svc := newTestAuthService(repo, &fakeMailer{})

	_, err := svc.Signup(context.Background(), validSignup())
	require.NoError(t, err)

	_, err = svc.Signup(context.Background(), validSignup())
	assert.Equal(t, "CONFLICT", domainErrCode(t, err))
}

func TestSignupDeliveryFailureClearsActivationPair(t *testing.T) {
	repo := newMemUserRepo()
	svc := newTestAuthService(repo, &fakeMailer{failWith: errors.New("smtp down")})

	_, err := svc.Signup(context.Background(), validSignup())
	assert.Equal(t, "DELIVERY_FAILED", domainErrCode(t, err))

	stored := repo.users["a@univ-tlemcen.dz"]
	require.NotNil(t, stored)
	assert.Nil(t, stored.ActivationTokenDigest)
	assert.Nil(t, stored.ActivationTokenExpiresAt)
	assert.False(t, stored.Active)
}

// --- activation ---

func TestActivate(t *testing.T) {
	repo := newMemUserRepo()
	mailer := &fakeMailer{}
	svc := newTestAuthService(repo, mailer)

	_, err := svc.Signup(context.Background(), validSignup())
	require.NoError(t, err)
	raw := rawTokenFromMail(t, mailer.sent[0])

	user, session, err := svc.Activate(context.Background(), raw)
	require.NoError(t, err)
	assert.True(t, user.Active)
	assert.NotEmpty(t, session.Token)

	claims, err := svc.TokenManager().Parse(session.Token)
	require.NoError(t, err)
	assert.Equal(t, "a@univ-tlemcen.dz", claims.Email)

	stored := repo.users["a@univ-tlemcen.dz"]
	assert.True(t, stored.Active)
	assert.Nil(t, stored.ActivationTokenDigest)
	assert.Nil(t, stored.ActivationTokenExpiresAt)

	// an activation token is single use
	_, _, err = svc.Activate(context.Background(), raw)
	assert.Equal(t, "INVALID_OR_EXPIRED_TOKEN", domainErrCode(t, err))
}

func TestActivateExpiredTokenLeavesRecordInactive(t *testing.T) {
	repo := newMemUserRepo()
	mailer := &fakeMailer{}
	svc := newTestAuthService(repo, mailer)

	_, err := svc.Signup(context.Background(), validSignup())
	require.NoError(t, err)
	raw := rawTokenFromMail(t, mailer.sent[0])

	expired := time.Now().Add(-time.Minute)
	repo.users["a@univ-tlemcen.dz"].ActivationTokenExpiresAt = &expired

	_, _, err = svc.Activate(context.Background(), raw)
	assert.Equal(t, "INVALID_OR_EXPIRED_TOKEN", domainErrCode(t, err))
	assert.False(t, repo.users["a@univ-tlemcen.dz"].Active)
}

func TestActivateGarbageToken(t *testing.T) {
	svc := newTestAuthService(newMemUserRepo(), &fakeMailer{})
	_, _, err := svc.Activate(context.Background(), "no-such-token")
	assert.Equal(t, "INVALID_OR_EXPIRED_TOKEN", domainErrCode(t, err))
}

// --- login ---

func TestLogin(t *testing.T) {
	repo := newMemUserRepo()
	seedActiveUser(t, repo, "a@univ-tlemcen.dz", "pass1234")
	svc := newTestAuthService(repo, &fakeMailer{})

	user, session, err := svc.Login(context.Background(), "a@univ-tlemcen.dz", "pass1234")
	require.NoError(t, err)
	assert.Empty(t, user.PasswordHash)

	claims, err := svc.TokenManager().Parse(session.Token)
	require.NoError(t, err)
	assert.Equal(t, "a@univ-tlemcen.dz", claims.Email)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	repo := newMemUserRepo()
	seedActiveUser(t, repo, "a@univ-tlemcen.dz", "pass1234")
	svc := newTestAuthService(repo, &fakeMailer{})

	_, _, wrongPassword := svc.Login(context.Background(), "a@univ-tlemcen.dz", "wrong")
	_, _, noSuchUser := svc.Login(context.Background(), "ghost@univ-tlemcen.dz", "pass1234")

	require.Error(t, wrongPassword)
	require.Error(t, noSuchUser)
	assert.Equal(t, "INVALID_CREDENTIALS", domainErrCode(t, wrongPassword))
	assert.Equal(t, "INVALID_CREDENTIALS", domainErrCode(t, noSuchUser))
	assert.Equal(t, wrongPassword.Error(), noSuchUser.Error(), "same message for both causes")
}

func TestLoginRequiresEmailAndPassword(t *testing.T) {
	svc := newTestAuthService(newMemUserRepo(), &fakeMailer{})

	_, _, err := svc.Login(context.Background(), "", "pass1234")
	assert.Equal(t, "VALIDATION_FAILED", domainErrCode(t, err))

	_, _, err = svc.Login(context.Background(), "a@univ-tlemcen.dz", "")
	assert.Equal(t, "VALIDATION_FAILED", domainErrCode(t, err))
}

func TestLoginInactiveAccount(t *testing.T) {
	repo := newMemUserRepo()
	user := seedActiveUser(t, repo, "a@univ-tlemcen.dz", "pass1234")
	repo.users[user.Email].Active = false
	svc := newTestAuthService(repo, &fakeMailer{})

	_, _, err := svc.Login(context.Background(), "a@univ-tlemcen.dz", "pass1234")
	assert.Equal(t, "INVALID_CREDENTIALS", domainErrCode(t, err))
}

// --- forgot / reset password ---

func TestForgotPassword(t *testing.T) {
	repo := newMemUserRepo()
	seedActiveUser(t, repo, "a@univ-tlemcen.dz", "pass1234")
	mailer := &fakeMailer{}
	svc := newTestAuthService(repo, mailer)

	require.NoError(t, svc.ForgotPassword(context.Background(), "a@univ-tlemcen.dz"))

	stored := repo.users["a@univ-tlemcen.dz"]
	require.NotNil(t, stored.PasswordResetTokenDigest)
	require.NotNil(t, stored.PasswordResetExpiresAt)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), *stored.PasswordResetExpiresAt, 5*time.Second)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, mail.TemplatePasswordReset, mailer.sent[0].Kind)
	raw := rawTokenFromMail(t, mailer.sent[0])
	assert.Equal(t, auth.HashSecretToken(raw), *stored.PasswordResetTokenDigest)
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	svc := newTestAuthService(newMemUserRepo(), &fakeMailer{})
	err := svc.ForgotPassword(context.Background(), "ghost@univ-tlemcen.dz")
	assert.Equal(t, "NOT_FOUND", domainErrCode(t, err))
}

func TestForgotPasswordDeliveryFailureRollsBack(t *testing.T) {
	repo := newMemUserRepo()
	seedActiveUser(t, repo, "a@univ-tlemcen.dz", "pass1234")
	svc := newTestAuthService(repo, &fakeMailer{failWith: errors.New("smtp down")})

	err := svc.ForgotPassword(context.Background(), "a@univ-tlemcen.dz")
	assert.Equal(t, "DELIVERY_FAILED", domainErrCode(t, err))

	stored := repo.users["a@univ-tlemcen.dz"]
	assert.Nil(t, stored.PasswordResetTokenDigest)
	assert.Nil(t, stored.PasswordResetExpiresAt)
}

func TestResetPasswordIsSingleUse(t *testing.T) {
	repo := newMemUserRepo()
	seedActiveUser(t, repo, "a@univ-tlemcen.dz", "pass1234")
	mailer := &fakeMailer{}
	svc := newTestAuthService(repo, mailer)

	require.NoError(t, svc.ForgotPassword(context.Background(), "a@univ-tlemcen.dz"))
	raw := rawTokenFromMail(t, mailer.sent[0])

	in := NewPasswordInput{Password: "newpass99", PasswordConfirm: "newpass99"}
	user, session, err := svc.ResetPassword(context.Background(), raw, in)
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.NotNil(t, repo.users[user.Email].PasswordChangedAt)

	// the digest pair was consumed with the password write
	stored := repo.users["a@univ-tlemcen.dz"]
	assert.Nil(t, stored.PasswordResetTokenDigest)
	assert.Nil(t, stored.PasswordResetExpiresAt)
	assert.True(t, auth.PasswordMatches(stored.PasswordHash, "newpass99"))

	_, _, err = svc.ResetPassword(context.Background(), raw, in)
	assert.Equal(t, "INVALID_OR_EXPIRED_TOKEN", domainErrCode(t, err))

	// old password no longer logs in, new one does
	_, _, err = svc.Login(context.Background(), "a@univ-tlemcen.dz", "pass1234")
	assert.Equal(t, "INVALID_CREDENTIALS", domainErrCode(t, err))
	_, _, err = svc.Login(context.Background(), "a@univ-tlemcen.dz", "newpass99")
	assert.NoError(t, err)
}

func TestResetPasswordExpiredWindow(t *testing.T) {
	repo := newMemUserRepo()
	seedActiveUser(t, repo, "a@univ-tlemcen.dz", "pass1234")
	mailer := &fakeMailer{}
	svc := newTestAuthService(repo, mailer)

	require.NoError(t, svc.ForgotPassword(context.Background(), "a@univ-tlemcen.dz"))
	raw := rawTokenFromMail(t, mailer.sent[0])

	expired := time.Now().Add(-time.Minute)
	repo.users["a@univ-tlemcen.dz"].PasswordResetExpiresAt = &expired

	_, _, err := svc.ResetPassword(context.Background(), raw, NewPasswordInput{Password: "newpass99", PasswordConfirm: "newpass99"})
	assert.Equal(t, "INVALID_OR_EXPIRED_TOKEN", domainErrCode(t, err))
}

func TestResetPasswordValidation(t *testing.T) {
	svc := newTestAuthService(newMemUserRepo(), &fakeMailer{})
	_, _, err := svc.ResetPassword(context.Background(), "whatever", NewPasswordInput{Password: "newpass99", PasswordConfirm: "different"})
	assert.Equal(t, "VALIDATION_FAILED", domainErrCode(t, err))
}

// --- update password ---

func TestUpdatePassword(t *testing.T) {
	repo := newMemUserRepo()
	seedActiveUser(t, repo, "a@univ-tlemcen.dz", "pass1234")
	svc := newTestAuthService(repo, &fakeMailer{})

	user, session, err := svc.UpdatePassword(context.Background(), "a@univ-tlemcen.dz", "pass1234",
		NewPasswordInput{Password: "newpass99", PasswordConfirm: "newpass99"})
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)

	stored := repo.users["a@univ-tlemcen.dz"]
	assert.True(t, auth.PasswordMatches(stored.PasswordHash, "newpass99"))
	require.NotNil(t, stored.PasswordChangedAt)
	assert.WithinDuration(t, time.Now(), *stored.PasswordChangedAt, 5*time.Second)

	// tokens issued before the change are stale, the fresh session is not
	assert.True(t, user.PasswordChangedAfter(time.Now().Add(-time.Hour)))
	claims, err := svc.TokenManager().Parse(session.Token)
	require.NoError(t, err)
	assert.False(t, user.PasswordChangedAfter(claims.IssuedAt.Time))
}

func TestUpdatePasswordWrongCurrent(t *testing.T) {
	repo := newMemUserRepo()
	seedActiveUser(t, repo, "a@univ-tlemcen.dz", "pass1234")
	svc := newTestAuthService(repo, &fakeMailer{})

	_, _, err := svc.UpdatePassword(context.Background(), "a@univ-tlemcen.dz", "wrong",
		NewPasswordInput{Password: "newpass99", PasswordConfirm: "newpass99"})
	assert.Equal(t, "INVALID_CREDENTIALS", domainErrCode(t, err))

	stored := repo.users["a@univ-tlemcen.dz"]
	assert.True(t, auth.PasswordMatches(stored.PasswordHash, "pass1234"), "password unchanged")
}

func TestUpdatePasswordMissingCurrent(t *testing.T) {
	svc := newTestAuthService(newMemUserRepo(), &fakeMailer{})
	_, _, err := svc.UpdatePassword(context.Background(), "a@univ-tlemcen.dz", "",
		NewPasswordInput{Password: "newpass99", PasswordConfirm: "newpass99"})
	assert.Equal(t, "VALIDATION_FAILED", domainErrCode(t, err))
}
