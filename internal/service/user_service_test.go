package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"camps-pdf/internal/domain"
)

type mockUserRepo struct {
	usersByID    map[string]domain.User
	usersByEmail map[string]string
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		usersByID:    make(map[string]domain.User),
		usersByEmail: make(map[string]string),
	}
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	m.usersByID[user.ID] = user
	if user.Email != "" {
		m.usersByEmail[user.Email] = user.ID
	}
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	id, ok := m.usersByEmail[email]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return m.GetByID(context.Background(), id)
}

func (m *mockUserRepo) List(_ context.Context) ([]domain.User, error) {
	users := make([]domain.User, 0, len(m.usersByID))
	for _, u := range m.usersByID {
		users = append(users, u)
	}
	return users, nil
}

func (m *mockUserRepo) Update(_ context.Context, user domain.User) error {
	old, ok := m.usersByID[user.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if old.Email != user.Email {
		delete(m.usersByEmail, old.Email)
		m.usersByEmail[user.Email] = user.ID
	}
	m.usersByID[user.ID] = user
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id string) error {
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	delete(m.usersByEmail, user.Email)
	delete(m.usersByID, id)
	return nil
}

func (m *mockUserRepo) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.LastLogin = &at
	m.usersByID[id] = user
	return nil
}

func (m *mockUserRepo) CountAll(_ context.Context) (int, error) {
	return len(m.usersByID), nil
}

func (m *mockUserRepo) CountActive(_ context.Context) (int, error) {
	n := 0
	for _, u := range m.usersByID {
		if u.IsActive {
			n++
		}
	}
	return n, nil
}

type mockCredentialsSender struct {
	lastTo   string
	lastName string
	err      error
}

func (m *mockCredentialsSender) SendAccountCredentials(_ context.Context, toEmail, name, _ string) error {
	m.lastTo = toEmail
	m.lastName = name
	return m.err
}

type allowAllLimiter struct{}

func (allowAllLimiter) Allow(string) bool { return true }

type denyAllLimiter struct{}

func (denyAllLimiter) Allow(string) bool { return false }

func newTestUserService(repo *mockUserRepo) *UserService {
	return NewUserService(zap.NewNop(), repo, &mockCredentialsSender{}, allowAllLimiter{})
}

func seedUser(t *testing.T, repo *mockUserRepo, email, password string, role domain.Role, active bool) domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	user := domain.User{
		ID:           "user-" + email,
		Email:        email,
		Name:         "Test User",
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     active,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func TestUserServiceAuthenticate_Success(t *testing.T) {
	repo := newMockUserRepo()
	seedUser(t, repo, "a@b.com", "secret123", domain.RoleUser, true)
	svc := newTestUserService(repo)

	user, err := svc.Authenticate(context.Background(), "  A@B.com ", "secret123")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if user.Email != "a@b.com" {
		t.Fatalf("unexpected user: %+v", user)
	}

	stored, _ := repo.GetByEmail(context.Background(), "a@b.com")
	if stored.LastLogin == nil {
		t.Fatalf("expected last_login updated")
	}
}

func TestUserServiceAuthenticate_WrongPassword(t *testing.T) {
	repo := newMockUserRepo()
	seedUser(t, repo, "a@b.com", "secret123", domain.RoleUser, true)
	svc := newTestUserService(repo)

	_, err := svc.Authenticate(context.Background(), "a@b.com", "nope")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestUserServiceAuthenticate_UnknownEmail(t *testing.T) {
	svc := newTestUserService(newMockUserRepo())

	_, err := svc.Authenticate(context.Background(), "ghost@b.com", "x")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestUserServiceAuthenticate_InactiveUser(t *testing.T) {
	repo := newMockUserRepo()
	seedUser(t, repo, "a@b.com", "secret123", domain.RoleUser, false)
	svc := newTestUserService(repo)

	_, err := svc.Authenticate(context.Background(), "a@b.com", "secret123")
	if !errors.Is(err, ErrUserInactive) {
		t.Fatalf("expected ErrUserInactive, got %v", err)
	}
}

func TestUserServiceAuthenticate_RateLimited(t *testing.T) {
	repo := newMockUserRepo()
	seedUser(t, repo, "a@b.com", "secret123", domain.RoleUser, true)
	svc := NewUserService(zap.NewNop(), repo, &mockCredentialsSender{}, denyAllLimiter{})

	_, err := svc.Authenticate(context.Background(), "a@b.com", "secret123")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestUserServiceCreateUser_DuplicateEmail(t *testing.T) {
	repo := newMockUserRepo()
	seedUser(t, repo, "a@b.com", "secret123", domain.RoleUser, true)
	svc := newTestUserService(repo)

	_, err := svc.CreateUser(context.Background(), CreateUserInput{
		Email:    "a@b.com",
		Name:     "Otro",
		Password: "secret456",
		Role:     "user",
		IsActive: true,
	})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestUserServiceCreateUser_InvalidRole(t *testing.T) {
	svc := newTestUserService(newMockUserRepo())

	_, err := svc.CreateUser(context.Background(), CreateUserInput{
		Email:    "a@b.com",
		Name:     "Test",
		Password: "secret123",
		Role:     "superuser",
		IsActive: true,
	})
	if !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestUserServiceDeleteUser_SelfDeleteRejected(t *testing.T) {
	repo := newMockUserRepo()
	admin := seedUser(t, repo, "admin@b.com", "secret123", domain.RoleAdmin, true)
	svc := newTestUserService(repo)

	if err := svc.DeleteUser(context.Background(), admin.ID, admin.ID); !errors.Is(err, ErrSelfDelete) {
		t.Fatalf("expected ErrSelfDelete, got %v", err)
	}
}

func TestUserServiceChangePassword(t *testing.T) {
	repo := newMockUserRepo()
	user := seedUser(t, repo, "a@b.com", "secret123", domain.RoleUser, true)
	svc := newTestUserService(repo)

	if err := svc.ChangePassword(context.Background(), user.ID, "wrong", "nuevo123"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("expected ErrWrongPassword, got %v", err)
	}

	if err := svc.ChangePassword(context.Background(), user.ID, "secret123", "nuevo123"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), "a@b.com", "nuevo123"); err != nil {
		t.Fatalf("authenticate with new password: %v", err)
	}
}

func TestUserServiceEnsureDefaultAdmin(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestUserService(repo)

	if err := svc.EnsureDefaultAdmin(context.Background(), "admin@camps.com", "admin123"); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	admin, err := repo.GetByEmail(context.Background(), "admin@camps.com")
	if err != nil {
		t.Fatalf("admin not created: %v", err)
	}
	if admin.Role != domain.RoleAdmin || !admin.IsActive {
		t.Fatalf("unexpected admin: %+v", admin)
	}

	// Segunda llamada: no duplica ni falla.
	if err := svc.EnsureDefaultAdmin(context.Background(), "admin@camps.com", "admin123"); err != nil {
		t.Fatalf("second ensure admin: %v", err)
	}
	if n, _ := repo.CountAll(context.Background()); n != 1 {
		t.Fatalf("expected a single admin, got %d users", n)
	}
}
