package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"camps-pdf/internal/domain"
	"camps-pdf/internal/email"
	"camps-pdf/internal/repository"
)

// UserService coordina reglas de negocio para usuarios y credenciales.
type UserService struct {
	logger       *zap.Logger
	users        repository.UserRepository
	emailSender  email.Sender
	loginLimiter LoginRateLimiter
}

func NewUserService(logger *zap.Logger, users repository.UserRepository, emailSender email.Sender, loginLimiter LoginRateLimiter) *UserService {
	if loginLimiter == nil {
		loginLimiter = NewLoginRateLimiter(10*time.Minute, 10)
	}
	return &UserService{
		logger:       logger,
		users:        users,
		emailSender:  emailSender,
		loginLimiter: loginLimiter,
	}
}

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserInactive       = errors.New("user inactive")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrInvalidRole        = errors.New("invalid role")
	ErrEmailTaken         = errors.New("email already registered")
	ErrSelfDelete         = errors.New("cannot delete own user")
	ErrRateLimited        = errors.New("rate limited")
	ErrWrongPassword      = errors.New("wrong password")
)

func normalizeEmail(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if !strings.Contains(s, "@") {
		return ""
	}
	return s
}

// Authenticate valida credenciales y devuelve el usuario activo.
// Actualiza last_login en cada login exitoso.
func (s *UserService) Authenticate(ctx context.Context, emailAddr, password string) (domain.User, error) {
	emailAddr = normalizeEmail(emailAddr)
	password = strings.TrimSpace(password)
	if emailAddr == "" || password == "" {
		return domain.User{}, ErrInvalidCredentials
	}
	if s.loginLimiter != nil && !s.loginLimiter.Allow(emailAddr) {
		return domain.User{}, ErrRateLimited
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return domain.User{}, ErrUserInactive
	}

	now := time.Now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("update last login failed", zap.Error(err), zap.String("user_id", user.ID))
	}
	user.LastLogin = &now
	return user, nil
}

type CreateUserInput struct {
	Email    string
	Name     string
	Password string
	Role     string
	IsActive bool
}

// CreateUser crea un usuario nuevo (flujo de administración). Si hay un
// sender de email configurado, notifica las credenciales iniciales.
func (s *UserService) CreateUser(ctx context.Context, input CreateUserInput) (domain.User, error) {
	emailAddr := normalizeEmail(input.Email)
	if emailAddr == "" {
		return domain.User{}, ErrInvalidEmail
	}
	name := strings.TrimSpace(input.Name)
	password := strings.TrimSpace(input.Password)
	if name == "" || password == "" {
		return domain.User{}, ErrInvalidCredentials
	}

	roleStr := input.Role
	if roleStr == "" {
		roleStr = string(domain.RoleUser)
	}
	role, ok := domain.ParseRole(strings.ToLower(strings.TrimSpace(roleStr)))
	if !ok {
		return domain.User{}, ErrInvalidRole
	}

	if _, err := s.users.GetByEmail(ctx, emailAddr); err == nil {
		return domain.User{}, ErrEmailTaken
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, err
	}

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, err
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:           uuid.NewString(),
		Email:        emailAddr,
		Name:         name,
		PasswordHash: string(hashBytes),
		Role:         role,
		IsActive:     input.IsActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return domain.User{}, err
	}

	if s.emailSender != nil {
		if err := s.emailSender.SendAccountCredentials(ctx, emailAddr, name, password); err != nil {
			s.logger.Warn("send credentials email failed", zap.Error(err), zap.String("email", emailAddr))
		}
	}
	return user, nil
}

type UpdateUserInput struct {
	Email    *string
	Name     *string
	Role     *string
	IsActive *bool
	Password *string
}

// UpdateUser aplica cambios parciales sobre un usuario existente.
func (s *UserService) UpdateUser(ctx context.Context, id string, input UpdateUserInput) (domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}

	if input.Name != nil {
		user.Name = strings.TrimSpace(*input.Name)
	}
	if input.Email != nil {
		newEmail := normalizeEmail(*input.Email)
		if newEmail == "" {
			return domain.User{}, ErrInvalidEmail
		}
		if newEmail != user.Email {
			if _, err := s.users.GetByEmail(ctx, newEmail); err == nil {
				return domain.User{}, ErrEmailTaken
			} else if !errors.Is(err, pgx.ErrNoRows) {
				return domain.User{}, err
			}
			user.Email = newEmail
		}
	}
	if input.Role != nil {
		role, ok := domain.ParseRole(strings.ToLower(strings.TrimSpace(*input.Role)))
		if !ok {
			return domain.User{}, ErrInvalidRole
		}
		user.Role = role
	}
	if input.IsActive != nil {
		user.IsActive = *input.IsActive
	}
	if input.Password != nil && strings.TrimSpace(*input.Password) != "" {
		hashBytes, err := bcrypt.GenerateFromPassword([]byte(strings.TrimSpace(*input.Password)), bcrypt.DefaultCost)
		if err != nil {
			return domain.User{}, err
		}
		user.PasswordHash = string(hashBytes)
	}

	user.UpdatedAt = time.Now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// DeleteUser elimina un usuario; nadie puede eliminarse a sí mismo.
func (s *UserService) DeleteUser(ctx context.Context, currentUserID, targetID string) error {
	if currentUserID == targetID {
		return ErrSelfDelete
	}
	if _, err := s.users.GetByID(ctx, targetID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}
	return s.users.Delete(ctx, targetID)
}

func (s *UserService) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.users.List(ctx)
}

func (s *UserService) GetByID(ctx context.Context, id string) (domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, ErrUserNotFound
	}
	return user, err
}

// ChangePassword permite a un usuario cambiar su propia contraseña.
func (s *UserService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return ErrWrongPassword
	}
	newPassword = strings.TrimSpace(newPassword)
	if newPassword == "" {
		return ErrInvalidCredentials
	}
	hashBytes, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user.PasswordHash = string(hashBytes)
	user.UpdatedAt = time.Now().UTC()
	return s.users.Update(ctx, user)
}

// EnsureDefaultAdmin crea el administrador inicial si todavía no existe.
func (s *UserService) EnsureDefaultAdmin(ctx context.Context, adminEmail, adminPassword string) error {
	adminEmail = normalizeEmail(adminEmail)
	if adminEmail == "" || adminPassword == "" {
		return ErrInvalidCredentials
	}
	_, err := s.users.GetByEmail(ctx, adminEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	admin := domain.User{
		ID:           uuid.NewString(),
		Email:        adminEmail,
		Name:         "Administrador",
		PasswordHash: string(hashBytes),
		Role:         domain.RoleAdmin,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		return err
	}
	s.logger.Info("default admin created", zap.String("email", adminEmail))
	return nil
}
