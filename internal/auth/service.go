package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/waa-mobile/waapos/internal/shared"
)

// MinPasswordLength is enforced on every new account.
const MinPasswordLength = 8

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService constructs a new Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Authenticate validates username/password credentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	user, err := s.repo.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// CreateUser hashes the password and stores a new account.
func (s *Service) CreateUser(ctx context.Context, input CreateUserInput) (User, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" {
		return User{}, shared.Invalid("username", "username is required")
	}
	if len(input.Password) < MinPasswordLength {
		return User{}, shared.Invalid("password", "must be at least 8 characters")
	}
	role := input.Role
	if role == "" {
		role = RoleCashier
	}
	if _, err := ParseRole(string(role)); err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	return s.repo.Create(ctx, User{Username: username, PasswordHash: string(hash), Role: role, IsActive: true})
}

// ListUsers returns all accounts.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// EnsureAdmin creates the bootstrap admin when no account exists yet. It reports whether one was created.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return false, nil
	}
	n, err := s.repo.Count(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	user, err := s.CreateUser(ctx, CreateUserInput{Username: username, Password: password, Role: RoleAdmin})
	if err != nil {
		return false, err
	}
	s.logger.Info("bootstrap admin created", slog.String("username", user.Username))
	return true, nil
}
