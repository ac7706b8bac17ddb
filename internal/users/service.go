package users

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"golang.org/x/crypto/bcrypt"

	"github.com/everpower/backoffice/internal/platform/httpx"
	"github.com/everpower/backoffice/internal/shared"
)

// Ambiguous glyphs (I, l, O, 0, 1) are excluded from generated passwords.
const passwordCharset = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789!"

const generatedPasswordLength = 12

const minPasswordLength = 8

// ResetMessage is returned for every reset request so the endpoint leaks
// nothing about which emails exist.
const ResetMessage = "If that email exists, a new password has been sent."

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	Create(ctx context.Context, input CreateInput, passwordHash string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, id int64, patch Patch) error
	SetPasswordHash(ctx context.Context, id int64, hash string) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filters ListFilters, page shared.PageRequest) ([]User, int, error)
}

// PasswordMailer delivers newly generated passwords.
type PasswordMailer interface {
	NewPassword(ctx context.Context, to, password string) error
}

// Service handles user business logic.
type Service struct {
	repo   RepositoryPort
	mailer PasswordMailer
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, mailer PasswordMailer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, mailer: mailer, logger: logger}
}

// Create registers a new user with a hashed password.
func (s *Service) Create(ctx context.Context, input CreateInput) (*User, error) {
	if !input.Role.Valid() {
		return nil, fmt.Errorf("role %q: %w", input.Role, httpx.ErrValidation)
	}
	if len(input.Password) < minPasswordLength {
		return nil, fmt.Errorf("password must be at least %d characters: %w",
			minPasswordLength, httpx.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("users: hash password: %w", err)
	}
	return s.repo.Create(ctx, input, string(hash))
}

// GetByID returns a single user.
func (s *Service) GetByID(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// Update applies a partial profile update and returns the fresh row.
func (s *Service) Update(ctx context.Context, id int64, patch Patch) (*User, error) {
	if patch.Empty() {
		return nil, fmt.Errorf("provide at least one field to update: %w", httpx.ErrValidation)
	}
	if patch.Role != nil && !patch.Role.Valid() {
		return nil, fmt.Errorf("role %q: %w", *patch.Role, httpx.ErrValidation)
	}
	if err := s.repo.Update(ctx, id, patch); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// SetPassword replaces a user's password.
func (s *Service) SetPassword(ctx context.Context, id int64, password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters: %w",
			minPasswordLength, httpx.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("users: hash password: %w", err)
	}
	return s.repo.SetPasswordHash(ctx, id, string(hash))
}

// Delete removes a user.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// List returns a page of users plus pagination metadata.
func (s *Service) List(ctx context.Context, filters ListFilters, page shared.PageRequest) ([]User, shared.Pagination, error) {
	if filters.Role != "" && !filters.Role.Valid() {
		return nil, shared.Pagination{}, fmt.Errorf("role %q: %w", filters.Role, httpx.ErrValidation)
	}
	rows, total, err := s.repo.List(ctx, filters, page)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return rows, shared.NewPagination(page, total), nil
}

// ResetPassword generates a fresh password for the account behind email,
// stores its hash, and mails it out. Unknown emails are a silent no-op:
// the caller always gets the same generic message.
func (s *Service) ResetPassword(ctx context.Context, email string) error {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			s.logger.Info("password reset for unknown email", slog.String("email", email))
			return nil
		}
		return fmt.Errorf("users: lookup account: %w", err)
	}

	password, err := generatePassword(generatedPasswordLength)
	if err != nil {
		return fmt.Errorf("users: generate password: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("users: hash password: %w", err)
	}
	if err := s.repo.SetPasswordHash(ctx, user.ID, string(hash)); err != nil {
		return err
	}
	if s.mailer == nil {
		s.logger.Warn("no mailer configured, generated password lost", slog.Int64("user", user.ID))
		return nil
	}
	if err := s.mailer.NewPassword(ctx, user.Email, password); err != nil {
		return fmt.Errorf("users: mail new password: %w", err)
	}
	return nil
}

func generatePassword(length int) (string, error) {
	max := big.NewInt(int64(len(passwordCharset)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = passwordCharset[n.Int64()]
	}
	return string(out), nil
}
