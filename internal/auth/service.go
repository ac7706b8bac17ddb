package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/everpower/backoffice/internal/platform/httpx"
	"github.com/everpower/backoffice/internal/users"
)

// UserSource resolves accounts for login checks.
type UserSource interface {
	GetByEmail(ctx context.Context, email string) (*users.User, error)
}

// Service handles credential checks and token issuance.
type Service struct {
	source UserSource
	issuer *TokenIssuer
}

// NewService builds Service instance.
func NewService(source UserSource, issuer *TokenIssuer) *Service {
	return &Service{source: source, issuer: issuer}
}

// Login verifies the credentials and returns a signed token plus the
// account. Both failure modes are 401 but carry distinct codes.
func (s *Service) Login(ctx context.Context, email, password string) (string, *users.User, error) {
	user, err := s.source.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return "", nil, httpx.Coded("auth/user-not-found",
				fmt.Errorf("no account for %s: %w", email, httpx.ErrUnauthorized))
		}
		return "", nil, fmt.Errorf("auth: lookup account: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, httpx.Coded("auth/wrong-password",
			fmt.Errorf("password mismatch: %w", httpx.ErrUnauthorized))
	}

	token, err := s.issuer.Issue(Principal{
		UserID: user.ID,
		Email:  user.Email,
		Role:   string(user.Role),
	})
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}
