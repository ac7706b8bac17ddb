package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/everpower/backoffice/internal/platform/httpx"
	"github.com/everpower/backoffice/internal/shared"
)

type memRepo struct {
	rows     map[int64]*User
	nextID   int64
	emailErr error
}

func newMemRepo() *memRepo {
	return &memRepo{rows: map[int64]*User{}}
}

func (m *memRepo) Create(_ context.Context, input CreateInput, passwordHash string) (*User, error) {
	email := strings.ToLower(input.Email)
	for _, u := range m.rows {
		if u.Email == email {
			return nil, fmt.Errorf("email %s already registered: %w", email, httpx.ErrConflict)
		}
	}
	m.nextID++
	u := &User{
		ID:           m.nextID,
		Email:        email,
		Name:         input.Name,
		Role:         input.Role,
		PasswordHash: passwordHash,
	}
	m.rows[u.ID] = u
	return u, nil
}

func (m *memRepo) GetByID(_ context.Context, id int64) (*User, error) {
	u, ok := m.rows[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, httpx.ErrNotFound)
	}
	copied := *u
	return &copied, nil
}

func (m *memRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	if m.emailErr != nil {
		return nil, m.emailErr
	}
	for _, u := range m.rows {
		if u.Email == strings.ToLower(email) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", email, httpx.ErrNotFound)
}

func (m *memRepo) Update(_ context.Context, id int64, patch Patch) error {
	u, ok := m.rows[id]
	if !ok {
		return fmt.Errorf("user %d: %w", id, httpx.ErrNotFound)
	}
	if patch.Email != nil {
		u.Email = strings.ToLower(*patch.Email)
	}
	if patch.Name != nil {
		u.Name = *patch.Name
	}
	if patch.Role != nil {
		u.Role = *patch.Role
	}
	return nil
}

func (m *memRepo) SetPasswordHash(_ context.Context, id int64, hash string) error {
	u, ok := m.rows[id]
	if !ok {
		return fmt.Errorf("user %d: %w", id, httpx.ErrNotFound)
	}
	u.PasswordHash = hash
	return nil
}

func (m *memRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.rows[id]; !ok {
		return fmt.Errorf("user %d: %w", id, httpx.ErrNotFound)
	}
	delete(m.rows, id)
	return nil
}

func (m *memRepo) List(_ context.Context, filters ListFilters, page shared.PageRequest) ([]User, int, error) {
	var out []User
	for _, u := range m.rows {
		if filters.Role != "" && u.Role != filters.Role {
			continue
		}
		out = append(out, *u)
	}
	return out, len(out), nil
}

type memMailer struct {
	sent map[string]string
	err  error
}

func (m *memMailer) NewPassword(_ context.Context, to, password string) error {
	if m.sent == nil {
		m.sent = map[string]string{}
	}
	m.sent[to] = password
	return m.err
}

func TestCreateHashesPassword(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, nil)

	user, err := svc.Create(context.Background(), CreateInput{
		Email:    "Admin@Example.com",
		Name:     "Admin",
		Role:     RoleAdmin,
		Password: "super-secret",
	})
	require.NoError(t, err)
	require.Equal(t, "admin@example.com", user.Email)
	require.NotEqual(t, "super-secret", user.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword(
		[]byte(user.PasswordHash), []byte("super-secret")))
}

func TestCreateDuplicateEmail(t *testing.T) {
	svc := NewService(newMemRepo(), nil, nil)
	input := CreateInput{
		Email: "a@example.com", Name: "A", Role: RoleAccountant, Password: "super-secret",
	}

	_, err := svc.Create(context.Background(), input)
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), input)
	require.ErrorIs(t, err, httpx.ErrConflict)
}

func TestCreateRejectsWeakPassword(t *testing.T) {
	svc := NewService(newMemRepo(), nil, nil)
	_, err := svc.Create(context.Background(), CreateInput{
		Email: "a@example.com", Name: "A", Role: RoleAdmin, Password: "short",
	})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestResetPasswordKnownEmail(t *testing.T) {
	repo := newMemRepo()
	mailer := &memMailer{}
	svc := NewService(repo, mailer, nil)

	user, err := svc.Create(context.Background(), CreateInput{
		Email: "a@example.com", Name: "A", Role: RoleAdmin, Password: "super-secret",
	})
	require.NoError(t, err)
	oldHash := repo.rows[user.ID].PasswordHash

	require.NoError(t, svc.ResetPassword(context.Background(), "a@example.com"))

	password, ok := mailer.sent["a@example.com"]
	require.True(t, ok)
	require.Len(t, password, generatedPasswordLength)
	for _, ch := range password {
		require.Contains(t, passwordCharset, string(ch))
	}
	require.NotEqual(t, oldHash, repo.rows[user.ID].PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword(
		[]byte(repo.rows[user.ID].PasswordHash), []byte(password)))
}

func TestResetPasswordUnknownEmailIsSilent(t *testing.T) {
	mailer := &memMailer{}
	svc := NewService(newMemRepo(), mailer, nil)

	require.NoError(t, svc.ResetPassword(context.Background(), "ghost@example.com"))
	require.Empty(t, mailer.sent)
}

func TestResetPasswordPropagatesStorageFailure(t *testing.T) {
	repo := newMemRepo()
	repo.emailErr = errors.New("connection refused")
	mailer := &memMailer{}
	svc := NewService(repo, mailer, nil)

	err := svc.ResetPassword(context.Background(), "a@example.com")
	require.Error(t, err)
	require.Empty(t, mailer.sent)
}

func TestUpdatePatchesProfile(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, nil)
	user, err := svc.Create(context.Background(), CreateInput{
		Email: "a@example.com", Name: "A", Role: RoleAccountant, Password: "super-secret",
	})
	require.NoError(t, err)

	role := RoleAdmin
	updated, err := svc.Update(context.Background(), user.ID, Patch{Role: &role})
	require.NoError(t, err)
	require.Equal(t, RoleAdmin, updated.Role)

	_, err = svc.Update(context.Background(), user.ID, Patch{})
	require.ErrorIs(t, err, httpx.ErrValidation)
}
