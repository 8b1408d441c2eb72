package users

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/intheknowyyc/server/internal/auth"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// memoryRepository implements Repository for tests.
type memoryRepository struct {
	mu    sync.Mutex
	users map[string]User
	err   error
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{users: make(map[string]User)}
}

func (m *memoryRepository) Create(ctx context.Context, user User) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, existing := range m.users {
		if existing.Email == user.Email {
			return nil, ErrEmailTaken
		}
	}
	m.users[user.ID] = user
	return &user, nil
}

func (m *memoryRepository) GetByID(ctx context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	user, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (m *memoryRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, user := range m.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memoryRepository) List(ctx context.Context) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]User, 0, len(m.users))
	for _, user := range m.users {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryRepository) Update(ctx context.Context, user User) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return nil, ErrNotFound
	}
	m.users[user.ID] = user
	return &user, nil
}

func newTestService(repo Repository) *Service {
	return NewService(repo, zerolog.Nop(), WithHashCost(bcrypt.MinCost))
}

func registerJane(t *testing.T, svc *Service) *User {
	t.Helper()
	user, err := svc.Register(context.Background(), RegisterParams{
		Email:    "Jane@Example.com ",
		Password: "correct-horse",
		FullName: "Jane Doe",
	})
	require.NoError(t, err)
	return user
}

func TestRegisterCreatesUserRole(t *testing.T) {
	svc := newTestService(newMemoryRepository())

	user := registerJane(t, svc)

	require.Equal(t, "jane@example.com", user.Email)
	require.Equal(t, auth.RoleUser, user.Role)
	require.NotEmpty(t, user.ID)
	require.NotEqual(t, "correct-horse", user.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("correct-horse")))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := newTestService(newMemoryRepository())
	registerJane(t, svc)

	_, err := svc.Register(context.Background(), RegisterParams{
		Email:    "jane@example.com",
		Password: "another-password",
		FullName: "Jane Again",
	})
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(newMemoryRepository())

	_, err := svc.Register(context.Background(), RegisterParams{
		Email:    "not-an-email",
		Password: "short",
	})

	var verr ValidationError
	require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
	require.Contains(t, verr.Fields, "email")
	require.Contains(t, verr.Fields, "password")
	require.Contains(t, verr.Fields, "fullName")
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	svc := newTestService(newMemoryRepository())
	params := RegisterParams{Email: "admin@example.com", Password: "admin-password", FullName: "Admin"}

	first, created, err := svc.EnsureAdmin(context.Background(), params)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, auth.RoleAdmin, first.Role)

	second, created, err := svc.EnsureAdmin(context.Background(), params)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)
}

func TestGetAuthorization(t *testing.T) {
	svc := newTestService(newMemoryRepository())
	user := registerJane(t, svc)

	self := user.Identity()
	got, err := svc.Get(context.Background(), self, user.ID)
	require.NoError(t, err)
	require.Equal(t, user.Email, got.Email)

	stranger := auth.Identity{ID: "someone-else", Role: auth.RoleUser}
	_, err = svc.Get(context.Background(), stranger, user.ID)
	require.ErrorIs(t, err, ErrForbidden)

	admin := auth.Identity{ID: "admin", Role: auth.RoleAdmin}
	_, err = svc.Get(context.Background(), admin, user.ID)
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), admin, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate(t *testing.T) {
	repo := newMemoryRepository()
	later := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := newTestService(repo)
	user := registerJane(t, svc)
	other, err := svc.Register(context.Background(), RegisterParams{
		Email: "john@example.com", Password: "password-john", FullName: "John",
	})
	require.NoError(t, err)

	svc.now = func() time.Time { return later }
	updated, err := svc.Update(context.Background(), user.Identity(), user.ID, UpdateParams{
		Email: "jane.doe@example.com", Password: "new-password", FullName: "Jane D.",
	})
	require.NoError(t, err)
	require.Equal(t, "jane.doe@example.com", updated.Email)
	require.Equal(t, later, updated.UpdatedAt)

	_, err = svc.VerifyCredentials(context.Background(), "jane.doe@example.com", "new-password")
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), user.Identity(), user.ID, UpdateParams{
		Email: other.Email, Password: "new-password", FullName: "Jane D.",
	})
	require.ErrorIs(t, err, ErrEmailTaken)

	_, err = svc.Update(context.Background(), other.Identity(), user.ID, UpdateParams{
		Email: "x@example.com", Password: "new-password", FullName: "X",
	})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestVerifyCredentials(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo)
	user := registerJane(t, svc)

	identity, err := svc.VerifyCredentials(context.Background(), "JANE@example.com", "correct-horse")
	require.NoError(t, err)
	require.Equal(t, user.ID, identity.ID)

	_, err = svc.VerifyCredentials(context.Background(), "jane@example.com", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.VerifyCredentials(context.Background(), "nobody@example.com", "correct-horse")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	stored := repo.users[user.ID]
	stored.Locked = true
	repo.users[user.ID] = stored
	_, err = svc.VerifyCredentials(context.Background(), "jane@example.com", "correct-horse")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerifyCredentialsPropagatesStoreErrors(t *testing.T) {
	repo := newMemoryRepository()
	repo.err = errors.New("connection refused")
	svc := newTestService(repo)

	_, err := svc.VerifyCredentials(context.Background(), "jane@example.com", "pw")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoadIdentity(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo)
	user := registerJane(t, svc)

	identity, err := svc.LoadIdentity(context.Background(), "jane@example.com")
	require.NoError(t, err)
	require.Equal(t, auth.RoleUser, identity.Role)

	_, err = svc.LoadIdentity(context.Background(), "ghost@example.com")
	require.ErrorIs(t, err, ErrNotFound)

	stored := repo.users[user.ID]
	stored.Expired = true
	repo.users[user.ID] = stored
	_, err = svc.LoadIdentity(context.Background(), "jane@example.com")
	require.ErrorIs(t, err, ErrAccountDisabled)
}
