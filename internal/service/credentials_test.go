package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/quoteboard/pairing-server/internal/model"
	"github.com/quoteboard/pairing-server/internal/repository"
	"github.com/quoteboard/pairing-server/internal/util"
)

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserRepo) Create(ctx context.Context, params model.CreateUserParams) (*model.User, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func TestUserCredentialVerifier(t *testing.T) {
	ctx := context.Background()
	users := repository.NewMemoryUserRepository()

	hash, err := util.HashPassword("hunter22", bcrypt.MinCost)
	require.NoError(t, err)
	user, err := users.Create(ctx, model.CreateUserParams{
		Email:        "viewer@example.com",
		PasswordHash: hash,
		DisplayName:  "Viewer",
	})
	require.NoError(t, err)

	verifier := NewUserCredentialVerifier(users)

	t.Run("valid credentials return the identity", func(t *testing.T) {
		identity, err := verifier.Verify(ctx, "Viewer@Example.com", "hunter22")
		require.NoError(t, err)
		assert.Equal(t, &model.Identity{ID: user.ID, Email: "viewer@example.com", DisplayName: "Viewer"}, identity)
	})

	t.Run("wrong password", func(t *testing.T) {
		identity, err := verifier.Verify(ctx, "viewer@example.com", "hunter23")
		assert.Nil(t, identity)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown email looks the same as a wrong password", func(t *testing.T) {
		identity, err := verifier.Verify(ctx, "nobody@example.com", "hunter22")
		assert.Nil(t, identity)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestUserCredentialVerifier_StorageFailure(t *testing.T) {
	repo := new(mockUserRepo)
	repo.On("FindByEmail", mock.Anything, "viewer@example.com").Return(nil, errors.New("connection reset"))

	_, err := NewUserCredentialVerifier(repo).Verify(context.Background(), "viewer@example.com", "pw")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
	repo.AssertExpectations(t)
}
