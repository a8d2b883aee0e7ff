package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPairingStore(t *testing.T) {
	runPairingStoreContract(t, func(t *testing.T) PairingStore {
		return NewMemoryPairingStore()
	})
}

func TestMemoryPairingStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryPairingStore()
	ctx := context.Background()
	now := time.Now()

	rec, err := store.Insert(ctx, "COPYCOD", now, now.Add(time.Minute))
	require.NoError(t, err)
	rec.Status = "consumed"

	got, err := store.Get(ctx, "COPYCOD")
	require.NoError(t, err)
	assert.Equal(t, "pending", string(got.Status))
	assert.Equal(t, 1, store.Len())
}

func TestMemoryPairingStore_CanceledContext(t *testing.T) {
	store := NewMemoryPairingStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Insert(ctx, "CANCELD", time.Now(), time.Now().Add(time.Minute))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryUserRepository(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	user, err := repo.Create(ctx, userParams("Viewer@Example.com "))
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "viewer@example.com", user.Email)

	t.Run("FindByEmail is case-insensitive", func(t *testing.T) {
		found, err := repo.FindByEmail(ctx, "VIEWER@example.com")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, user.ID, found.ID)
	})

	t.Run("FindByID", func(t *testing.T) {
		found, err := repo.FindByID(ctx, user.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, user.Email, found.Email)
	})

	t.Run("unknown user returns nil", func(t *testing.T) {
		found, err := repo.FindByEmail(ctx, "nobody@example.com")
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := repo.Create(ctx, userParams("viewer@example.com"))
		assert.ErrorIs(t, err, ErrEmailTaken)
	})
}
