package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quoteboard/pairing-server/internal/model"
)

var testOwner = model.Identity{ID: "7f8c3b1e-0d7e-4e8f-9a55-1f2a3b4c5d6e", Email: "viewer@example.com"}

// runPairingStoreContract exercises behavior every PairingStore must share.
// newStore must return an empty store.
func runPairingStoreContract(t *testing.T, newStore func(t *testing.T) PairingStore) {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)
	ttl := 10 * time.Minute

	t.Run("Insert creates a pending record", func(t *testing.T) {
		store := newStore(t)

		rec, err := store.Insert(ctx, "ABCDEFG", base, base.Add(ttl))
		require.NoError(t, err)
		assert.Equal(t, "ABCDEFG", rec.Code)
		assert.Equal(t, model.PairingStatusPending, rec.Status)
		assert.True(t, rec.ExpiresAt.Equal(base.Add(ttl)))
		assert.Nil(t, rec.OwnerID)

		got, err := store.Get(ctx, "ABCDEFG")
		require.NoError(t, err)
		assert.Equal(t, model.PairingStatusPending, got.Status)
	})

	t.Run("Insert rejects a code that is still held", func(t *testing.T) {
		store := newStore(t)

		_, err := store.Insert(ctx, "ABCDEFG", base, base.Add(ttl))
		require.NoError(t, err)

		_, err = store.Insert(ctx, "ABCDEFG", base, base.Add(ttl))
		assert.ErrorIs(t, err, ErrCodeConflict)
	})

	t.Run("Get unknown code", func(t *testing.T) {
		store := newStore(t)

		_, err := store.Get(ctx, "ZZZZZZZ")
		assert.ErrorIs(t, err, ErrPairingNotFound)
	})

	t.Run("TryApprove", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Insert(ctx, "APPROVE", base, base.Add(ttl))
		require.NoError(t, err)

		rec, err := store.TryApprove(ctx, "APPROVE", testOwner, base.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, model.PairingStatusApproved, rec.Status)
		require.NotNil(t, rec.Owner())
		assert.Equal(t, testOwner.ID, rec.Owner().ID)
		assert.Equal(t, testOwner.Email, rec.Owner().Email)
		require.NotNil(t, rec.ApprovedAt)

		_, err = store.TryApprove(ctx, "APPROVE", testOwner, base.Add(2*time.Minute))
		assert.ErrorIs(t, err, ErrPairingResolved)

		_, err = store.TryApprove(ctx, "MISSING", testOwner, base)
		assert.ErrorIs(t, err, ErrPairingNotFound)
	})

	t.Run("TryApprove past the deadline", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Insert(ctx, "LATECOD", base, base.Add(ttl))
		require.NoError(t, err)

		_, err = store.TryApprove(ctx, "LATECOD", testOwner, base.Add(ttl))
		assert.ErrorIs(t, err, ErrPairingExpired)

		got, err := store.Get(ctx, "LATECOD")
		require.NoError(t, err)
		assert.Nil(t, got.OwnerID)
	})

	t.Run("TryConsume", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Insert(ctx, "CONSUME", base, base.Add(ttl))
		require.NoError(t, err)

		_, err = store.TryConsume(ctx, "CONSUME", base.Add(time.Second))
		assert.ErrorIs(t, err, ErrPairingNotApproved)

		_, err = store.TryApprove(ctx, "CONSUME", testOwner, base.Add(time.Second))
		require.NoError(t, err)

		rec, err := store.TryConsume(ctx, "CONSUME", base.Add(2*time.Second))
		require.NoError(t, err)
		assert.Equal(t, model.PairingStatusConsumed, rec.Status)
		assert.NotNil(t, rec.ConsumedAt)
		assert.Equal(t, testOwner.Email, rec.Owner().Email)

		_, err = store.TryConsume(ctx, "CONSUME", base.Add(3*time.Second))
		assert.ErrorIs(t, err, ErrPairingNotApproved)

		_, err = store.TryConsume(ctx, "MISSING", base)
		assert.ErrorIs(t, err, ErrPairingNotFound)
	})

	t.Run("TryConsume of an approval past the deadline", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Insert(ctx, "STALEAP", base, base.Add(ttl))
		require.NoError(t, err)
		_, err = store.TryApprove(ctx, "STALEAP", testOwner, base.Add(time.Second))
		require.NoError(t, err)

		_, err = store.TryConsume(ctx, "STALEAP", base.Add(ttl+time.Second))
		assert.ErrorIs(t, err, ErrPairingExpired)
	})

	t.Run("MarkExpired only flips overdue pending records", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Insert(ctx, "EXPIRES", base, base.Add(ttl))
		require.NoError(t, err)

		flipped, err := store.MarkExpired(ctx, "EXPIRES", base.Add(time.Minute))
		require.NoError(t, err)
		assert.False(t, flipped)

		flipped, err = store.MarkExpired(ctx, "EXPIRES", base.Add(ttl))
		require.NoError(t, err)
		assert.True(t, flipped)

		got, err := store.Get(ctx, "EXPIRES")
		require.NoError(t, err)
		assert.Equal(t, model.PairingStatusExpired, got.Status)

		flipped, err = store.MarkExpired(ctx, "EXPIRES", base.Add(ttl))
		require.NoError(t, err)
		assert.False(t, flipped)

		_, err = store.TryApprove(ctx, "EXPIRES", testOwner, base.Add(time.Minute))
		assert.ErrorIs(t, err, ErrPairingExpired)

		flipped, err = store.MarkExpired(ctx, "MISSING", base.Add(ttl))
		require.NoError(t, err)
		assert.False(t, flipped)
	})

	t.Run("MarkExpired leaves approved records alone", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Insert(ctx, "KEEPAPP", base, base.Add(ttl))
		require.NoError(t, err)
		_, err = store.TryApprove(ctx, "KEEPAPP", testOwner, base)
		require.NoError(t, err)

		flipped, err := store.MarkExpired(ctx, "KEEPAPP", base.Add(2*ttl))
		require.NoError(t, err)
		assert.False(t, flipped)

		got, err := store.Get(ctx, "KEEPAPP")
		require.NoError(t, err)
		assert.Equal(t, model.PairingStatusApproved, got.Status)
	})

	t.Run("DeleteExpired removes only overdue records", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Insert(ctx, "OLDCODE", base, base.Add(time.Minute))
		require.NoError(t, err)
		_, err = store.Insert(ctx, "NEWCODE", base, base.Add(ttl))
		require.NoError(t, err)

		removed, err := store.DeleteExpired(ctx, base.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, int64(0), removed, "a record is kept while now equals its deadline")

		removed, err = store.DeleteExpired(ctx, base.Add(2*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, int64(1), removed)

		_, err = store.Get(ctx, "OLDCODE")
		assert.ErrorIs(t, err, ErrPairingNotFound)
		_, err = store.Get(ctx, "NEWCODE")
		assert.NoError(t, err)

		_, err = store.Insert(ctx, "OLDCODE", base.Add(2*time.Minute), base.Add(2*time.Minute+ttl))
		assert.NoError(t, err, "a swept code can be reissued")
	})

	t.Run("concurrent approvals have a single winner", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Insert(ctx, "RACEAPP", base, base.Add(ttl))
		require.NoError(t, err)

		const workers = 32
		errs := make([]error, workers)
		var wg sync.WaitGroup
		for i := range workers {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				owner := model.Identity{ID: testOwner.ID, Email: testOwner.Email}
				_, errs[i] = store.TryApprove(ctx, "RACEAPP", owner, base.Add(time.Second))
			}(i)
		}
		wg.Wait()

		winners := 0
		for _, err := range errs {
			if err == nil {
				winners++
				continue
			}
			assert.ErrorIs(t, err, ErrPairingResolved)
		}
		assert.Equal(t, 1, winners)
	})

	t.Run("concurrent consumes have a single winner", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Insert(ctx, "RACECON", base, base.Add(ttl))
		require.NoError(t, err)
		_, err = store.TryApprove(ctx, "RACECON", testOwner, base)
		require.NoError(t, err)

		const workers = 32
		errs := make([]error, workers)
		var wg sync.WaitGroup
		for i := range workers {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = store.TryConsume(ctx, "RACECON", base.Add(time.Second))
			}(i)
		}
		wg.Wait()

		winners := 0
		for _, err := range errs {
			if err == nil {
				winners++
				continue
			}
			assert.ErrorIs(t, err, ErrPairingNotApproved)
		}
		assert.Equal(t, 1, winners)
	})
}
