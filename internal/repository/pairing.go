package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/quoteboard/pairing-server/internal/database"
	"github.com/quoteboard/pairing-server/internal/model"
)

var (
	// ErrCodeConflict is returned by Insert when the code is still held by a
	// record that has not been swept yet.
	ErrCodeConflict = errors.New("pairing code already in use")

	ErrPairingNotFound = errors.New("pairing code not found")
	ErrPairingExpired  = errors.New("pairing code expired")

	// ErrPairingResolved means the record exists but is no longer pending.
	ErrPairingResolved = errors.New("pairing code already resolved")

	ErrPairingNotApproved = errors.New("pairing code not approved")
)

// PairingStore persists pairing records. Insert, TryApprove, TryConsume and
// MarkExpired are single conditional writes: under concurrent calls for the
// same code at most one caller observes success.
type PairingStore interface {
	Insert(ctx context.Context, code string, createdAt, expiresAt time.Time) (*model.PairingRecord, error)
	Get(ctx context.Context, code string) (*model.PairingRecord, error)
	TryApprove(ctx context.Context, code string, owner model.Identity, now time.Time) (*model.PairingRecord, error)
	TryConsume(ctx context.Context, code string, now time.Time) (*model.PairingRecord, error)
	MarkExpired(ctx context.Context, code string, now time.Time) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type pairingStore struct {
	db database.DBTX
}

func NewPairingStore(db database.DBTX) PairingStore {
	return &pairingStore{db: db}
}

func (r *pairingStore) Insert(ctx context.Context, code string, createdAt, expiresAt time.Time) (*model.PairingRecord, error) {
	var rec model.PairingRecord
	err := r.db.GetContext(ctx, &rec, `
		INSERT INTO pairing_codes (code, status, created_at, expires_at)
		VALUES ($1, 'pending', $2, $3)
		ON CONFLICT (code) DO NOTHING
		RETURNING *
	`, code, createdAt.UTC(), expiresAt.UTC())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCodeConflict
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *pairingStore) Get(ctx context.Context, code string) (*model.PairingRecord, error) {
	var rec model.PairingRecord
	err := r.db.GetContext(ctx, &rec, `SELECT * FROM pairing_codes WHERE code = $1`, code)
	found, err := HandleNotFound(&rec, err)
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrPairingNotFound
	}
	return found, nil
}

func (r *pairingStore) TryApprove(ctx context.Context, code string, owner model.Identity, now time.Time) (*model.PairingRecord, error) {
	var rec model.PairingRecord
	err := r.db.GetContext(ctx, &rec, `
		UPDATE pairing_codes SET
			status = 'approved',
			owner_id = $2,
			owner_email = $3,
			approved_at = $4
		WHERE code = $1 AND status = 'pending' AND expires_at > $4
		RETURNING *
	`, code, owner.ID, owner.Email, now.UTC())
	if err == nil {
		return &rec, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	current, err := r.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	return nil, approveFailure(current, now)
}

func (r *pairingStore) TryConsume(ctx context.Context, code string, now time.Time) (*model.PairingRecord, error) {
	var rec model.PairingRecord
	err := r.db.GetContext(ctx, &rec, `
		UPDATE pairing_codes SET
			status = 'consumed',
			consumed_at = $2
		WHERE code = $1 AND status = 'approved' AND expires_at > $2
		RETURNING *
	`, code, now.UTC())
	if err == nil {
		return &rec, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	current, err := r.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	return nil, consumeFailure(current)
}

func (r *pairingStore) MarkExpired(ctx context.Context, code string, now time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE pairing_codes SET status = 'expired'
		WHERE code = $1 AND status = 'pending' AND expires_at <= $2
	`, code, now.UTC())
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

func (r *pairingStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM pairing_codes
		WHERE expires_at < $1
	`, now.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// approveFailure explains why a conditional approve matched no row.
func approveFailure(rec *model.PairingRecord, now time.Time) error {
	switch rec.Status {
	case model.PairingStatusExpired:
		return ErrPairingExpired
	case model.PairingStatusPending:
		if rec.ExpiredAt(now) {
			return ErrPairingExpired
		}
		return ErrPairingResolved
	default:
		return ErrPairingResolved
	}
}

// consumeFailure explains why a conditional consume matched no row.
func consumeFailure(rec *model.PairingRecord) error {
	switch rec.Status {
	case model.PairingStatusApproved, model.PairingStatusExpired:
		return ErrPairingExpired
	default:
		return ErrPairingNotApproved
	}
}
