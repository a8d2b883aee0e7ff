package model

import (
	"time"
)

type PairingRecord struct {
	Code       string        `db:"code" json:"code"`
	Status     PairingStatus `db:"status" json:"status"`
	OwnerID    *string       `db:"owner_id" json:"ownerId,omitempty"`
	OwnerEmail *string       `db:"owner_email" json:"ownerEmail,omitempty"`
	CreatedAt  time.Time     `db:"created_at" json:"createdAt"`
	ExpiresAt  time.Time     `db:"expires_at" json:"expiresAt"`
	ApprovedAt *time.Time    `db:"approved_at" json:"approvedAt,omitempty"`
	ConsumedAt *time.Time    `db:"consumed_at" json:"consumedAt,omitempty"`
}

// Owner returns the approving identity, or nil before approval.
func (r *PairingRecord) Owner() *Identity {
	if r.OwnerID == nil {
		return nil
	}
	id := &Identity{ID: *r.OwnerID}
	if r.OwnerEmail != nil {
		id.Email = *r.OwnerEmail
	}
	return id
}

// ExpiredAt reports whether the deadline has passed at now.
func (r *PairingRecord) ExpiredAt(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// PairingView is what the TV and the phone see of a pairing.
type PairingView struct {
	Code      string        `json:"code"`
	Status    PairingStatus `json:"status"`
	ExpiresAt time.Time     `json:"expiresAt"`
}

// PairingStatusView is the poll response. Token and Identity are only
// present on the single poll that consumes an approved pairing.
type PairingStatusView struct {
	Status   PairingStatus `json:"status"`
	Token    string        `json:"token,omitempty"`
	Identity *Identity     `json:"identity,omitempty"`
}

type CreatedPairing struct {
	Code           string    `json:"code"`
	DisplayCode    string    `json:"displayCode"`
	PairingURL     string    `json:"pairingUrl"`
	ExpiresAt      time.Time `json:"expiresAt"`
	PollIntervalMs int64     `json:"pollIntervalMs"`
}
