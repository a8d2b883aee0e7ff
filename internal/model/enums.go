package model

type PairingStatus string

const (
	PairingStatusPending  PairingStatus = "pending"
	PairingStatusApproved PairingStatus = "approved"
	PairingStatusExpired  PairingStatus = "expired"
	PairingStatusConsumed PairingStatus = "consumed"
)

// Terminal reports whether no transition can leave this status.
func (s PairingStatus) Terminal() bool {
	return s == PairingStatusExpired || s == PairingStatusConsumed
}

// CanTransitionTo encodes the pairing lifecycle:
// pending -> approved|expired, approved -> consumed.
func (s PairingStatus) CanTransitionTo(next PairingStatus) bool {
	switch s {
	case PairingStatusPending:
		return next == PairingStatusApproved || next == PairingStatusExpired
	case PairingStatusApproved:
		return next == PairingStatusConsumed
	default:
		return false
	}
}
