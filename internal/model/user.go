package model

import (
	"time"
)

type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	DisplayName  string    `db:"display_name" json:"displayName"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

type CreateUserParams struct {
	Email        string
	PasswordHash string
	DisplayName  string
}

// Identity is the principal carried by tokens and pairing approvals.
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
}

// AuthToken is returned by sign-in: a bearer token and who it belongs to.
type AuthToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Identity  Identity  `json:"identity"`
}
