package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/quoteboard/pairing-server/internal/model"
	"github.com/quoteboard/pairing-server/internal/repository"
	"github.com/quoteboard/pairing-server/internal/util"
)

// ErrInvalidCredentials covers both an unknown email and a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

type CredentialVerifier interface {
	Verify(ctx context.Context, email, password string) (*model.Identity, error)
}

// UserCredentialVerifier checks email/password pairs against the users table.
type UserCredentialVerifier struct {
	users repository.UserRepository
}

func NewUserCredentialVerifier(users repository.UserRepository) *UserCredentialVerifier {
	return &UserCredentialVerifier{users: users}
}

func (v *UserCredentialVerifier) Verify(ctx context.Context, email, password string) (*model.Identity, error) {
	user, err := v.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	if user == nil {
		util.CheckPasswordHash(password, util.DummyPasswordHash())
		return nil, ErrInvalidCredentials
	}

	if !util.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return &model.Identity{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
	}, nil
}
