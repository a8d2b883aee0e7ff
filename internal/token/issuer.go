// Package token issues and verifies the bearer tokens handed to paired
// devices and signed-in phones.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/quoteboard/pairing-server/internal/model"
)

// ErrInvalidToken is the only error Verify returns. Callers never learn
// which check failed.
var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret, issuer string, ttl time.Duration) *Issuer {
	return &Issuer{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock replaces the time source used for iat/exp and validation.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// Issue signs a token for identity and returns it with its expiry.
func (i *Issuer) Issue(identity model.Identity) (string, time.Time, error) {
	if identity.ID == "" {
		return "", time.Time{}, errors.New("issue token: empty subject")
	}

	issuedAt := i.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(i.ttl)

	claims := Claims{
		Email: identity.Email,
		Name:  identity.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks signature, algorithm, issuer and expiry.
func (i *Issuer) Verify(tokenString string) (*model.Identity, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return &model.Identity{
		ID:          claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.Name,
	}, nil
}
