package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/quoteboard/pairing-server/internal/errors"
	"github.com/quoteboard/pairing-server/internal/model"
	"github.com/quoteboard/pairing-server/internal/repository"
	"github.com/quoteboard/pairing-server/internal/util"
)

type TokenIssuer interface {
	Issue(identity model.Identity) (string, time.Time, error)
	Verify(token string) (*model.Identity, error)
}

type PairingConfig struct {
	TTL          time.Duration
	PollInterval time.Duration
	BaseURL      string
	MaxAttempts  int
}

// PairingService drives the pairing state machine. Every method returns
// either a result or an *apperrors.AppError.
type PairingService struct {
	store    repository.PairingStore
	codes    *CodeGenerator
	verifier CredentialVerifier
	tokens   TokenIssuer
	cfg      PairingConfig
	now      func() time.Time
}

func NewPairingService(
	store repository.PairingStore,
	codes *CodeGenerator,
	verifier CredentialVerifier,
	tokens TokenIssuer,
	cfg PairingConfig,
) *PairingService {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &PairingService{
		store:    store,
		codes:    codes,
		verifier: verifier,
		tokens:   tokens,
		cfg:      cfg,
		now:      time.Now,
	}
}

// WithClock replaces the time source used for deadlines.
func (s *PairingService) WithClock(now func() time.Time) *PairingService {
	s.now = now
	return s
}

func (s *PairingService) CreatePairing(ctx context.Context) (*model.CreatedPairing, error) {
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		code, err := s.codes.Generate()
		if err != nil {
			log.Error().Err(err).Msg("generate pairing code")
			return nil, apperrors.Internal("Could not generate pairing code")
		}

		now := s.now()
		rec, err := s.store.Insert(ctx, code, now, now.Add(s.cfg.TTL))
		if errors.Is(err, repository.ErrCodeConflict) {
			log.Debug().Int("attempt", attempt).Msg("pairing code collision, retrying")
			continue
		}
		if err != nil {
			return nil, storageError("insert pairing", err)
		}

		log.Info().
			Str("code", util.MaskCode(code)).
			Time("expiresAt", rec.ExpiresAt).
			Msg("pairing created")

		return &model.CreatedPairing{
			Code:           rec.Code,
			DisplayCode:    DisplayCode(rec.Code),
			PairingURL:     s.PairingURL(rec.Code),
			ExpiresAt:      rec.ExpiresAt,
			PollIntervalMs: s.cfg.PollInterval.Milliseconds(),
		}, nil
	}

	log.Warn().Int("attempts", s.cfg.MaxAttempts).Msg("pairing code generation exhausted")
	return nil, apperrors.GenerationExhausted()
}

// Describe lets the approving phone see a code's state before it signs in.
func (s *PairingService) Describe(ctx context.Context, rawCode string) (*model.PairingView, error) {
	code, err := s.resolveCode(rawCode)
	if err != nil {
		return nil, err
	}

	rec, err := s.store.Get(ctx, code)
	if err != nil {
		return nil, lookupError(err)
	}
	s.expireIfDue(ctx, rec, s.now())

	return &model.PairingView{
		Code:      rec.Code,
		Status:    rec.Status,
		ExpiresAt: rec.ExpiresAt,
	}, nil
}

// CheckStatus is the TV's poll. The first poll that sees an approval mints
// a token and consumes the record; every later poll sees consumed.
func (s *PairingService) CheckStatus(ctx context.Context, rawCode string) (*model.PairingStatusView, error) {
	code, err := s.resolveCode(rawCode)
	if err != nil {
		return nil, err
	}

	now := s.now()
	rec, err := s.store.Get(ctx, code)
	if err != nil {
		return nil, lookupError(err)
	}

	switch rec.Status {
	case model.PairingStatusPending:
		s.expireIfDue(ctx, rec, now)
		return &model.PairingStatusView{Status: rec.Status}, nil
	case model.PairingStatusApproved:
		return s.consume(ctx, rec, now)
	default:
		return &model.PairingStatusView{Status: rec.Status}, nil
	}
}

func (s *PairingService) consume(ctx context.Context, rec *model.PairingRecord, now time.Time) (*model.PairingStatusView, error) {
	if rec.ExpiredAt(now) {
		return &model.PairingStatusView{Status: model.PairingStatusExpired}, nil
	}

	owner := rec.Owner()
	if owner == nil {
		log.Error().Str("code", util.MaskCode(rec.Code)).Msg("approved pairing has no owner")
		return nil, apperrors.Internal("Pairing record is inconsistent")
	}

	// Minted before the consume so a signing failure leaves the record
	// approved for the next poll.
	tok, _, err := s.tokens.Issue(*owner)
	if err != nil {
		log.Error().Err(err).Msg("issue pairing token")
		return nil, apperrors.Internal("Could not issue token")
	}

	consumed, err := s.store.TryConsume(ctx, rec.Code, now)
	switch {
	case err == nil:
		log.Info().
			Str("code", util.MaskCode(rec.Code)).
			Str("userId", owner.ID).
			Msg("pairing consumed")
		return &model.PairingStatusView{
			Status:   model.PairingStatusApproved,
			Token:    tok,
			Identity: consumed.Owner(),
		}, nil
	case errors.Is(err, repository.ErrPairingNotApproved):
		return &model.PairingStatusView{Status: model.PairingStatusConsumed}, nil
	case errors.Is(err, repository.ErrPairingExpired):
		return &model.PairingStatusView{Status: model.PairingStatusExpired}, nil
	default:
		return nil, lookupError(err)
	}
}

// Approve verifies the phone user's credentials and approves the code for them.
func (s *PairingService) Approve(ctx context.Context, rawCode, email, password string) (*model.Identity, error) {
	code, err := s.resolveCode(rawCode)
	if err != nil {
		return nil, err
	}
	if email == "" {
		return nil, apperrors.MissingRequired("email")
	}
	if password == "" {
		return nil, apperrors.MissingRequired("password")
	}

	identity, err := s.verifier.Verify(ctx, email, password)
	if errors.Is(err, ErrInvalidCredentials) {
		return nil, apperrors.InvalidCredentials()
	}
	if err != nil {
		return nil, storageError("verify credentials", err)
	}

	return s.approve(ctx, code, *identity)
}

// ApproveAs approves the code for a phone that already holds a bearer token.
func (s *PairingService) ApproveAs(ctx context.Context, rawCode string, identity model.Identity) (*model.Identity, error) {
	code, err := s.resolveCode(rawCode)
	if err != nil {
		return nil, err
	}
	if identity.ID == "" {
		return nil, apperrors.Unauthorized("Sign in required")
	}
	return s.approve(ctx, code, identity)
}

func (s *PairingService) approve(ctx context.Context, code string, identity model.Identity) (*model.Identity, error) {
	now := s.now()
	rec, err := s.store.TryApprove(ctx, code, identity, now)
	switch {
	case err == nil:
		log.Info().
			Str("code", util.MaskCode(code)).
			Str("userId", identity.ID).
			Msg("pairing approved")
		return rec.Owner(), nil
	case errors.Is(err, repository.ErrPairingExpired):
		if _, markErr := s.store.MarkExpired(ctx, code, now); markErr != nil {
			log.Warn().Err(markErr).Msg("mark pairing expired")
		}
		return nil, apperrors.PairingExpired()
	case errors.Is(err, repository.ErrPairingResolved):
		return nil, apperrors.AlreadyResolved()
	default:
		return nil, lookupError(err)
	}
}

// Login signs a phone user in with email and password.
func (s *PairingService) Login(ctx context.Context, email, password string) (*model.AuthToken, error) {
	if email == "" {
		return nil, apperrors.MissingRequired("email")
	}
	if password == "" {
		return nil, apperrors.MissingRequired("password")
	}

	identity, err := s.verifier.Verify(ctx, email, password)
	if errors.Is(err, ErrInvalidCredentials) {
		return nil, apperrors.InvalidCredentials()
	}
	if err != nil {
		return nil, storageError("verify credentials", err)
	}

	tok, expiresAt, err := s.tokens.Issue(*identity)
	if err != nil {
		log.Error().Err(err).Msg("issue login token")
		return nil, apperrors.Internal("Could not issue token")
	}

	return &model.AuthToken{Token: tok, ExpiresAt: expiresAt, Identity: *identity}, nil
}

func (s *PairingService) resolveCode(raw string) (string, error) {
	code := NormalizeCode(raw)
	if code == "" {
		return "", apperrors.MissingRequired("code")
	}
	if !s.codes.ValidCode(code) {
		return "", apperrors.ValidationError(fmt.Sprintf("Pairing code must be %d characters", s.codes.Length()))
	}
	return code, nil
}

// expireIfDue flips an overdue pending record to expired, in storage when
// possible and always in the returned view.
func (s *PairingService) expireIfDue(ctx context.Context, rec *model.PairingRecord, now time.Time) {
	if rec.Status != model.PairingStatusPending || !rec.ExpiredAt(now) {
		return
	}
	if _, err := s.store.MarkExpired(ctx, rec.Code, now); err != nil {
		log.Warn().Err(err).Str("code", util.MaskCode(rec.Code)).Msg("mark pairing expired")
	}
	rec.Status = model.PairingStatusExpired
}

// PairingURL is the address a phone opens to approve code; it is what the
// TV shows as a QR code.
func (s *PairingService) PairingURL(code string) string {
	u, err := url.Parse(s.cfg.BaseURL)
	if err != nil {
		return s.cfg.BaseURL + "?code=" + code
	}
	q := u.Query()
	q.Set("code", code)
	u.RawQuery = q.Encode()
	return u.String()
}

func lookupError(err error) error {
	if errors.Is(err, repository.ErrPairingNotFound) {
		return apperrors.NotFound("Pairing code")
	}
	return storageError("pairing lookup", err)
}

func storageError(op string, err error) error {
	log.Error().Err(err).Str("op", op).Msg("storage failure")
	return apperrors.Database(err)
}
