// Package poller runs the TV side of pairing: ask for the status of a code
// until it resolves, the deadline passes, or the caller gives up.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quoteboard/pairing-server/internal/client"
	"github.com/quoteboard/pairing-server/internal/model"
	"github.com/quoteboard/pairing-server/internal/util"
)

const DefaultInterval = 3 * time.Second

type StatusChecker interface {
	Status(ctx context.Context, code string) (*model.PairingStatusView, error)
}

type OutcomeKind string

const (
	OutcomeApproved OutcomeKind = "approved"
	OutcomeExpired  OutcomeKind = "expired"
	OutcomeNotFound OutcomeKind = "not_found"
	// OutcomeConsumed means another poll already took the token.
	OutcomeConsumed OutcomeKind = "consumed"
)

type Outcome struct {
	Kind     OutcomeKind
	Token    string
	Identity *model.Identity
}

type Poller struct {
	api StatusChecker
}

func New(api StatusChecker) *Poller {
	return &Poller{api: api}
}

// Run polls right away and then every interval. It returns a terminal
// Outcome, OutcomeExpired once deadline passes, ctx.Err() on cancellation,
// or the error of a request the server rejected outright. Network failures
// and 5xx answers are retried on the next tick.
func (p *Poller) Run(ctx context.Context, code string, interval time.Duration, deadline time.Time) (Outcome, error) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}

		outcome, done, err := p.poll(ctx, code)
		if err != nil || done {
			return outcome, err
		}

		select {
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		case <-timer.C:
			log.Info().Str("code", util.MaskCode(code)).Msg("pairing deadline reached")
			return Outcome{Kind: OutcomeExpired}, nil
		case <-ticker.C:
		}
	}
}

func (p *Poller) poll(ctx context.Context, code string) (Outcome, bool, error) {
	view, err := p.api.Status(ctx, code)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{}, true, ctxErr
		}
		if client.IsNotFound(err) {
			return Outcome{Kind: OutcomeNotFound}, true, nil
		}
		var statusErr *client.StatusError
		if errors.As(err, &statusErr) && !statusErr.Temporary() {
			return Outcome{}, true, err
		}
		log.Warn().Err(err).Str("code", util.MaskCode(code)).Msg("pairing status check failed, retrying")
		return Outcome{}, false, nil
	}

	switch view.Status {
	case model.PairingStatusApproved:
		if view.Token == "" {
			return Outcome{}, false, nil
		}
		return Outcome{Kind: OutcomeApproved, Token: view.Token, Identity: view.Identity}, true, nil
	case model.PairingStatusConsumed:
		return Outcome{Kind: OutcomeConsumed}, true, nil
	case model.PairingStatusExpired:
		return Outcome{Kind: OutcomeExpired}, true, nil
	default:
		return Outcome{}, false, nil
	}
}

// Session is a Run in its own goroutine.
type Session struct {
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
	outcome Outcome
	err     error
}

// Start launches Run in the background. Cancel stops it at the next
// suspension point; Wait returns its result.
func (p *Poller) Start(ctx context.Context, code string, interval time.Duration, deadline time.Time) *Session {
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(s.done)
		defer cancel()
		s.outcome, s.err = p.Run(ctx, code, interval, deadline)
	}()
	return s
}

func (s *Session) Cancel() {
	s.once.Do(s.cancel)
}

// Done is closed once the session has finished.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) Wait() (Outcome, error) {
	<-s.done
	return s.outcome, s.err
}
