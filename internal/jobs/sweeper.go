package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quoteboard/pairing-server/internal/config"
)

// ExpiredDeleter is the slice of the pairing store the sweeper needs.
type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// ExpirySweeper deletes pairing records past their deadline on a fixed
// period, whatever their status. It runs once immediately on Start.
type ExpirySweeper struct {
	store    ExpiredDeleter
	interval time.Duration
	now      func() time.Time

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

func NewExpirySweeper(store ExpiredDeleter, interval time.Duration) *ExpirySweeper {
	return &ExpirySweeper{
		store:    store,
		interval: interval,
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

func (j *ExpirySweeper) Start() {
	j.startOnce.Do(func() {
		j.wg.Add(1)
		go j.run()
		log.Info().Dur("interval", j.interval).Msg("expiry sweeper started")
	})
}

// Stop halts the ticker and waits for an in-flight sweep to finish.
// Safe to call more than once, and before Start.
func (j *ExpirySweeper) Stop() {
	j.stopOnce.Do(func() {
		close(j.done)
		j.wg.Wait()
		log.Info().Msg("expiry sweeper stopped")
	})
}

func (j *ExpirySweeper) run() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.sweep()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *ExpirySweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), config.SweepTimeout)
	defer cancel()

	if _, err := j.RunOnce(ctx); err != nil {
		log.Error().Err(err).Msg("failed to sweep expired pairing codes")
	}
}

// RunOnce deletes everything already past its deadline and returns the count.
func (j *ExpirySweeper) RunOnce(ctx context.Context) (int64, error) {
	count, err := j.store.DeleteExpired(ctx, j.now())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		log.Info().Int64("count", count).Msg("swept expired pairing codes")
	}
	return count, nil
}
