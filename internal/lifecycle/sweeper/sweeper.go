package sweeper

import (
	"context"
	"time"

	"libris/pkg/clock"
	"libris/pkg/logger"
)

// Expirer expires lapsed reservations as of now, at most batch per call.
type Expirer interface {
	ExpireDue(ctx context.Context, now time.Time, batch int) (int, error)
}

type Config struct {
	Interval  time.Duration
	BatchSize int
}

// Sweeper periodically expires pending reservations whose hold window has
// lapsed. Each tick drains full batches before waiting for the next one.
type Sweeper struct {
	expirer Expirer
	clock   clock.Clock
	cfg     Config
	log     *logger.Logger
}

func New(expirer Expirer, clk clock.Clock, cfg Config, log *logger.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Sweeper{
		expirer: expirer,
		clock:   clk,
		cfg:     cfg,
		log:     log.Component("reservation-sweeper"),
	}
}

func (s *Sweeper) Name() string {
	return "reservation-sweeper"
}

// Run sweeps once at start and then on every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	s.log.Info("Reservation sweeper started",
		"interval", s.cfg.Interval,
		"batch_size", s.cfg.BatchSize,
	)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		s.Sweep(ctx)

		select {
		case <-ctx.Done():
			s.log.Info("Reservation sweeper stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Sweep expires everything due as of the current clock reading and returns
// how many reservations it expired.
func (s *Sweeper) Sweep(ctx context.Context) int {
	now := s.clock.Now()
	total := 0
	for ctx.Err() == nil {
		n, err := s.expirer.ExpireDue(ctx, now, s.cfg.BatchSize)
		total += n
		if err != nil {
			s.log.Error("Reservation sweep failed", "expired", total, "error", err)
			return total
		}
		// A short batch means nothing more is due, or the rest failed and
		// waits for the next tick.
		if n < s.cfg.BatchSize {
			break
		}
	}
	if total > 0 {
		s.log.Info("Reservation sweep finished", "expired", total, "as_of", now)
	}
	return total
}
