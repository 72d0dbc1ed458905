// Package quota tracks the daily unit budget of the video platform API.
package quota

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"catalog_ingest/internal/domain"
	"catalog_ingest/internal/metrics"
)

// Config holds the governor limits.
type Config struct {
	DailyLimit int
	// NearExhaustion is the fraction of DailyLimit at which NearExhaustion reports true.
	NearExhaustion float64
}

type Option func(*Governor)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Governor) {
		g.now = now
	}
}

// Governor reserves quota units pessimistically before external calls and
// resets the consumed counter at every UTC midnight.
type Governor struct {
	mu          sync.Mutex
	consumed    int
	ceiling     int
	threshold   float64
	windowStart time.Time

	now    func() time.Time
	logger *slog.Logger
}

func NewGovernor(cfg Config, logger *slog.Logger, opts ...Option) *Governor {
	g := &Governor{
		ceiling:   cfg.DailyLimit,
		threshold: cfg.NearExhaustion,
		now:       time.Now,
		logger:    logger.With("component", "quota"),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.windowStart = windowOf(g.now())

	metrics.QuotaLimit.Set(float64(g.ceiling))
	metrics.QuotaConsumed.Set(0)

	return g
}

// Reserve charges units against the current window. It fails with
// domain.ErrQuotaExceeded without charging anything when the ceiling would be crossed.
func (g *Governor) Reserve(units int) error {
	if units <= 0 {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.rollWindowLocked()

	remaining := g.ceiling - g.consumed
	if units > remaining {
		metrics.QuotaRejections.Inc()
		return fmt.Errorf("%w: required %d, remaining %d", domain.ErrQuotaExceeded, units, remaining)
	}

	g.consumed += units
	metrics.QuotaConsumed.Set(float64(g.consumed))

	g.logger.Debug("quota reserved",
		"units", units,
		"used", g.consumed,
		"limit", g.ceiling,
	)

	return nil
}

// NearExhaustion reports whether consumption reached the soft threshold.
func (g *Governor) NearExhaustion() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rollWindowLocked()

	return float64(g.consumed) >= float64(g.ceiling)*g.threshold
}

// Usage returns consumed and total units for the current window.
func (g *Governor) Usage() (used, total int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rollWindowLocked()

	return g.consumed, g.ceiling
}

// Reset zeroes consumption and opens a new window.
func (g *Governor) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.resetLocked(windowOf(g.now()))
}

// Run resets the budget at every UTC midnight until ctx is cancelled.
func (g *Governor) Run(ctx context.Context) error {
	for {
		wait := NextReset(g.now()).Sub(g.now())
		if wait < 0 {
			wait = 0
		}

		g.logger.Debug("next quota reset scheduled", "in", wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			g.Reset()
		}
	}
}

// NextReset returns the first UTC midnight strictly after t.
func NextReset(t time.Time) time.Time {
	return windowOf(t).AddDate(0, 0, 1)
}

func (g *Governor) rollWindowLocked() {
	current := windowOf(g.now())
	if current.After(g.windowStart) {
		g.resetLocked(current)
	}
}

func (g *Governor) resetLocked(window time.Time) {
	previous := g.consumed
	g.consumed = 0
	g.windowStart = window

	metrics.QuotaConsumed.Set(0)
	metrics.QuotaResets.Inc()

	g.logger.Info("quota window reset",
		"previous_used", previous,
		"window", window,
	)
}

func windowOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
