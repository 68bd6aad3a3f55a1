// Package tokenstats periodically counts stored refresh tokens by state and
// publishes the result as gauges. It only reads: refresh token rows are kept
// forever as an audit trail.
package tokenstats

import (
	"context"
	"log/slog"
	"time"

	"github.com/tenantgate/tenantgate/internal/auth"
)

// Counter is the subset of auth.RefreshTokenRepository the reporter needs.
type Counter interface {
	Stats(ctx context.Context, now time.Time) (auth.TokenStats, error)
}

// Sink receives each successful count. metrics.Metrics.SetRefreshTokens
// satisfies it.
type Sink func(active, expired, revoked int64)

// Reporter polls a Counter on a fixed interval.
type Reporter struct {
	tokens   Counter
	sink     Sink
	interval time.Duration
	now      func() time.Time
}

// New creates a new Reporter.
func New(tokens Counter, sink Sink, interval time.Duration) *Reporter {
	return &Reporter{
		tokens:   tokens,
		sink:     sink,
		interval: interval,
		now:      time.Now,
	}
}

// Start reports once immediately and then every interval. It blocks until
// ctx is cancelled.
func (r *Reporter) Start(ctx context.Context) {
	slog.Info("token stats reporter started", "interval", r.interval.String())
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.Report(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("token stats reporter stopped")
			return
		case <-ticker.C:
			r.Report(ctx)
		}
	}
}

// Report runs one count. A failed count leaves the previous values published.
func (r *Reporter) Report(ctx context.Context) (auth.TokenStats, error) {
	st, err := r.tokens.Stats(ctx, r.now().UTC())
	if err != nil {
		slog.Error("token stats: failed to count refresh tokens", "error", err)
		return auth.TokenStats{}, err
	}
	r.sink(st.Active, st.Expired, st.Revoked)
	slog.Debug("token stats", "active", st.Active, "expired", st.Expired, "revoked", st.Revoked)
	return st, nil
}
