package httpapi

import (
	"context"
	"errors"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ErrStale is returned by Watchdog.Run when /ping has not answered for too long.
var ErrStale = errors.New("httpapi: liveness ping is stale")

// Watchdog pings the server's own /ping endpoint on a fixed interval and trips when
// the last successful ping is older than StaleAfter.
type Watchdog struct {
	URL        string
	Interval   time.Duration
	CheckEvery time.Duration
	StaleAfter time.Duration
	// LastPing reports when /ping last succeeded.
	LastPing func() time.Time

	log    *zap.Logger
	client *resty.Client
	now    func() time.Time
}

func NewWatchdog(url string, lastPing func() time.Time, interval, check, stale time.Duration, log *zap.Logger) *Watchdog {
	if log == nil {
		log = zap.NewNop()
	}
	return &Watchdog{
		URL:        url,
		Interval:   interval,
		CheckEvery: check,
		StaleAfter: stale,
		LastPing:   lastPing,
		log:        log.Named("watchdog"),
		client:     resty.New().SetTimeout(10 * time.Second),
		now:        time.Now,
	}
}

// Run blocks until ctx is done (returning nil) or the ping goes stale (returning
// ErrStale).
func (w *Watchdog) Run(ctx context.Context) error {
	if w.Interval <= 0 || w.CheckEvery <= 0 || w.StaleAfter <= 0 {
		return errors.New("httpapi: watchdog intervals must be positive")
	}
	started := w.now()
	w.ping(ctx)

	pings := time.NewTicker(w.Interval)
	defer pings.Stop()
	checks := time.NewTicker(w.CheckEvery)
	defer checks.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pings.C:
			w.ping(ctx)
		case <-checks.C:
			last := w.LastPing()
			if last.IsZero() {
				last = started
			}
			if age := w.now().Sub(last); age > w.StaleAfter {
				w.log.Error("liveness ping stale", zap.Duration("age", age), zap.Duration("limit", w.StaleAfter))
				return ErrStale
			}
		}
	}
}

func (w *Watchdog) ping(ctx context.Context) {
	resp, err := w.client.R().SetContext(ctx).Get(w.URL)
	switch {
	case err != nil:
		if ctx.Err() == nil {
			w.log.Warn("self ping failed", zap.Error(err))
		}
	case resp.IsError():
		w.log.Warn("self ping rejected", zap.Int("status", resp.StatusCode()))
	}
}
