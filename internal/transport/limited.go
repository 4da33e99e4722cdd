package transport

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/nekodylan/OVL-MD/internal/metrics"
	"github.com/nekodylan/OVL-MD/internal/wa"
)

// Limited paces outbound actions (sends, deletions, participant updates) through a
// token bucket. Reads and lookups pass straight through.
type Limited struct {
	Client
	limiter *rate.Limiter
	metrics *metrics.Metrics
}

// NewLimited wraps c. A non-positive rps disables limiting and returns c unchanged.
func NewLimited(c Client, rps float64, burst int, m *metrics.Metrics) Client {
	if rps <= 0 {
		return c
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limited{Client: c, limiter: rate.NewLimiter(rate.Limit(rps), burst), metrics: m}
}

func (l *Limited) wait(ctx context.Context) error {
	r := l.limiter.Reserve()
	if !r.OK() {
		return l.limiter.Wait(ctx)
	}
	delay := r.Delay()
	if delay <= 0 {
		return nil
	}
	l.metrics.IncSendThrottled()
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (l *Limited) SendMessage(ctx context.Context, to string, content wa.Content, opts wa.SendOptions) error {
	if err := l.wait(ctx); err != nil {
		return err
	}
	return l.Client.SendMessage(ctx, to, content, opts)
}

func (l *Limited) DeleteMessage(ctx context.Context, chat string, key wa.MessageKey) error {
	if err := l.wait(ctx); err != nil {
		return err
	}
	return l.Client.DeleteMessage(ctx, chat, key)
}

func (l *Limited) UpdateParticipants(ctx context.Context, group string, ids []string, action wa.ParticipantAction) error {
	if err := l.wait(ctx); err != nil {
		return err
	}
	return l.Client.UpdateParticipants(ctx, group, ids, action)
}
