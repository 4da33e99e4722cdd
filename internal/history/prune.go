package history

import (
	"context"
	"time"

	"github.com/adhocore/gronx"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Pruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PruneSchedule deletes rows older than Retention from every store on each tick of
// a cron expression.
type PruneSchedule struct {
	Expr      string
	Retention time.Duration
	Stores    []Pruner
	Log       *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewPruneSchedule(expr string, retention time.Duration, log *zap.Logger, stores ...Pruner) (*PruneSchedule, error) {
	if !gronx.New().IsValid(expr) {
		return nil, errors.Errorf("history: invalid prune schedule %q", expr)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PruneSchedule{
		Expr:      expr,
		Retention: retention,
		Stores:    stores,
		Log:       log,
		now:       time.Now,
		sleep:     sleepCtx,
	}, nil
}

// Run blocks until ctx is done.
func (p *PruneSchedule) Run(ctx context.Context) error {
	for {
		now := p.now()
		next, err := gronx.NextTickAfter(p.Expr, now, false)
		if err != nil {
			return errors.Wrap(err, "history: next tick")
		}
		if err := p.sleep(ctx, next.Sub(now)); err != nil {
			return nil
		}
		p.RunOnce(ctx)
	}
}

// RunOnce prunes every store once and returns the number of removed rows. A
// failing store is logged and the others still run.
func (p *PruneSchedule) RunOnce(ctx context.Context) int64 {
	cutoff := p.now().Add(-p.Retention)
	var total int64
	for _, store := range p.Stores {
		n, err := store.PruneBefore(ctx, cutoff)
		if err != nil {
			p.Log.Warn("history: prune failed", zap.Error(err))
			continue
		}
		total += n
	}
	if total > 0 {
		p.Log.Info("history: pruned", zap.Int64("removed", total), zap.Time("cutoff", cutoff))
	}
	return total
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
