package history

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/nekodylan/OVL-MD/internal/core"
)

// BatchWriter persists a batch of history entries.
type BatchWriter interface {
	SaveBatch(ctx context.Context, entries []core.HistoryEntry) error
}

var errWriterClosed = errors.New("history: buffered writer closed")

const defaultMaxPending = 10000

// BufferedWriter groups entries into batches, flushing when the batch is full or
// when the flush interval elapses after the first buffered entry. A batch that
// fails on the timer path is put back at the head of the queue; the queue keeps
// at most MaxPending entries and drops the oldest beyond that. Requeued entries
// go out with the next flush.
type BufferedWriter struct {
	base       BatchWriter
	opts       BufferedOptions
	maxPending int

	mu      sync.Mutex
	queue   []core.HistoryEntry
	timer   *time.Timer
	closed  bool
	lastErr error
	dropped int
}

type BufferedOptions struct {
	BatchSize     int
	FlushInterval time.Duration
	MaxPending    int
	// OnError observes failures of timer-driven flushes.
	OnError func(error)
}

func NewBufferedWriter(base BatchWriter, opts BufferedOptions) *BufferedWriter {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1
	}
	maxPending := opts.MaxPending
	if maxPending < opts.BatchSize {
		maxPending = max(defaultMaxPending, opts.BatchSize)
	}
	return &BufferedWriter{base: base, opts: opts, maxPending: maxPending}
}

// Write queues entry. It returns the error of the batch it flushed, or of an
// earlier timer flush that nobody has seen yet.
func (b *BufferedWriter) Write(entry core.HistoryEntry) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return errWriterClosed
	}
	pending := b.lastErr
	b.lastErr = nil
	b.enqueueLocked(entry)

	var batch []core.HistoryEntry
	if len(b.queue) >= b.opts.BatchSize {
		batch = b.takeLocked()
	} else if b.timer == nil {
		b.armLocked()
	}
	b.mu.Unlock()

	if batch != nil {
		if err := b.base.SaveBatch(context.Background(), batch); err != nil {
			return err
		}
	}
	return pending
}

// Flush writes whatever is queued right away.
func (b *BufferedWriter) Flush(ctx context.Context) error {
	b.mu.Lock()
	batch := b.takeLocked()
	b.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}
	return b.base.SaveBatch(ctx, batch)
}

// Close flushes the queue and rejects later writes. It returns the final flush
// error or, failing that, an unseen timer error.
func (b *BufferedWriter) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	batch := b.takeLocked()
	pending := b.lastErr
	b.lastErr = nil
	b.mu.Unlock()

	if len(batch) > 0 {
		if err := b.base.SaveBatch(context.Background(), batch); err != nil {
			return err
		}
	}
	return pending
}

// Dropped is the number of entries discarded because the queue was full.
func (b *BufferedWriter) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

func (b *BufferedWriter) enqueueLocked(entries ...core.HistoryEntry) {
	b.queue = append(b.queue, entries...)
	if over := len(b.queue) - b.maxPending; over > 0 {
		b.queue = append(b.queue[:0], b.queue[over:]...)
		b.dropped += over
	}
}

// takeLocked empties the queue and disarms the timer.
func (b *BufferedWriter) takeLocked() []core.HistoryEntry {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	if len(b.queue) == 0 {
		return nil
	}
	batch := b.queue
	b.queue = nil
	return batch
}

func (b *BufferedWriter) armLocked() {
	if b.opts.FlushInterval <= 0 {
		return
	}
	b.timer = time.AfterFunc(b.opts.FlushInterval, b.flushOnTimer)
}

func (b *BufferedWriter) flushOnTimer() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.timer = nil
	batch := b.takeLocked()
	b.mu.Unlock()
	if len(batch) == 0 {
		return
	}

	err := b.base.SaveBatch(context.Background(), batch)
	if err == nil {
		return
	}
	b.mu.Lock()
	b.lastErr = err
	if !b.closed {
		b.queue = append(batch, b.queue...)
		b.enqueueLocked()
	}
	b.mu.Unlock()
	if b.opts.OnError != nil {
		b.opts.OnError(err)
	}
}
