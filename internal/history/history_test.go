package history

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekodylan/OVL-MD/internal/core"
	"github.com/nekodylan/OVL-MD/internal/wa"
)

type memStore struct {
	mu      sync.Mutex
	entries map[string]core.HistoryEntry
	batches int
	fail    error
	cutoffs []time.Time
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string]core.HistoryEntry)}
}

func (m *memStore) SaveBatch(_ context.Context, entries []core.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	if len(entries) == 0 {
		return nil
	}
	m.batches++
	for _, e := range entries {
		m.entries[e.ID] = e
	}
	return nil
}

func (m *memStore) Get(_ context.Context, id string) (*core.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *memStore) PruneBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cutoffs = append(m.cutoffs, cutoff)
	return 3, nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func TestBufferedWriterBatchFlush(t *testing.T) {
	base := newMemStore()
	bw := NewBufferedWriter(base, BufferedOptions{BatchSize: 2, FlushInterval: time.Hour})
	defer func() { require.NoError(t, bw.Close()) }()

	require.NoError(t, bw.Write(core.HistoryEntry{ID: "1"}))
	assert.Equal(t, 0, base.count())
	require.NoError(t, bw.Write(core.HistoryEntry{ID: "2"}))
	assert.Equal(t, 2, base.count())
	assert.Equal(t, 1, base.batches)
}

func TestBufferedWriterFlushInterval(t *testing.T) {
	base := newMemStore()
	bw := NewBufferedWriter(base, BufferedOptions{BatchSize: 10, FlushInterval: 20 * time.Millisecond})
	defer bw.Close()

	require.NoError(t, bw.Write(core.HistoryEntry{ID: "1"}))
	assert.Eventually(t, func() bool { return base.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestBufferedWriterReportsTimerError(t *testing.T) {
	base := newMemStore()
	base.fail = errors.New("disk full")
	seen := make(chan error, 1)
	bw := NewBufferedWriter(base, BufferedOptions{BatchSize: 10, FlushInterval: 10 * time.Millisecond, OnError: func(err error) { seen <- err }})

	require.NoError(t, bw.Write(core.HistoryEntry{ID: "1"}))
	select {
	case err := <-seen:
		assert.EqualError(t, err, "disk full")
	case <-time.After(time.Second):
		t.Fatalf("timer flush error not reported")
	}

	base.mu.Lock()
	base.fail = nil
	base.mu.Unlock()
	assert.EqualError(t, bw.Write(core.HistoryEntry{ID: "2"}), "disk full")
	require.NoError(t, bw.Close())
	assert.ErrorIs(t, bw.Write(core.HistoryEntry{ID: "3"}), errWriterClosed)
}

func msg(id, chat, participant string) *wa.WebMessage {
	return &wa.WebMessage{
		Key:     wa.MessageKey{ID: id, RemoteJID: chat, Participant: participant},
		Message: &wa.Message{Conversation: "salut"},
	}
}

func TestCacheServesRecentThenStorage(t *testing.T) {
	base := newMemStore()
	bw := NewBufferedWriter(base, BufferedOptions{BatchSize: 1})
	c, err := NewCache(1, bw, base, nil)
	require.NoError(t, err)

	c.Add(msg("A", "1@g.us", "2:5@s.whatsapp.net"))
	c.Add(msg("B", "1@g.us", "3@s.whatsapp.net"))
	assert.Equal(t, 1, c.Len())

	got, ok, err := c.Get(context.Background(), "A")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "salut", got.Message.Conversation)
	assert.Equal(t, "2@s.whatsapp.net", base.entries["A"].Sender)

	_, ok, err = c.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCacheRejectsCorruptPayload(t *testing.T) {
	base := newMemStore()
	base.entries["X"] = core.HistoryEntry{ID: "X", Payload: "{"}
	c, err := NewCache(4, nil, base, nil)
	require.NoError(t, err)

	_, _, err = c.Get(context.Background(), "X")
	assert.Error(t, err)

	raw, _ := json.Marshal(msg("Y", "1@s.whatsapp.net", ""))
	base.entries["Y"] = core.HistoryEntry{ID: "Y", Payload: string(raw)}
	got, ok, err := c.Get(context.Background(), "Y")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Y", got.Key.ID)
}

func TestPruneScheduleRunsOnTick(t *testing.T) {
	base := newMemStore()
	p, err := NewPruneSchedule("*/15 * * * *", 48*time.Hour, nil, base)
	require.NoError(t, err)

	fixed := time.Date(2026, 10, 18, 12, 5, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }
	ctx, cancel := context.WithCancel(context.Background())
	var slept []time.Duration
	p.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		if len(slept) > 1 {
			cancel()
			return context.Canceled
		}
		return nil
	}

	require.NoError(t, p.Run(ctx))
	assert.Equal(t, 10*time.Minute, slept[0])
	require.Len(t, base.cutoffs, 1)
	assert.Equal(t, fixed.Add(-48*time.Hour), base.cutoffs[0])
}

func TestPruneScheduleRejectsBadExpr(t *testing.T) {
	_, err := NewPruneSchedule("every day", time.Hour, nil, newMemStore())
	assert.Error(t, err)
}

func TestBufferedWriterRequeuesFailedTimerBatch(t *testing.T) {
	base := newMemStore()
	base.fail = errors.New("locked")
	seen := make(chan error, 1)
	bw := NewBufferedWriter(base, BufferedOptions{BatchSize: 10, FlushInterval: 10 * time.Millisecond, MaxPending: 10, OnError: func(err error) { seen <- err }})

	require.NoError(t, bw.Write(core.HistoryEntry{ID: "1"}))
	select {
	case <-seen:
	case <-time.After(time.Second):
		t.Fatalf("timer flush did not run")
	}
	base.mu.Lock()
	base.fail = nil
	base.mu.Unlock()

	require.NoError(t, bw.Flush(context.Background()))
	assert.Equal(t, 1, base.count())
	assert.EqualError(t, bw.Close(), "locked")
}

func TestBufferedWriterDropsOldestWhenFull(t *testing.T) {
	base := newMemStore()
	bw := NewBufferedWriter(base, BufferedOptions{BatchSize: 2, MaxPending: 2})
	bw.mu.Lock()
	bw.enqueueLocked(core.HistoryEntry{ID: "1"}, core.HistoryEntry{ID: "2"}, core.HistoryEntry{ID: "3"})
	ids := []string{bw.queue[0].ID, bw.queue[1].ID}
	bw.mu.Unlock()

	assert.Equal(t, []string{"2", "3"}, ids)
	assert.Equal(t, 1, bw.Dropped())
	require.NoError(t, bw.Close())
	assert.Equal(t, 2, base.count())
}

type failingPruner struct{}

func (failingPruner) PruneBefore(context.Context, time.Time) (int64, error) {
	return 0, errors.New("locked")
}

func TestPruneOnceCoversEveryStore(t *testing.T) {
	first, second := newMemStore(), newMemStore()
	p, err := NewPruneSchedule("*/15 * * * *", time.Hour, nil, first, failingPruner{}, second)
	require.NoError(t, err)

	assert.Equal(t, int64(6), p.RunOnce(context.Background()))
	assert.Len(t, first.cutoffs, 1)
	assert.Len(t, second.cutoffs, 1)
}
