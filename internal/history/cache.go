// Package history keeps recently seen messages so deleted ones can be recovered.
package history

import (
	"context"
	"encoding/json"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nekodylan/OVL-MD/internal/core"
	"github.com/nekodylan/OVL-MD/internal/wa"
)

// Reader loads a persisted entry by message id; nil means unknown.
type Reader interface {
	Get(ctx context.Context, id string) (*core.HistoryEntry, error)
}

// Cache serves lookups from an in-memory LRU and falls back to storage.
type Cache struct {
	recent *lru.Cache[string, *wa.WebMessage]
	writer *BufferedWriter
	reader Reader
	log    *zap.Logger
	now    func() time.Time
}

// NewCache builds a cache of the given size. writer and reader may be nil for a
// memory-only cache.
func NewCache(size int, writer *BufferedWriter, reader Reader, log *zap.Logger) (*Cache, error) {
	if size <= 0 {
		size = 1
	}
	recent, err := lru.New[string, *wa.WebMessage](size)
	if err != nil {
		return nil, errors.Wrap(err, "history: lru")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{recent: recent, writer: writer, reader: reader, log: log, now: time.Now}, nil
}

// Add records msg under its message id.
func (c *Cache) Add(msg *wa.WebMessage) {
	if msg == nil || msg.Key.ID == "" {
		return
	}
	c.recent.Add(msg.Key.ID, msg)
	if c.writer == nil {
		return
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		c.log.Warn("history: encode failed", zap.String("id", msg.Key.ID), zap.Error(err))
		return
	}
	sender := msg.Key.Participant
	if sender == "" {
		sender = msg.Key.RemoteJID
	}
	entry := core.HistoryEntry{
		ID:        msg.Key.ID,
		ChatID:    msg.Key.RemoteJID,
		Sender:    wa.NormalizeJID(sender),
		FromMe:    msg.Key.FromMe,
		Payload:   string(payload),
		CreatedAt: c.now(),
	}
	if err := c.writer.Write(entry); err != nil {
		c.log.Warn("history: persist failed", zap.Error(err))
	}
}

// Get returns the message recorded under id.
func (c *Cache) Get(ctx context.Context, id string) (*wa.WebMessage, bool, error) {
	if msg, ok := c.recent.Get(id); ok {
		return msg, true, nil
	}
	if c.reader == nil {
		return nil, false, nil
	}
	entry, err := c.reader.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if entry == nil {
		return nil, false, nil
	}
	var msg wa.WebMessage
	if err := json.Unmarshal([]byte(entry.Payload), &msg); err != nil {
		return nil, false, errors.Wrapf(err, "history: decode %s", id)
	}
	c.recent.Add(id, &msg)
	return &msg, true, nil
}

func (c *Cache) Len() int { return c.recent.Len() }
