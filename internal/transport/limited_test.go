package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nekodylan/OVL-MD/internal/transport/transporttest"
	"github.com/nekodylan/OVL-MD/internal/wa"
)

func TestNewLimitedDisabled(t *testing.T) {
	fake := transporttest.New("bot@s.whatsapp.net")
	assert.Same(t, Client(fake), NewLimited(fake, 0, 0, nil))
}

func TestLimitedPacesSends(t *testing.T) {
	fake := transporttest.New("bot@s.whatsapp.net")
	c := NewLimited(fake, 20, 1, nil)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, c.SendMessage(ctx, "1@g.us", wa.Content{Text: "x"}, wa.SendOptions{}))
	}
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	assert.Len(t, fake.Calls("SendMessage"), 3)

	_, err := c.GroupMetadata(ctx, "1@g.us")
	require.NoError(t, err)
}

func TestLimitedHonoursCancellation(t *testing.T) {
	fake := transporttest.New("bot@s.whatsapp.net")
	c := NewLimited(fake, 0.001, 1, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.NoError(t, c.DeleteMessage(ctx, "1@g.us", wa.MessageKey{ID: "A"}))
	err := c.DeleteMessage(ctx, "1@g.us", wa.MessageKey{ID: "B"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, fake.Calls("DeleteMessage"), 1)
}

func TestDropLoggerSummarizes(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	now := time.Now()
	d := newDropLogger(now, zap.New(core), nil, time.Minute)

	d.note(now, "unknown_event", []byte(`{"type":"event","event":"presence.update"}`))
	d.note(now, "unknown_event", []byte(`{"type":"event","event":"presence.update"}`))
	d.note(now, "malformed_frame", []byte(`garbage`))
	assert.Equal(t, 0, logs.Len())

	d.flush(now)
	entries := logs.FilterMessage("dropped_unknown_event").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(2), entries[0].ContextMap()["total"])
	assert.Equal(t, "{event:presence.update:2}", entries[0].ContextMap()["kinds"])
	assert.Len(t, logs.FilterMessage("dropped_malformed_frame").All(), 1)
}

func TestSanitizeRedactsLongTokens(t *testing.T) {
	out := sanitizeAndTruncate("token abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOP1234", 200)
	assert.Equal(t, "token [REDACTED]", out)
	assert.Equal(t, "ab...", sanitizeAndTruncate("abcdefgh", 5))
}

func TestFetchMediaSniffsMimetype(t *testing.T) {
	fake := transporttest.New("bot@s.whatsapp.net")
	fake.Media = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	ctx := context.Background()

	m, err := FetchMedia(ctx, fake, "image", &wa.MediaMessage{URL: "u"})
	require.NoError(t, err)
	assert.Equal(t, "image/png", m.Mimetype)

	m, err = FetchMedia(ctx, fake, "audio", &wa.MediaMessage{Mimetype: "audio/ogg"})
	require.NoError(t, err)
	assert.Equal(t, "audio/ogg", m.Mimetype)

	_, err = FetchMedia(ctx, fake, "image", nil)
	assert.Error(t, err)

	fake.Media = nil
	_, err = FetchMedia(ctx, fake, "image", &wa.MediaMessage{})
	assert.Error(t, err)
}
