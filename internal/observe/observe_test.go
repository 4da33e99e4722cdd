package observe

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekodylan/OVL-MD/internal/core"
	"github.com/nekodylan/OVL-MD/internal/transport/transporttest"
	"github.com/nekodylan/OVL-MD/internal/wa"
)

const (
	self   = "22600000000@s.whatsapp.net"
	member = "22611111111@s.whatsapp.net"
	group  = "1@g.us"
)

type memRanks struct {
	mu   sync.Mutex
	recs map[string]core.RankRecord
	err  error
}

func (m *memRanks) Bump(_ context.Context, id, name string, exp int) (core.RankRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return core.RankRecord{}, m.err
	}
	rec := m.recs[id]
	rec.ID, rec.Name = id, name
	rec.Exp += exp
	rec.Messages++
	m.recs[id] = rec
	return rec, nil
}

func (m *memRanks) SetLevel(_ context.Context, id string, level int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.recs[id]
	rec.Level = level
	m.recs[id] = rec
	return nil
}

func textFrom(sender, origin, text string) *core.MessageContext {
	return &core.MessageContext{
		EventID:  "E1",
		Sender:   sender,
		Origin:   origin,
		IsGroup:  wa.IsGroup(origin),
		PushName: "Awa",
		Text:     text,
		Content:  core.Text{Body: text},
		Raw:      &wa.WebMessage{Key: wa.MessageKey{RemoteJID: origin, ID: "E1", Participant: sender}},
	}
}

func TestLevel(t *testing.T) {
	assert.Equal(t, 0, Level(0))
	assert.Equal(t, 0, Level(99))
	assert.Equal(t, 1, Level(100))
	assert.Equal(t, 1, Level(399))
	assert.Equal(t, 2, Level(400))
	assert.Equal(t, 10, Level(10000))
}

func TestRankLevelUpMessage(t *testing.T) {
	fake := transporttest.New(self)
	ranks := &memRanks{recs: map[string]core.RankRecord{member: {ID: member, Exp: 90}}}
	o := New(fake, ranks, Options{LevelUp: true}, nil)

	o.Observe(context.Background(), textFrom(member, group, "salut"))

	assert.Equal(t, 1, ranks.recs[member].Level)
	assert.Equal(t, []string{"Félicitations Awa! Vous avez atteint le niveau 1! 🎉"}, fake.Texts(group))

	fake.Reset()
	o.Observe(context.Background(), textFrom(member, group, "encore"))
	assert.Empty(t, fake.Texts(group))
	assert.Equal(t, 110, ranks.recs[member].Exp)
}

func TestRankSilentWithoutLevelUpAndIgnoresNonUsers(t *testing.T) {
	fake := transporttest.New(self)
	ranks := &memRanks{recs: map[string]core.RankRecord{member: {ID: member, Exp: 90}}}
	o := New(fake, ranks, Options{}, nil)

	o.Observe(context.Background(), textFrom(member, group, "salut"))
	assert.Equal(t, 1, ranks.recs[member].Level)
	assert.Empty(t, fake.Calls())

	o.Observe(context.Background(), textFrom(group, group, "salut"))
	o.Observe(context.Background(), textFrom(member, group, ""))
	assert.Len(t, ranks.recs, 1)
	assert.Equal(t, 100, ranks.recs[member].Exp)
}

func TestRankFailureDoesNotStopPresence(t *testing.T) {
	fake := transporttest.New(self)
	o := New(fake, &memRanks{err: errors.New("db down")}, Options{Presence: "ecrit"}, nil)

	o.Observe(context.Background(), textFrom(member, group, "salut"))
	calls := fake.Calls("SendPresence")
	require.Len(t, calls, 1)
	assert.Equal(t, wa.PresenceComposing, calls[0].Presence)
	assert.Equal(t, group, calls[0].Chat)
}

func TestPresenceFor(t *testing.T) {
	p, ok := PresenceFor("enligne")
	assert.True(t, ok)
	assert.Equal(t, wa.PresenceAvailable, p)
	p, _ = PresenceFor("enregistre")
	assert.Equal(t, wa.PresenceRecording, p)
	_, ok = PresenceFor("")
	assert.False(t, ok)
}

func TestStatusAutomation(t *testing.T) {
	fake := transporttest.New(self)
	o := New(fake, nil, Options{ReadStatus: true, LikeStatus: true, DownloadStatus: true}, nil)

	o.Observe(context.Background(), textFrom(member, wa.StatusBroadcast, "ma story"))

	reads := fake.Calls("ReadMessages")
	require.Len(t, reads, 1)
	assert.Equal(t, "E1", reads[0].Key.ID)

	sends := fake.Calls("SendMessage")
	require.Len(t, sends, 2)
	assert.Equal(t, wa.StatusBroadcast, sends[0].Chat)
	assert.Equal(t, StatusLike, sends[0].Content.React.Text)
	assert.Equal(t, []string{member, self}, sends[0].Options.StatusJIDList)
	assert.True(t, sends[0].Options.Broadcast)
	assert.Equal(t, self, sends[1].Chat)
	assert.Equal(t, "ma story", sends[1].Content.Text)
}

func TestStatusImageIsSaved(t *testing.T) {
	fake := transporttest.New(self)
	fake.Media = []byte("jpeg")
	o := New(fake, nil, Options{DownloadStatus: true}, nil)

	msg := textFrom(member, wa.StatusBroadcast, "")
	msg.Content = core.Image{Caption: "vue", Media: &wa.MediaMessage{Mimetype: "image/jpeg"}}
	o.Observe(context.Background(), msg)

	sends := fake.Calls("SendMessage")
	require.Len(t, sends, 1)
	assert.Equal(t, "vue", sends[0].Content.Caption)
	assert.Equal(t, "image/jpeg", sends[0].Content.Image.Mimetype)
}

func TestStatusIgnoredOutsideBroadcast(t *testing.T) {
	fake := transporttest.New(self)
	o := New(fake, nil, Options{ReadStatus: true, LikeStatus: true, DownloadStatus: true}, nil)
	o.Observe(context.Background(), textFrom(member, group, "salut"))
	assert.Empty(t, fake.Calls())
}
