package moderation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekodylan/OVL-MD/internal/core"
	"github.com/nekodylan/OVL-MD/internal/wa"
)

func viewOnceMessage(inner core.Content) *core.MessageContext {
	msg := textMessage("V1", "")
	msg.Content = core.ViewOnce{Inner: inner}
	return msg
}

func flag(v bool) *bool { return &v }

func TestViewOnceCapture(t *testing.T) {
	f := newFixture(t, Config{AntiViewOnce: true})
	f.client.Media = []byte("jpeg-bytes")
	media := &wa.MediaMessage{Mimetype: "image/jpeg", Caption: "secret", ViewOnce: flag(true)}

	o := outcomeOf(f.engine.Evaluate(context.Background(), viewOnceMessage(core.Image{Caption: "secret", Media: media}), core.Flags{}), RuleViewOnce)
	require.Equal(t, StatusOK, o.Status, o.String())

	sends := f.client.Calls("SendMessage")
	require.Len(t, sends, 1)
	assert.Equal(t, bot, sends[0].Chat)
	require.NotNil(t, sends[0].Content.Image)
	assert.Equal(t, "jpeg-bytes", string(sends[0].Content.Image.Data))
	assert.Equal(t, "secret", sends[0].Content.Caption)
	assert.Equal(t, "V1", sends[0].Options.Quoted.Key.ID)
}

func TestViewOnceAudioIsResentAsMP4(t *testing.T) {
	f := newFixture(t, Config{AntiViewOnce: true})
	f.client.Media = []byte("ogg")
	media := &wa.MediaMessage{Mimetype: "audio/ogg; codecs=opus", PTT: true, ViewOnce: flag(true)}

	f.engine.Evaluate(context.Background(), viewOnceMessage(core.Audio{Media: media}), core.Flags{})

	sends := f.client.Calls("SendMessage")
	require.Len(t, sends, 1)
	require.NotNil(t, sends[0].Content.Audio)
	assert.Equal(t, "audio/mp4", sends[0].Content.Audio.Mimetype)
	assert.False(t, sends[0].Content.PTT)
}

func TestViewOnceIrregularEnvelope(t *testing.T) {
	cases := map[string]core.Content{
		"flag missing": core.Image{Media: &wa.MediaMessage{}},
		"flag false":   core.Video{Media: &wa.MediaMessage{ViewOnce: flag(false)}},
		"no media":     core.Text{Body: "hi"},
	}
	for name, inner := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, Config{AntiViewOnce: true})
			o := outcomeOf(f.engine.Evaluate(context.Background(), viewOnceMessage(inner), core.Flags{}), RuleViewOnce)
			assert.Equal(t, ReasonIrregular, o.Reason)
			assert.Empty(t, f.client.Calls())
		})
	}
}

func TestViewOnceDisabledAndDownloadFailure(t *testing.T) {
	inner := core.Image{Media: &wa.MediaMessage{ViewOnce: flag(true)}}

	f := newFixture(t, Config{})
	o := outcomeOf(f.engine.Evaluate(context.Background(), viewOnceMessage(inner), core.Flags{}), RuleViewOnce)
	assert.Equal(t, ReasonDisabled, o.Reason)

	f = newFixture(t, Config{AntiViewOnce: true})
	f.client.MediaErr = errors.New("expired")
	o = outcomeOf(f.engine.Evaluate(context.Background(), viewOnceMessage(inner), core.Flags{}), RuleViewOnce)
	assert.Equal(t, StatusFailed, o.Status)
	assert.Empty(t, f.client.Calls("SendMessage"))
}

func revoke(chat, deleter, targetID string) *core.MessageContext {
	return &core.MessageContext{
		EventID: "R-" + targetID,
		Sender:  deleter,
		Origin:  chat,
		IsGroup: wa.IsGroup(chat),
		Content: core.Protocol{Type: wa.ProtocolRevoke, Target: wa.MessageKey{RemoteJID: chat, ID: targetID}},
		Raw:     &wa.WebMessage{Key: wa.MessageKey{RemoteJID: chat, ID: "REV" + targetID, Participant: deleter}},
	}
}

func TestAntiDeleteForwardsGroupMessage(t *testing.T) {
	f := newFixture(t, Config{AntiDelete: AntiDeleteGroups})
	f.client.Groups[group] = wa.GroupMetadata{ID: group, Subject: "Les OVL"}
	original := &wa.WebMessage{
		Key:     wa.MessageKey{RemoteJID: group, ID: "O1", Participant: sender},
		Message: &wa.Message{Conversation: "message supprimé"},
	}
	f.history.msgs["O1"] = original

	o := outcomeOf(f.engine.Evaluate(context.Background(), revoke(group, sender, "O1"), core.Flags{}), RuleAntiDelete)
	require.Equal(t, StatusOK, o.Status, o.String())

	sends := f.client.Calls("SendMessage")
	require.Len(t, sends, 2)
	assert.Equal(t, bot, sends[0].Chat)
	assert.Equal(t, "✨ OVL-MD ANTI-DELETE MSG✨\n"+
		"👤 Envoyé par : @22611111111\n"+
		"❌ Supprimé par : @22611111111\n"+
		"⏰ Heure de suppression : 13:04:05\n"+
		"👥 Groupe : Les OVL", sends[0].Content.Text)
	assert.Equal(t, []string{sender, sender, group}, sends[0].Content.Mentions)
	assert.Same(t, original, sends[1].Content.Forward)
	assert.Equal(t, bot, sends[1].Chat)
}

func TestAntiDeleteDirectChatHeader(t *testing.T) {
	f := newFixture(t, Config{AntiDelete: AntiDeleteAll})
	f.history.msgs["O2"] = &wa.WebMessage{Key: wa.MessageKey{RemoteJID: sender, ID: "O2"}}

	f.engine.Evaluate(context.Background(), revoke(sender, sender, "O2"), core.Flags{})
	texts := f.client.Texts(bot)
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "📩 Chat : @22611111111")
}

func TestAntiDeleteSkips(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{AntiDelete: AntiDeletePM})
	f.history.msgs["G1"] = &wa.WebMessage{Key: wa.MessageKey{RemoteJID: group, ID: "G1", Participant: sender}}
	f.history.msgs["S1"] = &wa.WebMessage{Key: wa.MessageKey{RemoteJID: sender, ID: "S1", FromMe: true}}

	assert.Equal(t, ReasonOutOfScope, outcomeOf(f.engine.Evaluate(ctx, revoke(group, sender, "G1"), core.Flags{}), RuleAntiDelete).Reason)
	assert.Equal(t, ReasonSelfSent, outcomeOf(f.engine.Evaluate(ctx, revoke(sender, sender, "S1"), core.Flags{}), RuleAntiDelete).Reason)
	assert.Equal(t, ReasonNotInHistory, outcomeOf(f.engine.Evaluate(ctx, revoke(sender, sender, "missing"), core.Flags{}), RuleAntiDelete).Reason)
	assert.Empty(t, f.client.Calls("SendMessage"))

	off := newFixture(t, Config{AntiDelete: "non"})
	off.history.msgs["G1"] = f.history.msgs["G1"]
	assert.Equal(t, ReasonDisabled, outcomeOf(off.engine.Evaluate(ctx, revoke(group, sender, "G1"), core.Flags{}), RuleAntiDelete).Reason)

	broken := newFixture(t, Config{AntiDelete: AntiDeleteAll})
	broken.history.err = errors.New("db locked")
	assert.Equal(t, StatusFailed, outcomeOf(broken.engine.Evaluate(ctx, revoke(group, sender, "G1"), core.Flags{}), RuleAntiDelete).Status)
}

func TestAntiDeleteCovers(t *testing.T) {
	assert.True(t, antiDeleteCovers(AntiDeleteStatus, wa.StatusBroadcast))
	assert.False(t, antiDeleteCovers(AntiDeleteStatus, group))
	assert.True(t, antiDeleteCovers(AntiDeletePM, sender))
	assert.True(t, antiDeleteCovers(AntiDeleteAll, wa.StatusBroadcast))
	assert.False(t, antiDeleteCovers("", sender))
}
