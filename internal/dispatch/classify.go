package dispatch

import (
	"strings"
	"time"

	"github.com/nekodylan/OVL-MD/internal/core"
	"github.com/nekodylan/OVL-MD/internal/wa"
)

// Classify maps a wire message onto exactly one Content variant. View-once media
// is recognized both inside a view-once envelope and as top-level media carrying
// viewOnce=true.
func Classify(m *wa.Message) core.Content {
	if m == nil {
		return core.Unknown{}
	}
	if env := viewOnceEnvelope(m); env != nil {
		return core.ViewOnce{Inner: Classify(env.Message)}
	}
	switch {
	case m.ProtocolMessage != nil:
		p := core.Protocol{Type: m.ProtocolMessage.Type}
		if m.ProtocolMessage.Key != nil {
			p.Target = *m.ProtocolMessage.Key
		}
		return p
	case m.ImageMessage != nil:
		return wrapViewOnce(m.ImageMessage, core.Image{Caption: m.ImageMessage.Caption, Media: m.ImageMessage})
	case m.VideoMessage != nil:
		return wrapViewOnce(m.VideoMessage, core.Video{Caption: m.VideoMessage.Caption, Media: m.VideoMessage})
	case m.AudioMessage != nil:
		return wrapViewOnce(m.AudioMessage, core.Audio{Media: m.AudioMessage})
	case m.Conversation != "":
		return core.Text{Body: m.Conversation}
	case m.ExtendedTextMessage != nil:
		return core.Text{Body: m.ExtendedTextMessage.Text}
	case m.ButtonsResponseMessage != nil:
		return core.ButtonReply{SelectedID: m.ButtonsResponseMessage.SelectedButtonID}
	case m.ListResponseMessage != nil:
		return core.ListReply{SelectedRowID: m.ListResponseMessage.SingleSelectReply.SelectedRowID}
	}
	return core.Unknown{}
}

func viewOnceEnvelope(m *wa.Message) *wa.FutureProofMessage {
	switch {
	case m.ViewOnceMessage != nil && m.ViewOnceMessage.Message != nil:
		return m.ViewOnceMessage
	case m.ViewOnceMessageV2 != nil && m.ViewOnceMessageV2.Message != nil:
		return m.ViewOnceMessageV2
	}
	return nil
}

func wrapViewOnce(media *wa.MediaMessage, c core.Content) core.Content {
	if media.ViewOnce != nil && *media.ViewOnce {
		return core.ViewOnce{Inner: c}
	}
	return c
}

// NewContext builds the normalized view of raw. In groups and on statuses the
// sender is the participant; in direct chats it is the chat itself, or the bot when
// the bot wrote the message.
func NewContext(raw *wa.WebMessage, self string, now time.Time) *core.MessageContext {
	key := raw.Key
	origin := key.RemoteJID
	isGroup := wa.IsGroup(origin)

	var sender string
	switch {
	case key.Participant != "" && (isGroup || origin == wa.StatusBroadcast):
		sender = key.Participant
	case key.FromMe:
		sender = self
	default:
		sender = origin
	}

	content := Classify(raw.Message)
	msg := &core.MessageContext{
		EventID:    key.ID,
		Sender:     wa.NormalizeJID(sender),
		Origin:     origin,
		IsGroup:    isGroup,
		FromMe:     key.FromMe,
		PushName:   raw.PushName,
		Text:       core.TextOf(content),
		Content:    content,
		ReceivedAt: now,
		Raw:        raw,
	}
	if ci := contextInfo(raw.Message, content); ci != nil {
		for _, jid := range ci.MentionedJID {
			msg.Mentions = append(msg.Mentions, wa.NormalizeJID(jid))
		}
		msg.Quoted = ci.QuotedMessage
		if ci.QuotedMessage != nil {
			msg.QuotedAuthor = wa.NormalizeJID(ci.Participant)
		}
	}
	return msg
}

// contextInfo finds the reply/mention metadata, looking inside view-once envelopes.
func contextInfo(m *wa.Message, content core.Content) *wa.ContextInfo {
	if ci := m.ContextInfo(); ci != nil {
		return ci
	}
	if vo, ok := content.(core.ViewOnce); ok {
		if media, ok := core.MediaOf(vo.Inner); ok {
			return media.ContextInfo
		}
	}
	return nil
}

// ParseInvocation splits prefixed text into a lower-cased command name and its
// arguments.
func ParseInvocation(text, prefix string) (core.Invocation, bool) {
	if prefix == "" || !strings.HasPrefix(text, prefix) {
		return core.Invocation{}, false
	}
	fields := strings.Fields(strings.TrimPrefix(text, prefix))
	if len(fields) == 0 {
		return core.Invocation{}, false
	}
	return core.Invocation{Name: strings.ToLower(fields[0]), Args: fields[1:]}, true
}
