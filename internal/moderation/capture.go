package moderation

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nekodylan/OVL-MD/internal/core"
	"github.com/nekodylan/OVL-MD/internal/transport"
	"github.com/nekodylan/OVL-MD/internal/wa"
)

// captureViewOnce re-sends view-once media to the bot's own chat. The inner media
// must carry an explicit viewOnce=true flag; anything else is an irregular envelope
// and is left alone.
func (e *Engine) captureViewOnce(ctx context.Context, msg *core.MessageContext) Outcome {
	vo, isViewOnce := msg.Content.(core.ViewOnce)
	if !isViewOnce {
		return skipped(RuleViewOnce, ReasonNotTriggered)
	}
	if !e.cfg.AntiViewOnce {
		return skipped(RuleViewOnce, ReasonDisabled)
	}
	media, hasMedia := core.MediaOf(vo.Inner)
	if !hasMedia || media.ViewOnce == nil || !*media.ViewOnce {
		return skipped(RuleViewOnce, ReasonIrregular)
	}
	self := e.client.SelfID()
	if self == "" {
		return failed(RuleViewOnce, transport.ErrClosed)
	}

	kind := string(vo.Inner.Kind())
	fetched, err := transport.FetchMedia(ctx, e.client, kind, media)
	if err != nil {
		return failed(RuleViewOnce, err)
	}

	var content wa.Content
	switch vo.Inner.(type) {
	case core.Image:
		content = wa.Content{Image: fetched, Caption: media.Caption}
	case core.Video:
		content = wa.Content{Video: fetched, Caption: media.Caption}
	case core.Audio:
		fetched.Mimetype = "audio/mp4"
		content = wa.Content{Audio: fetched, PTT: false}
	}
	if err := e.client.SendMessage(ctx, self, content, wa.SendOptions{Quoted: msg.Raw}); err != nil {
		return failed(RuleViewOnce, err)
	}
	o := ok(RuleViewOnce, "forward:"+kind)
	o.Target = msg.Sender
	return o
}

// captureDelete forwards a revoked message to the bot's own chat with a header
// naming its author and who deleted it.
func (e *Engine) captureDelete(ctx context.Context, msg *core.MessageContext) Outcome {
	p, isProtocol := msg.Content.(core.Protocol)
	if !isProtocol || p.Type != wa.ProtocolRevoke {
		return skipped(RuleAntiDelete, ReasonNotTriggered)
	}
	if !validAntiDeleteScope(e.cfg.AntiDelete) {
		return skipped(RuleAntiDelete, ReasonDisabled)
	}
	if p.Target.ID == "" {
		return skipped(RuleAntiDelete, ReasonIrregular)
	}

	original, found, err := e.history.Get(ctx, p.Target.ID)
	if err != nil {
		return failed(RuleAntiDelete, err)
	}
	if !found {
		return skipped(RuleAntiDelete, ReasonNotInHistory)
	}
	if original.Key.FromMe {
		return skipped(RuleAntiDelete, ReasonSelfSent)
	}

	chat := original.Key.RemoteJID
	if !antiDeleteCovers(e.cfg.AntiDelete, chat) {
		return skipped(RuleAntiDelete, ReasonOutOfScope)
	}
	self := e.client.SelfID()
	if self == "" {
		return failed(RuleAntiDelete, transport.ErrClosed)
	}

	sender := chat
	if wa.IsGroup(chat) || chat == wa.StatusBroadcast {
		sender = original.Key.Participant
	}
	sender = wa.NormalizeJID(sender)

	var provenance string
	if wa.IsGroup(chat) {
		subject := chat
		meta, err := e.client.GroupMetadata(ctx, chat)
		if err != nil {
			e.log.Debug("group metadata unavailable", zap.String("group", chat), zap.Error(err))
		} else if meta.Subject != "" {
			subject = meta.Subject
		}
		provenance = "👥 Groupe : " + subject
	} else {
		provenance = "📩 Chat : " + Mention(chat)
	}

	header := antiDeleteHeader(sender, msg.Sender, provenance, e.now())
	mentions := []string{sender, msg.Sender, chat}
	if err := e.sendText(ctx, self, header, mentions, original); err != nil {
		return failed(RuleAntiDelete, errors.Wrap(err, "header"))
	}
	if err := e.client.SendMessage(ctx, self, wa.Content{Forward: original}, wa.SendOptions{Quoted: original}); err != nil {
		return failed(RuleAntiDelete, errors.Wrap(err, "forward"))
	}
	o := ok(RuleAntiDelete, "forward")
	o.Target = sender
	return o
}

func validAntiDeleteScope(scope string) bool {
	switch scope {
	case AntiDeletePM, AntiDeleteGroups, AntiDeleteStatus, AntiDeleteAll:
		return true
	}
	return false
}

// antiDeleteCovers reports whether scope includes messages from chat.
func antiDeleteCovers(scope, chat string) bool {
	switch scope {
	case AntiDeleteAll:
		return true
	case AntiDeleteGroups:
		return wa.IsGroup(chat)
	case AntiDeletePM:
		return wa.IsUser(chat)
	case AntiDeleteStatus:
		return chat == wa.StatusBroadcast
	}
	return false
}
