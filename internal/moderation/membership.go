package moderation

import (
	"context"

	"go.uber.org/zap"

	"github.com/nekodylan/OVL-MD/internal/core"
	"github.com/nekodylan/OVL-MD/internal/wa"
)

// DefaultWelcomeImage is sent when a new member has no readable profile photo.
const DefaultWelcomeImage = "https://files.catbox.moe/54ip7g.jpg"

// membership handles each participant independently; a failure on one never stops
// the others.
func (e *Engine) membership(ctx context.Context, update wa.ParticipantsUpdate) []Outcome {
	rule := membershipRule(update.Action)
	if rule == "" || !wa.IsGroup(update.ID) {
		return nil
	}
	settings, err := e.settings.Get(ctx, update.ID)
	if err != nil {
		return []Outcome{failed(rule, err)}
	}
	if settings == nil || !membershipEnabled(settings, update.Action) {
		return []Outcome{skipped(rule, ReasonDisabled)}
	}
	if isRoleChange(update.Action) && update.Author != "" && wa.PhoneJID(update.Author) == wa.PhoneJID(e.client.SelfID()) {
		return []Outcome{skipped(rule, ReasonSelfSent)}
	}

	var (
		meta     wa.GroupMetadata
		haveMeta bool
	)
	outcomes := make([]Outcome, 0, len(update.Participants))
	for _, raw := range update.Participants {
		member := wa.NormalizeJID(raw)
		if member == "" {
			continue
		}
		var err error
		switch update.Action {
		case wa.ParticipantAdd:
			if !haveMeta {
				meta, err = e.client.GroupMetadata(ctx, update.ID)
				if err != nil {
					e.log.Warn("group metadata unavailable", zap.String("group", update.ID), zap.Error(err))
					meta = wa.GroupMetadata{ID: update.ID}
				}
				haveMeta = true
			}
			err = e.welcome(ctx, update.ID, member, meta)
		case wa.ParticipantRemove:
			err = e.sendText(ctx, update.ID, goodbyeText(member), []string{member}, nil)
		case wa.ParticipantPromote:
			err = e.revert(ctx, update.ID, member, wa.ParticipantDemote, promoteRevertedText(member))
		case wa.ParticipantDemote:
			err = e.revert(ctx, update.ID, member, wa.ParticipantPromote, demoteRevertedText(member))
		}
		if err != nil {
			o := failed(rule, err)
			o.Target = member
			outcomes = append(outcomes, o)
			continue
		}
		o := ok(rule, string(update.Action))
		o.Target = member
		outcomes = append(outcomes, o)
	}
	return outcomes
}

func (e *Engine) welcome(ctx context.Context, group, member string, meta wa.GroupMetadata) error {
	photo, err := e.client.ProfilePhotoURL(ctx, member)
	if err != nil || photo == "" {
		e.log.Debug("profile photo unavailable", zap.String("member", member), zap.Error(err))
		photo = e.cfg.DefaultImage
		if photo == "" {
			photo = DefaultWelcomeImage
		}
	}
	content := wa.Content{
		Image:    &wa.Media{URL: photo},
		Caption:  welcomeText(member, meta),
		Mentions: []string{member},
	}
	return e.client.SendMessage(ctx, group, content, wa.SendOptions{})
}

func (e *Engine) revert(ctx context.Context, group, member string, action wa.ParticipantAction, notice string) error {
	if err := e.client.UpdateParticipants(ctx, group, []string{member}, action); err != nil {
		return err
	}
	return e.sendText(ctx, group, notice, []string{member}, nil)
}

func membershipRule(action wa.ParticipantAction) string {
	switch action {
	case wa.ParticipantAdd:
		return RuleWelcome
	case wa.ParticipantRemove:
		return RuleGoodbye
	case wa.ParticipantPromote:
		return RuleAntiPromote
	case wa.ParticipantDemote:
		return RuleAntiDemote
	}
	return ""
}

func isRoleChange(action wa.ParticipantAction) bool {
	return action == wa.ParticipantPromote || action == wa.ParticipantDemote
}

func membershipEnabled(s *core.GroupSettings, action wa.ParticipantAction) bool {
	switch action {
	case wa.ParticipantAdd:
		return s.Welcome
	case wa.ParticipantRemove:
		return s.Goodbye
	case wa.ParticipantPromote:
		return s.AntiPromote
	case wa.ParticipantDemote:
		return s.AntiDemote
	}
	return false
}
