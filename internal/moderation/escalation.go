package moderation

import (
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nekodylan/OVL-MD/internal/core"
	"github.com/nekodylan/OVL-MD/internal/store"
	"github.com/nekodylan/OVL-MD/internal/wa"
)

// TagThreshold is the mention count above which a message counts as mass tagging.
const TagThreshold = 30

type escalationRule struct {
	name    string
	kind    core.PolicyKind
	trigger func(msg *core.MessageContext) bool
}

var escalationRules = []escalationRule{
	{name: RuleLink, kind: core.PolicyLink, trigger: containsLink},
	{name: RuleTag, kind: core.PolicyTag, trigger: massTag},
	{name: RuleBot, kind: core.PolicyBot, trigger: automatedClient},
}

func containsLink(msg *core.MessageContext) bool {
	return strings.Contains(msg.Text, "http://") || strings.Contains(msg.Text, "https://")
}

func massTag(msg *core.MessageContext) bool {
	return len(msg.Mentions) > TagThreshold
}

// automatedClient matches the message ids generated by the common bot libraries.
func automatedClient(msg *core.MessageContext) bool {
	if msg.Raw == nil {
		return false
	}
	return IsAutomatedID(msg.Raw.Key.ID)
}

func IsAutomatedID(id string) bool {
	return len(id) == 16 && (strings.HasPrefix(id, "BAES") || strings.HasPrefix(id, "BAE5"))
}

func (e *Engine) escalate(ctx context.Context, msg *core.MessageContext, flags core.Flags, rule escalationRule) Outcome {
	if !msg.IsGroup {
		return skipped(rule.name, ReasonNotGroup)
	}
	if msg.Raw == nil || msg.FromMe || !rule.trigger(msg) {
		return skipped(rule.name, ReasonNotTriggered)
	}

	setting, err := e.policies.Get(ctx, msg.Origin, rule.kind)
	if err != nil {
		return failed(rule.name, err)
	}
	if setting == nil || !setting.Enabled {
		return skipped(rule.name, ReasonDisabled)
	}
	if flags.Authorized() {
		return skipped(rule.name, ReasonAuthorized)
	}
	if !flags.IsBotAdmin {
		return skipped(rule.name, ReasonBotNotAdmin)
	}

	text := policyNotices[rule.kind]
	mention := Mention(msg.Sender)
	mentions := []string{msg.Sender}
	key := msg.Raw.Key

	out := func(action string, err error) Outcome {
		if err != nil {
			return failed(rule.name, err)
		}
		o := ok(rule.name, action)
		o.Target = msg.Sender
		return o
	}

	switch setting.Action {
	case core.ActionDelete:
		if err := e.sendText(ctx, msg.Origin, text.deleted(mention), mentions, msg.Raw); err != nil {
			return out("", err)
		}
		return out(string(core.ActionDelete), e.client.DeleteMessage(ctx, msg.Origin, key))

	case core.ActionKick:
		return out(string(core.ActionKick), e.kick(ctx, msg, text.kicked(mention)))

	case core.ActionWarn:
		wkey := core.WarningKey{GroupID: msg.Origin, UserID: msg.Sender, Policy: rule.kind}
		unlock := e.locks.Lock(warningLockKey(wkey))
		defer unlock()

		count, err := e.warnings.Increment(ctx, wkey, msg.EventID)
		if errors.Is(err, store.ErrAlreadyApplied) {
			return skipped(rule.name, ReasonReplayed)
		}
		if err != nil {
			return out("", err)
		}
		if count < core.MaxWarnings {
			err := e.sendText(ctx, msg.Origin, text.warned(mention, count), mentions, nil)
			return out("warn:"+strconv.Itoa(count), err)
		}
		if err := e.kick(ctx, msg, text.removed(mention)); err != nil {
			return out("", err)
		}
		return out("warn:"+strconv.Itoa(count)+":removed", e.warnings.Delete(ctx, wkey))
	}

	e.log.Warn("unknown policy action",
		zap.String("group", msg.Origin),
		zap.String("policy", string(rule.kind)),
		zap.String("action", string(setting.Action)),
	)
	return skipped(rule.name, ReasonUnknownAction)
}

// kick posts notice, deletes the offending message and removes its sender.
func (e *Engine) kick(ctx context.Context, msg *core.MessageContext, notice string) error {
	if err := e.sendText(ctx, msg.Origin, notice, []string{msg.Sender}, nil); err != nil {
		return errors.Wrap(err, "notice")
	}
	if err := e.client.DeleteMessage(ctx, msg.Origin, msg.Raw.Key); err != nil {
		return errors.Wrap(err, "delete message")
	}
	if err := e.client.UpdateParticipants(ctx, msg.Origin, []string{msg.Sender}, wa.ParticipantRemove); err != nil {
		return errors.Wrap(err, "remove participant")
	}
	return nil
}

func warningLockKey(k core.WarningKey) string {
	return k.GroupID + "|" + k.UserID + "|" + string(k.Policy)
}
