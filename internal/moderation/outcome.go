// Package moderation runs the per-group policies against every inbound message and
// membership change. Rules never return errors; each reports an Outcome that the
// caller aggregates and logs.
package moderation

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Status string

const (
	StatusOK      Status = "ok"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Rule names, as reported in outcomes and metrics.
const (
	RuleViewOnce    = "viewonce"
	RuleLink        = "antilink"
	RuleTag         = "antitag"
	RuleBot         = "antibot"
	RuleAntiDelete  = "antidelete"
	RuleWelcome     = "welcome"
	RuleGoodbye     = "goodbye"
	RuleAntiPromote = "antipromote"
	RuleAntiDemote  = "antidemote"
)

// Skip reasons shared by several rules.
const (
	ReasonNotTriggered  = "not triggered"
	ReasonNotGroup      = "not a group"
	ReasonDisabled      = "disabled"
	ReasonAuthorized    = "sender authorized"
	ReasonBotNotAdmin   = "bot not admin"
	ReasonUnknownAction = "unknown action"
	ReasonIrregular     = "irregular envelope"
	ReasonNotInHistory  = "original not in history"
	ReasonSelfSent      = "self-sent"
	ReasonOutOfScope    = "out of scope"
	ReasonReplayed      = "replayed event"
)

// Outcome is the result of one rule on one message or participant.
type Outcome struct {
	Rule   string
	Status Status
	Reason string
	// Action is what the rule did when it fired: supp, kick, warn:N, forward...
	Action string
	Target string
	Err    error
}

func ok(rule, action string) Outcome {
	return Outcome{Rule: rule, Status: StatusOK, Action: action}
}

func skipped(rule, reason string) Outcome {
	return Outcome{Rule: rule, Status: StatusSkipped, Reason: reason}
}

func failed(rule string, err error) Outcome {
	return Outcome{Rule: rule, Status: StatusFailed, Err: err}
}

// Fired reports whether the rule took an action.
func (o Outcome) Fired() bool { return o.Status == StatusOK }

func (o Outcome) String() string {
	switch o.Status {
	case StatusOK:
		return fmt.Sprintf("%s: ok(%s)", o.Rule, o.Action)
	case StatusFailed:
		return fmt.Sprintf("%s: failed(%v)", o.Rule, o.Err)
	}
	return fmt.Sprintf("%s: skipped(%s)", o.Rule, o.Reason)
}

// MarshalLogObject lets outcomes be logged with zap.Object.
func (o Outcome) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("rule", o.Rule)
	enc.AddString("status", string(o.Status))
	if o.Reason != "" {
		enc.AddString("reason", o.Reason)
	}
	if o.Action != "" {
		enc.AddString("action", o.Action)
	}
	if o.Target != "" {
		enc.AddString("target", o.Target)
	}
	if o.Err != nil {
		enc.AddString("error", o.Err.Error())
	}
	return nil
}

// LogOutcomes writes fired and failed outcomes at info/warn and the rest at debug.
func LogOutcomes(log *zap.Logger, event string, outcomes []Outcome) {
	for _, o := range outcomes {
		switch {
		case o.Status == StatusFailed:
			log.Warn("rule failed", zap.String("event", event), zap.Object("outcome", o))
		case o.Fired():
			log.Info("rule fired", zap.String("event", event), zap.Object("outcome", o))
		case o.Reason != ReasonNotTriggered:
			log.Debug("rule skipped", zap.String("event", event), zap.Object("outcome", o))
		}
	}
}
