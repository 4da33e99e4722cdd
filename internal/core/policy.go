package core

import "strings"

type PolicyKind string

const (
	PolicyLink PolicyKind = "antilink"
	PolicyTag  PolicyKind = "antitag"
	PolicyBot  PolicyKind = "antibot"
)

// PolicyKinds lists the escalation policies in evaluation order.
var PolicyKinds = []PolicyKind{PolicyLink, PolicyTag, PolicyBot}

type PolicyAction string

const (
	ActionDelete PolicyAction = "supp"
	ActionKick   PolicyAction = "kick"
	ActionWarn   PolicyAction = "warn"
)

// ParsePolicyAction maps user input onto an action. Unrecognized values are returned
// as-is so that callers can log and ignore them.
func ParsePolicyAction(s string) PolicyAction {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "supp", "delete", "del":
		return ActionDelete
	case "kick", "remove":
		return ActionKick
	case "warn", "warning":
		return ActionWarn
	}
	return PolicyAction(strings.ToLower(strings.TrimSpace(s)))
}

// Known reports whether a is one of the actions the engine executes.
func (a PolicyAction) Known() bool {
	return a == ActionDelete || a == ActionKick || a == ActionWarn
}

type PolicySetting struct {
	GroupID string       `db:"group_id"`
	Kind    PolicyKind   `db:"kind"`
	Enabled bool         `db:"enabled"`
	Action  PolicyAction `db:"action"`
}

type WarningKey struct {
	GroupID string
	UserID  string
	Policy  PolicyKind
}

type WarningRecord struct {
	GroupID string     `db:"group_id"`
	UserID  string     `db:"user_id"`
	Policy  PolicyKind `db:"policy"`
	Count   int        `db:"count"`
}

// MaxWarnings is the count at which a warned member is removed.
const MaxWarnings = 3

// ParseSwitch interprets on/off style values, including the French "oui"/"non".
func ParseSwitch(s string) (on bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "oui", "yes", "true", "1", "enable", "enabled":
		return true, true
	case "off", "non", "no", "false", "0", "disable", "disabled":
		return false, true
	}
	return false, false
}
