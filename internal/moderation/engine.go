package moderation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nekodylan/OVL-MD/internal/core"
	"github.com/nekodylan/OVL-MD/internal/metrics"
	"github.com/nekodylan/OVL-MD/internal/transport"
	"github.com/nekodylan/OVL-MD/internal/wa"
)

type PolicyStore interface {
	Get(ctx context.Context, groupID string, kind core.PolicyKind) (*core.PolicySetting, error)
}

type WarningStore interface {
	Increment(ctx context.Context, key core.WarningKey, eventID string) (int, error)
	Delete(ctx context.Context, key core.WarningKey) error
}

type GroupSettingsStore interface {
	Get(ctx context.Context, groupID string) (*core.GroupSettings, error)
}

// HistoryLookup finds a previously seen message by id.
type HistoryLookup interface {
	Get(ctx context.Context, id string) (*wa.WebMessage, bool, error)
}

// AntiDelete scopes.
const (
	AntiDeletePM     = "pm"
	AntiDeleteGroups = "gc"
	AntiDeleteStatus = "status"
	AntiDeleteAll    = "all"
)

type Config struct {
	// AntiDelete is one of pm, gc, status or all; anything else disables the rule.
	AntiDelete   string
	AntiViewOnce bool
	// DefaultImage is the welcome picture used when a member has no profile photo.
	DefaultImage string
}

type Engine struct {
	client   transport.Client
	policies PolicyStore
	warnings WarningStore
	settings GroupSettingsStore
	history  HistoryLookup
	cfg      Config
	log      *zap.Logger
	metrics  *metrics.Metrics
	locks    KeyedMutex
	now      func() time.Time
}

type Deps struct {
	Client   transport.Client
	Policies PolicyStore
	Warnings WarningStore
	Settings GroupSettingsStore
	History  HistoryLookup
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

func NewEngine(d Deps, cfg Config) *Engine {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		client:   d.Client,
		policies: d.Policies,
		warnings: d.Warnings,
		settings: d.Settings,
		history:  d.History,
		cfg:      cfg,
		log:      log.Named("moderation"),
		metrics:  d.Metrics,
		now:      time.Now,
	}
}

// Evaluate runs the message rules in their fixed order: view-once capture, link,
// tag count, automated client, delete capture. Each rule runs regardless of what
// the previous ones did.
func (e *Engine) Evaluate(ctx context.Context, msg *core.MessageContext, flags core.Flags) []Outcome {
	outcomes := make([]Outcome, 0, 5)
	outcomes = append(outcomes, e.captureViewOnce(ctx, msg))
	for _, rule := range escalationRules {
		outcomes = append(outcomes, e.escalate(ctx, msg, flags, rule))
	}
	outcomes = append(outcomes, e.captureDelete(ctx, msg))
	e.record(outcomes)
	return outcomes
}

// HandleParticipants applies the membership rules to every participant of update.
func (e *Engine) HandleParticipants(ctx context.Context, update wa.ParticipantsUpdate) []Outcome {
	outcomes := e.membership(ctx, update)
	e.record(outcomes)
	return outcomes
}

func (e *Engine) record(outcomes []Outcome) {
	for _, o := range outcomes {
		if o.Reason == ReasonNotTriggered {
			continue
		}
		e.metrics.IncModeration(o.Rule, string(o.Status))
	}
}

func (e *Engine) sendText(ctx context.Context, chat, text string, mentions []string, quoted *wa.WebMessage) error {
	return e.client.SendMessage(ctx, chat, wa.Content{Text: text, Mentions: mentions}, wa.SendOptions{Quoted: quoted})
}
