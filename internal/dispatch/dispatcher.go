// Package dispatch turns gateway events into moderation runs and command
// invocations.
package dispatch

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/nekodylan/OVL-MD/internal/authz"
	"github.com/nekodylan/OVL-MD/internal/core"
	"github.com/nekodylan/OVL-MD/internal/ingesttrace"
	"github.com/nekodylan/OVL-MD/internal/metrics"
	"github.com/nekodylan/OVL-MD/internal/moderation"
	"github.com/nekodylan/OVL-MD/internal/registry"
	"github.com/nekodylan/OVL-MD/internal/transport"
	"github.com/nekodylan/OVL-MD/internal/wa"
)

// DefaultReact is sent when a command declares no reaction of its own.
const DefaultReact = "🎐"

const (
	msgPremiumOnly   = "*Cette commande est réservée aux utilisateurs premium.*"
	msgHandlerFailed = "Erreur: une erreur est survenue lors de l'exécution de la commande."
)

// Gate names, in evaluation order.
const (
	GateMode       = "mode"
	GateRestricted = "restricted_group"
	GateBanned     = "banned"
)

type Moderator interface {
	Evaluate(ctx context.Context, msg *core.MessageContext, flags core.Flags) []moderation.Outcome
	HandleParticipants(ctx context.Context, update wa.ParticipantsUpdate) []moderation.Outcome
}

type Observer interface {
	Observe(ctx context.Context, msg *core.MessageContext)
}

type HistoryRecorder interface {
	Add(msg *wa.WebMessage)
}

type SudoSource interface {
	List(ctx context.Context) ([]string, error)
}

type Config struct {
	Prefix       string
	Mode         string
	Owner        string
	Developers   []string
	DefaultReact string
	// RestrictedGroup only accepts commands from developers and RestrictedAllowed.
	RestrictedGroup   string
	RestrictedAllowed string
}

func (c Config) public() bool {
	return c.Mode == "" || c.Mode == "public"
}

type Deps struct {
	Client   transport.Client
	Registry *registry.Registry
	Engine   Moderator
	Observer Observer
	History  HistoryRecorder
	Sudo     SudoSource
	Bans     authz.BanStore
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

// Dispatcher implements transport.EventHandler.
type Dispatcher struct {
	d   Deps
	cfg Config
	log *zap.Logger
	now func() time.Time

	meta     singleflight.Group
	inflight sync.WaitGroup
}

var _ transport.EventHandler = (*Dispatcher)(nil)

func New(d Deps, cfg Config) *Dispatcher {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.DefaultReact == "" {
		cfg.DefaultReact = DefaultReact
	}
	return &Dispatcher{d: d, cfg: cfg, log: log.Named("dispatch"), now: time.Now}
}

// Wait blocks until every handler started so far has returned.
func (d *Dispatcher) Wait() {
	d.inflight.Wait()
}

// HandleMessages processes the notify-class messages of an upsert in order.
func (d *Dispatcher) HandleMessages(ctx context.Context, upsert wa.MessagesUpsert) {
	if upsert.Type != wa.UpsertNotify {
		return
	}
	for i := range upsert.Messages {
		raw := &upsert.Messages[i]
		if raw.Message == nil {
			continue
		}
		d.dispatch(ctx, raw)
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, raw *wa.WebMessage) {
	self := d.d.Client.SelfID()
	msg := NewContext(raw, self, d.now())
	trace := ingesttrace.New(msg.EventID, msg.Origin, msg.Sender)
	defer trace.Log(d.log, "dispatch trace")
	trace.Mark(ingesttrace.StageNormalized)
	d.d.Metrics.IncEvent(string(msg.Content.Kind()))

	if d.d.History != nil {
		d.d.History.Add(raw)
	}

	meta := d.groupMetadata(ctx, msg)
	flags := authz.Evaluate(authz.Input{
		Sender:      msg.Sender,
		Origin:      msg.Origin,
		IsGroup:     msg.IsGroup,
		GroupAdmins: meta.Admins(),
		BotID:       self,
		Owner:       d.cfg.Owner,
		Developers:  d.cfg.Developers,
		Sudo:        d.sudo(ctx),
	})

	if d.d.Observer != nil {
		d.d.Observer.Observe(ctx, msg)
	}
	if d.d.Engine != nil {
		moderation.LogOutcomes(d.log, msg.EventID, d.d.Engine.Evaluate(ctx, msg, flags))
	}
	trace.Mark(ingesttrace.StageModerated)

	inv, ok := ParseInvocation(msg.Text, d.cfg.Prefix)
	if !ok {
		trace.Mark(ingesttrace.StageDropped("no_command"))
		return
	}
	desc, ok := d.d.Registry.Lookup(inv.Name)
	if !ok {
		trace.Mark(ingesttrace.StageDropped("unknown_command"))
		return
	}
	trace.Mark(ingesttrace.StageResolved)

	if gate := d.gate(ctx, msg, flags); gate != "" {
		d.d.Metrics.IncGateRejection(gate)
		trace.Mark(ingesttrace.StageDropped(gate))
		d.log.Debug("command gated",
			zap.String("command", desc.Name),
			zap.String("gate", gate),
			zap.String("sender", msg.Sender),
			zap.String("origin", msg.Origin),
		)
		return
	}

	if desc.PremiumOnly && !flags.IsPremium {
		d.d.Metrics.IncCommand(desc.Name, "premium_required")
		trace.Mark(ingesttrace.StageDropped("premium_required"))
		if err := transport.Reply(ctx, d.d.Client, msg.Origin, raw, msgPremiumOnly); err != nil {
			d.log.Warn("premium notice failed", zap.String("command", desc.Name), zap.Error(err))
		}
		return
	}

	emoji := desc.React
	if emoji == "" {
		emoji = d.cfg.DefaultReact
	}
	if err := transport.React(ctx, d.d.Client, msg.Origin, raw.Key, emoji); err != nil {
		d.log.Warn("react failed", zap.String("command", desc.Name), zap.Error(err))
	}

	opts := registry.NewOptions(msg, inv, flags, meta, d.cfg.Prefix, self, d.d.Client)
	trace.Mark(ingesttrace.StageInvoked)
	d.inflight.Add(1)
	go d.invoke(context.WithoutCancel(ctx), desc, opts)
}

// gate applies the command gates in order and returns the first one that rejects,
// or "" when the command may run.
func (d *Dispatcher) gate(ctx context.Context, msg *core.MessageContext, flags core.Flags) string {
	if !d.cfg.public() && !flags.IsPremium {
		return GateMode
	}
	if d.cfg.RestrictedGroup != "" && msg.Origin == d.cfg.RestrictedGroup && !flags.IsDeveloper &&
		wa.PhoneJID(msg.Sender) != wa.PhoneJID(d.cfg.RestrictedAllowed) {
		return GateRestricted
	}
	if flags.IsPremium {
		return ""
	}
	banned, err := authz.BanChecker{Store: d.d.Bans}.Banned(ctx, msg.Sender, msg.Origin, msg.IsGroup)
	if err != nil {
		d.log.Warn("ban lookup failed", zap.String("sender", msg.Sender), zap.Error(err))
		return ""
	}
	if banned {
		return GateBanned
	}
	return ""
}

func (d *Dispatcher) invoke(ctx context.Context, desc *registry.Descriptor, opts *registry.Options) {
	defer d.inflight.Done()
	log := d.log.With(zap.String("command", desc.Name), zap.String("origin", opts.Origin), zap.String("sender", opts.Sender))
	start := time.Now()

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
				log.Error("handler panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			}
		}()
		err = desc.Handler(ctx, opts.Origin, d.d.Client, opts)
	}()

	if err == nil {
		d.d.Metrics.IncCommand(desc.Name, "ok")
		log.Debug("command done", zap.Duration("took", time.Since(start)))
		return
	}
	d.d.Metrics.IncCommand(desc.Name, "error")
	d.d.Metrics.IncHandlerFailure(desc.Name)
	log.Error("command failed", zap.Error(err))
	if rerr := opts.Reply(ctx, msgHandlerFailed); rerr != nil {
		log.Warn("failure notice not sent", zap.Error(rerr))
	}
}

// groupMetadata fetches metadata for group messages; concurrent fetches for the same
// group share one request. Failures degrade to metadata with the id only.
func (d *Dispatcher) groupMetadata(ctx context.Context, msg *core.MessageContext) wa.GroupMetadata {
	if !msg.IsGroup {
		return wa.GroupMetadata{}
	}
	v, err, _ := d.meta.Do(msg.Origin, func() (any, error) {
		return d.d.Client.GroupMetadata(ctx, msg.Origin)
	})
	if err != nil {
		d.log.Warn("group metadata unavailable", zap.String("group", msg.Origin), zap.Error(err))
		return wa.GroupMetadata{ID: msg.Origin}
	}
	return v.(wa.GroupMetadata)
}

func (d *Dispatcher) sudo(ctx context.Context) []string {
	if d.d.Sudo == nil {
		return nil
	}
	ids, err := d.d.Sudo.List(ctx)
	if err != nil {
		d.log.Warn("sudo list unavailable", zap.Error(err))
		return nil
	}
	return ids
}

// HandleParticipants runs the membership rules.
func (d *Dispatcher) HandleParticipants(ctx context.Context, update wa.ParticipantsUpdate) {
	d.d.Metrics.IncEvent("participants")
	if d.d.Engine == nil {
		return
	}
	moderation.LogOutcomes(d.log, update.ID+":"+string(update.Action), d.d.Engine.HandleParticipants(ctx, update))
}

// HandleConnection greets the bot's own chat once the session is open.
func (d *Dispatcher) HandleConnection(ctx context.Context, update wa.ConnectionUpdate) {
	d.d.Metrics.IncEvent("connection")
	d.log.Info("connection update", zap.String("state", update.Connection), zap.String("self", update.Self))
	if update.Connection != "open" {
		return
	}
	self := d.d.Client.SelfID()
	if self == "" {
		self = wa.NormalizeJID(update.Self)
	}
	if self == "" {
		return
	}
	if err := d.d.Client.SendMessage(ctx, self, wa.Content{Text: d.banner()}, wa.SendOptions{}); err != nil {
		d.log.Warn("startup banner failed", zap.Error(err))
	}
}

func (d *Dispatcher) banner() string {
	count := 0
	if d.d.Registry != nil {
		count = d.d.Registry.Len()
	}
	mode := d.cfg.Mode
	if mode == "" {
		mode = "public"
	}
	return fmt.Sprintf("╭────《 OVL-MD 》─────⊷\n⫸  *Préfixe*       : %s\n⫸  *Mode*          : %s\n⫸  *Commandes*     : %d\n╰──────────────────⊷",
		d.cfg.Prefix, mode, count)
}
