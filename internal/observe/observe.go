// Package observe holds the passive per-message behaviours that run before
// moderation: activity ranks, presence updates and status automation.
package observe

import (
	"context"
	"fmt"
	"math"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nekodylan/OVL-MD/internal/core"
	"github.com/nekodylan/OVL-MD/internal/transport"
	"github.com/nekodylan/OVL-MD/internal/wa"
)

// ExpPerMessage is the experience granted for each text message.
const ExpPerMessage = 10

// StatusLike is the reaction left on statuses when liking is enabled.
const StatusLike = "💚"

type RankStore interface {
	Bump(ctx context.Context, id, name string, exp int) (core.RankRecord, error)
	SetLevel(ctx context.Context, id string, level int) error
}

type Options struct {
	LevelUp bool
	// Presence is enligne, ecrit or enregistre; anything else sends nothing.
	Presence       string
	ReadStatus     bool
	LikeStatus     bool
	DownloadStatus bool
}

type Observer struct {
	client transport.Client
	ranks  RankStore
	opts   Options
	log    *zap.Logger
}

func New(client transport.Client, ranks RankStore, opts Options, log *zap.Logger) *Observer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Observer{client: client, ranks: ranks, opts: opts, log: log.Named("observe")}
}

// Observe runs every behaviour against msg. Failures are logged and never stop the
// remaining behaviours.
func (o *Observer) Observe(ctx context.Context, msg *core.MessageContext) {
	steps := []struct {
		name string
		run  func(context.Context, *core.MessageContext) error
	}{
		{"rank", o.rank},
		{"presence", o.presence},
		{"status", o.status},
	}
	for _, s := range steps {
		if err := s.run(ctx, msg); err != nil {
			o.log.Warn(s.name+" failed", zap.String("event", msg.EventID), zap.Error(err))
		}
	}
}

// Level maps experience onto a level: floor(sqrt(exp/100)).
func Level(exp int) int {
	if exp <= 0 {
		return 0
	}
	return int(math.Floor(math.Sqrt(float64(exp) / 100)))
}

func (o *Observer) rank(ctx context.Context, msg *core.MessageContext) error {
	if o.ranks == nil || msg.Text == "" || !wa.IsUser(msg.Sender) {
		return nil
	}
	rec, err := o.ranks.Bump(ctx, msg.Sender, msg.PushName, ExpPerMessage)
	if err != nil {
		return err
	}
	level := Level(rec.Exp)
	if level <= rec.Level {
		return nil
	}
	if err := o.ranks.SetLevel(ctx, msg.Sender, level); err != nil {
		return err
	}
	if !o.opts.LevelUp {
		return nil
	}
	text := fmt.Sprintf("Félicitations %s! Vous avez atteint le niveau %d! 🎉", msg.PushName, level)
	return o.client.SendMessage(ctx, msg.Origin, wa.Content{Text: text}, wa.SendOptions{})
}

// PresenceFor maps the PRESENCE setting onto a presence state.
func PresenceFor(setting string) (wa.Presence, bool) {
	switch setting {
	case "enligne":
		return wa.PresenceAvailable, true
	case "ecrit":
		return wa.PresenceComposing, true
	case "enregistre":
		return wa.PresenceRecording, true
	}
	return "", false
}

func (o *Observer) presence(ctx context.Context, msg *core.MessageContext) error {
	p, ok := PresenceFor(o.opts.Presence)
	if !ok {
		return nil
	}
	return o.client.SendPresence(ctx, msg.Origin, p)
}

func (o *Observer) status(ctx context.Context, msg *core.MessageContext) error {
	if !msg.IsStatus() || msg.Raw == nil {
		return nil
	}
	key := msg.Raw.Key
	self := o.client.SelfID()

	if o.opts.ReadStatus {
		if err := o.client.ReadMessages(ctx, []wa.MessageKey{key}); err != nil {
			return errors.Wrap(err, "read status")
		}
	}
	if o.opts.LikeStatus {
		opts := wa.SendOptions{StatusJIDList: []string{key.Participant, self}, Broadcast: true}
		react := wa.Content{React: &wa.Reaction{Text: StatusLike, Key: key}}
		if err := o.client.SendMessage(ctx, msg.Origin, react, opts); err != nil {
			return errors.Wrap(err, "like status")
		}
	}
	if o.opts.DownloadStatus && self != "" {
		if err := o.saveStatus(ctx, msg, self); err != nil {
			return errors.Wrap(err, "save status")
		}
	}
	return nil
}

func (o *Observer) saveStatus(ctx context.Context, msg *core.MessageContext, self string) error {
	quoted := wa.SendOptions{Quoted: msg.Raw}
	switch c := msg.Content.(type) {
	case core.Text:
		if c.Body == "" {
			return nil
		}
		return o.client.SendMessage(ctx, self, wa.Content{Text: c.Body}, quoted)
	case core.Image:
		media, err := transport.FetchMedia(ctx, o.client, string(core.KindImage), c.Media)
		if err != nil {
			return err
		}
		return o.client.SendMessage(ctx, self, wa.Content{Image: media, Caption: c.Caption}, quoted)
	case core.Video:
		media, err := transport.FetchMedia(ctx, o.client, string(core.KindVideo), c.Media)
		if err != nil {
			return err
		}
		return o.client.SendMessage(ctx, self, wa.Content{Video: media, Caption: c.Caption}, quoted)
	}
	return nil
}
