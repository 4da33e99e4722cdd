package registry

import (
	"context"

	"github.com/nekodylan/OVL-MD/internal/core"
	"github.com/nekodylan/OVL-MD/internal/transport"
	"github.com/nekodylan/OVL-MD/internal/wa"
)

// Options is the per-dispatch bundle every handler receives.
type Options struct {
	IsGroup      bool
	Members      []wa.Participant
	GroupAdmins  []string
	IsGroupAdmin bool
	IsBotAdmin   bool
	Group        wa.GroupMetadata
	GroupName    string

	Sender   string
	PushName string
	BotID    string
	// BotNumber is the bot id without its server part.
	BotNumber string

	IsPremium   bool
	IsDeveloper bool
	IsBanned    bool

	Prefix  string
	Command string
	Args    []string

	Quoted       *wa.Message
	QuotedAuthor string
	Mentions     []string
	Raw          *wa.WebMessage
	Origin       string

	client transport.Client
}

// NewOptions builds the bundle for one invocation.
func NewOptions(msg *core.MessageContext, inv core.Invocation, flags core.Flags, meta wa.GroupMetadata, prefix, botID string, client transport.Client) *Options {
	admins := meta.Admins()
	return &Options{
		IsGroup:      msg.IsGroup,
		Members:      meta.Participants,
		GroupAdmins:  admins,
		IsGroupAdmin: flags.IsGroupAdmin,
		IsBotAdmin:   flags.IsBotAdmin,
		Group:        meta,
		GroupName:    meta.Subject,
		Sender:       msg.Sender,
		PushName:     msg.PushName,
		BotID:        botID,
		BotNumber:    wa.User(botID),
		IsPremium:    flags.IsPremium,
		IsDeveloper:  flags.IsDeveloper,
		IsBanned:     flags.IsBanned,
		Prefix:       prefix,
		Command:      inv.Name,
		Args:         inv.Args,
		Quoted:       msg.Quoted,
		QuotedAuthor: msg.QuotedAuthor,
		Mentions:     msg.Mentions,
		Raw:          msg.Raw,
		Origin:       msg.Origin,
		client:       client,
	}
}

// Reply answers the invoking message with text.
func (o *Options) Reply(ctx context.Context, text string) error {
	if o.client == nil {
		return transport.ErrClosed
	}
	return transport.Reply(ctx, o.client, o.Origin, o.Raw, text)
}

// Target returns the member a command acts on: the first mention, else the author of
// the quoted message.
func (o *Options) Target() string {
	if len(o.Mentions) > 0 {
		return wa.NormalizeJID(o.Mentions[0])
	}
	return wa.NormalizeJID(o.QuotedAuthor)
}
