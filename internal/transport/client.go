// Package transport talks to the WhatsApp gateway process and defines the client
// surface the rest of the bot depends on.
package transport

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/nekodylan/OVL-MD/internal/wa"
)

// Client is the set of protocol operations the bot performs.
type Client interface {
	SelfID() string
	SendMessage(ctx context.Context, to string, content wa.Content, opts wa.SendOptions) error
	DeleteMessage(ctx context.Context, chat string, key wa.MessageKey) error
	UpdateParticipants(ctx context.Context, group string, ids []string, action wa.ParticipantAction) error
	GroupMetadata(ctx context.Context, group string) (wa.GroupMetadata, error)
	ProfilePhotoURL(ctx context.Context, jid string) (string, error)
	DownloadMedia(ctx context.Context, ref wa.MediaRef) ([]byte, error)
	ReadMessages(ctx context.Context, keys []wa.MessageKey) error
	SendPresence(ctx context.Context, chat string, presence wa.Presence) error
}

// EventHandler receives decoded gateway events.
type EventHandler interface {
	HandleMessages(ctx context.Context, upsert wa.MessagesUpsert)
	HandleParticipants(ctx context.Context, update wa.ParticipantsUpdate)
	HandleConnection(ctx context.Context, update wa.ConnectionUpdate)
}

var ErrClosed = errors.New("transport: connection closed")

// RemoteError is an error reported by the gateway for a request.
type RemoteError struct {
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("transport: %s: %s", e.Method, e.Message)
}

// React sends an emoji reaction to the message identified by key.
func React(ctx context.Context, c Client, chat string, key wa.MessageKey, emoji string) error {
	return c.SendMessage(ctx, chat, wa.Content{React: &wa.Reaction{Text: emoji, Key: key}}, wa.SendOptions{})
}

// Reply sends text to chat quoting the given message.
func Reply(ctx context.Context, c Client, chat string, quoted *wa.WebMessage, text string) error {
	return c.SendMessage(ctx, chat, wa.Content{Text: text}, wa.SendOptions{Quoted: quoted})
}
