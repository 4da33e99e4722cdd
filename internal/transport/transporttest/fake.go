// Package transporttest provides an in-memory transport.Client for tests.
package transporttest

import (
	"context"
	"errors"
	"sync"

	"github.com/nekodylan/OVL-MD/internal/wa"
)

// Call is one recorded client operation.
type Call struct {
	Method   string
	Chat     string
	Content  wa.Content
	Options  wa.SendOptions
	Key      wa.MessageKey
	IDs      []string
	Action   wa.ParticipantAction
	Presence wa.Presence
}

// Fake records every call. Its fields may be set before use; after that, use the
// accessor methods.
type Fake struct {
	Self     string
	Groups   map[string]wa.GroupMetadata
	Photos   map[string]string
	Media    []byte
	SendErr  error
	MetaErr  error
	MediaErr error

	// FailSendTo makes SendMessage fail for the given chats only.
	FailSendTo map[string]bool
	// FailSends makes the next n SendMessage calls fail.
	FailSends  int

	mu    sync.Mutex
	calls []Call
}

func New(self string) *Fake {
	return &Fake{
		Self:   self,
		Groups: make(map[string]wa.GroupMetadata),
		Photos: make(map[string]string),
	}
}

func (f *Fake) record(c Call) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
}

// Calls returns a copy of the recorded calls, optionally filtered by method.
func (f *Fake) Calls(methods ...string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(methods) == 0 {
		return append([]Call(nil), f.calls...)
	}
	var out []Call
	for _, c := range f.calls {
		for _, m := range methods {
			if c.Method == m {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// Texts returns the text bodies sent to chat, in order.
func (f *Fake) Texts(chat string) []string {
	var out []string
	for _, c := range f.Calls("SendMessage") {
		if c.Chat == chat && c.Content.Text != "" {
			out = append(out, c.Content.Text)
		}
	}
	return out
}

// Reactions returns the reaction emojis sent, in order.
func (f *Fake) Reactions() []string {
	var out []string
	for _, c := range f.Calls("SendMessage") {
		if c.Content.React != nil {
			out = append(out, c.Content.React.Text)
		}
	}
	return out
}

func (f *Fake) Reset() {
	f.mu.Lock()
	f.calls = nil
	f.mu.Unlock()
}

func (f *Fake) SelfID() string { return f.Self }

func (f *Fake) SendMessage(_ context.Context, to string, content wa.Content, opts wa.SendOptions) error {
	f.record(Call{Method: "SendMessage", Chat: to, Content: content, Options: opts})
	f.mu.Lock()
	failNext := f.FailSends > 0
	if failNext {
		f.FailSends--
	}
	f.mu.Unlock()
	if failNext || f.FailSendTo[to] {
		return errors.New("transporttest: send refused")
	}
	return f.SendErr
}

func (f *Fake) DeleteMessage(_ context.Context, chat string, key wa.MessageKey) error {
	f.record(Call{Method: "DeleteMessage", Chat: chat, Key: key})
	return nil
}

func (f *Fake) UpdateParticipants(_ context.Context, group string, ids []string, action wa.ParticipantAction) error {
	f.record(Call{Method: "UpdateParticipants", Chat: group, IDs: append([]string(nil), ids...), Action: action})
	return nil
}

func (f *Fake) GroupMetadata(_ context.Context, group string) (wa.GroupMetadata, error) {
	f.record(Call{Method: "GroupMetadata", Chat: group})
	if f.MetaErr != nil {
		return wa.GroupMetadata{}, f.MetaErr
	}
	return f.Groups[group], nil
}

func (f *Fake) ProfilePhotoURL(_ context.Context, jid string) (string, error) {
	f.record(Call{Method: "ProfilePhotoURL", Chat: jid})
	url, ok := f.Photos[jid]
	if !ok {
		return "", errors.New("transporttest: no profile picture")
	}
	return url, nil
}

func (f *Fake) DownloadMedia(_ context.Context, ref wa.MediaRef) ([]byte, error) {
	f.record(Call{Method: "DownloadMedia", Chat: ref.Kind})
	if f.MediaErr != nil {
		return nil, f.MediaErr
	}
	return f.Media, nil
}

func (f *Fake) ReadMessages(_ context.Context, keys []wa.MessageKey) error {
	for _, k := range keys {
		f.record(Call{Method: "ReadMessages", Chat: k.RemoteJID, Key: k})
	}
	return nil
}

func (f *Fake) SendPresence(_ context.Context, chat string, presence wa.Presence) error {
	f.record(Call{Method: "SendPresence", Chat: chat, Presence: presence})
	return nil
}
