package core

import (
	"time"

	"github.com/nekodylan/OVL-MD/internal/wa"
)

// MessageContext is the normalized view of one inbound message. It is built once
// per dispatch and never mutated afterwards.
type MessageContext struct {
	EventID      string
	Sender       string // normalized, device suffix stripped
	Origin       string // chat the message arrived in
	IsGroup      bool
	FromMe       bool
	PushName     string
	Text         string
	Content      Content
	Mentions     []string
	Quoted       *wa.Message
	QuotedAuthor string
	ReceivedAt   time.Time
	Raw          *wa.WebMessage
}

// IsStatus reports whether the message is a status broadcast.
func (m *MessageContext) IsStatus() bool {
	return m.Origin == wa.StatusBroadcast
}

// Invocation is a parsed command: lower-cased name plus whitespace-split args.
type Invocation struct {
	Name string
	Args []string
}

// Flags is the authorization snapshot computed for one dispatch.
type Flags struct {
	IsGroupAdmin bool
	IsBotAdmin   bool
	IsPremium    bool
	IsDeveloper  bool
	IsBanned     bool
}

// Authorized reports whether the sender is exempt from moderation: a group admin or a
// premium account.
func (f Flags) Authorized() bool {
	return f.IsGroupAdmin || f.IsPremium
}

type BanType string

const (
	BanUser  BanType = "user"
	BanGroup BanType = "group"
)

type BanRecord struct {
	ID   string  `db:"id"`
	Type BanType `db:"type"`
}

type GroupSettings struct {
	GroupID     string `db:"group_id"`
	Welcome     bool   `db:"welcome"`
	Goodbye     bool   `db:"goodbye"`
	AntiPromote bool   `db:"antipromote"`
	AntiDemote  bool   `db:"antidemote"`
}

type RankRecord struct {
	ID       string `db:"id"`
	Name     string `db:"name"`
	Level    int    `db:"level"`
	Exp      int    `db:"exp"`
	Messages int    `db:"messages"`
}

type HistoryEntry struct {
	ID        string    `db:"id"`
	ChatID    string    `db:"chat_id"`
	Sender    string    `db:"sender"`
	FromMe    bool      `db:"from_me"`
	Payload   string    `db:"payload"`
	CreatedAt time.Time `db:"-"`
}
