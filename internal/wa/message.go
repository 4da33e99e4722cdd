// Package wa holds the JSON shapes exchanged with the WhatsApp gateway process.
package wa

// UpsertNotify is the delivery class of freshly received messages.
const UpsertNotify = "notify"

type MessagesUpsert struct {
	Type     string       `json:"type"`
	Messages []WebMessage `json:"messages"`
}

type MessageKey struct {
	RemoteJID   string `json:"remoteJid"`
	FromMe      bool   `json:"fromMe"`
	ID          string `json:"id"`
	Participant string `json:"participant,omitempty"`
}

type WebMessage struct {
	Key       MessageKey `json:"key"`
	PushName  string     `json:"pushName,omitempty"`
	Timestamp int64      `json:"messageTimestamp,omitempty"`
	Message   *Message   `json:"message,omitempty"`
}

type Message struct {
	Conversation           string                  `json:"conversation,omitempty"`
	ExtendedTextMessage    *ExtendedTextMessage    `json:"extendedTextMessage,omitempty"`
	ImageMessage           *MediaMessage           `json:"imageMessage,omitempty"`
	VideoMessage           *MediaMessage           `json:"videoMessage,omitempty"`
	AudioMessage           *MediaMessage           `json:"audioMessage,omitempty"`
	ButtonsResponseMessage *ButtonsResponseMessage `json:"buttonsResponseMessage,omitempty"`
	ListResponseMessage    *ListResponseMessage    `json:"listResponseMessage,omitempty"`
	ProtocolMessage        *ProtocolMessage        `json:"protocolMessage,omitempty"`
	ViewOnceMessage        *FutureProofMessage     `json:"viewOnceMessage,omitempty"`
	ViewOnceMessageV2      *FutureProofMessage     `json:"viewOnceMessageV2,omitempty"`
}

type ContextInfo struct {
	StanzaID      string   `json:"stanzaId,omitempty"`
	Participant   string   `json:"participant,omitempty"`
	QuotedMessage *Message `json:"quotedMessage,omitempty"`
	MentionedJID  []string `json:"mentionedJid,omitempty"`
}

type ExtendedTextMessage struct {
	Text        string       `json:"text,omitempty"`
	ContextInfo *ContextInfo `json:"contextInfo,omitempty"`
}

type MediaMessage struct {
	URL         string       `json:"url,omitempty"`
	DirectPath  string       `json:"directPath,omitempty"`
	MediaKey    string       `json:"mediaKey,omitempty"`
	Mimetype    string       `json:"mimetype,omitempty"`
	Caption     string       `json:"caption,omitempty"`
	ViewOnce    *bool        `json:"viewOnce,omitempty"`
	PTT         bool         `json:"ptt,omitempty"`
	ContextInfo *ContextInfo `json:"contextInfo,omitempty"`
}

type ButtonsResponseMessage struct {
	SelectedButtonID string `json:"selectedButtonId"`
}

type ListResponseMessage struct {
	SingleSelectReply struct {
		SelectedRowID string `json:"selectedRowId"`
	} `json:"singleSelectReply"`
}

// ProtocolRevoke is the protocol message type emitted when a message is deleted for everyone.
const ProtocolRevoke = "REVOKE"

type ProtocolMessage struct {
	Key  *MessageKey `json:"key,omitempty"`
	Type string      `json:"type,omitempty"`
}

type FutureProofMessage struct {
	Message *Message `json:"message,omitempty"`
}

// ContextInfo returns the first context info attached to the message, if any.
func (m *Message) ContextInfo() *ContextInfo {
	if m == nil {
		return nil
	}
	switch {
	case m.ExtendedTextMessage != nil && m.ExtendedTextMessage.ContextInfo != nil:
		return m.ExtendedTextMessage.ContextInfo
	case m.ImageMessage != nil && m.ImageMessage.ContextInfo != nil:
		return m.ImageMessage.ContextInfo
	case m.VideoMessage != nil && m.VideoMessage.ContextInfo != nil:
		return m.VideoMessage.ContextInfo
	case m.AudioMessage != nil && m.AudioMessage.ContextInfo != nil:
		return m.AudioMessage.ContextInfo
	}
	return nil
}

type ParticipantAction string

const (
	ParticipantAdd     ParticipantAction = "add"
	ParticipantRemove  ParticipantAction = "remove"
	ParticipantPromote ParticipantAction = "promote"
	ParticipantDemote  ParticipantAction = "demote"
)

type ParticipantsUpdate struct {
	ID           string            `json:"id"`
	Participants []string          `json:"participants"`
	Action       ParticipantAction `json:"action"`
	// Author is who made the change, when the gateway knows it.
	Author string `json:"author,omitempty"`
}

type ConnectionUpdate struct {
	Connection string `json:"connection"`
	Self       string `json:"self,omitempty"`
}

type Participant struct {
	ID    string `json:"id"`
	Admin string `json:"admin,omitempty"`
}

// IsAdmin reports whether the participant holds admin or superadmin rights.
func (p Participant) IsAdmin() bool {
	return p.Admin == "admin" || p.Admin == "superadmin"
}

type GroupMetadata struct {
	ID           string        `json:"id"`
	Subject      string        `json:"subject"`
	Desc         string        `json:"desc,omitempty"`
	Participants []Participant `json:"participants"`
}

// Admins returns the normalized jids of the group's admins.
func (g GroupMetadata) Admins() []string {
	var out []string
	for _, p := range g.Participants {
		if p.IsAdmin() {
			out = append(out, NormalizeJID(p.ID))
		}
	}
	return out
}
