package transport

import (
	"encoding/json"

	"github.com/nekodylan/OVL-MD/internal/wa"
)

const (
	frameEvent    = "event"
	frameRequest  = "request"
	frameResponse = "response"
)

const (
	EventMessagesUpsert     = "messages.upsert"
	EventParticipantsUpdate = "group-participants.update"
	EventConnectionUpdate   = "connection.update"
)

const (
	methodSendMessage        = "sendMessage"
	methodDeleteMessage      = "deleteMessage"
	methodParticipantsUpdate = "groupParticipantsUpdate"
	methodGroupMetadata      = "groupMetadata"
	methodProfilePicture     = "profilePictureUrl"
	methodDownloadMedia      = "downloadMedia"
	methodReadMessages       = "readMessages"
	methodPresence           = "sendPresenceUpdate"
)

// Frame is one JSON message on the gateway socket.
type Frame struct {
	Type   string          `json:"type"`
	ID     string          `json:"id,omitempty"`
	Event  string          `json:"event,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *FrameError     `json:"error,omitempty"`
}

type FrameError struct {
	Message string `json:"message"`
}

type sendParams struct {
	JID     string         `json:"jid"`
	Content wa.Content     `json:"content"`
	Options wa.SendOptions `json:"options"`
}

type deleteParams struct {
	JID string        `json:"jid"`
	Key wa.MessageKey `json:"key"`
}

type participantsParams struct {
	JID          string               `json:"jid"`
	Participants []string             `json:"participants"`
	Action       wa.ParticipantAction `json:"action"`
}

type jidParams struct {
	JID  string `json:"jid"`
	Type string `json:"type,omitempty"`
}

type readParams struct {
	Keys []wa.MessageKey `json:"keys"`
}

type presenceParams struct {
	JID      string      `json:"jid"`
	Presence wa.Presence `json:"presence"`
}

type urlResult struct {
	URL string `json:"url"`
}

type mediaResult struct {
	Data []byte `json:"data"`
}
