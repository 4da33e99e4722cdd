package wa

// Media is an outbound attachment, either inline bytes or a URL the gateway fetches.
type Media struct {
	URL      string `json:"url,omitempty"`
	Data     []byte `json:"data,omitempty"`
	Mimetype string `json:"mimetype,omitempty"`
}

type Reaction struct {
	Text string     `json:"text"`
	Key  MessageKey `json:"key"`
}

// Content is the payload of an outbound sendMessage call. Exactly one of the
// body fields should be set.
type Content struct {
	Text     string      `json:"text,omitempty"`
	Image    *Media      `json:"image,omitempty"`
	Video    *Media      `json:"video,omitempty"`
	Audio    *Media      `json:"audio,omitempty"`
	Caption  string      `json:"caption,omitempty"`
	PTT      bool        `json:"ptt,omitempty"`
	Mentions []string    `json:"mentions,omitempty"`
	React    *Reaction   `json:"react,omitempty"`
	Forward  *WebMessage `json:"forward,omitempty"`
}

type SendOptions struct {
	Quoted        *WebMessage `json:"quoted,omitempty"`
	StatusJIDList []string    `json:"statusJidList,omitempty"`
	Broadcast     bool        `json:"broadcast,omitempty"`
}

type Presence string

const (
	PresenceAvailable Presence = "available"
	PresenceComposing Presence = "composing"
	PresenceRecording Presence = "recording"
)

// MediaRef identifies media to download through the gateway.
type MediaRef struct {
	Kind    string        `json:"kind"`
	Message *MediaMessage `json:"message"`
}
