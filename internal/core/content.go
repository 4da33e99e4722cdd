package core

import "github.com/nekodylan/OVL-MD/internal/wa"

type ContentKind string

const (
	KindText        ContentKind = "text"
	KindImage       ContentKind = "image"
	KindVideo       ContentKind = "video"
	KindAudio       ContentKind = "audio"
	KindButtonReply ContentKind = "button_reply"
	KindListReply   ContentKind = "list_reply"
	KindProtocol    ContentKind = "protocol"
	KindViewOnce    ContentKind = "view_once"
	KindUnknown     ContentKind = "unknown"
)

// Content is the classified body of an inbound message. The set of
// implementations is closed to this package.
type Content interface {
	Kind() ContentKind
	content()
}

type Text struct{ Body string }

type Image struct {
	Caption string
	Media   *wa.MediaMessage
}

type Video struct {
	Caption string
	Media   *wa.MediaMessage
}

type Audio struct {
	Media *wa.MediaMessage
}

type ButtonReply struct{ SelectedID string }

type ListReply struct{ SelectedRowID string }

// Protocol is a control event such as a revoke. Target is the key of the message
// it refers to.
type Protocol struct {
	Type   string
	Target wa.MessageKey
}

// ViewOnce wraps media sent inside a view-once envelope.
type ViewOnce struct {
	Inner Content
}

type Unknown struct{}

func (Text) Kind() ContentKind        { return KindText }
func (Image) Kind() ContentKind       { return KindImage }
func (Video) Kind() ContentKind       { return KindVideo }
func (Audio) Kind() ContentKind       { return KindAudio }
func (ButtonReply) Kind() ContentKind { return KindButtonReply }
func (ListReply) Kind() ContentKind   { return KindListReply }
func (Protocol) Kind() ContentKind    { return KindProtocol }
func (ViewOnce) Kind() ContentKind    { return KindViewOnce }
func (Unknown) Kind() ContentKind     { return KindUnknown }

func (Text) content()        {}
func (Image) content()       {}
func (Video) content()       {}
func (Audio) content()       {}
func (ButtonReply) content() {}
func (ListReply) content()   {}
func (Protocol) content()    {}
func (ViewOnce) content()    {}
func (Unknown) content()     {}

// TextOf extracts the user-visible text of a content value: body, caption, or the
// selected id of an interactive reply.
func TextOf(c Content) string {
	switch v := c.(type) {
	case Text:
		return v.Body
	case Image:
		return v.Caption
	case Video:
		return v.Caption
	case ButtonReply:
		return v.SelectedID
	case ListReply:
		return v.SelectedRowID
	case ViewOnce:
		return TextOf(v.Inner)
	}
	return ""
}

// MediaOf returns the media payload carried by c, if any.
func MediaOf(c Content) (*wa.MediaMessage, bool) {
	switch v := c.(type) {
	case Image:
		return v.Media, v.Media != nil
	case Video:
		return v.Media, v.Media != nil
	case Audio:
		return v.Media, v.Media != nil
	}
	return nil, false
}
