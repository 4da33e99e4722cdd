package transport

import (
	"context"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"

	"github.com/nekodylan/OVL-MD/internal/wa"
)

// FetchMedia downloads an inbound attachment and returns it ready to re-send. The
// declared mimetype is kept when present, otherwise it is sniffed from the bytes.
func FetchMedia(ctx context.Context, c Client, kind string, m *wa.MediaMessage) (*wa.Media, error) {
	if m == nil {
		return nil, errors.New("no media to fetch")
	}
	data, err := c.DownloadMedia(ctx, wa.MediaRef{Kind: kind, Message: m})
	if err != nil {
		return nil, errors.Wrapf(err, "download %s", kind)
	}
	if len(data) == 0 {
		return nil, errors.Errorf("download %s: empty body", kind)
	}
	mime := m.Mimetype
	if mime == "" {
		mime = mimetype.Detect(data).String()
	}
	return &wa.Media{Data: data, Mimetype: mime}, nil
}
