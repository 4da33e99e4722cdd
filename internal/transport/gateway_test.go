package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/nekodylan/OVL-MD/internal/wa"
)

type recordingHandler struct {
	mu       sync.Mutex
	upserts  []wa.MessagesUpsert
	updates  []wa.ParticipantsUpdate
	conns    []wa.ConnectionUpdate
	received chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{received: make(chan struct{}, 256)}
}

func (h *recordingHandler) HandleMessages(_ context.Context, u wa.MessagesUpsert) {
	h.mu.Lock()
	h.upserts = append(h.upserts, u)
	h.mu.Unlock()
	h.received <- struct{}{}
}

func (h *recordingHandler) HandleParticipants(_ context.Context, u wa.ParticipantsUpdate) {
	h.mu.Lock()
	h.updates = append(h.updates, u)
	h.mu.Unlock()
	h.received <- struct{}{}
}

func (h *recordingHandler) HandleConnection(_ context.Context, u wa.ConnectionUpdate) {
	h.mu.Lock()
	h.conns = append(h.conns, u)
	h.mu.Unlock()
	h.received <- struct{}{}
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
	}
}

// fakeGateway answers requests and lets the test push frames to the bot.
type fakeGateway struct {
	mu       sync.Mutex
	conn     *websocket.Conn
	requests []Frame
	ready    chan struct{}
	auth     string
}

func newFakeGateway(t *testing.T) (*fakeGateway, *httptest.Server) {
	fg := &fakeGateway{ready: make(chan struct{}, 1)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		fg.mu.Lock()
		fg.conn = conn
		fg.auth = r.Header.Get("Authorization")
		fg.mu.Unlock()
		fg.ready <- struct{}{}

		ctx := r.Context()
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var f Frame
			if err := json.Unmarshal(data, &f); err != nil {
				continue
			}
			fg.mu.Lock()
			fg.requests = append(fg.requests, f)
			fg.mu.Unlock()
			fg.answer(ctx, conn, f)
		}
	}))
	t.Cleanup(srv.Close)
	return fg, srv
}

func (fg *fakeGateway) answer(ctx context.Context, conn *websocket.Conn, req Frame) {
	resp := Frame{Type: frameResponse, ID: req.ID}
	switch req.Method {
	case methodGroupMetadata:
		resp.Result, _ = json.Marshal(wa.GroupMetadata{ID: "1@g.us", Subject: "OVL", Participants: []wa.Participant{{ID: "2@s.whatsapp.net", Admin: "admin"}}})
	case methodProfilePicture:
		resp.Result = json.RawMessage(`{"url":""}`)
	case methodDownloadMedia:
		resp.Result, _ = json.Marshal(mediaResult{Data: []byte("png-bytes")})
	case methodDeleteMessage:
		resp.Error = &FrameError{Message: "not allowed"}
	}
	out, _ := json.Marshal(resp)
	_ = conn.Write(ctx, websocket.MessageText, out)
}

func (fg *fakeGateway) push(t *testing.T, raw string) {
	t.Helper()
	fg.mu.Lock()
	conn := fg.conn
	fg.mu.Unlock()
	require.NoError(t, conn.Write(context.Background(), websocket.MessageText, []byte(raw)))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func startGateway(t *testing.T) (*Gateway, *fakeGateway, *recordingHandler) {
	fg, srv := newFakeGateway(t)
	h := newRecordingHandler()
	g := NewGateway(GatewayConfig{URL: wsURL(srv), Token: "secret", RequestTimeout: 2 * time.Second})
	g.SetHandler(h)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	select {
	case <-fg.ready:
	case <-time.After(2 * time.Second):
		t.Fatalf("gateway never connected")
	}
	require.Eventually(t, func() bool {
		g.mu.Lock()
		defer g.mu.Unlock()
		return g.conn != nil
	}, time.Second, 5*time.Millisecond)
	return g, fg, h
}

func TestGatewayRequestsRoundTrip(t *testing.T) {
	g, fg, _ := startGateway(t)
	ctx := context.Background()

	meta, err := g.GroupMetadata(ctx, "1@g.us")
	require.NoError(t, err)
	assert.Equal(t, "OVL", meta.Subject)
	assert.Equal(t, []string{"2@s.whatsapp.net"}, meta.Admins())

	data, err := g.DownloadMedia(ctx, wa.MediaRef{Kind: "image"})
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	require.NoError(t, g.SendMessage(ctx, "1@g.us", wa.Content{Text: "salut"}, wa.SendOptions{}))

	err = g.DeleteMessage(ctx, "1@g.us", wa.MessageKey{ID: "X"})
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "not allowed", remote.Message)

	_, err = g.ProfilePhotoURL(ctx, "2@s.whatsapp.net")
	assert.Error(t, err)

	fg.mu.Lock()
	defer fg.mu.Unlock()
	assert.Equal(t, "Bearer secret", fg.auth)
	require.NotEmpty(t, fg.requests)
	var send sendParams
	for _, r := range fg.requests {
		if r.Method == methodSendMessage {
			require.NoError(t, json.Unmarshal(r.Params, &send))
		}
	}
	assert.Equal(t, "salut", send.Content.Text)
}

func TestGatewayDeliversEvents(t *testing.T) {
	g, fg, h := startGateway(t)

	fg.push(t, `{"type":"event","event":"connection.update","data":{"connection":"open","self":"226:7@s.whatsapp.net"}}`)
	waitFor(t, h.received)
	assert.Equal(t, "226@s.whatsapp.net", g.SelfID())

	fg.push(t, `{"type":"event","event":"messages.upsert","data":{"type":"notify","messages":[{"key":{"remoteJid":"1@g.us","id":"ABC"},"message":{"conversation":"hi"}}]}}`)
	waitFor(t, h.received)

	fg.push(t, `{"type":"event","event":"group-participants.update","data":{"id":"1@g.us","participants":["3@s.whatsapp.net"],"action":"add"}}`)
	waitFor(t, h.received)

	fg.push(t, `not json`)
	fg.push(t, `{"type":"event","event":"presence.update","data":{}}`)

	g.Wait()
	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.upserts, 1)
	assert.Equal(t, "hi", h.upserts[0].Messages[0].Message.Conversation)
	require.Len(t, h.updates, 1)
	assert.Equal(t, wa.ParticipantAdd, h.updates[0].Action)
}

func TestGatewayDeliversEventsInReceiptOrder(t *testing.T) {
	g, fg, h := startGateway(t)

	const n = 200
	for i := 0; i < n; i++ {
		fg.push(t, fmt.Sprintf(`{"type":"event","event":"messages.upsert","data":{"type":"notify","messages":[{"key":{"remoteJid":"1@g.us","id":"M%d"}}]}}`, i))
	}
	for i := 0; i < n; i++ {
		waitFor(t, h.received)
	}

	g.Wait()
	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.upserts, n)
	for i, u := range h.upserts {
		require.Equal(t, fmt.Sprintf("M%d", i), u.Messages[0].Key.ID)
	}
}

func TestGatewayCallWithoutConnection(t *testing.T) {
	g := NewGateway(GatewayConfig{URL: "ws://127.0.0.1:1"})
	err := g.SendMessage(context.Background(), "1@g.us", wa.Content{Text: "x"}, wa.SendOptions{})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestGatewayRunRequiresHandler(t *testing.T) {
	g := NewGateway(GatewayConfig{URL: "ws://127.0.0.1:1"})
	assert.Error(t, g.Run(context.Background()))
}
