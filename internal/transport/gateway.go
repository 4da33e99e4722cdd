package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/nekodylan/OVL-MD/internal/metrics"
	"github.com/nekodylan/OVL-MD/internal/wa"
)

const (
	maxBackoff = 60 * time.Second
	readLimit  = 64 << 20
	eventQueue = 256
)

type GatewayConfig struct {
	URL            string
	Token          string
	RequestTimeout time.Duration
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
}

// Gateway is a Client backed by a WebSocket connection to the gateway process.
// Run owns the connection; calls made while disconnected fail with ErrClosed.
type Gateway struct {
	cfg     GatewayConfig
	log     *zap.Logger
	handler EventHandler
	drops   *dropLogger

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]chan Frame
	self    string

	// queue feeds events to the single delivery worker in receipt order.
	queue  chan queuedEvent
	events sync.WaitGroup
}

type queuedEvent struct {
	frame Frame
	raw   []byte
}

func NewGateway(cfg GatewayConfig) *Gateway {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("gateway")
	return &Gateway{
		cfg:     cfg,
		log:     log,
		drops:   newDropLogger(time.Now(), log, cfg.Metrics, dropSummaryInterval),
		pending: make(map[string]chan Frame),
		queue:   make(chan queuedEvent, eventQueue),
	}
}

// SetHandler installs the event handler. It must be called before Run.
func (g *Gateway) SetHandler(h EventHandler) {
	g.handler = h
}

func (g *Gateway) SelfID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.self
}

func (g *Gateway) setSelf(jid string) {
	jid = wa.NormalizeJID(jid)
	if jid == "" {
		return
	}
	g.mu.Lock()
	g.self = jid
	g.mu.Unlock()
}

// Run connects and reads frames until ctx is cancelled, reconnecting with capped
// exponential backoff.
func (g *Gateway) Run(ctx context.Context) error {
	if strings.TrimSpace(g.cfg.URL) == "" {
		return errors.New("gateway: url is required")
	}
	if g.handler == nil {
		return errors.New("gateway: event handler is required")
	}

	go g.deliverLoop(ctx)

	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := g.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			backoff = time.Second
			g.log.Info("closed by gateway; reconnecting", zap.Duration("backoff", backoff))
		} else {
			g.log.Warn("disconnected; reconnecting", zap.Error(err), zap.Duration("backoff", backoff))
		}
		g.cfg.Metrics.IncGatewayReconnect()
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		if err != nil && backoff < maxBackoff {
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}

// Wait blocks until every event handed to the handler has returned.
func (g *Gateway) Wait() {
	g.events.Wait()
}

func (g *Gateway) runOnce(ctx context.Context) error {
	header := http.Header{}
	if tok := strings.TrimSpace(g.cfg.Token); tok != "" {
		header.Set("Authorization", "Bearer "+tok)
	}

	g.log.Info("connecting", zap.String("url", g.cfg.URL))
	conn, _, err := websocket.Dial(ctx, g.cfg.URL, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return errors.Wrap(err, "dial")
	}
	conn.SetReadLimit(readLimit)

	g.mu.Lock()
	g.conn = conn
	g.mu.Unlock()
	defer g.detach(conn)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return errors.Wrap(err, "read")
		}

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			g.drops.note(time.Now(), "malformed_frame", data)
			continue
		}
		g.route(ctx, f, data)
	}
}

// detach forgets conn and fails every call still waiting on it.
func (g *Gateway) detach(conn *websocket.Conn) {
	g.mu.Lock()
	if g.conn == conn {
		g.conn = nil
	}
	pending := g.pending
	g.pending = make(map[string]chan Frame)
	g.mu.Unlock()

	for _, ch := range pending {
		close(ch)
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
	g.drops.flush(time.Now())
}

func (g *Gateway) route(ctx context.Context, f Frame, raw []byte) {
	switch f.Type {
	case frameResponse:
		g.mu.Lock()
		ch, ok := g.pending[f.ID]
		if ok {
			delete(g.pending, f.ID)
		}
		g.mu.Unlock()
		if !ok {
			g.drops.note(time.Now(), "orphan_response", raw)
			return
		}
		ch <- f
	case frameEvent:
		g.events.Add(1)
		select {
		case g.queue <- queuedEvent{frame: f, raw: raw}:
		case <-ctx.Done():
			g.events.Done()
		}
	default:
		g.drops.note(time.Now(), "unknown_type", raw)
	}
}

// deliverLoop hands queued events to the handler one at a time. Events still
// queued when ctx ends are dropped.
func (g *Gateway) deliverLoop(ctx context.Context) {
	for {
		select {
		case ev := <-g.queue:
			g.deliver(ctx, ev.frame, ev.raw)
			g.events.Done()
		case <-ctx.Done():
			for {
				select {
				case <-g.queue:
					g.events.Done()
				default:
					return
				}
			}
		}
	}
}

func (g *Gateway) deliver(ctx context.Context, f Frame, raw []byte) {
	switch f.Event {
	case EventMessagesUpsert:
		var upsert wa.MessagesUpsert
		if err := json.Unmarshal(f.Data, &upsert); err != nil {
			g.drops.note(time.Now(), "bad_payload", raw)
			return
		}
		g.handler.HandleMessages(ctx, upsert)
	case EventParticipantsUpdate:
		var update wa.ParticipantsUpdate
		if err := json.Unmarshal(f.Data, &update); err != nil {
			g.drops.note(time.Now(), "bad_payload", raw)
			return
		}
		g.handler.HandleParticipants(ctx, update)
	case EventConnectionUpdate:
		var update wa.ConnectionUpdate
		if err := json.Unmarshal(f.Data, &update); err != nil {
			g.drops.note(time.Now(), "bad_payload", raw)
			return
		}
		g.setSelf(update.Self)
		g.handler.HandleConnection(ctx, update)
	default:
		g.drops.note(time.Now(), "unknown_event", raw)
	}
}

func (g *Gateway) call(ctx context.Context, method string, params any, out any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return errors.Wrapf(err, "gateway: encode %s", method)
	}

	id := uuid.NewString()
	ch := make(chan Frame, 1)
	g.mu.Lock()
	conn := g.conn
	if conn == nil {
		g.mu.Unlock()
		return ErrClosed
	}
	g.pending[id] = ch
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		delete(g.pending, id)
		g.mu.Unlock()
	}()

	if g.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.RequestTimeout)
		defer cancel()
	}

	req, err := json.Marshal(Frame{Type: frameRequest, ID: id, Method: method, Params: body})
	if err != nil {
		return errors.Wrapf(err, "gateway: encode %s", method)
	}
	if err := conn.Write(ctx, websocket.MessageText, req); err != nil {
		return errors.Wrapf(err, "gateway: write %s", method)
	}

	select {
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "gateway: %s", method)
	case resp, ok := <-ch:
		if !ok {
			return ErrClosed
		}
		if resp.Error != nil {
			return &RemoteError{Method: method, Message: resp.Error.Message}
		}
		if out != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, out); err != nil {
				return errors.Wrapf(err, "gateway: decode %s", method)
			}
		}
		return nil
	}
}

func (g *Gateway) SendMessage(ctx context.Context, to string, content wa.Content, opts wa.SendOptions) error {
	return g.call(ctx, methodSendMessage, sendParams{JID: to, Content: content, Options: opts}, nil)
}

func (g *Gateway) DeleteMessage(ctx context.Context, chat string, key wa.MessageKey) error {
	return g.call(ctx, methodDeleteMessage, deleteParams{JID: chat, Key: key}, nil)
}

func (g *Gateway) UpdateParticipants(ctx context.Context, group string, ids []string, action wa.ParticipantAction) error {
	return g.call(ctx, methodParticipantsUpdate, participantsParams{JID: group, Participants: ids, Action: action}, nil)
}

func (g *Gateway) GroupMetadata(ctx context.Context, group string) (wa.GroupMetadata, error) {
	var meta wa.GroupMetadata
	err := g.call(ctx, methodGroupMetadata, jidParams{JID: group}, &meta)
	return meta, err
}

func (g *Gateway) ProfilePhotoURL(ctx context.Context, jid string) (string, error) {
	var res urlResult
	if err := g.call(ctx, methodProfilePicture, jidParams{JID: jid, Type: "image"}, &res); err != nil {
		return "", err
	}
	if res.URL == "" {
		return "", &RemoteError{Method: methodProfilePicture, Message: "no profile picture"}
	}
	return res.URL, nil
}

func (g *Gateway) DownloadMedia(ctx context.Context, ref wa.MediaRef) ([]byte, error) {
	var res mediaResult
	if err := g.call(ctx, methodDownloadMedia, ref, &res); err != nil {
		return nil, err
	}
	return res.Data, nil
}

func (g *Gateway) ReadMessages(ctx context.Context, keys []wa.MessageKey) error {
	return g.call(ctx, methodReadMessages, readParams{Keys: keys}, nil)
}

func (g *Gateway) SendPresence(ctx context.Context, chat string, presence wa.Presence) error {
	return g.call(ctx, methodPresence, presenceParams{JID: chat, Presence: presence}, nil)
}

// Close ends the current connection, if any.
func (g *Gateway) Close() error {
	g.mu.Lock()
	conn := g.conn
	g.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close(websocket.StatusNormalClosure, "shutdown")
}
