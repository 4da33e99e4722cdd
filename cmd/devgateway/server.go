package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/nekodylan/OVL-MD/internal/transport"
	"github.com/nekodylan/OVL-MD/internal/wa"
)

const maxSent = 200

type emitReq struct {
	Chat     string `json:"chat"`
	Sender   string `json:"sender"`
	Text     string `json:"text"`
	PushName string `json:"push_name,omitempty"`
	FromMe   bool   `json:"from_me,omitempty"`
}

type participantsReq struct {
	Group        string               `json:"group"`
	Participants []string             `json:"participants"`
	Action       wa.ParticipantAction `json:"action"`
	Author       string               `json:"author,omitempty"`
}

// server plays the gateway side of the bot socket: it answers requests from a
// static group table and lets a developer inject events over HTTP.
type server struct {
	self  string
	token string
	log   *zap.Logger
	now   func() time.Time

	mu     sync.Mutex
	conn   *websocket.Conn
	groups map[string]wa.GroupMetadata
	sent   []transport.Frame
}

func newServer(self, token string, log *zap.Logger) *server {
	return &server{
		self:   wa.PhoneJID(self),
		token:  token,
		log:    log,
		now:    time.Now,
		groups: make(map[string]wa.GroupMetadata),
	}
}

func (s *server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/ws", s.handleSocket)
	r.POST("/emit", s.handleEmit)
	r.POST("/participants", s.handleParticipants)
	r.PUT("/groups/:id", s.handlePutGroup)
	r.GET("/sent", s.handleSent)
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func (s *server) handleSocket(c *gin.Context) {
	if s.token != "" && c.GetHeader("Authorization") != "Bearer "+s.token {
		c.String(http.StatusUnauthorized, "bad token")
		return
	}
	conn, err := websocket.Accept(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("accept failed", zap.Error(err))
		return
	}
	conn.SetReadLimit(64 << 20)
	s.mu.Lock()
	if s.conn != nil {
		_ = s.conn.Close(websocket.StatusGoingAway, "replaced")
	}
	s.conn = conn
	s.mu.Unlock()
	s.log.Info("bot connected", zap.String("remote", c.Request.RemoteAddr))

	ctx := c.Request.Context()
	if err := s.push(ctx, transport.EventConnectionUpdate, wa.ConnectionUpdate{Connection: "open", Self: s.self}); err != nil {
		s.log.Warn("open event failed", zap.Error(err))
	}
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			s.log.Info("bot disconnected", zap.Error(err))
			s.mu.Lock()
			if s.conn == conn {
				s.conn = nil
			}
			s.mu.Unlock()
			return
		}
		var req transport.Frame
		if err := json.Unmarshal(data, &req); err != nil || req.Type != "request" {
			s.log.Warn("unexpected frame", zap.ByteString("frame", data))
			continue
		}
		s.answer(ctx, conn, req)
	}
}

func (s *server) answer(ctx context.Context, conn *websocket.Conn, req transport.Frame) {
	s.log.Info("request", zap.String("method", req.Method), zap.ByteString("params", req.Params))
	resp := transport.Frame{Type: "response", ID: req.ID}
	switch req.Method {
	case "sendMessage":
		s.mu.Lock()
		s.sent = append(s.sent, req)
		if len(s.sent) > maxSent {
			s.sent = s.sent[len(s.sent)-maxSent:]
		}
		s.mu.Unlock()
	case "groupMetadata":
		var p struct {
			JID string `json:"jid"`
		}
		_ = json.Unmarshal(req.Params, &p)
		s.mu.Lock()
		meta, ok := s.groups[p.JID]
		s.mu.Unlock()
		if !ok {
			meta = wa.GroupMetadata{ID: p.JID, Subject: "dev", Participants: []wa.Participant{{ID: s.self, Admin: "admin"}}}
		}
		resp.Result, _ = json.Marshal(meta)
	case "profilePictureUrl":
		resp.Error = &transport.FrameError{Message: "item-not-found"}
	case "downloadMedia":
		resp.Result = json.RawMessage(`{"data":""}`)
	}
	out, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := conn.Write(ctx, websocket.MessageText, out); err != nil {
		s.log.Warn("response write failed", zap.Error(err))
	}
}

func (s *server) push(ctx context.Context, event string, data any) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return errNoBot
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	out, err := json.Marshal(transport.Frame{Type: "event", Event: event, Data: raw})
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, out)
}

func (s *server) handleEmit(c *gin.Context) {
	var req emitReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "bad json")
		return
	}
	if req.Chat == "" || req.Text == "" || (req.Sender == "" && !req.FromMe) {
		c.String(http.StatusBadRequest, "chat, sender, text required")
		return
	}
	msg := wa.WebMessage{
		Key: wa.MessageKey{
			RemoteJID: req.Chat,
			FromMe:    req.FromMe,
			ID:        strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:20],
		},
		PushName:  req.PushName,
		Timestamp: s.now().Unix(),
		Message:   &wa.Message{Conversation: req.Text},
	}
	if strings.HasSuffix(req.Chat, "@g.us") && !req.FromMe {
		msg.Key.Participant = wa.PhoneJID(req.Sender)
	}
	upsert := wa.MessagesUpsert{Type: wa.UpsertNotify, Messages: []wa.WebMessage{msg}}
	if err := s.push(c.Request.Context(), transport.EventMessagesUpsert, upsert); err != nil {
		c.String(statusFor(err), "push failed: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "id": msg.Key.ID})
}

func (s *server) handleParticipants(c *gin.Context) {
	var req participantsReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Group == "" || len(req.Participants) == 0 {
		c.String(http.StatusBadRequest, "group, participants, action required")
		return
	}
	update := wa.ParticipantsUpdate{ID: req.Group, Participants: req.Participants, Action: req.Action, Author: req.Author}
	if err := s.push(c.Request.Context(), transport.EventParticipantsUpdate, update); err != nil {
		c.String(statusFor(err), "push failed: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *server) handlePutGroup(c *gin.Context) {
	var meta wa.GroupMetadata
	if err := c.ShouldBindJSON(&meta); err != nil {
		c.String(http.StatusBadRequest, "bad json")
		return
	}
	meta.ID = c.Param("id")
	s.mu.Lock()
	s.groups[meta.ID] = meta
	s.mu.Unlock()
	c.JSON(http.StatusOK, meta)
}

func (s *server) handleSent(c *gin.Context) {
	s.mu.Lock()
	out := make([]json.RawMessage, 0, len(s.sent))
	for _, f := range s.sent {
		out = append(out, f.Params)
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, out)
}
