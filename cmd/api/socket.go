package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/PaulBabatuyi/socialchat/internal/data"
	"github.com/PaulBabatuyi/socialchat/internal/metrics"
	"github.com/PaulBabatuyi/socialchat/internal/middleware"
)

const (
	// writeWait is the time allowed to write a frame to the peer.
	writeWait = 10 * time.Second
	// pongWait is the time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second
	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// maxFrameSize bounds a single inbound frame.
	maxFrameSize = 16 << 10

	storeTimeout = 10 * time.Second
	sendBuffer   = 64
)

var (
	errPeerClosed     = errors.New("peer closed")
	errPeerBacklogged = errors.New("peer send buffer full")
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The HTTP surface allows any origin as well.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// peer is one live connection. Reads happen on the handler goroutine and
// every write goes through writePump, so the conn has one reader and one
// writer.
type peer struct {
	id      int64
	conn    *websocket.Conn
	send    chan *Event
	done    chan struct{}
	once    sync.Once
	limiter *rate.Limiter
	log     logrus.FieldLogger
}

// Send queues ev without blocking. send is never closed, so a concurrent
// Send after close cannot panic.
func (p *peer) Send(ev *Event) error {
	select {
	case <-p.done:
		return errPeerClosed
	default:
	}
	select {
	case p.send <- ev:
		return nil
	case <-p.done:
		return errPeerClosed
	default:
		return errPeerBacklogged
	}
}

// Close stops the peer. writePump answers with a close frame, which ends
// readPump and the deferred unregister.
func (p *peer) Close() {
	p.once.Do(func() { close(p.done) })
}

// handleSocket upgrades the request and serves the live channel until the
// peer goes away.
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client
		s.log.WithError(err).Debug("websocket upgrade failed")
		return
	}

	p := &peer{
		conn:    conn,
		send:    make(chan *Event, sendBuffer),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(s.chatRate), s.chatBurst),
	}
	p.id = s.hub.Register(p)
	p.log = s.log.WithFields(logrus.Fields{
		"conn_id":    p.id,
		"remote":     middleware.ClientIP(r),
		"request_id": middleware.GetRequestID(r.Context()),
	})
	metrics.ConnectionOpened()
	p.log.Info("peer connected")

	defer func() {
		s.hub.Unregister(p.id)
		p.Close()
		metrics.ConnectionClosed()
		p.log.Info("peer disconnected")
	}()

	go s.writePump(p)
	s.readPump(p)
}

func (s *Server) readPump(p *peer) {
	defer p.conn.Close()

	p.conn.SetReadLimit(maxFrameSize)
	_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				p.log.WithError(err).Warn("read error")
			}
			return
		}

		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			p.log.WithError(err).Warn("invalid frame")
			continue
		}

		switch ev.Name {
		case eventLoadMessages:
			s.onLoadMessages(p, ev.Data)
		case eventChatMessage:
			s.onChatMessage(p, ev.Data)
		default:
			p.log.WithField("event", ev.Name).Debug("ignoring unknown event")
		}
	}
}

func (s *Server) writePump(p *peer) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.conn.Close()
	}()

	for {
		select {
		case ev := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteJSON(ev); err != nil {
				p.log.WithError(err).Debug("write failed")
				p.Close()
				return
			}
		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				p.Close()
				return
			}
		case <-p.done:
			_ = p.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}

// onLoadMessages replays every message the named user sent or received to
// the requesting peer only.
func (s *Server) onLoadMessages(p *peer, raw json.RawMessage) {
	var username string
	if err := json.Unmarshal(raw, &username); err != nil || strings.TrimSpace(username) == "" {
		p.log.WithField("event", eventLoadMessages).Warn("invalid username")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	msgs, err := s.msgs.MessagesFor(ctx, strings.TrimSpace(username))
	if err != nil {
		p.log.WithError(err).Error("load messages")
		return
	}
	if msgs == nil {
		msgs = []*data.Message{}
	}

	ev, err := newEvent(eventLoadMessages, msgs)
	if err != nil {
		p.log.WithError(err).Error("encode history")
		return
	}
	if err := p.Send(ev); err != nil {
		p.log.WithError(err).Warn("history not delivered")
	}
}

// onChatMessage persists a chat message and fans it out. Content is stored
// and echoed as sent; rendering clients escape it. Invalid or throttled
// messages are dropped with a log line and no reply.
func (s *Server) onChatMessage(p *peer, raw json.RawMessage) {
	var in chatPayload
	if err := json.Unmarshal(raw, &in); err != nil {
		p.log.WithError(err).Warn("invalid message data")
		return
	}
	sender := strings.TrimSpace(in.Sender)
	recipient := strings.TrimSpace(in.Recipient)
	content := strings.TrimSpace(in.Content)
	if sender == "" || recipient == "" || content == "" {
		p.log.WithField("event", eventChatMessage).Warn("invalid message data")
		return
	}
	if !p.limiter.Allow() {
		p.log.WithField("sender", sender).Warn("chat rate exceeded, message dropped")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	saved, err := s.msgs.SaveMessage(ctx, sender, recipient, content)
	if err != nil {
		p.log.WithError(err).Error("error saving message")
		return
	}
	metrics.MessagePersisted()

	s.deliver(ctx, saved)
}
