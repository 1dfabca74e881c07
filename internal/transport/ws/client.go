package ws

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vedran77/reviewhub/internal/domain"
	"github.com/vedran77/reviewhub/internal/realtime"
	"github.com/vedran77/reviewhub/internal/service"
	"github.com/vedran77/reviewhub/internal/session"
	"github.com/vedran77/reviewhub/internal/unread"
	"github.com/vedran77/reviewhub/pkg/logger"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 16384
	sendBufSize    = 256
)

// Client represents a single WebSocket connection. It owns at most one
// messaging session, one unread watcher and one conversation list watch.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID uuid.UUID
	log    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	session       *session.Session
	watcher       *unread.Watcher
	conversations realtime.Unsubscribe

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		log:    logger.Component("ws").With().Str("user_id", userID.String()).Logger(),
		ctx:    ctx,
		cancel: cancel,
		send:   make(chan []byte, sendBufSize),
		done:   make(chan struct{}),
	}
}

// enqueue queues data for the write pump. It reports false only when the
// buffer is full; a closed client silently drops.
func (c *Client) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// shutdown stops both pumps. Feeds are torn down by the read pump on exit.
func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.cancel()
	})
}

// ReadPump reads client events until the connection closes, then releases
// everything the client owns.
func (c *Client) ReadPump() {
	defer func() {
		c.teardown()
		c.hub.Unregister(c)
		c.shutdown()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.startUnread()

	for {
		var event Event
		err := wsjson.Read(c.ctx, c.conn, &event)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || c.ctx.Err() != nil {
				c.log.Debug().Msg("client disconnected")
			} else {
				c.log.Warn().Err(err).Msg("read error")
			}
			return
		}

		c.handleEvent(&event)
	}
}

// WritePump writes messages from the send channel to the WebSocket.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message := <-c.send:
			ctx, cancel := context.WithTimeout(c.ctx, writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				c.log.Warn().Err(err).Msg("write error")
				c.shutdown()
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(c.ctx, writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				c.log.Warn().Err(err).Msg("ping error")
				c.shutdown()
				return
			}

		case <-c.done:
			return
		}
	}
}

// handleEvent routes an incoming client event.
func (c *Client) handleEvent(event *Event) {
	switch event.Type {
	case EventTypeConversationOpen:
		var p ConversationPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil || p.PartnerID == uuid.Nil {
			c.sendError("INVALID_PAYLOAD", "partner_id is required", "", "")
			return
		}
		c.openConversation(p.PartnerID)

	case EventTypeConversationClose:
		c.closeConversation()

	case EventTypeConversationRead:
		s := c.currentSession()
		if s == nil {
			c.sendError("NO_CONVERSATION", "no conversation is open", "", "")
			return
		}
		if _, err := s.MarkRead(c.ctx); err != nil {
			c.log.Error().Err(err).Msg("mark read failed")
			c.sendError("MARK_READ_FAILED", "could not mark messages as read", "", "")
		}

	case EventTypeMessageSend:
		var p MessageSendPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			c.sendError("INVALID_PAYLOAD", "invalid message.send payload", "", "")
			return
		}
		c.sendMessage(p)

	case EventTypeTypingInput:
		var p TypingInputPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			c.sendError("INVALID_PAYLOAD", "invalid typing.input payload", "", "")
			return
		}
		if s := c.currentSession(); s != nil {
			s.Input(p.Text)
		}

	case EventTypeTypingStart:
		if s := c.currentSession(); s != nil {
			s.StartTyping()
		}

	case EventTypeTypingStop:
		if s := c.currentSession(); s != nil {
			s.StopTyping()
		}

	case EventTypeConversationsWatch:
		var p ConversationsWatchPayload
		if len(event.Payload) > 0 {
			if err := json.Unmarshal(event.Payload, &p); err != nil {
				c.sendError("INVALID_PAYLOAD", "invalid conversations.watch payload", "", "")
				return
			}
		}
		c.watchConversations(service.ConversationFilter{Query: p.Query, HistoryOnly: p.HistoryOnly})

	case EventTypeConversationsStop:
		c.unwatchConversations()

	case EventTypePing:
		c.sendEvent(EventTypePong, struct{}{})

	default:
		c.sendError("UNKNOWN_EVENT", "unknown event type: "+event.Type, "", "")
	}
}

func (c *Client) currentSession() *session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Client) openConversation(partnerID uuid.UUID) {
	c.closeConversation()

	deps := c.hub.deps
	s := session.New(deps.Messages, deps.Typing, c.userID, partnerID, deps.TypingDebounce, session.Listener{
		OnMessages: func(msgs []domain.Message) {
			c.sendEvent(EventTypeMessagesSnapshot, MessagesSnapshotPayload{PartnerID: partnerID, Messages: msgs})
		},
		OnTyping: func(isTyping bool) {
			c.sendEvent(EventTypeTyping, TypingPayload{UserID: partnerID, IsTyping: isTyping})
		},
		OnState: func(state session.State) {
			c.sendEvent(EventTypeSessionState, SessionStatePayload{PartnerID: partnerID, State: string(state)})
		},
	})

	if err := s.Open(c.ctx); err != nil {
		s.Close()
		switch {
		case errors.Is(err, service.ErrSelfMessage):
			c.sendError("SELF_MESSAGE", "you cannot message yourself", "", "")
		default:
			c.sendError("OPEN_FAILED", "could not open conversation", "", "")
		}
		return
	}

	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

func (c *Client) closeConversation() {
	c.mu.Lock()
	s := c.session
	c.session = nil
	c.mu.Unlock()

	if s != nil {
		s.Close()
	}
}

func (c *Client) sendMessage(p MessageSendPayload) {
	s := c.currentSession()
	if s == nil {
		c.sendError("NO_CONVERSATION", "open a conversation before sending", p.Content, p.Nonce)
		return
	}
	// Blank sends are rejected without spending a rate-limit token.
	if strings.TrimSpace(p.Content) == "" {
		c.sendError("EMPTY_MESSAGE", "message cannot be empty", p.Content, p.Nonce)
		return
	}
	if limiter := c.hub.deps.SendLimiter; limiter != nil && !limiter.Allow(c.userID) {
		c.sendError("RATE_LIMITED", "too many messages, please slow down", p.Content, p.Nonce)
		return
	}

	msg, err := s.Send(c.ctx, p.Content)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyMessage):
			c.sendError("EMPTY_MESSAGE", "message cannot be empty", p.Content, p.Nonce)
		case errors.Is(err, service.ErrMessageTooLong):
			c.sendError("MESSAGE_TOO_LONG", "message is too long", p.Content, p.Nonce)
		case errors.Is(err, service.ErrUserNotFound):
			c.sendError("NOT_FOUND", "user not found", p.Content, p.Nonce)
		default:
			c.log.Error().Err(err).Msg("send failed")
			c.sendError("SEND_FAILED", "message could not be sent, try again", p.Content, p.Nonce)
		}
		return
	}

	c.sendEvent(EventTypeMessageAck, MessageAckPayload{Nonce: p.Nonce, Message: msg})
}

func (c *Client) watchConversations(filter service.ConversationFilter) {
	c.unwatchConversations()

	stop, err := c.hub.deps.Conversations.Watch(c.ctx, c.userID, filter, func(entries []domain.ConversationEntry) {
		c.sendEvent(EventTypeConversations, entries)
	})
	if err != nil {
		c.sendError("WATCH_FAILED", "could not load conversations", "", "")
		return
	}

	c.mu.Lock()
	c.conversations = stop
	c.mu.Unlock()
}

func (c *Client) unwatchConversations() {
	c.mu.Lock()
	stop := c.conversations
	c.conversations = nil
	c.mu.Unlock()

	if stop != nil {
		stop()
	}
}

func (c *Client) startUnread() {
	deps := c.hub.deps
	w := unread.NewWatcher(deps.Messages, deps.Broker, c.userID, deps.Unread, func(status unread.Status) {
		c.sendEvent(EventTypeUnread, status)
	})
	if err := w.Start(c.ctx); err != nil {
		c.log.Error().Err(err).Msg("unread watcher failed to start")
		return
	}

	c.mu.Lock()
	c.watcher = w
	c.mu.Unlock()
}

// teardown synchronously stops the session, the watcher and the conversation watch.
func (c *Client) teardown() {
	c.closeConversation()
	c.unwatchConversations()

	c.mu.Lock()
	w := c.watcher
	c.watcher = nil
	c.mu.Unlock()
	if w != nil {
		w.Stop()
	}
}

func (c *Client) sendEvent(eventType string, payload any) {
	evt, err := NewEvent(eventType, payload)
	if err != nil {
		c.log.Error().Err(err).Str("type", eventType).Msg("marshal error")
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	if !c.enqueue(data) {
		c.log.Warn().Str("type", eventType).Msg("send buffer full, dropping event")
	}
}

func (c *Client) sendError(code, message, draft, nonce string) {
	c.sendEvent(EventTypeError, ErrorPayload{Code: code, Message: message, Draft: draft, Nonce: nonce})
}
