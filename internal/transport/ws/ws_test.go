package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/reviewhub/internal/realtime"
	"github.com/vedran77/reviewhub/internal/repository/memory"
	"github.com/vedran77/reviewhub/internal/service"
	"github.com/vedran77/reviewhub/internal/transport/http/middleware"
	"github.com/vedran77/reviewhub/internal/unread"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const testSecret = "ws-secret"

type env struct {
	srv  *httptest.Server
	auth *service.AuthService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvWithLimiter(t, middleware.NewUserRateLimiter(600, 100))
}

func newEnvWithLimiter(t *testing.T, limiter *middleware.UserRateLimiter) *env {
	t.Helper()

	broker := realtime.NewBroker()
	users := memory.NewUserRepo()
	messages := memory.NewMessageRepo()

	hub := NewHub(&Deps{
		Messages:       service.NewMessageService(messages, users, broker),
		Typing:         service.NewTypingService(memory.NewTypingRepo(), time.Second),
		Conversations:  service.NewConversationService(users, messages, broker),
		Broker:         broker,
		TypingDebounce: 50 * time.Millisecond,
		Unread:         unread.Config{},
		SendLimiter:    limiter,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	stop := NewHubNotifier(hub).Start(broker)

	srv := httptest.NewServer(ServeWS(hub, testSecret, []string{"*"}))
	t.Cleanup(func() {
		srv.Close()
		stop()
		cancel()
	})
	return &env{srv: srv, auth: service.NewAuthService(users, broker, testSecret)}
}

func (e *env) user(t *testing.T, name string) (uuid.UUID, string) {
	t.Helper()
	resp, err := e.auth.Register(context.Background(), service.RegisterInput{
		Email:       name + "@example.com",
		Username:    name,
		DisplayName: name,
		Password:    "Secret123",
	})
	require.NoError(t, err)
	return resp.User.ID, resp.AccessToken
}

type wsConn struct {
	t       *testing.T
	conn    *websocket.Conn
	pending []Event
}

func (e *env) dial(t *testing.T, token string) *wsConn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/?token=" + token
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return &wsConn{t: t, conn: conn}
}

func (c *wsConn) emit(eventType string, payload any) {
	c.t.Helper()
	evt := Event{Type: eventType}
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(c.t, err)
		evt.Payload = data
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(c.t, wsjson.Write(ctx, c.conn, evt))
}

// expect returns the oldest unconsumed event of eventType, reading from the
// connection until one arrives. Other events stay queued in order.
func expect[T any](c *wsConn, eventType string) T {
	c.t.Helper()
	decode := func(evt Event) T {
		var v T
		require.NoError(c.t, json.Unmarshal(evt.Payload, &v))
		return v
	}

	for i, evt := range c.pending {
		if evt.Type == eventType {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return decode(evt)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		var evt Event
		require.NoError(c.t, wsjson.Read(ctx, c.conn, &evt), "waiting for %s", eventType)
		if evt.Type == eventType {
			return decode(evt)
		}
		c.pending = append(c.pending, evt)
	}
}

func TestServeWS_RejectsMissingToken(t *testing.T) {
	e := newEnv(t)

	resp, err := http.Get(e.srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get(e.srv.URL + "/?token=garbage")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWS_ConversationRoundTrip(t *testing.T) {
	e := newEnv(t)
	anaID, anaToken := e.user(t, "ana")
	ivoID, ivoToken := e.user(t, "ivo")

	ivo := e.dial(t, ivoToken)
	assert.Equal(t, unread.Status{}, expect[unread.Status](ivo, EventTypeUnread))

	ana := e.dial(t, anaToken)
	expect[unread.Status](ana, EventTypeUnread)

	ana.emit(EventTypeConversationOpen, ConversationPayload{PartnerID: ivoID})
	for {
		state := expect[SessionStatePayload](ana, EventTypeSessionState)
		if state.State == "ready" {
			break
		}
	}

	ana.emit(EventTypeMessageSend, MessageSendPayload{Content: "hello", Nonce: "n1"})
	ack := expect[MessageAckPayload](ana, EventTypeMessageAck)
	assert.Equal(t, "n1", ack.Nonce)
	require.NotNil(t, ack.Message)
	assert.Equal(t, "hello", ack.Message.Text)

	incoming := expect[MessagePayload](ivo, EventTypeMessageNew)
	assert.Equal(t, anaID, incoming.SenderID)
	assert.Equal(t, "hello", incoming.Text)
	assert.Equal(t, unread.Status{Count: 1, HasUnread: true}, expect[unread.Status](ivo, EventTypeUnread))

	ivo.emit(EventTypeConversationOpen, ConversationPayload{PartnerID: anaID})
	snapshot := expect[MessagesSnapshotPayload](ivo, EventTypeMessagesSnapshot)
	assert.Equal(t, anaID, snapshot.PartnerID)
	assert.Equal(t, unread.Status{}, expect[unread.Status](ivo, EventTypeUnread))
}

func TestWS_FailedSendReturnsDraft(t *testing.T) {
	e := newEnv(t)
	_, anaToken := e.user(t, "ana")

	ana := e.dial(t, anaToken)
	ana.emit(EventTypeMessageSend, MessageSendPayload{Content: "lost words", Nonce: "n2"})

	errPayload := expect[ErrorPayload](ana, EventTypeError)
	assert.Equal(t, "NO_CONVERSATION", errPayload.Code)
	assert.Equal(t, "lost words", errPayload.Draft)
	assert.Equal(t, "n2", errPayload.Nonce)
}

func TestWS_BlankSendsDoNotSpendRateLimit(t *testing.T) {
	e := newEnvWithLimiter(t, middleware.NewUserRateLimiter(1, 1))
	_, anaToken := e.user(t, "ana")
	ivoID, _ := e.user(t, "ivo")

	ana := e.dial(t, anaToken)
	ana.emit(EventTypeConversationOpen, ConversationPayload{PartnerID: ivoID})
	for {
		state := expect[SessionStatePayload](ana, EventTypeSessionState)
		if state.State == "ready" {
			break
		}
	}

	for i, blank := range []string{"", " ", "\n\t", "   "} {
		ana.emit(EventTypeMessageSend, MessageSendPayload{Content: blank, Nonce: "blank"})
		errPayload := expect[ErrorPayload](ana, EventTypeError)
		assert.Equal(t, "EMPTY_MESSAGE", errPayload.Code, "blank send %d", i)
	}

	ana.emit(EventTypeMessageSend, MessageSendPayload{Content: "finally", Nonce: "real"})
	ack := expect[MessageAckPayload](ana, EventTypeMessageAck)
	assert.Equal(t, "real", ack.Nonce)

	ana.emit(EventTypeMessageSend, MessageSendPayload{Content: "too soon", Nonce: "next"})
	errPayload := expect[ErrorPayload](ana, EventTypeError)
	assert.Equal(t, "RATE_LIMITED", errPayload.Code)
	assert.Equal(t, "too soon", errPayload.Draft)
}

func TestWS_TypingReachesPartner(t *testing.T) {
	e := newEnv(t)
	anaID, anaToken := e.user(t, "ana")
	ivoID, ivoToken := e.user(t, "ivo")

	ana := e.dial(t, anaToken)
	ivo := e.dial(t, ivoToken)

	ivo.emit(EventTypeConversationOpen, ConversationPayload{PartnerID: anaID})
	initial := expect[TypingPayload](ivo, EventTypeTyping)
	assert.False(t, initial.IsTyping)

	ana.emit(EventTypeConversationOpen, ConversationPayload{PartnerID: ivoID})
	expect[MessagesSnapshotPayload](ana, EventTypeMessagesSnapshot)
	ana.emit(EventTypeTypingInput, TypingInputPayload{Text: "hel"})

	typing := expect[TypingPayload](ivo, EventTypeTyping)
	assert.Equal(t, anaID, typing.UserID)
	assert.True(t, typing.IsTyping)

	// debounce expiry clears it
	assert.False(t, expect[TypingPayload](ivo, EventTypeTyping).IsTyping)
}

func TestWS_PingPongAndUnknown(t *testing.T) {
	e := newEnv(t)
	_, token := e.user(t, "ana")

	c := e.dial(t, token)
	c.emit(EventTypePing, nil)
	expect[struct{}](c, EventTypePong)

	c.emit("bogus", nil)
	assert.Equal(t, "UNKNOWN_EVENT", expect[ErrorPayload](c, EventTypeError).Code)
}

func TestAcceptOptions(t *testing.T) {
	assert.True(t, acceptOptions([]string{"*"}).InsecureSkipVerify)
	assert.True(t, acceptOptions(nil).InsecureSkipVerify)

	opts := acceptOptions([]string{"https://app.example", "localhost:3000"})
	assert.False(t, opts.InsecureSkipVerify)
	assert.Equal(t, []string{"app.example", "localhost:3000"}, opts.OriginPatterns)
}
