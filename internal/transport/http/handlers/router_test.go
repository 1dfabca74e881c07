package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/reviewhub/internal/domain"
	"github.com/vedran77/reviewhub/internal/realtime"
	"github.com/vedran77/reviewhub/internal/repository/memory"
	"github.com/vedran77/reviewhub/internal/service"
	"github.com/vedran77/reviewhub/internal/storage"
	"github.com/vedran77/reviewhub/internal/transport/http/middleware"
	"github.com/vedran77/reviewhub/pkg/validator"
)

const testSecret = "test-secret"

func newTestServer(t *testing.T, sendBurst int) *httptest.Server {
	t.Helper()

	broker := realtime.NewBroker()
	users := memory.NewUserRepo()
	messages := memory.NewMessageRepo()
	images := validator.NewImagePolicy([]string{"res.cloudinary.com"}, "/uploads/")

	uploadDir := t.TempDir()
	local, err := storage.NewLocalStorage(uploadDir, "/uploads/")
	require.NoError(t, err)

	messageService := service.NewMessageService(messages, users, broker)
	router := NewRouter(Routes{
		Auth:  NewAuthHandler(service.NewAuthService(users, broker, testSecret), images),
		Users: NewUserHandler(service.NewUserService(users, broker), images),
		Messages: NewMessageHandler(
			messageService,
			service.NewConversationService(users, messages, broker),
			service.NewTypingService(memory.NewTypingRepo(), 2*time.Second),
		),
		Products:    NewProductHandler(service.NewProductService(memory.NewProductRepo()), images),
		Uploads:     NewUploadHandler(service.NewUploadService(local, 1<<20)),
		UploadDir:   uploadDir,
		JWTSecret:   testSecret,
		Origins:     []string{"https://app.example"},
		SendLimiter: middleware.NewUserRateLimiter(60, sendBurst),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

type client struct {
	t     *testing.T
	base  string
	token string
}

func (c *client) do(method, path string, body any) *http.Response {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	c.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

type registered struct {
	User struct {
		ID string `json:"id"`
	} `json:"user"`
	AccessToken string `json:"access_token"`
}

func register(t *testing.T, srv *httptest.Server, username string) (*client, string) {
	t.Helper()
	c := &client{t: t, base: srv.URL}
	resp := c.do(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email":        username + "@example.com",
		"username":     username,
		"display_name": username,
		"password":     "Secret123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	reg := decode[registered](t, resp)
	c.token = reg.AccessToken
	return c, reg.User.ID
}

func TestRouter_AuthFlow(t *testing.T) {
	srv := newTestServer(t, 50)
	anon := &client{t: t, base: srv.URL}

	resp := anon.do(http.MethodGet, "/api/v1/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = anon.do(http.MethodPost, "/api/v1/auth/register", map[string]string{"email": "bad"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[map[string]map[string]any](t, resp)
	assert.Equal(t, "VALIDATION_ERROR", body["error"]["code"])

	ana, _ := register(t, srv, "ana")
	resp = ana.do(http.MethodGet, "/api/v1/auth/me", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	me := decode[map[string]any](t, resp)
	assert.Equal(t, "ana", me["username"])
	assert.Contains(t, me["avatar_url"], "gravatar.com")

	resp = anon.do(http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "ana@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRouter_MessagingFlow(t *testing.T) {
	srv := newTestServer(t, 50)
	ana, anaID := register(t, srv, "ana")
	ivo, ivoID := register(t, srv, "ivo")
	_, _ = register(t, srv, "eva")

	resp := ana.do(http.MethodPost, "/api/v1/messages/"+ivoID, map[string]string{"text": "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ana.do(http.MethodPost, "/api/v1/messages/"+anaID, map[string]string{"text": "me"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ana.do(http.MethodPost, "/api/v1/messages/not-a-uuid", map[string]string{"text": "hi"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	for _, text := range []string{"one", "two"} {
		resp = ana.do(http.MethodPost, "/api/v1/messages/"+ivoID, map[string]string{"text": text})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp = ivo.do(http.MethodGet, "/api/v1/messages/unread", nil)
	assert.Equal(t, map[string]any{"count": float64(2), "has_unread": true}, decode[map[string]any](t, resp))

	resp = ivo.do(http.MethodGet, "/api/v1/conversations", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entries := decode[[]domain.ConversationEntry](t, resp)
	require.Len(t, entries, 2)
	assert.Equal(t, "ana", entries[0].User.Name)
	assert.Equal(t, 2, entries[0].UnreadCount)
	assert.False(t, entries[1].HasHistory)

	resp = ivo.do(http.MethodGet, "/api/v1/conversations?history_only=true&q=AN", nil)
	assert.Len(t, decode[[]domain.ConversationEntry](t, resp), 1)

	resp = ivo.do(http.MethodPost, "/api/v1/messages/"+anaID+"/read", nil)
	assert.Equal(t, map[string]any{"marked": float64(2)}, decode[map[string]any](t, resp))

	resp = ivo.do(http.MethodGet, "/api/v1/messages/unread", nil)
	assert.Equal(t, map[string]any{"count": float64(0), "has_unread": false}, decode[map[string]any](t, resp))

	resp = ivo.do(http.MethodGet, "/api/v1/messages/"+anaID, nil)
	history := decode[[]domain.Message](t, resp)
	require.Len(t, history, 2)
	assert.Equal(t, "one", history[0].Text)
	assert.True(t, history[1].Read)

	resp = ivo.do(http.MethodPut, "/api/v1/typing/"+anaID, map[string]bool{"is_typing": true})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestRouter_SendIsRateLimited(t *testing.T) {
	srv := newTestServer(t, 3)
	ana, _ := register(t, srv, "ana")
	_, ivoID := register(t, srv, "ivo")

	statuses := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		resp := ana.do(http.MethodPost, "/api/v1/messages/"+ivoID, map[string]string{"text": "spam"})
		statuses = append(statuses, resp.StatusCode)
	}
	assert.Equal(t, []int{201, 201, 201, 429}, statuses)
}

func TestRouter_Products(t *testing.T) {
	srv := newTestServer(t, 50)
	anon := &client{t: t, base: srv.URL}

	resp := anon.do(http.MethodPost, "/api/products", map[string]any{
		"name": "Watch", "description": "d", "category": "c", "price": 10,
		"imageUrl": "https://evil.example/w.png",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[map[string]map[string]any](t, resp)
	assert.Contains(t, body["error"]["fields"], "imageUrl")

	resp = anon.do(http.MethodPost, "/api/products", map[string]any{
		"name": "Watch", "description": "d", "category": "c", "price": 10,
		"imageUrl": "https://res.cloudinary.com/demo/w.png",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	product := decode[domain.Product](t, resp)

	resp = anon.do(http.MethodPost, "/api/products/"+product.ID.Hex()+"/reviews", map[string]any{"userName": "ana", "rating": 6, "comment": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = anon.do(http.MethodPost, "/api/products/"+product.ID.Hex()+"/reviews", map[string]any{"userName": "ana", "rating": 4, "comment": "nice"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.InDelta(t, 4.0, decode[domain.Product](t, resp).AvgRating, 0.001)

	resp = anon.do(http.MethodGet, "/api/products/not-an-id", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = anon.do(http.MethodDelete, "/api/products/"+product.ID.Hex(), nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	ana, _ := register(t, srv, "ana")
	resp = ana.do(http.MethodDelete, "/api/products/"+product.ID.Hex(), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = anon.do(http.MethodGet, "/api/products/"+product.ID.Hex(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_UploadAndServe(t *testing.T) {
	srv := newTestServer(t, 50)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreatePart(map[string][]string{
		"Content-Disposition": {`form-data; name="image"; filename="photo.PNG"`},
		"Content-Type":        {"image/png"},
	})
	require.NoError(t, err)
	_, _ = part.Write([]byte("\x89PNG fake"))
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/api/uploads?folder=reviews", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	result := decode[service.UploadResult](t, resp)
	assert.Regexp(t, `^/uploads/reviews/[0-9a-f-]+\.png$`, result.URL)

	served, err := http.Get(srv.URL + result.URL)
	require.NoError(t, err)
	defer served.Body.Close()
	assert.Equal(t, http.StatusOK, served.StatusCode)
	assert.Equal(t, "nosniff", served.Header.Get("X-Content-Type-Options"))
}

func TestRouter_CORSAndHealth(t *testing.T) {
	srv := newTestServer(t, 50)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/products", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://app.example", resp.Header.Get("Access-Control-Allow-Origin"))

	health, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
	assert.Empty(t, health.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "DENY", health.Header.Get("X-Frame-Options"))
}
