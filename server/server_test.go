package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/techagentng/citizenchat/config"
	"github.com/techagentng/citizenchat/db"
	"github.com/techagentng/citizenchat/db/dbtest"
	"github.com/techagentng/citizenchat/events"
	"github.com/techagentng/citizenchat/models"
	"github.com/techagentng/citizenchat/presence"
	"github.com/techagentng/citizenchat/realtime"
	"github.com/techagentng/citizenchat/services"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Setenv("GIN_MODE", "test")
	os.Exit(m.Run())
}

type testServer struct {
	srv    *Server
	router *gin.Engine
	g      *db.GormDB
}

type envelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  *struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
		Fields  []struct {
			Field string `json:"field"`
		} `json:"fields"`
	} `json:"errors"`
	Status string `json:"status"`
}

func newTestServer(t *testing.T, tweak ...func(*config.Config)) *testServer {
	t.Helper()
	conf := &config.Config{
		JWTSecret:               "server-secret",
		InternalToken:           "internal-secret",
		DefaultPageSize:         20,
		MaxPageSize:             100,
		RequestTimeout:          time.Second,
		WSSendBuffer:            32,
		WSRateLimitPerSec:       100,
		WriteRateLimitPerMinute: 1000,
	}
	for _, f := range tweak {
		f(conf)
	}
	log := zap.NewNop().Sugar()
	g := dbtest.New(t)
	bus := events.NewBus(log)

	postRepo := db.NewPostRepo(g)
	posts := db.NewPostLookup(postRepo)
	comments := db.NewCommentLookup(postRepo)
	auth := services.NewAuthService(conf)
	notifications := services.NewNotificationService(db.NewNotificationRepo(g), bus, conf, log)
	messages := services.NewMessageService(db.NewConversationRepo(g), bus, conf, log)
	hub := realtime.NewHub(auth, messages, presence.NewMemoryStore(), realtime.Config{
		SendBuffer:     conf.WSSendBuffer,
		RatePerSec:     conf.WSRateLimitPerSec,
		RequestTimeout: conf.RequestTimeout,
	}, log)
	bus.Subscribe(hub.HandleEvent)
	t.Cleanup(hub.Shutdown)

	s := &Server{
		Config:              conf,
		Log:                 log,
		DB:                  g,
		AuthService:         auth,
		MessageService:      messages,
		NotificationService: notifications,
		LikeService:         services.NewLikeService(db.NewLikeRepo(g), posts, comments, notifications, conf, log),
		FollowService:       services.NewFollowService(db.NewFollowRepo(g), notifications, conf, log),
		PostService:         services.NewPostService(postRepo, posts, comments, notifications, conf, log),
		AccountService:      services.NewAccountService(db.NewPurgeRepo(g), conf, log),
		Hub:                 hub,
	}
	return &testServer{srv: s, router: s.setupRouter(), g: g}
}

func (ts *testServer) token(t *testing.T, id uint) string {
	t.Helper()
	tok, err := ts.srv.AuthService.IssueToken(&models.Identity{ID: id, Username: fmt.Sprintf("user%d", id)})
	require.NoError(t, err)
	return tok
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func (ts *testServer) internal(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(internalTokenHeader, ts.srv.Config.InternalToken)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

func TestAuthorizeRejectsMissingAndBadTokens(t *testing.T) {
	ts := newTestServer(t)

	w, env := ts.do(t, http.MethodGet, "/api/v1/conversations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	require.NotNil(t, env.Errors)
	assert.Equal(t, "UNAUTHENTICATED", env.Errors.Kind)

	w, _ = ts.do(t, http.MethodGet, "/api/v1/conversations", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSendAndReadConversation(t *testing.T) {
	ts := newTestServer(t)
	alice, bob := ts.token(t, 1), ts.token(t, 2)

	w, env := ts.do(t, http.MethodPost, "/api/v1/messages", alice, models.SendMessageRequest{ReceiverID: 2, Content: "  hi bob  "})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var msg models.Message
	require.NoError(t, json.Unmarshal(env.Data, &msg))
	assert.Equal(t, "1_2", msg.ConversationKey)
	assert.Equal(t, "  hi bob  ", msg.Content)

	w, env = ts.do(t, http.MethodGet, "/api/v1/messages/unread-count", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"unread_count":1}`, string(env.Data))

	w, env = ts.do(t, http.MethodGet, "/api/v1/conversations/1_2/messages?page=0&size=10", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page models.MessagePage
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Messages, 1)
	assert.Equal(t, 10, page.Size)

	_, env = ts.do(t, http.MethodGet, "/api/v1/messages/unread-count", bob, nil)
	assert.JSONEq(t, `{"unread_count":0}`, string(env.Data))

	w, _ = ts.do(t, http.MethodGet, "/api/v1/conversations/1_2/messages", ts.token(t, 3), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSendMessageValidation(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.token(t, 1)

	w, env := ts.do(t, http.MethodPost, "/api/v1/messages", alice, models.SendMessageRequest{ReceiverID: 2, Content: "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Errors)
	assert.Equal(t, "VALIDATION", env.Errors.Kind)

	w, _ = ts.do(t, http.MethodPost, "/api/v1/messages", alice, models.SendMessageRequest{ReceiverID: 1, Content: "me"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = ts.do(t, http.MethodPost, "/api/v1/conversations/start/abc", alice, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStartConversationAndList(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.token(t, 5)

	w, _ := ts.do(t, http.MethodPost, "/api/v1/conversations/start/3", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, env := ts.do(t, http.MethodGet, "/api/v1/conversations", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Conversations []models.ConversationView `json:"conversations"`
		Total         int64                     `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.EqualValues(t, 1, body.Total)
	require.Len(t, body.Conversations, 1)

	w, _ = ts.do(t, http.MethodPut, "/api/v1/conversations/3_5/read", alice, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestToggleLikeNotifiesOwner(t *testing.T) {
	ts := newTestServer(t)
	post := dbtest.Post(t, ts.g, 7)
	liker := ts.token(t, 8)
	path := fmt.Sprintf("/api/v1/posts/%d/like", post.ID)

	w, env := ts.do(t, http.MethodPut, path, liker, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"liked":true,"like_count":1}`, string(env.Data))

	_, env = ts.do(t, http.MethodGet, path, liker, nil)
	assert.JSONEq(t, `{"liked":true}`, string(env.Data))

	owner := ts.token(t, 7)
	_, env = ts.do(t, http.MethodGet, "/api/v1/notifications/unread/count", owner, nil)
	assert.JSONEq(t, `{"unread_count":1}`, string(env.Data))

	_, env = ts.do(t, http.MethodPut, path, liker, nil)
	assert.JSONEq(t, `{"liked":false,"like_count":0}`, string(env.Data))
	_, env = ts.do(t, http.MethodGet, "/api/v1/notifications/unread/count", owner, nil)
	assert.JSONEq(t, `{"unread_count":0}`, string(env.Data))

	w, _ = ts.do(t, http.MethodPut, "/api/v1/comments/999/like", liker, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFollowLifecycle(t *testing.T) {
	ts := newTestServer(t)
	follower := ts.token(t, 1)

	w, _ := ts.do(t, http.MethodPost, "/api/v1/users/2/follow", follower, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	w, env := ts.do(t, http.MethodPost, "/api/v1/users/2/follow", follower, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	require.NotNil(t, env.Errors)
	assert.Equal(t, "CONFLICT", env.Errors.Kind)

	_, env = ts.do(t, http.MethodGet, "/api/v1/users/2/followers", follower, nil)
	assert.JSONEq(t, `{"user_ids":[1],"total":1}`, string(env.Data))
	_, env = ts.do(t, http.MethodGet, "/api/v1/users/1/following", follower, nil)
	assert.JSONEq(t, `{"user_ids":[2],"total":1}`, string(env.Data))

	w, _ = ts.do(t, http.MethodDelete, "/api/v1/users/2/follow", follower, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = ts.do(t, http.MethodDelete, "/api/v1/users/2/follow", follower, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNotificationRoutes(t *testing.T) {
	ts := newTestServer(t)
	for _, follower := range []uint{2, 3, 4} {
		w, _ := ts.do(t, http.MethodPost, "/api/v1/users/1/follow", ts.token(t, follower), nil)
		require.Equal(t, http.StatusCreated, w.Code)
	}
	target := ts.token(t, 1)

	w, env := ts.do(t, http.MethodGet, "/api/v1/notifications?size=2", target, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page models.NotificationPage
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.EqualValues(t, 3, page.Total)
	require.Len(t, page.Notifications, 2)
	first := page.Notifications[0].ID

	w, _ = ts.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/notifications/%d/read", first), target, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = ts.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/notifications/%d/read", first), ts.token(t, 2), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	_, env = ts.do(t, http.MethodPatch, "/api/v1/notifications/mark-all-read", target, nil)
	assert.JSONEq(t, `{"updated":2}`, string(env.Data))

	w, _ = ts.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/notifications/%d", first), target, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	_, env = ts.do(t, http.MethodDelete, "/api/v1/notifications/all", target, nil)
	assert.JSONEq(t, `{"deleted":2}`, string(env.Data))
}

func TestInternalHooks(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/posts", strings.NewReader(`{"post_id":40,"author_id":9}`))
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = ts.internal(t, http.MethodPost, "/api/v1/internal/posts", models.PostEvent{PostID: 40, AuthorID: 9})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, _ = ts.internal(t, http.MethodPost, "/api/v1/internal/comments", models.CommentEvent{CommentID: 70, AuthorID: 3, PostID: 40, Content: "nice"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	owner := ts.token(t, 9)
	_, env := ts.do(t, http.MethodGet, "/api/v1/notifications/unread/count", owner, nil)
	assert.JSONEq(t, `{"unread_count":1}`, string(env.Data))

	w, env = ts.internal(t, http.MethodDelete, "/api/v1/internal/posts/40", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"removed":1}`, string(env.Data))

	w, _ = ts.internal(t, http.MethodDelete, "/api/v1/internal/users/9", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWriteRoutesAreRateLimitedPerUser(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) { c.WriteRateLimitPerMinute = 1 })
	alice := ts.token(t, 1)

	w, _ := ts.do(t, http.MethodPost, "/api/v1/messages", alice, models.SendMessageRequest{ReceiverID: 2, Content: "one"})
	require.Equal(t, http.StatusCreated, w.Code)
	w, env := ts.do(t, http.MethodPost, "/api/v1/messages", alice, models.SendMessageRequest{ReceiverID: 2, Content: "two"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	require.NotNil(t, env.Errors)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	w, _ = ts.do(t, http.MethodPost, "/api/v1/messages", ts.token(t, 2), models.SendMessageRequest{ReceiverID: 1, Content: "three"})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	w, env := ts.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"database":"ok"}`, string(env.Data))
}

func TestWebsocketHandshakeWithQueryToken(t *testing.T) {
	ts := newTestServer(t)
	httpSrv := httptest.NewServer(ts.router)
	defer httpSrv.Close()

	url := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/api/v1/ws?token=" + ts.token(t, 4)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env realtime.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	assert.Equal(t, realtime.TypeConnected, env.Type)

	assert.True(t, ts.srv.Hub.IsOnline(4))

	w, body := ts.do(t, http.MethodGet, "/api/v1/presence/4", ts.token(t, 5), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status struct {
		Online bool `json:"online"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &status))
	assert.True(t, status.Online)

	w, _ = ts.do(t, http.MethodPost, "/api/v1/messages", ts.token(t, 5), models.SendMessageRequest{ReceiverID: 4, Content: "live"})
	require.Equal(t, http.StatusCreated, w.Code)
	require.NoError(t, conn.ReadJSON(&env))
	assert.Equal(t, realtime.TypeNewMessage, env.Type)
}
