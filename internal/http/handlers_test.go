package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"example.com/miniblog/internal/auth"
	"example.com/miniblog/internal/config"
	"example.com/miniblog/internal/content"
	"example.com/miniblog/internal/db"
	"example.com/miniblog/internal/session"
	"example.com/miniblog/internal/ws"
)

func init() {
	gin.SetMode(gin.TestMode)
}

//
// --- Helpers ---
//

func testConfig() *config.Config {
	return &config.Config{
		CORSOrigin: "*",
		SessionTTL: time.Hour,
		// Generous so ordinary tests never trip it.
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
	}
}

func setupTestServer(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()

	database, err := db.Init("sqlite://" + filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	if err := db.Migrate(database); err != nil {
		t.Fatalf("db.Migrate failed: %v", err)
	}

	sessions := session.NewMemoryStore()
	t.Cleanup(sessions.Close)

	hub := ws.NewHub()
	go hub.Run()

	router := gin.New()
	env := &Env{
		Auth:       auth.NewService(database, sessions, cfg.SessionTTL),
		Content:    content.NewService(database),
		Hub:        hub,
		SessionTTL: cfg.SessionTTL,
	}
	SetupRoutes(router, env, cfg)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

// sendJSONRequest performs a request and decodes the JSON response body.
func sendJSONRequest(t *testing.T, method, url string, body any, token string, expectedStatus int) map[string]any {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json.Marshal failed: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != expectedStatus {
		t.Fatalf("expected %d, got %d: %s", expectedStatus, resp.StatusCode, string(raw))
	}

	var decoded map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("decoding response failed: %v: %s", err, string(raw))
		}
	}
	return decoded
}

func signupHelper(t *testing.T, baseURL, username, password string) string {
	t.Helper()
	body := sendJSONRequest(t, http.MethodPost, baseURL+"/auth/signup",
		map[string]string{"username": username, "password": password}, "", http.StatusCreated)
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatal("expected a session token in the signup response")
	}
	return token
}

//
// --- Tests ---
//

// Register -> create post -> fetch it with author joined in.
func TestSignupPostAndFetchFlow(t *testing.T) {
	srv := setupTestServer(t, testConfig())

	token := signupHelper(t, srv.URL, "alice", "pw1")

	created := sendJSONRequest(t, http.MethodPost, srv.URL+"/posts",
		map[string]string{"title": "Hi", "body": "World"}, token, http.StatusCreated)
	postID := int(created["id"].(float64))
	if postID == 0 {
		t.Fatal("expected a post id")
	}

	got := sendJSONRequest(t, http.MethodGet, srv.URL+"/posts/"+itoa(postID), nil, "", http.StatusOK)
	post := got["post"].(map[string]any)
	if post["title"] != "Hi" || post["username"] != "alice" {
		t.Fatalf("unexpected post payload: %+v", post)
	}
	if comments := got["comments"].([]any); len(comments) != 0 {
		t.Fatalf("expected no comments yet, got %+v", comments)
	}
}

func TestSignupDuplicateUsername(t *testing.T) {
	srv := setupTestServer(t, testConfig())

	signupHelper(t, srv.URL, "alice", "pw1")
	sendJSONRequest(t, http.MethodPost, srv.URL+"/auth/signup",
		map[string]string{"username": "alice", "password": "other"}, "", http.StatusConflict)
}

func TestLogin(t *testing.T) {
	srv := setupTestServer(t, testConfig())

	signupHelper(t, srv.URL, "alice", "pw1")

	body := sendJSONRequest(t, http.MethodPost, srv.URL+"/auth/login",
		map[string]string{"username": "alice", "password": "pw1"}, "", http.StatusOK)
	if body["token"] == "" {
		t.Fatal("expected a token on successful login")
	}

	sendJSONRequest(t, http.MethodPost, srv.URL+"/auth/login",
		map[string]string{"username": "alice", "password": "wrong"}, "", http.StatusUnauthorized)
}

func TestWriteRequiresSession(t *testing.T) {
	srv := setupTestServer(t, testConfig())

	sendJSONRequest(t, http.MethodPost, srv.URL+"/posts",
		map[string]string{"title": "Hi", "body": "World"}, "", http.StatusUnauthorized)
}

// Anonymous visitors asking for their own posts get pointed at the login
// path; the client decides how to present that.
func TestListPostsAnonymous(t *testing.T) {
	srv := setupTestServer(t, testConfig())

	body := sendJSONRequest(t, http.MethodGet, srv.URL+"/posts", nil, "", http.StatusUnauthorized)
	if body["location"] != "/auth/login" {
		t.Fatalf("expected login location hint, got %+v", body)
	}
}

func TestListPostsScopedToOwner(t *testing.T) {
	srv := setupTestServer(t, testConfig())

	aliceToken := signupHelper(t, srv.URL, "alice", "pw1")
	bobToken := signupHelper(t, srv.URL, "bob", "pw2")

	sendJSONRequest(t, http.MethodPost, srv.URL+"/posts",
		map[string]string{"title": "mine", "body": ""}, aliceToken, http.StatusCreated)

	aliceBody := sendJSONRequest(t, http.MethodGet, srv.URL+"/posts", nil, aliceToken, http.StatusOK)
	if posts := aliceBody["posts"].([]any); len(posts) != 1 {
		t.Fatalf("expected alice to see 1 post, got %d", len(posts))
	}

	bobBody := sendJSONRequest(t, http.MethodGet, srv.URL+"/posts", nil, bobToken, http.StatusOK)
	if posts := bobBody["posts"].([]any); len(posts) != 0 {
		t.Fatalf("expected bob to see 0 posts, got %d", len(posts))
	}
}

func TestCommentFlow(t *testing.T) {
	srv := setupTestServer(t, testConfig())

	aliceToken := signupHelper(t, srv.URL, "alice", "pw1")
	bobToken := signupHelper(t, srv.URL, "bob", "pw2")

	created := sendJSONRequest(t, http.MethodPost, srv.URL+"/posts",
		map[string]string{"title": "Hi", "body": "World"}, aliceToken, http.StatusCreated)
	postID := int(created["id"].(float64))

	sendJSONRequest(t, http.MethodPost, srv.URL+"/posts/"+itoa(postID)+"/comments",
		map[string]string{"body": "nice post"}, bobToken, http.StatusCreated)

	got := sendJSONRequest(t, http.MethodGet, srv.URL+"/posts/"+itoa(postID), nil, "", http.StatusOK)
	comments := got["comments"].([]any)
	if len(comments) != 1 {
		t.Fatalf("expected 1 comment, got %d", len(comments))
	}
	comment := comments[0].(map[string]any)
	if comment["body"] != "nice post" || comment["username"] != "bob" {
		t.Fatalf("unexpected comment payload: %+v", comment)
	}
}

func TestCommentOnMissingPost(t *testing.T) {
	srv := setupTestServer(t, testConfig())

	token := signupHelper(t, srv.URL, "alice", "pw1")
	sendJSONRequest(t, http.MethodPost, srv.URL+"/posts/9999/comments",
		map[string]string{"body": "into the void"}, token, http.StatusNotFound)
}

func TestGetPostNotFound(t *testing.T) {
	srv := setupTestServer(t, testConfig())

	sendJSONRequest(t, http.MethodGet, srv.URL+"/posts/9999", nil, "", http.StatusNotFound)
}

func TestLogout(t *testing.T) {
	srv := setupTestServer(t, testConfig())

	token := signupHelper(t, srv.URL, "alice", "pw1")
	sendJSONRequest(t, http.MethodPost, srv.URL+"/auth/logout", nil, token, http.StatusNoContent)

	// The token is dead; writes are rejected again.
	sendJSONRequest(t, http.MethodPost, srv.URL+"/posts",
		map[string]string{"title": "late", "body": ""}, token, http.StatusUnauthorized)

	// Logging out again is harmless.
	sendJSONRequest(t, http.MethodPost, srv.URL+"/auth/logout", nil, token, http.StatusNoContent)
}

func TestUsersEndpoints(t *testing.T) {
	srv := setupTestServer(t, testConfig())

	aliceToken := signupHelper(t, srv.URL, "alice", "pw1")
	signupHelper(t, srv.URL, "bob", "pw2")

	sendJSONRequest(t, http.MethodPost, srv.URL+"/posts",
		map[string]string{"title": "Hi", "body": "World"}, aliceToken, http.StatusCreated)

	listing := sendJSONRequest(t, http.MethodGet, srv.URL+"/users", nil, "", http.StatusOK)
	users := listing["users"].([]any)
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	first := users[0].(map[string]any)
	if first["username"] != "alice" {
		t.Fatalf("unexpected first user: %+v", first)
	}
	if _, leaked := first["password"]; leaked {
		t.Fatal("password must not appear in the users listing")
	}

	aliceID := int(first["id"].(float64))
	profile := sendJSONRequest(t, http.MethodGet, srv.URL+"/users/"+itoa(aliceID), nil, "", http.StatusOK)
	if posts := profile["posts"].([]any); len(posts) != 1 {
		t.Fatalf("expected alice's profile to list 1 post, got %d", len(posts))
	}

	sendJSONRequest(t, http.MethodGet, srv.URL+"/users/9999", nil, "", http.StatusNotFound)
}

// The session also travels as a cookie, the way a browser client uses it.
func TestSessionCookieFlow(t *testing.T) {
	srv := setupTestServer(t, testConfig())

	data, _ := json.Marshal(map[string]string{"username": "alice", "password": "pw1"})
	resp, err := http.Post(srv.URL+"/auth/signup", "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	resp.Body.Close()

	var sessionCookie *http.Cookie
	for _, ck := range resp.Cookies() {
		if ck.Name == SessionCookie {
			sessionCookie = ck
		}
	}
	if sessionCookie == nil {
		t.Fatal("expected the signup response to set the session cookie")
	}
	if !sessionCookie.HttpOnly {
		t.Fatal("session cookie must be HttpOnly")
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/posts", nil)
	req.AddCookie(sessionCookie)
	listResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("listing failed: %v", err)
	}
	defer listResp.Body.Close()
	if listResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with session cookie, got %d", listResp.StatusCode)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitRPS = 0.01
	cfg.RateLimitBurst = 1
	srv := setupTestServer(t, cfg)

	signupHelper(t, srv.URL, "alice", "pw1")
	sendJSONRequest(t, http.MethodPost, srv.URL+"/auth/login",
		map[string]string{"username": "alice", "password": "pw1"}, "", http.StatusTooManyRequests)
}

func TestWebsocketReceivesNewPost(t *testing.T) {
	srv := setupTestServer(t, testConfig())

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	defer conn.Close()

	// Give the hub a moment to register the client.
	time.Sleep(50 * time.Millisecond)

	token := signupHelper(t, srv.URL, "alice", "pw1")
	sendJSONRequest(t, http.MethodPost, srv.URL+"/posts",
		map[string]string{"title": "Hi", "body": "World"}, token, http.StatusCreated)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading broadcast failed: %v", err)
	}

	var msg WsMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("decoding broadcast failed: %v", err)
	}
	if msg.Type != "new_post" {
		t.Fatalf("expected new_post broadcast, got %q", msg.Type)
	}
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
