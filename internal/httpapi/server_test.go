package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dishahealth/disha/internal/cache"
	"github.com/dishahealth/disha/internal/config"
	"github.com/dishahealth/disha/internal/observability"
	"github.com/dishahealth/disha/internal/store"
)

type echoReplier struct{}

func (echoReplier) Generate(_ context.Context, _ string, userMessage string) string {
	return "coach: " + userMessage
}

func newTestServer(t *testing.T, st store.Store) *Server {
	t.Helper()
	cfg := config.Config{
		ChatRatePerSecond: 1000,
		ChatRateBurst:     1000,
		AllowAnyOrigin:    true,
	}
	name := strings.NewReplacer("/", "_", "=", "_").Replace(t.Name())
	metrics := observability.NewMetrics(fmt.Sprintf("test_httpapi_%s_%d", name, time.Now().UnixNano()))
	return New(cfg, st, cache.NewNoop(), echoReplier{}, metrics)
}

func createTestUser(t *testing.T, ts *httptest.Server, name string) store.User {
	t.Helper()
	body, _ := json.Marshal(map[string]any{"name": name})
	res, err := http.Post(ts.URL+"/api/users", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("create user request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create user status = %d, want %d", res.StatusCode, http.StatusCreated)
	}
	var user store.User
	if err := json.NewDecoder(res.Body).Decode(&user); err != nil {
		t.Fatalf("decode create user response: %v", err)
	}
	if user.ID == "" {
		t.Fatalf("created user has empty id")
	}
	return user
}

func TestCreateAndGetUser(t *testing.T) {
	srv := newTestServer(t, store.NewInMemoryStore())
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	user := createTestUser(t, ts, "Asha")

	res, err := http.Get(ts.URL + "/api/users/" + user.ID)
	if err != nil {
		t.Fatalf("get user request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get user status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	var got store.User
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode get user response: %v", err)
	}
	if got.Name != "Asha" {
		t.Fatalf("Name = %q, want %q", got.Name, "Asha")
	}

	missing, err := http.Get(ts.URL + "/api/users/nope")
	if err != nil {
		t.Fatalf("get missing user request error = %v", err)
	}
	defer missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("missing user status = %d, want %d", missing.StatusCode, http.StatusNotFound)
	}
}

func TestSendMessagePersistsBothTurns(t *testing.T) {
	st := store.NewInMemoryStore()
	srv := newTestServer(t, st)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	user := createTestUser(t, ts, "Asha")

	body, _ := json.Marshal(map[string]string{"user_id": user.ID, "content": "I feel tired"})
	res, err := http.Post(ts.URL+"/api/messages", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("send message request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("send status = %d, want %d", res.StatusCode, http.StatusCreated)
	}

	var out sendMessageResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode send response: %v", err)
	}
	if out.UserMessage.Content != "I feel tired" || out.UserMessage.Role != store.RoleUser {
		t.Fatalf("user message = %+v, want the sent content", out.UserMessage)
	}
	if out.AssistantMessage.Content != "coach: I feel tired" || out.AssistantMessage.Role != store.RoleAssistant {
		t.Fatalf("assistant message = %+v, want the generated reply", out.AssistantMessage)
	}

	turns, err := st.RecentByUser(context.Background(), user.ID, 10)
	if err != nil {
		t.Fatalf("RecentByUser() error = %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("persisted %d turns, want 2", len(turns))
	}
	// Newest first: the assistant reply precedes the user message.
	if turns[0].Role != store.RoleAssistant || turns[1].Role != store.RoleUser {
		t.Fatalf("turn roles = %q,%q, want assistant,user", turns[0].Role, turns[1].Role)
	}
}

func TestSendMessageValidation(t *testing.T) {
	srv := newTestServer(t, store.NewInMemoryStore())
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	user := createTestUser(t, ts, "Asha")

	cases := []struct {
		name   string
		body   map[string]string
		status int
	}{
		{"blank content", map[string]string{"user_id": user.ID, "content": "   "}, http.StatusBadRequest},
		{"missing user id", map[string]string{"content": "hi"}, http.StatusBadRequest},
		{"oversized content", map[string]string{"user_id": user.ID, "content": strings.Repeat("a", maxMessageLength+1)}, http.StatusBadRequest},
		{"unknown user", map[string]string{"user_id": "ghost", "content": "hi"}, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, _ := json.Marshal(tc.body)
			res, err := http.Post(ts.URL+"/api/messages", "application/json", bytes.NewReader(body))
			if err != nil {
				t.Fatalf("request error = %v", err)
			}
			defer res.Body.Close()
			if res.StatusCode != tc.status {
				t.Fatalf("status = %d, want %d", res.StatusCode, tc.status)
			}
		})
	}
}

func TestSendMessageRateLimited(t *testing.T) {
	st := store.NewInMemoryStore()
	cfg := config.Config{
		ChatRatePerSecond: 0.001,
		ChatRateBurst:     2,
		AllowAnyOrigin:    true,
	}
	metrics := observability.NewMetrics(fmt.Sprintf("test_httpapi_ratelimit_%d", time.Now().UnixNano()))
	srv := New(cfg, st, cache.NewNoop(), echoReplier{}, metrics)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	user := createTestUser(t, ts, "Asha")

	send := func() int {
		body, _ := json.Marshal(map[string]string{"user_id": user.ID, "content": "hi"})
		res, err := http.Post(ts.URL+"/api/messages", "application/json", bytes.NewReader(body))
		if err != nil {
			t.Fatalf("request error = %v", err)
		}
		defer res.Body.Close()
		return res.StatusCode
	}

	for i := 0; i < 2; i++ {
		if status := send(); status != http.StatusCreated {
			t.Fatalf("send %d status = %d, want %d", i, status, http.StatusCreated)
		}
	}
	if status := send(); status != http.StatusTooManyRequests {
		t.Fatalf("over-burst status = %d, want %d", status, http.StatusTooManyRequests)
	}
}

func TestListMessagesPagination(t *testing.T) {
	st := store.NewInMemoryStore()
	srv := newTestServer(t, st)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	user := createTestUser(t, ts, "Asha")
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := st.AppendTurn(ctx, store.Turn{UserID: user.ID, Role: store.RoleUser, Content: fmt.Sprintf("m%d", i)}); err != nil {
			t.Fatalf("AppendTurn() error = %v", err)
		}
	}

	fetch := func(cursor string) listMessagesResponse {
		u := ts.URL + "/api/messages?user_id=" + user.ID + "&limit=2"
		if cursor != "" {
			u += "&cursor=" + cursor
		}
		res, err := http.Get(u)
		if err != nil {
			t.Fatalf("list request error = %v", err)
		}
		defer res.Body.Close()
		if res.StatusCode != http.StatusOK {
			t.Fatalf("list status = %d, want %d", res.StatusCode, http.StatusOK)
		}
		var page listMessagesResponse
		if err := json.NewDecoder(res.Body).Decode(&page); err != nil {
			t.Fatalf("decode list response: %v", err)
		}
		return page
	}

	first := fetch("")
	if len(first.Messages) != 2 || !first.HasMore || first.NextCursor == "" {
		t.Fatalf("first page = %+v, want 2 messages with has_more", first)
	}
	// The latest page, read chronologically.
	if first.Messages[0].Content != "m3" || first.Messages[1].Content != "m4" {
		t.Fatalf("first page contents = %q,%q, want m3,m4", first.Messages[0].Content, first.Messages[1].Content)
	}

	second := fetch(first.NextCursor)
	if second.Messages[0].Content != "m1" || second.Messages[1].Content != "m2" {
		t.Fatalf("second page contents = %q,%q, want m1,m2", second.Messages[0].Content, second.Messages[1].Content)
	}

	third := fetch(second.NextCursor)
	if len(third.Messages) != 1 || third.HasMore || third.Messages[0].Content != "m0" {
		t.Fatalf("third page = %+v, want the single oldest message", third)
	}
}

func postOnboarding(t *testing.T, ts *httptest.Server, userID, message string) onboardingResponse {
	t.Helper()
	payload := map[string]string{"user_id": userID}
	if message != "" {
		payload["message"] = message
	}
	body, _ := json.Marshal(payload)
	res, err := http.Post(ts.URL+"/api/onboarding", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("onboarding request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("onboarding status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	var out onboardingResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode onboarding response: %v", err)
	}
	return out
}

func TestOnboardingGreetingAndCompletion(t *testing.T) {
	st := store.NewInMemoryStore()
	srv := newTestServer(t, st)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	user := createTestUser(t, ts, "Asha")

	first := postOnboarding(t, ts, user.ID, "")
	if !strings.Contains(first.Message, "Asha") {
		t.Fatalf("greeting = %q, want personalized", first.Message)
	}
	if first.OnboardingComplete {
		t.Fatalf("onboarding complete on first contact")
	}

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		if _, err := st.AppendTurn(ctx, store.Turn{UserID: user.ID, Role: store.RoleUser, Content: "answer", IsOnboarding: true}); err != nil {
			t.Fatalf("AppendTurn() error = %v", err)
		}
	}
	if done := postOnboarding(t, ts, user.ID, ""); !done.OnboardingComplete {
		t.Fatalf("onboarding not complete after enough flagged turns")
	}
}

func TestOnboardingContinuationGeneratesReply(t *testing.T) {
	st := store.NewInMemoryStore()
	srv := newTestServer(t, st)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	user := createTestUser(t, ts, "Asha")

	out := postOnboarding(t, ts, user.ID, "I am 32 and work in tech")
	if out.Message != "coach: I am 32 and work in tech" {
		t.Fatalf("continuation reply = %q, want generated reply", out.Message)
	}
}

func TestOnboardingGreetingOnlyNeverCompletes(t *testing.T) {
	// The start endpoint persists nothing; only flagged message sends move the
	// completion counter.
	st := store.NewInMemoryStore()
	srv := newTestServer(t, st)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	user := createTestUser(t, ts, "Asha")

	for i := 0; i < 11; i++ {
		if out := postOnboarding(t, ts, user.ID, ""); out.OnboardingComplete {
			t.Fatalf("onboarding complete after %d greeting-only calls", i+1)
		}
	}
	turns, err := st.RecentByUser(context.Background(), user.ID, 50)
	if err != nil {
		t.Fatalf("RecentByUser() error = %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("greeting calls persisted %d turns, want 0", len(turns))
	}
}

func TestSendMessageOnboardingFlagDrivesCompletion(t *testing.T) {
	st := store.NewInMemoryStore()
	srv := newTestServer(t, st)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	user := createTestUser(t, ts, "Asha")

	send := func(content string) {
		body, _ := json.Marshal(map[string]any{"user_id": user.ID, "content": content, "is_onboarding": true})
		res, err := http.Post(ts.URL+"/api/messages", "application/json", bytes.NewReader(body))
		if err != nil {
			t.Fatalf("send request error = %v", err)
		}
		defer res.Body.Close()
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("send status = %d, want %d", res.StatusCode, http.StatusCreated)
		}
	}

	send("my name is Asha")
	turns, err := st.RecentByUser(context.Background(), user.ID, 10)
	if err != nil {
		t.Fatalf("RecentByUser() error = %v", err)
	}
	if len(turns) != 2 || !turns[0].IsOnboarding || !turns[1].IsOnboarding {
		t.Fatalf("turns = %+v, want both flagged as onboarding", turns)
	}

	// Five flagged exchanges = ten flagged turns, the completion threshold.
	for i := 0; i < 4; i++ {
		send("another answer")
	}
	if out := postOnboarding(t, ts, user.ID, ""); !out.OnboardingComplete {
		t.Fatalf("onboarding not complete after five flagged exchanges")
	}
}

func TestTypingStatusEndpoint(t *testing.T) {
	srv := newTestServer(t, store.NewInMemoryStore())
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	res, err := http.Get(ts.URL + "/api/typing/u1")
	if err != nil {
		t.Fatalf("typing request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("typing status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	var out map[string]any
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode typing response: %v", err)
	}
	if typing, _ := out["is_typing"].(bool); typing {
		t.Fatalf("is_typing = true, want false with no active turn")
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, store.NewInMemoryStore())
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	res, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("health request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	var out map[string]any
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode health response: %v", err)
	}
	if out["status"] != "healthy" {
		t.Fatalf("status = %v, want healthy", out["status"])
	}
}

func TestChatWSRoundTrip(t *testing.T) {
	st := store.NewInMemoryStore()
	srv := newTestServer(t, st)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	user := createTestUser(t, ts, "Asha")

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/chat/ws?user_id=" + user.ID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("ws dial error = %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(wsClientMessage{Type: "message", Content: "hello"}); err != nil {
		t.Fatalf("ws write error = %v", err)
	}

	readEvent := func() map[string]any {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var out map[string]any
		if err := conn.ReadJSON(&out); err != nil {
			t.Fatalf("ws read error = %v", err)
		}
		return out
	}

	typingOn := readEvent()
	if typingOn["type"] != wsEventTyping || typingOn["is_typing"] != true {
		t.Fatalf("first event = %+v, want typing on", typingOn)
	}

	reply := readEvent()
	if reply["type"] != wsEventReply {
		t.Fatalf("second event = %+v, want reply", reply)
	}
	assistant, _ := reply["assistant_message"].(map[string]any)
	if assistant["content"] != "coach: hello" {
		t.Fatalf("assistant content = %v, want generated reply", assistant["content"])
	}

	typingOff := readEvent()
	if typingOff["type"] != wsEventTyping || typingOff["is_typing"] != false {
		t.Fatalf("third event = %+v, want typing off", typingOff)
	}
}

func TestChatWSUnknownUser(t *testing.T) {
	srv := newTestServer(t, store.NewInMemoryStore())
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/chat/ws?user_id=ghost"
	conn, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		conn.Close()
		t.Fatalf("ws dial succeeded for unknown user")
	}
	if res == nil || res.StatusCode != http.StatusNotFound {
		t.Fatalf("ws dial response = %+v, want 404", res)
	}
}
