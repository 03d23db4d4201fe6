package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dishahealth/disha/internal/store"
)

// Websocket event types pushed to the client.
const (
	wsEventTyping = "typing"
	wsEventReply  = "reply"
	wsEventError  = "error"
)

type wsClientMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type wsTypingEvent struct {
	Type     string `json:"type"`
	UserID   string `json:"user_id"`
	IsTyping bool   `json:"is_typing"`
}

type wsReplyEvent struct {
	Type             string     `json:"type"`
	UserMessage      store.Turn `json:"user_message"`
	AssistantMessage store.Turn `json:"assistant_message"`
}

type wsErrorEvent struct {
	Type   string `json:"type"`
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

// handleChatWS runs the live chat channel: the client sends message events,
// the server pushes typing and reply events back. Each connection serves one
// user; writes stay single-threaded through the outbound channel.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		respondError(w, http.StatusBadRequest, "invalid_user_id", "query parameter user_id is required")
		return
	}
	if _, err := s.store.GetUser(r.Context(), userID); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			respondError(w, http.StatusNotFound, "user_not_found", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.metrics.ActiveChatStreams.Inc()
	defer s.metrics.ActiveChatStreams.Dec()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outbound := make(chan any, 64)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-outbound:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	send := func(msg any) bool {
		select {
		case <-ctx.Done():
			return false
		case outbound <- msg:
			return true
		}
	}

	conn.SetReadLimit(64 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		if msgType != websocket.TextMessage {
			continue
		}

		var msg wsClientMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "message" {
			send(wsErrorEvent{Type: wsEventError, Code: "invalid_client_message", Detail: "expected a message event"})
			continue
		}
		content := strings.TrimSpace(msg.Content)
		if content == "" || len(content) > maxMessageLength {
			send(wsErrorEvent{Type: wsEventError, Code: "invalid_content", Detail: "content must be 1 to 5000 characters"})
			continue
		}
		if !s.limiters.Allow(userID) {
			send(wsErrorEvent{Type: wsEventError, Code: "rate_limited", Detail: "too many messages, slow down"})
			continue
		}

		send(wsTypingEvent{Type: wsEventTyping, UserID: userID, IsTyping: true})
		userTurn, assistantTurn, err := s.runTurn(ctx, userID, content, false)
		if err != nil {
			send(wsErrorEvent{Type: wsEventError, Code: "store_error", Detail: err.Error()})
			send(wsTypingEvent{Type: wsEventTyping, UserID: userID, IsTyping: false})
			continue
		}
		send(wsReplyEvent{Type: wsEventReply, UserMessage: userTurn, AssistantMessage: assistantTurn})
		send(wsTypingEvent{Type: wsEventTyping, UserID: userID, IsTyping: false})
	}

	cancel()
	<-writerDone
}
