package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/dishahealth/disha/internal/cache"
	"github.com/dishahealth/disha/internal/chat"
	"github.com/dishahealth/disha/internal/config"
	"github.com/dishahealth/disha/internal/llm"
	"github.com/dishahealth/disha/internal/observability"
	"github.com/dishahealth/disha/internal/store"
)

const (
	maxMessageLength   = 5000
	defaultHistoryPage = 50
	maxHistoryPage     = 100

	// onboardingTurnTarget is how many onboarding-flagged turns mark the
	// guided intro as complete.
	onboardingTurnTarget = 10
)

// Replier produces one assistant reply per user message. It never fails; the
// generator substitutes a fallback reply on any upstream error.
type Replier interface {
	Generate(ctx context.Context, userID, userMessage string) string
}

type Server struct {
	cfg      config.Config
	store    store.Store
	cache    cache.Cache
	replier  Replier
	metrics  *observability.Metrics
	limiters *userLimiters
	upgrader websocket.Upgrader
}

func New(cfg config.Config, st store.Store, c cache.Cache, replier Replier, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:      cfg,
		store:    st,
		cache:    c,
		replier:  replier,
		metrics:  metrics,
		limiters: newUserLimiters(cfg.ChatRatePerSecond, cfg.ChatRateBurst),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Default: only allow browser websocket connections from the
				// same origin. Prevents other websites from driving a user's
				// chat if the service is ever exposed beyond localhost.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/api/health", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/api/perf/latency", s.handlePerfLatency)

	r.Post("/api/users", s.handleCreateUser)
	r.Get("/api/users/{id}", s.handleGetUser)

	r.Post("/api/messages", s.handleSendMessage)
	r.Get("/api/messages", s.handleListMessages)

	r.Post("/api/onboarding", s.handleOnboarding)
	r.Get("/api/typing/{userID}", s.handleTypingStatus)

	r.Get("/api/chat/ws", s.handleChatWS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"service":   "disha-health-coach",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type createUserRequest struct {
	Name     string         `json:"name"`
	Metadata map[string]any `json:"user_metadata"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	user, err := s.store.CreateUser(r.Context(), store.User{
		Name:     strings.TrimSpace(req.Name),
		Metadata: req.Metadata,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_user_id", "missing user id")
		return
	}

	user, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			respondError(w, http.StatusNotFound, "user_not_found", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, user)
}

type sendMessageRequest struct {
	UserID       string `json:"user_id"`
	Content      string `json:"content"`
	IsOnboarding bool   `json:"is_onboarding"`
}

type sendMessageResponse struct {
	UserMessage      store.Turn `json:"user_message"`
	AssistantMessage store.Turn `json:"assistant_message"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		respondError(w, http.StatusBadRequest, "invalid_user_id", "user_id is required")
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		respondError(w, http.StatusBadRequest, "empty_message", "content must not be blank")
		return
	}
	if len(content) > maxMessageLength {
		respondError(w, http.StatusBadRequest, "message_too_long", "content exceeds 5000 characters")
		return
	}
	if !s.limiters.Allow(userID) {
		respondError(w, http.StatusTooManyRequests, "rate_limited", "too many messages, slow down")
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

	userTurn, assistantTurn, err := s.runTurn(r.Context(), userID, content, req.IsOnboarding)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, sendMessageResponse{
		UserMessage:      userTurn,
		AssistantMessage: assistantTurn,
	})
}

// runTurn is the shared persist -> typing -> generate -> persist pipeline
// behind both the REST send endpoint and the websocket channel. The user turn
// is persisted before generation so a model failure never loses user input.
// The onboarding flag marks both persisted turns, feeding the onboarding
// completion counter.
func (s *Server) runTurn(ctx context.Context, userID, content string, isOnboarding bool) (store.Turn, store.Turn, error) {
	turnStart := time.Now()
	userTurn, err := s.store.AppendTurn(ctx, store.Turn{
		UserID:       userID,
		Role:         store.RoleUser,
		Content:      content,
		IsOnboarding: isOnboarding,
		TokenCount:   llm.CountTokens(content),
	})
	if err != nil {
		return store.Turn{}, store.Turn{}, err
	}
	s.metrics.TurnsTotal.WithLabelValues(store.RoleUser).Inc()

	s.cache.SetTyping(ctx, userID, true)
	defer s.cache.SetTyping(ctx, userID, false)

	reply := s.replier.Generate(ctx, userID, content)

	persistStart := time.Now()
	assistantTurn, err := s.store.AppendTurn(ctx, store.Turn{
		UserID:       userID,
		Role:         store.RoleAssistant,
		Content:      reply,
		IsOnboarding: isOnboarding,
		TokenCount:   llm.CountTokens(reply),
	})
	s.metrics.ObserveTurnStage(observability.StagePersist, time.Since(persistStart))
	if err != nil {
		return store.Turn{}, store.Turn{}, err
	}
	s.metrics.TurnsTotal.WithLabelValues(store.RoleAssistant).Inc()
	s.metrics.ObserveTurnStage(observability.StageTurnTotal, time.Since(turnStart))

	return userTurn, assistantTurn, nil
}

type listMessagesResponse struct {
	Messages   []store.Turn `json:"messages"`
	HasMore    bool         `json:"has_more"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		respondError(w, http.StatusBadRequest, "invalid_user_id", "query parameter user_id is required")
		return
	}
	limit := defaultHistoryPage
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		if n > maxHistoryPage {
			n = maxHistoryPage
		}
		limit = n
	}
	cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))

	// Fetch one extra row to learn whether an older page exists.
	turns, err := s.store.TurnsBefore(r.Context(), userID, cursor, limit+1)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	hasMore := len(turns) > limit
	if hasMore {
		turns = turns[:limit]
	}
	nextCursor := ""
	if hasMore && len(turns) > 0 {
		// Storage order is newest first; the oldest row anchors the next page.
		nextCursor = turns[len(turns)-1].ID
	}
	// Pages read top-to-bottom like a chat transcript.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	if turns == nil {
		turns = []store.Turn{}
	}

	respondJSON(w, http.StatusOK, listMessagesResponse{
		Messages:   turns,
		HasMore:    hasMore,
		NextCursor: nextCursor,
	})
}

type onboardingRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

type onboardingResponse struct {
	UserID             string `json:"user_id"`
	Message            string `json:"message"`
	OnboardingComplete bool   `json:"onboarding_complete"`
}

// handleOnboarding starts or continues the guided intro. Without a message it
// returns the fixed greeting; with one it generates the next onboarding
// question. Neither path persists turns here: the client sends its answers
// through the message endpoint with the onboarding flag set, and those turns
// drive the completion counter.
func (s *Server) handleOnboarding(w http.ResponseWriter, r *http.Request) {
	var req onboardingRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		respondError(w, http.StatusBadRequest, "invalid_user_id", "user_id is required")
		return
	}

	user, err := s.store.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			respondError(w, http.StatusNotFound, "user_not_found", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}

	count, err := s.store.CountOnboardingTurns(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}

	var reply string
	if message := strings.TrimSpace(req.Message); message != "" {
		reply = s.replier.Generate(r.Context(), userID, message)
	} else {
		reply = chat.Greeting(user.Name)
	}

	respondJSON(w, http.StatusOK, onboardingResponse{
		UserID:             userID,
		Message:            reply,
		OnboardingComplete: count >= onboardingTurnTarget,
	})
}

func (s *Server) handleTypingStatus(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(chi.URLParam(r, "userID"))
	if userID == "" {
		respondError(w, http.StatusBadRequest, "invalid_user_id", "missing user id")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"user_id":   userID,
		"is_typing": s.cache.IsTyping(r.Context(), userID),
	})
}

func (s *Server) handlePerfLatency(w http.ResponseWriter, _ *http.Request) {
	if s.metrics == nil {
		respondJSON(w, http.StatusOK, map[string]any{
			"generated_at": "",
			"window_size":  0,
			"stages":       []any{},
		})
		return
	}
	respondJSON(w, http.StatusOK, s.metrics.SnapshotTurnStages())
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
