package store

import (
	"context"
	"errors"
	"time"
)

// Role values for conversation turns.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	// ErrUserNotFound is returned when a referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// User is a health-coach user account.
type User struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Metadata  map[string]any `json:"user_metadata"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Turn is one stored chat message, authored by the user or the assistant.
// Turns are append-only and never mutated after creation.
type Turn struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Role         string    `json:"role"`
	Content      string    `json:"content"`
	IsOnboarding bool      `json:"is_onboarding"`
	TokenCount   int       `json:"token_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// Memory is a durable categorized fact inferred about a user from conversation.
type Memory struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Content         string    `json:"content"`
	Category        string    `json:"category"`
	ImportanceScore float64   `json:"importance_score"`
	CreatedAt       time.Time `json:"created_at"`
}

// ProtocolInstructions holds the structured guidance body of a protocol.
type ProtocolInstructions struct {
	Steps    []string `json:"steps,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Protocol is a static keyword-triggered block of guidance injected into the
// model prompt. Read-only from the service's perspective.
type Protocol struct {
	ID           string               `json:"id"`
	Name         string               `json:"name"`
	Description  string               `json:"description"`
	Keywords     []string             `json:"keywords"`
	Instructions ProtocolInstructions `json:"instructions"`
	CreatedAt    time.Time            `json:"created_at"`
}

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user User) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
}

// TurnStore persists conversation history. Appends must be visible to the
// next read for the same user (read-your-writes).
type TurnStore interface {
	AppendTurn(ctx context.Context, turn Turn) (Turn, error)
	// RecentByUser returns up to limit turns for the user, newest first.
	RecentByUser(ctx context.Context, userID string, limit int) ([]Turn, error)
	// TurnsBefore returns up to limit turns created strictly before the turn
	// identified by cursor, newest first. An empty cursor means "latest".
	TurnsBefore(ctx context.Context, userID, cursor string, limit int) ([]Turn, error)
	CountUserAuthoredTurns(ctx context.Context, userID string) (int, error)
	CountOnboardingTurns(ctx context.Context, userID string) (int, error)
}

// MemoryStore persists extracted long-term memories.
type MemoryStore interface {
	// InsertMemories stores the batch atomically: either all memories are
	// persisted or none are.
	InsertMemories(ctx context.Context, memories []Memory) ([]Memory, error)
	// TopByUser returns up to limit memories ordered by
	// (importance_score desc, created_at desc).
	TopByUser(ctx context.Context, userID string, limit int) ([]Memory, error)
}

// ProtocolStore lists the static protocol set.
type ProtocolStore interface {
	ListProtocols(ctx context.Context) ([]Protocol, error)
}

// Store bundles every repository plus lifecycle management.
type Store interface {
	UserStore
	TurnStore
	MemoryStore
	ProtocolStore
	SeedProtocols(ctx context.Context, protocols []Protocol) error
	Close() error
}
