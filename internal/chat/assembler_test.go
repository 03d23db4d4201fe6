package chat

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/dishahealth/disha/internal/cache"
	"github.com/dishahealth/disha/internal/llm"
	"github.com/dishahealth/disha/internal/memory"
	"github.com/dishahealth/disha/internal/observability"
	"github.com/dishahealth/disha/internal/protocols"
	"github.com/dishahealth/disha/internal/store"
)

func testMetrics(name string) *observability.Metrics {
	return observability.NewMetrics(fmt.Sprintf("test_chat_%s_%d", name, time.Now().UnixNano()))
}

func newTestAssembler(t *testing.T, st *store.InMemoryStore, maxMessages, maxTokens int) *Assembler {
	t.Helper()
	accessor := memory.NewAccessor(st, st)
	source := protocols.NewCachedSource(st, cache.NewNoop())
	return NewAssembler(st, accessor, source, testMetrics(t.Name()), maxMessages, maxTokens)
}

func TestBuildSystemFirstUserLast(t *testing.T) {
	st := store.NewInMemoryStore()
	ctx := context.Background()
	a := newTestAssembler(t, st, 15, 3000)

	for i := 0; i < 4; i++ {
		if _, err := st.AppendTurn(ctx, store.Turn{UserID: "u1", Role: store.RoleUser, Content: fmt.Sprintf("question %d", i)}); err != nil {
			t.Fatalf("AppendTurn() error = %v", err)
		}
	}

	messages, err := a.Build(ctx, "u1", "current question")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if messages[0].Role != "system" {
		t.Fatalf("messages[0].Role = %q, want system", messages[0].Role)
	}
	last := messages[len(messages)-1]
	if last.Role != "user" || last.Content != "current question" {
		t.Fatalf("last message = %+v, want current user message", last)
	}
}

func TestBuildEmptyHistoryStillTwoMessages(t *testing.T) {
	st := store.NewInMemoryStore()
	a := newTestAssembler(t, st, 15, 3000)

	messages, err := a.Build(context.Background(), "u1", "hello")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("len(messages) = %d, want 2 (system + user)", len(messages))
	}
	if !strings.Contains(messages[0].Content, "Disha") {
		t.Fatalf("system message missing instructions: %q", messages[0].Content[:40])
	}
}

func TestBuildHistoryChronologicalWithinBudget(t *testing.T) {
	st := store.NewInMemoryStore()
	ctx := context.Background()

	// Budget chosen so only a handful of history turns fit: the system prompt
	// consumes its share first, then each turn costs 100 tokens.
	turnContent := strings.Repeat("x", 400)
	for i := 0; i < 10; i++ {
		role := store.RoleUser
		if i%2 == 1 {
			role = store.RoleAssistant
		}
		if _, err := st.AppendTurn(ctx, store.Turn{UserID: "u1", Role: role, Content: fmt.Sprintf("%02d %s", i, turnContent)}); err != nil {
			t.Fatalf("AppendTurn() error = %v", err)
		}
	}

	systemTokens := llm.CountTokens(SystemPrompt)
	turnTokens := llm.CountTokens(fmt.Sprintf("%02d %s", 0, turnContent))
	// Budget admits exactly 3 turns past the system prompt and the reserve.
	budget := systemTokens + 3*turnTokens + ReplyReserve + 1

	a := newTestAssembler(t, st, 15, budget)
	messages, err := a.Build(ctx, "u1", "now")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	// system + 3 history + current
	if len(messages) != 5 {
		t.Fatalf("len(messages) = %d, want 5", len(messages))
	}
	// The chronological walk admits from the start of the window and stops at
	// the first overflow, so the oldest turns of the window survive.
	history := messages[1:4]
	wantPrefixes := []string{"00", "01", "02"}
	for i, m := range history {
		if !strings.HasPrefix(m.Content, wantPrefixes[i]) {
			t.Fatalf("history[%d] starts with %q, want %q", i, m.Content[:2], wantPrefixes[i])
		}
	}
	if messages[4].Content != "now" {
		t.Fatalf("messages[4].Content = %q, want current message", messages[4].Content)
	}
}

func TestBuildStopsAtFirstOverflow(t *testing.T) {
	st := store.NewInMemoryStore()
	ctx := context.Background()

	// Oldest admitted turn is huge; once it overflows, later (smaller) turns
	// must not be re-admitted: the walk terminates.
	big := strings.Repeat("b", 4000)
	small := "tiny"
	for _, content := range []string{small, big, small, small} {
		if _, err := st.AppendTurn(ctx, store.Turn{UserID: "u1", Role: store.RoleUser, Content: content}); err != nil {
			t.Fatalf("AppendTurn() error = %v", err)
		}
	}

	budget := llm.CountTokens(SystemPrompt) + ReplyReserve + 500
	a := newTestAssembler(t, st, 15, budget)

	messages, err := a.Build(ctx, "u1", "now")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	// Chronological walk hits "tiny" (fits), then big (overflows, stop).
	if len(messages) != 3 {
		t.Fatalf("len(messages) = %d, want 3 (system + 1 turn + current)", len(messages))
	}
	if messages[1].Content != small {
		t.Fatalf("messages[1].Content = %q, want %q", messages[1].Content, small)
	}
}

func TestBuildIncludesMemoryAndProtocolBlocks(t *testing.T) {
	st := store.NewInMemoryStore()
	ctx := context.Background()
	if err := st.SeedProtocols(ctx, store.DefaultProtocols()); err != nil {
		t.Fatalf("SeedProtocols() error = %v", err)
	}
	if _, err := st.InsertMemories(ctx, []store.Memory{
		{UserID: "u1", Content: "has two kids", Category: "demographics", ImportanceScore: 0.7},
	}); err != nil {
		t.Fatalf("InsertMemories() error = %v", err)
	}

	a := newTestAssembler(t, st, 15, 5000)
	messages, err := a.Build(ctx, "u1", "I have a fever since yesterday")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	system := messages[0].Content
	if !strings.Contains(system, "[LONG-TERM MEMORIES]") {
		t.Fatalf("system message missing memory block")
	}
	if !strings.Contains(system, "has two kids") {
		t.Fatalf("system message missing memory content")
	}
	if !strings.Contains(system, "[PROTOCOLS]") || !strings.Contains(system, "Fever Management") {
		t.Fatalf("system message missing matched protocol")
	}
}

func TestBuildOmitsEmptyBlocks(t *testing.T) {
	st := store.NewInMemoryStore()
	a := newTestAssembler(t, st, 15, 3000)

	messages, err := a.Build(context.Background(), "u1", "just saying hi")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	system := messages[0].Content
	if strings.Contains(system, "[LONG-TERM MEMORIES]") || strings.Contains(system, "[PROTOCOLS]") {
		t.Fatalf("system message has empty blocks: %q", system)
	}
	if system != SystemPrompt {
		t.Fatalf("system message = %d bytes, want bare system prompt", len(system))
	}
}
