package chat

import (
	"context"
	"strings"

	"github.com/dishahealth/disha/internal/llm"
	"github.com/dishahealth/disha/internal/memory"
	"github.com/dishahealth/disha/internal/observability"
	"github.com/dishahealth/disha/internal/protocols"
	"github.com/dishahealth/disha/internal/store"
)

const (
	// ReplyReserve is held back from the token budget for the current user
	// message before any history is admitted.
	ReplyReserve = 200

	// MemoryLimit caps how many memories are pulled into one context window.
	MemoryLimit = 5
)

// Assembler builds the exact message list sent to the model for one turn.
type Assembler struct {
	turns     store.TurnStore
	memories  *memory.Accessor
	protocols protocols.Source
	metrics   *observability.Metrics

	maxContextMessages int
	maxInputTokens     int
}

func NewAssembler(
	turns store.TurnStore,
	memories *memory.Accessor,
	protocolSource protocols.Source,
	metrics *observability.Metrics,
	maxContextMessages int,
	maxInputTokens int,
) *Assembler {
	return &Assembler{
		turns:              turns,
		memories:           memories,
		protocols:          protocolSource,
		metrics:            metrics,
		maxContextMessages: maxContextMessages,
		maxInputTokens:     maxInputTokens,
	}
}

// Build assembles the context window: one system message carrying the fixed
// instructions plus memory and protocol blocks, a token-budgeted run of recent
// history in chronological order, and the current user message last. History
// admission stops at the first turn that would overflow the budget; the
// current user message is appended regardless.
func (a *Assembler) Build(ctx context.Context, userID, userMessage string) ([]llm.Message, error) {
	totalTokens := llm.CountTokens(SystemPrompt)

	relevant, err := a.memories.Relevant(ctx, userID, MemoryLimit)
	if err != nil {
		return nil, err
	}
	memoryBlock := memory.FormatForContext(relevant)
	totalTokens += llm.CountTokens(memoryBlock)

	available, err := a.protocols.Protocols(ctx)
	if err != nil {
		return nil, err
	}
	matched := protocols.Match(userMessage, available)
	if a.metrics != nil {
		a.metrics.ProtocolMatches.Add(float64(len(matched)))
	}
	protocolBlock := protocols.FormatForContext(matched)
	totalTokens += llm.CountTokens(protocolBlock)

	var system strings.Builder
	system.WriteString(SystemPrompt)
	if memoryBlock != "" {
		system.WriteString("\n\n")
		system.WriteString(memoryBlock)
	}
	if protocolBlock != "" {
		system.WriteString("\n\n")
		system.WriteString(protocolBlock)
	}

	messages := []llm.Message{{Role: "system", Content: system.String()}}

	recent, err := a.turns.RecentByUser(ctx, userID, a.maxContextMessages)
	if err != nil {
		return nil, err
	}
	// Storage order is newest first; the prompt wants chronological.
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}

	for _, turn := range recent {
		turnTokens := llm.CountTokens(turn.Content)
		if totalTokens+turnTokens >= a.maxInputTokens-ReplyReserve {
			break
		}
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
		totalTokens += turnTokens
	}

	messages = append(messages, llm.Message{Role: "user", Content: userMessage})
	return messages, nil
}
