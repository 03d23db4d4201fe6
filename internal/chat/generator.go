package chat

import (
	"context"
	"log"
	"time"

	"github.com/dishahealth/disha/internal/llm"
	"github.com/dishahealth/disha/internal/memory"
	"github.com/dishahealth/disha/internal/observability"
)

// FallbackReply is returned verbatim whenever the model call fails. The turn
// still completes; retrying is the caller's concern.
const FallbackReply = "I apologize, but I'm having trouble processing your message right now. Could you please try again in a moment?"

// Generator produces one assistant reply per user turn. It never returns an
// error: every upstream failure is absorbed into the fallback reply.
type Generator struct {
	assembler *Assembler
	client    llm.Client
	memories  *memory.Accessor
	metrics   *observability.Metrics

	temperature        float64
	maxTokens          int
	extractionInterval int
}

func NewGenerator(
	assembler *Assembler,
	client llm.Client,
	memories *memory.Accessor,
	metrics *observability.Metrics,
	temperature float64,
	maxTokens int,
	extractionInterval int,
) *Generator {
	return &Generator{
		assembler:          assembler,
		client:             client,
		memories:           memories,
		metrics:            metrics,
		temperature:        temperature,
		maxTokens:          maxTokens,
		extractionInterval: extractionInterval,
	}
}

// Generate builds the context window, calls the model and returns the reply
// text. On any failure it logs and returns FallbackReply instead.
func (g *Generator) Generate(ctx context.Context, userID, userMessage string) string {
	buildStart := time.Now()
	messages, err := g.assembler.Build(ctx, userID, userMessage)
	g.metrics.ObserveTurnStage(observability.StageContextBuild, time.Since(buildStart))
	if err != nil {
		log.Printf("chat: context build for %s failed: %v", userID, err)
		return g.fallback()
	}

	callStart := time.Now()
	reply, err := g.client.Complete(ctx, messages, g.temperature, g.maxTokens)
	elapsed := time.Since(callStart)
	g.metrics.ObserveTurnStage(observability.StageModelCall, elapsed)
	g.metrics.ModelLatency.Observe(float64(elapsed.Milliseconds()))
	if err != nil {
		g.metrics.ModelRequests.WithLabelValues("error").Inc()
		log.Printf("chat: model call for %s failed: %v", userID, err)
		return g.fallback()
	}
	g.metrics.ModelRequests.WithLabelValues("ok").Inc()

	g.maybeExtractMemories(ctx, userID, userMessage+" "+reply)

	return reply
}

func (g *Generator) fallback() string {
	g.metrics.FallbackReplies.Inc()
	g.metrics.MarkIndicator("fallback_reply")
	return FallbackReply
}

// maybeExtractMemories runs keyword extraction every Nth user turn. It is
// best-effort: extraction failures are logged and never reach the caller.
func (g *Generator) maybeExtractMemories(ctx context.Context, userID, conversationText string) {
	due, err := g.memories.ShouldExtract(ctx, userID, g.extractionInterval)
	if err != nil {
		log.Printf("chat: extraction check for %s failed: %v", userID, err)
		return
	}
	if !due {
		return
	}

	created, err := g.memories.ExtractAndStore(ctx, userID, conversationText)
	if err != nil {
		log.Printf("chat: memory extraction for %s failed: %v", userID, err)
		return
	}
	if len(created) > 0 {
		g.metrics.MemoriesExtracted.Add(float64(len(created)))
		g.metrics.MarkIndicator("memory_extraction")
	}
}
