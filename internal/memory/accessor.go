// Package memory extracts long-term memories from conversation text and
// retrieves them for prompt inclusion. Extraction is a fixed keyword table
// scan, not model-driven: each category yields at most one memory per call,
// taken from the first sentence containing the first matching keyword.
package memory

import (
	"context"
	"strings"

	"github.com/dishahealth/disha/internal/store"
)

// DefaultImportance is assigned to every keyword-extracted memory.
const DefaultImportance = 0.7

// categoryPattern binds a memory category to its ordered trigger keywords.
type categoryPattern struct {
	category string
	keywords []string
}

// extractionTable is evaluated in order; the order is part of the contract
// since it fixes the order of the created memories.
var extractionTable = []categoryPattern{
	{"demographics", []string{"age", "years old", "gender", "location"}},
	{"health_condition", []string{"diagnosed", "suffer from", "condition", "disease", "allergy", "allergic"}},
	{"medication", []string{"taking", "prescribed", "medicine", "medication", "drug"}},
	{"lifestyle", []string{"exercise", "diet", "sleep", "work", "job"}},
	{"symptoms", []string{"pain", "ache", "fever", "nausea", "headache", "cough"}},
}

// Accessor reads and writes a user's long-term memories.
type Accessor struct {
	store store.MemoryStore
	turns store.TurnStore
}

func NewAccessor(memories store.MemoryStore, turns store.TurnStore) *Accessor {
	return &Accessor{store: memories, turns: turns}
}

// ShouldExtract reports whether extraction is due for the user: true on every
// Nth persisted user-authored turn.
func (a *Accessor) ShouldExtract(ctx context.Context, userID string, interval int) (bool, error) {
	if interval <= 0 {
		return false, nil
	}
	count, err := a.turns.CountUserAuthoredTurns(ctx, userID)
	if err != nil {
		return false, err
	}
	return count > 0 && count%interval == 0, nil
}

// ExtractAndStore scans text against the extraction table and persists the
// resulting memories as one atomic batch. It returns the created memories.
func (a *Accessor) ExtractAndStore(ctx context.Context, userID, text string) ([]store.Memory, error) {
	extracted := Extract(userID, text)
	if len(extracted) == 0 {
		return nil, nil
	}
	return a.store.InsertMemories(ctx, extracted)
}

// Extract performs the keyword scan without persisting anything.
func Extract(userID, text string) []store.Memory {
	textLower := strings.ToLower(text)

	var memories []store.Memory
	for _, pattern := range extractionTable {
		for _, keyword := range pattern.keywords {
			if !strings.Contains(textLower, keyword) {
				continue
			}
			// First sentence containing the keyword wins; further keywords in
			// this category are not considered either way.
			sentences := strings.Split(text, ".")
			for _, sentence := range sentences {
				if strings.Contains(strings.ToLower(sentence), keyword) {
					memories = append(memories, store.Memory{
						UserID:          userID,
						Content:         strings.TrimSpace(sentence),
						Category:        pattern.category,
						ImportanceScore: DefaultImportance,
					})
					break
				}
			}
			break
		}
	}
	return memories
}

// Relevant returns the user's top memories by (importance desc, recency desc).
func (a *Accessor) Relevant(ctx context.Context, userID string, limit int) ([]store.Memory, error) {
	return a.store.TopByUser(ctx, userID, limit)
}

// FormatForContext renders memories as a prompt block, grouped by category in
// first-seen order. An empty input yields the empty string.
func FormatForContext(memories []store.Memory) string {
	if len(memories) == 0 {
		return ""
	}

	var categoryOrder []string
	byCategory := make(map[string][]string)
	for _, m := range memories {
		if _, seen := byCategory[m.Category]; !seen {
			categoryOrder = append(categoryOrder, m.Category)
		}
		byCategory[m.Category] = append(byCategory[m.Category], m.Content)
	}

	var b strings.Builder
	b.WriteString("\n[LONG-TERM MEMORIES]\n")
	for _, category := range categoryOrder {
		b.WriteString(categoryTitle(category))
		b.WriteString(":\n")
		for _, content := range byCategory[category] {
			b.WriteString("- ")
			b.WriteString(content)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// categoryTitle turns "health_condition" into "Health Condition".
func categoryTitle(category string) string {
	words := strings.Split(strings.ReplaceAll(category, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
