// Package protocols matches user messages against the keyword-triggered
// protocol set and renders matches as prompt text. Matching is deliberately a
// plain case-insensitive substring scan, not semantic retrieval.
package protocols

import (
	"fmt"
	"strings"

	"github.com/dishahealth/disha/internal/store"
)

// Match returns the protocols whose keywords appear in message, preserving the
// input order. A protocol is included at most once: the first keyword hit
// short-circuits the remaining keyword checks for that protocol.
func Match(message string, protocols []store.Protocol) []store.Protocol {
	messageLower := strings.ToLower(message)

	var matched []store.Protocol
	for _, p := range protocols {
		for _, keyword := range p.Keywords {
			if strings.Contains(messageLower, strings.ToLower(keyword)) {
				matched = append(matched, p)
				break
			}
		}
	}
	return matched
}

// FormatForContext renders matched protocols as a prompt block. An empty match
// list yields the empty string so the block can be omitted entirely.
func FormatForContext(matches []store.Protocol) string {
	if len(matches) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n[PROTOCOLS]\n")
	for _, p := range matches {
		fmt.Fprintf(&b, "\n**%s**\n", p.Name)
		b.WriteString(p.Description)
		b.WriteString("\n")

		if len(p.Instructions.Steps) > 0 {
			b.WriteString("Steps:\n")
			for i, step := range p.Instructions.Steps {
				fmt.Fprintf(&b, "%d. %s\n", i+1, step)
			}
		}
		if len(p.Instructions.Warnings) > 0 {
			fmt.Fprintf(&b, "\nWarnings: %s\n", strings.Join(p.Instructions.Warnings, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}
