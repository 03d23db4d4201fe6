package protocols

import (
	"strings"
	"testing"

	"github.com/dishahealth/disha/internal/store"
)

func testProtocols() []store.Protocol {
	return []store.Protocol{
		{
			Name:        "Fever Management",
			Description: "Protocol for fever",
			Keywords:    []string{"fever", "temperature", "chills"},
			Instructions: store.ProtocolInstructions{
				Steps:    []string{"Ask about duration", "Recommend rest"},
				Warnings: []string{"Seek care above 103°F", "Watch for dehydration"},
			},
		},
		{
			Name:        "Headache Management",
			Description: "Protocol for headaches",
			Keywords:    []string{"headache", "migraine"},
		},
	}
}

func TestMatchIsCaseInsensitiveSubstring(t *testing.T) {
	cases := []struct {
		message string
		want    []string
	}{
		{"I have a FEVER today", []string{"Fever Management"}},
		{"my head hurts, maybe a migraine", []string{"Headache Management"}},
		{"fever and headache together", []string{"Fever Management", "Headache Management"}},
		{"feeling great", nil},
		{"running a high Temperature and chills", []string{"Fever Management"}},
	}

	for _, tc := range cases {
		got := Match(tc.message, testProtocols())
		if len(got) != len(tc.want) {
			t.Fatalf("Match(%q) returned %d protocols, want %d", tc.message, len(got), len(tc.want))
		}
		for i, name := range tc.want {
			if got[i].Name != name {
				t.Fatalf("Match(%q)[%d].Name = %q, want %q", tc.message, i, got[i].Name, name)
			}
		}
	}
}

func TestMatchIncludesProtocolAtMostOnce(t *testing.T) {
	// Message hits two keywords of the same protocol.
	got := Match("fever with chills", testProtocols())
	if len(got) != 1 {
		t.Fatalf("Match() returned %d protocols, want 1", len(got))
	}
}

func TestMatchPreservesInputOrder(t *testing.T) {
	// Headache keyword appears before fever keyword in the message; output must
	// still follow the protocol set order.
	got := Match("migraine and fever", testProtocols())
	if len(got) != 2 {
		t.Fatalf("Match() returned %d protocols, want 2", len(got))
	}
	if got[0].Name != "Fever Management" || got[1].Name != "Headache Management" {
		t.Fatalf("Match() order = %q,%q, want input order", got[0].Name, got[1].Name)
	}
}

func TestFormatForContextEmptyInput(t *testing.T) {
	if out := FormatForContext(nil); out != "" {
		t.Fatalf("FormatForContext(nil) = %q, want empty string", out)
	}
}

func TestFormatForContextRendersStepsAndWarnings(t *testing.T) {
	out := FormatForContext(testProtocols()[:1])

	if !strings.HasPrefix(out, "\n[PROTOCOLS]\n") {
		t.Fatalf("output missing header: %q", out)
	}
	if !strings.Contains(out, "**Fever Management**") {
		t.Fatalf("output missing protocol name: %q", out)
	}
	if !strings.Contains(out, "1. Ask about duration\n2. Recommend rest\n") {
		t.Fatalf("output missing numbered steps: %q", out)
	}
	if !strings.Contains(out, "Warnings: Seek care above 103°F, Watch for dehydration\n") {
		t.Fatalf("output missing comma-joined warnings: %q", out)
	}
}

func TestFormatForContextOmitsMissingSections(t *testing.T) {
	out := FormatForContext(testProtocols()[1:])
	if strings.Contains(out, "Steps:") {
		t.Fatalf("output has Steps section for protocol without steps: %q", out)
	}
	if strings.Contains(out, "Warnings:") {
		t.Fatalf("output has Warnings section for protocol without warnings: %q", out)
	}
}
