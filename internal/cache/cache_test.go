package cache

import (
	"context"
	"testing"
)

func TestNoopReportsEverythingAbsent(t *testing.T) {
	c := NewNoop()
	ctx := context.Background()

	c.SetTyping(ctx, "u1", true)
	if c.IsTyping(ctx, "u1") {
		t.Fatalf("IsTyping() = true, want false from noop cache")
	}

	if _, ok := c.CachedProtocols(ctx); ok {
		t.Fatalf("CachedProtocols() ok = true, want false from noop cache")
	}
}

func TestNewFallsBackToNoopWithoutURL(t *testing.T) {
	c := New(context.Background(), "")
	if _, ok := c.(Noop); !ok {
		t.Fatalf("New(\"\") = %T, want Noop", c)
	}
}
