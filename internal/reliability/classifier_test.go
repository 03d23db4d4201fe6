package reliability

import (
	"testing"
	"time"
)

func TestRetryableStatus(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{200, false},
		{400, false},
		{404, false},
		{429, true},
		{500, true},
		{502, true},
		{503, true},
		{504, true},
	}
	for _, tc := range cases {
		got := RetryableStatus(tc.code)
		if got != tc.want {
			t.Fatalf("RetryableStatus(%d) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestBackoffDoubles(t *testing.T) {
	base := 100 * time.Millisecond
	cap := 2 * time.Second
	if got := Backoff(0, base, cap); got != base {
		t.Fatalf("Backoff(0) = %v, want %v", got, base)
	}
	if got := Backoff(1, base, cap); got != 200*time.Millisecond {
		t.Fatalf("Backoff(1) = %v, want 200ms", got)
	}
	if got := Backoff(2, base, cap); got != 400*time.Millisecond {
		t.Fatalf("Backoff(2) = %v, want 400ms", got)
	}
}

func TestBackoffCapped(t *testing.T) {
	base := 100 * time.Millisecond
	cap := 2 * time.Second
	if got := Backoff(20, base, cap); got != cap {
		t.Fatalf("Backoff(20) = %v, want cap %v", got, cap)
	}
}
