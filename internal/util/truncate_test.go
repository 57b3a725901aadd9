package util

import (
	"strings"
	"testing"
)

func TestTruncateLog(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{name: "empty", input: "", maxLen: 8, want: ""},
		{name: "under limit", input: "balance", maxLen: 8, want: "balance"},
		{name: "at limit", input: "balances", maxLen: 8, want: "balances"},
		{name: "over limit", input: "balance sheet", maxLen: 7,
			want: "balance... [truncated, 13 bytes total]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateLog(tt.input, tt.maxLen); got != tt.want {
				t.Fatalf("TruncateLog(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestTruncateBytes_CapsLargePayloads(t *testing.T) {
	payload := []byte(strings.Repeat("x", DefaultLogMaxLen+500))

	got := TruncateBytes(payload)
	if !strings.HasPrefix(got, strings.Repeat("x", DefaultLogMaxLen)) {
		t.Fatalf("leading %d bytes not preserved", DefaultLogMaxLen)
	}
	if !strings.Contains(got, "[truncated,") {
		t.Fatalf("truncation marker missing from %q", got[DefaultLogMaxLen:])
	}
}
