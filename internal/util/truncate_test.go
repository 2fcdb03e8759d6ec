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
		{name: "short", input: `{"error":{"message":"nope"}}`, maxLen: DefaultLogMaxLen, want: `{"error":{"message":"nope"}}`},
		{name: "exact limit", input: "12345678901234567890", maxLen: 20, want: "12345678901234567890"},
		{name: "long", input: "1234567890abcdefghij", maxLen: 10, want: "1234567890... [truncated, 20 bytes total]"},
		{name: "empty", input: "", maxLen: 10, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateLog(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("TruncateLog() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncateBytes_KeepsPrefix(t *testing.T) {
	body := []byte(strings.Repeat("x", 2000))
	got := TruncateBytes(body)
	if !strings.HasPrefix(got, string(body[:DefaultLogMaxLen])) {
		t.Error("TruncateBytes() should preserve first DefaultLogMaxLen bytes")
	}
	if !strings.HasSuffix(got, "[truncated, 2000 bytes total]") {
		t.Errorf("TruncateBytes() missing truncation suffix: %q", got[DefaultLogMaxLen:])
	}
}
