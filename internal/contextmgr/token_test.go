package contextmgr

import (
	"strings"
	"testing"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected int
	}{
		{"empty", "", 0},
		{"single char", "a", 1},
		{"three chars", "abc", 1},
		{"four chars", "abcd", 2},
		{"exact multiple", "abcdefg", 2},
		{"eight chars", "abcdefgh", 3},
		{"multibyte counts runes", "héllo", 2},
		{"525 chars", strings.Repeat("x", 525), 150},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimateTokens(tt.text)
			if got != tt.expected {
				t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.expected)
			}
		})
	}
}

func TestEstimateTokens_Monotonic(t *testing.T) {
	prev := 0
	for n := 0; n <= 200; n++ {
		got := EstimateTokens(strings.Repeat("a", n))
		if got < prev {
			t.Fatalf("EstimateTokens not monotonic at length %d: %d < %d", n, got, prev)
		}
		prev = got
	}
}

func TestEstimateMessagesTokens(t *testing.T) {
	tests := []struct {
		name     string
		messages []Message
		expected int
	}{
		{"nil", nil, 0},
		{"empty content still costs overhead", []Message{{Role: RoleUser}}, MessageOverhead},
		{
			name: "sum plus overhead",
			messages: []Message{
				{Role: RoleUser, Content: "abcd"},          // 2
				{Role: RoleAssistant, Content: "abcdefgh"}, // 3
			},
			expected: 2 + 3 + 2*MessageOverhead,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateMessagesTokens(tt.messages); got != tt.expected {
				t.Errorf("EstimateMessagesTokens() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestEstimateMessagesTokens_OrderIndependent(t *testing.T) {
	a := []Message{
		{Role: RoleUser, Content: "first message"},
		{Role: RoleAssistant, Content: "a somewhat longer second message"},
		{Role: RoleUser, Content: "3"},
	}
	b := []Message{a[2], a[0], a[1]}

	if EstimateMessagesTokens(a) != EstimateMessagesTokens(b) {
		t.Error("EstimateMessagesTokens depends on message order")
	}
}
