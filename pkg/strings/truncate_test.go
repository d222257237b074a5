package strings

import (
	"testing"
)

func TestOneLine(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{
			name:     "short reason unchanged",
			input:    "exit code 2",
			maxLen:   20,
			expected: "exit code 2",
		},
		{
			name:     "exact length unchanged",
			input:    "hello",
			maxLen:   5,
			expected: "hello",
		},
		{
			name:     "long reason truncated",
			input:    "3 of 120 cases failed after the retry budget ran out",
			maxLen:   24,
			expected: "3 of 120 cases failed...",
		},
		{
			name:     "newlines collapse to spaces",
			input:    "assertion failed:\nexpected 200\ngot 503",
			maxLen:   48,
			expected: "assertion failed: expected 200 got 503",
		},
		{
			name:     "whitespace runs collapse",
			input:    "timed\t\tout   after\r\n30000ms",
			maxLen:   48,
			expected: "timed out after 30000ms",
		},
		{
			name:     "leading and trailing whitespace trimmed",
			input:    "  exit code 7  ",
			maxLen:   20,
			expected: "exit code 7",
		},
		{
			name:     "unicode truncation slices runes",
			input:    "タイムアウトしました",
			maxLen:   6,
			expected: "タイム...",
		},
		{
			name:     "empty string",
			input:    "",
			maxLen:   10,
			expected: "",
		},
		{
			name:     "whitespace only becomes empty",
			input:    "   \n\t  ",
			maxLen:   10,
			expected: "",
		},
		{
			name:     "maxLen below minimum clamped",
			input:    "hello",
			maxLen:   2,
			expected: "h...",
		},
		{
			name:     "negative maxLen clamped",
			input:    "hello",
			maxLen:   -5,
			expected: "h...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := OneLine(tt.input, tt.maxLen)
			if result != tt.expected {
				t.Errorf("OneLine(%q, %d) = %q, want %q",
					tt.input, tt.maxLen, result, tt.expected)
			}
		})
	}
}

func TestOneLine_RuneLength(t *testing.T) {
	// 6 characters, 18 bytes in UTF-8; byte slicing would cut mid-rune
	input := "日本語テスト"
	result := OneLine(input, 5)

	expected := "日本..."
	if result != expected {
		t.Errorf("Expected %q but got %q", expected, result)
	}

	runeCount := 0
	for range result {
		runeCount++
	}
	if runeCount != 5 {
		t.Errorf("Expected 5 runes but got %d", runeCount)
	}
}
