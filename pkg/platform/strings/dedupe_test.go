package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "empty",
			input:    "",
			expected: nil,
		},
		{
			name:     "only separators",
			input:    " , ,, ",
			expected: nil,
		},
		{
			name:     "trims whitespace",
			input:    "  https://dweb.link/ipfs/ , https://ipfs.io/ipfs/",
			expected: []string{"https://dweb.link/ipfs/", "https://ipfs.io/ipfs/"},
		},
		{
			name:     "removes duplicates preserving order",
			input:    "b1:9092,b2:9092,b1:9092",
			expected: []string{"b1:9092", "b2:9092"},
		},
		{
			name:     "preserves case",
			input:    "https://App.example,https://app.example",
			expected: []string{"https://App.example", "https://app.example"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SplitList(tt.input))
		})
	}
}
