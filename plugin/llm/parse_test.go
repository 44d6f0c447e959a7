package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseList(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected int
		want     []string
	}{
		{
			name:     "plain lines",
			text:     "alpha\nbeta\ngamma",
			expected: 3,
			want:     []string{"alpha", "beta", "gamma"},
		},
		{
			name:     "bullets and numbering",
			text:     "• one\n- two\n* three\n4. four\n5) five",
			expected: 5,
			want:     []string{"one", "two", "three", "four", "five"},
		},
		{
			name:     "blank lines and padding",
			text:     "\n\n  first  \n\n\r\nsecond\n",
			expected: 4,
			want:     []string{"first", "second", "Additional item 3", "Additional item 4"},
		},
		{
			name:     "truncates extra lines",
			text:     "a\nb\nc\nd\ne\nf\ng",
			expected: 5,
			want:     []string{"a", "b", "c", "d", "e"},
		},
		{
			name:     "empty text is all placeholders",
			text:     "",
			expected: 2,
			want:     []string{"Additional item 1", "Additional item 2"},
		},
		{
			name:     "marker-only lines are dropped",
			text:     "-\n*\n1.\nreal",
			expected: 1,
			want:     []string{"real"},
		},
		{
			name:     "multi-digit numbering",
			text:     "12. twelve\n13)thirteen",
			expected: 2,
			want:     []string{"twelve", "thirteen"},
		},
		{
			name:     "zero expected",
			text:     "a\nb",
			expected: 0,
			want:     []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseList(tt.text, tt.expected)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseListAlwaysReturnsExpectedCount(t *testing.T) {
	inputs := []string{"", "x", "x\ny", "1. a\n2. b\n3. c\n4. d\n5. e\n6. f\n7. g", "\n\n\n"}
	for _, input := range inputs {
		for n := 0; n <= 8; n++ {
			assert.Len(t, ParseList(input, n), n, "input %q n=%d", input, n)
		}
	}
	assert.Empty(t, ParseList("a", -1))
}
