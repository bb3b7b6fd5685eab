package service

import (
	"strings"
	"testing"
)

func TestChunkText(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		size    int
		overlap int
		want    []string
	}{
		{
			name: "empty input",
			text: "", size: 10, overlap: 2,
			want: nil,
		},
		{
			name: "whitespace only",
			text: "  \n\t  ", size: 10, overlap: 2,
			want: nil,
		},
		{
			name: "zero size",
			text: "hello", size: 0, overlap: 0,
			want: nil,
		},
		{
			name: "fits in one chunk",
			text: "hello world", size: 20, overlap: 5,
			want: []string{"hello world"},
		},
		{
			name: "splits with overlap",
			text: "abcdefghij", size: 4, overlap: 2,
			want: []string{"abcd", "cdef", "efgh", "ghij"},
		},
		{
			name: "no overlap",
			text: "abcdefgh", size: 4, overlap: 0,
			want: []string{"abcd", "efgh"},
		},
		{
			name: "normalizes whitespace",
			text: "a  b\n\nc\td", size: 20, overlap: 0,
			want: []string{"a b c d"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ChunkText(tt.text, tt.size, tt.overlap)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d chunks %v, want %d %v", len(got), got, len(tt.want), tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("chunk %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestChunkTextOverlapLargerThanSizeTerminates(t *testing.T) {
	chunks := ChunkText(strings.Repeat("x", 50), 4, 10)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	// Degenerate overlap falls back to a step of one rune.
	if len(chunks) != 47 {
		t.Errorf("got %d chunks, want 47", len(chunks))
	}
}

func TestChunkTextCoversWholeInput(t *testing.T) {
	text := strings.Repeat("abcde ", 100)
	chunks := ChunkText(text, 64, 16)

	joined := strings.Join(chunks, "")
	cleaned := normalizeWhitespace(text)
	// With overlap every rune of the input appears at least once.
	for _, r := range cleaned {
		if !strings.ContainsRune(joined, r) {
			t.Fatalf("rune %q missing from chunks", r)
		}
	}
	last := chunks[len(chunks)-1]
	if !strings.HasSuffix(cleaned, last) {
		t.Error("last chunk does not end the input")
	}
}
