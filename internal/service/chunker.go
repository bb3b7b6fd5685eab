package service

import "strings"

// ChunkText splits text into rune-based windows of size with the given
// overlap between consecutive windows. Whitespace is normalized first so
// chunk boundaries do not depend on the document's formatting. An overlap
// equal to or larger than the size degrades to a step of one rune, so the
// split always terminates.
func ChunkText(text string, size, overlap int) []string {
	if size <= 0 {
		return nil
	}

	cleaned := normalizeWhitespace(text)
	if cleaned == "" {
		return nil
	}

	runes := []rune(cleaned)
	if len(runes) <= size {
		return []string{cleaned}
	}

	step := size - overlap
	if step < 1 {
		step = 1
	}

	chunks := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// normalizeWhitespace collapses all whitespace runs into single spaces.
func normalizeWhitespace(text string) string {
	if text == "" {
		return ""
	}
	return strings.Join(strings.Fields(text), " ")
}
