// Package chunker splits extracted text into fixed-size overlapping windows.
// The overlap keeps sentences that straddle a boundary retrievable from
// either side.
package chunker

// Split cuts text into windows of at most size runes, each starting overlap
// runes before the previous window's end. A non-positive size returns the
// whole text as one chunk; an overlap >= size degrades to a step of one.
func Split(text string, size, overlap int) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if size <= 0 || len(runes) <= size {
		return []string{text}
	}

	step := size - overlap
	if step < 1 {
		step = 1
	}

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
