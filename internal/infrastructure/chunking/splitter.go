package chunking

import (
	"unicode"
)

// Window is a slice of the source text. Start is a rune offset.
type Window struct {
	Start int
	Text  string
}

type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 900
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

// Windows cuts text into overlapping windows of at most ChunkSize runes.
// A cut is moved back to the nearest whitespace in the last quarter of the
// window so words stay whole.
func (s *Splitter) Windows(text string) []Window {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= s.ChunkSize {
		return []Window{{Start: 0, Text: text}}
	}

	out := make([]Window, 0, len(runes)/(s.ChunkSize-s.Overlap)+1)
	for start := 0; start < len(runes); {
		end := min(start+s.ChunkSize, len(runes))
		if end < len(runes) {
			end = softBoundary(runes, start, end, s.ChunkSize/4)
		}
		out = append(out, Window{Start: start, Text: string(runes[start:end])})
		if end == len(runes) {
			break
		}
		next := end - s.Overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

func softBoundary(runes []rune, start, end, slack int) int {
	for i := end; i > end-slack && i > start+1; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}
