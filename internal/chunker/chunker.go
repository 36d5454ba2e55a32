// Package chunker splits document text into ordered, overlapping chunks.
package chunker

import "strings"

// Config defines chunking parameters.
type Config struct {
	// Size is the target chunk length in runes.
	Size int
	// Overlap is how many trailing runes of a chunk are repeated at the
	// start of the next one, so sentences cut at a boundary keep context.
	Overlap int
}

// DefaultConfig returns the production chunking parameters.
func DefaultConfig() Config {
	return Config{
		Size:    1000,
		Overlap: 150,
	}
}

// Split breaks text into ordered overlapping chunks. Chunk edges prefer
// sentence boundaries: when one falls inside the window's overlap region the
// chunk ends there instead of mid-sentence. It is a pure function: the same
// text and config always produce the same chunk sequence, which is what
// makes re-ingestion idempotent (chunk index i always holds the same
// content). Empty or whitespace-only input yields no chunks.
func Split(text string, cfg Config) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	n := len(runes)
	if cfg.Size <= 0 {
		cfg = DefaultConfig()
	}
	if n <= cfg.Size {
		return []string{text}
	}

	step := cfg.Size - cfg.Overlap
	if step <= 0 {
		step = cfg.Size
	}

	var chunks []string
	for start := 0; start < n; {
		end := start + cfg.Size
		if end >= n {
			// The final window would otherwise be fully contained in the
			// previous chunk's overlap region.
			if n-start > cfg.Overlap || start == 0 {
				chunks = append(chunks, string(runes[start:n]))
			}
			break
		}

		if cfg.Overlap > 0 {
			lo := end - cfg.Overlap
			if lo < start {
				lo = start
			}
			if cut := lastSentenceEnd(runes[lo:end]); cut > 0 {
				end = lo + cut
			}
		}
		chunks = append(chunks, string(runes[start:end]))

		next := end - cfg.Overlap
		if next <= start {
			next = start + step
		}
		start = next
	}
	return chunks
}

// lastSentenceEnd returns the index just past the last sentence-ending
// position in window, or 0 when there is none. A sentence ends at '.', '!'
// or '?' followed by whitespace, or at a newline.
func lastSentenceEnd(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		switch window[i] {
		case '\n':
			return i + 1
		case '.', '!', '?':
			if i+1 == len(window) || window[i+1] == ' ' || window[i+1] == '\n' || window[i+1] == '\t' {
				return i + 1
			}
		}
	}
	return 0
}
