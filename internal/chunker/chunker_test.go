package chunker

import (
	"strings"
	"testing"
)

func TestSplit(t *testing.T) {
	cfg := Config{Size: 10, Overlap: 3}

	tests := []struct {
		name    string
		text    string
		wantLen int
	}{
		{"empty", "", 0},
		{"whitespace only", "   \n\t ", 0},
		{"shorter than size", "short", 1},
		{"exactly size", "aaaaaaaaaa", 1},
		{"two windows", strings.Repeat("a", 15), 2},
		{"short tail still emitted", strings.Repeat("a", 12), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := Split(tt.text, cfg)
			if len(chunks) != tt.wantLen {
				t.Errorf("Split() got %d chunks, want %d: %q", len(chunks), tt.wantLen, chunks)
			}
		})
	}
}

func TestSplitOverlap(t *testing.T) {
	text := "abcdefghijklmnopqrst" // 20 runes
	chunks := Split(text, Config{Size: 10, Overlap: 3})

	if len(chunks) < 2 {
		t.Fatalf("Split() got %d chunks, want at least 2", len(chunks))
	}
	if chunks[0] != "abcdefghij" {
		t.Errorf("chunks[0] = %q", chunks[0])
	}
	// Each chunk restarts Overlap runes before the previous one ended.
	if !strings.HasPrefix(chunks[1], "hij") {
		t.Errorf("chunks[1] = %q, want overlap prefix %q", chunks[1], "hij")
	}
}

func TestSplitPrefersSentenceBoundary(t *testing.T) {
	// A sentence ends inside the first window's overlap region; the chunk
	// should stop there instead of cutting mid-word.
	text := "aaaa bbbb. " + strings.Repeat("c", 20)
	chunks := Split(text, Config{Size: 15, Overlap: 6})

	if len(chunks) < 2 {
		t.Fatalf("Split() got %d chunks, want at least 2", len(chunks))
	}
	if chunks[0] != "aaaa bbbb." {
		t.Errorf("chunks[0] = %q, want chunk cut at sentence end", chunks[0])
	}
}

func TestLastSentenceEnd(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"no boundary", "abcdef", 0},
		{"period then space", "one. two", 4},
		{"period at end", "one. two.", 9},
		{"newline", "one\ntwo", 4},
		{"decimal point is not a boundary", "pi is 3.14", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := lastSentenceEnd([]rune(tt.in)); got != tt.want {
				t.Errorf("lastSentenceEnd(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestSplitDeterministic(t *testing.T) {
	text := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 200)
	cfg := DefaultConfig()

	first := Split(text, cfg)
	second := Split(text, cfg)

	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func TestSplitCoversFullText(t *testing.T) {
	text := strings.Repeat("x", 2500)
	chunks := Split(text, DefaultConfig())

	// Reassembling chunks minus their overlaps must reproduce the input.
	var rebuilt strings.Builder
	for i, c := range chunks {
		if i == 0 {
			rebuilt.WriteString(c)
			continue
		}
		rebuilt.WriteString(c[150:])
	}
	if rebuilt.String() != text {
		t.Errorf("chunks do not cover input: rebuilt %d runes, want %d", rebuilt.Len(), len(text))
	}
}

func TestSplitZeroConfigFallsBackToDefaults(t *testing.T) {
	text := strings.Repeat("y", 1500)
	chunks := Split(text, Config{})
	if len(chunks) != 2 {
		t.Errorf("Split() with zero config got %d chunks, want 2", len(chunks))
	}
}
