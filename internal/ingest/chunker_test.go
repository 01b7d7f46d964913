package ingest

import (
	"strings"
	"testing"
)

func TestNewChunker_Validation(t *testing.T) {
	if _, err := NewChunker(0, 0); err == nil {
		t.Error("size 0 should fail")
	}
	if _, err := NewChunker(10, 10); err == nil {
		t.Error("overlap == size should fail")
	}
	if _, err := NewChunker(10, -1); err == nil {
		t.Error("negative overlap should fail")
	}
	if _, err := NewChunker(10, 0); err != nil {
		t.Errorf("zero overlap is valid: %v", err)
	}
}

func TestChunker_ShortTextSingleChunk(t *testing.T) {
	c, _ := NewChunker(100, 20)
	chunks := c.Chunk("short text")
	if len(chunks) != 1 || chunks[0] != "short text" {
		t.Errorf("got %v", chunks)
	}
}

func TestChunker_Empty(t *testing.T) {
	c, _ := NewChunker(10, 2)
	if chunks := c.Chunk(""); chunks != nil {
		t.Errorf("empty text should return nil, got %v", chunks)
	}
}

func TestChunker_Overlap(t *testing.T) {
	c, _ := NewChunker(5, 2)
	chunks := c.Chunk("abcdefghij")
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %v", chunks)
	}
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		cur := []rune(chunks[i])
		tail := string(prev[len(prev)-2:])
		head := string(cur[:2])
		if tail != head {
			t.Errorf("chunk %d: overlap mismatch %q vs %q", i, tail, head)
		}
	}
}

// Concatenating chunks minus their overlaps must reconstruct the input
// exactly, for any valid size/overlap combination.
func TestChunker_Reconstruction(t *testing.T) {
	texts := []string{
		"the quick brown fox jumps over the lazy dog",
		strings.Repeat("lecture material ", 50),
		"短いテキストと日本語の混在チェック with mixed runes",
		"x",
	}
	params := []struct{ size, overlap int }{
		{5, 0}, {5, 2}, {10, 9}, {1000, 200}, {3, 1},
	}
	for _, text := range texts {
		for _, p := range params {
			c, err := NewChunker(p.size, p.overlap)
			if err != nil {
				t.Fatal(err)
			}
			chunks := c.Chunk(text)
			var b strings.Builder
			for i, ch := range chunks {
				runes := []rune(ch)
				if i == 0 {
					b.WriteString(ch)
				} else {
					b.WriteString(string(runes[p.overlap:]))
				}
			}
			if b.String() != text {
				t.Errorf("size=%d overlap=%d: reconstruction failed for %q", p.size, p.overlap, text)
			}
		}
	}
}

func TestChunker_Deterministic(t *testing.T) {
	c, _ := NewChunker(7, 3)
	text := strings.Repeat("abcde ", 20)
	a := c.Chunk(text)
	b := c.Chunk(text)
	if len(a) != len(b) {
		t.Fatal("lengths differ")
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("chunk %d differs", i)
		}
	}
}
