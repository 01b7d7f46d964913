package utils

import "testing"

func TestNormalizeSpace(t *testing.T) {
	if got := NormalizeSpace("  a \t b\n\nc  "); got != "a b c" {
		t.Errorf("NormalizeSpace: got %q", got)
	}
	if got := NormalizeSpace(""); got != "" {
		t.Errorf("empty: got %q", got)
	}
}

func TestNormalizeAnswer(t *testing.T) {
	if got := NormalizeAnswer("  The   ANSWER "); got != "the answer" {
		t.Errorf("NormalizeAnswer: got %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("hello", 3); got != "hel..." {
		t.Errorf("Truncate: got %q", got)
	}
	if got := Truncate("hi", 10); got != "hi" {
		t.Errorf("Truncate short: got %q", got)
	}
	if got := Truncate("hi", 0); got != "hi" {
		t.Errorf("Truncate zero: got %q", got)
	}
}
