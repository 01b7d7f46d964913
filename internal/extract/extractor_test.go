package extract

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExtractPlain(t *testing.T) {
	e := NewExtractor()
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("cell biology basics"), 0644); err != nil {
		t.Fatal(err)
	}
	text, err := e.Extract(path)
	if err != nil {
		t.Fatal(err)
	}
	if text != "cell biology basics" {
		t.Errorf("got %q", text)
	}
}

func TestExtractPlainInvalidUTF8(t *testing.T) {
	e := NewExtractor()
	text, err := e.ExtractBytes([]byte{0x68, 0x69, 0xff, 0xfe}, ".txt")
	if err != nil {
		t.Fatal(err)
	}
	if text[:2] != "hi" {
		t.Errorf("got %q", text)
	}
}

func TestExtractUnsupported(t *testing.T) {
	e := NewExtractor()
	if _, err := e.ExtractBytes([]byte("x"), ".xlsx"); err == nil {
		t.Error("expected unsupported format error")
	}
}

func TestSupported(t *testing.T) {
	cases := map[string]bool{
		"lecture.pdf":  true,
		"lecture.DOCX": true,
		"lecture.md":   true,
		"lecture.txt":  true,
		"lecture.pptx": false,
		"lecture":      false,
	}
	for path, want := range cases {
		if got := Supported(path); got != want {
			t.Errorf("Supported(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestExtractDOCXMissingDocument(t *testing.T) {
	if _, err := extractDOCX([]byte("not a zip")); err == nil {
		t.Error("expected error for non-zip input")
	}
}
