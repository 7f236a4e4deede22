package sniff

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDetectPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.bin")
	header := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}
	if err := os.WriteFile(path, header, 0644); err != nil {
		t.Fatal(err)
	}
	if got := Detect(path); got != "image/png" {
		t.Errorf("Detect() = %q, want image/png", got)
	}
}

func TestDetectMissingFileDegrades(t *testing.T) {
	if got := Detect(filepath.Join(t.TempDir(), "nope")); got != DefaultType {
		t.Errorf("Detect() = %q, want %q", got, DefaultType)
	}
}
