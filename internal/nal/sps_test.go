package nal

import "testing"

func TestParseSPSDimensions1280x720(t *testing.T) {
	sps := []byte{0x67, 0x42, 0x00, 0x1e, 0xf8, 0x0a, 0x00, 0xb6, 0x20}
	w, h, err := ParseSPSDimensions(sps)
	if err != nil {
		t.Fatalf("ParseSPSDimensions: %v", err)
	}
	if w != 1280 || h != 720 {
		t.Fatalf("got %dx%d, want 1280x720", w, h)
	}
}

func TestParseSPSDimensionsTooShort(t *testing.T) {
	if _, _, err := ParseSPSDimensions([]byte{0x67, 0x42}); err == nil {
		t.Fatal("expected error for truncated sps")
	}
}
