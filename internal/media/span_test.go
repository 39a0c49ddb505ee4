package media

import (
	"bytes"
	"testing"
)

func TestSpanBytesSingleChunkNoCopy(t *testing.T) {
	chunk := []byte("hello")
	s := NewSpan(chunk)
	got := s.Bytes()
	if &got[0] != &chunk[0] {
		t.Fatal("expected single-chunk Bytes() to share storage, not copy")
	}
}

func TestSpanConcatAndBytes(t *testing.T) {
	a := NewSpan([]byte("foo"))
	b := NewSpan([]byte("bar"))
	c := a.Concat(b)
	if c.Len() != 6 {
		t.Fatalf("Len() = %d, want 6", c.Len())
	}
	if got := c.Bytes(); !bytes.Equal(got, []byte("foobar")) {
		t.Fatalf("Bytes() = %q, want foobar", got)
	}
}

func TestSpanSliceAcrossChunks(t *testing.T) {
	s := NewSpan([]byte("foo"), []byte("bar"), []byte("baz"))
	got := s.Slice(2, 7).Bytes()
	if !bytes.Equal(got, []byte("obarb")) {
		t.Fatalf("Slice(2,7) = %q, want obarb", got)
	}
}

func TestSpanSliceEmptyRange(t *testing.T) {
	s := NewSpan([]byte("foo"))
	if got := s.Slice(2, 1); !got.IsEmpty() {
		t.Fatalf("expected empty span for invalid range, got len=%d", got.Len())
	}
}

func TestConcatVariadic(t *testing.T) {
	s := Concat(NewSpan([]byte("a")), NewSpan([]byte("b")), NewSpan([]byte("c")))
	if got := s.Bytes(); !bytes.Equal(got, []byte("abc")) {
		t.Fatalf("Concat() = %q, want abc", got)
	}
}
