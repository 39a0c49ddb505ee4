package media

// Span is an ordered, immutable sequence of byte chunks. It is the core
// zero-copy primitive this module passes RTMP payload and muxed MP4 bytes
// through: chunks are shared, not copied, across slicing and concatenation.
//
// A Span must never be mutated in place. Slicing and concatenation always
// produce a fresh Span whose chunk slice headers are new but whose
// underlying arrays are shared with the source.
type Span struct {
	chunks [][]byte
	length int
}

// NewSpan wraps existing chunks as a Span. The chunks are taken by
// reference; callers must not mutate them afterwards.
func NewSpan(chunks ...[]byte) Span {
	s := Span{chunks: make([][]byte, 0, len(chunks))}
	for _, c := range chunks {
		if len(c) == 0 {
			continue
		}
		s.chunks = append(s.chunks, c)
		s.length += len(c)
	}
	return s
}

// Len returns the total number of bytes across all chunks.
func (s Span) Len() int { return s.length }

// IsEmpty reports whether the span carries zero bytes.
func (s Span) IsEmpty() bool { return s.length == 0 }

// Chunks returns the ordered list of borrowed byte slices. Callers must
// treat the returned slices as read-only.
func (s Span) Chunks() [][]byte { return s.chunks }

// Bytes materializes the span into one contiguous slice, copying only when
// more than one chunk is present.
func (s Span) Bytes() []byte {
	if len(s.chunks) == 0 {
		return nil
	}
	if len(s.chunks) == 1 {
		return s.chunks[0]
	}
	out := make([]byte, 0, s.length)
	for _, c := range s.chunks {
		out = append(out, c...)
	}
	return out
}

// Concat returns a new Span whose chunk list is this span's chunks followed
// by other's chunks. No chunk bytes are copied.
func (s Span) Concat(other Span) Span {
	chunks := make([][]byte, 0, len(s.chunks)+len(other.chunks))
	chunks = append(chunks, s.chunks...)
	chunks = append(chunks, other.chunks...)
	return Span{chunks: chunks, length: s.length + other.length}
}

// Slice returns the logical sub-span [start, end). No bytes are copied:
// chunks that straddle a boundary are re-sliced, fully contained chunks are
// shared as they are.
func (s Span) Slice(start, end int) Span {
	if start < 0 {
		start = 0
	}
	if end > s.length {
		end = s.length
	}
	if start >= end {
		return Span{}
	}

	out := Span{}
	pos := 0
	for _, c := range s.chunks {
		chunkStart := pos
		chunkEnd := pos + len(c)
		pos = chunkEnd

		if chunkEnd <= start || chunkStart >= end {
			continue
		}
		lo := 0
		if start > chunkStart {
			lo = start - chunkStart
		}
		hi := len(c)
		if end < chunkEnd {
			hi = len(c) - (chunkEnd - end)
		}
		sub := c[lo:hi]
		out.chunks = append(out.chunks, sub)
		out.length += len(sub)
	}
	return out
}

// Concat joins any number of Spans into one, preserving order.
func Concat(spans ...Span) Span {
	out := Span{}
	for _, s := range spans {
		out = out.Concat(s)
	}
	return out
}
