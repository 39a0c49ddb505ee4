// Package nal converts H.264 elementary-stream bytes between the three
// framings RTMP/fMP4 ingestion needs to bridge: AnnexB start codes (the wire
// format most encoders emit), FourByteLength (what fMP4 mdat payloads must
// use), and TwoByteLength (what the SPS/PPS lists inside an avcC box use).
package nal

import (
	"encoding/binary"
	"fmt"

	"github.com/alxayo/go-livestream/internal/media"
)

// BitstreamError indicates malformed NAL framing: a length prefix exceeding
// the remaining bytes, or a missing AnnexB start code.
type BitstreamError struct {
	Op  string
	Err error
}

func (e *BitstreamError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("nal: %s", e.Op)
	}
	return fmt.Sprintf("nal: %s: %v", e.Op, e.Err)
}
func (e *BitstreamError) Unwrap() error { return e.Err }

func newBitstreamError(op string, err error) error { return &BitstreamError{Op: op, Err: err} }

// SplitAnnexB splits an AnnexB-framed byte slice into its constituent NAL
// unit payloads (start codes stripped, emulation-prevention bytes left
// intact — callers that need raw RBSP must strip 00 00 03 themselves).
func SplitAnnexB(data []byte) ([][]byte, error) {
	starts := findStartCodes(data)
	if len(starts) == 0 {
		return nil, newBitstreamError("split_annexb", fmt.Errorf("no start code found"))
	}
	var units [][]byte
	for i, s := range starts {
		unitStart := s.end
		var unitEnd int
		if i+1 < len(starts) {
			unitEnd = starts[i+1].start
		} else {
			unitEnd = len(data)
		}
		// Trailing zero bytes before the next start code are not part of
		// the NAL unit payload (trailing_zero_8bits in Annex B).
		for unitEnd > unitStart && data[unitEnd-1] == 0x00 {
			unitEnd--
		}
		if unitEnd > unitStart {
			units = append(units, data[unitStart:unitEnd])
		}
	}
	return units, nil
}

type startCode struct{ start, end int }

// findStartCodes scans data for 3-byte (00 00 01) and 4-byte (00 00 00 01)
// start codes. A start code is only recognised when it is not "preceded by
// a non-zero byte inside a NAL payload" per spec.md §4.2 — in practice this
// means we scan byte-by-byte rather than using a naive substring search, so
// a run of zero bytes immediately followed by 01 is always treated as a
// boundary regardless of what came before the run.
func findStartCodes(data []byte) []startCode {
	var out []startCode
	i := 0
	for i+2 < len(data) {
		if data[i] == 0 && data[i+1] == 0 {
			if data[i+2] == 1 {
				out = append(out, startCode{start: i, end: i + 3})
				i += 3
				continue
			}
			if i+3 < len(data) && data[i+2] == 0 && data[i+3] == 1 {
				out = append(out, startCode{start: i, end: i + 4})
				i += 4
				continue
			}
		}
		i++
	}
	return out
}

// FrameAnnexB concatenates NAL units with 4-byte start codes (00 00 00 01),
// the canonical AnnexB framing this module emits.
func FrameAnnexB(units [][]byte) media.Span {
	startCode := []byte{0x00, 0x00, 0x00, 0x01}
	chunks := make([][]byte, 0, len(units)*2)
	for _, u := range units {
		chunks = append(chunks, startCode, u)
	}
	return media.NewSpan(chunks...)
}

// FrameLength concatenates NAL units with a length prefix of the given
// byte width (4 for FourByteLength, 2 for TwoByteLength).
func FrameLength(units [][]byte, prefixBytes int) (media.Span, error) {
	chunks := make([][]byte, 0, len(units)*2)
	for _, u := range units {
		prefix := make([]byte, prefixBytes)
		switch prefixBytes {
		case 4:
			binary.BigEndian.PutUint32(prefix, uint32(len(u)))
		case 2:
			if len(u) > 0xFFFF {
				return media.Span{}, newBitstreamError("frame_length", fmt.Errorf("nal unit too large for 2-byte length: %d", len(u)))
			}
			binary.BigEndian.PutUint16(prefix, uint16(len(u)))
		default:
			return media.Span{}, newBitstreamError("frame_length", fmt.Errorf("unsupported prefix width %d", prefixBytes))
		}
		chunks = append(chunks, prefix, u)
	}
	return media.NewSpan(chunks...), nil
}

// SplitLength splits a length-prefixed byte slice into NAL unit payloads.
func SplitLength(data []byte, prefixBytes int) ([][]byte, error) {
	var units [][]byte
	i := 0
	for i < len(data) {
		if i+prefixBytes > len(data) {
			return nil, newBitstreamError("split_length", fmt.Errorf("truncated length prefix at offset %d", i))
		}
		var n int
		switch prefixBytes {
		case 4:
			n = int(binary.BigEndian.Uint32(data[i : i+4]))
		case 2:
			n = int(binary.BigEndian.Uint16(data[i : i+2]))
		default:
			return nil, newBitstreamError("split_length", fmt.Errorf("unsupported prefix width %d", prefixBytes))
		}
		i += prefixBytes
		if i+n > len(data) {
			return nil, newBitstreamError("split_length", fmt.Errorf("length %d exceeds remaining %d bytes", n, len(data)-i))
		}
		units = append(units, data[i:i+n])
		i += n
	}
	return units, nil
}

// Split breaks a framed byte slice into its NAL unit payloads according to
// the given framing.
func Split(data []byte, framing media.BitstreamFraming) ([][]byte, error) {
	switch framing {
	case media.AnnexB:
		return SplitAnnexB(data)
	case media.FourByteLength:
		return SplitLength(data, 4)
	case media.TwoByteLength:
		return SplitLength(data, 2)
	default:
		return nil, newBitstreamError("split", fmt.Errorf("unknown framing %v", framing))
	}
}

// Frame concatenates NAL units using the given framing.
func Frame(units [][]byte, framing media.BitstreamFraming) (media.Span, error) {
	switch framing {
	case media.AnnexB:
		return FrameAnnexB(units), nil
	case media.FourByteLength:
		return FrameLength(units, 4)
	case media.TwoByteLength:
		return FrameLength(units, 2)
	default:
		return media.Span{}, newBitstreamError("frame", fmt.Errorf("unknown framing %v", framing))
	}
}

// Convert re-frames span without re-encoding the NAL payloads themselves.
// When from == to the input is returned unchanged (zero-copy).
func Convert(span media.Span, from, to media.BitstreamFraming) (media.Span, error) {
	if from == to {
		return span, nil
	}
	units, err := Split(span.Bytes(), from)
	if err != nil {
		return media.Span{}, err
	}
	return Frame(units, to)
}
