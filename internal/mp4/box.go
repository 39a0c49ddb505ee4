// Package mp4 implements a fragmented-MP4 (ISO-BMFF) muxer: one ftyp+moov
// initialization segment per Movie, and one moof+mdat media segment per
// Packet. The box layout is grounded byte-for-byte on the original
// implementation's write_box! macro; see DESIGN.md.
package mp4

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// writeBox reserves a 4-byte length placeholder, writes the fourcc, runs
// body to fill in the box payload, then backpatches the length once it is
// known. This mirrors the original Rust write_box! macro's two-pass
// technique without needing a seekable writer: bytes.Buffer has no Seek, so
// we patch the underlying slice directly via buf.Bytes()[pos:pos+4].
func writeBox(buf *bytes.Buffer, fourcc string, body func(*bytes.Buffer) error) error {
	if len(fourcc) != 4 {
		return fmt.Errorf("mp4: box type %q is not 4 characters", fourcc)
	}
	start := buf.Len()
	buf.Write([]byte{0, 0, 0, 0})
	buf.WriteString(fourcc)
	if err := body(buf); err != nil {
		return err
	}
	end := buf.Len()
	size := end - start
	if size < 0 || size > 0xFFFFFFFF {
		return fmt.Errorf("mp4: box %q size %d out of range", fourcc, size)
	}
	binary.BigEndian.PutUint32(buf.Bytes()[start:start+4], uint32(size))
	return nil
}

func putU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func putU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func putU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

// identityMatrix writes the unity transformation matrix shared by mvhd and
// tkhd: nine 32-bit fixed-point values.
func putIdentityMatrix(buf *bytes.Buffer) {
	for _, v := range []uint32{0x00010000, 0, 0, 0, 0x00010000, 0, 0, 0, 0x40000000} {
		putU32(buf, v)
	}
}
