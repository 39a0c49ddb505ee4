package mp4

import (
	"bytes"

	"github.com/alxayo/go-livestream/internal/media"
)

// writeAudioTrak emits one trak box for an AAC audio track. The original
// implementation this module is grounded on only ever muxed video; this is
// a supplemented component (see SPEC_FULL.md / DESIGN.md) built by mirroring
// writeVideoTrak's structure for the audio-specific boxes (smhd instead of
// vmhd, mp4a+esds instead of avc1+avcC, hdlr type "soun").
func writeAudioTrak(buf *bytes.Buffer, track media.Track, internalID uint32) error {
	info := track.Kind.Audio
	timescale := track.Timebase.Simplify().Den

	return writeBox(buf, "trak", func(b *bytes.Buffer) error {
		if err := writeBox(b, "tkhd", func(b *bytes.Buffer) error {
			putU32(b, (1<<24)|0x000007)
			putU64(b, 0)
			putU64(b, 0)
			putU32(b, internalID)
			putU32(b, 0)
			putU64(b, 0)
			putU64(b, 0)
			putU16(b, 0)
			putU16(b, 0)
			putU16(b, 0x0100) // volume = 1.0 for audio
			putU16(b, 0)
			putIdentityMatrix(b)
			putU32(b, 0) // width n/a for audio
			putU32(b, 0) // height n/a for audio
			return nil
		}); err != nil {
			return err
		}

		return writeBox(b, "mdia", func(b *bytes.Buffer) error {
			if err := writeBox(b, "mdhd", func(b *bytes.Buffer) error {
				putU32(b, 1<<24)
				putU64(b, 0)
				putU64(b, 0)
				putU32(b, uint32(timescale))
				putU64(b, 0)
				putU32(b, 0x55c40000)
				return nil
			}); err != nil {
				return err
			}
			if err := writeBox(b, "hdlr", func(b *bytes.Buffer) error {
				b.Write([]byte{0, 0, 0, 0})
				b.Write([]byte{0, 0, 0, 0})
				b.WriteString("soun")
				b.Write(make([]byte, 12))
				b.WriteByte(0)
				return nil
			}); err != nil {
				return err
			}
			return writeBox(b, "minf", func(b *bytes.Buffer) error {
				if err := writeBox(b, "smhd", func(b *bytes.Buffer) error {
					putU32(b, 0) // version + flags
					putU16(b, 0) // balance
					putU16(b, 0) // reserved
					return nil
				}); err != nil {
					return err
				}
				if err := writeBox(b, "dinf", func(b *bytes.Buffer) error {
					return writeBox(b, "dref", func(b *bytes.Buffer) error {
						putU32(b, 0)
						putU32(b, 1)
						return writeBox(b, "url ", func(b *bytes.Buffer) error {
							putU32(b, 1)
							return nil
						})
					})
				}); err != nil {
					return err
				}
				return writeBox(b, "stbl", func(b *bytes.Buffer) error {
					if err := writeBox(b, "stsd", func(b *bytes.Buffer) error {
						putU32(b, 0)
						putU32(b, 1)
						return writeMP4ASampleEntry(b, info)
					}); err != nil {
						return err
					}
					for _, empty := range []string{"stts", "stsc"} {
						if err := writeBox(b, empty, func(b *bytes.Buffer) error {
							putU32(b, 0)
							putU32(b, 0)
							return nil
						}); err != nil {
							return err
						}
					}
					if err := writeBox(b, "stsz", func(b *bytes.Buffer) error {
						putU32(b, 0)
						putU32(b, 0)
						putU32(b, 0)
						return nil
					}); err != nil {
						return err
					}
					return writeBox(b, "stco", func(b *bytes.Buffer) error {
						putU32(b, 0)
						putU32(b, 0)
						return nil
					})
				})
			})
		})
	})
}

func writeMP4ASampleEntry(buf *bytes.Buffer, info media.AudioInfo) error {
	return writeBox(buf, "mp4a", func(b *bytes.Buffer) error {
		writeSampleEntryHeader(b, 1)
		putU64(b, 0)                      // reserved
		putU16(b, uint16(info.Channels))  // channelcount
		putU16(b, 16)                     // samplesize
		putU32(b, 0)                      // pre_defined + reserved
		putU32(b, uint32(info.SampleRate)<<16)
		return writeBox(b, "esds", func(b *bytes.Buffer) error {
			putU32(b, 0) // version + flags
			writeESDescriptor(b, info)
			return nil
		})
	})
}

// writeESDescriptor writes a minimal MPEG-4 ES_Descriptor wrapping the
// DecoderSpecificInfo (the raw AudioSpecificConfig bytes), using the
// classic single-byte descriptor-length encoding (valid for the small
// sizes ASC payloads always have).
func writeESDescriptor(buf *bytes.Buffer, info media.AudioInfo) {
	asc := info.AAC.ASC.Bytes()

	decSpecificInfo := descriptor(0x05, asc)
	decConfig := descriptor(0x04, append([]byte{
		0x40,       // objectTypeIndication: MPEG-4 Audio
		0x15,       // streamType=audio, upStream=0, reserved=1
		0, 0, 0,    // bufferSizeDB
		0, 0, 0, 0, // maxBitrate
		0, 0, 0, 0, // avgBitrate
	}, decSpecificInfo...))
	slConfig := descriptor(0x06, []byte{0x02})
	es := descriptor(0x03, append(append([]byte{0, 0, 0}, decConfig...), slConfig...))

	buf.Write(es)
}

// descriptor wraps payload in an MPEG-4 descriptor tag + single-byte length
// prefix. ASC/esds payloads in this module are always well under 128 bytes.
func descriptor(tag byte, payload []byte) []byte {
	out := make([]byte, 0, len(payload)+2)
	out = append(out, tag, byte(len(payload)))
	out = append(out, payload...)
	return out
}
