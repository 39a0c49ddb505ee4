package mp4

import (
	"bytes"

	"github.com/alxayo/go-livestream/internal/media"
	"github.com/alxayo/go-livestream/internal/nal"
)

// writeVideoTrak emits one trak box for an H.264 video track, grounded
// byte-for-byte on the original implementation's write_video_trak /
// write_video_sample_entry / write_visual_sample_entry.
func writeVideoTrak(buf *bytes.Buffer, track media.Track, internalID uint32) error {
	info := track.Kind.Video
	if info.Width < 0 || info.Width > 0xFFFF || info.Height < 0 || info.Height > 0xFFFF {
		return newMuxError("write_video_trak", errDimensionRange(info.Width, info.Height))
	}
	timescale := track.Timebase.Simplify().Den

	return writeBox(buf, "trak", func(b *bytes.Buffer) error {
		if err := writeBox(b, "tkhd", func(b *bytes.Buffer) error {
			putU32(b, (1<<24)|0x000007) // version 1, flags enabled|in_movie|in_preview
			putU64(b, 0)
			putU64(b, 0)
			putU32(b, internalID)
			putU32(b, 0) // reserved
			putU64(b, 0) // duration
			putU64(b, 0) // reserved
			putU16(b, 0) // layer
			putU16(b, 0) // alternate_group
			putU16(b, 0) // volume (video: 0)
			putU16(b, 0) // reserved
			putIdentityMatrix(b)
			putU32(b, uint32(info.Width)<<16)
			putU32(b, uint32(info.Height)<<16)
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
				putU32(b, 0x55c40000) // language=und + pre_defined
				return nil
			}); err != nil {
				return err
			}
			if err := writeBox(b, "hdlr", func(b *bytes.Buffer) error {
				b.Write([]byte{0, 0, 0, 0}) // version + flags
				b.Write([]byte{0, 0, 0, 0}) // pre_defined
				b.WriteString("vide")
				b.Write(make([]byte, 12)) // reserved[3]
				b.WriteByte(0)            // empty name
				return nil
			}); err != nil {
				return err
			}
			return writeBox(b, "minf", func(b *bytes.Buffer) error {
				if err := writeBox(b, "vmhd", func(b *bytes.Buffer) error {
					putU32(b, 1)
					putU64(b, 0)
					return nil
				}); err != nil {
					return err
				}
				if err := writeBox(b, "dinf", func(b *bytes.Buffer) error {
					return writeBox(b, "dref", func(b *bytes.Buffer) error {
						putU32(b, 0)
						putU32(b, 1)
						return writeBox(b, "url ", func(b *bytes.Buffer) error {
							putU32(b, 1) // self-contained
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
						return writeAVC1SampleEntry(b, info)
					}); err != nil {
						return err
					}
					for _, empty := range []string{"stss", "stts", "stsc"} {
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

func writeAVC1SampleEntry(buf *bytes.Buffer, info media.VideoInfo) error {
	return writeBox(buf, "avc1", func(b *bytes.Buffer) error {
		writeVisualSampleEntry(b, 1, uint16(info.Width), uint16(info.Height))
		h := info.Codec.H264
		return writeBox(b, "avcC", func(b *bytes.Buffer) error {
			b.Write([]byte{
				1,
				h.ProfileIndication,
				h.ProfileCompatibility,
				h.LevelIndication,
				3, // length_size_minus_one (encoded as length-1, i.e. 4-byte lengths)
				1, // sps_count
			})
			sps, err := nal.FrameLength([][]byte{h.SPS.Bytes()}, 2)
			if err != nil {
				return newMuxError("write_avcC.sps", err)
			}
			b.Write(sps.Bytes())
			b.WriteByte(1) // pps_count
			pps, err := nal.FrameLength([][]byte{h.PPS.Bytes()}, 2)
			if err != nil {
				return newMuxError("write_avcC.pps", err)
			}
			b.Write(pps.Bytes())
			return nil
		})
	})
}

func writeVisualSampleEntry(buf *bytes.Buffer, dataReferenceIndex uint16, width, height uint16) {
	writeSampleEntryHeader(buf, dataReferenceIndex)
	buf.Write(make([]byte, 16))
	putU16(buf, width)
	putU16(buf, height)
	putU32(buf, 0x00480000)     // horizresolution = 72 dpi
	putU32(buf, 0x00480000)     // vertresolution = 72 dpi
	putU32(buf, 0)              // reserved
	putU16(buf, 1)              // frame_count
	buf.Write(make([]byte, 32)) // compressorname
	putU16(buf, 0x0018)         // depth
	putU16(buf, 0xffff)         // pre_defined
}

func writeSampleEntryHeader(buf *bytes.Buffer, dataReferenceIndex uint16) {
	buf.Write(make([]byte, 6)) // reserved
	putU16(buf, dataReferenceIndex)
}
