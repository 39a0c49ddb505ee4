package ingest

import (
	"fmt"

	"github.com/alxayo/go-livestream/internal/media"
	"github.com/alxayo/go-livestream/internal/nal"
)

// parseAVCDecoderConfig decodes an AVCDecoderConfigurationRecord (the payload
// of an RTMP AVC sequence header tag) into H264Params, and derives the coded
// picture width/height from the first SPS via nal.ParseSPSDimensions.
func parseAVCDecoderConfig(data []byte) (media.VideoInfo, error) {
	if len(data) < 7 {
		return media.VideoInfo{}, fmt.Errorf("ingest: avcC too short (%d bytes)", len(data))
	}

	profile := data[1]
	compat := data[2]
	level := data[3]

	numSPS := int(data[5] & 0x1F)
	off := 6
	var sps []byte
	for i := 0; i < numSPS; i++ {
		if off+2 > len(data) {
			return media.VideoInfo{}, fmt.Errorf("ingest: avcC truncated reading sps length")
		}
		l := int(data[off])<<8 | int(data[off+1])
		off += 2
		if off+l > len(data) {
			return media.VideoInfo{}, fmt.Errorf("ingest: avcC truncated reading sps payload")
		}
		if i == 0 {
			sps = append([]byte(nil), data[off:off+l]...)
		}
		off += l
	}
	if off >= len(data) {
		return media.VideoInfo{}, fmt.Errorf("ingest: avcC truncated before numOfPPS")
	}
	numPPS := int(data[off])
	off++
	var pps []byte
	for i := 0; i < numPPS; i++ {
		if off+2 > len(data) {
			return media.VideoInfo{}, fmt.Errorf("ingest: avcC truncated reading pps length")
		}
		l := int(data[off])<<8 | int(data[off+1])
		off += 2
		if off+l > len(data) {
			return media.VideoInfo{}, fmt.Errorf("ingest: avcC truncated reading pps payload")
		}
		if i == 0 {
			pps = append([]byte(nil), data[off:off+l]...)
		}
		off += l
	}
	if sps == nil {
		return media.VideoInfo{}, fmt.Errorf("ingest: avcC contains no SPS")
	}

	width, height, err := nal.ParseSPSDimensions(sps)
	if err != nil {
		return media.VideoInfo{}, fmt.Errorf("ingest: parsing sps dimensions: %w", err)
	}

	return media.VideoInfo{
		Width:  width,
		Height: height,
		Codec: media.VideoCodec{
			Kind: media.VideoCodecH264,
			H264: media.H264Params{
				ProfileIndication:    profile,
				ProfileCompatibility: compat,
				LevelIndication:      level,
				SPS:                  media.NewSpan(sps),
				PPS:                  media.NewSpan(pps),
			},
		},
		Framing: media.FourByteLength,
	}, nil
}

var aacSampleRates = [...]int{96000, 88200, 64000, 48000, 44100, 32000, 24000, 22050, 16000, 12000, 11025, 8000, 7350}

// parseAudioSpecificConfig decodes the handful of leading bits of an
// AudioSpecificConfig (ISO/IEC 14496-3) that ingest needs: audio object
// type, sampling frequency, and channel count.
func parseAudioSpecificConfig(data []byte) (media.AudioInfo, error) {
	if len(data) < 2 {
		return media.AudioInfo{}, fmt.Errorf("ingest: AudioSpecificConfig too short (%d bytes)", len(data))
	}
	b0, b1 := data[0], data[1]
	audioObjectType := b0 >> 3
	freqIdx := ((b0 & 0x07) << 1) | (b1 >> 7)
	channelConfig := (b1 >> 3) & 0x0F

	var sampleRate int
	if freqIdx == 0x0F {
		if len(data) < 5 {
			return media.AudioInfo{}, fmt.Errorf("ingest: AudioSpecificConfig truncated (explicit sample rate)")
		}
		sampleRate = int(data[1]&0x7f)<<17 | int(data[2])<<9 | int(data[3])<<1 | int(data[4]>>7)
	} else if int(freqIdx) < len(aacSampleRates) {
		sampleRate = aacSampleRates[freqIdx]
	} else {
		return media.AudioInfo{}, fmt.Errorf("ingest: invalid AAC sampling frequency index %d", freqIdx)
	}

	return media.AudioInfo{
		SampleRate: sampleRate,
		Channels:   int(channelConfig),
		CodecKind:  media.AudioCodecAAC,
		AAC: media.AACParams{
			AudioObjectType: audioObjectType,
			ASC:             media.NewSpan(append([]byte(nil), data...)),
		},
	}, nil
}
