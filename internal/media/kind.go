package media

// BitstreamFraming identifies how NAL units are delimited inside a video
// elementary stream.
type BitstreamFraming int

const (
	// AnnexB delimits NAL units with 00 00 01 / 00 00 00 01 start codes.
	AnnexB BitstreamFraming = iota
	// FourByteLength prefixes each NAL unit with a big-endian uint32 length.
	FourByteLength
	// TwoByteLength prefixes each NAL unit with a big-endian uint16 length,
	// used for the SPS/PPS lists inside an avcC box.
	TwoByteLength
)

func (f BitstreamFraming) String() string {
	switch f {
	case AnnexB:
		return "annexb"
	case FourByteLength:
		return "four_byte_length"
	case TwoByteLength:
		return "two_byte_length"
	default:
		return "unknown"
	}
}

// VideoCodec is a tagged union over the video codecs this module knows how
// to mux. Only H264 is populated today; the zero value of the other fields
// is unused.
type VideoCodec struct {
	Kind VideoCodecKind
	H264 H264Params
}

type VideoCodecKind int

const (
	VideoCodecUnknown VideoCodecKind = iota
	VideoCodecH264
)

// H264Params is the subset of an avcC decoder configuration record this
// module needs to rebuild one: profile/level identification plus the SPS
// and PPS parameter sets, each a Span holding the raw NAL unit bytes with no
// length prefix (the muxer adds the TwoByteLength framing when it writes
// the avcC box).
type H264Params struct {
	ProfileIndication    uint8
	ProfileCompatibility uint8
	LevelIndication      uint8
	SPS                  Span
	PPS                  Span
}

// VideoInfo describes a video track's static parameters.
type VideoInfo struct {
	Width, Height int
	Codec         VideoCodec
	Framing       BitstreamFraming
}

// AudioCodecKind is a tagged union over the audio codecs this module knows.
type AudioCodecKind int

const (
	AudioCodecUnknown AudioCodecKind = iota
	AudioCodecAAC
)

// AACParams carries the raw AudioSpecificConfig bytes and the derived
// audio-object-type used for the MSE codec string (mp4a.40.<aot>).
type AACParams struct {
	AudioObjectType uint8
	ASC             Span
}

// AudioInfo describes an audio track's static parameters.
type AudioInfo struct {
	SampleRate int
	Channels   int
	CodecKind  AudioCodecKind
	AAC        AACParams
}

// SubtitleInfo is carried for completeness with the original implementation's
// MediaKind union; no subtitle ingestion or muxing path exists in this
// module (see SPEC_FULL.md §4).
type SubtitleInfo struct {
	Language string
}

// MediaKindTag discriminates the MediaKind tagged union.
type MediaKindTag int

const (
	KindVideo MediaKindTag = iota
	KindAudio
	KindSubtitle
)

// MediaKind is a tagged union over {Video, Audio, Subtitle}, matching
// spec.md §3.
type MediaKind struct {
	Tag      MediaKindTag
	Video    VideoInfo
	Audio    AudioInfo
	Subtitle SubtitleInfo
}

// NewVideoKind wraps a VideoInfo as a MediaKind.
func NewVideoKind(v VideoInfo) MediaKind { return MediaKind{Tag: KindVideo, Video: v} }

// NewAudioKind wraps an AudioInfo as a MediaKind.
func NewAudioKind(a AudioInfo) MediaKind { return MediaKind{Tag: KindAudio, Audio: a} }

// NewSubtitleKind wraps a SubtitleInfo as a MediaKind.
func NewSubtitleKind(s SubtitleInfo) MediaKind { return MediaKind{Tag: KindSubtitle, Subtitle: s} }
