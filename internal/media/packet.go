package media

// Packet is an owning bundle of one decodable (or, for non-key packets,
// differentially decodable) unit of media for a single track.
type Packet struct {
	TrackID  uint32
	Time     MediaTime
	Buffer   Span
	Key      bool
	Duration *MediaDuration // optional; nil means "derive from inter-packet delta"
}

// NewPacket builds a Packet. Duration is left unset; callers that know an
// explicit sample duration (e.g. from a container that carries it) should
// set it directly on the returned value.
func NewPacket(trackID uint32, t MediaTime, buf Span, key bool) Packet {
	return Packet{TrackID: trackID, Time: t, Buffer: buf, Key: key}
}
