package mp4

import "fmt"

// MuxError indicates a packet or track could not be muxed: a dimension
// not representable in 16 bits, an unsupported codec, or a bitstream
// conversion failure propagated from internal/nal.
type MuxError struct {
	Op  string
	Err error
}

func (e *MuxError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("mp4: %s", e.Op)
	}
	return fmt.Sprintf("mp4: %s: %v", e.Op, e.Err)
}
func (e *MuxError) Unwrap() error { return e.Err }

func newMuxError(op string, err error) error { return &MuxError{Op: op, Err: err} }

func errDimensionRange(width, height int) error {
	return fmt.Errorf("width/height not representable in u16: %dx%d", width, height)
}
