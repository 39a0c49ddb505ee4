package nal

import "fmt"

// bitReader reads MSB-first bits out of a byte slice, used only for the
// handful of SPS fields ParseSPSDimensions needs.
type bitReader struct {
	data []byte
	pos  int // bit position
}

func (r *bitReader) bit() (uint32, error) {
	idx := r.pos / 8
	if idx >= len(r.data) {
		return 0, fmt.Errorf("nal: sps bitstream exhausted")
	}
	shift := 7 - uint(r.pos%8)
	b := (r.data[idx] >> shift) & 1
	r.pos++
	return uint32(b), nil
}

func (r *bitReader) bits(n int) (uint32, error) {
	var v uint32
	for i := 0; i < n; i++ {
		b, err := r.bit()
		if err != nil {
			return 0, err
		}
		v = v<<1 | b
	}
	return v, nil
}

// ue reads an Exp-Golomb unsigned code (the encoding used throughout SPS/PPS).
func (r *bitReader) ue() (uint32, error) {
	leadingZeros := 0
	for {
		b, err := r.bit()
		if err != nil {
			return 0, err
		}
		if b != 0 {
			break
		}
		leadingZeros++
		if leadingZeros > 32 {
			return 0, fmt.Errorf("nal: sps exp-golomb code too long")
		}
	}
	if leadingZeros == 0 {
		return 0, nil
	}
	rest, err := r.bits(leadingZeros)
	if err != nil {
		return 0, err
	}
	return (1 << uint(leadingZeros)) - 1 + rest, nil
}

// se reads an Exp-Golomb signed code.
func (r *bitReader) se() (int32, error) {
	v, err := r.ue()
	if err != nil {
		return 0, err
	}
	if v%2 == 0 {
		return -int32(v / 2), nil
	}
	return int32((v + 1) / 2), nil
}

// ParseSPSDimensions decodes just enough of an H.264 Sequence Parameter Set
// (the raw NAL payload, including its one-byte nal_unit_header, with no
// emulation-prevention bytes unescaped — callers must pass raw SPS bytes
// rather than the unescaped RBSP) to recover the coded picture width and
// height in pixels, accounting for cropping.
func ParseSPSDimensions(sps []byte) (width, height int, err error) {
	if len(sps) < 4 {
		return 0, 0, fmt.Errorf("nal: sps too short")
	}
	r := &bitReader{data: sps, pos: 8} // skip nal_unit_header byte

	profileIdc, err := r.bits(8)
	if err != nil {
		return 0, 0, err
	}
	if _, err := r.bits(8); err != nil { // constraint flags + reserved
		return 0, 0, err
	}
	if _, err := r.bits(8); err != nil { // level_idc
		return 0, 0, err
	}
	if _, err := r.ue(); err != nil { // seq_parameter_set_id
		return 0, 0, err
	}

	chromaFormatIdc := uint32(1)
	switch profileIdc {
	case 100, 110, 122, 244, 44, 83, 86, 118, 128, 138, 139, 134, 135:
		chromaFormatIdc, err = r.ue()
		if err != nil {
			return 0, 0, err
		}
		if chromaFormatIdc == 3 {
			if _, err := r.bit(); err != nil { // separate_colour_plane_flag
				return 0, 0, err
			}
		}
		if _, err := r.ue(); err != nil { // bit_depth_luma_minus8
			return 0, 0, err
		}
		if _, err := r.ue(); err != nil { // bit_depth_chroma_minus8
			return 0, 0, err
		}
		if _, err := r.bit(); err != nil { // qpprime_y_zero_transform_bypass_flag
			return 0, 0, err
		}
		seqScalingMatrixPresent, err := r.bit()
		if err != nil {
			return 0, 0, err
		}
		if seqScalingMatrixPresent != 0 {
			count := 8
			if chromaFormatIdc == 3 {
				count = 12
			}
			for i := 0; i < count; i++ {
				present, err := r.bit()
				if err != nil {
					return 0, 0, err
				}
				if present != 0 {
					if err := skipScalingList(r, sizeForScalingIndex(i)); err != nil {
						return 0, 0, err
					}
				}
			}
		}
	}

	if _, err := r.ue(); err != nil { // log2_max_frame_num_minus4
		return 0, 0, err
	}
	picOrderCntType, err := r.ue()
	if err != nil {
		return 0, 0, err
	}
	switch picOrderCntType {
	case 0:
		if _, err := r.ue(); err != nil { // log2_max_pic_order_cnt_lsb_minus4
			return 0, 0, err
		}
	case 1:
		if _, err := r.bit(); err != nil { // delta_pic_order_always_zero_flag
			return 0, 0, err
		}
		if _, err := r.se(); err != nil { // offset_for_non_ref_pic
			return 0, 0, err
		}
		if _, err := r.se(); err != nil { // offset_for_top_to_bottom_field
			return 0, 0, err
		}
		n, err := r.ue() // num_ref_frames_in_pic_order_cnt_cycle
		if err != nil {
			return 0, 0, err
		}
		for i := uint32(0); i < n; i++ {
			if _, err := r.se(); err != nil {
				return 0, 0, err
			}
		}
	}

	if _, err := r.ue(); err != nil { // max_num_ref_frames
		return 0, 0, err
	}
	if _, err := r.bit(); err != nil { // gaps_in_frame_num_value_allowed_flag
		return 0, 0, err
	}

	picWidthInMbsMinus1, err := r.ue()
	if err != nil {
		return 0, 0, err
	}
	picHeightInMapUnitsMinus1, err := r.ue()
	if err != nil {
		return 0, 0, err
	}
	frameMbsOnlyFlag, err := r.bit()
	if err != nil {
		return 0, 0, err
	}
	frameMbsMultiplier := uint32(2)
	if frameMbsOnlyFlag != 0 {
		frameMbsMultiplier = 1
	} else if _, err := r.bit(); err != nil { // mb_adaptive_frame_field_flag
		return 0, 0, err
	}
	if _, err := r.bit(); err != nil { // direct_8x8_inference_flag
		return 0, 0, err
	}

	frameCroppingFlag, err := r.bit()
	if err != nil {
		return 0, 0, err
	}
	var cropLeft, cropRight, cropTop, cropBottom uint32
	if frameCroppingFlag != 0 {
		if cropLeft, err = r.ue(); err != nil {
			return 0, 0, err
		}
		if cropRight, err = r.ue(); err != nil {
			return 0, 0, err
		}
		if cropTop, err = r.ue(); err != nil {
			return 0, 0, err
		}
		if cropBottom, err = r.ue(); err != nil {
			return 0, 0, err
		}
	}

	w := int(picWidthInMbsMinus1+1) * 16
	h := int(picHeightInMapUnitsMinus1+1) * 16 * int(frameMbsMultiplier)

	cropUnitX := 1
	cropUnitY := int(frameMbsMultiplier)
	if chromaFormatIdc == 1 {
		cropUnitX, cropUnitY = 2, 2*int(frameMbsMultiplier)
	} else if chromaFormatIdc == 2 {
		cropUnitX, cropUnitY = 2, int(frameMbsMultiplier)
	}

	w -= cropUnitX * int(cropLeft+cropRight)
	h -= cropUnitY * int(cropTop+cropBottom)

	return w, h, nil
}

func sizeForScalingIndex(i int) int {
	if i < 6 {
		return 16
	}
	return 64
}

// skipScalingList advances the reader past one scaling_list() of the given
// size without retaining its values (only needed for bit alignment).
func skipScalingList(r *bitReader, size int) error {
	lastScale, nextScale := int32(16), int32(16)
	for j := 0; j < size; j++ {
		if nextScale != 0 {
			delta, err := r.se()
			if err != nil {
				return err
			}
			nextScale = (lastScale + delta + 256) % 256
		}
		if nextScale != 0 {
			lastScale = nextScale
		}
	}
	return nil
}
