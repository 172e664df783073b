package audioio

import "math"

// floatToInt16 clamps and scales a float32 sample in [-1, 1] to a signed
// 16-bit sample, matching
// _examples/vsariola-sointu/oto/convertbuffer.go's FloatBufferTo16BitLE
// clamping behavior.
func floatToInt16(v float32) int16 {
	switch {
	case v < -1.0:
		return -math.MaxInt16
	case v > 1.0:
		return math.MaxInt16
	default:
		return int16(v * math.MaxInt16)
	}
}

func putInt16LE(dst []byte, v int16) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
}

// interleaveStereo writes frames of left/right float32 samples into dst as
// interleaved signed-16-bit little-endian stereo, the wire format
// github.com/ebitengine/oto/v3 expects for oto.FormatSignedInt16LE. dst must
// be at least 4*len(left) bytes.
func interleaveStereo(left, right []float32, dst []byte) {
	for i := range left {
		putInt16LE(dst[i*4:], floatToInt16(left[i]))
		putInt16LE(dst[i*4+2:], floatToInt16(right[i]))
	}
}
