package utils

import (
	"encoding/binary"
	"math"
)

// UnpackFloat32 reinterprets four bytes (little endian) as a 32 bit
// float. This is used to reassemble float values which arrive from an
// upstream generator as individual bytes.
func UnpackFloat32(a, b, c, d byte) float32 {
	bits := binary.LittleEndian.Uint32([]byte{a, b, c, d})
	return math.Float32frombits(bits)
}
