package vector

import (
	"encoding/binary"
	"fmt"
	"math"
)

const float32Size = 4

// EncodeEmbedding encodes vec as little-endian IEEE 754 float32 values with no length prefix.
func EncodeEmbedding(vec []float32) []byte {
	out := make([]byte, len(vec)*float32Size)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(out[i*float32Size:], math.Float32bits(v))
	}
	return out
}

// DecodeEmbedding decodes a BLOB produced by EncodeEmbedding.
func DecodeEmbedding(b []byte) ([]float32, error) {
	if len(b)%float32Size != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d (not multiple of %d)", len(b), float32Size)
	}
	out := make([]float32, len(b)/float32Size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*float32Size:]))
	}
	return out, nil
}
