package rbtree

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// ErrCorruptColumn is returned when a compressed column cannot be restored.
var ErrCorruptColumn = errors.New("corrupt compressed column")

// uint32ByteSize is the number of bytes in a uint32.
const uint32ByteSize = 4

// Column block modes. LZ4 refuses to emit a block for incompressible input,
// so such columns are kept raw behind the mode byte.
const (
	blockRaw byte = iota
	blockLZ4
)

// CompressUInt32Slice packs a slice of uint32-s little-endian and compresses it with LZ4.
// The first byte of the result records whether the payload is compressed.
func CompressUInt32Slice(data []uint32) []byte {
	raw := make([]byte, len(data)*uint32ByteSize)

	for idx, value := range data {
		binary.LittleEndian.PutUint32(raw[idx*uint32ByteSize:], value)
	}

	compressed := make([]byte, 1+lz4.CompressBlockBound(len(raw)))

	written, err := lz4.CompressBlock(raw, compressed[1:], nil)
	if err != nil || written == 0 {
		return append([]byte{blockRaw}, raw...)
	}

	compressed[0] = blockLZ4

	return compressed[:1+written]
}

// DecompressUInt32Slice restores a slice packed by CompressUInt32Slice.
// `result` must be preallocated with the original length.
func DecompressUInt32Slice(data []byte, result []uint32) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty block", ErrCorruptColumn)
	}

	expected := len(result) * uint32ByteSize

	var raw []byte

	switch data[0] {
	case blockRaw:
		raw = data[1:]
	case blockLZ4:
		raw = make([]byte, expected)

		read, err := lz4.UncompressBlock(data[1:], raw)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCorruptColumn, err)
		}

		raw = raw[:read]
	default:
		return fmt.Errorf("%w: unknown block mode %d", ErrCorruptColumn, data[0])
	}

	if len(raw) != expected {
		return fmt.Errorf("%w: %d bytes instead of %d", ErrCorruptColumn, len(raw), expected)
	}

	for idx := range result {
		result[idx] = binary.LittleEndian.Uint32(raw[idx*uint32ByteSize:])
	}

	return nil
}

// DeltaEncodeUInt32Slice replaces each element with the difference from its
// predecessor, in place. Sorted input turns into small repetitive values that
// LZ4 handles well.
func DeltaEncodeUInt32Slice(data []uint32) {
	for i := len(data) - 1; i > 0; i-- {
		data[i] -= data[i-1]
	}
}

// DeltaDecodeUInt32Slice is the prefix-sum inverse of DeltaEncodeUInt32Slice.
func DeltaDecodeUInt32Slice(data []uint32) {
	for i := 1; i < len(data); i++ {
		data[i] += data[i-1]
	}
}
