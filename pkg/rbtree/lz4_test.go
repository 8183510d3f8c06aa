package rbtree_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/redblack/pkg/rbtree"
)

func TestCompressDecompressUInt32Slice(t *testing.T) {
	t.Parallel()

	data := make([]uint32, 1000)
	for idx := range data {
		data[idx] = 7
	}

	packed := rbtree.CompressUInt32Slice(data)
	assert.Less(t, len(packed), len(data)*4, "a constant column should shrink")

	restored := make([]uint32, len(data))
	require.NoError(t, rbtree.DecompressUInt32Slice(packed, restored))
	assert.Equal(t, data, restored)
}

func TestCompressUInt32Slice_Incompressible(t *testing.T) {
	t.Parallel()

	data := []uint32{0xdeadbeef}

	packed := rbtree.CompressUInt32Slice(data)

	restored := make([]uint32, 1)
	require.NoError(t, rbtree.DecompressUInt32Slice(packed, restored))
	assert.Equal(t, data, restored)
}

func TestDecompressUInt32Slice_Corrupt(t *testing.T) {
	t.Parallel()

	packed := rbtree.CompressUInt32Slice([]uint32{1, 2, 3})
	restored := make([]uint32, 4)

	require.ErrorIs(t, rbtree.DecompressUInt32Slice(packed, restored), rbtree.ErrCorruptColumn)
	require.ErrorIs(t, rbtree.DecompressUInt32Slice(nil, restored), rbtree.ErrCorruptColumn)
	require.ErrorIs(t, rbtree.DecompressUInt32Slice([]byte{9}, restored), rbtree.ErrCorruptColumn)
}

func TestDeltaEncodeDecodeUInt32Slice(t *testing.T) {
	t.Parallel()

	data := []uint32{3, 5, 9, 10, 100}

	rbtree.DeltaEncodeUInt32Slice(data)
	assert.Equal(t, []uint32{3, 2, 4, 1, 90}, data)

	rbtree.DeltaDecodeUInt32Slice(data)
	assert.Equal(t, []uint32{3, 5, 9, 10, 100}, data)
}
