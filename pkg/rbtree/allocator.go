package rbtree

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"unsafe"

	"github.com/Sumatoshi-tech/redblack/pkg/safeconv"
)

// growCapacityNumerator and growCapacityDenominator define the 3/2 growth factor for storage.
const (
	growCapacityNumerator   = 3
	growCapacityDenominator = 2
)

// Hibernated column layout. Keys are split into two 32-bit words.
const (
	columnKeyLow = iota
	columnKeyHigh
	columnParent
	columnLeft
	columnRight
	columnColor
	columnGaps
	columnCount
)

// Allocator is the arena holding the nodes of one or more trees.
// Node references are indices into its storage; index 0 is the black sentinel.
type Allocator struct {
	storage              []node
	gaps                 map[uint32]bool
	hibernatedData       [columnCount][]byte
	HibernationThreshold int
	hibernatedStorageLen int
	hibernatedGapsLen    int
}

// NewAllocator creates a new allocator for tree nodes.
func NewAllocator() *Allocator {
	return &Allocator{
		storage: []node{sentinelNode()},
		gaps:    map[uint32]bool{},
	}
}

func sentinelNode() node {
	return node{color: Black}
}

// Size returns the number of allocated slots, the sentinel included.
func (allocator *Allocator) Size() int {
	return len(allocator.storage)
}

// Used returns the number of slots in use, the sentinel included.
func (allocator *Allocator) Used() int {
	allocator.mustBeAwake()

	return len(allocator.storage) - len(allocator.gaps)
}

// MemoryBytes returns the bytes reserved by the awake storage.
func (allocator *Allocator) MemoryBytes() uint64 {
	return safeconv.MustIntToUint64(cap(allocator.storage)) * uint64(unsafe.Sizeof(node{}))
}

// Hibernated reports whether the storage is currently compressed.
func (allocator *Allocator) Hibernated() bool {
	return allocator.storage == nil
}

// HibernatedBytes returns the compressed footprint of a hibernated allocator.
func (allocator *Allocator) HibernatedBytes() int {
	total := 0

	for _, column := range allocator.hibernatedData {
		total += len(column)
	}

	return total
}

// Clone copies an existing allocator, so that trees bound to it can be
// shallow-copied onto the clone.
func (allocator *Allocator) Clone() *Allocator {
	if allocator.storage == nil {
		panic("cannot clone a hibernated allocator")
	}

	return &Allocator{
		HibernationThreshold: allocator.HibernationThreshold,
		storage:              slices.Clone(allocator.storage),
		gaps:                 maps.Clone(allocator.gaps),
	}
}

// Hibernate compresses the allocated memory. Allocators smaller than
// HibernationThreshold are left untouched.
func (allocator *Allocator) Hibernate() {
	if allocator.hibernatedStorageLen > 0 {
		panic("cannot hibernate an already hibernated Allocator")
	}

	if len(allocator.storage) < allocator.HibernationThreshold {
		return
	}

	allocator.hibernatedStorageLen = len(allocator.storage)
	columns := [columnGaps][]uint32{}

	for idx := range columns {
		columns[idx] = make([]uint32, len(allocator.storage))
	}

	// Deinterleaving gives LZ4 long runs of similar values.
	for idx, nd := range allocator.storage {
		key := uint64(nd.key) //nolint:gosec // the sign is restored on boot.
		columns[columnKeyLow][idx] = uint32(key)
		columns[columnKeyHigh][idx] = uint32(key >> 32) //nolint:mnd // upper word.
		columns[columnParent][idx] = nd.parent
		columns[columnLeft][idx] = nd.child[left]
		columns[columnRight][idx] = nd.child[right]

		if nd.color == Black {
			columns[columnColor][idx] = 1
		}
	}

	allocator.storage = nil

	wg := &sync.WaitGroup{}
	wg.Add(len(columns) + 1)

	for idx, column := range columns {
		go func(colIdx int, col []uint32) {
			defer wg.Done()

			allocator.hibernatedData[colIdx] = CompressUInt32Slice(col)
		}(idx, column)
	}

	go func() {
		defer wg.Done()

		allocator.hibernatedGapsLen = len(allocator.gaps)

		if len(allocator.gaps) > 0 {
			gaps := slices.Sorted(maps.Keys(allocator.gaps))
			DeltaEncodeUInt32Slice(gaps)
			allocator.hibernatedData[columnGaps] = CompressUInt32Slice(gaps)
		}

		allocator.gaps = nil
	}()

	wg.Wait()
}

// Boot performs the opposite of Hibernate: it decompresses and restores the allocated memory.
func (allocator *Allocator) Boot() error {
	if allocator.hibernatedStorageLen == 0 {
		return nil
	}

	columns := [columnGaps][]uint32{}
	gaps := make([]uint32, allocator.hibernatedGapsLen)
	errs := make([]error, columnCount)

	wg := &sync.WaitGroup{}
	wg.Add(len(columns) + 1)

	for idx := range columns {
		go func(colIdx int) {
			defer wg.Done()

			columns[colIdx] = make([]uint32, allocator.hibernatedStorageLen)
			errs[colIdx] = DecompressUInt32Slice(allocator.hibernatedData[colIdx], columns[colIdx])
		}(idx)
	}

	go func() {
		defer wg.Done()

		if len(gaps) == 0 {
			return
		}

		errs[columnGaps] = DecompressUInt32Slice(allocator.hibernatedData[columnGaps], gaps)
		DeltaDecodeUInt32Slice(gaps)
	}()

	wg.Wait()

	err := errors.Join(errs...)
	if err != nil {
		return fmt.Errorf("boot allocator: %w", err)
	}

	capSize := (allocator.hibernatedStorageLen * growCapacityNumerator) / growCapacityDenominator
	allocator.storage = make([]node, allocator.hibernatedStorageLen, capSize)

	for idx := range allocator.storage {
		key := uint64(columns[columnKeyHigh][idx])<<32 | uint64(columns[columnKeyLow][idx]) //nolint:mnd // upper word.

		nd := &allocator.storage[idx]
		nd.key = int(int64(key)) //nolint:gosec // inverse of the split in Hibernate.
		nd.parent = columns[columnParent][idx]
		nd.child[left] = columns[columnLeft][idx]
		nd.child[right] = columns[columnRight][idx]

		nd.color = Red
		if columns[columnColor][idx] > 0 {
			nd.color = Black
		}
	}

	allocator.gaps = make(map[uint32]bool, len(gaps))

	for _, gap := range gaps {
		allocator.gaps[gap] = true
	}

	allocator.hibernatedData = [columnCount][]byte{}
	allocator.hibernatedStorageLen = 0
	allocator.hibernatedGapsLen = 0

	return nil
}

func (allocator *Allocator) mustBeAwake() {
	if allocator.storage == nil {
		panic("hibernated allocators cannot be used")
	}
}

func (allocator *Allocator) malloc() uint32 {
	allocator.mustBeAwake()

	if len(allocator.gaps) > 0 {
		var idx uint32

		for idx = range allocator.gaps {
			break
		}

		delete(allocator.gaps, idx)

		return idx
	}

	// Panics once the arena outgrows uint32 indices.
	nodeIdx := safeconv.MustIntToUint32(len(allocator.storage))
	allocator.storage = append(allocator.storage, node{})

	return nodeIdx
}

func (allocator *Allocator) free(nodeIdx uint32) {
	allocator.mustBeAwake()

	if nodeIdx == 0 {
		panic("node #0 is the sentinel and cannot be deallocated")
	}

	_, exists := allocator.gaps[nodeIdx]
	doAssert(!exists)

	allocator.storage[nodeIdx] = node{}
	allocator.gaps[nodeIdx] = true
}
