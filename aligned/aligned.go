// Package aligned provides fixed-size, alignment-guaranteed, zero-filled
// byte buffers for the SIMD coding kernels.
//
// Go's allocator gives no alignment promise beyond the word size, so the
// buffer over-allocates and slices from the first aligned offset. The
// backing array is pinned for as long as the view slice is referenced.
package aligned

import (
	"unsafe"

	"github.com/pkg/errors"
)

const (
	// CacheLine is the typical CPU cache line size in bytes.
	CacheLine = 64

	// SIMDAlign is the alignment the gf256 engine expects for table and
	// shard buffers.
	SIMDAlign = 32
)

var (
	ErrZeroSize = errors.New("aligned: zero size buffer")
	ErrBadAlign = errors.New("aligned: alignment must be a power of two")
	ErrReleased = errors.New("aligned: buffer already released")
)

// Buffer owns one aligned memory region. The region is zero-filled on
// allocation. A released Buffer must not be used again.
type Buffer struct {
	data  []byte
	align int
}

// New allocates a zero-filled buffer of size bytes whose first byte sits on
// an align-byte boundary.
func New(size, align int) (*Buffer, error) {
	if size <= 0 {
		return nil, ErrZeroSize
	}
	if align <= 0 || align&(align-1) != 0 {
		return nil, ErrBadAlign
	}
	raw := make([]byte, size+align-1)
	addr := uintptr(unsafe.Pointer(&raw[0]))
	off := int((addr+uintptr(align-1))&^uintptr(align-1) - addr)
	return &Buffer{
		data:  raw[off : off+size : off+size],
		align: align,
	}, nil
}

// Bytes returns the read view of the region.
func (b *Buffer) Bytes() []byte {
	if b.data == nil {
		panic(ErrReleased)
	}
	return b.data
}

// Mut returns the mutable view. The caller must be the sole owner of the
// Buffer for the duration of the mutation; the package never hands the
// same region to two owners.
func (b *Buffer) Mut() []byte {
	if b.data == nil {
		panic(ErrReleased)
	}
	return b.data
}

func (b *Buffer) Len() int {
	if b.data == nil {
		return 0
	}
	return len(b.data)
}

func (b *Buffer) Align() int {
	return b.align
}

// Release drops the region. Any slice previously obtained from Bytes or Mut
// keeps the backing array alive, so Release is only a correctness fence:
// further access through the Buffer panics.
func (b *Buffer) Release() {
	b.data = nil
}

// IsAligned reports whether p sits on an align-byte boundary.
func IsAligned(p unsafe.Pointer, align uintptr) bool {
	return uintptr(p)&(align-1) == 0
}

// SliceAligned reports whether the first byte of s sits on an align-byte
// boundary. An empty slice counts as aligned.
func SliceAligned(s []byte, align int) bool {
	if len(s) == 0 {
		return true
	}
	return IsAligned(unsafe.Pointer(&s[0]), uintptr(align))
}
