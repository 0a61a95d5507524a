package gf256

import (
	"fmt"

	"github.com/klauspost/cpuid/v2"
	"github.com/templexxx/xorsimd"
)

const (
	// TableBytesPerCoeff is the expanded table size per matrix coefficient:
	// a 16-entry low-nibble product table followed by a 16-entry
	// high-nibble product table.
	TableBytesPerCoeff = 32

	// TableAlign is the required alignment of the tables buffer.
	TableAlign = 32
)

// Engine expands a coefficient matrix into multiplication tables and applies
// rows linear combinations of k input buffers into rows output buffers.
// The codecs consume it as an opaque capability so an accelerated
// implementation can be swapped in behind the same contract.
type Engine interface {
	// InitTables expands the flattened rows*k coefficient matrix into
	// tables, which must hold at least k*rows*TableBytesPerCoeff bytes.
	InitTables(k, rows int, coeffs, tables []byte)

	// EncodeData computes, for each row r, the linear combination of the
	// first length bytes of every data buffer into coding[r], using the
	// tables produced by InitTables. All buffers must be at least length
	// bytes; data and coding must not overlap.
	EncodeData(length, k, rows int, tables []byte, data, coding [][]byte)
}

// DefaultEngine returns the process-wide engine for the backend this binary
// was built with.
func DefaultEngine() Engine {
	mustInit()
	return tableEngine{}
}

// Features describes the backend and the CPU vector capabilities, for
// benchmark and startup logs.
func Features() string {
	return fmt.Sprintf("backend=%s avx2=%v avx512=%v",
		backendName, cpuid.CPU.Supports(cpuid.AVX2), cpuid.CPU.Supports(cpuid.AVX512F))
}

type tableEngine struct{}

func (tableEngine) InitTables(k, rows int, coeffs, tables []byte) {
	if k <= 0 || rows <= 0 {
		return
	}
	_ = coeffs[k*rows-1]
	_ = tables[k*rows*TableBytesPerCoeff-1]
	for r := 0; r < rows; r++ {
		for c := 0; c < k; c++ {
			co := coeffs[r*k+c]
			t := tables[(r*k+c)*TableBytesPerCoeff:]
			for i := 0; i < 16; i++ {
				t[i] = Mul(co, byte(i))
				t[16+i] = Mul(co, byte(i<<4))
			}
		}
	}
}

func (tableEngine) EncodeData(length, k, rows int, tables []byte, data, coding [][]byte) {
	if length == 0 || k <= 0 || rows <= 0 {
		return
	}
	for r := 0; r < rows; r++ {
		out := coding[r][:length]
		for c := 0; c < k; c++ {
			t := tables[(r*k+c)*TableBytesPerCoeff : (r*k+c)*TableBytesPerCoeff+TableBytesPerCoeff]
			in := data[c][:length]
			// The low-nibble table entry for input 1 is the coefficient
			// itself, which recovers the 0 and 1 fast paths.
			switch co := t[1]; {
			case co == 0:
				if c == 0 {
					for i := range out {
						out[i] = 0
					}
				}
			case co == 1:
				if c == 0 {
					copy(out, in)
				} else {
					xorsimd.Bytes(out, out, in)
				}
			default:
				if c == 0 {
					mulTableInto(t, in, out)
				} else {
					mulTableXor(t, in, out)
				}
			}
		}
	}
}
