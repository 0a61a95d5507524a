// Package gfcode is the systematic fast path: given an externally supplied
// rows x k parity-generator matrix it drives one fused gf256 engine pass
// over aligned shard buffers. It carries no MDS construction of its own —
// callers bring the matrix (cauchy.ParityMatrix for the Cauchy family) and
// are expected to prefer this path only at or above MinShards total shards.
package gfcode

import (
	"os"
	"strconv"
	"sync"

	"github.com/journeymidnight/erasure/aligned"
	"github.com/journeymidnight/erasure/gf256"
	"github.com/journeymidnight/erasure/utils"
	"github.com/pkg/errors"
)

const (
	// DefaultMinShards is the shard count below which the systematic path
	// stops being profitable on typical hardware. The ec-bench tool
	// calibrates the real value for a given machine.
	DefaultMinShards = 16

	// MinShardsEnv overrides DefaultMinShards; read once per process.
	MinShardsEnv = "EC_GF_MIN_SHARDS"
)

var (
	minShardsOnce sync.Once
	minShards     int
)

// MinShards returns the engine-wide systematic-codec threshold.
func MinShards() int {
	minShardsOnce.Do(func() {
		minShards = parseMinShards(os.Getenv(MinShardsEnv))
	})
	return minShards
}

func parseMinShards(v string) int {
	if v == "" {
		return DefaultMinShards
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return DefaultMinShards
	}
	return n
}

// CodeSomeShards computes len(outputs) linear combinations of the inputs,
// coefficients taken from the first len(inputs) entries of each matrix row.
//
// Degenerate shapes (no inputs, no outputs, zero-length shards) succeed
// trivially. The caller must have validated that all buffers share one
// length and sit on aligned.SIMDAlign boundaries; isAligned records that
// promise and length uniformity is asserted, not returned as an error.
// The only false returns are table-size arithmetic overflow and table
// allocation failure — a safe abort before anything is written.
func CodeSomeShards(matrixRows, inputs, outputs [][]byte, isAligned bool) bool {
	k := len(inputs)
	rows := len(outputs)
	if k == 0 || rows == 0 {
		return true
	}

	utils.AssertTrue(isAligned)
	utils.AssertTrue(len(matrixRows) == rows)

	length := len(inputs[0])
	if length == 0 {
		return true
	}
	for _, in := range inputs {
		utils.AssertTrue(len(in) == length)
	}
	for _, out := range outputs {
		utils.AssertTrue(len(out) == length)
	}
	for _, row := range matrixRows {
		utils.AssertTrue(len(row) >= k)
	}

	coeffsLen, ok := mulNoOverflow(k, rows)
	if !ok {
		return false
	}
	tablesLen, ok := mulNoOverflow(coeffsLen, gf256.TableBytesPerCoeff)
	if !ok {
		return false
	}
	if _, ok = mulNoOverflow(coeffsLen, length); !ok {
		return false
	}

	coeffs := make([]byte, 0, coeffsLen)
	for _, row := range matrixRows {
		coeffs = append(coeffs, row[:k]...)
	}

	// fresh per call: coefficient sets vary and the engine keeps no cache
	tables, err := aligned.New(tablesLen, gf256.TableAlign)
	if err != nil {
		return false
	}
	defer tables.Release()

	e := gf256.DefaultEngine()
	e.InitTables(k, rows, coeffs, tables.Mut())
	e.EncodeData(length, k, rows, tables.Bytes(), inputs, outputs)
	return true
}

func mulNoOverflow(a, b int) (int, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	p := a * b
	if p/a != b {
		return 0, false
	}
	return p, true
}

var (
	ErrUnaligned = errors.New("gfcode: shard buffer not aligned")
	ErrOverflow  = errors.New("gfcode: table size arithmetic overflow")
)

// Encoder binds a parity-generator matrix to fixed shard counts and adds
// the validation layer CodeSomeShards itself refuses to carry.
type Encoder struct {
	dataShards   int
	parityShards int
	rows         [][]byte
}

func NewEncoder(dataShards, parityShards int, parityRows [][]byte) (*Encoder, error) {
	if dataShards <= 0 || parityShards <= 0 {
		return nil, errors.Errorf("gfcode: bad shape %d+%d", dataShards, parityShards)
	}
	if len(parityRows) != parityShards {
		return nil, errors.Errorf("gfcode: %d parity rows for %d parity shards",
			len(parityRows), parityShards)
	}
	for i, row := range parityRows {
		if len(row) < dataShards {
			return nil, errors.Errorf("gfcode: row %d has %d coefficients, need %d",
				i, len(row), dataShards)
		}
	}
	if err := gf256.Init(); err != nil {
		panic(errors.Wrap(err, "field engine init failed"))
	}
	return &Encoder{
		dataShards:   dataShards,
		parityShards: parityShards,
		rows:         parityRows,
	}, nil
}

// Encode overwrites the parity slots of shards. All buffers must share one
// length and be SIMDAlign-aligned (allocate them with the aligned package).
func (e *Encoder) Encode(shards [][]byte) error {
	if len(shards) != e.dataShards+e.parityShards {
		return errors.Errorf("gfcode: got %d shards, want %d",
			len(shards), e.dataShards+e.parityShards)
	}
	length := len(shards[0])
	for _, s := range shards {
		if len(s) != length {
			return errors.Errorf("gfcode: shard sizes differ")
		}
		if !aligned.SliceAligned(s, aligned.SIMDAlign) {
			return ErrUnaligned
		}
	}
	if !CodeSomeShards(e.rows, shards[:e.dataShards], shards[e.dataShards:], true) {
		return ErrOverflow
	}
	return nil
}
