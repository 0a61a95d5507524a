// Package cauchy implements an MDS Reed-Solomon erasure codec over a
// Cauchy generator matrix: any dataShards of the dataShards+parityShards
// encoded shards are enough to rebuild the rest. The shard count is
// limited to 256 so every coefficient index fits one byte.
//
// The field arithmetic runs through the gf256 engine; the codec owns the
// matrix construction and the shard/ownership protocol. Shard buffers
// belong to the caller for the duration of a call and are never retained.
package cauchy

import (
	"bytes"

	"github.com/journeymidnight/erasure/aligned"
	"github.com/journeymidnight/erasure/gf256"
	"github.com/pkg/errors"
)

type Codec struct {
	dataShards   int
	parityShards int
	totalShards  int

	parity matrix
	engine gf256.Engine
}

// New builds a codec for dataShards+parityShards total shards.
// Field-engine initialization happens here, once per process no matter how
// many codecs are constructed concurrently; if it fails, no codec of this
// family can ever work, so the failure is fatal.
func New(dataShards, parityShards int) (*Codec, error) {
	if dataShards <= 0 {
		return nil, ErrTooFewDataShards
	}
	if parityShards <= 0 {
		return nil, ErrTooFewParityShards
	}
	if dataShards+parityShards > 256 {
		return nil, ErrTooManyShards
	}

	if err := gf256.Init(); err != nil {
		panic(errors.Wrap(err, "field engine init failed"))
	}

	return &Codec{
		dataShards:   dataShards,
		parityShards: parityShards,
		totalShards:  dataShards + parityShards,
		parity:       parityMatrix(dataShards, parityShards),
		engine:       gf256.DefaultEngine(),
	}, nil
}

func (c *Codec) DataShards() int   { return c.dataShards }
func (c *Codec) ParityShards() int { return c.parityShards }
func (c *Codec) TotalShards() int  { return c.totalShards }

// Encode fills the parity slots of shards from the data slots.
// shards must hold exactly TotalShards buffers of one nonzero length; the
// first DataShards are read, the rest are overwritten in place.
func (c *Codec) Encode(shards [][]byte) error {
	if err := c.checkCount(len(shards)); err != nil {
		return err
	}
	size, err := checkUniform(shards)
	if err != nil {
		return err
	}
	return c.codeRows(c.parity, shards[:c.dataShards], shards[c.dataShards:], size)
}

// EncodeSep is Encode with data and parity passed separately.
func (c *Codec) EncodeSep(data, parity [][]byte) error {
	if len(data) != c.dataShards {
		if len(data) < c.dataShards {
			return ErrTooFewDataShards
		}
		return ErrTooManyDataShards
	}
	if len(parity) != c.parityShards {
		if len(parity) < c.parityShards {
			return ErrTooFewParityShards
		}
		return ErrTooManyParityShards
	}
	size := len(data[0])
	if size == 0 {
		return ErrEmptyShard
	}
	for _, s := range data {
		if len(s) != size {
			return ErrShardSize
		}
	}
	for _, s := range parity {
		if len(s) != size {
			return ErrShardSize
		}
	}
	return c.codeRows(c.parity, data, parity, size)
}

// Verify re-derives every parity row into scratch buffers and compares
// byte-for-byte with the supplied parity shards. A mismatch is a false
// result, not an error; shape problems error the same way Encode does.
func (c *Codec) Verify(shards [][]byte) (bool, error) {
	if err := c.checkCount(len(shards)); err != nil {
		return false, err
	}
	size, err := checkUniform(shards)
	if err != nil {
		return false, err
	}

	scratch := make([][]byte, c.parityShards)
	bufs := make([]*aligned.Buffer, c.parityShards)
	for i := range scratch {
		b, err := aligned.New(size, aligned.SIMDAlign)
		if err != nil {
			return false, err
		}
		bufs[i] = b
		scratch[i] = b.Mut()
	}
	defer func() {
		for _, b := range bufs {
			b.Release()
		}
	}()

	if err := c.codeRows(c.parity, shards[:c.dataShards], scratch, size); err != nil {
		return false, err
	}
	for i, expect := range scratch {
		if !bytes.Equal(expect, shards[c.dataShards+i]) {
			return false, nil
		}
	}
	return true, nil
}

// Reconstruct rebuilds every missing shard in place. A missing shard is a
// nil or zero-length slot; present shards are never recomputed or touched.
// At least DataShards slots must be present. On error the missing slots are
// left as they were (some may already be filled if a later phase failed,
// but no present buffer is ever modified, so the call is safe to retry).
func (c *Codec) Reconstruct(shards [][]byte) error {
	return c.reconstruct(shards, false)
}

// ReconstructData rebuilds only the missing data shards, leaving missing
// parity slots untouched.
func (c *Codec) ReconstructData(shards [][]byte) error {
	return c.reconstruct(shards, true)
}

func (c *Codec) reconstruct(shards [][]byte, dataOnly bool) error {
	if err := c.checkCount(len(shards)); err != nil {
		return err
	}

	size := 0
	present := 0
	for _, s := range shards {
		if len(s) == 0 {
			continue
		}
		if size != 0 && len(s) != size {
			return ErrShardSize
		}
		size = len(s)
		present++
	}
	if present == c.totalShards {
		return nil
	}
	if present < c.dataShards {
		return ErrTooFewShardsPresent
	}

	var dataMissing []int
	for i := 0; i < c.dataShards; i++ {
		if len(shards[i]) == 0 {
			dataMissing = append(dataMissing, i)
		}
	}

	if len(dataMissing) > 0 {
		if err := c.recoverData(shards, dataMissing, size); err != nil {
			return err
		}
	}

	if dataOnly {
		return nil
	}

	var parityMissing []int
	for i := c.dataShards; i < c.totalShards; i++ {
		if len(shards[i]) == 0 {
			parityMissing = append(parityMissing, i)
		}
	}
	if len(parityMissing) == 0 {
		return nil
	}

	// Recompute exactly the missing parity rows, nothing else.
	rows := make(matrix, len(parityMissing))
	outs := make([][]byte, len(parityMissing))
	for j, idx := range parityMissing {
		rows[j] = c.parity[idx-c.dataShards]
		b, err := aligned.New(size, aligned.SIMDAlign)
		if err != nil {
			return err
		}
		outs[j] = b.Mut()
	}
	if err := c.codeRows(rows, shards[:c.dataShards], outs, size); err != nil {
		return err
	}
	for j, idx := range parityMissing {
		shards[idx] = outs[j]
	}
	return nil
}

// recoverData solves for the missing data shards. It assembles a block
// list of dataShards present buffers — genuine data shards where
// available, otherwise the next unconsumed parity shard — addressed by
// global index, inverts the corresponding square of the generator matrix
// and combines the blocks into fresh buffers. Substitute parity shards
// are only read, never overwritten, so an all-data-missing reconstruct
// does not force a parity re-encode afterwards.
func (c *Codec) recoverData(shards [][]byte, dataMissing []int, size int) error {
	inputs := make([][]byte, 0, c.dataShards)
	indices := make([]int, 0, c.dataShards)
	next := c.dataShards
	for i := 0; i < c.dataShards; i++ {
		if len(shards[i]) != 0 {
			inputs = append(inputs, shards[i])
			indices = append(indices, i)
			continue
		}
		for len(shards[next]) == 0 {
			next++ // present >= dataShards guarantees termination
		}
		inputs = append(inputs, shards[next])
		indices = append(indices, next)
		next++
	}

	m := make(matrix, c.dataShards)
	for t, gi := range indices {
		m[t] = c.encodeRow(gi)
	}
	inv, err := m.invert()
	if err != nil {
		// cannot happen once present >= dataShards holds for a Cauchy
		// matrix, but the solve is guarded anyway
		return ErrTooFewShardsPresent
	}

	rows := make(matrix, len(dataMissing))
	outs := make([][]byte, len(dataMissing))
	for j, di := range dataMissing {
		rows[j] = inv[di]
		b, err := aligned.New(size, aligned.SIMDAlign)
		if err != nil {
			return err
		}
		outs[j] = b.Mut()
	}
	if err := c.codeRows(rows, inputs, outs, size); err != nil {
		return err
	}
	for j, di := range dataMissing {
		shards[di] = outs[j]
	}
	return nil
}

// codeRows runs one fused engine pass: len(rows) linear combinations of
// inputs, each written directly into its outs buffer. The expanded tables
// live in a per-call aligned buffer, released before return.
func (c *Codec) codeRows(rows matrix, inputs, outs [][]byte, size int) error {
	k := len(inputs)
	n := len(rows)
	coeffs := make([]byte, 0, k*n)
	for _, row := range rows {
		coeffs = append(coeffs, row[:k]...)
	}

	tables, err := aligned.New(k*n*gf256.TableBytesPerCoeff, gf256.TableAlign)
	if err != nil {
		return err
	}
	defer tables.Release()

	c.engine.InitTables(k, n, coeffs, tables.Mut())
	c.engine.EncodeData(size, k, n, tables.Bytes(), inputs, outs)
	return nil
}

func (c *Codec) checkCount(count int) error {
	if count < c.totalShards {
		return ErrTooFewShards
	}
	if count > c.totalShards {
		return ErrTooManyShards
	}
	return nil
}

func checkUniform(shards [][]byte) (int, error) {
	size := len(shards[0])
	if size == 0 {
		return 0, ErrEmptyShard
	}
	for _, s := range shards[1:] {
		if len(s) != size {
			return 0, ErrShardSize
		}
	}
	return size, nil
}
