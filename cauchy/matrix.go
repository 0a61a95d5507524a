package cauchy

import (
	"github.com/journeymidnight/erasure/gf256"
)

type matrix [][]byte

func newMatrix(rows, cols int) matrix {
	m := matrix(make([][]byte, rows))
	for i := range m {
		m[i] = make([]byte, cols)
	}
	return m
}

func identityMatrix(n int) matrix {
	m := newMatrix(n, n)
	for i := 0; i < n; i++ {
		m[i][i] = byte(1)
	}
	return m
}

// parityMatrix builds the p x d Cauchy coefficient matrix. Row r, column c
// holds 1/(x_r + y_c) over GF(256) with x_r = d+r and y_c = c. The two
// index ranges are disjoint whenever d+p <= 256, so x_r XOR y_c is never
// zero and every square submatrix of the code is invertible.
func parityMatrix(d, p int) matrix {
	m := newMatrix(p, d)
	for r := 0; r < p; r++ {
		for c := 0; c < d; c++ {
			m[r][c] = gf256.Inv(byte((d + r) ^ c))
		}
	}
	return m
}

// ParityMatrix exposes the Cauchy parity-generator rows so systematic
// consumers (gfcode, the calibration bench) can drive the same code family.
func ParityMatrix(dataShards, parityShards int) [][]byte {
	if dataShards <= 0 || parityShards <= 0 || dataShards+parityShards > 256 {
		return nil
	}
	if err := gf256.Init(); err != nil {
		panic(err)
	}
	return parityMatrix(dataShards, parityShards)
}

// encodeRow returns the generator-matrix row for global shard index idx:
// an identity row for data positions, a Cauchy row for parity positions.
func (c *Codec) encodeRow(idx int) []byte {
	if idx < c.dataShards {
		row := make([]byte, c.dataShards)
		row[idx] = 1
		return row
	}
	return c.parity[idx-c.dataShards]
}

// invert returns the inverse via Gauss-Jordan on (m|I).
func (m matrix) invert() (matrix, error) {
	size := len(m)
	work := newMatrix(size, size*2)
	for r := range m {
		copy(work[r], m[r])
		work[r][size+r] = 1
	}
	if err := work.gaussJordan(); err != nil {
		return nil, err
	}
	out := newMatrix(size, size)
	for r := 0; r < size; r++ {
		copy(out[r], work[r][size:])
	}
	return out, nil
}

// gaussJordan reduces (m|I) to (I|inverse) in place.
func (m matrix) gaussJordan() error {
	rows := len(m)
	columns := len(m[0])
	for r := 0; r < rows; r++ {
		if m[r][r] == 0 {
			for below := r + 1; below < rows; below++ {
				if m[below][r] != 0 {
					m[r], m[below] = m[below], m[r]
					break
				}
			}
		}
		if m[r][r] == 0 {
			return ErrTooFewShardsPresent
		}
		if m[r][r] != 1 {
			scale := gf256.Inv(m[r][r])
			for c := 0; c < columns; c++ {
				m[r][c] = gf256.Mul(m[r][c], scale)
			}
		}
		for below := r + 1; below < rows; below++ {
			if m[below][r] != 0 {
				scale := m[below][r]
				for c := 0; c < columns; c++ {
					m[below][c] ^= gf256.Mul(scale, m[r][c])
				}
			}
		}
	}
	for d := 0; d < rows; d++ {
		for above := 0; above < d; above++ {
			if m[above][d] != 0 {
				scale := m[above][d]
				for c := 0; c < columns; c++ {
					m[above][c] ^= gf256.Mul(scale, m[d][c])
				}
			}
		}
	}
	return nil
}

// mul returns m x right, used by tests to check inverses.
func (m matrix) mul(right matrix) matrix {
	out := newMatrix(len(m), len(right[0]))
	for r := range out {
		for c := range out[r] {
			var v byte
			for i := range m[r] {
				v ^= gf256.Mul(m[r][i], right[i][c])
			}
			out[r][c] = v
		}
	}
	return out
}
