package cauchy

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/journeymidnight/erasure/utils"
	"github.com/journeymidnight/erasure/xlog"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	xlog.InitIfNeed(zap.DebugLevel)
}

func makeShards(d, p, size int, rng *rand.Rand) [][]byte {
	shards := make([][]byte, d+p)
	for i := 0; i < d; i++ {
		shards[i] = make([]byte, size)
		rng.Read(shards[i])
	}
	for i := d; i < d+p; i++ {
		shards[i] = make([]byte, size)
	}
	return shards
}

func cloneShards(shards [][]byte) [][]byte {
	out := make([][]byte, len(shards))
	for i, s := range shards {
		if s != nil {
			out[i] = append([]byte(nil), s...)
		}
	}
	return out
}

func TestNewErrors(t *testing.T) {
	for _, m := range []int{1, 2, 100} {
		_, err := New(0, m)
		require.Equal(t, ErrTooFewDataShards, err)
	}
	for _, k := range []int{1, 2, 100} {
		_, err := New(k, 0)
		require.Equal(t, ErrTooFewParityShards, err)
	}
	_, err := New(200, 100)
	require.Equal(t, ErrTooManyShards, err)
	_, err = New(128, 129)
	require.Equal(t, ErrTooManyShards, err)

	c, err := New(128, 128)
	require.Nil(t, err)
	require.Equal(t, 256, c.TotalShards())
}

func TestEncodeShapeErrors(t *testing.T) {
	c, err := New(4, 2)
	require.Nil(t, err)

	require.Equal(t, ErrTooFewShards, c.Encode(make([][]byte, 5)))
	require.Equal(t, ErrTooManyShards, c.Encode(make([][]byte, 7)))

	shards := makeShards(4, 2, 64, rand.New(rand.NewSource(1)))
	shards[2] = make([]byte, 32)
	before := cloneShards(shards)
	require.Equal(t, ErrShardSize, c.Encode(shards))
	// a validation error mutates nothing
	require.Equal(t, before, shards)

	empty := make([][]byte, 6)
	for i := range empty {
		empty[i] = []byte{}
	}
	require.Equal(t, ErrEmptyShard, c.Encode(empty))
}

func TestRoundTripAnyErasure(t *testing.T) {
	// MDS guarantee: encode, erase any subset of size <= parity, reconstruct
	rng := rand.New(rand.NewSource(2))
	for _, tc := range []struct{ d, p, size int }{
		{1, 1, 1},
		{2, 2, 31},
		{4, 4, 1024},
		{6, 3, 4096},
		{10, 4, 517},
		{32, 16, 96},
	} {
		t.Run(fmt.Sprintf("%d+%d size=%d", tc.d, tc.p, tc.size), func(t *testing.T) {
			c, err := New(tc.d, tc.p)
			require.Nil(t, err)

			shards := makeShards(tc.d, tc.p, tc.size, rng)
			require.Nil(t, c.Encode(shards))
			golden := cloneShards(shards)

			for trial := 0; trial < 30; trial++ {
				work := cloneShards(golden)
				erase := rng.Perm(tc.d + tc.p)[:rng.Intn(tc.p+1)]
				for _, idx := range erase {
					work[idx] = nil
				}
				require.Nil(t, c.Reconstruct(work))
				require.Equal(t, golden, work)

				ok, err := c.Verify(work)
				require.Nil(t, err)
				require.True(t, ok)
			}
		})
	}
}

func TestVerify(t *testing.T) {
	c, err := New(6, 3)
	require.Nil(t, err)
	shards := makeShards(6, 3, 2048, rand.New(rand.NewSource(3)))
	require.Nil(t, c.Encode(shards))

	ok, err := c.Verify(shards)
	require.Nil(t, err)
	require.True(t, ok)

	// any single flipped parity byte must fail verification
	for _, pos := range []int{0, 1000, 2047} {
		for pi := 6; pi < 9; pi++ {
			shards[pi][pos] ^= 0x40
			ok, err = c.Verify(shards)
			require.Nil(t, err)
			require.False(t, ok)
			shards[pi][pos] ^= 0x40
		}
	}
	ok, err = c.Verify(shards)
	require.Nil(t, err)
	require.True(t, ok)
}

func TestReconstructNoop(t *testing.T) {
	c, err := New(4, 2)
	require.Nil(t, err)
	shards := makeShards(4, 2, 128, rand.New(rand.NewSource(4)))
	require.Nil(t, c.Encode(shards))
	before := cloneShards(shards)
	require.Nil(t, c.Reconstruct(shards))
	require.Equal(t, before, shards)
}

func TestReconstructSelectiveParity(t *testing.T) {
	// parity shards that were present stay bit-identical (same backing
	// array, not recomputed); only the missing ones are rewritten
	c, err := New(4, 4)
	require.Nil(t, err)
	shards := makeShards(4, 4, 512, rand.New(rand.NewSource(5)))
	require.Nil(t, c.Encode(shards))
	golden := cloneShards(shards)

	shards[1] = nil // data
	shards[6] = nil // parity
	keptParity := []*byte{&shards[4][0], &shards[5][0], &shards[7][0]}

	require.Nil(t, c.Reconstruct(shards))
	require.Equal(t, golden, shards)
	require.Same(t, keptParity[0], &shards[4][0])
	require.Same(t, keptParity[1], &shards[5][0])
	require.Same(t, keptParity[2], &shards[7][0])
}

func TestReconstructDataOnly(t *testing.T) {
	c, err := New(6, 3)
	require.Nil(t, err)
	shards := makeShards(6, 3, 256, rand.New(rand.NewSource(6)))
	require.Nil(t, c.Encode(shards))
	golden := cloneShards(shards)

	shards[0] = nil
	shards[5] = nil
	shards[7] = nil // parity stays missing

	require.Nil(t, c.ReconstructData(shards))
	require.Equal(t, golden[0], shards[0])
	require.Equal(t, golden[5], shards[5])
	require.Nil(t, shards[7])
}

func TestReconstructAllDataLost(t *testing.T) {
	// losing every data shard must still round-trip off parity alone,
	// and must not consume the parity shards while doing it
	c, err := New(3, 3)
	require.Nil(t, err)
	shards := makeShards(3, 3, 777, rand.New(rand.NewSource(7)))
	require.Nil(t, c.Encode(shards))
	golden := cloneShards(shards)

	shards[0], shards[1], shards[2] = nil, nil, nil
	require.Nil(t, c.Reconstruct(shards))
	require.Equal(t, golden, shards)
}

func TestReconstructTooFewPresent(t *testing.T) {
	c, err := New(4, 2)
	require.Nil(t, err)
	shards := makeShards(4, 2, 64, rand.New(rand.NewSource(8)))
	require.Nil(t, c.Encode(shards))

	shards[0] = nil
	shards[1] = nil
	shards[4] = nil
	require.Equal(t, ErrTooFewShardsPresent, c.Reconstruct(shards))
}

func TestEncodeSep(t *testing.T) {
	c, err := New(5, 2)
	require.Nil(t, err)
	rng := rand.New(rand.NewSource(9))

	shards := makeShards(5, 2, 300, rng)
	require.Nil(t, c.Encode(shards))

	data := shards[:5]
	parity := [][]byte{make([]byte, 300), make([]byte, 300)}
	require.Nil(t, c.EncodeSep(data, parity))
	require.Equal(t, shards[5], parity[0])
	require.Equal(t, shards[6], parity[1])

	require.Equal(t, ErrTooFewDataShards, c.EncodeSep(data[:4], parity))
	require.Equal(t, ErrTooManyDataShards, c.EncodeSep(append(data, data[0]), parity))
	require.Equal(t, ErrTooFewParityShards, c.EncodeSep(data, parity[:1]))
	require.Equal(t, ErrTooManyParityShards, c.EncodeSep(data, append(parity, parity[0])))
	require.Equal(t, ErrShardSize, c.EncodeSep(data, [][]byte{make([]byte, 300), make([]byte, 200)}))
}

func TestLiteralScenario(t *testing.T) {
	// k=4 m=4, 1024-byte shards with four distinct patterns; erase data
	// shard 1 and parity shard 3 (global index 7); both come back exactly
	c, err := New(4, 4)
	require.Nil(t, err)

	shards := make([][]byte, 8)
	for i := 0; i < 4; i++ {
		shards[i] = make([]byte, 1024)
		for j := range shards[i] {
			shards[i][j] = byte(0x11 * (i + 1))
		}
	}
	for i := 4; i < 8; i++ {
		shards[i] = make([]byte, 1024)
	}
	require.Nil(t, c.Encode(shards))
	golden := cloneShards(shards)

	shards[1] = nil
	shards[7] = nil
	require.Nil(t, c.Reconstruct(shards))

	require.Equal(t, golden[1], shards[1])
	for j := range shards[1] {
		require.Equal(t, byte(0x22), shards[1][j])
	}
	require.Equal(t, golden[7], shards[7])
}

func TestRandomPayload(t *testing.T) {
	// random printable payloads across a spread of shard sizes
	c, err := New(6, 3)
	require.Nil(t, err)
	for _, size := range []int{8, 16, 4 << 10, 100 << 10, 1 << 20} {
		t.Run(fmt.Sprintf("size of data %d", size), func(t *testing.T) {
			shards := make([][]byte, 9)
			for i := 0; i < 6; i++ {
				shards[i] = make([]byte, size)
				utils.SetRandStringBytes(shards[i])
			}
			for i := 6; i < 9; i++ {
				shards[i] = make([]byte, size)
			}
			require.Nil(t, c.Encode(shards))
			golden := cloneShards(shards)

			shards[1] = nil
			shards[5] = nil
			shards[7] = nil
			require.Nil(t, c.Reconstruct(shards))
			require.Equal(t, golden, shards)
		})
	}
}

func BenchmarkEncode10x4x4096(b *testing.B) {
	c, err := New(10, 4)
	require.Nil(b, err)
	shards := makeShards(10, 4, 4096, rand.New(rand.NewSource(10)))
	b.SetBytes(10 * 4096)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := c.Encode(shards); err != nil {
			b.Fatal(err)
		}
	}
}
