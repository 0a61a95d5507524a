//go:build purego
// +build purego

package gf256

const backendName = "purego"

// Reference kernels, one byte at a time.

func mulTableInto(t, in, out []byte) {
	low := t[:16]
	high := t[16:32]
	for i, v := range in {
		out[i] = low[v&0xf] ^ high[v>>4]
	}
}

func mulTableXor(t, in, out []byte) {
	low := t[:16]
	high := t[16:32]
	for i, v := range in {
		out[i] ^= low[v&0xf] ^ high[v>>4]
	}
}
