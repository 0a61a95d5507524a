//go:build !purego
// +build !purego

package gf256

const backendName = "wide"

// The wide backend walks eight bytes per iteration. The nibble lookups
// stay scalar, the unroll keeps the table slices register-resident and
// lets the compiler drop the per-access bounds checks.

func mulTableInto(t, in, out []byte) {
	low := t[:16]
	high := t[16:32]
	n := len(in) &^ 7
	for i := 0; i < n; i += 8 {
		out[i] = low[in[i]&0xf] ^ high[in[i]>>4]
		out[i+1] = low[in[i+1]&0xf] ^ high[in[i+1]>>4]
		out[i+2] = low[in[i+2]&0xf] ^ high[in[i+2]>>4]
		out[i+3] = low[in[i+3]&0xf] ^ high[in[i+3]>>4]
		out[i+4] = low[in[i+4]&0xf] ^ high[in[i+4]>>4]
		out[i+5] = low[in[i+5]&0xf] ^ high[in[i+5]>>4]
		out[i+6] = low[in[i+6]&0xf] ^ high[in[i+6]>>4]
		out[i+7] = low[in[i+7]&0xf] ^ high[in[i+7]>>4]
	}
	for i := n; i < len(in); i++ {
		out[i] = low[in[i]&0xf] ^ high[in[i]>>4]
	}
}

func mulTableXor(t, in, out []byte) {
	low := t[:16]
	high := t[16:32]
	n := len(in) &^ 7
	for i := 0; i < n; i += 8 {
		out[i] ^= low[in[i]&0xf] ^ high[in[i]>>4]
		out[i+1] ^= low[in[i+1]&0xf] ^ high[in[i+1]>>4]
		out[i+2] ^= low[in[i+2]&0xf] ^ high[in[i+2]>>4]
		out[i+3] ^= low[in[i+3]&0xf] ^ high[in[i+3]>>4]
		out[i+4] ^= low[in[i+4]&0xf] ^ high[in[i+4]>>4]
		out[i+5] ^= low[in[i+5]&0xf] ^ high[in[i+5]>>4]
		out[i+6] ^= low[in[i+6]&0xf] ^ high[in[i+6]>>4]
		out[i+7] ^= low[in[i+7]&0xf] ^ high[in[i+7]>>4]
	}
	for i := n; i < len(in); i++ {
		out[i] ^= low[in[i]&0xf] ^ high[in[i]>>4]
	}
}
