// Package gf256 is the field arithmetic engine behind the erasure codecs:
// GF(2^8) scalar primitives plus an Engine that expands a coefficient
// matrix into per-coefficient multiplication tables and applies linear
// combinations of shard buffers.
package gf256

import (
	"sync"

	"github.com/pkg/errors"
)

// Primitive polynomial x^8 + x^4 + x^3 + x^2 + 1, the one the
// reed-solomon ecosystem codecs share.
const polynomial = 0x11d

var (
	expTbl     [512]byte
	logTbl     [256]byte
	inverseTbl [256]byte

	initOnce sync.Once
	initErr  error
)

// Init builds the field tables. It runs at most once per process no matter
// how many codecs are constructed concurrently; later callers observe the
// first outcome. A failure is permanent for the whole codec family.
func Init() error {
	initOnce.Do(func() {
		x := 1
		for i := 0; i < 255; i++ {
			expTbl[i] = byte(x)
			logTbl[byte(x)] = byte(i)
			x <<= 1
			if x&0x100 != 0 {
				x ^= polynomial
			}
		}
		for i := 255; i < 512; i++ {
			expTbl[i] = expTbl[i-255]
		}
		for i := 1; i < 256; i++ {
			inverseTbl[i] = expTbl[255-int(logTbl[i])]
		}
		initErr = selfCheck()
	})
	return initErr
}

// selfCheck validates the field axioms the codecs rely on. It cannot fail
// with a correct polynomial; it exists to turn table corruption into a
// fatal construction error instead of silent data corruption.
//
// It runs inside the initOnce body, so it must not call Mul or Inv: their
// guard would re-enter the Once and deadlock. The tables are read directly.
func selfCheck() error {
	mul := func(a, b byte) byte {
		if a == 0 || b == 0 {
			return 0
		}
		return expTbl[int(logTbl[a])+int(logTbl[b])]
	}
	for _, a := range []byte{1, 2, 3, 0x53, 0x8e, 0xff} {
		if mul(a, inverseTbl[a]) != 1 {
			return errors.Errorf("gf256: inverse table broken at %d", a)
		}
		if mul(a, 1) != a {
			return errors.Errorf("gf256: identity broken at %d", a)
		}
	}
	// 0x53 * 0x8c = 1 under polynomial 0x11d
	if mul(0x53, 0x8c) != 0x01 {
		return errors.New("gf256: multiplication table broken")
	}
	return nil
}

func mustInit() {
	if err := Init(); err != nil {
		panic(err)
	}
}

// Mul returns the field product of a and b.
func Mul(a, b byte) byte {
	if a == 0 || b == 0 {
		return 0
	}
	mustInit()
	return expTbl[int(logTbl[a])+int(logTbl[b])]
}

// Inv returns the multiplicative inverse of a; Inv(0) is 0.
func Inv(a byte) byte {
	mustInit()
	return inverseTbl[a]
}
