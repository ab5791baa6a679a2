package morton

import (
	"math/bits"
	"strings"
)

// RootMask selects the most significant bit of a quantized coordinate.
const RootMask uint32 = 1 << 31

func spread(v uint32) uint64 {
	x := uint64(v)
	x = (x | x<<16) & 0x0000FFFF0000FFFF
	x = (x | x<<8) & 0x00FF00FF00FF00FF
	x = (x | x<<4) & 0x0F0F0F0F0F0F0F0F
	x = (x | x<<2) & 0x3333333333333333
	x = (x | x<<1) & 0x5555555555555555
	return x
}

func compact(x uint64) uint32 {
	x &= 0x5555555555555555
	x = (x | x>>1) & 0x3333333333333333
	x = (x | x>>2) & 0x0F0F0F0F0F0F0F0F
	x = (x | x>>4) & 0x00FF00FF00FF00FF
	x = (x | x>>8) & 0x0000FFFF0000FFFF
	x = (x | x>>16) & 0x00000000FFFFFFFF
	return uint32(x)
}

// Interleave builds a key with y bits on the odd positions.
func Interleave(qx, qy uint32) uint64 {
	return spread(qy)<<1 | spread(qx)
}

func Deinterleave(key uint64) (qx, qy uint32) {
	return compact(key), compact(key >> 1)
}

// Quadrant returns 0-3 for the cell holding (qx, qy) at the bit in mask.
func Quadrant(qx, qy uint32, mask uint32) int {
	q := 0
	if qx&mask != 0 {
		q += 1
	}
	if qy&mask != 0 {
		q += 2
	}
	return q
}

// QuadrantOfKey is Quadrant read straight off a Morton key.
func QuadrantOfKey(key uint64, mask uint32) int {
	shift := 2 * bits.TrailingZeros32(mask)
	return int(key>>shift) & 3
}

// Classifier answers "is this key in a quadrant below n" at one bit level.
// Over a key range sorted ascending and sharing all higher bits, Below is
// true on a prefix, which makes it a valid sort.Search predicate.
type Classifier struct {
	Mask uint32
}

func (c Classifier) Below(key uint64, n int) bool {
	return QuadrantOfKey(key, c.Mask) < n
}

// FormatKey renders a key as 64 bits, y then x at each level.
func FormatKey(key uint64) string {
	var b strings.Builder
	b.Grow(64)
	for i := 63; i >= 0; i-- {
		if key>>i&1 == 1 {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}
