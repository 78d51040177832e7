// Package fingerprint implements the item hashing scheme shared by every
// cuckoo filter in this module: a single 128-bit MurmurHash3 x64 digest
// feeds both the primary bucket index and the stored fingerprint, and the
// fingerprint's own bytes re-hash to the same width to produce the
// alternate-bucket displacement (partial-key cuckoo hashing).
package fingerprint

import (
	"math"
	"math/big"

	"github.com/twmb/murmur3"
)

// MaxBits is the largest fingerprint width this package supports. Bucket
// sizes and target error rates used by real cuckoo filters land well under
// this, and capping it lets Derive keep its fingerprint packed in a uint64.
const MaxBits = 64

// Digest is the 128-bit MurmurHash3 x64 hash of an item, split into its
// high and low 64-bit halves (big-endian: high, then low).
type Digest struct {
	Hi, Lo uint64
}

// Hash computes the 128-bit digest of data.
func Hash(data []byte) Digest {
	hi, lo := murmur3.Sum128(data)
	return Digest{Hi: hi, Lo: lo}
}

// Index reduces a 128-bit digest modulo capacity, using the full 128 bits
// (not a truncated 64-bit slice) so the result is unbiased for capacities
// that aren't powers of two.
func (d Digest) Index(capacity uint64) uint64 {
	if capacity == 0 {
		return 0
	}
	x := new(big.Int).SetUint64(d.Hi)
	x.Lsh(x, 64)
	x.Or(x, new(big.Int).SetUint64(d.Lo))
	x.Mod(x, new(big.Int).SetUint64(capacity))
	return x.Uint64()
}

// Derive takes the top bits bits of the digest, most-significant-first, as
// a fingerprint. The all-zero fingerprint is reserved for "empty slot", so
// a digest that happens to hash to zero in its top bits is remapped to 1.
func (d Digest) Derive(bits uint) uint64 {
	if bits == 0 || bits > MaxBits {
		bits = MaxBits
	}
	fp := d.Hi >> (64 - bits)
	if fp == 0 {
		fp = 1
	}
	return fp
}

// PrimaryIndex is the first candidate bucket for item, in [0, capacity).
func PrimaryIndex(item []byte, capacity uint64) uint64 {
	return Hash(item).Index(capacity)
}

// Derive computes the bits-wide fingerprint of item.
func Derive(item []byte, bits uint) uint64 {
	return Hash(item).Derive(bits)
}

// packBytes renders a fingerprint as the fixed-width big-endian bytes that
// get re-hashed to compute displacement.
func packBytes(fp uint64, bits uint) []byte {
	n := (bits + 7) / 8
	buf := make([]byte, n)
	for i := int(n) - 1; i >= 0; i-- {
		buf[i] = byte(fp)
		fp >>= 8
	}
	return buf
}

// Displacement is the bucket offset a fingerprint alone determines,
// independent of the item that produced it. It is what makes partial-key
// cuckoo hashing possible: deletion and relocation only ever need the
// fingerprint, never the original item.
func Displacement(fp uint64, bits uint, capacity uint64) uint64 {
	return PrimaryIndex(packBytes(fp, bits), capacity)
}

// AlternateIndex returns the other candidate bucket for a fingerprint
// currently sitting at bucket i. The mapping is its own inverse only when
// capacity is a power of two; for other capacities the modulus can send a
// hop back to a bucket other than i.
func AlternateIndex(i uint64, fp uint64, bits uint, capacity uint64) uint64 {
	if capacity == 0 {
		return 0
	}
	return (i ^ Displacement(fp, bits, capacity)) % capacity
}

// FingerprintBits returns the fingerprint width needed to hit targetErrorRate
// at the given bucket size, per the cuckoo filter paper:
// f = ceil(log2(1/errorRate) + log2(2*bucketSize)).
func FingerprintBits(targetErrorRate float64, bucketSize uint) uint {
	if targetErrorRate <= 0 || targetErrorRate >= 1 {
		targetErrorRate = 0.001
	}
	bits := math.Log2(1/targetErrorRate) + math.Log2(float64(2*bucketSize))
	f := uint(math.Ceil(bits))
	if f == 0 {
		f = 1
	}
	if f > MaxBits {
		f = MaxBits
	}
	return f
}
