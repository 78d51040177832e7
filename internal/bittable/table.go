// Package bittable is the dense store backing a cuckoo filter: a single
// contiguous bit vector addressed by (bucket index, slot index) instead of
// a slice of per-bucket heap objects. It owns no hashing or relocation
// logic; it only exposes the slot-level primitives the filter drives.
package bittable

import (
	"bytes"
	"math/rand"

	"github.com/bits-and-blooms/bitset"
)

// Table is a capacity x bucketSize x fpBits bit vector, initialized to all
// zeros. Slot (i, j) occupies bits [(i*bucketSize+j)*fpBits,
// (i*bucketSize+j+1)*fpBits).
type Table struct {
	bits       *bitset.BitSet
	capacity   uint64
	bucketSize uint64
	fpBits     uint
}

// New allocates a zeroed table for the given bucket count, bucket size and
// fingerprint width.
func New(capacity, bucketSize uint64, fpBits uint) *Table {
	total := capacity * bucketSize * uint64(fpBits)
	return &Table{
		bits:       bitset.New(uint(total)),
		capacity:   capacity,
		bucketSize: bucketSize,
		fpBits:     fpBits,
	}
}

// Capacity is the number of buckets.
func (t *Table) Capacity() uint64 { return t.capacity }

// BucketSize is the number of slots per bucket.
func (t *Table) BucketSize() uint64 { return t.bucketSize }

// FingerprintBits is the width of a stored fingerprint, in bits.
func (t *Table) FingerprintBits() uint { return t.fpBits }

func (t *Table) slotOffset(bucket, slot uint64) uint {
	return uint((bucket*t.bucketSize + slot) * uint64(t.fpBits))
}

func (t *Table) slotValue(bucket, slot uint64) uint64 {
	start := t.slotOffset(bucket, slot)
	var v uint64
	for i := uint(0); i < t.fpBits; i++ {
		v <<= 1
		if t.bits.Test(start + i) {
			v |= 1
		}
	}
	return v
}

func (t *Table) setSlot(bucket, slot uint64, fp uint64) {
	start := t.slotOffset(bucket, slot)
	for i := uint(0); i < t.fpBits; i++ {
		shift := t.fpBits - 1 - i
		if (fp>>shift)&1 == 1 {
			t.bits.Set(start + i)
		} else {
			t.bits.Clear(start + i)
		}
	}
}

// ProbeInsert scans bucket's slots in order and places fp in the first
// empty (all-zero) slot it finds. Reports whether an empty slot existed.
func (t *Table) ProbeInsert(bucket uint64, fp uint64) bool {
	for j := uint64(0); j < t.bucketSize; j++ {
		if t.slotValue(bucket, j) == 0 {
			t.setSlot(bucket, j, fp)
			return true
		}
	}
	return false
}

// Contains reports whether bucket holds a slot exactly equal to fp.
func (t *Table) Contains(bucket uint64, fp uint64) bool {
	for j := uint64(0); j < t.bucketSize; j++ {
		if t.slotValue(bucket, j) == fp {
			return true
		}
	}
	return false
}

// Count returns the number of slots in bucket equal to fp.
func (t *Table) Count(bucket uint64, fp uint64) int {
	n := 0
	for j := uint64(0); j < t.bucketSize; j++ {
		if t.slotValue(bucket, j) == fp {
			n++
		}
	}
	return n
}

// Delete zeroes the first slot in bucket matching fp. Reports whether a
// match was found.
func (t *Table) Delete(bucket uint64, fp uint64) bool {
	for j := uint64(0); j < t.bucketSize; j++ {
		if t.slotValue(bucket, j) == fp {
			t.setSlot(bucket, j, 0)
			return true
		}
	}
	return false
}

// FindAndReplace overwrites the first slot in bucket equal to old with
// newFP. Reports whether a match was found.
func (t *Table) FindAndReplace(bucket uint64, old, newFP uint64) bool {
	for j := uint64(0); j < t.bucketSize; j++ {
		if t.slotValue(bucket, j) == old {
			t.setSlot(bucket, j, newFP)
			return true
		}
	}
	return false
}

// RandomSwap picks, uniformly among the slots of bucket whose current
// value differs from fp, a slot to evict; it stores fp there and returns
// the value that occupied it. The second return is false, with no slot
// touched, when every slot already equals fp (the same item inserted more
// than 2*bucketSize times). The caller must treat that as a failed kick,
// not retry it.
func (t *Table) RandomSwap(bucket uint64, fp uint64, rng *rand.Rand) (uint64, bool) {
	var candidates []uint64
	for j := uint64(0); j < t.bucketSize; j++ {
		if t.slotValue(bucket, j) != fp {
			candidates = append(candidates, j)
		}
	}
	if len(candidates) == 0 {
		return 0, false
	}
	j := candidates[rng.Intn(len(candidates))]
	displaced := t.slotValue(bucket, j)
	t.setSlot(bucket, j, fp)
	return displaced, true
}

// Equal reports whether two tables hold bit-for-bit identical state,
// independent of parameter bookkeeping differences.
func (t *Table) Equal(other *Table) bool {
	a, err1 := t.bits.MarshalBinary()
	b, err2 := other.bits.MarshalBinary()
	if err1 != nil || err2 != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// MarshalBinary renders the raw bit vector, letting a caller round-trip
// the table's exact occupied/empty state.
func (t *Table) MarshalBinary() ([]byte, error) {
	return t.bits.MarshalBinary()
}

// UnmarshalBinary restores the bit vector from a byte slice previously
// produced by MarshalBinary. The caller is responsible for restoring
// capacity, bucketSize and fpBits to match.
func (t *Table) UnmarshalBinary(data []byte) error {
	bs := &bitset.BitSet{}
	if err := bs.UnmarshalBinary(data); err != nil {
		return err
	}
	t.bits = bs
	return nil
}
