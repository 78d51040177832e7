package cuckoofilter

import (
	"encoding/binary"
	"fmt"
	"math/rand"
	"time"

	"github.com/fukua95/cuckoofilter/internal/bittable"
	"github.com/fukua95/cuckoofilter/internal/fingerprint"
)

// DefaultBucketSize is the bucket size used when a caller does not specify
// one. 4 slots per bucket is the value the cuckoo filter paper identifies
// as closest to optimal for error rates between 0.00001 and 0.002.
const DefaultBucketSize = 4

// DefaultMaxKicks bounds the relocation loop's worst-case work per insert.
const DefaultMaxKicks = 500

// Filter is a single fixed-capacity cuckoo filter: one bit-packed bucket
// table plus the parameters needed to hash items into it.
//
// A Filter is not safe for concurrent use; wrap it in a SyncFilter if
// multiple goroutines need to call Insert/Contains/Delete concurrently.
type Filter struct {
	table      *bittable.Table
	capacity   uint64
	bucketSize uint64
	fpBits     uint
	maxKicks   int
	errorRate  float64
	size       uint64
	rng        *rand.Rand
}

// Option configures a Filter or ScalableFilter at construction time.
type Option func(*filterConfig)

type filterConfig struct {
	bucketSize uint64
	maxKicks   int
	rng        *rand.Rand
}

// WithBucketSize overrides DefaultBucketSize.
func WithBucketSize(size uint64) Option {
	return func(c *filterConfig) { c.bucketSize = size }
}

// WithMaxKicks overrides DefaultMaxKicks.
func WithMaxKicks(maxKicks int) Option {
	return func(c *filterConfig) { c.maxKicks = maxKicks }
}

// WithRand injects a seedable random source, for reproducible tests. When
// omitted, a source seeded from the current time is used.
func WithRand(rng *rand.Rand) Option {
	return func(c *filterConfig) { c.rng = rng }
}

func newFilterConfig(opts []Option) *filterConfig {
	c := &filterConfig{
		bucketSize: DefaultBucketSize,
		maxKicks:   DefaultMaxKicks,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return c
}

// New builds a Filter sized to hold capacity buckets at targetErrorRate
// false positives, using the given options for bucket size, max kicks and
// random source (or their defaults).
func New(capacity uint64, targetErrorRate float64, opts ...Option) (*Filter, error) {
	if capacity == 0 {
		return nil, fmt.Errorf("%w: capacity must be > 0", ErrInvalidParameters)
	}
	if targetErrorRate <= 0 || targetErrorRate >= 1 {
		return nil, fmt.Errorf("%w: error rate must be in (0,1), got %v", ErrInvalidParameters, targetErrorRate)
	}

	cfg := newFilterConfig(opts)
	if cfg.bucketSize == 0 {
		return nil, fmt.Errorf("%w: bucket size must be > 0", ErrInvalidParameters)
	}
	if cfg.maxKicks < 0 {
		return nil, fmt.Errorf("%w: max kicks must be >= 0", ErrInvalidParameters)
	}

	fpBits := fingerprint.FingerprintBits(targetErrorRate, uint(cfg.bucketSize))

	return &Filter{
		table:      bittable.New(capacity, cfg.bucketSize, fpBits),
		capacity:   capacity,
		bucketSize: cfg.bucketSize,
		fpBits:     fpBits,
		maxKicks:   cfg.maxKicks,
		errorRate:  targetErrorRate,
		rng:        cfg.rng,
	}, nil
}

// Capacity is the number of buckets in the filter.
func (f *Filter) Capacity() uint64 { return f.capacity }

// BucketSize is the number of slots per bucket.
func (f *Filter) BucketSize() uint64 { return f.bucketSize }

// FingerprintBits is the width, in bits, of a stored fingerprint.
func (f *Filter) FingerprintBits() uint { return f.fpBits }

// ErrorRate is the target false-positive rate the filter was constructed
// with.
func (f *Filter) ErrorRate() float64 { return f.errorRate }

// Size is the number of live fingerprints currently stored.
func (f *Filter) Size() uint64 { return f.size }

// LoadFactor is Size() / (Capacity() * BucketSize()).
func (f *Filter) LoadFactor() float64 {
	total := float64(f.capacity * f.bucketSize)
	if total == 0 {
		return 0
	}
	return float64(f.size) / total
}

// candidateIndices computes fp and the two candidate buckets for item.
func (f *Filter) candidateIndices(item []byte) (fp uint64, i1, i2 uint64) {
	d := fingerprint.Hash(item)
	fp = d.Derive(f.fpBits)
	i1 = d.Index(f.capacity)
	i2 = fingerprint.AlternateIndex(i1, fp, f.fpBits, f.capacity)
	return fp, i1, i2
}

// Insert records item in the filter and returns the bucket it was placed
// in. Returns ErrCapacityExhausted if the relocation loop's kick budget is
// exhausted; in that case the filter's bit vector is left bit-for-bit
// identical to its state before the call.
func (f *Filter) Insert(item []byte) (uint64, error) {
	fp, i1, i2 := f.candidateIndices(item)

	if f.table.ProbeInsert(i1, fp) {
		f.size++
		return i1, nil
	}
	if f.table.ProbeInsert(i2, fp) {
		f.size++
		return i2, nil
	}

	origin := i1
	if f.rng.Intn(2) == 1 {
		origin = i2
	}

	fpStack := []uint64{fp}
	idxStack := []uint64{origin}

	idx := origin
	curFP := fp
	for kick := 0; kick < f.maxKicks; kick++ {
		displaced, ok := f.table.RandomSwap(idx, curFP, f.rng)
		if !ok {
			// Every slot in this bucket already holds curFP: the same
			// item has been inserted more than 2*bucketSize times, and
			// no further relocation can make progress. Treat it like a
			// failed kick and unwind below.
			break
		}

		fpStack = append(fpStack, displaced)
		idx = fingerprint.AlternateIndex(idx, displaced, f.fpBits, f.capacity)
		idxStack = append(idxStack, idx)
		curFP = displaced

		if f.table.ProbeInsert(idx, curFP) {
			f.size++
			return origin, nil
		}
	}

	if err := f.rollback(fpStack, idxStack); err != nil {
		return 0, err
	}
	return 0, ErrCapacityExhausted
}

// rollback restores every bucket touched by a failed relocation attempt to
// the fingerprint it held before the attempt began. fpStack[j] is the
// fingerprint swapped into idxStack[j]; the bucket's original occupant
// (what it held before this insert attempt) was evicted into
// fpStack[j+1]. fpStack's last entry is the fingerprint still in transit,
// and is written back into idxStack[len-2]; idxStack's last bucket was
// never written to and is left alone.
func (f *Filter) rollback(fpStack, idxStack []uint64) error {
	for j := len(fpStack) - 1; j >= 1; j-- {
		if !f.table.FindAndReplace(idxStack[j-1], fpStack[j-1], fpStack[j]) {
			return ErrInconsistency
		}
	}
	return nil
}

// Contains reports whether item may be present. May return true for items
// never inserted, bounded by the filter's target error rate; never returns
// false for an item that is currently present.
func (f *Filter) Contains(item []byte) bool {
	fp, i1, i2 := f.candidateIndices(item)
	return f.table.Contains(i1, fp) || f.table.Contains(i2, fp)
}

// Count returns the number of live occurrences of item's fingerprint
// across its two candidate buckets (duplicates inserted under the same
// item each occupy their own slot).
func (f *Filter) Count(item []byte) uint64 {
	fp, i1, i2 := f.candidateIndices(item)
	n := f.table.Count(i1, fp)
	if i2 != i1 {
		n += f.table.Count(i2, fp)
	}
	return uint64(n)
}

// Delete removes one occurrence of item, if present, and reports whether
// it found one to remove. May remove a different, colliding item's
// fingerprint instead, with probability bounded by the error rate.
func (f *Filter) Delete(item []byte) bool {
	fp, i1, i2 := f.candidateIndices(item)
	if f.table.Delete(i1, fp) {
		f.size--
		return true
	}
	if f.table.Delete(i2, fp) {
		f.size--
		return true
	}
	return false
}

// String implements fmt.Stringer for diagnostics.
func (f *Filter) String() string {
	return fmt.Sprintf("<Filter: size=%d, capacity=%d, bucketSize=%d, fingerprintBits=%d>",
		f.size, f.capacity, f.bucketSize, f.fpBits)
}

// MarshalBinary renders the filter's full in-memory state (parameter
// tuple plus the raw bit vector) as a byte slice any generic byte-wise
// store can round-trip.
func (f *Filter) MarshalBinary() ([]byte, error) {
	tableBytes, err := f.table.MarshalBinary()
	if err != nil {
		return nil, err
	}

	header := make([]byte, 8*6)
	binary.BigEndian.PutUint64(header[0:], f.capacity)
	binary.BigEndian.PutUint64(header[8:], f.bucketSize)
	binary.BigEndian.PutUint64(header[16:], uint64(f.fpBits))
	binary.BigEndian.PutUint64(header[24:], uint64(f.maxKicks))
	binary.BigEndian.PutUint64(header[32:], f.size)
	binary.BigEndian.PutUint64(header[40:], errorRateBits(f.errorRate))

	return append(header, tableBytes...), nil
}

// UnmarshalBinary restores a filter previously serialized with
// MarshalBinary. The random source is not serialized: a filter that
// already has one keeps it, otherwise a time-seeded source is installed.
func (f *Filter) UnmarshalBinary(data []byte) error {
	const headerLen = 8 * 6
	if len(data) < headerLen {
		return fmt.Errorf("cuckoofilter: truncated filter header (%d bytes)", len(data))
	}

	f.capacity = binary.BigEndian.Uint64(data[0:])
	f.bucketSize = binary.BigEndian.Uint64(data[8:])
	f.fpBits = uint(binary.BigEndian.Uint64(data[16:]))
	f.maxKicks = int(binary.BigEndian.Uint64(data[24:]))
	f.size = binary.BigEndian.Uint64(data[32:])
	f.errorRate = errorRateFromBits(binary.BigEndian.Uint64(data[40:]))

	table := bittable.New(f.capacity, f.bucketSize, f.fpBits)
	if err := table.UnmarshalBinary(data[headerLen:]); err != nil {
		return err
	}
	f.table = table

	if f.rng == nil {
		f.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return nil
}
