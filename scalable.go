package cuckoofilter

import (
	"encoding/binary"
	"fmt"
	"math/rand"
)

// ScaleFactor is the capacity growth ratio applied each time
// ScalableFilter allocates a new underlying Filter.
const ScaleFactor = 2

// LoadThreshold is the per-filter load factor above which ScalableFilter
// stops routing new inserts to that filter, preferring to try an older
// (or, failing that, a freshly allocated) one instead. This avoids paying
// for the expensive near-saturation relocation path.
const LoadThreshold = 0.90

// ScalableFilter is an ordered sequence of fixed-capacity Filters with
// geometric capacity growth. Membership is the union across all filters;
// insertion is routed to the newest filter that isn't near saturation,
// growing the sequence when none accepts.
//
// Like Filter, a ScalableFilter is not safe for concurrent use on its own;
// see SyncScalableFilter.
type ScalableFilter struct {
	filters         []*Filter
	initialCapacity uint64
	errorRate       float64
	bucketSize      uint64
	maxKicks        int
	rng             *rand.Rand
}

// NewScalable builds a ScalableFilter whose first underlying Filter has
// the given initial capacity and target error rate.
func NewScalable(initialCapacity uint64, targetErrorRate float64, opts ...Option) (*ScalableFilter, error) {
	cfg := newFilterConfig(opts)

	first, err := New(initialCapacity, targetErrorRate,
		WithBucketSize(cfg.bucketSize), WithMaxKicks(cfg.maxKicks), WithRand(cfg.rng))
	if err != nil {
		return nil, err
	}

	return &ScalableFilter{
		filters:         []*Filter{first},
		initialCapacity: initialCapacity,
		errorRate:       targetErrorRate,
		bucketSize:      first.bucketSize,
		maxKicks:        first.maxKicks,
		rng:             cfg.rng,
	}, nil
}

// FilterCount is the number of underlying fixed-capacity filters
// currently allocated. Nondecreasing over the life of a ScalableFilter.
func (sf *ScalableFilter) FilterCount() int { return len(sf.filters) }

// Size is the sum of live fingerprints across every underlying filter.
func (sf *ScalableFilter) Size() uint64 {
	var total uint64
	for _, f := range sf.filters {
		total += f.size
	}
	return total
}

// Capacity is the sum of bucket capacity across every underlying filter.
func (sf *ScalableFilter) Capacity() uint64 {
	var total uint64
	for _, f := range sf.filters {
		total += f.capacity
	}
	return total
}

// LoadFactor is Size() / (Capacity() * bucketSize).
func (sf *ScalableFilter) LoadFactor() float64 {
	total := float64(sf.Capacity() * sf.bucketSize)
	if total == 0 {
		return 0
	}
	return float64(sf.Size()) / total
}

// Insert routes item to the newest underlying filter that isn't over
// LoadThreshold and accepts it; failing that, it allocates a new filter
// at ScaleFactor times the newest filter's capacity and inserts there.
// Insertion into a freshly allocated, empty filter is expected to always
// succeed; if it doesn't, that is a fatal, unrecoverable condition.
func (sf *ScalableFilter) Insert(item []byte) error {
	for i := len(sf.filters) - 1; i >= 0; i-- {
		f := sf.filters[i]
		if f.LoadFactor() > LoadThreshold {
			continue
		}
		if _, err := f.Insert(item); err == nil {
			return nil
		} else if err != ErrCapacityExhausted {
			return err
		}
	}

	newest := sf.filters[len(sf.filters)-1]
	grown, err := New(newest.capacity*ScaleFactor, sf.errorRate,
		WithBucketSize(sf.bucketSize), WithMaxKicks(sf.maxKicks), WithRand(sf.rng))
	if err != nil {
		return err
	}
	sf.filters = append(sf.filters, grown)

	if _, err := grown.Insert(item); err != nil {
		panic(fmt.Sprintf("cuckoofilter: insert into freshly allocated filter failed: %v", err))
	}
	return nil
}

// Contains reports whether item may be present in any underlying filter,
// checked newest-first since inserts are biased toward the newest filter.
func (sf *ScalableFilter) Contains(item []byte) bool {
	for i := len(sf.filters) - 1; i >= 0; i-- {
		if sf.filters[i].Contains(item) {
			return true
		}
	}
	return false
}

// Count sums live occurrences of item's fingerprint across every
// underlying filter.
func (sf *ScalableFilter) Count(item []byte) uint64 {
	var total uint64
	for _, f := range sf.filters {
		total += f.Count(item)
	}
	return total
}

// Delete removes one occurrence of item from the first underlying filter
// (newest-first) that has one, and reports whether it found one.
func (sf *ScalableFilter) Delete(item []byte) bool {
	for i := len(sf.filters) - 1; i >= 0; i-- {
		if sf.filters[i].Delete(item) {
			return true
		}
	}
	return false
}

// String implements fmt.Stringer for diagnostics.
func (sf *ScalableFilter) String() string {
	return fmt.Sprintf("<ScalableFilter: size=%d, capacity=%d, filters=%d>",
		sf.Size(), sf.Capacity(), len(sf.filters))
}

// MarshalBinary renders the scalable filter's parameters and the ordered
// sequence of its underlying filters' own serialized state.
func (sf *ScalableFilter) MarshalBinary() ([]byte, error) {
	header := make([]byte, 8*4)
	binary.BigEndian.PutUint64(header[0:], sf.initialCapacity)
	binary.BigEndian.PutUint64(header[8:], errorRateBits(sf.errorRate))
	binary.BigEndian.PutUint64(header[16:], sf.bucketSize)
	binary.BigEndian.PutUint64(header[24:], uint64(len(sf.filters)))

	out := header
	for _, f := range sf.filters {
		fb, err := f.MarshalBinary()
		if err != nil {
			return nil, err
		}
		lenPrefix := make([]byte, 8)
		binary.BigEndian.PutUint64(lenPrefix, uint64(len(fb)))
		out = append(out, lenPrefix...)
		out = append(out, fb...)
	}
	return out, nil
}

// UnmarshalBinary restores a ScalableFilter previously serialized with
// MarshalBinary.
func (sf *ScalableFilter) UnmarshalBinary(data []byte) error {
	const headerLen = 8 * 4
	if len(data) < headerLen {
		return fmt.Errorf("cuckoofilter: truncated scalable filter header (%d bytes)", len(data))
	}

	sf.initialCapacity = binary.BigEndian.Uint64(data[0:])
	sf.errorRate = errorRateFromBits(binary.BigEndian.Uint64(data[8:]))
	sf.bucketSize = binary.BigEndian.Uint64(data[16:])
	n := binary.BigEndian.Uint64(data[24:])

	rest := data[headerLen:]
	filters := make([]*Filter, 0, n)
	for i := uint64(0); i < n; i++ {
		if len(rest) < 8 {
			return fmt.Errorf("cuckoofilter: truncated filter length prefix")
		}
		flen := binary.BigEndian.Uint64(rest[:8])
		rest = rest[8:]
		if uint64(len(rest)) < flen {
			return fmt.Errorf("cuckoofilter: truncated filter payload")
		}

		f := &Filter{}
		if err := f.UnmarshalBinary(rest[:flen]); err != nil {
			return err
		}
		if sf.rng != nil {
			f.rng = sf.rng
		}
		filters = append(filters, f)
		rest = rest[flen:]
		if i == n-1 {
			sf.maxKicks = f.maxKicks
		}
	}
	sf.filters = filters
	return nil
}
