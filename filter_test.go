package cuckoofilter

import (
	"math/rand"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFilter(t *testing.T, capacity uint64, opts ...Option) *Filter {
	t.Helper()
	opts = append([]Option{WithRand(rand.New(rand.NewSource(1)))}, opts...)
	f, err := New(capacity, 1e-6, opts...)
	require.NoError(t, err)
	return f
}

func TestBasicOps(t *testing.T) {
	f := newTestFilter(t, 50, WithBucketSize(2), WithMaxKicks(20))

	k1 := []byte("key111")
	k2 := []byte("key222")
	k3 := []byte("key333")

	_, err := f.Insert(k1)
	require.NoError(t, err)
	_, err = f.Insert(k2)
	require.NoError(t, err)

	assert.True(t, f.Contains(k1))
	assert.True(t, f.Contains(k2))
	assert.False(t, f.Contains(k3))
	assert.Equal(t, uint64(2), f.Size())

	_, err = f.Insert(k3)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), f.Size())

	assert.True(t, f.Delete(k1))
	assert.Equal(t, uint64(2), f.Size())
	assert.False(t, f.Contains(k1))
	assert.False(t, f.Delete(k1))
}

func TestCount(t *testing.T) {
	f := newTestFilter(t, 10, WithBucketSize(2), WithMaxKicks(20))
	k1 := []byte("key11111")

	assert.Equal(t, uint64(0), f.Count(k1))

	_, err := f.Insert(k1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), f.Count(k1))

	_, err = f.Insert(k1)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), f.Count(k1))
}

func TestDuplicatesAndDeletes(t *testing.T) {
	f := newTestFilter(t, 128)

	ip1 := []byte("192.168.1.190")
	ip1Num := []byte("3232235967")
	ip2 := []byte("192.168.1.192")
	ip2Num := []byte("3232235969")

	for _, item := range [][]byte{ip1, ip1Num, ip2, ip2Num} {
		_, err := f.Insert(item)
		require.NoError(t, err)
	}
	for _, item := range [][]byte{ip1, ip1Num, ip2, ip2Num} {
		assert.True(t, f.Contains(item))
	}
	assert.InDelta(t, float64(4)/float64(128*4), f.LoadFactor(), 1e-9)

	// Delete ip2, others remain.
	assert.True(t, f.Delete(ip2))
	assert.False(t, f.Contains(ip2))
	assert.True(t, f.Contains(ip1))
	assert.True(t, f.Contains(ip1Num))
	assert.True(t, f.Contains(ip2Num))
	assert.Equal(t, uint64(3), f.Size())

	// Duplicate insert/delete of ip2Num.
	_, err := f.Insert(ip2Num)
	require.NoError(t, err)
	assert.True(t, f.Contains(ip2Num))

	assert.True(t, f.Delete(ip2Num))
	assert.True(t, f.Contains(ip2Num))

	assert.True(t, f.Delete(ip2Num))
	assert.False(t, f.Contains(ip2Num))
	assert.Equal(t, uint64(2), f.Size())
}

// A single-slot filter with zero kick budget must roll back to its exact
// pre-insert state on capacity exhaustion.
func TestCapacityExhaustedRollsBackPurely(t *testing.T) {
	f := newTestFilter(t, 1, WithBucketSize(1), WithMaxKicks(0))

	first := []byte("a")
	_, err := f.Insert(first)
	require.NoError(t, err)

	before, err := f.table.MarshalBinary()
	require.NoError(t, err)

	// With a single bucket and zero kick budget, the relocation loop
	// never runs at all, so any second item that doesn't land in the
	// (already full) only slot exhausts capacity immediately.
	_, err = f.Insert([]byte("b"))
	require.ErrorIs(t, err, ErrCapacityExhausted)

	after, err := f.table.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, before, after, "bit vector must be unchanged after a rolled-back insert")
	assert.True(t, f.Contains(first))
}

func TestRelocationsPreserveEarlierInserts(t *testing.T) {
	const total = 2000
	f := newTestFilter(t, uint64(total/2), WithBucketSize(4), WithMaxKicks(500))

	for i := 0; i < total; i++ {
		k := []byte(strconv.Itoa(i))
		_, err := f.Insert(k)
		require.NoError(t, err)
		for j := 0; j <= i; j++ {
			assert.True(t, f.Contains([]byte(strconv.Itoa(j))))
		}
	}
}

func TestDeleteDrainsFilter(t *testing.T) {
	const total = 2000
	f := newTestFilter(t, 2048, WithBucketSize(2), WithMaxKicks(500))

	for i := 0; i < total; i++ {
		_, err := f.Insert([]byte(strconv.Itoa(i)))
		require.NoError(t, err)
	}
	assert.Equal(t, uint64(total), f.Size())

	for i := 0; i < total; i++ {
		assert.True(t, f.Delete([]byte(strconv.Itoa(i))))
	}
	assert.Equal(t, uint64(0), f.Size())
}

func TestFingerprintDeterminismAcrossHistory(t *testing.T) {
	f := newTestFilter(t, 64)
	item := []byte("stable-item")

	fp1, i1a, i1b := f.candidateIndices(item)
	_, err := f.Insert(item)
	require.NoError(t, err)
	fp2, i2a, i2b := f.candidateIndices(item)

	assert.Equal(t, fp1, fp2)
	assert.Equal(t, i1a, i2a)
	assert.Equal(t, i1b, i2b)
}

func TestMarshalRoundTrip(t *testing.T) {
	f := newTestFilter(t, 256, WithBucketSize(4))
	items := make([][]byte, 0, 500)
	for i := 0; i < 500; i++ {
		item := []byte("item-" + strconv.Itoa(i))
		if _, err := f.Insert(item); err == nil {
			items = append(items, item)
		}
	}
	// Drop every third item to exercise deletes before round-tripping.
	for i := 0; i < len(items); i += 3 {
		f.Delete(items[i])
	}

	data, err := f.MarshalBinary()
	require.NoError(t, err)

	restored := &Filter{}
	require.NoError(t, restored.UnmarshalBinary(data))

	assert.Equal(t, f.Size(), restored.Size())
	assert.Equal(t, f.Capacity(), restored.Capacity())
	for i, item := range items {
		want := f.Contains(item)
		got := restored.Contains(item)
		assert.Equal(t, want, got, "item %d mismatched after round-trip", i)
	}
}

func TestLoadFactor(t *testing.T) {
	f := newTestFilter(t, 10, WithBucketSize(4))
	assert.Equal(t, float64(0), f.LoadFactor())

	_, err := f.Insert([]byte("x"))
	require.NoError(t, err)
	assert.Greater(t, f.LoadFactor(), float64(0))
	assert.LessOrEqual(t, f.LoadFactor(), float64(1))
}

func TestNewRejectsInvalidParameters(t *testing.T) {
	_, err := New(0, 0.01)
	assert.ErrorIs(t, err, ErrInvalidParameters)

	_, err = New(10, 0)
	assert.ErrorIs(t, err, ErrInvalidParameters)

	_, err = New(10, 1.5)
	assert.ErrorIs(t, err, ErrInvalidParameters)

	_, err = New(10, 0.01, WithBucketSize(0))
	assert.ErrorIs(t, err, ErrInvalidParameters)

	_, err = New(10, 0.01, WithMaxKicks(-1))
	assert.ErrorIs(t, err, ErrInvalidParameters)
}

func TestStringer(t *testing.T) {
	f := newTestFilter(t, 10)
	assert.Contains(t, f.String(), "Filter")
	assert.Contains(t, f.String(), "capacity=10")
}
