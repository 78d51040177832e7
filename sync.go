package cuckoofilter

import "sync"

// SyncFilter wraps a Filter with a mutex, so it may be shared across
// goroutines. The cuckoo filter core itself has no internal
// synchronization by design (see Filter); this wrapper is the opt-in seam
// for callers who need concurrent access: writes take an exclusive lock and
// reads share a read lock, without changing any of the core's semantics.
type SyncFilter struct {
	mu sync.RWMutex
	f  *Filter
}

// NewSync builds a SyncFilter around a freshly constructed Filter.
func NewSync(capacity uint64, targetErrorRate float64, opts ...Option) (*SyncFilter, error) {
	f, err := New(capacity, targetErrorRate, opts...)
	if err != nil {
		return nil, err
	}
	return &SyncFilter{f: f}, nil
}

// Insert locks for writing and delegates to the underlying Filter.
func (s *SyncFilter) Insert(item []byte) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Insert(item)
}

// Contains locks for reading and delegates to the underlying Filter.
func (s *SyncFilter) Contains(item []byte) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.f.Contains(item)
}

// Delete locks for writing and delegates to the underlying Filter.
func (s *SyncFilter) Delete(item []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Delete(item)
}

// Count locks for reading and delegates to the underlying Filter.
func (s *SyncFilter) Count(item []byte) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.f.Count(item)
}

// LoadFactor locks for reading and delegates to the underlying Filter.
func (s *SyncFilter) LoadFactor() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.f.LoadFactor()
}

// Size locks for reading and delegates to the underlying Filter.
func (s *SyncFilter) Size() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.f.Size()
}

// SyncScalableFilter is the SyncFilter equivalent for ScalableFilter.
type SyncScalableFilter struct {
	mu sync.RWMutex
	sf *ScalableFilter
}

// NewSyncScalable builds a SyncScalableFilter around a freshly
// constructed ScalableFilter.
func NewSyncScalable(initialCapacity uint64, targetErrorRate float64, opts ...Option) (*SyncScalableFilter, error) {
	sf, err := NewScalable(initialCapacity, targetErrorRate, opts...)
	if err != nil {
		return nil, err
	}
	return &SyncScalableFilter{sf: sf}, nil
}

// Insert locks for writing and delegates to the underlying ScalableFilter.
func (s *SyncScalableFilter) Insert(item []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sf.Insert(item)
}

// Contains locks for reading and delegates to the underlying ScalableFilter.
func (s *SyncScalableFilter) Contains(item []byte) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sf.Contains(item)
}

// Delete locks for writing and delegates to the underlying ScalableFilter.
func (s *SyncScalableFilter) Delete(item []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sf.Delete(item)
}

// Count locks for reading and delegates to the underlying ScalableFilter.
func (s *SyncScalableFilter) Count(item []byte) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sf.Count(item)
}

// FilterCount locks for reading and delegates to the underlying
// ScalableFilter.
func (s *SyncScalableFilter) FilterCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sf.FilterCount()
}
