package memory

import (
	"context"
	"sort"
	"sync"

	"solana-arb-engine/internal/domain"
	"solana-arb-engine/internal/storage"
)

// RateTimeseriesStore is an in-memory implementation of storage.RateTimeseriesStore.
type RateTimeseriesStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.RatePoint // keyed by pool address
}

// NewRateTimeseriesStore creates a new in-memory rate timeseries store.
func NewRateTimeseriesStore() *RateTimeseriesStore {
	return &RateTimeseriesStore{
		data: make(map[string][]*domain.RatePoint),
	}
}

var _ storage.RateTimeseriesStore = (*RateTimeseriesStore)(nil)

// InsertBulk appends multiple rate points.
func (s *RateTimeseriesStore) InsertBulk(_ context.Context, points []*domain.RatePoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range points {
		if p == nil || p.PoolAddress == "" {
			return storage.ErrInvalidInput
		}
	}
	for _, p := range points {
		point := *p
		s.data[p.PoolAddress] = append(s.data[p.PoolAddress], &point)
	}
	return nil
}

// GetByPool retrieves all points for a pool, ordered by timestamp ASC.
func (s *RateTimeseriesStore) GetByPool(_ context.Context, poolAddress string) ([]*domain.RatePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RatePoint
	for _, p := range s.data[poolAddress] {
		point := *p
		result = append(result, &point)
	}
	sortByTimestamp(result)
	return result, nil
}

// GetByTimeRange retrieves points for a pool within [start, end] (inclusive).
func (s *RateTimeseriesStore) GetByTimeRange(_ context.Context, poolAddress string, start, end int64) ([]*domain.RatePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RatePoint
	for _, p := range s.data[poolAddress] {
		if p.TimestampMs >= start && p.TimestampMs <= end {
			point := *p
			result = append(result, &point)
		}
	}
	sortByTimestamp(result)
	return result, nil
}

func sortByTimestamp(points []*domain.RatePoint) {
	sort.Slice(points, func(i, j int) bool {
		if points[i].TimestampMs != points[j].TimestampMs {
			return points[i].TimestampMs < points[j].TimestampMs
		}
		return points[i].Slot < points[j].Slot
	})
}
