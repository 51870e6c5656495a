package memory

import (
	"context"
	"sort"
	"sync"

	"solana-arb-engine/internal/domain"
	"solana-arb-engine/internal/storage"
)

// OpportunityStore is an in-memory implementation of storage.OpportunityStore.
type OpportunityStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Opportunity // keyed by opportunity_id
}

// NewOpportunityStore creates a new in-memory opportunity store.
func NewOpportunityStore() *OpportunityStore {
	return &OpportunityStore{
		data: make(map[string]*domain.Opportunity),
	}
}

var _ storage.OpportunityStore = (*OpportunityStore)(nil)

// Insert adds a new opportunity. Returns ErrDuplicateKey if exists.
func (s *OpportunityStore) Insert(_ context.Context, o *domain.Opportunity) error {
	if o == nil || o.OpportunityID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[o.OpportunityID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[o.OpportunityID] = copyOpportunity(o)
	return nil
}

// InsertBulk adds multiple opportunities atomically. Fails entire batch on any duplicate.
func (s *OpportunityStore) InsertBulk(_ context.Context, opportunities []*domain.Opportunity) error {
	if len(opportunities) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(opportunities))
	for _, o := range opportunities {
		if o == nil || o.OpportunityID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[o.OpportunityID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[o.OpportunityID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[o.OpportunityID] = struct{}{}
	}

	for _, o := range opportunities {
		s.data[o.OpportunityID] = copyOpportunity(o)
	}
	return nil
}

// GetByID retrieves an opportunity by its ID. Returns ErrNotFound if not exists.
func (s *OpportunityStore) GetByID(_ context.Context, opportunityID string) (*domain.Opportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, exists := s.data[opportunityID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyOpportunity(o), nil
}

// GetByBaseMint retrieves all opportunities for a base mint, ordered by discovery time ASC.
func (s *OpportunityStore) GetByBaseMint(_ context.Context, baseMint string) ([]*domain.Opportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Opportunity
	for _, o := range s.data {
		if o.BaseMint == baseMint {
			result = append(result, copyOpportunity(o))
		}
	}
	sortByDiscovery(result)
	return result, nil
}

// GetByTimeRange retrieves opportunities discovered within [start, end] (inclusive).
func (s *OpportunityStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.Opportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Opportunity
	for _, o := range s.data {
		if o.DiscoveredAt >= start && o.DiscoveredAt <= end {
			result = append(result, copyOpportunity(o))
		}
	}
	sortByDiscovery(result)
	return result, nil
}

// GetTopByProfit retrieves the limit most profitable opportunities within [start, end].
func (s *OpportunityStore) GetTopByProfit(_ context.Context, start, end int64, limit int) ([]*domain.Opportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Opportunity
	for _, o := range s.data {
		if o.DiscoveredAt >= start && o.DiscoveredAt <= end {
			result = append(result, copyOpportunity(o))
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ProfitPct > result[j].ProfitPct
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func sortByDiscovery(opportunities []*domain.Opportunity) {
	sort.Slice(opportunities, func(i, j int) bool {
		if opportunities[i].DiscoveredAt != opportunities[j].DiscoveredAt {
			return opportunities[i].DiscoveredAt < opportunities[j].DiscoveredAt
		}
		return opportunities[i].OpportunityID < opportunities[j].OpportunityID
	})
}

// copyOpportunity deep-copies the record so callers never share slices
// with the store.
func copyOpportunity(o *domain.Opportunity) *domain.Opportunity {
	out := *o
	out.Path = append([]string(nil), o.Path...)
	out.PoolAddresses = append([]string(nil), o.PoolAddresses...)
	out.Dexes = append([]string(nil), o.Dexes...)
	return &out
}
