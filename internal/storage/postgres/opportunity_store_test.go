package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-arb-engine/internal/domain"
	"solana-arb-engine/internal/storage"
	pgstore "solana-arb-engine/internal/storage/postgres"
)

func testOpportunity(id string, profitPct float64, discoveredAt int64) *domain.Opportunity {
	return &domain.Opportunity{
		OpportunityID:   id,
		BaseMint:        "So11111111111111111111111111111111111111112",
		Path:            []string{"SOL", "USDC", "BONK", "SOL"},
		PoolAddresses:   []string{"pool-a", "pool-b", "pool-c"},
		Dexes:           []string{"raydium", "orca", "raydium"},
		HopCount:        3,
		ProfitPct:       profitPct,
		MinLiquidityUSD: 50_000,
		TotalFeeBps:     75,
		Slot:            123456,
		DiscoveredAt:    discoveredAt,
	}
}

func TestOpportunityStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := pgstore.NewOpportunityStore(pool)

	o := testOpportunity("opp-1", 1.25, 1700000001000)
	require.NoError(t, store.Insert(ctx, o))

	got, err := store.GetByID(ctx, "opp-1")
	require.NoError(t, err)

	assert.Equal(t, o.OpportunityID, got.OpportunityID)
	assert.Equal(t, o.BaseMint, got.BaseMint)
	assert.Equal(t, o.Path, got.Path)
	assert.Equal(t, o.PoolAddresses, got.PoolAddresses)
	assert.Equal(t, o.Dexes, got.Dexes)
	assert.Equal(t, o.HopCount, got.HopCount)
	assert.InDelta(t, o.ProfitPct, got.ProfitPct, 0.0001)
	assert.Equal(t, o.MinLiquidityUSD, got.MinLiquidityUSD)
	assert.Equal(t, o.TotalFeeBps, got.TotalFeeBps)
	assert.Equal(t, o.Slot, got.Slot)
	assert.Equal(t, o.DiscoveredAt, got.DiscoveredAt)
	assert.NotZero(t, got.CreatedAt)
}

func TestOpportunityStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := pgstore.NewOpportunityStore(pool)

	o := testOpportunity("opp-dup", 1.0, 1700000001000)
	require.NoError(t, store.Insert(ctx, o))

	err := store.Insert(ctx, o)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestOpportunityStore_GetByIDNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewOpportunityStore(pool)

	_, err := store.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestOpportunityStore_InsertBulkAtomicity(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := pgstore.NewOpportunityStore(pool)

	require.NoError(t, store.Insert(ctx, testOpportunity("opp-1", 1.0, 1700000001000)))

	batch := []*domain.Opportunity{
		testOpportunity("opp-2", 0.5, 1700000002000),
		testOpportunity("opp-1", 0.9, 1700000003000), // duplicate
	}
	err := store.InsertBulk(ctx, batch)
	require.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Atomicity: the non-duplicate row must not have landed.
	_, err = store.GetByID(ctx, "opp-2")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestOpportunityStore_GetByBaseMintAndTimeRange(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := pgstore.NewOpportunityStore(pool)

	require.NoError(t, store.InsertBulk(ctx, []*domain.Opportunity{
		testOpportunity("opp-1", 1.0, 1700000001000),
		testOpportunity("opp-2", 2.0, 1700000002000),
		testOpportunity("opp-3", 3.0, 1700000003000),
	}))

	byMint, err := store.GetByBaseMint(ctx, "So11111111111111111111111111111111111111112")
	require.NoError(t, err)
	require.Len(t, byMint, 3)
	assert.Equal(t, "opp-1", byMint[0].OpportunityID)

	inRange, err := store.GetByTimeRange(ctx, 1700000001000, 1700000002000)
	require.NoError(t, err)
	require.Len(t, inRange, 2)
	assert.Equal(t, "opp-1", inRange[0].OpportunityID)
	assert.Equal(t, "opp-2", inRange[1].OpportunityID)
}

func TestOpportunityStore_GetTopByProfit(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := pgstore.NewOpportunityStore(pool)

	require.NoError(t, store.InsertBulk(ctx, []*domain.Opportunity{
		testOpportunity("opp-low", 0.3, 1700000001000),
		testOpportunity("opp-high", 2.5, 1700000002000),
		testOpportunity("opp-mid", 1.1, 1700000003000),
	}))

	top, err := store.GetTopByProfit(ctx, 0, 1800000000000, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "opp-high", top[0].OpportunityID)
	assert.Equal(t, "opp-mid", top[1].OpportunityID)
}
