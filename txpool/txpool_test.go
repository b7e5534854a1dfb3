package txpool_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sure2web3/hotstuff2-sub000/txpool"
	"github.com/sure2web3/hotstuff2-sub000/types"
)

func TestSubmitRejectsAtCapacity(t *testing.T) {
	pool := txpool.New(txpool.PolicyFIFO, 2)
	require.NoError(t, pool.Submit(txpool.Tx{ID: "t1"}))
	require.NoError(t, pool.Submit(txpool.Tx{ID: "t2"}))
	require.ErrorIs(t, pool.Submit(txpool.Tx{ID: "t3"}), types.ErrPoolFull)
}

func TestNextBatchFIFOOrder(t *testing.T) {
	pool := txpool.New(txpool.PolicyFIFO, 10)
	require.NoError(t, pool.Submit(txpool.Tx{ID: "t1"}))
	require.NoError(t, pool.Submit(txpool.Tx{ID: "t2"}))
	require.NoError(t, pool.Submit(txpool.Tx{ID: "t3"}))

	batch := pool.NextBatch(2)
	require.Equal(t, []string{"t1", "t2"}, idsOf(batch))
	require.Equal(t, 1, pool.PendingCount())
}

func TestNextBatchNoDuplicateAcrossBatches(t *testing.T) {
	pool := txpool.New(txpool.PolicyFIFO, 10)
	for _, id := range []string{"t1", "t2", "t3"} {
		require.NoError(t, pool.Submit(txpool.Tx{ID: id}))
	}

	first := pool.NextBatch(2)
	second := pool.NextBatch(2)

	seen := make(map[string]bool)
	for _, tx := range append(first, second...) {
		require.False(t, seen[tx.ID], "tx %s returned twice", tx.ID)
		seen[tx.ID] = true
	}
}

func TestNextBatchFeePriority(t *testing.T) {
	pool := txpool.New(txpool.PolicyFeePriority, 10)
	require.NoError(t, pool.Submit(txpool.Tx{ID: "low", Fee: 1}))
	require.NoError(t, pool.Submit(txpool.Tx{ID: "high", Fee: 100}))
	require.NoError(t, pool.Submit(txpool.Tx{ID: "mid", Fee: 50}))

	batch := pool.NextBatch(3)
	require.Equal(t, []string{"high", "mid", "low"}, idsOf(batch))
}

func TestPoolAtCapacityStillExtractsExistingBatches(t *testing.T) {
	pool := txpool.New(txpool.PolicyFIFO, 1)
	require.NoError(t, pool.Submit(txpool.Tx{ID: "t1"}))
	require.ErrorIs(t, pool.Submit(txpool.Tx{ID: "t2"}), types.ErrPoolFull)

	batch := pool.NextBatch(10)
	require.Equal(t, []string{"t1"}, idsOf(batch))
}

func idsOf(txs []txpool.Tx) []string {
	out := make([]string, len(txs))
	for i, tx := range txs {
		out[i] = tx.ID
	}
	return out
}
