package blockstore_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sure2web3/hotstuff2-sub000/blockstore"
	"github.com/sure2web3/hotstuff2-sub000/types"
)

func TestMemPutGetRoundTrip(t *testing.T) {
	store := blockstore.NewMem()
	b := &types.Block{ParentHash: types.ZeroHash, Height: 1, ProposerID: 0, Timestamp: 1}

	require.NoError(t, store.Put(b))

	got, err := store.Get(b.HashValue())
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, b.Height, got.Height)

	ok, err := store.Contains(b.HashValue())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMemGetMissIsNilNotError(t *testing.T) {
	store := blockstore.NewMem()
	got, err := store.Get(types.Hash{0x01})
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestMemQCLastOneWinsByView(t *testing.T) {
	store := blockstore.NewMem()
	low := &types.QuorumCertificate{Height: 5, View: 1}
	high := &types.QuorumCertificate{Height: 5, View: 2}

	require.NoError(t, store.PutQC(5, low))
	require.NoError(t, store.PutQC(5, high))

	got, err := store.GetQC(5)
	require.NoError(t, err)
	require.Equal(t, types.View(2), got.View)

	// Attempting to overwrite with a lower view is a no-op.
	require.NoError(t, store.PutQC(5, low))
	got, err = store.GetQC(5)
	require.NoError(t, err)
	require.Equal(t, types.View(2), got.View)
}

func TestMemChainStateRoundTrip(t *testing.T) {
	store := blockstore.NewMem()
	state := &types.ChainState{CommittedHeight: 3, LastVotedView: 4}
	require.NoError(t, store.PutChainState(state))

	got, err := store.GetChainState()
	require.NoError(t, err)
	require.Equal(t, types.Height(3), got.CommittedHeight)
}
