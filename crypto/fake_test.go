package crypto_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sure2web3/hotstuff2-sub000/crypto"
	"github.com/sure2web3/hotstuff2-sub000/types"
)

func fakeKeys(n int) map[types.NodeID][]byte {
	keys := make(map[types.NodeID][]byte, n)
	for i := 0; i < n; i++ {
		keys[types.NodeID(i)] = []byte{byte(i), byte(i + 1)}
	}
	return keys
}

func TestAggregateThenVerifyRoundTrip(t *testing.T) {
	keys := fakeKeys(4)
	msg := types.VoteDigest(1, types.Hash{0xAA})

	shares := make(map[types.NodeID]crypto.PartialSig)
	for id := range keys {
		signer := crypto.NewFakeSigner(id, keys)
		sig, err := signer.PartialSign(msg)
		require.NoError(t, err)
		shares[id] = sig
	}

	agg := crypto.NewFakeSigner(0, keys)
	// quorum for n=4,f=1 is 3
	quorumShares := map[types.NodeID]crypto.PartialSig{0: shares[0], 1: shares[1], 2: shares[2]}
	aggregate, err := agg.Aggregate(msg, quorumShares, 3)
	require.NoError(t, err)

	signerSet := []types.NodeID{0, 1, 2}
	require.True(t, agg.VerifyAggregate(msg, signerSet, aggregate))
}

func TestAggregateInsufficientShares(t *testing.T) {
	keys := fakeKeys(4)
	msg := types.VoteDigest(1, types.Hash{0xAA})
	signer := crypto.NewFakeSigner(0, keys)

	sig0, _ := signer.PartialSign(msg)
	_, err := signer.Aggregate(msg, map[types.NodeID]crypto.PartialSig{0: sig0}, 3)
	require.ErrorIs(t, err, types.ErrInsufficientShares)
}

func TestAggregateInvalidShare(t *testing.T) {
	keys := fakeKeys(4)
	msg := types.VoteDigest(1, types.Hash{0xAA})
	signer := crypto.NewFakeSigner(0, keys)

	sig0, _ := signer.PartialSign(msg)
	bad := append([]byte{}, sig0...)
	bad[0] ^= 0xFF

	shares := map[types.NodeID]crypto.PartialSig{
		0: sig0,
		1: bad, // not node 1's real share
		2: sig0,
	}
	_, err := signer.Aggregate(msg, shares, 3)
	require.ErrorIs(t, err, types.ErrInvalidShare)
}

func TestDomainSeparationPreventsReplay(t *testing.T) {
	keys := fakeKeys(4)
	signer := crypto.NewFakeSigner(0, keys)

	voteMsg := types.VoteDigest(1, types.Hash{0xAA})
	fastMsg := types.FastCommitDigest(1, types.Hash{0xAA})
	require.NotEqual(t, voteMsg, fastMsg)

	sig, _ := signer.PartialSign(voteMsg)
	require.False(t, signer.VerifyPartial(fastMsg, sig, 0))
}
