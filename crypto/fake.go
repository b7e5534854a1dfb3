package crypto

import (
	"bytes"
	"crypto/sha256"
	"sort"

	"github.com/sure2web3/hotstuff2-sub000/types"
)

// NewFakeSigner returns a Signer backed by SHA-256 commitments instead of
// real BLS arithmetic. It preserves every safety-relevant property the
// real signer has (per-signer shares don't verify for the wrong signer,
// aggregation requires quorum-many individually-valid shares) without
// requiring real key material, the same trick
// _examples/luxfi-consensus/protocol/quasar/bls.go uses for its DAG
// vertex-ordering commitments. Used by package tests that exercise
// protocol logic (safety, pacemaker, pipeline, consensus) independent of
// cryptographic correctness; this package's own round-trip tests also run
// against it, and blsSigner has no tests in this module.
func NewFakeSigner(self types.NodeID, keys map[types.NodeID][]byte) Signer {
	return &fakeSigner{self: self, keys: keys}
}

type fakeSigner struct {
	self types.NodeID
	keys map[types.NodeID][]byte
}

func (f *fakeSigner) share(msg []byte, signer types.NodeID) PartialSig {
	h := sha256.New()
	h.Write(msg)
	h.Write(f.keys[signer])
	return h.Sum(nil)
}

func (f *fakeSigner) PartialSign(msg []byte) (PartialSig, error) {
	return f.share(msg, f.self), nil
}

func (f *fakeSigner) VerifyPartial(msg []byte, sig PartialSig, signer types.NodeID) bool {
	if _, ok := f.keys[signer]; !ok {
		return false
	}
	return bytes.Equal(sig, f.share(msg, signer))
}

func (f *fakeSigner) Aggregate(msg []byte, shares map[types.NodeID]PartialSig, threshold int) ([]byte, error) {
	if len(shares) < threshold {
		return nil, types.ErrInsufficientShares
	}
	ids := make([]types.NodeID, 0, len(shares))
	for id, sig := range shares {
		if !f.VerifyPartial(msg, sig, id) {
			return nil, types.ErrInvalidShare
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	h := sha256.New()
	h.Write(msg)
	for _, id := range ids {
		h.Write(shares[id])
	}
	return h.Sum(nil), nil
}

func (f *fakeSigner) VerifyAggregate(msg []byte, signerSet []types.NodeID, aggregate []byte) bool {
	ids := make([]types.NodeID, len(signerSet))
	copy(ids, signerSet)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	h := sha256.New()
	h.Write(msg)
	for _, id := range ids {
		if _, ok := f.keys[id]; !ok {
			return false
		}
		h.Write(f.share(msg, id))
	}
	return bytes.Equal(aggregate, h.Sum(nil))
}
