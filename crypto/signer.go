// Package crypto implements the CryptoSigner contract (spec §4.1): BLS
// threshold partial signing, aggregation, and verification, with
// mandatory domain separation between vote, fast-commit, and timeout
// digests.
//
// BLS gives O(1)-sized quorum certificates regardless of n and
// constant-time verification, which matters because QCs are forwarded
// and re-verified on every view change.
package crypto

import (
	"github.com/luxfi/crypto/bls"
	"github.com/luxfi/crypto/bls/signer/localsigner"

	"github.com/sure2web3/hotstuff2-sub000/types"
)

// PartialSig is a single member's BLS share over a message.
type PartialSig []byte

// Signer is the CryptoSigner contract from spec §4.1.
type Signer interface {
	// PartialSign produces a share under the local secret key.
	PartialSign(msg []byte) (PartialSig, error)

	// VerifyPartial checks a share against a specific signer's public key.
	VerifyPartial(msg []byte, sig PartialSig, signer types.NodeID) bool

	// Aggregate combines >= threshold individually-valid shares into a
	// QC-ready aggregate signature. Fails with ErrInsufficientShares or
	// ErrInvalidShare.
	Aggregate(msg []byte, shares map[types.NodeID]PartialSig, threshold int) ([]byte, error)

	// VerifyAggregate checks an aggregate signature against the
	// aggregate public key of signerSet.
	VerifyAggregate(msg []byte, signerSet []types.NodeID, aggregate []byte) bool
}

// blsSigner is the production Signer, backed by github.com/luxfi/crypto/bls
// (BLS12-381 via supranational/blst), matching the Signer/localsigner
// pattern used by _examples/luxfi-consensus/consensus/beam/engine.go.
type blsSigner struct {
	self       types.NodeID
	local      bls.Signer
	membership *types.Membership
	pubKeys    map[types.NodeID]*bls.PublicKey
}

// NewBLSSigner constructs a Signer for the local node. secretKeyBytes is
// the node's BLS secret key share; membership supplies every member's
// registered public key bytes (spec §6 configuration: membership[].public_key).
func NewBLSSigner(self types.NodeID, secretKeyBytes []byte, membership *types.Membership) (Signer, error) {
	local, err := localsigner.FromBytes(secretKeyBytes)
	if err != nil {
		return nil, err
	}

	pubKeys := make(map[types.NodeID]*bls.PublicKey, membership.N())
	for _, m := range membership.Members() {
		pk, err := bls.PublicKeyFromBytes(m.PublicKey)
		if err != nil {
			return nil, err
		}
		pubKeys[m.ID] = pk
	}

	return &blsSigner{
		self:       self,
		local:      local,
		membership: membership,
		pubKeys:    pubKeys,
	}, nil
}

func (s *blsSigner) PartialSign(msg []byte) (PartialSig, error) {
	sig, err := s.local.Sign(msg)
	if err != nil {
		return nil, err
	}
	return sig.Serialize(), nil
}

func (s *blsSigner) VerifyPartial(msg []byte, sig PartialSig, signer types.NodeID) bool {
	pk, ok := s.pubKeys[signer]
	if !ok {
		return false
	}
	parsed, err := bls.SignatureFromBytes(sig)
	if err != nil {
		return false
	}
	return bls.Verify(pk, parsed, msg)
}

func (s *blsSigner) Aggregate(msg []byte, shares map[types.NodeID]PartialSig, threshold int) ([]byte, error) {
	if len(shares) < threshold {
		return nil, types.ErrInsufficientShares
	}

	sigs := make([]*bls.Signature, 0, len(shares))
	for signer, share := range shares {
		if !s.VerifyPartial(msg, share, signer) {
			return nil, types.ErrInvalidShare
		}
		parsed, err := bls.SignatureFromBytes(share)
		if err != nil {
			return nil, types.ErrInvalidShare
		}
		sigs = append(sigs, parsed)
	}

	agg, err := bls.AggregateSignatures(sigs)
	if err != nil {
		return nil, err
	}
	return agg.Serialize(), nil
}

func (s *blsSigner) VerifyAggregate(msg []byte, signerSet []types.NodeID, aggregate []byte) bool {
	if len(signerSet) < s.membership.Quorum() {
		return false
	}

	pks := make([]*bls.PublicKey, 0, len(signerSet))
	seen := make(map[types.NodeID]struct{}, len(signerSet))
	for _, id := range signerSet {
		if _, dup := seen[id]; dup {
			return false
		}
		seen[id] = struct{}{}
		pk, ok := s.pubKeys[id]
		if !ok {
			return false
		}
		pks = append(pks, pk)
	}

	aggPK, err := bls.AggregatePublicKeys(pks)
	if err != nil {
		return false
	}

	sig, err := bls.SignatureFromBytes(aggregate)
	if err != nil {
		return false
	}
	return bls.Verify(aggPK, sig, msg)
}
