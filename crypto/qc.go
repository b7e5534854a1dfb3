package crypto

import (
	"sort"

	"github.com/sure2web3/hotstuff2-sub000/types"
)

// BuildQC aggregates a vote set into a QuorumCertificate once it has
// reached the membership's quorum threshold. fastPath selects the
// FastCommit digest domain instead of the standard Vote domain (spec §9:
// fast-commit shares must never be replayable as a standard QC).
func BuildQC(signer Signer, membership *types.Membership, height types.Height, view types.View, blockHash types.Hash, votes map[types.NodeID]PartialSig, fastPath bool) (*types.QuorumCertificate, error) {
	msg := types.VoteDigest(view, blockHash)
	if fastPath {
		msg = types.FastCommitDigest(view, blockHash)
	}

	agg, err := signer.Aggregate(msg, votes, membership.Quorum())
	if err != nil {
		return nil, err
	}

	signers := make([]types.NodeID, 0, len(votes))
	for id := range votes {
		signers = append(signers, id)
	}
	sort.Slice(signers, func(i, j int) bool { return signers[i] < signers[j] })

	return &types.QuorumCertificate{
		BlockHash:    blockHash,
		Height:       height,
		View:         view,
		AggregateSig: agg,
		SignerSet:    signers,
		FastPath:     fastPath,
	}, nil
}

// VerifyQC checks a QC's signer-set size and aggregate signature.
func VerifyQC(signer Signer, membership *types.Membership, qc *types.QuorumCertificate) bool {
	if qc == nil || !membership.ValidSignerSet(qc.SignerSet) {
		return false
	}
	msg := types.VoteDigest(qc.View, qc.BlockHash)
	if qc.FastPath {
		msg = types.FastCommitDigest(qc.View, qc.BlockHash)
	}
	return signer.VerifyAggregate(msg, qc.SignerSet, qc.AggregateSig)
}

// BuildTimeoutCertificate aggregates timeout shares for a view into a TC,
// carrying forward the highest high_qc observed among the collected
// TimeoutMessages (spec §4.7 step 2).
func BuildTimeoutCertificate(signer Signer, membership *types.Membership, view types.View, msgs map[types.NodeID]*types.TimeoutMessage) (*types.TimeoutCertificate, error) {
	shares := make(map[types.NodeID]PartialSig, len(msgs))
	var highest *types.QuorumCertificate
	for id, m := range msgs {
		shares[id] = m.PartialSig
		if highest == nil || (m.HighQC != nil && m.HighQC.View > highest.View) {
			if m.HighQC != nil {
				highest = m.HighQC
			}
		}
	}

	highQCBlockHash := types.ZeroHash
	highQCView := types.View(0)
	if highest != nil {
		highQCBlockHash = highest.BlockHash
		highQCView = highest.View
	}
	msg := types.TimeoutDigest(view, highQCBlockHash, highQCView)

	agg, err := signer.Aggregate(msg, shares, membership.Quorum())
	if err != nil {
		return nil, err
	}

	signers := make([]types.NodeID, 0, len(shares))
	for id := range shares {
		signers = append(signers, id)
	}
	sort.Slice(signers, func(i, j int) bool { return signers[i] < signers[j] })

	return &types.TimeoutCertificate{
		View:         view,
		AggregateSig: agg,
		SignerSet:    signers,
		HighestQC:    highest,
	}, nil
}
