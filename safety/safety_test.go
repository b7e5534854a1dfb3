package safety_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sure2web3/hotstuff2-sub000/safety"
	"github.com/sure2web3/hotstuff2-sub000/types"
)

// fakeChain is a minimal ChainView backed by an in-memory map, enough to
// drive the safety engine as a standalone state machine with no network,
// per the design note in spec §9.
type fakeChain struct {
	blocks map[types.Hash]*types.Block
}

func newFakeChain() *fakeChain {
	return &fakeChain{blocks: make(map[types.Hash]*types.Block)}
}

func (c *fakeChain) add(b *types.Block) types.Hash {
	h := b.HashValue()
	c.blocks[h] = b
	return h
}

func (c *fakeChain) GetBlock(hash types.Hash) (*types.Block, bool) {
	b, ok := c.blocks[hash]
	return b, ok
}

func (c *fakeChain) Extends(block *types.Block, ancestorHash types.Hash) bool {
	cur := block
	for {
		if cur.ParentHash == ancestorHash {
			return true
		}
		parent, ok := c.blocks[cur.ParentHash]
		if !ok {
			return false
		}
		cur = parent
	}
}

func TestVoteRuleRejectsDoubleVoting(t *testing.T) {
	chain := newFakeChain()
	genesis := &types.Block{Height: 0}
	chain.add(genesis)
	engine := safety.New()

	b1 := &types.Block{ParentHash: genesis.HashValue(), Height: 1, Timestamp: 1}
	chain.add(b1)

	require.True(t, engine.SafeToVote(b1, 2, nil, chain))
	engine.RecordVote(2)

	require.False(t, engine.SafeToVote(b1, 2, nil, chain))
	require.False(t, engine.SafeToVote(b1, 1, nil, chain))
}

func TestVoteRuleRequiresKnownParent(t *testing.T) {
	chain := newFakeChain()
	engine := safety.New()

	orphan := &types.Block{ParentHash: types.Hash{0x99}, Height: 5, Timestamp: 1}
	require.False(t, engine.SafeToVote(orphan, 1, nil, chain))
}

func TestVoteRuleRequiresExtendLockOrHigherJustification(t *testing.T) {
	chain := newFakeChain()
	genesis := &types.Block{Height: 0}
	genesisHash := chain.add(genesis)
	engine := safety.New()

	lockedBlock := &types.Block{ParentHash: genesisHash, Height: 1, Timestamp: 1}
	lockedHash := chain.add(lockedBlock)
	lockedQC := &types.QuorumCertificate{BlockHash: lockedHash, Height: 1, View: 3}
	require.True(t, engine.UpdateLock(lockedQC))

	// A sibling block that does NOT extend the locked block, with no
	// higher justification, must be rejected.
	sibling := &types.Block{ParentHash: genesisHash, Height: 1, Timestamp: 2}
	chain.add(sibling)
	require.False(t, engine.SafeToVote(sibling, 4, nil, chain))

	// The same sibling WITH a higher-view justifying QC is safe.
	justifying := &types.QuorumCertificate{BlockHash: sibling.HashValue(), View: 4}
	require.True(t, engine.SafeToVote(sibling, 5, justifying, chain))

	// A block extending the locked block is safe without justification.
	child := &types.Block{ParentHash: lockedHash, Height: 2, Timestamp: 3}
	chain.add(child)
	require.True(t, engine.SafeToVote(child, 6, nil, chain))
}

func TestLockRuleRejectsBackwardMove(t *testing.T) {
	engine := safety.New()
	high := &types.QuorumCertificate{BlockHash: types.Hash{0x01}, View: 5}
	low := &types.QuorumCertificate{BlockHash: types.Hash{0x02}, View: 3}

	require.True(t, engine.UpdateLock(high))
	require.False(t, engine.UpdateLock(low))
	require.Equal(t, high, engine.LockedQC())

	stats := engine.StatsSnapshot()
	require.Equal(t, 1, stats.LockViolations)
}

func TestThreeChainCommitRule(t *testing.T) {
	engine := safety.New()

	q1 := &types.QuorumCertificate{BlockHash: types.Hash{0x01}, View: 1}
	q2 := &types.QuorumCertificate{BlockHash: types.Hash{0x02}, View: 2}
	q3 := &types.QuorumCertificate{BlockHash: types.Hash{0x03}, View: 3}

	// Only two QCs: not enough to commit.
	_, ok := engine.CanCommit([]*types.QuorumCertificate{q1, q2})
	require.False(t, ok)

	hash, ok := engine.CanCommit([]*types.QuorumCertificate{q1, q2, q3})
	require.True(t, ok)
	require.Equal(t, q1.BlockHash, hash)

	// A gap in views breaks the chain.
	q3Gapped := &types.QuorumCertificate{BlockHash: types.Hash{0x03}, View: 4}
	_, ok = engine.CanCommit([]*types.QuorumCertificate{q1, q2, q3Gapped})
	require.False(t, ok)
}

func TestViolationBufferIsBounded(t *testing.T) {
	engine := safety.New()
	chain := newFakeChain()
	genesis := &types.Block{Height: 0}
	genesisHash := chain.add(genesis)
	b := &types.Block{ParentHash: genesisHash, Height: 1, Timestamp: 1}
	chain.add(b)

	engine.RecordVote(1000)
	for i := 0; i < 150; i++ {
		engine.SafeToVote(b, types.View(i), nil, chain) // all rejected: double voting
	}

	require.LessOrEqual(t, len(engine.Violations()), 100)
}
