package blockstore

import (
	"sync"

	"github.com/sure2web3/hotstuff2-sub000/types"
)

// Mem is an in-process BlockStore, used by tests and deterministic
// multi-node simulation harnesses. Reads observe the last write
// (single-process, so linearizability is trivial).
type Mem struct {
	mu     sync.RWMutex
	blocks map[types.Hash]*types.Block
	qcs    map[types.Height]*types.QuorumCertificate
	state  *types.ChainState
}

// NewMem constructs an empty in-memory BlockStore.
func NewMem() *Mem {
	return &Mem{
		blocks: make(map[types.Hash]*types.Block),
		qcs:    make(map[types.Height]*types.QuorumCertificate),
	}
}

func (m *Mem) Put(block *types.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := block.HashValue()
	if _, exists := m.blocks[h]; exists {
		return nil // idempotent on content hash
	}
	cp := *block
	m.blocks[h] = &cp
	return nil
}

func (m *Mem) Get(hash types.Hash) (*types.Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blocks[hash]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (m *Mem) Contains(hash types.Hash) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blocks[hash]
	return ok, nil
}

func (m *Mem) PutQC(height types.Height, qc *types.QuorumCertificate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// last one wins by view, per spec §6's persisted-layout note.
	if existing, ok := m.qcs[height]; ok && existing.View >= qc.View {
		return nil
	}
	cp := *qc
	m.qcs[height] = &cp
	return nil
}

func (m *Mem) GetQC(height types.Height) (*types.QuorumCertificate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	qc, ok := m.qcs[height]
	if !ok {
		return nil, nil
	}
	cp := *qc
	return &cp, nil
}

func (m *Mem) PutChainState(state *types.ChainState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state.Clone()
	return nil
}

func (m *Mem) GetChainState() (*types.ChainState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == nil {
		return nil, nil
	}
	return m.state.Clone(), nil
}
