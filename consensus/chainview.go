package consensus

import (
	"github.com/sure2web3/hotstuff2-sub000/blockstore"
	"github.com/sure2web3/hotstuff2-sub000/pipeline"
	"github.com/sure2web3/hotstuff2-sub000/types"
)

// storeChainView implements safety.ChainView over a BlockStore plus the
// in-flight Pipeline, so the safety engine can resolve a block's ancestry
// whether the ancestor has already been persisted or is still an
// uncommitted stage.
type storeChainView struct {
	store    blockstore.BlockStore
	pipeline *pipeline.Pipeline
}

func (v *storeChainView) GetBlock(hash types.Hash) (*types.Block, bool) {
	if b, err := v.store.Get(hash); err == nil && b != nil {
		return b, true
	}
	for _, h := range v.pipeline.Heights() {
		stage, ok := v.pipeline.Get(h)
		if !ok || stage.Block == nil {
			continue
		}
		if stage.Block.HashValue() == hash {
			return stage.Block, true
		}
	}
	return nil, false
}

func (v *storeChainView) Extends(block *types.Block, ancestorHash types.Hash) bool {
	cur := block
	for {
		if cur.ParentHash == ancestorHash {
			return true
		}
		if cur.ParentHash.IsZero() {
			return false
		}
		parent, ok := v.GetBlock(cur.ParentHash)
		if !ok {
			return false
		}
		cur = parent
	}
}
