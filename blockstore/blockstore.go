// Package blockstore defines the BlockStore contract (spec §4.2, §6): a
// content-addressed, pluggable persistence layer for blocks and quorum
// certificates. Two implementations are provided: an in-memory store for
// tests/simulation, and a durable one on top of cockroachdb/pebble.
package blockstore

import (
	"github.com/sure2web3/hotstuff2-sub000/types"
)

// BlockStore is the contract consumed by the consensus core. Durability
// before acknowledgement and linearizable reads of the last write are
// required of every implementation. Transient failures must be returned
// as types.ErrUnavailable; permanent failures as types.ErrCorruption.
type BlockStore interface {
	Put(block *types.Block) error
	Get(hash types.Hash) (*types.Block, error)
	Contains(hash types.Hash) (bool, error)

	PutQC(height types.Height, qc *types.QuorumCertificate) error
	GetQC(height types.Height) (*types.QuorumCertificate, error)

	PutChainState(state *types.ChainState) error
	GetChainState() (*types.ChainState, error)
}

// ErrNotFound-style sentinels are intentionally absent: Get/GetQC/
// GetChainState return (nil, nil) on a clean miss, matching the Option
// semantics of spec §3/§4.2 ("block?", "qc?"). Errors are reserved for
// ErrUnavailable/ErrCorruption.
