package blockstore

import (
	"encoding/binary"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"

	"github.com/sure2web3/hotstuff2-sub000/types"
)

// Pebble is a durable, content-addressed BlockStore on top of
// cockroachdb/pebble, using the key layout from spec §6:
//   block:<hash>, qc:<height> (last one wins by view), chain_state.
//
// Pebble's WAL gives durability-before-acknowledgement for free (each
// write here uses pebble.Sync); its LSM gives linearizable reads of the
// last write within a single process.
type Pebble struct {
	db *pebble.DB
}

// OpenPebble opens (creating if absent) a durable block store at dir.
func OpenPebble(dir string) (*Pebble, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "open pebble store"), types.ErrCorruption)
	}
	return &Pebble{db: db}, nil
}

// Close releases the underlying database handle.
func (p *Pebble) Close() error {
	return p.db.Close()
}

func blockKey(h types.Hash) []byte {
	return append([]byte("block:"), h[:]...)
}

func qcKey(height types.Height) []byte {
	buf := make([]byte, 3+8)
	copy(buf, "qc:")
	binary.BigEndian.PutUint64(buf[3:], uint64(height))
	return buf
}

var chainStateKey = []byte("chain_state")

func (p *Pebble) Put(block *types.Block) error {
	h := block.HashValue()
	if _, closer, err := p.db.Get(blockKey(h)); err == nil {
		closer.Close()
		return nil // idempotent on content hash
	} else if !errors.Is(err, pebble.ErrNotFound) {
		return wrapPebbleErr(err)
	}

	raw, err := json.Marshal(block)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "encode block"), types.ErrCorruption)
	}
	if err := p.db.Set(blockKey(h), raw, pebble.Sync); err != nil {
		return wrapPebbleErr(err)
	}
	return nil
}

func (p *Pebble) Get(hash types.Hash) (*types.Block, error) {
	raw, closer, err := p.db.Get(blockKey(hash))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapPebbleErr(err)
	}
	defer closer.Close()

	var b types.Block
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decode block"), types.ErrCorruption)
	}
	return &b, nil
}

func (p *Pebble) Contains(hash types.Hash) (bool, error) {
	_, closer, err := p.db.Get(blockKey(hash))
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, wrapPebbleErr(err)
	}
	closer.Close()
	return true, nil
}

func (p *Pebble) PutQC(height types.Height, qc *types.QuorumCertificate) error {
	existing, err := p.GetQC(height)
	if err != nil {
		return err
	}
	if existing != nil && existing.View >= qc.View {
		return nil // last one wins by view
	}

	raw, err := json.Marshal(qc)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "encode qc"), types.ErrCorruption)
	}
	if err := p.db.Set(qcKey(height), raw, pebble.Sync); err != nil {
		return wrapPebbleErr(err)
	}
	return nil
}

func (p *Pebble) GetQC(height types.Height) (*types.QuorumCertificate, error) {
	raw, closer, err := p.db.Get(qcKey(height))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapPebbleErr(err)
	}
	defer closer.Close()

	var qc types.QuorumCertificate
	if err := json.Unmarshal(raw, &qc); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decode qc"), types.ErrCorruption)
	}
	return &qc, nil
}

func (p *Pebble) PutChainState(state *types.ChainState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "encode chain state"), types.ErrCorruption)
	}
	if err := p.db.Set(chainStateKey, raw, pebble.Sync); err != nil {
		return wrapPebbleErr(err)
	}
	return nil
}

func (p *Pebble) GetChainState() (*types.ChainState, error) {
	raw, closer, err := p.db.Get(chainStateKey)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapPebbleErr(err)
	}
	defer closer.Close()

	var s types.ChainState
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decode chain state"), types.ErrCorruption)
	}
	return &s, nil
}

// wrapPebbleErr classifies pebble I/O failures as transient per spec §7;
// the core marks its health degraded rather than halting, and does not
// retry the failed operation.
func wrapPebbleErr(err error) error {
	return errors.Mark(errors.Wrap(err, "pebble I/O"), types.ErrUnavailable)
}
