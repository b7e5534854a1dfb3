// Package txpool implements the TxPool contract (spec §4.4): client
// transaction admission, bounded capacity (a full pool rejects new
// submissions; nothing is evicted), and deterministic batch extraction
// for proposers in a configured priority order.
package txpool

import (
	"sync"

	"github.com/sure2web3/hotstuff2-sub000/types"
)

// Tx is a client transaction as admitted by the pool. Fee is used only by
// the fee-priority Policy; FIFO pools ignore it.
type Tx struct {
	ID   string
	Data []byte
	Fee  uint64
}

// Policy selects the order in which NextBatch extracts transactions.
type Policy int

const (
	// PolicyFIFO extracts batches in submission order.
	PolicyFIFO Policy = iota
	// PolicyFeePriority extracts the highest-fee transactions first,
	// ties broken by submission order.
	PolicyFeePriority
)

// Pool is the TxPool contract from spec §4.4.
type Pool struct {
	mu       sync.Mutex
	policy   Policy
	capacity int
	order    []string      // submission order, for FIFO and tie-breaking
	byID     map[string]Tx // admitted, not-yet-batched transactions
}

// New constructs a Pool bounded at capacity transactions.
func New(policy Policy, capacity int) *Pool {
	return &Pool{
		policy:   policy,
		capacity: capacity,
		byID:     make(map[string]Tx),
	}
}

// Submit admits tx if the pool is below capacity.
func (p *Pool) Submit(tx Tx) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.byID[tx.ID]; exists {
		return nil // idempotent re-submission
	}
	if len(p.byID) >= p.capacity {
		return types.ErrPoolFull
	}
	p.byID[tx.ID] = tx
	p.order = append(p.order, tx.ID)
	return nil
}

// NextBatch returns up to maxN transactions in the pool's priority order
// and atomically removes them. An id is returned by at most one call while
// it stays pending; the pool keeps no record of batched ids, so an id that
// is submitted again after being batched is admitted and returned again.
func (p *Pool) NextBatch(maxN int) []Tx {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := p.prioritizedIDsLocked()
	if maxN < len(ids) {
		ids = ids[:maxN]
	}

	batch := make([]Tx, 0, len(ids))
	for _, id := range ids {
		batch = append(batch, p.byID[id])
		delete(p.byID, id)
	}
	p.removeFromOrderLocked(ids)
	return batch
}

// PendingCount reports the number of admitted, not-yet-batched transactions.
func (p *Pool) PendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byID)
}

func (p *Pool) prioritizedIDsLocked() []string {
	ids := make([]string, len(p.order))
	copy(ids, p.order)

	switch p.policy {
	case PolicyFeePriority:
		sortByFeeDescStable(ids, p.byID)
	case PolicyFIFO:
		// order already reflects submission sequence
	}
	return ids
}

// sortByFeeDescStable performs a stable descending sort by fee, so ties
// fall back to submission order (the incoming slice order).
func sortByFeeDescStable(ids []string, byID map[string]Tx) {
	// Insertion sort: pool sizes are bounded by configuration and batches
	// are small relative to capacity, so O(n^2) is acceptable and keeps
	// the tie-break trivially stable.
	for i := 1; i < len(ids); i++ {
		j := i
		for j > 0 && byID[ids[j-1]].Fee < byID[ids[j]].Fee {
			ids[j-1], ids[j] = ids[j], ids[j-1]
			j--
		}
	}
}

func (p *Pool) removeFromOrderLocked(removed []string) {
	if len(removed) == 0 {
		return
	}
	gone := make(map[string]struct{}, len(removed))
	for _, id := range removed {
		gone[id] = struct{}{}
	}
	kept := p.order[:0]
	for _, id := range p.order {
		if _, drop := gone[id]; !drop {
			kept = append(kept, id)
		}
	}
	p.order = kept
}
