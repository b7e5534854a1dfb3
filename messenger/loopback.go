package messenger

import (
	"sync"
	"sync/atomic"

	"github.com/sure2web3/hotstuff2-sub000/types"
)

// Loopback is an in-process Messenger that fans broadcast/unicast out to
// a set of registered Inbound consumers by calling their Deliver method
// directly, on the sender's goroutine. It is used to
// build deterministic multi-node simulation harnesses in tests, the same
// role _examples/luxfi-consensus/networking/sender/sendertest plays for
// its production sender.
type Loopback struct {
	self types.NodeID
	hub  *Hub
	seq  atomic.Uint64
}

// Hub is shared by every node's Loopback handle so that a broadcast from
// one reaches all the others.
type Hub struct {
	mu      sync.RWMutex
	inboxes map[types.NodeID]Inbound
	// dropped simulates partitions: messages to/from a dropped peer are
	// silently discarded, modelling spec §5's "arbitrary message loss".
	dropped map[types.NodeID]bool
}

// NewLoopbackHub creates a shared hub for a fixed node set.
func NewLoopbackHub() *Hub {
	return &Hub{
		inboxes: make(map[types.NodeID]Inbound),
		dropped: make(map[types.NodeID]bool),
	}
}

// NewLoopback registers self with hub and returns its Messenger handle.
// inbound receives every envelope addressed to self (including
// broadcasts); it is typically the consensus core's dispatcher.
func (h *Hub) NewLoopback(self types.NodeID, inbound Inbound) *Loopback {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.inboxes[self] = inbound
	return &Loopback{self: self, hub: h}
}

// Partition marks id as unreachable: sends to/from it are dropped until
// Heal is called. Used by tests simulating a crashed or isolated leader.
func (h *Hub) Partition(id types.NodeID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropped[id] = true
}

// Heal reverses Partition.
func (h *Hub) Heal(id types.NodeID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.dropped, id)
}

func (l *Loopback) nextSeq() uint64 { return l.seq.Add(1) }

func (l *Loopback) Broadcast(msg Envelope) error {
	l.hub.mu.RLock()
	defer l.hub.mu.RUnlock()

	if l.hub.dropped[l.self] {
		return nil
	}
	msg.SenderID = l.self
	msg.Broadcast = true
	msg.SeqNo = l.nextSeq()

	for peer, inbox := range l.hub.inboxes {
		if peer == l.self || l.hub.dropped[peer] {
			continue
		}
		inbox.Deliver(msg)
	}
	return nil
}

func (l *Loopback) Send(peer types.NodeID, msg Envelope) error {
	l.hub.mu.RLock()
	defer l.hub.mu.RUnlock()

	if l.hub.dropped[l.self] || l.hub.dropped[peer] {
		return nil
	}
	msg.SenderID = l.self
	msg.RecipientID = peer
	msg.Broadcast = false
	msg.SeqNo = l.nextSeq()

	inbox, ok := l.hub.inboxes[peer]
	if !ok {
		return nil // best-effort: unknown peer, silently dropped
	}
	inbox.Deliver(msg)
	return nil
}

func (l *Loopback) ConnectedPeers() []types.NodeID {
	l.hub.mu.RLock()
	defer l.hub.mu.RUnlock()

	peers := make([]types.NodeID, 0, len(l.hub.inboxes))
	for id := range l.hub.inboxes {
		if id != l.self && !l.hub.dropped[id] {
			peers = append(peers, id)
		}
	}
	return peers
}
