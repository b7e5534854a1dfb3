package messenger

import "sync"

// consensusKind reports whether kind is a consensus-critical payload, as
// opposed to auxiliary traffic (heartbeats, acks).
func consensusKind(k PayloadKind) bool {
	switch k {
	case PayloadProposal, PayloadVote, PayloadTimeout, PayloadNewView, PayloadFastCommit:
		return true
	default:
		return false
	}
}

// dedupKey identifies envelopes that are duplicates of each other for the
// purpose of the backpressure drop policy in spec §5: same
// {view, type, sender}.
type dedupKey struct {
	kind PayloadKind
	view uint64
	from uint64
}

func keyOf(e Envelope) (dedupKey, bool) {
	switch e.Kind {
	case PayloadVote:
		if v, ok := e.Payload.(VotePayload); ok {
			return dedupKey{e.Kind, uint64(v.Vote.View), uint64(e.SenderID)}, true
		}
	case PayloadTimeout:
		if v, ok := e.Payload.(TimeoutPayload); ok {
			return dedupKey{e.Kind, uint64(v.Timeout.View), uint64(e.SenderID)}, true
		}
	case PayloadProposal:
		if v, ok := e.Payload.(ProposalPayload); ok {
			return dedupKey{e.Kind, uint64(v.View), uint64(e.SenderID)}, true
		}
	case PayloadNewView:
		if v, ok := e.Payload.(NewViewPayload); ok {
			return dedupKey{e.Kind, uint64(v.NewView.View), uint64(e.SenderID)}, true
		}
	}
	return dedupKey{}, false
}

// Inbox is a bounded envelope queue implementing spec §5's backpressure
// policy: when full, drop the oldest non-consensus message first, then
// the oldest duplicate-key consensus message (same {view, type, sender}),
// and only then apply flow control to peers (callers observe that via
// Push returning false).
type Inbox struct {
	mu       sync.Mutex
	cap      int
	items    []Envelope
	seenKeys map[dedupKey]int // key -> index of the newest item with that key, for O(1) duplicate detection
}

// NewInbox creates a bounded Inbox of the given capacity.
func NewInbox(capacity int) *Inbox {
	return &Inbox{cap: capacity, seenKeys: make(map[dedupKey]int)}
}

// Push admits msg, evicting per the drop policy if the inbox is full.
// Returns false only when flow control must be applied (the inbox is
// full of must-keep consensus traffic with no duplicates to evict).
func (b *Inbox) Push(msg Envelope) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.items) < b.cap {
		b.admit(msg)
		return true
	}

	// 1. Drop the oldest non-consensus message.
	for i, it := range b.items {
		if !consensusKind(it.Kind) {
			b.evictAt(i)
			b.admit(msg)
			return true
		}
	}

	// 2. Drop the oldest duplicate-key consensus message.
	if key, ok := keyOf(msg); ok {
		if _, dup := b.seenKeys[key]; dup {
			for i, it := range b.items {
				if k, ok := keyOf(it); ok && k == key {
					b.evictAt(i)
					b.admit(msg)
					return true
				}
			}
		}
	}

	// 3. Nothing evictable: apply flow control.
	return false
}

// Drain returns and clears all queued envelopes, oldest first.
func (b *Inbox) Drain() []Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.items
	b.items = nil
	b.seenKeys = make(map[dedupKey]int)
	return out
}

// Len reports the number of currently queued envelopes.
func (b *Inbox) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

func (b *Inbox) admit(msg Envelope) {
	b.items = append(b.items, msg)
	if key, ok := keyOf(msg); ok {
		b.seenKeys[key] = len(b.items) - 1
	}
}

func (b *Inbox) evictAt(i int) {
	evicted := b.items[i]
	b.items = append(b.items[:i], b.items[i+1:]...)
	if key, ok := keyOf(evicted); ok {
		delete(b.seenKeys, key)
	}
	// Any index recorded above i has shifted down by one.
	for k, idx := range b.seenKeys {
		if idx > i {
			b.seenKeys[k] = idx - 1
		}
	}
}
