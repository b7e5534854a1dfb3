package types

import "sort"

// Member is a fixed participant of the epoch's membership set.
type Member struct {
	ID        NodeID
	Address   string
	PublicKey []byte
}

// Membership is the fixed (for the lifetime of an epoch) set of
// participants, plus the Byzantine-tolerance parameter f (n = 3f+1).
type Membership struct {
	F       uint64
	members []Member
}

// NewMembership builds a Membership, sorting by numeric id so that leader
// rotation is a pure function of view number independent of iteration
// order (ties never occur since ids are unique, but sorting also makes
// the schedule reproducible across nodes built from an unordered config).
func NewMembership(f uint64, members []Member) *Membership {
	sorted := make([]Member, len(members))
	copy(sorted, members)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return &Membership{F: f, members: sorted}
}

// N returns the total membership size (3f+1).
func (m *Membership) N() int { return len(m.members) }

// Quorum returns the vote/signature threshold 2f+1.
func (m *Membership) Quorum() int { return int(2*m.F + 1) }

// Members returns the canonical, id-sorted membership slice. Callers must
// not mutate it.
func (m *Membership) Members() []Member { return m.members }

// Leader returns the deterministic leader of view v: a round-robin over
// the canonical id-sorted permutation, leader(v) = sorted[v mod n].
func (m *Membership) Leader(v View) NodeID {
	n := len(m.members)
	if n == 0 {
		return 0
	}
	return m.members[uint64(v)%uint64(n)].ID
}

// Contains reports whether id is a member of the fixed set.
func (m *Membership) Contains(id NodeID) bool {
	for _, mm := range m.members {
		if mm.ID == id {
			return true
		}
	}
	return false
}

// PublicKey returns the registered public key for id, if any.
func (m *Membership) PublicKey(id NodeID) ([]byte, bool) {
	for _, mm := range m.members {
		if mm.ID == id {
			return mm.PublicKey, true
		}
	}
	return nil, false
}

// ValidSignerSet reports whether signers contains >= quorum distinct,
// known member ids.
func (m *Membership) ValidSignerSet(signers []NodeID) bool {
	seen := make(map[NodeID]struct{}, len(signers))
	for _, s := range signers {
		if !m.Contains(s) {
			return false
		}
		seen[s] = struct{}{}
	}
	return len(seen) >= m.Quorum()
}
