// Package messenger defines the Messenger contract (spec §4.3, §6): a
// pluggable peer transport offering best-effort unicast and broadcast
// with at-most-once delivery and no cross-peer ordering guarantee.
package messenger

import (
	"github.com/sure2web3/hotstuff2-sub000/types"
)

// PayloadKind identifies the typed payload carried by an Envelope.
type PayloadKind int

const (
	PayloadProposal PayloadKind = iota
	PayloadVote
	PayloadTimeout
	PayloadNewView
	PayloadFastCommit
	PayloadHeartbeat
	PayloadAck
)

// Envelope is the logical wire message from spec §6: every message
// carries a monotonically-unique sender-local id, sender, recipient (or
// broadcast), a timestamp, and a typed payload.
type Envelope struct {
	SeqNo       uint64
	SenderID    types.NodeID
	RecipientID types.NodeID // ignored for broadcast
	Broadcast   bool
	TimestampMS uint64
	Kind        PayloadKind
	Payload     any
}

// ProposalPayload carries a proposed block plus its justification.
type ProposalPayload struct {
	Block        *types.Block
	JustifyingQC *types.QuorumCertificate
	View         types.View
}

// VotePayload carries a vote or fast-commit vote (FastPath distinguishes).
type VotePayload struct {
	Vote types.Vote
}

// TimeoutPayload carries a TimeoutMessage.
type TimeoutPayload struct {
	Timeout types.TimeoutMessage
}

// NewViewPayload carries a NewViewMessage.
type NewViewPayload struct {
	NewView types.NewViewMessage
}

// Messenger is the contract consumed by the consensus core (spec §4.3).
// Implementations are best-effort: delivery is at-most-once per call, no
// ordering is guaranteed across peers, and per-peer FIFO is NOT assumed.
type Messenger interface {
	Broadcast(msg Envelope) error
	Send(peer types.NodeID, msg Envelope) error
	ConnectedPeers() []types.NodeID
}

// Inbound is satisfied by any consumer that wants delivered envelopes;
// the consensus core's dispatcher is the canonical Inbound.
type Inbound interface {
	Deliver(msg Envelope)
}
