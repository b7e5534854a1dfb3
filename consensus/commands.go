package consensus

import "github.com/sure2web3/hotstuff2-sub000/types"

// Command is a value-typed notification the core emits upward to its
// host (a CLI, a test harness, a higher-level application). The core
// never calls back into the host synchronously from inside a handler;
// commands are appended to an in-memory list and flushed to OnCommand
// after the triggering envelope/tick finishes processing, so a host
// callback can never re-enter the single-writer event loop.
type Command interface{ isCommand() }

// EmitVote reports that the core cast a vote (or fast-path vote) and
// sent it to the next leader. Hosts that want wire-level visibility
// (metrics, tracing) observe votes here instead of hooking Messenger.
type EmitVote struct {
	Vote types.Vote
}

// AdvanceView reports a view change, whether from a commit or a timeout.
type AdvanceView struct {
	View    types.View
	Timeout bool
}

// Commit reports a newly committed block.
type Commit struct {
	Height    types.Height
	BlockHash types.Hash
	FastPath  bool
}

// RequestStateSync reports that a message referenced a height beyond the
// pipeline's admission window: the node has fallen too far behind to
// catch up through ordinary consensus traffic and needs an out-of-band
// state transfer, per spec §9's resolution of the corresponding Open
// Question. Catching up is out of scope here; the host decides how.
type RequestStateSync struct {
	Height types.Height
}

func (EmitVote) isCommand()         {}
func (AdvanceView) isCommand()      {}
func (Commit) isCommand()           {}
func (RequestStateSync) isCommand() {}
