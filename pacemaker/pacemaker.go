// Package pacemaker implements the HotStuff-2 Pacemaker (spec §4.7): view
// tracking, exponential-backoff timeouts, timeout-certificate formation,
// and deterministic leader rotation.
//
// Per the design note in spec §9, the event loop is single-writer and
// collapses "async timer task per view" into a single polled deadline:
// the pacemaker exposes NextDeadline(), polled by the core loop's one
// timer, instead of spawning a cancellable task per timeout the way
// _examples/original_source/src/timer/timeout_manager.rs does with
// tokio::select!.
package pacemaker

import (
	"time"

	"github.com/sure2web3/hotstuff2-sub000/types"
)

// Params configures timeout scheduling (spec §6).
type Params struct {
	BaseTimeout      time.Duration
	Multiplier       float64
	MaxTimeout       time.Duration
	MaxViewChanges   uint64 // carried from configuration; the pacemaker does not enforce it
}

// Pacemaker is the contract from spec §4.7.
type Pacemaker struct {
	params     Params
	membership *types.Membership
	now        func() time.Time

	currentView      types.View
	viewStart        time.Time
	consecutiveFails uint64 // k: consecutive unsuccessful views since last commit

	timeoutVotes map[types.View]map[types.NodeID]*types.TimeoutMessage
}

// New constructs a Pacemaker starting at view 0.
func New(params Params, membership *types.Membership) *Pacemaker {
	p := &Pacemaker{
		params:       params,
		membership:   membership,
		now:          time.Now,
		timeoutVotes: make(map[types.View]map[types.NodeID]*types.TimeoutMessage),
	}
	p.viewStart = p.now()
	return p
}

// CurrentView returns the pacemaker's current view number.
func (p *Pacemaker) CurrentView() types.View { return p.currentView }

// Leader returns the deterministic leader of the current view.
func (p *Pacemaker) Leader() types.NodeID { return p.membership.Leader(p.currentView) }

// LeaderOf returns the deterministic leader of an arbitrary view.
func (p *Pacemaker) LeaderOf(v types.View) types.NodeID { return p.membership.Leader(v) }

// timeoutDuration computes base * multiplier^k, capped at MaxTimeout,
// per spec §4.7's exponential backoff schedule.
func (p *Pacemaker) timeoutDuration() time.Duration {
	d := float64(p.params.BaseTimeout)
	for i := uint64(0); i < p.consecutiveFails; i++ {
		d *= p.params.Multiplier
		if time.Duration(d) >= p.params.MaxTimeout {
			return p.params.MaxTimeout
		}
	}
	result := time.Duration(d)
	if result > p.params.MaxTimeout {
		return p.params.MaxTimeout
	}
	return result
}

// NextDeadline returns the wall-clock time at which the current view
// times out. The core loop's single timer polls this rather than the
// pacemaker spawning its own goroutine, preserving single-writer
// semantics over ChainState/Safety/Pipeline.
func (p *Pacemaker) NextDeadline() time.Time {
	return p.viewStart.Add(p.timeoutDuration())
}

// EnterView advances to a new view (on AdvanceView, NewView adoption, or
// startup), resetting the deadline. success indicates whether the
// previous view ended in a commit (resets backoff) or a timeout
// (increments it).
func (p *Pacemaker) EnterView(v types.View, success bool) {
	if v <= p.currentView {
		return
	}
	p.currentView = v
	p.viewStart = p.now()
	if success {
		p.consecutiveFails = 0
	} else {
		p.consecutiveFails++
	}
	delete(p.timeoutVotes, v-1)
}

// OnCommit resets the backoff counter: progress was made, so the next
// view starts at the base timeout again.
func (p *Pacemaker) OnCommit() {
	p.consecutiveFails = 0
}

// CollectTimeout accumulates a TimeoutMessage for its view; returns true
// once it holds quorum-many for that view (the caller should then form a
// TimeoutCertificate via the crypto package and call EnterView(v+1, false)).
func (p *Pacemaker) CollectTimeout(msg *types.TimeoutMessage) (map[types.NodeID]*types.TimeoutMessage, bool) {
	votes, ok := p.timeoutVotes[msg.View]
	if !ok {
		votes = make(map[types.NodeID]*types.TimeoutMessage)
		p.timeoutVotes[msg.View] = votes
	}
	votes[msg.VoterID] = msg
	return votes, len(votes) >= p.membership.Quorum()
}
