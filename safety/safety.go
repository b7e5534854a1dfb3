// Package safety implements the HotStuff-2 SafetyEngine (spec §4.6): the
// vote rule, the lock rule, and the three-chain commit predicate, plus
// the bounded violation diagnostic buffer from
// _examples/original_source/src/consensus/safety.rs.
package safety

import (
	"github.com/sure2web3/hotstuff2-sub000/types"
)

// maxViolations bounds the recent-violations ring buffer, matching the
// Rust reference's `safety_violations.len() > 100` eviction.
const maxViolations = 100

// ViolationKind classifies a recorded safety violation. These are
// diagnostics only — spec §4.6 is explicit that they never occur during
// honest execution and are never protocol errors.
type ViolationKind int

const (
	DoubleVoting ViolationKind = iota
	VotingWithoutLock
	InvalidChainExtension
	ConflictingLock
)

// Violation is one recorded diagnostic event.
type Violation struct {
	Kind        ViolationKind
	View        types.View
	BlockHash   types.Hash
	Description string
}

// Stats summarizes the engine's diagnostic state for the health surface.
type Stats struct {
	TotalViolations   int
	DoubleVoting      int
	LockViolations    int
	ChainViolations   int
	LastVotedView     types.View
	HasLock           bool
}

// ChainView lets the safety engine answer "is B's parent chain known" and
// "does B extend ancestorHash" without owning block storage itself; the
// consensus core supplies an implementation backed by BlockStore +
// Pipeline.
type ChainView interface {
	// GetBlock returns the block for hash, if known (persisted or still
	// in-flight in the pipeline).
	GetBlock(hash types.Hash) (*types.Block, bool)

	// Extends reports whether block's ancestor chain (walking ParentHash)
	// reaches ancestorHash.
	Extends(block *types.Block, ancestorHash types.Hash) bool
}

// Engine is the SafetyEngine contract from spec §4.6.
type Engine struct {
	lockedQC      *types.QuorumCertificate
	lastVotedView types.View
	violations    []Violation
}

// New constructs an Engine with no lock and last_voted_view = 0.
func New() *Engine {
	return &Engine{}
}

// LockedQC returns the currently locked QC, or nil if none.
func (e *Engine) LockedQC() *types.QuorumCertificate { return e.lockedQC }

// LastVotedView returns the highest view the engine has voted in.
func (e *Engine) LastVotedView() types.View { return e.lastVotedView }

// SafeToVote implements the vote rule from spec §4.6: a node votes for
// block B at view v iff all of:
//  1. v > last_voted_view (no double voting).
//  2. B's parent chain is known.
//  3. B extends locked_qc.block through its parent chain, OR B carries a
//     justifyingQC with justifyingQC.view > locked_qc.view.
func (e *Engine) SafeToVote(block *types.Block, view types.View, justifyingQC *types.QuorumCertificate, chain ChainView) bool {
	if view <= e.lastVotedView {
		e.record(Violation{
			Kind:      DoubleVoting,
			View:      view,
			BlockHash: block.HashValue(),
			Description: "attempted to vote at a view not greater than last_voted_view",
		})
		return false
	}

	if !block.IsGenesis() {
		if _, known := chain.GetBlock(block.ParentHash); !known {
			e.record(Violation{
				Kind:      InvalidChainExtension,
				View:      view,
				BlockHash: block.HashValue(),
				Description: "parent chain not known",
			})
			return false
		}
	}

	if e.lockedQC != nil {
		extendsLock := chain.Extends(block, e.lockedQC.BlockHash)
		higherJustification := justifyingQC != nil && justifyingQC.View > e.lockedQC.View
		if !extendsLock && !higherJustification {
			e.record(Violation{
				Kind:      VotingWithoutLock,
				View:      view,
				BlockHash: block.HashValue(),
				Description: "block neither extends the locked QC nor carries a higher justification",
			})
			return false
		}
	}

	return true
}

// RecordVote commits to having voted at view v. Callers must only invoke
// this after SafeToVote returned true for the same (block, view).
func (e *Engine) RecordVote(view types.View) {
	e.lastVotedView = view
}

// UpdateLock implements the lock rule: when a QC with a strictly higher
// view than the current lock (or no lock) is observed, it becomes the
// new lock. Attempting to move the lock backward is recorded as a
// ConflictingLock diagnostic and rejected (not a protocol error).
func (e *Engine) UpdateLock(qc *types.QuorumCertificate) bool {
	if e.lockedQC != nil && qc.View <= e.lockedQC.View {
		e.record(Violation{
			Kind:      ConflictingLock,
			View:      qc.View,
			BlockHash: qc.BlockHash,
			Description: "attempted to move locked_qc backward",
		})
		return false
	}
	e.lockedQC = qc
	return true
}

// CanCommit implements the three-chain commit rule: given the
// chronologically last three QCs on the high-QC chain, if their views
// are consecutive, the block of the first (q1) — and transitively its
// uncommitted ancestors — can commit.
func (e *Engine) CanCommit(qcChain []*types.QuorumCertificate) (types.Hash, bool) {
	n := len(qcChain)
	if n < 3 {
		return types.Hash{}, false
	}
	q1, q2, q3 := qcChain[n-3], qcChain[n-2], qcChain[n-1]
	if q2.View == q1.View+1 && q3.View == q2.View+1 {
		return q1.BlockHash, true
	}
	return types.Hash{}, false
}

// Violations returns a copy of the recorded diagnostic buffer, oldest
// first.
func (e *Engine) Violations() []Violation {
	out := make([]Violation, len(e.violations))
	copy(out, e.violations)
	return out
}

// StatsSnapshot summarizes the engine's current diagnostic state.
func (e *Engine) StatsSnapshot() Stats {
	s := Stats{
		LastVotedView: e.lastVotedView,
		HasLock:       e.lockedQC != nil,
	}
	for _, v := range e.violations {
		s.TotalViolations++
		switch v.Kind {
		case DoubleVoting:
			s.DoubleVoting++
		case VotingWithoutLock, ConflictingLock:
			s.LockViolations++
		case InvalidChainExtension:
			s.ChainViolations++
		}
	}
	return s
}

func (e *Engine) record(v Violation) {
	e.violations = append(e.violations, v)
	if len(e.violations) > maxViolations {
		e.violations = e.violations[len(e.violations)-maxViolations:]
	}
}
