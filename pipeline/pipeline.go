// Package pipeline implements the Pipeline contract (spec §4.8): concurrent
// per-height stage tracking, bounded admission past committed_height, and
// pruning on commit or view-change abandonment.
package pipeline

import (
	"sort"
	"sync"
	"time"

	"github.com/sure2web3/hotstuff2-sub000/crypto"
	"github.com/sure2web3/hotstuff2-sub000/types"
)

// Phase is a stage's position in the two-phase chained protocol.
type Phase int

const (
	Propose Phase = iota
	PreCommit
	Commit
	FastCommit
)

// Stage is a PipelineStage from spec §3, keyed by height.
type Stage struct {
	Height    types.Height
	View      types.View
	Phase     Phase
	Block     *types.Block
	Votes     map[types.NodeID]crypto.PartialSig
	FastVotes map[types.NodeID]crypto.PartialSig
	QC        *types.QuorumCertificate
	CreatedAt time.Time
}

// Pipeline is the contract from spec §4.8. It is single-writer state,
// owned exclusively by the consensus core's event loop (spec §5).
type Pipeline struct {
	mu     sync.Mutex // guards nothing concurrent by design; documents the single-writer invariant for -race
	depth  types.Height
	stages map[types.Height]*Stage
}

// New constructs an empty Pipeline with the given maximum depth D.
func New(depth types.Height) *Pipeline {
	return &Pipeline{depth: depth, stages: make(map[types.Height]*Stage)}
}

// Admit creates a stage for height h if none exists and h is within the
// bound committedHeight+D. Returns (stage, true) on fresh admission,
// (existing, false) if a stage already exists, and (nil, false) if
// admission is refused by the depth bound.
func (p *Pipeline) Admit(h types.Height, view types.View, committedHeight types.Height) (*Stage, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.stages[h]; ok {
		return existing, false
	}
	if h > committedHeight+p.depth {
		return nil, false
	}

	s := &Stage{
		Height:    h,
		View:      view,
		Phase:     Propose,
		Votes:     make(map[types.NodeID]crypto.PartialSig),
		FastVotes: make(map[types.NodeID]crypto.PartialSig),
		CreatedAt: time.Now(),
	}
	p.stages[h] = s
	return s, true
}

// Get returns the stage for height h, if any.
func (p *Pipeline) Get(h types.Height) (*Stage, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.stages[h]
	return s, ok
}

// PruneCommitted drops every stage with height <= h, on commit of height h.
func (p *Pipeline) PruneCommitted(h types.Height) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for height := range p.stages {
		if height <= h {
			delete(p.stages, height)
		}
	}
}

// Abandon drops the stage for height h because its block cannot be
// justified under the new lock following a view change.
func (p *Pipeline) Abandon(h types.Height) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.stages, h)
}

// Len reports the number of non-committed stages currently tracked — the
// quantity spec §8's pipeline-bound property constrains to <= depth.
func (p *Pipeline) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.stages)
}

// Depth returns the configured maximum pipeline depth D.
func (p *Pipeline) Depth() types.Height { return p.depth }

// Heights returns the currently tracked heights in ascending order.
func (p *Pipeline) Heights() []types.Height {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.Height, 0, len(p.stages))
	for h := range p.stages {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
