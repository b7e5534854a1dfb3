// Package consensus wires the CryptoSigner, BlockStore, Messenger,
// TxPool, SynchronyDetector, SafetyEngine, Pacemaker, and Pipeline
// contracts (spec §4) into the ConsensusCore event loop (spec §4.9):
// single-writer dispatch of proposals, votes, timeouts, and new-view
// messages, driving the two-phase chained protocol and its fast path.
package consensus

import (
	"context"
	"math"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/sure2web3/hotstuff2-sub000/blockstore"
	"github.com/sure2web3/hotstuff2-sub000/config"
	"github.com/sure2web3/hotstuff2-sub000/crypto"
	"github.com/sure2web3/hotstuff2-sub000/health"
	"github.com/sure2web3/hotstuff2-sub000/logx"
	"github.com/sure2web3/hotstuff2-sub000/messenger"
	"github.com/sure2web3/hotstuff2-sub000/pacemaker"
	"github.com/sure2web3/hotstuff2-sub000/pipeline"
	"github.com/sure2web3/hotstuff2-sub000/safety"
	"github.com/sure2web3/hotstuff2-sub000/synchrony"
	"github.com/sure2web3/hotstuff2-sub000/txpool"
	"github.com/sure2web3/hotstuff2-sub000/types"
)

// Deps collects the external collaborators and configuration a Core
// needs. Every field is an interface or a value type owned by the host;
// the Core never constructs its own storage, transport, or signer.
type Deps struct {
	Self       types.NodeID
	Config     config.Config
	Membership *types.Membership
	Signer     crypto.Signer
	Store      blockstore.BlockStore
	Messenger  messenger.Messenger
	TxPool     *txpool.Pool
	Synchrony  *synchrony.Detector
	Health     *health.Monitor
	Logger     logx.Logger

	// OnCommand, if set, is invoked once per emitted Command after the
	// triggering envelope or tick has fully finished processing.
	OnCommand func(Command)
}

// Core is the ConsensusCore contract from spec §4.9. It owns
// SafetyEngine, Pacemaker, and Pipeline outright (no back-pointers from
// them to Core) and communicates upward only via Command values.
//
// Core is single-writer: Deliver only enqueues, and every state mutation
// happens inside Pump or HandleTimeoutTick, both intended to be called
// from one goroutine (the Run loop, or a test driving the core directly).
type Core struct {
	self       types.NodeID
	cfg        config.Config
	membership *types.Membership
	signer     crypto.Signer
	store      blockstore.BlockStore
	msgr       messenger.Messenger
	pool       *txpool.Pool
	sync       *synchrony.Detector
	health     *health.Monitor
	log        logx.Logger
	onCommand  func(Command)

	safety    *safety.Engine
	pacemaker *pacemaker.Pacemaker
	pipeline  *pipeline.Pipeline
	chain     *storeChainView

	inbox *messenger.Inbox
	wake  chan struct{}

	highQC          *types.QuorumCertificate
	committedHeight types.Height
	recentQCs       []*types.QuorumCertificate // ascending by height, trimmed to a small tail
	proposedViews   map[types.View]bool        // guards against proposing twice for one view

	pending []Command
}

// New constructs a Core and its owned SafetyEngine/Pacemaker/Pipeline.
// It does not start the event loop or propose the first block; call
// Start for that once the host has wired Deliver into its Messenger.
func New(d Deps) *Core {
	pm := pacemaker.New(pacemaker.Params{
		BaseTimeout:    time.Duration(d.Config.BaseTimeoutMS) * time.Millisecond,
		Multiplier:     d.Config.TimeoutMultiplier,
		MaxTimeout:     time.Duration(d.Config.BaseTimeoutMS) * time.Millisecond * 32,
		MaxViewChanges: d.Config.MaxViewChanges,
	}, d.Membership)

	pl := pipeline.New(d.Config.PipelineDepth)

	onCommand := d.OnCommand
	if onCommand == nil {
		onCommand = func(Command) {}
	}

	c := &Core{
		self:          d.Self,
		cfg:           d.Config,
		membership:    d.Membership,
		signer:        d.Signer,
		store:         d.Store,
		msgr:          d.Messenger,
		pool:          d.TxPool,
		sync:          d.Synchrony,
		health:        d.Health,
		log:           d.Logger,
		onCommand:     onCommand,
		safety:        safety.New(),
		pacemaker:     pm,
		pipeline:      pl,
		inbox:         messenger.NewInbox(1024),
		wake:          make(chan struct{}, 1),
		proposedViews: make(map[types.View]bool),
	}
	c.chain = &storeChainView{store: d.Store, pipeline: pl}
	return c
}

// genesisBlock is the fixed, implicitly-decided epoch root every node
// constructs identically at startup: height 0, zero parent, no
// transactions. Its QC carries no signatures — membership agreement on
// genesis is a configuration fact, not a protocol outcome.
func genesisBlock() *types.Block {
	return &types.Block{ParentHash: types.ZeroHash, Height: 0, ProposerID: 0, Timestamp: 0}
}

// Start persists genesis, seeds high_qc/committed_height from it, enters
// view 1, and proposes the first block if this node leads it.
func (c *Core) Start() {
	genesis := genesisBlock()
	genesisHash := genesis.HashValue()
	if err := c.store.Put(genesis); err != nil {
		c.log.Error("persist genesis block failed", "err", err)
	}

	qc0 := &types.QuorumCertificate{BlockHash: genesisHash, Height: 0, View: 0}
	c.highQC = qc0
	c.recentQCs = []*types.QuorumCertificate{qc0}
	c.committedHeight = 0

	c.pacemaker.EnterView(1, true)
	c.health.SetView(1)

	if c.pacemaker.Leader() == c.self {
		c.proposeBlock(qc0, nil)
	}
	c.flush()
}

// Deliver implements messenger.Inbound. It only enqueues msg into the
// bounded inbox and signals the event loop; all processing happens in
// Pump, preserving single-writer semantics even when Deliver is called
// concurrently from the transport.
func (c *Core) Deliver(msg messenger.Envelope) {
	c.inbox.Push(msg)
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Pump drains and dispatches every envelope currently queued. The Run
// loop calls this whenever woken; tests may call it directly after
// Deliver for fully deterministic, non-concurrent execution.
func (c *Core) Pump() {
	for _, e := range c.inbox.Drain() {
		c.dispatch(e)
	}
	c.flush()
}

// HandleTimeoutTick is invoked when the pacemaker's current deadline has
// elapsed: the node gives up on its current view, broadcasts a
// TimeoutMessage carrying its high_qc, and counts its own vote toward
// the timeout certificate.
func (c *Core) HandleTimeoutTick() {
	view := c.pacemaker.CurrentView()
	digest := types.TimeoutDigest(view, c.highQC.BlockHash, c.highQC.View)
	sig, err := c.signer.PartialSign(digest)
	if err != nil {
		c.log.Error("sign timeout failed", "err", err)
		return
	}
	msg := types.TimeoutMessage{View: view, VoterID: c.self, HighQC: c.highQC, PartialSig: sig}

	if err := c.msgr.Broadcast(messenger.Envelope{Kind: messenger.PayloadTimeout, Payload: messenger.TimeoutPayload{Timeout: msg}}); err != nil {
		c.log.Warn("broadcast timeout failed", "err", err)
	}
	c.handleTimeout(c.self, msg)
	c.flush()
}

// NextDeadline exposes the pacemaker's current view deadline so a host's
// Run loop can arm a single timer against it.
func (c *Core) NextDeadline() time.Time { return c.pacemaker.NextDeadline() }

// Run drives the event loop until ctx is cancelled: one timer armed
// against the pacemaker's deadline, one wake channel for delivered
// envelopes. No goroutine is spawned per timeout or per envelope; both
// paths fold into this single select, per spec §9's single-writer note.
func (c *Core) Run(ctx context.Context) error {
	timer := time.NewTimer(time.Until(c.NextDeadline()))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.wake:
			c.Pump()
		case <-timer.C:
			c.HandleTimeoutTick()
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(time.Until(c.NextDeadline()))
	}
}

func (c *Core) dispatch(e messenger.Envelope) {
	switch p := e.Payload.(type) {
	case messenger.ProposalPayload:
		c.handleProposal(e.SenderID, p)
	case messenger.VotePayload:
		c.handleVote(e.SenderID, p.Vote)
	case messenger.TimeoutPayload:
		c.handleTimeout(e.SenderID, p.Timeout)
	case messenger.NewViewPayload:
		c.handleNewView(e.SenderID, p.NewView)
	default:
		// Heartbeats/acks and anything not carrying consensus payload.
	}
}

// handleProposal implements spec §4.9 step 1: verify the sender is the
// expected leader, update high_qc from its justification, admit the block
// into the pipeline, and vote if the safety engine allows it.
func (c *Core) handleProposal(from types.NodeID, p messenger.ProposalPayload) {
	if p.View < c.pacemaker.CurrentView() {
		return // stale view, drop
	}
	if c.pacemaker.LeaderOf(p.View) != from {
		c.log.Warn("proposal from non-leader, dropping", "from", from, "view", p.View)
		return
	}

	// The justifying QC is observed before admission: it can complete a
	// three-chain and advance committed_height, which is what opens the
	// pipeline window for this block's height.
	if p.JustifyingQC != nil && crypto.VerifyQC(c.signer, c.membership, p.JustifyingQC) {
		c.observeQC(p.JustifyingQC)
	}

	block := p.Block
	stage, created := c.pipeline.Admit(block.Height, p.View, c.committedHeight)
	if stage == nil && !created {
		c.emit(RequestStateSync{Height: block.Height})
		return
	}
	if stage.Block != nil && stage.Block.HashValue() != block.HashValue() {
		// Equivocation: the leader proposed two different blocks for the
		// same height/view. The vote rule's last_voted_view guard already
		// prevents voting for both, but refuse to even overwrite the
		// first-seen block so the stage's vote tally can't straddle two
		// different hashes.
		c.log.Warn("dropping equivocating proposal", "from", from, "height", block.Height, "view", p.View)
		return
	}
	stage.Block = block
	stage.View = p.View

	if err := c.store.Put(block); err != nil {
		c.handleStoreErr(err)
		return
	}

	if c.pacemaker.CurrentView() < p.View {
		c.pacemaker.EnterView(p.View, true)
		c.health.SetView(uint64(p.View))
		c.emit(AdvanceView{View: p.View})
	}

	if !c.safety.SafeToVote(block, p.View, p.JustifyingQC, c.chain) {
		return
	}
	c.safety.RecordVote(p.View)
	c.castVote(block, p.View, false)

	if c.cfg.OptimisticMode && c.sync.IsNetworkSynchronous() && c.sync.Confidence() >= c.cfg.OptimisticThreshold {
		stage.Phase = pipeline.FastCommit
		c.castVote(block, p.View, true)
	}
}

// castVote signs and sends a vote (standard or fast-path) for block at
// view to the leader of the next view, per the chained protocol's
// "vote flows to the next proposer" pattern.
func (c *Core) castVote(block *types.Block, view types.View, fastPath bool) {
	blockHash := block.HashValue()
	digest := types.VoteDigest(view, blockHash)
	if fastPath {
		digest = types.FastCommitDigest(view, blockHash)
	}

	sig, err := c.signer.PartialSign(digest)
	if err != nil {
		c.log.Error("sign vote failed", "err", err)
		return
	}
	vote := types.Vote{BlockHash: blockHash, Height: block.Height, View: view, VoterID: c.self, PartialSig: sig, FastPath: fastPath}

	next := c.pacemaker.LeaderOf(view + 1)
	kind := messenger.PayloadVote
	if fastPath {
		kind = messenger.PayloadFastCommit
	}
	// A node may itself be the next leader; handle that case inline instead
	// of round-tripping through the transport, since Loopback.Send delivers
	// to self just like any other peer and would otherwise process this
	// vote twice.
	if next == c.self {
		c.handleVote(c.self, vote)
	} else if err := c.msgr.Send(next, messenger.Envelope{Kind: kind, Payload: messenger.VotePayload{Vote: vote}}); err != nil {
		c.log.Warn("send vote failed", "err", err)
	}
	c.emit(EmitVote{Vote: vote})
}

// handleVote accumulates a vote for its (height, view, path), forming
// and acting on a QuorumCertificate once quorum-many shares are held.
func (c *Core) handleVote(from types.NodeID, v types.Vote) {
	if !c.signer.VerifyPartial(c.voteDigest(v), v.PartialSig, v.VoterID) {
		c.log.Warn("dropping vote with invalid partial signature", "from", from)
		return
	}

	stage, created := c.pipeline.Admit(v.Height, v.View, c.committedHeight)
	if stage == nil && !created {
		c.emit(RequestStateSync{Height: v.Height})
		return
	}

	shares := stage.Votes
	threshold := c.membership.Quorum()
	if v.FastPath {
		shares = stage.FastVotes
		threshold = c.fastThreshold()
	}
	shares[v.VoterID] = crypto.PartialSig(v.PartialSig)

	if len(shares) < threshold {
		return
	}

	qc, err := crypto.BuildQC(c.signer, c.membership, v.Height, v.View, v.BlockHash, shares, v.FastPath)
	if err != nil {
		c.log.Warn("aggregate QC failed", "err", err)
		return
	}

	if v.FastPath {
		// Fast path: >= ceil(optimistic_threshold * n) fast-commit shares
		// justify an immediate commit, without waiting for the three-chain
		// rule — but only if the detector still reports synchrony at
		// aggregation time (spec §4.9 step 4, §8 fast-path equivalence). A
		// node still keeps running the slow path concurrently, so we fall
		// through to observeQC below rather than returning early.
		if c.sync.IsNetworkSynchronous() {
			c.commit(qc.Height, qc.BlockHash, true)
		}
	}
	c.observeQC(qc)
}

// fastThreshold is the minimum share count required to form a fast-commit
// QC: ceil(optimistic_threshold * n), which for any threshold in [2/3, 1]
// is at least the 2f+1 slow-path quorum (equal to it at exactly 2/3).
func (c *Core) fastThreshold() int {
	return int(math.Ceil(c.cfg.OptimisticThreshold * float64(c.membership.N())))
}

func (c *Core) voteDigest(v types.Vote) []byte {
	if v.FastPath {
		return types.FastCommitDigest(v.View, v.BlockHash)
	}
	return types.VoteDigest(v.View, v.BlockHash)
}

// observeQC records a newly formed or received QC: persists it, updates
// high_qc and the safety lock, tracks it for the three-chain rule, and
// proposes the next block if this node now leads the following view.
func (c *Core) observeQC(qc *types.QuorumCertificate) {
	if err := c.store.PutQC(qc.Height, qc); err != nil {
		c.handleStoreErr(err)
		return
	}
	if c.highQC == nil || qc.View > c.highQC.View {
		c.highQC = qc
	}
	if stage, ok := c.pipeline.Get(qc.Height); ok {
		stage.QC = qc
	}
	c.safety.UpdateLock(qc)
	c.appendRecentQC(qc)

	if hash, ok := c.safety.CanCommit(c.lastThreeQCs()); ok {
		height := c.recentQCs[len(c.recentQCs)-3].Height
		c.commitChain(height, hash)
	}

	nextView := qc.View + 1
	if c.pacemaker.LeaderOf(nextView) == c.self && !c.proposedViews[nextView] {
		c.pacemaker.EnterView(nextView, true)
		c.health.SetView(uint64(nextView))
		c.proposeBlock(qc, nil)
	}
}

// appendRecentQC keeps a small ascending-by-height tail of observed QCs,
// enough for the three-chain commit predicate.
func (c *Core) appendRecentQC(qc *types.QuorumCertificate) {
	c.recentQCs = append(c.recentQCs, qc)
	const keep = 8
	if len(c.recentQCs) > keep {
		c.recentQCs = c.recentQCs[len(c.recentQCs)-keep:]
	}
}

func (c *Core) lastThreeQCs() []*types.QuorumCertificate {
	n := len(c.recentQCs)
	if n < 3 {
		return c.recentQCs
	}
	return c.recentQCs[n-3:]
}

// commitChain commits height (identified by hash) and, transitively,
// every not-yet-committed ancestor of it, in strictly increasing height
// order, per spec §4.6. Ancestors are found by walking parent hashes
// backward from the three-chain's committed block until reaching the
// already-committed height, then committing forward from there.
func (c *Core) commitChain(height types.Height, hash types.Hash) {
	if height <= c.committedHeight {
		return
	}

	type step struct {
		height types.Height
		hash   types.Hash
	}
	var chain []step
	curHash := hash
	for h := height; h > c.committedHeight; h-- {
		chain = append(chain, step{height: h, hash: curHash})
		block, ok := c.chain.GetBlock(curHash)
		if !ok {
			break // missing ancestor: commit what we could resolve and stop
		}
		curHash = block.ParentHash
	}

	for i := len(chain) - 1; i >= 0; i-- {
		c.commit(chain[i].height, chain[i].hash, false)
	}
}

// commit finalizes height if it is new progress, pruning the pipeline
// and resetting the pacemaker's backoff.
func (c *Core) commit(height types.Height, hash types.Hash, fastPath bool) {
	if height <= c.committedHeight && !(height == 0 && c.committedHeight == 0) {
		return
	}
	if height != 0 {
		c.committedHeight = height
	}
	c.pipeline.PruneCommitted(height)
	c.pacemaker.OnCommit()
	c.health.RecordCommit(fastPath)
	c.health.SetCommittedHeight(uint64(c.committedHeight))
	c.persistChainState()
	c.emit(Commit{Height: height, BlockHash: hash, FastPath: fastPath})
}

// proposeBlock builds and broadcasts the next block, justified by qc,
// then immediately processes it locally so the leader votes for its own
// proposal like any replica. tc is accepted but not sent with the
// proposal.
func (c *Core) proposeBlock(qc *types.QuorumCertificate, tc *types.TimeoutCertificate) {
	view := c.pacemaker.CurrentView()
	if c.proposedViews[view] {
		return
	}
	c.proposedViews[view] = true

	batch := c.pool.NextBatch(c.cfg.TxPool.MaxBatchSize)
	txs := make([][]byte, len(batch))
	for i, tx := range batch {
		txs[i] = tx.Data
	}

	block := &types.Block{
		ParentHash:   qc.BlockHash,
		Height:       qc.Height + 1,
		ProposerID:   c.self,
		Transactions: txs,
		Timestamp:    types.Now(),
	}

	payload := messenger.ProposalPayload{Block: block, JustifyingQC: qc, View: view}
	if err := c.msgr.Broadcast(messenger.Envelope{Kind: messenger.PayloadProposal, Payload: payload}); err != nil {
		c.log.Warn("broadcast proposal failed", "err", err)
	}
	c.handleProposal(c.self, payload)
	_ = tc // carried for symmetry with handleNewView; TC itself isn't re-verified here
}

// handleTimeout folds a peer's (or our own) timeout vote into the
// pacemaker's per-view quorum tracker, forming a TimeoutCertificate and
// advancing the view once 2f+1 are collected.
func (c *Core) handleTimeout(from types.NodeID, msg types.TimeoutMessage) {
	if msg.View < c.pacemaker.CurrentView() {
		return
	}
	if !c.signer.VerifyPartial(types.TimeoutDigest(msg.View, msg.HighQC.BlockHash, msg.HighQC.View), msg.PartialSig, msg.VoterID) {
		c.log.Warn("dropping timeout with invalid partial signature", "from", from)
		return
	}

	votes, done := c.pacemaker.CollectTimeout(&msg)
	if !done {
		return
	}

	tc, err := crypto.BuildTimeoutCertificate(c.signer, c.membership, msg.View, votes)
	if err != nil {
		c.log.Warn("build timeout certificate failed", "err", err)
		return
	}
	c.health.RecordViewChange()

	if tc.HighestQC != nil && (c.highQC == nil || tc.HighestQC.View > c.highQC.View) {
		c.highQC = tc.HighestQC
	}

	nextView := msg.View + 1
	c.pacemaker.EnterView(nextView, false)
	c.health.SetView(uint64(nextView))
	c.abandonStaleStages(nextView)
	c.emit(AdvanceView{View: nextView, Timeout: true})

	if c.pacemaker.LeaderOf(nextView) == c.self && c.highQC != nil {
		c.proposeBlock(c.highQC, tc)
	}
}

// handleNewView lets a single replica hand its justification directly to
// the new leader (an alternative to waiting on the broadcast timeout
// quorum, e.g. when only the leader needs convincing because the rest of
// the committee is still responsive). It only acts when this node is the
// named leader: it adopts the justifying QC if it verifies and is newer
// than what's already held, advances to the message's view if that is
// ahead, and then proposes if it leads the current view.
func (c *Core) handleNewView(from types.NodeID, msg types.NewViewMessage) {
	if msg.LeaderID != c.self {
		return
	}
	if msg.JustifyingQC != nil && (c.highQC == nil || msg.JustifyingQC.View > c.highQC.View) {
		if crypto.VerifyQC(c.signer, c.membership, msg.JustifyingQC) {
			c.highQC = msg.JustifyingQC
		}
	}
	if c.pacemaker.CurrentView() < msg.View {
		c.pacemaker.EnterView(msg.View, false)
		c.health.SetView(uint64(msg.View))
	}
	if c.highQC != nil && c.pacemaker.LeaderOf(c.pacemaker.CurrentView()) == c.self {
		c.proposeBlock(c.highQC, msg.TimeoutCert)
	}
}

// abandonStaleStages drops any uncommitted pipeline stage whose proposal
// belonged to a view older than newView: after a timeout, the height it
// occupied is up for re-proposal under the new leader, and the old
// (never-justified) block must not block that height's stage back in.
func (c *Core) abandonStaleStages(newView types.View) {
	for _, h := range c.pipeline.Heights() {
		stage, ok := c.pipeline.Get(h)
		if ok && stage.View < newView && stage.QC == nil {
			c.pipeline.Abandon(h)
		}
	}
}

func (c *Core) persistChainState() {
	state := &types.ChainState{
		LockedQC:        c.safety.LockedQC(),
		HighQC:          c.highQC,
		LastVotedView:   c.safety.LastVotedView(),
		CommittedHeight: c.committedHeight,
	}
	if err := c.store.PutChainState(state); err != nil {
		c.handleStoreErr(err)
	}
}

func (c *Core) handleStoreErr(err error) {
	if errors.Is(err, types.ErrCorruption) {
		c.health.SetState(health.Halted)
		c.log.Error("fatal storage corruption, halting", "err", err)
		return
	}
	c.health.SetState(health.Degraded)
	c.log.Warn("transient storage error", "err", err)
}

func (c *Core) emit(cmd Command) {
	c.pending = append(c.pending, cmd)
}

func (c *Core) flush() {
	pending := c.pending
	c.pending = nil
	for _, cmd := range pending {
		c.onCommand(cmd)
	}
}

// SetMessenger binds the transport after construction, for callers that
// must register the Core as a messenger.Inbound (e.g. with
// Hub.NewLoopback) before a Messenger handle exists to hand back to it.
func (c *Core) SetMessenger(m messenger.Messenger) { c.msgr = m }

// CommittedHeight reports the highest committed height.
func (c *Core) CommittedHeight() types.Height { return c.committedHeight }

// HighQC returns the highest QC the core has observed.
func (c *Core) HighQC() *types.QuorumCertificate { return c.highQC }

// View reports the pacemaker's current view.
func (c *Core) View() types.View { return c.pacemaker.CurrentView() }

// PipelineDepth reports the number of non-committed stages in flight.
func (c *Core) PipelineDepth() int { return c.pipeline.Len() }
