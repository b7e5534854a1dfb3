package types

import "github.com/cockroachdb/errors"

// Error taxonomy shared across packages, per the propagation policy in
// spec §7: transient errors are retried/recovered by the caller, fatal
// errors halt the node.
var (
	// ErrInsufficientShares is returned by CryptoSigner.Aggregate when
	// fewer than the quorum threshold of partial signatures were supplied.
	ErrInsufficientShares = errors.New("crypto: insufficient partial signatures")

	// ErrInvalidShare is returned by CryptoSigner.Aggregate when one of
	// the supplied partial signatures fails individual verification.
	ErrInvalidShare = errors.New("crypto: invalid partial signature")

	// ErrUnavailable marks a transient storage failure; the core marks
	// its health degraded and drops the message being handled, without
	// retrying it.
	ErrUnavailable = errors.New("storage: unavailable")

	// ErrCorruption marks a permanent storage failure; fatal, the node
	// halts to preserve safety.
	ErrCorruption = errors.New("storage: corruption detected")

	// ErrPoolFull is returned by TxPool.Submit when the pool is at
	// capacity.
	ErrPoolFull = errors.New("txpool: full")

	// ErrConflictingLock is a diagnostic (never a protocol error): an
	// attempt was made to move locked_qc backward.
	ErrConflictingLock = errors.New("safety: conflicting lock")

	// ErrUnsafeToVote indicates the vote rule rejected a proposal.
	ErrUnsafeToVote = errors.New("safety: unsafe to vote")

	// ErrConfigInvalid marks a fatal startup configuration error.
	ErrConfigInvalid = errors.New("config: invalid")
)
