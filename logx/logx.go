// Package logx wraps github.com/luxfi/log.Logger the way
// _examples/luxfi-consensus/log/{noop,nolog}.go does: a no-op logger for
// tests, a structured logger for production, so the consensus core never
// depends on a concrete logging backend.
package logx

import (
	"github.com/luxfi/log"
)

// Logger is the structured logging contract used throughout this module.
// It is exactly github.com/luxfi/log.Logger, re-exported so call sites
// import logx rather than the backend directly.
type Logger = log.Logger

// NoOp returns a Logger that discards everything, for unit tests and
// simulation harnesses that don't want log noise.
func NoOp() Logger {
	return log.NewNoOpLogger()
}
