// Package config defines the recognized configuration options (spec §6)
// and validates them at startup, the way
// _examples/luxfi-consensus/config/{builder,presets}.go structures named
// presets plus a validation pass.
package config

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/sure2web3/hotstuff2-sub000/types"
)

// TxPoolConfig configures the transaction pool (spec §6).
type TxPoolConfig struct {
	MaxBatchSize  int
	BatchTimeout  time.Duration
	MaxPoolSize   int
	FeePriority   bool // false = FIFO batch order
}

// SynchronyConfig configures the synchrony detector (spec §6).
type SynchronyConfig struct {
	WindowSize          int
	MinSamples          int
	MaxDelayMS          int
	MaxVarianceMS       int
	CheckIntervalMS     int
	ConfidenceThreshold float64
}

// Config is the full recognized configuration set from spec §6.
type Config struct {
	NodeID     types.NodeID
	Membership []types.Member
	F          uint64

	BaseTimeoutMS    int
	TimeoutMultiplier float64
	MaxViewChanges   uint64

	TxPool TxPoolConfig

	PipelineDepth types.Height

	OptimisticMode      bool
	OptimisticThreshold float64

	Synchrony SynchronyConfig
}

// Default returns development-friendly defaults, analogous to
// _examples/luxfi-consensus/config/presets.go's DefaultParams.
func Default() Config {
	return Config{
		F:                 1,
		BaseTimeoutMS:     1000,
		TimeoutMultiplier: 2,
		MaxViewChanges:    0,
		TxPool: TxPoolConfig{
			MaxBatchSize: 100,
			BatchTimeout: 50 * time.Millisecond,
			MaxPoolSize:  10_000,
		},
		PipelineDepth:       3,
		OptimisticMode:      true,
		OptimisticThreshold: 0.8,
		Synchrony: SynchronyConfig{
			WindowSize:          50,
			MinSamples:          10,
			MaxDelayMS:          100,
			MaxVarianceMS:       50,
			CheckIntervalMS:     1000,
			ConfidenceThreshold: 0.8,
		},
	}
}

// Mainnet returns a more conservative preset for production deployment.
func Mainnet() Config {
	c := Default()
	c.BaseTimeoutMS = 2000
	c.MaxViewChanges = 1000
	c.OptimisticThreshold = 0.9
	return c
}

// Local returns a fast-iterating preset for local development/simulation.
func Local() Config {
	c := Default()
	c.BaseTimeoutMS = 200
	c.TxPool.MaxPoolSize = 1000
	return c
}

// Validate checks internal consistency, fatal at startup per spec §7.
func (c Config) Validate() error {
	n := len(c.Membership)
	if uint64(n) != 3*c.F+1 {
		return errors.Mark(errors.Newf("membership size %d inconsistent with f=%d (need n=3f+1)", n, c.F), types.ErrConfigInvalid)
	}
	if c.BaseTimeoutMS <= 0 {
		return errors.Mark(errors.New("base_timeout_ms must be positive"), types.ErrConfigInvalid)
	}
	if c.TimeoutMultiplier <= 1 {
		return errors.Mark(errors.New("timeout_multiplier must be > 1"), types.ErrConfigInvalid)
	}
	if c.TxPool.MaxBatchSize <= 0 || c.TxPool.MaxPoolSize <= 0 {
		return errors.Mark(errors.New("tx pool sizes must be positive"), types.ErrConfigInvalid)
	}
	if c.PipelineDepth == 0 {
		return errors.Mark(errors.New("pipeline_depth must be >= 1"), types.ErrConfigInvalid)
	}
	if c.OptimisticThreshold < 2.0/3.0 || c.OptimisticThreshold > 1.0 {
		return errors.Mark(errors.New("optimistic_threshold must be in [2/3, 1]"), types.ErrConfigInvalid)
	}
	seen := make(map[types.NodeID]struct{}, n)
	foundSelf := false
	for _, m := range c.Membership {
		if _, dup := seen[m.ID]; dup {
			return errors.Mark(errors.Newf("duplicate member id %d", m.ID), types.ErrConfigInvalid)
		}
		seen[m.ID] = struct{}{}
		if m.ID == c.NodeID {
			foundSelf = true
		}
	}
	if !foundSelf {
		return errors.Mark(errors.Newf("node_id %d not present in membership", c.NodeID), types.ErrConfigInvalid)
	}
	return nil
}

// BuildMembership builds the canonical types.Membership from the configured
// node set.
func (c Config) BuildMembership() *types.Membership {
	return types.NewMembership(c.F, c.Membership)
}
