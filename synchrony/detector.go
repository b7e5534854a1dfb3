// Package synchrony implements the SynchronyDetector contract (spec
// §4.5): a continually-updated belief about whether the network is
// currently synchronous enough to justify the fast path, driven by a
// rolling window of per-peer RTT samples.
//
// Formulas are grounded in
// _examples/original_source/src/consensus/synchrony.rs's
// ProductionSynchronyDetector; mean/variance arithmetic is delegated to
// github.com/montanaflynn/stats rather than hand-rolled.
package synchrony

import (
	"math"
	"sync"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/sure2web3/hotstuff2-sub000/types"
)

// Params configures the detector (spec §6 "synchrony" config block).
type Params struct {
	WindowSize          int
	MinSamples          int
	MaxDelay            time.Duration
	MaxVariance         time.Duration
	CheckInterval       time.Duration
	ConfidenceThreshold float64
}

// DefaultParams mirrors the Rust reference's SynchronyParameters::default().
func DefaultParams() Params {
	return Params{
		WindowSize:          50,
		MinSamples:          10,
		MaxDelay:            100 * time.Millisecond,
		MaxVariance:         50 * time.Millisecond,
		CheckInterval:       time.Second,
		ConfidenceThreshold: 0.8,
	}
}

type sample struct {
	rtt       time.Duration
	size      int
	observed  time.Time
}

type peerStats struct {
	samples     []sample
	mean        time.Duration
	stddev      time.Duration
	lastUpdated time.Time
	responsive  bool
}

// Detector is the SynchronyDetector contract from spec §4.5.
type Detector struct {
	params      Params
	totalPeers  int
	now         func() time.Time

	mu    sync.RWMutex
	peers map[types.NodeID]*peerStats
}

// New constructs a Detector for a membership of totalPeers (excluding
// self), tracking RTT to each.
func New(params Params, totalPeers int) *Detector {
	return &Detector{
		params:     params,
		totalPeers: totalPeers,
		now:        time.Now,
		peers:      make(map[types.NodeID]*peerStats),
	}
}

// RecordRTT ingests a round-trip-time observation for peer. Safe for
// concurrent use; owns its own lock per spec §5 (TxPool/SynchronyDetector
// are internally synchronized).
func (d *Detector) RecordRTT(peer types.NodeID, rtt time.Duration, msgSize int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ps, ok := d.peers[peer]
	if !ok {
		ps = &peerStats{}
		d.peers[peer] = ps
	}

	ps.samples = append(ps.samples, sample{rtt: rtt, size: msgSize, observed: d.now()})
	if len(ps.samples) > d.params.WindowSize {
		ps.samples = ps.samples[len(ps.samples)-d.params.WindowSize:]
	}
	ps.lastUpdated = d.now()
	d.recalculate(ps)
}

func (d *Detector) recalculate(ps *peerStats) {
	if len(ps.samples) == 0 {
		ps.responsive = false
		return
	}

	millis := make([]float64, len(ps.samples))
	for i, s := range ps.samples {
		millis[i] = float64(s.rtt.Milliseconds())
	}

	mean, _ := stats.Mean(millis)
	var sd float64
	if len(millis) > 1 {
		sd, _ = stats.StandardDeviation(millis)
	}

	ps.mean = time.Duration(mean) * time.Millisecond
	ps.stddev = time.Duration(sd) * time.Millisecond
	ps.responsive = len(ps.samples) >= d.params.MinSamples &&
		ps.mean <= d.params.MaxDelay &&
		ps.stddev <= d.params.MaxVariance &&
		d.now().Sub(ps.lastUpdated) <= 2*d.params.CheckInterval
}

// IsNetworkSynchronous reports whether the core should consider the
// fast path justified right now, per spec §4.5's global belief
// computation.
func (d *Detector) IsNetworkSynchronous() bool {
	sync, _, _ := d.evaluate()
	return sync
}

// Confidence reports the detector's confidence in [0,1] that the network
// is currently synchronous.
func (d *Detector) Confidence() float64 {
	_, confidence, _ := d.evaluate()
	return confidence
}

// evaluate recomputes the global belief; returns (is_synchronous,
// confidence, responsive_fraction).
func (d *Detector) evaluate() (bool, float64, float64) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.totalPeers == 0 {
		return false, 0, 0
	}

	responsiveCount := 0
	var means, stddevs []float64
	for _, ps := range d.peers {
		if ps.responsive && d.now().Sub(ps.lastUpdated) <= 2*d.params.CheckInterval {
			responsiveCount++
		}
		if len(ps.samples) > 0 {
			means = append(means, float64(ps.mean.Milliseconds()))
			stddevs = append(stddevs, float64(ps.stddev.Milliseconds()))
		}
	}

	responsiveFraction := float64(responsiveCount) / float64(d.totalPeers)
	requiredResponsive := int(math.Ceil(2.0 / 3.0 * float64(d.totalPeers)))

	aggMean, _ := stats.Mean(means)
	aggStddev, _ := stats.Mean(stddevs)

	isSynchronous := responsiveCount >= requiredResponsive &&
		time.Duration(aggMean)*time.Millisecond <= d.params.MaxDelay &&
		time.Duration(aggStddev)*time.Millisecond <= d.params.MaxVariance

	confidenceFactor := 0.1
	if isSynchronous {
		confidenceFactor = 0.9
	}
	confidence := responsiveFraction * confidenceFactor

	return isSynchronous, confidence, responsiveFraction
}

// EstimatedDelay estimates the network delay for a message of msgSize
// bytes, weighting samples younger than 10s at 2x (spec §4.5).
func (d *Detector) EstimatedDelay(msgSize int) time.Duration {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if len(d.peers) == 0 {
		return d.params.MaxDelay
	}

	var totalWeighted, totalWeight float64
	for _, ps := range d.peers {
		for _, s := range ps.samples {
			sizeFactor := 1.0
			if s.size > 0 {
				sizeFactor = math.Sqrt(float64(msgSize) / float64(s.size))
			}
			estimated := float64(s.rtt.Milliseconds()) * sizeFactor

			weight := 1.0
			if d.now().Sub(s.observed) < 10*time.Second {
				weight = 2.0
			}
			totalWeighted += estimated * weight
			totalWeight += weight
		}
	}

	if totalWeight == 0 {
		return d.params.MaxDelay
	}
	return time.Duration(totalWeighted/totalWeight) * time.Millisecond
}
