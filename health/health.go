// Package health exposes the node health surface from spec §7:
// healthy | degraded | halted state, plus structured violation/commit
// counters on a github.com/prometheus/client_golang registry — the same
// metrics library _examples/luxfi-consensus/go.mod depends on directly.
package health

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// State is the node's externally observable health.
type State int

const (
	Healthy State = iota
	Degraded
	Halted
)

func (s State) String() string {
	switch s {
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	case Halted:
		return "halted"
	default:
		return "unknown"
	}
}

// Monitor tracks node health and publishes Prometheus metrics.
type Monitor struct {
	mu    sync.RWMutex
	state State

	violations     *prometheus.CounterVec
	viewChanges    prometheus.Counter
	commits        prometheus.Counter
	fastPathCommits prometheus.Counter
	currentView    prometheus.Gauge
	committedHeight prometheus.Gauge
}

// NewMonitor constructs a Monitor and registers its metrics with reg. Pass
// prometheus.NewRegistry() in tests to avoid polluting the global registry.
func NewMonitor(reg prometheus.Registerer) *Monitor {
	m := &Monitor{
		state: Healthy,
		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hotstuff2_safety_violations_total",
			Help: "Count of recorded safety-engine diagnostic violations by kind.",
		}, []string{"kind"}),
		viewChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hotstuff2_view_changes_total",
			Help: "Count of view advances due to timeout.",
		}),
		commits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hotstuff2_commits_total",
			Help: "Count of committed blocks, via either the three-chain rule or the fast path.",
		}),
		fastPathCommits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hotstuff2_fast_path_commits_total",
			Help: "Count of blocks committed via the optimistic fast path.",
		}),
		currentView: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hotstuff2_current_view",
			Help: "The node's current view number.",
		}),
		committedHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hotstuff2_committed_height",
			Help: "The node's highest committed height.",
		}),
	}

	reg.MustRegister(m.violations, m.viewChanges, m.commits, m.fastPathCommits, m.currentView, m.committedHeight)
	return m
}

// State returns the current health state.
func (m *Monitor) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// SetState transitions the monitor's health state. Halted is terminal in
// practice (the process exits), but the setter itself has no such
// restriction so tests can exercise transitions freely.
func (m *Monitor) SetState(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
}

// RecordViolation increments the violations counter for kind.
func (m *Monitor) RecordViolation(kind string) {
	m.violations.WithLabelValues(kind).Inc()
}

// RecordViewChange increments the view-change counter.
func (m *Monitor) RecordViewChange() { m.viewChanges.Inc() }

// RecordCommit increments the commit counter(s); fastPath selects whether
// the fast-path counter is also incremented.
func (m *Monitor) RecordCommit(fastPath bool) {
	m.commits.Inc()
	if fastPath {
		m.fastPathCommits.Inc()
	}
}

// SetView updates the current-view gauge.
func (m *Monitor) SetView(v uint64) { m.currentView.Set(float64(v)) }

// SetCommittedHeight updates the committed-height gauge.
func (m *Monitor) SetCommittedHeight(h uint64) { m.committedHeight.Set(float64(h)) }
