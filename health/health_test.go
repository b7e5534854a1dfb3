package health_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/sure2web3/hotstuff2-sub000/health"
)

func TestMonitorStartsHealthy(t *testing.T) {
	m := health.NewMonitor(prometheus.NewRegistry())
	require.Equal(t, health.Healthy, m.State())
}

func TestMonitorRecordsCommitsAndViewChanges(t *testing.T) {
	m := health.NewMonitor(prometheus.NewRegistry())
	m.RecordCommit(false)
	m.RecordCommit(true)
	m.RecordViewChange()
	m.RecordViolation("double_voting")
	m.SetView(7)
	m.SetCommittedHeight(3)

	// No public accessors for the underlying counters beyond state; this
	// test's real assertion is that none of the above panics against a
	// freshly registered collector set.
	require.Equal(t, health.Healthy, m.State())
}

func TestMonitorStateTransitions(t *testing.T) {
	m := health.NewMonitor(prometheus.NewRegistry())
	m.SetState(health.Degraded)
	require.Equal(t, health.Degraded, m.State())
	m.SetState(health.Halted)
	require.Equal(t, health.Halted, m.State())
}

func TestStateString(t *testing.T) {
	require.Equal(t, "healthy", health.Healthy.String())
	require.Equal(t, "degraded", health.Degraded.String())
	require.Equal(t, "halted", health.Halted.String())
}
