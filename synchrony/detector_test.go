package synchrony_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sure2web3/hotstuff2-sub000/synchrony"
	"github.com/sure2web3/hotstuff2-sub000/types"
)

func TestResponsivePeersDriveSynchronyBelief(t *testing.T) {
	d := synchrony.New(synchrony.DefaultParams(), 3)

	for i := 0; i < 15; i++ {
		d.RecordRTT(types.NodeID(1), 10*time.Millisecond, 100)
		d.RecordRTT(types.NodeID(2), 10*time.Millisecond, 100)
		d.RecordRTT(types.NodeID(3), 10*time.Millisecond, 100)
	}

	require.True(t, d.IsNetworkSynchronous())
	require.InDelta(t, 0.9, d.Confidence(), 1e-9)
}

func TestHighJitterDemotesToAsynchronous(t *testing.T) {
	d := synchrony.New(synchrony.DefaultParams(), 3)

	jitter := []time.Duration{1 * time.Millisecond, 200 * time.Millisecond}
	for i := 0; i < 15; i++ {
		d.RecordRTT(types.NodeID(1), jitter[i%2], 100)
		d.RecordRTT(types.NodeID(2), jitter[i%2], 100)
		d.RecordRTT(types.NodeID(3), jitter[i%2], 100)
	}

	require.False(t, d.IsNetworkSynchronous())
}

func TestTooFewSamplesMeansNotResponsive(t *testing.T) {
	d := synchrony.New(synchrony.DefaultParams(), 3)
	d.RecordRTT(types.NodeID(1), 10*time.Millisecond, 100)

	require.False(t, d.IsNetworkSynchronous())
}

func TestEstimatedDelayWithNoSamplesIsMaxDelay(t *testing.T) {
	params := synchrony.DefaultParams()
	d := synchrony.New(params, 3)
	require.Equal(t, params.MaxDelay, d.EstimatedDelay(512))
}
