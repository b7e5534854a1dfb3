package pacemaker_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sure2web3/hotstuff2-sub000/pacemaker"
	"github.com/sure2web3/hotstuff2-sub000/types"
)

func membership(n int) *types.Membership {
	members := make([]types.Member, n)
	for i := range members {
		members[i] = types.Member{ID: types.NodeID(i)}
	}
	return types.NewMembership(uint64((n-1)/3), members)
}

func TestLeaderRotationIsRoundRobinByID(t *testing.T) {
	pm := pacemaker.New(pacemaker.Params{BaseTimeout: time.Second, Multiplier: 2, MaxTimeout: time.Minute}, membership(4))
	require.Equal(t, types.NodeID(0), pm.LeaderOf(0))
	require.Equal(t, types.NodeID(1), pm.LeaderOf(1))
	require.Equal(t, types.NodeID(0), pm.LeaderOf(4))
}

func TestExponentialBackoffCapsAtMax(t *testing.T) {
	pm := pacemaker.New(pacemaker.Params{
		BaseTimeout: 100 * time.Millisecond,
		Multiplier:  2,
		MaxTimeout:  500 * time.Millisecond,
	}, membership(4))

	start := pm.NextDeadline()
	require.WithinDuration(t, time.Now().Add(100*time.Millisecond), start, 50*time.Millisecond)

	for i := 0; i < 10; i++ {
		pm.EnterView(types.View(i+1), false)
	}
	deadline := pm.NextDeadline()
	require.LessOrEqual(t, deadline.Sub(time.Now()), 500*time.Millisecond+50*time.Millisecond)
}

func TestOnCommitResetsBackoff(t *testing.T) {
	pm := pacemaker.New(pacemaker.Params{BaseTimeout: 100 * time.Millisecond, Multiplier: 4, MaxTimeout: time.Hour}, membership(4))
	pm.EnterView(1, false)
	pm.EnterView(2, false) // two consecutive failures, timeout now 1600ms
	pm.OnCommit()
	pm.EnterView(3, true)
	deadline := pm.NextDeadline()
	require.WithinDuration(t, time.Now().Add(100*time.Millisecond), deadline, 50*time.Millisecond)
}

func TestCollectTimeoutFormsQuorum(t *testing.T) {
	pm := pacemaker.New(pacemaker.Params{BaseTimeout: time.Second, Multiplier: 2, MaxTimeout: time.Minute}, membership(4))

	_, done := pm.CollectTimeout(&types.TimeoutMessage{View: 1, VoterID: 0})
	require.False(t, done)
	_, done = pm.CollectTimeout(&types.TimeoutMessage{View: 1, VoterID: 1})
	require.False(t, done)
	votes, done := pm.CollectTimeout(&types.TimeoutMessage{View: 1, VoterID: 2})
	require.True(t, done)
	require.Len(t, votes, 3)
}
