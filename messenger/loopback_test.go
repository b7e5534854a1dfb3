package messenger_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sure2web3/hotstuff2-sub000/messenger"
	"github.com/sure2web3/hotstuff2-sub000/types"
)

type recordingInbox struct {
	mu       sync.Mutex
	received []messenger.Envelope
}

func (r *recordingInbox) Deliver(msg messenger.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.received = append(r.received, msg)
}

func (r *recordingInbox) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.received)
}

func TestLoopbackBroadcastReachesAllButSelf(t *testing.T) {
	hub := messenger.NewLoopbackHub()
	inboxes := make(map[types.NodeID]*recordingInbox)
	links := make(map[types.NodeID]*messenger.Loopback)
	for i := types.NodeID(0); i < 4; i++ {
		inboxes[i] = &recordingInbox{}
		links[i] = hub.NewLoopback(i, inboxes[i])
	}

	require.NoError(t, links[0].Broadcast(messenger.Envelope{Kind: messenger.PayloadHeartbeat}))

	require.Equal(t, 0, inboxes[0].count())
	for i := types.NodeID(1); i < 4; i++ {
		require.Equal(t, 1, inboxes[i].count())
	}
}

func TestLoopbackPartitionDropsTraffic(t *testing.T) {
	hub := messenger.NewLoopbackHub()
	inboxes := make(map[types.NodeID]*recordingInbox)
	links := make(map[types.NodeID]*messenger.Loopback)
	for i := types.NodeID(0); i < 4; i++ {
		inboxes[i] = &recordingInbox{}
		links[i] = hub.NewLoopback(i, inboxes[i])
	}

	hub.Partition(0)
	require.NoError(t, links[0].Broadcast(messenger.Envelope{Kind: messenger.PayloadHeartbeat}))
	for i := types.NodeID(1); i < 4; i++ {
		require.Equal(t, 0, inboxes[i].count())
	}

	hub.Heal(0)
	require.NoError(t, links[0].Broadcast(messenger.Envelope{Kind: messenger.PayloadHeartbeat}))
	for i := types.NodeID(1); i < 4; i++ {
		require.Equal(t, 1, inboxes[i].count())
	}
}

func TestLoopbackSendIsUnicast(t *testing.T) {
	hub := messenger.NewLoopbackHub()
	inboxes := make(map[types.NodeID]*recordingInbox)
	links := make(map[types.NodeID]*messenger.Loopback)
	for i := types.NodeID(0); i < 4; i++ {
		inboxes[i] = &recordingInbox{}
		links[i] = hub.NewLoopback(i, inboxes[i])
	}

	require.NoError(t, links[0].Send(2, messenger.Envelope{Kind: messenger.PayloadAck}))
	require.Equal(t, 1, inboxes[2].count())
	require.Equal(t, 0, inboxes[1].count())
	require.Equal(t, 0, inboxes[3].count())
}
