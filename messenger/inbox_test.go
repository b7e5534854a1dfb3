package messenger_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sure2web3/hotstuff2-sub000/messenger"
)

func TestInboxDropsNonConsensusFirst(t *testing.T) {
	box := messenger.NewInbox(2)
	require.True(t, box.Push(messenger.Envelope{Kind: messenger.PayloadHeartbeat}))
	require.True(t, box.Push(messenger.Envelope{Kind: messenger.PayloadVote, Payload: messenger.VotePayload{}}))

	// Inbox full; pushing another message (an ack) should evict the
	// heartbeat, the oldest non-consensus entry, not the vote.
	require.True(t, box.Push(messenger.Envelope{Kind: messenger.PayloadAck}))

	items := box.Drain()
	require.Len(t, items, 2)
	for _, it := range items {
		require.NotEqual(t, messenger.PayloadHeartbeat, it.Kind)
	}
}

func TestInboxDropsOldestDuplicateConsensusNext(t *testing.T) {
	box := messenger.NewInbox(1)
	v1 := messenger.Envelope{Kind: messenger.PayloadVote, SenderID: 1, Payload: messenger.VotePayload{}}
	require.True(t, box.Push(v1))

	// Same {view, type, sender} (both zero-value view) should evict the
	// old one rather than blocking.
	v2 := messenger.Envelope{Kind: messenger.PayloadVote, SenderID: 1, Payload: messenger.VotePayload{}}
	require.True(t, box.Push(v2))
	require.Equal(t, 1, box.Len())
}

func TestInboxAppliesFlowControlWhenNothingEvictable(t *testing.T) {
	box := messenger.NewInbox(1)
	require.True(t, box.Push(messenger.Envelope{Kind: messenger.PayloadVote, SenderID: 1, Payload: messenger.VotePayload{}}))

	// Different sender => not a duplicate, and the queue holds only
	// consensus traffic, so there's nothing to evict.
	ok := box.Push(messenger.Envelope{Kind: messenger.PayloadVote, SenderID: 2, Payload: messenger.VotePayload{}})
	require.False(t, ok)
}
