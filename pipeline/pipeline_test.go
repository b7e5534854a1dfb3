package pipeline_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sure2web3/hotstuff2-sub000/pipeline"
	"github.com/sure2web3/hotstuff2-sub000/types"
)

func TestAdmitRefusesBeyondDepth(t *testing.T) {
	p := pipeline.New(3)

	_, created := p.Admit(1, 0, 0)
	require.True(t, created)
	_, created = p.Admit(2, 0, 0)
	require.True(t, created)
	_, created = p.Admit(3, 0, 0)
	require.True(t, created)

	// committed_height=0, depth=3 => height 4 is refused.
	stage, created := p.Admit(4, 0, 0)
	require.False(t, created)
	require.Nil(t, stage)
	require.Equal(t, 3, p.Len())
}

func TestAdmitIsIdempotentPerHeight(t *testing.T) {
	p := pipeline.New(3)
	first, created := p.Admit(1, 0, 0)
	require.True(t, created)

	second, created := p.Admit(1, 5, 0)
	require.False(t, created)
	require.Same(t, first, second)
}

func TestPruneCommittedDropsLowerHeights(t *testing.T) {
	p := pipeline.New(3)
	p.Admit(1, 0, 0)
	p.Admit(2, 0, 0)
	p.Admit(3, 0, 0)

	p.PruneCommitted(1)

	require.Equal(t, []types.Height{2, 3}, p.Heights())
}

func TestAbandonDropsSingleStage(t *testing.T) {
	p := pipeline.New(3)
	p.Admit(1, 0, 0)
	p.Admit(2, 0, 0)

	p.Abandon(1)
	require.Equal(t, []types.Height{2}, p.Heights())
}

func TestDepthBoundAfterCommitAdvances(t *testing.T) {
	p := pipeline.New(2)
	p.Admit(1, 0, 0)
	p.Admit(2, 0, 0)

	_, created := p.Admit(3, 0, 0)
	require.False(t, created)

	p.PruneCommitted(1)
	stage, created := p.Admit(3, 0, 1)
	require.True(t, created)
	require.NotNil(t, stage)
}
