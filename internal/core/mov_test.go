package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMoVProfile_RallyCloseGameWeightsNearOne(t *testing.T) {
	p := MoVProfileFor(SportSquash)
	w := p.Weight([]Game{{ScoreA: 11, ScoreB: 9}})
	require.GreaterOrEqual(t, w, p.MinWeight)
	require.LessOrEqual(t, w, p.MaxWeight)
}

func TestMoVProfile_RallyBlowoutWeightsAtMax(t *testing.T) {
	p := MoVProfileFor(SportBadminton)
	w := p.Weight([]Game{{ScoreA: 21, ScoreB: 2}, {ScoreA: 21, ScoreB: 1}})
	require.Equal(t, p.MaxWeight, w)
}

func TestMoVProfile_SetStyleStraightSetsWeightsHigherThanDecider(t *testing.T) {
	p := MoVProfileFor(SportTennis)
	straight := p.Weight([]Game{{ScoreA: 6, ScoreB: 2}, {ScoreA: 6, ScoreB: 3}})
	decider := p.Weight([]Game{{ScoreA: 6, ScoreB: 4}, {ScoreA: 4, ScoreB: 6}, {ScoreA: 7, ScoreB: 6}})
	require.Greater(t, straight, decider)
}

func TestMoVProfile_NoGamesReturnsNeutralWeight(t *testing.T) {
	p := MoVProfileFor(SportPickleball)
	require.Equal(t, 1.0, p.Weight(nil))
}

func TestClampAndScale(t *testing.T) {
	require.Equal(t, 1.0, clamp(-5, 1, 10))
	require.Equal(t, 10.0, clamp(50, 1, 10))
	require.Equal(t, 5.0, clamp(5, 1, 10))

	require.InDelta(t, 0.5, scale(5, 0, 10, 0, 1), 1e-9)
	require.Equal(t, 0.0, scale(5, 10, 10, 0, 1))
}
