package core

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

type memPlayers struct {
	states map[string]*PlayerState
}

func newMemPlayers() *memPlayers {
	return &memPlayers{states: map[string]*PlayerState{}}
}

func (m *memPlayers) seed(id string, mu, sigma float64, matches int32, sex Sex) {
	m.states[id] = &PlayerState{PlayerID: id, Mu: mu, Sigma: sigma, MatchesCount: matches, Sex: sex}
}

func (m *memPlayers) GetPlayerState(playerID string) (*PlayerState, error) {
	if st, ok := m.states[playerID]; ok {
		return st, nil
	}
	st := &PlayerState{PlayerID: playerID, Mu: 1500, Sigma: 350, Sex: SexU}
	m.states[playerID] = st
	return st, nil
}

type memPairs struct {
	states map[string]*PairState
}

func newMemPairs() *memPairs {
	return &memPairs{states: map[string]*PairState{}}
}

func (m *memPairs) GetPairState(pairKey string, players []string) (*PairState, error) {
	if st, ok := m.states[pairKey]; ok {
		return st, nil
	}
	st := &PairState{PairKey: pairKey, Players: append([]string(nil), players...)}
	m.states[pairKey] = st
	return st, nil
}

func TestPairKeyIsOrderInvariant(t *testing.T) {
	require.Equal(t, PairKey([]string{"b", "a"}), PairKey([]string{"a", "b"}))
}

// S1: singles expected win (§8) — favorite beats a much weaker opponent;
// the favorite still gains, the underdog loses the same amount, and both
// sigmas must stay within bounds.
func TestUpdateMatch_SinglesExpectedWin(t *testing.T) {
	params := DefaultParams()
	players := newMemPlayers()
	players.seed("fav", 1800, 100, 50, SexM)
	players.seed("dog", 1200, 100, 50, SexM)

	in := MatchInput{
		Sport:  SportSquash,
		Tier:   TierLeague,
		SideA:  []string{"fav"},
		SideB:  []string{"dog"},
		Games:  []Game{{ScoreA: 11, ScoreB: 5}, {ScoreA: 11, ScoreB: 7}},
		Winner: WinnerA,
	}

	result, err := UpdateMatch(params, in, players, nil)
	require.NoError(t, err)
	require.Len(t, result.PerPlayer, 2)
	require.GreaterOrEqual(t, result.WinProbability, 0.0)
	require.LessOrEqual(t, result.WinProbability, 1.0)
	require.Greater(t, result.WinProbability, 0.5, "favorite should be predicted to win")

	fav := result.PerPlayer[0]
	dog := result.PerPlayer[1]
	require.Greater(t, fav.MuAfter, fav.MuBefore, "favorite still gains on a predicted win")
	require.Less(t, dog.MuAfter, dog.MuBefore)
	require.InDelta(t, fav.Delta, -dog.Delta, 1e-9, "zero-sum team delta")

	for _, pr := range result.PerPlayer {
		require.GreaterOrEqual(t, pr.SigmaAfter, params.SigmaMin)
		require.LessOrEqual(t, pr.SigmaAfter, params.SigmaMax)
	}
}

// S2: upset (§8) — the underdog wins; the favorite loses rating, the
// underdog gains the same amount, and the team delta is non-zero.
func TestUpdateMatch_Upset(t *testing.T) {
	params := DefaultParams()
	players := newMemPlayers()
	players.seed("fav", 1800, 100, 50, SexM)
	players.seed("dog", 1200, 100, 50, SexM)

	in := MatchInput{
		Sport:  SportSquash,
		Tier:   TierLeague,
		SideA:  []string{"fav"},
		SideB:  []string{"dog"},
		Games:  []Game{{ScoreA: 5, ScoreB: 11}, {ScoreA: 7, ScoreB: 11}},
		Winner: WinnerB,
	}

	result, err := UpdateMatch(params, in, players, nil)
	require.NoError(t, err)

	fav := result.PerPlayer[0]
	dog := result.PerPlayer[1]
	require.Less(t, fav.MuAfter, fav.MuBefore, "favorite loses rating on an upset loss")
	require.Greater(t, dog.MuAfter, dog.MuBefore)
	require.InDelta(t, fav.Delta, -dog.Delta, 1e-9)

	// the upset moves ratings: the team delta is non-zero.
	require.Greater(t, math.Abs(result.TeamDelta), 0.0)
}

// Zero-sum invariant (§8) holds across singles and doubles, for any mix
// of tiers, MoV and rookie states.
func TestUpdateMatch_ZeroSumTeamDelta(t *testing.T) {
	params := DefaultParams()

	cases := []MatchInput{
		{
			Sport: SportBadminton, Tier: TierSanctioned,
			SideA: []string{"a1", "a2"}, SideB: []string{"b1", "b2"},
			Games:  []Game{{ScoreA: 21, ScoreB: 15}, {ScoreA: 21, ScoreB: 18}},
			Winner: WinnerA,
		},
		{
			Sport: SportTennis, Tier: TierSocial,
			SideA: []string{"c1"}, SideB: []string{"d1"},
			Games:  []Game{{ScoreA: 6, ScoreB: 4}, {ScoreA: 3, ScoreB: 6}, {ScoreA: 6, ScoreB: 2}},
			Winner: WinnerA,
		},
	}

	for i, in := range cases {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			players := newMemPlayers()
			pairs := newMemPairs()
			result, err := UpdateMatch(params, in, players, pairs)
			require.NoError(t, err)

			var sum float64
			for _, pr := range result.PerPlayer {
				sum += pr.Delta
			}
			require.InDelta(t, 0, sum, 1e-9)
		})
	}
}

// Synergy activation threshold (§8 invariant): below activationMatches,
// gamma and delta stay exactly zero regardless of outcome.
func TestApplySynergy_ActivationThreshold(t *testing.T) {
	params := DefaultParams()
	players := newMemPlayers()
	pairs := newMemPairs()

	in := MatchInput{
		Sport:  SportBadminton,
		Tier:   TierLeague,
		SideA:  []string{"a1", "a2"},
		SideB:  []string{"b1", "b2"},
		Games:  []Game{{ScoreA: 21, ScoreB: 10}, {ScoreA: 21, ScoreB: 12}},
		Winner: WinnerA,
	}

	for i := 0; i < int(params.Synergy.ActivationMatches)-1; i++ {
		result, err := UpdateMatch(params, in, players, pairs)
		require.NoError(t, err)
		for _, pu := range result.PairUpdates {
			require.False(t, pu.Activated)
			require.Equal(t, 0.0, pu.GammaAfter)
			require.Equal(t, 0.0, pu.Delta)
		}
	}

	result, err := UpdateMatch(params, in, players, pairs)
	require.NoError(t, err)
	for _, pu := range result.PairUpdates {
		require.True(t, pu.Activated)
	}
}

// A pair that loses while favored should see a negative gamma delta (§9
// worked example), once activated.
func TestApplySynergy_LosingFavoriteGoesNegative(t *testing.T) {
	params := DefaultParams()
	players := newMemPlayers()
	players.seed("a1", 1700, 100, 50, SexM)
	players.seed("a2", 1700, 100, 50, SexM)
	players.seed("b1", 1300, 100, 50, SexM)
	players.seed("b2", 1300, 100, 50, SexM)
	pairs := newMemPairs()

	in := MatchInput{
		Sport:  SportBadminton,
		Tier:   TierLeague,
		SideA:  []string{"a1", "a2"},
		SideB:  []string{"b1", "b2"},
		Games:  []Game{{ScoreA: 15, ScoreB: 21}, {ScoreA: 18, ScoreB: 21}},
		Winner: WinnerB,
	}

	// warm up past the activation threshold with the same favored-A outcome
	// so side A's pair activates, then flip the result on the activating match.
	warm := in
	warm.Winner = WinnerA
	warm.Games = []Game{{ScoreA: 21, ScoreB: 10}, {ScoreA: 21, ScoreB: 12}}
	for i := 0; i < int(params.Synergy.ActivationMatches)-1; i++ {
		_, err := UpdateMatch(params, warm, players, pairs)
		require.NoError(t, err)
	}

	result, err := UpdateMatch(params, in, players, pairs)
	require.NoError(t, err)
	require.Len(t, result.PairUpdates, 2)
	sideAUpdate := result.PairUpdates[0]
	require.True(t, sideAUpdate.Activated)
	require.Less(t, sideAUpdate.Delta, 0.0, "favored pair losing should see gamma fall")
}

func TestUpdateMatch_WinProbabilityBounded(t *testing.T) {
	params := DefaultParams()
	players := newMemPlayers()
	players.seed("a", 2200, 350, 0, SexU)
	players.seed("b", 800, 30, 500, SexU)

	in := MatchInput{
		Sport:  SportPickleball,
		Tier:   TierDefault,
		SideA:  []string{"a"},
		SideB:  []string{"b"},
		Winner: WinnerA,
	}

	result, err := UpdateMatch(params, in, players, nil)
	require.NoError(t, err)
	require.GreaterOrEqual(t, result.WinProbability, 0.0)
	require.LessOrEqual(t, result.WinProbability, 1.0)
}

func TestUpdateMatch_RookieBoostRaisesK(t *testing.T) {
	params := DefaultParams()

	rookiePlayers := newMemPlayers()
	rookiePlayers.seed("r1", 1500, 350, 0, SexU)
	rookiePlayers.seed("r2", 1500, 350, 0, SexU)

	vetPlayers := newMemPlayers()
	vetPlayers.seed("r1", 1500, 350, 50, SexU)
	vetPlayers.seed("r2", 1500, 350, 50, SexU)

	in := MatchInput{
		Sport:  SportSquash,
		Tier:   TierLeague,
		SideA:  []string{"r1"},
		SideB:  []string{"r2"},
		Winner: WinnerA,
	}

	rookieResult, err := UpdateMatch(params, in, rookiePlayers, nil)
	require.NoError(t, err)
	vetResult, err := UpdateMatch(params, in, vetPlayers, nil)
	require.NoError(t, err)

	require.Greater(t, math.Abs(rookieResult.TeamDelta), math.Abs(vetResult.TeamDelta))
}

func TestOutcome_TieFavorsSideA(t *testing.T) {
	in := MatchInput{
		Games: []Game{{ScoreA: 11, ScoreB: 11}},
	}
	require.Equal(t, 1.0, outcome(in))
}

func TestSexCounts_Add(t *testing.T) {
	c := SexCounts{}
	c.add(SexM)
	c.add(SexM)
	c.add(SexF)
	require.Equal(t, 2, c[SexM])
	require.Equal(t, 1, c[SexF])
	require.Equal(t, 0, c[SexX])
}
