package core

import (
	"math"
	"sort"
	"strings"
)

// WinnerSide names which side won a match, when supplied explicitly
// rather than derived from game scores (§4.1).
type WinnerSide string

const (
	WinnerUnspecified WinnerSide = ""
	WinnerA           WinnerSide = "A"
	WinnerB           WinnerSide = "B"
)

// PlayerState is the mutable rating state the engine reads and updates
// in place (§9 Design Notes: "mutations to the provided state views").
type PlayerState struct {
	PlayerID     string
	Mu           float64
	Sigma        float64
	MatchesCount int32
	Sex          Sex
}

// PairState is the mutable synergy state for a doubles pair (§4.2).
type PairState struct {
	PairKey string
	Players []string
	Gamma   float64
	Matches int32
}

// PlayerStateFetcher resolves player rating state for the engine (§9:
// "the engine takes fetchers as capability objects"). Implementations
// are expected to lazily seed first-touch players with the prior.
type PlayerStateFetcher interface {
	GetPlayerState(playerID string) (*PlayerState, error)
}

// PairStateFetcher resolves pair synergy state; may be nil when the
// caller knows no match in the batch is doubles.
type PairStateFetcher interface {
	GetPairState(pairKey string, players []string) (*PairState, error)
}

// MatchInput is the pure input to the match engine (§4.1).
type MatchInput struct {
	Sport      Sport
	Discipline string
	Tier       Tier
	SideA      []string
	SideB      []string
	Games      []Game
	MoVWeight  *float64
	Winner     WinnerSide
}

// PerPlayerResult reports one player's rating movement (§4.1 Result contract).
type PerPlayerResult struct {
	PlayerID    string
	MuBefore    float64
	MuAfter     float64
	Delta       float64
	SigmaBefore float64
	SigmaAfter  float64
	WinProbPre  float64
}

// PairUpdate reports a doubles pair's synergy movement for this match,
// emitted regardless of whether the pair activated (§4.1, §4.2).
type PairUpdate struct {
	PairKey     string
	Players     []string
	GammaBefore float64
	GammaAfter  float64
	Delta       float64
	Activated   bool
	Matches     int32
}

// SexOffsetSignal is the raw material the engine hands to the
// sex-offset controller (§4.1, §4.3); persistence is C7's job.
type SexOffsetSignal struct {
	Surprise float64
	CountsA  SexCounts
	CountsB  SexCounts
}

// MatchResult is the engine's full output (§4.1 Result contract).
type MatchResult struct {
	PerPlayer      []PerPlayerResult
	PairUpdates    []PairUpdate
	TeamDelta      float64
	WinProbability float64
	SexOffset      *SexOffsetSignal
}

// PairKey sorts and joins player ids to derive a stable pair identity
// (§3, §9 Design Notes: "never derive from object identity or insertion order").
func PairKey(playerIDs []string) string {
	sorted := append([]string(nil), playerIDs...)
	sort.Strings(sorted)
	return strings.Join(sorted, "|")
}

// UpdateMatch is the pure, deterministic Match Engine (C4). It mutates
// the player/pair states returned by the fetchers and reports the
// resulting deltas; it never fails on its own — missing players are the
// caller's (Match Recorder's) error to surface (§4.1 Failure modes).
func UpdateMatch(params Params, in MatchInput, players PlayerStateFetcher, pairs PairStateFetcher) (*MatchResult, error) {
	beta := BetaFor(in.Sport)

	statesA, err := fetchAll(players, in.SideA)
	if err != nil {
		return nil, err
	}
	statesB, err := fetchAll(players, in.SideB)
	if err != nil {
		return nil, err
	}

	var pairA, pairB *PairState
	if pairs != nil {
		if len(in.SideA) >= 2 {
			pairA, err = pairs.GetPairState(PairKey(in.SideA), in.SideA)
			if err != nil {
				return nil, err
			}
		}
		if len(in.SideB) >= 2 {
			pairB, err = pairs.GetPairState(PairKey(in.SideB), in.SideB)
			if err != nil {
				return nil, err
			}
		}
	}

	gammaA, gammaB := 0.0, 0.0
	if pairA != nil {
		gammaA = pairA.Gamma
	}
	if pairB != nil {
		gammaB = pairB.Gamma
	}

	rA := sumMu(statesA) + gammaA
	rB := sumMu(statesB) + gammaB

	pA := StdNormalCDF((rA - rB) / (math.Sqrt2 * beta))

	y := outcome(in)
	surprise := y - pA

	weight := in.MoVWeight
	var w float64
	if weight != nil {
		w = *weight
	} else {
		w = MoVProfileFor(in.Sport).Weight(in.Games)
	}
	wt := math.Min(params.MultiplierCap, w*params.TierWeight(in.Tier))

	sigmaRefSq := params.SigmaRef * params.SigmaRef
	uA := meanSigmaSq(statesA)
	uB := meanSigmaSq(statesB)
	u := math.Sqrt((uA + uB) / (2 * sigmaRefSq))

	k := clamp(params.K0*u, params.KMin, params.KMax)
	k *= math.Max(rookieFactor(params, statesA), rookieFactor(params, statesB))

	m := 1 + params.MismatchLambda*(2*pA-1)*(1-2*y)

	teamDelta := m * k * surprise * wt

	perPlayer := make([]PerPlayerResult, 0, len(statesA)+len(statesB))
	perPlayer = append(perPlayer, applySide(params, statesA, teamDelta/float64(len(statesA)), pA, surprise)...)
	perPlayer = append(perPlayer, applySide(params, statesB, -teamDelta/float64(len(statesB)), pA, surprise)...)

	var pairUpdates []PairUpdate
	if pairA != nil {
		pairUpdates = append(pairUpdates, applySynergy(params, pairA, y == 1, pA))
	}
	if pairB != nil {
		pairUpdates = append(pairUpdates, applySynergy(params, pairB, y == 0, 1-pA))
	}

	countsA, countsB := SexCounts{}, SexCounts{}
	for _, s := range statesA {
		countsA.add(s.Sex)
	}
	for _, s := range statesB {
		countsB.add(s.Sex)
	}

	return &MatchResult{
		PerPlayer:      perPlayer,
		PairUpdates:    pairUpdates,
		TeamDelta:      teamDelta,
		WinProbability: pA,
		SexOffset: &SexOffsetSignal{
			Surprise: surprise,
			CountsA:  countsA,
			CountsB:  countsB,
		},
	}, nil
}

func fetchAll(players PlayerStateFetcher, ids []string) ([]*PlayerState, error) {
	states := make([]*PlayerState, 0, len(ids))
	for _, id := range ids {
		st, err := players.GetPlayerState(id)
		if err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	return states, nil
}

func sumMu(states []*PlayerState) float64 {
	var sum float64
	for _, s := range states {
		sum += s.Mu
	}
	return sum
}

func meanSigmaSq(states []*PlayerState) float64 {
	if len(states) == 0 {
		return 0
	}
	var sum float64
	for _, s := range states {
		sum += s.Sigma * s.Sigma
	}
	return sum / float64(len(states))
}

func rookieFactor(params Params, states []*PlayerState) float64 {
	for _, s := range states {
		if s.MatchesCount < int32(params.RookieBoostMatches) {
			return params.RookieKMultiplier
		}
	}
	return 1.0
}

// outcome derives y ∈ {1,0} from the explicit winner when present, else
// a majority of games; ties favor side A (§9 Open Questions, resolved).
func outcome(in MatchInput) float64 {
	switch in.Winner {
	case WinnerA:
		return 1
	case WinnerB:
		return 0
	}

	winsA, winsB := 0, 0
	for _, g := range in.Games {
		if g.ScoreA > g.ScoreB {
			winsA++
		} else if g.ScoreB > g.ScoreA {
			winsB++
		}
	}
	if winsB > winsA {
		return 0
	}
	return 1 // tie or A majority: favors A
}

func applySide(params Params, states []*PlayerState, deltaPerPlayer, pA, surprise float64) []PerPlayerResult {
	results := make([]PerPlayerResult, 0, len(states))
	info := 4 * pA * (1 - pA)

	for _, s := range states {
		muBefore := s.Mu
		sigmaBefore := s.Sigma

		s.Mu = muBefore + deltaPerPlayer

		sigmaSq := sigmaBefore * sigmaBefore
		varPrime := sigmaSq - params.EtaDown*info*sigmaSq
		if math.Abs(surprise) > params.Threshold {
			varPrime += params.EtaUp * (math.Abs(surprise) - params.Threshold) * sigmaSq
		}
		varPrime = clamp(varPrime, params.SigmaMin*params.SigmaMin, params.SigmaMax*params.SigmaMax)

		s.Sigma = math.Sqrt(varPrime)
		s.MatchesCount++

		results = append(results, PerPlayerResult{
			PlayerID:    s.PlayerID,
			MuBefore:    muBefore,
			MuAfter:     s.Mu,
			Delta:       deltaPerPlayer,
			SigmaBefore: sigmaBefore,
			SigmaAfter:  s.Sigma,
			WinProbPre:  pA,
		})
	}
	return results
}

func applySynergy(params Params, pair *PairState, won bool, pSide float64) PairUpdate {
	gammaBefore := pair.Gamma
	pair.Matches++

	activated := pair.Matches >= int32(params.Synergy.ActivationMatches)
	var delta float64
	if activated {
		y := 0.0
		if won {
			y = 1.0
		}
		surpriseSide := y - pSide
		delta = clamp(params.Synergy.K0*surpriseSide, -params.Synergy.DeltaMax, params.Synergy.DeltaMax)
		pair.Gamma = clamp(gammaBefore+delta, params.Synergy.GammaMin, params.Synergy.GammaMax)
	}

	return PairUpdate{
		PairKey:     pair.PairKey,
		Players:     pair.Players,
		GammaBefore: gammaBefore,
		GammaAfter:  pair.Gamma,
		Delta:       pair.Gamma - gammaBefore,
		Activated:   activated,
		Matches:     pair.Matches,
	}
}
