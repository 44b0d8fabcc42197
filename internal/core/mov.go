package core

import "math"

// MoVStyle selects how a sport's games map to a margin multiplier (§4,
// "MoV Weight").
type MoVStyle int

const (
	// MoVStyleRally clamps each game's point spread to a cap, averages,
	// and scales into [min,max] — table-tennis/badminton/squash/
	// pickleball-style rally scoring.
	MoVStyleRally MoVStyle = iota
	// MoVStyleSet uses absolute set-diff clamped to a per-set cap,
	// normalized into [min,max] — tennis/padel-style set scoring.
	MoVStyleSet
)

// MoVProfile is the per-sport margin-of-victory configuration (C3 Sport
// Profile, MoV half).
type MoVProfile struct {
	Style      MoVStyle
	CapPerGame float64 // rally sports
	CapPerSet  float64 // set sports
	ClampMean  float64 // rally sports: clamp mean spread before scaling
	MinWeight  float64
	MaxWeight  float64
}

// MoVProfileFor returns the MoV configuration for a sport (§4 MoV Weight).
func MoVProfileFor(sport Sport) MoVProfile {
	switch sport {
	case SportTennis, SportPadel:
		return MoVProfile{
			Style:     MoVStyleSet,
			CapPerSet: 3,
			MinWeight: 0.7,
			MaxWeight: 1.3,
		}
	default: // BADMINTON, SQUASH, PICKLEBALL and anything rally-scored
		return MoVProfile{
			Style:      MoVStyleRally,
			CapPerGame: 11,
			ClampMean:  8,
			MinWeight:  0.7,
			MaxWeight:  1.3,
		}
	}
}

// Game is a single game/set score within a match (§3 match_games).
type Game struct {
	ScoreA int32
	ScoreB int32
}

// Weight computes the margin-of-victory multiplier for a set of games
// (§4.1). Only the size of each margin counts: the weight is the same
// whichever side won.
func (p MoVProfile) Weight(games []Game) float64 {
	if len(games) == 0 {
		return 1.0
	}

	switch p.Style {
	case MoVStyleSet:
		setsA, setsB := 0, 0
		for _, g := range games {
			if g.ScoreA > g.ScoreB {
				setsA++
			} else if g.ScoreB > g.ScoreA {
				setsB++
			}
		}
		diff := math.Abs(float64(setsA - setsB))
		diff = clamp(diff, 0, p.CapPerSet)
		return scale(diff, 0, p.CapPerSet, p.MinWeight, p.MaxWeight)

	default: // MoVStyleRally
		var sum float64
		for _, g := range games {
			spread := float64(g.ScoreA - g.ScoreB)
			spread = clamp(spread, -p.CapPerGame, p.CapPerGame)
			sum += math.Abs(spread)
		}
		mean := sum / float64(len(games))
		mean = clamp(mean, 0, p.ClampMean)
		return scale(mean, 0, p.ClampMean, p.MinWeight, p.MaxWeight)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func scale(v, inLo, inHi, outLo, outHi float64) float64 {
	if inHi == inLo {
		return outLo
	}
	t := (v - inLo) / (inHi - inLo)
	return outLo + t*(outHi-outLo)
}
