package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/henrynw/openrating/internal/core"
)

func TestMatch_Winner(t *testing.T) {
	require.Equal(t, core.WinnerA, Match{WinnerSide: "A"}.Winner())
	require.Equal(t, core.WinnerB, Match{WinnerSide: "B"}.Winner())
	require.Equal(t, core.WinnerUnspecified, Match{WinnerSide: ""}.Winner())
}

func TestMatch_EngineGames(t *testing.T) {
	m := Match{Games: []MatchGame{
		{GameNo: 1, ScoreA: 11, ScoreB: 9},
		{GameNo: 2, ScoreA: 8, ScoreB: 11},
	}}
	games := m.EngineGames()
	require.Len(t, games, 2)
	require.Equal(t, core.Game{ScoreA: 11, ScoreB: 9}, games[0])
	require.Equal(t, core.Game{ScoreA: 8, ScoreB: 11}, games[1])
}

func TestMatch_EngineGames_EmptyWhenNoGames(t *testing.T) {
	m := Match{}
	require.Empty(t, m.EngineGames())
}

func TestMatch_AppliedAt_PrefersCompletedAtOverStartTime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	completed := start.Add(2 * time.Hour)
	m := Match{Timing: MatchTiming{StartTime: start, CompletedAt: &completed}}
	require.Equal(t, completed, m.AppliedAt())
}

func TestMatch_AppliedAt_FallsBackToStartTime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := Match{Timing: MatchTiming{StartTime: start}}
	require.Equal(t, start, m.AppliedAt())
}
