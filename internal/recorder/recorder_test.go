package recorder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/henrynw/openrating/internal/core"
	"github.com/henrynw/openrating/internal/store"
)

func TestAppliedAtFor_PrefersCompletedAtOverStartTime(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	completed := start.Add(90 * time.Minute)
	in := Input{StartTime: start, CompletedAt: &completed}
	require.Equal(t, completed, appliedAtFor(in))
}

func TestAppliedAtFor_FallsBackToStartTime(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	in := Input{StartTime: start}
	require.Equal(t, start, appliedAtFor(in))
}

func TestBuildMatch_MapsWinnerAndGamesInOrder(t *testing.T) {
	in := Input{
		ProviderID:     "provider-1",
		ExternalRef:    "ext-1",
		OrganizationID: "org-1",
		Ladder:         store.LadderKey{Sport: core.SportBadminton, Discipline: "singles"},
		Tier:           core.TierLeague,
		SideA:          []string{"p1"},
		SideB:          []string{"p2"},
		Games:          []core.Game{{ScoreA: 21, ScoreB: 15}, {ScoreA: 18, ScoreB: 21}},
		Winner:         core.WinnerA,
		StartTime:      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	m := buildMatch("match-1", "badminton:singles", in, store.RatingStatusRated)

	require.Equal(t, "A", m.WinnerSide)
	require.Equal(t, "org-1", m.OrganizationID)
	require.Equal(t, store.RatingStatusRated, m.RatingStatus)
	require.Len(t, m.Games, 2)
	require.Equal(t, int32(1), m.Games[0].GameNo)
	require.Equal(t, int32(2), m.Games[1].GameNo)
	require.Equal(t, []string{"p1"}, m.SideA.Players)
	require.Equal(t, []string{"p2"}, m.SideB.Players)
}

func TestBuildMatch_NoWinnerWhenUnspecified(t *testing.T) {
	in := Input{Winner: core.WinnerUnspecified}
	m := buildMatch("match-2", "badminton:singles", in, store.RatingStatusUnrated)
	require.Equal(t, "", m.WinnerSide)
}
