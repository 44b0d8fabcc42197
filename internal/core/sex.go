package core

// Sex is a player's sex-group key used by the sex-offset controller (§3,
// §4.3). U (unknown) is always bias 0 and never updated.
type Sex string

const (
	SexM Sex = "M"
	SexF Sex = "F"
	SexX Sex = "X"
	SexU Sex = "U"
)

// SexCounts tallies players per sex on one side of a match (§4.1
// SexOffsetSignal).
type SexCounts map[Sex]int

func (c SexCounts) add(s Sex) {
	c[s]++
}
