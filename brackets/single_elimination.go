package brackets

import (
	"errors"

	"github.com/bracketops/tournament-engine/models"
)

// BracketMatch is one node of a generated playoff skeleton. Feeder indexes
// point into the plan's Matches slice; -1 marks a slot that is filled by
// seeding instead of by a finished match.
type BracketMatch struct {
	Round        int
	OrderInRound int
	Number       int
	Format       models.MatchFormat
	Feeder1      int
	Feeder2      int
}

// PlayoffPlan is a complete single elimination skeleton: Size slots in the
// first round, Rounds rounds, Size-1 matches ordered round by round.
type PlayoffPlan struct {
	Size    int
	Rounds  int
	Matches []BracketMatch
}

// FinalIndex returns the position of the final in Matches.
func (p *PlayoffPlan) FinalIndex() int {
	return len(p.Matches) - 1
}

var ErrNotEnoughSlots = errors.New("single elimination bracket needs at least two slots")

// PlayoffRegularFormat maps bo2 to bo1: a knockout match cannot end in a
// draw, so the two-map format is unplayable there. Every other format passes
// through unchanged.
func PlayoffRegularFormat(format models.MatchFormat) models.MatchFormat {
	if format == models.FormatBo2 {
		return models.FormatBo1
	}
	return format
}

// BuildSingleElimination lays out a bracket for the expected number of
// entrants. The first round is padded to the next power of two, matches are
// numbered sequentially from firstNumber round by round, and every match
// past the first round records which two matches feed it. The final uses
// finalFormat unless the bracket is a single round, in which case the lone
// match keeps the regular format.
func BuildSingleElimination(expected, firstNumber int, regular, finalFormat models.MatchFormat) (*PlayoffPlan, error) {
	if expected < 2 {
		return nil, ErrNotEnoughSlots
	}

	size := nextPowerOfTwo(expected)
	rounds := 0
	for s := size; s > 1; s >>= 1 {
		rounds++
	}

	plan := &PlayoffPlan{
		Size:    size,
		Rounds:  rounds,
		Matches: make([]BracketMatch, 0, size-1),
	}

	number := firstNumber
	prevRoundStart := 0

	for r := 1; r <= rounds; r++ {
		matchesInRound := size >> uint(r)
		roundStart := len(plan.Matches)

		format := regular
		if r == rounds && rounds >= 2 {
			format = finalFormat
		}

		for i := 0; i < matchesInRound; i++ {
			bm := BracketMatch{
				Round:        r,
				OrderInRound: i + 1,
				Number:       number,
				Format:       format,
				Feeder1:      -1,
				Feeder2:      -1,
			}
			if r > 1 {
				bm.Feeder1 = prevRoundStart + 2*i
				bm.Feeder2 = prevRoundStart + 2*i + 1
			}
			plan.Matches = append(plan.Matches, bm)
			number++
		}
		prevRoundStart = roundStart
	}

	return plan, nil
}

func nextPowerOfTwo(n int) int {
	size := 1
	for size < n {
		size <<= 1
	}
	return size
}
