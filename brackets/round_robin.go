package brackets

import "errors"

// GroupPairing is one round-robin fixture between two seats of a group.
// Seats are zero-based positions in the group's row list; a seat without a
// registered participant still gets its fixtures, which the engine cancels
// at start time.
type GroupPairing struct {
	Seat1  int
	Seat2  int
	Number int
}

var ErrGroupTooSmall = errors.New("round robin group needs at least two seats")

// BuildRoundRobin pairs every seat with every later seat exactly once,
// numbering fixtures sequentially from firstNumber. A group of n seats
// yields n*(n-1)/2 pairings.
func BuildRoundRobin(capacity, firstNumber int) ([]GroupPairing, error) {
	if capacity < 2 {
		return nil, ErrGroupTooSmall
	}

	pairings := make([]GroupPairing, 0, capacity*(capacity-1)/2)
	number := firstNumber
	for i := 0; i < capacity; i++ {
		for j := i + 1; j < capacity; j++ {
			pairings = append(pairings, GroupPairing{
				Seat1:  i,
				Seat2:  j,
				Number: number,
			})
			number++
		}
	}
	return pairings, nil
}
