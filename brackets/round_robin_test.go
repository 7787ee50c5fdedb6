package brackets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRoundRobin(t *testing.T) {
	testCases := []struct {
		name     string
		capacity int
		want     int
	}{
		{name: "2 seats", capacity: 2, want: 1},
		{name: "3 seats", capacity: 3, want: 3},
		{name: "4 seats", capacity: 4, want: 6},
		{name: "5 seats", capacity: 5, want: 10},
		{name: "8 seats", capacity: 8, want: 28},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			pairings, err := BuildRoundRobin(tc.capacity, 1)
			require.NoError(t, err)
			assert.Len(t, pairings, tc.want)
		})
	}
}

func TestBuildRoundRobinPairOrder(t *testing.T) {
	pairings, err := BuildRoundRobin(4, 7)
	require.NoError(t, err)

	want := []GroupPairing{
		{Seat1: 0, Seat2: 1, Number: 7},
		{Seat1: 0, Seat2: 2, Number: 8},
		{Seat1: 0, Seat2: 3, Number: 9},
		{Seat1: 1, Seat2: 2, Number: 10},
		{Seat1: 1, Seat2: 3, Number: 11},
		{Seat1: 2, Seat2: 3, Number: 12},
	}
	assert.Equal(t, want, pairings)
}

func TestBuildRoundRobinTooSmall(t *testing.T) {
	for _, capacity := range []int{-1, 0, 1} {
		_, err := BuildRoundRobin(capacity, 1)
		assert.ErrorIs(t, err, ErrGroupTooSmall)
	}
}
