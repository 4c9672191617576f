package indexbuild

import (
	"fmt"
	"math"
)

// Partition count bounds for the inverted-file index.
const (
	MinLists = 50
	MaxLists = 2000
)

// Lists returns the baseline partition count for count embedded records:
// the square root, clamped to [MinLists, MaxLists].
func Lists(count int64) int {
	if count <= 0 {
		return MinLists
	}
	n := int(math.Round(math.Sqrt(float64(count))))
	return min(MaxLists, max(MinLists, n))
}

// Rung is one attempt of the build ladder.
type Rung struct {
	MemoryMB int
	Lists    int
}

func (r Rung) String() string {
	return fmt.Sprintf("%dMB/lists=%d", r.MemoryMB, r.Lists)
}

// Ladder returns the build attempts for a baseline partition count, each
// strictly cheaper than the one before it. Partition counts never drop below
// MinLists; a rung that would repeat its predecessor is left out.
func Ladder(lists int) []Rung {
	candidates := []Rung{
		{MemoryMB: 512, Lists: lists},
		{MemoryMB: 256, Lists: lists},
		{MemoryMB: 128, Lists: lists},
		{MemoryMB: 128, Lists: max(MinLists, lists/2)},
		{MemoryMB: 64, Lists: max(MinLists, lists/4)},
	}
	rungs := candidates[:1]
	for _, r := range candidates[1:] {
		if r != rungs[len(rungs)-1] {
			rungs = append(rungs, r)
		}
	}
	return rungs
}
