package game

import "math/rand"

// DrawNext picks a number in [1,75] that is not in drawn, uniformly from
// the undrawn complement.
func DrawNext(rng *rand.Rand, drawn []int) (int, error) {
	if len(drawn) >= MaxNumber {
		return 0, ErrAllNumbersCalled
	}

	var called [MaxNumber + 1]bool
	for _, n := range drawn {
		if n >= 1 && n <= MaxNumber {
			called[n] = true
		}
	}
	left := make([]int, 0, MaxNumber-len(drawn))
	for n := 1; n <= MaxNumber; n++ {
		if !called[n] {
			left = append(left, n)
		}
	}
	if len(left) == 0 {
		return 0, ErrAllNumbersCalled
	}
	return left[rng.Intn(len(left))], nil
}
