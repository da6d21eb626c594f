package tiebreak

import "math/rand"

func newRand(rngSeed int64) *rand.Rand {
	return rand.New(rand.NewSource(rngSeed))
}

func shuffle[S ~[]E, E any](slice S, rng *rand.Rand) {
	rng.Shuffle(
		len(slice),
		func(i, j int) { slice[i], slice[j] = slice[j], slice[i] },
	)
}

// Shuffles the runs of the slice that are still tied
// according to the tied function and leaves the order
// between the runs intact
func shuffleTiedRuns[S ~[]E, E any](slice S, tied func(a, b E) bool, rng *rand.Rand) {
	for start := 0; start < len(slice); {
		end := start + 1
		for end < len(slice) && tied(slice[start], slice[end]) {
			end += 1
		}
		if end-start > 1 {
			shuffle(slice[start:end], rng)
		}
		start = end
	}
}
