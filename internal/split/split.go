// Package split partitions record indices into train/validation/test subsets.
package split

import (
	"math"
	"math/rand"
	"sort"
)

// Split holds the three disjoint index sets. Together they cover every index
// in [0, n) exactly once.
type Split struct {
	Train      []int
	Validation []int
	Test       []int
}

// Partition shuffles the indices 0..n-1 with the given seed and slices them
// by the ratios. The same seed always yields the same assignment. Indices
// within each subset are returned in ascending order so downstream passes are
// order-stable.
func Partition(n int, trainFrac, validFrac float64, seed int64) Split {
	perm := rand.New(rand.NewSource(seed)).Perm(n)

	nTrain := int(math.Round(trainFrac * float64(n)))
	nValid := int(math.Round(validFrac * float64(n)))
	if nTrain > n {
		nTrain = n
	}
	if nTrain+nValid > n {
		nValid = n - nTrain
	}

	s := Split{
		Train:      append([]int{}, perm[:nTrain]...),
		Validation: append([]int{}, perm[nTrain:nTrain+nValid]...),
		Test:       append([]int{}, perm[nTrain+nValid:]...),
	}
	sort.Ints(s.Train)
	sort.Ints(s.Validation)
	sort.Ints(s.Test)
	return s
}
