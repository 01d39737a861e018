package ml

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
)

// StratifiedSplit partitions sample indices into train and test sets while
// keeping each class's share. Every class needs at least two members so it
// appears on both sides.
func StratifiedSplit(y []int, testSize float64, seed uint64) (train, test []int, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, fmt.Errorf("test size must be in (0,1), got %g", testSize)
	}
	byClass := groupByClass(y)
	rng := rand.New(rand.NewPCG(seed, seed))

	for _, c := range sortedKeys(byClass) {
		members := byClass[c]
		if len(members) < 2 {
			return nil, nil, fmt.Errorf("class %d has %d member(s); stratified split needs at least 2", c, len(members))
		}
		rng.Shuffle(len(members), func(i, j int) { members[i], members[j] = members[j], members[i] })
		nTest := int(math.Round(testSize * float64(len(members))))
		nTest = min(max(nTest, 1), len(members)-1)
		test = append(test, members[:nTest]...)
		train = append(train, members[nTest:]...)
	}
	rng.Shuffle(len(train), func(i, j int) { train[i], train[j] = train[j], train[i] })
	rng.Shuffle(len(test), func(i, j int) { test[i], test[j] = test[j], test[i] })
	return train, test, nil
}

// StratifiedKFold assigns each sample to one of k folds, spreading every
// class's members in original order across folds. It returns the test
// indices of each fold.
func StratifiedKFold(y []int, k int) ([][]int, error) {
	if k < 2 {
		return nil, fmt.Errorf("k-fold needs k >= 2, got %d", k)
	}
	if len(y) < k {
		return nil, fmt.Errorf("cannot split %d samples into %d folds", len(y), k)
	}
	folds := make([][]int, k)
	byClass := groupByClass(y)
	for _, c := range sortedKeys(byClass) {
		members := byClass[c]
		for j, i := range members {
			f := j * k / len(members)
			folds[f] = append(folds[f], i)
		}
	}
	for _, f := range folds {
		slices.Sort(f)
	}
	return folds, nil
}

// Complement returns the indices in [0,n) not present in fold.
func Complement(n int, fold []int) []int {
	in := make([]bool, n)
	for _, i := range fold {
		in[i] = true
	}
	out := make([]int, 0, n-len(fold))
	for i := 0; i < n; i++ {
		if !in[i] {
			out = append(out, i)
		}
	}
	return out
}

func groupByClass(y []int) map[int][]int {
	out := make(map[int][]int)
	for i, c := range y {
		out[c] = append(out[c], i)
	}
	return out
}

func sortedKeys(m map[int][]int) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
