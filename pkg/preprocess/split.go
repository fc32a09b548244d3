package preprocess

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Split holds a stratified train/test partition.
type Split struct {
	XTrain, XTest [][]float64
	YTrain, YTest []int

	// TrainIndex and TestIndex are the source row positions of each
	// subset, ascending.
	TrainIndex, TestIndex []int
}

// StratifiedIndices partitions row indices into train and test subsets
// so that each class keeps its overall proportion within rounding. The
// same seed, input order and fraction reproduce identical membership.
func StratifiedIndices(y []int, testFraction float64, seed int64) (trainIdx, testIdx []int, err error) {
	if testFraction <= 0 || testFraction >= 1 {
		return nil, nil, fmt.Errorf("test fraction %v out of (0, 1)", testFraction)
	}
	if len(y) == 0 {
		return nil, nil, fmt.Errorf("empty label vector")
	}

	// Group row indices per class, classes in first-appearance order.
	var classes []int
	groups := make(map[int][]int)
	for i, label := range y {
		if _, ok := groups[label]; !ok {
			classes = append(classes, label)
		}
		groups[label] = append(groups[label], i)
	}

	rng := rand.New(rand.NewSource(seed))
	for _, c := range classes {
		group := groups[c]
		rng.Shuffle(len(group), func(i, j int) {
			group[i], group[j] = group[j], group[i]
		})

		nTest := int(math.Round(testFraction * float64(len(group))))
		if nTest >= len(group) {
			nTest = len(group) - 1
		}

		testIdx = append(testIdx, group[:nTest]...)
		trainIdx = append(trainIdx, group[nTest:]...)
	}

	sort.Ints(trainIdx)
	sort.Ints(testIdx)
	return trainIdx, testIdx, nil
}

// StratifiedSplit applies StratifiedIndices to a feature matrix and
// label vector.
func StratifiedSplit(x [][]float64, y []int, testFraction float64, seed int64) (*Split, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("feature rows (%d) and labels (%d) differ", len(x), len(y))
	}

	trainIdx, testIdx, err := StratifiedIndices(y, testFraction, seed)
	if err != nil {
		return nil, err
	}

	s := &Split{TrainIndex: trainIdx, TestIndex: testIdx}
	for _, i := range trainIdx {
		s.XTrain = append(s.XTrain, x[i])
		s.YTrain = append(s.YTrain, y[i])
	}
	for _, i := range testIdx {
		s.XTest = append(s.XTest, x[i])
		s.YTest = append(s.YTest, y[i])
	}
	return s, nil
}
