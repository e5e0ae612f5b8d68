// Package metrics provides evaluation metrics for binary classification.
package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/riskpipe/pkg/errors"
)

// AUC computes the area under the ROC curve for binary labels via the
// rank-statistic formulation, with tied predictions receiving averaged
// ranks. Labels must be 0 or 1. When only one class is present the metric
// is undefined and 0.5 is returned.
func AUC(yTrue, yPred *mat.VecDense) (float64, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError("AUC", "nil vector")
	}
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError("AUC", "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError("AUC", n, yPred.Len(), 0)
	}

	nPos := 0
	for i := 0; i < n; i++ {
		switch yTrue.AtVec(i) {
		case 0:
		case 1:
			nPos++
		default:
			return 0, errors.NewValueError("AUC", "labels must be binary (0 or 1)")
		}
	}
	nNeg := n - nPos
	if nPos == 0 || nNeg == 0 {
		return 0.5, nil
	}

	return aucRanks(yTrue, yPred, nPos, nNeg), nil
}

// aucRanks computes AUC = (R_pos - nPos(nPos+1)/2) / (nPos*nNeg) where R_pos
// is the rank sum of positive samples under ascending prediction order.
func aucRanks(yTrue, yPred *mat.VecDense, nPos, nNeg int) float64 {
	n := yTrue.Len()
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return yPred.AtVec(order[a]) < yPred.AtVec(order[b])
	})

	posRankSum := 0.0
	i := 0
	for i < n {
		// Extend over the tie group and assign the average rank to all of it.
		j := i
		for j < n && yPred.AtVec(order[j]) == yPred.AtVec(order[i]) {
			j++
		}
		avgRank := float64(i+j+1) / 2 // ranks are 1-based
		for k := i; k < j; k++ {
			if yTrue.AtVec(order[k]) == 1 {
				posRankSum += avgRank
			}
		}
		i = j
	}

	return (posRankSum - float64(nPos)*float64(nPos+1)/2) / (float64(nPos) * float64(nNeg))
}

// AUCMatrix computes AUC from n x 1 (or wider) matrices, using the first
// column of each.
func AUCMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError("AUCMatrix", "nil matrix")
	}
	rTrue, cTrue := yTrue.Dims()
	rPred, _ := yPred.Dims()
	if rTrue == 0 || cTrue == 0 {
		return 0, errors.NewValueError("AUCMatrix", "empty matrix")
	}
	if rTrue != rPred {
		return 0, errors.NewDimensionError("AUCMatrix", rTrue, rPred, 0)
	}

	yTrueVec := mat.NewVecDense(rTrue, nil)
	yPredVec := mat.NewVecDense(rTrue, nil)
	for i := 0; i < rTrue; i++ {
		yTrueVec.SetVec(i, yTrue.At(i, 0))
		yPredVec.SetVec(i, yPred.At(i, 0))
	}
	return AUC(yTrueVec, yPredVec)
}

// AUCSlices is a convenience adapter over plain float64 slices.
func AUCSlices(yTrue, yPred []float64) (float64, error) {
	if len(yTrue) == 0 || len(yPred) == 0 {
		return 0, errors.NewValueError("AUCSlices", "empty slice")
	}
	if len(yTrue) != len(yPred) {
		return 0, errors.NewDimensionError("AUCSlices", len(yTrue), len(yPred), 0)
	}
	return AUC(mat.NewVecDense(len(yTrue), yTrue), mat.NewVecDense(len(yPred), yPred))
}

// LogLoss computes the mean binary cross-entropy of predicted probabilities,
// clipping predictions away from 0 and 1.
func LogLoss(yTrue, yPred *mat.VecDense) (float64, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError("LogLoss", "nil vector")
	}
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError("LogLoss", "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError("LogLoss", n, yPred.Len(), 0)
	}

	const eps = 1e-15
	sum := 0.0
	for i := 0; i < n; i++ {
		p := math.Min(math.Max(yPred.AtVec(i), eps), 1-eps)
		if yTrue.AtVec(i) == 1 {
			sum -= math.Log(p)
		} else {
			sum -= math.Log(1 - p)
		}
	}
	return sum / float64(n), nil
}
