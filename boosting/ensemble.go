package boosting

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/riskpipe/pkg/errors"
)

// EnsemblePredict scores a feature matrix with every retained fold model and
// returns the unweighted mean of the positive-class probabilities per
// entity. Deterministic for fixed models and input.
func EnsemblePredict(models []*Model, X mat.Matrix) ([]float64, error) {
	if len(models) == 0 {
		return nil, errors.NewValueError("EnsemblePredict", "no models to ensemble")
	}

	rows, _ := X.Dims()
	scores := make([]float64, rows)
	for _, model := range models {
		pred, err := model.Predict(X)
		if err != nil {
			return nil, err
		}
		for i := range scores {
			scores[i] += pred.At(i, 0)
		}
	}

	n := float64(len(models))
	for i := range scores {
		scores[i] /= n
	}
	return scores, nil
}
