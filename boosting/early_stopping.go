package boosting

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/riskpipe/metrics"
	"github.com/YuminosukeSato/riskpipe/pkg/errors"
)

// EarlyStopping tracks the validation metric across boosting rounds and
// signals a stop once the metric fails to improve for a patience window of
// rounds.
type EarlyStopping struct {
	Rounds          int
	BestScore       float64
	BestIteration   int
	RoundsNoImprove int
	Metric          string
	Minimize        bool
	Enabled         bool
}

// NewEarlyStopping creates an early stopping handler. Non-positive rounds
// disable it.
func NewEarlyStopping(rounds int, metric string) *EarlyStopping {
	if rounds <= 0 {
		return &EarlyStopping{Enabled: false}
	}

	minimize := true
	switch metric {
	case "auc", "accuracy":
		minimize = false
	}

	bestScore := math.Inf(1)
	if !minimize {
		bestScore = math.Inf(-1)
	}

	return &EarlyStopping{
		Rounds:    rounds,
		BestScore: bestScore,
		Metric:    metric,
		Minimize:  minimize,
		Enabled:   true,
	}
}

// Update records the score of one iteration and reports whether training
// should stop.
func (es *EarlyStopping) Update(iteration int, score float64) bool {
	if !es.Enabled {
		return false
	}

	improved := score > es.BestScore
	if es.Minimize {
		improved = score < es.BestScore
	}

	if improved {
		es.BestScore = score
		es.BestIteration = iteration
		es.RoundsNoImprove = 0
	} else {
		es.RoundsNoImprove++
	}
	return es.RoundsNoImprove >= es.Rounds
}

// ValidationData is the held-out split used for early stopping.
type ValidationData struct {
	X *mat.Dense
	Y []float64
}

// singleClass reports whether all labels are identical, which makes AUC
// undefined.
func (v *ValidationData) singleClass() bool {
	if len(v.Y) == 0 {
		return true
	}
	first := v.Y[0]
	for _, y := range v.Y[1:] {
		if y != first {
			return false
		}
	}
	return true
}

// FitWithValidation trains the ensemble, evaluating the validation split
// after every round and stopping once the configured patience window passes
// without improvement. The retained trees are truncated to the best
// iteration. With valData nil (or early stopping disabled) the full round
// budget is trained.
//
// A validation split whose labels collapse to a single class makes the
// validation AUC undefined and fails the whole fit; there is no
// skip-and-continue path.
func (t *Trainer) FitWithValidation(X mat.Matrix, y []float64, valData *ValidationData) error {
	if err := t.setData(X, y); err != nil {
		return err
	}

	var earlyStopping *EarlyStopping
	var valRaw []float64
	if valData != nil && t.params.EarlyStopping > 0 {
		if t.params.Metric == "auc" && valData.singleClass() {
			return errors.Wrap(errors.ErrDegenerateFold, "FitWithValidation")
		}
		valRows, valCols := valData.X.Dims()
		if valCols != t.X.RawMatrix().Cols {
			return errors.NewDimensionError("FitWithValidation", t.X.RawMatrix().Cols, valCols, 1)
		}
		if valRows != len(valData.Y) {
			return errors.NewDimensionError("FitWithValidation", valRows, len(valData.Y), 0)
		}
		earlyStopping = NewEarlyStopping(t.params.EarlyStopping, t.params.Metric)
		valRaw = make([]float64, valRows)
		for i := range valRaw {
			valRaw[i] = t.initScore
		}
	}

	for iter := 0; iter < t.params.NumIterations; iter++ {
		t.iteration = iter

		if err := t.boostOneRound(); err != nil {
			return err
		}

		if earlyStopping == nil {
			continue
		}

		t.updateValidationRaw(valData, valRaw)
		valScore, err := t.evaluateValidation(valData, valRaw)
		if err != nil {
			return err
		}

		if t.params.Verbosity > 0 && iter%10 == 0 {
			t.logger.Debug("training progress",
				"iteration", iter,
				"metric", t.params.Metric,
				"validation_score", valScore)
		}

		if earlyStopping.Update(iter, valScore) {
			if earlyStopping.BestIteration < len(t.trees) {
				t.trees = t.trees[:earlyStopping.BestIteration+1]
			}
			if t.params.Verbosity > 0 {
				t.logger.Info("early stopping",
					"iteration", iter,
					"best_iteration", earlyStopping.BestIteration,
					"best_score", earlyStopping.BestScore)
			}
			break
		}
	}

	return nil
}

// updateValidationRaw adds the newest tree's outputs to the cached raw
// validation scores.
func (t *Trainer) updateValidationRaw(valData *ValidationData, valRaw []float64) {
	tree := &t.trees[len(t.trees)-1]
	_, cols := valData.X.Dims()
	features := make([]float64, cols)
	for i := range valRaw {
		mat.Row(features, i, valData.X)
		valRaw[i] += tree.Predict(features)
	}
}

// evaluateValidation computes the early-stopping metric on the validation
// split from the cached raw scores.
func (t *Trainer) evaluateValidation(valData *ValidationData, valRaw []float64) (float64, error) {
	switch t.params.Metric {
	case "auc":
		probs := make([]float64, len(valRaw))
		for i, raw := range valRaw {
			probs[i] = sigmoid(raw)
		}
		return metrics.AUCSlices(valData.Y, probs)
	default:
		// Mean objective loss; lower is better.
		loss := 0.0
		for i, raw := range valRaw {
			loss += t.objective.Loss(raw, valData.Y[i])
		}
		return loss / float64(len(valRaw)), nil
	}
}
