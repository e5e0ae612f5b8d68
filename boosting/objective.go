package boosting

import (
	"math"

	"github.com/YuminosukeSato/riskpipe/pkg/errors"
)

// Objective names accepted by TrainingParams.Objective.
const (
	ObjectiveBinary     = "binary"
	ObjectiveRegression = "regression"
)

// ObjectiveFunction supplies the per-sample derivatives that drive tree
// construction. Predictions passed in are raw (pre-link) ensemble scores.
type ObjectiveFunction interface {
	// Gradient is the first derivative of the loss at the raw prediction.
	Gradient(prediction, target float64) float64

	// Hessian is the second derivative of the loss at the raw prediction.
	Hessian(prediction, target float64) float64

	// Loss is the per-sample loss at the raw prediction.
	Loss(prediction, target float64) float64

	// InitScore is the constant raw score the ensemble starts from.
	InitScore(targets []float64) float64

	// Name returns the objective name.
	Name() string
}

// CreateObjectiveFunction resolves an objective by name.
func CreateObjectiveFunction(objective string) (ObjectiveFunction, error) {
	switch objective {
	case ObjectiveBinary, "binary_logloss", "logistic":
		return &BinaryLogisticObjective{}, nil
	case ObjectiveRegression, "regression_l2", "l2":
		return &L2Objective{}, nil
	default:
		return nil, errors.Newf("riskpipe: unknown objective: %s", objective)
	}
}

// BinaryLogisticObjective is binary cross-entropy over a sigmoid link.
// Targets must be 0 or 1.
type BinaryLogisticObjective struct{}

func (o *BinaryLogisticObjective) Gradient(prediction, target float64) float64 {
	return sigmoid(prediction) - target
}

func (o *BinaryLogisticObjective) Hessian(prediction, target float64) float64 {
	p := sigmoid(prediction)
	h := p * (1 - p)
	if h < 1e-16 {
		h = 1e-16
	}
	return h
}

func (o *BinaryLogisticObjective) Loss(prediction, target float64) float64 {
	p := sigmoid(prediction)
	const eps = 1e-15
	p = math.Min(math.Max(p, eps), 1-eps)
	if target == 1 {
		return -math.Log(p)
	}
	return -math.Log(1 - p)
}

// InitScore is the log-odds of the base rate, clipped away from the
// degenerate all-one and all-zero cases.
func (o *BinaryLogisticObjective) InitScore(targets []float64) float64 {
	if len(targets) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, t := range targets {
		sum += t
	}
	p := sum / float64(len(targets))
	const eps = 1e-12
	p = math.Min(math.Max(p, eps), 1-eps)
	return math.Log(p / (1 - p))
}

func (o *BinaryLogisticObjective) Name() string {
	return ObjectiveBinary
}

// L2Objective is squared-error loss, kept for diagnostic regressions on the
// count features.
type L2Objective struct{}

func (o *L2Objective) Gradient(prediction, target float64) float64 {
	return prediction - target
}

func (o *L2Objective) Hessian(prediction, target float64) float64 {
	return 1.0
}

func (o *L2Objective) Loss(prediction, target float64) float64 {
	diff := prediction - target
	return 0.5 * diff * diff
}

func (o *L2Objective) InitScore(targets []float64) float64 {
	if len(targets) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, t := range targets {
		sum += t
	}
	return sum / float64(len(targets))
}

func (o *L2Objective) Name() string {
	return ObjectiveRegression
}
