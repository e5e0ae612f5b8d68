package boosting

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/riskpipe/metrics"
	"github.com/YuminosukeSato/riskpipe/pkg/errors"
	"github.com/YuminosukeSato/riskpipe/pkg/log"
)

// CVFold is one train/validation partition of the entity index space.
type CVFold struct {
	TrainIndices []int
	TestIndices  []int
}

// KFold splits entities into disjoint, exhaustive folds after a
// deterministic seeded shuffle.
type KFold struct {
	NSplits    int
	RandomSeed int
}

// NewKFold creates a k-fold splitter. Fewer than 2 splits falls back to 5.
func NewKFold(nSplits, randomSeed int) *KFold {
	if nSplits < 2 {
		nSplits = 5
	}
	return &KFold{NSplits: nSplits, RandomSeed: randomSeed}
}

// Split generates the folds for nSamples entities. Every entity lands in
// exactly one test fold; fold sizes differ by at most one.
func (kf *KFold) Split(nSamples int) []CVFold {
	indices := make([]int, nSamples)
	for i := range indices {
		indices[i] = i
	}

	r := rand.New(rand.NewPCG(uint64(kf.RandomSeed), uint64(kf.RandomSeed)))
	r.Shuffle(len(indices), func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})

	folds := make([]CVFold, kf.NSplits)
	foldSize := nSamples / kf.NSplits
	remainder := nSamples % kf.NSplits

	currentIdx := 0
	for i := 0; i < kf.NSplits; i++ {
		testSize := foldSize
		if i < remainder {
			testSize++
		}

		testIndices := make([]int, testSize)
		copy(testIndices, indices[currentIdx:currentIdx+testSize])

		trainIndices := make([]int, 0, nSamples-testSize)
		trainIndices = append(trainIndices, indices[:currentIdx]...)
		trainIndices = append(trainIndices, indices[currentIdx+testSize:]...)

		folds[i] = CVFold{TrainIndices: trainIndices, TestIndices: testIndices}
		currentIdx += testSize
	}
	return folds
}

// CVRunResult carries everything a cross-validation run produced: the
// per-fold models for later ensembling, the out-of-fold prediction vector
// and the accumulated training-side prediction vector, both aligned to the
// input row order.
type CVRunResult struct {
	Models []*Model

	// OOF holds, for each entity, the prediction of the one model that did
	// not train on it.
	OOF []float64

	// TrainPreds accumulates each fold model's predictions over that fold's
	// training partition, scaled by 1/(nFolds-1). Each entity sits in the
	// training partition of nFolds-1 folds, so the sums land on probability
	// scale. The models have trained on these entities, so this is an
	// optimistic diagnostic; OOF is the unbiased one.
	TrainPreds []float64

	// FoldScores are the early-stopped validation AUC values per fold.
	FoldScores []float64
}

// RunCV partitions entities into nFolds folds with a deterministic shuffle,
// trains one boosted-tree model per fold with the held-out fold as the
// early-stopping validation set, and assembles the prediction vectors.
// Folds are trained strictly sequentially. A failure inside any fold aborts
// the whole run with no partial result.
func RunCV(X *mat.Dense, y []float64, params TrainingParams, nFolds, seed int) (*CVRunResult, error) {
	rows, _ := X.Dims()
	if rows == 0 {
		return nil, errors.NewModelError("RunCV", "empty feature table", errors.ErrEmptyData)
	}
	if rows != len(y) {
		return nil, errors.NewDimensionError("RunCV", rows, len(y), 0)
	}
	if nFolds < 2 {
		return nil, errors.NewValueError("RunCV", "fold count must be at least 2")
	}
	if nFolds > rows {
		return nil, errors.NewValueError("RunCV", "fold count exceeds entity count")
	}

	logger := log.GetLoggerWithName("riskpipe.crossval")
	folds := NewKFold(nFolds, seed).Split(rows)

	result := &CVRunResult{
		Models:     make([]*Model, 0, nFolds),
		OOF:        make([]float64, rows),
		TrainPreds: make([]float64, rows),
		FoldScores: make([]float64, 0, nFolds),
	}
	trainWeight := 1.0 / float64(nFolds-1)

	for foldIdx, fold := range folds {
		trainX, trainY := subset(X, y, fold.TrainIndices)
		valX, valY := subset(X, y, fold.TestIndices)

		trainer := NewTrainer(params)
		valData := &ValidationData{X: valX, Y: valY}
		if err := trainer.FitWithValidation(trainX, trainY, valData); err != nil {
			return nil, errors.Wrapf(err, "fold %d training failed", foldIdx)
		}
		model := trainer.GetModel()
		result.Models = append(result.Models, model)

		// Out-of-fold predictions: folds are disjoint and exhaustive, so
		// every entity is written exactly once across the run.
		valPred, err := model.Predict(valX)
		if err != nil {
			return nil, errors.Wrapf(err, "fold %d validation prediction failed", foldIdx)
		}
		for i, idx := range fold.TestIndices {
			result.OOF[idx] = valPred.At(i, 0)
		}

		// Training-side accumulation at 1/(nFolds-1) per non-owning fold.
		trainPred, err := model.Predict(trainX)
		if err != nil {
			return nil, errors.Wrapf(err, "fold %d training prediction failed", foldIdx)
		}
		for i, idx := range fold.TrainIndices {
			result.TrainPreds[idx] += trainPred.At(i, 0) * trainWeight
		}

		foldAUC, err := metrics.AUCSlices(valY, column(valPred))
		if err != nil {
			return nil, errors.Wrapf(err, "fold %d evaluation failed", foldIdx)
		}
		result.FoldScores = append(result.FoldScores, foldAUC)

		logger.Info("fold finished",
			"fold", foldIdx,
			"train_size", len(fold.TrainIndices),
			"validation_size", len(fold.TestIndices),
			"trees", len(model.Trees),
			"validation_auc", foldAUC)
	}

	return result, nil
}

// Evaluate computes the diagnostic AUC of a prediction vector against the
// labels.
func Evaluate(y, preds []float64) (float64, error) {
	return metrics.AUCSlices(y, preds)
}

// subset copies the selected rows of X and y.
func subset(X *mat.Dense, y []float64, indices []int) (*mat.Dense, []float64) {
	_, cols := X.Dims()
	outX := mat.NewDense(len(indices), cols, nil)
	outY := make([]float64, len(indices))
	row := make([]float64, cols)
	for i, idx := range indices {
		mat.Row(row, idx, X)
		outX.SetRow(i, row)
		outY[i] = y[idx]
	}
	return outX, outY
}

// column extracts the first column of an n x 1 matrix.
func column(m *mat.Dense) []float64 {
	rows, _ := m.Dims()
	out := make([]float64, rows)
	for i := range out {
		out[i] = m.At(i, 0)
	}
	return out
}
