package pipeline

import (
	"fmt"

	"github.com/YuminosukeSato/riskpipe/aggregate"
	"github.com/YuminosukeSato/riskpipe/boosting"
	"github.com/YuminosukeSato/riskpipe/dataset"
	"github.com/YuminosukeSato/riskpipe/pkg/errors"
	"github.com/YuminosukeSato/riskpipe/pkg/log"
)

// TrainResult holds everything produced by a training run that later stages
// consume: the fitted aggregator (whose frozen schema the scoring transform
// reuses), the cross-validation output and the diagnostic AUC values.
type TrainResult struct {
	Aggregator *aggregate.CountAggregator
	Features   *aggregate.FeatureTable
	Labels     []float64
	CV         *boosting.CVRunResult

	OOFAUC   float64
	TrainAUC float64
}

// Train runs chunked fit-transform feature extraction over the training
// partitions, joins labels, and cross-validates the boosted-tree model.
// Any error aborts the run; there is no partial-result recovery.
func Train(cfg *Config) (*TrainResult, error) {
	logger := log.GetLoggerWithName("riskpipe.pipeline")

	agg := aggregate.NewCountAggregator()
	features, err := agg.FitTransform(cfg.TrainDir, cfg.ChunkSize, cfg.TrainPartitions, cfg.SinkDir)
	if err != nil {
		return nil, errors.Wrap(err, "feature extraction failed")
	}

	labelMap, err := dataset.ReadLabels(cfg.LabelsPath)
	if err != nil {
		return nil, errors.Wrap(err, "reading labels failed")
	}
	labels, err := joinLabels(features, labelMap)
	if err != nil {
		return nil, err
	}

	logger.Info("training cross-validation",
		"entities", features.NumEntities(),
		"features", len(features.Columns),
		"folds", cfg.FoldCount)

	cv, err := boosting.RunCV(features.Counts, labels, cfg.Boosting, cfg.FoldCount, cfg.FoldSeed)
	if err != nil {
		return nil, errors.Wrap(err, "cross-validation failed")
	}

	oofAUC, err := boosting.Evaluate(labels, cv.OOF)
	if err != nil {
		return nil, errors.Wrap(err, "out-of-fold evaluation failed")
	}
	trainAUC, err := boosting.Evaluate(labels, cv.TrainPreds)
	if err != nil {
		return nil, errors.Wrap(err, "training-prediction evaluation failed")
	}

	logger.Info("training finished",
		"oof_auc", oofAUC,
		"train_auc", trainAUC)

	return &TrainResult{
		Aggregator: agg,
		Features:   features,
		Labels:     labels,
		CV:         cv,
		OOFAUC:     oofAUC,
		TrainAUC:   trainAUC,
	}, nil
}

// Score transforms the held-out partitions with the frozen fit-time schema,
// ensembles the fold models and writes the submission file.
func Score(cfg *Config, result *TrainResult) error {
	if cfg.TestDir == "" {
		return errors.NewValueError("Score", "test_dir is required")
	}
	if cfg.TestPartitions <= 0 {
		return errors.NewValueError("Score", "test_partitions must be positive")
	}
	if cfg.SubmissionPath == "" {
		return errors.NewValueError("Score", "submission_path is required")
	}

	logger := log.GetLoggerWithName("riskpipe.pipeline")

	features, err := result.Aggregator.Transform(cfg.TestDir, cfg.ChunkSize, cfg.TestPartitions, cfg.SinkDir)
	if err != nil {
		return errors.Wrap(err, "scoring transform failed")
	}

	scores, err := boosting.EnsemblePredict(result.CV.Models, features.Counts)
	if err != nil {
		return errors.Wrap(err, "ensembling failed")
	}

	if err := dataset.WriteSubmission(cfg.SubmissionPath, features.IDs, scores); err != nil {
		return errors.Wrap(err, "writing submission failed")
	}

	logger.Info("submission written",
		"path", cfg.SubmissionPath,
		"entities", len(features.IDs))
	return nil
}

// Run executes training followed by scoring in one process, mirroring the
// single-session baseline: fold models live only in memory.
func Run(cfg *Config) (*TrainResult, error) {
	result, err := Train(cfg)
	if err != nil {
		return nil, err
	}
	if err := Score(cfg, result); err != nil {
		return nil, err
	}
	return result, nil
}

// joinLabels aligns the label map to the feature-table row order. Every
// training entity must carry a label.
func joinLabels(features *aggregate.FeatureTable, labelMap map[int64]float64) ([]float64, error) {
	labels := make([]float64, len(features.IDs))
	for i, id := range features.IDs {
		flag, ok := labelMap[id]
		if !ok {
			return nil, errors.NewValueError("joinLabels", fmt.Sprintf("no label for entity %d", id))
		}
		labels[i] = flag
	}
	return labels, nil
}
