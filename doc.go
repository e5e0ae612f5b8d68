// Package riskpipe is a baseline credit-default prediction pipeline: given
// chunked, time-ordered per-customer credit-history records with categorical
// features, it produces one risk score per applicant.
//
// The pipeline has two substantial stages. The aggregate package performs
// memory-bounded feature extraction: partitions are read in bounded batches,
// each batch is one-hot expanded and group-summed per entity, and an
// explicit incremental schema union reconciles category drift across
// batches, so peak memory stays proportional to one batch rather than the
// dataset. The boosting package trains one gradient-boosted tree ensemble
// per cross-validation fold with early stopping on the held-out fold's AUC,
// tracks out-of-fold predictions, and scores held-out applicants with an
// unweighted mean over the fold models.
//
// # Packages
//
//   - dataset: partition chunk reader, label reader, artifact writers
//   - aggregate: fit/transform count aggregation with a frozen encoded schema
//   - boosting: boosted-tree trainer, K-fold cross-validation, ensembling
//   - metrics: binary classification metrics (ROC AUC, log loss)
//   - pipeline: configuration and end-to-end train/score orchestration
//   - core/model, core/parallel, pkg/errors, pkg/log: shared infrastructure
//
// # Quick start
//
//	cfg, err := pipeline.LoadConfig("config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := pipeline.Run(cfg)
package riskpipe
