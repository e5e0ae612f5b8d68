// Package pipeline wires the chunked feature extraction, cross-validated
// training and ensembled scoring into end-to-end runs.
package pipeline

import (
	"github.com/spf13/viper"

	"github.com/YuminosukeSato/riskpipe/boosting"
	"github.com/YuminosukeSato/riskpipe/pkg/errors"
)

// Config is the full configuration surface of a pipeline run.
type Config struct {
	// TrainDir holds the training partition files; TrainPartitions of them
	// are processed in batches of ChunkSize partitions.
	TrainDir        string `mapstructure:"train_dir"`
	TrainPartitions int    `mapstructure:"train_partitions"`

	// TestDir holds the held-out partitions to score.
	TestDir        string `mapstructure:"test_dir"`
	TestPartitions int    `mapstructure:"test_partitions"`

	// LabelsPath is the id,flag CSV for training entities.
	LabelsPath string `mapstructure:"labels_path"`

	// SubmissionPath is where the scored id,score CSV is written.
	SubmissionPath string `mapstructure:"submission_path"`

	// SinkDir, when set, receives per-batch aggregated feature artifacts.
	SinkDir string `mapstructure:"sink_dir"`

	ChunkSize int `mapstructure:"chunk_size"`

	FoldCount int `mapstructure:"fold_count"`
	FoldSeed  int `mapstructure:"fold_seed"`

	LogLevel string `mapstructure:"log_level"`

	Boosting boosting.TrainingParams `mapstructure:"boosting"`
}

// LoadConfig reads a YAML config file and applies defaults.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("chunk_size", 2)
	v.SetDefault("fold_count", 5)
	v.SetDefault("fold_seed", 42)
	v.SetDefault("log_level", "info")
	v.SetDefault("boosting.objective", "binary")
	v.SetDefault("boosting.metric", "auc")
	v.SetDefault("boosting.num_iterations", 500)
	v.SetDefault("boosting.learning_rate", 0.05)
	v.SetDefault("boosting.num_leaves", 31)
	v.SetDefault("boosting.max_depth", 6)
	v.SetDefault("boosting.min_data_in_leaf", 20)
	v.SetDefault("boosting.lambda_l2", 1.0)
	v.SetDefault("boosting.early_stopping_rounds", 50)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshaling config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields every run needs.
func (c *Config) Validate() error {
	if c.TrainDir == "" {
		return errors.NewValueError("Config", "train_dir is required")
	}
	if c.TrainPartitions <= 0 {
		return errors.NewValueError("Config", "train_partitions must be positive")
	}
	if c.LabelsPath == "" {
		return errors.NewValueError("Config", "labels_path is required")
	}
	if c.ChunkSize <= 0 {
		return errors.NewValueError("Config", "chunk_size must be positive")
	}
	if c.FoldCount < 2 {
		return errors.NewValueError("Config", "fold_count must be at least 2")
	}
	return nil
}
