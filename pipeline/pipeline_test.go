package pipeline

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/riskpipe/boosting"
	"github.com/YuminosukeSato/riskpipe/dataset"
	rperrors "github.com/YuminosukeSato/riskpipe/pkg/errors"
)

func writeCSV(t *testing.T, path string, rows [][]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := csv.NewWriter(f)
	require.NoError(t, w.WriteAll(rows))
}

// grade tracks the label, region does not. An entity's record count varies
// with its id so the count features are not all identical.
func entityRows(id int64, label float64) [][]string {
	grade := "good"
	if label == 1 {
		grade = "bad"
	}
	region := "north"
	if id%3 == 0 {
		region = "south"
	}

	n := int(id%3) + 1
	rows := make([][]string, 0, n)
	for rn := 0; rn < n; rn++ {
		rows = append(rows, []string{
			strconv.FormatInt(id, 10), strconv.Itoa(rn), grade, region,
		})
	}
	return rows
}

// writeEntityPartitions distributes the given entities over partition files,
// perPartition entities per file, each entity wholly inside one file.
func writeEntityPartitions(t *testing.T, dir string, ids []int64, labels map[int64]float64, perPartition int) int {
	t.Helper()
	header := []string{"id", "rn", "grade", "region"}

	numParts := 0
	for start := 0; start < len(ids); start += perPartition {
		end := start + perPartition
		if end > len(ids) {
			end = len(ids)
		}
		rows := [][]string{header}
		for _, id := range ids[start:end] {
			rows = append(rows, entityRows(id, labels[id])...)
		}
		writeCSV(t, filepath.Join(dir, dataset.PartitionName(numParts)), rows)
		numParts++
	}
	return numParts
}

func writeLabels(t *testing.T, path string, ids []int64, labels map[int64]float64) {
	t.Helper()
	rows := [][]string{{"id", "flag"}}
	for _, id := range ids {
		rows = append(rows, []string{
			strconv.FormatInt(id, 10),
			strconv.FormatFloat(labels[id], 'f', -1, 64),
		})
	}
	writeCSV(t, path, rows)
}

func testConfig(t *testing.T) (*Config, []int64) {
	t.Helper()
	base := t.TempDir()
	trainDir := filepath.Join(base, "train")
	testDir := filepath.Join(base, "test")
	require.NoError(t, os.Mkdir(trainDir, 0o755))
	require.NoError(t, os.Mkdir(testDir, 0o755))

	trainIDs := make([]int64, 60)
	labels := make(map[int64]float64, 60)
	for i := range trainIDs {
		id := int64(i + 1)
		trainIDs[i] = id
		labels[id] = float64(i % 2)
	}
	trainParts := writeEntityPartitions(t, trainDir, trainIDs, labels, 10)

	testIDs := make([]int64, 10)
	testLabels := make(map[int64]float64, 10)
	for i := range testIDs {
		id := int64(i + 101)
		testIDs[i] = id
		testLabels[id] = float64(i % 2)
	}
	testParts := writeEntityPartitions(t, testDir, testIDs, testLabels, 5)

	labelsPath := filepath.Join(base, "labels.csv")
	writeLabels(t, labelsPath, trainIDs, labels)

	return &Config{
		TrainDir:        trainDir,
		TrainPartitions: trainParts,
		TestDir:         testDir,
		TestPartitions:  testParts,
		LabelsPath:      labelsPath,
		SubmissionPath:  filepath.Join(base, "submission.csv"),
		ChunkSize:       2,
		FoldCount:       3,
		FoldSeed:        42,
		Boosting: boosting.TrainingParams{
			NumIterations: 30,
			LearningRate:  0.3,
			NumLeaves:     7,
			MinDataInLeaf: 1,
			Lambda:        1.0,
			Objective:     "binary",
			Metric:        "auc",
			EarlyStopping: 5,
		},
	}, testIDs
}

func TestRunEndToEnd(t *testing.T) {
	cfg, testIDs := testConfig(t)

	result, err := Run(cfg)
	require.NoError(t, err)

	// grade separates the classes, so out-of-fold ranking should be strong.
	assert.Greater(t, result.OOFAUC, 0.9)
	assert.Greater(t, result.TrainAUC, 0.9)
	assert.Len(t, result.CV.Models, 3)

	f, err := os.Open(cfg.SubmissionPath)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, len(testIDs)+1)
	assert.Equal(t, []string{"id", "score"}, records[0])

	for i, rec := range records[1:] {
		assert.Equal(t, fmt.Sprintf("%d", testIDs[i]), rec[0])
		score, err := strconv.ParseFloat(rec[1], 64)
		require.NoError(t, err)
		assert.Greater(t, score, 0.0)
		assert.Less(t, score, 1.0)
	}
}

func TestTrainMissingLabelFails(t *testing.T) {
	cfg, _ := testConfig(t)

	// Drop one training entity's label.
	writeLabels(t, cfg.LabelsPath, []int64{1}, map[int64]float64{1: 1})

	_, err := Train(cfg)
	require.Error(t, err)
}

func TestTrainDegenerateLabelsFail(t *testing.T) {
	cfg, _ := testConfig(t)

	// Rewrite all labels to the positive class; every validation fold is
	// single-class and the run must abort.
	ids := make([]int64, 60)
	labels := make(map[int64]float64, 60)
	for i := range ids {
		ids[i] = int64(i + 1)
		labels[ids[i]] = 1
	}
	writeLabels(t, cfg.LabelsPath, ids, labels)

	_, err := Train(cfg)
	require.Error(t, err)
	assert.True(t, rperrors.Is(err, rperrors.ErrDegenerateFold))
}

func TestScoreRequiresTestConfig(t *testing.T) {
	cfg, _ := testConfig(t)
	result, err := Train(cfg)
	require.NoError(t, err)

	cfg.TestDir = ""
	require.Error(t, Score(cfg, result))

	cfg, _ = testConfig(t)
	cfg.SubmissionPath = ""
	require.Error(t, Score(cfg, result))
}

func TestSinkArtifactsDuringTraining(t *testing.T) {
	cfg, _ := testConfig(t)
	sink := t.TempDir()
	cfg.SinkDir = sink
	cfg.TestDir = ""

	_, err := Train(cfg)
	require.NoError(t, err)

	// 6 training partitions in chunks of 2: batches start at 0, 2 and 4.
	for _, name := range []string{"agg_00000.csv", "agg_00002.csv", "agg_00004.csv"} {
		_, err := os.Stat(filepath.Join(sink, name))
		assert.NoErrorf(t, err, "expected artifact %s", name)
	}
}
