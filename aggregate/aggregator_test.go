package aggregate

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/riskpipe/dataset"
	rperrors "github.com/YuminosukeSato/riskpipe/pkg/errors"
)

// writePartition writes one partition CSV. Each row is id, rn, then the
// categorical values.
func writePartition(t *testing.T, dir string, idx int, columns []string, rows [][]string) {
	t.Helper()

	f, err := os.Create(filepath.Join(dir, dataset.PartitionName(idx)))
	require.NoError(t, err)
	defer f.Close()

	w := csv.NewWriter(f)
	require.NoError(t, w.Write(append([]string{"id", "rn"}, columns...)))
	for _, row := range rows {
		require.NoError(t, w.Write(row))
	}
	w.Flush()
	require.NoError(t, w.Error())
}

// writeToyData lays out the toy dataset: 2 partitions, 3 entities, 2
// categorical columns with 2 categories each.
func writeToyData(t *testing.T, dir string) {
	t.Helper()
	columns := []string{"contract_type", "status"}
	writePartition(t, dir, 0, columns, [][]string{
		{"1", "0", "a", "x"},
		{"1", "1", "a", "y"},
		{"2", "0", "b", "x"},
	})
	writePartition(t, dir, 1, columns, [][]string{
		{"3", "0", "b", "y"},
	})
}

func TestFitTransformToyDataset(t *testing.T) {
	dir := t.TempDir()
	writeToyData(t, dir)

	agg := NewCountAggregator()
	table, err := agg.FitTransform(dir, 1, 2, "")
	require.NoError(t, err)

	// 3 entities, 1 id column + 4 one-hot count columns.
	assert.Equal(t, 3, table.NumEntities())
	assert.Len(t, table.Columns, 4)
	assert.Equal(t, []int64{1, 2, 3}, table.IDs)
	assert.Equal(t, []string{"contract_type=a", "status=x", "status=y", "contract_type=b"}, table.Columns)

	recordCounts := map[int64]float64{1: 2, 2: 1, 3: 1}
	for i, id := range table.IDs {
		// Each record contributes one indicator per categorical column, so
		// the row total is record count times column count.
		rowSum := mat.Sum(table.Counts.RowView(i))
		assert.Equalf(t, recordCounts[id]*2, rowSum, "row sum for entity %d", id)
	}

	// Entity 1: two records, both contract_type=a, one status=x one status=y.
	assert.Equal(t, 2.0, table.Counts.At(0, 0))
	assert.Equal(t, 1.0, table.Counts.At(0, 1))
	assert.Equal(t, 1.0, table.Counts.At(0, 2))
	assert.Equal(t, 0.0, table.Counts.At(0, 3))
}

func TestTransformDropsUnseenCategoriesAndZeroFills(t *testing.T) {
	fitDir := t.TempDir()
	writeToyData(t, fitDir)

	agg := NewCountAggregator()
	fitTable, err := agg.FitTransform(fitDir, 1, 2, "")
	require.NoError(t, err)

	// New data introduces brand-new category "z" and never shows "a".
	transDir := t.TempDir()
	writePartition(t, transDir, 0, []string{"contract_type", "status"}, [][]string{
		{"10", "0", "b", "z"},
		{"10", "1", "b", "x"},
	})

	table, err := agg.Transform(transDir, 1, 1, "")
	require.NoError(t, err)

	// Column set identical to fit time, regardless of what transform saw.
	assert.Equal(t, fitTable.Columns, table.Columns)
	assert.Equal(t, []int64{10}, table.IDs)

	// contract_type=b counted twice, status=x once, "z" silently ignored,
	// contract_type=a and status=y zero-filled.
	assert.Equal(t, 0.0, table.Counts.At(0, 0))
	assert.Equal(t, 1.0, table.Counts.At(0, 1))
	assert.Equal(t, 0.0, table.Counts.At(0, 2))
	assert.Equal(t, 2.0, table.Counts.At(0, 3))
}

func TestTransformIdempotence(t *testing.T) {
	dir := t.TempDir()
	writeToyData(t, dir)

	agg := NewCountAggregator()
	_, err := agg.FitTransform(dir, 1, 2, "")
	require.NoError(t, err)

	first, err := agg.Transform(dir, 1, 2, "")
	require.NoError(t, err)
	second, err := agg.Transform(dir, 1, 2, "")
	require.NoError(t, err)

	assert.Equal(t, first.IDs, second.IDs)
	assert.Equal(t, first.Columns, second.Columns)
	assert.True(t, mat.Equal(first.Counts, second.Counts))
}

func TestFitTransformCompleteness(t *testing.T) {
	dir := t.TempDir()
	columns := []string{"c"}
	writePartition(t, dir, 0, columns, [][]string{
		{"5", "0", "a"},
		{"5", "1", "b"},
		{"7", "0", "a"},
	})
	writePartition(t, dir, 1, columns, [][]string{
		{"9", "0", "b"},
	})
	writePartition(t, dir, 2, columns, [][]string{
		{"11", "0", "a"},
		{"11", "1", "a"},
	})

	agg := NewCountAggregator()
	table, err := agg.FitTransform(dir, 2, 3, "")
	require.NoError(t, err)

	seen := make(map[int64]int)
	for _, id := range table.IDs {
		seen[id]++
	}
	assert.Equal(t, map[int64]int{5: 1, 7: 1, 9: 1, 11: 1}, seen)
}

func TestSchemaIsUnionAcrossBatches(t *testing.T) {
	dir := t.TempDir()
	columns := []string{"c"}
	// Category "b" only appears in the second batch.
	writePartition(t, dir, 0, columns, [][]string{{"1", "0", "a"}})
	writePartition(t, dir, 1, columns, [][]string{{"2", "0", "b"}})

	agg := NewCountAggregator()
	table, err := agg.FitTransform(dir, 1, 2, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"c=a", "c=b"}, table.Columns)

	// Entity 1 was aggregated before c=b existed; its column is zero-filled.
	assert.Equal(t, 0.0, table.Counts.At(0, 1))
	assert.Equal(t, 1.0, table.Counts.At(1, 1))
}

func TestTransformBeforeFitFails(t *testing.T) {
	agg := NewCountAggregator()
	_, err := agg.Transform(t.TempDir(), 1, 1, "")
	require.Error(t, err)

	var notFitted *rperrors.NotFittedError
	assert.True(t, rperrors.As(err, &notFitted))
	assert.Equal(t, "CountAggregator", notFitted.Component)
}

func TestProcessInvalidMode(t *testing.T) {
	agg := NewCountAggregator()
	// The mode is rejected before any path is touched.
	_, err := agg.Process(Mode("bogus"), "does-not-exist", 1, 1, "")
	require.Error(t, err)

	var invalidMode *rperrors.InvalidModeError
	assert.True(t, rperrors.As(err, &invalidMode))
	assert.Equal(t, "bogus", invalidMode.Mode)
}

func TestProcessRejectsBadArguments(t *testing.T) {
	agg := NewCountAggregator()
	_, err := agg.Process(ModeFitTransform, t.TempDir(), 0, 1, "")
	require.Error(t, err)
	_, err = agg.Process(ModeFitTransform, t.TempDir(), 1, 0, "")
	require.Error(t, err)
}

func TestMissingPartitionAborts(t *testing.T) {
	dir := t.TempDir()
	writePartition(t, dir, 0, []string{"c"}, [][]string{{"1", "0", "a"}})

	agg := NewCountAggregator()
	// Partition 1 does not exist; the run fails with no recovery.
	_, err := agg.FitTransform(dir, 1, 2, "")
	require.Error(t, err)
}

func TestSinkWritesPerBatchArtifacts(t *testing.T) {
	dir := t.TempDir()
	columns := []string{"c"}
	writePartition(t, dir, 0, columns, [][]string{{"1", "0", "a"}})
	writePartition(t, dir, 1, columns, [][]string{{"2", "0", "b"}})
	writePartition(t, dir, 2, columns, [][]string{{"3", "0", "a"}})

	sink := t.TempDir()
	agg := NewCountAggregator()
	_, err := agg.FitTransform(dir, 2, 3, sink)
	require.NoError(t, err)

	// Batches started at offsets 0 and 2; artifacts are named accordingly.
	for _, name := range []string{"agg_00000.csv", "agg_00002.csv"} {
		_, err := os.Stat(filepath.Join(sink, name))
		assert.NoErrorf(t, err, "expected artifact %s", name)
	}
}

func TestRefitResetsSchema(t *testing.T) {
	dir1 := t.TempDir()
	writePartition(t, dir1, 0, []string{"c"}, [][]string{{"1", "0", "a"}})
	dir2 := t.TempDir()
	writePartition(t, dir2, 0, []string{"c"}, [][]string{{"2", "0", "b"}})

	agg := NewCountAggregator()
	_, err := agg.FitTransform(dir1, 1, 1, "")
	require.NoError(t, err)

	table, err := agg.FitTransform(dir2, 1, 1, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"c=b"}, table.Columns)
}
