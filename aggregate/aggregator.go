package aggregate

import (
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/riskpipe/core/model"
	"github.com/YuminosukeSato/riskpipe/dataset"
	"github.com/YuminosukeSato/riskpipe/pkg/errors"
	"github.com/YuminosukeSato/riskpipe/pkg/log"
)

// Mode selects the schema behavior of a processing pass.
type Mode string

const (
	// ModeFitTransform establishes the schema from the data it processes.
	ModeFitTransform Mode = "fit_transform"
	// ModeTransform reuses the frozen schema from a prior fit.
	ModeTransform Mode = "transform"
)

// FeatureTable is the aggregator output: one row per distinct entity, one
// count column per schema entry. Counts is len(IDs) x len(Columns).
type FeatureTable struct {
	IDs     []int64
	Columns []string
	Counts  *mat.Dense
}

// NumEntities returns the number of entity rows.
func (t *FeatureTable) NumEntities() int {
	return len(t.IDs)
}

// CountAggregator converts raw categorical event sequences into fixed-width
// per-entity count vectors, processing partitions in bounded batches.
//
// The encoded schema is owned exclusively by the aggregator instance: it is
// append-only during FitTransform and read-only during Transform.
// Interleaving fit and transform calls on one instance is not supported;
// a second FitTransform discards the previous schema and starts over.
type CountAggregator struct {
	model.BaseEstimator

	schema *Schema
	logger log.Logger
}

// NewCountAggregator returns an unfitted aggregator.
func NewCountAggregator() *CountAggregator {
	return &CountAggregator{
		schema: NewSchema(),
		logger: log.GetLoggerWithName("riskpipe.aggregate"),
	}
}

// Schema returns the encoded features established by the last fit, in
// column order of the output table.
func (a *CountAggregator) Schema() []FeatureKey {
	return a.schema.Keys()
}

// FitTransform processes totalParts partitions from dir in batches of
// chunkSize partitions, establishing the schema as the union of (column,
// value) pairs observed across all batches of this call, and returns the
// aggregated feature table. If sinkDir is non-empty, each batch's aggregated
// features are also written there as an independent artifact named by the
// batch's starting partition offset.
func (a *CountAggregator) FitTransform(dir string, chunkSize, totalParts int, sinkDir string) (*FeatureTable, error) {
	return a.Process(ModeFitTransform, dir, chunkSize, totalParts, sinkDir)
}

// Transform runs the same batch-wise procedure against the frozen schema of
// a prior FitTransform. Categories unseen at fit time are silently dropped;
// schema columns absent from this call's data come out all-zero. Calling
// Transform on an unfitted aggregator fails with a NotFittedError.
func (a *CountAggregator) Transform(dir string, chunkSize, totalParts int, sinkDir string) (*FeatureTable, error) {
	if !a.IsFitted() {
		return nil, errors.NewNotFittedError("CountAggregator", "Transform")
	}
	return a.Process(ModeTransform, dir, chunkSize, totalParts, sinkDir)
}

// Process runs one batch-sequential aggregation pass in the given mode.
// An unrecognized mode fails before any data is read.
func (a *CountAggregator) Process(mode Mode, dir string, chunkSize, totalParts int, sinkDir string) (*FeatureTable, error) {
	switch mode {
	case ModeFitTransform, ModeTransform:
	default:
		return nil, errors.NewInvalidModeError("CountAggregator", string(mode))
	}
	if chunkSize <= 0 {
		return nil, errors.NewValueError("CountAggregator.Process", "chunk size must be positive")
	}
	if totalParts <= 0 {
		return nil, errors.NewValueError("CountAggregator.Process", "total partitions must be positive")
	}
	if mode == ModeTransform && !a.IsFitted() {
		return nil, errors.NewNotFittedError("CountAggregator", "Process")
	}

	if mode == ModeFitTransform {
		// Re-fitting starts from a clean schema.
		a.schema = NewSchema()
		a.Reset()
	}

	acc := newAccumulator()

	for offset := 0; offset < totalParts; offset += chunkSize {
		n := chunkSize
		if offset+n > totalParts {
			n = totalParts - offset
		}

		chunk, err := dataset.ReadChunk(dir, offset, n)
		if err != nil {
			return nil, err
		}

		batchStart := acc.numEntities()
		a.aggregateBatch(mode, chunk, acc)

		a.logger.Debug("batch aggregated",
			"mode", string(mode),
			"offset", offset,
			"partitions", n,
			"rows", chunk.NumRows(),
			"entities", acc.numEntities()-batchStart,
			"schema_width", a.schema.Len())

		if sinkDir != "" {
			path := filepath.Join(sinkDir, dataset.BatchArtifactName(offset))
			ids, rows := acc.slice(batchStart, a.schema.Len())
			if err := dataset.WriteFeatureCSV(path, a.schema.Names(), ids, rows); err != nil {
				return nil, errors.Wrapf(err, "writing batch artifact at offset %d", offset)
			}
		}
	}

	table, err := acc.finalize(a.schema)
	if err != nil {
		return nil, err
	}

	if mode == ModeFitTransform {
		a.SetFitted()
	}

	a.logger.Info("aggregation finished",
		"mode", string(mode),
		"entities", table.NumEntities(),
		"features", len(table.Columns))

	return table, nil
}

// aggregateBatch one-hot-expands a batch and folds the indicators into the
// per-entity counters. The expansion is implicit: each record contributes a
// single increment per categorical column, so peak memory stays at one
// batch's rows plus the running counters.
func (a *CountAggregator) aggregateBatch(mode Mode, chunk *dataset.Table, acc *accumulator) {
	for i, id := range chunk.IDs {
		row := acc.row(id)
		for j, col := range chunk.Columns {
			key := FeatureKey{Column: col, Value: chunk.Rows[i][j]}

			var fi int
			if mode == ModeFitTransform {
				fi = a.schema.Add(key)
			} else {
				var ok bool
				fi, ok = a.schema.Lookup(key)
				if !ok {
					// Unseen at fit time: dropped to keep dimensionality fixed.
					continue
				}
			}
			row.bump(fi)
		}
	}
}

// accumulator collects per-entity count vectors across batches. Vectors grow
// lazily with the schema; missing trailing entries are zero by construction,
// which is the explicit form of the zero-fill reconciliation between
// batch-local schemas.
type accumulator struct {
	index  map[int64]int
	ids    []int64
	counts []*countRow
}

type countRow struct {
	vals []float64
}

func (r *countRow) bump(i int) {
	for len(r.vals) <= i {
		r.vals = append(r.vals, 0)
	}
	r.vals[i]++
}

// padded returns the row zero-filled to width.
func (r *countRow) padded(width int) []float64 {
	out := make([]float64, width)
	copy(out, r.vals)
	return out
}

func newAccumulator() *accumulator {
	return &accumulator{index: make(map[int64]int)}
}

func (c *accumulator) numEntities() int {
	return len(c.ids)
}

// row returns the counter row for id, creating it in first-seen order.
func (c *accumulator) row(id int64) *countRow {
	if i, ok := c.index[id]; ok {
		return c.counts[i]
	}
	i := len(c.ids)
	c.index[id] = i
	c.ids = append(c.ids, id)
	c.counts = append(c.counts, &countRow{})
	return c.counts[i]
}

// slice returns the ids and zero-filled rows of entities [from, end) at the
// given schema width, for per-batch sink artifacts.
func (c *accumulator) slice(from, width int) ([]int64, [][]float64) {
	ids := c.ids[from:]
	rows := make([][]float64, len(ids))
	for i := range ids {
		rows[i] = c.counts[from+i].padded(width)
	}
	return ids, rows
}

// finalize zero-fills every entity row to the final schema width and packs
// the result into a dense matrix.
func (c *accumulator) finalize(schema *Schema) (*FeatureTable, error) {
	n := len(c.ids)
	width := schema.Len()
	if n == 0 || width == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "aggregation produced no features")
	}

	dense := mat.NewDense(n, width, nil)
	for i, row := range c.counts {
		dense.SetRow(i, row.padded(width))
	}

	ids := make([]int64, n)
	copy(ids, c.ids)

	return &FeatureTable{
		IDs:     ids,
		Columns: schema.Names(),
		Counts:  dense,
	}, nil
}
