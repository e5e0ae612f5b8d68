package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/YuminosukeSato/riskpipe/pkg/errors"
)

// WriteSubmission writes the scored entity list as a two-column CSV with an
// id,score header and no index column. Scores are written with full float64
// precision.
func WriteSubmission(path string, ids []int64, scores []float64) error {
	if len(ids) != len(scores) {
		return errors.NewDimensionError("WriteSubmission", len(ids), len(scores), 0)
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create submission")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"id", "score"}); err != nil {
		return errors.Wrap(err, "write submission header")
	}
	for i, id := range ids {
		rec := []string{
			strconv.FormatInt(id, 10),
			strconv.FormatFloat(scores[i], 'g', -1, 64),
		}
		if err := w.Write(rec); err != nil {
			return errors.Wrapf(err, "write submission row %d", i)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrap(err, "flush submission")
	}
	return f.Close()
}

// BatchArtifactName returns the file name for the aggregated features of the
// batch starting at partition offset.
func BatchArtifactName(offset int) string {
	return fmt.Sprintf("agg_%05d.csv", offset)
}

// WriteFeatureCSV writes an aggregated feature block as CSV: an id column
// followed by one count column per feature name. Used for per-batch sink
// artifacts; the in-memory feature table does not depend on it.
func WriteFeatureCSV(path string, columns []string, ids []int64, rows [][]float64) error {
	if len(ids) != len(rows) {
		return errors.NewDimensionError("WriteFeatureCSV", len(ids), len(rows), 0)
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create feature artifact")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append([]string{"id"}, columns...)
	if err := w.Write(header); err != nil {
		return errors.Wrap(err, "write feature header")
	}
	for i, id := range ids {
		if len(rows[i]) != len(columns) {
			return errors.NewDimensionError("WriteFeatureCSV", len(columns), len(rows[i]), 1)
		}
		rec := make([]string, 0, len(columns)+1)
		rec = append(rec, strconv.FormatInt(id, 10))
		for _, v := range rows[i] {
			rec = append(rec, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := w.Write(rec); err != nil {
			return errors.Wrapf(err, "write feature row %d", i)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrap(err, "flush feature artifact")
	}
	return f.Close()
}
