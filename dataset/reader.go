package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/YuminosukeSato/riskpipe/pkg/errors"
	"github.com/YuminosukeSato/riskpipe/pkg/log"
)

// PartitionName returns the file name of partition i.
func PartitionName(i int) string {
	return fmt.Sprintf("part_%05d.csv", i)
}

// ReadChunk reads numParts consecutive partitions starting at startPart from
// dir and returns them concatenated, preserving row order within and across
// partitions. A missing or unreadable partition aborts the read; there is no
// retry or partial-read recovery.
func ReadChunk(dir string, startPart, numParts int) (*Table, error) {
	if numParts <= 0 {
		return nil, errors.NewValueError("ReadChunk", "numParts must be positive")
	}

	logger := log.GetLoggerWithName("riskpipe.dataset")

	chunk := &Table{}
	for p := startPart; p < startPart+numParts; p++ {
		part, err := readPartition(filepath.Join(dir, PartitionName(p)))
		if err != nil {
			return nil, errors.Wrapf(err, "reading partition %d", p)
		}
		if err := chunk.Append(part); err != nil {
			return nil, errors.Wrapf(err, "concatenating partition %d", p)
		}
	}

	logger.Debug("chunk read",
		"start_partition", startPart,
		"num_partitions", numParts,
		"rows", chunk.NumRows())

	return chunk, nil
}

// readPartition parses one partition file. The header row must start with
// id,rn followed by the categorical columns.
func readPartition(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open partition")
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "parse partition %s", path)
	}
	if len(records) == 0 {
		return nil, errors.Wrapf(errors.ErrEmptyData, "partition %s", path)
	}

	header := records[0]
	if len(header) < 2 || header[0] != "id" || header[1] != "rn" {
		return nil, errors.Newf("riskpipe: partition %s: header must start with id,rn", path)
	}

	t := &Table{Columns: header[2:]}
	for line, rec := range records[1:] {
		if len(rec) != len(header) {
			return nil, errors.Newf("riskpipe: partition %s: row %d has %d fields, want %d", path, line+1, len(rec), len(header))
		}
		id, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "partition %s: row %d: bad id %q", path, line+1, rec[0])
		}
		rn, err := strconv.Atoi(rec[1])
		if err != nil {
			return nil, errors.Wrapf(err, "partition %s: row %d: bad rn %q", path, line+1, rec[1])
		}
		t.IDs = append(t.IDs, id)
		t.RNs = append(t.RNs, rn)
		t.Rows = append(t.Rows, rec[2:])
	}
	return t, nil
}

// ReadLabels reads a two-column id,flag CSV mapping training entities to
// their binary default label.
func ReadLabels(path string) (map[int64]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open labels")
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "parse labels %s", path)
	}
	if len(records) == 0 {
		return nil, errors.Wrapf(errors.ErrEmptyData, "labels %s", path)
	}

	labels := make(map[int64]float64, len(records)-1)
	for line, rec := range records[1:] {
		if len(rec) < 2 {
			return nil, errors.Newf("riskpipe: labels %s: row %d has %d fields, want 2", path, line+1, len(rec))
		}
		id, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "labels %s: row %d: bad id %q", path, line+1, rec[0])
		}
		flag, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "labels %s: row %d: bad flag %q", path, line+1, rec[1])
		}
		if flag != 0 && flag != 1 {
			return nil, errors.NewValueError("ReadLabels", fmt.Sprintf("non-binary flag %v for id %d", flag, id))
		}
		labels[id] = flag
	}
	return labels, nil
}
