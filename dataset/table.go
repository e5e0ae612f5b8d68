// Package dataset reads chunked partition files and writes pipeline
// artifacts. Partitions are CSV files named part_NNNNN.csv inside a
// directory, ordered by application date ascending. Every history record of
// an entity lives in exactly one partition, so any whole number of
// partitions read together is self-contained.
package dataset

import (
	"github.com/YuminosukeSato/riskpipe/pkg/errors"
)

// Table is an in-memory slice of history records read from one or more
// partitions, in file order. Columns holds the categorical column names;
// id and rn are kept separately.
type Table struct {
	Columns []string
	IDs     []int64
	RNs     []int
	// Rows holds the categorical values, one slice per record, aligned to
	// Columns.
	Rows [][]string
}

// NumRows returns the number of history records in the table.
func (t *Table) NumRows() int {
	return len(t.IDs)
}

// Append adds all records of other to t. Column sets must match exactly.
func (t *Table) Append(other *Table) error {
	if len(t.Columns) == 0 {
		t.Columns = other.Columns
	} else if len(t.Columns) != len(other.Columns) {
		return errors.NewDimensionError("Table.Append", len(t.Columns), len(other.Columns), 1)
	} else {
		for i, c := range t.Columns {
			if other.Columns[i] != c {
				return errors.Newf("riskpipe: Table.Append: column %d mismatch: %q vs %q", i, c, other.Columns[i])
			}
		}
	}
	t.IDs = append(t.IDs, other.IDs...)
	t.RNs = append(t.RNs, other.RNs...)
	t.Rows = append(t.Rows, other.Rows...)
	return nil
}
