// Package aggregate implements the memory-bounded count aggregator: chunked
// one-hot expansion of categorical history records followed by per-entity
// count aggregation, with an explicit fit/transform schema lifecycle.
package aggregate

// FeatureKey identifies one encoded feature: a categorical column together
// with one of its observed values.
type FeatureKey struct {
	Column string
	Value  string
}

// Name returns the column name used for this feature in output tables.
func (k FeatureKey) Name() string {
	return k.Column + "=" + k.Value
}

// Schema is the ordered set of encoded features established during fitting.
// Order is first-observation order, which makes the schema deterministic for
// a fixed input: batches are processed in partition order and rows in file
// order. The schema is append-only while fitting and frozen afterwards;
// freezing is enforced by the aggregator, not the schema itself.
type Schema struct {
	keys  []FeatureKey
	index map[FeatureKey]int
}

// NewSchema returns an empty schema.
func NewSchema() *Schema {
	return &Schema{index: make(map[FeatureKey]int)}
}

// Add returns the index of k, appending it first if unseen. This is the
// incremental union step: per-batch category spaces drift, and Add folds
// each batch's observations into one call-wide schema.
func (s *Schema) Add(k FeatureKey) int {
	if i, ok := s.index[k]; ok {
		return i
	}
	i := len(s.keys)
	s.keys = append(s.keys, k)
	s.index[k] = i
	return i
}

// Lookup returns the index of k and whether it is part of the schema.
func (s *Schema) Lookup(k FeatureKey) (int, bool) {
	i, ok := s.index[k]
	return i, ok
}

// Len returns the number of encoded features.
func (s *Schema) Len() int {
	return len(s.keys)
}

// Keys returns the encoded features in schema order.
func (s *Schema) Keys() []FeatureKey {
	out := make([]FeatureKey, len(s.keys))
	copy(out, s.keys)
	return out
}

// Names returns the output column names in schema order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.keys))
	for i, k := range s.keys {
		out[i] = k.Name()
	}
	return out
}
