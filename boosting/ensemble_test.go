package boosting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsemblePredictMeansModels(t *testing.T) {
	X, y := separableData(40)

	trainer := NewTrainer(smallParams())
	require.NoError(t, trainer.Fit(X, y))
	model := trainer.GetModel()

	single, err := model.Predict(X)
	require.NoError(t, err)

	// Averaging the same model twice must reproduce its own predictions.
	scores, err := EnsemblePredict([]*Model{model, model}, X)
	require.NoError(t, err)
	require.Len(t, scores, 40)
	for i := range scores {
		assert.InDelta(t, single.At(i, 0), scores[i], 1e-12)
	}
}

func TestEnsemblePredictDistinctModels(t *testing.T) {
	X, y := separableData(40)

	p1 := smallParams()
	p1.NumIterations = 3
	t1 := NewTrainer(p1)
	require.NoError(t, t1.Fit(X, y))

	p2 := smallParams()
	p2.NumIterations = 10
	t2 := NewTrainer(p2)
	require.NoError(t, t2.Fit(X, y))

	m1, m2 := t1.GetModel(), t2.GetModel()
	pred1, err := m1.Predict(X)
	require.NoError(t, err)
	pred2, err := m2.Predict(X)
	require.NoError(t, err)

	scores, err := EnsemblePredict([]*Model{m1, m2}, X)
	require.NoError(t, err)
	for i := range scores {
		assert.InDelta(t, (pred1.At(i, 0)+pred2.At(i, 0))/2, scores[i], 1e-12)
	}
}

func TestEnsemblePredictNoModels(t *testing.T) {
	X, _ := separableData(4)
	_, err := EnsemblePredict(nil, X)
	require.Error(t, err)
}
