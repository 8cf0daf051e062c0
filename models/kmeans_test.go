package models

import (
	"testing"

	mat_ "github.com/aouyang1/go-marketmaster/mat"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestKMeans(t *testing.T) {
	x, err := mat_.NewDenseFromArray([][]float64{
		{0, 0}, {0.1, 0.2}, {-0.1, 0.1},
		{10, 10}, {10.2, 9.9}, {9.8, 10.1},
	})
	require.Nil(t, err)

	model, err := NewKMeans(&KMeansOptions{K: 2, MaxIter: 100, Seed: 42})
	require.Nil(t, err)
	require.Nil(t, model.Fit(x))

	res, err := model.Predict(x)
	require.Nil(t, err)
	assert.Equal(t, res[0], res[1])
	assert.Equal(t, res[0], res[2])
	assert.Equal(t, res[3], res[4])
	assert.Equal(t, res[3], res[5])
	assert.NotEqual(t, res[0], res[3])

	centers := model.Centers()
	require.Len(t, centers, 2)
	assert.Less(t, model.Inertia(), 1.0)

	// same seed gives the same centers
	again, err := NewKMeans(&KMeansOptions{K: 2, MaxIter: 100, Seed: 42})
	require.Nil(t, err)
	require.Nil(t, again.Fit(x))
	assert.Equal(t, centers, again.Centers())
}

func TestKMeansErrors(t *testing.T) {
	_, err := NewKMeans(&KMeansOptions{K: 0})
	assert.ErrorIs(t, err, ErrNumClusters)

	model, err := NewKMeans(&KMeansOptions{K: 3, MaxIter: 10})
	require.Nil(t, err)

	_, err = model.Predict(mat.NewDense(1, 1, []float64{1}))
	assert.ErrorIs(t, err, ErrUntrained)

	err = model.Fit(mat.NewDense(2, 1, []float64{1, 2}))
	assert.ErrorIs(t, err, ErrTooFewSamples)
}
