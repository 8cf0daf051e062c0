package models

import (
	"testing"

	mat_ "github.com/aouyang1/go-marketmaster/mat"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestLogisticRegressionBinary(t *testing.T) {
	x, err := mat_.NewDenseFromArray([][]float64{
		{-3}, {-2.5}, {-2}, {-1.5}, {-1}, {1}, {1.5}, {2}, {2.5}, {3},
	})
	require.Nil(t, err)
	y := mat.NewDense(10, 1, []float64{0, 0, 0, 0, 0, 1, 1, 1, 1, 1})

	model, err := NewLogisticRegressor(nil)
	require.Nil(t, err)
	require.Nil(t, model.Fit(x, y))

	assert.Equal(t, []float64{0, 1}, model.Classes())
	assert.Greater(t, model.Coef()[0], 0.0)

	res, err := model.Predict(x)
	require.Nil(t, err)
	assert.Equal(t, []float64{0, 0, 0, 0, 0, 1, 1, 1, 1, 1}, res)

	acc, err := model.Score(x, y)
	require.Nil(t, err)
	assert.Equal(t, 1.0, acc)
}

func TestLogisticRegressionMulticlass(t *testing.T) {
	x, err := mat_.NewDenseFromArray([][]float64{
		{-2, -2}, {-2.2, -1.8}, {-1.8, -2.1},
		{2, 2}, {2.1, 1.9}, {1.9, 2.2},
		{2, -2}, {2.2, -1.9}, {1.8, -2.1},
	})
	require.Nil(t, err)
	y := mat.NewDense(9, 1, []float64{5, 5, 5, 7, 7, 7, 9, 9, 9})

	model, err := NewLogisticRegressor(nil)
	require.Nil(t, err)
	require.Nil(t, model.Fit(x, y))

	intercepts, coefs := model.Models()
	assert.Len(t, intercepts, 3)
	assert.Len(t, coefs, 3)

	res, err := model.Predict(x)
	require.Nil(t, err)
	assert.Equal(t, []float64{5, 5, 5, 7, 7, 7, 9, 9, 9}, res)
}

func TestLogisticRegressionErrors(t *testing.T) {
	model, err := NewLogisticRegressor(nil)
	require.Nil(t, err)

	_, err = model.Predict(mat.NewDense(1, 1, []float64{1}))
	assert.ErrorIs(t, err, ErrUntrained)

	x := mat.NewDense(3, 1, []float64{1, 2, 3})
	err = model.Fit(x, mat.NewDense(3, 1, []float64{1, 1, 1}))
	assert.ErrorIs(t, err, ErrSingleClass)
}
