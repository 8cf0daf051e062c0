package models

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// withIntercept prepends a column of ones to x
func withIntercept(x mat.Matrix) mat.Matrix {
	m, _ := x.Dims()
	ones := make([]float64, m)
	floats.AddConst(1.0, ones)
	onesMx := mat.NewDense(1, m, ones)

	var xWithOnes mat.Dense
	xWithOnes.Stack(onesMx, x.T())
	return xWithOnes.T()
}

// rows returns the rows of x as slices
func rows(x mat.Matrix) [][]float64 {
	m, _ := x.Dims()
	out := make([][]float64, m)
	for i := 0; i < m; i++ {
		out[i] = mat.Row(nil, i, x)
	}
	return out
}
