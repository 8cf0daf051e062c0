// Package mat converts row or column oriented slices into gonum dense matrices
package mat

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrColMismatch = errors.New("column size mismatch")
	ErrRowMismatch = errors.New("row size mismatch")
	ErrEmpty       = errors.New("no values to build matrix")
)

// NewDenseFromArray builds an m x n matrix from m rows of n values
func NewDenseFromArray(x [][]float64) (*mat.Dense, error) {
	m := len(x)

	n := -1
	for i, row := range x {
		if n >= 0 && len(row) != n {
			return nil, fmt.Errorf("at row %d, %w", i, ErrColMismatch)
		}
		if n < 0 {
			n = len(row)
		}
	}
	if m == 0 || n <= 0 {
		return nil, ErrEmpty
	}

	// flatten to row order
	data := make([]float64, 0, m*n)
	for _, row := range x {
		data = append(data, row...)
	}
	return mat.NewDense(m, n, data), nil
}

// NewDenseFromColumns builds an m x n matrix from n columns of m values
func NewDenseFromColumns(cols [][]float64) (*mat.Dense, error) {
	n := len(cols)
	if n == 0 || len(cols[0]) == 0 {
		return nil, ErrEmpty
	}
	m := len(cols[0])
	for j, col := range cols {
		if len(col) != m {
			return nil, fmt.Errorf("at column %d, %w", j, ErrRowMismatch)
		}
	}
	mx := mat.NewDense(m, n, nil)
	for j, col := range cols {
		mx.SetCol(j, col)
	}
	return mx, nil
}

// NewColumn builds an m x 1 matrix from a slice
func NewColumn(y []float64) (*mat.Dense, error) {
	if len(y) == 0 {
		return nil, ErrEmpty
	}
	data := make([]float64, len(y))
	copy(data, y)
	return mat.NewDense(len(y), 1, data), nil
}
