package models

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"
)

// singularTol is the smallest absolute diagonal of R accepted as full rank
const singularTol = 1e-10

type OLSOptions struct {
	FitIntercept bool
}

func NewDefaultOLSOptions() *OLSOptions {
	return &OLSOptions{
		FitIntercept: true,
	}
}

// Validate returns a default set of options when nil
func (o *OLSOptions) Validate() (*OLSOptions, error) {
	if o == nil {
		return NewDefaultOLSOptions(), nil
	}
	return o, nil
}

// OLSRegression fits ordinary least squares by QR factorization of the design matrix. A rank
// deficient design is rejected rather than solved with a pseudo inverse.
type OLSRegression struct {
	opt       *OLSOptions
	coef      []float64
	intercept float64
	trained   bool
}

func NewOLSRegression(opt *OLSOptions) (*OLSRegression, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}
	return &OLSRegression{
		opt: opt,
	}, nil
}

// design prepends the intercept column when one is fit
func (o *OLSRegression) design(x mat.Matrix) mat.Matrix {
	if o.opt.FitIntercept {
		return withIntercept(x)
	}
	return x
}

func (o *OLSRegression) Fit(x, y mat.Matrix) error {
	if o.opt == nil {
		return ErrNoOptions
	}
	if x == nil {
		return ErrNoTrainingMatrix
	}
	if y == nil {
		return ErrNoTargetMatrix
	}
	m, _ := x.Dims()
	if ym, _ := y.Dims(); ym != m {
		return fmt.Errorf("training data has %d rows and target has %d row, %w", m, ym, ErrTargetLenMismatch)
	}

	a := o.design(x)
	_, n := a.Dims()
	if m < n {
		return fmt.Errorf("%d rows for %d coefficients, %w", m, n, ErrSingularMatrix)
	}

	var qr mat.QR
	qr.Factorize(a)

	var r mat.Dense
	qr.RTo(&r)
	for i := 0; i < n; i++ {
		if math.Abs(r.At(i, i)) < singularTol {
			return fmt.Errorf("zero pivot at coefficient %d, %w", i, ErrSingularMatrix)
		}
	}

	var beta mat.Dense
	if err := qr.SolveTo(&beta, false, y); err != nil {
		return fmt.Errorf("%w, %w", ErrSingularMatrix, err)
	}
	c := mat.Col(nil, 0, &beta)

	o.intercept = 0
	if o.opt.FitIntercept {
		o.intercept, c = c[0], c[1:]
	}
	o.coef = c
	o.trained = true
	return nil
}

func (o *OLSRegression) Predict(x mat.Matrix) ([]float64, error) {
	if o.opt == nil {
		return nil, ErrNoOptions
	}
	if x == nil {
		return nil, ErrNoDesignMatrix
	}
	if !o.trained {
		return nil, ErrUntrained
	}

	if _, n := x.Dims(); n != len(o.coef) {
		return nil, fmt.Errorf("got %d features in design matrix, but expected %d, %w", n, len(o.coef), ErrFeatureLenMismatch)
	}
	coef := o.coef
	if o.opt.FitIntercept {
		coef = append([]float64{o.intercept}, o.coef...)
	}

	var res mat.VecDense
	res.MulVec(o.design(x), mat.NewVecDense(len(coef), coef))
	return slices.Clone(res.RawVector().Data), nil
}

// Score returns the coefficient of determination of the predictions on x against y
func (o *OLSRegression) Score(x, y mat.Matrix) (float64, error) {
	if y == nil {
		return 0.0, ErrNoTargetMatrix
	}
	res, err := o.Predict(x)
	if err != nil {
		return 0.0, err
	}
	if ym, _ := y.Dims(); ym != len(res) {
		return 0.0, fmt.Errorf("design matrix has %d rows and target has %d rows, %w", len(res), ym, ErrTargetLenMismatch)
	}
	return RSquared(res, mat.Col(nil, 0, y))
}

func (o *OLSRegression) Intercept() float64 {
	return o.intercept
}

func (o *OLSRegression) Coef() []float64 {
	return slices.Clone(o.coef)
}

func (o *OLSRegression) Variant() Variant {
	return LinearRegression
}
