package models

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

type LogisticOptions struct {
	// C is the inverse regularization strength applied to the coefficients, not the intercept
	C            float64
	LearningRate float64
	MaxIter      int
	Tolerance    float64
}

func NewDefaultLogisticOptions() *LogisticOptions {
	return &LogisticOptions{
		C:            1.0,
		LearningRate: 0.1,
		MaxIter:      1000,
		Tolerance:    1e-6,
	}
}

// LogisticRegressor fits a one-vs-rest set of binary logistic models with full batch gradient
// descent. Predictions are the class value with the highest probability.
type LogisticRegressor struct {
	opt *LogisticOptions

	classes    []float64
	intercepts []float64
	coefs      [][]float64
}

func NewLogisticRegressor(opt *LogisticOptions) (*LogisticRegressor, error) {
	if opt == nil {
		opt = NewDefaultLogisticOptions()
	}
	return &LogisticRegressor{opt: opt}, nil
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

func (l *LogisticRegressor) Fit(x, y mat.Matrix) error {
	if l.opt == nil {
		return ErrNoOptions
	}
	if x == nil {
		return ErrNoTrainingMatrix
	}
	if y == nil {
		return ErrNoTargetMatrix
	}
	m, n := x.Dims()
	ym, _ := y.Dims()
	if ym != m {
		return fmt.Errorf("training data has %d rows and target has %d row, %w", m, ym, ErrTargetLenMismatch)
	}

	target := mat.Col(nil, 0, y)
	classes := slices.Clone(target)
	slices.Sort(classes)
	classes = slices.Compact(classes)
	if len(classes) < 2 {
		return fmt.Errorf("found %d class, %w", len(classes), ErrSingleClass)
	}

	// a binary target needs a single model against the positive class
	fitClasses := classes
	if len(classes) == 2 {
		fitClasses = classes[1:]
	}

	l.classes = classes
	l.intercepts = make([]float64, 0, len(fitClasses))
	l.coefs = make([][]float64, 0, len(fitClasses))
	for _, class := range fitClasses {
		labels := make([]float64, m)
		for i, v := range target {
			if v == class {
				labels[i] = 1.0
			}
		}
		b, w, err := l.fitBinary(x, labels, n)
		if err != nil {
			return fmt.Errorf("unable to fit class %v, %w", class, err)
		}
		l.intercepts = append(l.intercepts, b)
		l.coefs = append(l.coefs, w)
	}
	return nil
}

func (l *LogisticRegressor) fitBinary(x mat.Matrix, labels []float64, n int) (float64, []float64, error) {
	m := len(labels)
	w := make([]float64, n)
	var b float64

	lambda := 0.0
	if l.opt.C > 0 {
		lambda = 1.0 / (l.opt.C * float64(m))
	}

	z := mat.NewVecDense(m, nil)
	resid := make([]float64, m)
	grad := mat.NewVecDense(n, nil)
	for iter := 0; iter < l.opt.MaxIter; iter++ {
		z.MulVec(x, mat.NewVecDense(n, w))
		for i := 0; i < m; i++ {
			resid[i] = sigmoid(z.AtVec(i)+b) - labels[i]
		}
		grad.MulVec(x.T(), mat.NewVecDense(m, resid))

		gw := grad.RawVector().Data
		floats.Scale(1.0/float64(m), gw)
		floats.AddScaled(gw, lambda, w)
		gb := floats.Sum(resid) / float64(m)

		floats.AddScaled(w, -l.opt.LearningRate, gw)
		b -= l.opt.LearningRate * gb

		if math.IsNaN(b) || floats.HasNaN(w) {
			return 0, nil, fmt.Errorf("diverged at iteration %d, %w", iter, ErrSingularMatrix)
		}
		if math.Sqrt(floats.Dot(gw, gw)+gb*gb) < l.opt.Tolerance {
			break
		}
	}
	return b, w, nil
}

// PredictProba returns per row probabilities for every fit model, one column per model
func (l *LogisticRegressor) PredictProba(x mat.Matrix) ([][]float64, error) {
	if x == nil {
		return nil, ErrNoDesignMatrix
	}
	if len(l.coefs) == 0 {
		return nil, ErrUntrained
	}
	_, n := x.Dims()
	if n != len(l.coefs[0]) {
		return nil, fmt.Errorf("got %d features in design matrix, but expected %d, %w", n, len(l.coefs[0]), ErrFeatureLenMismatch)
	}

	out := make([][]float64, 0)
	for _, row := range rows(x) {
		p := make([]float64, len(l.coefs))
		for k, w := range l.coefs {
			p[k] = sigmoid(floats.Dot(row, w) + l.intercepts[k])
		}
		out = append(out, p)
	}
	return out, nil
}

func (l *LogisticRegressor) Predict(x mat.Matrix) ([]float64, error) {
	proba, err := l.PredictProba(x)
	if err != nil {
		return nil, err
	}
	res := make([]float64, len(proba))
	for i, p := range proba {
		if len(l.coefs) == 1 {
			res[i] = l.classes[0]
			if p[0] >= 0.5 {
				res[i] = l.classes[1]
			}
			continue
		}
		res[i] = l.classes[floats.MaxIdx(p)]
	}
	return res, nil
}

// Score returns the fraction of correctly classified rows
func (l *LogisticRegressor) Score(x, y mat.Matrix) (float64, error) {
	res, err := l.Predict(x)
	if err != nil {
		return 0, err
	}
	target := mat.Col(nil, 0, y)
	if len(target) != len(res) {
		return 0, fmt.Errorf("expected %d, but got %d, %w", len(target), len(res), ErrResLenMismatch)
	}
	var correct int
	for i := range res {
		if res[i] == target[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(res)), nil
}

// Intercept returns the intercept of the first fit model
func (l *LogisticRegressor) Intercept() float64 {
	if len(l.intercepts) == 0 {
		return 0
	}
	return l.intercepts[0]
}

// Coef returns the coefficients of the first fit model
func (l *LogisticRegressor) Coef() []float64 {
	if len(l.coefs) == 0 {
		return nil
	}
	return slices.Clone(l.coefs[0])
}

// Classes returns the sorted distinct target values seen during fit
func (l *LogisticRegressor) Classes() []float64 {
	return slices.Clone(l.classes)
}

// Models returns the intercept and coefficients of every one-vs-rest model
func (l *LogisticRegressor) Models() ([]float64, [][]float64) {
	coefs := make([][]float64, len(l.coefs))
	for i, c := range l.coefs {
		coefs[i] = slices.Clone(c)
	}
	return slices.Clone(l.intercepts), coefs
}

func (l *LogisticRegressor) Variant() Variant {
	return LogisticRegression
}
