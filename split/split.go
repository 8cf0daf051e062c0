// Package split partitions a feature table into seeded train and test subsets.
package split

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/aouyang1/go-marketmaster/dataset"
	mat_ "github.com/aouyang1/go-marketmaster/mat"

	"gonum.org/v1/gonum/mat"
)

const (
	MinTestSize = 0.10
	MaxTestSize = 0.40

	// roundingTol keeps fractions such as 0.3*10 from rounding up past the exact count
	roundingTol = 1e-9
)

var (
	ErrTestSize         = errors.New("test size out of range")
	ErrNegativeSeed     = errors.New("seed must be non-negative")
	ErrNoFeatures       = errors.New("no feature columns selected")
	ErrInsufficientRows = errors.New("insufficient rows to split")
)

type Options struct {
	TestSize float64 `json:"test_size" yaml:"test_size"`
	Seed     int64   `json:"seed" yaml:"seed"`
}

func NewDefaultOptions() *Options {
	return &Options{
		TestSize: 0.20,
		Seed:     42,
	}
}

// Validate returns a default set of options when nil and checks the test fraction and seed
func (o *Options) Validate() (*Options, error) {
	if o == nil {
		return NewDefaultOptions(), nil
	}
	if math.IsNaN(o.TestSize) || o.TestSize < MinTestSize || o.TestSize > MaxTestSize {
		return nil, fmt.Errorf("%.2f not in [%.2f, %.2f], %w", o.TestSize, MinTestSize, MaxTestSize, ErrTestSize)
	}
	if o.Seed < 0 {
		return nil, fmt.Errorf("%d, %w", o.Seed, ErrNegativeSeed)
	}
	return o, nil
}

// Subset is one side of a split. X is row major with one column per feature and Y is aligned
// with X. Index carries the row identities from the source table.
type Subset struct {
	Index    []int
	Features []string
	X        [][]float64
	Y        []float64
}

// Len returns the number of rows
func (s *Subset) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Y)
}

// Matrix returns the feature design matrix and the target column matrix
func (s *Subset) Matrix() (*mat.Dense, *mat.Dense, error) {
	x, err := mat_.NewDenseFromArray(s.X)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to build design matrix, %w", err)
	}
	y, err := mat_.NewColumn(s.Y)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to build target matrix, %w", err)
	}
	return x, y, nil
}

// Result holds both sides of a split and the number of rows dropped for missing values
type Result struct {
	Train   *Subset
	Test    *Subset
	Dropped int
}

// Split drops rows with missing values in any feature or the target, then assigns the first
// ceil(TestSize*n) rows of a seeded permutation to the test side and the rest to train. The same
// table, fraction and seed always produce the same partition.
func Split(t *dataset.Table, target string, features []string, opt *Options) (*Result, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}
	if len(features) == 0 {
		return nil, ErrNoFeatures
	}

	y, err := t.Numeric(target)
	if err != nil {
		return nil, fmt.Errorf("unable to read target %s, %w", target, err)
	}
	cols := make([][]float64, len(features))
	for i, f := range features {
		cols[i], err = t.Numeric(f)
		if err != nil {
			return nil, fmt.Errorf("unable to read feature %s, %w", f, err)
		}
	}

	keep := make([]int, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		if math.IsNaN(y[i]) {
			continue
		}
		complete := true
		for _, c := range cols {
			if math.IsNaN(c[i]) {
				complete = false
				break
			}
		}
		if complete {
			keep = append(keep, i)
		}
	}

	n := len(keep)
	nTest := int(math.Ceil(opt.TestSize*float64(n) - roundingTol))
	if n == 0 || nTest == 0 || nTest >= n {
		return nil, fmt.Errorf("%d complete rows with %d for test, %w", n, nTest, ErrInsufficientRows)
	}

	rng := rand.New(rand.NewPCG(uint64(opt.Seed), uint64(opt.Seed)))
	perm := rng.Perm(n)

	subset := func(pos []int) *Subset {
		s := &Subset{
			Index:    make([]int, len(pos)),
			Features: append([]string(nil), features...),
			X:        make([][]float64, len(pos)),
			Y:        make([]float64, len(pos)),
		}
		for i, p := range pos {
			row := keep[p]
			s.Index[i] = t.Index[row]
			s.Y[i] = y[row]
			s.X[i] = make([]float64, len(cols))
			for j, c := range cols {
				s.X[i][j] = c[row]
			}
		}
		return s
	}

	return &Result{
		Test:    subset(perm[:nTest]),
		Train:   subset(perm[nTest:]),
		Dropped: t.Len() - n,
	}, nil
}
