package models

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

type KMeansOptions struct {
	K       int
	MaxIter int
	Seed    uint64
}

func NewDefaultKMeansOptions() *KMeansOptions {
	return &KMeansOptions{
		K:       3,
		MaxIter: 300,
		Seed:    42,
	}
}

// KMeans partitions rows into K clusters with Lloyd iterations from a k-means++ start
type KMeans struct {
	opt *KMeansOptions

	centers [][]float64
	inertia float64
}

func NewKMeans(opt *KMeansOptions) (*KMeans, error) {
	if opt == nil {
		opt = NewDefaultKMeansOptions()
	}
	if opt.K < 1 {
		return nil, ErrNumClusters
	}
	return &KMeans{opt: opt}, nil
}

func sqDist(a, b []float64) float64 {
	d := floats.Distance(a, b, 2)
	return d * d
}

func (k *KMeans) nearest(row []float64) (int, float64) {
	best, bestDist := 0, math.Inf(1)
	for c, center := range k.centers {
		d := sqDist(row, center)
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, bestDist
}

// initCenters picks starting centers with k-means++ seeding
func (k *KMeans) initCenters(data [][]float64, rng *rand.Rand) {
	k.centers = make([][]float64, 0, k.opt.K)
	first := data[rng.IntN(len(data))]
	k.centers = append(k.centers, append([]float64(nil), first...))

	dist := make([]float64, len(data))
	for len(k.centers) < k.opt.K {
		for i, row := range data {
			_, dist[i] = k.nearest(row)
		}
		total := floats.Sum(dist)
		next := rng.IntN(len(data))
		if total > 0 {
			target := rng.Float64() * total
			var cum float64
			for i, d := range dist {
				cum += d
				if cum >= target {
					next = i
					break
				}
			}
		}
		k.centers = append(k.centers, append([]float64(nil), data[next]...))
	}
}

// Fit clusters the rows of x. The target is not used.
func (k *KMeans) Fit(x mat.Matrix) error {
	if k.opt == nil {
		return ErrNoOptions
	}
	if x == nil {
		return ErrNoTrainingMatrix
	}
	m, n := x.Dims()
	if m < k.opt.K {
		return fmt.Errorf("%d samples for %d clusters, %w", m, k.opt.K, ErrTooFewSamples)
	}

	data := rows(x)
	rng := rand.New(rand.NewPCG(k.opt.Seed, k.opt.Seed))
	k.initCenters(data, rng)

	assign := make([]int, m)
	for i := range assign {
		assign[i] = -1
	}
	for iter := 0; iter < k.opt.MaxIter; iter++ {
		changed := false
		k.inertia = 0
		for i, row := range data {
			c, d := k.nearest(row)
			k.inertia += d
			if assign[i] != c {
				assign[i] = c
				changed = true
			}
		}
		if !changed {
			break
		}

		sums := make([][]float64, k.opt.K)
		counts := make([]int, k.opt.K)
		for c := range sums {
			sums[c] = make([]float64, n)
		}
		for i, row := range data {
			floats.Add(sums[assign[i]], row)
			counts[assign[i]]++
		}
		for c := range sums {
			// an empty cluster keeps its previous center
			if counts[c] == 0 {
				continue
			}
			floats.Scale(1.0/float64(counts[c]), sums[c])
			k.centers[c] = sums[c]
		}
	}
	return nil
}

// Predict returns the cluster id of the nearest center for every row
func (k *KMeans) Predict(x mat.Matrix) ([]float64, error) {
	if x == nil {
		return nil, ErrNoDesignMatrix
	}
	if len(k.centers) == 0 {
		return nil, ErrUntrained
	}
	_, n := x.Dims()
	if n != len(k.centers[0]) {
		return nil, fmt.Errorf("got %d features in design matrix, but expected %d, %w", n, len(k.centers[0]), ErrFeatureLenMismatch)
	}
	data := rows(x)
	res := make([]float64, len(data))
	for i, row := range data {
		c, _ := k.nearest(row)
		res[i] = float64(c)
	}
	return res, nil
}

// Centers returns a copy of the cluster centers
func (k *KMeans) Centers() [][]float64 {
	out := make([][]float64, len(k.centers))
	for i, c := range k.centers {
		out[i] = append([]float64(nil), c...)
	}
	return out
}

// Inertia is the sum of squared distances of rows to their assigned center
func (k *KMeans) Inertia() float64 {
	return k.inertia
}

func (k *KMeans) Variant() Variant {
	return KMeansClustering
}
