package worm

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Sample is one labelled worm from a training set: its skeletal midline,
// the body radius measured at each midline vertex, and its size metrics.
// Radii must align one-to-one with Points.
type Sample struct {
	Points     []Point   `json:"points"`
	Radii      []float64 `json:"radii"`
	Area       float64   `json:"area"`
	PathLength float64   `json:"path_length"`
}

// TrainConfig tunes the offline training procedure. Zero values fall back
// to the defaults below.
type TrainConfig struct {
	NumControlPoints int     // control points sampled along each skeleton
	AreaQuantile     float64 // tail fraction trimmed when deriving area bounds
	CostQuantile     float64 // quantile of self-costs used for the threshold
	OverlapWeight    float64 // scoring coefficient carried into the record
	LeftoverWeight   float64 // scoring coefficient carried into the record
	Version          int     // producer revision stamped on the record
}

const (
	defaultNumControlPoints = 21
	defaultAreaQuantile     = 0.01
	defaultCostQuantile     = 0.95
	defaultOverlapWeight    = 5
	defaultLeftoverWeight   = 10
	defaultVersion          = 1
)

func (c TrainConfig) withDefaults() TrainConfig {
	if c.NumControlPoints == 0 {
		c.NumControlPoints = defaultNumControlPoints
	}
	if c.AreaQuantile == 0 {
		c.AreaQuantile = defaultAreaQuantile
	}
	if c.CostQuantile == 0 {
		c.CostQuantile = defaultCostQuantile
	}
	if c.OverlapWeight == 0 {
		c.OverlapWeight = defaultOverlapWeight
	}
	if c.LeftoverWeight == 0 {
		c.LeftoverWeight = defaultLeftoverWeight
	}
	if c.Version == 0 {
		c.Version = defaultVersion
	}
	return c
}

// Train derives a TrainingParams record from a labelled worm population.
// The result is deterministic for a given input. The number of samples must
// exceed the feature dimension or the angle covariance cannot be inverted.
func Train(samples []Sample, cfg TrainConfig) (*TrainingParams, error) {
	cfg = cfg.withDefaults()
	n := cfg.NumControlPoints
	if n < 3 {
		return nil, fmt.Errorf("train: num control points %d too small", n)
	}
	if len(samples) <= n {
		return nil, fmt.Errorf("train: %d samples cannot support a %d-dimensional covariance, need at least %d",
			len(samples), n, n+1)
	}

	angleRows := mat.NewDense(len(samples), n, nil)
	radiiSum := make([]float64, n)
	areas := make([]float64, 0, len(samples))
	pathLengths := make([]float64, 0, len(samples))
	var maxSkelLength, maxRadius float64

	for si, s := range samples {
		if len(s.Radii) != len(s.Points) {
			return nil, fmt.Errorf("train: sample %d has %d radii for %d points",
				si, len(s.Radii), len(s.Points))
		}
		// One extra vertex beyond each end so every control point is an
		// interior vertex with a bend angle.
		resampled, err := ResampleSkeleton(s.Points, n+2)
		if err != nil {
			return nil, fmt.Errorf("train: sample %d: %w", si, err)
		}
		angles, err := ControlPointAngles(resampled)
		if err != nil {
			return nil, fmt.Errorf("train: sample %d: %w", si, err)
		}
		angleRows.SetRow(si, angles)

		radii, err := resampleValues(s.Points, s.Radii, n)
		if err != nil {
			return nil, fmt.Errorf("train: sample %d: %w", si, err)
		}
		for i, r := range radii {
			radiiSum[i] += r
			if r > maxRadius {
				maxRadius = r
			}
		}

		if l := SkeletonLength(s.Points); l > maxSkelLength {
			maxSkelLength = l
		}
		areas = append(areas, s.Area)
		pathLengths = append(pathLengths, s.PathLength)
	}

	meanAngles := make([]float64, n)
	meanRadii := make([]float64, n)
	for i := 0; i < n; i++ {
		meanAngles[i] = stat.Mean(mat.Col(nil, i, angleRows), nil)
		meanRadii[i] = radiiSum[i] / float64(len(samples))
	}

	invCov, err := invertAngleCovariance(angleRows)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}

	sort.Float64s(areas)
	sort.Float64s(pathLengths)
	p := &TrainingParams{
		Version:             cfg.Version,
		MinArea:             stat.Quantile(cfg.AreaQuantile, stat.Empirical, areas, nil),
		MaxArea:             stat.Quantile(1-cfg.AreaQuantile, stat.Empirical, areas, nil),
		NumControlPoints:    n,
		MaxSkelLength:       maxSkelLength,
		MinPathLength:       pathLengths[0],
		MaxPathLength:       pathLengths[len(pathLengths)-1],
		MedianWormArea:      stat.Quantile(0.5, stat.Empirical, areas, nil),
		MaxRadius:           maxRadius,
		OverlapWeight:       cfg.OverlapWeight,
		LeftoverWeight:      cfg.LeftoverWeight,
		TrainingSetSize:     len(samples),
		MeanAngles:          meanAngles,
		Radii:               meanRadii,
		InvAnglesCovariance: invCov,
	}

	threshold, err := selfCostThreshold(p, angleRows, cfg.CostQuantile)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	p.CostThreshold = threshold

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("train: produced invalid params: %w", err)
	}
	return p, nil
}

// invertAngleCovariance computes the covariance of the angle rows and
// inverts it via Cholesky factorisation. A failed factorisation means the
// training population does not span the feature space.
func invertAngleCovariance(angleRows *mat.Dense) ([][]float64, error) {
	_, n := angleRows.Dims()
	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, angleRows, nil)

	var chol mat.Cholesky
	if !chol.Factorize(&cov) {
		return nil, fmt.Errorf("angle covariance is singular; training set lacks shape variety")
	}
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return nil, fmt.Errorf("invert angle covariance: %w", err)
	}

	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		out[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			out[i][j] = inv.At(i, j)
		}
	}
	return out, nil
}

// selfCostThreshold scores every training sample against the freshly
// derived statistics and returns the configured quantile of those costs.
func selfCostThreshold(p *TrainingParams, angleRows *mat.Dense, quantile float64) (float64, error) {
	scorer, err := NewScorer(p)
	if err != nil {
		return 0, err
	}
	rows, _ := angleRows.Dims()
	costs := make([]float64, rows)
	for i := 0; i < rows; i++ {
		c, err := scorer.Cost(angleRows.RawRowView(i))
		if err != nil {
			return 0, err
		}
		costs[i] = c
	}
	sort.Float64s(costs)
	threshold := stat.Quantile(quantile, stat.Empirical, costs, nil)
	if math.IsNaN(threshold) || threshold <= 0 {
		return 0, fmt.Errorf("degenerate cost threshold %g", threshold)
	}
	return threshold, nil
}

// resampleValues interpolates per-vertex scalar values (such as radii) onto
// n positions equally spaced by arc length along the vertex polyline.
func resampleValues(points []Point, values []float64, n int) ([]float64, error) {
	if len(points) != len(values) {
		return nil, fmt.Errorf("resample values: %d values for %d points", len(values), len(points))
	}
	if len(points) < 2 {
		return nil, fmt.Errorf("resample values: need at least 2 points, got %d", len(points))
	}

	cum := make([]float64, len(points))
	for i := 1; i < len(points); i++ {
		cum[i] = cum[i-1] + math.Hypot(points[i].X-points[i-1].X, points[i].Y-points[i-1].Y)
	}
	total := cum[len(cum)-1]
	if total == 0 {
		return nil, fmt.Errorf("resample values: zero-length skeleton")
	}

	out := make([]float64, n)
	out[0] = values[0]
	out[n-1] = values[len(values)-1]
	seg := 1
	for i := 1; i < n-1; i++ {
		target := total * float64(i) / float64(n-1)
		for seg < len(cum)-1 && cum[seg] < target {
			seg++
		}
		span := cum[seg] - cum[seg-1]
		var t float64
		if span > 0 {
			t = (target - cum[seg-1]) / span
		}
		out[i] = values[seg-1] + t*(values[seg]-values[seg-1])
	}
	return out, nil
}
