package worm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// symmetryTolerance is the maximum relative difference allowed between
// mirrored entries of the inverse covariance matrix.
const symmetryTolerance = 1e-8

// TrainingParams is the frozen statistical summary produced by an offline
// training run over a labelled worm population. It is written once and
// thereafter only read: stores and codecs never mutate an instance.
//
// MeanAngles and Radii are indexed by control point. InvAnglesCovariance is
// the inverse covariance of the per-control-point bend angle vector, used
// together with MeanAngles as a Mahalanobis-style scoring metric.
type TrainingParams struct {
	Version          int     `json:"version"`
	MinArea          float64 `json:"min_area"`
	MaxArea          float64 `json:"max_area"`
	CostThreshold    float64 `json:"cost_threshold"`
	NumControlPoints int     `json:"num_control_points"`
	MaxSkelLength    float64 `json:"max_skel_length"`
	MinPathLength    float64 `json:"min_path_length"`
	MaxPathLength    float64 `json:"max_path_length"`
	MedianWormArea   float64 `json:"median_worm_area"`
	MaxRadius        float64 `json:"max_radius"`
	OverlapWeight    float64 `json:"overlap_weight"`
	LeftoverWeight   float64 `json:"leftover_weight"`
	TrainingSetSize  int     `json:"training_set_size"`

	MeanAngles          []float64   `json:"mean_angles"`
	Radii               []float64   `json:"radii_from_training"`
	InvAnglesCovariance [][]float64 `json:"inv_angles_covariance_matrix"`
}

// FeatureDimension returns the length of the angle feature vector scored
// against InvAnglesCovariance: one bend angle per control point.
func (p *TrainingParams) FeatureDimension() int {
	return p.NumControlPoints
}

// Validate checks the semantic invariants the file format cannot express.
// Structural validity (element order, numeric types) is the codec's job;
// this covers the cross-field constraints a consumer relies on.
func (p *TrainingParams) Validate() error {
	if p.Version <= 0 {
		return fmt.Errorf("version must be positive, got %d", p.Version)
	}
	if p.NumControlPoints <= 0 {
		return fmt.Errorf("num-control-points must be positive, got %d", p.NumControlPoints)
	}
	if p.TrainingSetSize <= 0 {
		return fmt.Errorf("training-set-size must be positive, got %d", p.TrainingSetSize)
	}
	if p.MinArea <= 0 {
		return fmt.Errorf("min-area must be positive, got %g", p.MinArea)
	}
	if p.MinArea > p.MaxArea {
		return fmt.Errorf("min-area %g exceeds max-area %g", p.MinArea, p.MaxArea)
	}
	if p.MedianWormArea < p.MinArea || p.MedianWormArea > p.MaxArea {
		return fmt.Errorf("median-worm-area %g outside area bounds [%g, %g]",
			p.MedianWormArea, p.MinArea, p.MaxArea)
	}
	if p.MinPathLength > p.MaxPathLength {
		return fmt.Errorf("min-path-length %g exceeds max-path-length %g",
			p.MinPathLength, p.MaxPathLength)
	}
	if len(p.MeanAngles) != p.NumControlPoints {
		return fmt.Errorf("mean-angles has %d entries, want num-control-points=%d",
			len(p.MeanAngles), p.NumControlPoints)
	}
	if len(p.Radii) != p.NumControlPoints {
		return fmt.Errorf("radii-from-training has %d entries, want num-control-points=%d",
			len(p.Radii), p.NumControlPoints)
	}
	if err := p.validateCovariance(); err != nil {
		return err
	}
	return nil
}

// validateCovariance checks that InvAnglesCovariance is square with side
// equal to the feature dimension, symmetric within tolerance, and positive
// definite (i.e. it is a valid inverse of an invertible covariance matrix).
func (p *TrainingParams) validateCovariance() error {
	n := len(p.InvAnglesCovariance)
	if n == 0 {
		return fmt.Errorf("inv-angles-covariance-matrix is empty")
	}
	if n != p.FeatureDimension() {
		return fmt.Errorf("inv-angles-covariance-matrix side %d, want feature dimension %d",
			n, p.FeatureDimension())
	}
	for i, row := range p.InvAnglesCovariance {
		if len(row) != n {
			return fmt.Errorf("inv-angles-covariance-matrix row %d has %d entries, want %d",
				i, len(row), n)
		}
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			a, b := p.InvAnglesCovariance[i][j], p.InvAnglesCovariance[j][i]
			scale := math.Max(math.Abs(a), math.Abs(b))
			if scale == 0 {
				continue
			}
			if math.Abs(a-b)/scale > symmetryTolerance {
				return fmt.Errorf("inv-angles-covariance-matrix not symmetric at (%d,%d): %g vs %g",
					i, j, a, b)
			}
		}
	}

	var chol mat.Cholesky
	if !chol.Factorize(p.covarianceSym()) {
		return fmt.Errorf("inv-angles-covariance-matrix is not positive definite")
	}
	return nil
}

// covarianceSym builds a SymDense view of InvAnglesCovariance using the
// upper triangle. Callers must have checked squareness first.
func (p *TrainingParams) covarianceSym() *mat.SymDense {
	n := len(p.InvAnglesCovariance)
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, p.InvAnglesCovariance[i][j])
		}
	}
	return sym
}

// covarianceDense returns InvAnglesCovariance as a dense matrix.
func (p *TrainingParams) covarianceDense() *mat.Dense {
	n := len(p.InvAnglesCovariance)
	m := mat.NewDense(n, n, nil)
	for i, row := range p.InvAnglesCovariance {
		m.SetRow(i, row)
	}
	return m
}
