package worm

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// syntheticWorms builds a deterministic population of bent worm shapes with
// enough variety for the angle covariance to be full rank.
func syntheticWorms(count, vertices int) []Sample {
	samples := make([]Sample, count)
	for s := 0; s < count; s++ {
		amp := 0.5 + 0.4*math.Sin(float64(s)*1.3)
		freq := 0.8 + 0.3*math.Cos(float64(s)*0.7)
		phase := float64(s) * 0.9

		points := make([]Point, vertices)
		radii := make([]float64, vertices)
		for i := 0; i < vertices; i++ {
			x := float64(i) * 2
			y := amp*math.Sin(freq*x+phase) + 0.11*math.Sin(float64(7*i)+2.3*float64(s))
			points[i] = Point{X: x, Y: y}
			// Body tapers at head and tail.
			u := float64(i) / float64(vertices-1)
			radii[i] = 1 + 6*u*(1-u) + 0.2*math.Sin(float64(s)+float64(i))
		}

		length := SkeletonLength(points)
		samples[s] = Sample{
			Points:     points,
			Radii:      radii,
			Area:       600 + 150*math.Sin(float64(s)*2.1),
			PathLength: length,
		}
	}
	return samples
}

func TestTrain(t *testing.T) {
	t.Parallel()

	cfg := TrainConfig{NumControlPoints: 5, Version: 3}
	samples := syntheticWorms(60, 30)

	p, err := Train(samples, cfg)
	require.NoError(t, err)

	t.Run("record is semantically valid", func(t *testing.T) {
		t.Parallel()
		require.NoError(t, p.Validate())
	})

	t.Run("dimensions follow config", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 5, p.NumControlPoints)
		assert.Len(t, p.MeanAngles, 5)
		assert.Len(t, p.Radii, 5)
		assert.Len(t, p.InvAnglesCovariance, 5)
		assert.Equal(t, 3, p.Version)
		assert.Equal(t, 60, p.TrainingSetSize)
	})

	t.Run("area statistics ordered", func(t *testing.T) {
		t.Parallel()
		assert.LessOrEqual(t, p.MinArea, p.MedianWormArea)
		assert.LessOrEqual(t, p.MedianWormArea, p.MaxArea)
	})

	t.Run("threshold accepts the bulk of the training set", func(t *testing.T) {
		t.Parallel()
		scorer, err := NewScorer(p)
		require.NoError(t, err)

		accepted := 0
		for _, s := range samples {
			resampled, err := ResampleSkeleton(s.Points, 7)
			require.NoError(t, err)
			angles, err := ControlPointAngles(resampled)
			require.NoError(t, err)
			cost, err := scorer.Cost(angles)
			require.NoError(t, err)
			if cost <= p.CostThreshold {
				accepted++
			}
		}
		// CostThreshold is the 95th percentile of self-costs.
		assert.GreaterOrEqual(t, accepted, 54)
	})

	t.Run("deterministic for identical input", func(t *testing.T) {
		t.Parallel()
		again, err := Train(syntheticWorms(60, 30), cfg)
		require.NoError(t, err)
		assert.Empty(t, cmp.Diff(p, again))
	})
}

// TestAngleCovarianceInvertible pins down that the bend angle features are
// not linearly dependent by construction. Any convention that derives an
// angle for the endpoints makes the last component a sum of the others for
// every polyline, and the covariance of such vectors can never be inverted
// no matter how varied the population is.
func TestAngleCovarianceInvertible(t *testing.T) {
	t.Parallel()

	const n = 5
	samples := syntheticWorms(40, 30)
	angleRows := mat.NewDense(len(samples), n, nil)
	for si, s := range samples {
		resampled, err := ResampleSkeleton(s.Points, n+2)
		require.NoError(t, err)
		angles, err := ControlPointAngles(resampled)
		require.NoError(t, err)
		require.Len(t, angles, n)
		angleRows.SetRow(si, angles)
	}

	inv, err := invertAngleCovariance(angleRows)
	require.NoError(t, err)
	require.Len(t, inv, n)
}

func TestTrainRejectsBadInput(t *testing.T) {
	t.Parallel()

	t.Run("too few samples for covariance", func(t *testing.T) {
		t.Parallel()
		_, err := Train(syntheticWorms(5, 30), TrainConfig{NumControlPoints: 5})
		assert.ErrorContains(t, err, "covariance")
	})

	t.Run("radii must align with points", func(t *testing.T) {
		t.Parallel()
		samples := syntheticWorms(10, 30)
		samples[3].Radii = samples[3].Radii[:10]
		_, err := Train(samples, TrainConfig{NumControlPoints: 5})
		assert.ErrorContains(t, err, "sample 3")
	})

	t.Run("identical shapes make a singular covariance", func(t *testing.T) {
		t.Parallel()
		one := syntheticWorms(1, 30)[0]
		clones := make([]Sample, 20)
		for i := range clones {
			clones[i] = one
		}
		_, err := Train(clones, TrainConfig{NumControlPoints: 5})
		assert.ErrorContains(t, err, "singular")
	})
}
