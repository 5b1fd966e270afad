package worm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSkeletonLength(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, SkeletonLength(nil))
	assert.Equal(t, 0.0, SkeletonLength([]Point{{X: 3, Y: 4}}))
	assert.InDelta(t, 5.0, SkeletonLength([]Point{{0, 0}, {3, 4}}), 1e-12)
	assert.InDelta(t, 10.0, SkeletonLength([]Point{{0, 0}, {3, 4}, {6, 8}}), 1e-12)
}

func TestResampleSkeleton(t *testing.T) {
	t.Parallel()

	t.Run("straight line resamples to even spacing", func(t *testing.T) {
		t.Parallel()
		line := []Point{{0, 0}, {10, 0}}
		out, err := ResampleSkeleton(line, 5)
		require.NoError(t, err)
		require.Len(t, out, 5)
		for i, p := range out {
			assert.InDelta(t, float64(i)*2.5, p.X, 1e-9)
			assert.InDelta(t, 0.0, p.Y, 1e-9)
		}
	})

	t.Run("endpoints preserved exactly", func(t *testing.T) {
		t.Parallel()
		poly := []Point{{1.5, 2.5}, {4, 9}, {12, 3}, {20, 20}}
		out, err := ResampleSkeleton(poly, 7)
		require.NoError(t, err)
		assert.Equal(t, poly[0], out[0])
		assert.Equal(t, poly[len(poly)-1], out[len(out)-1])
	})

	t.Run("uneven input vertices still yield even arc spacing", func(t *testing.T) {
		t.Parallel()
		// Same straight line but with a lopsided vertex in the middle.
		poly := []Point{{0, 0}, {9, 0}, {10, 0}}
		out, err := ResampleSkeleton(poly, 6)
		require.NoError(t, err)
		for i, p := range out {
			assert.InDelta(t, float64(i)*2, p.X, 1e-9)
		}
	})

	t.Run("rejects degenerate inputs", func(t *testing.T) {
		t.Parallel()
		_, err := ResampleSkeleton([]Point{{0, 0}}, 5)
		assert.Error(t, err)
		_, err = ResampleSkeleton([]Point{{0, 0}, {1, 1}}, 1)
		assert.Error(t, err)
		_, err = ResampleSkeleton([]Point{{2, 2}, {2, 2}}, 5)
		assert.ErrorContains(t, err, "zero-length")
	})
}

func TestControlPointAngles(t *testing.T) {
	t.Parallel()

	t.Run("straight worm has zero bend everywhere", func(t *testing.T) {
		t.Parallel()
		line := []Point{{0, 0}, {1, 0}, {2, 0}, {3, 0}, {4, 0}}
		angles, err := ControlPointAngles(line)
		require.NoError(t, err)
		require.Len(t, angles, 3)
		for _, a := range angles {
			assert.InDelta(t, 0.0, a, 1e-12)
		}
	})

	t.Run("right angle bend measured at interior point", func(t *testing.T) {
		t.Parallel()
		bent := []Point{{0, 0}, {1, 0}, {1, 1}}
		angles, err := ControlPointAngles(bent)
		require.NoError(t, err)
		require.Len(t, angles, 1)
		assert.InDelta(t, math.Pi/2, angles[0], 1e-12)
	})

	t.Run("mirrored shape flips angle signs", func(t *testing.T) {
		t.Parallel()
		shape := []Point{{0, 0}, {1, 0.5}, {2, 0}, {3, -0.5}, {4, 0}}
		mirror := make([]Point, len(shape))
		for i, p := range shape {
			mirror[i] = Point{X: p.X, Y: -p.Y}
		}
		a, err := ControlPointAngles(shape)
		require.NoError(t, err)
		b, err := ControlPointAngles(mirror)
		require.NoError(t, err)
		for i := range a {
			assert.InDelta(t, -a[i], b[i], 1e-12)
		}
	})

	t.Run("too few points rejected", func(t *testing.T) {
		t.Parallel()
		_, err := ControlPointAngles([]Point{{0, 0}, {1, 1}})
		assert.Error(t, err)
	})
}
