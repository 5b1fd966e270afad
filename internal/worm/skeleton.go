package worm

import (
	"fmt"
	"math"
)

// Point is a skeleton sample location in image coordinates (pixels).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SkeletonLength returns the total arc length of the polyline through points.
func SkeletonLength(points []Point) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		total += math.Hypot(points[i].X-points[i-1].X, points[i].Y-points[i-1].Y)
	}
	return total
}

// ResampleSkeleton resamples a skeletal midline to n points equally spaced
// by arc length, using linear interpolation between the input vertices.
// The first and last input points are preserved exactly.
func ResampleSkeleton(points []Point, n int) ([]Point, error) {
	if n < 2 {
		return nil, fmt.Errorf("resample skeleton: need at least 2 control points, got %d", n)
	}
	if len(points) < 2 {
		return nil, fmt.Errorf("resample skeleton: need at least 2 input points, got %d", len(points))
	}

	// Cumulative arc length at each input vertex.
	cum := make([]float64, len(points))
	for i := 1; i < len(points); i++ {
		cum[i] = cum[i-1] + math.Hypot(points[i].X-points[i-1].X, points[i].Y-points[i-1].Y)
	}
	total := cum[len(cum)-1]
	if total == 0 {
		return nil, fmt.Errorf("resample skeleton: zero-length skeleton")
	}

	out := make([]Point, n)
	out[0] = points[0]
	out[n-1] = points[len(points)-1]

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
		out[i] = Point{
			X: points[seg-1].X + t*(points[seg].X-points[seg-1].X),
			Y: points[seg-1].Y + t*(points[seg].Y-points[seg-1].Y),
		}
	}
	return out, nil
}

// ControlPointAngles computes the interior bend angle vector of a resampled
// skeleton: for each of the len(points)-2 interior vertices, the signed
// angle between its two adjacent segments. Endpoints carry no angle of
// their own; an endpoint angle measured against any fixed reference is a
// sum of the interior bends, so vectors that include one are linearly
// dependent across all shapes. Callers wanting one angle per control point
// resample with one extra vertex beyond each end.
func ControlPointAngles(points []Point) ([]float64, error) {
	n := len(points)
	if n < 3 {
		return nil, fmt.Errorf("control point angles: need at least 3 points, got %d", n)
	}

	angles := make([]float64, n-2)
	for i := 1; i < n-1; i++ {
		angles[i-1] = signedAngle(
			points[i].X-points[i-1].X, points[i].Y-points[i-1].Y,
			points[i+1].X-points[i].X, points[i+1].Y-points[i].Y,
		)
	}
	return angles, nil
}

// signedAngle returns the signed angle in radians from vector (ax,ay) to
// vector (bx,by), in (-pi, pi].
func signedAngle(ax, ay, bx, by float64) float64 {
	return math.Atan2(ax*by-ay*bx, ax*bx+ay*by)
}
