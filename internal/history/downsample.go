// Package history builds the historical charts: the zoomable multi-pond trend
// chart and the fixed per-sensor line charts.
package history

import (
	"math"
	"strconv"
)

// MaxPointsPerSeries caps the number of points sent to the trend chart per series.
const MaxPointsPerSeries = 600

// Point is one chart point: a Unix millisecond timestamp and a value.
// It encodes as a [t, v] pair.
type Point struct {
	T int64
	V float64
}

// MarshalJSON implements json.Marshaler.
func (p Point) MarshalJSON() ([]byte, error) {
	b := make([]byte, 0, 32)
	b = append(b, '[')
	b = strconv.AppendInt(b, p.T, 10)
	b = append(b, ',')
	b = strconv.AppendFloat(b, p.V, 'f', -1, 64)
	b = append(b, ']')
	return b, nil
}

// Downsample reduces points to at most maxPoints by averaging consecutive
// buckets of ceil(len/maxPoints) points. Timestamps are rounded to the
// millisecond and values to three decimals. Inputs at or under the cap are
// returned unchanged.
func Downsample(points []Point, maxPoints int) []Point {
	if maxPoints <= 0 || len(points) <= maxPoints {
		return points
	}

	bucketSize := (len(points) + maxPoints - 1) / maxPoints
	out := make([]Point, 0, (len(points)+bucketSize-1)/bucketSize)
	for start := 0; start < len(points); start += bucketSize {
		bucket := points[start:min(start+bucketSize, len(points))]

		var sumT, sumV float64
		for _, p := range bucket {
			sumT += float64(p.T)
			sumV += p.V
		}
		n := float64(len(bucket))
		out = append(out, Point{
			T: int64(math.Floor(sumT/n + 0.5)),
			V: math.Round(sumV/n*1000) / 1000,
		})
	}
	return out
}
