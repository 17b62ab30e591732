package revenue

import (
	"time"

	"github.com/racmathafidz/POS-Invoice/internal/domain"
)

// Window reshapes the aggregation's sparse output into a dense, fixed-length
// trailing window for the chart. The window ends at the bucket of the latest
// input point, or of now when there is no data, and every gap is filled with
// a zero total. The transform is pure: it re-buckets what was already
// fetched and never touches the input slice.
func Window(points []domain.RevenuePoint, g Granularity, now time.Time) []domain.RevenuePoint {
	latest := now
	if len(points) > 0 {
		latest = points[len(points)-1].At
	}
	end := BucketStart(g, latest)

	totals := make(map[time.Time]int64, len(points))
	for _, p := range points {
		totals[BucketStart(g, p.At)] += p.Total
	}

	size := g.WindowSize()
	window := make([]domain.RevenuePoint, size)
	for i := 0; i < size; i++ {
		at := g.StepBack(end, size-1-i)
		window[i] = domain.RevenuePoint{At: at, Total: totals[at]}
	}
	return window
}
