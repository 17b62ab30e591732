package revenue

import (
	"testing"
	"time"

	"github.com/racmathafidz/POS-Invoice/internal/domain"
)

func TestWindowFillsMissingDailyBucketsWithZero(t *testing.T) {
	points := []domain.RevenuePoint{
		{At: date(t, "2025-01-02"), Total: 1500},
		{At: date(t, "2025-01-10"), Total: 4200},
	}

	window := Window(points, Daily, date(t, "2025-06-01"))

	if len(window) != 30 {
		t.Fatalf("expected 30 daily buckets, got %d", len(window))
	}
	// The window trails the latest data point, not now.
	if last := window[len(window)-1]; !last.At.Equal(date(t, "2025-01-10")) || last.Total != 4200 {
		t.Fatalf("unexpected last bucket: %+v", last)
	}
	if first := window[0]; !first.At.Equal(date(t, "2024-12-12")) {
		t.Fatalf("unexpected first bucket: %+v", first)
	}

	for _, p := range window {
		switch {
		case p.At.Equal(date(t, "2025-01-02")):
			if p.Total != 1500 {
				t.Fatalf("expected 1500 on 2025-01-02, got %d", p.Total)
			}
		case p.At.Equal(date(t, "2025-01-10")):
		default:
			if p.Total != 0 {
				t.Fatalf("expected zero fill at %v, got %d", p.At, p.Total)
			}
		}
	}

	// The gap named by the dashboard regression: 2025-01-05 has no invoices
	// and must still be present, at zero.
	found := false
	for _, p := range window {
		if p.At.Equal(date(t, "2025-01-05")) {
			found = true
			if p.Total != 0 {
				t.Fatalf("expected zero on 2025-01-05, got %d", p.Total)
			}
		}
	}
	if !found {
		t.Fatalf("window is missing the 2025-01-05 bucket")
	}
}

func TestWindowEmptyInputEndsAtNow(t *testing.T) {
	now := time.Date(2025, 1, 10, 15, 4, 5, 0, time.UTC)

	window := Window(nil, Daily, now)

	if len(window) != 30 {
		t.Fatalf("expected 30 buckets, got %d", len(window))
	}
	if last := window[len(window)-1]; !last.At.Equal(date(t, "2025-01-10")) {
		t.Fatalf("expected window to end at today's bucket, got %v", last.At)
	}
	for _, p := range window {
		if p.Total != 0 {
			t.Fatalf("expected all-zero window, got %d at %v", p.Total, p.At)
		}
	}
}

func TestWindowRebucketsDailyPointsIntoWeeks(t *testing.T) {
	// Wednesday and Friday of the same ISO week collapse into its Monday.
	points := []domain.RevenuePoint{
		{At: date(t, "2025-01-15"), Total: 1000},
		{At: date(t, "2025-01-17"), Total: 2000},
	}

	window := Window(points, Weekly, date(t, "2025-06-01"))

	if len(window) != 26 {
		t.Fatalf("expected 26 weekly buckets, got %d", len(window))
	}
	last := window[len(window)-1]
	if !last.At.Equal(date(t, "2025-01-13")) {
		t.Fatalf("expected window to end on Monday 2025-01-13, got %v", last.At)
	}
	if last.Total != 3000 {
		t.Fatalf("expected both points summed into the week, got %d", last.Total)
	}
}

func TestWindowMonthlySize(t *testing.T) {
	window := Window([]domain.RevenuePoint{{At: date(t, "2025-05-20"), Total: 700}}, Monthly, time.Now())

	if len(window) != 12 {
		t.Fatalf("expected 12 monthly buckets, got %d", len(window))
	}
	if last := window[len(window)-1]; !last.At.Equal(date(t, "2025-05-01")) || last.Total != 700 {
		t.Fatalf("unexpected last bucket: %+v", last)
	}
	if first := window[0]; !first.At.Equal(date(t, "2024-06-01")) {
		t.Fatalf("unexpected first bucket: %+v", first)
	}
}

func TestWindowDoesNotMutateInput(t *testing.T) {
	points := []domain.RevenuePoint{
		{At: date(t, "2025-01-02"), Total: 1500},
		{At: date(t, "2025-01-03"), Total: 2500},
	}
	original := make([]domain.RevenuePoint, len(points))
	copy(original, points)

	_ = Window(points, Daily, time.Now())

	for i := range points {
		if points[i] != original[i] {
			t.Fatalf("input slice was mutated at %d: %+v != %+v", i, points[i], original[i])
		}
	}
}
