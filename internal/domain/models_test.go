package domain

import (
	"testing"
	"time"
)

func TestDateRangeBoundsAreInclusiveDays(t *testing.T) {
	r := DateRange{
		From: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC),
	}
	from, to := r.Bounds()
	if from != "2025-03-01" || to != "2025-03-15" {
		t.Fatalf("expected 2025-03-01..2025-03-15, got %s..%s", from, to)
	}
	if !r.Contains(time.Date(2025, 3, 15, 23, 59, 59, 0, time.UTC)) {
		t.Fatalf("last included day must be inside the range")
	}
	if r.Contains(time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("upper bound is exclusive")
	}
}

func TestDateRangeBoundsOpenSides(t *testing.T) {
	from, to := DateRange{}.Bounds()
	if from != "" || to != "" {
		t.Fatalf("expected open bounds, got %q..%q", from, to)
	}
	_, to = DateRange{To: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}.Bounds()
	if to != "2024-12-31" {
		t.Fatalf("expected 2024-12-31, got %s", to)
	}
}
