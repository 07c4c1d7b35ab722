package app

import (
	"math"
	"testing"
	"time"

	"github.com/givebridge/ledger-service/internal/domain"
)

func TestComputeStatsAveragesOverAllStatuses(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	snapshot := []domain.Donation{
		donation(1, 100, domain.DonationCompleted, day(20)),
		donation(2, 300, domain.DonationPending, day(21)),
	}

	stats := ComputeStats(snapshot, now)
	if stats.AverageDonation != 200 {
		t.Fatalf("expected average 200 over all statuses, got %f", stats.AverageDonation)
	}
	if stats.TotalReceived != 100 {
		t.Fatalf("expected total received 100, got %d", stats.TotalReceived)
	}
}

func TestComputeStatsCountsAndMonthWindow(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	lastMonth := time.Date(2026, 7, 15, 10, 0, 0, 0, time.UTC)
	snapshot := []domain.Donation{
		donation(1, 1000, domain.DonationCompleted, day(5)),
		donation(2, 2000, domain.DonationCompleted, lastMonth),
		donation(3, 4000, domain.DonationPending, day(6)),
		donation(4, 8000, domain.DonationRejected, day(7)),
	}

	stats := ComputeStats(snapshot, now)
	if stats.PendingCount+stats.ConfirmedCount+stats.RejectedCount != len(snapshot) {
		t.Fatalf("status counts %d+%d+%d do not sum to %d", stats.PendingCount, stats.ConfirmedCount, stats.RejectedCount, len(snapshot))
	}
	if stats.ConfirmedCount != 2 || stats.PendingCount != 1 || stats.RejectedCount != 1 {
		t.Fatalf("unexpected counts %+v", stats)
	}
	if stats.TotalReceived != 3000 {
		t.Fatalf("expected all-time total 3000, got %d", stats.TotalReceived)
	}
	if stats.TotalThisMonth != 1000 {
		t.Fatalf("expected August total 1000, got %d", stats.TotalThisMonth)
	}
}

func TestComputeStatsPaymentMethodDistribution(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	snapshot := []domain.Donation{
		donation(1, 100, domain.DonationCompleted, day(1)),
		donation(2, 100, domain.DonationCompleted, day(2)),
		donation(3, 100, domain.DonationPending, day(3)),
	}
	snapshot[0].PaymentMethod = "cash"
	snapshot[1].PaymentMethod = "card"
	// snapshot[2] has no method tag and lands in the Unknown bucket.

	stats := ComputeStats(snapshot, now)
	if len(stats.PaymentMethods) != 3 {
		t.Fatalf("expected 3 buckets, got %d", len(stats.PaymentMethods))
	}
	if stats.PaymentMethods["Unknown"].Count != 1 {
		t.Fatalf("expected Unknown bucket, got %+v", stats.PaymentMethods)
	}

	sum := 0.0
	for _, share := range stats.PaymentMethods {
		sum += share.Percentage
	}
	if math.Abs(sum-100) > 1e-9 {
		t.Fatalf("percentages sum to %f, want 100", sum)
	}
}

func TestComputeStatsEmptySnapshot(t *testing.T) {
	stats := ComputeStats(nil, time.Now())
	if stats.AverageDonation != 0 {
		t.Fatalf("expected zero average on empty snapshot, got %f", stats.AverageDonation)
	}
	if len(stats.PaymentMethods) != 0 {
		t.Fatalf("expected no method buckets, got %+v", stats.PaymentMethods)
	}
}

func TestDailySeriesOldestFirstWithFlooredMax(t *testing.T) {
	now := time.Date(2026, 8, 28, 23, 30, 0, 0, time.UTC)
	snapshot := []domain.Donation{
		donation(1, 100, domain.DonationCompleted, day(28)),
		donation(2, 100, domain.DonationCompleted, day(28)),
		donation(3, 100, domain.DonationCompleted, day(26)),
		donation(4, 100, domain.DonationPending, day(27)),  // pending does not count
		donation(5, 100, domain.DonationCompleted, day(1)), // outside the window
	}

	series, err := DailySeries(snapshot, 7, now)
	if err != nil {
		t.Fatalf("daily series: %v", err)
	}
	if len(series.Days) != 7 {
		t.Fatalf("expected 7 days, got %d", len(series.Days))
	}
	if series.Days[0].Date != "2026-08-22" || series.Days[6].Date != "2026-08-28" {
		t.Fatalf("expected oldest-first window ending today, got %s..%s", series.Days[0].Date, series.Days[6].Date)
	}
	if series.Days[6].Count != 2 {
		t.Fatalf("expected 2 completed donations today, got %d", series.Days[6].Count)
	}
	if series.Days[4].Count != 1 {
		t.Fatalf("expected 1 completed donation on the 26th, got %d", series.Days[4].Count)
	}
	if series.Days[5].Count != 0 {
		t.Fatalf("pending donations must not count, got %d", series.Days[5].Count)
	}
	if series.Max != 2 {
		t.Fatalf("expected max 2, got %d", series.Max)
	}
}

func TestDailySeriesMaxFlooredAtOne(t *testing.T) {
	series, err := DailySeries(nil, 3, time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("daily series: %v", err)
	}
	if series.Max != 1 {
		t.Fatalf("expected max floored at 1, got %d", series.Max)
	}
	for _, d := range series.Days {
		if d.Count != 0 {
			t.Fatalf("expected zero counts, got %+v", series.Days)
		}
	}
}

func TestDailySeriesRejectsNonPositiveDays(t *testing.T) {
	if _, err := DailySeries(nil, 0, time.Now()); err == nil {
		t.Fatal("expected error for zero days")
	}
}
