/**
 * @description
 * This file contains the stats aggregator: pure functions computing the
 * point-in-time KPI set and the daily completed-donation series from a
 * donation snapshot. Everything is recomputed on each call; there is no
 * cached aggregation to invalidate.
 *
 * @dependencies
 * - time: Standard Go library.
 * - internal/domain: For the stats result shapes.
 */

package app

import (
	"time"

	"github.com/givebridge/ledger-service/internal/domain"
)

// unknownMethod buckets donations whose payment-method tag is missing.
const unknownMethod = "Unknown"

// ComputeStats derives the KPI set from a donation snapshot. totalThisMonth
// is evaluated against the calendar month of now. averageDonation divides by
// the full snapshot size regardless of status and is 0 for an empty snapshot.
func ComputeStats(snapshot []domain.Donation, now time.Time) domain.LedgerStats {
	stats := domain.LedgerStats{
		PaymentMethods: make(map[string]domain.MethodShare),
	}

	var amountSum int64
	methodCounts := make(map[string]int)
	year, month, _ := now.UTC().Date()

	for _, d := range snapshot {
		amountSum += d.Amount

		switch d.Status {
		case domain.DonationCompleted:
			stats.ConfirmedCount++
			stats.TotalReceived += d.Amount
			dy, dm, _ := d.DonatedAt.UTC().Date()
			if dy == year && dm == month {
				stats.TotalThisMonth += d.Amount
			}
		case domain.DonationRejected:
			stats.RejectedCount++
		default:
			stats.PendingCount++
		}

		method := d.PaymentMethod
		if method == "" {
			method = unknownMethod
		}
		methodCounts[method]++
	}

	if len(snapshot) > 0 {
		stats.AverageDonation = float64(amountSum) / float64(len(snapshot))
		for method, count := range methodCounts {
			stats.PaymentMethods[method] = domain.MethodShare{
				Count:      count,
				Percentage: 100 * float64(count) / float64(len(snapshot)),
			}
		}
	}
	return stats
}

// DailySeries counts completed donations per calendar day over the last n
// days, oldest first and inclusive of today. Max is the series maximum
// floored at 1 so callers can normalize without a zero denominator.
func DailySeries(snapshot []domain.Donation, days int, now time.Time) (domain.DailySeriesResult, error) {
	if days < 1 {
		return domain.DailySeriesResult{}, errInvalid("days must be >= 1")
	}

	today := calendarDate(now)
	counts := make(map[string]int, days)
	for _, d := range snapshot {
		if d.Status != domain.DonationCompleted {
			continue
		}
		counts[calendarDate(d.DonatedAt).Format("2006-01-02")]++
	}

	result := domain.DailySeriesResult{
		Days: make([]domain.DailyCount, 0, days),
		Max:  1,
	}
	for i := days - 1; i >= 0; i-- {
		date := today.AddDate(0, 0, -i).Format("2006-01-02")
		count := counts[date]
		if count > result.Max {
			result.Max = count
		}
		result.Days = append(result.Days, domain.DailyCount{Date: date, Count: count})
	}
	return result, nil
}
