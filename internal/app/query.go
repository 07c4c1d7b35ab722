/**
 * @description
 * This file contains the filter and query engine: a pure function pipeline
 * over a donation snapshot. Given the same snapshot and specs, the output is
 * deterministic and side-effect-free, which keeps the engine trivially
 * testable without any database.
 *
 * @dependencies
 * - errors, sort, strings, time: Standard Go libraries.
 * - internal/domain: For the FilterSpec/SortSpec/PageSpec shapes.
 */

package app

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/givebridge/ledger-service/internal/domain"
)

var ErrInvalidFilter = errors.New("invalid filter specification")

// filterAll is the sentinel that disables an exact-match filter field.
const filterAll = "all"

// filterGeneralFund matches donations with no campaign reference.
const filterGeneralFund = "general"

// QueryDonations filters, sorts, and paginates a ledger snapshot. Filters are
// conjunctive; the sort is stable with donation id ascending as tie-break;
// pages are 1-indexed with a server-fixed size. A page past the end returns
// empty items with accurate totals.
func QueryDonations(snapshot []domain.Donation, filter domain.FilterSpec, sortSpec domain.SortSpec, page domain.PageSpec, pageSize int) (domain.QueryResult, error) {
	if err := validateQuery(filter, sortSpec, page, pageSize); err != nil {
		return domain.QueryResult{}, err
	}
	if sortSpec.Key == "" {
		sortSpec = domain.DefaultSort()
	}

	filtered := filterDonations(snapshot, filter)
	sortDonations(filtered, sortSpec)

	total := len(filtered)
	totalPages := (total + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}

	start := (page.Page - 1) * pageSize
	items := []domain.Donation{}
	if start < total {
		end := start + pageSize
		if end > total {
			end = total
		}
		items = filtered[start:end]
	}

	return domain.QueryResult{Items: items, Total: total, TotalPages: totalPages}, nil
}

// validateQuery rejects malformed specs up front, before any snapshot work.
func validateQuery(filter domain.FilterSpec, sortSpec domain.SortSpec, page domain.PageSpec, pageSize int) error {
	if err := validateFilter(filter); err != nil {
		return err
	}
	if page.Page < 1 {
		return errInvalid("page must be >= 1")
	}
	if pageSize < 1 {
		return errInvalid("page size must be >= 1")
	}
	if sortSpec.Key == "" {
		return nil
	}
	switch sortSpec.Key {
	case domain.SortByDate, domain.SortByAmount, domain.SortByDonor, domain.SortByStatus:
		return nil
	default:
		return errInvalid("unknown sort key")
	}
}

func validateFilter(f domain.FilterSpec) error {
	if f.AmountMin != nil && *f.AmountMin < 0 {
		return errInvalid("amount_min must not be negative")
	}
	if f.AmountMax != nil && *f.AmountMax < 0 {
		return errInvalid("amount_max must not be negative")
	}
	if f.AmountMin != nil && f.AmountMax != nil && *f.AmountMin > *f.AmountMax {
		return errInvalid("amount_min exceeds amount_max")
	}
	if f.DateFrom != nil && f.DateTo != nil && calendarDate(*f.DateFrom).After(calendarDate(*f.DateTo)) {
		return errInvalid("date_from is after date_to")
	}
	if f.Status != "" && f.Status != filterAll {
		switch domain.DonationStatus(f.Status) {
		case domain.DonationPending, domain.DonationCompleted, domain.DonationRejected:
		default:
			return errInvalid("unknown status filter")
		}
	}
	return nil
}

func errInvalid(msg string) error {
	return errors.Join(ErrInvalidFilter, errors.New(msg))
}

// filterDonations applies every active filter field conjunctively and returns
// a fresh slice; the snapshot is never mutated.
func filterDonations(snapshot []domain.Donation, f domain.FilterSpec) []domain.Donation {
	search := strings.ToLower(strings.TrimSpace(f.Search))

	out := make([]domain.Donation, 0, len(snapshot))
	for _, d := range snapshot {
		if f.Status != "" && f.Status != filterAll && string(d.Status) != f.Status {
			continue
		}
		if f.PaymentMethod != "" && f.PaymentMethod != filterAll && d.PaymentMethod != f.PaymentMethod {
			continue
		}
		if !campaignMatches(d, f.Campaign) {
			continue
		}
		if f.DateFrom != nil && calendarDate(d.DonatedAt).Before(calendarDate(*f.DateFrom)) {
			continue
		}
		if f.DateTo != nil && calendarDate(d.DonatedAt).After(calendarDate(*f.DateTo)) {
			continue
		}
		if f.AmountMin != nil && d.Amount < *f.AmountMin {
			continue
		}
		if f.AmountMax != nil && d.Amount > *f.AmountMax {
			continue
		}
		if search != "" && !searchMatches(d, search) {
			continue
		}
		out = append(out, d)
	}
	return out
}

func campaignMatches(d domain.Donation, campaign string) bool {
	if campaign == "" || campaign == filterAll {
		return true
	}
	if campaign == filterGeneralFund {
		return d.CampaignID == nil
	}
	return d.CampaignID != nil && d.CampaignID.String() == campaign
}

// searchMatches checks the lowered search term against donor name, donor
// email, and the zero-padded serial the host app shows as transaction number.
func searchMatches(d domain.Donation, loweredTerm string) bool {
	if d.DonorName != nil && strings.Contains(strings.ToLower(*d.DonorName), loweredTerm) {
		return true
	}
	if d.DonorEmail != nil && strings.Contains(strings.ToLower(*d.DonorEmail), loweredTerm) {
		return true
	}
	return strings.Contains(d.SearchSerial(), loweredTerm)
}

func sortDonations(items []domain.Donation, spec domain.SortSpec) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		var less, equal bool
		switch spec.Key {
		case domain.SortByAmount:
			less, equal = a.Amount < b.Amount, a.Amount == b.Amount
		case domain.SortByDonor:
			an, bn := donorKey(a), donorKey(b)
			less, equal = an < bn, an == bn
		case domain.SortByStatus:
			less, equal = a.Status < b.Status, a.Status == b.Status
		default: // SortByDate
			less, equal = a.DonatedAt.Before(b.DonatedAt), a.DonatedAt.Equal(b.DonatedAt)
		}
		if equal {
			// Tie-break on id ascending regardless of sort direction.
			return a.ID.String() < b.ID.String()
		}
		if spec.Desc {
			return !less
		}
		return less
	})
}

// calendarDate truncates a timestamp to its calendar date in UTC, so date
// bounds compare whole days rather than instants.
func calendarDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func donorKey(d domain.Donation) string {
	if d.DonorName == nil {
		return ""
	}
	return strings.ToLower(*d.DonorName)
}
