package app

import (
	"errors"
	"testing"
	"time"

	"github.com/givebridge/ledger-service/internal/domain"
	"github.com/google/uuid"
)

func day(dayOfMonth int) time.Time {
	return time.Date(2026, 8, dayOfMonth, 12, 0, 0, 0, time.UTC)
}

func donation(serial int64, amount int64, status domain.DonationStatus, donatedAt time.Time) domain.Donation {
	return domain.Donation{
		ID:        uuid.New(),
		Serial:    serial,
		Amount:    amount,
		Status:    status,
		DonatedAt: donatedAt,
	}
}

func TestQueryFiltersAreConjunctive(t *testing.T) {
	alice := "Alice Mbeki"
	aliceEmail := "alice@example.org"
	bob := "Bob Tran"
	cash := "cash"
	card := "card"

	snapshot := []domain.Donation{
		donation(1, 5000, domain.DonationCompleted, day(1)),
		donation(2, 8000, domain.DonationPending, day(5)),
		donation(3, 5000, domain.DonationRejected, day(9)),
	}
	snapshot[0].DonorName = &alice
	snapshot[0].DonorEmail = &aliceEmail
	snapshot[0].PaymentMethod = cash
	snapshot[1].DonorName = &bob
	snapshot[1].PaymentMethod = card
	snapshot[2].DonorName = &alice
	snapshot[2].PaymentMethod = cash

	min := int64(4000)
	from := day(1)
	to := day(5)
	result, err := QueryDonations(snapshot, domain.FilterSpec{
		Status:    "completed",
		Search:    "alice",
		AmountMin: &min,
		DateFrom:  &from,
		DateTo:    &to,
	}, domain.DefaultSort(), domain.PageSpec{Page: 1}, 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if result.Total != 1 || result.Items[0].Serial != 1 {
		t.Fatalf("expected only the completed Alice donation, got %+v", result)
	}

	// "all" sentinel disables the status filter.
	result, err = QueryDonations(snapshot, domain.FilterSpec{Status: "all", Search: "alice"}, domain.DefaultSort(), domain.PageSpec{Page: 1}, 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if result.Total != 2 {
		t.Fatalf("expected both Alice donations, got %d", result.Total)
	}
}

func TestQuerySearchMatchesSerialAndEmail(t *testing.T) {
	email := "donor@example.org"
	snapshot := []domain.Donation{
		donation(42, 5000, domain.DonationPending, day(1)),
		donation(7, 5000, domain.DonationPending, day(2)),
	}
	snapshot[1].DonorEmail = &email

	// Zero-padded serial search: "000042" displays for serial 42.
	result, err := QueryDonations(snapshot, domain.FilterSpec{Search: "00004"}, domain.DefaultSort(), domain.PageSpec{Page: 1}, 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if result.Total != 1 || result.Items[0].Serial != 42 {
		t.Fatalf("expected serial 42 by padded search, got %+v", result)
	}

	result, err = QueryDonations(snapshot, domain.FilterSpec{Search: "DONOR@"}, domain.DefaultSort(), domain.PageSpec{Page: 1}, 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if result.Total != 1 || result.Items[0].Serial != 7 {
		t.Fatalf("expected email match to be case-insensitive, got %+v", result)
	}
}

func TestQueryCampaignSentinels(t *testing.T) {
	campaign := uuid.New()
	snapshot := []domain.Donation{
		donation(1, 5000, domain.DonationPending, day(1)),
		donation(2, 5000, domain.DonationPending, day(2)),
	}
	snapshot[1].CampaignID = &campaign

	result, err := QueryDonations(snapshot, domain.FilterSpec{Campaign: "general"}, domain.DefaultSort(), domain.PageSpec{Page: 1}, 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if result.Total != 1 || result.Items[0].Serial != 1 {
		t.Fatalf("expected the general-fund donation, got %+v", result)
	}

	result, err = QueryDonations(snapshot, domain.FilterSpec{Campaign: campaign.String()}, domain.DefaultSort(), domain.PageSpec{Page: 1}, 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if result.Total != 1 || result.Items[0].Serial != 2 {
		t.Fatalf("expected the campaign donation, got %+v", result)
	}
}

func TestQuerySortStableWithIDTieBreak(t *testing.T) {
	same := day(3)
	snapshot := []domain.Donation{
		donation(1, 100, domain.DonationPending, same),
		donation(2, 100, domain.DonationPending, same),
		donation(3, 100, domain.DonationPending, same),
	}

	asc, err := QueryDonations(snapshot, domain.FilterSpec{}, domain.SortSpec{Key: domain.SortByAmount}, domain.PageSpec{Page: 1}, 10)
	if err != nil {
		t.Fatalf("query asc: %v", err)
	}
	desc, err := QueryDonations(snapshot, domain.FilterSpec{}, domain.SortSpec{Key: domain.SortByAmount, Desc: true}, domain.PageSpec{Page: 1}, 10)
	if err != nil {
		t.Fatalf("query desc: %v", err)
	}

	// All amounts equal: both directions fall back to id ascending.
	for i := range asc.Items {
		if asc.Items[i].ID != desc.Items[i].ID {
			t.Fatalf("tie-break order differs between directions at index %d", i)
		}
		if i > 0 && asc.Items[i-1].ID.String() > asc.Items[i].ID.String() {
			t.Fatal("tie-break is not id ascending")
		}
	}
}

func TestQueryPaginationTotals(t *testing.T) {
	snapshot := []domain.Donation{}
	for i := 1; i <= 23; i++ {
		snapshot = append(snapshot, donation(int64(i), int64(100*i), domain.DonationPending, day(1+i%27)))
	}

	const pageSize = 10
	seen := 0
	var totalPages int
	for page := 1; ; page++ {
		result, err := QueryDonations(snapshot, domain.FilterSpec{}, domain.DefaultSort(), domain.PageSpec{Page: page}, pageSize)
		if err != nil {
			t.Fatalf("query page %d: %v", page, err)
		}
		if result.Total != len(snapshot) {
			t.Fatalf("expected total %d, got %d", len(snapshot), result.Total)
		}
		totalPages = result.TotalPages
		if len(result.Items) == 0 {
			break
		}
		seen += len(result.Items)
	}
	if seen != len(snapshot) {
		t.Fatalf("sum of page lengths %d != total %d", seen, len(snapshot))
	}
	if totalPages != 3 {
		t.Fatalf("expected 3 pages for 23 items, got %d", totalPages)
	}
}

func TestQueryEmptyAndOutOfRangePages(t *testing.T) {
	result, err := QueryDonations(nil, domain.FilterSpec{}, domain.DefaultSort(), domain.PageSpec{Page: 1}, 10)
	if err != nil {
		t.Fatalf("query empty: %v", err)
	}
	if result.Total != 0 || result.TotalPages != 1 || len(result.Items) != 0 {
		t.Fatalf("expected empty page with total_pages 1, got %+v", result)
	}

	snapshot := []domain.Donation{donation(1, 100, domain.DonationPending, day(1))}
	result, err = QueryDonations(snapshot, domain.FilterSpec{}, domain.DefaultSort(), domain.PageSpec{Page: 9}, 10)
	if err != nil {
		t.Fatalf("query out of range: %v", err)
	}
	if len(result.Items) != 0 || result.Total != 1 || result.TotalPages != 1 {
		t.Fatalf("expected empty items with accurate totals, got %+v", result)
	}
}

func TestQueryRejectsMalformedFilters(t *testing.T) {
	negative := int64(-1)
	min := int64(500)
	max := int64(100)
	from := day(9)
	to := day(1)

	cases := []struct {
		name   string
		filter domain.FilterSpec
		page   domain.PageSpec
	}{
		{"negative amount_min", domain.FilterSpec{AmountMin: &negative}, domain.PageSpec{Page: 1}},
		{"min above max", domain.FilterSpec{AmountMin: &min, AmountMax: &max}, domain.PageSpec{Page: 1}},
		{"inverted date range", domain.FilterSpec{DateFrom: &from, DateTo: &to}, domain.PageSpec{Page: 1}},
		{"unknown status", domain.FilterSpec{Status: "archived"}, domain.PageSpec{Page: 1}},
		{"zero page", domain.FilterSpec{}, domain.PageSpec{Page: 0}},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := QueryDonations(nil, tt.filter, domain.DefaultSort(), tt.page, 10)
			if !errors.Is(err, ErrInvalidFilter) {
				t.Fatalf("expected ErrInvalidFilter, got %v", err)
			}
		})
	}
}
