package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/givebridge/ledger-service/internal/app"
	"github.com/givebridge/ledger-service/internal/domain"
	"github.com/givebridge/ledger-service/internal/store"
	"github.com/givebridge/ledger-service/pkg/bankfeed"
)

// listOnlyRepoStub serves handlers that only need a ledger snapshot.
type listOnlyRepoStub struct {
	store.Repository
}

func (listOnlyRepoStub) ListDonations(ctx context.Context) ([]domain.Donation, error) {
	return nil, nil
}

func TestMapLedgerError(t *testing.T) {
	feedErr := &bankfeed.ErrorResponse{}

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"blank reason", app.ErrBlankReason, http.StatusBadRequest},
		{"invalid filter", app.ErrInvalidFilter, http.StatusBadRequest},
		{"wrapped invalid filter", errors.Join(app.ErrInvalidFilter, errors.New("page must be >= 1")), http.StatusBadRequest},
		{"missing period", app.ErrInvalidPeriod, http.StatusBadRequest},
		{"donation not found", store.ErrDonationNotFound, http.StatusNotFound},
		{"transaction not found", store.ErrBankTransactionNotFound, http.StatusNotFound},
		{"pair not found", app.ErrPairNotFound, http.StatusNotFound},
		{"no open session", app.ErrNoOpenSession, http.StatusNotFound},
		{"terminal donation", store.ErrInvalidTransition, http.StatusConflict},
		{"consumed transaction", store.ErrTransactionConsumed, http.StatusConflict},
		{"already matched", app.ErrAlreadyMatched, http.StatusConflict},
		{"bank feed failure", feedErr, http.StatusBadGateway},
		{"unexpected failure", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, message := mapLedgerError(tt.err)
			if status != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, status)
			}
			if message == "" {
				t.Fatal("expected a message")
			}
		})
	}

	// Internal errors must not leak details to the client.
	_, message := mapLedgerError(errors.New("pq: connection refused"))
	if message != "Internal server error" {
		t.Fatalf("internal error message leaked: %q", message)
	}
}

func TestDailyStatsHandlerBoundsDaysParam(t *testing.T) {
	svc := app.NewService(listOnlyRepoStub{}, nil, nil, 10, 3)
	h := NewLedgerHandlers(svc, nil, "", 0, 0)

	for _, raw := range []string{"0", "-1", "367", "10000000", "week"} {
		r := httptest.NewRequest("GET", "/ledger/stats/daily?days="+raw, nil)
		w := httptest.NewRecorder()
		h.DailyStatsHandler(w, r)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("days=%s: expected 400, got %d", raw, w.Code)
		}
	}

	r := httptest.NewRequest("GET", "/ledger/stats/daily?days=366", nil)
	w := httptest.NewRecorder()
	h.DailyStatsHandler(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("days=366: expected 200, got %d", w.Code)
	}
}

func TestParseFilterSpec(t *testing.T) {
	r := httptest.NewRequest("GET", "/ledger/donations?status=pending&search=alice&date_from=2026-08-01&date_to=2026-08-15&amount_min=1000&amount_max=5000&payment_method=cash&campaign=general", nil)
	filter, err := parseFilterSpec(r)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if filter.Status != "pending" || filter.Search != "alice" || filter.PaymentMethod != "cash" || filter.Campaign != "general" {
		t.Fatalf("unexpected filter %+v", filter)
	}
	if filter.DateFrom == nil || filter.DateFrom.Format("2006-01-02") != "2026-08-01" {
		t.Fatalf("unexpected date_from %v", filter.DateFrom)
	}
	if filter.AmountMin == nil || *filter.AmountMin != 1000 || filter.AmountMax == nil || *filter.AmountMax != 5000 {
		t.Fatalf("unexpected amount bounds %+v", filter)
	}

	r = httptest.NewRequest("GET", "/ledger/donations?date_from=15-08-2026", nil)
	if _, err := parseFilterSpec(r); err == nil {
		t.Fatal("expected error for malformed date_from")
	}
	r = httptest.NewRequest("GET", "/ledger/donations?amount_min=ten", nil)
	if _, err := parseFilterSpec(r); err == nil {
		t.Fatal("expected error for non-numeric amount_min")
	}
}

func TestParseSortSpec(t *testing.T) {
	r := httptest.NewRequest("GET", "/ledger/donations", nil)
	spec, err := parseSortSpec(r)
	if err != nil {
		t.Fatalf("parse default: %v", err)
	}
	if spec.Key != "date" || !spec.Desc {
		t.Fatalf("expected default date desc, got %+v", spec)
	}

	r = httptest.NewRequest("GET", "/ledger/donations?sort=amount", nil)
	spec, err = parseSortSpec(r)
	if err != nil {
		t.Fatalf("parse sort: %v", err)
	}
	if spec.Key != "amount" || spec.Desc {
		t.Fatalf("expected amount asc, got %+v", spec)
	}

	r = httptest.NewRequest("GET", "/ledger/donations?sort=donor&order=desc", nil)
	spec, err = parseSortSpec(r)
	if err != nil {
		t.Fatalf("parse sort+order: %v", err)
	}
	if spec.Key != "donor" || !spec.Desc {
		t.Fatalf("expected donor desc, got %+v", spec)
	}

	r = httptest.NewRequest("GET", "/ledger/donations?sort=receipt", nil)
	if _, err := parseSortSpec(r); err == nil {
		t.Fatal("expected error for unknown sort key")
	}
}

func TestParsePageSpec(t *testing.T) {
	r := httptest.NewRequest("GET", "/ledger/donations", nil)
	page, err := parsePageSpec(r)
	if err != nil || page.Page != 1 {
		t.Fatalf("expected default page 1, got %+v err=%v", page, err)
	}

	r = httptest.NewRequest("GET", "/ledger/donations?page=4", nil)
	page, err = parsePageSpec(r)
	if err != nil || page.Page != 4 {
		t.Fatalf("expected page 4, got %+v err=%v", page, err)
	}

	for _, raw := range []string{"0", "-2", "two"} {
		r = httptest.NewRequest("GET", "/ledger/donations?page="+raw, nil)
		if _, err := parsePageSpec(r); err == nil {
			t.Fatalf("expected error for page=%s", raw)
		}
	}
}
