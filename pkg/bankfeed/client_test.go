package bankfeed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchStatementParsesEntries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("period"); got != "2026-08" {
			t.Errorf("expected period query 2026-08, got %q", got)
		}
		if got := r.Header.Get("x-feed-key"); got != "test-key" {
			t.Errorf("expected api key header, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"data": [
				{"id": "TX-1", "date": "2026-08-10T00:00:00Z", "amount": 5000, "reference": "REF-1", "description": "transfer"},
				{"id": "TX-2", "date": "2026-08-11T00:00:00Z", "amount": 7500, "reference": "REF-2", "description": "card"}
			],
			"meta": {"period": "2026-08", "total": 2}
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	statement, err := client.FetchStatement(context.Background(), "2026-08")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(statement.Data) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(statement.Data))
	}
	if statement.Data[0].ID != "TX-1" || statement.Data[0].Amount != 5000 {
		t.Fatalf("unexpected first entry %+v", statement.Data[0])
	}
}

func TestFetchStatementSurfacesAPIErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"errors": [{"title": "Forbidden", "detail": "invalid api key", "status": "403"}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "wrong-key")
	_, err := client.FetchStatement(context.Background(), "2026-08")
	if err == nil {
		t.Fatal("expected error")
	}
	var feedErr *ErrorResponse
	if !errors.As(err, &feedErr) {
		t.Fatalf("expected *ErrorResponse, got %T", err)
	}
	if feedErr.Errors[0].Title != "Forbidden" {
		t.Fatalf("unexpected error payload %+v", feedErr)
	}
}
