package domain

import "time"

// FilterSpec narrows a donation snapshot. All fields are optional and
// conjunctive. The sentinel "all" (or an empty string) disables the status,
// payment-method, and campaign filters; the sentinel "general" matches
// donations with no campaign.
type FilterSpec struct {
	Status        string     `json:"status,omitempty"`
	Search        string     `json:"search,omitempty"`
	DateFrom      *time.Time `json:"date_from,omitempty"`
	DateTo        *time.Time `json:"date_to,omitempty"`
	AmountMin     *int64     `json:"amount_min,omitempty"`
	AmountMax     *int64     `json:"amount_max,omitempty"`
	PaymentMethod string     `json:"payment_method,omitempty"`
	Campaign      string     `json:"campaign,omitempty"`
}

// SortKey selects the primary ordering of a donation view.
type SortKey string

const (
	SortByDate   SortKey = "date"
	SortByAmount SortKey = "amount"
	SortByDonor  SortKey = "donor"
	SortByStatus SortKey = "status"
)

// SortSpec orders a donation view. Ties on the primary key are broken by
// donation id ascending so the ordering is deterministic.
type SortSpec struct {
	Key  SortKey `json:"key"`
	Desc bool    `json:"desc"`
}

// DefaultSort is date descending, newest donations first.
func DefaultSort() SortSpec {
	return SortSpec{Key: SortByDate, Desc: true}
}

// PageSpec requests one 1-indexed page of a view. The page size is fixed
// server-side.
type PageSpec struct {
	Page int `json:"page"`
}

// QueryResult is one page of a filtered, sorted donation view together with
// the totals a client needs to render pagination.
type QueryResult struct {
	Items      []Donation `json:"items"`
	Total      int        `json:"total"`
	TotalPages int        `json:"total_pages"`
}

// MethodShare is one bucket of the payment-method distribution.
type MethodShare struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// LedgerStats is the point-in-time KPI set computed over a donation
// snapshot. AverageDonation intentionally divides by the full set size,
// pending and rejected included; it is an all-submissions metric, not a
// financial one.
type LedgerStats struct {
	TotalReceived   int64                  `json:"total_received"`
	TotalThisMonth  int64                  `json:"total_this_month"`
	PendingCount    int                    `json:"pending_count"`
	ConfirmedCount  int                    `json:"confirmed_count"`
	RejectedCount   int                    `json:"rejected_count"`
	AverageDonation float64                `json:"average_donation"`
	PaymentMethods  map[string]MethodShare `json:"payment_methods"`
}

// DailyCount is the completed-donation count for one calendar day.
type DailyCount struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Count int    `json:"count"`
}

// DailySeriesResult is a time-bucketed series over the last N calendar days,
// oldest first and inclusive of today. Max is the series maximum floored at
// 1, the normalization denominator for bounded visualizations.
type DailySeriesResult struct {
	Days []DailyCount `json:"days"`
	Max  int          `json:"max"`
}
