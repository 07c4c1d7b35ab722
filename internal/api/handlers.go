/**
 * @description
 * This file contains the HTTP handlers for the ledger-service's donation and
 * stats endpoints. Handlers are responsible for parsing incoming requests,
 * calling the appropriate methods on the application service, and writing the
 * HTTP response. They act as the bridge between the web layer and the business
 * logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/givebridge/ledger-service/internal/app"
	"github.com/givebridge/ledger-service/internal/domain"
	"github.com/givebridge/ledger-service/internal/store"
	"github.com/givebridge/ledger-service/pkg/bankfeed"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// LedgerHandlers holds the application service that handlers will use.
type LedgerHandlers struct {
	service        *app.Service
	limiter        app.RateLimiter
	internalAPIKey string

	applyLimitPerMinute       int
	sessionOpenLimitPerMinute int
}

// NewLedgerHandlers creates a new instance of LedgerHandlers.
func NewLedgerHandlers(service *app.Service, limiter app.RateLimiter, internalAPIKey string, applyLimitPerMinute, sessionOpenLimitPerMinute int) *LedgerHandlers {
	return &LedgerHandlers{
		service:                   service,
		limiter:                   limiter,
		internalAPIKey:            internalAPIKey,
		applyLimitPerMinute:       applyLimitPerMinute,
		sessionOpenLimitPerMinute: sessionOpenLimitPerMinute,
	}
}

type rejectDonationRequest struct {
	Reason string `json:"reason"`
}

type importTransactionsRequest struct {
	Period       string                   `json:"period"`
	Transactions []domain.BankTransaction `json:"transactions"`
}

type importTransactionsResponse struct {
	Period   string `json:"period"`
	Inserted int    `json:"inserted"`
}

// ListDonationsHandler serves the filtered, sorted, paginated ledger view.
func (h *LedgerHandlers) ListDonationsHandler(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilterSpec(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sortSpec, err := parseSortSpec(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, err := parsePageSpec(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.ListDonations(r.Context(), filter, sortSpec, page)
	if err != nil {
		h.handleLedgerError(w, "list_donations", err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// GetDonationHandler serves one donation by id.
func (h *LedgerHandlers) GetDonationHandler(w http.ResponseWriter, r *http.Request) {
	donationID, ok := h.parseDonationID(w, r)
	if !ok {
		return
	}
	d, err := h.service.GetDonation(r.Context(), donationID)
	if err != nil {
		h.handleLedgerError(w, "get_donation", err)
		return
	}
	h.writeJSON(w, http.StatusOK, d)
}

// ConfirmDonationHandler transitions a pending donation to completed.
func (h *LedgerHandlers) ConfirmDonationHandler(w http.ResponseWriter, r *http.Request) {
	donationID, ok := h.parseDonationID(w, r)
	if !ok {
		return
	}

	d, err := h.service.ConfirmDonation(r.Context(), donationID)
	if err != nil {
		log.Printf("level=warn component=api endpoint=confirm_donation outcome=failed donation_id=%s err=%v", donationID, err)
		h.handleLedgerError(w, "confirm_donation", err)
		return
	}
	h.writeJSON(w, http.StatusOK, d)
}

// RejectDonationHandler transitions a pending donation to rejected.
func (h *LedgerHandlers) RejectDonationHandler(w http.ResponseWriter, r *http.Request) {
	donationID, ok := h.parseDonationID(w, r)
	if !ok {
		return
	}

	var req rejectDonationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	d, err := h.service.RejectDonation(r.Context(), donationID, req.Reason)
	if err != nil {
		log.Printf("level=warn component=api endpoint=reject_donation outcome=failed donation_id=%s err=%v", donationID, err)
		h.handleLedgerError(w, "reject_donation", err)
		return
	}
	h.writeJSON(w, http.StatusOK, d)
}

// StatsHandler serves the KPI set, optionally narrowed by the same filter
// params as the list endpoint.
func (h *LedgerHandlers) StatsHandler(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilterSpec(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	stats, err := h.service.Stats(r.Context(), filter)
	if err != nil {
		h.handleLedgerError(w, "stats", err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// maxDailySeriesDays caps the requested series window at one year.
const maxDailySeriesDays = 366

// DailyStatsHandler serves the completed-donation series for the last n days
// (default 7).
func (h *LedgerHandlers) DailyStatsHandler(w http.ResponseWriter, r *http.Request) {
	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxDailySeriesDays {
			h.writeError(w, http.StatusBadRequest, "days must be between 1 and 366")
			return
		}
		days = parsed
	}
	filter, err := parseFilterSpec(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	series, err := h.service.DailySeries(r.Context(), days, filter)
	if err != nil {
		h.handleLedgerError(w, "daily_stats", err)
		return
	}
	h.writeJSON(w, http.StatusOK, series)
}

// ImportTransactionsHandler ingests a parsed statement batch. It is an
// internal service-to-service endpoint guarded by the shared API key.
func (h *LedgerHandlers) ImportTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	if !h.authorizeInternal(w, r) {
		return
	}

	var req importTransactionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	inserted, err := h.service.ImportTransactions(r.Context(), req.Period, req.Transactions)
	if err != nil {
		h.handleLedgerError(w, "import_transactions", err)
		return
	}
	h.writeJSON(w, http.StatusOK, importTransactionsResponse{Period: strings.TrimSpace(req.Period), Inserted: inserted})
}

// ImportStatementHandler pulls the period's statement from the processor feed.
func (h *LedgerHandlers) ImportStatementHandler(w http.ResponseWriter, r *http.Request) {
	if !h.authorizeInternal(w, r) {
		return
	}

	period := r.URL.Query().Get("period")
	inserted, err := h.service.ImportBankStatement(r.Context(), period)
	if err != nil {
		log.Printf("level=warn component=api endpoint=import_statement outcome=failed period=%s err=%v", period, err)
		h.handleLedgerError(w, "import_statement", err)
		return
	}
	h.writeJSON(w, http.StatusOK, importTransactionsResponse{Period: strings.TrimSpace(period), Inserted: inserted})
}

func (h *LedgerHandlers) authorizeInternal(w http.ResponseWriter, r *http.Request) bool {
	key := r.Header.Get("X-Internal-Api-Key")
	if h.internalAPIKey == "" || key != h.internalAPIKey {
		h.writeError(w, http.StatusUnauthorized, "Invalid internal API key")
		return false
	}
	return true
}

func (h *LedgerHandlers) parseDonationID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "donationID")
	donationID, err := uuid.Parse(raw)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid donation ID format")
		return uuid.Nil, false
	}
	return donationID, true
}

func parseFilterSpec(r *http.Request) (domain.FilterSpec, error) {
	q := r.URL.Query()
	filter := domain.FilterSpec{
		Status:        q.Get("status"),
		Search:        q.Get("search"),
		PaymentMethod: q.Get("payment_method"),
		Campaign:      q.Get("campaign"),
	}

	if raw := q.Get("date_from"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, errors.New("date_from must be formatted YYYY-MM-DD")
		}
		filter.DateFrom = &t
	}
	if raw := q.Get("date_to"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, errors.New("date_to must be formatted YYYY-MM-DD")
		}
		filter.DateTo = &t
	}
	if raw := q.Get("amount_min"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, errors.New("amount_min must be an integer amount in cents")
		}
		filter.AmountMin = &v
	}
	if raw := q.Get("amount_max"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, errors.New("amount_max must be an integer amount in cents")
		}
		filter.AmountMax = &v
	}
	return filter, nil
}

func parseSortSpec(r *http.Request) (domain.SortSpec, error) {
	q := r.URL.Query()
	spec := domain.DefaultSort()
	if raw := q.Get("sort"); raw != "" {
		switch domain.SortKey(raw) {
		case domain.SortByDate, domain.SortByAmount, domain.SortByDonor, domain.SortByStatus:
			spec.Key = domain.SortKey(raw)
		default:
			return spec, errors.New("sort must be one of date, amount, donor, status")
		}
		// An explicit sort key defaults to ascending unless order says otherwise.
		spec.Desc = false
	}
	if raw := q.Get("order"); raw != "" {
		switch raw {
		case "asc":
			spec.Desc = false
		case "desc":
			spec.Desc = true
		default:
			return spec, errors.New("order must be asc or desc")
		}
	}
	return spec, nil
}

func parsePageSpec(r *http.Request) (domain.PageSpec, error) {
	page := domain.PageSpec{Page: 1}
	if raw := r.URL.Query().Get("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return page, errors.New("page must be a positive integer")
		}
		page.Page = parsed
	}
	return page, nil
}

// handleLedgerError maps service errors onto HTTP statuses and writes the
// response.
func (h *LedgerHandlers) handleLedgerError(w http.ResponseWriter, endpoint string, err error) {
	status, message := mapLedgerError(err)
	if status == http.StatusInternalServerError {
		log.Printf("level=error component=api endpoint=%s msg=\"unhandled service error\" err=%v", endpoint, err)
	}
	h.writeError(w, status, message)
}

// mapLedgerError translates the service error taxonomy into HTTP statuses:
// validation 400, missing records 404, transition conflicts 409, upstream
// feed failures 502, everything else 500.
func mapLedgerError(err error) (int, string) {
	switch {
	case errors.Is(err, app.ErrBlankReason),
		errors.Is(err, app.ErrInvalidFilter),
		errors.Is(err, app.ErrInvalidPeriod):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, store.ErrDonationNotFound),
		errors.Is(err, store.ErrBankTransactionNotFound),
		errors.Is(err, app.ErrPairNotFound),
		errors.Is(err, app.ErrNoOpenSession):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, store.ErrInvalidTransition),
		errors.Is(err, store.ErrTransactionConsumed),
		errors.Is(err, app.ErrAlreadyMatched):
		return http.StatusConflict, err.Error()
	}

	var feedErr *bankfeed.ErrorResponse
	if errors.As(err, &feedErr) {
		return http.StatusBadGateway, "Bank statement feed rejected the request"
	}
	return http.StatusInternalServerError, "Internal server error"
}

// writeJSON is a helper for writing JSON responses.
func (h *LedgerHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *LedgerHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
