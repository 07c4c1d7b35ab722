/**
 * @description
 * This file contains the core business logic for the ledger-service. The `Service`
 * struct orchestrates donation lifecycle operations, coordinating between the
 * database repository, the bank statement feed client, and the message broker.
 *
 * Key features:
 * - Implements the donation ledger use cases: confirm, reject, lookup.
 * - Serves filtered/paginated views and aggregate statistics over fresh
 *   ledger snapshots (no read caching, so reads always reflect the latest
 *   committed state).
 * - Publishes events to RabbitMQ for asynchronous processing by other services.
 *
 * @dependencies
 * - context, errors, log, strings, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/bankfeed, pkg/rabbitmq: For external service communication.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/givebridge/ledger-service/internal/domain"
	"github.com/givebridge/ledger-service/internal/store"
	"github.com/givebridge/ledger-service/pkg/bankfeed"
	"github.com/givebridge/ledger-service/pkg/rabbitmq"
	"github.com/google/uuid"
)

var (
	ErrBlankReason   = errors.New("rejection reason must not be blank")
	ErrInvalidPeriod = errors.New("reconciliation period must not be blank")
)

// Service provides the core business logic for the donation ledger and the
// reconciliation engine.
type Service struct {
	repo          store.Repository
	bankClient    *bankfeed.Client
	eventProducer rabbitmq.Publisher
	pageSize      int

	suggestionWindowDays int

	sessionsMu sync.RWMutex
	sessions   map[string]*ReconciliationSession

	// now is swappable in tests; production uses time.Now.
	now func() time.Time
}

// NewService creates a new ledger service instance.
func NewService(repo store.Repository, bankClient *bankfeed.Client, producer rabbitmq.Publisher, pageSize, suggestionWindowDays int) *Service {
	if pageSize <= 0 {
		pageSize = 10
	}
	if suggestionWindowDays <= 0 {
		suggestionWindowDays = 3
	}
	return &Service{
		repo:                 repo,
		bankClient:           bankClient,
		eventProducer:        producer,
		pageSize:             pageSize,
		suggestionWindowDays: suggestionWindowDays,
		sessions:             make(map[string]*ReconciliationSession),
		now:                  time.Now,
	}
}

// PageSize exposes the server-defined page size so the API layer can report it.
func (s *Service) PageSize() int {
	return s.pageSize
}

// GetDonation looks up a single donation.
func (s *Service) GetDonation(ctx context.Context, donationID uuid.UUID) (*domain.Donation, error) {
	return s.repo.GetDonation(ctx, donationID)
}

// ConfirmDonation transitions a pending donation to completed and assigns its
// receipt number. Retrying a confirm is safe: the second attempt observes
// store.ErrInvalidTransition and nothing is written twice.
func (s *Service) ConfirmDonation(ctx context.Context, donationID uuid.UUID) (*domain.Donation, error) {
	d, err := s.repo.ConfirmDonation(ctx, donationID)
	if err != nil {
		return nil, err
	}

	s.publishStatusEvent(ctx, d, nil)
	log.Printf("level=info component=service flow=ledger msg=\"donation confirmed\" donation_id=%s receipt_no=%s", d.ID, deref(d.ReceiptNo))
	return d, nil
}

// RejectDonation transitions a pending donation to rejected, storing the
// operator-supplied reason. A blank reason is refused before any I/O.
func (s *Service) RejectDonation(ctx context.Context, donationID uuid.UUID, reason string) (*domain.Donation, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrBlankReason
	}

	d, err := s.repo.RejectDonation(ctx, donationID, reason)
	if err != nil {
		return nil, err
	}

	s.publishStatusEvent(ctx, d, &reason)
	log.Printf("level=info component=service flow=ledger msg=\"donation rejected\" donation_id=%s", d.ID)
	return d, nil
}

// ListDonations fetches a fresh ledger snapshot and delegates to the pure
// query engine.
func (s *Service) ListDonations(ctx context.Context, filter domain.FilterSpec, sort domain.SortSpec, page domain.PageSpec) (*domain.QueryResult, error) {
	if err := validateQuery(filter, sort, page, s.pageSize); err != nil {
		return nil, err
	}
	snapshot, err := s.repo.ListDonations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger snapshot: %w", err)
	}
	result, err := QueryDonations(snapshot, filter, sort, page, s.pageSize)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Stats recomputes the KPI set from a fresh ledger snapshot, optionally
// narrowed by a filter first.
func (s *Service) Stats(ctx context.Context, filter domain.FilterSpec) (*domain.LedgerStats, error) {
	snapshot, err := s.filteredSnapshot(ctx, filter)
	if err != nil {
		return nil, err
	}
	stats := ComputeStats(snapshot, s.now())
	return &stats, nil
}

// DailySeries recomputes the completed-donation series for the last n days.
func (s *Service) DailySeries(ctx context.Context, days int, filter domain.FilterSpec) (*domain.DailySeriesResult, error) {
	snapshot, err := s.filteredSnapshot(ctx, filter)
	if err != nil {
		return nil, err
	}
	series, err := DailySeries(snapshot, days, s.now())
	if err != nil {
		return nil, err
	}
	return &series, nil
}

func (s *Service) filteredSnapshot(ctx context.Context, filter domain.FilterSpec) ([]domain.Donation, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	snapshot, err := s.repo.ListDonations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger snapshot: %w", err)
	}
	return filterDonations(snapshot, filter), nil
}

// ImportBankStatement pulls a statement for the period from the processor
// feed and ingests it into the transaction pool. Re-imports skip rows the
// pool already holds.
func (s *Service) ImportBankStatement(ctx context.Context, period string) (int, error) {
	period = strings.TrimSpace(period)
	if period == "" {
		return 0, ErrInvalidPeriod
	}
	if s.bankClient == nil {
		return 0, errors.New("bank feed client is not configured")
	}

	statement, err := s.bankClient.FetchStatement(ctx, period)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch bank statement: %w", err)
	}

	txs := make([]domain.BankTransaction, 0, len(statement.Data))
	for _, entry := range statement.Data {
		txs = append(txs, domain.BankTransaction{
			ID:          entry.ID,
			Period:      period,
			Date:        entry.Date,
			Amount:      entry.Amount,
			Reference:   entry.Reference,
			Description: entry.Description,
		})
	}

	inserted, err := s.repo.InsertBankTransactions(ctx, period, txs)
	if err != nil {
		return inserted, err
	}
	log.Printf("level=info component=service flow=ingest msg=\"bank statement imported\" period=%s fetched=%d inserted=%d", period, len(txs), inserted)
	return inserted, nil
}

// ImportTransactions ingests an already-parsed statement batch (manual upload path).
func (s *Service) ImportTransactions(ctx context.Context, period string, txs []domain.BankTransaction) (int, error) {
	period = strings.TrimSpace(period)
	if period == "" {
		return 0, ErrInvalidPeriod
	}
	return s.repo.InsertBankTransactions(ctx, period, txs)
}

func (s *Service) publishStatusEvent(ctx context.Context, d *domain.Donation, reason *string) {
	if s.eventProducer == nil {
		return
	}
	event := domain.DonationStatusEvent{
		DonationID: d.ID,
		Status:     d.Status,
		Amount:     d.Amount,
		ReceiptNo:  d.ReceiptNo,
		Reason:     reason,
		Timestamp:  s.now().UTC(),
	}
	if err := s.eventProducer.PublishDonationStatusEvent(ctx, event); err != nil {
		// Event delivery is best-effort; the ledger write has already committed.
		log.Printf("level=warn component=service flow=events msg=\"status event publish failed\" donation_id=%s status=%s err=%v", d.ID, d.Status, err)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
