/**
 * @description
 * This file contains the matching engine for bank statement reconciliation.
 * A `ReconciliationSession` holds the ephemeral working batch for one operator:
 * the unmatched donation and transaction pools plus the proposed match pairs.
 * Nothing is persisted until `apply`, which commits each pair independently
 * through the repository; an abandoned session leaves the ledger untouched.
 *
 * Key features:
 * - Enforces the at-most-one-pair rule for every donation and transaction.
 * - Per-pair apply: one pair's failure never blocks or rolls back the others.
 * - Read-only match suggestions by amount equality and date proximity.
 *
 * @dependencies
 * - context, errors, log, sort, sync, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain, internal/store: For domain models and data access.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/givebridge/ledger-service/internal/domain"
	"github.com/givebridge/ledger-service/internal/store"
	"github.com/google/uuid"
)

var (
	ErrNoOpenSession  = errors.New("no open reconciliation session for operator")
	ErrAlreadyMatched = errors.New("donation or transaction is already in an open pair")
	ErrPairNotFound   = errors.New("no such pair in the open batch")
)

// ReconciliationSession is the working state of one operator's reconciliation
// run. All fields are guarded by mu; the session is safe for the retried and
// interleaved requests a single operator's browser produces, but the batch is
// still logically single-owner.
type ReconciliationSession struct {
	mu sync.Mutex

	operatorID string
	period     string
	openedAt   time.Time

	donations    map[uuid.UUID]domain.Donation
	transactions map[string]domain.BankTransaction
	pairs        []proposedPair
}

// proposedPair keeps the pooled records alongside the pair so a withdrawal
// can always return both ids to their pools, even when a store refresh is
// unavailable at unmatch time.
type proposedPair struct {
	pair        domain.MatchPair
	donation    domain.Donation
	transaction domain.BankTransaction
}

// OpenReconciliation starts a fresh session for the operator over the given
// period. The unmatched pools are snapshotted at open time: pending donations
// on one side, unconsumed transactions of the period on the other. Reopening
// implicitly abandons the operator's previous session; its unapplied pairs
// are discarded with no ledger side effects.
func (s *Service) OpenReconciliation(ctx context.Context, operatorID, period string) (*domain.SessionView, error) {
	if period == "" {
		return nil, ErrInvalidPeriod
	}

	pending, err := s.repo.ListPendingDonations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending donations: %w", err)
	}
	unmatched, err := s.repo.ListUnmatchedTransactions(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("failed to load unmatched transactions: %w", err)
	}

	session := &ReconciliationSession{
		operatorID:   operatorID,
		period:       period,
		openedAt:     s.now().UTC(),
		donations:    make(map[uuid.UUID]domain.Donation, len(pending)),
		transactions: make(map[string]domain.BankTransaction, len(unmatched)),
	}
	for _, d := range pending {
		session.donations[d.ID] = d
	}
	for _, t := range unmatched {
		session.transactions[t.ID] = t
	}

	s.sessionsMu.Lock()
	if prev, ok := s.sessions[operatorID]; ok {
		log.Printf("level=info component=matching msg=\"replacing open session\" operator_id=%s discarded_pairs=%d", operatorID, len(prev.pairs))
	}
	s.sessions[operatorID] = session
	s.sessionsMu.Unlock()

	log.Printf("level=info component=matching msg=\"reconciliation session opened\" operator_id=%s period=%s donations=%d transactions=%d", operatorID, period, len(pending), len(unmatched))
	return session.view(), nil
}

// CurrentSession returns the operator's open session view.
func (s *Service) CurrentSession(operatorID string) (*domain.SessionView, error) {
	session, err := s.sessionFor(operatorID)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	return session.view(), nil
}

// AbandonReconciliation discards the operator's open session. Open pairs are
// dropped without any ledger writes.
func (s *Service) AbandonReconciliation(operatorID string) error {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	session, ok := s.sessions[operatorID]
	if !ok {
		return ErrNoOpenSession
	}
	delete(s.sessions, operatorID)
	log.Printf("level=info component=matching msg=\"reconciliation session abandoned\" operator_id=%s discarded_pairs=%d", operatorID, len(session.pairs))
	return nil
}

// Propose pairs one donation with one transaction in the operator's open
// batch. Both ids must come from the session's unmatched pools; on success
// both leave their pools for the remainder of the batch.
func (s *Service) Propose(operatorID string, donationID uuid.UUID, transactionID string) (*domain.MatchPair, error) {
	session, err := s.sessionFor(operatorID)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	for _, p := range session.pairs {
		if p.pair.DonationID == donationID || p.pair.TransactionID == transactionID {
			return nil, ErrAlreadyMatched
		}
	}

	d, ok := session.donations[donationID]
	if !ok {
		return nil, store.ErrDonationNotFound
	}
	if d.Status != domain.DonationPending {
		return nil, store.ErrInvalidTransition
	}
	tx, ok := session.transactions[transactionID]
	if !ok {
		return nil, store.ErrBankTransactionNotFound
	}

	pair := domain.MatchPair{
		DonationID:    donationID,
		TransactionID: transactionID,
		ProposedAt:    s.now().UTC(),
	}
	delete(session.donations, donationID)
	delete(session.transactions, transactionID)
	session.pairs = append(session.pairs, proposedPair{pair: pair, donation: d, transaction: tx})
	return &pair, nil
}

// Unmatch withdraws a proposed pair, returning both ids to their unmatched
// pools so they are eligible for a new pairing.
func (s *Service) Unmatch(ctx context.Context, operatorID string, donationID uuid.UUID, transactionID string) error {
	session, err := s.sessionFor(operatorID)
	if err != nil {
		return err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	idx := -1
	for i, p := range session.pairs {
		if p.pair.DonationID == donationID && p.pair.TransactionID == transactionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrPairNotFound
	}
	removed := session.pairs[idx]
	session.pairs = append(session.pairs[:idx], session.pairs[idx+1:]...)

	// Both ids return to their pools from the records stashed at propose
	// time. The store read is a best-effort refresh so the pools reflect
	// any state the records picked up while paired; a failed refresh keeps
	// the stashed snapshot rather than dropping the id.
	donation := removed.donation
	if fresh, err := s.repo.GetDonation(ctx, donationID); err == nil {
		donation = *fresh
	} else {
		log.Printf("level=warn component=matching msg=\"donation refresh failed on unmatch; restoring proposed snapshot\" operator_id=%s donation_id=%s err=%v", operatorID, donationID, err)
	}
	if donation.Status == domain.DonationPending {
		session.donations[donation.ID] = donation
	}

	transaction := removed.transaction
	if fresh, err := s.repo.GetBankTransaction(ctx, transactionID); err == nil {
		transaction = *fresh
	} else {
		log.Printf("level=warn component=matching msg=\"transaction refresh failed on unmatch; restoring proposed snapshot\" operator_id=%s transaction_id=%s err=%v", operatorID, transactionID, err)
	}
	if transaction.ConsumedBy == nil {
		session.transactions[transaction.ID] = transaction
	}
	return nil
}

// ApplyReconciliation commits the operator's open batch, pair by pair, in
// proposal order. Each pair stands alone: the repository commits or fails it
// atomically, and a failed pair stays in the batch so the operator can retry
// or withdraw it. Re-applying an emptied batch is a no-op.
func (s *Service) ApplyReconciliation(ctx context.Context, operatorID string) (*domain.ApplyResult, error) {
	session, err := s.sessionFor(operatorID)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	result := &domain.ApplyResult{
		Applied: []domain.MatchPair{},
		Failed:  []domain.ApplyFailure{},
	}
	remaining := make([]proposedPair, 0, len(session.pairs))

	for _, p := range session.pairs {
		pair := p.pair
		_, err := s.repo.ApplyMatch(ctx, pair.DonationID, pair.TransactionID)
		if err != nil {
			log.Printf("level=warn component=matching msg=\"pair apply failed\" operator_id=%s donation_id=%s transaction_id=%s err=%v", operatorID, pair.DonationID, pair.TransactionID, err)
			result.Failed = append(result.Failed, domain.ApplyFailure{Pair: pair, Error: err.Error()})
			remaining = append(remaining, p)
			continue
		}
		result.Applied = append(result.Applied, pair)
	}
	session.pairs = remaining

	if len(result.Applied) > 0 || len(result.Failed) > 0 {
		log.Printf("level=info component=matching msg=\"reconciliation applied\" operator_id=%s period=%s applied=%d failed=%d", operatorID, session.period, len(result.Applied), len(result.Failed))
		s.publishAppliedEvent(ctx, operatorID, session.period, result)
	}
	return result, nil
}

// Suggestions returns advisory candidate pairings for the open batch: exact
// amount matches within the configured date window, closest dates first.
// Suggestions are never applied automatically.
func (s *Service) Suggestions(operatorID string) ([]domain.MatchSuggestion, error) {
	session, err := s.sessionFor(operatorID)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	suggestions := []domain.MatchSuggestion{}
	for _, d := range session.donations {
		for _, t := range session.transactions {
			if d.Amount != t.Amount {
				continue
			}
			days := daysApart(d.DonatedAt, t.Date)
			if days > s.suggestionWindowDays {
				continue
			}
			suggestions = append(suggestions, domain.MatchSuggestion{
				DonationID:    d.ID,
				TransactionID: t.ID,
				DaysApart:     days,
			})
		}
	}
	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].DaysApart != suggestions[j].DaysApart {
			return suggestions[i].DaysApart < suggestions[j].DaysApart
		}
		if suggestions[i].DonationID != suggestions[j].DonationID {
			return suggestions[i].DonationID.String() < suggestions[j].DonationID.String()
		}
		return suggestions[i].TransactionID < suggestions[j].TransactionID
	})
	return suggestions, nil
}

func (s *Service) sessionFor(operatorID string) (*ReconciliationSession, error) {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	session, ok := s.sessions[operatorID]
	if !ok {
		return nil, ErrNoOpenSession
	}
	return session, nil
}

func (s *Service) publishAppliedEvent(ctx context.Context, operatorID, period string, result *domain.ApplyResult) {
	if s.eventProducer == nil {
		return
	}
	event := domain.ReconciliationAppliedEvent{
		OperatorID:   operatorID,
		Period:       period,
		AppliedCount: len(result.Applied),
		FailedCount:  len(result.Failed),
		Timestamp:    s.now().UTC(),
	}
	if err := s.eventProducer.PublishReconciliationAppliedEvent(ctx, event); err != nil {
		log.Printf("level=warn component=matching flow=events msg=\"applied event publish failed\" operator_id=%s err=%v", operatorID, err)
	}
}

// view builds the read-side projection. Caller holds session.mu (or has
// exclusive access to a freshly built session).
func (rs *ReconciliationSession) view() *domain.SessionView {
	donations := make([]domain.Donation, 0, len(rs.donations))
	for _, d := range rs.donations {
		donations = append(donations, d)
	}
	sort.Slice(donations, func(i, j int) bool {
		if !donations[i].DonatedAt.Equal(donations[j].DonatedAt) {
			return donations[i].DonatedAt.Before(donations[j].DonatedAt)
		}
		return donations[i].ID.String() < donations[j].ID.String()
	})

	transactions := make([]domain.BankTransaction, 0, len(rs.transactions))
	for _, t := range rs.transactions {
		transactions = append(transactions, t)
	}
	sort.Slice(transactions, func(i, j int) bool {
		if !transactions[i].Date.Equal(transactions[j].Date) {
			return transactions[i].Date.Before(transactions[j].Date)
		}
		return transactions[i].ID < transactions[j].ID
	})

	pairs := make([]domain.MatchPair, len(rs.pairs))
	for i, p := range rs.pairs {
		pairs[i] = p.pair
	}

	return &domain.SessionView{
		OperatorID:            rs.operatorID,
		Period:                rs.period,
		OpenedAt:              rs.openedAt,
		Pairs:                 pairs,
		UnmatchedDonations:    donations,
		UnmatchedTransactions: transactions,
	}
}

func daysApart(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	diff := int(ad.Sub(bd).Hours() / 24)
	if diff < 0 {
		diff = -diff
	}
	return diff
}
