/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the necessary SQL queries to interact with the database tables
 * related to donations and imported bank transactions.
 *
 * Donation state transitions are guarded UPDATEs conditioned on
 * status = 'pending', so two concurrent confirm/reject attempts on the same
 * donation resolve to exactly one winner without advisory locks.
 *
 * @dependencies
 * - context, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/givebridge/ledger-service/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrDonationNotFound        = errors.New("donation not found")
	ErrBankTransactionNotFound = errors.New("bank transaction not found")
	ErrInvalidTransition       = errors.New("donation is not pending")
	ErrTransactionConsumed     = errors.New("bank transaction already consumed")
)

const donationColumns = `id, serial, amount, status, donor_name, donor_email, campaign_id,
	purpose, payment_method, external_ref, receipt_no, rejection_reason, donated_at, created_at`

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanDonation(row pgx.Row) (*domain.Donation, error) {
	var d domain.Donation
	err := row.Scan(
		&d.ID, &d.Serial, &d.Amount, &d.Status, &d.DonorName, &d.DonorEmail, &d.CampaignID,
		&d.Purpose, &d.PaymentMethod, &d.ExternalRef, &d.ReceiptNo, &d.RejectionReason,
		&d.DonatedAt, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// GetDonation retrieves a single donation by id.
func (r *PostgresRepository) GetDonation(ctx context.Context, donationID uuid.UUID) (*domain.Donation, error) {
	query := fmt.Sprintf(`SELECT %s FROM donations WHERE id = $1`, donationColumns)
	d, err := scanDonation(r.db.QueryRow(ctx, query, donationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDonationNotFound
		}
		return nil, err
	}
	return d, nil
}

// ListDonations returns the full ledger snapshot, newest business time first.
// The query and stats engines are pure functions over this snapshot.
func (r *PostgresRepository) ListDonations(ctx context.Context) ([]domain.Donation, error) {
	query := fmt.Sprintf(`SELECT %s FROM donations ORDER BY donated_at DESC, id ASC`, donationColumns)
	return r.listDonations(ctx, query)
}

// ListPendingDonations returns the donations eligible for matching.
func (r *PostgresRepository) ListPendingDonations(ctx context.Context) ([]domain.Donation, error) {
	query := fmt.Sprintf(`SELECT %s FROM donations WHERE status = 'pending' ORDER BY donated_at ASC, id ASC`, donationColumns)
	return r.listDonations(ctx, query)
}

func (r *PostgresRepository) listDonations(ctx context.Context, query string, args ...any) ([]domain.Donation, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	donations := []domain.Donation{}
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, err
		}
		donations = append(donations, *d)
	}
	return donations, rows.Err()
}

// confirmDonationSQL performs the guarded transition in one statement.
// Receipt numbers come from a dedicated sequence so they are monotonic and
// unique across the ledger.
const confirmDonationSQL = `
	UPDATE donations
	SET status = 'completed',
	    receipt_no = 'RCPT-' || lpad(nextval('donation_receipt_seq')::text, 6, '0')
	WHERE id = $1 AND status = 'pending'
	RETURNING ` + donationColumns

// ConfirmDonation transitions a pending donation to completed.
func (r *PostgresRepository) ConfirmDonation(ctx context.Context, donationID uuid.UUID) (*domain.Donation, error) {
	d, err := scanDonation(r.db.QueryRow(ctx, confirmDonationSQL, donationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.classifyMissedTransition(ctx, donationID)
		}
		return nil, err
	}
	return d, nil
}

// RejectDonation transitions a pending donation to rejected and stores the
// operator-supplied reason. Reason validation happens in the app layer; the
// repository still refuses empty reasons so the invariant holds under direct use.
func (r *PostgresRepository) RejectDonation(ctx context.Context, donationID uuid.UUID, reason string) (*domain.Donation, error) {
	if reason == "" {
		return nil, errors.New("rejection reason must not be empty")
	}
	query := `
		UPDATE donations
		SET status = 'rejected', rejection_reason = $2
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + donationColumns
	d, err := scanDonation(r.db.QueryRow(ctx, query, donationID, reason))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.classifyMissedTransition(ctx, donationID)
		}
		return nil, err
	}
	return d, nil
}

// classifyMissedTransition distinguishes "no such donation" from "donation
// exists but is terminal" after a guarded UPDATE matched zero rows.
func (r *PostgresRepository) classifyMissedTransition(ctx context.Context, donationID uuid.UUID) error {
	var status domain.DonationStatus
	err := r.db.QueryRow(ctx, `SELECT status FROM donations WHERE id = $1`, donationID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrDonationNotFound
		}
		return err
	}
	return ErrInvalidTransition
}

// GetBankTransaction retrieves one imported bank transaction by external id.
func (r *PostgresRepository) GetBankTransaction(ctx context.Context, transactionID string) (*domain.BankTransaction, error) {
	var t domain.BankTransaction
	query := `
		SELECT external_id, period, txn_date, amount, reference, description, consumed_by
		FROM bank_transactions
		WHERE external_id = $1
	`
	err := r.db.QueryRow(ctx, query, transactionID).Scan(
		&t.ID, &t.Period, &t.Date, &t.Amount, &t.Reference, &t.Description, &t.ConsumedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBankTransactionNotFound
		}
		return nil, err
	}
	return &t, nil
}

// ListUnmatchedTransactions returns the transactions of a reconciliation
// period that have not been consumed by an applied match.
func (r *PostgresRepository) ListUnmatchedTransactions(ctx context.Context, period string) ([]domain.BankTransaction, error) {
	query := `
		SELECT external_id, period, txn_date, amount, reference, description, consumed_by
		FROM bank_transactions
		WHERE period = $1 AND consumed_by IS NULL
		ORDER BY txn_date ASC, external_id ASC
	`
	rows, err := r.db.Query(ctx, query, period)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txs := []domain.BankTransaction{}
	for rows.Next() {
		var t domain.BankTransaction
		if err := rows.Scan(&t.ID, &t.Period, &t.Date, &t.Amount, &t.Reference, &t.Description, &t.ConsumedBy); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// InsertBankTransactions ingests a statement batch. Re-imports of the same
// statement are harmless: rows already present for the period are skipped.
func (r *PostgresRepository) InsertBankTransactions(ctx context.Context, period string, txs []domain.BankTransaction) (int, error) {
	inserted := 0
	query := `
		INSERT INTO bank_transactions (external_id, period, txn_date, amount, reference, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (external_id, period) DO NOTHING
	`
	for _, t := range txs {
		tag, err := r.db.Exec(ctx, query, t.ID, period, t.Date, t.Amount, t.Reference, t.Description)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert bank transaction %s: %w", t.ID, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// ApplyMatch commits one match pair atomically: the bank transaction is
// marked consumed and the donation is confirmed with the bank reference
// recorded against it. Either both writes commit or neither does.
func (r *PostgresRepository) ApplyMatch(ctx context.Context, donationID uuid.UUID, transactionID string) (*domain.Donation, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin apply transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var reference string
	err = tx.QueryRow(ctx, `
		UPDATE bank_transactions
		SET consumed_by = $1
		WHERE external_id = $2 AND consumed_by IS NULL
		RETURNING reference
	`, donationID, transactionID).Scan(&reference)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.classifyMissedConsume(ctx, transactionID)
		}
		return nil, err
	}

	d, err := scanDonation(tx.QueryRow(ctx, `
		UPDATE donations
		SET status = 'completed',
		    receipt_no = 'RCPT-' || lpad(nextval('donation_receipt_seq')::text, 6, '0'),
		    external_ref = $2
		WHERE id = $1 AND status = 'pending'
		RETURNING `+donationColumns, donationID, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.classifyMissedTransition(ctx, donationID)
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit applied match: %w", err)
	}
	return d, nil
}

func (r *PostgresRepository) classifyMissedConsume(ctx context.Context, transactionID string) error {
	var consumedBy *uuid.UUID
	err := r.db.QueryRow(ctx, `SELECT consumed_by FROM bank_transactions WHERE external_id = $1`, transactionID).Scan(&consumedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrBankTransactionNotFound
		}
		return err
	}
	return ErrTransactionConsumed
}
