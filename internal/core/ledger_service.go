package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type LedgerPaymentInput struct {
	PartyID   int             `json:"party_id"`
	PartyType PartyType       `json:"party_type"`
	Amount    decimal.Decimal `json:"amount"`
	TotalPaid decimal.Decimal `json:"total_paid"`
	Discount  decimal.Decimal `json:"discount"`
	Payments  []Payment       `json:"payments"`
	Note      string          `json:"note"`
}

// LedgerService is the ledger payment allocator: a standalone receipt
// (customer) or payment (vendor) is booked against the party's running
// balance and then spread across that party's outstanding documents
// oldest-first. Allocation is greedy and single-pass; leftover payment
// beyond total due stays purely as ledger credit.
type LedgerService interface {
	CreateLedgerPayment(ctx context.Context, tenantID string, input LedgerPaymentInput) (*LedgerPayment, error)
	GetLedgerPayment(ctx context.Context, tenantID string, paymentID int) (*LedgerPayment, error)
	GetLedgerPayments(ctx context.Context, tenantID string) ([]LedgerPayment, error)
}

type ledgerService struct {
	pool *pgxpool.Pool
	seq  SequenceService
}

func NewLedgerService(pool *pgxpool.Pool, seq SequenceService) LedgerService {
	return &ledgerService{pool: pool, seq: seq}
}

func (s *ledgerService) CreateLedgerPayment(ctx context.Context, tenantID string, input LedgerPaymentInput) (*LedgerPayment, error) {
	if input.PartyID == 0 || len(input.Payments) == 0 {
		return nil, validationf("missing payment details")
	}
	if input.PartyType != PartyCustomer && input.PartyType != PartyVendor {
		return nil, validationf("unknown party type %q", input.PartyType)
	}
	if !input.TotalPaid.GreaterThan(decimal.Zero) {
		return nil, validationf("total paid must be positive")
	}
	if input.Discount.IsNegative() {
		return nil, validationf("discount cannot be negative")
	}

	docType, prefix := SeqReceipt, "RCT-"
	if input.PartyType == PartyVendor {
		docType, prefix = SeqPayment, "VPAY-"
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	paymentNumber, err := s.seq.NextTx(ctx, tx, tenantID, docType, prefix)
	if err != nil {
		return nil, err
	}

	var paymentID int
	err = tx.QueryRow(ctx, `
		INSERT INTO ledger_payments (tenant_id, payment_number, party_type, party_id, amount, total_paid, discount, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, tenantID, paymentNumber, string(input.PartyType), input.PartyID,
		input.Amount, input.TotalPaid, input.Discount, input.Note).Scan(&paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert ledger payment %s: %w", paymentNumber, err)
	}

	if err := insertPaymentsTx(ctx, tx, "ledger_payment", paymentID, input.Payments); err != nil {
		return nil, err
	}

	// Step 1: the party balance drops by payment plus discount,
	// unconditionally, even when no document absorbs it.
	settled := input.TotalPaid.Add(input.Discount)
	partyTable := "customers"
	if input.PartyType == PartyVendor {
		partyTable = "vendors"
	}
	tag, err := tx.Exec(ctx,
		"UPDATE "+partyTable+" SET ledger_balance = ledger_balance - $1 WHERE tenant_id = $2 AND id = $3",
		settled, tenantID, input.PartyID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update %s ledger: %w", input.PartyType, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, notFoundf("%s %d", input.PartyType, input.PartyID)
	}

	// Step 2: FIFO over outstanding documents, earliest created first.
	docs, err := s.fetchOutstandingTx(ctx, tx, tenantID, input.PartyType, input.PartyID)
	if err != nil {
		return nil, err
	}

	docTable := "bills"
	if input.PartyType == PartyVendor {
		docTable = "purchases"
	}
	for _, a := range AllocateOldestFirst(docs, settled) {
		if _, err := tx.Exec(ctx,
			"UPDATE "+docTable+" SET paid_amount = $1, balance_amount = $2, status = $3 WHERE id = $4",
			a.PaidAmount, a.BalanceAmount, string(a.Status), a.DocID,
		); err != nil {
			return nil, fmt.Errorf("failed to settle %s %d: %w", docTable, a.DocID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit ledger payment %s: %w", paymentNumber, err)
	}

	return s.GetLedgerPayment(ctx, tenantID, paymentID)
}

// fetchOutstandingTx loads the party's unsettled and partially settled
// documents in FIFO order, locked for the allocation updates.
func (s *ledgerService) fetchOutstandingTx(ctx context.Context, tx pgx.Tx, tenantID string, partyType PartyType, partyID int) ([]OutstandingDoc, error) {
	query := `
		SELECT id, grand_total, paid_amount
		FROM bills
		WHERE tenant_id = $1 AND customer_id = $2
		  AND status IN ('Unsettled', 'Partially Settled')
		ORDER BY created_at, id
		FOR UPDATE
	`
	if partyType == PartyVendor {
		query = `
			SELECT id, total_amount, paid_amount
			FROM purchases
			WHERE tenant_id = $1 AND vendor_id = $2
			  AND status IN ('Unsettled', 'Partially Settled')
			ORDER BY created_at, id
			FOR UPDATE
		`
	}

	rows, err := tx.Query(ctx, query, tenantID, partyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outstanding documents: %w", err)
	}
	defer rows.Close()

	var docs []OutstandingDoc
	for rows.Next() {
		var d OutstandingDoc
		if err := rows.Scan(&d.ID, &d.GrandTotal, &d.PaidAmount); err != nil {
			return nil, fmt.Errorf("failed to scan outstanding document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *ledgerService) GetLedgerPayment(ctx context.Context, tenantID string, paymentID int) (*LedgerPayment, error) {
	var lp LedgerPayment
	err := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, payment_number, party_type, party_id, amount, total_paid, discount, note, created_at
		FROM ledger_payments
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, paymentID).Scan(
		&lp.ID, &lp.TenantID, &lp.PaymentNumber, &lp.PartyType, &lp.PartyID,
		&lp.Amount, &lp.TotalPaid, &lp.Discount, &lp.Note, &lp.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundf("ledger payment %d", paymentID)
		}
		return nil, fmt.Errorf("failed to fetch ledger payment %d: %w", paymentID, err)
	}

	payments, err := fetchPaymentsQ(ctx, s.pool, "ledger_payment", paymentID)
	if err != nil {
		return nil, err
	}
	lp.Payments = payments
	return &lp, nil
}

func (s *ledgerService) GetLedgerPayments(ctx context.Context, tenantID string) ([]LedgerPayment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, payment_number, party_type, party_id, amount, total_paid, discount, note, created_at
		FROM ledger_payments
		WHERE tenant_id = $1
		ORDER BY created_at DESC, id DESC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger payments: %w", err)
	}
	defer rows.Close()

	var payments []LedgerPayment
	for rows.Next() {
		var lp LedgerPayment
		if err := rows.Scan(&lp.ID, &lp.TenantID, &lp.PaymentNumber, &lp.PartyType, &lp.PartyID,
			&lp.Amount, &lp.TotalPaid, &lp.Discount, &lp.Note, &lp.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger payment: %w", err)
		}
		payments = append(payments, lp)
	}
	return payments, rows.Err()
}
