package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Document types with their default display prefixes. A tenant's
// stored prefix wins once the sequence row exists.
const (
	SeqBill           = "BILL"     // INV-
	SeqPurchase       = "PURCHASE" // PUR-
	SeqReceipt        = "RECEIPT"  // RCT-  (customer ledger payments)
	SeqPayment        = "PAYMENT"  // VPAY- (vendor ledger payments)
	SeqSalesReturn    = "SALES_RETURN"
	SeqPurchaseReturn = "PURCHASE_RETURN"
)

// SequenceService issues tenant-scoped monotonically increasing
// document numbers. The increment is a single upsert so concurrent
// callers can never observe the same value.
type SequenceService interface {
	// NextTx issues a number inside the caller's transaction, so a
	// failed document insert rolls the counter back with it.
	NextTx(ctx context.Context, tx pgx.Tx, tenantID, docType, defaultPrefix string) (string, error)
}

type sequenceService struct {
	pool *pgxpool.Pool
}

func NewSequenceService(pool *pgxpool.Pool) SequenceService {
	return &sequenceService{pool: pool}
}

func (s *sequenceService) NextTx(ctx context.Context, tx pgx.Tx, tenantID, docType, defaultPrefix string) (string, error) {
	return nextSequence(ctx, tx, tenantID, docType, defaultPrefix)
}

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, enabling
// shared query helpers across standalone and TX-scoped paths.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func nextSequence(ctx context.Context, q pgxQuerier, tenantID, docType, defaultPrefix string) (string, error) {
	var prefix string
	var value int64
	err := q.QueryRow(ctx, `
		INSERT INTO sequences (tenant_id, doc_type, prefix, value)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (tenant_id, doc_type)
		DO UPDATE SET value = sequences.value + 1
		RETURNING prefix, value
	`, tenantID, docType, defaultPrefix).Scan(&prefix, &value)
	if err != nil {
		return "", fmt.Errorf("%w: next %s number for tenant %s: %v", ErrSequence, docType, tenantID, err)
	}
	return fmt.Sprintf("%s%04d", prefix, value), nil
}
