package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// BillItemInput is one cart line. Quantity, price, tax and line totals
// are computed by the caller; the engine validates stock and settles.
type BillItemInput struct {
	ProductID      int             `json:"product_id"`
	Name           string          `json:"name"`
	Price          decimal.Decimal `json:"price"`
	Quantity       decimal.Decimal `json:"quantity"`
	GSTRate        decimal.Decimal `json:"gst_rate"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
}

type BillInput struct {
	CustomerID        *int              `json:"customer_id"`
	Items             []BillItemInput   `json:"items"`
	SubTotal          decimal.Decimal   `json:"sub_total"`
	TaxAmount         decimal.Decimal   `json:"tax_amount"`
	DiscountAmount    decimal.Decimal   `json:"discount_amount"`
	GrandTotal        decimal.Decimal   `json:"grand_total"`
	RoundOff          decimal.Decimal   `json:"round_off"`
	Payments          []Payment         `json:"payments"`
	OverpaymentAction OverpaymentAction `json:"overpayment_action"`
}

// BillingService is the bill settlement engine: it turns a cart into a
// persisted bill, consumes batch stock FIFO, and reconciles payments,
// advances and overpayment against the customer ledger. The whole
// operation runs in one transaction; a bill never half-applies
// against stock and ledger.
type BillingService interface {
	CreateBill(ctx context.Context, tenantID string, input BillInput) (*Bill, error)
	GetBill(ctx context.Context, tenantID string, billID int) (*Bill, error)
	GetBills(ctx context.Context, tenantID string) ([]Bill, error)
}

type billingService struct {
	pool *pgxpool.Pool
	seq  SequenceService
}

func NewBillingService(pool *pgxpool.Pool, seq SequenceService) BillingService {
	return &billingService{pool: pool, seq: seq}
}

func (s *billingService) CreateBill(ctx context.Context, tenantID string, input BillInput) (*Bill, error) {
	if len(input.Items) == 0 {
		return nil, validationf("no items in bill")
	}
	action := input.OverpaymentAction
	if action == "" {
		action = OverpayReturn
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Fail-fast stock availability check. Product rows are locked here
	// so concurrent settlements on the same product serialize before
	// any batch is touched.
	for _, item := range input.Items {
		var name string
		var stock decimal.Decimal
		err := tx.QueryRow(ctx,
			"SELECT name, stock FROM products WHERE tenant_id = $1 AND id = $2 FOR UPDATE",
			tenantID, item.ProductID,
		).Scan(&name, &stock)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, notFoundf("product %s (%d)", item.Name, item.ProductID)
			}
			return nil, fmt.Errorf("failed to fetch product %d: %w", item.ProductID, err)
		}
		if stock.LessThan(item.Quantity) {
			return nil, validationf("insufficient stock for %s: available %s, required %s",
				name, stock.String(), item.Quantity.String())
		}
	}

	// Lock the customer row before reading the ledger balance the
	// advance-utilization step depends on.
	hasCustomer := input.CustomerID != nil
	ledgerBalance := decimal.Zero
	if hasCustomer {
		err := tx.QueryRow(ctx,
			"SELECT ledger_balance FROM customers WHERE tenant_id = $1 AND id = $2 FOR UPDATE",
			tenantID, *input.CustomerID,
		).Scan(&ledgerBalance)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, notFoundf("customer %d", *input.CustomerID)
			}
			return nil, fmt.Errorf("failed to fetch customer %d: %w", *input.CustomerID, err)
		}
	}

	rec, err := ReconcileBillPayments(input.GrandTotal, input.Payments, ledgerBalance, hasCustomer, action)
	if err != nil {
		return nil, err
	}

	lineTotals := make([]decimal.Decimal, len(input.Items))
	for i, item := range input.Items {
		lineTotals[i] = item.TotalAmount
	}
	prorated := ProrateBillDiscount(lineTotals, input.DiscountAmount)

	billNumber, err := s.seq.NextTx(ctx, tx, tenantID, SeqBill, "INV-")
	if err != nil {
		return nil, err
	}

	var billID int
	err = tx.QueryRow(ctx, `
		INSERT INTO bills (tenant_id, bill_number, customer_id, sub_total, tax_amount, discount_amount,
		                   grand_total, round_off, paid_amount, returned_amount, balance_amount, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`, tenantID, billNumber, input.CustomerID, input.SubTotal, input.TaxAmount, input.DiscountAmount,
		input.GrandTotal, input.RoundOff, rec.PaidAmount, rec.ReturnedAmount, rec.BalanceAmount,
		string(rec.Status)).Scan(&billID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert bill %s: %w", billNumber, err)
	}

	// FIFO batch deduction: oldest batch first, exhausted batches
	// pruned, aggregate stock decremented by the full line quantity.
	// Products with no batches (legacy rows) deduct aggregate only.
	for i, item := range input.Items {
		batches, err := fetchBatchesQ(ctx, tx, item.ProductID)
		if err != nil {
			return nil, err
		}

		plan, firstBatch, _ := PlanBatchDeduction(batches, item.Quantity)
		for _, d := range plan {
			if d.Exhausted {
				if _, err := tx.Exec(ctx, "DELETE FROM product_batches WHERE id = $1", d.BatchID); err != nil {
					return nil, fmt.Errorf("failed to prune batch %d: %w", d.BatchID, err)
				}
				continue
			}
			if _, err := tx.Exec(ctx,
				"UPDATE product_batches SET stock = stock - $1 WHERE id = $2",
				d.Quantity, d.BatchID,
			); err != nil {
				return nil, fmt.Errorf("failed to deduct batch %d: %w", d.BatchID, err)
			}
		}

		if _, err := tx.Exec(ctx,
			"UPDATE products SET stock = stock - $1, updated_at = NOW() WHERE tenant_id = $2 AND id = $3",
			item.Quantity, tenantID, item.ProductID,
		); err != nil {
			return nil, fmt.Errorf("failed to deduct stock for product %d: %w", item.ProductID, err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO bill_items (bill_id, line_number, product_id, name, batch_number, price, quantity,
			                        gst_rate, discount_amount, prorated_bill_discount, total_amount)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, billID, i+1, item.ProductID, item.Name, firstBatch, item.Price, item.Quantity,
			item.GSTRate, item.DiscountAmount, prorated[i], item.TotalAmount)
		if err != nil {
			return nil, fmt.Errorf("failed to insert bill item %d: %w", i+1, err)
		}
	}

	if err := insertPaymentsTx(ctx, tx, "bill", billID, rec.Payments); err != nil {
		return nil, err
	}

	// Ledger update: unpaid balance raises the debt; consumed advance
	// nets out against the negative balance already stored.
	if hasCustomer && (!rec.BalanceAmount.IsZero() || rec.AdvanceUtilized.GreaterThan(decimal.Zero)) {
		delta := rec.BalanceAmount.Add(rec.AdvanceUtilized)
		if _, err := tx.Exec(ctx,
			"UPDATE customers SET ledger_balance = ledger_balance + $1 WHERE tenant_id = $2 AND id = $3",
			delta, tenantID, *input.CustomerID,
		); err != nil {
			return nil, fmt.Errorf("failed to update customer ledger: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit bill %s: %w", billNumber, err)
	}

	return s.GetBill(ctx, tenantID, billID)
}

func (s *billingService) GetBill(ctx context.Context, tenantID string, billID int) (*Bill, error) {
	var b Bill
	err := s.pool.QueryRow(ctx, `
		SELECT b.id, b.tenant_id, b.bill_number, b.customer_id, COALESCE(c.name, ''),
		       b.sub_total, b.tax_amount, b.discount_amount, b.grand_total, b.round_off,
		       b.paid_amount, b.returned_amount, b.balance_amount, b.status, b.created_at
		FROM bills b
		LEFT JOIN customers c ON c.id = b.customer_id
		WHERE b.tenant_id = $1 AND b.id = $2
	`, tenantID, billID).Scan(
		&b.ID, &b.TenantID, &b.BillNumber, &b.CustomerID, &b.CustomerName,
		&b.SubTotal, &b.TaxAmount, &b.DiscountAmount, &b.GrandTotal, &b.RoundOff,
		&b.PaidAmount, &b.ReturnedAmount, &b.BalanceAmount, &b.Status, &b.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundf("bill %d", billID)
		}
		return nil, fmt.Errorf("failed to fetch bill %d: %w", billID, err)
	}

	items, err := fetchBillItemsQ(ctx, s.pool, billID)
	if err != nil {
		return nil, err
	}
	b.Items = items

	payments, err := fetchPaymentsQ(ctx, s.pool, "bill", billID)
	if err != nil {
		return nil, err
	}
	b.Payments = payments
	return &b, nil
}

func (s *billingService) GetBills(ctx context.Context, tenantID string) ([]Bill, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT b.id, b.tenant_id, b.bill_number, b.customer_id, COALESCE(c.name, ''),
		       b.sub_total, b.tax_amount, b.discount_amount, b.grand_total, b.round_off,
		       b.paid_amount, b.returned_amount, b.balance_amount, b.status, b.created_at
		FROM bills b
		LEFT JOIN customers c ON c.id = b.customer_id
		WHERE b.tenant_id = $1
		ORDER BY b.created_at DESC, b.id DESC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bills: %w", err)
	}
	defer rows.Close()

	var bills []Bill
	for rows.Next() {
		var b Bill
		if err := rows.Scan(
			&b.ID, &b.TenantID, &b.BillNumber, &b.CustomerID, &b.CustomerName,
			&b.SubTotal, &b.TaxAmount, &b.DiscountAmount, &b.GrandTotal, &b.RoundOff,
			&b.PaidAmount, &b.ReturnedAmount, &b.BalanceAmount, &b.Status, &b.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan bill: %w", err)
		}
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

func fetchBillItemsQ(ctx context.Context, q pgxRowQuerier, billID int) ([]BillItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, product_id, name, batch_number, price, quantity, returned_quantity,
		       gst_rate, discount_amount, prorated_bill_discount, total_amount
		FROM bill_items
		WHERE bill_id = $1
		ORDER BY line_number
	`, billID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bill items: %w", err)
	}
	defer rows.Close()

	var items []BillItem
	for rows.Next() {
		var it BillItem
		if err := rows.Scan(&it.ID, &it.ProductID, &it.Name, &it.BatchNumber, &it.Price,
			&it.Quantity, &it.ReturnedQuantity, &it.GSTRate, &it.DiscountAmount,
			&it.ProratedBillDiscount, &it.TotalAmount); err != nil {
			return nil, fmt.Errorf("failed to scan bill item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func insertPaymentsTx(ctx context.Context, tx pgx.Tx, documentType string, documentID int, payments []Payment) error {
	for i, p := range payments {
		if _, err := tx.Exec(ctx, `
			INSERT INTO payments (document_type, document_id, line_number, mode, amount, reference)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, documentType, documentID, i+1, string(p.Mode), p.Amount, p.Reference); err != nil {
			return fmt.Errorf("failed to insert %s payment %d: %w", documentType, i+1, err)
		}
	}
	return nil
}

func fetchPaymentsQ(ctx context.Context, q pgxRowQuerier, documentType string, documentID int) ([]Payment, error) {
	rows, err := q.Query(ctx, `
		SELECT mode, amount, reference
		FROM payments
		WHERE document_type = $1 AND document_id = $2
		ORDER BY line_number
	`, documentType, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s payments: %w", documentType, err)
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.Mode, &p.Amount, &p.Reference); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
