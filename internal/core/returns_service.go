package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ReturnLineInput is one requested (product, quantity) pair. Lines
// that do not match the origin document are silently skipped rather
// than rejected.
type ReturnLineInput struct {
	ProductID int             `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

type SalesReturnInput struct {
	BillID          int               `json:"bill_id"`
	Items           []ReturnLineInput `json:"items"`
	RefundMode      RefundMode        `json:"refund_mode"`
	RefundReference string            `json:"refund_reference"`
	Reason          string            `json:"reason"`
}

type PurchaseReturnInput struct {
	PurchaseID int               `json:"purchase_id"`
	Items      []ReturnLineInput `json:"items"`
	Reason     string            `json:"reason"`
}

// ReturnsService reverses bills and purchases partially: stock moves
// back, bill financials shrink, and the party ledger is adjusted for
// ledger-mode refunds. Each return runs in one transaction.
type ReturnsService interface {
	CreateSalesReturn(ctx context.Context, tenantID string, input SalesReturnInput) (*SalesReturn, error)
	CreatePurchaseReturn(ctx context.Context, tenantID string, input PurchaseReturnInput) (*PurchaseReturn, error)
	GetSalesReturn(ctx context.Context, tenantID string, returnID int) (*SalesReturn, error)
	GetSalesReturns(ctx context.Context, tenantID string) ([]SalesReturn, error)
	GetPurchaseReturns(ctx context.Context, tenantID string) ([]PurchaseReturn, error)
}

type returnsService struct {
	pool *pgxpool.Pool
	seq  SequenceService
}

func NewReturnsService(pool *pgxpool.Pool, seq SequenceService) ReturnsService {
	return &returnsService{pool: pool, seq: seq}
}

func (s *returnsService) CreateSalesReturn(ctx context.Context, tenantID string, input SalesReturnInput) (*SalesReturn, error) {
	if len(input.Items) == 0 {
		return nil, validationf("no items in return")
	}
	refundMode := input.RefundMode
	if refundMode == "" {
		refundMode = RefundLedger
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var customerID *int
	var grandTotal, balanceAmount decimal.Decimal
	err = tx.QueryRow(ctx, `
		SELECT customer_id, grand_total, balance_amount
		FROM bills
		WHERE tenant_id = $1 AND id = $2
		FOR UPDATE
	`, tenantID, input.BillID).Scan(&customerID, &grandTotal, &balanceAmount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundf("bill %d", input.BillID)
		}
		return nil, fmt.Errorf("failed to fetch bill %d: %w", input.BillID, err)
	}

	billItems, err := fetchBillItemsQ(ctx, tx, input.BillID)
	if err != nil {
		return nil, err
	}
	itemByProduct := make(map[int]*BillItem, len(billItems))
	for i := range billItems {
		itemByProduct[billItems[i].ProductID] = &billItems[i]
	}

	totalRefund := decimal.Zero
	var returnItems []ReturnItem

	for _, line := range input.Items {
		billItem, ok := itemByProduct[line.ProductID]
		if !ok {
			continue // not on the original bill
		}

		refund := billItem.Price.Mul(line.Quantity)
		totalRefund = totalRefund.Add(refund)
		returnItems = append(returnItems, ReturnItem{
			ProductID:    line.ProductID,
			Quantity:     line.Quantity,
			RefundAmount: refund,
		})

		if _, err := tx.Exec(ctx, `
			UPDATE bill_items
			SET returned_quantity = returned_quantity + $1, total_amount = total_amount - $2
			WHERE id = $3
		`, line.Quantity, refund, billItem.ID); err != nil {
			return nil, fmt.Errorf("failed to update bill item %d: %w", billItem.ID, err)
		}

		if err := s.restoreStockTx(ctx, tx, tenantID, line.ProductID, billItem, line.Quantity); err != nil {
			return nil, err
		}
	}

	// Shrink the bill: the refund comes off the grand total, and off
	// the open balance up to whatever is still due.
	grandTotal = grandTotal.Sub(totalRefund)
	if balanceAmount.GreaterThan(decimal.Zero) {
		balanceAmount = balanceAmount.Sub(decimal.Min(balanceAmount, totalRefund))
	}
	status := StatusUnsettled
	if balanceAmount.IsZero() {
		status = StatusFullySettled
	} else if balanceAmount.LessThan(grandTotal) {
		status = StatusPartiallySettled
	}
	if _, err := tx.Exec(ctx,
		"UPDATE bills SET grand_total = $1, balance_amount = $2, status = $3 WHERE id = $4",
		grandTotal, balanceAmount, string(status), input.BillID,
	); err != nil {
		return nil, fmt.Errorf("failed to update bill %d: %w", input.BillID, err)
	}

	returnNumber, err := s.seq.NextTx(ctx, tx, tenantID, SeqSalesReturn, "SRET-")
	if err != nil {
		return nil, err
	}

	var returnID int
	err = tx.QueryRow(ctx, `
		INSERT INTO sales_returns (tenant_id, return_number, bill_id, customer_id, total_refund_amount, refund_mode, refund_reference, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, tenantID, returnNumber, input.BillID, customerID, totalRefund,
		string(refundMode), input.RefundReference, input.Reason).Scan(&returnID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert sales return %s: %w", returnNumber, err)
	}

	for _, it := range returnItems {
		if _, err := tx.Exec(ctx, `
			INSERT INTO sales_return_items (return_id, product_id, quantity, refund_amount)
			VALUES ($1, $2, $3, $4)
		`, returnID, it.ProductID, it.Quantity, it.RefundAmount); err != nil {
			return nil, fmt.Errorf("failed to insert return item: %w", err)
		}
	}

	// Ledger-mode refunds reduce what the customer owes (or grow their
	// advance). Cash/UPI refunds leave the ledger alone.
	if customerID != nil && refundMode == RefundLedger {
		if _, err := tx.Exec(ctx,
			"UPDATE customers SET ledger_balance = ledger_balance - $1 WHERE tenant_id = $2 AND id = $3",
			totalRefund, tenantID, *customerID,
		); err != nil {
			return nil, fmt.Errorf("failed to update customer ledger: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit sales return %s: %w", returnNumber, err)
	}

	return s.GetSalesReturn(ctx, tenantID, returnID)
}

// restoreStockTx puts returned quantity back into the batch recorded
// on the bill line, recreating the batch when FIFO consumption
// already pruned it.
func (s *returnsService) restoreStockTx(ctx context.Context, tx pgx.Tx, tenantID string, productID int, billItem *BillItem, quantity decimal.Decimal) error {
	var purchasePrice decimal.Decimal
	err := tx.QueryRow(ctx,
		"SELECT purchase_price FROM products WHERE tenant_id = $1 AND id = $2 FOR UPDATE",
		tenantID, productID,
	).Scan(&purchasePrice)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil // product deleted after the sale; nothing to restore
		}
		return fmt.Errorf("failed to fetch product %d: %w", productID, err)
	}

	restored := false
	if billItem.BatchNumber != "" {
		tag, err := tx.Exec(ctx, `
			UPDATE product_batches SET stock = stock + $1
			WHERE product_id = $2 AND batch_number = $3
		`, quantity, productID, billItem.BatchNumber)
		if err != nil {
			return fmt.Errorf("failed to restore batch %s: %w", billItem.BatchNumber, err)
		}
		restored = tag.RowsAffected() > 0
	}
	if !restored {
		batchNumber := billItem.BatchNumber
		if batchNumber == "" {
			batchNumber = NewBatchNumber("BTH-RET-")
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO product_batches (tenant_id, product_id, batch_number, purchase_price, selling_price, stock)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, tenantID, productID, batchNumber, purchasePrice, billItem.Price, quantity); err != nil {
			return fmt.Errorf("failed to recreate batch for product %d: %w", productID, err)
		}
	}

	if _, err := tx.Exec(ctx,
		"UPDATE products SET stock = stock + $1, updated_at = NOW() WHERE tenant_id = $2 AND id = $3",
		quantity, tenantID, productID,
	); err != nil {
		return fmt.Errorf("failed to restore stock for product %d: %w", productID, err)
	}
	return nil
}

func (s *returnsService) CreatePurchaseReturn(ctx context.Context, tenantID string, input PurchaseReturnInput) (*PurchaseReturn, error) {
	if len(input.Items) == 0 {
		return nil, validationf("no items in return")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var vendorID int
	err = tx.QueryRow(ctx,
		"SELECT vendor_id FROM purchases WHERE tenant_id = $1 AND id = $2 FOR UPDATE",
		tenantID, input.PurchaseID,
	).Scan(&vendorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundf("purchase %d", input.PurchaseID)
		}
		return nil, fmt.Errorf("failed to fetch purchase %d: %w", input.PurchaseID, err)
	}

	purchaseItems, err := fetchPurchaseItemsQ(ctx, tx, input.PurchaseID)
	if err != nil {
		return nil, err
	}
	itemByProduct := make(map[int]*PurchaseItem, len(purchaseItems))
	for i := range purchaseItems {
		itemByProduct[purchaseItems[i].ProductID] = &purchaseItems[i]
	}

	totalRefund := decimal.Zero
	var returnItems []ReturnItem

	for _, line := range input.Items {
		purchaseItem, ok := itemByProduct[line.ProductID]
		if !ok {
			continue // not on the original voucher
		}

		refund := purchaseItem.PurchasePrice.Mul(line.Quantity)
		totalRefund = totalRefund.Add(refund)
		returnItems = append(returnItems, ReturnItem{
			ProductID:    line.ProductID,
			Quantity:     line.Quantity,
			RefundAmount: refund,
		})

		// Goods go back to the vendor: aggregate stock only, no batch
		// bookkeeping on the outbound path.
		if _, err := tx.Exec(ctx,
			"UPDATE products SET stock = stock - $1, updated_at = NOW() WHERE tenant_id = $2 AND id = $3",
			line.Quantity, tenantID, line.ProductID,
		); err != nil {
			return nil, fmt.Errorf("failed to deduct stock for product %d: %w", line.ProductID, err)
		}
	}

	returnNumber, err := s.seq.NextTx(ctx, tx, tenantID, SeqPurchaseReturn, "PRET-")
	if err != nil {
		return nil, err
	}

	var returnID int
	err = tx.QueryRow(ctx, `
		INSERT INTO purchase_returns (tenant_id, return_number, purchase_id, vendor_id, total_refund_amount, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, tenantID, returnNumber, input.PurchaseID, vendorID, totalRefund, input.Reason).Scan(&returnID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert purchase return %s: %w", returnNumber, err)
	}

	for _, it := range returnItems {
		if _, err := tx.Exec(ctx, `
			INSERT INTO purchase_return_items (return_id, product_id, quantity, refund_amount)
			VALUES ($1, $2, $3, $4)
		`, returnID, it.ProductID, it.Quantity, it.RefundAmount); err != nil {
			return nil, fmt.Errorf("failed to insert return item: %w", err)
		}
	}

	// Returned goods mean we owe the vendor less.
	if _, err := tx.Exec(ctx,
		"UPDATE vendors SET ledger_balance = ledger_balance - $1 WHERE tenant_id = $2 AND id = $3",
		totalRefund, tenantID, vendorID,
	); err != nil {
		return nil, fmt.Errorf("failed to update vendor ledger: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit purchase return %s: %w", returnNumber, err)
	}

	return s.getPurchaseReturn(ctx, tenantID, returnID)
}

func (s *returnsService) GetSalesReturn(ctx context.Context, tenantID string, returnID int) (*SalesReturn, error) {
	var r SalesReturn
	err := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, return_number, bill_id, customer_id, total_refund_amount, refund_mode, refund_reference, reason, created_at
		FROM sales_returns
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, returnID).Scan(
		&r.ID, &r.TenantID, &r.ReturnNumber, &r.BillID, &r.CustomerID,
		&r.TotalRefundAmount, &r.RefundMode, &r.RefundReference, &r.Reason, &r.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundf("sales return %d", returnID)
		}
		return nil, fmt.Errorf("failed to fetch sales return %d: %w", returnID, err)
	}

	items, err := fetchReturnItemsQ(ctx, s.pool, "sales_return_items", returnID)
	if err != nil {
		return nil, err
	}
	r.Items = items
	return &r, nil
}

func (s *returnsService) GetSalesReturns(ctx context.Context, tenantID string) ([]SalesReturn, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, return_number, bill_id, customer_id, total_refund_amount, refund_mode, refund_reference, reason, created_at
		FROM sales_returns
		WHERE tenant_id = $1
		ORDER BY created_at DESC, id DESC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales returns: %w", err)
	}
	defer rows.Close()

	var returns []SalesReturn
	for rows.Next() {
		var r SalesReturn
		if err := rows.Scan(&r.ID, &r.TenantID, &r.ReturnNumber, &r.BillID, &r.CustomerID,
			&r.TotalRefundAmount, &r.RefundMode, &r.RefundReference, &r.Reason, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sales return: %w", err)
		}
		returns = append(returns, r)
	}
	return returns, rows.Err()
}

func (s *returnsService) getPurchaseReturn(ctx context.Context, tenantID string, returnID int) (*PurchaseReturn, error) {
	var r PurchaseReturn
	err := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, return_number, purchase_id, vendor_id, total_refund_amount, reason, created_at
		FROM purchase_returns
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, returnID).Scan(
		&r.ID, &r.TenantID, &r.ReturnNumber, &r.PurchaseID, &r.VendorID,
		&r.TotalRefundAmount, &r.Reason, &r.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundf("purchase return %d", returnID)
		}
		return nil, fmt.Errorf("failed to fetch purchase return %d: %w", returnID, err)
	}

	items, err := fetchReturnItemsQ(ctx, s.pool, "purchase_return_items", returnID)
	if err != nil {
		return nil, err
	}
	r.Items = items
	return &r, nil
}

func (s *returnsService) GetPurchaseReturns(ctx context.Context, tenantID string) ([]PurchaseReturn, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, return_number, purchase_id, vendor_id, total_refund_amount, reason, created_at
		FROM purchase_returns
		WHERE tenant_id = $1
		ORDER BY created_at DESC, id DESC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchase returns: %w", err)
	}
	defer rows.Close()

	var returns []PurchaseReturn
	for rows.Next() {
		var r PurchaseReturn
		if err := rows.Scan(&r.ID, &r.TenantID, &r.ReturnNumber, &r.PurchaseID, &r.VendorID,
			&r.TotalRefundAmount, &r.Reason, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan purchase return: %w", err)
		}
		returns = append(returns, r)
	}
	return returns, rows.Err()
}

func fetchReturnItemsQ(ctx context.Context, q pgxRowQuerier, table string, returnID int) ([]ReturnItem, error) {
	rows, err := q.Query(ctx,
		"SELECT product_id, quantity, refund_amount FROM "+table+" WHERE return_id = $1 ORDER BY id",
		returnID)
	if err != nil {
		return nil, fmt.Errorf("failed to query return items: %w", err)
	}
	defer rows.Close()

	var items []ReturnItem
	for rows.Next() {
		var it ReturnItem
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.RefundAmount); err != nil {
			return nil, fmt.Errorf("failed to scan return item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
