package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type PurchaseItemInput struct {
	ProductID       int              `json:"product_id"`
	Quantity        decimal.Decimal  `json:"quantity"`
	PurchasePrice   decimal.Decimal  `json:"purchase_price"`
	NewSellingPrice *decimal.Decimal `json:"new_selling_price,omitempty"`
	TotalAmount     decimal.Decimal  `json:"total_amount"`
}

type PurchaseInput struct {
	VendorID    int                 `json:"vendor_id"`
	Items       []PurchaseItemInput `json:"items"`
	TotalAmount decimal.Decimal     `json:"total_amount"`
	Payments    []Payment           `json:"payments"`
}

// PurchaseService is the purchase intake engine: it records a vendor
// voucher, replenishes or creates batches, rolls the product's
// displayed prices forward, and books unpaid balance on the vendor
// ledger, all in one transaction.
type PurchaseService interface {
	CreatePurchase(ctx context.Context, tenantID string, input PurchaseInput) (*Purchase, error)
	GetPurchase(ctx context.Context, tenantID string, purchaseID int) (*Purchase, error)
	GetPurchases(ctx context.Context, tenantID string) ([]Purchase, error)
}

type purchaseService struct {
	pool *pgxpool.Pool
	seq  SequenceService
}

func NewPurchaseService(pool *pgxpool.Pool, seq SequenceService) PurchaseService {
	return &purchaseService{pool: pool, seq: seq}
}

func (s *purchaseService) CreatePurchase(ctx context.Context, tenantID string, input PurchaseInput) (*Purchase, error) {
	if len(input.Items) == 0 {
		return nil, validationf("no items in purchase")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var vendorID int
	err = tx.QueryRow(ctx,
		"SELECT id FROM vendors WHERE tenant_id = $1 AND id = $2 FOR UPDATE",
		tenantID, input.VendorID,
	).Scan(&vendorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundf("vendor %d", input.VendorID)
		}
		return nil, fmt.Errorf("failed to fetch vendor %d: %w", input.VendorID, err)
	}

	paidAmount := NonCreditTotal(input.Payments)
	balanceAmount := input.TotalAmount.Sub(paidAmount)
	status := statusFor(balanceAmount, paidAmount)

	voucherNumber, err := s.seq.NextTx(ctx, tx, tenantID, SeqPurchase, "PUR-")
	if err != nil {
		return nil, err
	}

	var purchaseID int
	err = tx.QueryRow(ctx, `
		INSERT INTO purchases (tenant_id, voucher_number, vendor_id, total_amount, paid_amount, balance_amount, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, tenantID, voucherNumber, vendorID, input.TotalAmount, paidAmount, balanceAmount,
		string(status)).Scan(&purchaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert purchase %s: %w", voucherNumber, err)
	}

	// Replenish stock: merge into an existing batch when one carries
	// the same (purchase, selling) price pair, otherwise open a new
	// batch. Product master prices follow the latest purchase.
	for i, item := range input.Items {
		var currentPrice decimal.Decimal
		err := tx.QueryRow(ctx,
			"SELECT price FROM products WHERE tenant_id = $1 AND id = $2 FOR UPDATE",
			tenantID, item.ProductID,
		).Scan(&currentPrice)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, notFoundf("product %d", item.ProductID)
			}
			return nil, fmt.Errorf("failed to fetch product %d: %w", item.ProductID, err)
		}

		sellingPrice := currentPrice
		if item.NewSellingPrice != nil {
			sellingPrice = *item.NewSellingPrice
		}

		var batchID int
		err = tx.QueryRow(ctx, `
			SELECT id FROM product_batches
			WHERE product_id = $1 AND purchase_price = $2 AND selling_price = $3
			ORDER BY created_at, id
			LIMIT 1
		`, item.ProductID, item.PurchasePrice, sellingPrice).Scan(&batchID)
		switch {
		case err == nil:
			if _, err := tx.Exec(ctx,
				"UPDATE product_batches SET stock = stock + $1 WHERE id = $2",
				item.Quantity, batchID,
			); err != nil {
				return nil, fmt.Errorf("failed to replenish batch %d: %w", batchID, err)
			}
		case errors.Is(err, pgx.ErrNoRows):
			if _, err := tx.Exec(ctx, `
				INSERT INTO product_batches (tenant_id, product_id, batch_number, purchase_price, selling_price, stock)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, tenantID, item.ProductID, NewBatchNumber("BTH-"), item.PurchasePrice, sellingPrice, item.Quantity); err != nil {
				return nil, fmt.Errorf("failed to create batch for product %d: %w", item.ProductID, err)
			}
		default:
			return nil, fmt.Errorf("failed to look up batch for product %d: %w", item.ProductID, err)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE products
			SET stock = stock + $1, purchase_price = $2, price = $3, updated_at = NOW()
			WHERE tenant_id = $4 AND id = $5
		`, item.Quantity, item.PurchasePrice, sellingPrice, tenantID, item.ProductID); err != nil {
			return nil, fmt.Errorf("failed to update product %d: %w", item.ProductID, err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO purchase_items (purchase_id, line_number, product_id, quantity, purchase_price, new_selling_price, total_amount)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, purchaseID, i+1, item.ProductID, item.Quantity, item.PurchasePrice, item.NewSellingPrice, item.TotalAmount)
		if err != nil {
			return nil, fmt.Errorf("failed to insert purchase item %d: %w", i+1, err)
		}
	}

	if err := insertPaymentsTx(ctx, tx, "purchase", purchaseID, input.Payments); err != nil {
		return nil, err
	}

	// Credit purchases raise what we owe the vendor; fully paid
	// vouchers leave the ledger untouched.
	if balanceAmount.GreaterThan(decimal.Zero) {
		if _, err := tx.Exec(ctx,
			"UPDATE vendors SET ledger_balance = ledger_balance + $1 WHERE tenant_id = $2 AND id = $3",
			balanceAmount, tenantID, vendorID,
		); err != nil {
			return nil, fmt.Errorf("failed to update vendor ledger: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit purchase %s: %w", voucherNumber, err)
	}

	return s.GetPurchase(ctx, tenantID, purchaseID)
}

func (s *purchaseService) GetPurchase(ctx context.Context, tenantID string, purchaseID int) (*Purchase, error) {
	var p Purchase
	err := s.pool.QueryRow(ctx, `
		SELECT p.id, p.tenant_id, p.voucher_number, p.vendor_id, v.name,
		       p.total_amount, p.paid_amount, p.balance_amount, p.status, p.created_at
		FROM purchases p
		JOIN vendors v ON v.id = p.vendor_id
		WHERE p.tenant_id = $1 AND p.id = $2
	`, tenantID, purchaseID).Scan(
		&p.ID, &p.TenantID, &p.VoucherNumber, &p.VendorID, &p.VendorName,
		&p.TotalAmount, &p.PaidAmount, &p.BalanceAmount, &p.Status, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundf("purchase %d", purchaseID)
		}
		return nil, fmt.Errorf("failed to fetch purchase %d: %w", purchaseID, err)
	}

	items, err := fetchPurchaseItemsQ(ctx, s.pool, purchaseID)
	if err != nil {
		return nil, err
	}
	p.Items = items

	payments, err := fetchPaymentsQ(ctx, s.pool, "purchase", purchaseID)
	if err != nil {
		return nil, err
	}
	p.Payments = payments
	return &p, nil
}

func (s *purchaseService) GetPurchases(ctx context.Context, tenantID string) ([]Purchase, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.id, p.tenant_id, p.voucher_number, p.vendor_id, v.name,
		       p.total_amount, p.paid_amount, p.balance_amount, p.status, p.created_at
		FROM purchases p
		JOIN vendors v ON v.id = p.vendor_id
		WHERE p.tenant_id = $1
		ORDER BY p.created_at DESC, p.id DESC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchases: %w", err)
	}
	defer rows.Close()

	var purchases []Purchase
	for rows.Next() {
		var p Purchase
		if err := rows.Scan(&p.ID, &p.TenantID, &p.VoucherNumber, &p.VendorID, &p.VendorName,
			&p.TotalAmount, &p.PaidAmount, &p.BalanceAmount, &p.Status, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}

func fetchPurchaseItemsQ(ctx context.Context, q pgxRowQuerier, purchaseID int) ([]PurchaseItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, product_id, quantity, purchase_price, new_selling_price, total_amount
		FROM purchase_items
		WHERE purchase_id = $1
		ORDER BY line_number
	`, purchaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchase items: %w", err)
	}
	defer rows.Close()

	var items []PurchaseItem
	for rows.Next() {
		var it PurchaseItem
		if err := rows.Scan(&it.ID, &it.ProductID, &it.Quantity, &it.PurchasePrice,
			&it.NewSellingPrice, &it.TotalAmount); err != nil {
			return nil, fmt.Errorf("failed to scan purchase item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
