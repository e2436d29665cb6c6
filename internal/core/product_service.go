package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// openingBatchNumber marks the batch created with a product's initial
// stock, before any purchase intake happened.
const openingBatchNumber = "BTH-START"

// NewBatchNumber generates a fresh batch identifier for purchase
// intake and return restoration.
func NewBatchNumber(prefix string) string {
	return prefix + strings.ToUpper(uuid.NewString()[:6])
}

type ProductInput struct {
	Name          string
	HSN           string
	Barcode       *string
	PurchasePrice decimal.Decimal
	Price         decimal.Decimal
	GSTRate       decimal.Decimal
	Stock         decimal.Decimal
}

// ProductService manages product master data and batch stock pools.
// The settlement engines mutate batches through their own
// transactions; this service covers creation, lookup and the stock
// conservation check.
type ProductService interface {
	CreateProduct(ctx context.Context, tenantID string, input ProductInput) (*Product, error)
	GetProduct(ctx context.Context, tenantID string, productID int) (*Product, error)
	GetProducts(ctx context.Context, tenantID string) ([]Product, error)
	// CheckStockConservation verifies stock == Σ batch stock for one
	// product. Products without batches (legacy rows) pass trivially.
	CheckStockConservation(ctx context.Context, tenantID string, productID int) (bool, error)
}

type productService struct {
	pool *pgxpool.Pool
}

func NewProductService(pool *pgxpool.Pool) ProductService {
	return &productService{pool: pool}
}

func (s *productService) CreateProduct(ctx context.Context, tenantID string, input ProductInput) (*Product, error) {
	if input.Name == "" {
		return nil, validationf("product name is required")
	}
	if input.Price.IsNegative() || input.PurchasePrice.IsNegative() || input.Stock.IsNegative() {
		return nil, validationf("product prices and stock cannot be negative")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if input.Barcode != nil {
		var existing int
		err := tx.QueryRow(ctx,
			"SELECT id FROM products WHERE tenant_id = $1 AND barcode = $2",
			tenantID, *input.Barcode,
		).Scan(&existing)
		if err == nil {
			return nil, validationf("barcode %s already exists", *input.Barcode)
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("failed to check barcode: %w", err)
		}
	}

	var productID int
	err = tx.QueryRow(ctx, `
		INSERT INTO products (tenant_id, name, hsn, barcode, purchase_price, price, gst_rate, stock)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, tenantID, input.Name, input.HSN, input.Barcode,
		input.PurchasePrice, input.Price, input.GSTRate, input.Stock).Scan(&productID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert product: %w", err)
	}

	// Opening stock lands in an initial batch so FIFO consumption has
	// something to walk from day one.
	if input.Stock.GreaterThan(decimal.Zero) {
		_, err = tx.Exec(ctx, `
			INSERT INTO product_batches (tenant_id, product_id, batch_number, purchase_price, selling_price, stock)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, tenantID, productID, openingBatchNumber, input.PurchasePrice, input.Price, input.Stock)
		if err != nil {
			return nil, fmt.Errorf("failed to insert opening batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit product creation: %w", err)
	}

	return s.GetProduct(ctx, tenantID, productID)
}

func (s *productService) GetProduct(ctx context.Context, tenantID string, productID int) (*Product, error) {
	var p Product
	err := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, name, hsn, barcode, purchase_price, price, gst_rate, stock, created_at, updated_at
		FROM products
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, productID).Scan(
		&p.ID, &p.TenantID, &p.Name, &p.HSN, &p.Barcode,
		&p.PurchasePrice, &p.Price, &p.GSTRate, &p.Stock, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundf("product %d", productID)
		}
		return nil, fmt.Errorf("failed to fetch product %d: %w", productID, err)
	}

	batches, err := fetchBatchesQ(ctx, s.pool, productID)
	if err != nil {
		return nil, err
	}
	p.Batches = batches
	return &p, nil
}

func (s *productService) GetProducts(ctx context.Context, tenantID string) ([]Product, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, name, hsn, barcode, purchase_price, price, gst_rate, stock, created_at, updated_at
		FROM products
		WHERE tenant_id = $1
		ORDER BY name, id
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Name, &p.HSN, &p.Barcode,
			&p.PurchasePrice, &p.Price, &p.GSTRate, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *productService) CheckStockConservation(ctx context.Context, tenantID string, productID int) (bool, error) {
	var stock, batchSum decimal.Decimal
	var batchCount int
	err := s.pool.QueryRow(ctx, `
		SELECT p.stock,
		       COALESCE(SUM(b.stock), 0),
		       COUNT(b.id)
		FROM products p
		LEFT JOIN product_batches b ON b.product_id = p.id
		WHERE p.tenant_id = $1 AND p.id = $2
		GROUP BY p.id, p.stock
	`, tenantID, productID).Scan(&stock, &batchSum, &batchCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, notFoundf("product %d", productID)
		}
		return false, fmt.Errorf("failed to check stock conservation: %w", err)
	}
	if batchCount == 0 {
		return true, nil
	}
	return stock.Equal(batchSum), nil
}

// pgxRowQuerier is satisfied by both *pgxpool.Pool and pgx.Tx (for Query).
type pgxRowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// fetchBatchesQ loads a product's batches in FIFO (creation) order.
func fetchBatchesQ(ctx context.Context, q pgxRowQuerier, productID int) ([]Batch, error) {
	rows, err := q.Query(ctx, `
		SELECT id, product_id, batch_number, purchase_price, selling_price, stock, created_at
		FROM product_batches
		WHERE product_id = $1
		ORDER BY created_at, id
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches for product %d: %w", productID, err)
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		var b Batch
		if err := rows.Scan(&b.ID, &b.ProductID, &b.BatchNumber,
			&b.PurchasePrice, &b.SellingPrice, &b.Stock, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}
