package core_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"pos-backend/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const testTenant = "tenant-a"

func setupTestDB(t *testing.T) *pgxpool.Pool {
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid wiping the live app database.
	// Set TEST_DATABASE_URL in your .env or environment to run integration tests.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE audit_logs, payments,
			sales_return_items, sales_returns, purchase_return_items, purchase_returns,
			ledger_payments, bill_items, bills, purchase_items, purchases,
			expenses, product_batches, products, customers, vendors, sequences
		CASCADE;
	`)
	if err != nil {
		t.Fatalf("Failed to clean test database: %v", err)
	}

	return pool
}

func mustProduct(t *testing.T, pool *pgxpool.Pool, name string, purchasePrice, price, gstRate, stock string) *core.Product {
	t.Helper()
	p, err := core.NewProductService(pool).CreateProduct(context.Background(), testTenant, core.ProductInput{
		Name:          name,
		PurchasePrice: decimal.RequireFromString(purchasePrice),
		Price:         decimal.RequireFromString(price),
		GSTRate:       decimal.RequireFromString(gstRate),
		Stock:         decimal.RequireFromString(stock),
	})
	if err != nil {
		t.Fatalf("Failed to create product %s: %v", name, err)
	}
	return p
}

func mustCustomer(t *testing.T, pool *pgxpool.Pool, name, phone string) *core.Customer {
	t.Helper()
	c, err := core.NewPartyService(pool).CreateCustomer(context.Background(), testTenant, name, phone, "", "")
	if err != nil {
		t.Fatalf("Failed to create customer %s: %v", name, err)
	}
	return c
}

func mustVendor(t *testing.T, pool *pgxpool.Pool, name string) *core.Vendor {
	t.Helper()
	v, err := core.NewPartyService(pool).CreateVendor(context.Background(), testTenant, name, "", "", "", "")
	if err != nil {
		t.Fatalf("Failed to create vendor %s: %v", name, err)
	}
	return v
}

func customerLedger(t *testing.T, pool *pgxpool.Pool, customerID int) decimal.Decimal {
	t.Helper()
	var balance decimal.Decimal
	err := pool.QueryRow(context.Background(),
		"SELECT ledger_balance FROM customers WHERE tenant_id = $1 AND id = $2",
		testTenant, customerID).Scan(&balance)
	if err != nil {
		t.Fatalf("Failed to read customer ledger: %v", err)
	}
	return balance
}

func vendorLedger(t *testing.T, pool *pgxpool.Pool, vendorID int) decimal.Decimal {
	t.Helper()
	var balance decimal.Decimal
	err := pool.QueryRow(context.Background(),
		"SELECT ledger_balance FROM vendors WHERE tenant_id = $1 AND id = $2",
		testTenant, vendorID).Scan(&balance)
	if err != nil {
		t.Fatalf("Failed to read vendor ledger: %v", err)
	}
	return balance
}

func simpleBillInput(product *core.Product, qty, grandTotal string, customerID *int, payments []core.Payment) core.BillInput {
	quantity := decimal.RequireFromString(qty)
	total := decimal.RequireFromString(grandTotal)
	return core.BillInput{
		CustomerID: customerID,
		Items: []core.BillItemInput{{
			ProductID:   product.ID,
			Name:        product.Name,
			Price:       product.Price,
			Quantity:    quantity,
			GSTRate:     product.GSTRate,
			TotalAmount: total,
		}},
		SubTotal:   total,
		GrandTotal: total,
		Payments:   payments,
	}
}

func TestBilling_CashSale(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	product := mustProduct(t, pool, "Soap", "40", "60", "18", "10")
	billing := core.NewBillingService(pool, core.NewSequenceService(pool))

	bill, err := billing.CreateBill(ctx, testTenant, simpleBillInput(product, "2", "120", nil,
		[]core.Payment{{Mode: core.ModeCash, Amount: d("120")}}))
	if err != nil {
		t.Fatalf("CreateBill failed: %v", err)
	}

	if bill.BillNumber != "INV-0001" {
		t.Errorf("expected bill number INV-0001, got %s", bill.BillNumber)
	}
	if bill.Status != core.StatusFullySettled {
		t.Errorf("expected Fully Settled, got %s", bill.Status)
	}
	if !bill.BalanceAmount.IsZero() {
		t.Errorf("expected zero balance, got %s", bill.BalanceAmount)
	}
	if len(bill.Items) != 1 || bill.Items[0].BatchNumber != "BTH-START" {
		t.Errorf("expected item consumed from the opening batch, got %+v", bill.Items)
	}

	refreshed, err := core.NewProductService(pool).GetProduct(ctx, testTenant, product.ID)
	if err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}
	if !refreshed.Stock.Equal(d("8")) {
		t.Errorf("expected stock 8 after sale, got %s", refreshed.Stock)
	}
	if len(refreshed.Batches) != 1 || !refreshed.Batches[0].Stock.Equal(d("8")) {
		t.Errorf("expected opening batch at 8, got %+v", refreshed.Batches)
	}
}

func TestBilling_CreditSaleRaisesLedger(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	product := mustProduct(t, pool, "Rice", "50", "75", "5", "20")
	customer := mustCustomer(t, pool, "Asha", "9000000001")
	billing := core.NewBillingService(pool, core.NewSequenceService(pool))

	bill, err := billing.CreateBill(ctx, testTenant, simpleBillInput(product, "2", "150", &customer.ID,
		[]core.Payment{{Mode: core.ModeCredit, Amount: d("150")}}))
	if err != nil {
		t.Fatalf("CreateBill failed: %v", err)
	}

	if bill.Status != core.StatusUnsettled {
		t.Errorf("expected Unsettled, got %s", bill.Status)
	}
	if !bill.BalanceAmount.Equal(d("150")) {
		t.Errorf("expected balance 150, got %s", bill.BalanceAmount)
	}
	if got := customerLedger(t, pool, customer.ID); !got.Equal(d("150")) {
		t.Errorf("expected customer ledger 150, got %s", got)
	}
}

func TestBilling_AdvanceRoundTrip(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	product := mustProduct(t, pool, "Oil", "100", "150", "5", "5")
	customer := mustCustomer(t, pool, "Binu", "9000000002")

	// Stored advance of 200.
	if _, err := pool.Exec(ctx,
		"UPDATE customers SET ledger_balance = -200 WHERE tenant_id = $1 AND id = $2",
		testTenant, customer.ID); err != nil {
		t.Fatalf("Failed to seed advance: %v", err)
	}

	billing := core.NewBillingService(pool, core.NewSequenceService(pool))
	bill, err := billing.CreateBill(ctx, testTenant, simpleBillInput(product, "1", "150", &customer.ID, nil))
	if err != nil {
		t.Fatalf("CreateBill failed: %v", err)
	}

	if bill.Status != core.StatusFullySettled {
		t.Errorf("expected Fully Settled, got %s", bill.Status)
	}
	if !bill.BalanceAmount.IsZero() {
		t.Errorf("expected zero balance, got %s", bill.BalanceAmount)
	}
	if len(bill.Payments) != 1 || bill.Payments[0].Mode != core.ModeAdvance {
		t.Fatalf("expected one synthetic Advance payment, got %+v", bill.Payments)
	}
	if bill.Payments[0].Reference != "From Ledger Credit" {
		t.Errorf("unexpected advance reference %q", bill.Payments[0].Reference)
	}
	// -200 advance, 150 consumed: 50 advance remains.
	if got := customerLedger(t, pool, customer.ID); !got.Equal(d("-50")) {
		t.Errorf("expected customer ledger -50, got %s", got)
	}
}

func TestBilling_InsufficientStock(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	product := mustProduct(t, pool, "Salt", "10", "15", "0", "3")
	billing := core.NewBillingService(pool, core.NewSequenceService(pool))

	_, err := billing.CreateBill(ctx, testTenant, simpleBillInput(product, "5", "75", nil,
		[]core.Payment{{Mode: core.ModeCash, Amount: d("75")}}))
	if err == nil {
		t.Fatal("expected insufficient stock error, got nil")
	}
	if !errors.Is(err, core.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}

	// Nothing mutated: stock and sequence both untouched.
	refreshed, _ := core.NewProductService(pool).GetProduct(ctx, testTenant, product.ID)
	if !refreshed.Stock.Equal(d("3")) {
		t.Errorf("expected stock 3 after failed bill, got %s", refreshed.Stock)
	}
	var seqCount int
	_ = pool.QueryRow(ctx, "SELECT COUNT(*) FROM bills WHERE tenant_id = $1", testTenant).Scan(&seqCount)
	if seqCount != 0 {
		t.Errorf("expected no bills persisted, got %d", seqCount)
	}
}

func TestBilling_WalkInCannotCarryCredit(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	product := mustProduct(t, pool, "Sugar", "30", "45", "0", "10")
	billing := core.NewBillingService(pool, core.NewSequenceService(pool))

	_, err := billing.CreateBill(ctx, testTenant, simpleBillInput(product, "2", "90", nil,
		[]core.Payment{{Mode: core.ModeCash, Amount: d("40")}}))
	if err == nil {
		t.Fatal("expected walk-in credit rejection, got nil")
	}
	if !errors.Is(err, core.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestBilling_FIFOSpansBatches(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	product := mustProduct(t, pool, "Tea", "80", "120", "5", "5")
	vendor := mustVendor(t, pool, "Tea Traders")
	sequences := core.NewSequenceService(pool)

	// Second batch at a different cost arrives via a purchase.
	purchasing := core.NewPurchaseService(pool, sequences)
	if _, err := purchasing.CreatePurchase(ctx, testTenant, core.PurchaseInput{
		VendorID: vendor.ID,
		Items: []core.PurchaseItemInput{{
			ProductID:     product.ID,
			Quantity:      d("10"),
			PurchasePrice: d("90"),
			TotalAmount:   d("900"),
		}},
		TotalAmount: d("900"),
		Payments:    []core.Payment{{Mode: core.ModeCash, Amount: d("900")}},
	}); err != nil {
		t.Fatalf("CreatePurchase failed: %v", err)
	}

	billing := core.NewBillingService(pool, sequences)
	bill, err := billing.CreateBill(ctx, testTenant, simpleBillInput(product, "8", "960", nil,
		[]core.Payment{{Mode: core.ModeCash, Amount: d("960")}}))
	if err != nil {
		t.Fatalf("CreateBill failed: %v", err)
	}

	// Opening batch (5) exhausted and pruned, 3 taken from the new one.
	if bill.Items[0].BatchNumber != "BTH-START" {
		t.Errorf("expected first-touched batch BTH-START, got %s", bill.Items[0].BatchNumber)
	}
	refreshed, err := core.NewProductService(pool).GetProduct(ctx, testTenant, product.ID)
	if err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}
	if !refreshed.Stock.Equal(d("7")) {
		t.Errorf("expected stock 7, got %s", refreshed.Stock)
	}
	if len(refreshed.Batches) != 1 {
		t.Fatalf("expected opening batch pruned, got %d batches", len(refreshed.Batches))
	}
	if !refreshed.Batches[0].Stock.Equal(d("7")) {
		t.Errorf("expected remaining batch at 7, got %s", refreshed.Batches[0].Stock)
	}

	ok, err := core.NewProductService(pool).CheckStockConservation(ctx, testTenant, product.ID)
	if err != nil {
		t.Fatalf("CheckStockConservation failed: %v", err)
	}
	if !ok {
		t.Error("stock conservation violated after FIFO sale")
	}
}
