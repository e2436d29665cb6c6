package core_test

import (
	"context"
	"testing"

	"pos-backend/internal/core"
)

func TestSalesReturn_RestoresStockAndShrinksBill(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	product := mustProduct(t, pool, "Soap", "40", "60", "18", "10")
	sequences := core.NewSequenceService(pool)
	billing := core.NewBillingService(pool, sequences)
	returns := core.NewReturnsService(pool, sequences)

	bill, err := billing.CreateBill(ctx, testTenant, simpleBillInput(product, "2", "120", nil,
		[]core.Payment{{Mode: core.ModeCash, Amount: d("120")}}))
	if err != nil {
		t.Fatalf("CreateBill failed: %v", err)
	}

	ret, err := returns.CreateSalesReturn(ctx, testTenant, core.SalesReturnInput{
		BillID: bill.ID,
		Items:  []core.ReturnLineInput{{ProductID: product.ID, Quantity: d("1")}},
		Reason: "damaged",
	})
	if err != nil {
		t.Fatalf("CreateSalesReturn failed: %v", err)
	}

	if ret.ReturnNumber != "SRET-0001" {
		t.Errorf("expected SRET-0001, got %s", ret.ReturnNumber)
	}
	if !ret.TotalRefundAmount.Equal(d("60")) {
		t.Errorf("expected refund 60, got %s", ret.TotalRefundAmount)
	}
	if ret.RefundMode != core.RefundLedger {
		t.Errorf("expected default Ledger refund mode, got %s", ret.RefundMode)
	}

	got, err := billing.GetBill(ctx, testTenant, bill.ID)
	if err != nil {
		t.Fatalf("GetBill failed: %v", err)
	}
	if !got.GrandTotal.Equal(d("60")) {
		t.Errorf("expected grand total 60 after return, got %s", got.GrandTotal)
	}
	if got.Status != core.StatusFullySettled {
		t.Errorf("expected Fully Settled, got %s", got.Status)
	}
	if !got.Items[0].ReturnedQuantity.Equal(d("1")) {
		t.Errorf("expected returned quantity 1, got %s", got.Items[0].ReturnedQuantity)
	}
	if !got.Items[0].TotalAmount.Equal(d("60")) {
		t.Errorf("expected item total 60 after return, got %s", got.Items[0].TotalAmount)
	}

	refreshed, err := core.NewProductService(pool).GetProduct(ctx, testTenant, product.ID)
	if err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}
	if !refreshed.Stock.Equal(d("9")) {
		t.Errorf("expected stock restored to 9, got %s", refreshed.Stock)
	}
	if len(refreshed.Batches) != 1 || !refreshed.Batches[0].Stock.Equal(d("9")) {
		t.Errorf("expected opening batch back at 9, got %+v", refreshed.Batches)
	}
}

func TestSalesReturn_LedgerRefundReducesCustomerBalance(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	product := mustProduct(t, pool, "Oil", "100", "150", "5", "10")
	customer := mustCustomer(t, pool, "Asha", "9000000001")
	sequences := core.NewSequenceService(pool)
	billing := core.NewBillingService(pool, sequences)
	returns := core.NewReturnsService(pool, sequences)

	bill := seedCreditBill(t, billing, product, customer.ID, "1", "150")

	if _, err := returns.CreateSalesReturn(ctx, testTenant, core.SalesReturnInput{
		BillID:     bill.ID,
		Items:      []core.ReturnLineInput{{ProductID: product.ID, Quantity: d("1")}},
		RefundMode: core.RefundLedger,
	}); err != nil {
		t.Fatalf("CreateSalesReturn failed: %v", err)
	}

	got, err := billing.GetBill(ctx, testTenant, bill.ID)
	if err != nil {
		t.Fatalf("GetBill failed: %v", err)
	}
	// Refund covers the whole open balance: debt is gone.
	if !got.BalanceAmount.IsZero() || got.Status != core.StatusFullySettled {
		t.Errorf("expected settled bill, got balance %s status %s", got.BalanceAmount, got.Status)
	}
	if ledger := customerLedger(t, pool, customer.ID); !ledger.IsZero() {
		t.Errorf("expected customer ledger 0, got %s", ledger)
	}
}

func TestSalesReturn_CashRefundLeavesLedgerAlone(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	product := mustProduct(t, pool, "Rice", "50", "75", "5", "10")
	customer := mustCustomer(t, pool, "Binu", "9000000002")
	sequences := core.NewSequenceService(pool)
	billing := core.NewBillingService(pool, sequences)
	returns := core.NewReturnsService(pool, sequences)

	bill, err := billing.CreateBill(ctx, testTenant, simpleBillInput(product, "1", "75", &customer.ID,
		[]core.Payment{{Mode: core.ModeCash, Amount: d("75")}}))
	if err != nil {
		t.Fatalf("CreateBill failed: %v", err)
	}

	if _, err := returns.CreateSalesReturn(ctx, testTenant, core.SalesReturnInput{
		BillID:     bill.ID,
		Items:      []core.ReturnLineInput{{ProductID: product.ID, Quantity: d("1")}},
		RefundMode: core.RefundCash,
	}); err != nil {
		t.Fatalf("CreateSalesReturn failed: %v", err)
	}

	if ledger := customerLedger(t, pool, customer.ID); !ledger.IsZero() {
		t.Errorf("expected customer ledger untouched at 0, got %s", ledger)
	}
}

func TestSalesReturn_SkipsUnmatchedItems(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	sold := mustProduct(t, pool, "Soap", "40", "60", "18", "10")
	other := mustProduct(t, pool, "Shampoo", "90", "120", "18", "10")
	sequences := core.NewSequenceService(pool)
	billing := core.NewBillingService(pool, sequences)
	returns := core.NewReturnsService(pool, sequences)

	bill, err := billing.CreateBill(ctx, testTenant, simpleBillInput(sold, "2", "120", nil,
		[]core.Payment{{Mode: core.ModeCash, Amount: d("120")}}))
	if err != nil {
		t.Fatalf("CreateBill failed: %v", err)
	}

	ret, err := returns.CreateSalesReturn(ctx, testTenant, core.SalesReturnInput{
		BillID: bill.ID,
		Items: []core.ReturnLineInput{
			{ProductID: other.ID, Quantity: d("1")}, // never on this bill
			{ProductID: sold.ID, Quantity: d("1")},
		},
	})
	if err != nil {
		t.Fatalf("CreateSalesReturn failed: %v", err)
	}

	if len(ret.Items) != 1 || ret.Items[0].ProductID != sold.ID {
		t.Fatalf("expected only the matched item, got %+v", ret.Items)
	}
	if !ret.TotalRefundAmount.Equal(d("60")) {
		t.Errorf("expected refund 60, got %s", ret.TotalRefundAmount)
	}

	// The unmatched product is untouched.
	refreshed, err := core.NewProductService(pool).GetProduct(ctx, testTenant, other.ID)
	if err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}
	if !refreshed.Stock.Equal(d("10")) {
		t.Errorf("expected unmatched product stock 10, got %s", refreshed.Stock)
	}
}

func TestSalesReturn_RecreatesPrunedBatch(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	product := mustProduct(t, pool, "Salt", "10", "15", "0", "4")
	sequences := core.NewSequenceService(pool)
	billing := core.NewBillingService(pool, sequences)
	returns := core.NewReturnsService(pool, sequences)

	// Sell the whole opening batch so it gets pruned.
	bill, err := billing.CreateBill(ctx, testTenant, simpleBillInput(product, "4", "60", nil,
		[]core.Payment{{Mode: core.ModeCash, Amount: d("60")}}))
	if err != nil {
		t.Fatalf("CreateBill failed: %v", err)
	}

	if _, err := returns.CreateSalesReturn(ctx, testTenant, core.SalesReturnInput{
		BillID: bill.ID,
		Items:  []core.ReturnLineInput{{ProductID: product.ID, Quantity: d("2")}},
	}); err != nil {
		t.Fatalf("CreateSalesReturn failed: %v", err)
	}

	refreshed, err := core.NewProductService(pool).GetProduct(ctx, testTenant, product.ID)
	if err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}
	if !refreshed.Stock.Equal(d("2")) {
		t.Errorf("expected stock 2, got %s", refreshed.Stock)
	}
	if len(refreshed.Batches) != 1 {
		t.Fatalf("expected the batch recreated, got %d batches", len(refreshed.Batches))
	}
	if refreshed.Batches[0].BatchNumber != "BTH-START" {
		t.Errorf("expected recreated batch to keep its recorded number, got %s", refreshed.Batches[0].BatchNumber)
	}
	if !refreshed.Batches[0].Stock.Equal(d("2")) {
		t.Errorf("expected recreated batch stock 2, got %s", refreshed.Batches[0].Stock)
	}
}

func TestPurchaseReturn_DeductsStockAndVendorLedger(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	product := mustProduct(t, pool, "Tea", "80", "120", "5", "0")
	vendor := mustVendor(t, pool, "Tea Traders")
	sequences := core.NewSequenceService(pool)
	purchasing := core.NewPurchaseService(pool, sequences)
	returns := core.NewReturnsService(pool, sequences)

	purchase, err := purchasing.CreatePurchase(ctx, testTenant, core.PurchaseInput{
		VendorID: vendor.ID,
		Items: []core.PurchaseItemInput{{
			ProductID:     product.ID,
			Quantity:      d("10"),
			PurchasePrice: d("80"),
			TotalAmount:   d("800"),
		}},
		TotalAmount: d("800"),
		Payments:    []core.Payment{{Mode: core.ModeCredit, Amount: d("800")}},
	})
	if err != nil {
		t.Fatalf("CreatePurchase failed: %v", err)
	}

	ret, err := returns.CreatePurchaseReturn(ctx, testTenant, core.PurchaseReturnInput{
		PurchaseID: purchase.ID,
		Items:      []core.ReturnLineInput{{ProductID: product.ID, Quantity: d("4")}},
		Reason:     "short shelf life",
	})
	if err != nil {
		t.Fatalf("CreatePurchaseReturn failed: %v", err)
	}

	if ret.ReturnNumber != "PRET-0001" {
		t.Errorf("expected PRET-0001, got %s", ret.ReturnNumber)
	}
	if !ret.TotalRefundAmount.Equal(d("320")) {
		t.Errorf("expected refund 320, got %s", ret.TotalRefundAmount)
	}

	refreshed, err := core.NewProductService(pool).GetProduct(ctx, testTenant, product.ID)
	if err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}
	if !refreshed.Stock.Equal(d("6")) {
		t.Errorf("expected stock 6, got %s", refreshed.Stock)
	}

	// We owe 800 − 320.
	if got := vendorLedger(t, pool, vendor.ID); !got.Equal(d("480")) {
		t.Errorf("expected vendor ledger 480, got %s", got)
	}

	// The origin voucher is not recomputed.
	got, err := purchasing.GetPurchase(ctx, testTenant, purchase.ID)
	if err != nil {
		t.Fatalf("GetPurchase failed: %v", err)
	}
	if !got.BalanceAmount.Equal(d("800")) || got.Status != core.StatusUnsettled {
		t.Errorf("expected origin voucher untouched, got balance %s status %s", got.BalanceAmount, got.Status)
	}
}
