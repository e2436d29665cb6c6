package core_test

import (
	"context"
	"testing"

	"pos-backend/internal/core"

	"github.com/shopspring/decimal"
)

// seedCreditBill books a credit-only bill so the customer carries an
// open balance the allocator can clear.
func seedCreditBill(t *testing.T, billing core.BillingService, product *core.Product, customerID int, qty, total string) *core.Bill {
	t.Helper()
	bill, err := billing.CreateBill(context.Background(), testTenant,
		simpleBillInput(product, qty, total, &customerID,
			[]core.Payment{{Mode: core.ModeCredit, Amount: decimal.RequireFromString(total)}}))
	if err != nil {
		t.Fatalf("Failed to seed credit bill: %v", err)
	}
	return bill
}

func TestLedgerPayment_OldestBillClearsFirst(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	product := mustProduct(t, pool, "Soap", "40", "50", "18", "100")
	customer := mustCustomer(t, pool, "Asha", "9000000001")
	sequences := core.NewSequenceService(pool)
	billing := core.NewBillingService(pool, sequences)
	ledger := core.NewLedgerService(pool, sequences)

	// Three credit bills: dues 100, 50, 30, oldest first.
	b1 := seedCreditBill(t, billing, product, customer.ID, "2", "100")
	b2 := seedCreditBill(t, billing, product, customer.ID, "1", "50")
	b3 := seedCreditBill(t, billing, product, customer.ID, "1", "30")

	payment, err := ledger.CreateLedgerPayment(ctx, testTenant, core.LedgerPaymentInput{
		PartyID:   customer.ID,
		PartyType: core.PartyCustomer,
		Amount:    d("120"),
		TotalPaid: d("120"),
		Payments:  []core.Payment{{Mode: core.ModeUPI, Amount: d("120")}},
	})
	if err != nil {
		t.Fatalf("CreateLedgerPayment failed: %v", err)
	}
	if payment.PaymentNumber != "RCT-0001" {
		t.Errorf("expected RCT-0001, got %s", payment.PaymentNumber)
	}

	assertBill := func(billID int, wantPaid, wantBalance string, wantStatus core.SettlementStatus) {
		t.Helper()
		got, err := billing.GetBill(ctx, testTenant, billID)
		if err != nil {
			t.Fatalf("GetBill failed: %v", err)
		}
		if !got.PaidAmount.Equal(d(wantPaid)) {
			t.Errorf("bill %s paid: expected %s, got %s", got.BillNumber, wantPaid, got.PaidAmount)
		}
		if !got.BalanceAmount.Equal(d(wantBalance)) {
			t.Errorf("bill %s balance: expected %s, got %s", got.BillNumber, wantBalance, got.BalanceAmount)
		}
		if got.Status != wantStatus {
			t.Errorf("bill %s status: expected %s, got %s", got.BillNumber, wantStatus, got.Status)
		}
	}

	assertBill(b1.ID, "100", "0", core.StatusFullySettled)
	assertBill(b2.ID, "20", "30", core.StatusPartiallySettled)
	assertBill(b3.ID, "0", "30", core.StatusUnsettled)

	// 180 owed minus 120 received.
	if got := customerLedger(t, pool, customer.ID); !got.Equal(d("60")) {
		t.Errorf("expected customer ledger 60, got %s", got)
	}
}

func TestLedgerPayment_DiscountSettlesDocuments(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	product := mustProduct(t, pool, "Rice", "50", "100", "5", "50")
	customer := mustCustomer(t, pool, "Binu", "9000000002")
	sequences := core.NewSequenceService(pool)
	billing := core.NewBillingService(pool, sequences)
	ledger := core.NewLedgerService(pool, sequences)

	bill := seedCreditBill(t, billing, product, customer.ID, "1", "100")

	// 90 paid with 10 written off: the bill still settles fully.
	_, err := ledger.CreateLedgerPayment(ctx, testTenant, core.LedgerPaymentInput{
		PartyID:   customer.ID,
		PartyType: core.PartyCustomer,
		Amount:    d("90"),
		TotalPaid: d("90"),
		Discount:  d("10"),
		Payments:  []core.Payment{{Mode: core.ModeCash, Amount: d("90")}},
	})
	if err != nil {
		t.Fatalf("CreateLedgerPayment failed: %v", err)
	}

	got, err := billing.GetBill(ctx, testTenant, bill.ID)
	if err != nil {
		t.Fatalf("GetBill failed: %v", err)
	}
	if got.Status != core.StatusFullySettled {
		t.Errorf("expected Fully Settled, got %s", got.Status)
	}
	if got := customerLedger(t, pool, customer.ID); !got.IsZero() {
		t.Errorf("expected customer ledger 0, got %s", got)
	}
}

func TestLedgerPayment_OverpaymentBecomesAdvance(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	product := mustProduct(t, pool, "Oil", "100", "150", "5", "10")
	customer := mustCustomer(t, pool, "Chitra", "9000000003")
	sequences := core.NewSequenceService(pool)
	billing := core.NewBillingService(pool, sequences)
	ledger := core.NewLedgerService(pool, sequences)

	bill := seedCreditBill(t, billing, product, customer.ID, "1", "150")

	if _, err := ledger.CreateLedgerPayment(ctx, testTenant, core.LedgerPaymentInput{
		PartyID:   customer.ID,
		PartyType: core.PartyCustomer,
		Amount:    d("200"),
		TotalPaid: d("200"),
		Payments:  []core.Payment{{Mode: core.ModeCash, Amount: d("200")}},
	}); err != nil {
		t.Fatalf("CreateLedgerPayment failed: %v", err)
	}

	got, err := billing.GetBill(ctx, testTenant, bill.ID)
	if err != nil {
		t.Fatalf("GetBill failed: %v", err)
	}
	if got.Status != core.StatusFullySettled || !got.BalanceAmount.IsZero() {
		t.Errorf("expected fully settled bill with zero balance, got %s / %s", got.Status, got.BalanceAmount)
	}
	// The 50 beyond the dues stays on the ledger as advance.
	if got := customerLedger(t, pool, customer.ID); !got.Equal(d("-50")) {
		t.Errorf("expected customer ledger -50, got %s", got)
	}
}

func TestLedgerPayment_VendorSide(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	product := mustProduct(t, pool, "Tea", "80", "120", "5", "0")
	vendor := mustVendor(t, pool, "Tea Traders")
	sequences := core.NewSequenceService(pool)
	purchasing := core.NewPurchaseService(pool, sequences)
	ledger := core.NewLedgerService(pool, sequences)

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

	payment, err := ledger.CreateLedgerPayment(ctx, testTenant, core.LedgerPaymentInput{
		PartyID:   vendor.ID,
		PartyType: core.PartyVendor,
		Amount:    d("500"),
		TotalPaid: d("500"),
		Payments:  []core.Payment{{Mode: core.ModeBank, Amount: d("500")}},
	})
	if err != nil {
		t.Fatalf("CreateLedgerPayment failed: %v", err)
	}
	if payment.PaymentNumber != "VPAY-0001" {
		t.Errorf("expected VPAY-0001, got %s", payment.PaymentNumber)
	}

	got, err := purchasing.GetPurchase(ctx, testTenant, purchase.ID)
	if err != nil {
		t.Fatalf("GetPurchase failed: %v", err)
	}
	if got.Status != core.StatusPartiallySettled {
		t.Errorf("expected Partially Settled, got %s", got.Status)
	}
	if !got.BalanceAmount.Equal(d("300")) {
		t.Errorf("expected balance 300, got %s", got.BalanceAmount)
	}
	if got := vendorLedger(t, pool, vendor.ID); !got.Equal(d("300")) {
		t.Errorf("expected vendor ledger 300, got %s", got)
	}
}

func TestLedgerPayment_Validation(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	ledger := core.NewLedgerService(pool, core.NewSequenceService(pool))

	_, err := ledger.CreateLedgerPayment(ctx, testTenant, core.LedgerPaymentInput{
		PartyID:   1,
		PartyType: "Partner",
		TotalPaid: d("10"),
		Payments:  []core.Payment{{Mode: core.ModeCash, Amount: d("10")}},
	})
	if err == nil {
		t.Fatal("expected unknown party type to be rejected")
	}

	_, err = ledger.CreateLedgerPayment(ctx, testTenant, core.LedgerPaymentInput{
		PartyID:   1,
		PartyType: core.PartyCustomer,
		TotalPaid: d("0"),
		Payments:  []core.Payment{{Mode: core.ModeCash, Amount: d("0")}},
	})
	if err == nil {
		t.Fatal("expected zero payment to be rejected")
	}
}
