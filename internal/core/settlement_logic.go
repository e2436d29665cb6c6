package core

import (
	"github.com/shopspring/decimal"
)

// This file holds the pure settlement arithmetic: everything here is
// deterministic, storage-free, and unit-tested directly. The services
// load rows, call into these functions, and write the results back
// inside their transactions.

// NonCreditTotal sums payment amounts excluding Credit-mode entries.
// Credit is a promise, not a receipt: it never counts as paid.
func NonCreditTotal(payments []Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		if p.Mode == ModeCredit {
			continue
		}
		total = total.Add(p.Amount)
	}
	return total
}

// statusFor applies the shared three-state rule: Fully Settled when
// nothing remains due, Partially Settled when something was paid,
// otherwise Unsettled.
func statusFor(balance, paid decimal.Decimal) SettlementStatus {
	switch {
	case balance.LessThanOrEqual(decimal.Zero):
		return StatusFullySettled
	case paid.GreaterThan(decimal.Zero):
		return StatusPartiallySettled
	default:
		return StatusUnsettled
	}
}

// BillReconciliation is the outcome of settling declared payments,
// ledger advance and overpayment against a bill's grand total.
type BillReconciliation struct {
	Payments        []Payment // declared payments plus any synthetic Advance entry
	PaidAmount      decimal.Decimal
	AdvanceUtilized decimal.Decimal
	ReturnedAmount  decimal.Decimal
	BalanceAmount   decimal.Decimal
	Status          SettlementStatus
}

// ReconcileBillPayments settles payments against grandTotal.
//
// Order matters: advance consumption happens before overpayment
// resolution, so a customer's stored credit can never be "returned"
// as overpayment cash. ledgerBalance is the customer's current
// running balance (negative = advance available); it is ignored when
// hasCustomer is false.
//
// A walk-in sale (hasCustomer false) must end with a zero balance:
// any excess is force-returned regardless of action, and an unpaid
// remainder is a validation error.
func ReconcileBillPayments(grandTotal decimal.Decimal, payments []Payment,
	ledgerBalance decimal.Decimal, hasCustomer bool, action OverpaymentAction) (BillReconciliation, error) {

	rec := BillReconciliation{Payments: append([]Payment(nil), payments...)}
	rec.PaidAmount = NonCreditTotal(payments)

	if hasCustomer && ledgerBalance.IsNegative() {
		remainder := grandTotal.Sub(rec.PaidAmount)
		if remainder.GreaterThan(decimal.Zero) {
			advance := decimal.Min(ledgerBalance.Neg(), remainder)
			if advance.GreaterThan(decimal.Zero) {
				rec.AdvanceUtilized = advance
				rec.Payments = append(rec.Payments, Payment{
					Mode:      ModeAdvance,
					Amount:    advance,
					Reference: "From Ledger Credit",
				})
				rec.PaidAmount = rec.PaidAmount.Add(advance)
			}
		}
	}

	if excess := rec.PaidAmount.Sub(grandTotal); excess.GreaterThan(decimal.Zero) {
		if !(action == OverpayLedger && hasCustomer) {
			rec.ReturnedAmount = excess
		}
	}

	effectivePaid := rec.PaidAmount.Sub(rec.ReturnedAmount)
	rec.BalanceAmount = grandTotal.Sub(effectivePaid)

	if !hasCustomer && rec.BalanceAmount.GreaterThan(decimal.Zero) {
		return BillReconciliation{}, validationf(
			"walk-in customers cannot carry a credit balance of %s; select a registered customer",
			rec.BalanceAmount.StringFixed(2))
	}

	rec.Status = statusFor(rec.BalanceAmount, rec.PaidAmount)
	return rec, nil
}

// ProrateBillDiscount splits a bill-level discount across line totals
// proportional to each line's share. Every share except the last is
// rounded to 2 decimal places; the last line absorbs the unrounded
// remainder so the shares always sum to the discount exactly.
func ProrateBillDiscount(lineTotals []decimal.Decimal, discount decimal.Decimal) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(lineTotals))
	if len(lineTotals) == 0 || !discount.GreaterThan(decimal.Zero) {
		return shares
	}

	sum := decimal.Zero
	for _, t := range lineTotals {
		sum = sum.Add(t)
	}
	if !sum.GreaterThan(decimal.Zero) {
		return shares
	}

	distributed := decimal.Zero
	for i, t := range lineTotals {
		if i == len(lineTotals)-1 {
			shares[i] = discount.Sub(distributed)
			break
		}
		share := t.Div(sum).Mul(discount).Round(2)
		shares[i] = share
		distributed = distributed.Add(share)
	}
	return shares
}

// BatchDeduction is one slice of a FIFO stock consumption plan.
type BatchDeduction struct {
	BatchID   int
	Quantity  decimal.Decimal // amount taken from this batch
	Exhausted bool            // batch stock reaches zero and must be pruned
}

// PlanBatchDeduction walks batches in the given order (callers pass
// them ordered by creation) and takes min(batch stock, remaining)
// from each until the quantity is covered. It reports the first batch
// touched, for return restoration, and any shortfall left when the
// batches run out (deducted from aggregate stock by the caller).
func PlanBatchDeduction(batches []Batch, quantity decimal.Decimal) (plan []BatchDeduction, firstBatch string, shortfall decimal.Decimal) {
	remaining := quantity
	for _, b := range batches {
		if !remaining.GreaterThan(decimal.Zero) {
			break
		}
		if !b.Stock.GreaterThan(decimal.Zero) {
			continue
		}
		take := decimal.Min(b.Stock, remaining)
		remaining = remaining.Sub(take)
		if firstBatch == "" {
			firstBatch = b.BatchNumber
		}
		plan = append(plan, BatchDeduction{
			BatchID:   b.ID,
			Quantity:  take,
			Exhausted: b.Stock.Equal(take),
		})
	}
	return plan, firstBatch, remaining
}

// OutstandingDoc is an unsettled or partially settled document due for
// FIFO allocation, ordered oldest-first by the caller.
type OutstandingDoc struct {
	ID         int
	GrandTotal decimal.Decimal
	PaidAmount decimal.Decimal
}

// Allocation is the payment slice applied to one outstanding document.
type Allocation struct {
	DocID         int
	Applied       decimal.Decimal
	PaidAmount    decimal.Decimal // new cumulative paid
	BalanceAmount decimal.Decimal // new balance, clamped at zero
	Status        SettlementStatus
}

// AllocateOldestFirst applies a payment greedily across outstanding
// documents in the order given: earliest-created debt clears first,
// never proportional, never largest-first. Documents the payment does
// not reach are untouched; leftover payment beyond total outstanding
// simply remains unallocated (it already lives on the party ledger).
func AllocateOldestFirst(docs []OutstandingDoc, amount decimal.Decimal) []Allocation {
	var allocations []Allocation
	remaining := amount
	for _, doc := range docs {
		if !remaining.GreaterThan(decimal.Zero) {
			break
		}
		due := doc.GrandTotal.Sub(doc.PaidAmount)
		if !due.GreaterThan(decimal.Zero) {
			continue
		}
		applied := decimal.Min(due, remaining)
		remaining = remaining.Sub(applied)

		paid := doc.PaidAmount.Add(applied)
		balance := doc.GrandTotal.Sub(paid)
		status := StatusPartiallySettled
		if balance.LessThanOrEqual(decimal.Zero) {
			balance = decimal.Zero
			status = StatusFullySettled
		}
		allocations = append(allocations, Allocation{
			DocID:         doc.ID,
			Applied:       applied,
			PaidAmount:    paid,
			BalanceAmount: balance,
			Status:        status,
		})
	}
	return allocations
}

// TaxPortion back-calculates the tax component of a tax-inclusive
// amount: amount − amount / (1 + rate/100).
func TaxPortion(inclusive, gstRate decimal.Decimal) decimal.Decimal {
	if !gstRate.GreaterThan(decimal.Zero) {
		return decimal.Zero
	}
	divisor := decimal.NewFromInt(1).Add(gstRate.Div(decimal.NewFromInt(100)))
	return inclusive.Sub(inclusive.Div(divisor))
}
