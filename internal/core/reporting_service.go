package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// undistributedThreshold guards the bill-level discount adjustment
// against rounding residue from proration.
var undistributedThreshold = decimal.NewFromFloat(0.1)

type PnLRevenue struct {
	TotalSales        decimal.Decimal `json:"total_sales"`
	TotalSalesReturns decimal.Decimal `json:"total_sales_returns"`
	NetRevenue        decimal.Decimal `json:"net_revenue"`
}

type PnLCOGS struct {
	TotalCost             decimal.Decimal `json:"total_cost"`
	ReturnCost            decimal.Decimal `json:"return_cost"`
	NetPurchases          decimal.Decimal `json:"net_purchases"`
	ActualPurchaseOutflow decimal.Decimal `json:"actual_purchase_outflow"`
}

type PnLProfit struct {
	GrossProfit decimal.Decimal `json:"gross_profit"`
	NetProfit   decimal.Decimal `json:"net_profit"`
}

type PnLReport struct {
	Revenue       PnLRevenue      `json:"revenue"`
	COGS          PnLCOGS         `json:"cogs"`
	TotalTax      decimal.Decimal `json:"total_tax_collected"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	Profit        PnLProfit       `json:"profit"`
}

type CollectionReport struct {
	TotalSaleAmount   decimal.Decimal `json:"total_sale_amount"`
	TotalReturnAmount decimal.Decimal `json:"total_return_amount"`
	TotalDiscount     decimal.Decimal `json:"total_discount"`
	TotalCash         decimal.Decimal `json:"total_cash"`
	TotalUPI          decimal.Decimal `json:"total_upi"`
	TotalCard         decimal.Decimal `json:"total_card"`
	TotalCredit       decimal.Decimal `json:"total_credit"`
	NetCollection     decimal.Decimal `json:"net_collection"`
}

// lowStockThreshold marks products the dashboard flags for reorder.
var lowStockThreshold = decimal.NewFromInt(10)

type DashboardProduct struct {
	ID    int             `json:"id"`
	Name  string          `json:"name"`
	Stock decimal.Decimal `json:"stock"`
	Price decimal.Decimal `json:"price"`
}

type DashboardBill struct {
	ID           int              `json:"id"`
	BillNumber   string           `json:"bill_number"`
	CustomerName string           `json:"customer_name,omitempty"`
	GrandTotal   decimal.Decimal  `json:"grand_total"`
	Status       SettlementStatus `json:"status"`
	CreatedAt    time.Time        `json:"created_at"`
}

type DashboardStats struct {
	TotalSales       decimal.Decimal    `json:"total_sales"`
	TotalOrders      int                `json:"total_orders"`
	TotalExpenses    decimal.Decimal    `json:"total_expenses"`
	CustomerCount    int                `json:"customer_count"`
	ProductCount     int                `json:"product_count"`
	LowStockProducts []DashboardProduct `json:"low_stock_products"`
	RecentBills      []DashboardBill    `json:"recent_bills"`
}

// ReportingService computes read-only aggregates over a date range.
// Prices in this system are tax-inclusive, so tax is back-calculated
// per line rather than read from a stored column.
type ReportingService interface {
	PnL(ctx context.Context, tenantID string, start, end time.Time) (*PnLReport, error)
	Collection(ctx context.Context, tenantID string, start, end time.Time) (*CollectionReport, error)
	Dashboard(ctx context.Context, tenantID string) (*DashboardStats, error)
}

type reportingService struct {
	pool *pgxpool.Pool
}

func NewReportingService(pool *pgxpool.Pool) ReportingService {
	return &reportingService{pool: pool}
}

// rangeBounds widens the requested dates to full days: start at
// midnight, end at the last millisecond of its day.
func rangeBounds(start, end time.Time) (time.Time, time.Time) {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	e := time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 999_000_000, end.Location())
	return s, e
}

// LineProfit is the tax-exclusive margin of one sold line. The line
// total and the cost are both tax-inclusive at the same GST rate, so
// each side sheds its tax component before the subtraction.
func LineProfit(effectiveSale, cost, gstRate decimal.Decimal) (profit, outputTax decimal.Decimal) {
	outputTax = TaxPortion(effectiveSale, gstRate)
	inputTax := TaxPortion(cost, gstRate)
	baseSale := effectiveSale.Sub(outputTax)
	baseCost := cost.Sub(inputTax)
	return baseSale.Sub(baseCost), outputTax
}

func (s *reportingService) PnL(ctx context.Context, tenantID string, start, end time.Time) (*PnLReport, error) {
	rangeStart, rangeEnd := rangeBounds(start, end)

	costByProduct, err := s.fetchProductCosts(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	report := &PnLReport{}
	grossProfit := decimal.Zero

	// Per-bill-item margins plus the per-bill undistributed-discount
	// adjustment. Rows arrive grouped by bill so one pass suffices.
	rows, err := s.pool.Query(ctx, `
		SELECT b.id, b.grand_total, b.discount_amount,
		       i.product_id, i.quantity, i.gst_rate, i.prorated_bill_discount, i.total_amount
		FROM bills b
		JOIN bill_items i ON i.bill_id = b.id
		WHERE b.tenant_id = $1 AND b.created_at BETWEEN $2 AND $3
		ORDER BY b.id, i.id
	`, tenantID, rangeStart, rangeEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to query bill items: %w", err)
	}
	defer rows.Close()

	var currentBill int
	var billDiscount, proratedSum decimal.Decimal
	closeOutBill := func() {
		undistributed := billDiscount.Sub(proratedSum)
		if undistributed.GreaterThan(undistributedThreshold) {
			grossProfit = grossProfit.Sub(undistributed)
		}
	}
	for rows.Next() {
		var billID int
		var grandTotal, discountAmount decimal.Decimal
		var productID int
		var quantity, gstRate, prorated, lineTotal decimal.Decimal
		if err := rows.Scan(&billID, &grandTotal, &discountAmount,
			&productID, &quantity, &gstRate, &prorated, &lineTotal); err != nil {
			return nil, fmt.Errorf("failed to scan bill item: %w", err)
		}

		if billID != currentBill {
			if currentBill != 0 {
				closeOutBill()
			}
			currentBill = billID
			billDiscount = discountAmount
			proratedSum = decimal.Zero
			report.Revenue.TotalSales = report.Revenue.TotalSales.Add(grandTotal)
		}
		proratedSum = proratedSum.Add(prorated)

		cost := costByProduct[productID].Mul(quantity) // missing product costs zero
		effectiveSale := lineTotal.Sub(prorated)
		profit, outputTax := LineProfit(effectiveSale, cost, gstRate)

		grossProfit = grossProfit.Add(profit)
		report.TotalTax = report.TotalTax.Add(outputTax)
		report.COGS.TotalCost = report.COGS.TotalCost.Add(cost)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bill items: %w", err)
	}
	if currentBill != 0 {
		closeOutBill()
	}

	// Sales returns reverse both sides of the margin: the refund comes
	// out, the recovered stock value goes back in.
	returnRows, err := s.pool.Query(ctx, `
		SELECT r.id, r.total_refund_amount, i.product_id, i.quantity
		FROM sales_returns r
		LEFT JOIN sales_return_items i ON i.return_id = r.id
		WHERE r.tenant_id = $1 AND r.created_at BETWEEN $2 AND $3
		ORDER BY r.id, i.id
	`, tenantID, rangeStart, rangeEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales returns: %w", err)
	}
	defer returnRows.Close()

	currentReturn := 0
	for returnRows.Next() {
		var returnID int
		var refund decimal.Decimal
		var productID *int
		var quantity *decimal.Decimal
		if err := returnRows.Scan(&returnID, &refund, &productID, &quantity); err != nil {
			return nil, fmt.Errorf("failed to scan sales return: %w", err)
		}
		if returnID != currentReturn {
			currentReturn = returnID
			report.Revenue.TotalSalesReturns = report.Revenue.TotalSalesReturns.Add(refund)
			grossProfit = grossProfit.Sub(refund)
		}
		if productID != nil && quantity != nil {
			if costPrice, ok := costByProduct[*productID]; ok {
				recovered := costPrice.Mul(*quantity)
				report.COGS.ReturnCost = report.COGS.ReturnCost.Add(recovered)
				grossProfit = grossProfit.Add(recovered)
			}
		}
	}
	if err := returnRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sales returns: %w", err)
	}

	if err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM expenses
		WHERE tenant_id = $1 AND created_at BETWEEN $2 AND $3
	`, tenantID, rangeStart, rangeEnd).Scan(&report.TotalExpenses); err != nil {
		return nil, fmt.Errorf("failed to sum expenses: %w", err)
	}

	var purchaseTotal, purchaseReturnTotal decimal.Decimal
	if err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(total_amount), 0) FROM purchases
		WHERE tenant_id = $1 AND created_at BETWEEN $2 AND $3
	`, tenantID, rangeStart, rangeEnd).Scan(&purchaseTotal); err != nil {
		return nil, fmt.Errorf("failed to sum purchases: %w", err)
	}
	if err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(total_refund_amount), 0) FROM purchase_returns
		WHERE tenant_id = $1 AND created_at BETWEEN $2 AND $3
	`, tenantID, rangeStart, rangeEnd).Scan(&purchaseReturnTotal); err != nil {
		return nil, fmt.Errorf("failed to sum purchase returns: %w", err)
	}

	report.Revenue.NetRevenue = report.Revenue.TotalSales.Sub(report.Revenue.TotalSalesReturns)
	report.COGS.NetPurchases = report.COGS.TotalCost.Sub(report.COGS.ReturnCost)
	report.COGS.ActualPurchaseOutflow = purchaseTotal.Sub(purchaseReturnTotal)
	report.Profit.GrossProfit = grossProfit
	report.Profit.NetProfit = grossProfit.Sub(report.TotalExpenses)
	return report, nil
}

func (s *reportingService) fetchProductCosts(ctx context.Context, tenantID string) (map[int]decimal.Decimal, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, purchase_price FROM products WHERE tenant_id = $1", tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query product costs: %w", err)
	}
	defer rows.Close()

	costs := make(map[int]decimal.Decimal)
	for rows.Next() {
		var id int
		var price decimal.Decimal
		if err := rows.Scan(&id, &price); err != nil {
			return nil, fmt.Errorf("failed to scan product cost: %w", err)
		}
		costs[id] = price
	}
	return costs, rows.Err()
}

func (s *reportingService) Collection(ctx context.Context, tenantID string, start, end time.Time) (*CollectionReport, error) {
	rangeStart, rangeEnd := rangeBounds(start, end)
	report := &CollectionReport{}

	// Bill totals and the open credit of the range.
	if err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(grand_total), 0), COALESCE(SUM(discount_amount), 0), COALESCE(SUM(balance_amount), 0)
		FROM bills
		WHERE tenant_id = $1 AND created_at BETWEEN $2 AND $3
	`, tenantID, rangeStart, rangeEnd).Scan(
		&report.TotalSaleAmount, &report.TotalDiscount, &report.TotalCredit,
	); err != nil {
		return nil, fmt.Errorf("failed to sum bills: %w", err)
	}

	// Tender received at the counter plus customer ledger receipts,
	// bucketed by mode.
	billPayments, err := s.pool.Query(ctx, `
		SELECT p.mode, COALESCE(SUM(p.amount), 0)
		FROM payments p
		JOIN bills b ON p.document_type = 'bill' AND p.document_id = b.id
		WHERE b.tenant_id = $1 AND b.created_at BETWEEN $2 AND $3
		GROUP BY p.mode
	`, tenantID, rangeStart, rangeEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to query bill payments: %w", err)
	}
	if err := addModeTotals(billPayments, report); err != nil {
		return nil, err
	}

	ledgerReceipts, err := s.pool.Query(ctx, `
		SELECT p.mode, COALESCE(SUM(p.amount), 0)
		FROM payments p
		JOIN ledger_payments lp ON p.document_type = 'ledger_payment' AND p.document_id = lp.id
		WHERE lp.tenant_id = $1 AND lp.party_type = 'Customer' AND lp.created_at BETWEEN $2 AND $3
		GROUP BY p.mode
	`, tenantID, rangeStart, rangeEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger receipts: %w", err)
	}
	if err := addModeTotals(ledgerReceipts, report); err != nil {
		return nil, err
	}

	// Refunds leave the drawer they were paid from. Ledger-mode
	// refunds never touched the drawer, so only cash/UPI subtract.
	refundRows, err := s.pool.Query(ctx, `
		SELECT refund_mode, COALESCE(SUM(total_refund_amount), 0)
		FROM sales_returns
		WHERE tenant_id = $1 AND created_at BETWEEN $2 AND $3
		GROUP BY refund_mode
	`, tenantID, rangeStart, rangeEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales return refunds: %w", err)
	}
	defer refundRows.Close()
	for refundRows.Next() {
		var mode string
		var amount decimal.Decimal
		if err := refundRows.Scan(&mode, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan refund total: %w", err)
		}
		report.TotalReturnAmount = report.TotalReturnAmount.Add(amount)
		switch RefundMode(mode) {
		case RefundCash:
			report.TotalCash = report.TotalCash.Sub(amount)
		case RefundUPI:
			report.TotalUPI = report.TotalUPI.Sub(amount)
		}
	}
	if err := refundRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate refunds: %w", err)
	}

	report.NetCollection = report.TotalCash.Add(report.TotalUPI).Add(report.TotalCard)
	return report, nil
}

// Dashboard is the storefront overview: lifetime totals, entity
// counts, products running low and the latest bills.
func (s *reportingService) Dashboard(ctx context.Context, tenantID string) (*DashboardStats, error) {
	stats := &DashboardStats{
		LowStockProducts: []DashboardProduct{},
		RecentBills:      []DashboardBill{},
	}

	if err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(grand_total), 0), COUNT(*) FROM bills WHERE tenant_id = $1
	`, tenantID).Scan(&stats.TotalSales, &stats.TotalOrders); err != nil {
		return nil, fmt.Errorf("failed to sum bills: %w", err)
	}
	if err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM expenses WHERE tenant_id = $1
	`, tenantID).Scan(&stats.TotalExpenses); err != nil {
		return nil, fmt.Errorf("failed to sum expenses: %w", err)
	}
	if err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM customers WHERE tenant_id = $1", tenantID,
	).Scan(&stats.CustomerCount); err != nil {
		return nil, fmt.Errorf("failed to count customers: %w", err)
	}
	if err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM products WHERE tenant_id = $1", tenantID,
	).Scan(&stats.ProductCount); err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}

	lowRows, err := s.pool.Query(ctx, `
		SELECT id, name, stock, price FROM products
		WHERE tenant_id = $1 AND stock <= $2
		ORDER BY stock, id
		LIMIT 5
	`, tenantID, lowStockThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to query low-stock products: %w", err)
	}
	defer lowRows.Close()
	for lowRows.Next() {
		var p DashboardProduct
		if err := lowRows.Scan(&p.ID, &p.Name, &p.Stock, &p.Price); err != nil {
			return nil, fmt.Errorf("failed to scan low-stock product: %w", err)
		}
		stats.LowStockProducts = append(stats.LowStockProducts, p)
	}
	if err := lowRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate low-stock products: %w", err)
	}

	billRows, err := s.pool.Query(ctx, `
		SELECT b.id, b.bill_number, COALESCE(c.name, ''), b.grand_total, b.status, b.created_at
		FROM bills b
		LEFT JOIN customers c ON c.id = b.customer_id
		WHERE b.tenant_id = $1
		ORDER BY b.created_at DESC, b.id DESC
		LIMIT 5
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent bills: %w", err)
	}
	defer billRows.Close()
	for billRows.Next() {
		var b DashboardBill
		if err := billRows.Scan(&b.ID, &b.BillNumber, &b.CustomerName,
			&b.GrandTotal, &b.Status, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan recent bill: %w", err)
		}
		stats.RecentBills = append(stats.RecentBills, b)
	}
	if err := billRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recent bills: %w", err)
	}

	return stats, nil
}

func addModeTotals(rows pgx.Rows, report *CollectionReport) error {
	defer rows.Close()
	for rows.Next() {
		var mode string
		var amount decimal.Decimal
		if err := rows.Scan(&mode, &amount); err != nil {
			return fmt.Errorf("failed to scan payment total: %w", err)
		}
		switch PaymentMode(mode) {
		case ModeCash:
			report.TotalCash = report.TotalCash.Add(amount)
		case ModeUPI:
			report.TotalUPI = report.TotalUPI.Add(amount)
		case ModeCard:
			report.TotalCard = report.TotalCard.Add(amount)
		}
	}
	return rows.Err()
}
