package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// SettlementStatus is the three-state payment status shared by bills
// and purchases.
type SettlementStatus string

const (
	StatusUnsettled        SettlementStatus = "Unsettled"
	StatusPartiallySettled SettlementStatus = "Partially Settled"
	StatusFullySettled     SettlementStatus = "Fully Settled"
)

// PaymentMode covers declared tenders plus the two synthetic modes.
// Credit and Advance are non-cash settlement: excluded from cash-flow
// totals, included in paid/ledger math as each operation specifies.
type PaymentMode string

const (
	ModeCash    PaymentMode = "Cash"
	ModeUPI     PaymentMode = "UPI"
	ModeCard    PaymentMode = "Card"
	ModeBank    PaymentMode = "Bank"
	ModeCredit  PaymentMode = "Credit"
	ModeAdvance PaymentMode = "Advance"
)

type PartyType string

const (
	PartyCustomer PartyType = "Customer"
	PartyVendor   PartyType = "Vendor"
)

// RefundMode for sales returns. Ledger refunds reduce the customer's
// ledger balance; Cash/UPI refunds do not touch the ledger.
type RefundMode string

const (
	RefundLedger RefundMode = "Ledger"
	RefundCash   RefundMode = "Cash"
	RefundUPI    RefundMode = "UPI"
)

// OverpaymentAction decides what happens with payment in excess of the
// grand total: returned to the payer or retained as ledger credit.
type OverpaymentAction string

const (
	OverpayReturn OverpaymentAction = "return"
	OverpayLedger OverpaymentAction = "ledger"
)

type Product struct {
	ID            int             `json:"id"`
	TenantID      string          `json:"tenant_id"`
	Name          string          `json:"name"`
	HSN           string          `json:"hsn,omitempty"`
	Barcode       *string         `json:"barcode,omitempty"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	Price         decimal.Decimal `json:"price"`
	GSTRate       decimal.Decimal `json:"gst_rate"`
	Stock         decimal.Decimal `json:"stock"`
	Batches       []Batch         `json:"batches,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Batch is a discrete lot of product stock sharing one cost and one
// selling price. Creation order (created_at, id) is the FIFO contract.
type Batch struct {
	ID            int             `json:"id"`
	ProductID     int             `json:"product_id"`
	BatchNumber   string          `json:"batch_number"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	Stock         decimal.Decimal `json:"stock"`
	CreatedAt     time.Time       `json:"created_at"`
}

type Customer struct {
	ID            int             `json:"id"`
	TenantID      string          `json:"tenant_id"`
	Name          string          `json:"name"`
	Phone         string          `json:"phone"`
	Email         string          `json:"email,omitempty"`
	Address       string          `json:"address,omitempty"`
	LedgerBalance decimal.Decimal `json:"ledger_balance"`
	CreatedAt     time.Time       `json:"created_at"`
}

type Vendor struct {
	ID            int             `json:"id"`
	TenantID      string          `json:"tenant_id"`
	Name          string          `json:"name"`
	Phone         string          `json:"phone,omitempty"`
	Email         string          `json:"email,omitempty"`
	Address       string          `json:"address,omitempty"`
	GSTIN         string          `json:"gstin,omitempty"`
	LedgerBalance decimal.Decimal `json:"ledger_balance"`
	CreatedAt     time.Time       `json:"created_at"`
}

type Payment struct {
	Mode      PaymentMode     `json:"mode"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference,omitempty"`
}

type BillItem struct {
	ID                   int             `json:"id"`
	ProductID            int             `json:"product_id"`
	Name                 string          `json:"name"`
	BatchNumber          string          `json:"batch_number,omitempty"`
	Price                decimal.Decimal `json:"price"`
	Quantity             decimal.Decimal `json:"quantity"`
	ReturnedQuantity     decimal.Decimal `json:"returned_quantity"`
	GSTRate              decimal.Decimal `json:"gst_rate"`
	DiscountAmount       decimal.Decimal `json:"discount_amount"`
	ProratedBillDiscount decimal.Decimal `json:"prorated_bill_discount"`
	TotalAmount          decimal.Decimal `json:"total_amount"`
}

type Bill struct {
	ID             int              `json:"id"`
	TenantID       string           `json:"tenant_id"`
	BillNumber     string           `json:"bill_number"`
	CustomerID     *int             `json:"customer_id,omitempty"`
	CustomerName   string           `json:"customer_name,omitempty"`
	Items          []BillItem       `json:"items"`
	SubTotal       decimal.Decimal  `json:"sub_total"`
	TaxAmount      decimal.Decimal  `json:"tax_amount"`
	DiscountAmount decimal.Decimal  `json:"discount_amount"`
	GrandTotal     decimal.Decimal  `json:"grand_total"`
	RoundOff       decimal.Decimal  `json:"round_off"`
	Payments       []Payment        `json:"payments"`
	PaidAmount     decimal.Decimal  `json:"paid_amount"`
	ReturnedAmount decimal.Decimal  `json:"returned_amount"`
	BalanceAmount  decimal.Decimal  `json:"balance_amount"`
	Status         SettlementStatus `json:"status"`
	CreatedAt      time.Time        `json:"created_at"`
}

type PurchaseItem struct {
	ID              int              `json:"id"`
	ProductID       int              `json:"product_id"`
	Quantity        decimal.Decimal  `json:"quantity"`
	PurchasePrice   decimal.Decimal  `json:"purchase_price"`
	NewSellingPrice *decimal.Decimal `json:"new_selling_price,omitempty"`
	TotalAmount     decimal.Decimal  `json:"total_amount"`
}

type Purchase struct {
	ID            int              `json:"id"`
	TenantID      string           `json:"tenant_id"`
	VoucherNumber string           `json:"voucher_number"`
	VendorID      int              `json:"vendor_id"`
	VendorName    string           `json:"vendor_name,omitempty"`
	Items         []PurchaseItem   `json:"items"`
	TotalAmount   decimal.Decimal  `json:"total_amount"`
	Payments      []Payment        `json:"payments"`
	PaidAmount    decimal.Decimal  `json:"paid_amount"`
	BalanceAmount decimal.Decimal  `json:"balance_amount"`
	Status        SettlementStatus `json:"status"`
	CreatedAt     time.Time        `json:"created_at"`
}

type LedgerPayment struct {
	ID            int             `json:"id"`
	TenantID      string          `json:"tenant_id"`
	PaymentNumber string          `json:"payment_number"`
	PartyType     PartyType       `json:"party_type"`
	PartyID       int             `json:"party_id"`
	Amount        decimal.Decimal `json:"amount"`
	TotalPaid     decimal.Decimal `json:"total_paid"`
	Discount      decimal.Decimal `json:"discount"`
	Payments      []Payment       `json:"payments"`
	Note          string          `json:"note,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

type ReturnItem struct {
	ProductID    int             `json:"product_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
}

type SalesReturn struct {
	ID                int             `json:"id"`
	TenantID          string          `json:"tenant_id"`
	ReturnNumber      string          `json:"return_number"`
	BillID            int             `json:"bill_id"`
	CustomerID        *int            `json:"customer_id,omitempty"`
	Items             []ReturnItem    `json:"items"`
	TotalRefundAmount decimal.Decimal `json:"total_refund_amount"`
	RefundMode        RefundMode      `json:"refund_mode"`
	RefundReference   string          `json:"refund_reference,omitempty"`
	Reason            string          `json:"reason,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

type PurchaseReturn struct {
	ID                int             `json:"id"`
	TenantID          string          `json:"tenant_id"`
	ReturnNumber      string          `json:"return_number"`
	PurchaseID        int             `json:"purchase_id"`
	VendorID          int             `json:"vendor_id"`
	Items             []ReturnItem    `json:"items"`
	TotalRefundAmount decimal.Decimal `json:"total_refund_amount"`
	Reason            string          `json:"reason,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

type Expense struct {
	ID          int             `json:"id"`
	TenantID    string          `json:"tenant_id"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	Date        time.Time       `json:"date"`
	CreatedAt   time.Time       `json:"created_at"`
}
