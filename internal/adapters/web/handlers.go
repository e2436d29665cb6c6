package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"pos-backend/internal/core"

	"github.com/go-chi/chi/v5"
)

// Services bundles the engines the HTTP surface exposes.
type Services struct {
	Products  core.ProductService
	Parties   core.PartyService
	Billing   core.BillingService
	Purchases core.PurchaseService
	Ledger    core.LedgerService
	Returns   core.ReturnsService
	Expenses  core.ExpenseService
	Reports   core.ReportingService
	Audit     core.AuditService
}

// Handler holds the wired services and the chi router.
type Handler struct {
	svc    Services
	router chi.Router
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc Services, allowedOrigins string) http.Handler {
	h := &Handler{svc: svc}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(Recoverer)
	r.Use(CORS(allowedOrigins))

	r.Get("/api/health", h.health)

	// All data routes are tenant-scoped and JSON with a 1 MB body cap.
	r.Group(func(r chi.Router) {
		r.Use(RequireTenant)
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		r.Post("/api/products", h.createProduct)
		r.Get("/api/products", h.listProducts)
		r.Get("/api/products/{id}", h.getProduct)

		r.Post("/api/customers", h.createCustomer)
		r.Get("/api/customers", h.listCustomers)
		r.Get("/api/customers/{id}", h.getCustomer)

		r.Post("/api/vendors", h.createVendor)
		r.Get("/api/vendors", h.listVendors)
		r.Get("/api/vendors/{id}", h.getVendor)

		r.Post("/api/bills", h.createBill)
		r.Get("/api/bills", h.listBills)
		r.Get("/api/bills/{id}", h.getBill)

		r.Post("/api/purchases", h.createPurchase)
		r.Get("/api/purchases", h.listPurchases)
		r.Get("/api/purchases/{id}", h.getPurchase)

		r.Post("/api/ledger/payments", h.createLedgerPayment)
		r.Get("/api/ledger/payments", h.listLedgerPayments)
		r.Get("/api/ledger/payments/{id}", h.getLedgerPayment)

		r.Post("/api/returns/sales", h.createSalesReturn)
		r.Get("/api/returns/sales", h.listSalesReturns)
		r.Post("/api/returns/purchase", h.createPurchaseReturn)
		r.Get("/api/returns/purchase", h.listPurchaseReturns)

		r.Post("/api/expenses", h.createExpense)
		r.Get("/api/expenses", h.listExpenses)
		r.Delete("/api/expenses/{id}", h.deleteExpense)

		r.Get("/api/reports/pnl", h.pnlReport)
		r.Get("/api/reports/collection", h.collectionReport)
		r.Get("/api/reports/dashboard", h.dashboardStats)
	})

	h.router = r
	return r
}

// health returns service status.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
	}
	writeJSON(w, response{Status: "ok"})
}

// idParam extracts the numeric {id} URL parameter.
func idParam(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	return id, err == nil && id > 0
}

// dateRangeParams parses start_date and end_date query params
// (YYYY-MM-DD). Both default to today when absent.
func dateRangeParams(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now()
	start, end := now, now

	if s := r.URL.Query().Get("start_date"); s != "" {
		parsed, err := time.Parse("2006-01-02", s)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid start_date, expected YYYY-MM-DD")
		}
		start = parsed
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		parsed, err := time.Parse("2006-01-02", s)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid end_date, expected YYYY-MM-DD")
		}
		end = parsed
	}
	return start, end, nil
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
