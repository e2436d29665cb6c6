package web

import (
	"net/http"

	"pos-backend/internal/core"

	"github.com/shopspring/decimal"
)

// createProduct handles POST /api/products.
func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromContext(r.Context())

	var body struct {
		Name          string          `json:"name"`
		HSN           string          `json:"hsn"`
		Barcode       *string         `json:"barcode"`
		PurchasePrice decimal.Decimal `json:"purchase_price"`
		Price         decimal.Decimal `json:"price"`
		GSTRate       decimal.Decimal `json:"gst_rate"`
		Stock         decimal.Decimal `json:"stock"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	product, err := h.svc.Products.CreateProduct(r.Context(), tenant, core.ProductInput{
		Name:          body.Name,
		HSN:           body.HSN,
		Barcode:       body.Barcode,
		PurchasePrice: body.PurchasePrice,
		Price:         body.Price,
		GSTRate:       body.GSTRate,
		Stock:         body.Stock,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeCreated(w, product)
}

// listProducts handles GET /api/products.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromContext(r.Context())
	products, err := h.svc.Products.GetProducts(r.Context(), tenant)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, products)
}

// getProduct handles GET /api/products/{id}.
func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromContext(r.Context())
	id, ok := idParam(r)
	if !ok {
		writeError(w, r, "invalid product id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	product, err := h.svc.Products.GetProduct(r.Context(), tenant, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, product)
}

// createCustomer handles POST /api/customers.
func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromContext(r.Context())

	var body struct {
		Name    string `json:"name"`
		Phone   string `json:"phone"`
		Email   string `json:"email"`
		Address string `json:"address"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	customer, err := h.svc.Parties.CreateCustomer(r.Context(), tenant, body.Name, body.Phone, body.Email, body.Address)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeCreated(w, customer)
}

// listCustomers handles GET /api/customers.
func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromContext(r.Context())
	customers, err := h.svc.Parties.GetCustomers(r.Context(), tenant)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, customers)
}

// getCustomer handles GET /api/customers/{id}.
func (h *Handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromContext(r.Context())
	id, ok := idParam(r)
	if !ok {
		writeError(w, r, "invalid customer id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	customer, err := h.svc.Parties.GetCustomer(r.Context(), tenant, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, customer)
}

// createVendor handles POST /api/vendors.
func (h *Handler) createVendor(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromContext(r.Context())

	var body struct {
		Name    string `json:"name"`
		Phone   string `json:"phone"`
		Email   string `json:"email"`
		Address string `json:"address"`
		GSTIN   string `json:"gstin"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	vendor, err := h.svc.Parties.CreateVendor(r.Context(), tenant, body.Name, body.Phone, body.Email, body.Address, body.GSTIN)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeCreated(w, vendor)
}

// listVendors handles GET /api/vendors.
func (h *Handler) listVendors(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromContext(r.Context())
	vendors, err := h.svc.Parties.GetVendors(r.Context(), tenant)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, vendors)
}

// getVendor handles GET /api/vendors/{id}.
func (h *Handler) getVendor(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromContext(r.Context())
	id, ok := idParam(r)
	if !ok {
		writeError(w, r, "invalid vendor id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	vendor, err := h.svc.Parties.GetVendor(r.Context(), tenant, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, vendor)
}

// createExpense handles POST /api/expenses.
func (h *Handler) createExpense(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromContext(r.Context())

	var input core.ExpenseInput
	if !decodeJSON(w, r, &input) {
		return
	}

	expense, err := h.svc.Expenses.CreateExpense(r.Context(), tenant, input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeCreated(w, expense)
}

// listExpenses handles GET /api/expenses.
func (h *Handler) listExpenses(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromContext(r.Context())
	expenses, err := h.svc.Expenses.GetExpenses(r.Context(), tenant)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, expenses)
}

// deleteExpense handles DELETE /api/expenses/{id}.
func (h *Handler) deleteExpense(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromContext(r.Context())
	id, ok := idParam(r)
	if !ok {
		writeError(w, r, "invalid expense id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	if err := h.svc.Expenses.DeleteExpense(r.Context(), tenant, id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
