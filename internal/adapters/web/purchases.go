package web

import (
	"net/http"

	"pos-backend/internal/core"
)

// createPurchase handles POST /api/purchases.
func (h *Handler) createPurchase(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromContext(r.Context())

	var input core.PurchaseInput
	if !decodeJSON(w, r, &input) {
		return
	}

	purchase, err := h.svc.Purchases.CreatePurchase(r.Context(), tenant, input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.svc.Audit.Record(r.Context(), tenant, actorID(r), "CREATE_PURCHASE",
		"created purchase "+purchase.VoucherNumber, map[string]any{
			"purchase_id":    purchase.ID,
			"voucher_number": purchase.VoucherNumber,
			"total_amount":   purchase.TotalAmount,
			"vendor_id":      purchase.VendorID,
		})

	writeCreated(w, purchase)
}

// listPurchases handles GET /api/purchases.
func (h *Handler) listPurchases(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromContext(r.Context())
	purchases, err := h.svc.Purchases.GetPurchases(r.Context(), tenant)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, purchases)
}

// getPurchase handles GET /api/purchases/{id}.
func (h *Handler) getPurchase(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromContext(r.Context())
	id, ok := idParam(r)
	if !ok {
		writeError(w, r, "invalid purchase id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	purchase, err := h.svc.Purchases.GetPurchase(r.Context(), tenant, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, purchase)
}
