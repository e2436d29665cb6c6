package web

import (
	"net/http"

	"pos-backend/internal/core"
)

// createSalesReturn handles POST /api/returns/sales.
func (h *Handler) createSalesReturn(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromContext(r.Context())

	var input core.SalesReturnInput
	if !decodeJSON(w, r, &input) {
		return
	}

	ret, err := h.svc.Returns.CreateSalesReturn(r.Context(), tenant, input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.svc.Audit.Record(r.Context(), tenant, actorID(r), "SALES_RETURN",
		"created sales return "+ret.ReturnNumber, map[string]any{
			"return_id":     ret.ID,
			"return_number": ret.ReturnNumber,
			"bill_id":       ret.BillID,
			"total_refund":  ret.TotalRefundAmount,
			"refund_mode":   ret.RefundMode,
		})

	writeCreated(w, ret)
}

// listSalesReturns handles GET /api/returns/sales.
func (h *Handler) listSalesReturns(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromContext(r.Context())
	returns, err := h.svc.Returns.GetSalesReturns(r.Context(), tenant)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, returns)
}

// createPurchaseReturn handles POST /api/returns/purchase.
func (h *Handler) createPurchaseReturn(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromContext(r.Context())

	var input core.PurchaseReturnInput
	if !decodeJSON(w, r, &input) {
		return
	}

	ret, err := h.svc.Returns.CreatePurchaseReturn(r.Context(), tenant, input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.svc.Audit.Record(r.Context(), tenant, actorID(r), "PURCHASE_RETURN",
		"created purchase return "+ret.ReturnNumber, map[string]any{
			"return_id":     ret.ID,
			"return_number": ret.ReturnNumber,
			"purchase_id":   ret.PurchaseID,
			"total_refund":  ret.TotalRefundAmount,
		})

	writeCreated(w, ret)
}

// listPurchaseReturns handles GET /api/returns/purchase.
func (h *Handler) listPurchaseReturns(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromContext(r.Context())
	returns, err := h.svc.Returns.GetPurchaseReturns(r.Context(), tenant)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, returns)
}
