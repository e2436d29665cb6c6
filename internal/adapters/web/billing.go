package web

import (
	"net/http"

	"pos-backend/internal/core"
)

// actorID identifies who performed a mutation, for the audit trail.
// Identity lives in the gateway in front of this service, so the actor
// arrives as a plain header and may be empty.
func actorID(r *http.Request) string {
	return r.Header.Get("X-Actor-ID")
}

// createBill handles POST /api/bills.
func (h *Handler) createBill(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromContext(r.Context())

	var input core.BillInput
	if !decodeJSON(w, r, &input) {
		return
	}

	bill, err := h.svc.Billing.CreateBill(r.Context(), tenant, input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.svc.Audit.Record(r.Context(), tenant, actorID(r), "CREATE_BILL",
		"created bill "+bill.BillNumber, map[string]any{
			"bill_id":     bill.ID,
			"bill_number": bill.BillNumber,
			"grand_total": bill.GrandTotal,
			"status":      bill.Status,
		})

	writeCreated(w, bill)
}

// listBills handles GET /api/bills.
func (h *Handler) listBills(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromContext(r.Context())
	bills, err := h.svc.Billing.GetBills(r.Context(), tenant)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, bills)
}

// getBill handles GET /api/bills/{id}.
func (h *Handler) getBill(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromContext(r.Context())
	id, ok := idParam(r)
	if !ok {
		writeError(w, r, "invalid bill id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	bill, err := h.svc.Billing.GetBill(r.Context(), tenant, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, bill)
}
