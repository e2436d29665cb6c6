package web

import (
	"net/http"

	"pos-backend/internal/core"
)

// createLedgerPayment handles POST /api/ledger/payments.
func (h *Handler) createLedgerPayment(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromContext(r.Context())

	var input core.LedgerPaymentInput
	if !decodeJSON(w, r, &input) {
		return
	}

	payment, err := h.svc.Ledger.CreateLedgerPayment(r.Context(), tenant, input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.svc.Audit.Record(r.Context(), tenant, actorID(r), "LEDGER_PAYMENT",
		"recorded ledger payment "+payment.PaymentNumber, map[string]any{
			"payment_id":     payment.ID,
			"payment_number": payment.PaymentNumber,
			"party_type":     payment.PartyType,
			"party_id":       payment.PartyID,
			"total_paid":     payment.TotalPaid,
		})

	writeCreated(w, payment)
}

// listLedgerPayments handles GET /api/ledger/payments.
func (h *Handler) listLedgerPayments(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromContext(r.Context())
	payments, err := h.svc.Ledger.GetLedgerPayments(r.Context(), tenant)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, payments)
}

// getLedgerPayment handles GET /api/ledger/payments/{id}.
func (h *Handler) getLedgerPayment(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromContext(r.Context())
	id, ok := idParam(r)
	if !ok {
		writeError(w, r, "invalid payment id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	payment, err := h.svc.Ledger.GetLedgerPayment(r.Context(), tenant, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, payment)
}
