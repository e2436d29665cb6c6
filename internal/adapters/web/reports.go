package web

import (
	"net/http"
)

// pnlReport handles GET /api/reports/pnl?start_date=&end_date=.
func (h *Handler) pnlReport(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromContext(r.Context())
	start, end, err := dateRangeParams(r)
	if err != nil {
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	report, err := h.svc.Reports.PnL(r.Context(), tenant, start, end)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, report)
}

// collectionReport handles GET /api/reports/collection?start_date=&end_date=.
func (h *Handler) collectionReport(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromContext(r.Context())
	start, end, err := dateRangeParams(r)
	if err != nil {
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	report, err := h.svc.Reports.Collection(r.Context(), tenant, start, end)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, report)
}

// dashboardStats handles GET /api/reports/dashboard.
func (h *Handler) dashboardStats(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromContext(r.Context())
	stats, err := h.svc.Reports.Dashboard(r.Context(), tenant)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, stats)
}
