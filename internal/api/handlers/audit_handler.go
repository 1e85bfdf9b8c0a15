package handlers

import (
	"net/http"
	"strconv"

	"traction/internal/pkg/errors"
	"traction/internal/platform/audit"
)

type AuditHandler struct {
	audit *audit.Logger
}

func NewAuditHandler(auditLog *audit.Logger) *AuditHandler {
	return &AuditHandler{audit: auditLog}
}

func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	entries, err := h.audit.List(tc.Org.ID, limit, offset)
	if err != nil {
		errors.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}
