package handlers

import (
	"net/http"
	"strconv"

	"traction/internal/engine/companies"
	"traction/internal/pkg/errors"
	"traction/internal/platform/audit"
)

// CompanyHandler builds its repository per request from the tenant-scoped DB
// handle resolved by the middleware, so a handler can never hold a connection
// bound to the wrong tenant.
type CompanyHandler struct {
	audit *audit.Logger
}

func NewCompanyHandler(auditLog *audit.Logger) *CompanyHandler {
	return &CompanyHandler{audit: auditLog}
}

func (h *CompanyHandler) Create(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	repo := companies.NewRepository(tc.DB)

	var in companies.Input
	if err := decode(r, &in); err != nil {
		errors.Write(w, err)
		return
	}

	company, err := repo.Create(r.Context(), &in)
	if err != nil {
		errors.Write(w, err)
		return
	}

	h.audit.Log(tc.Claims, "company.create", "company", company.ID, nil)
	writeJSON(w, http.StatusCreated, company)
}

func (h *CompanyHandler) Get(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	repo := companies.NewRepository(tc.DB)

	company, err := repo.GetByID(r.Context(), param(r, "company_id"))
	if err != nil {
		errors.Write(w, err)
		return
	}
	if company == nil {
		errors.Write(w, errors.NotFound("company"))
		return
	}
	writeJSON(w, http.StatusOK, company)
}

func (h *CompanyHandler) List(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	repo := companies.NewRepository(tc.DB)

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	list, err := repo.List(r.Context(), companies.Filter{
		Query:    q.Get("q"),
		Industry: q.Get("industry"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		errors.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"companies": list})
}

func (h *CompanyHandler) Update(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	repo := companies.NewRepository(tc.DB)
	id := param(r, "company_id")

	var in companies.Input
	if err := decode(r, &in); err != nil {
		errors.Write(w, err)
		return
	}

	company, err := repo.Update(r.Context(), id, &in)
	if err != nil {
		errors.Write(w, err)
		return
	}

	h.audit.Log(tc.Claims, "company.update", "company", id, nil)
	writeJSON(w, http.StatusOK, company)
}

func (h *CompanyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	repo := companies.NewRepository(tc.DB)
	id := param(r, "company_id")

	if err := repo.Delete(r.Context(), id); err != nil {
		errors.Write(w, err)
		return
	}

	h.audit.Log(tc.Claims, "company.delete", "company", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *CompanyHandler) LinkContact(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	repo := companies.NewRepository(tc.DB)
	companyID := param(r, "company_id")
	contactID := param(r, "contact_id")

	if err := repo.LinkContact(r.Context(), companyID, contactID); err != nil {
		errors.Write(w, err)
		return
	}

	h.audit.Log(tc.Claims, "company.link_contact", "company", companyID,
		map[string]interface{}{"contact_id": contactID})
	w.WriteHeader(http.StatusNoContent)
}

func (h *CompanyHandler) UnlinkContact(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	repo := companies.NewRepository(tc.DB)
	companyID := param(r, "company_id")
	contactID := param(r, "contact_id")

	if err := repo.UnlinkContact(r.Context(), companyID, contactID); err != nil {
		errors.Write(w, err)
		return
	}

	h.audit.Log(tc.Claims, "company.unlink_contact", "company", companyID,
		map[string]interface{}{"contact_id": contactID})
	w.WriteHeader(http.StatusNoContent)
}
