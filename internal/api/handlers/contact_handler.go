package handlers

import (
	"net/http"
	"strconv"

	"traction/internal/engine/contacts"
	"traction/internal/pkg/errors"
	"traction/internal/platform/audit"
)

type ContactHandler struct {
	audit *audit.Logger
}

func NewContactHandler(auditLog *audit.Logger) *ContactHandler {
	return &ContactHandler{audit: auditLog}
}

func (h *ContactHandler) Create(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	repo := contacts.NewRepository(tc.DB)

	var in contacts.Input
	if err := decode(r, &in); err != nil {
		errors.Write(w, err)
		return
	}

	contact, err := repo.Create(r.Context(), &in)
	if err != nil {
		errors.Write(w, err)
		return
	}

	h.audit.Log(tc.Claims, "contact.create", "contact", contact.ID, nil)
	writeJSON(w, http.StatusCreated, contact)
}

func (h *ContactHandler) Get(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	repo := contacts.NewRepository(tc.DB)

	contact, err := repo.GetByID(r.Context(), param(r, "contact_id"))
	if err != nil {
		errors.Write(w, err)
		return
	}
	if contact == nil {
		errors.Write(w, errors.NotFound("contact"))
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	repo := contacts.NewRepository(tc.DB)

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	list, err := repo.List(r.Context(), contacts.Filter{
		Query:  q.Get("q"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		errors.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"contacts": list})
}

func (h *ContactHandler) Update(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	repo := contacts.NewRepository(tc.DB)
	id := param(r, "contact_id")

	var in contacts.Input
	if err := decode(r, &in); err != nil {
		errors.Write(w, err)
		return
	}

	contact, err := repo.Update(r.Context(), id, &in)
	if err != nil {
		errors.Write(w, err)
		return
	}

	h.audit.Log(tc.Claims, "contact.update", "contact", id, nil)
	writeJSON(w, http.StatusOK, contact)
}

func (h *ContactHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	repo := contacts.NewRepository(tc.DB)
	id := param(r, "contact_id")

	if err := repo.Delete(r.Context(), id); err != nil {
		errors.Write(w, err)
		return
	}

	h.audit.Log(tc.Claims, "contact.delete", "contact", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

type addEmailRequest struct {
	Email     string `json:"email"`
	EmailType string `json:"email_type"`
	IsPrimary bool   `json:"is_primary"`
}

func (h *ContactHandler) AddEmail(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	repo := contacts.NewRepository(tc.DB)
	contactID := param(r, "contact_id")

	var req addEmailRequest
	if err := decode(r, &req); err != nil {
		errors.Write(w, err)
		return
	}

	email, err := repo.AddEmail(r.Context(), contactID, req.Email, req.EmailType, req.IsPrimary)
	if err != nil {
		errors.Write(w, err)
		return
	}

	h.audit.Log(tc.Claims, "contact.add_email", "contact", contactID,
		map[string]interface{}{"email_id": email.ID})
	writeJSON(w, http.StatusCreated, email)
}

func (h *ContactHandler) SetPrimaryEmail(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	repo := contacts.NewRepository(tc.DB)
	contactID := param(r, "contact_id")
	emailID := param(r, "email_id")

	if err := repo.SetPrimary(r.Context(), contactID, emailID); err != nil {
		errors.Write(w, err)
		return
	}

	h.audit.Log(tc.Claims, "contact.set_primary_email", "contact", contactID,
		map[string]interface{}{"email_id": emailID})
	w.WriteHeader(http.StatusNoContent)
}

func (h *ContactHandler) DeleteEmail(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	repo := contacts.NewRepository(tc.DB)
	contactID := param(r, "contact_id")
	emailID := param(r, "email_id")

	if err := repo.DeleteEmail(r.Context(), contactID, emailID); err != nil {
		errors.Write(w, err)
		return
	}

	h.audit.Log(tc.Claims, "contact.delete_email", "contact", contactID,
		map[string]interface{}{"email_id": emailID})
	w.WriteHeader(http.StatusNoContent)
}
