package handlers

import (
	"net/http"

	"traction/internal/engine/commitments"
	"traction/internal/pkg/errors"
	"traction/internal/platform/audit"
)

type CommitmentHandler struct {
	audit *audit.Logger
}

func NewCommitmentHandler(auditLog *audit.Logger) *CommitmentHandler {
	return &CommitmentHandler{audit: auditLog}
}

func (h *CommitmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	repo := commitments.NewRepository(tc.DB)

	var in commitments.Input
	if err := decode(r, &in); err != nil {
		errors.Write(w, err)
		return
	}

	commitment, err := repo.Create(r.Context(), &in)
	if err != nil {
		errors.Write(w, err)
		return
	}

	h.audit.Log(tc.Claims, "commitment.create", "commitment", commitment.ID, nil)
	writeJSON(w, http.StatusCreated, commitment)
}

func (h *CommitmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	repo := commitments.NewRepository(tc.DB)

	commitment, err := repo.GetByID(r.Context(), param(r, "commitment_id"))
	if err != nil {
		errors.Write(w, err)
		return
	}
	if commitment == nil {
		errors.Write(w, errors.NotFound("commitment"))
		return
	}
	writeJSON(w, http.StatusOK, commitment)
}

func (h *CommitmentHandler) ListByCompany(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	repo := commitments.NewRepository(tc.DB)

	list, err := repo.ListByCompany(r.Context(), param(r, "company_id"))
	if err != nil {
		errors.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"commitments": list})
}

func (h *CommitmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	repo := commitments.NewRepository(tc.DB)
	id := param(r, "commitment_id")

	var in commitments.Input
	if err := decode(r, &in); err != nil {
		errors.Write(w, err)
		return
	}

	commitment, err := repo.Update(r.Context(), id, &in)
	if err != nil {
		errors.Write(w, err)
		return
	}

	h.audit.Log(tc.Claims, "commitment.update", "commitment", id, nil)
	writeJSON(w, http.StatusOK, commitment)
}

func (h *CommitmentHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	repo := commitments.NewRepository(tc.DB)
	id := param(r, "commitment_id")

	var change commitments.StatusChange
	if err := decode(r, &change); err != nil {
		errors.Write(w, err)
		return
	}

	commitment, err := repo.SetStatus(r.Context(), id, change)
	if err != nil {
		errors.Write(w, err)
		return
	}

	h.audit.Log(tc.Claims, "commitment.set_status", "commitment", id,
		map[string]interface{}{"status": change.Status})
	writeJSON(w, http.StatusOK, commitment)
}

func (h *CommitmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	repo := commitments.NewRepository(tc.DB)
	id := param(r, "commitment_id")

	if err := repo.Delete(r.Context(), id); err != nil {
		errors.Write(w, err)
		return
	}

	h.audit.Log(tc.Claims, "commitment.delete", "commitment", id, nil)
	w.WriteHeader(http.StatusNoContent)
}
