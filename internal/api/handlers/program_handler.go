package handlers

import (
	"net/http"

	"traction/internal/engine/programs"
	"traction/internal/pkg/errors"
	"traction/internal/platform/audit"
)

type ProgramHandler struct {
	audit *audit.Logger
}

func NewProgramHandler(auditLog *audit.Logger) *ProgramHandler {
	return &ProgramHandler{audit: auditLog}
}

func (h *ProgramHandler) Create(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	repo := programs.NewRepository(tc.DB)

	var in programs.Input
	if err := decode(r, &in); err != nil {
		errors.Write(w, err)
		return
	}

	program, err := repo.Create(r.Context(), &in)
	if err != nil {
		errors.Write(w, err)
		return
	}

	h.audit.Log(tc.Claims, "program.create", "program", program.ID, nil)
	writeJSON(w, http.StatusCreated, program)
}

func (h *ProgramHandler) Get(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	repo := programs.NewRepository(tc.DB)

	program, err := repo.GetByID(r.Context(), param(r, "program_id"))
	if err != nil {
		errors.Write(w, err)
		return
	}
	if program == nil {
		errors.Write(w, errors.NotFound("program"))
		return
	}
	writeJSON(w, http.StatusOK, program)
}

func (h *ProgramHandler) List(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	repo := programs.NewRepository(tc.DB)

	list, err := repo.List(r.Context())
	if err != nil {
		errors.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"programs": list})
}

func (h *ProgramHandler) Update(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	repo := programs.NewRepository(tc.DB)
	id := param(r, "program_id")

	var in programs.Input
	if err := decode(r, &in); err != nil {
		errors.Write(w, err)
		return
	}

	program, err := repo.Update(r.Context(), id, &in)
	if err != nil {
		errors.Write(w, err)
		return
	}

	h.audit.Log(tc.Claims, "program.update", "program", id, nil)
	writeJSON(w, http.StatusOK, program)
}

func (h *ProgramHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	repo := programs.NewRepository(tc.DB)
	id := param(r, "program_id")

	if err := repo.Delete(r.Context(), id); err != nil {
		errors.Write(w, err)
		return
	}

	h.audit.Log(tc.Claims, "program.delete", "program", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

type bulkEnrollRequest struct {
	CompanyIDs []string `json:"company_ids"`
}

// BulkEnroll returns a per-company outcome list and a 207 when any item
// failed, mirroring the partial-success shape of the meeting import.
func (h *ProgramHandler) BulkEnroll(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	repo := programs.NewRepository(tc.DB)
	programID := param(r, "program_id")

	var req bulkEnrollRequest
	if err := decode(r, &req); err != nil {
		errors.Write(w, err)
		return
	}
	if len(req.CompanyIDs) == 0 {
		errors.Write(w, errors.Validation("company_ids", "at least one company is required"))
		return
	}

	program, err := repo.GetByID(r.Context(), programID)
	if err != nil {
		errors.Write(w, err)
		return
	}
	if program == nil {
		errors.Write(w, errors.NotFound("program"))
		return
	}

	results, enrolled := repo.BulkEnroll(r.Context(), programID, req.CompanyIDs)

	h.audit.Log(tc.Claims, "program.bulk_enroll", "program", programID,
		map[string]interface{}{"requested": len(req.CompanyIDs), "enrolled": enrolled})

	status := http.StatusOK
	if enrolled < len(req.CompanyIDs) {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, map[string]interface{}{"results": results, "enrolled": enrolled})
}

func (h *ProgramHandler) ListEnrollments(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	repo := programs.NewRepository(tc.DB)

	enrollments, err := repo.ListEnrollments(r.Context(), param(r, "program_id"))
	if err != nil {
		errors.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"enrollments": enrollments})
}
