package middleware

import (
	"context"
	"database/sql"
	"net/http"

	apiContext "traction/internal/api/context"
	"traction/internal/pkg/errors"
	"traction/internal/platform/auth"
	"traction/internal/platform/database"
	"traction/internal/platform/models"
	"traction/internal/platform/repositories"
)

// TenantContext carries everything request handlers need for the resolved
// tenant: the organization, its feature flags and a policy-scoped DB handle.
type TenantContext struct {
	Org      *models.Organization
	Settings *models.TenantSettings
	Claims   *auth.Claims
	DB       *database.TenantDB
}

type TenantMiddleware struct {
	orgRepo      *repositories.OrganizationRepository
	settingsRepo *repositories.SettingsRepository
	db           *sql.DB
}

func NewTenantMiddleware(orgRepo *repositories.OrganizationRepository, settingsRepo *repositories.SettingsRepository, db *sql.DB) *TenantMiddleware {
	return &TenantMiddleware{
		orgRepo:      orgRepo,
		settingsRepo: settingsRepo,
		db:           db,
	}
}

func (m *TenantMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims)
		if !ok {
			errors.Write(w, errors.Unauthenticated())
			return
		}

		org, err := m.orgRepo.GetByID(claims.TenantID)
		if err != nil {
			errors.WriteError(w, http.StatusInternalServerError, string(errors.KindInternal), "Failed to load organization", nil)
			return
		}
		if org == nil {
			errors.Write(w, errors.Forbidden("organization not found"))
			return
		}

		settings, err := m.settingsRepo.Get(org.ID)
		if err != nil {
			errors.WriteError(w, http.StatusInternalServerError, string(errors.KindInternal), "Failed to load organization settings", nil)
			return
		}

		ctx := context.WithValue(r.Context(), apiContext.Tenant, &TenantContext{
			Org:      org,
			Settings: settings,
			Claims:   claims,
			DB:       database.Scope(m.db, claims),
		})

		next(w, r.WithContext(ctx))
	}
}
