package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"
	apiContext "traction/internal/api/context"
	"traction/internal/api/handlers"
	"traction/internal/api/middleware"
	"traction/internal/pkg/errors"
	"traction/internal/platform/auth"
)

type Dependencies struct {
	AuthHandler       *handlers.AuthHandler
	OrgHandler        *handlers.OrgHandler
	InviteHandler     *handlers.InviteHandler
	SettingsHandler   *handlers.SettingsHandler
	CompanyHandler    *handlers.CompanyHandler
	ContactHandler    *handlers.ContactHandler
	ProgramHandler    *handlers.ProgramHandler
	CommitmentHandler *handlers.CommitmentHandler
	MilestoneHandler  *handlers.MilestoneHandler
	MeetingHandler    *handlers.MeetingHandler
	AuditHandler      *handlers.AuditHandler
	HealthHandler     *handlers.HealthHandler
	AuthMiddleware    *middleware.AuthMiddleware
	TenantMiddleware  *middleware.TenantMiddleware
}

func NewRouter(deps *Dependencies) *httprouter.Router {
	router := httprouter.New()

	router.GET("/healthz", wrap(deps.HealthHandler.Check))

	// Authentication
	router.POST("/api/v1/auth/signup", wrap(deps.AuthHandler.Signup))
	router.POST("/api/v1/auth/login", wrap(deps.AuthHandler.Login))
	router.POST("/api/v1/auth/refresh", wrap(deps.AuthHandler.Refresh))
	router.POST("/api/v1/auth/switch", chain(deps.AuthHandler.SwitchOrganization, deps.AuthMiddleware.Handle))
	router.POST("/api/v1/invitations/accept", wrap(deps.InviteHandler.Accept))

	authMid := deps.AuthMiddleware
	tenantMid := deps.TenantMiddleware

	// Organization management
	router.GET("/api/v1/organizations/current",
		chain(deps.OrgHandler.GetCurrent, authMid.Handle, tenantMid.Handle))
	router.PATCH("/api/v1/organizations/current",
		chain(deps.OrgHandler.Update, authMid.Handle, tenantMid.Handle, requireRole(auth.RoleAdmin)))
	router.GET("/api/v1/organizations/members",
		chain(deps.OrgHandler.ListMembers, authMid.Handle, tenantMid.Handle, requireRole(auth.RoleAdmin)))
	router.PATCH("/api/v1/organizations/members/:user_id/role",
		chain(deps.OrgHandler.UpdateMemberRole, authMid.Handle, tenantMid.Handle, requireRole(auth.RoleOwner)))
	router.DELETE("/api/v1/organizations/members/:user_id",
		chain(deps.OrgHandler.RemoveMember, authMid.Handle, tenantMid.Handle, requireRole(auth.RoleOwner)))

	// Settings and integrations
	router.GET("/api/v1/settings",
		chain(deps.SettingsHandler.Get, authMid.Handle, tenantMid.Handle, requireRole(auth.RoleAdmin)))
	router.PUT("/api/v1/settings",
		chain(deps.SettingsHandler.Update, authMid.Handle, tenantMid.Handle, requireRole(auth.RoleAdmin)))
	router.PUT("/api/v1/settings/integrations/fireflies",
		chain(deps.SettingsHandler.ConfigureFireflies, authMid.Handle, tenantMid.Handle, requireRole(auth.RoleAdmin)))
	router.PUT("/api/v1/settings/integrations/ai",
		chain(deps.SettingsHandler.ConfigureAI, authMid.Handle, tenantMid.Handle, requireRole(auth.RoleAdmin)))

	// Invitations
	router.POST("/api/v1/invitations",
		chain(deps.InviteHandler.Create, authMid.Handle, tenantMid.Handle, requireRole(auth.RoleAdmin)))
	router.GET("/api/v1/invitations",
		chain(deps.InviteHandler.List, authMid.Handle, tenantMid.Handle, requireRole(auth.RoleAdmin)))
	router.DELETE("/api/v1/invitations/:invitation_id",
		chain(deps.InviteHandler.Revoke, authMid.Handle, tenantMid.Handle, requireRole(auth.RoleAdmin)))
	router.GET("/api/v1/invitations/:invitation_id/qr",
		chain(deps.InviteHandler.GetQRCode, authMid.Handle, tenantMid.Handle, requireRole(auth.RoleAdmin)))

	// Companies
	router.POST("/api/v1/companies",
		chain(deps.CompanyHandler.Create, authMid.Handle, tenantMid.Handle, requireRole(auth.RoleEditor)))
	router.GET("/api/v1/companies",
		chain(deps.CompanyHandler.List, authMid.Handle, tenantMid.Handle))
	router.GET("/api/v1/companies/:company_id",
		chain(deps.CompanyHandler.Get, authMid.Handle, tenantMid.Handle))
	router.PATCH("/api/v1/companies/:company_id",
		chain(deps.CompanyHandler.Update, authMid.Handle, tenantMid.Handle, requireRole(auth.RoleEditor)))
	router.DELETE("/api/v1/companies/:company_id",
		chain(deps.CompanyHandler.Delete, authMid.Handle, tenantMid.Handle, requireRole(auth.RoleEditor)))
	router.POST("/api/v1/companies/:company_id/contacts/:contact_id",
		chain(deps.CompanyHandler.LinkContact, authMid.Handle, tenantMid.Handle, requireRole(auth.RoleEditor)))
	router.DELETE("/api/v1/companies/:company_id/contacts/:contact_id",
		chain(deps.CompanyHandler.UnlinkContact, authMid.Handle, tenantMid.Handle, requireRole(auth.RoleEditor)))

	// Company milestone progression
	router.GET("/api/v1/companies/:company_id/milestone",
		chain(deps.MilestoneHandler.GetCurrent, authMid.Handle, tenantMid.Handle))
	router.PUT("/api/v1/companies/:company_id/milestone",
		chain(deps.MilestoneHandler.SetCurrent, authMid.Handle, tenantMid.Handle, requireRole(auth.RoleEditor)))
	router.GET("/api/v1/companies/:company_id/milestone/history",
		chain(deps.MilestoneHandler.History, authMid.Handle, tenantMid.Handle))

	// Milestone catalog
	router.GET("/api/v1/milestone-tracks",
		chain(deps.MilestoneHandler.ListTracks, authMid.Handle, tenantMid.Handle))
	router.GET("/api/v1/milestone-tracks/:track_id/definitions",
		chain(deps.MilestoneHandler.ListDefinitions, authMid.Handle, tenantMid.Handle))

	// Contacts
	router.POST("/api/v1/contacts",
		chain(deps.ContactHandler.Create, authMid.Handle, tenantMid.Handle, requireRole(auth.RoleEditor)))
	router.GET("/api/v1/contacts",
		chain(deps.ContactHandler.List, authMid.Handle, tenantMid.Handle))
	router.GET("/api/v1/contacts/:contact_id",
		chain(deps.ContactHandler.Get, authMid.Handle, tenantMid.Handle))
	router.PATCH("/api/v1/contacts/:contact_id",
		chain(deps.ContactHandler.Update, authMid.Handle, tenantMid.Handle, requireRole(auth.RoleEditor)))
	router.DELETE("/api/v1/contacts/:contact_id",
		chain(deps.ContactHandler.Delete, authMid.Handle, tenantMid.Handle, requireRole(auth.RoleEditor)))
	router.POST("/api/v1/contacts/:contact_id/emails",
		chain(deps.ContactHandler.AddEmail, authMid.Handle, tenantMid.Handle, requireRole(auth.RoleEditor)))
	router.PATCH("/api/v1/contacts/:contact_id/emails/:email_id/primary",
		chain(deps.ContactHandler.SetPrimaryEmail, authMid.Handle, tenantMid.Handle, requireRole(auth.RoleEditor)))
	router.DELETE("/api/v1/contacts/:contact_id/emails/:email_id",
		chain(deps.ContactHandler.DeleteEmail, authMid.Handle, tenantMid.Handle, requireRole(auth.RoleEditor)))

	// Programs
	router.POST("/api/v1/programs",
		chain(deps.ProgramHandler.Create, authMid.Handle, tenantMid.Handle, requireRole(auth.RoleEditor)))
	router.GET("/api/v1/programs",
		chain(deps.ProgramHandler.List, authMid.Handle, tenantMid.Handle))
	router.GET("/api/v1/programs/:program_id",
		chain(deps.ProgramHandler.Get, authMid.Handle, tenantMid.Handle))
	router.PATCH("/api/v1/programs/:program_id",
		chain(deps.ProgramHandler.Update, authMid.Handle, tenantMid.Handle, requireRole(auth.RoleEditor)))
	router.DELETE("/api/v1/programs/:program_id",
		chain(deps.ProgramHandler.Delete, authMid.Handle, tenantMid.Handle, requireRole(auth.RoleEditor)))
	router.POST("/api/v1/programs/:program_id/enrollments",
		chain(deps.ProgramHandler.BulkEnroll, authMid.Handle, tenantMid.Handle, requireRole(auth.RoleEditor)))
	router.GET("/api/v1/programs/:program_id/enrollments",
		chain(deps.ProgramHandler.ListEnrollments, authMid.Handle, tenantMid.Handle))

	// Commitments
	router.POST("/api/v1/commitments",
		chain(deps.CommitmentHandler.Create, authMid.Handle, tenantMid.Handle, requireRole(auth.RoleEditor)))
	router.GET("/api/v1/companies/:company_id/commitments",
		chain(deps.CommitmentHandler.ListByCompany, authMid.Handle, tenantMid.Handle))
	router.GET("/api/v1/commitments/:commitment_id",
		chain(deps.CommitmentHandler.Get, authMid.Handle, tenantMid.Handle))
	router.PATCH("/api/v1/commitments/:commitment_id",
		chain(deps.CommitmentHandler.Update, authMid.Handle, tenantMid.Handle, requireRole(auth.RoleEditor)))
	router.PATCH("/api/v1/commitments/:commitment_id/status",
		chain(deps.CommitmentHandler.SetStatus, authMid.Handle, tenantMid.Handle, requireRole(auth.RoleEditor)))
	router.DELETE("/api/v1/commitments/:commitment_id",
		chain(deps.CommitmentHandler.Delete, authMid.Handle, tenantMid.Handle, requireRole(auth.RoleEditor)))

	// Meeting import pipeline
	router.POST("/api/v1/meetings/sync",
		chain(deps.MeetingHandler.Sync, authMid.Handle, tenantMid.Handle, requireRole(auth.RoleAdmin)))
	router.GET("/api/v1/meetings/staged",
		chain(deps.MeetingHandler.ListStaged, authMid.Handle, tenantMid.Handle))
	router.POST("/api/v1/meetings/import",
		chain(deps.MeetingHandler.Import, authMid.Handle, tenantMid.Handle, requireRole(auth.RoleAdmin)))
	router.POST("/api/v1/meetings/staged/:staged_id/exclude",
		chain(deps.MeetingHandler.Exclude, authMid.Handle, tenantMid.Handle, requireRole(auth.RoleEditor)))
	router.POST("/api/v1/meetings/staged/:staged_id/exclude/undo",
		chain(deps.MeetingHandler.UndoExclude, authMid.Handle, tenantMid.Handle, requireRole(auth.RoleEditor)))
	router.GET("/api/v1/interactions",
		chain(deps.MeetingHandler.ListInteractions, authMid.Handle, tenantMid.Handle))
	router.GET("/api/v1/interactions/:interaction_id",
		chain(deps.MeetingHandler.GetInteraction, authMid.Handle, tenantMid.Handle))
	router.GET("/api/v1/interactions/:interaction_id/insights",
		chain(deps.MeetingHandler.GetInsights, authMid.Handle, tenantMid.Handle))

	// Audit log
	router.GET("/api/v1/audit",
		chain(deps.AuditHandler.List, authMid.Handle, tenantMid.Handle, requireRole(auth.RoleAdmin)))

	return router
}

// Helper function to chain middlewares
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// Convert http.HandlerFunc to httprouter.Handle
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		// Inject params into context
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}

// requireRole gates a route by the role ordering viewer < editor < admin <
// owner. This is the single place role checks are expressed; storage
// re-checks writes independently.
func requireRole(min auth.Role) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims)
			if !ok {
				errors.Write(w, errors.Unauthenticated())
				return
			}
			if !claims.Role.AtLeast(min) {
				errors.Write(w, errors.Forbidden("insufficient permissions"))
				return
			}
			next(w, r)
		}
	}
}
