package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	apiContext "traction/internal/api/context"
	"traction/internal/api/middleware"
	"traction/internal/pkg/errors"
	"traction/internal/platform/auth"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Validation("body", "invalid JSON body")
	}
	return nil
}

func param(r *http.Request, name string) string {
	if ps, ok := r.Context().Value(apiContext.Params).(httprouter.Params); ok {
		return ps.ByName(name)
	}
	return ""
}

func tenantFrom(r *http.Request) *middleware.TenantContext {
	tc, _ := r.Context().Value(apiContext.Tenant).(*middleware.TenantContext)
	return tc
}

func claimsFrom(r *http.Request) *auth.Claims {
	claims, _ := r.Context().Value(apiContext.Claims).(*auth.Claims)
	return claims
}
