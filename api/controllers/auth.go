package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/livelihood-backend/api/middleware"
	"github.com/angelmondragon/livelihood-backend/api/responses"
	"github.com/angelmondragon/livelihood-backend/api/validators"
	"github.com/angelmondragon/livelihood-backend/internal/auth"
	"github.com/angelmondragon/livelihood-backend/pkg/logger"
)

// Most /auth endpoints are anonymous, so they only decode a body and hand it to
// the service. Authorization lives in the service and the rate limiters.

func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return authEndpoint(svc, logg, http.StatusOK, func(ctx context.Context, req auth.LoginRequest) (any, error) {
		return svc.Login(ctx, req)
	})
}

// AuthFederated exchanges a Google ID token for a session.
func AuthFederated(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return authEndpoint(svc, logg, http.StatusOK, func(ctx context.Context, req auth.FederatedLoginRequest) (any, error) {
		return svc.FederatedLogin(ctx, req)
	})
}

// AuthRegister is public self-registration; accounts always start as beneficiaries.
func AuthRegister(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return authEndpoint(svc, logg, http.StatusCreated, func(ctx context.Context, req auth.RegisterRequest) (any, error) {
		return svc.Register(ctx, req)
	})
}

// AuthRefresh trades a refresh token for a new pair. The old pair stops working.
func AuthRefresh(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return authEndpoint(svc, logg, http.StatusOK, func(ctx context.Context, req auth.RefreshRequest) (any, error) {
		return svc.Refresh(ctx, req)
	})
}

// AuthLogout revokes the session behind the bearer token of this request.
func AuthLogout(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("auth"))
			return
		}
		if err := svc.Logout(r.Context(), middleware.AccessIDFromContext(r.Context())); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "logged_out"})
	}
}

// AuthChangePassword rotates the caller's password. Every session they hold is
// revoked, so the client has to log in again.
func AuthChangePassword(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("auth"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body auth.ChangePasswordRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.ChangePassword(r.Context(), actor.ID, body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "password_changed"})
	}
}

func authEndpoint[Req any](svc auth.Service, logg *logger.Logger, status int, call func(context.Context, Req) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("auth"))
			return
		}
		var body Req
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := call(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}
