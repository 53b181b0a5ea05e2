package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/livelihood-backend/api/responses"
	"github.com/angelmondragon/livelihood-backend/api/validators"
	"github.com/angelmondragon/livelihood-backend/internal/authz"
	"github.com/angelmondragon/livelihood-backend/internal/users"
	"github.com/angelmondragon/livelihood-backend/pkg/enums"
	"github.com/angelmondragon/livelihood-backend/pkg/logger"
)

type roleChangeRequest struct {
	Role enums.Role `json:"role" validate:"required"`
}

// AdminListUsers lists accounts with optional search, role and active filters.
func AdminListUsers(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("users"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := parsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		role, err := parseQueryEnum(r, "role", enums.ParseRole)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		active, err := validators.ParseQueryBool(r, "is_active")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), actor, users.ListFilter{
			Search: validators.SanitizeString(r.URL.Query().Get("search"), 100),
			Role:   role,
			Active: active,
			Params: params,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// AdminCreateUser provisions an account. The temporary password, when one
// was generated, is only ever returned here.
func AdminCreateUser(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("users"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body users.CreateByAdminInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		body.Email = strings.TrimSpace(body.Email)

		created, err := svc.CreateByAdmin(r.Context(), actor, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

func AdminGetUser(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return adminUserAction(svc, logg, func(ctx context.Context, actor authz.Actor, id uuid.UUID, _ *http.Request) (*users.UserDTO, error) {
		return svc.Get(ctx, actor, id)
	})
}

func AdminPromoteUser(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return adminUserAction(svc, logg, func(ctx context.Context, actor authz.Actor, id uuid.UUID, r *http.Request) (*users.UserDTO, error) {
		var body roleChangeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		return svc.Promote(ctx, actor, id, body.Role)
	})
}

func AdminDemoteUser(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return adminUserAction(svc, logg, func(ctx context.Context, actor authz.Actor, id uuid.UUID, r *http.Request) (*users.UserDTO, error) {
		var body roleChangeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		return svc.Demote(ctx, actor, id, body.Role)
	})
}

func AdminActivateUser(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return adminUserAction(svc, logg, func(ctx context.Context, actor authz.Actor, id uuid.UUID, _ *http.Request) (*users.UserDTO, error) {
		return svc.Activate(ctx, actor, id)
	})
}

func AdminDeactivateUser(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return adminUserAction(svc, logg, func(ctx context.Context, actor authz.Actor, id uuid.UUID, _ *http.Request) (*users.UserDTO, error) {
		return svc.Deactivate(ctx, actor, id)
	})
}

// AdminDeleteUser soft-deletes an account.
func AdminDeleteUser(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("users"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseURLUUID(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), actor, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

type userActionFunc func(ctx context.Context, actor authz.Actor, id uuid.UUID, r *http.Request) (*users.UserDTO, error)

func adminUserAction(svc users.Service, logg *logger.Logger, fn userActionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("users"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseURLUUID(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := fn(r.Context(), actor, id, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, user)
	}
}
