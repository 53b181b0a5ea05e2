package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/livelihood-backend/api/responses"
	"github.com/angelmondragon/livelihood-backend/api/validators"
	"github.com/angelmondragon/livelihood-backend/internal/audit"
	"github.com/angelmondragon/livelihood-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/livelihood-backend/pkg/errors"
	"github.com/angelmondragon/livelihood-backend/pkg/logger"
)

// AdminAuditLogs lists the audit trail, newest first.
func AdminAuditLogs(svc audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("audit"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter, err := auditFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), actor, filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func auditFilter(r *http.Request) (audit.Filter, error) {
	params, err := parsePagination(r)
	if err != nil {
		return audit.Filter{}, err
	}
	filter := audit.Filter{Params: params}

	if filter.UserID, err = validators.ParseQueryUUID(r, "user_id"); err != nil {
		return audit.Filter{}, err
	}
	if filter.ResourceID, err = validators.ParseQueryUUID(r, "resource_id"); err != nil {
		return audit.Filter{}, err
	}
	if filter.ResourceType, err = parseQueryEnum(r, "resource_type", enums.ParseAuditResource); err != nil {
		return audit.Filter{}, err
	}
	if action := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("action"))); action != "" {
		code := enums.AuditAction(action)
		filter.Action = &code
	}
	if filter.Since, err = validators.ParseQueryTime(r, "since"); err != nil {
		return audit.Filter{}, err
	}
	if filter.Until, err = validators.ParseQueryTime(r, "until"); err != nil {
		return audit.Filter{}, err
	}
	if filter.Since != nil && filter.Until != nil && filter.Until.Before(*filter.Since) {
		return audit.Filter{}, pkgerrors.New(pkgerrors.CodeValidation, "until must not be before since")
	}
	return filter, nil
}

// AdminUserAuditTrail lists entries performed by one user.
func AdminUserAuditTrail(svc audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("audit"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID, err := validators.ParseURLUUID(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := parsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.UserTrail(r.Context(), actor, userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// AdminResourceAuditTrail lists entries about one entity.
func AdminResourceAuditTrail(svc audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("audit"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resourceType, err := enums.ParseAuditResource(chiParam(r, "resourceType"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid resource type"))
			return
		}
		resourceID, err := validators.ParseURLUUID(r, "resourceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := parsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ResourceTrail(r.Context(), actor, resourceType, resourceID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}
