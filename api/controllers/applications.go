package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/livelihood-backend/api/responses"
	"github.com/angelmondragon/livelihood-backend/api/validators"
	"github.com/angelmondragon/livelihood-backend/internal/applications"
	"github.com/angelmondragon/livelihood-backend/internal/authz"
	"github.com/angelmondragon/livelihood-backend/pkg/enums"
	"github.com/angelmondragon/livelihood-backend/pkg/logger"
)

// CreateApplication submits the caller's application to a program.
func CreateApplication(svc applications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("applications"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body applications.CreateInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		app, err := svc.Create(r.Context(), actor, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, app)
	}
}

// MyApplications lists the caller's own applications.
func MyApplications(svc applications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("applications"))
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
		status, err := parseQueryEnum(r, "status", enums.ParseApplicationStatus)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListMine(r.Context(), actor, status, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// ListApplications is the reviewer listing across all applicants.
func ListApplications(svc applications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("applications"))
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
		status, err := parseQueryEnum(r, "status", enums.ParseApplicationStatus)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		programID, err := validators.ParseQueryUUID(r, "program_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID, err := validators.ParseQueryUUID(r, "user_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), actor, applications.ListFilter{
			Status:    status,
			ProgramID: programID,
			UserID:    userID,
			Params:    params,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func GetApplication(svc applications.Service, logg *logger.Logger) http.HandlerFunc {
	return applicationAction(svc, logg, func(ctx context.Context, actor authz.Actor, id uuid.UUID, _ *http.Request) (any, error) {
		return svc.Get(ctx, actor, id)
	})
}

func UpdateApplication(svc applications.Service, logg *logger.Logger) http.HandlerFunc {
	return applicationAction(svc, logg, func(ctx context.Context, actor authz.Actor, id uuid.UUID, r *http.Request) (any, error) {
		var body applications.UpdateInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		return svc.Update(ctx, actor, id, body)
	})
}

func ApproveApplication(svc applications.Service, logg *logger.Logger) http.HandlerFunc {
	return applicationAction(svc, logg, func(ctx context.Context, actor authz.Actor, id uuid.UUID, r *http.Request) (any, error) {
		var body applications.ReviewInput
		if err := validators.DecodeOptionalJSONBody(r, &body); err != nil {
			return nil, err
		}
		return svc.Approve(ctx, actor, id, body)
	})
}

func RejectApplication(svc applications.Service, logg *logger.Logger) http.HandlerFunc {
	return applicationAction(svc, logg, func(ctx context.Context, actor authz.Actor, id uuid.UUID, r *http.Request) (any, error) {
		var body applications.ReviewInput
		if err := validators.DecodeOptionalJSONBody(r, &body); err != nil {
			return nil, err
		}
		return svc.Reject(ctx, actor, id, body)
	})
}

func WithdrawApplication(svc applications.Service, logg *logger.Logger) http.HandlerFunc {
	return applicationAction(svc, logg, func(ctx context.Context, actor authz.Actor, id uuid.UUID, _ *http.Request) (any, error) {
		return svc.Withdraw(ctx, actor, id)
	})
}

func DeleteApplication(svc applications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("applications"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseURLUUID(r, "applicationId")
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

func applicationAction(svc applications.Service, logg *logger.Logger, fn idActionFunc) http.HandlerFunc {
	return idAction("applications", svc == nil, "applicationId", logg, fn)
}
