package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/livelihood-backend/api/responses"
	"github.com/angelmondragon/livelihood-backend/api/validators"
	"github.com/angelmondragon/livelihood-backend/internal/authz"
	"github.com/angelmondragon/livelihood-backend/internal/beneficiaries"
	"github.com/angelmondragon/livelihood-backend/pkg/enums"
	"github.com/angelmondragon/livelihood-backend/pkg/logger"
)

type progressNoteRequest struct {
	Note string `json:"note" validate:"required,max=2000"`
}

// CreateBeneficiary enrolls the applicant of an approved application.
func CreateBeneficiary(svc beneficiaries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("beneficiaries"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body beneficiaries.CreateInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.Create(r.Context(), actor, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

func ListBeneficiaries(svc beneficiaries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("beneficiaries"))
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
		status, err := parseQueryEnum(r, "status", enums.ParseBeneficiaryStatus)
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

		page, err := svc.List(r.Context(), actor, beneficiaries.ListFilter{
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

// BeneficiaryStatistics reports enrollment totals by status and program.
func BeneficiaryStatistics(svc beneficiaries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("beneficiaries"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		stats, err := svc.Statistics(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}

func GetBeneficiary(svc beneficiaries.Service, logg *logger.Logger) http.HandlerFunc {
	return beneficiaryAction(svc, logg, func(ctx context.Context, actor authz.Actor, id uuid.UUID, _ *http.Request) (any, error) {
		return svc.Get(ctx, actor, id)
	})
}

func UpdateBeneficiary(svc beneficiaries.Service, logg *logger.Logger) http.HandlerFunc {
	return beneficiaryAction(svc, logg, func(ctx context.Context, actor authz.Actor, id uuid.UUID, r *http.Request) (any, error) {
		var body beneficiaries.UpdateInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		return svc.Update(ctx, actor, id, body)
	})
}

func CompleteBeneficiary(svc beneficiaries.Service, logg *logger.Logger) http.HandlerFunc {
	return beneficiaryAction(svc, logg, func(ctx context.Context, actor authz.Actor, id uuid.UUID, r *http.Request) (any, error) {
		var body beneficiaries.NoteInput
		if err := validators.DecodeOptionalJSONBody(r, &body); err != nil {
			return nil, err
		}
		return svc.Complete(ctx, actor, id, body)
	})
}

func SuspendBeneficiary(svc beneficiaries.Service, logg *logger.Logger) http.HandlerFunc {
	return beneficiaryAction(svc, logg, func(ctx context.Context, actor authz.Actor, id uuid.UUID, r *http.Request) (any, error) {
		var body beneficiaries.NoteInput
		if err := validators.DecodeOptionalJSONBody(r, &body); err != nil {
			return nil, err
		}
		return svc.Suspend(ctx, actor, id, body)
	})
}

func ReactivateBeneficiary(svc beneficiaries.Service, logg *logger.Logger) http.HandlerFunc {
	return beneficiaryAction(svc, logg, func(ctx context.Context, actor authz.Actor, id uuid.UUID, r *http.Request) (any, error) {
		var body beneficiaries.NoteInput
		if err := validators.DecodeOptionalJSONBody(r, &body); err != nil {
			return nil, err
		}
		return svc.Reactivate(ctx, actor, id, body)
	})
}

func AddBeneficiaryNote(svc beneficiaries.Service, logg *logger.Logger) http.HandlerFunc {
	return beneficiaryAction(svc, logg, func(ctx context.Context, actor authz.Actor, id uuid.UUID, r *http.Request) (any, error) {
		var body progressNoteRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		return svc.AddProgressNote(ctx, actor, id, body.Note)
	})
}

func DeleteBeneficiary(svc beneficiaries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("beneficiaries"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseURLUUID(r, "beneficiaryId")
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

func beneficiaryAction(svc beneficiaries.Service, logg *logger.Logger, fn idActionFunc) http.HandlerFunc {
	return idAction("beneficiaries", svc == nil, "beneficiaryId", logg, fn)
}
