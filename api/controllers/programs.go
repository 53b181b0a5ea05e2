package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/livelihood-backend/api/responses"
	"github.com/angelmondragon/livelihood-backend/api/validators"
	"github.com/angelmondragon/livelihood-backend/internal/authz"
	"github.com/angelmondragon/livelihood-backend/internal/programs"
	"github.com/angelmondragon/livelihood-backend/pkg/enums"
	"github.com/angelmondragon/livelihood-backend/pkg/logger"
)

// ListPrograms is public; anonymous callers only see active programs.
func ListPrograms(svc programs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("programs"))
			return
		}

		filter, err := programFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), optionalActor(r), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func programFilter(r *http.Request) (programs.ListFilter, error) {
	params, err := parsePagination(r)
	if err != nil {
		return programs.ListFilter{}, err
	}
	category, err := parseQueryEnum(r, "category", enums.ParseProgramCategory)
	if err != nil {
		return programs.ListFilter{}, err
	}
	status, err := parseQueryEnum(r, "status", enums.ParseProgramStatus)
	if err != nil {
		return programs.ListFilter{}, err
	}
	featured, err := validators.ParseQueryBool(r, "is_featured")
	if err != nil {
		return programs.ListFilter{}, err
	}
	active, err := validators.ParseQueryBool(r, "is_active")
	if err != nil {
		return programs.ListFilter{}, err
	}
	return programs.ListFilter{
		Search:   validators.SanitizeString(r.URL.Query().Get("search"), 100),
		Category: category,
		Status:   status,
		Featured: featured,
		Active:   active,
		Params:   params,
	}, nil
}

func GetProgram(svc programs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("programs"))
			return
		}
		id, err := validators.ParseURLUUID(r, "programId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		program, err := svc.Get(r.Context(), optionalActor(r), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, program)
	}
}

func CreateProgram(svc programs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("programs"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body programs.CreateInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		program, err := svc.Create(r.Context(), actor, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, program)
	}
}

func UpdateProgram(svc programs.Service, logg *logger.Logger) http.HandlerFunc {
	return programAction(svc, logg, func(ctx context.Context, actor authz.Actor, id uuid.UUID, r *http.Request) (any, error) {
		var body programs.UpdateInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		return svc.Update(ctx, actor, id, body)
	})
}

func ActivateProgram(svc programs.Service, logg *logger.Logger) http.HandlerFunc {
	return programAction(svc, logg, func(ctx context.Context, actor authz.Actor, id uuid.UUID, _ *http.Request) (any, error) {
		return svc.Activate(ctx, actor, id)
	})
}

func DeactivateProgram(svc programs.Service, logg *logger.Logger) http.HandlerFunc {
	return programAction(svc, logg, func(ctx context.Context, actor authz.Actor, id uuid.UUID, _ *http.Request) (any, error) {
		return svc.Deactivate(ctx, actor, id)
	})
}

func FeatureProgram(svc programs.Service, logg *logger.Logger) http.HandlerFunc {
	return programAction(svc, logg, func(ctx context.Context, actor authz.Actor, id uuid.UUID, _ *http.Request) (any, error) {
		return svc.Feature(ctx, actor, id)
	})
}

func UnfeatureProgram(svc programs.Service, logg *logger.Logger) http.HandlerFunc {
	return programAction(svc, logg, func(ctx context.Context, actor authz.Actor, id uuid.UUID, _ *http.Request) (any, error) {
		return svc.Unfeature(ctx, actor, id)
	})
}

// ProgramStatistics returns application and enrollment counts for one program.
func ProgramStatistics(svc programs.Service, logg *logger.Logger) http.HandlerFunc {
	return programAction(svc, logg, func(ctx context.Context, actor authz.Actor, id uuid.UUID, _ *http.Request) (any, error) {
		return svc.Statistics(ctx, actor, id)
	})
}

// DeleteProgram refuses while applications or enrollments reference the program.
func DeleteProgram(svc programs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("programs"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseURLUUID(r, "programId")
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

type idActionFunc func(ctx context.Context, actor authz.Actor, id uuid.UUID, r *http.Request) (any, error)

func programAction(svc programs.Service, logg *logger.Logger, fn idActionFunc) http.HandlerFunc {
	return idAction("programs", svc == nil, "programId", logg, fn)
}

// idAction is the shared shape of authenticated handlers that act on one
// resource addressed by a path parameter.
func idAction(name string, missing bool, param string, logg *logger.Logger, fn idActionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if missing {
			responses.WriteError(r.Context(), logg, w, unavailable(name))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseURLUUID(r, param)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := fn(r.Context(), actor, id, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
