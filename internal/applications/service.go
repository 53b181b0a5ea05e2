package applications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/livelihood-backend/internal/audit"
	"github.com/angelmondragon/livelihood-backend/internal/authz"
	"github.com/angelmondragon/livelihood-backend/internal/notifications"
	"github.com/angelmondragon/livelihood-backend/internal/programs"
	"github.com/angelmondragon/livelihood-backend/pkg/db"
	"github.com/angelmondragon/livelihood-backend/pkg/db/models"
	"github.com/angelmondragon/livelihood-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/livelihood-backend/pkg/errors"
	"github.com/angelmondragon/livelihood-backend/pkg/logger"
	"github.com/angelmondragon/livelihood-backend/pkg/metrics"
	"github.com/angelmondragon/livelihood-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ReasonDuplicateApplication            = "DuplicateApplication"
	ReasonProgramNotAcceptingApplications = "ProgramNotAcceptingApplications"
	ReasonInvalidStateTransition          = "InvalidStateTransition"
	ReasonCannotWithdrawProcessed         = "CannotWithdrawProcessed"
	ReasonOwnerRestrictedField            = "OwnerRestrictedField"

	defaultQueueLimit = 50
)

// Service drives the application state machine.
type Service interface {
	Create(ctx context.Context, actor authz.Actor, input CreateInput) (*ApplicationDTO, error)
	Approve(ctx context.Context, actor authz.Actor, id uuid.UUID, input ReviewInput) (*ApplicationDTO, error)
	Reject(ctx context.Context, actor authz.Actor, id uuid.UUID, input ReviewInput) (*ApplicationDTO, error)
	Withdraw(ctx context.Context, actor authz.Actor, id uuid.UUID) (*ApplicationDTO, error)
	Update(ctx context.Context, actor authz.Actor, id uuid.UUID, input UpdateInput) (*ApplicationDTO, error)
	Delete(ctx context.Context, actor authz.Actor, id uuid.UUID) error
	Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (*ApplicationDTO, error)
	ListMine(ctx context.Context, actor authz.Actor, status *enums.ApplicationStatus, params pagination.Params) (Page, error)
	List(ctx context.Context, actor authz.Actor, filter ListFilter) (Page, error)
	PendingQueue(ctx context.Context, actor authz.Actor, limit int) ([]ApplicationDTO, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type applicationReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Application, error)
	List(ctx context.Context, opts listQuery) ([]models.Application, error)
	Pending(ctx context.Context, limit int) ([]models.Application, error)
}

type auditRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

type notifier interface {
	Send(ctx context.Context, msg notifications.Message)
}

// ServiceParams bundles the dependencies required to build an applications
// service. Notifier and Metrics are optional.
type ServiceParams struct {
	DB       txRunner
	Repo     applicationReader
	Audit    auditRecorder
	Notifier notifier
	Metrics  metrics.TransitionObserver
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	tx       txRunner
	repo     applicationReader
	audit    auditRecorder
	notifier notifier
	metrics  metrics.TransitionObserver
	logg     *logger.Logger
	now      func() time.Time
}

// NewService constructs the applications service.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("application repository is required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit recorder is required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		tx:       params.DB,
		repo:     params.Repo,
		audit:    params.Audit,
		notifier: params.Notifier,
		metrics:  params.Metrics,
		logg:     params.Logger,
		now:      now,
	}, nil
}

func (s *service) Create(ctx context.Context, actor authz.Actor, input CreateInput) (*ApplicationDTO, error) {
	if err := actor.Authorize(authz.ApplicationCreate); err != nil {
		s.observe("create", err)
		return nil, err
	}
	if input.ProgramID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "program_id is required")
	}

	var created *models.Application
	var programTitle string
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		program, err := repo.FindProgramForUpdate(ctx, input.ProgramID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "program not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load program")
		}
		now := s.now()
		if !programs.AcceptingApplications(program, now) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "program is not accepting applications").
				WithReason(ReasonProgramNotAcceptingApplications)
		}
		exists, err := repo.HasActive(ctx, actor.ID, program.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing application")
		}
		if exists {
			return duplicateApplication()
		}
		app := &models.Application{
			UserID:    actor.ID,
			ProgramID: program.ID,
			Status:    enums.ApplicationStatusPending,
			Notes:     trimmed(input.Notes),
			AppliedAt: now,
			IsActive:  true,
		}
		if err := repo.Create(ctx, app); err != nil {
			if db.IsUniqueViolation(err, "") {
				return duplicateApplication()
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create application")
		}
		created, programTitle = app, program.Title
		return nil
	})
	s.observe("create", err)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID:      audit.Ptr(actor.ID),
		Action:       enums.AuditApplicationCreated,
		ResourceType: enums.AuditResourceApplication,
		ResourceID:   audit.Ptr(created.ID),
		NewValues:    audit.Snapshot(FromModel(created)),
		Description:  fmt.Sprintf("applied to %s", programTitle),
	})
	s.notify(ctx, notifications.ApplicationSubmitted(created.UserID, created.ID, programTitle))
	return FromModel(created), nil
}

func (s *service) Approve(ctx context.Context, actor authz.Actor, id uuid.UUID, input ReviewInput) (*ApplicationDTO, error) {
	return s.review(ctx, actor, id, enums.ApplicationStatusApproved, input)
}

func (s *service) Reject(ctx context.Context, actor authz.Actor, id uuid.UUID, input ReviewInput) (*ApplicationDTO, error) {
	return s.review(ctx, actor, id, enums.ApplicationStatusRejected, input)
}

func (s *service) review(ctx context.Context, actor authz.Actor, id uuid.UUID, decision enums.ApplicationStatus, input ReviewInput) (*ApplicationDTO, error) {
	opName, action := "approve", enums.AuditApplicationApproved
	if decision == enums.ApplicationStatusRejected {
		opName, action = "reject", enums.AuditApplicationRejected
	}
	if err := actor.Authorize(authz.ApplicationReview); err != nil {
		s.observe(opName, err)
		return nil, err
	}

	var updated *models.Application
	var programTitle string
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		app, err := loadForUpdate(ctx, repo, id)
		if err != nil {
			return err
		}
		if app.Status != enums.ApplicationStatusPending {
			return invalidTransition(app.Status, decision)
		}
		now := s.now()
		reviewer := actor.ID
		fields := map[string]any{
			"status":      decision,
			"reviewed_by": reviewer,
			"reviewed_at": now,
		}
		notes := trimmed(input.Notes)
		if notes != nil {
			fields["notes"] = *notes
			app.Notes = notes
		}
		if err := repo.UpdateFields(ctx, app.ID, fields); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, opName+" application")
		}
		title, err := repo.ProgramTitle(ctx, app.ProgramID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load program")
		}
		app.Status, app.ReviewedBy, app.ReviewedAt = decision, &reviewer, &now
		updated, programTitle = app, title
		return nil
	})
	s.observe(opName, err)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID:      audit.Ptr(actor.ID),
		Action:       action,
		ResourceType: enums.AuditResourceApplication,
		ResourceID:   audit.Ptr(updated.ID),
		OldValues:    statusSnapshot(enums.ApplicationStatusPending),
		NewValues:    statusSnapshot(decision),
		Description:  fmt.Sprintf("application status changed from %s to %s", enums.ApplicationStatusPending, decision),
	})
	if decision == enums.ApplicationStatusApproved {
		s.notify(ctx, notifications.ApplicationApproved(updated.UserID, updated.ID, programTitle))
	} else {
		reason := ""
		if input.Notes != nil {
			reason = strings.TrimSpace(*input.Notes)
		}
		s.notify(ctx, notifications.ApplicationRejected(updated.UserID, updated.ID, programTitle, reason))
	}
	return FromModel(updated), nil
}

func (s *service) Withdraw(ctx context.Context, actor authz.Actor, id uuid.UUID) (*ApplicationDTO, error) {
	if err := actor.Authorize(authz.ApplicationWithdraw); err != nil {
		s.observe("withdraw", err)
		return nil, err
	}

	var updated *models.Application
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		app, err := loadForUpdate(ctx, repo, id)
		if err != nil {
			return err
		}
		if app.UserID != actor.ID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the applicant can withdraw an application")
		}
		switch app.Status {
		case enums.ApplicationStatusPending:
		case enums.ApplicationStatusApproved, enums.ApplicationStatusRejected:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot withdraw a processed application").
				WithReason(ReasonCannotWithdrawProcessed).
				WithDetails(map[string]any{"status": string(app.Status)})
		default:
			return invalidTransition(app.Status, enums.ApplicationStatusWithdrawn)
		}
		if err := repo.UpdateFields(ctx, app.ID, map[string]any{
			"status":    enums.ApplicationStatusWithdrawn,
			"is_active": false,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "withdraw application")
		}
		app.Status, app.IsActive = enums.ApplicationStatusWithdrawn, false
		updated = app
		return nil
	})
	s.observe("withdraw", err)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID:      audit.Ptr(actor.ID),
		Action:       enums.AuditApplicationWithdrawn,
		ResourceType: enums.AuditResourceApplication,
		ResourceID:   audit.Ptr(updated.ID),
		OldValues:    statusSnapshot(enums.ApplicationStatusPending),
		NewValues:    statusSnapshot(enums.ApplicationStatusWithdrawn),
		Description:  "application withdrawn by applicant",
	})
	return FromModel(updated), nil
}

// Update edits an application. Reviewers may change any field in any status;
// everyone else is treated as the owner and may only edit notes while pending.
func (s *service) Update(ctx context.Context, actor authz.Actor, id uuid.UUID, input UpdateInput) (*ApplicationDTO, error) {
	staff := actor.Can(authz.ApplicationUpdateAny)
	if !staff {
		if err := actor.Authorize(authz.ApplicationUpdateOwn); err != nil {
			s.observe("update", err)
			return nil, err
		}
		if input.Status != nil || input.ReviewedBy != nil {
			err := pkgerrors.New(pkgerrors.CodeForbidden, "applicants cannot set status or reviewer").
				WithReason(ReasonOwnerRestrictedField)
			s.observe("update", err)
			return nil, err
		}
	}
	if input.Status != nil && !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid application status")
	}
	if input.Notes == nil && input.Status == nil && input.ReviewedBy == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no application fields provided")
	}

	var before, after *models.Application
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		app, err := loadForUpdate(ctx, repo, id)
		if err != nil {
			return err
		}
		if !staff {
			if app.UserID != actor.ID {
				return pkgerrors.New(pkgerrors.CodeForbidden, "cannot edit another user's application")
			}
			if app.Status != enums.ApplicationStatusPending {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "only pending applications can be edited").
					WithReason(ReasonInvalidStateTransition).
					WithDetails(map[string]any{"status": string(app.Status)})
			}
		}

		fields := map[string]any{}
		if input.Notes != nil {
			fields["notes"] = trimmed(input.Notes)
		}
		if input.ReviewedBy != nil {
			fields["reviewed_by"] = *input.ReviewedBy
		}
		if input.Status != nil && *input.Status != app.Status {
			fields["status"] = *input.Status
			if input.Status.IsProcessed() {
				if input.ReviewedBy == nil {
					fields["reviewed_by"] = actor.ID
				}
				fields["reviewed_at"] = s.now()
			}
			switch {
			case *input.Status == enums.ApplicationStatusWithdrawn:
				fields["is_active"] = false
			case app.Status == enums.ApplicationStatusWithdrawn:
				fields["is_active"] = true
			}
		}
		if len(fields) > 0 {
			if err := repo.UpdateFields(ctx, app.ID, fields); err != nil {
				if db.IsUniqueViolation(err, "") {
					return duplicateApplication()
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update application")
			}
		}
		reloaded, err := repo.FindByID(ctx, app.ID)
		if err != nil {
			return lookupError(err)
		}
		before, after = app, reloaded
		return nil
	})
	s.observe("update", err)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID:      audit.Ptr(actor.ID),
		Action:       enums.AuditApplicationUpdated,
		ResourceType: enums.AuditResourceApplication,
		ResourceID:   audit.Ptr(after.ID),
		OldValues:    audit.Snapshot(FromModel(before)),
		NewValues:    audit.Snapshot(FromModel(after)),
	})
	return FromModel(after), nil
}

func (s *service) Delete(ctx context.Context, actor authz.Actor, id uuid.UUID) error {
	if err := actor.Authorize(authz.ApplicationDelete); err != nil {
		s.observe("delete", err)
		return err
	}

	var deleted *models.Application
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		app, err := loadForUpdate(ctx, repo, id)
		if err != nil {
			return err
		}
		if err := repo.UpdateFields(ctx, app.ID, map[string]any{"is_active": false, "is_deleted": true}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete application")
		}
		deleted = app
		return nil
	})
	s.observe("delete", err)
	if err != nil {
		return err
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID:      audit.Ptr(actor.ID),
		Action:       enums.AuditApplicationDeleted,
		ResourceType: enums.AuditResourceApplication,
		ResourceID:   audit.Ptr(deleted.ID),
		OldValues:    audit.Snapshot(FromModel(deleted)),
	})
	return nil
}

func (s *service) Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (*ApplicationDTO, error) {
	app, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err)
	}
	if app.IsDeleted {
		return nil, notFound()
	}
	if app.UserID != actor.ID {
		if err := actor.Authorize(authz.ApplicationReadAny); err != nil {
			return nil, err
		}
	}
	return FromModel(app), nil
}

func (s *service) ListMine(ctx context.Context, actor authz.Actor, status *enums.ApplicationStatus, params pagination.Params) (Page, error) {
	if err := actor.Authorize(authz.ApplicationReadOwn); err != nil {
		return Page{}, err
	}
	userID := actor.ID
	return s.list(ctx, ListFilter{Status: status, UserID: &userID, Params: params})
}

func (s *service) List(ctx context.Context, actor authz.Actor, filter ListFilter) (Page, error) {
	if err := actor.Authorize(authz.ApplicationReadAny); err != nil {
		return Page{}, err
	}
	return s.list(ctx, filter)
}

func (s *service) list(ctx context.Context, filter ListFilter) (Page, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return Page{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	cursor, err := pagination.ParseCursor(filter.Cursor)
	if err != nil {
		return Page{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.List(ctx, listQuery{
		status:    filter.Status,
		programID: filter.ProgramID,
		userID:    filter.UserID,
		cursor:    cursor,
		limit:     pagination.LimitWithBuffer(filter.Limit),
	})
	if err != nil {
		return Page{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list applications")
	}

	rows, next := pagination.Trim(rows, filter.Limit, func(m models.Application) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})
	page := Page{Items: make([]ApplicationDTO, 0, len(rows)), NextCursor: next}
	for i := range rows {
		page.Items = append(page.Items, *FromModel(&rows[i]))
	}
	return page, nil
}

// PendingQueue lists pending applications oldest first so reviews are FIFO.
func (s *service) PendingQueue(ctx context.Context, actor authz.Actor, limit int) ([]ApplicationDTO, error) {
	if err := actor.Authorize(authz.ApplicationReview); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultQueueLimit
	}
	limit = pagination.NormalizeLimit(limit)
	rows, err := s.repo.Pending(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending applications")
	}
	out := make([]ApplicationDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out, nil
}

func (s *service) notify(ctx context.Context, msg notifications.Message) {
	if s.notifier != nil {
		s.notifier.Send(ctx, msg)
	}
}

func (s *service) observe(action string, err error) {
	if s.metrics != nil {
		s.metrics.ObserveTransition("application", action, metrics.OutcomeFor(err))
	}
}

// loadForUpdate locks an application and hides soft-deleted rows.
func loadForUpdate(ctx context.Context, repo *Repository, id uuid.UUID) (*models.Application, error) {
	app, err := repo.FindByIDForUpdate(ctx, id)
	if err != nil {
		return nil, lookupError(err)
	}
	if app.IsDeleted {
		return nil, notFound()
	}
	return app, nil
}

func lookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound()
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load application")
}

func notFound() error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "application not found")
}

func duplicateApplication() error {
	return pkgerrors.New(pkgerrors.CodeConflict, "an active application for this program already exists").
		WithReason(ReasonDuplicateApplication)
}

func invalidTransition(from, to enums.ApplicationStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot move application from %s to %s", from, to)).
		WithReason(ReasonInvalidStateTransition).
		WithDetails(map[string]any{"status": string(from), "requested": string(to)})
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	out := strings.TrimSpace(*value)
	if out == "" {
		return nil
	}
	return &out
}
