package beneficiaries

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/livelihood-backend/internal/audit"
	"github.com/angelmondragon/livelihood-backend/internal/authz"
	"github.com/angelmondragon/livelihood-backend/internal/notifications"
	"github.com/angelmondragon/livelihood-backend/pkg/db"
	"github.com/angelmondragon/livelihood-backend/pkg/db/models"
	"github.com/angelmondragon/livelihood-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/livelihood-backend/pkg/errors"
	"github.com/angelmondragon/livelihood-backend/pkg/logger"
	"github.com/angelmondragon/livelihood-backend/pkg/metrics"
	"github.com/angelmondragon/livelihood-backend/pkg/pagination"
	"github.com/angelmondragon/livelihood-backend/pkg/phone"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	ReasonProgramInactive          = "ProgramInactive"
	ReasonApplicationNotApproved   = "ApplicationNotApproved"
	ReasonBeneficiaryAlreadyExists = "BeneficiaryAlreadyExists"
	ReasonInvalidPhoneFormat       = "InvalidPhoneFormat"
	ReasonAlreadyCompleted         = "AlreadyCompleted"
	ReasonAlreadySuspended         = "AlreadySuspended"
	ReasonNotSuspended             = "NotSuspended"
)

// Service manages enrollments and their lifecycle.
type Service interface {
	Create(ctx context.Context, actor authz.Actor, input CreateInput) (*BeneficiaryDTO, error)
	Complete(ctx context.Context, actor authz.Actor, id uuid.UUID, input NoteInput) (*BeneficiaryDTO, error)
	Suspend(ctx context.Context, actor authz.Actor, id uuid.UUID, input NoteInput) (*BeneficiaryDTO, error)
	Reactivate(ctx context.Context, actor authz.Actor, id uuid.UUID, input NoteInput) (*BeneficiaryDTO, error)
	AddProgressNote(ctx context.Context, actor authz.Actor, id uuid.UUID, note string) (*BeneficiaryDTO, error)
	Update(ctx context.Context, actor authz.Actor, id uuid.UUID, input UpdateInput) (*BeneficiaryDTO, error)
	Delete(ctx context.Context, actor authz.Actor, id uuid.UUID) error
	Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (*BeneficiaryDTO, error)
	List(ctx context.Context, actor authz.Actor, filter ListFilter) (Page, error)
	Statistics(ctx context.Context, actor authz.Actor) (*Statistics, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type beneficiaryReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Beneficiary, error)
	List(ctx context.Context, opts listQuery) ([]models.Beneficiary, error)
	CountByStatus(ctx context.Context) ([]StatusCount, error)
	CountEnrolledSince(ctx context.Context, since time.Time) (int64, error)
	CountCompletedSince(ctx context.Context, since time.Time) (int64, error)
	CountByProgram(ctx context.Context) ([]programCountRow, error)
}

type auditRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

type notifier interface {
	Send(ctx context.Context, msg notifications.Message)
}

// ServiceParams bundles the dependencies required to build a beneficiaries
// service. Notifier and Metrics are optional.
type ServiceParams struct {
	DB       txRunner
	Repo     beneficiaryReader
	Audit    auditRecorder
	Notifier notifier
	Metrics  metrics.TransitionObserver
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	tx       txRunner
	repo     beneficiaryReader
	audit    auditRecorder
	notifier notifier
	metrics  metrics.TransitionObserver
	logg     *logger.Logger
	now      func() time.Time
}

// NewService constructs the beneficiaries service.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("beneficiary repository is required")
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

func (s *service) Create(ctx context.Context, actor authz.Actor, input CreateInput) (*BeneficiaryDTO, error) {
	if err := actor.Authorize(authz.BeneficiaryManage); err != nil {
		s.observe("create", err)
		return nil, err
	}
	if input.ApplicationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "application_id is required")
	}
	contactPhone, err := phone.NormalizeOptional(input.EmergencyContactPhone)
	if err != nil {
		s.observe("create", invalidPhone())
		return nil, invalidPhone()
	}
	if err := validateHousehold(input.HouseholdSize, input.MonthlyIncome); err != nil {
		return nil, err
	}

	now := s.now()
	enrollment := today(now)
	if input.EnrollmentDate != nil {
		enrollment = today(input.EnrollmentDate.UTC())
	}
	creator := actor.ID

	var created *models.Beneficiary
	var programTitle string
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		app, err := repo.FindApplicationForUpdate(ctx, input.ApplicationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "application not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load application")
		}
		program, err := repo.FindProgramForUpdate(ctx, app.ProgramID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load program")
		}
		if program == nil || !program.IsActive || program.Status != enums.ProgramStatusActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "program is not active").
				WithReason(ReasonProgramInactive)
		}
		if app.Status != enums.ApplicationStatusApproved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "application is not approved").
				WithReason(ReasonApplicationNotApproved).
				WithDetails(map[string]any{"status": string(app.Status)})
		}
		exists, err := repo.HasActiveForApplication(ctx, app.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing beneficiary")
		}
		if exists {
			return alreadyExists()
		}

		b := &models.Beneficiary{
			UserID:                app.UserID,
			ProgramID:             program.ID,
			ApplicationID:         app.ID,
			EnrollmentDate:        enrollment,
			Status:                enums.BeneficiaryStatusActive,
			EmergencyContactName:  trimmed(input.EmergencyContactName),
			EmergencyContactPhone: contactPhone,
			HouseholdSize:         input.HouseholdSize,
			MonthlyIncome:         input.MonthlyIncome,
			ProgressNotes:         trimmed(input.ProgressNotes),
			IsActive:              true,
			CreatedBy:             &creator,
		}
		if err := repo.Create(ctx, b); err != nil {
			if db.IsUniqueViolation(err, "") {
				return alreadyExists()
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create beneficiary")
		}
		if err := repo.IncrementParticipants(ctx, program.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update participant count")
		}
		created, programTitle = b, program.Title
		return nil
	})
	s.observe("create", err)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID:      audit.Ptr(actor.ID),
		Action:       enums.AuditBeneficiaryCreated,
		ResourceType: enums.AuditResourceBeneficiary,
		ResourceID:   audit.Ptr(created.ID),
		NewValues:    audit.Snapshot(FromModel(created)),
		Description:  fmt.Sprintf("enrolled application %s in %s", created.ApplicationID, programTitle),
	})
	s.notify(ctx, notifications.BeneficiaryEnrolled(created.UserID, created.ID, programTitle))
	return FromModel(created), nil
}

// transition describes one status change on an enrollment.
type transition struct {
	op     string
	action enums.AuditAction
	target enums.BeneficiaryStatus
	label  string
	check  func(current enums.BeneficiaryStatus) error
}

func (s *service) Complete(ctx context.Context, actor authz.Actor, id uuid.UUID, input NoteInput) (*BeneficiaryDTO, error) {
	updated, title, err := s.transition(ctx, actor, id, input, transition{
		op:     "complete",
		action: enums.AuditBeneficiaryCompleted,
		target: enums.BeneficiaryStatusCompleted,
		label:  noteCompletion,
		// Only a repeat is refused; suspended and dropped rows may be completed.
		check: func(current enums.BeneficiaryStatus) error {
			if current == enums.BeneficiaryStatusCompleted {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "beneficiary already completed the program").
					WithReason(ReasonAlreadyCompleted)
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, notifications.BeneficiaryCompleted(updated.UserID, updated.ID, title))
	return FromModel(updated), nil
}

func (s *service) Suspend(ctx context.Context, actor authz.Actor, id uuid.UUID, input NoteInput) (*BeneficiaryDTO, error) {
	updated, _, err := s.transition(ctx, actor, id, input, transition{
		op:     "suspend",
		action: enums.AuditBeneficiarySuspended,
		target: enums.BeneficiaryStatusSuspended,
		label:  noteSuspension,
		check: func(current enums.BeneficiaryStatus) error {
			if current == enums.BeneficiaryStatusSuspended {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "beneficiary is already suspended").
					WithReason(ReasonAlreadySuspended)
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return FromModel(updated), nil
}

func (s *service) Reactivate(ctx context.Context, actor authz.Actor, id uuid.UUID, input NoteInput) (*BeneficiaryDTO, error) {
	updated, _, err := s.transition(ctx, actor, id, input, transition{
		op:     "reactivate",
		action: enums.AuditBeneficiaryReactivated,
		target: enums.BeneficiaryStatusActive,
		label:  noteReactivation,
		check: func(current enums.BeneficiaryStatus) error {
			if current != enums.BeneficiaryStatusSuspended {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "only suspended beneficiaries can be reactivated").
					WithReason(ReasonNotSuspended).
					WithDetails(map[string]any{"status": string(current)})
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return FromModel(updated), nil
}

func (s *service) transition(ctx context.Context, actor authz.Actor, id uuid.UUID, input NoteInput, t transition) (*models.Beneficiary, string, error) {
	if err := actor.Authorize(authz.BeneficiaryManage); err != nil {
		s.observe(t.op, err)
		return nil, "", err
	}

	var previous enums.BeneficiaryStatus
	var updated *models.Beneficiary
	var programTitle string
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		b, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return lookupError(err)
		}
		if err := t.check(b.Status); err != nil {
			return err
		}
		day := today(s.now())
		fields := map[string]any{"status": t.target}
		if t.target == enums.BeneficiaryStatusCompleted {
			fields["completion_date"] = day
			b.CompletionDate = &day
		}
		if note := trimmed(input.Notes); note != nil {
			notes := AppendNote(b.ProgressNotes, t.label, day, *note)
			fields["progress_notes"] = notes
			b.ProgressNotes = &notes
		}
		if err := repo.UpdateFields(ctx, b.ID, fields); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, t.op+" beneficiary")
		}
		if t.target == enums.BeneficiaryStatusCompleted {
			title, err := repo.ProgramTitle(ctx, b.ProgramID)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load program")
			}
			programTitle = title
		}
		previous = b.Status
		b.Status = t.target
		updated = b
		return nil
	})
	s.observe(t.op, err)
	if err != nil {
		return nil, "", err
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID:      audit.Ptr(actor.ID),
		Action:       t.action,
		ResourceType: enums.AuditResourceBeneficiary,
		ResourceID:   audit.Ptr(updated.ID),
		OldValues:    statusSnapshot(previous),
		NewValues:    statusSnapshot(t.target),
		Description:  fmt.Sprintf("beneficiary status changed from %s to %s", previous, t.target),
	})
	return updated, programTitle, nil
}

func (s *service) AddProgressNote(ctx context.Context, actor authz.Actor, id uuid.UUID, note string) (*BeneficiaryDTO, error) {
	if err := actor.Authorize(authz.BeneficiaryManage); err != nil {
		s.observe("add_note", err)
		return nil, err
	}
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "note cannot be blank")
	}

	var updated *models.Beneficiary
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		b, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return lookupError(err)
		}
		notes := AppendNote(b.ProgressNotes, noteProgress, today(s.now()), note)
		if err := repo.UpdateFields(ctx, b.ID, map[string]any{"progress_notes": notes}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append progress note")
		}
		b.ProgressNotes = &notes
		updated = b
		return nil
	})
	s.observe("add_note", err)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID:      audit.Ptr(actor.ID),
		Action:       enums.AuditBeneficiaryNoteAdded,
		ResourceType: enums.AuditResourceBeneficiary,
		ResourceID:   audit.Ptr(updated.ID),
		NewValues:    map[string]any{"note": note},
		Description:  "progress note added",
	})
	return FromModel(updated), nil
}

func (s *service) Update(ctx context.Context, actor authz.Actor, id uuid.UUID, input UpdateInput) (*BeneficiaryDTO, error) {
	if err := actor.Authorize(authz.BeneficiaryManage); err != nil {
		s.observe("update", err)
		return nil, err
	}
	if err := validateHousehold(input.HouseholdSize, input.MonthlyIncome); err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if input.EmergencyContactName != nil {
		fields["emergency_contact_name"] = trimmed(input.EmergencyContactName)
	}
	if input.EmergencyContactPhone != nil {
		normalized, err := phone.NormalizeOptional(input.EmergencyContactPhone)
		if err != nil {
			s.observe("update", invalidPhone())
			return nil, invalidPhone()
		}
		fields["emergency_contact_phone"] = normalized
	}
	if input.HouseholdSize != nil {
		fields["household_size"] = *input.HouseholdSize
	}
	if input.MonthlyIncome != nil {
		fields["monthly_income"] = *input.MonthlyIncome
	}
	if len(fields) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no beneficiary fields provided")
	}

	var before, after *models.Beneficiary
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		current, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return lookupError(err)
		}
		if err := repo.UpdateFields(ctx, current.ID, fields); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update beneficiary")
		}
		reloaded, err := repo.FindByID(ctx, current.ID)
		if err != nil {
			return lookupError(err)
		}
		before, after = current, reloaded
		return nil
	})
	s.observe("update", err)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID:      audit.Ptr(actor.ID),
		Action:       enums.AuditBeneficiaryUpdated,
		ResourceType: enums.AuditResourceBeneficiary,
		ResourceID:   audit.Ptr(after.ID),
		OldValues:    audit.Snapshot(FromModel(before)),
		NewValues:    audit.Snapshot(FromModel(after)),
	})
	return FromModel(after), nil
}

func (s *service) Delete(ctx context.Context, actor authz.Actor, id uuid.UUID) error {
	if err := actor.Authorize(authz.BeneficiaryDelete); err != nil {
		s.observe("delete", err)
		return err
	}

	var deleted *models.Beneficiary
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		b, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return lookupError(err)
		}
		if err := repo.UpdateFields(ctx, b.ID, map[string]any{"is_active": false}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete beneficiary")
		}
		deleted = b
		return nil
	})
	s.observe("delete", err)
	if err != nil {
		return err
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID:      audit.Ptr(actor.ID),
		Action:       enums.AuditBeneficiaryDeleted,
		ResourceType: enums.AuditResourceBeneficiary,
		ResourceID:   audit.Ptr(deleted.ID),
		OldValues:    audit.Snapshot(FromModel(deleted)),
	})
	return nil
}

func (s *service) Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (*BeneficiaryDTO, error) {
	b, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err)
	}
	if b.UserID != actor.ID {
		if err := actor.Authorize(authz.BeneficiaryRead); err != nil {
			return nil, err
		}
	}
	return FromModel(b), nil
}

func (s *service) List(ctx context.Context, actor authz.Actor, filter ListFilter) (Page, error) {
	if err := actor.Authorize(authz.BeneficiaryRead); err != nil {
		return Page{}, err
	}
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
		return Page{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list beneficiaries")
	}

	rows, next := pagination.Trim(rows, filter.Limit, func(m models.Beneficiary) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})
	page := Page{Items: make([]BeneficiaryDTO, 0, len(rows)), NextCursor: next}
	for i := range rows {
		page.Items = append(page.Items, *FromModel(&rows[i]))
	}
	return page, nil
}

func (s *service) Statistics(ctx context.Context, actor authz.Actor) (*Statistics, error) {
	if err := actor.Authorize(authz.BeneficiaryRead); err != nil {
		return nil, err
	}
	byStatus, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count beneficiaries")
	}
	since := firstOfMonth(s.now())
	enrolled, err := s.repo.CountEnrolledSince(ctx, since)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count enrollments")
	}
	completed, err := s.repo.CountCompletedSince(ctx, since)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count completions")
	}
	perProgram, err := s.repo.CountByProgram(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count per program")
	}

	stats := &Statistics{
		ByStatus:          map[string]int64{},
		RecentEnrollments: enrolled,
		RecentCompletions: completed,
		ByProgram:         make([]ProgramCount, 0, len(perProgram)),
	}
	for _, status := range enums.AllBeneficiaryStatuses() {
		stats.ByStatus[string(status)] = 0
	}
	for _, row := range byStatus {
		stats.ByStatus[string(row.Status)] = row.Total
		stats.Total += row.Total
	}
	for _, row := range perProgram {
		stats.ByProgram = append(stats.ByProgram, ProgramCount{ProgramID: row.ProgramID, Title: row.Title, Total: row.Total})
	}
	return stats, nil
}

func (s *service) notify(ctx context.Context, msg notifications.Message) {
	if s.notifier != nil {
		s.notifier.Send(ctx, msg)
	}
}

func (s *service) observe(action string, err error) {
	if s.metrics != nil {
		s.metrics.ObserveTransition("beneficiary", action, metrics.OutcomeFor(err))
	}
}

func validateHousehold(size *int, income *decimal.Decimal) error {
	if size != nil && *size < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "household size must be at least 1")
	}
	if income != nil && income.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "monthly income cannot be negative")
	}
	return nil
}

func lookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "beneficiary not found")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load beneficiary")
}

func alreadyExists() error {
	return pkgerrors.New(pkgerrors.CodeConflict, "application already has an active beneficiary").
		WithReason(ReasonBeneficiaryAlreadyExists)
}

func invalidPhone() error {
	return pkgerrors.New(pkgerrors.CodeValidation, "emergency contact phone must be a valid philippine mobile number").
		WithReason(ReasonInvalidPhoneFormat)
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
