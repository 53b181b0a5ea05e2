package programs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/livelihood-backend/internal/audit"
	"github.com/angelmondragon/livelihood-backend/internal/authz"
	"github.com/angelmondragon/livelihood-backend/pkg/db"
	"github.com/angelmondragon/livelihood-backend/pkg/db/models"
	"github.com/angelmondragon/livelihood-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/livelihood-backend/pkg/errors"
	"github.com/angelmondragon/livelihood-backend/pkg/logger"
	"github.com/angelmondragon/livelihood-backend/pkg/metrics"
	"github.com/angelmondragon/livelihood-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	ReasonProgramHasDependents = "ProgramHasDependents"
	ReasonProgramCodeTaken     = "ProgramCodeTaken"
	ReasonInvalidTitle         = "InvalidTitle"
)

// Service manages the program catalogue and its lifecycle toggles.
type Service interface {
	Create(ctx context.Context, actor authz.Actor, input CreateInput) (*ProgramDTO, error)
	Update(ctx context.Context, actor authz.Actor, id uuid.UUID, input UpdateInput) (*ProgramDTO, error)
	Activate(ctx context.Context, actor authz.Actor, id uuid.UUID) (*ProgramDTO, error)
	Deactivate(ctx context.Context, actor authz.Actor, id uuid.UUID) (*ProgramDTO, error)
	Feature(ctx context.Context, actor authz.Actor, id uuid.UUID) (*ProgramDTO, error)
	Unfeature(ctx context.Context, actor authz.Actor, id uuid.UUID) (*ProgramDTO, error)
	Delete(ctx context.Context, actor authz.Actor, id uuid.UUID) error
	Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (*ProgramDTO, error)
	List(ctx context.Context, actor authz.Actor, filter ListFilter) (Page, error)
	Statistics(ctx context.Context, actor authz.Actor, id uuid.UUID) (*Statistics, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type programReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Program, error)
	List(ctx context.Context, opts listQuery) ([]models.Program, error)
	ApplicationCountsByStatus(ctx context.Context, programID uuid.UUID) ([]StatusCount, error)
	BeneficiaryCountsByStatus(ctx context.Context, programID uuid.UUID) ([]StatusCount, error)
}

type auditRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

// ServiceParams bundles the dependencies required to build a programs service.
type ServiceParams struct {
	DB      txRunner
	Repo    programReader
	Audit   auditRecorder
	Metrics metrics.TransitionObserver
	Logger  *logger.Logger
	Now     func() time.Time
}

type service struct {
	tx      txRunner
	repo    programReader
	audit   auditRecorder
	metrics metrics.TransitionObserver
	logg    *logger.Logger
	now     func() time.Time
}

// NewService constructs the programs service.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("program repository is required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit recorder is required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		tx:      params.DB,
		repo:    params.Repo,
		audit:   params.Audit,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     now,
	}, nil
}

func (s *service) Create(ctx context.Context, actor authz.Actor, input CreateInput) (*ProgramDTO, error) {
	if err := actor.Authorize(authz.ProgramManage); err != nil {
		s.observe("create", err)
		return nil, err
	}
	title := strings.TrimSpace(input.Title)
	if !ValidTitle(title) {
		return nil, invalidTitle()
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "description is required")
	}
	if !input.Category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid program category").
			WithDetails(map[string]any{"category": string(input.Category)})
	}
	if err := validateDates(input.StartDate, input.EndDate); err != nil {
		return nil, err
	}
	if err := validateBudget(input.Budget); err != nil {
		return nil, err
	}

	now := s.now()
	creator := actor.ID
	program := &models.Program{
		Title:               title,
		Description:         description,
		Category:            input.Category,
		MaxParticipants:     input.MaxParticipants,
		StartDate:           input.StartDate,
		EndDate:             input.EndDate,
		ApplicationDeadline: input.ApplicationDeadline,
		Location:            blankToNil(input.Location),
		Requirements:        blankToNil(input.Requirements),
		Budget:              input.Budget,
		Status:              enums.ProgramStatusDraft,
		IsActive:            true,
		CreatedBy:           &creator,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		code := NormalizeCode(input.ProgramCode)
		if code == "" {
			prefix := CodePrefix(title, now.Year())
			count, err := repo.CountByCodePrefix(ctx, prefix)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count program codes")
			}
			code = FormatCode(prefix, count+1)
		}
		taken, err := repo.CodeExists(ctx, code, uuid.Nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check program code")
		}
		if taken {
			return codeTaken(code)
		}
		program.ProgramCode = code
		if err := repo.Create(ctx, program); err != nil {
			if db.IsUniqueViolation(err, "") {
				return codeTaken(code)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create program")
		}
		return nil
	})
	s.observe("create", err)
	if err != nil {
		return nil, err
	}

	dto := FromModel(program, now)
	s.audit.Record(ctx, audit.Entry{
		ActorID:      audit.Ptr(actor.ID),
		Action:       enums.AuditProgramCreated,
		ResourceType: enums.AuditResourceProgram,
		ResourceID:   audit.Ptr(program.ID),
		NewValues:    audit.Snapshot(dto),
		Description:  fmt.Sprintf("created program %s", program.ProgramCode),
	})
	return dto, nil
}

func (s *service) Update(ctx context.Context, actor authz.Actor, id uuid.UUID, input UpdateInput) (*ProgramDTO, error) {
	if err := actor.Authorize(authz.ProgramManage); err != nil {
		s.observe("update", err)
		return nil, err
	}

	fields := map[string]any{}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if !ValidTitle(title) {
			return nil, invalidTitle()
		}
		fields["title"] = title
	}
	if input.Description != nil {
		description := strings.TrimSpace(*input.Description)
		if description == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "description cannot be blank")
		}
		fields["description"] = description
	}
	if input.Category != nil {
		if !input.Category.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid program category")
		}
		fields["category"] = *input.Category
	}
	if input.Status != nil {
		if !input.Status.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid program status")
		}
		fields["status"] = *input.Status
	}
	var code string
	if input.ProgramCode != nil {
		code = NormalizeCode(*input.ProgramCode)
		if code == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "program code cannot be blank")
		}
		fields["program_code"] = code
	}
	if input.MaxParticipants != nil {
		fields["max_participants"] = *input.MaxParticipants
	}
	if input.StartDate != nil {
		fields["start_date"] = *input.StartDate
	}
	if input.EndDate != nil {
		fields["end_date"] = *input.EndDate
	}
	if input.ApplicationDeadline != nil {
		fields["application_deadline"] = *input.ApplicationDeadline
	}
	if input.Location != nil {
		fields["location"] = blankToNil(input.Location)
	}
	if input.Requirements != nil {
		fields["requirements"] = blankToNil(input.Requirements)
	}
	if input.Budget != nil {
		if err := validateBudget(input.Budget); err != nil {
			return nil, err
		}
		fields["budget"] = *input.Budget
	}
	if len(fields) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no program fields provided")
	}

	var before, after *models.Program
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		current, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return lookupError(err)
		}
		start, end := current.StartDate, current.EndDate
		if input.StartDate != nil {
			start = input.StartDate
		}
		if input.EndDate != nil {
			end = input.EndDate
		}
		if err := validateDates(start, end); err != nil {
			return err
		}
		if code != "" && code != current.ProgramCode {
			taken, err := repo.CodeExists(ctx, code, current.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check program code")
			}
			if taken {
				return codeTaken(code)
			}
		}
		if err := repo.UpdateFields(ctx, current.ID, fields); err != nil {
			if db.IsUniqueViolation(err, "") {
				return codeTaken(code)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update program")
		}
		updated, err := repo.FindByID(ctx, current.ID)
		if err != nil {
			return lookupError(err)
		}
		before, after = current, updated
		return nil
	})
	s.observe("update", err)
	if err != nil {
		return nil, err
	}

	now := s.now()
	dto := FromModel(after, now)
	s.audit.Record(ctx, audit.Entry{
		ActorID:      audit.Ptr(actor.ID),
		Action:       enums.AuditProgramUpdated,
		ResourceType: enums.AuditResourceProgram,
		ResourceID:   audit.Ptr(after.ID),
		OldValues:    audit.Snapshot(FromModel(before, now)),
		NewValues:    audit.Snapshot(dto),
		Description:  fmt.Sprintf("updated program %s", after.ProgramCode),
	})
	return dto, nil
}

type toggle struct {
	op     string
	action enums.AuditAction
	fields map[string]any
}

func (s *service) Activate(ctx context.Context, actor authz.Actor, id uuid.UUID) (*ProgramDTO, error) {
	return s.apply(ctx, actor, id, toggle{
		op:     "activate",
		action: enums.AuditProgramActivated,
		fields: map[string]any{"status": enums.ProgramStatusActive, "is_active": true},
	})
}

func (s *service) Deactivate(ctx context.Context, actor authz.Actor, id uuid.UUID) (*ProgramDTO, error) {
	return s.apply(ctx, actor, id, toggle{
		op:     "deactivate",
		action: enums.AuditProgramDeactivated,
		fields: map[string]any{"status": enums.ProgramStatusInactive, "is_active": false},
	})
}

func (s *service) Feature(ctx context.Context, actor authz.Actor, id uuid.UUID) (*ProgramDTO, error) {
	return s.apply(ctx, actor, id, toggle{
		op:     "feature",
		action: enums.AuditProgramFeatured,
		fields: map[string]any{"is_featured": true},
	})
}

func (s *service) Unfeature(ctx context.Context, actor authz.Actor, id uuid.UUID) (*ProgramDTO, error) {
	return s.apply(ctx, actor, id, toggle{
		op:     "unfeature",
		action: enums.AuditProgramUnfeatured,
		fields: map[string]any{"is_featured": false},
	})
}

// apply writes a lifecycle toggle. Toggles are unconditional: repeating one
// leaves the state unchanged but still records an audit row.
func (s *service) apply(ctx context.Context, actor authz.Actor, id uuid.UUID, t toggle) (*ProgramDTO, error) {
	if err := actor.Authorize(authz.ProgramManage); err != nil {
		s.observe(t.op, err)
		return nil, err
	}

	var before, after *models.Program
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		current, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return lookupError(err)
		}
		if err := repo.UpdateFields(ctx, current.ID, t.fields); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, t.op+" program")
		}
		updated, err := repo.FindByID(ctx, current.ID)
		if err != nil {
			return lookupError(err)
		}
		before, after = current, updated
		return nil
	})
	s.observe(t.op, err)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID:      audit.Ptr(actor.ID),
		Action:       t.action,
		ResourceType: enums.AuditResourceProgram,
		ResourceID:   audit.Ptr(after.ID),
		OldValues:    stateSnapshot(before),
		NewValues:    stateSnapshot(after),
		Description:  fmt.Sprintf("%s program %s", t.op, after.ProgramCode),
	})
	return FromModel(after, s.now()), nil
}

func (s *service) Delete(ctx context.Context, actor authz.Actor, id uuid.UUID) error {
	if err := actor.Authorize(authz.ProgramDelete); err != nil {
		s.observe("delete", err)
		return err
	}

	var deleted *models.Program
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		current, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return lookupError(err)
		}
		applications, beneficiaries, err := repo.CountBlockingDependents(ctx, current.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count program dependents")
		}
		if applications > 0 || beneficiaries > 0 {
			return pkgerrors.New(pkgerrors.CodeDependencyBlocked, "program has active applications or beneficiaries").
				WithReason(ReasonProgramHasDependents).
				WithDetails(map[string]any{
					"active_applications":  applications,
					"active_beneficiaries": beneficiaries,
				})
		}
		if err := repo.UpdateFields(ctx, current.ID, map[string]any{"is_active": false, "is_deleted": true}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete program")
		}
		deleted = current
		return nil
	})
	s.observe("delete", err)
	if err != nil {
		return err
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID:      audit.Ptr(actor.ID),
		Action:       enums.AuditProgramDeleted,
		ResourceType: enums.AuditResourceProgram,
		ResourceID:   audit.Ptr(deleted.ID),
		OldValues:    audit.Snapshot(FromModel(deleted, s.now())),
		Description:  fmt.Sprintf("deleted program %s", deleted.ProgramCode),
	})
	return nil
}

func (s *service) Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (*ProgramDTO, error) {
	program, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err)
	}
	if !program.IsActive && !actor.Can(authz.ProgramManage) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "program not found")
	}
	return FromModel(program, s.now()), nil
}

func (s *service) List(ctx context.Context, actor authz.Actor, filter ListFilter) (Page, error) {
	if filter.Category != nil && !filter.Category.IsValid() {
		return Page{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid category filter")
	}
	if filter.Status != nil && !filter.Status.IsValid() {
		return Page{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	cursor, err := pagination.ParseCursor(filter.Cursor)
	if err != nil {
		return Page{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	active := filter.Active
	if !actor.Can(authz.ProgramManage) {
		only := true
		active = &only
	}

	rows, err := s.repo.List(ctx, listQuery{
		search:   filter.Search,
		category: filter.Category,
		status:   filter.Status,
		featured: filter.Featured,
		active:   active,
		cursor:   cursor,
		limit:    pagination.LimitWithBuffer(filter.Limit),
	})
	if err != nil {
		return Page{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list programs")
	}

	now := s.now()
	rows, next := pagination.Trim(rows, filter.Limit, func(m models.Program) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})
	page := Page{Items: make([]ProgramDTO, 0, len(rows)), NextCursor: next}
	for i := range rows {
		page.Items = append(page.Items, *FromModel(&rows[i], now))
	}
	return page, nil
}

func (s *service) Statistics(ctx context.Context, actor authz.Actor, id uuid.UUID) (*Statistics, error) {
	if err := actor.Authorize(authz.BeneficiaryRead); err != nil {
		return nil, err
	}
	program, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err)
	}
	applications, err := s.repo.ApplicationCountsByStatus(ctx, program.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count applications")
	}
	beneficiaries, err := s.repo.BeneficiaryCountsByStatus(ctx, program.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count beneficiaries")
	}

	stats := &Statistics{
		ProgramID:             program.ID,
		ProgramCode:           program.ProgramCode,
		Applications:          map[string]int64{},
		Beneficiaries:         map[string]int64{},
		MaxParticipants:       program.MaxParticipants,
		CurrentParticipants:   program.CurrentParticipants,
		AcceptingApplications: AcceptingApplications(program, s.now()),
	}
	for _, status := range []enums.ApplicationStatus{
		enums.ApplicationStatusPending,
		enums.ApplicationStatusApproved,
		enums.ApplicationStatusRejected,
		enums.ApplicationStatusWithdrawn,
	} {
		stats.Applications[string(status)] = 0
	}
	for _, status := range enums.AllBeneficiaryStatuses() {
		stats.Beneficiaries[string(status)] = 0
	}
	for _, row := range applications {
		stats.Applications[row.Status] = row.Total
		stats.TotalApplications += row.Total
	}
	for _, row := range beneficiaries {
		stats.Beneficiaries[row.Status] = row.Total
		stats.TotalBeneficiaries += row.Total
	}
	if capacity := program.MaxParticipants; capacity != nil && *capacity > 0 {
		utilization := float64(program.CurrentParticipants) / float64(*capacity) * 100
		stats.CapacityUtilization = &utilization
	}
	return stats, nil
}

func (s *service) observe(action string, err error) {
	if s.metrics != nil {
		s.metrics.ObserveTransition("program", action, metrics.OutcomeFor(err))
	}
}

func validateDates(start, end *time.Time) error {
	if start != nil && end != nil && !end.After(*start) {
		return pkgerrors.New(pkgerrors.CodeValidation, "end date must be after start date")
	}
	return nil
}

func validateBudget(budget *decimal.Decimal) error {
	if budget != nil && !budget.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "budget must be greater than zero")
	}
	return nil
}

func lookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "program not found")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load program")
}

func codeTaken(code string) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "program code already exists").
		WithReason(ReasonProgramCodeTaken).
		WithDetails(map[string]any{"program_code": code})
}

func invalidTitle() error {
	return pkgerrors.New(pkgerrors.CodeValidation, "title must be 5-200 characters of letters, digits, spaces and basic punctuation").
		WithReason(ReasonInvalidTitle)
}

func blankToNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
