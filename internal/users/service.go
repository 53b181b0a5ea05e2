package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/livelihood-backend/internal/audit"
	"github.com/angelmondragon/livelihood-backend/internal/authz"
	"github.com/angelmondragon/livelihood-backend/pkg/config"
	"github.com/angelmondragon/livelihood-backend/pkg/db"
	"github.com/angelmondragon/livelihood-backend/pkg/db/models"
	"github.com/angelmondragon/livelihood-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/livelihood-backend/pkg/errors"
	"github.com/angelmondragon/livelihood-backend/pkg/logger"
	"github.com/angelmondragon/livelihood-backend/pkg/metrics"
	"github.com/angelmondragon/livelihood-backend/pkg/pagination"
	"github.com/angelmondragon/livelihood-backend/pkg/phone"
	"github.com/angelmondragon/livelihood-backend/pkg/security"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ReasonUserHasDependents  = "UserHasDependents"
	ReasonInvalidPhoneFormat = "InvalidPhoneFormat"
	ReasonEmailTaken         = "EmailTaken"

	tempPasswordLength = 14
)

// Service exposes account management for the current user and administrators.
type Service interface {
	Me(ctx context.Context, actor authz.Actor) (*UserDTO, error)
	UpdateProfile(ctx context.Context, actor authz.Actor, input UpdateProfileInput) (*UserDTO, error)
	List(ctx context.Context, actor authz.Actor, filter ListFilter) (Page, error)
	Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (*UserDTO, error)
	Promote(ctx context.Context, actor authz.Actor, targetID uuid.UUID, newRole enums.Role) (*UserDTO, error)
	Demote(ctx context.Context, actor authz.Actor, targetID uuid.UUID, newRole enums.Role) (*UserDTO, error)
	Activate(ctx context.Context, actor authz.Actor, targetID uuid.UUID) (*UserDTO, error)
	Deactivate(ctx context.Context, actor authz.Actor, targetID uuid.UUID) (*UserDTO, error)
	Delete(ctx context.Context, actor authz.Actor, targetID uuid.UUID) error
	CreateByAdmin(ctx context.Context, actor authz.Actor, input CreateByAdminInput) (*CreatedUser, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type userReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	List(ctx context.Context, opts listQuery) ([]models.User, error)
}

type auditRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

// ServiceParams bundles the dependencies required to build a users service.
type ServiceParams struct {
	DB             txRunner
	Repo           userReader
	Audit          auditRecorder
	Metrics        metrics.TransitionObserver
	PasswordConfig config.PasswordConfig
	Logger         *logger.Logger
}

type service struct {
	tx       txRunner
	repo     userReader
	audit    auditRecorder
	metrics  metrics.TransitionObserver
	passCfg  config.PasswordConfig
	logg     *logger.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewService constructs the users service.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit recorder is required")
	}
	return &service{
		tx:       params.DB,
		repo:     params.Repo,
		audit:    params.Audit,
		metrics:  params.Metrics,
		passCfg:  params.PasswordConfig,
		logg:     params.Logger,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Me(ctx context.Context, actor authz.Actor) (*UserDTO, error) {
	user, err := s.repo.FindByID(ctx, actor.ID)
	if err != nil {
		return nil, lookupError(err)
	}
	return FromModel(user), nil
}

func (s *service) UpdateProfile(ctx context.Context, actor authz.Actor, input UpdateProfileInput) (*UserDTO, error) {
	fields := map[string]any{}
	if input.Email != nil {
		email := NormalizeEmail(*input.Email)
		if err := s.validate.Var(email, "required,email"); err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid email address")
		}
		fields["email"] = email
	}
	if input.FirstName != nil {
		name := strings.TrimSpace(*input.FirstName)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "first name cannot be blank")
		}
		fields["first_name"] = name
	}
	if input.LastName != nil {
		name := strings.TrimSpace(*input.LastName)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "last name cannot be blank")
		}
		fields["last_name"] = name
	}
	if input.MiddleName != nil {
		fields["middle_name"] = blankToNil(*input.MiddleName)
	}
	if input.Address != nil {
		fields["address"] = blankToNil(*input.Address)
	}
	if input.Phone != nil {
		normalized, err := phone.NormalizeOptional(input.Phone)
		if err != nil {
			return nil, invalidPhone()
		}
		fields["phone"] = normalized
	}
	if len(fields) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no profile fields provided")
	}

	var before, after *models.User
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		current, err := repo.FindByIDForUpdate(ctx, actor.ID)
		if err != nil {
			return lookupError(err)
		}
		if email, ok := fields["email"].(string); ok && email != current.Email {
			taken, err := repo.EmailTaken(ctx, email, current.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check email")
			}
			if taken {
				return emailTaken()
			}
		}
		if err := repo.UpdateFields(ctx, current.ID, fields); err != nil {
			if db.IsUniqueViolation(err, "") {
				return emailTaken()
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update profile")
		}
		updated, err := repo.FindByID(ctx, current.ID)
		if err != nil {
			return lookupError(err)
		}
		before, after = current, updated
		return nil
	})
	s.observe("update_profile", err)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID:      audit.Ptr(actor.ID),
		Action:       enums.AuditUserUpdated,
		ResourceType: enums.AuditResourceUser,
		ResourceID:   audit.Ptr(after.ID),
		OldValues:    audit.Snapshot(FromModel(before)),
		NewValues:    audit.Snapshot(FromModel(after)),
		Description:  "profile updated",
	})
	return FromModel(after), nil
}

func (s *service) List(ctx context.Context, actor authz.Actor, filter ListFilter) (Page, error) {
	if err := actor.Authorize(authz.UserRead); err != nil {
		return Page{}, err
	}
	if filter.Role != nil && !filter.Role.IsValid() {
		return Page{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid role filter")
	}
	cursor, err := pagination.ParseCursor(filter.Cursor)
	if err != nil {
		return Page{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.List(ctx, listQuery{
		search: filter.Search,
		role:   filter.Role,
		active: filter.Active,
		cursor: cursor,
		limit:  pagination.LimitWithBuffer(filter.Limit),
	})
	if err != nil {
		return Page{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list users")
	}

	rows, next := pagination.Trim(rows, filter.Limit, func(m models.User) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})
	page := Page{Items: make([]UserDTO, 0, len(rows)), NextCursor: next}
	for i := range rows {
		page.Items = append(page.Items, *FromModel(&rows[i]))
	}
	return page, nil
}

func (s *service) Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (*UserDTO, error) {
	if actor.ID != id {
		if err := actor.Authorize(authz.UserRead); err != nil {
			return nil, err
		}
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err)
	}
	return FromModel(user), nil
}

func (s *service) Promote(ctx context.Context, actor authz.Actor, targetID uuid.UUID, newRole enums.Role) (*UserDTO, error) {
	return s.changeRole(ctx, actor, targetID, newRole, true)
}

func (s *service) Demote(ctx context.Context, actor authz.Actor, targetID uuid.UUID, newRole enums.Role) (*UserDTO, error) {
	return s.changeRole(ctx, actor, targetID, newRole, false)
}

func (s *service) changeRole(ctx context.Context, actor authz.Actor, targetID uuid.UUID, newRole enums.Role, promote bool) (*UserDTO, error) {
	opName, action, permission := "demote", enums.AuditUserDemoted, authz.UserDemote
	if promote {
		opName, action, permission = "promote", enums.AuditUserPromoted, authz.UserPromote
	}

	if err := authz.GuardSelfTarget(actor.ID, targetID); err != nil {
		s.observe(opName, err)
		return nil, err
	}
	if err := actor.Authorize(permission); err != nil {
		s.observe(opName, err)
		return nil, err
	}
	if !newRole.IsValid() {
		err := pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
		s.observe(opName, err)
		return nil, err
	}
	if promote && !authz.CanPromote(actor.Role, newRole) {
		err := pkgerrors.New(pkgerrors.CodeForbidden, "role cannot grant the requested role").
			WithDetails(map[string]any{"role": string(newRole)})
		s.observe(opName, err)
		return nil, err
	}

	var oldRole enums.Role
	var updated *models.User
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		target, err := repo.FindByIDForUpdate(ctx, targetID)
		if err != nil {
			return lookupError(err)
		}
		if promote && !newRole.Above(target.Role) {
			return pkgerrors.New(pkgerrors.CodeValidation, "new role must rank above the current role").
				WithDetails(map[string]any{"current_role": string(target.Role), "role": string(newRole)})
		}
		if !promote {
			if !authz.CanDemote(actor.Role, target.Role) {
				return pkgerrors.New(pkgerrors.CodeForbidden, "role cannot demote this account").
					WithDetails(map[string]any{"current_role": string(target.Role)})
			}
			if !target.Role.Above(newRole) {
				return pkgerrors.New(pkgerrors.CodeValidation, "new role must rank below the current role").
					WithDetails(map[string]any{"current_role": string(target.Role), "role": string(newRole)})
			}
		}
		if err := repo.UpdateFields(ctx, target.ID, map[string]any{"role": newRole}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update role")
		}
		oldRole = target.Role
		target.Role = newRole
		updated = target
		return nil
	})
	s.observe(opName, err)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID:      audit.Ptr(actor.ID),
		Action:       action,
		ResourceType: enums.AuditResourceUser,
		ResourceID:   audit.Ptr(updated.ID),
		OldValues:    roleSnapshot(oldRole),
		NewValues:    roleSnapshot(newRole),
		Description:  fmt.Sprintf("%s %s from %s to %s", opName, updated.Email, oldRole, newRole),
	})
	return FromModel(updated), nil
}

func (s *service) Activate(ctx context.Context, actor authz.Actor, targetID uuid.UUID) (*UserDTO, error) {
	return s.setActive(ctx, actor, targetID, true)
}

func (s *service) Deactivate(ctx context.Context, actor authz.Actor, targetID uuid.UUID) (*UserDTO, error) {
	return s.setActive(ctx, actor, targetID, false)
}

func (s *service) setActive(ctx context.Context, actor authz.Actor, targetID uuid.UUID, active bool) (*UserDTO, error) {
	opName, action, permission := "deactivate", enums.AuditUserDeactivated, authz.UserDeactivate
	if active {
		opName, action, permission = "activate", enums.AuditUserActivated, authz.UserActivate
	}

	if !active {
		if err := authz.GuardSelfTarget(actor.ID, targetID); err != nil {
			s.observe(opName, err)
			return nil, err
		}
	}
	if err := actor.Authorize(permission); err != nil {
		s.observe(opName, err)
		return nil, err
	}

	var previous bool
	var updated *models.User
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		target, err := repo.FindByIDForUpdate(ctx, targetID)
		if err != nil {
			return lookupError(err)
		}
		if !active && target.Role.Above(actor.Role) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "cannot deactivate a higher-ranked account")
		}
		if err := repo.UpdateFields(ctx, target.ID, map[string]any{"is_active": active}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update active flag")
		}
		previous = target.IsActive
		target.IsActive = active
		updated = target
		return nil
	})
	s.observe(opName, err)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID:      audit.Ptr(actor.ID),
		Action:       action,
		ResourceType: enums.AuditResourceUser,
		ResourceID:   audit.Ptr(updated.ID),
		OldValues:    activeSnapshot(previous),
		NewValues:    activeSnapshot(active),
	})
	return FromModel(updated), nil
}

func (s *service) Delete(ctx context.Context, actor authz.Actor, targetID uuid.UUID) error {
	if err := authz.GuardSelfTarget(actor.ID, targetID); err != nil {
		s.observe("delete", err)
		return err
	}
	if err := actor.Authorize(authz.UserDelete); err != nil {
		s.observe("delete", err)
		return err
	}

	var deleted *models.User
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		target, err := repo.FindByIDForUpdate(ctx, targetID)
		if err != nil {
			return lookupError(err)
		}
		if target.Role == enums.RoleSuperAdmin || target.Role.Above(actor.Role) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "cannot delete this account")
		}
		applications, beneficiaries, err := repo.CountBlockingDependents(ctx, target.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count user dependents")
		}
		if applications > 0 || beneficiaries > 0 {
			return pkgerrors.New(pkgerrors.CodeDependencyBlocked, "user has active applications or enrollments").
				WithReason(ReasonUserHasDependents).
				WithDetails(map[string]any{
					"active_applications":  applications,
					"active_beneficiaries": beneficiaries,
				})
		}
		if err := repo.UpdateFields(ctx, target.ID, map[string]any{"is_active": false, "is_deleted": true}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete user")
		}
		deleted = target
		return nil
	})
	s.observe("delete", err)
	if err != nil {
		return err
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID:      audit.Ptr(actor.ID),
		Action:       enums.AuditUserDeleted,
		ResourceType: enums.AuditResourceUser,
		ResourceID:   audit.Ptr(deleted.ID),
		OldValues:    audit.Snapshot(FromModel(deleted)),
		Description:  fmt.Sprintf("deleted %s", deleted.Email),
	})
	return nil
}

func (s *service) CreateByAdmin(ctx context.Context, actor authz.Actor, input CreateByAdminInput) (*CreatedUser, error) {
	if err := actor.Authorize(authz.UserCreate); err != nil {
		s.observe("create", err)
		return nil, err
	}
	if !authz.CanAssignRole(actor.Role, input.Role) {
		err := pkgerrors.New(pkgerrors.CodeForbidden, "role cannot create accounts with the requested role").
			WithDetails(map[string]any{"role": string(input.Role)})
		s.observe("create", err)
		return nil, err
	}

	email := NormalizeEmail(input.Email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid email address")
	}
	firstName, lastName := strings.TrimSpace(input.FirstName), strings.TrimSpace(input.LastName)
	if firstName == "" || lastName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "first and last name are required")
	}
	phoneNumber, err := phone.NormalizeOptional(input.Phone)
	if err != nil {
		return nil, invalidPhone()
	}

	password, temporary := input.Password, ""
	if password == "" {
		generated, err := security.GenerateTempPassword(tempPasswordLength)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate password")
		}
		password, temporary = generated, generated
	} else if problems := security.ValidatePasswordStrength(password); len(problems) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password does not meet requirements").
			WithDetails(map[string]any{"password": problems})
	}
	hash, err := security.HashPassword(password, s.passCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	active := true
	var created *models.User
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		if _, err := repo.FindByEmail(ctx, email); err == nil {
			return emailTaken()
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup email")
		}
		user, err := repo.Create(ctx, CreateUserDTO{
			Email:        email,
			PasswordHash: hash,
			FirstName:    firstName,
			LastName:     lastName,
			Phone:        phoneNumber,
			Role:         input.Role,
			IsVerified:   true,
			IsActive:     &active,
		})
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return emailTaken()
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
		}
		created = user
		return nil
	})
	s.observe("create", err)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID:      audit.Ptr(actor.ID),
		Action:       enums.AuditUserCreated,
		ResourceType: enums.AuditResourceUser,
		ResourceID:   audit.Ptr(created.ID),
		NewValues:    audit.Snapshot(FromModel(created)),
		Description:  fmt.Sprintf("created %s account %s", created.Role, created.Email),
	})
	return &CreatedUser{User: FromModel(created), TemporaryPassword: temporary}, nil
}

func (s *service) observe(action string, err error) {
	if s.metrics != nil {
		s.metrics.ObserveTransition("user", action, metrics.OutcomeFor(err))
	}
}

func lookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
}

func emailTaken() error {
	return pkgerrors.New(pkgerrors.CodeConflict, "email already registered").WithReason(ReasonEmailTaken)
}

func invalidPhone() error {
	return pkgerrors.New(pkgerrors.CodeValidation, "phone must be a valid philippine mobile number").
		WithReason(ReasonInvalidPhoneFormat)
}

func blankToNil(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
