// Package authz holds the fixed role policy. Every lifecycle operation calls
// Authorize before touching the store; self-target and exact-role rules that
// depend on the target live here too so callers cannot forget one half.
package authz

import (
	"github.com/angelmondragon/livelihood-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/livelihood-backend/pkg/errors"
	"github.com/google/uuid"
)

// Action is a dotted permission key.
type Action string

const (
	ProgramManage Action = "program.manage"
	ProgramDelete Action = "program.delete"

	ApplicationCreate    Action = "application.create"
	ApplicationUpdateOwn Action = "application.update_own"
	ApplicationWithdraw  Action = "application.withdraw"
	ApplicationReadOwn   Action = "application.read_own"
	ApplicationReview    Action = "application.review"
	ApplicationReadAny   Action = "application.read_any"
	ApplicationUpdateAny Action = "application.update_any"
	ApplicationDelete    Action = "application.delete"

	BeneficiaryRead   Action = "beneficiary.read"
	BeneficiaryManage Action = "beneficiary.manage"
	BeneficiaryDelete Action = "beneficiary.delete"

	UserRead       Action = "user.read"
	UserCreate     Action = "user.create"
	UserPromote    Action = "user.promote"
	UserDemote     Action = "user.demote"
	UserActivate   Action = "user.activate"
	UserDeactivate Action = "user.deactivate"
	UserDelete     Action = "user.delete"

	AuditRead     Action = "audit.read"
	DashboardRead Action = "dashboard.read"
)

// ReasonSelfTarget is attached to errors raised by GuardSelfTarget.
const ReasonSelfTarget = "SelfTargetNotAllowed"

// minimumRole is the lowest role allowed to perform each action. Higher roles inherit.
var minimumRole = map[Action]enums.Role{
	ProgramManage: enums.RoleAdmin,
	ProgramDelete: enums.RoleAdmin,

	ApplicationCreate:    enums.RoleBeneficiary,
	ApplicationUpdateOwn: enums.RoleBeneficiary,
	ApplicationWithdraw:  enums.RoleBeneficiary,
	ApplicationReadOwn:   enums.RoleBeneficiary,
	ApplicationReview:    enums.RoleStaff,
	ApplicationReadAny:   enums.RoleStaff,
	ApplicationUpdateAny: enums.RoleStaff,
	ApplicationDelete:    enums.RoleAdmin,

	BeneficiaryRead:   enums.RoleStaff,
	BeneficiaryManage: enums.RoleStaff,
	BeneficiaryDelete: enums.RoleAdmin,

	UserRead:       enums.RoleStaff,
	UserCreate:     enums.RoleAdmin,
	UserPromote:    enums.RoleAdmin,
	UserDemote:     enums.RoleAdmin,
	UserActivate:   enums.RoleAdmin,
	UserDeactivate: enums.RoleAdmin,
	UserDelete:     enums.RoleAdmin,

	AuditRead:     enums.RoleAdmin,
	DashboardRead: enums.RoleAdmin,
}

// Actions lists every known action key.
func Actions() []Action {
	out := make([]Action, 0, len(minimumRole))
	for action := range minimumRole {
		out = append(out, action)
	}
	return out
}

// MinimumRole returns the lowest role that may perform the action.
func MinimumRole(action Action) (enums.Role, bool) {
	role, ok := minimumRole[action]
	return role, ok
}

// Permitted is the pure policy lookup. Unknown roles and actions are denied.
func Permitted(role enums.Role, action Action) bool {
	min, ok := minimumRole[action]
	if !ok {
		return false
	}
	return role.AtLeast(min)
}

// Authorize returns FORBIDDEN when the role may not perform the action.
func Authorize(role enums.Role, action Action) error {
	if Permitted(role, action) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "insufficient role for action").
		WithDetails(map[string]any{"action": string(action), "role": string(role)})
}

// CanPromote applies the exact-role promotion rules on top of UserPromote.
// Staff can be granted by admin and above, admin only by super_admin, and
// super_admin is never granted through promotion.
func CanPromote(actor, newRole enums.Role) bool {
	if !Permitted(actor, UserPromote) {
		return false
	}
	switch newRole {
	case enums.RoleStaff:
		return actor.AtLeast(enums.RoleAdmin)
	case enums.RoleAdmin:
		return actor == enums.RoleSuperAdmin
	default:
		return false
	}
}

// CanDemote applies the exact-role demotion rules based on the target's
// current role. A super_admin is never demoted, an admin only by a super_admin.
func CanDemote(actor, targetCurrent enums.Role) bool {
	if !Permitted(actor, UserDemote) {
		return false
	}
	switch targetCurrent {
	case enums.RoleSuperAdmin:
		return false
	case enums.RoleAdmin:
		return actor == enums.RoleSuperAdmin
	case enums.RoleStaff:
		return actor.AtLeast(enums.RoleAdmin)
	default:
		return false
	}
}

// CanAssignRole reports whether actor may create an account holding role.
// Admin accounts need a super_admin; super_admin accounts are never created.
func CanAssignRole(actor, role enums.Role) bool {
	if !Permitted(actor, UserCreate) || !role.IsValid() {
		return false
	}
	switch role {
	case enums.RoleSuperAdmin:
		return false
	case enums.RoleAdmin:
		return actor == enums.RoleSuperAdmin
	default:
		return true
	}
}

// GuardSelfTarget rejects administrative operations aimed at the caller's own account.
func GuardSelfTarget(actorID, targetID uuid.UUID) error {
	if actorID != targetID {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "cannot perform this action on your own account").
		WithReason(ReasonSelfTarget)
}

// Actor is the authenticated caller as seen by services.
type Actor struct {
	ID   uuid.UUID
	Role enums.Role
}

// Authorize checks the actor's role against the action.
func (a Actor) Authorize(action Action) error {
	return Authorize(a.Role, action)
}

// Can reports whether the actor's role permits the action.
func (a Actor) Can(action Action) bool {
	return Permitted(a.Role, action)
}
