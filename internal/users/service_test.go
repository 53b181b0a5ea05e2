package users

import (
	"context"
	"testing"

	"github.com/angelmondragon/livelihood-backend/internal/audit"
	"github.com/angelmondragon/livelihood-backend/internal/authz"
	"github.com/angelmondragon/livelihood-backend/internal/testdb"
	"github.com/angelmondragon/livelihood-backend/pkg/config"
	"github.com/angelmondragon/livelihood-backend/pkg/db"
	"github.com/angelmondragon/livelihood-backend/pkg/db/models"
	"github.com/angelmondragon/livelihood-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/livelihood-backend/pkg/errors"
	"github.com/angelmondragon/livelihood-backend/pkg/pagination"
	"github.com/angelmondragon/livelihood-backend/pkg/security"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingAudit struct {
	entries []audit.Entry
}

func (r *recordingAudit) Record(_ context.Context, entry audit.Entry) {
	r.entries = append(r.entries, entry)
}

func (r *recordingAudit) actions() []enums.AuditAction {
	out := make([]enums.AuditAction, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

type transitionCounter struct {
	seen []string
}

func (c *transitionCounter) ObserveTransition(entity, action, outcome string) {
	c.seen = append(c.seen, entity+"."+action+"."+outcome)
}

var testPasswordConfig = config.PasswordConfig{
	ArgonMemoryKB:    8 * 1024,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
}

func newTestService(t *testing.T) (Service, *gorm.DB, *recordingAudit, *transitionCounter) {
	t.Helper()

	conn := testdb.New(t)
	rec := &recordingAudit{}
	counter := &transitionCounter{}
	svc, err := NewService(ServiceParams{
		DB:             db.NewFromGorm(conn),
		Repo:           NewRepository(conn),
		Audit:          rec,
		Metrics:        counter,
		PasswordConfig: testPasswordConfig,
	})
	require.NoError(t, err)
	return svc, conn, rec, counter
}

func actorOf(u *models.User) authz.Actor {
	return authz.Actor{ID: u.ID, Role: u.Role}
}

func reload(t *testing.T, conn *gorm.DB, id uuid.UUID) models.User {
	t.Helper()
	var u models.User
	require.NoError(t, conn.First(&u, "id = ?", id).Error)
	return u
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

func TestSelfTargetGuardForEveryRole(t *testing.T) {
	svc, conn, rec, _ := newTestService(t)
	ctx := context.Background()

	for _, role := range []enums.Role{enums.RoleBeneficiary, enums.RoleStaff, enums.RoleAdmin, enums.RoleSuperAdmin} {
		self := testdb.SeedUser(t, conn, role)
		actor := actorOf(self)

		_, err := svc.Promote(ctx, actor, self.ID, enums.RoleAdmin)
		assert.Equal(t, authz.ReasonSelfTarget, pkgerrors.ReasonOf(err), "promote as %s", role)
		_, err = svc.Demote(ctx, actor, self.ID, enums.RoleBeneficiary)
		assert.Equal(t, authz.ReasonSelfTarget, pkgerrors.ReasonOf(err), "demote as %s", role)
		_, err = svc.Deactivate(ctx, actor, self.ID)
		assert.Equal(t, authz.ReasonSelfTarget, pkgerrors.ReasonOf(err), "deactivate as %s", role)
		err = svc.Delete(ctx, actor, self.ID)
		assert.Equal(t, authz.ReasonSelfTarget, pkgerrors.ReasonOf(err), "delete as %s", role)
		assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

		stored := reload(t, conn, self.ID)
		assert.Equal(t, role, stored.Role)
		assert.True(t, stored.IsActive)
	}
	assert.Empty(t, rec.entries)
}

func TestPromoteRules(t *testing.T) {
	svc, conn, rec, counter := newTestService(t)
	ctx := context.Background()

	staff := testdb.SeedUser(t, conn, enums.RoleStaff)
	admin := testdb.SeedUser(t, conn, enums.RoleAdmin)
	super := testdb.SeedUser(t, conn, enums.RoleSuperAdmin)
	target := testdb.SeedUser(t, conn, enums.RoleBeneficiary)

	_, err := svc.Promote(ctx, actorOf(staff), target.ID, enums.RoleAdmin)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err), "staff cannot promote to admin")

	_, err = svc.Promote(ctx, actorOf(admin), target.ID, enums.RoleAdmin)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err), "admin cannot promote to admin")

	_, err = svc.Promote(ctx, actorOf(super), target.ID, enums.RoleSuperAdmin)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err), "super_admin is never a promote target")
	assert.Equal(t, enums.RoleBeneficiary, reload(t, conn, target.ID).Role)

	promoted, err := svc.Promote(ctx, actorOf(admin), target.ID, enums.RoleStaff)
	require.NoError(t, err)
	assert.Equal(t, enums.RoleStaff, promoted.Role)

	_, err = svc.Promote(ctx, actorOf(admin), target.ID, enums.RoleStaff)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err), "same role is not a promotion")

	promoted, err = svc.Promote(ctx, actorOf(super), target.ID, enums.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, enums.RoleAdmin, promoted.Role)

	require.Equal(t, []enums.AuditAction{enums.AuditUserPromoted, enums.AuditUserPromoted}, rec.actions())
	assert.Equal(t, map[string]any{"role": "beneficiary"}, rec.entries[0].OldValues)
	assert.Equal(t, map[string]any{"role": "staff"}, rec.entries[0].NewValues)
	assert.Contains(t, counter.seen, "user.promote.rejected")
	assert.Contains(t, counter.seen, "user.promote.success")
}

func TestDemoteRules(t *testing.T) {
	svc, conn, rec, _ := newTestService(t)
	ctx := context.Background()

	admin := testdb.SeedUser(t, conn, enums.RoleAdmin)
	otherAdmin := testdb.SeedUser(t, conn, enums.RoleAdmin)
	super := testdb.SeedUser(t, conn, enums.RoleSuperAdmin)
	otherSuper := testdb.SeedUser(t, conn, enums.RoleSuperAdmin)
	staff := testdb.SeedUser(t, conn, enums.RoleStaff)

	_, err := svc.Demote(ctx, actorOf(admin), otherAdmin.ID, enums.RoleStaff)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err), "only super_admin demotes admins")

	_, err = svc.Demote(ctx, actorOf(super), otherSuper.ID, enums.RoleAdmin)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err), "super_admin is never demoted")

	_, err = svc.Demote(ctx, actorOf(admin), staff.ID, enums.RoleAdmin)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err), "demotion must lower the role")

	demoted, err := svc.Demote(ctx, actorOf(admin), staff.ID, enums.RoleBeneficiary)
	require.NoError(t, err)
	assert.Equal(t, enums.RoleBeneficiary, demoted.Role)

	demoted, err = svc.Demote(ctx, actorOf(super), otherAdmin.ID, enums.RoleStaff)
	require.NoError(t, err)
	assert.Equal(t, enums.RoleStaff, demoted.Role)

	assert.Equal(t, enums.RoleSuperAdmin, reload(t, conn, otherSuper.ID).Role)
	assert.Equal(t, []enums.AuditAction{enums.AuditUserDemoted, enums.AuditUserDemoted}, rec.actions())
}

func TestActivateDeactivate(t *testing.T) {
	svc, conn, rec, _ := newTestService(t)
	ctx := context.Background()

	admin := testdb.SeedUser(t, conn, enums.RoleAdmin)
	target := testdb.SeedUser(t, conn, enums.RoleBeneficiary)

	dto, err := svc.Deactivate(ctx, actorOf(admin), target.ID)
	require.NoError(t, err)
	assert.False(t, dto.IsActive)
	assert.False(t, reload(t, conn, target.ID).IsActive)

	dto, err = svc.Activate(ctx, actorOf(admin), target.ID)
	require.NoError(t, err)
	assert.True(t, dto.IsActive)

	staff := testdb.SeedUser(t, conn, enums.RoleStaff)
	_, err = svc.Deactivate(ctx, actorOf(staff), target.ID)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	assert.Equal(t, []enums.AuditAction{enums.AuditUserDeactivated, enums.AuditUserActivated}, rec.actions())
}

func TestDeleteBlockedByDependents(t *testing.T) {
	svc, conn, rec, _ := newTestService(t)
	ctx := context.Background()

	admin := testdb.SeedUser(t, conn, enums.RoleAdmin)
	applicant := testdb.SeedUser(t, conn, enums.RoleBeneficiary)
	program := testdb.SeedProgram(t, conn, nil)
	app := testdb.SeedApplication(t, conn, applicant.ID, program.ID, enums.ApplicationStatusPending)

	err := svc.Delete(ctx, actorOf(admin), applicant.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeDependencyBlocked, pkgerrors.CodeOf(err))
	assert.Equal(t, ReasonUserHasDependents, pkgerrors.ReasonOf(err))
	assert.False(t, reload(t, conn, applicant.ID).IsDeleted)

	require.NoError(t, conn.Model(&models.Application{}).Where("id = ?", app.ID).
		Updates(map[string]any{"status": enums.ApplicationStatusRejected}).Error)

	require.NoError(t, svc.Delete(ctx, actorOf(admin), applicant.ID))
	stored := reload(t, conn, applicant.ID)
	assert.True(t, stored.IsDeleted)
	assert.False(t, stored.IsActive)

	_, err = svc.Get(ctx, actorOf(admin), applicant.ID)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
	assert.Equal(t, []enums.AuditAction{enums.AuditUserDeleted}, rec.actions())
}

func TestDeleteBlockedBySuspendedEnrollment(t *testing.T) {
	svc, conn, _, _ := newTestService(t)
	ctx := context.Background()

	admin := testdb.SeedUser(t, conn, enums.RoleAdmin)
	applicant := testdb.SeedUser(t, conn, enums.RoleBeneficiary)
	program := testdb.SeedProgram(t, conn, nil)
	app := testdb.SeedApplication(t, conn, applicant.ID, program.ID, enums.ApplicationStatusRejected)
	testdb.SeedBeneficiary(t, conn, app, enums.BeneficiaryStatusSuspended)

	err := svc.Delete(ctx, actorOf(admin), applicant.ID)
	assert.Equal(t, ReasonUserHasDependents, pkgerrors.ReasonOf(err))
}

func TestUpdateProfile(t *testing.T) {
	svc, conn, rec, _ := newTestService(t)
	ctx := context.Background()

	user := testdb.SeedUser(t, conn, enums.RoleBeneficiary)
	other := testdb.SeedUser(t, conn, enums.RoleBeneficiary)

	badPhone := "12345"
	_, err := svc.UpdateProfile(ctx, actorOf(user), UpdateProfileInput{Phone: &badPhone})
	assert.Equal(t, ReasonInvalidPhoneFormat, pkgerrors.ReasonOf(err))

	taken := other.Email
	_, err = svc.UpdateProfile(ctx, actorOf(user), UpdateProfileInput{Email: &taken})
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))

	mobile := "+63 917 123 4567"
	first := "  Maria "
	dto, err := svc.UpdateProfile(ctx, actorOf(user), UpdateProfileInput{Phone: &mobile, FirstName: &first})
	require.NoError(t, err)
	require.NotNil(t, dto.Phone)
	assert.Equal(t, "0917-123-4567", *dto.Phone)
	assert.Equal(t, "Maria", dto.FirstName)

	require.Equal(t, []enums.AuditAction{enums.AuditUserUpdated}, rec.actions())
	assert.Equal(t, "Test", rec.entries[0].OldValues["first_name"])
	assert.Equal(t, "Maria", rec.entries[0].NewValues["first_name"])

	_, err = svc.UpdateProfile(ctx, actorOf(user), UpdateProfileInput{})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestCreateByAdmin(t *testing.T) {
	svc, conn, rec, _ := newTestService(t)
	ctx := context.Background()

	admin := testdb.SeedUser(t, conn, enums.RoleAdmin)
	super := testdb.SeedUser(t, conn, enums.RoleSuperAdmin)

	_, err := svc.CreateByAdmin(ctx, actorOf(admin), CreateByAdminInput{
		Email: "new-admin@example.com", FirstName: "New", LastName: "Admin", Role: enums.RoleAdmin,
	})
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	created, err := svc.CreateByAdmin(ctx, actorOf(super), CreateByAdminInput{
		Email: " New-Admin@Example.com ", FirstName: "New", LastName: "Admin", Role: enums.RoleAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, "new-admin@example.com", created.User.Email)
	require.NotEmpty(t, created.TemporaryPassword)

	stored := reload(t, conn, created.User.ID)
	ok, err := security.VerifyPassword(created.TemporaryPassword, stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, stored.IsActive)

	_, err = svc.CreateByAdmin(ctx, actorOf(super), CreateByAdminInput{
		Email: "new-admin@example.com", FirstName: "Dup", LastName: "Admin", Role: enums.RoleStaff,
	})
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))

	withPassword, err := svc.CreateByAdmin(ctx, actorOf(admin), CreateByAdminInput{
		Email: "staff@example.com", Password: "Str0ng!Pass", FirstName: "Staff", LastName: "Member", Role: enums.RoleStaff,
	})
	require.NoError(t, err)
	assert.Empty(t, withPassword.TemporaryPassword)

	assert.Equal(t, []enums.AuditAction{enums.AuditUserCreated, enums.AuditUserCreated}, rec.actions())
}

func TestListPaginatesAndFilters(t *testing.T) {
	svc, conn, _, _ := newTestService(t)
	ctx := context.Background()

	staff := testdb.SeedUser(t, conn, enums.RoleStaff)
	for i := 0; i < 3; i++ {
		testdb.SeedUser(t, conn, enums.RoleBeneficiary)
	}

	_, err := svc.List(ctx, authz.Actor{ID: uuid.New(), Role: enums.RoleBeneficiary}, ListFilter{})
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	role := enums.RoleBeneficiary
	first, err := svc.List(ctx, actorOf(staff), ListFilter{Role: &role, Params: pagination.Params{Limit: 2}})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.NextCursor)

	second, err := svc.List(ctx, actorOf(staff), ListFilter{Role: &role, Params: pagination.Params{Limit: 2, Cursor: first.NextCursor}})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Empty(t, second.NextCursor)

	found, err := svc.List(ctx, actorOf(staff), ListFilter{Search: staff.Email[:10]})
	require.NoError(t, err)
	require.Len(t, found.Items, 1)
	assert.Equal(t, staff.ID, found.Items[0].ID)
}
