package applications

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/livelihood-backend/internal/audit"
	"github.com/angelmondragon/livelihood-backend/internal/authz"
	"github.com/angelmondragon/livelihood-backend/internal/notifications"
	"github.com/angelmondragon/livelihood-backend/internal/testdb"
	"github.com/angelmondragon/livelihood-backend/pkg/db"
	"github.com/angelmondragon/livelihood-backend/pkg/db/models"
	"github.com/angelmondragon/livelihood-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/livelihood-backend/pkg/errors"
	"github.com/angelmondragon/livelihood-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *recordingAudit) Record(_ context.Context, entry audit.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *recordingAudit) actions() []enums.AuditAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]enums.AuditAction, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notifications.Message
}

func (n *recordingNotifier) Send(_ context.Context, msg notifications.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
}

type harness struct {
	svc      Service
	conn     *gorm.DB
	audit    *recordingAudit
	notifier *recordingNotifier
}

func newHarness(t *testing.T) harness {
	t.Helper()

	conn := testdb.New(t)
	rec := &recordingAudit{}
	notifier := &recordingNotifier{}
	svc, err := NewService(ServiceParams{
		DB:       db.NewFromGorm(conn),
		Repo:     NewRepository(conn),
		Audit:    rec,
		Notifier: notifier,
	})
	require.NoError(t, err)
	return harness{svc: svc, conn: conn, audit: rec, notifier: notifier}
}

func actorOf(u *models.User) authz.Actor {
	return authz.Actor{ID: u.ID, Role: u.Role}
}

func (h harness) reload(t *testing.T, id uuid.UUID) models.Application {
	t.Helper()
	var app models.Application
	require.NoError(t, h.conn.First(&app, "id = ?", id).Error)
	return app
}

func (h harness) count(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.conn.Model(&models.Application{}).Count(&n).Error)
	return n
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

func TestCreateThenDuplicateIsRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	citizen := testdb.SeedUser(t, h.conn, enums.RoleBeneficiary)
	program := testdb.SeedProgram(t, h.conn, nil)

	notes := "  I run a small vegetable plot.  "
	created, err := h.svc.Create(ctx, actorOf(citizen), CreateInput{ProgramID: program.ID, Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, enums.ApplicationStatusPending, created.Status)
	assert.True(t, created.IsActive)
	require.NotNil(t, created.Notes)
	assert.Equal(t, "I run a small vegetable plot.", *created.Notes)

	_, err = h.svc.Create(ctx, actorOf(citizen), CreateInput{ProgramID: program.ID})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))
	assert.Equal(t, ReasonDuplicateApplication, pkgerrors.ReasonOf(err))

	assert.Equal(t, int64(1), h.count(t))
	assert.Equal(t, []enums.AuditAction{enums.AuditApplicationCreated}, h.audit.actions())
	require.Len(t, h.notifier.sent, 1)
	assert.Equal(t, enums.NotificationTypeApplicationSubmitted, h.notifier.sent[0].Type)
	assert.Equal(t, citizen.ID, h.notifier.sent[0].UserID)
}

func TestCreateRequiresProgramAcceptingApplications(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	citizen := actorOf(testdb.SeedUser(t, h.conn, enums.RoleBeneficiary))
	past := time.Now().UTC().Add(-time.Hour)
	one := 1

	closed := []*models.Program{
		testdb.SeedProgram(t, h.conn, func(p *models.Program) { p.Status = enums.ProgramStatusDraft }),
		testdb.SeedProgram(t, h.conn, func(p *models.Program) {
			p.Status = enums.ProgramStatusInactive
			p.IsActive = false
		}),
		testdb.SeedProgram(t, h.conn, func(p *models.Program) { p.ApplicationDeadline = &past }),
		testdb.SeedProgram(t, h.conn, func(p *models.Program) {
			p.MaxParticipants = &one
			p.CurrentParticipants = 1
		}),
	}
	for _, program := range closed {
		_, err := h.svc.Create(ctx, citizen, CreateInput{ProgramID: program.ID})
		require.Error(t, err)
		assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
		assert.Equal(t, ReasonProgramNotAcceptingApplications, pkgerrors.ReasonOf(err))
	}

	_, err := h.svc.Create(ctx, citizen, CreateInput{ProgramID: uuid.New()})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	assert.Zero(t, h.count(t))
	assert.Empty(t, h.audit.entries)
	assert.Empty(t, h.notifier.sent)
}

func TestApproveOnlyFromPending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	staff := testdb.SeedUser(t, h.conn, enums.RoleStaff)
	citizen := testdb.SeedUser(t, h.conn, enums.RoleBeneficiary)
	program := testdb.SeedProgram(t, h.conn, nil)
	app := testdb.SeedApplication(t, h.conn, citizen.ID, program.ID, enums.ApplicationStatusPending)

	_, err := h.svc.Approve(ctx, actorOf(citizen), app.ID, ReviewInput{})
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	approved, err := h.svc.Approve(ctx, actorOf(staff), app.ID, ReviewInput{})
	require.NoError(t, err)
	assert.Equal(t, enums.ApplicationStatusApproved, approved.Status)
	stored := h.reload(t, app.ID)
	require.NotNil(t, stored.ReviewedBy)
	assert.Equal(t, staff.ID, *stored.ReviewedBy)
	assert.NotNil(t, stored.ReviewedAt)

	_, err = h.svc.Approve(ctx, actorOf(staff), app.ID, ReviewInput{})
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
	assert.Equal(t, ReasonInvalidStateTransition, pkgerrors.ReasonOf(err))
	_, err = h.svc.Reject(ctx, actorOf(staff), app.ID, ReviewInput{})
	assert.Equal(t, ReasonInvalidStateTransition, pkgerrors.ReasonOf(err))

	assert.Equal(t, enums.ApplicationStatusApproved, h.reload(t, app.ID).Status)
	assert.Equal(t, []enums.AuditAction{enums.AuditApplicationApproved}, h.audit.actions())
	require.Len(t, h.notifier.sent, 1)
	assert.Equal(t, enums.NotificationTypeApplicationApproved, h.notifier.sent[0].Type)
	assert.Equal(t, program.Title, h.notifier.sent[0].Params["program_title"])
}

func TestRejectPersistsReason(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := testdb.SeedUser(t, h.conn, enums.RoleAdmin)
	citizen := testdb.SeedUser(t, h.conn, enums.RoleBeneficiary)
	program := testdb.SeedProgram(t, h.conn, nil)
	app := testdb.SeedApplication(t, h.conn, citizen.ID, program.ID, enums.ApplicationStatusPending)

	reason := "Outside the target barangays"
	rejected, err := h.svc.Reject(ctx, actorOf(admin), app.ID, ReviewInput{Notes: &reason})
	require.NoError(t, err)
	assert.Equal(t, enums.ApplicationStatusRejected, rejected.Status)
	require.NotNil(t, h.reload(t, app.ID).Notes)
	assert.Equal(t, reason, *h.reload(t, app.ID).Notes)

	require.Len(t, h.audit.entries, 1)
	assert.Equal(t, "pending", h.audit.entries[0].OldValues["status"])
	assert.Equal(t, "rejected", h.audit.entries[0].NewValues["status"])
	require.Len(t, h.notifier.sent, 1)
	assert.Equal(t, reason, h.notifier.sent[0].Params["reason"])
}

func TestWithdrawRules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := testdb.SeedUser(t, h.conn, enums.RoleBeneficiary)
	other := testdb.SeedUser(t, h.conn, enums.RoleBeneficiary)
	admin := testdb.SeedUser(t, h.conn, enums.RoleAdmin)
	program := testdb.SeedProgram(t, h.conn, nil)
	pending := testdb.SeedApplication(t, h.conn, owner.ID, program.ID, enums.ApplicationStatusPending)

	_, err := h.svc.Withdraw(ctx, actorOf(other), pending.ID)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))
	_, err = h.svc.Withdraw(ctx, actorOf(admin), pending.ID)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	withdrawn, err := h.svc.Withdraw(ctx, actorOf(owner), pending.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ApplicationStatusWithdrawn, withdrawn.Status)
	assert.False(t, h.reload(t, pending.ID).IsActive)

	_, err = h.svc.Withdraw(ctx, actorOf(owner), pending.ID)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
	assert.Equal(t, ReasonInvalidStateTransition, pkgerrors.ReasonOf(err))

	reapplied, err := h.svc.Create(ctx, actorOf(owner), CreateInput{ProgramID: program.ID})
	require.NoError(t, err)

	_, err = h.svc.Approve(ctx, actorOf(admin), reapplied.ID, ReviewInput{})
	require.NoError(t, err)
	_, err = h.svc.Withdraw(ctx, actorOf(owner), reapplied.ID)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
	assert.Equal(t, ReasonCannotWithdrawProcessed, pkgerrors.ReasonOf(err))

	assert.Equal(t, []enums.AuditAction{
		enums.AuditApplicationWithdrawn,
		enums.AuditApplicationCreated,
		enums.AuditApplicationApproved,
	}, h.audit.actions())
}

func TestOwnerUpdateRestrictions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := testdb.SeedUser(t, h.conn, enums.RoleBeneficiary)
	other := testdb.SeedUser(t, h.conn, enums.RoleBeneficiary)
	program := testdb.SeedProgram(t, h.conn, nil)
	app := testdb.SeedApplication(t, h.conn, owner.ID, program.ID, enums.ApplicationStatusPending)

	approved := enums.ApplicationStatusApproved
	_, err := h.svc.Update(ctx, actorOf(owner), app.ID, UpdateInput{Status: &approved})
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))
	assert.Equal(t, ReasonOwnerRestrictedField, pkgerrors.ReasonOf(err))

	reviewer := owner.ID
	_, err = h.svc.Update(ctx, actorOf(owner), app.ID, UpdateInput{ReviewedBy: &reviewer})
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	notes := "Updated household details"
	_, err = h.svc.Update(ctx, actorOf(other), app.ID, UpdateInput{Notes: &notes})
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	updated, err := h.svc.Update(ctx, actorOf(owner), app.ID, UpdateInput{Notes: &notes})
	require.NoError(t, err)
	require.NotNil(t, updated.Notes)
	assert.Equal(t, notes, *updated.Notes)
	assert.Equal(t, enums.ApplicationStatusPending, h.reload(t, app.ID).Status)

	require.NoError(t, h.conn.Model(&models.Application{}).Where("id = ?", app.ID).
		Update("status", enums.ApplicationStatusRejected).Error)
	_, err = h.svc.Update(ctx, actorOf(owner), app.ID, UpdateInput{Notes: &notes})
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))

	assert.Equal(t, []enums.AuditAction{enums.AuditApplicationUpdated}, h.audit.actions())
}

func TestStaffUpdateIsUnrestricted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	staff := testdb.SeedUser(t, h.conn, enums.RoleStaff)
	citizen := testdb.SeedUser(t, h.conn, enums.RoleBeneficiary)
	program := testdb.SeedProgram(t, h.conn, nil)
	app := testdb.SeedApplication(t, h.conn, citizen.ID, program.ID, enums.ApplicationStatusRejected)

	approved := enums.ApplicationStatusApproved
	updated, err := h.svc.Update(ctx, actorOf(staff), app.ID, UpdateInput{Status: &approved})
	require.NoError(t, err)
	assert.Equal(t, enums.ApplicationStatusApproved, updated.Status)
	require.NotNil(t, updated.ReviewedBy)
	assert.Equal(t, staff.ID, *updated.ReviewedBy)

	require.Len(t, h.audit.entries, 1)
	assert.Equal(t, "rejected", h.audit.entries[0].OldValues["status"])
	assert.Equal(t, "approved", h.audit.entries[0].NewValues["status"])
}

func TestDeleteHidesApplication(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := testdb.SeedUser(t, h.conn, enums.RoleAdmin)
	staff := testdb.SeedUser(t, h.conn, enums.RoleStaff)
	citizen := testdb.SeedUser(t, h.conn, enums.RoleBeneficiary)
	program := testdb.SeedProgram(t, h.conn, nil)
	app := testdb.SeedApplication(t, h.conn, citizen.ID, program.ID, enums.ApplicationStatusPending)

	err := h.svc.Delete(ctx, actorOf(staff), app.ID)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	require.NoError(t, h.svc.Delete(ctx, actorOf(admin), app.ID))
	stored := h.reload(t, app.ID)
	assert.False(t, stored.IsActive)
	assert.True(t, stored.IsDeleted)

	_, err = h.svc.Get(ctx, actorOf(admin), app.ID)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
	_, err = h.svc.Approve(ctx, actorOf(admin), app.ID, ReviewInput{})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
	err = h.svc.Delete(ctx, actorOf(admin), app.ID)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	page, err := h.svc.List(ctx, actorOf(staff), ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	assert.Equal(t, []enums.AuditAction{enums.AuditApplicationDeleted}, h.audit.actions())
}

func TestDeleteWithdrawnApplication(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := testdb.SeedUser(t, h.conn, enums.RoleAdmin)
	staff := testdb.SeedUser(t, h.conn, enums.RoleStaff)
	citizen := testdb.SeedUser(t, h.conn, enums.RoleBeneficiary)
	program := testdb.SeedProgram(t, h.conn, nil)
	app := testdb.SeedApplication(t, h.conn, citizen.ID, program.ID, enums.ApplicationStatusPending)

	_, err := h.svc.Withdraw(ctx, actorOf(citizen), app.ID)
	require.NoError(t, err)

	require.NoError(t, h.svc.Delete(ctx, actorOf(admin), app.ID))
	assert.True(t, h.reload(t, app.ID).IsDeleted)

	err = h.svc.Delete(ctx, actorOf(admin), app.ID)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	_, err = h.svc.Get(ctx, actorOf(admin), app.ID)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
	_, err = h.svc.Get(ctx, actorOf(citizen), app.ID)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	pending := enums.ApplicationStatusPending
	_, err = h.svc.Update(ctx, actorOf(staff), app.ID, UpdateInput{Status: &pending})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
	stored := h.reload(t, app.ID)
	assert.Equal(t, enums.ApplicationStatusWithdrawn, stored.Status)
	assert.False(t, stored.IsActive)

	mine, err := h.svc.ListMine(ctx, actorOf(citizen), nil, pagination.Params{})
	require.NoError(t, err)
	assert.Empty(t, mine.Items)
	all, err := h.svc.List(ctx, actorOf(staff), ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, all.Items)

	assert.Equal(t, []enums.AuditAction{
		enums.AuditApplicationWithdrawn,
		enums.AuditApplicationDeleted,
	}, h.audit.actions())
}

func TestReadAccess(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	staff := testdb.SeedUser(t, h.conn, enums.RoleStaff)
	owner := testdb.SeedUser(t, h.conn, enums.RoleBeneficiary)
	other := testdb.SeedUser(t, h.conn, enums.RoleBeneficiary)
	first := testdb.SeedProgram(t, h.conn, nil)
	second := testdb.SeedProgram(t, h.conn, nil)
	mine := testdb.SeedApplication(t, h.conn, owner.ID, first.ID, enums.ApplicationStatusPending)
	testdb.SeedApplication(t, h.conn, owner.ID, second.ID, enums.ApplicationStatusApproved)
	testdb.SeedApplication(t, h.conn, other.ID, first.ID, enums.ApplicationStatusPending)

	got, err := h.svc.Get(ctx, actorOf(owner), mine.ID)
	require.NoError(t, err)
	assert.Equal(t, mine.ID, got.ID)
	_, err = h.svc.Get(ctx, actorOf(other), mine.ID)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))
	_, err = h.svc.Get(ctx, actorOf(staff), mine.ID)
	require.NoError(t, err)

	page, err := h.svc.ListMine(ctx, actorOf(owner), nil, pagination.Params{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	pending := enums.ApplicationStatusPending
	page, err = h.svc.ListMine(ctx, actorOf(owner), &pending, pagination.Params{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)

	_, err = h.svc.List(ctx, actorOf(owner), ListFilter{})
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))
	page, err = h.svc.List(ctx, actorOf(staff), ListFilter{ProgramID: &first.ID})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	page, err = h.svc.List(ctx, actorOf(staff), ListFilter{Params: pagination.Params{Limit: 2}})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.NotEmpty(t, page.NextCursor)
}

func TestPendingQueueIsOldestFirst(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	staff := testdb.SeedUser(t, h.conn, enums.RoleStaff)
	program := testdb.SeedProgram(t, h.conn, nil)

	base := time.Date(2026, time.January, 5, 8, 0, 0, 0, time.UTC)
	var ids []uuid.UUID
	for i, offset := range []int{3, 1, 2} {
		user := testdb.SeedUser(t, h.conn, enums.RoleBeneficiary)
		status := enums.ApplicationStatusPending
		if i == 2 {
			status = enums.ApplicationStatusApproved
		}
		app := testdb.SeedApplication(t, h.conn, user.ID, program.ID, status)
		require.NoError(t, h.conn.Model(&models.Application{}).Where("id = ?", app.ID).
			Update("applied_at", base.Add(time.Duration(offset)*time.Hour)).Error)
		ids = append(ids, app.ID)
	}

	queue, err := h.svc.PendingQueue(ctx, actorOf(staff), 10)
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.Equal(t, ids[1], queue[0].ID)
	assert.Equal(t, ids[0], queue[1].ID)

	_, err = h.svc.PendingQueue(ctx, authz.Actor{ID: uuid.New(), Role: enums.RoleBeneficiary}, 10)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))
}
