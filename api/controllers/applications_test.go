package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/livelihood-backend/internal/applications"
	"github.com/angelmondragon/livelihood-backend/internal/authz"
	"github.com/angelmondragon/livelihood-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/livelihood-backend/pkg/errors"
	"github.com/angelmondragon/livelihood-backend/pkg/pagination"
)

type stubApplicationsService struct {
	applications.Service
	approveFn  func(ctx context.Context, actor authz.Actor, id uuid.UUID, input applications.ReviewInput) (*applications.ApplicationDTO, error)
	withdrawFn func(ctx context.Context, actor authz.Actor, id uuid.UUID) (*applications.ApplicationDTO, error)
	listMineFn func(ctx context.Context, actor authz.Actor, status *enums.ApplicationStatus, params pagination.Params) (applications.Page, error)
	listFn     func(ctx context.Context, actor authz.Actor, filter applications.ListFilter) (applications.Page, error)
}

func (s stubApplicationsService) Approve(ctx context.Context, actor authz.Actor, id uuid.UUID, input applications.ReviewInput) (*applications.ApplicationDTO, error) {
	return s.approveFn(ctx, actor, id, input)
}

func (s stubApplicationsService) Withdraw(ctx context.Context, actor authz.Actor, id uuid.UUID) (*applications.ApplicationDTO, error) {
	return s.withdrawFn(ctx, actor, id)
}

func (s stubApplicationsService) ListMine(ctx context.Context, actor authz.Actor, status *enums.ApplicationStatus, params pagination.Params) (applications.Page, error) {
	return s.listMineFn(ctx, actor, status, params)
}

func (s stubApplicationsService) List(ctx context.Context, actor authz.Actor, filter applications.ListFilter) (applications.Page, error) {
	return s.listFn(ctx, actor, filter)
}

func TestApproveApplicationWithoutBody(t *testing.T) {
	id := uuid.New()
	svc := stubApplicationsService{approveFn: func(ctx context.Context, actor authz.Actor, got uuid.UUID, input applications.ReviewInput) (*applications.ApplicationDTO, error) {
		if input.Notes != nil {
			t.Fatalf("expected no notes, got %q", *input.Notes)
		}
		return &applications.ApplicationDTO{ID: got, Status: enums.ApplicationStatusApproved}, nil
	}}

	req := withActor(httptest.NewRequest(http.MethodPost, "/", nil), newActor(enums.RoleStaff))
	req = withURLParams(req, "applicationId", id.String())
	resp := httptest.NewRecorder()
	ApproveApplication(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var dto applications.ApplicationDTO
	decodeData(t, resp, &dto)
	if dto.Status != enums.ApplicationStatusApproved {
		t.Fatalf("unexpected status %s", dto.Status)
	}
}

func TestApproveApplicationWithNotes(t *testing.T) {
	svc := stubApplicationsService{approveFn: func(ctx context.Context, actor authz.Actor, id uuid.UUID, input applications.ReviewInput) (*applications.ApplicationDTO, error) {
		if input.Notes == nil || *input.Notes != "documents verified" {
			t.Fatalf("unexpected notes %v", input.Notes)
		}
		return &applications.ApplicationDTO{ID: id}, nil
	}}

	req := withActor(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"notes":"documents verified"}`)), newActor(enums.RoleStaff))
	req = withURLParams(req, "applicationId", uuid.NewString())
	resp := httptest.NewRecorder()
	ApproveApplication(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestWithdrawProcessedApplication(t *testing.T) {
	svc := stubApplicationsService{withdrawFn: func(ctx context.Context, actor authz.Actor, id uuid.UUID) (*applications.ApplicationDTO, error) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "application already processed").WithReason("CannotWithdrawProcessed")
	}}

	req := withActor(httptest.NewRequest(http.MethodPost, "/", nil), newActor(enums.RoleBeneficiary))
	req = withURLParams(req, "applicationId", uuid.NewString())
	resp := httptest.NewRecorder()
	WithdrawApplication(svc, testLogger())(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.Code)
	}
	if apiErr := decodeError(t, resp); apiErr.Code != string(pkgerrors.CodeStateConflict) {
		t.Fatalf("unexpected code %s", apiErr.Code)
	}
}

func TestMyApplicationsStatusFilter(t *testing.T) {
	actor := newActor(enums.RoleBeneficiary)
	svc := stubApplicationsService{listMineFn: func(ctx context.Context, a authz.Actor, status *enums.ApplicationStatus, params pagination.Params) (applications.Page, error) {
		if a.ID != actor.ID {
			t.Fatalf("unexpected actor %s", a.ID)
		}
		if status == nil || *status != enums.ApplicationStatusPending {
			t.Fatalf("unexpected status %v", status)
		}
		if params.Limit != pagination.DefaultLimit {
			t.Fatalf("expected default limit, got %d", params.Limit)
		}
		return applications.Page{}, nil
	}}

	req := withActor(httptest.NewRequest(http.MethodGet, "/api/v1/applications/me?status=pending", nil), actor)
	resp := httptest.NewRecorder()
	MyApplications(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestListApplicationsFilters(t *testing.T) {
	programID := uuid.New()
	svc := stubApplicationsService{listFn: func(ctx context.Context, a authz.Actor, filter applications.ListFilter) (applications.Page, error) {
		if filter.ProgramID == nil || *filter.ProgramID != programID {
			t.Fatalf("unexpected program filter %v", filter.ProgramID)
		}
		if filter.UserID != nil {
			t.Fatal("user filter should be unset")
		}
		return applications.Page{}, nil
	}}

	req := withActor(httptest.NewRequest(http.MethodGet, "/api/v1/applications?program_id="+programID.String(), nil), newActor(enums.RoleStaff))
	resp := httptest.NewRecorder()
	ListApplications(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	bad := withActor(httptest.NewRequest(http.MethodGet, "/api/v1/applications?status=lost", nil), newActor(enums.RoleStaff))
	resp = httptest.NewRecorder()
	ListApplications(svc, testLogger())(resp, bad)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
