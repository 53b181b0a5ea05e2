package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/livelihood-backend/internal/notifications"
	"github.com/angelmondragon/livelihood-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/livelihood-backend/pkg/errors"
)

type testNotificationsService struct {
	markReadFn    func(ctx context.Context, userID, notificationID uuid.UUID) error
	markAllReadFn func(ctx context.Context, userID uuid.UUID) (int64, error)
	listFn        func(ctx context.Context, userID uuid.UUID, filter notifications.ListFilter) (*notifications.Page, error)
}

func (s *testNotificationsService) List(ctx context.Context, userID uuid.UUID, filter notifications.ListFilter) (*notifications.Page, error) {
	if s.listFn != nil {
		return s.listFn(ctx, userID, filter)
	}
	return nil, nil
}

func (s *testNotificationsService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	if s.markReadFn != nil {
		return s.markReadFn(ctx, userID, notificationID)
	}
	return nil
}

func (s *testNotificationsService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	if s.markAllReadFn != nil {
		return s.markAllReadFn(ctx, userID)
	}
	return 0, nil
}

func TestMarkNotificationReadSuccess(t *testing.T) {
	actor := newActor(enums.RoleBeneficiary)
	notificationID := uuid.New()
	called := false
	svc := &testNotificationsService{
		markReadFn: func(ctx context.Context, uid, nid uuid.UUID) error {
			called = true
			if uid != actor.ID {
				t.Fatalf("unexpected user %s", uid)
			}
			if nid != notificationID {
				t.Fatalf("unexpected notification %s", nid)
			}
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/"+notificationID.String()+"/read", nil)
	req = withURLParams(withActor(req, actor), "notificationId", notificationID.String())

	resp := httptest.NewRecorder()
	MarkNotificationRead(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if !called {
		t.Fatal("expected service called")
	}
	var envelope struct {
		Data map[string]bool `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Data["read"] {
		t.Fatalf("expected read=true")
	}
}

func TestMarkNotificationReadNotOwned(t *testing.T) {
	actor := newActor(enums.RoleBeneficiary)
	notificationID := uuid.New()
	svc := &testNotificationsService{
		markReadFn: func(ctx context.Context, uid, nid uuid.UUID) error {
			return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req = withURLParams(withActor(req, actor), "notificationId", notificationID.String())
	resp := httptest.NewRecorder()
	MarkNotificationRead(svc, testLogger())(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestMarkNotificationReadRequiresUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req = withURLParams(req, "notificationId", uuid.NewString())
	resp := httptest.NewRecorder()
	MarkNotificationRead(&testNotificationsService{}, testLogger())(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestMarkAllNotificationsRead(t *testing.T) {
	actor := newActor(enums.RoleStaff)
	svc := &testNotificationsService{
		markAllReadFn: func(ctx context.Context, uid uuid.UUID) (int64, error) {
			if uid != actor.ID {
				t.Fatalf("unexpected user %s", uid)
			}
			return 4, nil
		},
	}

	req := withActor(httptest.NewRequest(http.MethodPost, "/api/v1/notifications/read-all", nil), actor)
	resp := httptest.NewRecorder()
	MarkAllNotificationsRead(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	var body map[string]int64
	decodeData(t, resp, &body)
	if body["updated"] != 4 {
		t.Fatalf("expected 4 updated, got %d", body["updated"])
	}
}

func TestListNotificationsParsesQuery(t *testing.T) {
	actor := newActor(enums.RoleBeneficiary)
	svc := &testNotificationsService{
		listFn: func(ctx context.Context, userID uuid.UUID, filter notifications.ListFilter) (*notifications.Page, error) {
			if userID != actor.ID {
				t.Fatalf("unexpected user %s", userID)
			}
			if filter.Limit != 5 || filter.Cursor != "abc" || !filter.UnreadOnly {
				t.Fatalf("unexpected filter %+v", filter)
			}
			return &notifications.Page{UnreadCount: 2}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications?limit=5&cursor=abc&unread_only=true", nil)
	resp := httptest.NewRecorder()
	ListNotifications(svc, testLogger())(resp, withActor(req, actor))

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
}

func TestListNotificationsRejectsBadFlag(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications?unread_only=maybe", nil)
	resp := httptest.NewRecorder()
	ListNotifications(&testNotificationsService{}, testLogger())(resp, withActor(req, newActor(enums.RoleBeneficiary)))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
