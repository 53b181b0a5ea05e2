package audit

import (
	"context"
	"time"

	"github.com/angelmondragon/livelihood-backend/internal/authz"
	"github.com/angelmondragon/livelihood-backend/pkg/db/models"
	"github.com/angelmondragon/livelihood-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/livelihood-backend/pkg/errors"
	"github.com/angelmondragon/livelihood-backend/pkg/pagination"
	"github.com/google/uuid"
)

// Filter narrows audit queries. Zero values mean "any".
type Filter struct {
	UserID       *uuid.UUID
	Action       *enums.AuditAction
	ResourceType *enums.AuditResource
	ResourceID   *uuid.UUID
	Since        *time.Time
	Until        *time.Time
	pagination.Params
}

// Page is one page of audit rows plus the cursor for the next one.
type Page struct {
	Items      []models.AuditLog `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

type listRepository interface {
	List(ctx context.Context, opts listQuery) ([]models.AuditLog, error)
}

// Service exposes read access to the audit trail.
type Service interface {
	List(ctx context.Context, actor authz.Actor, filter Filter) (Page, error)
	UserTrail(ctx context.Context, actor authz.Actor, userID uuid.UUID, params pagination.Params) (Page, error)
	ResourceTrail(ctx context.Context, actor authz.Actor, resourceType enums.AuditResource, resourceID uuid.UUID, params pagination.Params) (Page, error)
}

type service struct {
	repo listRepository
}

// NewService constructs the audit read service.
func NewService(repo listRepository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "audit repository is required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context, actor authz.Actor, filter Filter) (Page, error) {
	if err := actor.Authorize(authz.AuditRead); err != nil {
		return Page{}, err
	}
	if filter.Since != nil && filter.Until != nil && !filter.Until.After(*filter.Since) {
		return Page{}, pkgerrors.New(pkgerrors.CodeValidation, "until must be after since")
	}

	cursor, err := pagination.ParseCursor(filter.Cursor)
	if err != nil {
		return Page{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.List(ctx, listQuery{
		userID:       filter.UserID,
		action:       filter.Action,
		resourceType: filter.ResourceType,
		resourceID:   filter.ResourceID,
		since:        filter.Since,
		until:        filter.Until,
		cursor:       cursor,
		limit:        pagination.LimitWithBuffer(filter.Limit),
	})
	if err != nil {
		return Page{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list audit logs")
	}

	rows, next := pagination.Trim(rows, filter.Limit, func(m models.AuditLog) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})
	page := Page{Items: rows, NextCursor: next}
	if page.Items == nil {
		page.Items = []models.AuditLog{}
	}
	return page, nil
}

func (s *service) UserTrail(ctx context.Context, actor authz.Actor, userID uuid.UUID, params pagination.Params) (Page, error) {
	return s.List(ctx, actor, Filter{UserID: &userID, Params: params})
}

func (s *service) ResourceTrail(ctx context.Context, actor authz.Actor, resourceType enums.AuditResource, resourceID uuid.UUID, params pagination.Params) (Page, error) {
	return s.List(ctx, actor, Filter{ResourceType: &resourceType, ResourceID: &resourceID, Params: params})
}
