package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/livelihood-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/livelihood-backend/pkg/errors"
	"github.com/angelmondragon/livelihood-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepository struct {
	rows    []models.Notification
	unread  int64
	found   bool
	marked  int64
	err     error
	lastQ   listQuery
	created []*models.Notification
}

func (f *fakeRepository) Create(_ context.Context, n *models.Notification) error {
	f.created = append(f.created, n)
	return f.err
}

func (f *fakeRepository) List(_ context.Context, q listQuery) ([]models.Notification, error) {
	f.lastQ = q
	return f.rows, f.err
}

func (f *fakeRepository) MarkRead(context.Context, uuid.UUID, uuid.UUID, time.Time) (bool, error) {
	return f.found, f.err
}

func (f *fakeRepository) MarkAllRead(context.Context, uuid.UUID, time.Time) (int64, error) {
	return f.marked, f.err
}

func (f *fakeRepository) CountUnread(context.Context, uuid.UUID) (int64, error) {
	return f.unread, nil
}

func newTestService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(repo)
	require.NoError(t, err)
	return svc
}

func TestListTrimsPageAndReportsUnread(t *testing.T) {
	now := time.Now().UTC()
	rows := []models.Notification{
		{ID: uuid.New(), CreatedAt: now},
		{ID: uuid.New(), CreatedAt: now.Add(-time.Minute)},
	}
	repo := &fakeRepository{rows: rows, unread: 4}
	svc := newTestService(t, repo)

	page, err := svc.List(context.Background(), uuid.New(), ListFilter{Params: pagination.Params{Limit: 1}})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.lastQ.limit, "fetches one extra row")
	require.Len(t, page.Items, 1)
	assert.EqualValues(t, 4, page.UnreadCount)

	cursor, err := pagination.ParseCursor(page.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, rows[0].ID, cursor.ID)
}

func TestListEmptyInboxReturnsEmptySlice(t *testing.T) {
	svc := newTestService(t, &fakeRepository{})
	page, err := svc.List(context.Background(), uuid.New(), ListFilter{UnreadOnly: true})
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.NextCursor)
}

func TestListRejectsBadInput(t *testing.T) {
	svc := newTestService(t, &fakeRepository{})

	_, err := svc.List(context.Background(), uuid.Nil, ListFilter{})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = svc.List(context.Background(), uuid.New(), ListFilter{Params: pagination.Params{Cursor: "bad"}})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestMarkReadMissingRowIsNotFound(t *testing.T) {
	svc := newTestService(t, &fakeRepository{found: false})
	err := svc.MarkRead(context.Background(), uuid.New(), uuid.New())
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())

	svc = newTestService(t, &fakeRepository{found: true})
	assert.NoError(t, svc.MarkRead(context.Background(), uuid.New(), uuid.New()))
}

func TestMarkAllRead(t *testing.T) {
	svc := newTestService(t, &fakeRepository{marked: 3})
	count, err := svc.MarkAllRead(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	svc = newTestService(t, &fakeRepository{err: errors.New("boom")})
	_, err = svc.MarkAllRead(context.Background(), uuid.New())
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.As(err).Code())
}
