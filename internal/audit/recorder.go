package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/angelmondragon/livelihood-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/livelihood-backend/pkg/db/types"
	"github.com/angelmondragon/livelihood-backend/pkg/enums"
	"github.com/angelmondragon/livelihood-backend/pkg/logger"
	"github.com/google/uuid"
)

// Entry describes one logical action to append.
type Entry struct {
	ActorID      *uuid.UUID
	Action       enums.AuditAction
	ResourceType enums.AuditResource
	ResourceID   *uuid.UUID
	OldValues    map[string]any
	NewValues    map[string]any
	Description  string
}

type appender interface {
	Append(ctx context.Context, entry *models.AuditLog) error
}

type failureCounter interface {
	IncAuditFailure(action string)
}

// Recorder appends audit rows after the business change has committed.
// Failures are logged and counted, never returned, so a committed change is
// never reported as failed because of its audit row.
type Recorder struct {
	repo    appender
	logg    *logger.Logger
	metrics failureCounter
	now     func() time.Time
}

// NewRecorder builds a Recorder. metrics may be nil.
func NewRecorder(repo appender, logg *logger.Logger, metrics failureCounter) *Recorder {
	return &Recorder{repo: repo, logg: logg, metrics: metrics, now: time.Now}
}

// Record appends the entry. Call it only after the transaction committed.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if r == nil || r.repo == nil {
		return
	}

	row := &models.AuditLog{
		UserID:       entry.ActorID,
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		OldValues:    dbtypes.JSONMap(entry.OldValues),
		NewValues:    dbtypes.JSONMap(entry.NewValues),
		CreatedAt:    r.now().UTC(),
	}
	if entry.Description != "" {
		desc := entry.Description
		row.Description = &desc
	}
	if meta, ok := RequestMetaFromContext(ctx); ok {
		if meta.IPAddress != "" {
			ip := meta.IPAddress
			row.IPAddress = &ip
		}
		if meta.UserAgent != "" {
			ua := meta.UserAgent
			row.UserAgent = &ua
		}
	}

	if err := r.repo.Append(context.WithoutCancel(ctx), row); err != nil {
		if r.metrics != nil {
			r.metrics.IncAuditFailure(string(entry.Action))
		}
		if r.logg != nil {
			fields := map[string]any{
				"audit_action":  entry.Action,
				"resource_type": entry.ResourceType,
			}
			if entry.ResourceID != nil {
				fields["resource_id"] = entry.ResourceID.String()
			}
			r.logg.Error(r.logg.WithFields(ctx, fields), "audit append failed", err)
		}
	}
}

// Snapshot flattens a value into the map form stored in old/new columns.
// Values that cannot be encoded yield nil rather than failing the caller.
func Snapshot(v any) map[string]any {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// Ptr returns a pointer to a copy of id, for optional ids on entries.
func Ptr(id uuid.UUID) *uuid.UUID {
	return &id
}
