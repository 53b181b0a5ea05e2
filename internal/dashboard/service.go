package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/livelihood-backend/internal/applications"
	"github.com/angelmondragon/livelihood-backend/internal/authz"
	"github.com/angelmondragon/livelihood-backend/internal/beneficiaries"
	"github.com/angelmondragon/livelihood-backend/internal/programs"
	"github.com/angelmondragon/livelihood-backend/internal/users"
	"github.com/angelmondragon/livelihood-backend/pkg/db/models"
	"github.com/angelmondragon/livelihood-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/livelihood-backend/pkg/errors"
	"github.com/angelmondragon/livelihood-backend/pkg/logger"
	"go.uber.org/multierr"
)

const (
	trendDays = 30

	defaultRecentUsers = 10
	maxRecentUsers     = 50
	defaultPending     = 20
	maxPending         = 100
	defaultInactive    = 50
	maxInactive        = 100
)

// Service provides the admin dashboard views.
type Service interface {
	Stats(ctx context.Context, actor authz.Actor) (*Stats, error)
	RecentUsers(ctx context.Context, actor authz.Actor, limit int) ([]users.UserDTO, error)
	PendingApplications(ctx context.Context, actor authz.Actor, limit int) ([]applications.ApplicationDTO, error)
	InactivePrograms(ctx context.Context, actor authz.Actor, limit int) ([]programs.ProgramDTO, error)
	SystemHealth(ctx context.Context, actor authz.Actor) (*Health, error)
}

type userReader interface {
	CountActive(ctx context.Context) (int64, int64, error)
	CountByRole(ctx context.Context) ([]users.RoleCount, error)
	Recent(ctx context.Context, limit int) ([]models.User, error)
}

type programReader interface {
	Counts(ctx context.Context) (programs.Totals, error)
	ListInactive(ctx context.Context, limit int) ([]models.Program, error)
}

type applicationReader interface {
	CountByStatus(ctx context.Context) ([]applications.StatusCount, error)
	Pending(ctx context.Context, limit int) ([]models.Application, error)
	AppliedSince(ctx context.Context, since time.Time) ([]time.Time, error)
}

type beneficiaryReader interface {
	CountByStatus(ctx context.Context) ([]beneficiaries.StatusCount, error)
}

type recordCounter interface {
	RecordCounts(ctx context.Context) (map[string]int64, error)
}

// Pinger is a dependency the health report probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ServiceParams wires the dashboard to the domain repositories. Redis is optional.
type ServiceParams struct {
	Users         userReader
	Programs      programReader
	Applications  applicationReader
	Beneficiaries beneficiaryReader
	Records       recordCounter
	Database      Pinger
	Redis         Pinger
	Logger        *logger.Logger
	Now           func() time.Time
}

type service struct {
	users         userReader
	programs      programReader
	applications  applicationReader
	beneficiaries beneficiaryReader
	records       recordCounter
	database      Pinger
	redis         Pinger
	logg          *logger.Logger
	now           func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	var err error
	if params.Users == nil {
		err = multierr.Append(err, fmt.Errorf("user repository is required"))
	}
	if params.Programs == nil {
		err = multierr.Append(err, fmt.Errorf("program repository is required"))
	}
	if params.Applications == nil {
		err = multierr.Append(err, fmt.Errorf("application repository is required"))
	}
	if params.Beneficiaries == nil {
		err = multierr.Append(err, fmt.Errorf("beneficiary repository is required"))
	}
	if params.Records == nil {
		err = multierr.Append(err, fmt.Errorf("record counter is required"))
	}
	if params.Database == nil {
		err = multierr.Append(err, fmt.Errorf("database pinger is required"))
	}
	if err != nil {
		return nil, err
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		users:         params.Users,
		programs:      params.Programs,
		applications:  params.Applications,
		beneficiaries: params.Beneficiaries,
		records:       params.Records,
		database:      params.Database,
		redis:         params.Redis,
		logg:          params.Logger,
		now:           now,
	}, nil
}

func (s *service) Stats(ctx context.Context, actor authz.Actor) (*Stats, error) {
	if err := actor.Authorize(authz.DashboardRead); err != nil {
		return nil, err
	}
	now := s.now()
	stats := &Stats{GeneratedAt: now}

	total, active, err := s.users.CountActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count users")
	}
	roles, err := s.users.CountByRole(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count users by role")
	}
	stats.Users = UserStats{Total: total, Active: active, ByRole: map[string]int64{}}
	for _, role := range enums.AllRoles() {
		stats.Users.ByRole[string(role)] = 0
	}
	for _, row := range roles {
		stats.Users.ByRole[string(row.Role)] = row.Total
	}

	totals, err := s.programs.Counts(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count programs")
	}
	stats.Programs = ProgramStats{Total: totals.Total, Active: totals.Active, Featured: totals.Featured}

	appCounts, err := s.applications.CountByStatus(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count applications")
	}
	stats.Applications.ByStatus = map[string]int64{}
	for _, status := range enums.AllApplicationStatuses() {
		stats.Applications.ByStatus[string(status)] = 0
	}
	for _, row := range appCounts {
		stats.Applications.ByStatus[string(row.Status)] = row.Total
		stats.Applications.Total += row.Total
	}
	from := startOfDay(now).AddDate(0, 0, -(trendDays - 1))
	stamps, err := s.applications.AppliedSince(ctx, from)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load application trend")
	}
	stats.Applications.Trend = dailyTrend(from, trendDays, stamps)

	benCounts, err := s.beneficiaries.CountByStatus(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count beneficiaries")
	}
	stats.Beneficiaries.ByStatus = map[string]int64{}
	for _, status := range enums.AllBeneficiaryStatuses() {
		stats.Beneficiaries.ByStatus[string(status)] = 0
	}
	for _, row := range benCounts {
		stats.Beneficiaries.ByStatus[string(row.Status)] = row.Total
		stats.Beneficiaries.Total += row.Total
	}
	return stats, nil
}

func (s *service) RecentUsers(ctx context.Context, actor authz.Actor, limit int) ([]users.UserDTO, error) {
	if err := actor.Authorize(authz.DashboardRead); err != nil {
		return nil, err
	}
	rows, err := s.users.Recent(ctx, clamp(limit, defaultRecentUsers, maxRecentUsers))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load recent users")
	}
	out := make([]users.UserDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *users.FromModel(&rows[i]))
	}
	return out, nil
}

func (s *service) PendingApplications(ctx context.Context, actor authz.Actor, limit int) ([]applications.ApplicationDTO, error) {
	if err := actor.Authorize(authz.DashboardRead); err != nil {
		return nil, err
	}
	rows, err := s.applications.Pending(ctx, clamp(limit, defaultPending, maxPending))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pending applications")
	}
	out := make([]applications.ApplicationDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *applications.FromModel(&rows[i]))
	}
	return out, nil
}

func (s *service) InactivePrograms(ctx context.Context, actor authz.Actor, limit int) ([]programs.ProgramDTO, error) {
	if err := actor.Authorize(authz.DashboardRead); err != nil {
		return nil, err
	}
	rows, err := s.programs.ListInactive(ctx, clamp(limit, defaultInactive, maxInactive))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inactive programs")
	}
	now := s.now()
	out := make([]programs.ProgramDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *programs.FromModel(&rows[i], now))
	}
	return out, nil
}

// SystemHealth probes the database and cache. A failing database marks the
// report unhealthy; a failing cache only degrades it.
func (s *service) SystemHealth(ctx context.Context, actor authz.Actor) (*Health, error) {
	if err := actor.Authorize(authz.DashboardRead); err != nil {
		return nil, err
	}
	report := &Health{
		Status:     statusHealthy,
		Components: map[string]ComponentHealth{},
		CheckedAt:  s.now(),
	}

	if err := s.database.Ping(ctx); err != nil {
		report.Components["database"] = ComponentHealth{Status: statusUnhealthy, Error: err.Error()}
		report.Status = statusUnhealthy
	} else {
		report.Components["database"] = ComponentHealth{Status: statusHealthy}
	}

	switch {
	case s.redis == nil:
		report.Components["redis"] = ComponentHealth{Status: statusSkipped}
	default:
		if err := s.redis.Ping(ctx); err != nil {
			report.Components["redis"] = ComponentHealth{Status: statusUnhealthy, Error: err.Error()}
			if report.Status == statusHealthy {
				report.Status = statusDegraded
			}
		} else {
			report.Components["redis"] = ComponentHealth{Status: statusHealthy}
		}
	}

	if report.Status != statusUnhealthy {
		counts, err := s.records.RecordCounts(ctx)
		if err != nil {
			if s.logg != nil {
				s.logg.Warn(ctx, "record counts unavailable: "+err.Error())
			}
		} else {
			report.Records = counts
		}
	}
	return report, nil
}

func dailyTrend(from time.Time, days int, stamps []time.Time) []TimeSeriesPoint {
	buckets := make(map[string]int64, days)
	for _, stamp := range stamps {
		buckets[stamp.UTC().Format("2006-01-02")]++
	}
	out := make([]TimeSeriesPoint, 0, days)
	for i := 0; i < days; i++ {
		day := from.AddDate(0, 0, i).Format("2006-01-02")
		out = append(out, TimeSeriesPoint{Date: day, Value: buckets[day]})
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func clamp(limit, fallback, max int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > max {
		return max
	}
	return limit
}
