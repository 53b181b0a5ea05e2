package dashboard

import "time"

// TimeSeriesPoint is one day of a trend.
type TimeSeriesPoint struct {
	Date  string `json:"date"`
	Value int64  `json:"value"`
}

type UserStats struct {
	Total  int64            `json:"total"`
	Active int64            `json:"active"`
	ByRole map[string]int64 `json:"by_role"`
}

type ProgramStats struct {
	Total    int64 `json:"total"`
	Active   int64 `json:"active"`
	Featured int64 `json:"featured"`
}

type ApplicationStats struct {
	Total    int64             `json:"total"`
	ByStatus map[string]int64  `json:"by_status"`
	Trend    []TimeSeriesPoint `json:"trend"`
}

type BeneficiaryStats struct {
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"by_status"`
}

// Stats is the admin landing page summary.
type Stats struct {
	Users         UserStats        `json:"users"`
	Programs      ProgramStats     `json:"programs"`
	Applications  ApplicationStats `json:"applications"`
	Beneficiaries BeneficiaryStats `json:"beneficiaries"`
	GeneratedAt   time.Time        `json:"generated_at"`
}

// ComponentHealth reports one dependency probe.
type ComponentHealth struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Health is the admin system health report.
type Health struct {
	Status     string                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Records    map[string]int64           `json:"records"`
	CheckedAt  time.Time                  `json:"checked_at"`
}

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	statusDegraded  = "degraded"
	statusSkipped   = "not_configured"
)

