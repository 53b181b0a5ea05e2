package enums

import "fmt"

// ApplicationStatus tracks where an application sits in the review flow.
type ApplicationStatus string

const (
	ApplicationStatusPending   ApplicationStatus = "pending"
	ApplicationStatusApproved  ApplicationStatus = "approved"
	ApplicationStatusRejected  ApplicationStatus = "rejected"
	ApplicationStatusWithdrawn ApplicationStatus = "withdrawn"
)

var validApplicationStatuses = []ApplicationStatus{
	ApplicationStatusPending,
	ApplicationStatusApproved,
	ApplicationStatusRejected,
	ApplicationStatusWithdrawn,
}

func AllApplicationStatuses() []ApplicationStatus {
	return append([]ApplicationStatus(nil), validApplicationStatuses...)
}

func (s ApplicationStatus) String() string {
	return string(s)
}

func (s ApplicationStatus) IsValid() bool {
	for _, candidate := range validApplicationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no lifecycle transition leaves the status.
func (s ApplicationStatus) IsTerminal() bool {
	return s.IsValid() && s != ApplicationStatusPending
}

// IsProcessed reports whether a reviewer already decided on the application.
func (s ApplicationStatus) IsProcessed() bool {
	return s == ApplicationStatusApproved || s == ApplicationStatusRejected
}

// BlockingApplicationStatuses are the statuses that keep a user or program from being deleted.
func BlockingApplicationStatuses() []ApplicationStatus {
	return []ApplicationStatus{ApplicationStatusPending, ApplicationStatusApproved}
}

func ParseApplicationStatus(value string) (ApplicationStatus, error) {
	for _, candidate := range validApplicationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid application status %q", value)
}
