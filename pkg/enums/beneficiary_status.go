package enums

import "fmt"

// BeneficiaryStatus tracks enrollment progress. Dropped has no public transition into it.
type BeneficiaryStatus string

const (
	BeneficiaryStatusActive    BeneficiaryStatus = "active"
	BeneficiaryStatusCompleted BeneficiaryStatus = "completed"
	BeneficiaryStatusSuspended BeneficiaryStatus = "suspended"
	BeneficiaryStatusDropped   BeneficiaryStatus = "dropped"
)

var validBeneficiaryStatuses = []BeneficiaryStatus{
	BeneficiaryStatusActive,
	BeneficiaryStatusCompleted,
	BeneficiaryStatusSuspended,
	BeneficiaryStatusDropped,
}

func (s BeneficiaryStatus) String() string {
	return string(s)
}

func (s BeneficiaryStatus) IsValid() bool {
	for _, candidate := range validBeneficiaryStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// AllBeneficiaryStatuses returns every known status in declaration order.
func AllBeneficiaryStatuses() []BeneficiaryStatus {
	return append([]BeneficiaryStatus(nil), validBeneficiaryStatuses...)
}

func ParseBeneficiaryStatus(value string) (BeneficiaryStatus, error) {
	for _, candidate := range validBeneficiaryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid beneficiary status %q", value)
}

// LiveBeneficiaryStatuses are the statuses that still count as enrolled for
// capacity and deletion checks.
func LiveBeneficiaryStatuses() []BeneficiaryStatus {
	return []BeneficiaryStatus{BeneficiaryStatusActive, BeneficiaryStatusSuspended}
}
