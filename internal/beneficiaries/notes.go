package beneficiaries

import (
	"fmt"
	"strings"
	"time"
)

const (
	noteCompletion   = "Completion Notes"
	noteSuspension   = "Suspension"
	noteReactivation = "Reactivation"
	noteProgress     = "Progress Note"
)

// AppendNote adds a dated entry to the progress log. Earlier entries are
// never rewritten.
func AppendNote(existing *string, label string, day time.Time, text string) string {
	entry := fmt.Sprintf("%s (%s): %s", label, day.Format(dateLayout), strings.TrimSpace(text))
	if existing == nil || strings.TrimSpace(*existing) == "" {
		return entry
	}
	return *existing + "\n\n" + entry
}

func today(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func firstOfMonth(now time.Time) time.Time {
	y, m, _ := now.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}
