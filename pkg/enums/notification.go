package enums

import "fmt"

// NotificationType names both the in-app notification kind and the email
// template the mailer renders for it.
type NotificationType string

const (
	NotificationTypeWelcome              NotificationType = "welcome"
	NotificationTypeApplicationSubmitted NotificationType = "application_submitted"
	NotificationTypeApplicationApproved  NotificationType = "application_approved"
	NotificationTypeApplicationRejected  NotificationType = "application_rejected"
	NotificationTypeBeneficiaryEnrolled  NotificationType = "beneficiary_enrolled"
	NotificationTypeBeneficiaryCompleted NotificationType = "beneficiary_completed"
)

func (n NotificationType) IsValid() bool {
	switch n {
	case NotificationTypeWelcome,
		NotificationTypeApplicationSubmitted,
		NotificationTypeApplicationApproved,
		NotificationTypeApplicationRejected,
		NotificationTypeBeneficiaryEnrolled,
		NotificationTypeBeneficiaryCompleted:
		return true
	}
	return false
}

func ParseNotificationType(value string) (NotificationType, error) {
	if n := NotificationType(value); n.IsValid() {
		return n, nil
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
