package notifications

import (
	"fmt"

	"github.com/angelmondragon/livelihood-backend/pkg/enums"
	"github.com/google/uuid"
)

func Welcome(userID uuid.UUID, firstName string) Message {
	return Message{
		UserID: userID,
		Type:   enums.NotificationTypeWelcome,
		Title:  "Welcome to the Livelihood Programs portal",
		Body:   fmt.Sprintf("Hi %s, your account is ready. Browse the open programs and apply to the ones that fit you.", firstName),
	}
}

func ApplicationSubmitted(userID, applicationID uuid.UUID, programTitle string) Message {
	return applicationMessage(userID, applicationID, programTitle, enums.NotificationTypeApplicationSubmitted,
		"Application received",
		fmt.Sprintf("We received your application to %s. You will be notified once it is reviewed.", programTitle))
}

func ApplicationApproved(userID, applicationID uuid.UUID, programTitle string) Message {
	return applicationMessage(userID, applicationID, programTitle, enums.NotificationTypeApplicationApproved,
		"Application approved",
		fmt.Sprintf("Your application to %s was approved. Staff will contact you about enrollment.", programTitle))
}

// ApplicationRejected includes the reviewer's reason when one was given.
func ApplicationRejected(userID, applicationID uuid.UUID, programTitle, reason string) Message {
	body := fmt.Sprintf("Your application to %s was not approved.", programTitle)
	if reason != "" {
		body += " Reason: " + reason
	}
	msg := applicationMessage(userID, applicationID, programTitle, enums.NotificationTypeApplicationRejected,
		"Application update", body)
	msg.Params["reason"] = reason
	return msg
}

func BeneficiaryEnrolled(userID, beneficiaryID uuid.UUID, programTitle string) Message {
	return beneficiaryMessage(userID, beneficiaryID, programTitle, enums.NotificationTypeBeneficiaryEnrolled,
		"You are enrolled",
		fmt.Sprintf("You are now enrolled as a beneficiary of %s.", programTitle))
}

func BeneficiaryCompleted(userID, beneficiaryID uuid.UUID, programTitle string) Message {
	return beneficiaryMessage(userID, beneficiaryID, programTitle, enums.NotificationTypeBeneficiaryCompleted,
		"Program completed",
		fmt.Sprintf("Congratulations on completing %s.", programTitle))
}

func applicationMessage(userID, applicationID uuid.UUID, programTitle string, kind enums.NotificationType, title, body string) Message {
	id := applicationID
	return Message{
		UserID:       userID,
		Type:         kind,
		Title:        title,
		Body:         body,
		ResourceType: enums.AuditResourceApplication,
		ResourceID:   &id,
		Params:       map[string]string{"program_title": programTitle, "application_id": applicationID.String()},
	}
}

func beneficiaryMessage(userID, beneficiaryID uuid.UUID, programTitle string, kind enums.NotificationType, title, body string) Message {
	id := beneficiaryID
	return Message{
		UserID:       userID,
		Type:         kind,
		Title:        title,
		Body:         body,
		ResourceType: enums.AuditResourceBeneficiary,
		ResourceID:   &id,
		Params:       map[string]string{"program_title": programTitle, "beneficiary_id": beneficiaryID.String()},
	}
}
