package enums

import (
	"fmt"
	"strings"
)

// AuditAction is the action code stored on every audit_logs row.
type AuditAction string

const (
	AuditUserLoginSuccess    AuditAction = "USER_LOGIN_SUCCESS"
	AuditUserRegistered      AuditAction = "USER_REGISTERED"
	AuditUserPasswordChanged AuditAction = "USER_PASSWORD_CHANGED"
	AuditUserCreated         AuditAction = "USER_CREATED"
	AuditUserUpdated         AuditAction = "USER_UPDATED"
	AuditUserPromoted        AuditAction = "USER_PROMOTED"
	AuditUserDemoted         AuditAction = "USER_DEMOTED"
	AuditUserActivated       AuditAction = "USER_ACTIVATED"
	AuditUserDeactivated     AuditAction = "USER_DEACTIVATED"
	AuditUserDeleted         AuditAction = "USER_DELETED"

	AuditProgramCreated     AuditAction = "PROGRAM_CREATED"
	AuditProgramUpdated     AuditAction = "PROGRAM_UPDATED"
	AuditProgramActivated   AuditAction = "PROGRAM_ACTIVATED"
	AuditProgramDeactivated AuditAction = "PROGRAM_DEACTIVATED"
	AuditProgramFeatured    AuditAction = "PROGRAM_FEATURED"
	AuditProgramUnfeatured  AuditAction = "PROGRAM_UNFEATURED"
	AuditProgramDeleted     AuditAction = "PROGRAM_DELETED"

	AuditApplicationCreated   AuditAction = "APPLICATION_CREATED"
	AuditApplicationUpdated   AuditAction = "APPLICATION_UPDATED"
	AuditApplicationApproved  AuditAction = "APPLICATION_APPROVED"
	AuditApplicationRejected  AuditAction = "APPLICATION_REJECTED"
	AuditApplicationWithdrawn AuditAction = "APPLICATION_WITHDRAWN"
	AuditApplicationDeleted   AuditAction = "APPLICATION_DELETED"

	AuditBeneficiaryCreated     AuditAction = "BENEFICIARY_CREATED"
	AuditBeneficiaryUpdated     AuditAction = "BENEFICIARY_UPDATED"
	AuditBeneficiaryCompleted   AuditAction = "BENEFICIARY_COMPLETED"
	AuditBeneficiarySuspended   AuditAction = "BENEFICIARY_SUSPENDED"
	AuditBeneficiaryReactivated AuditAction = "BENEFICIARY_REACTIVATED"
	AuditBeneficiaryNoteAdded   AuditAction = "BENEFICIARY_NOTE_ADDED"
	AuditBeneficiaryDeleted     AuditAction = "BENEFICIARY_DELETED"
)

func (a AuditAction) String() string {
	return string(a)
}

// AuditResource names the entity an audit row refers to.
type AuditResource string

const (
	AuditResourceUser        AuditResource = "User"
	AuditResourceProgram     AuditResource = "Program"
	AuditResourceApplication AuditResource = "Application"
	AuditResourceBeneficiary AuditResource = "Beneficiary"
)

func (r AuditResource) String() string {
	return string(r)
}

var auditResources = []AuditResource{
	AuditResourceUser,
	AuditResourceProgram,
	AuditResourceApplication,
	AuditResourceBeneficiary,
}

// ParseAuditResource matches resource names case-insensitively so path
// segments like "program" resolve.
func ParseAuditResource(value string) (AuditResource, error) {
	for _, candidate := range auditResources {
		if strings.EqualFold(string(candidate), value) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid audit resource %q", value)
}
