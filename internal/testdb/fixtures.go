package testdb

import (
	"fmt"
	"testing"
	"time"

	"github.com/angelmondragon/livelihood-backend/pkg/db/models"
	"github.com/angelmondragon/livelihood-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SeedUser inserts an active, verified user holding role.
func SeedUser(t *testing.T, conn *gorm.DB, role enums.Role) *models.User {
	t.Helper()

	id := uuid.New()
	user := &models.User{
		ID:           id,
		Email:        fmt.Sprintf("%s-%s@example.com", role, id.String()[:8]),
		PasswordHash: "x",
		FirstName:    "Test",
		LastName:     string(role),
		Role:         role,
		IsActive:     true,
		IsVerified:   true,
	}
	if err := conn.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

// SeedProgram inserts a program that is accepting applications. mutate may
// adjust fields before insert.
func SeedProgram(t *testing.T, conn *gorm.DB, mutate func(*models.Program)) *models.Program {
	t.Helper()

	id := uuid.New()
	program := &models.Program{
		ID:          id,
		Title:       "Organic Farming Basics",
		Description: "Hands-on training for backyard organic farming.",
		Category:    enums.ProgramCategoryAgriculture,
		ProgramCode: "OFB-" + id.String()[:8],
		Status:      enums.ProgramStatusActive,
		IsActive:    true,
	}
	if mutate != nil {
		mutate(program)
	}
	if err := conn.Create(program).Error; err != nil {
		t.Fatalf("seed program: %v", err)
	}
	return program
}

// SeedApplication inserts an active application in the given status.
func SeedApplication(t *testing.T, conn *gorm.DB, userID, programID uuid.UUID, status enums.ApplicationStatus) *models.Application {
	t.Helper()

	app := &models.Application{
		UserID:    userID,
		ProgramID: programID,
		Status:    status,
		AppliedAt: time.Now().UTC(),
		IsActive:  status != enums.ApplicationStatusWithdrawn,
	}
	if err := conn.Create(app).Error; err != nil {
		t.Fatalf("seed application: %v", err)
	}
	return app
}

// SeedBeneficiary inserts an active enrollment for an application.
func SeedBeneficiary(t *testing.T, conn *gorm.DB, app *models.Application, status enums.BeneficiaryStatus) *models.Beneficiary {
	t.Helper()

	beneficiary := &models.Beneficiary{
		UserID:         app.UserID,
		ProgramID:      app.ProgramID,
		ApplicationID:  app.ID,
		EnrollmentDate: time.Now().UTC().Truncate(24 * time.Hour),
		Status:         status,
		IsActive:       true,
	}
	if err := conn.Create(beneficiary).Error; err != nil {
		t.Fatalf("seed beneficiary: %v", err)
	}
	return beneficiary
}

// Actions returns the audit action codes stored so far, oldest first.
func Actions(t *testing.T, conn *gorm.DB) []enums.AuditAction {
	t.Helper()

	var rows []models.AuditLog
	if err := conn.Order("created_at ASC").Find(&rows).Error; err != nil {
		t.Fatalf("load audit rows: %v", err)
	}
	out := make([]enums.AuditAction, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Action)
	}
	return out
}
