package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/livelihood-backend/internal/users"
	"github.com/angelmondragon/livelihood-backend/pkg/config"
	"github.com/angelmondragon/livelihood-backend/pkg/db/models"
	"github.com/angelmondragon/livelihood-backend/pkg/enums"
	"github.com/angelmondragon/livelihood-backend/pkg/logger"
	"github.com/angelmondragon/livelihood-backend/pkg/security"
	"gorm.io/gorm"
)

type bootstrapRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error)
}

// EnsureSuperAdmin provisions the first super_admin account when it is
// configured and missing. An existing account is left untouched.
func EnsureSuperAdmin(ctx context.Context, repo bootstrapRepository, cfg config.BootstrapConfig, passCfg config.PasswordConfig, logg *logger.Logger) (bool, error) {
	if !cfg.Enabled() {
		return false, nil
	}
	email := users.NormalizeEmail(cfg.SuperAdminEmail)

	if _, err := repo.FindByEmail(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("lookup bootstrap user: %w", err)
	}

	hash, err := security.HashPassword(cfg.SuperAdminPassword, passCfg)
	if err != nil {
		return false, fmt.Errorf("hash bootstrap password: %w", err)
	}
	active := true
	user, err := repo.Create(ctx, users.CreateUserDTO{
		Email:        email,
		PasswordHash: hash,
		FirstName:    "System",
		LastName:     "Administrator",
		Role:         enums.RoleSuperAdmin,
		IsVerified:   true,
		IsActive:     &active,
	})
	if err != nil {
		return false, fmt.Errorf("create bootstrap user: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithActor(ctx, user.ID.String(), string(user.Role)), "bootstrap super admin created")
	}
	return true, nil
}
