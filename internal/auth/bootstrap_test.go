package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/livelihood-backend/pkg/config"
	"github.com/angelmondragon/livelihood-backend/pkg/enums"
	"github.com/angelmondragon/livelihood-backend/pkg/security"
)

func TestEnsureSuperAdminCreatesOnce(t *testing.T) {
	repo := newStubUserRepo()
	cfg := config.BootstrapConfig{SuperAdminEmail: " Root@MSWD.gov.ph ", SuperAdminPassword: "Sup3r!Secret"}

	created, err := EnsureSuperAdmin(context.Background(), repo, cfg, testPasswordConfig, nil)
	require.NoError(t, err)
	assert.True(t, created)

	user, err := repo.FindByEmail(context.Background(), "root@mswd.gov.ph")
	require.NoError(t, err)
	assert.Equal(t, enums.RoleSuperAdmin, user.Role)
	assert.True(t, user.IsActive)
	assert.True(t, user.IsVerified)
	ok, err := security.VerifyPassword("Sup3r!Secret", user.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	created, err = EnsureSuperAdmin(context.Background(), repo, cfg, testPasswordConfig, nil)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Len(t, repo.byID, 1)
}

func TestEnsureSuperAdminSkipsWithoutPassword(t *testing.T) {
	repo := newStubUserRepo()
	created, err := EnsureSuperAdmin(context.Background(), repo, config.BootstrapConfig{SuperAdminEmail: "root@mswd.gov.ph"}, testPasswordConfig, nil)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Empty(t, repo.byID)
}
