package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quipper/lti/nrps/pkg/lti"
)

func TestSQLiteRepo_Registrations(t *testing.T) {
	repo, err := NewSQLiteRepo(filepath.Join(t.TempDir(), "lti.db"))
	require.NoError(t, err)
	defer repo.Disconnect()
	ctx := context.Background()

	require.NoError(t, repo.Health())

	reg := &lti.Registration{
		Name:           "Quiz tool",
		ClientID:       "tool-1",
		PlatformIssuer: "https://lms.example",
		AccessTokenURL: "https://lms.example/token",
		ToolJWKSURL:    "https://tool.example/jwks",
		DeploymentIDs:  []string{"dep-1"},
	}
	require.NoError(t, repo.CreateRegistration(ctx, reg))
	assert.NotEmpty(t, reg.ID)
	assert.False(t, reg.CreatedAt.IsZero())

	dup := &lti.Registration{Name: "dup", ClientID: "tool-1"}
	assert.Error(t, repo.CreateRegistration(ctx, dup))

	got, err := repo.GetRegistrationByClientID(ctx, "tool-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, reg.ID, got.ID)
	assert.Equal(t, []string{"dep-1"}, got.DeploymentIDs)
	assert.Equal(t, "https://lms.example/token", got.AccessTokenURL)
	assert.Empty(t, got.PlatformJWKSURL)
	assert.True(t, got.HasDeployment("dep-1"))

	byID, err := repo.GetRegistration(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, "tool-1", byID.ClientID)

	all, err := repo.ListRegistrations(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, repo.DeleteRegistration(ctx, reg.ID))
	missing, err := repo.GetRegistrationByClientID(ctx, "tool-1")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
