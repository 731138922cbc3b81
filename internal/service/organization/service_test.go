package organization

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository/memory"
	"github.com/jwalitptl/crm-api/internal/service/audit"
	"github.com/jwalitptl/crm-api/internal/testutil"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
)

func TestGetAndUpdate(t *testing.T) {
	ctx := context.Background()
	repos := memory.NewStore().Repositories()
	org, admin := testutil.CreateTestOrg(t, repos, "Acme")
	member := testutil.CreateTestUser(t, repos, admin, "member@acme.test", model.RoleUser)
	svc := NewService(repos.Organizations, audit.NewNop())

	got, err := svc.Get(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Name)

	got.Name = "mutated by caller"
	again, err := svc.Get(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", again.Name, "cached value is isolated from callers")

	name := "Acme Corp"
	_, err = svc.Update(ctx, member, &model.UpdateOrganizationRequest{Name: &name})
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	updated, err := svc.Update(ctx, admin, &model.UpdateOrganizationRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)

	got, err = svc.Get(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, name, got.Name, "update invalidates the cache")
}
