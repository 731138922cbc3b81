package invitation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
	"github.com/jwalitptl/crm-api/internal/repository/memory"
	"github.com/jwalitptl/crm-api/internal/service/audit"
	"github.com/jwalitptl/crm-api/internal/service/session"
	"github.com/jwalitptl/crm-api/internal/testutil"
	jwtauth "github.com/jwalitptl/crm-api/pkg/auth"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
	"github.com/jwalitptl/crm-api/pkg/logger"
	"github.com/jwalitptl/crm-api/pkg/metrics"
)

type fixture struct {
	svc      *Service
	repos    repository.Repositories
	sessions *session.Service
	notifier *testutil.Notifier
	events   *testutil.Events
	admin    *model.User
}

func setup(t *testing.T) *fixture {
	t.Helper()
	repos := memory.NewStore().Repositories()
	_, admin := testutil.CreateTestOrg(t, repos, "Acme")
	jwt := jwtauth.NewJWTService(jwtauth.Config{Secret: "secret", TTL: time.Hour})
	sessions := session.NewService(repos.Sessions, repos.Users, jwt, time.Hour, logger.Nop(), metrics.NewNop())
	notifier := &testutil.Notifier{}
	events := &testutil.Events{}
	svc := NewService(repos.Invitations, repos.Users, repos.Organizations, sessions, testutil.Hasher(), notifier, events, audit.NewNop(), logger.Nop())
	return &fixture{svc: svc, repos: repos, sessions: sessions, notifier: notifier, events: events, admin: admin}
}

func acceptRequest(token string) *model.AcceptInvitationRequest {
	return &model.AcceptInvitationRequest{Token: token, FirstName: "New", LastName: "Hire", Password: testutil.Password}
}

func TestInviteAndAccept(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	inv, err := f.svc.Create(ctx, f.admin, &model.CreateInvitationRequest{Email: "New@Acme.test"})
	require.NoError(t, err)
	assert.Equal(t, "new@acme.test", inv.Email)
	assert.Equal(t, model.RoleUser, inv.Role)

	sent, ok := f.notifier.Last("invitation")
	require.True(t, ok)
	assert.Equal(t, inv.Token, sent.Token)

	_, err = f.svc.Create(ctx, f.admin, &model.CreateInvitationRequest{Email: "new@acme.test"})
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))

	v, err := f.svc.Verify(ctx, inv.Token)
	require.NoError(t, err)
	assert.Equal(t, "Acme", v.OrganizationName)
	assert.True(t, v.Valid)

	resp, err := f.svc.Accept(ctx, acceptRequest(inv.Token), model.ClientInfo{DeviceInfo: "test"})
	require.NoError(t, err)
	assert.Equal(t, f.admin.OrganizationID, resp.User.OrganizationID)
	assert.Equal(t, model.RoleUser, resp.User.Role)

	user, _, err := f.sessions.Authenticate(ctx, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "new@acme.test", user.Email)
	assert.Equal(t, 1, f.events.Count(model.EventInvitationAccepted))

	t.Run("consumed exactly once", func(t *testing.T) {
		_, err := f.svc.Accept(ctx, acceptRequest(inv.Token), model.ClientInfo{})
		assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
		_, err = f.svc.Verify(ctx, inv.Token)
		assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
	})

	t.Run("existing user cannot be invited", func(t *testing.T) {
		_, err := f.svc.Create(ctx, f.admin, &model.CreateInvitationRequest{Email: "new@acme.test"})
		assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
	})
}

func TestInvitationRequiresAdmin(t *testing.T) {
	f := setup(t)
	member := testutil.CreateTestUser(t, f.repos, f.admin, "member@acme.test", model.RoleUser)

	_, err := f.svc.Create(context.Background(), member, &model.CreateInvitationRequest{Email: "x@acme.test"})
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
	_, err = f.svc.List(context.Background(), member)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
}

func TestCancelAndExpiry(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	inv, err := f.svc.Create(ctx, f.admin, &model.CreateInvitationRequest{Email: "late@acme.test", Role: model.RoleAdmin})
	require.NoError(t, err)

	pending, err := f.svc.List(ctx, f.admin)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	require.NoError(t, f.svc.Cancel(ctx, f.admin, inv.ID))
	pending, err = f.svc.List(ctx, f.admin)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = f.svc.Accept(ctx, acceptRequest(inv.Token), model.ClientInfo{})
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))

	expiring, err := f.svc.Create(ctx, f.admin, &model.CreateInvitationRequest{Email: "slow@acme.test"})
	require.NoError(t, err)
	f.svc.now = func() time.Time { return time.Now().UTC().Add(model.InvitationTTL + time.Hour) }
	_, err = f.svc.Verify(ctx, expiring.Token)
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
}

func TestAcceptRejectsShortPassword(t *testing.T) {
	f := setup(t)
	inv, err := f.svc.Create(context.Background(), f.admin, &model.CreateInvitationRequest{Email: "p@acme.test"})
	require.NoError(t, err)

	req := acceptRequest(inv.Token)
	req.Password = "short"
	_, err = f.svc.Accept(context.Background(), req, model.ClientInfo{})
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
}
