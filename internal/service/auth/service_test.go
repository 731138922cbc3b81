package auth

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
	"github.com/jwalitptl/crm-api/internal/service/event"
	"github.com/jwalitptl/crm-api/internal/service/session"
	"github.com/jwalitptl/crm-api/internal/testutil"
	jwtauth "github.com/jwalitptl/crm-api/pkg/auth"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
	"github.com/jwalitptl/crm-api/pkg/logger"
	"github.com/jwalitptl/crm-api/pkg/metrics"
)

type fixture struct {
	svc      *Service
	sessions *session.Service
	repos    repository.Repositories
	notifier *testutil.Notifier
}

func setup(t *testing.T) *fixture {
	t.Helper()
	repos := memory.NewStore().Repositories()
	jwt := jwtauth.NewJWTService(jwtauth.Config{Secret: "secret", TTL: time.Hour})
	sessions := session.NewService(repos.Sessions, repos.Users, jwt, time.Hour, logger.Nop(), metrics.NewNop())
	notifier := &testutil.Notifier{}
	svc := NewService(repos.Users, repos.PasswordResets, sessions, testutil.Hasher(), notifier,
		event.NewEventService(repos.Outbox, logger.Nop()), audit.NewNop(), logger.Nop())
	return &fixture{svc: svc, sessions: sessions, repos: repos, notifier: notifier}
}

func registerRequest(email string) *model.RegisterRequest {
	return &model.RegisterRequest{
		Email:            email,
		Password:         testutil.Password,
		FirstName:        "Ada",
		LastName:         "Lovelace",
		OrganizationName: "Analytical Engines",
	}
}

func TestRegister(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	resp, err := f.svc.Register(ctx, registerRequest("Ada@Example.com "), model.ClientInfo{})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", resp.User.Email)
	assert.Equal(t, model.RoleAdmin, resp.User.Role)

	user, _, err := f.sessions.Authenticate(ctx, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, user.ID)

	_, ok := f.notifier.Last("welcome")
	assert.True(t, ok)

	_, err = f.svc.Register(ctx, registerRequest("ada@example.com"), model.ClientInfo{})
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))

	short := registerRequest("other@example.com")
	short.Password = "short"
	_, err = f.svc.Register(ctx, short, model.ClientInfo{})
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
}

func TestLoginFailuresLookAlike(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, registerRequest("ada@example.com"), model.ClientInfo{})
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, &model.LoginRequest{Email: "ada@example.com", Password: testutil.Password}, model.ClientInfo{})
	require.NoError(t, err)

	_, unknown := f.svc.Login(ctx, &model.LoginRequest{Email: "nobody@example.com", Password: "x"}, model.ClientInfo{})
	_, wrong := f.svc.Login(ctx, &model.LoginRequest{Email: "ada@example.com", Password: "wrong-password"}, model.ClientInfo{})

	require.Error(t, unknown)
	require.Error(t, wrong)
	assert.True(t, apperrors.Is(unknown, apperrors.ErrUnauthorized))
	assert.Equal(t, unknown.Error(), wrong.Error())
}

func TestPasswordResetFlow(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	resp, err := f.svc.Register(ctx, registerRequest("ada@example.com"), model.ClientInfo{})
	require.NoError(t, err)

	require.NoError(t, f.svc.ForgotPassword(ctx, "nobody@example.com"))
	_, ok := f.notifier.Last("password_reset")
	assert.False(t, ok)

	require.NoError(t, f.svc.ForgotPassword(ctx, "ada@example.com"))
	sent, ok := f.notifier.Last("password_reset")
	require.True(t, ok)
	require.NoError(t, f.svc.ValidateResetToken(ctx, sent.Token))

	err = f.svc.ResetPassword(ctx, &model.ResetPasswordRequest{Token: sent.Token, NewPassword: "new-password-1"})
	require.NoError(t, err)

	_, _, err = f.sessions.Authenticate(ctx, resp.AccessToken)
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized), "old sessions are revoked")

	err = f.svc.ResetPassword(ctx, &model.ResetPasswordRequest{Token: sent.Token, NewPassword: "new-password-2"})
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest), "token is single use")

	_, err = f.svc.Login(ctx, &model.LoginRequest{Email: "ada@example.com", Password: "new-password-1"}, model.ClientInfo{})
	assert.NoError(t, err)
}

func TestValidateResetTokenUnknown(t *testing.T) {
	f := setup(t)
	err := f.svc.ValidateResetToken(context.Background(), "missing")
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
}
