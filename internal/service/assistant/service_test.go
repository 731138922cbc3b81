package assistant

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
	"github.com/jwalitptl/crm-api/internal/repository/memory"
	"github.com/jwalitptl/crm-api/internal/testutil"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
	"github.com/jwalitptl/crm-api/pkg/logger"
	"github.com/jwalitptl/crm-api/pkg/metrics"
)

type recordingCompleter struct {
	calls [][]ChatMessage
	err   error
}

func (r *recordingCompleter) Name() string { return "recording" }

func (r *recordingCompleter) Complete(ctx context.Context, messages []ChatMessage) (*Completion, error) {
	r.calls = append(r.calls, messages)
	if r.err != nil {
		return nil, r.err
	}
	return &Completion{Content: "reply", Tokens: 7, Model: "test"}, nil
}

func setup(t *testing.T, c Completer) (*Service, repository.Repositories, *model.User) {
	t.Helper()
	repos := memory.NewStore().Repositories()
	_, admin := testutil.CreateTestOrg(t, repos, "Acme")
	return NewService(repos.Conversations, repos.Organizations, c, 0, logger.Nop(), metrics.NewNop()), repos, admin
}

func TestQueryCreatesAndContinuesConversation(t *testing.T) {
	rec := &recordingCompleter{}
	svc, _, user := setup(t, rec)
	ctx := context.Background()

	first, err := svc.Query(ctx, user, "How do pipelines work in this system, step by step please?", nil)
	require.NoError(t, err)
	assert.Equal(t, "reply", first.Response)

	convs, err := svc.ListConversations(ctx, user, model.Pagination{})
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "How do pipelines work in this system, step by s...", convs[0].Title)

	_, err = svc.Query(ctx, user, "And stages?", &first.ConversationID)
	require.NoError(t, err)

	require.Len(t, rec.calls, 2)
	second := rec.calls[1]
	require.Len(t, second, 4)
	assert.Equal(t, model.MessageRoleSystem, second[0].Role)
	assert.Contains(t, second[0].Content, "Acme")
	assert.Equal(t, model.MessageRoleUser, second[1].Role)
	assert.Equal(t, model.MessageRoleAssistant, second[2].Role)
	assert.Equal(t, "And stages?", second[3].Content)

	msgs, err := svc.Messages(ctx, user, first.ConversationID)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	require.NotNil(t, msgs[1].Tokens)
	assert.Equal(t, 7, *msgs[1].Tokens)
}

func TestQueryForeignOrArchivedConversation(t *testing.T) {
	svc, repos, user := setup(t, CannedCompleter{})
	ctx := context.Background()
	_, other := testutil.CreateTestOrg(t, repos, "Other")

	resp, err := svc.Query(ctx, user, "hello", nil)
	require.NoError(t, err)

	_, err = svc.Query(ctx, other, "hello", &resp.ConversationID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	_, err = svc.Messages(ctx, other, resp.ConversationID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	missing := uuid.New()
	_, err = svc.Query(ctx, user, "hello", &missing)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	require.NoError(t, svc.Archive(ctx, user, resp.ConversationID))
	_, err = svc.Query(ctx, user, "hello", &resp.ConversationID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	convs, err := svc.ListConversations(ctx, user, model.Pagination{})
	require.NoError(t, err)
	assert.Empty(t, convs)
}

func TestProviderFailureStoresNothing(t *testing.T) {
	svc, _, user := setup(t, &recordingCompleter{err: errors.New("boom")})
	ctx := context.Background()

	_, err := svc.Query(ctx, user, "hello", nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrUnavailable))

	convs, err := svc.ListConversations(ctx, user, model.Pagination{})
	require.NoError(t, err)
	assert.Empty(t, convs)
}

func TestHelpAndCannedReplies(t *testing.T) {
	svc, _, user := setup(t, CannedCompleter{})

	resp, err := svc.Help(context.Background(), user, "pipeline")
	require.NoError(t, err)
	assert.Contains(t, resp.Response, "pipelines")

	_, err = svc.Help(context.Background(), user, " ")
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))

	reply, err := CannedCompleter{}.Complete(context.Background(), []ChatMessage{{Role: "user", Content: "What is the weather?"}})
	require.NoError(t, err)
	assert.Equal(t, cannedFallback, reply.Content)
}
