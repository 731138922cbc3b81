package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
	"github.com/jwalitptl/crm-api/pkg/logger"
	"github.com/jwalitptl/crm-api/pkg/metrics"
)

const defaultHistoryLimit = 20

type Service struct {
	repo         repository.ConversationRepository
	orgs         repository.OrganizationRepository
	completer    Completer
	historyLimit int
	logger       *logger.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
}

func NewService(
	repo repository.ConversationRepository,
	orgs repository.OrganizationRepository,
	completer Completer,
	historyLimit int,
	logger *logger.Logger,
	m *metrics.Metrics,
) *Service {
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	return &Service{
		repo:         repo,
		orgs:         orgs,
		completer:    completer,
		historyLimit: historyLimit,
		logger:       logger,
		metrics:      m,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) systemPrompt(ctx context.Context, user *model.User) string {
	orgName := "their organization"
	if org, err := s.orgs.Get(ctx, user.OrganizationID); err == nil {
		orgName = org.Name
	}
	return fmt.Sprintf(
		"You are the assistant of a CRM for small and medium businesses. "+
			"You are talking with %s, who works for %s. "+
			"Help them understand their business data, answer questions about the system "+
			"and suggest improvements. The system includes customer management, interactions, "+
			"sales pipelines, a dashboard and this assistant. "+
			"Be concise and friendly. When you are not sure about something, say so.",
		user.FullName(), orgName,
	)
}

// Query sends text to the provider and stores the exchange. The provider is
// called before anything is written, so a failed call leaves no trace.
func (s *Service) Query(ctx context.Context, user *model.User, text string, conversationID *uuid.UUID) (*model.AssistantResponse, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.BadRequest("query must not be empty", nil)
	}

	now := s.now()
	var conv *model.Conversation
	var history []*model.Message
	isNew := conversationID == nil

	if isNew {
		conv = &model.Conversation{
			Base:           model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
			UserID:         user.ID,
			OrganizationID: user.OrganizationID,
			Title:          model.ConversationTitle(text),
		}
	} else {
		var err error
		conv, err = s.repo.Get(ctx, user.ID, *conversationID)
		if err != nil {
			return nil, repository.ToAppError(err, "conversation")
		}
		if conv.IsArchived {
			return nil, apperrors.NotFound("conversation", repository.ErrNotFound)
		}
		history, err = s.repo.Messages(ctx, conv.ID)
		if err != nil {
			return nil, apperrors.Internal(err)
		}
		if len(history) > s.historyLimit {
			history = history[len(history)-s.historyLimit:]
		}
	}

	prompt := make([]ChatMessage, 0, len(history)+2)
	prompt = append(prompt, ChatMessage{Role: model.MessageRoleSystem, Content: s.systemPrompt(ctx, user)})
	for _, m := range history {
		prompt = append(prompt, ChatMessage{Role: m.Role, Content: m.Content})
	}
	prompt = append(prompt, ChatMessage{Role: model.MessageRoleUser, Content: text})

	completion, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		s.metrics.AssistantRequests.WithLabelValues(s.completer.Name(), "error").Inc()
		s.logger.Error(err, "Assistant provider failed", "provider", s.completer.Name(), "user_id", user.ID.String())
		return nil, apperrors.NewUnavailable("the assistant is not available right now", err)
	}
	s.metrics.AssistantRequests.WithLabelValues(s.completer.Name(), "ok").Inc()

	stored := s.now()
	userMsg := &model.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		Role:           model.MessageRoleUser,
		Content:        text,
		CreatedAt:      stored,
	}
	reply := &model.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		Role:           model.MessageRoleAssistant,
		Content:        completion.Content,
		MetaInfo:       model.JSONMap{"model": completion.Model, "provider": s.completer.Name()},
		// the reply must sort after the query
		CreatedAt: stored.Add(time.Microsecond),
	}
	if completion.Tokens > 0 {
		tokens := completion.Tokens
		reply.Tokens = &tokens
	}
	conv.UpdatedAt = reply.CreatedAt

	if err := s.repo.AppendExchange(ctx, conv, isNew, userMsg, reply); err != nil {
		return nil, repository.ToAppError(err, "conversation")
	}

	return &model.AssistantResponse{
		ConversationID: conv.ID,
		Response:       completion.Content,
		Message:        reply,
	}, nil
}

// Help asks the assistant to explain a feature in a new conversation.
func (s *Service) Help(ctx context.Context, user *model.User, topic string) (*model.AssistantResponse, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, apperrors.BadRequest("topic must not be empty", nil)
	}
	return s.Query(ctx, user, fmt.Sprintf("Please explain how the %s feature works", topic), nil)
}

func (s *Service) ListConversations(ctx context.Context, user *model.User, page model.Pagination) ([]*model.Conversation, error) {
	page.Normalize()
	convs, err := s.repo.List(ctx, user.ID, page)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return convs, nil
}

func (s *Service) Messages(ctx context.Context, user *model.User, id uuid.UUID) ([]*model.Message, error) {
	if _, err := s.repo.Get(ctx, user.ID, id); err != nil {
		return nil, repository.ToAppError(err, "conversation")
	}
	msgs, err := s.repo.Messages(ctx, id)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return msgs, nil
}

func (s *Service) Archive(ctx context.Context, user *model.User, id uuid.UUID) error {
	if err := s.repo.Archive(ctx, user.ID, id); err != nil {
		return repository.ToAppError(err, "conversation")
	}
	return nil
}
