package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/model"
)

// All repository interfaces in one file
type (
	OrganizationRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Organization, error)
		Update(ctx context.Context, org *model.Organization) error
	}

	UserRepository interface {
		// CreateWithOrganization inserts a new organization and its first user atomically.
		CreateWithOrganization(ctx context.Context, org *model.Organization, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		ListByOrganization(ctx context.Context, orgID uuid.UUID, page model.Pagination) ([]*model.User, int, error)
		Update(ctx context.Context, user *model.User) error
		SetActive(ctx context.Context, orgID, id uuid.UUID, active bool) error
	}

	SessionRepository interface {
		Create(ctx context.Context, session *model.ActiveSession) error
		GetActiveByToken(ctx context.Context, token string, now time.Time) (*model.ActiveSession, error)
		Touch(ctx context.Context, id uuid.UUID, at time.Time) error
		ListActive(ctx context.Context, userID uuid.UUID, now time.Time) ([]*model.ActiveSession, error)
		Revoke(ctx context.Context, id, userID uuid.UUID) error
		RevokeAll(ctx context.Context, userID uuid.UUID, exceptToken string) (int64, error)
		RevokeByToken(ctx context.Context, token string) error
		DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
	}

	PasswordResetRepository interface {
		Create(ctx context.Context, reset *model.PasswordReset) error
		GetByToken(ctx context.Context, token string) (*model.PasswordReset, error)
		// Consume marks a valid token used and stores the new password hash in one transaction.
		Consume(ctx context.Context, token string, now time.Time, passwordHash string) (uuid.UUID, error)
		DeleteStale(ctx context.Context, now time.Time) (int64, error)
	}

	CustomerRepository interface {
		Create(ctx context.Context, customer *model.Customer) error
		Get(ctx context.Context, orgID, id uuid.UUID) (*model.Customer, error)
		List(ctx context.Context, filter model.CustomerFilter) ([]*model.Customer, int, error)
		Update(ctx context.Context, customer *model.Customer) error
		// RecordPurchase locks the customer row, applies fn and inserts the purchase.
		// It reports false without calling fn when the purchase request id was already recorded.
		RecordPurchase(ctx context.Context, orgID, customerID uuid.UUID, purchase *model.Purchase, fn func(*model.Customer) error) (*model.Customer, bool, error)
	}

	InteractionRepository interface {
		// Create inserts the interaction and updates the customer's last interaction.
		Create(ctx context.Context, orgID uuid.UUID, interaction *model.Interaction) error
		Get(ctx context.Context, orgID, id uuid.UUID) (*model.Interaction, error)
		List(ctx context.Context, filter model.InteractionFilter) ([]*model.Interaction, int, error)
		Update(ctx context.Context, interaction *model.Interaction) error
		Delete(ctx context.Context, orgID, id uuid.UUID) error
		PendingFollowups(ctx context.Context, orgID uuid.UUID, from, to time.Time) ([]*model.Interaction, error)
	}

	PipelineRepository interface {
		// Create inserts the pipeline with its stages, clearing the previous default when needed.
		Create(ctx context.Context, pipeline *model.Pipeline) error
		Get(ctx context.Context, orgID, id uuid.UUID) (*model.Pipeline, error)
		List(ctx context.Context, orgID uuid.UUID, includeInactive bool) ([]*model.Pipeline, error)
		Update(ctx context.Context, pipeline *model.Pipeline) error
		SetDefault(ctx context.Context, orgID, id uuid.UUID) error
		GetStage(ctx context.Context, pipelineID, stageID uuid.UUID) (*model.PipelineStage, error)
		CreateStage(ctx context.Context, stage *model.PipelineStage) error
		UpdateStage(ctx context.Context, stage *model.PipelineStage) error
		DeleteStage(ctx context.Context, pipelineID, stageID uuid.UUID) error
		ReorderStages(ctx context.Context, pipelineID uuid.UUID, stageIDs []uuid.UUID) error
	}

	OpportunityRepository interface {
		// Create inserts the opportunity and its initial placement row.
		Create(ctx context.Context, opportunity *model.Opportunity, initial *model.StageHistory) error
		Get(ctx context.Context, orgID, id uuid.UUID) (*model.Opportunity, error)
		List(ctx context.Context, filter model.OpportunityFilter) ([]*model.Opportunity, int, error)
		Update(ctx context.Context, opportunity *model.Opportunity) error
		Delete(ctx context.Context, orgID, id uuid.UUID) error
		// ChangeStage locks the opportunity and hands it to fn. A nil history entry
		// from fn means nothing changed; otherwise the new stage is written with a
		// compare-and-swap on the stage that was read and the entry is appended.
		ChangeStage(ctx context.Context, orgID, id uuid.UUID, fn func(*model.Opportunity) (*model.StageHistory, error)) (*model.Opportunity, *model.StageHistory, error)
		History(ctx context.Context, opportunityID uuid.UUID) ([]*model.StageHistory, error)
	}

	InvitationRepository interface {
		Create(ctx context.Context, invitation *model.Invitation) error
		GetPendingByEmail(ctx context.Context, orgID uuid.UUID, email string, now time.Time) (*model.Invitation, error)
		GetByToken(ctx context.Context, token string) (*model.Invitation, error)
		ListPending(ctx context.Context, orgID uuid.UUID, now time.Time) ([]*model.Invitation, error)
		Cancel(ctx context.Context, orgID, id uuid.UUID, now time.Time) error
		// Accept consumes a pending invitation and inserts the user built by fn.
		Accept(ctx context.Context, token string, now time.Time, fn func(*model.Invitation) (*model.User, error)) (*model.Invitation, *model.User, error)
	}

	ConversationRepository interface {
		Get(ctx context.Context, userID, id uuid.UUID) (*model.Conversation, error)
		List(ctx context.Context, userID uuid.UUID, page model.Pagination) ([]*model.Conversation, error)
		Messages(ctx context.Context, conversationID uuid.UUID) ([]*model.Message, error)
		// AppendExchange stores messages and bumps the conversation, creating it when isNew.
		AppendExchange(ctx context.Context, conversation *model.Conversation, isNew bool, messages ...*model.Message) error
		Archive(ctx context.Context, userID, id uuid.UUID) error
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// ProcessPending locks up to limit pending events and records the outcome of fn for each.
		ProcessPending(ctx context.Context, limit, maxRetries int, fn func(context.Context, *model.OutboxEvent) error) (int, error)
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	DashboardRepository interface {
		Overview(ctx context.Context, orgID uuid.UUID, since time.Time) (*model.DashboardOverview, error)
	}
)

// Repositories bundles one implementation of every repository
type Repositories struct {
	Organizations  OrganizationRepository
	Users          UserRepository
	Sessions       SessionRepository
	PasswordResets PasswordResetRepository
	Customers      CustomerRepository
	Interactions   InteractionRepository
	Pipelines      PipelineRepository
	Opportunities  OpportunityRepository
	Invitations    InvitationRepository
	Conversations  ConversationRepository
	Outbox         OutboxRepository
	Dashboard      DashboardRepository
}
