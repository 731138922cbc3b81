package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
)

const (
	conversationColumns = `id, user_id, organization_id, title, is_archived, created_at, updated_at`
	messageColumns      = `id, conversation_id, role, content, tokens, meta_info, created_at`
)

type conversationRepository struct {
	BaseRepository
}

func NewConversationRepository(base BaseRepository) repository.ConversationRepository {
	return &conversationRepository{base}
}

func (r *conversationRepository) Get(ctx context.Context, userID, id uuid.UUID) (*model.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1 AND user_id = $2`

	var conv model.Conversation
	if err := r.db.GetContext(ctx, &conv, query, id, userID); err != nil {
		return nil, wrap("get conversation", err)
	}
	return &conv, nil
}

func (r *conversationRepository) List(ctx context.Context, userID uuid.UUID, page model.Pagination) ([]*model.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE user_id = $1 AND is_archived = FALSE
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3
	`
	var out []*model.Conversation
	if err := r.db.SelectContext(ctx, &out, query, userID, page.Limit(), page.Offset()); err != nil {
		return nil, wrap("list conversations", err)
	}
	return out, nil
}

func (r *conversationRepository) Messages(ctx context.Context, conversationID uuid.UUID) ([]*model.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC, id ASC`

	var out []*model.Message
	if err := r.db.SelectContext(ctx, &out, query, conversationID); err != nil {
		return nil, wrap("list messages", err)
	}
	return out, nil
}

func (r *conversationRepository) AppendExchange(ctx context.Context, conv *model.Conversation, isNew bool, messages ...*model.Message) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if isNew {
			query := `
				INSERT INTO conversations (id, user_id, organization_id, title, is_archived, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`
			if _, err := tx.ExecContext(ctx, query,
				conv.ID, conv.UserID, conv.OrganizationID, conv.Title, conv.IsArchived, conv.CreatedAt, conv.UpdatedAt,
			); err != nil {
				return wrap("create conversation", err)
			}
		} else {
			res, err := tx.ExecContext(ctx,
				`UPDATE conversations SET updated_at = $1 WHERE id = $2 AND user_id = $3`,
				conv.UpdatedAt, conv.ID, conv.UserID)
			if err != nil {
				return wrap("touch conversation", err)
			}
			if err := requireAffected(res, "touch conversation"); err != nil {
				return err
			}
		}

		for _, m := range messages {
			query := `
				INSERT INTO messages (id, conversation_id, role, content, tokens, meta_info, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`
			if _, err := tx.ExecContext(ctx, query,
				m.ID, m.ConversationID, m.Role, m.Content, m.Tokens, m.MetaInfo, m.CreatedAt,
			); err != nil {
				return wrap("create message", err)
			}
		}
		return nil
	})
}

func (r *conversationRepository) Archive(ctx context.Context, userID, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE conversations SET is_archived = TRUE, updated_at = NOW() WHERE id = $1 AND user_id = $2`,
		id, userID)
	if err != nil {
		return wrap("archive conversation", err)
	}
	return requireAffected(res, "archive conversation")
}
