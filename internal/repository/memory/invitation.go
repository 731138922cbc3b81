package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
)

type invitationRepository struct{ s *Store }

func (r *invitationRepository) Create(ctx context.Context, invitation *model.Invitation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, inv := range r.s.invitations {
		if inv.Token == invitation.Token {
			return repository.ErrDuplicate
		}
	}
	c := *invitation
	r.s.invitations[invitation.ID] = &c
	return nil
}

func (r *invitationRepository) GetPendingByEmail(ctx context.Context, orgID uuid.UUID, email string, now time.Time) (*model.Invitation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, inv := range r.s.invitations {
		if inv.OrganizationID == orgID && inv.Email == email && inv.Pending(now) {
			c := *inv
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *invitationRepository) GetByToken(ctx context.Context, token string) (*model.Invitation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, inv := range r.s.invitations {
		if inv.Token == token {
			c := *inv
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *invitationRepository) ListPending(ctx context.Context, orgID uuid.UUID, now time.Time) ([]*model.Invitation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Invitation
	for _, inv := range r.s.invitations {
		if inv.OrganizationID == orgID && inv.Pending(now) {
			c := *inv
			out = append(out, &c)
		}
	}
	sortByCreatedDesc(out, func(i *model.Invitation) time.Time { return i.CreatedAt })
	return out, nil
}

func (r *invitationRepository) Cancel(ctx context.Context, orgID, id uuid.UUID, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invitations[id]
	if !ok || inv.OrganizationID != orgID || inv.IsAccepted {
		return repository.ErrNotFound
	}
	inv.ExpiresAt = now
	return nil
}

func (r *invitationRepository) Accept(ctx context.Context, token string, now time.Time, fn func(*model.Invitation) (*model.User, error)) (*model.Invitation, *model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var inv *model.Invitation
	for _, candidate := range r.s.invitations {
		if candidate.Token == token && candidate.Pending(now) {
			inv = candidate
			break
		}
	}
	if inv == nil {
		return nil, nil, repository.ErrNotFound
	}

	accepted := *inv
	accepted.IsAccepted = true
	user, err := fn(&accepted)
	if err != nil {
		return nil, nil, err
	}
	users := &userRepository{r.s}
	if err := users.insert(user); err != nil {
		return nil, nil, err
	}
	inv.IsAccepted = true

	u := *user
	return &accepted, &u, nil
}

type conversationRepository struct{ s *Store }

func (r *conversationRepository) Get(ctx context.Context, userID, id uuid.UUID) (*model.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	conv, ok := r.s.conversations[id]
	if !ok || conv.UserID != userID {
		return nil, repository.ErrNotFound
	}
	c := *conv
	return &c, nil
}

func (r *conversationRepository) List(ctx context.Context, userID uuid.UUID, page model.Pagination) ([]*model.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Conversation
	for _, conv := range r.s.conversations {
		if conv.UserID == userID && !conv.IsArchived {
			c := *conv
			out = append(out, &c)
		}
	}
	sortByCreatedDesc(out, func(c *model.Conversation) time.Time { return c.UpdatedAt })
	return paginate(out, page), nil
}

func (r *conversationRepository) Messages(ctx context.Context, conversationID uuid.UUID) ([]*model.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Message
	for _, m := range r.s.messages {
		if m.ConversationID == conversationID {
			c := *m
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *conversationRepository) AppendExchange(ctx context.Context, conversation *model.Conversation, isNew bool, messages ...*model.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if !isNew {
		if _, ok := r.s.conversations[conversation.ID]; !ok {
			return repository.ErrNotFound
		}
	}
	c := *conversation
	r.s.conversations[conversation.ID] = &c
	for _, m := range messages {
		cp := *m
		r.s.messages = append(r.s.messages, &cp)
	}
	return nil
}

func (r *conversationRepository) Archive(ctx context.Context, userID, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	conv, ok := r.s.conversations[id]
	if !ok || conv.UserID != userID {
		return repository.ErrNotFound
	}
	conv.IsArchived = true
	conv.UpdatedAt = r.s.now()
	return nil
}
