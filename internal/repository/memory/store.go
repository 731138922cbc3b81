// Package memory implements the repository interfaces on mutex-guarded maps.
// It backs the memory database driver and service tests.
package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
)

type Store struct {
	mu sync.Mutex

	orgs          map[uuid.UUID]*model.Organization
	users         map[uuid.UUID]*model.User
	sessions      map[uuid.UUID]*model.ActiveSession
	resets        map[uuid.UUID]*model.PasswordReset
	customers     map[uuid.UUID]*model.Customer
	purchases     []*model.Purchase
	interactions  map[uuid.UUID]*model.Interaction
	pipelines     map[uuid.UUID]*model.Pipeline
	stages        map[uuid.UUID]*model.PipelineStage
	opportunities map[uuid.UUID]*model.Opportunity
	history       []*model.StageHistory
	invitations   map[uuid.UUID]*model.Invitation
	conversations map[uuid.UUID]*model.Conversation
	messages      []*model.Message
	outbox        []*model.OutboxEvent

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		orgs:          make(map[uuid.UUID]*model.Organization),
		users:         make(map[uuid.UUID]*model.User),
		sessions:      make(map[uuid.UUID]*model.ActiveSession),
		resets:        make(map[uuid.UUID]*model.PasswordReset),
		customers:     make(map[uuid.UUID]*model.Customer),
		interactions:  make(map[uuid.UUID]*model.Interaction),
		pipelines:     make(map[uuid.UUID]*model.Pipeline),
		stages:        make(map[uuid.UUID]*model.PipelineStage),
		opportunities: make(map[uuid.UUID]*model.Opportunity),
		invitations:   make(map[uuid.UUID]*model.Invitation),
		conversations: make(map[uuid.UUID]*model.Conversation),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Repositories bundles every repository backed by the store
func (s *Store) Repositories() repository.Repositories {
	return repository.Repositories{
		Organizations:  &organizationRepository{s},
		Users:          &userRepository{s},
		Sessions:       &sessionRepository{s},
		PasswordResets: &passwordResetRepository{s},
		Customers:      &customerRepository{s},
		Interactions:   &interactionRepository{s},
		Pipelines:      &pipelineRepository{s},
		Opportunities:  &opportunityRepository{s},
		Invitations:    &invitationRepository{s},
		Conversations:  &conversationRepository{s},
		Outbox:         &outboxRepository{s},
		Dashboard:      &dashboardRepository{s},
	}
}

func paginate[T any](items []T, p model.Pagination) []T {
	start := p.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + p.Limit()
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func sortByCreatedDesc[T any](items []T, created func(T) time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		return created(items[i]).After(created(items[j]))
	})
}
