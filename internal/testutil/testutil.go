package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
	"github.com/jwalitptl/crm-api/internal/service/event"
	"github.com/jwalitptl/crm-api/internal/service/notification"
	"github.com/jwalitptl/crm-api/pkg/security"
)

// Password is the plain-text password of every seeded user
const Password = "correct-horse"

var hasher = security.NewBcryptHasher(4)

// Hasher returns a cheap bcrypt hasher for tests
func Hasher() security.PasswordHasher {
	return hasher
}

// CreateTestOrg registers an organization together with its admin
func CreateTestOrg(t *testing.T, repos repository.Repositories, name string) (*model.Organization, *model.User) {
	t.Helper()

	org := model.NewOrganization(name)
	admin := newUser(t, org.ID, "admin-"+uuid.NewString()[:8]+"@example.test", model.RoleAdmin)
	require.NoError(t, repos.Users.CreateWithOrganization(context.Background(), org, admin))
	return org, admin
}

// CreateTestUser adds a member to an existing organization through an accepted invitation
func CreateTestUser(t *testing.T, repos repository.Repositories, admin *model.User, email, role string) *model.User {
	t.Helper()

	user := newUser(t, admin.OrganizationID, email, role)
	inv := &model.Invitation{
		ID:              uuid.New(),
		OrganizationID:  admin.OrganizationID,
		InvitedByUserID: admin.ID,
		Email:           user.Email,
		Token:           "seed-" + user.ID.String(),
		Role:            role,
		ExpiresAt:       time.Now().Add(time.Hour),
		CreatedAt:       time.Now(),
	}
	require.NoError(t, repos.Invitations.Create(context.Background(), inv))
	_, created, err := repos.Invitations.Accept(context.Background(), inv.Token, time.Now(), func(*model.Invitation) (*model.User, error) {
		return user, nil
	})
	require.NoError(t, err)
	return created
}

func newUser(t *testing.T, orgID uuid.UUID, email, role string) *model.User {
	t.Helper()
	hash, err := hasher.Hash(Password)
	require.NoError(t, err)
	now := time.Now().UTC()
	return &model.User{
		Base:           model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		OrganizationID: orgID,
		Email:          model.NormalizeEmail(email),
		PasswordHash:   hash,
		FirstName:      "Test",
		LastName:       role,
		Role:           role,
		IsActive:       true,
	}
}

// Sent is one notification captured by Notifier
type Sent struct {
	Kind  string
	To    string
	Token string
}

// Notifier records notifications instead of sending them
type Notifier struct {
	mu   sync.Mutex
	Sent []Sent
}

var _ notification.Service = (*Notifier)(nil)

func (n *Notifier) add(s Sent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Sent = append(n.Sent, s)
}

func (n *Notifier) SendInvitation(ctx context.Context, to, inviterName, organizationName, token string) {
	n.add(Sent{Kind: "invitation", To: to, Token: token})
}

func (n *Notifier) SendPasswordReset(ctx context.Context, to, name, token string) {
	n.add(Sent{Kind: "password_reset", To: to, Token: token})
}

func (n *Notifier) SendWelcome(ctx context.Context, to, name string) {
	n.add(Sent{Kind: "welcome", To: to})
}

func (n *Notifier) Wait() {}

// Last returns the most recent notification of kind
func (n *Notifier) Last(kind string) (Sent, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.Sent) - 1; i >= 0; i-- {
		if n.Sent[i].Kind == kind {
			return n.Sent[i], true
		}
	}
	return Sent{}, false
}

// Events records emitted domain events in order
type Events struct {
	mu    sync.Mutex
	Types []string
}

var _ event.Emitter = (*Events)(nil)

func (e *Events) Emit(ctx context.Context, eventType string, payload interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Types = append(e.Types, eventType)
	return nil
}

// Count returns how many events of eventType were emitted
func (e *Events) Count(eventType string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, t := range e.Types {
		if t == eventType {
			n++
		}
	}
	return n
}

// CreateTestCustomer inserts an active customer into orgID
func CreateTestCustomer(t *testing.T, repos repository.Repositories, orgID uuid.UUID, firstName string) *model.Customer {
	t.Helper()
	now := time.Now().UTC()
	c := &model.Customer{
		Base:           model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		OrganizationID: orgID,
		FirstName:      firstName,
		LastName:       "Customer",
		Status:         model.CustomerStatusActive,
	}
	require.NoError(t, repos.Customers.Create(context.Background(), c))
	return c
}
