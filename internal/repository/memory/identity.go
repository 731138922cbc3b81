package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
)

type organizationRepository struct{ s *Store }

func (r *organizationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Organization, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	org, ok := r.s.orgs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *org
	return &c, nil
}

func (r *organizationRepository) Update(ctx context.Context, org *model.Organization) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.orgs[org.ID]; !ok {
		return repository.ErrNotFound
	}
	org.UpdatedAt = r.s.now()
	c := *org
	r.s.orgs[org.ID] = &c
	return nil
}

type userRepository struct{ s *Store }

func (r *userRepository) emailTaken(email string) bool {
	for _, u := range r.s.users {
		if u.Email == email {
			return true
		}
	}
	return false
}

func (r *userRepository) insert(user *model.User) error {
	if r.emailTaken(user.Email) {
		return repository.ErrDuplicate
	}
	c := *user
	r.s.users[user.ID] = &c
	return nil
}

func (r *userRepository) CreateWithOrganization(ctx context.Context, org *model.Organization, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.emailTaken(user.Email) {
		return repository.ErrDuplicate
	}
	o := *org
	r.s.orgs[org.ID] = &o
	return r.insert(user)
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepository) ListByOrganization(ctx context.Context, orgID uuid.UUID, page model.Pagination) ([]*model.User, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.User
	for _, u := range r.s.users {
		if u.OrganizationID == orgID {
			c := *u
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return paginate(out, page), len(out), nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[user.ID]; !ok {
		return repository.ErrNotFound
	}
	user.UpdatedAt = r.s.now()
	c := *user
	r.s.users[user.ID] = &c
	return nil
}

func (r *userRepository) SetActive(ctx context.Context, orgID, id uuid.UUID, active bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok || u.OrganizationID != orgID {
		return repository.ErrNotFound
	}
	u.IsActive = active
	u.UpdatedAt = r.s.now()
	return nil
}

type sessionRepository struct{ s *Store }

func (r *sessionRepository) Create(ctx context.Context, session *model.ActiveSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.sessions {
		if existing.Token == session.Token {
			return repository.ErrDuplicate
		}
	}
	c := *session
	r.s.sessions[session.ID] = &c
	return nil
}

func (r *sessionRepository) GetActiveByToken(ctx context.Context, token string, now time.Time) (*model.ActiveSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sess := range r.s.sessions {
		if sess.Token == token && sess.Usable(now) {
			c := *sess
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *sessionRepository) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[id]
	if !ok {
		return repository.ErrNotFound
	}
	sess.LastActivity = at
	return nil
}

func (r *sessionRepository) ListActive(ctx context.Context, userID uuid.UUID, now time.Time) ([]*model.ActiveSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.ActiveSession
	for _, sess := range r.s.sessions {
		if sess.UserID == userID && sess.Usable(now) {
			c := *sess
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivity.After(out[j].LastActivity) })
	return out, nil
}

func (r *sessionRepository) Revoke(ctx context.Context, id, userID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[id]
	if !ok || sess.UserID != userID {
		return repository.ErrNotFound
	}
	sess.IsActive = false
	return nil
}

func (r *sessionRepository) RevokeAll(ctx context.Context, userID uuid.UUID, exceptToken string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, sess := range r.s.sessions {
		if sess.UserID != userID || !sess.IsActive {
			continue
		}
		if exceptToken != "" && sess.Token == exceptToken {
			continue
		}
		sess.IsActive = false
		n++
	}
	return n, nil
}

func (r *sessionRepository) RevokeByToken(ctx context.Context, token string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sess := range r.s.sessions {
		if sess.Token == token {
			sess.IsActive = false
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *sessionRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, sess := range r.s.sessions {
		if sess.IsActive && !sess.ExpiresAt.After(now) {
			sess.IsActive = false
			n++
		}
	}
	return n, nil
}

type passwordResetRepository struct{ s *Store }

func (r *passwordResetRepository) Create(ctx context.Context, reset *model.PasswordReset) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.resets {
		if existing.Token == reset.Token {
			return repository.ErrDuplicate
		}
	}
	c := *reset
	r.s.resets[reset.ID] = &c
	return nil
}

func (r *passwordResetRepository) GetByToken(ctx context.Context, token string) (*model.PasswordReset, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, reset := range r.s.resets {
		if reset.Token == token {
			c := *reset
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *passwordResetRepository) Consume(ctx context.Context, token string, now time.Time, passwordHash string) (uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, reset := range r.s.resets {
		if reset.Token != token || !reset.IsValid(now) {
			continue
		}
		user, ok := r.s.users[reset.UserID]
		if !ok {
			return uuid.Nil, repository.ErrNotFound
		}
		reset.Used = true
		user.PasswordHash = passwordHash
		user.UpdatedAt = now
		return user.ID, nil
	}
	return uuid.Nil, repository.ErrNotFound
}

func (r *passwordResetRepository) DeleteStale(ctx context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, reset := range r.s.resets {
		if !reset.IsValid(now) {
			delete(r.s.resets, id)
			n++
		}
	}
	return n, nil
}
