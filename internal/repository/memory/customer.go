package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
)

type customerRepository struct{ s *Store }

func (r *customerRepository) Create(ctx context.Context, customer *model.Customer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *customer
	r.s.customers[customer.ID] = &c
	return nil
}

func (r *customerRepository) Get(ctx context.Context, orgID, id uuid.UUID) (*model.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.customerInOrg(orgID, id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Store) customerInOrg(orgID, id uuid.UUID) (*model.Customer, bool) {
	c, ok := s.customers[id]
	if !ok || c.OrganizationID != orgID {
		return nil, false
	}
	return c, true
}

func (r *customerRepository) List(ctx context.Context, f model.CustomerFilter) ([]*model.Customer, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Customer
	for _, c := range r.s.customers {
		if c.OrganizationID != f.OrganizationID {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.Segment != "" && deref(c.Segment) != f.Segment {
			continue
		}
		if f.Search != "" && !containsFold(c.FirstName, f.Search) && !containsFold(c.LastName, f.Search) && !containsFold(deref(c.Email), f.Search) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sortByCreatedDesc(out, func(c *model.Customer) time.Time { return c.CreatedAt })
	return paginate(out, f.Pagination), len(out), nil
}

func (r *customerRepository) Update(ctx context.Context, customer *model.Customer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.customerInOrg(customer.OrganizationID, customer.ID); !ok {
		return repository.ErrNotFound
	}
	c := *customer
	r.s.customers[customer.ID] = &c
	return nil
}

func (r *customerRepository) RecordPurchase(ctx context.Context, orgID, customerID uuid.UUID, purchase *model.Purchase, fn func(*model.Customer) error) (*model.Customer, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.customerInOrg(orgID, customerID)
	if !ok {
		return nil, false, repository.ErrNotFound
	}

	if purchase.RequestID != nil {
		for _, p := range r.s.purchases {
			if p.CustomerID == customerID && p.RequestID != nil && *p.RequestID == *purchase.RequestID {
				cp := *stored
				return &cp, false, nil
			}
		}
	}

	working := *stored
	if err := fn(&working); err != nil {
		return nil, false, err
	}
	p := *purchase
	r.s.purchases = append(r.s.purchases, &p)
	r.s.customers[customerID] = &working

	cp := working
	return &cp, true, nil
}

type interactionRepository struct{ s *Store }

func (r *interactionRepository) Create(ctx context.Context, orgID uuid.UUID, interaction *model.Interaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	customer, ok := r.s.customerInOrg(orgID, interaction.CustomerID)
	if !ok {
		return repository.ErrNotFound
	}
	c := *interaction
	r.s.interactions[interaction.ID] = &c
	at := interaction.DateTime
	customer.LastInteraction = &at
	customer.UpdatedAt = r.s.now()
	return nil
}

func (s *Store) interactionInOrg(orgID, id uuid.UUID) (*model.Interaction, bool) {
	i, ok := s.interactions[id]
	if !ok {
		return nil, false
	}
	if _, ok := s.customerInOrg(orgID, i.CustomerID); !ok {
		return nil, false
	}
	return i, true
}

func (r *interactionRepository) Get(ctx context.Context, orgID, id uuid.UUID) (*model.Interaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i, ok := r.s.interactionInOrg(orgID, id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *i
	return &c, nil
}

func (r *interactionRepository) List(ctx context.Context, f model.InteractionFilter) ([]*model.Interaction, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Interaction
	for id, i := range r.s.interactions {
		if _, ok := r.s.interactionInOrg(f.OrganizationID, id); !ok {
			continue
		}
		if f.CustomerID != nil && i.CustomerID != *f.CustomerID {
			continue
		}
		if f.Type != "" && i.Type != f.Type {
			continue
		}
		if f.RequiresFollowup != nil && i.RequiresFollowup != *f.RequiresFollowup {
			continue
		}
		if f.From != nil && i.DateTime.Before(*f.From) {
			continue
		}
		if f.To != nil && i.DateTime.After(*f.To) {
			continue
		}
		c := *i
		out = append(out, &c)
	}
	sortByCreatedDesc(out, func(i *model.Interaction) time.Time { return i.DateTime })
	return paginate(out, f.Pagination), len(out), nil
}

func (r *interactionRepository) Update(ctx context.Context, interaction *model.Interaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.interactions[interaction.ID]; !ok {
		return repository.ErrNotFound
	}
	c := *interaction
	r.s.interactions[interaction.ID] = &c
	return nil
}

func (r *interactionRepository) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.interactionInOrg(orgID, id); !ok {
		return repository.ErrNotFound
	}
	delete(r.s.interactions, id)
	return nil
}

func (r *interactionRepository) PendingFollowups(ctx context.Context, orgID uuid.UUID, from, to time.Time) ([]*model.Interaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Interaction
	for id, i := range r.s.interactions {
		if _, ok := r.s.interactionInOrg(orgID, id); !ok {
			continue
		}
		if !i.RequiresFollowup || i.FollowupCompleted || i.FollowupDate == nil {
			continue
		}
		if i.FollowupDate.Before(from) || i.FollowupDate.After(to) {
			continue
		}
		c := *i
		out = append(out, &c)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].FollowupDate.Before(*out[b].FollowupDate) })
	return out, nil
}
