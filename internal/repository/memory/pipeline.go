package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
)

type pipelineRepository struct{ s *Store }

func (s *Store) clearDefault(orgID uuid.UUID, now time.Time) {
	for _, p := range s.pipelines {
		if p.OrganizationID == orgID && p.IsDefault {
			p.IsDefault = false
			p.UpdatedAt = now
		}
	}
}

func (s *Store) pipelineStages(pipelineID uuid.UUID) []model.PipelineStage {
	var out []model.PipelineStage
	for _, st := range s.stages {
		if st.PipelineID == pipelineID {
			out = append(out, *st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

func (s *Store) withStages(p *model.Pipeline) *model.Pipeline {
	c := *p
	c.Stages = s.pipelineStages(p.ID)
	return &c
}

func (r *pipelineRepository) Create(ctx context.Context, pipeline *model.Pipeline) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if pipeline.IsDefault {
		r.s.clearDefault(pipeline.OrganizationID, pipeline.CreatedAt)
	}
	c := *pipeline
	c.Stages = nil
	r.s.pipelines[pipeline.ID] = &c
	for i := range pipeline.Stages {
		st := pipeline.Stages[i]
		r.s.stages[st.ID] = &st
	}
	return nil
}

func (r *pipelineRepository) Get(ctx context.Context, orgID, id uuid.UUID) (*model.Pipeline, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.pipelines[id]
	if !ok || p.OrganizationID != orgID {
		return nil, repository.ErrNotFound
	}
	return r.s.withStages(p), nil
}

func (r *pipelineRepository) List(ctx context.Context, orgID uuid.UUID, includeInactive bool) ([]*model.Pipeline, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Pipeline
	for _, p := range r.s.pipelines {
		if p.OrganizationID != orgID || (!includeInactive && !p.IsActive) {
			continue
		}
		out = append(out, r.s.withStages(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDefault != out[j].IsDefault {
			return out[i].IsDefault
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *pipelineRepository) Update(ctx context.Context, pipeline *model.Pipeline) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.pipelines[pipeline.ID]
	if !ok || existing.OrganizationID != pipeline.OrganizationID {
		return repository.ErrNotFound
	}
	if pipeline.IsDefault && !existing.IsDefault {
		r.s.clearDefault(pipeline.OrganizationID, pipeline.UpdatedAt)
	}
	c := *pipeline
	c.Stages = nil
	r.s.pipelines[pipeline.ID] = &c
	return nil
}

func (r *pipelineRepository) SetDefault(ctx context.Context, orgID, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.pipelines[id]
	if !ok || p.OrganizationID != orgID {
		return repository.ErrNotFound
	}
	now := r.s.now()
	r.s.clearDefault(orgID, now)
	p.IsDefault = true
	p.UpdatedAt = now
	return nil
}

func (r *pipelineRepository) GetStage(ctx context.Context, pipelineID, stageID uuid.UUID) (*model.PipelineStage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st, ok := r.s.stages[stageID]
	if !ok || st.PipelineID != pipelineID {
		return nil, repository.ErrNotFound
	}
	c := *st
	return &c, nil
}

func (r *pipelineRepository) CreateStage(ctx context.Context, stage *model.PipelineStage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, st := range r.s.stages {
		if st.PipelineID == stage.PipelineID && st.Order == stage.Order {
			return repository.ErrDuplicate
		}
	}
	c := *stage
	r.s.stages[stage.ID] = &c
	return nil
}

func (r *pipelineRepository) UpdateStage(ctx context.Context, stage *model.PipelineStage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.stages[stage.ID]
	if !ok || existing.PipelineID != stage.PipelineID {
		return repository.ErrNotFound
	}
	c := *stage
	r.s.stages[stage.ID] = &c
	return nil
}

func (r *pipelineRepository) DeleteStage(ctx context.Context, pipelineID, stageID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st, ok := r.s.stages[stageID]
	if !ok || st.PipelineID != pipelineID {
		return repository.ErrNotFound
	}
	for _, o := range r.s.opportunities {
		if o.StageID == stageID {
			return repository.ErrInUse
		}
	}
	delete(r.s.stages, stageID)
	return nil
}

func (r *pipelineRepository) ReorderStages(ctx context.Context, pipelineID uuid.UUID, stageIDs []uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, id := range stageIDs {
		if st, ok := r.s.stages[id]; !ok || st.PipelineID != pipelineID {
			return repository.ErrNotFound
		}
	}
	now := r.s.now()
	for i, id := range stageIDs {
		st := r.s.stages[id]
		st.Order = i
		st.UpdatedAt = now
	}
	return nil
}

type opportunityRepository struct{ s *Store }

func (r *opportunityRepository) Create(ctx context.Context, opportunity *model.Opportunity, initial *model.StageHistory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *opportunity
	r.s.opportunities[opportunity.ID] = &c
	h := *initial
	r.s.history = append(r.s.history, &h)
	return nil
}

func (s *Store) opportunityInOrg(orgID, id uuid.UUID) (*model.Opportunity, bool) {
	o, ok := s.opportunities[id]
	if !ok || o.OrganizationID != orgID {
		return nil, false
	}
	return o, true
}

func (r *opportunityRepository) Get(ctx context.Context, orgID, id uuid.UUID) (*model.Opportunity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.opportunityInOrg(orgID, id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *o
	return &c, nil
}

func (r *opportunityRepository) List(ctx context.Context, f model.OpportunityFilter) ([]*model.Opportunity, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Opportunity
	for _, o := range r.s.opportunities {
		switch {
		case o.OrganizationID != f.OrganizationID,
			f.PipelineID != nil && o.PipelineID != *f.PipelineID,
			f.StageID != nil && o.StageID != *f.StageID,
			f.CustomerID != nil && (o.CustomerID == nil || *o.CustomerID != *f.CustomerID),
			f.UserID != nil && o.UserID != *f.UserID,
			f.Status != "" && o.Status != f.Status,
			f.Search != "" && !containsFold(o.Title, f.Search):
			continue
		}
		c := *o
		out = append(out, &c)
	}
	sortByCreatedDesc(out, func(o *model.Opportunity) time.Time { return o.CreatedAt })
	return paginate(out, f.Pagination), len(out), nil
}

func (r *opportunityRepository) Update(ctx context.Context, opportunity *model.Opportunity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.opportunityInOrg(opportunity.OrganizationID, opportunity.ID)
	if !ok {
		return repository.ErrNotFound
	}
	c := *opportunity
	// stage fields only move through ChangeStage
	c.StageID = existing.StageID
	c.Status = existing.Status
	c.LastStageChange = existing.LastStageChange
	r.s.opportunities[opportunity.ID] = &c
	return nil
}

func (r *opportunityRepository) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.opportunityInOrg(orgID, id); !ok {
		return repository.ErrNotFound
	}
	delete(r.s.opportunities, id)
	kept := r.s.history[:0]
	for _, h := range r.s.history {
		if h.OpportunityID != id {
			kept = append(kept, h)
		}
	}
	r.s.history = kept
	return nil
}

func (r *opportunityRepository) ChangeStage(ctx context.Context, orgID, id uuid.UUID, fn func(*model.Opportunity) (*model.StageHistory, error)) (*model.Opportunity, *model.StageHistory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.opportunityInOrg(orgID, id)
	if !ok {
		return nil, nil, repository.ErrNotFound
	}

	// The store mutex is held across fn, so no other transition can interleave
	// and the stage read by fn is still current when the result is written.
	working := *stored
	entry, err := fn(&working)
	if err != nil {
		return nil, nil, err
	}
	if entry == nil {
		c := *stored
		return &c, nil, nil
	}

	r.s.opportunities[id] = &working
	h := *entry
	r.s.history = append(r.s.history, &h)

	c := working
	return &c, entry, nil
}

func (r *opportunityRepository) History(ctx context.Context, opportunityID uuid.UUID) ([]*model.StageHistory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.StageHistory
	for i := len(r.s.history) - 1; i >= 0; i-- {
		if h := r.s.history[i]; h.OpportunityID == opportunityID {
			c := *h
			out = append(out, &c)
		}
	}
	sortByCreatedDesc(out, func(h *model.StageHistory) time.Time { return h.ChangedAt })
	return out, nil
}
