package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/model"
)

type dashboardRepository struct{ s *Store }

func (r *dashboardRepository) Overview(ctx context.Context, orgID uuid.UUID, since time.Time) (*model.DashboardOverview, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := &model.DashboardOverview{Since: since}
	segments := map[string]int{}
	for _, c := range r.s.customers {
		if c.OrganizationID != orgID || c.Status != model.CustomerStatusActive {
			continue
		}
		out.ActiveCustomers++
		seg := deref(c.Segment)
		if seg == "" {
			seg = "unassigned"
		}
		segments[seg]++
	}
	for seg, n := range segments {
		out.CustomersBySegment = append(out.CustomersBySegment, model.SegmentCount{Segment: seg, Count: n})
	}
	sort.Slice(out.CustomersBySegment, func(i, j int) bool {
		return out.CustomersBySegment[i].Segment < out.CustomersBySegment[j].Segment
	})

	byStage := map[uuid.UUID]*model.StageCount{}
	for _, o := range r.s.opportunities {
		if o.OrganizationID != orgID {
			continue
		}
		switch o.Status {
		case model.OpportunityStatusOpen:
			out.OpenOpportunities++
			out.PipelineValue += o.Value
			sc, ok := byStage[o.StageID]
			if !ok {
				sc = &model.StageCount{StageID: o.StageID}
				if st, found := r.s.stages[o.StageID]; found {
					sc.StageName = st.Name
				}
				byStage[o.StageID] = sc
			}
			sc.Count++
			sc.Value += o.Value
		case model.OpportunityStatusWon:
			if !o.UpdatedAt.Before(since) {
				out.WonOpportunities++
			}
		}
	}
	for _, sc := range byStage {
		out.OpportunitiesByStage = append(out.OpportunitiesByStage, *sc)
	}
	sort.Slice(out.OpportunitiesByStage, func(i, j int) bool {
		return out.OpportunitiesByStage[i].StageName < out.OpportunitiesByStage[j].StageName
	})

	for id, i := range r.s.interactions {
		if _, ok := r.s.interactionInOrg(orgID, id); ok && !i.DateTime.Before(since) {
			out.InteractionsInPeriod++
		}
	}
	return out, nil
}
