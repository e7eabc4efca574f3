package merging

import (
	dedupeerrors "github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/models"
)

// Plan is the full set of changes a merge will apply
type Plan struct {
	TenantID      string
	Strategy      models.MergeStrategy
	Primary       models.Lead
	Duplicates    []models.Lead
	Resolved      models.Lead
	Changes       []models.FieldChange
	Reassignments []models.Reassignment
}

// DuplicateIDs returns the ids of the leads that will be removed, in request order
func (p *Plan) DuplicateIDs() []string {
	ids := make([]string, len(p.Duplicates))
	for i, d := range p.Duplicates {
		ids[i] = d.ID
	}
	return ids
}

// LeadIDs returns the primary id followed by the duplicate ids
func (p *Plan) LeadIDs() []string {
	return append([]string{p.Primary.ID}, p.DuplicateIDs()...)
}

// Planner computes merge plans
type Planner struct {
	registry *Registry
	merger   *FieldMerger
}

// NewPlanner creates a planner that reassigns every kind in registry
func NewPlanner(registry *Registry) *Planner {
	return &Planner{
		registry: registry,
		merger:   NewFieldMerger(),
	}
}

// ValidateRequest checks the shape of a merge request before any lead is loaded
func ValidateRequest(tenantID, primaryID string, duplicateIDs []string) error {
	if tenantID == "" {
		return dedupeerrors.InvalidArgument("tenant id is required")
	}
	if primaryID == "" {
		return dedupeerrors.InvalidArgument("primary lead id is required")
	}
	if len(duplicateIDs) == 0 {
		return dedupeerrors.InvalidArgument("duplicate lead ids must not be empty")
	}
	seen := make(map[string]bool, len(duplicateIDs))
	for _, id := range duplicateIDs {
		switch {
		case id == "":
			return dedupeerrors.InvalidArgument("duplicate lead ids must not contain empty values")
		case id == primaryID:
			return dedupeerrors.InvalidArgument("duplicate lead ids must not include the primary").WithLead(id)
		case seen[id]:
			return dedupeerrors.InvalidArgument("duplicate lead id listed more than once").WithLead(id)
		}
		seen[id] = true
	}
	return nil
}

// Plan resolves the surviving field values and lists the dependent reassignments.
// Duplicates are taken in request order.
func (p *Planner) Plan(primary models.Lead, duplicates []models.Lead, strategy models.MergeStrategy) (*Plan, error) {
	ids := make([]string, len(duplicates))
	for i, d := range duplicates {
		ids[i] = d.ID
	}
	if err := ValidateRequest(primary.TenantID, primary.ID, ids); err != nil {
		return nil, err
	}
	for _, d := range duplicates {
		// leads of another tenant are reported as missing
		if d.TenantID != primary.TenantID {
			return nil, dedupeerrors.LeadNotFound(d.ID)
		}
	}

	candidates := make([]candidate, 0, len(duplicates)+1)
	candidates = append(candidates, candidate{lead: primary, position: 0})
	for i, d := range duplicates {
		candidates = append(candidates, candidate{lead: d, position: i + 1})
	}
	ranked := p.merger.rank(candidates, strategy)

	plan := &Plan{
		TenantID:   primary.TenantID,
		Strategy:   strategy,
		Primary:    primary,
		Duplicates: duplicates,
		Resolved:   primary,
	}

	for _, field := range models.MergeableFields {
		value, source := p.merger.MergeField(field, ranked)
		if value == primary.Get(field) {
			continue
		}
		plan.Resolved.Set(field, value)
		plan.Changes = append(plan.Changes, models.FieldChange{
			Field:        field,
			OldValue:     primary.Get(field),
			NewValue:     value,
			SourceLeadID: source,
		})
	}

	for _, d := range duplicates {
		for _, kind := range p.registry.Kinds() {
			plan.Reassignments = append(plan.Reassignments, models.Reassignment{
				Kind:       kind.Name(),
				FromLeadID: d.ID,
				ToLeadID:   primary.ID,
			})
		}
	}

	return plan, nil
}
