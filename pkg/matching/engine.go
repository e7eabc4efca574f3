// Package matching detects duplicate leads within a tenant
package matching

import (
	"context"
	"math"
	"sort"

	"github.com/Gobusters/ectologger"

	dedupeerrors "github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// LeadReader is the read side of the lead store used by detection
type LeadReader interface {
	ListByTenant(ctx context.Context, tenantID string) ([]models.Lead, error)
	GetByID(ctx context.Context, tenantID, id string) (*models.Lead, error)
}

// EngineConfig contains configuration for the duplicate detection engine
type EngineConfig struct {
	DefaultThreshold float64        // Threshold used when the caller gives none (default: 0.8)
	Classification   Classification // Group classification bounds (default: 0.95 exact, 0.85 similar)
	Weights          Weights
}

// DefaultConfig returns default engine configuration
func DefaultConfig() EngineConfig {
	return EngineConfig{
		DefaultThreshold: 0.8,
		Classification: Classification{
			ExactScore:   0.95,
			SimilarScore: 0.85,
		},
		Weights: DefaultWeights(),
	}
}

// Engine finds duplicate leads. It is read-only and safe for concurrent use.
type Engine struct {
	logger  ectologger.Logger
	leads   LeadReader
	config  EngineConfig
	scorer  *Scorer
	grouper *Grouper
}

// NewEngine creates a new detection engine
func NewEngine(logger ectologger.Logger, leads LeadReader, config EngineConfig) *Engine {
	return &Engine{
		logger:  logger,
		leads:   leads,
		config:  config,
		scorer:  NewScorer(config.Weights),
		grouper: NewGrouper(config.Classification),
	}
}

// DefaultThreshold returns the threshold used when callers omit one
func (e *Engine) DefaultThreshold() float64 {
	return e.config.DefaultThreshold
}

// ValidateThreshold rejects thresholds outside [0,1]
func ValidateThreshold(threshold float64) error {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return dedupeerrors.InvalidArgument("threshold %v must be within [0,1]", threshold)
	}
	return nil
}

// FindDuplicatesForLead returns the other members of the duplicate group containing leadID,
// ordered by their score against leadID. The list is empty when the lead has no duplicates.
func (e *Engine) FindDuplicatesForLead(ctx context.Context, tenantID, leadID string, threshold float64) ([]models.DuplicateMatch, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Engine.FindDuplicatesForLead", tracing.Tenant(tenantID))
	defer span.End()

	if err := validateScope(tenantID); err != nil {
		return nil, err
	}
	if err := ValidateThreshold(threshold); err != nil {
		return nil, err
	}

	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id": tenantID,
		"lead_id":   leadID,
		"threshold": threshold,
	})

	metrics.DuplicateQueriesTotal.WithLabelValues("lead").Inc()

	if _, err := e.leads.GetByID(ctx, tenantID, leadID); err != nil {
		return nil, err
	}

	leads, err := e.leads.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	a := newArena(leads)
	target, ok := a.index[leadID]
	if !ok {
		// deleted between the two reads
		return nil, dedupeerrors.LeadNotFound(leadID)
	}

	blocker := NewBlocker(a.keys)
	scores := newPairScores(e.scorer, a)

	// walk the threshold graph outward from the target
	visited := map[int]bool{target: true}
	queue := []int{target}
	members := []int{target}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, v := range blocker.Neighbors(u) {
			if visited[v] || scores.get(u, v).Score < threshold {
				continue
			}
			visited[v] = true
			queue = append(queue, v)
			members = append(members, v)
		}
	}

	if len(members) < 2 {
		log.Debug("No duplicates found for lead")
		return []models.DuplicateMatch{}, nil
	}

	sort.Slice(members, func(x, y int) bool { return a.before(members[x], members[y]) })
	group := e.grouper.Group(a, scores, members)

	matches := make([]models.DuplicateMatch, 0, len(members)-1)
	for _, m := range members {
		if m == target {
			continue
		}
		edge := scores.get(target, m)
		matches = append(matches, models.DuplicateMatch{
			Lead:      a.leads[m],
			Score:     edge.Score,
			Signals:   edge.Signals,
			MatchType: group.MatchType,
			IsPrimary: a.leads[m].ID == group.PrimaryLeadID,
		})
	}
	sort.SliceStable(matches, func(x, y int) bool {
		if matches[x].Score != matches[y].Score {
			return matches[x].Score > matches[y].Score
		}
		return matches[x].Lead.ID < matches[y].Lead.ID
	})

	log.WithFields(map[string]any{
		"matches":    len(matches),
		"match_type": group.MatchType,
	}).Debug("Found duplicates for lead")

	return matches, nil
}

// FindAllDuplicates returns every duplicate group of the tenant with summary counts
func (e *Engine) FindAllDuplicates(ctx context.Context, tenantID string, threshold float64) (*models.DuplicateReport, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Engine.FindAllDuplicates", tracing.Tenant(tenantID))
	defer span.End()

	if err := validateScope(tenantID); err != nil {
		return nil, err
	}
	if err := ValidateThreshold(threshold); err != nil {
		return nil, err
	}

	metrics.DuplicateQueriesTotal.WithLabelValues("tenant").Inc()

	leads, err := e.leads.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	a := newArena(leads)
	blocker := NewBlocker(a.keys)
	pairs := blocker.CandidatePairs()
	scores := newPairScores(e.scorer, a)

	components := e.grouper.Components(a, scores, pairs, threshold)
	groups := make([]models.DuplicateGroup, 0, len(components))
	for _, members := range components {
		groups = append(groups, e.grouper.Group(a, scores, members))
	}

	report := &models.DuplicateReport{
		Groups:  groups,
		Summary: Summarize(groups),
	}

	metrics.DuplicateGroupsFound.Observe(float64(len(groups)))
	e.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":        tenantID,
		"threshold":        threshold,
		"leads":            len(leads),
		"buckets":          blocker.BucketCount(),
		"pairs_scored":     len(pairs),
		"groups":           report.Summary.TotalGroups,
		"total_duplicates": report.Summary.TotalDuplicates,
	}).Info("Duplicate scan complete")

	return report, nil
}

func validateScope(tenantID string) error {
	if tenantID == "" {
		return dedupeerrors.InvalidArgument("tenant id is required")
	}
	return nil
}
