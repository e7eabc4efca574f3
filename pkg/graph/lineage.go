package graph

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Runner executes cypher against the graph
type Runner interface {
	Write(ctx context.Context, cypher string, params map[string]any) error
	ReadStrings(ctx context.Context, cypher string, params map[string]any, column string) ([]string, error)
}

const recordMergeCypher = `
MERGE (p:Lead {id: $primary_id, tenant_id: $tenant_id})
SET p.merged = false
WITH p
UNWIND $merged_ids AS merged_id
MERGE (d:Lead {id: merged_id, tenant_id: $tenant_id})
SET d.merged = true
MERGE (d)-[r:MERGED_INTO {audit_id: $audit_id}]->(p)
SET r.merged_at = $merged_at
`

const mergedIntoCypher = `
MATCH (d:Lead {tenant_id: $tenant_id})-[:MERGED_INTO*1..]->(p:Lead {id: $primary_id, tenant_id: $tenant_id})
RETURN DISTINCT d.id AS id
ORDER BY id
`

// LineageService projects merges as (:Lead)-[:MERGED_INTO]->(:Lead) edges
type LineageService struct {
	runner Runner
	logger ectologger.Logger
	now    func() time.Time
}

// NewLineageService creates a new lineage service
func NewLineageService(runner Runner, logger ectologger.Logger) *LineageService {
	return &LineageService{
		runner: runner,
		logger: logger,
		now:    time.Now,
	}
}

// RecordMerge links each merged lead to the surviving primary
func (s *LineageService) RecordMerge(ctx context.Context, tenantID, primaryID string, mergedIDs []string, auditID string) error {
	ctx, span := tracing.StartSpan(ctx, "graph.LineageService.RecordMerge")
	defer span.End()

	if len(mergedIDs) == 0 {
		return nil
	}

	err := s.runner.Write(ctx, recordMergeCypher, map[string]any{
		"tenant_id":  tenantID,
		"primary_id": primaryID,
		"merged_ids": mergedIDs,
		"audit_id":   auditID,
		"merged_at":  s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id":       tenantID,
			"primary_lead_id": primaryID,
		}).Error("Failed to record merge lineage")
		return err
	}
	return nil
}

// MergedInto returns every lead folded into primaryID, directly or through earlier merges
func (s *LineageService) MergedInto(ctx context.Context, tenantID, primaryID string) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.LineageService.MergedInto")
	defer span.End()

	return s.runner.ReadStrings(ctx, mergedIntoCypher, map[string]any{
		"tenant_id":  tenantID,
		"primary_id": primaryID,
	}, "id")
}
