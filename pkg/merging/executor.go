// Package merging plans and executes lead merges
package merging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	dedupeerrors "github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// LeadStore is the transactional lead store used by merges.
// LockForMerge must not wait for locks held by another transaction; it fails with a Conflict.
type LeadStore interface {
	GetByIDs(ctx context.Context, tenantID string, ids []string) ([]models.Lead, error)
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	LockForMerge(ctx context.Context, tenantID string, ids []string) ([]models.Lead, error)
	Update(ctx context.Context, lead *models.Lead) error
	DeleteByIDs(ctx context.Context, tenantID string, ids []string) (int64, error)
}

// AuditStore persists merge audit entries
type AuditStore interface {
	Create(ctx context.Context, audit *models.MergeAudit) error
}

// DuplicateFinder runs tenant-wide duplicate detection
type DuplicateFinder interface {
	FindAllDuplicates(ctx context.Context, tenantID string, threshold float64) (*models.DuplicateReport, error)
}

// IntentLocker takes fail-fast locks across service instances
type IntentLocker interface {
	AcquireAll(ctx context.Context, keys []string, ttl time.Duration) (func(context.Context) error, error)
}

// EventPublisher announces completed merges
type EventPublisher interface {
	EmitLeadsMerged(ctx context.Context, tenantID string, result *models.MergeResult) error
}

// LineageRecorder projects merges into the lineage graph
type LineageRecorder interface {
	RecordMerge(ctx context.Context, tenantID, primaryID string, mergedIDs []string, auditID string) error
}

// ExecutorConfig contains configuration for merges
type ExecutorConfig struct {
	AutoMergeThreshold float64       // Detection threshold for auto-merge (default: 0.8)
	LockTTL            time.Duration // Lifetime of merge intent locks (default: 30s)
	MaxAutoMergePasses int           // Upper bound on auto-merge passes (default: 10)
}

// DefaultExecutorConfig returns default merge configuration
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		AutoMergeThreshold: 0.8,
		LockTTL:            30 * time.Second,
		MaxAutoMergePasses: 10,
	}
}

// Executor applies merges atomically
type Executor struct {
	logger   ectologger.Logger
	leads    LeadStore
	audits   AuditStore
	registry *Registry
	planner  *Planner
	finder   DuplicateFinder
	config   ExecutorConfig
	locker   IntentLocker
	events   EventPublisher
	lineage  LineageRecorder
	now      func() time.Time
}

// Option configures optional executor collaborators
type Option func(*Executor)

// WithIntentLocker serializes merges across instances before the transaction starts
func WithIntentLocker(l IntentLocker) Option {
	return func(e *Executor) { e.locker = l }
}

// WithEvents publishes merge events after commit
func WithEvents(p EventPublisher) Option {
	return func(e *Executor) { e.events = p }
}

// WithLineage records merge lineage after commit
func WithLineage(r LineageRecorder) Option {
	return func(e *Executor) { e.lineage = r }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// NewExecutor creates a new merge executor
func NewExecutor(
	logger ectologger.Logger,
	leads LeadStore,
	audits AuditStore,
	registry *Registry,
	finder DuplicateFinder,
	config ExecutorConfig,
	opts ...Option,
) *Executor {
	e := &Executor{
		logger:   logger,
		leads:    leads,
		audits:   audits,
		registry: registry,
		planner:  NewPlanner(registry),
		finder:   finder,
		config:   config,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MergeLeads merges duplicateIDs into primaryID. Either every change is committed or none is.
func (e *Executor) MergeLeads(
	ctx context.Context,
	tenantID, primaryID string,
	duplicateIDs []string,
	strategy models.MergeStrategy,
	performedBy string,
) (*models.MergeResult, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Executor.MergeLeads", tracing.Tenant(tenantID))
	defer span.End()

	strategy = models.ParseMergeStrategy(string(strategy))
	start := e.now()
	result, err := e.mergeLeads(ctx, tenantID, primaryID, duplicateIDs, strategy, performedBy)
	metrics.MergesTotal.WithLabelValues(string(strategy), outcome(err)).Inc()
	if err != nil {
		return nil, err
	}
	metrics.MergeDuration.Observe(e.now().Sub(start).Seconds())
	metrics.LeadsMergedTotal.Add(float64(result.DeletedCount))

	e.afterCommit(ctx, tenantID, result)
	return result, nil
}

func (e *Executor) mergeLeads(
	ctx context.Context,
	tenantID, primaryID string,
	duplicateIDs []string,
	strategy models.MergeStrategy,
	performedBy string,
) (*models.MergeResult, error) {
	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":       tenantID,
		"primary_lead_id": primaryID,
		"duplicate_count": len(duplicateIDs),
		"strategy":        strategy,
	})

	if err := ValidateRequest(tenantID, primaryID, duplicateIDs); err != nil {
		return nil, err
	}

	ids := append([]string{primaryID}, duplicateIDs...)
	snapshot, err := e.loadSnapshot(ctx, tenantID, ids)
	if err != nil {
		return nil, err
	}

	duplicates := make([]models.Lead, len(duplicateIDs))
	for i, id := range duplicateIDs {
		duplicates[i] = snapshot[id]
	}
	plan, err := e.planner.Plan(snapshot[primaryID], duplicates, strategy)
	if err != nil {
		return nil, err
	}

	if e.locker != nil {
		release, err := e.locker.AcquireAll(ctx, intentKeys(tenantID, ids), e.config.LockTTL)
		if err != nil {
			if errors.Is(err, redis.ErrLockNotAcquired) {
				return nil, dedupeerrors.Conflict("stale duplicate: another merge involving these leads is in progress")
			}
			return nil, dedupeerrors.StorageFailure(err, "failed to acquire merge intent locks")
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				log.WithError(err).Warn("Failed to release merge intent locks")
			}
		}()
	}

	result := &models.MergeResult{
		MergedIDs:  plan.DuplicateIDs(),
		Strategy:   strategy,
		Changes:    plan.Changes,
		Reassigned: make(map[string]int64),
	}

	err = e.leads.WithinTx(ctx, func(txCtx context.Context) error {
		return e.execute(txCtx, plan, snapshot, performedBy, result)
	})
	if err != nil {
		if _, ok := dedupeerrors.As(err); !ok {
			err = dedupeerrors.StorageFailure(err, "merge transaction failed")
		}
		log.WithError(err).Warn("Merge aborted")
		return nil, err
	}

	log.WithFields(map[string]any{
		"deleted":    result.DeletedCount,
		"changes":    len(result.Changes),
		"reassigned": result.Reassigned,
		"audit_id":   result.AuditID,
	}).Info("Merged leads")

	return result, nil
}

// loadSnapshot reads the leads used for planning. Missing ids are reported in request order.
func (e *Executor) loadSnapshot(ctx context.Context, tenantID string, ids []string) (map[string]models.Lead, error) {
	leads, err := e.leads.GetByIDs(ctx, tenantID, ids)
	if err != nil {
		if _, ok := dedupeerrors.As(err); !ok {
			err = dedupeerrors.StorageFailure(err, "failed to load leads")
		}
		return nil, err
	}
	byID := make(map[string]models.Lead, len(leads))
	for _, l := range leads {
		if l.TenantID == tenantID {
			byID[l.ID] = l
		}
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, dedupeerrors.LeadNotFound(id)
		}
	}
	return byID, nil
}

// execute runs inside the merge transaction
func (e *Executor) execute(
	ctx context.Context,
	plan *Plan,
	snapshot map[string]models.Lead,
	performedBy string,
	result *models.MergeResult,
) error {
	ctx, span := tracing.StartSpan(ctx, "merging.Executor.execute")
	defer span.End()

	ids := plan.LeadIDs()
	duplicateIDs := plan.DuplicateIDs()

	// 1. re-validate under row locks
	locked, err := e.leads.LockForMerge(ctx, plan.TenantID, ids)
	if err != nil {
		return err
	}
	current := make(map[string]models.Lead, len(locked))
	for _, l := range locked {
		current[l.ID] = l
	}
	for _, id := range ids {
		l, ok := current[id]
		if !ok || l.TenantID != plan.TenantID {
			return dedupeerrors.StaleLead(id, "lead was deleted or merged after planning")
		}
		if !l.UpdatedAt.Equal(snapshot[id].UpdatedAt) {
			return dedupeerrors.StaleLead(id, "lead was modified after planning")
		}
	}

	// 2. apply resolved fields
	surviving := plan.Resolved
	surviving.UpdatedAt = e.now().UTC().Truncate(time.Microsecond)
	if err := e.leads.Update(ctx, &surviving); err != nil {
		return err
	}

	// 3. reassign dependents
	for _, r := range plan.Reassignments {
		kind, ok := e.registry.Get(r.Kind)
		if !ok {
			return fmt.Errorf("dependent kind %q is not registered", r.Kind)
		}
		moved, err := kind.ReassignOwner(ctx, plan.TenantID, r.FromLeadID, r.ToLeadID)
		if err != nil {
			return err
		}
		result.Reassigned[r.Kind] += moved
	}
	for _, kind := range e.registry.Kinds() {
		remaining, err := kind.CountOwned(ctx, plan.TenantID, duplicateIDs)
		if err != nil {
			return err
		}
		if remaining > 0 {
			return dedupeerrors.Conflict("stale duplicate: %d %s records still reference merged leads", remaining, kind.Name())
		}
	}

	// 4. audit
	audit, err := buildAudit(plan, result.Reassigned, performedBy, surviving.UpdatedAt)
	if err != nil {
		return err
	}
	if err := e.audits.Create(ctx, audit); err != nil {
		return err
	}

	// 5. delete duplicates
	deleted, err := e.leads.DeleteByIDs(ctx, plan.TenantID, duplicateIDs)
	if err != nil {
		return err
	}
	if deleted != int64(len(duplicateIDs)) {
		return dedupeerrors.Conflict("stale duplicate: expected to delete %d leads, deleted %d", len(duplicateIDs), deleted)
	}

	result.Lead = &surviving
	result.DeletedCount = int(deleted)
	result.AuditID = audit.ID
	return nil
}

func buildAudit(plan *Plan, reassigned map[string]int64, performedBy string, at time.Time) (*models.MergeAudit, error) {
	mergedIDs, err := json.Marshal(plan.DuplicateIDs())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal merged lead ids: %w", err)
	}
	changes := plan.Changes
	if changes == nil {
		changes = []models.FieldChange{}
	}
	fieldChanges, err := json.Marshal(changes)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal field changes: %w", err)
	}
	reassignedJSON, err := json.Marshal(reassigned)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal reassignment counts: %w", err)
	}
	snapshots, err := json.Marshal(plan.Duplicates)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal merged lead snapshots: %w", err)
	}

	audit := &models.MergeAudit{
		ID:              uuid.New().String(),
		TenantID:        plan.TenantID,
		PrimaryLeadID:   plan.Primary.ID,
		MergedLeadIDs:   mergedIDs,
		Strategy:        plan.Strategy,
		FieldChanges:    fieldChanges,
		Reassigned:      reassignedJSON,
		MergedSnapshots: snapshots,
		PerformedAt:     at,
	}
	if performedBy != "" {
		audit.PerformedBy = &performedBy
	}
	return audit, nil
}

// afterCommit runs best-effort side effects. Failures are logged and never undo the merge.
func (e *Executor) afterCommit(ctx context.Context, tenantID string, result *models.MergeResult) {
	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":       tenantID,
		"primary_lead_id": result.Lead.ID,
		"audit_id":        result.AuditID,
	})

	if e.events != nil {
		if err := e.events.EmitLeadsMerged(ctx, tenantID, result); err != nil {
			metrics.EventPublishFailures.Inc()
			log.WithError(err).Error("Failed to publish lead.merged event")
		}
	}
	if e.lineage != nil {
		if err := e.lineage.RecordMerge(ctx, tenantID, result.Lead.ID, result.MergedIDs, result.AuditID); err != nil {
			metrics.LineageFailures.Inc()
			log.WithError(err).Warn("Failed to record merge lineage")
		}
	}
}

// AutoMergeDuplicates merges every detected group (or only exact groups) into its primary
// using keep-most-complete. Groups are merged one at a time; a group that conflicts is
// skipped. Passes repeat until one merges nothing, since a survivor that gained fields
// may join a new group.
func (e *Executor) AutoMergeDuplicates(ctx context.Context, tenantID string, exactOnly bool, performedBy string) (*models.AutoMergeResult, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Executor.AutoMergeDuplicates", tracing.Tenant(tenantID))
	defer span.End()

	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":  tenantID,
		"exact_only": exactOnly,
		"threshold":  e.config.AutoMergeThreshold,
	})

	result := &models.AutoMergeResult{}
	maxPasses := max(1, e.config.MaxAutoMergePasses)

	for pass := 1; pass <= maxPasses; pass++ {
		result.Passes = pass

		report, err := e.finder.FindAllDuplicates(ctx, tenantID, e.config.AutoMergeThreshold)
		if err != nil {
			return result, err
		}

		merged, skipped := 0, 0
		for _, group := range report.Groups {
			if exactOnly && group.MatchType != models.MatchTypeExact {
				continue
			}

			res, err := e.MergeLeads(ctx, tenantID, group.PrimaryLeadID, group.DuplicateIDs(), models.MergeStrategyKeepMostComplete, performedBy)
			if err != nil {
				if dedupeerrors.IsConflict(err) || dedupeerrors.IsNotFound(err) {
					skipped++
					log.WithError(err).WithField("primary_lead_id", group.PrimaryLeadID).Warn("Skipping duplicate group")
					continue
				}
				result.GroupsSkipped = skipped
				return result, err
			}

			merged++
			result.GroupsProcessed++
			result.MergedCount += res.DeletedCount
		}
		result.GroupsSkipped = skipped

		if merged == 0 {
			break
		}
	}

	log.WithFields(map[string]any{
		"merged_count":     result.MergedCount,
		"groups_processed": result.GroupsProcessed,
		"groups_skipped":   result.GroupsSkipped,
		"passes":           result.Passes,
	}).Info("Auto-merge complete")

	return result, nil
}

func intentKeys(tenantID string, ids []string) []string {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = "merge:" + tenantID + ":" + id
	}
	return keys
}

func outcome(err error) string {
	switch dedupeerrors.KindOf(err) {
	case "":
		return metrics.OutcomeSuccess
	case dedupeerrors.KindConflict:
		return metrics.OutcomeConflict
	case dedupeerrors.KindNotFound:
		return metrics.OutcomeNotFound
	case dedupeerrors.KindInvalidArgument:
		return metrics.OutcomeInvalid
	}
	return metrics.OutcomeFailure
}
