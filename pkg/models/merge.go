package models

import (
	"encoding/json"
	"strings"
	"time"
)

// MergeStrategy defines how conflicting field values are resolved when leads are merged
type MergeStrategy string

const (
	// MergeStrategyKeepPrimary keeps the primary's values and back-fills empty fields
	MergeStrategyKeepPrimary MergeStrategy = "keep-primary"
	// MergeStrategyKeepNewest prefers the most recently created record's values
	MergeStrategyKeepNewest MergeStrategy = "keep-newest"
	// MergeStrategyKeepMostComplete prefers the record with the most non-empty fields
	MergeStrategyKeepMostComplete MergeStrategy = "keep-most-complete"
)

// DefaultMergeStrategy is used when the caller gives none or an unknown one
const DefaultMergeStrategy = MergeStrategyKeepMostComplete

// ParseMergeStrategy maps a caller supplied string to a strategy.
// Unknown values fall back to DefaultMergeStrategy.
func ParseMergeStrategy(s string) MergeStrategy {
	switch MergeStrategy(strings.ToLower(strings.TrimSpace(s))) {
	case MergeStrategyKeepPrimary:
		return MergeStrategyKeepPrimary
	case MergeStrategyKeepNewest:
		return MergeStrategyKeepNewest
	case MergeStrategyKeepMostComplete:
		return MergeStrategyKeepMostComplete
	}
	return DefaultMergeStrategy
}

// FieldChange records a field value replaced on the surviving lead
type FieldChange struct {
	Field        LeadField `json:"field"`
	OldValue     string    `json:"old_value"`
	NewValue     string    `json:"new_value"`
	SourceLeadID string    `json:"source_lead_id"`
}

// Reassignment moves dependent records of one kind from a duplicate to the primary
type Reassignment struct {
	Kind       string `json:"kind"`
	FromLeadID string `json:"from_lead_id"`
	ToLeadID   string `json:"to_lead_id"`
}

// MergeAudit records a completed merge for traceability
type MergeAudit struct {
	ID              string          `json:"id" db:"id"`
	TenantID        string          `json:"tenant_id" db:"tenant_id"`
	PrimaryLeadID   string          `json:"primary_lead_id" db:"primary_lead_id"`
	MergedLeadIDs   json.RawMessage `json:"merged_lead_ids" db:"merged_lead_ids"`
	Strategy        MergeStrategy   `json:"strategy" db:"strategy"`
	FieldChanges    json.RawMessage `json:"field_changes" db:"field_changes"`
	Reassigned      json.RawMessage `json:"reassigned" db:"reassigned"`
	MergedSnapshots json.RawMessage `json:"merged_snapshots" db:"merged_snapshots"`
	PerformedBy     *string         `json:"performed_by,omitempty" db:"performed_by"`
	PerformedAt     time.Time       `json:"performed_at" db:"performed_at"`
}

// MergeRequest is the request body for an explicit merge
type MergeRequest struct {
	PrimaryLeadID    string   `json:"primary_lead_id" validate:"required"`
	DuplicateLeadIDs []string `json:"duplicate_lead_ids" validate:"required,min=1,dive,required"`
	Strategy         string   `json:"strategy"`
}

// MergeResult contains the result of a merge operation
type MergeResult struct {
	Lead         *Lead            `json:"lead"`
	DeletedCount int              `json:"deleted_count"`
	MergedIDs    []string         `json:"merged_ids"`
	Strategy     MergeStrategy    `json:"strategy"`
	Changes      []FieldChange    `json:"changes,omitempty"`
	Reassigned   map[string]int64 `json:"reassigned"`
	AuditID      string           `json:"audit_id"`
}

// AutoMergeRequest is the request body for an auto-merge run
type AutoMergeRequest struct {
	ExactMatchOnly *bool `json:"exact_match_only"`
}

// AutoMergeResult summarizes an auto-merge run
type AutoMergeResult struct {
	MergedCount     int `json:"merged_count"`
	GroupsProcessed int `json:"groups_processed"`
	GroupsSkipped   int `json:"groups_skipped"`
	Passes          int `json:"passes"`
}
