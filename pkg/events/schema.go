package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/models"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// EventType defines the type of event
type EventType string

const (
	EventTypeLeadMerged EventType = "lead.merged"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID       string    `json:"event_id"`
	EventType     EventType `json:"event_type"`
	SchemaVersion string    `json:"schema_version"`
	TenantID      string    `json:"tenant_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// LeadMergedEvent is emitted after a merge commits
type LeadMergedEvent struct {
	BaseEvent
	PrimaryLeadID string           `json:"primary_lead_id"`
	MergedLeadIDs []string         `json:"merged_lead_ids"`
	Strategy      string           `json:"strategy"`
	ChangedFields []string         `json:"changed_fields,omitempty"`
	Reassigned    map[string]int64 `json:"reassigned"`
	AuditID       string           `json:"audit_id"`
	Lead          *models.Lead     `json:"lead"`
}

func newBaseEvent(eventType EventType, tenantID string, at time.Time) BaseEvent {
	return BaseEvent{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		SchemaVersion: SchemaVersion,
		TenantID:      tenantID,
		Timestamp:     at.UTC(),
	}
}

// NewLeadMergedEvent builds the event for a committed merge
func NewLeadMergedEvent(tenantID string, result *models.MergeResult, at time.Time) *LeadMergedEvent {
	var changed []string
	for _, c := range result.Changes {
		changed = append(changed, string(c.Field))
	}
	return &LeadMergedEvent{
		BaseEvent:     newBaseEvent(EventTypeLeadMerged, tenantID, at),
		PrimaryLeadID: result.Lead.ID,
		MergedLeadIDs: result.MergedIDs,
		Strategy:      string(result.Strategy),
		ChangedFields: changed,
		Reassigned:    result.Reassigned,
		AuditID:       result.AuditID,
		Lead:          result.Lead,
	}
}
