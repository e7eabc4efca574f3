package models

// MatchType classifies the strength of a duplicate group
type MatchType string

const (
	MatchTypeExact   MatchType = "exact"
	MatchTypeSimilar MatchType = "similar"
	MatchTypeFuzzy   MatchType = "fuzzy"
)

// Signal names a field comparison that contributed to a score
type Signal string

const (
	SignalEmail       Signal = "email"
	SignalDomain      Signal = "domain"
	SignalPhone       Signal = "phone"
	SignalCompanyName Signal = "company_name"
	SignalContactName Signal = "contact_name"
)

// IsIdentity reports whether the signal is an exact identity-bearing match.
func (s Signal) IsIdentity() bool {
	return s == SignalEmail || s == SignalDomain || s == SignalPhone
}

// DuplicateEdge is a scored pair of leads. It is never persisted.
type DuplicateEdge struct {
	LeadAID string   `json:"lead_a_id"`
	LeadBID string   `json:"lead_b_id"`
	Score   float64  `json:"score"`
	Signals []Signal `json:"signals"`
}

// HasIdentitySignal reports whether any identity signal matched.
func (e DuplicateEdge) HasIdentitySignal() bool {
	for _, s := range e.Signals {
		if s.IsIdentity() {
			return true
		}
	}
	return false
}

// DuplicateGroup is a connected set of leads that clear the threshold.
// LeadIDs starts with the primary.
type DuplicateGroup struct {
	LeadIDs       []string  `json:"lead_ids"`
	PrimaryLeadID string    `json:"primary_lead_id"`
	MatchType     MatchType `json:"match_type"`
	TotalMatches  int       `json:"total_matches"`
	MinScore      float64   `json:"min_score"`
}

// DuplicateIDs returns the group members other than the primary.
func (g DuplicateGroup) DuplicateIDs() []string {
	ids := make([]string, 0, len(g.LeadIDs))
	for _, id := range g.LeadIDs {
		if id != g.PrimaryLeadID {
			ids = append(ids, id)
		}
	}
	return ids
}

// DuplicateMatch is one lead matching a queried lead
type DuplicateMatch struct {
	Lead      Lead      `json:"lead"`
	Score     float64   `json:"score"`
	Signals   []Signal  `json:"signals"`
	MatchType MatchType `json:"match_type"`
	IsPrimary bool      `json:"is_primary"`
}

// DuplicateSummary holds counts over all groups of a tenant
type DuplicateSummary struct {
	TotalGroups     int               `json:"total_groups"`
	TotalDuplicates int               `json:"total_duplicates"`
	ByMatchType     map[MatchType]int `json:"by_match_type"`
}

// DuplicateReport is the result of a tenant-wide duplicate scan
type DuplicateReport struct {
	Groups  []DuplicateGroup `json:"groups"`
	Summary DuplicateSummary `json:"summary"`
}
