package merging

import (
	"sort"

	"github.com/Ramsey-B/clover/pkg/models"
)

// candidate is a lead taking part in a merge with its position in the request.
// The primary is always position 0.
type candidate struct {
	lead     models.Lead
	position int
}

// FieldMerger resolves lead field values according to a merge strategy
type FieldMerger struct{}

// NewFieldMerger creates a new FieldMerger
func NewFieldMerger() *FieldMerger {
	return &FieldMerger{}
}

// rank orders the candidates in the preference order of the strategy
func (m *FieldMerger) rank(candidates []candidate, strategy models.MergeStrategy) []candidate {
	ranked := append([]candidate(nil), candidates...)

	switch strategy {
	case models.MergeStrategyKeepPrimary:
		// request order: primary, then duplicates as given
	case models.MergeStrategyKeepNewest:
		sort.SliceStable(ranked, func(i, j int) bool { return newer(ranked[i], ranked[j]) })
	default:
		sort.SliceStable(ranked, func(i, j int) bool {
			ci, cj := ranked[i].lead.Completeness(), ranked[j].lead.Completeness()
			if ci != cj {
				return ci > cj
			}
			return newer(ranked[i], ranked[j])
		})
	}
	return ranked
}

// MergeField picks the value of field from the first ranked candidate that has one.
// A non-empty value never loses to an empty one. When no candidate has a value the
// first ranked candidate is returned as the source.
func (m *FieldMerger) MergeField(field models.LeadField, ranked []candidate) (string, string) {
	for _, c := range ranked {
		if v := c.lead.Get(field); !models.IsEmpty(v) {
			return v, c.lead.ID
		}
	}
	if len(ranked) == 0 {
		return "", ""
	}
	return ranked[0].lead.Get(field), ranked[0].lead.ID
}

// newer orders by creation time descending; equal times keep request order
func newer(a, b candidate) bool {
	if !a.lead.CreatedAt.Equal(b.lead.CreatedAt) {
		return a.lead.CreatedAt.After(b.lead.CreatedAt)
	}
	return a.position < b.position
}
