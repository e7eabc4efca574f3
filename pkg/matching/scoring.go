package matching

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
)

// Weights are the per-signal contributions to a pair score.
// Name weights are scaled by the name similarity ratio.
type Weights struct {
	Email       float64 `json:"email"`
	Domain      float64 `json:"domain"`
	Phone       float64 `json:"phone"`
	CompanyName float64 `json:"company_name"`
	ContactName float64 `json:"contact_name"`
}

// DefaultWeights lets an exact phone plus an identical company name reach the similar band.
func DefaultWeights() Weights {
	return Weights{
		Email:       0.45,
		Domain:      0.35,
		Phone:       0.40,
		CompanyName: 0.50,
		ContactName: 0.10,
	}
}

// NameSignalFloor is the ratio at which a name comparison is reported as a matched signal
const NameSignalFloor = 0.8

// Scorer compares normalized leads
type Scorer struct {
	weights Weights
}

// NewScorer creates a new Scorer
func NewScorer(weights Weights) *Scorer {
	return &Scorer{weights: weights}
}

// Score returns the similarity of two leads in [0,1] and the signals that matched.
// Fields missing on either side contribute nothing.
// The returned edge is ordered by lead id so Score(a,b) and Score(b,a) are identical.
func (s *Scorer) Score(a, b normalizers.LeadKey) models.DuplicateEdge {
	if b.LeadID < a.LeadID {
		a, b = b, a
	}

	edge := models.DuplicateEdge{
		LeadAID: a.LeadID,
		LeadBID: b.LeadID,
		Signals: []models.Signal{},
	}

	total := 0.0
	if a.Email != "" && a.Email == b.Email {
		total += s.weights.Email
		edge.Signals = append(edge.Signals, models.SignalEmail)
	}
	if a.Domain != "" && a.Domain == b.Domain {
		total += s.weights.Domain
		edge.Signals = append(edge.Signals, models.SignalDomain)
	}
	if phonesMatch(a, b) {
		total += s.weights.Phone
		edge.Signals = append(edge.Signals, models.SignalPhone)
	}
	if a.CompanyName != "" && b.CompanyName != "" {
		ratio := NameRatio(a.CompanyName, b.CompanyName)
		total += s.weights.CompanyName * ratio
		if ratio >= NameSignalFloor {
			edge.Signals = append(edge.Signals, models.SignalCompanyName)
		}
	}
	if a.ContactName != "" && b.ContactName != "" {
		ratio := NameRatio(a.ContactName, b.ContactName)
		total += s.weights.ContactName * ratio
		if ratio >= NameSignalFloor {
			edge.Signals = append(edge.Signals, models.SignalContactName)
		}
	}

	edge.Score = math.Min(1.0, total)
	return edge
}

func phonesMatch(a, b normalizers.LeadKey) bool {
	if a.Phone == "" || b.Phone == "" {
		return false
	}
	for _, x := range []string{a.Phone, a.PhoneSecondary} {
		if x == "" {
			continue
		}
		if x == b.Phone || x == b.PhoneSecondary {
			return true
		}
	}
	return false
}

// NameRatio is the better of the edit-distance ratio and the token-set ratio
func NameRatio(a, b string) float64 {
	return math.Max(LevenshteinRatio(a, b), TokenSetRatio(a, b))
}

// LevenshteinRatio returns 1 - distance/maxLen, measured in runes
func LevenshteinRatio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
}

// TokenSetRatio compares the shared tokens of two strings against each side's remainder,
// so "acme widgets" and "widgets acme international" score high.
func TokenSetRatio(a, b string) float64 {
	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	var common, onlyA, onlyB []string
	for t := range ta {
		if tb[t] {
			common = append(common, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range tb {
		if !ta[t] {
			onlyB = append(onlyB, t)
		}
	}
	sort.Strings(common)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	base := strings.Join(common, " ")
	withA := strings.TrimSpace(base + " " + strings.Join(onlyA, " "))
	withB := strings.TrimSpace(base + " " + strings.Join(onlyB, " "))

	best := LevenshteinRatio(withA, withB)
	if base != "" {
		best = math.Max(best, math.Max(LevenshteinRatio(base, withA), LevenshteinRatio(base, withB)))
	}
	return best
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range strings.Fields(s) {
		set[t] = true
	}
	return set
}
