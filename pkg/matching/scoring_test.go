package matching

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
)

func key(l models.Lead) normalizers.LeadKey {
	return normalizers.NormalizeLead(l)
}

func sampleLeads() []models.Lead {
	return []models.Lead{
		{ID: "a", CompanyName: "Acme Inc", Email: "a@acme.com"},
		{ID: "b", CompanyName: "ACME", Email: "a@acme.com"},
		{ID: "c", CompanyName: "Acme Corp", Phone: "555-123-4567"},
		{ID: "d", CompanyName: "Acme Corporation", Phone: "(555) 123-4567"},
		{ID: "e", CompanyName: "Globex", Website: "https://www.globex.com", ContactName: "Hank Scorpio"},
		{ID: "f", CompanyName: "Globex LLC", Email: "hank@globex.com", ContactName: "Hank  Scorpio"},
		{ID: "g", CompanyName: "Initech", Phone: "+1 555 123 4567"},
		{ID: "h", ContactName: "Wile E. Coyote"},
		{ID: "i"},
		{ID: "j", CompanyName: "Initrode", Website: "initrode.io", Email: "bill@gmail.com"},
	}
}

func TestScoreSymmetry(t *testing.T) {
	scorer := NewScorer(DefaultWeights())
	leads := sampleLeads()

	for _, a := range leads {
		for _, b := range leads {
			ab := scorer.Score(key(a), key(b))
			ba := scorer.Score(key(b), key(a))
			assert.Equal(t, ab, ba, "score(%s,%s) != score(%s,%s)", a.ID, b.ID, b.ID, a.ID)
			assert.GreaterOrEqual(t, ab.Score, 0.0)
			assert.LessOrEqual(t, ab.Score, 1.0)
		}
	}
}

func TestScoreMonotonicity(t *testing.T) {
	scorer := NewScorer(DefaultWeights())

	bases := [][2]models.Lead{
		{{ID: "1", CompanyName: "Acme"}, {ID: "2", CompanyName: "Acme Widgets"}},
		{{ID: "1", CompanyName: "Initech"}, {ID: "2", CompanyName: "Initrode", ContactName: "Bill"}},
		{{ID: "1"}, {ID: "2"}},
		{{ID: "1", CompanyName: "Globex", Phone: "555 000 1111"}, {ID: "2", CompanyName: "Globex", Phone: "555 000 1111"}},
	}
	signals := map[string]func(l *models.Lead){
		"email":  func(l *models.Lead) { l.Email = "owner@shared.example" },
		"domain": func(l *models.Lead) { l.Website = "https://shared.example" },
		"phone":  func(l *models.Lead) { l.Phone = "+1 (212) 555-0100" },
	}

	for i, base := range bases {
		before := scorer.Score(key(base[0]), key(base[1])).Score
		for name, add := range signals {
			t.Run(fmt.Sprintf("%d/%s", i, name), func(t *testing.T) {
				a, b := base[0], base[1]
				add(&a)
				add(&b)
				after := scorer.Score(key(a), key(b)).Score
				assert.GreaterOrEqual(t, after, before)
			})
		}
	}
}

func TestScoreMissingFieldsContributeNothing(t *testing.T) {
	scorer := NewScorer(DefaultWeights())

	edge := scorer.Score(key(models.Lead{ID: "1"}), key(models.Lead{ID: "2"}))
	assert.Equal(t, 0.0, edge.Score)
	assert.Empty(t, edge.Signals)

	edge = scorer.Score(
		key(models.Lead{ID: "1", CompanyName: "Acme", Email: "x@acme.com"}),
		key(models.Lead{ID: "2", CompanyName: "Acme"}),
	)
	assert.InDelta(t, 0.5, edge.Score, 1e-9)
}

func TestScoreExamples(t *testing.T) {
	scorer := NewScorer(DefaultWeights())

	t.Run("identical email", func(t *testing.T) {
		edge := scorer.Score(
			key(models.Lead{ID: "1", CompanyName: "Acme Inc", Email: "a@acme.com"}),
			key(models.Lead{ID: "2", CompanyName: "ACME", Email: "a@acme.com"}),
		)
		assert.Equal(t, 1.0, edge.Score)
		assert.ElementsMatch(t, []models.Signal{models.SignalEmail, models.SignalDomain, models.SignalCompanyName}, edge.Signals)
		assert.True(t, edge.HasIdentitySignal())
	})

	t.Run("phone plus similar name", func(t *testing.T) {
		edge := scorer.Score(
			key(models.Lead{ID: "1", CompanyName: "Acme Corp", Phone: "555-123-4567"}),
			key(models.Lead{ID: "2", CompanyName: "Acme Corporation", Phone: "(555) 123-4567"}),
		)
		assert.InDelta(t, 0.9, edge.Score, 1e-9)
		assert.GreaterOrEqual(t, edge.Score, 0.85)
		assert.Contains(t, edge.Signals, models.SignalPhone)
	})

	t.Run("country code tolerated", func(t *testing.T) {
		edge := scorer.Score(
			key(models.Lead{ID: "1", Phone: "+1 555 123 4567"}),
			key(models.Lead{ID: "2", Phone: "555.123.4567"}),
		)
		assert.Equal(t, []models.Signal{models.SignalPhone}, edge.Signals)
	})

	t.Run("misspelled name only", func(t *testing.T) {
		high := scorer.Score(
			key(models.Lead{ID: "1", CompanyName: "Acmee Widgetz", Website: "acmee-widgetz.com"}),
			key(models.Lead{ID: "2", CompanyName: "Acmee Widgetz", Website: "zorbl.io"}),
		)
		low := scorer.Score(
			key(models.Lead{ID: "1", CompanyName: "Acmee Widgetz", Website: "acmee-widgetz.com"}),
			key(models.Lead{ID: "2", CompanyName: "Acmeo Holdings", Website: "zorbl.io"}),
		)
		assert.InDelta(t, 0.5, high.Score, 1e-9)
		assert.Less(t, high.Score, 0.85)
		assert.Less(t, low.Score, high.Score)
		assert.False(t, high.HasIdentitySignal())
	})
}

func TestScoreEdgeIsOrderedByID(t *testing.T) {
	scorer := NewScorer(DefaultWeights())
	edge := scorer.Score(key(models.Lead{ID: "z"}), key(models.Lead{ID: "a"}))
	require.Equal(t, "a", edge.LeadAID)
	require.Equal(t, "z", edge.LeadBID)
}

func TestNameRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{a: "acme", b: "acme", want: 1.0},
		{a: "acme", b: "acme widgets", want: 1.0},
		{a: "widgets acme", b: "acme widgets", want: 1.0},
		{a: "initech", b: "initrode", want: 0.5},
		{a: "jane doe", b: "jane m doe", want: 1.0},
		{a: "", b: "", want: 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.a+"|"+tt.b, func(t *testing.T) {
			assert.InDelta(t, tt.want, NameRatio(tt.a, tt.b), 1e-9)
			assert.InDelta(t, NameRatio(tt.a, tt.b), NameRatio(tt.b, tt.a), 1e-12)
		})
	}
}
