package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
)

func TestBlockKey(t *testing.T) {
	tests := []struct {
		name string
		lead models.Lead
		want string
	}{
		{name: "domain wins", lead: models.Lead{CompanyName: "Acme", Website: "https://www.acme.com/about"}, want: "domain:acme.com"},
		{name: "email domain", lead: models.Lead{Email: "jo@sales.acme.co.uk"}, want: "domain:acme.co.uk"},
		{name: "name prefix", lead: models.Lead{CompanyName: "Acme Widgets"}, want: "name:acm"},
		{name: "short name", lead: models.Lead{CompanyName: "Xy"}, want: "name:xy"},
		{name: "free mail falls back to name", lead: models.Lead{CompanyName: "Globex", Email: "hank@gmail.com"}, want: "name:glo"},
		{name: "nothing", lead: models.Lead{ContactName: "Jane"}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BlockKey(normalizers.NormalizeLead(tt.lead)))
		})
	}
}

func TestCandidatePairs(t *testing.T) {
	keys := []normalizers.LeadKey{
		normalizers.NormalizeLead(models.Lead{ID: "0", CompanyName: "Acme"}),
		normalizers.NormalizeLead(models.Lead{ID: "1", CompanyName: "Acme Widgets"}),
		normalizers.NormalizeLead(models.Lead{ID: "2", CompanyName: "Globex"}),
		normalizers.NormalizeLead(models.Lead{ID: "3", Phone: "555 123 4567"}),
		normalizers.NormalizeLead(models.Lead{ID: "4", ContactName: "Jane"}),
	}

	b := NewBlocker(keys)
	assert.Equal(t, 2, b.BucketCount())

	pairs := b.CandidatePairs()
	assert.ElementsMatch(t, [][2]int{
		{0, 1},
		{0, 3}, {1, 3}, {2, 3}, {3, 4},
		{0, 4}, {1, 4}, {2, 4},
	}, pairs)

	seen := make(map[[2]int]bool)
	for _, p := range pairs {
		assert.Less(t, p[0], p[1])
		assert.False(t, seen[p], "pair %v emitted twice", p)
		seen[p] = true
	}
}

func TestNeighbors(t *testing.T) {
	keys := []normalizers.LeadKey{
		normalizers.NormalizeLead(models.Lead{ID: "0", CompanyName: "Acme"}),
		normalizers.NormalizeLead(models.Lead{ID: "1", CompanyName: "Acme Widgets"}),
		normalizers.NormalizeLead(models.Lead{ID: "2", CompanyName: "Globex"}),
		normalizers.NormalizeLead(models.Lead{ID: "3"}),
	}
	b := NewBlocker(keys)

	assert.ElementsMatch(t, []int{1, 3}, b.Neighbors(0))
	assert.ElementsMatch(t, []int{3}, b.Neighbors(2))
	assert.ElementsMatch(t, []int{0, 1, 2}, b.Neighbors(3))
}

func TestMailboxKey(t *testing.T) {
	tests := []struct {
		name string
		lead models.Lead
		want string
	}{
		{name: "free mail", lead: models.Lead{CompanyName: "Globex", Email: "Hank@Gmail.com"}, want: "email:hank@gmail.com"},
		{name: "company mail uses the domain bucket", lead: models.Lead{Email: "hank@globex.com"}, want: ""},
		{name: "no email", lead: models.Lead{CompanyName: "Globex"}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MailboxKey(normalizers.NormalizeLead(tt.lead)))
		})
	}
}

func TestFreeMailSharesBucketAcrossNames(t *testing.T) {
	keys := []normalizers.LeadKey{
		normalizers.NormalizeLead(models.Lead{ID: "0", CompanyName: "Jane Doe Consulting", Email: "jane.doe@gmail.com"}),
		normalizers.NormalizeLead(models.Lead{ID: "1", CompanyName: "JD Consulting LLC", Email: "jane.doe@gmail.com"}),
		normalizers.NormalizeLead(models.Lead{ID: "2", CompanyName: "Jane Street", Email: "info@gmail.com"}),
	}
	b := NewBlocker(keys)

	assert.ElementsMatch(t, [][2]int{{0, 1}, {0, 2}}, b.CandidatePairs())
	assert.ElementsMatch(t, []int{1, 2}, b.Neighbors(0))
	assert.ElementsMatch(t, []int{0}, b.Neighbors(1))
}
