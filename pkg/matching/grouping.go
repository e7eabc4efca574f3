package matching

import (
	"sort"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
)

// unionFind is a disjoint-set forest over arena indices
type unionFind struct {
	parent []int
	size   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{
		parent: make([]int, n),
		size:   make([]int, n),
	}
	for i := range uf.parent {
		uf.parent[i] = i
		uf.size[i] = 1
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if uf.size[ra] < uf.size[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	uf.size[ra] += uf.size[rb]
}

// arena holds a tenant's leads and their keys; all grouping works on indices into it
type arena struct {
	leads []models.Lead
	keys  []normalizers.LeadKey
	index map[string]int
}

func newArena(leads []models.Lead) *arena {
	a := &arena{
		leads: leads,
		keys:  make([]normalizers.LeadKey, len(leads)),
		index: make(map[string]int, len(leads)),
	}
	for i, l := range leads {
		a.keys[i] = normalizers.NormalizeLead(l)
		a.index[l.ID] = i
	}
	return a
}

// before orders leads by creation time, then id
func (a *arena) before(i, j int) bool {
	li, lj := a.leads[i], a.leads[j]
	if !li.CreatedAt.Equal(lj.CreatedAt) {
		return li.CreatedAt.Before(lj.CreatedAt)
	}
	return li.ID < lj.ID
}

// pairScores caches scored edges by index pair
type pairScores struct {
	scorer *Scorer
	arena  *arena
	edges  map[[2]int]models.DuplicateEdge
}

func newPairScores(scorer *Scorer, a *arena) *pairScores {
	return &pairScores{
		scorer: scorer,
		arena:  a,
		edges:  make(map[[2]int]models.DuplicateEdge),
	}
}

func (p *pairScores) get(i, j int) models.DuplicateEdge {
	key := orderedPair(i, j)
	if e, ok := p.edges[key]; ok {
		return e
	}
	e := p.scorer.Score(p.arena.keys[key[0]], p.arena.keys[key[1]])
	p.edges[key] = e
	return e
}

// Classification bounds for duplicate groups
type Classification struct {
	ExactScore   float64 `json:"exact_score"`
	SimilarScore float64 `json:"similar_score"`
}

// Grouper turns scored pairs into classified duplicate groups
type Grouper struct {
	classification Classification
}

// NewGrouper creates a new Grouper
func NewGrouper(c Classification) *Grouper {
	return &Grouper{classification: c}
}

// Components unions every candidate pair scoring at or above threshold and returns
// the components with at least two members, each sorted primary first.
func (g *Grouper) Components(a *arena, scores *pairScores, pairs [][2]int, threshold float64) [][]int {
	uf := newUnionFind(len(a.leads))
	inGraph := make([]bool, len(a.leads))
	for _, p := range pairs {
		if scores.get(p[0], p[1]).Score >= threshold {
			uf.union(p[0], p[1])
			inGraph[p[0]] = true
			inGraph[p[1]] = true
		}
	}

	byRoot := make(map[int][]int)
	for i := range a.leads {
		if inGraph[i] {
			r := uf.find(i)
			byRoot[r] = append(byRoot[r], i)
		}
	}

	components := make([][]int, 0, len(byRoot))
	for _, members := range byRoot {
		if len(members) < 2 {
			continue
		}
		sort.Slice(members, func(x, y int) bool { return a.before(members[x], members[y]) })
		components = append(components, members)
	}
	sort.Slice(components, func(x, y int) bool { return a.before(components[x][0], components[y][0]) })
	return components
}

// Group classifies a component. members must be sorted primary first.
func (g *Grouper) Group(a *arena, scores *pairScores, members []int) models.DuplicateGroup {
	group := models.DuplicateGroup{
		LeadIDs:       make([]string, len(members)),
		PrimaryLeadID: a.leads[members[0]].ID,
		TotalMatches:  len(members) - 1,
		MinScore:      1.0,
	}
	for i, m := range members {
		group.LeadIDs[i] = a.leads[m].ID
	}

	exact := true
	for x := 0; x < len(members); x++ {
		for y := x + 1; y < len(members); y++ {
			e := scores.get(members[x], members[y])
			if e.Score < group.MinScore {
				group.MinScore = e.Score
			}
			if e.Score < g.classification.ExactScore || !e.HasIdentitySignal() {
				exact = false
			}
		}
	}

	switch {
	case exact:
		group.MatchType = models.MatchTypeExact
	case group.MinScore >= g.classification.SimilarScore:
		group.MatchType = models.MatchTypeSimilar
	default:
		group.MatchType = models.MatchTypeFuzzy
	}
	return group
}

// Summarize counts groups and duplicates per match type
func Summarize(groups []models.DuplicateGroup) models.DuplicateSummary {
	summary := models.DuplicateSummary{
		TotalGroups: len(groups),
		ByMatchType: map[models.MatchType]int{
			models.MatchTypeExact:   0,
			models.MatchTypeSimilar: 0,
			models.MatchTypeFuzzy:   0,
		},
	}
	for _, g := range groups {
		summary.TotalDuplicates += g.TotalMatches
		summary.ByMatchType[g.MatchType]++
	}
	return summary
}
