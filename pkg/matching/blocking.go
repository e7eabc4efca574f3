package matching

import (
	"sort"

	"github.com/Ramsey-B/clover/pkg/normalizers"
)

const namePrefixLen = 3

// BlockKey returns the bucket of a lead: its domain when present, else the first
// three characters of its company name. Leads with neither return "".
func BlockKey(k normalizers.LeadKey) string {
	if k.Domain != "" {
		return "domain:" + k.Domain
	}
	if k.HasName() {
		r := []rune(k.CompanyName)
		if len(r) > namePrefixLen {
			r = r[:namePrefixLen]
		}
		return "name:" + string(r)
	}
	return ""
}

// MailboxKey buckets a lead by its full email when the address yields no domain,
// as free-mail addresses do. Otherwise the domain bucket already holds the mailbox.
func MailboxKey(k normalizers.LeadKey) string {
	if k.Domain != "" || k.Email == "" {
		return ""
	}
	return "email:" + k.Email
}

// Blocker indexes leads into coarse buckets so only leads sharing a bucket are scored.
// A lead sits in at most two buckets. Leads without a domain or company name are
// compared against everything.
type Blocker struct {
	keys       [][]string
	buckets    map[string][]int
	degenerate []int
}

// NewBlocker buckets the given keys. Indices refer to positions in keys.
func NewBlocker(keys []normalizers.LeadKey) *Blocker {
	b := &Blocker{
		keys:    make([][]string, len(keys)),
		buckets: make(map[string][]int),
	}
	for i, k := range keys {
		primary := BlockKey(k)
		if primary == "" {
			b.degenerate = append(b.degenerate, i)
			continue
		}
		b.keys[i] = []string{primary}
		if mailbox := MailboxKey(k); mailbox != "" {
			b.keys[i] = append(b.keys[i], mailbox)
		}
		for _, key := range b.keys[i] {
			b.buckets[key] = append(b.buckets[key], i)
		}
	}
	return b
}

// BucketCount returns the number of non-degenerate buckets
func (b *Blocker) BucketCount() int {
	return len(b.buckets)
}

// CandidatePairs returns every index pair (i < j) that must be scored, each exactly once
func (b *Blocker) CandidatePairs() [][2]int {
	names := make([]string, 0, len(b.buckets))
	for k := range b.buckets {
		names = append(names, k)
	}
	sort.Strings(names)

	seen := make(map[[2]int]struct{})
	var pairs [][2]int
	add := func(i, j int) {
		p := orderedPair(i, j)
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		pairs = append(pairs, p)
	}

	for _, name := range names {
		members := b.buckets[name]
		for x := 0; x < len(members); x++ {
			for y := x + 1; y < len(members); y++ {
				add(members[x], members[y])
			}
		}
	}
	for _, d := range b.degenerate {
		for i := range b.keys {
			if i != d {
				add(d, i)
			}
		}
	}
	return pairs
}

// Neighbors returns the indices that lead i must be scored against
func (b *Blocker) Neighbors(i int) []int {
	var out []int
	if b.keys[i] == nil {
		for j := range b.keys {
			if j != i {
				out = append(out, j)
			}
		}
		return out
	}

	seen := map[int]bool{i: true}
	for _, key := range b.keys[i] {
		for _, j := range b.buckets[key] {
			if !seen[j] {
				seen[j] = true
				out = append(out, j)
			}
		}
	}
	for _, j := range b.degenerate {
		if !seen[j] {
			out = append(out, j)
		}
	}
	return out
}

func orderedPair(i, j int) [2]int {
	if j < i {
		return [2]int{j, i}
	}
	return [2]int{i, j}
}
