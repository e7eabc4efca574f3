// Package normalizers canonicalizes raw lead field values for matching
package normalizers

import (
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/Ramsey-B/clover/pkg/models"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

const (
	CompanyName = "company_name"
	ContactName = "contact_name"
	Email       = "email"
	Phone       = "phone"
	Website     = "website"
	Lowercase   = "lowercase"
	Trim        = "trim"
	DigitsOnly  = "digits_only"
	FoldAccents = "fold_accents"
)

// registry holds all registered normalizers
var registry = make(map[string]Normalizer)

func init() {
	Register(Lowercase, strings.ToLower)
	Register(Trim, strings.TrimSpace)
	Register(DigitsOnly, digitsOnly)
	Register(FoldAccents, foldAccents)
	Register(CompanyName, NormalizeCompanyName)
	Register(ContactName, NormalizeContactName)
	Register(Email, NormalizeEmail)
	Register(Phone, func(s string) string {
		p, _ := NormalizePhone(s)
		return p
	})
	Register(Website, func(s string) string { return NormalizeDomain(s, "") })
}

// Register adds a normalizer to the registry
func Register(name string, fn Normalizer) {
	registry[name] = fn
}

// Get retrieves a normalizer by name
func Get(name string) (Normalizer, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Apply applies a named normalizer to a value
func Apply(value, normalizer string) string {
	fn, ok := registry[normalizer]
	if !ok {
		return value
	}
	return fn(value)
}

// ApplyChain applies multiple normalizers in sequence
func ApplyChain(value string, normalizers ...string) string {
	result := value
	for _, name := range normalizers {
		result = Apply(result, name)
	}
	return result
}

// legalSuffixes are dropped from the end of company names
var legalSuffixes = map[string]bool{
	"inc": true, "incorporated": true, "llc": true, "ltd": true, "limited": true,
	"corp": true, "corporation": true, "co": true, "company": true, "gmbh": true,
	"plc": true, "sa": true, "ag": true, "bv": true, "pty": true, "lp": true, "llp": true,
}

// nameAffixes are dropped from contact names wherever they appear
var nameAffixes = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true,
	"jr": true, "sr": true, "ii": true, "iii": true, "iv": true,
}

// freeMailDomains identify mailboxes, not companies
var freeMailDomains = map[string]bool{
	"gmail.com": true, "googlemail.com": true, "yahoo.com": true, "outlook.com": true,
	"hotmail.com": true, "live.com": true, "msn.com": true, "icloud.com": true,
	"aol.com": true, "proton.me": true, "protonmail.com": true, "gmx.com": true,
}

// NormalizeCompanyName lower-cases, folds accents, replaces punctuation with spaces,
// collapses whitespace and strips trailing legal-entity suffixes.
// A name made only of suffixes keeps its last token so "Co" stays "co".
func NormalizeCompanyName(s string) string {
	tokens := tokenize(s)
	for len(tokens) > 1 && legalSuffixes[tokens[len(tokens)-1]] {
		tokens = tokens[:len(tokens)-1]
	}
	return strings.Join(tokens, " ")
}

// NormalizeContactName normalizes a person's name for matching
func NormalizeContactName(s string) string {
	tokens := tokenize(s)
	kept := tokens[:0]
	for _, t := range tokens {
		if !nameAffixes[t] {
			kept = append(kept, t)
		}
	}
	return strings.Join(kept, " ")
}

// NormalizeEmail trims and lower-cases an address. Values without a local part or domain normalize to empty.
func NormalizeEmail(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	at := strings.LastIndex(s, "@")
	if at <= 0 || at == len(s)-1 {
		return ""
	}
	return s
}

// NormalizePhone keeps digits only. When more than ten digits remain the trailing ten
// are returned as a secondary key to tolerate missing or extra country codes.
func NormalizePhone(s string) (primary, secondary string) {
	primary = digitsOnly(s)
	if len(primary) > 10 {
		secondary = primary[len(primary)-10:]
	}
	return primary, secondary
}

// NormalizeDomain returns the registrable domain of the website, or of the email when no
// website is given. Free-mail providers yield an empty domain.
func NormalizeDomain(website, email string) string {
	host := ""
	if w := strings.TrimSpace(website); w != "" {
		host = hostFromWebsite(w)
	}
	if host == "" {
		if e := NormalizeEmail(email); e != "" {
			host = e[strings.LastIndex(e, "@")+1:]
		}
	}
	host = strings.Trim(strings.ToLower(host), ".")
	if host == "" {
		return ""
	}

	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		domain = host
	}
	if freeMailDomains[domain] {
		return ""
	}
	return domain
}

func hostFromWebsite(w string) string {
	w = strings.ToLower(w)
	if !strings.Contains(w, "://") {
		w = "http://" + w
	}
	u, err := url.Parse(w)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

// tokenize lower-cases, folds accents and splits on anything that is not a letter or digit
func tokenize(s string) []string {
	s = strings.ToLower(foldAccents(strings.TrimSpace(s)))
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func digitsOnly(s string) string {
	var result strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// LeadKey is the normalized form of a lead used for matching. It is never persisted.
type LeadKey struct {
	LeadID         string
	CompanyName    string
	ContactName    string
	Email          string
	Domain         string
	Phone          string
	PhoneSecondary string
}

// HasName reports whether the key carries a company name
func (k LeadKey) HasName() bool {
	return k.CompanyName != ""
}

// NormalizeLead derives the matching key of a lead
func NormalizeLead(l models.Lead) LeadKey {
	phone, secondary := NormalizePhone(l.Phone)
	return LeadKey{
		LeadID:         l.ID,
		CompanyName:    Apply(l.CompanyName, CompanyName),
		ContactName:    Apply(l.ContactName, ContactName),
		Email:          Apply(l.Email, Email),
		Domain:         NormalizeDomain(l.Website, l.Email),
		Phone:          phone,
		PhoneSecondary: secondary,
	}
}
