package normalizers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/clover/pkg/models"
)

func TestNormalizeCompanyName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Acme Inc", want: "acme"},
		{in: "  ACME  ", want: "acme"},
		{in: "Acme Corp.", want: "acme"},
		{in: "Acme Corporation", want: "acme"},
		{in: "Acme, L.L.C.", want: "acme l l c"},
		{in: "Acme LLC", want: "acme"},
		{in: "Café Müller GmbH", want: "cafe muller"},
		{in: "Smith & Sons Co Ltd", want: "smith sons"},
		{in: "Co", want: "co"},
		{in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeCompanyName(tt.in))
		})
	}
}

func TestNormalizeContactName(t *testing.T) {
	assert.Equal(t, "jane doe", NormalizeContactName("Dr. Jane  Doe"))
	assert.Equal(t, "john smith", NormalizeContactName("John Smith, Jr."))
	assert.Equal(t, "jose garcia", NormalizeContactName("José García"))
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in        string
		primary   string
		secondary string
	}{
		{in: "555-123-4567", primary: "5551234567"},
		{in: "(555) 123-4567", primary: "5551234567"},
		{in: "+1 (555) 123-4567", primary: "15551234567", secondary: "5551234567"},
		{in: "+44 20 7946 0958", primary: "442079460958", secondary: "2079460958"},
		{in: "n/a", primary: ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, s := NormalizePhone(tt.in)
			assert.Equal(t, tt.primary, p)
			assert.Equal(t, tt.secondary, s)
		})
	}
}

func TestNormalizeDomain(t *testing.T) {
	tests := []struct {
		name    string
		website string
		email   string
		want    string
	}{
		{name: "scheme and www", website: "https://www.Acme.com/about", want: "acme.com"},
		{name: "bare host", website: "acme.com", want: "acme.com"},
		{name: "subdomain reduced", website: "http://shop.acme.co.uk:8080/x", want: "acme.co.uk"},
		{name: "email fallback", email: "A@Acme.com", want: "acme.com"},
		{name: "website wins", website: "acme.io", email: "a@acme.com", want: "acme.io"},
		{name: "free mail ignored", email: "someone@gmail.com", want: ""},
		{name: "nothing", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDomain(tt.website, tt.email))
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@acme.com", NormalizeEmail("  A@ACME.com "))
	assert.Equal(t, "", NormalizeEmail("not-an-email"))
	assert.Equal(t, "", NormalizeEmail("@acme.com"))
}

func TestNormalizeLead(t *testing.T) {
	key := NormalizeLead(models.Lead{
		ID:          "l1",
		CompanyName: "Acme Inc",
		ContactName: "Mr. Road Runner",
		Email:       "A@acme.com",
		Phone:       "+1 555 123 4567",
	})

	assert.Equal(t, LeadKey{
		LeadID:         "l1",
		CompanyName:    "acme",
		ContactName:    "road runner",
		Email:          "a@acme.com",
		Domain:         "acme.com",
		Phone:          "15551234567",
		PhoneSecondary: "5551234567",
	}, key)
}

func TestApplyChain(t *testing.T) {
	assert.Equal(t, "acme", ApplyChain("  ÀCME ", Trim, FoldAccents, Lowercase))
	assert.Equal(t, "unchanged", Apply("unchanged", "no-such-normalizer"))
}
