package models

import (
	"strings"
	"time"
)

// Lead is a prospective customer record owned by a tenant.
// Optional fields are stored as empty strings rather than NULL.
type Lead struct {
	ID          string    `json:"id" db:"id"`
	TenantID    string    `json:"tenant_id" db:"tenant_id"`
	CompanyName string    `json:"company_name" db:"company_name"`
	ContactName string    `json:"contact_name,omitempty" db:"contact_name"`
	Email       string    `json:"email,omitempty" db:"email"`
	Phone       string    `json:"phone,omitempty" db:"phone"`
	Website     string    `json:"website,omitempty" db:"website"`
	Industry    string    `json:"industry,omitempty" db:"industry"`
	Source      string    `json:"source" db:"source"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// LeadField names a mergeable lead attribute.
type LeadField string

const (
	FieldCompanyName LeadField = "company_name"
	FieldContactName LeadField = "contact_name"
	FieldEmail       LeadField = "email"
	FieldPhone       LeadField = "phone"
	FieldWebsite     LeadField = "website"
	FieldIndustry    LeadField = "industry"
	FieldSource      LeadField = "source"
)

// MatchableFields count toward a lead's completeness.
var MatchableFields = []LeadField{
	FieldCompanyName,
	FieldContactName,
	FieldEmail,
	FieldPhone,
	FieldWebsite,
	FieldIndustry,
}

// MergeableFields are resolved by the merge planner.
var MergeableFields = append(append([]LeadField{}, MatchableFields...), FieldSource)

// Get returns the value of a field.
func (l *Lead) Get(f LeadField) string {
	switch f {
	case FieldCompanyName:
		return l.CompanyName
	case FieldContactName:
		return l.ContactName
	case FieldEmail:
		return l.Email
	case FieldPhone:
		return l.Phone
	case FieldWebsite:
		return l.Website
	case FieldIndustry:
		return l.Industry
	case FieldSource:
		return l.Source
	}
	return ""
}

// Set assigns the value of a field. Unknown fields are ignored.
func (l *Lead) Set(f LeadField, v string) {
	switch f {
	case FieldCompanyName:
		l.CompanyName = v
	case FieldContactName:
		l.ContactName = v
	case FieldEmail:
		l.Email = v
	case FieldPhone:
		l.Phone = v
	case FieldWebsite:
		l.Website = v
	case FieldIndustry:
		l.Industry = v
	case FieldSource:
		l.Source = v
	}
}

// Completeness counts non-empty matchable fields.
func (l *Lead) Completeness() int {
	n := 0
	for _, f := range MatchableFields {
		if !IsEmpty(l.Get(f)) {
			n++
		}
	}
	return n
}

// IsEmpty reports whether a field value carries no information.
func IsEmpty(v string) bool {
	return strings.TrimSpace(v) == ""
}

// CreateLeadRequest is the request for creating a lead
type CreateLeadRequest struct {
	CompanyName string `json:"company_name" validate:"required"`
	ContactName string `json:"contact_name"`
	Email       string `json:"email" validate:"omitempty,email"`
	Phone       string `json:"phone"`
	Website     string `json:"website"`
	Industry    string `json:"industry"`
	Source      string `json:"source" validate:"required"`
}
