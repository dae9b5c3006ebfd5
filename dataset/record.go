// Package dataset reads the tab-separated claims file into ClaimsRecord values.
//
// Each line holds nine fields without a header:
//
//	InceptionDate  ExpirationDate  PolicyStatus  PoliciesPerDocument  NewRenewal
//	BusinessTypeCode  PostalCode  ThreeYearClaims  Premium
//
// Premium is the regression label.
package dataset

import (
	"github.com/rs/zerolog"
)

// Column names in file order.
const (
	ColInceptionDate       = "InceptionDate"
	ColExpirationDate      = "ExpirationDate"
	ColPolicyStatus        = "PolicyStatus"
	ColPoliciesPerDocument = "PoliciesPerDocument"
	ColNewRenewal          = "NewRenewal"
	ColBusinessTypeCode    = "BusinessTypeCode"
	ColPostalCode          = "PostalCode"
	ColThreeYearClaims     = "ThreeYearClaims"
	ColPremium             = "Premium"
)

// Columns lists the nine fields in the order they appear on a line.
var Columns = []string{
	ColInceptionDate,
	ColExpirationDate,
	ColPolicyStatus,
	ColPoliciesPerDocument,
	ColNewRenewal,
	ColBusinessTypeCode,
	ColPostalCode,
	ColThreeYearClaims,
	ColPremium,
}

// DefaultSeparator is the field separator of the claims file.
const DefaultSeparator = '\t'

// ClaimsRecord is one policy row. Dates are opaque category strings.
// PolicyStatus is read but never featurized.
type ClaimsRecord struct {
	InceptionDate       string
	ExpirationDate      string
	PolicyStatus        string
	PoliciesPerDocument int
	NewRenewal          string
	BusinessTypeCode    string
	PostalCode          string
	ThreeYearClaims     float64
	Premium             float64
}

// Label returns the regression target.
func (r ClaimsRecord) Label() float64 {
	return r.Premium
}

// MarshalZerologObject adds the record's fields to a log event.
func (r ClaimsRecord) MarshalZerologObject(e *zerolog.Event) {
	e.Str("inception_date", r.InceptionDate).
		Str("expiration_date", r.ExpirationDate).
		Str("policy_status", r.PolicyStatus).
		Int("policies_per_document", r.PoliciesPerDocument).
		Str("new_renewal", r.NewRenewal).
		Str("business_type_code", r.BusinessTypeCode).
		Str("postal_code", r.PostalCode).
		Float64("three_year_claims", r.ThreeYearClaims).
		Float64("premium", r.Premium)
}

// PredictionResult holds the model output for one record.
type PredictionResult struct {
	PredictedRate float64
}
