package dataset

import (
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/YuminosukeSato/claimrate/pkg/errors"
)

// celCostLimit bounds the work a single row predicate may do.
const celCostLimit = 1000000

// RecordFilter keeps the records for which a CEL expression evaluates to true.
// The expression sees one variable per column in snake_case, for example
//
//	policy_status == "Firm Order" && premium > 0.0
//
// A nil or empty filter keeps every record.
type RecordFilter struct {
	expr string
	prog cel.Program
}

// NewRecordFilter compiles expr. The expression must type-check to bool.
// An empty expression yields a filter that keeps everything.
func NewRecordFilter(expr string) (*RecordFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return &RecordFilter{}, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("inception_date", cel.StringType),
		cel.Variable("expiration_date", cel.StringType),
		cel.Variable("policy_status", cel.StringType),
		cel.Variable("policies_per_document", cel.IntType),
		cel.Variable("new_renewal", cel.StringType),
		cel.Variable("business_type_code", cel.StringType),
		cel.Variable("postal_code", cel.StringType),
		cel.Variable("three_year_claims", cel.DoubleType),
		cel.Variable("premium", cel.DoubleType),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create CEL environment")
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, errors.NewValidationError("row_filter", issues.Err().Error(), expr)
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, errors.NewValidationError("row_filter",
			"expression must evaluate to bool, got "+ast.OutputType().String(), expr)
	}

	prog, err := env.Program(ast, cel.CostLimit(celCostLimit))
	if err != nil {
		return nil, errors.Wrap(err, "create CEL program")
	}
	return &RecordFilter{expr: expr, prog: prog}, nil
}

// Expression returns the source expression, empty when the filter is a no-op.
func (f *RecordFilter) Expression() string {
	if f == nil {
		return ""
	}
	return f.expr
}

// Match reports whether rec satisfies the filter.
func (f *RecordFilter) Match(rec ClaimsRecord) (bool, error) {
	if f == nil || f.prog == nil {
		return true, nil
	}
	out, _, err := f.prog.Eval(map[string]any{
		"inception_date":        rec.InceptionDate,
		"expiration_date":       rec.ExpirationDate,
		"policy_status":         rec.PolicyStatus,
		"policies_per_document": int64(rec.PoliciesPerDocument),
		"new_renewal":           rec.NewRenewal,
		"business_type_code":    rec.BusinessTypeCode,
		"postal_code":           rec.PostalCode,
		"three_year_claims":     rec.ThreeYearClaims,
		"premium":               rec.Premium,
	})
	if err != nil {
		return false, errors.Wrapf(err, "evaluate row filter %q", f.expr)
	}
	matched, ok := out.Value().(bool)
	return ok && matched, nil
}

// Filter returns the records that match, in their original order.
func (f *RecordFilter) Filter(records []ClaimsRecord) ([]ClaimsRecord, error) {
	if f == nil || f.prog == nil {
		return records, nil
	}
	kept := make([]ClaimsRecord, 0, len(records))
	for _, rec := range records {
		ok, err := f.Match(rec)
		if err != nil {
			return nil, err
		}
		if ok {
			kept = append(kept, rec)
		}
	}
	return kept, nil
}
