// Package evidence unifies the three kinds of state a scenario can assert
// on: SQL result values, fields of the endpoint's JSON metrics document, and
// literal lines in its raw process log. Scenarios compose Checks without
// caring which source each one reads.
package evidence

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// Sources bundles the evidence surfaces of one endpoint. Each accessor is
// invoked lazily, only when a check needs that source.
type Sources struct {
	Query   func(ctx context.Context, stmt string) ([][]interface{}, error)
	Metrics func(ctx context.Context) (ldvalue.Value, error)
	Log     func() (string, error)
}

// Memoized returns a Sources whose metrics document and log text are
// fetched at most once, so a list of checks over the same surface does not
// re-read it. Query is left uncached: repeating a statement is an
// intentional re-read of live state.
func (s Sources) Memoized() Sources {
	out := s
	if s.Metrics != nil {
		var (
			fetched bool
			doc     ldvalue.Value
			err     error
		)
		out.Metrics = func(ctx context.Context) (ldvalue.Value, error) {
			if !fetched {
				doc, err = s.Metrics(ctx)
				fetched = true
			}
			return doc, err
		}
	}
	if s.Log != nil {
		var (
			fetched bool
			text    string
			err     error
		)
		out.Log = func() (string, error) {
			if !fetched {
				text, err = s.Log()
				fetched = true
			}
			return text, err
		}
	}
	return out
}

// Check is one literal expected condition against some evidence source. A
// failed check's error names the check and the expected-vs-actual values.
type Check interface {
	Describe() string
	Check(ctx context.Context, src Sources) error
}

// Evaluate applies the checks in order and stops at the first failure
// (fail-fast: no further evidence is collected once one check fails).
func Evaluate(ctx context.Context, src Sources, checks ...Check) error {
	for _, check := range checks {
		if err := check.Check(ctx, src); err != nil {
			return err
		}
	}
	return nil
}

// QueryEquals asserts that a statement's first result value exactly equals
// Want.
type QueryEquals struct {
	SQL  string
	Want interface{}
}

func (c QueryEquals) Describe() string {
	return fmt.Sprintf("query-equals(%q == %v)", c.SQL, c.Want)
}

func (c QueryEquals) Check(ctx context.Context, src Sources) error {
	rows, err := src.Query(ctx, c.SQL)
	if err != nil {
		return fmt.Errorf("%s: %w", c.Describe(), err)
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return fmt.Errorf("%s: query returned no rows", c.Describe())
	}
	got := rows[0][0]
	if !valuesEqual(c.Want, got) {
		return fmt.Errorf("%s: expected %v, got %v", c.Describe(), c.Want, got)
	}
	return nil
}

// FieldPresent asserts that the metrics document contains Key with a numeric
// value. A missing field signals an instrumentation regression in the
// service and must not be silently skipped.
type FieldPresent struct {
	Key string
}

func (c FieldPresent) Describe() string {
	return fmt.Sprintf("field-present(%q)", c.Key)
}

func (c FieldPresent) Check(ctx context.Context, src Sources) error {
	_, err := numericField(ctx, src, c.Key, c.Describe())
	return err
}

// FieldNonNegative asserts that the metrics document contains Key as a
// number greater than or equal to zero.
type FieldNonNegative struct {
	Key string
}

func (c FieldNonNegative) Describe() string {
	return fmt.Sprintf("field-non-negative(%q)", c.Key)
}

func (c FieldNonNegative) Check(ctx context.Context, src Sources) error {
	value, err := numericField(ctx, src, c.Key, c.Describe())
	if err != nil {
		return err
	}
	if value < 0 {
		return fmt.Errorf("%s: expected a non-negative number, got %g", c.Describe(), value)
	}
	return nil
}

// LogContains asserts that the raw log text contains the literal string.
type LogContains struct {
	Literal string
}

func (c LogContains) Describe() string {
	return fmt.Sprintf("log-contains(%q)", c.Literal)
}

func (c LogContains) Check(ctx context.Context, src Sources) error {
	logText, err := src.Log()
	if err != nil {
		return fmt.Errorf("%s: %w", c.Describe(), err)
	}
	if !strings.Contains(logText, c.Literal) {
		return fmt.Errorf("%s: log does not contain the expected line", c.Describe())
	}
	return nil
}

func numericField(ctx context.Context, src Sources, key, describe string) (float64, error) {
	doc, err := src.Metrics(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", describe, err)
	}
	field, ok := doc.TryGetByKey(key)
	if !ok {
		return 0, fmt.Errorf("%s: key is missing from the metrics document", describe)
	}
	if !field.IsNumber() {
		return 0, fmt.Errorf("%s: expected a number, got %s (%s)", describe, field.JSONString(), field.Type())
	}
	return field.Float64Value(), nil
}

// valuesEqual compares with exact equality after normalizing integer widths,
// since drivers return int32 or int64 depending on the column type.
func valuesEqual(want, got interface{}) bool {
	wantInt, wantIsInt := asInt64(want)
	gotInt, gotIsInt := asInt64(got)
	if wantIsInt && gotIsInt {
		return wantInt == gotInt
	}
	return want == got
}

func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}
