package pactrecord

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Matcher decides whether a live record is the same interaction as an
// expected one. Implementations return a descriptive error naming the first
// mismatching path instead of a bare false.
type Matcher interface {
	Match(expected, actual *Record, strict bool) error
}

// SchemaMatcher validates a value against a JSON schema taken from a
// record's $body field.
type SchemaMatcher interface {
	MatchSchema(schema, value interface{}) error
}

// MatchError describes the outermost failing path of a record comparison.
type MatchError struct {
	Path     string
	Expected interface{}
	Actual   interface{}
	Reason   string
}

func (e *MatchError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("pact record mismatch at %q: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("pact record mismatch at %q: expected %v, actual %v", e.Path, e.Expected, e.Actual)
}

func mismatch(path string, expected, actual interface{}) *MatchError {
	return &MatchError{Path: path, Expected: expected, Actual: actual}
}

// RecordMatcher is the default structural matcher. The schema matcher is
// pluggable; when nil, $body schemas are ignored.
type RecordMatcher struct {
	Schema SchemaMatcher
	// MatchSchemaAndObject runs the structural body comparison in addition
	// to schema validation when a $body schema is present. Default is to
	// let the schema replace the structural body match.
	MatchSchemaAndObject bool
}

func NewRecordMatcher() *RecordMatcher {
	return &RecordMatcher{Schema: NewJSONSchemaMatcher()}
}

func (m *RecordMatcher) Match(expected, actual *Record, strict bool) error {
	if expected == nil || actual == nil {
		return &MatchError{Path: "record", Reason: "record is missing"}
	}

	if expected.Request.Method != "" && actual.Request.Method != "" &&
		!strings.EqualFold(expected.Request.Method, actual.Request.Method) {
		return mismatch("request.method", expected.Request.Method, actual.Request.Method)
	}

	if expected.Request.URL != "" && actual.Request.URL != "" {
		expectedURL := normalizeURL(expected.Request.URL)
		actualURL := normalizeURL(actual.Request.URL)
		if expectedURL != actualURL {
			return mismatch("request.url", expectedURL, actualURL)
		}
	}

	// a status mismatch is a hard failure regardless of strictness
	if expected.Response.Status != 0 && actual.Response.Status != 0 &&
		expected.Response.Status != actual.Response.Status {
		return mismatch("response.status", expected.Response.Status, actual.Response.Status)
	}

	schemaMatched := false
	if expected.Response.BodySchema != nil && m.Schema != nil {
		if err := m.Schema.MatchSchema(expected.Response.BodySchema, actual.Response.Body); err != nil {
			return &MatchError{Path: "response.body", Reason: err.Error()}
		}
		schemaMatched = true
	}

	if !strict {
		return nil
	}

	if err := matchHeaders("request.headers", expected.Request.Headers, actual.Request.Headers); err != nil {
		return err
	}
	if err := matchValue("request.body", expected.Request.Body, actual.Request.Body); err != nil {
		return err
	}
	if err := matchHeaders("response.headers", expected.Response.Headers, actual.Response.Headers); err != nil {
		return err
	}
	if !schemaMatched || m.MatchSchemaAndObject {
		if err := matchValue("response.body", expected.Response.Body, actual.Response.Body); err != nil {
			return err
		}
	}
	if expected.Response.StatusText != "" && actual.Response.StatusText != "" &&
		expected.Response.StatusText != actual.Response.StatusText {
		return mismatch("response.statusText", expected.Response.StatusText, actual.Response.StatusText)
	}
	return nil
}

// matchHeaders requires every expected header to be present in actual, with
// case-insensitive names. Extra actual headers are tolerated.
func matchHeaders(path string, expected, actual map[string]string) error {
	for name, want := range expected {
		got, ok := lookupHeader(actual, name)
		if !ok {
			return &MatchError{Path: path + "." + name, Expected: want, Reason: "header is missing"}
		}
		if got != want {
			return mismatch(path+"."+name, want, got)
		}
	}
	return nil
}

func lookupHeader(headers map[string]string, name string) (string, bool) {
	if v, ok := headers[name]; ok {
		return v, true
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// matchValue compares generic JSON trees. Every key present in expected must
// exist and match in actual; extra actual keys are tolerated. Arrays compare
// element-wise by index.
func matchValue(path string, expected, actual interface{}) error {
	if expected == nil {
		return nil
	}

	switch want := expected.(type) {
	case map[string]interface{}:
		got, ok := actual.(map[string]interface{})
		if !ok {
			return mismatch(path, expected, actual)
		}
		for key, wantValue := range want {
			gotValue, present := got[key]
			if !present {
				return &MatchError{Path: path + "." + key, Expected: wantValue, Reason: "key is missing"}
			}
			if err := matchValue(path+"."+key, wantValue, gotValue); err != nil {
				return err
			}
		}
		return nil
	case []interface{}:
		got, ok := actual.([]interface{})
		if !ok {
			return mismatch(path, expected, actual)
		}
		if len(got) < len(want) {
			return &MatchError{Path: path, Expected: len(want), Actual: len(got), Reason: fmt.Sprintf("expected at least %d elements, got %d", len(want), len(got))}
		}
		for i, wantValue := range want {
			if err := matchValue(fmt.Sprintf("%s[%d]", path, i), wantValue, got[i]); err != nil {
				return err
			}
		}
		return nil
	default:
		if !primitiveEqual(expected, actual) {
			return mismatch(path, expected, actual)
		}
		return nil
	}
}

// primitiveEqual compares scalar JSON values, treating all numeric types as
// the same domain.
func primitiveEqual(a, b interface{}) bool {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return ok && af == bf
	}
	return a == b
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
