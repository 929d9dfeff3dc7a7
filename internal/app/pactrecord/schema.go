package pactrecord

import (
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// JSONSchemaMatcher validates record bodies against the JSON schema stored in
// a record's $body field. Compiled schemas are cached by their serialized
// form, since the same expected record is typically matched many times during
// a replay session.
type JSONSchemaMatcher struct {
	mu       sync.Mutex
	compiled map[string]*jsonschema.Schema
}

func NewJSONSchemaMatcher() *JSONSchemaMatcher {
	return &JSONSchemaMatcher{compiled: map[string]*jsonschema.Schema{}}
}

func (m *JSONSchemaMatcher) MatchSchema(schema, value interface{}) error {
	compiled, err := m.compile(schema)
	if err != nil {
		return err
	}
	if err := compiled.Validate(value); err != nil {
		return errors.Wrap(err, "body does not match schema")
	}
	return nil
}

func (m *JSONSchemaMatcher) compile(schema interface{}) (*jsonschema.Schema, error) {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, errors.Wrap(err, "unable to serialize schema")
	}

	key := string(data)
	m.mu.Lock()
	defer m.mu.Unlock()
	if compiled, ok := m.compiled[key]; ok {
		return compiled, nil
	}

	compiled, err := jsonschema.CompileString("schema.json", key)
	if err != nil {
		return nil, errors.Wrap(err, "unable to compile schema")
	}
	m.compiled[key] = compiled
	return compiled, nil
}
