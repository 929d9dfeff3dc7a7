package pactrecord

import (
	"strings"
)

// Preprocessor removes or masks sensitive key paths on records before they
// are persisted or compared. Paths pointing at nothing are skipped silently,
// so the same option set can be applied to records of any shape.
type Preprocessor struct {
	Options *PreprocessorOptions
}

func NewPreprocessor(options *PreprocessorOptions) *Preprocessor {
	return &Preprocessor{Options: options}
}

// ApplyToPact runs the preprocessor over every record of the pact. The pact's
// own id, info and records keys are never targets; paths are resolved
// relative to each record.
func (p *Preprocessor) ApplyToPact(pact *Pact, callOptions ...*PreprocessorOptions) {
	if pact == nil {
		return
	}
	for _, record := range pact.Records {
		p.ApplyToRecord(record, callOptions...)
	}
}

// ApplyToRecord transforms the record in place. Per-call options override the
// preprocessor's configured options.
func (p *Preprocessor) ApplyToRecord(record *Record, callOptions ...*PreprocessorOptions) {
	if record == nil {
		return
	}
	sources := append([]*PreprocessorOptions{p.Options}, callOptions...)
	options := MergePreprocessorOptions(sources...)

	for _, path := range options.Ignore {
		applyToRecordPath(record, path, options.ignoreCase(), removeValue)
	}
	pattern := options.pattern()
	for _, path := range options.Obfuscate {
		applyToRecordPath(record, path, options.ignoreCase(), func(parent interface{}, seg keySegment) {
			obfuscateValue(parent, seg, pattern)
		})
	}
}

func removeValue(parent interface{}, seg keySegment) {
	switch v := parent.(type) {
	case map[string]interface{}:
		delete(v, seg.key)
	case []interface{}:
		// array elements cannot be spliced from here, null them out instead
		v[seg.index] = nil
	}
}

func obfuscateValue(parent interface{}, seg keySegment, pattern string) {
	switch v := parent.(type) {
	case map[string]interface{}:
		v[seg.key] = pattern
	case []interface{}:
		v[seg.index] = pattern
	}
}

// applyToRecordPath resolves one key path against a record. The first segment
// selects request or response, the second a field of it; anything deeper is
// resolved generically inside headers or the body tree.
func applyToRecordPath(record *Record, path string, ignoreCase bool, apply func(parent interface{}, seg keySegment)) {
	segments := parseKeyPath(path)
	if len(segments) < 2 || segments[0].isIndex || segments[1].isIndex {
		return
	}

	var headers map[string]string
	var body interface{}
	var setBody func(interface{})
	switch strings.ToLower(segments[0].key) {
	case "request":
		headers = record.Request.Headers
		body = record.Request.Body
		setBody = func(v interface{}) { record.Request.Body = v }
	case "response":
		headers = record.Response.Headers
		body = record.Response.Body
		setBody = func(v interface{}) { record.Response.Body = v }
	default:
		return
	}

	switch strings.ToLower(segments[1].key) {
	case "headers":
		if len(segments) != 3 || segments[2].isIndex || headers == nil {
			return
		}
		applyToHeader(headers, segments[2].key, ignoreCase, apply)
	case "body":
		if len(segments) == 2 {
			// the whole body is the target
			wrapper := map[string]interface{}{"body": body}
			apply(wrapper, keySegment{key: "body"})
			setBody(wrapper["body"])
			return
		}
		if parent, last, ok := resolveKeyPath(body, segments[2:], ignoreCase); ok {
			apply(parent, last)
		}
	}
}

func applyToHeader(headers map[string]string, name string, ignoreCase bool, apply func(parent interface{}, seg keySegment)) {
	match := ""
	if _, ok := headers[name]; ok {
		match = name
	} else if ignoreCase {
		for k := range headers {
			if strings.EqualFold(k, name) {
				match = k
				break
			}
		}
	}
	if match == "" {
		return
	}

	// route through a generic map so remove and obfuscate share one shape
	wrapper := map[string]interface{}{match: headers[match]}
	apply(wrapper, keySegment{key: match})
	if value, ok := wrapper[match]; ok {
		if s, ok := value.(string); ok {
			headers[match] = s
		}
	} else {
		delete(headers, match)
	}
}
