package pactrecord

import (
	"strconv"
	"strings"
)

// keySegment is one step of a dotted/bracketed key path. A segment is either
// a map key or an array index.
type keySegment struct {
	key     string
	index   int
	isIndex bool
}

// parseKeyPath splits a path such as `response.body.items[0].name` or
// `request.headers["X-XSRF-TOKEN"]` into typed segments.
func parseKeyPath(path string) []keySegment {
	var segments []keySegment
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			segments = append(segments, keySegment{key: current.String()})
			current.Reset()
		}
	}

	for i := 0; i < len(path); i++ {
		switch path[i] {
		case '.':
			flush()
		case '[':
			flush()
			closing := strings.IndexByte(path[i:], ']')
			if closing < 0 {
				// unterminated bracket, treat the rest as a literal key
				current.WriteString(path[i:])
				i = len(path)
				break
			}
			inner := path[i+1 : i+closing]
			i += closing
			inner = strings.Trim(inner, `"'`)
			if index, err := strconv.Atoi(inner); err == nil {
				segments = append(segments, keySegment{index: index, isIndex: true})
			} else if inner != "" {
				segments = append(segments, keySegment{key: inner})
			}
		default:
			current.WriteByte(path[i])
		}
	}
	flush()
	return segments
}

// findMapKey returns the concrete key of m matching want, honouring
// case-insensitive lookup.
func findMapKey(m map[string]interface{}, want string, ignoreCase bool) (string, bool) {
	if _, ok := m[want]; ok {
		return want, true
	}
	if !ignoreCase {
		return "", false
	}
	for k := range m {
		if strings.EqualFold(k, want) {
			return k, true
		}
	}
	return "", false
}

// resolveKeyPath walks a generic tree down to the parent of the final
// segment. It returns the parent container together with the resolved final
// segment, or ok=false when any segment is absent. It never panics on
// mismatched shapes.
func resolveKeyPath(root interface{}, segments []keySegment, ignoreCase bool) (parent interface{}, last keySegment, ok bool) {
	if len(segments) == 0 {
		return nil, keySegment{}, false
	}

	node := root
	for i := 0; i < len(segments)-1; i++ {
		seg := segments[i]
		switch v := node.(type) {
		case map[string]interface{}:
			if seg.isIndex {
				return nil, keySegment{}, false
			}
			key, found := findMapKey(v, seg.key, ignoreCase)
			if !found {
				return nil, keySegment{}, false
			}
			node = v[key]
		case []interface{}:
			if !seg.isIndex || seg.index < 0 || seg.index >= len(v) {
				return nil, keySegment{}, false
			}
			node = v[seg.index]
		default:
			return nil, keySegment{}, false
		}
	}

	last = segments[len(segments)-1]
	switch v := node.(type) {
	case map[string]interface{}:
		if last.isIndex {
			return nil, keySegment{}, false
		}
		key, found := findMapKey(v, last.key, ignoreCase)
		if !found {
			return nil, keySegment{}, false
		}
		return v, keySegment{key: key}, true
	case []interface{}:
		if !last.isIndex || last.index < 0 || last.index >= len(v) {
			return nil, keySegment{}, false
		}
		return v, last, true
	default:
		return nil, keySegment{}, false
	}
}
