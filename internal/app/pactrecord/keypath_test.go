package pactrecord

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeyPath(t *testing.T) {
	tests := []struct {
		name string
		path string
		want []keySegment
	}{
		{
			name: "dotted path",
			path: "response.body.name",
			want: []keySegment{{key: "response"}, {key: "body"}, {key: "name"}},
		},
		{
			name: "array index",
			path: "body.items[2].id",
			want: []keySegment{{key: "body"}, {key: "items"}, {index: 2, isIndex: true}, {key: "id"}},
		},
		{
			name: "quoted bracket key",
			path: `request.headers["X-XSRF-TOKEN"]`,
			want: []keySegment{{key: "request"}, {key: "headers"}, {key: "X-XSRF-TOKEN"}},
		},
		{
			name: "single quoted bracket key",
			path: "body['password']",
			want: []keySegment{{key: "body"}, {key: "password"}},
		},
		{
			name: "empty path",
			path: "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseKeyPath(tt.path))
		})
	}
}

func TestResolveKeyPath(t *testing.T) {
	tree := map[string]interface{}{
		"Body": map[string]interface{}{
			"items": []interface{}{
				map[string]interface{}{"ID": "1"},
				map[string]interface{}{"ID": "2"},
			},
			"total": float64(2),
		},
	}

	t.Run("case insensitive walk", func(t *testing.T) {
		parent, last, ok := resolveKeyPath(tree, parseKeyPath("body.items[1].id"), true)
		require.True(t, ok)
		m, ok := parent.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "ID", last.key)
		assert.Equal(t, "2", m[last.key])
	})

	t.Run("case sensitive miss", func(t *testing.T) {
		_, _, ok := resolveKeyPath(tree, parseKeyPath("body.total"), false)
		assert.False(t, ok)
	})

	t.Run("absent segment", func(t *testing.T) {
		_, _, ok := resolveKeyPath(tree, parseKeyPath("body.missing.deeper"), true)
		assert.False(t, ok)
	})

	t.Run("index out of range", func(t *testing.T) {
		_, _, ok := resolveKeyPath(tree, parseKeyPath("body.items[5]"), true)
		assert.False(t, ok)
	})

	t.Run("index into object", func(t *testing.T) {
		_, _, ok := resolveKeyPath(tree, parseKeyPath("body[0]"), true)
		assert.False(t, ok)
	})

	t.Run("key into scalar", func(t *testing.T) {
		_, _, ok := resolveKeyPath(tree, parseKeyPath("body.total.nested"), true)
		assert.False(t, ok)
	})
}
