package pactrecord

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordFor(method, url string) *Record {
	return &Record{
		Request:  RecordRequest{Method: method, URL: url},
		Response: RecordResponse{Status: 200},
	}
}

func taggedRecord(method, url, tag string) *Record {
	r := recordFor(method, url)
	r.Options = &RecordOptions{RequestID: tag}
	return r
}

func TestNormalizePactID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Simple Test", "simple-test"},
		{"alarms -- overview", "alarms-overview"},
		{"UPPER_case-mixed", "upper_case-mixed"},
		{"trailing!!", "trailing"},
		{"ümläut tèst", "ml-ut-t-st"},
		{"!!!", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePactID(tt.in))
		})
	}
}

func TestNewPactRejectsInvalidID(t *testing.T) {
	_, err := NewPact("!!!", PactInfo{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid pact id")

	pact, err := NewPact("My Test", PactInfo{})
	require.NoError(t, err)
	assert.Equal(t, "my-test", pact.ID)
}

func TestNextRecordSequential(t *testing.T) {
	pact, err := NewPact("cursor", PactInfo{})
	require.NoError(t, err)
	const n = 3
	for i := 0; i < n; i++ {
		pact.AppendRecord(recordFor("GET", fmt.Sprintf("/r/%d", i)), false)
	}

	// N records come back in order, then nil
	for i := 0; i < n; i++ {
		record := pact.NextRecord("")
		require.NotNil(t, record)
		assert.Equal(t, fmt.Sprintf("/r/%d", i), record.Request.URL)
	}
	assert.Nil(t, pact.NextRecord(""))
}

func TestNextRecordTagIsExclusiveFilter(t *testing.T) {
	pact, err := NewPact("tags", PactInfo{})
	require.NoError(t, err)
	pact.AppendRecord(taggedRecord("GET", "/0", "A"), false)
	pact.AppendRecord(taggedRecord("GET", "/1", "B"), false)
	pact.AppendRecord(taggedRecord("GET", "/2", "A"), false)

	first := pact.NextRecord("A")
	require.NotNil(t, first)
	assert.Equal(t, "/0", first.Request.URL)

	second := pact.NextRecord("A")
	require.NotNil(t, second)
	assert.Equal(t, "/2", second.Request.URL)

	assert.Nil(t, pact.NextRecord("A"))
}

func TestNextRecordTagSkipsUntagged(t *testing.T) {
	pact, err := NewPact("tags", PactInfo{})
	require.NoError(t, err)
	pact.AppendRecord(recordFor("GET", "/untagged"), false)
	pact.AppendRecord(taggedRecord("GET", "/tagged", "A"), false)

	record := pact.NextRecord("A")
	require.NotNil(t, record)
	assert.Equal(t, "/tagged", record.Request.URL)
}

func TestNextRecordEmptyPactIsExhausted(t *testing.T) {
	pact, err := NewPact("empty", PactInfo{})
	require.NoError(t, err)
	assert.Nil(t, pact.NextRecord(""))
	assert.Nil(t, pact.NextRecord("A"))
}

func TestResetCursor(t *testing.T) {
	pact, err := NewPact("reset", PactInfo{})
	require.NoError(t, err)
	pact.AppendRecord(recordFor("GET", "/a"), false)

	require.NotNil(t, pact.NextRecord(""))
	require.Nil(t, pact.NextRecord(""))

	pact.ResetCursor()
	assert.NotNil(t, pact.NextRecord(""))
}

func TestNextRecordMatchingRequest(t *testing.T) {
	pact, err := NewPact("content", PactInfo{})
	require.NoError(t, err)
	pact.AppendRecord(recordFor("GET", "/alarms"), false)
	pact.AppendRecord(recordFor("POST", "/alarms"), false)
	pact.AppendRecord(recordFor("GET", "/events?pageSize=5"), false)

	t.Run("method and url", func(t *testing.T) {
		record := pact.NextRecordMatchingRequest("post", "/alarms", nil)
		require.NotNil(t, record)
		assert.Equal(t, "POST", record.Request.Method)
	})

	t.Run("absolute live url", func(t *testing.T) {
		record := pact.NextRecordMatchingRequest("GET", "https://tenant.example.com/alarms", nil)
		require.NotNil(t, record)
		assert.Equal(t, "/alarms", record.Request.URL)
	})

	t.Run("query is significant", func(t *testing.T) {
		assert.Nil(t, pact.NextRecordMatchingRequest("GET", "/events?pageSize=10", nil))
		assert.NotNil(t, pact.NextRecordMatchingRequest("GET", "/events?pageSize=5", nil))
	})

	t.Run("does not advance the cursor", func(t *testing.T) {
		fresh, err := NewPact("content2", PactInfo{})
		require.NoError(t, err)
		fresh.AppendRecord(recordFor("GET", "/a"), false)
		require.NotNil(t, fresh.NextRecordMatchingRequest("GET", "/a", nil))
		assert.NotNil(t, fresh.NextRecord(""))
	})

	t.Run("body shape participates", func(t *testing.T) {
		fresh, err := NewPact("content3", PactInfo{})
		require.NoError(t, err)
		withBody := recordFor("POST", "/measurements")
		withBody.Request.Body = map[string]interface{}{"type": "c8y_Temperature"}
		fresh.AppendRecord(withBody, false)

		assert.Nil(t, fresh.NextRecordMatchingRequest("POST", "/measurements",
			map[string]interface{}{"type": "c8y_Pressure"}))
		assert.NotNil(t, fresh.NextRecordMatchingRequest("POST", "/measurements",
			map[string]interface{}{"type": "c8y_Temperature", "extra": 1}))
	})
}

func TestAppendRecord(t *testing.T) {
	pact, err := NewPact("append", PactInfo{})
	require.NoError(t, err)

	assert.True(t, pact.AppendRecord(recordFor("GET", "/a"), false))
	assert.True(t, pact.AppendRecord(recordFor("GET", "/a"), false))
	assert.Equal(t, 2, pact.Len())

	// asNew dedups by method+url
	assert.False(t, pact.AppendRecord(recordFor("GET", "/a"), true))
	assert.True(t, pact.AppendRecord(recordFor("POST", "/a"), true))
	assert.Equal(t, 3, pact.Len())
}

func TestReplaceRecord(t *testing.T) {
	pact, err := NewPact("replace", PactInfo{})
	require.NoError(t, err)
	original := recordFor("GET", "/a")
	original.Response.Status = 200
	pact.AppendRecord(original, false)
	pact.AppendRecord(recordFor("GET", "/b"), false)

	replacement := recordFor("GET", "/a")
	replacement.Response.Status = 503
	assert.True(t, pact.ReplaceRecord(replacement))
	assert.Equal(t, 2, pact.Len())
	assert.Equal(t, 503, pact.Records[0].Response.Status)

	// no equivalent request appends
	assert.True(t, pact.ReplaceRecord(recordFor("GET", "/c")))
	assert.Equal(t, 3, pact.Len())
}

func TestClearRecords(t *testing.T) {
	pact, err := NewPact("clear", PactInfo{})
	require.NoError(t, err)
	pact.AppendRecord(recordFor("GET", "/a"), false)
	require.NotNil(t, pact.NextRecord(""))

	pact.ClearRecords()
	assert.Equal(t, 0, pact.Len())
	assert.Nil(t, pact.NextRecord(""))

	// cursor restarts for new records
	pact.AppendRecord(recordFor("GET", "/b"), false)
	assert.NotNil(t, pact.NextRecord(""))
}

func TestPactClone(t *testing.T) {
	pact, err := NewPact("clone", PactInfo{Tenant: "t12345"})
	require.NoError(t, err)
	pact.AppendRecord(recordFor("GET", "/a"), false)

	clone := pact.Clone()
	require.NotNil(t, clone)
	clone.Records[0].Response.Status = 500

	assert.Equal(t, 200, pact.Records[0].Response.Status)
	assert.Equal(t, "t12345", clone.Info.Tenant)
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/path", "/path"},
		{"path", "/path"},
		{"https://host.example.com/path", "/path"},
		{"https://host.example.com/path?q=1", "/path?q=1"},
		{"/path?q=1", "/path?q=1"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeURL(tt.in))
	}
}
