package pactrecord

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

var (
	invalidIDChars = regexp.MustCompile(`[^a-z0-9_-]+`)
	dashRuns       = regexp.MustCompile(`-{2,}`)
)

// NormalizePactID lowercases the identifier and collapses anything outside
// [a-z0-9_-] into single dashes.
func NormalizePactID(id string) string {
	normalized := strings.ToLower(strings.TrimSpace(id))
	normalized = invalidIDChars.ReplaceAllString(normalized, "-")
	normalized = dashRuns.ReplaceAllString(normalized, "-")
	return strings.Trim(normalized, "-")
}

type NameVersion struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

// PactInfo is the metadata block persisted alongside the records.
type PactInfo struct {
	Producer      *NameVersion         `json:"producer,omitempty"`
	Consumer      *NameVersion         `json:"consumer,omitempty"`
	BaseURL       string               `json:"baseUrl,omitempty"`
	Tenant        string               `json:"tenant,omitempty"`
	Title         []string             `json:"title,omitempty"`
	Description   string               `json:"description,omitempty"`
	Tags          []string             `json:"tags,omitempty"`
	RecordingMode RecordingMode        `json:"recordingMode,omitempty"`
	StrictMocking bool                 `json:"strictMocking,omitempty"`
	Preprocessor  *PreprocessorOptions `json:"preprocessor,omitempty"`
	Version       string               `json:"version,omitempty"`
	SessionID     string               `json:"sessionId,omitempty"`
}

// Pact is a named, ordered collection of recorded exchanges. The replay
// cursor is session state and is not persisted.
type Pact struct {
	ID      string    `json:"id"`
	Info    PactInfo  `json:"info"`
	Records []*Record `json:"records"`

	mu     sync.Mutex
	cursor int
}

// NewPact creates an empty pact for a normalized identifier. An identifier
// that normalizes to the empty string is invalid.
func NewPact(id string, info PactInfo) (*Pact, error) {
	normalized := NormalizePactID(id)
	if normalized == "" {
		return nil, errors.Errorf("invalid pact id %q", id)
	}
	return &Pact{ID: normalized, Info: info}, nil
}

func (p *Pact) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Records)
}

// ResetCursor rewinds sequential replay to the first record.
func (p *Pact) ResetCursor() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursor = 0
}

// NextRecord advances the replay cursor. With a requestID tag the cursor
// skips forward past records carrying a different tag; the tag acts as an
// exclusive filter, untagged records are skipped too. Without a tag the
// record at the cursor is returned. Returns nil when exhausted.
func (p *Pact) NextRecord(requestID string) *Record {
	p.mu.Lock()
	defer p.mu.Unlock()

	if requestID == "" {
		if p.cursor >= len(p.Records) {
			return nil
		}
		record := p.Records[p.cursor]
		p.cursor++
		return record
	}

	for i := p.cursor; i < len(p.Records); i++ {
		if p.Records[i].RequestID() == requestID {
			p.cursor = i + 1
			return p.Records[i]
		}
	}
	p.cursor = len(p.Records)
	return nil
}

// NextRecordMatchingRequest selects the first record whose request shape
// matches the live request, without touching the cursor. Used in pure mock
// mode where replay order is not guaranteed to equal recording order.
func (p *Pact) NextRecordMatchingRequest(method, rawURL string, body interface{}) *Record {
	p.mu.Lock()
	defer p.mu.Unlock()

	liveURL := normalizeURL(rawURL)
	for _, record := range p.Records {
		if !strings.EqualFold(record.Request.Method, method) {
			continue
		}
		if normalizeURL(record.Request.URL) != liveURL {
			continue
		}
		if record.Request.Body != nil && body != nil {
			if err := matchValue("request.body", record.Request.Body, body); err != nil {
				continue
			}
		}
		return record
	}
	return nil
}

// AppendRecord adds the record to the end of the sequence. With asNew it is
// added only if no record with an equivalent request (method+url) exists.
func (p *Pact) AppendRecord(record *Record, asNew bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if asNew && p.indexOfRequest(record) >= 0 {
		return false
	}
	p.Records = append(p.Records, record)
	return true
}

// ReplaceRecord overwrites the first record with an equivalent request, or
// appends when none exists.
func (p *Pact) ReplaceRecord(record *Record) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if i := p.indexOfRequest(record); i >= 0 {
		p.Records[i] = record
		return true
	}
	p.Records = append(p.Records, record)
	return true
}

// ClearRecords empties the sequence and resets the cursor.
func (p *Pact) ClearRecords() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Records = nil
	p.cursor = 0
}

// Clone deep-copies the pact's persistent state. The cursor starts fresh.
func (p *Pact) Clone() *Pact {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := json.Marshal(p)
	if err != nil {
		return nil
	}
	clone := &Pact{}
	if err := json.Unmarshal(data, clone); err != nil {
		return nil
	}
	return clone
}

func (p *Pact) indexOfRequest(record *Record) int {
	recordURL := normalizeURL(record.Request.URL)
	for i, existing := range p.Records {
		if strings.EqualFold(existing.Request.Method, record.Request.Method) &&
			normalizeURL(existing.Request.URL) == recordURL {
			return i
		}
	}
	return -1
}

// normalizeURL reduces absolute URLs to path?query so that recorded and live
// requests compare regardless of the base URL in use at capture time.
func normalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	result := u.Path
	if !strings.HasPrefix(result, "/") {
		result = "/" + result
	}
	if u.RawQuery != "" {
		result += "?" + u.RawQuery
	}
	return result
}
