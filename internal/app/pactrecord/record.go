package pactrecord

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	AuthTypeBasic  = "BasicAuth"
	AuthTypeBearer = "BearerAuth"
	AuthTypeCookie = "CookieAuth"
)

// Aliases holds one or more user aliases for a recorded exchange. A single
// alias is serialized as a plain string, multiple aliases as an ordered list.
type Aliases []string

func (a Aliases) MarshalJSON() ([]byte, error) {
	if len(a) == 1 {
		return json.Marshal(a[0])
	}
	return json.Marshal([]string(a))
}

func (a *Aliases) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*a = Aliases{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*a = Aliases(list)
	return nil
}

type Auth struct {
	Type      string  `json:"type,omitempty"`
	User      string  `json:"user,omitempty"`
	UserAlias Aliases `json:"userAlias,omitempty"`
}

// RecordOptions are per-record overrides for matching and replay.
type RecordOptions struct {
	Timeout          int    `json:"timeout,omitempty"`
	StrictMatching   *bool  `json:"strictMatching,omitempty"`
	FailOnStatusCode *bool  `json:"failOnStatusCode,omitempty"`
	RequestID        string `json:"requestId,omitempty"`
}

type RecordRequest struct {
	Method  string            `json:"method,omitempty"`
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    interface{}       `json:"body,omitempty"`
}

type RecordResponse struct {
	Status         int               `json:"status,omitempty"`
	StatusText     string            `json:"statusText,omitempty"`
	Headers        map[string]string `json:"headers,omitempty"`
	Body           interface{}       `json:"body,omitempty"`
	Duration       int64             `json:"duration,omitempty"`
	BodySchema     interface{}       `json:"$body,omitempty"`
	IsOkStatusCode bool              `json:"isOkStatusCode,omitempty"`
}

// Record is one captured HTTP exchange. Absent fields are omitted from the
// serialized form rather than written as null.
type Record struct {
	Request       RecordRequest  `json:"request"`
	Response      RecordResponse `json:"response"`
	Auth          *Auth          `json:"auth,omitempty"`
	Options       *RecordOptions `json:"options,omitempty"`
	CreatedObject string         `json:"createdObject,omitempty"`
}

// Exchange is the wire-level view of one proxied request/response pair, as
// captured by the controller before it is converted into a Record.
type Exchange struct {
	Method          string
	URL             string
	RequestHeaders  http.Header
	RequestBody     []byte
	Status          int
	StatusText      string
	ResponseHeaders http.Header
	ResponseBody    []byte
	Duration        time.Duration

	// Explicit client auth, takes precedence over auth sniffed from headers.
	ClientAuth *Auth
}

// RecordFromExchange converts a captured exchange into a Record. All nested
// values are built from the captured bytes, so later mutation of the exchange
// never leaks into the record.
func RecordFromExchange(ex *Exchange) *Record {
	r := &Record{
		Request: RecordRequest{
			Method:  ex.Method,
			URL:     ex.URL,
			Headers: flattenHeaders(ex.RequestHeaders),
			Body:    decodeBody(ex.RequestBody),
		},
		Response: RecordResponse{
			Status:         ex.Status,
			StatusText:     ex.StatusText,
			Headers:        flattenHeaders(ex.ResponseHeaders),
			Body:           decodeBody(ex.ResponseBody),
			Duration:       ex.Duration.Milliseconds(),
			IsOkStatusCode: ex.Status >= 200 && ex.Status < 400,
		},
	}
	if r.Response.StatusText == "" && ex.Status > 0 {
		r.Response.StatusText = http.StatusText(ex.Status)
	}
	r.Auth = detectAuth(ex)
	r.CreatedObject = extractCreatedObject(r)
	return r
}

// HTTPResponse rebuilds the replayable parts of the recorded response. The
// body is re-serialized, so the returned bytes are safe to modify.
func (r *Record) HTTPResponse() (status int, headers http.Header, body []byte, err error) {
	headers = make(http.Header, len(r.Response.Headers))
	for k, v := range r.Response.Headers {
		headers.Set(k, v)
	}
	body, err = encodeBody(r.Response.Body)
	if err != nil {
		return 0, nil, nil, err
	}
	return r.Response.Status, headers, body, nil
}

// Clone deep-copies the record via a JSON round trip.
func (r *Record) Clone() *Record {
	data, err := json.Marshal(r)
	if err != nil {
		return nil
	}
	clone := &Record{}
	if err := json.Unmarshal(data, clone); err != nil {
		return nil
	}
	return clone
}

// RequestID returns the record-selection tag, or "" when untagged.
func (r *Record) RequestID() string {
	if r.Options == nil {
		return ""
	}
	return r.Options.RequestID
}

func (r *Record) strictMatching(fallback bool) bool {
	if r.Options != nil && r.Options.StrictMatching != nil {
		return *r.Options.StrictMatching
	}
	return fallback
}

// Auth detection precedence: explicit client auth, bearer token, basic
// credentials, cookie, none.
func detectAuth(ex *Exchange) *Auth {
	if ex.ClientAuth != nil {
		auth := *ex.ClientAuth
		if auth.Type == "" && len(auth.UserAlias) > 0 {
			auth.Type = AuthTypeBasic
		}
		return &auth
	}

	authorization := ex.RequestHeaders.Get("Authorization")
	if strings.HasPrefix(authorization, "Bearer ") {
		return &Auth{Type: AuthTypeBearer}
	}
	if strings.HasPrefix(authorization, "Basic ") {
		auth := &Auth{Type: AuthTypeBasic}
		if user, _, ok := (&http.Request{Header: ex.RequestHeaders}).BasicAuth(); ok {
			auth.User = user
		}
		return auth
	}
	if ex.RequestHeaders.Get("Cookie") != "" {
		return &Auth{Type: AuthTypeCookie}
	}
	return nil
}

// extractCreatedObject pulls the identifier of a created resource out of a
// POST response, preferring the body id over the Location header.
func extractCreatedObject(r *Record) string {
	if !strings.EqualFold(r.Request.Method, http.MethodPost) {
		return ""
	}

	if body, ok := r.Response.Body.(map[string]interface{}); ok {
		switch id := body["id"].(type) {
		case string:
			return id
		case float64:
			return strconv.FormatFloat(id, 'f', -1, 64)
		}
	}

	location := r.Response.Headers["Location"]
	if location == "" {
		location = r.Response.Headers["location"]
	}
	if location == "" {
		return ""
	}
	if u, err := url.Parse(location); err == nil {
		location = u.Path
	}
	segments := strings.Split(strings.Trim(location, "/"), "/")
	if len(segments) == 0 {
		return ""
	}
	return segments[len(segments)-1]
}

func flattenHeaders(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	result := make(map[string]string, len(h))
	for name, values := range h {
		if len(values) > 0 {
			result[name] = values[0]
		}
	}
	return result
}

// decodeBody parses the payload as JSON where possible, otherwise keeps the
// raw text. Empty payloads decode to nil so the field is omitted.
func decodeBody(data []byte) interface{} {
	if len(data) == 0 {
		return nil
	}
	var value interface{}
	if err := json.Unmarshal(data, &value); err == nil {
		return value
	}
	return string(data)
}

func encodeBody(body interface{}) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(b), nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, errors.Wrap(err, "unable to serialize record body")
		}
		return data, nil
	}
}
