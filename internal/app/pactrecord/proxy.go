package pactrecord

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sync"
	"time"

	"github.com/form3tech-oss/pact-record-proxy/internal/app/httpresponse"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/sjson"
)

const (
	defaultResourcePath = "/c8yctrl"
	defaultProxyTimeout = 30 * time.Second

	// RequestIDHeader carries the record-selection tag on live requests.
	RequestIDHeader = "X-Pact-Request-Id"
)

type Config struct {
	ServerAddress url.URL   `env:"SERVER_ADDRESS"`      // Address to listen on
	Proxies       []url.URL `env:"PROXIES,delimiter=;"` // Additional listen addresses, e.g. http://localhost:8080;http://localhost:8081
	Target        url.URL   `env:"TARGET"`              // Remote API base URL proxied in record and apply mode

	ResourcePath string `env:"RESOURCE_PATH,default=/c8yctrl"` // Control plane path prefix
	PactDir      string `env:"PACT_DIR,default=pacts"`
	PactFormat   string `env:"PACT_FORMAT,default=json"`

	Mode                 string `env:"PACT_MODE"`
	RecordingMode        string `env:"PACT_RECORDING_MODE"`
	StrictMocking        bool   `env:"PACT_STRICT_MOCKING"`
	StrictMatching       bool   `env:"PACT_STRICT_MATCHING,default=true"`
	MatchSchemaAndObject bool   `env:"PACT_MATCH_SCHEMA_AND_OBJECT"`

	FailOnMissingPacts   bool `env:"FAIL_ON_MISSING_PACTS,default=true"`
	FailOnPactValidation bool `env:"FAIL_ON_PACT_VALIDATION,default=true"`
	IgnoreNotFound       bool `env:"IGNORE_NOT_FOUND"`

	Ignore             []string `env:"PACT_IGNORE,delimiter=;"`
	Obfuscate          []string `env:"PACT_OBFUSCATE,delimiter=;"`
	ObfuscationPattern string   `env:"PACT_OBFUSCATION_PATTERN"`

	ProxyTimeout time.Duration `env:"PROXY_TIMEOUT"`

	TLSCAFile   string `env:"TLS_CA_FILE"`
	TLSCertFile string `env:"TLS_CERT_FILE"`
	TLSKeyFile  string `env:"TLS_KEY_FILE"`
}

// Hooks on the serving path. Each may be nil.
type ControllerHooks struct {
	// MockResponse can veto (return nil) or replace the record chosen for a
	// mocked request.
	MockResponse func(record *Record, req *http.Request) *Record
	// MockNotFound can take over the response for an unmatched mocked
	// request; returning true means the hook wrote the response.
	MockNotFound func(res http.ResponseWriter, req *http.Request) bool
	// Recording hooks run before captured records and pacts are persisted.
	Recording Hooks
}

// Controller is the mock/record front. It owns the single mutable
// current-pact reference; every read-then-write of it happens under the
// controller lock and the container reference is swapped whole.
type Controller struct {
	config       *Config
	target       *url.URL
	proxy        *httputil.ReverseProxy
	adapter      PactAdapter
	saveAsync    func(*Pact)
	matcher      Matcher
	preprocessor *Preprocessor
	timeout      time.Duration
	sessionID    string
	started      time.Time

	mu            sync.RWMutex
	mode          PactMode
	recordingMode RecordingMode
	strictMocking bool
	hooks         ControllerHooks
	current       *Pact
	createdIDs    map[string]string
}

// NewController wires a controller from config, using a file adapter rooted
// at the configured pact directory.
func NewController(config *Config) (*Controller, error) {
	mode, err := ParsePactMode(config.Mode)
	if err != nil {
		return nil, err
	}
	recordingMode, err := ParseRecordingMode(config.RecordingMode)
	if err != nil {
		return nil, err
	}
	format, err := ParsePactFormat(config.PactFormat)
	if err != nil {
		return nil, err
	}

	adapter := NewFileAdapter(config.PactDir, format)
	c := &Controller{
		config:    config,
		adapter:   adapter,
		saveAsync: adapter.SavePactAsync,
		matcher: &RecordMatcher{
			Schema:               NewJSONSchemaMatcher(),
			MatchSchemaAndObject: config.MatchSchemaAndObject,
		},
		preprocessor: NewPreprocessor(&PreprocessorOptions{
			Ignore:             config.Ignore,
			Obfuscate:          config.Obfuscate,
			ObfuscationPattern: config.ObfuscationPattern,
		}),
		timeout:       config.ProxyTimeout,
		sessionID:     uuid.NewString(),
		started:       time.Now(),
		mode:          mode,
		recordingMode: recordingMode,
		strictMocking: config.StrictMocking,
		createdIDs:    map[string]string{},
	}
	if c.timeout == 0 {
		c.timeout = defaultProxyTimeout
	}

	if config.Target.String() != "" {
		target := config.Target
		c.target = &target
		c.proxy = httputil.NewSingleHostReverseProxy(&target)
		c.proxy.ErrorHandler = func(res http.ResponseWriter, req *http.Request, err error) {
			log.WithField("url", req.URL.String()).Error(err)
			res.WriteHeader(http.StatusBadGateway)
		}
	}
	return c, nil
}

// SetupRoutes registers the control plane under the configured resource path
// and the data plane on everything else.
func SetupRoutes(e *echo.Echo, config *Config) (*Controller, error) {
	c, err := NewController(config)
	if err != nil {
		return nil, err
	}

	prefix := config.ResourcePath
	if prefix == "" {
		prefix = defaultResourcePath
	}
	g := e.Group(prefix)
	g.HEAD("", c.livenessHandler)
	g.HEAD("/", c.livenessHandler)
	g.GET("/status", c.statusHandler)
	g.GET("/current", c.getCurrentHandler)
	g.POST("/current", c.postCurrentHandler)
	g.DELETE("/current", c.deleteCurrentHandler)
	g.POST("/current/clear", c.clearCurrentHandler)
	g.GET("/current/request", c.currentRequestHandler)
	g.GET("/current/response", c.currentResponseHandler)
	g.GET("/log", c.getLogHandler)
	g.POST("/log", c.setLogHandler)
	g.PUT("/log", c.setLogHandler)

	e.Any("/*", c.handle)
	return c, nil
}

// Adapter exposes the persistence adapter, mainly for shutdown draining.
func (c *Controller) Adapter() PactAdapter {
	return c.adapter
}

// SetHooks replaces the controller's serving hooks. Requests already in
// flight keep the hooks they started with.
func (c *Controller) SetHooks(hooks ControllerHooks) {
	c.mu.Lock()
	c.hooks = hooks
	c.mu.Unlock()
}

type snapshot struct {
	mode          PactMode
	recordingMode RecordingMode
	strictMocking bool
	hooks         ControllerHooks
	pact          *Pact
}

func (c *Controller) snapshot() snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return snapshot{
		mode:          c.mode,
		recordingMode: c.recordingMode,
		strictMocking: c.strictMocking,
		hooks:         c.hooks,
		pact:          c.current,
	}
}

// handle serves the data plane: mock, apply or record the request depending
// on the active mode.
func (c *Controller) handle(ctx echo.Context) error {
	req := ctx.Request()
	res := ctx.Response()
	state := c.snapshot()

	body, err := io.ReadAll(req.Body)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, httpresponse.Errorf("unable to read request body. %s", err.Error()))
	}
	req.Body.Close()
	req.Body = io.NopCloser(bytes.NewReader(body))

	switch {
	case state.mode.IsMocking():
		return c.serveMock(ctx, state, body)
	case state.mode == ModeApply:
		return c.serveApply(ctx, state, body)
	case state.mode.IsRecording():
		return c.serveRecord(ctx, state, body)
	}

	if c.proxy == nil {
		return ctx.JSON(http.StatusBadGateway, httpresponse.Errorf("no proxy target configured"))
	}
	c.proxy.ServeHTTP(res, req)
	return nil
}

func (c *Controller) serveMock(ctx echo.Context, state snapshot, body []byte) error {
	req := ctx.Request()
	if state.pact == nil {
		return ctx.JSON(http.StatusNotFound, httpresponse.Errorf("no current pact to mock '%s %s'", req.Method, req.URL.Path))
	}

	var record *Record
	if tag := req.Header.Get(RequestIDHeader); tag != "" {
		// a tag is an exclusive filter, content matching is skipped
		record = state.pact.NextRecord(tag)
	} else {
		record = state.pact.NextRecordMatchingRequest(req.Method, req.URL.RequestURI(), decodeBody(body))
	}

	if state.hooks.MockResponse != nil && record != nil {
		record = state.hooks.MockResponse(record, req)
	}

	if record == nil {
		if state.hooks.MockNotFound != nil && state.hooks.MockNotFound(ctx.Response(), req) {
			return nil
		}
		if state.strictMocking {
			return ctx.JSON(http.StatusNotFound, httpresponse.Errorf(
				"no record in pact '%s' matches '%s %s'", state.pact.ID, req.Method, req.URL.Path))
		}
		if c.proxy != nil {
			c.proxy.ServeHTTP(ctx.Response(), req)
			return nil
		}
		return ctx.JSON(http.StatusNotFound, httpresponse.Errorf(
			"no record in pact '%s' matches '%s %s' and no proxy target configured", state.pact.ID, req.Method, req.URL.Path))
	}

	return c.writeRecord(ctx, record)
}

// writeRecord sends a stored response, recomputing Content-Length, dropping
// Transfer-Encoding and substituting created-object ids captured this
// session.
func (c *Controller) writeRecord(ctx echo.Context, record *Record) error {
	status, headers, body, err := record.HTTPResponse()
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, httpresponse.Errorf("unable to serve record. %s", err.Error()))
	}
	body = c.substituteCreatedID(record, body)

	res := ctx.Response()
	copyHeaders(res.Header(), headers, len(body))
	res.WriteHeader(status)
	_, err = res.Write(body)
	return err
}

func (c *Controller) substituteCreatedID(record *Record, body []byte) []byte {
	if record.CreatedObject == "" || len(body) == 0 {
		return body
	}
	c.mu.RLock()
	liveID, ok := c.createdIDs[record.CreatedObject]
	c.mu.RUnlock()
	if !ok {
		return body
	}
	if rewritten, err := sjson.SetBytes(body, "id", liveID); err == nil {
		return rewritten
	}
	return body
}

func (c *Controller) serveApply(ctx echo.Context, state snapshot, body []byte) error {
	req := ctx.Request()
	if c.proxy == nil {
		return ctx.JSON(http.StatusBadGateway, httpresponse.Errorf("no proxy target configured"))
	}

	var expected *Record
	if state.pact != nil {
		expected = state.pact.NextRecord(req.Header.Get(RequestIDHeader))
	}

	if expected == nil {
		if c.config.FailOnMissingPacts && !c.config.IgnoreNotFound {
			id := "<none>"
			if state.pact != nil {
				id = state.pact.ID
			}
			return ctx.JSON(http.StatusConflict, httpresponse.Errorf(
				"no record left in pact '%s' for '%s %s'", id, req.Method, req.URL.Path))
		}
		c.proxy.ServeHTTP(ctx.Response(), req)
		return nil
	}

	capture, actual := c.forward(req, body)
	strict := expected.strictMatching(c.config.StrictMatching)
	if err := c.matcher.Match(expected, actual, strict); err != nil {
		log.WithField("pact", state.pact.ID).Warn(err)
		if c.config.FailOnPactValidation {
			return ctx.JSON(http.StatusConflict, httpresponse.Errorf(
				"pact '%s' validation failed: %s", state.pact.ID, err.Error()))
		}
	}
	c.storeCreatedID(expected, actual)

	return capture.writeTo(ctx.Response(), capture.body.Bytes())
}

func (c *Controller) serveRecord(ctx echo.Context, state snapshot, body []byte) error {
	req := ctx.Request()
	if c.proxy == nil {
		return ctx.JSON(http.StatusBadGateway, httpresponse.Errorf("no proxy target configured"))
	}
	if state.pact == nil {
		return ctx.JSON(http.StatusNotFound, httpresponse.Errorf("no current pact to record '%s %s'", req.Method, req.URL.Path))
	}

	capture, record := c.forward(req, body)
	if tag := req.Header.Get(RequestIDHeader); tag != "" {
		record.Options = &RecordOptions{RequestID: tag}
	}
	c.preprocessor.ApplyToRecord(record, state.pact.Info.Preprocessor)

	reconciler := &Reconciler{Mode: state.recordingMode, Hooks: state.hooks.Recording}
	if reconciler.Reconcile(state.pact, record) {
		if toSave := reconciler.PactForSave(state.pact); toSave != nil {
			c.saveAsync(toSave)
		}
	}

	return capture.writeTo(ctx.Response(), capture.body.Bytes())
}

// forward proxies the request live with the configured timeout and converts
// the captured response into a record.
func (c *Controller) forward(req *http.Request, body []byte) (*captureWriter, *Record) {
	timeoutCtx, cancel := context.WithTimeout(req.Context(), c.timeout)
	defer cancel()
	req = req.WithContext(timeoutCtx)
	req.Body = io.NopCloser(bytes.NewReader(body))

	capture := newCaptureWriter()
	start := time.Now()
	c.proxy.ServeHTTP(capture, req)

	record := RecordFromExchange(&Exchange{
		Method:          req.Method,
		URL:             req.URL.RequestURI(),
		RequestHeaders:  req.Header,
		RequestBody:     body,
		Status:          capture.statusCode(),
		ResponseHeaders: capture.header,
		ResponseBody:    capture.body.Bytes(),
		Duration:        time.Since(start),
	})
	return capture, record
}

// storeCreatedID remembers the live id of a created resource so later mocked
// replays of dependent requests can be rewritten.
func (c *Controller) storeCreatedID(expected, actual *Record) {
	if expected.CreatedObject == "" || actual.CreatedObject == "" ||
		expected.CreatedObject == actual.CreatedObject {
		return
	}
	c.mu.Lock()
	c.createdIDs[expected.CreatedObject] = actual.CreatedObject
	c.mu.Unlock()
}

