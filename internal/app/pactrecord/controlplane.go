package pactrecord

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/form3tech-oss/pact-record-proxy/internal/app/httpresponse"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

func (c *Controller) livenessHandler(ctx echo.Context) error {
	return ctx.NoContent(http.StatusOK)
}

type statusResponse struct {
	SessionID     string `json:"sessionId"`
	Uptime        string `json:"uptime"`
	Mode          string `json:"mode"`
	RecordingMode string `json:"recordingMode"`
	StrictMocking bool   `json:"strictMocking"`
	CurrentPact   string `json:"currentPact,omitempty"`
	Records       int    `json:"records"`
}

func (c *Controller) statusHandler(ctx echo.Context) error {
	c.mu.RLock()
	status := statusResponse{
		SessionID:     c.sessionID,
		Uptime:        time.Since(c.started).Round(time.Second).String(),
		Mode:          string(c.mode),
		RecordingMode: string(c.recordingMode),
		StrictMocking: c.strictMocking,
	}
	current := c.current
	c.mu.RUnlock()

	if current != nil {
		status.CurrentPact = current.ID
		status.Records = current.Len()
	}
	return ctx.JSON(http.StatusOK, status)
}

func (c *Controller) getCurrentHandler(ctx echo.Context) error {
	c.mu.RLock()
	current := c.current
	c.mu.RUnlock()

	if current == nil {
		if c.config.IgnoreNotFound {
			return ctx.NoContent(http.StatusNoContent)
		}
		return ctx.JSON(http.StatusNotFound, httpresponse.Errorf("no current pact"))
	}
	// serialize a snapshot, recording may be appending to the live pact
	return ctx.JSON(http.StatusOK, current.Clone())
}

type currentPactRequest struct {
	ID            string   `json:"id"`
	Title         []string `json:"title"`
	Mode          string   `json:"mode"`
	RecordingMode string   `json:"recordingMode"`
	StrictMocking *bool    `json:"strictMocking"`
	Clear         bool     `json:"clear"`
}

// postCurrentHandler loads or creates the active pact. A new empty pact is
// created only when recording is enabled; replacing the current pact takes
// effect for requests arriving after the swap.
func (c *Controller) postCurrentHandler(ctx echo.Context) error {
	body := currentPactRequest{}
	if err := ctx.Bind(&body); err != nil {
		return ctx.JSON(http.StatusBadRequest, httpresponse.Errorf("unable to parse pact request. %s", err.Error()))
	}

	id := body.ID
	if id == "" && len(body.Title) > 0 {
		id = strings.Join(body.Title, " ")
	}
	id = NormalizePactID(id)
	if id == "" {
		return ctx.JSON(http.StatusBadRequest, httpresponse.Errorf("invalid pact id"))
	}

	mode, recordingMode, err := c.resolveModes(body.Mode, body.RecordingMode)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, httpresponse.Errorf(err.Error()))
	}

	pact, err := c.adapter.LoadPact(id)
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, httpresponse.Errorf("unable to load pact '%s'. %s", id, err.Error()))
	}

	created := false
	if pact == nil {
		if !mode.IsRecording() {
			if c.config.IgnoreNotFound || !c.config.FailOnMissingPacts {
				return ctx.NoContent(http.StatusNoContent)
			}
			return ctx.JSON(http.StatusNotFound, httpresponse.Errorf("pact '%s' not found and recording is not enabled", id))
		}
		pact, err = NewPact(id, PactInfo{
			BaseURL:       c.config.Target.String(),
			Title:         body.Title,
			RecordingMode: recordingMode,
			StrictMocking: c.config.StrictMocking,
			Preprocessor:  c.preprocessor.Options,
			SessionID:     c.sessionID,
		})
		if err != nil {
			return ctx.JSON(http.StatusBadRequest, httpresponse.Errorf(err.Error()))
		}
		created = true
	}

	if body.Clear || recordingMode == RecordingModeRefresh {
		pact.ClearRecords()
	}
	pact.ResetCursor()

	// commit the mode changes together with the pact swap, so a failed load
	// never leaves the controller half-switched
	c.mu.Lock()
	c.mode = mode
	c.recordingMode = recordingMode
	if body.StrictMocking != nil {
		c.strictMocking = *body.StrictMocking
	}
	c.current = pact
	c.createdIDs = map[string]string{}
	c.mu.Unlock()

	log.WithFields(log.Fields{"pact": pact.ID, "mode": mode, "recording_mode": recordingMode}).Info("current pact set")
	if created {
		return ctx.JSON(http.StatusCreated, pact.Clone())
	}
	return ctx.JSON(http.StatusOK, pact.Clone())
}

// resolveModes validates the requested mode changes against the current
// controller state without committing them. Invalid mode strings fail the
// whole request; the caller applies the result once the pact load succeeds.
func (c *Controller) resolveModes(modeStr, recordingModeStr string) (PactMode, RecordingMode, error) {
	c.mu.RLock()
	mode := c.mode
	recordingMode := c.recordingMode
	c.mu.RUnlock()

	if modeStr != "" {
		parsed, err := ParsePactMode(modeStr)
		if err != nil {
			return "", "", err
		}
		mode = parsed
	}
	if recordingModeStr != "" {
		parsed, err := ParseRecordingMode(recordingModeStr)
		if err != nil {
			return "", "", err
		}
		recordingMode = parsed
	}
	return mode, recordingMode, nil
}

// deleteCurrentHandler forgets the in-memory reference. The pact file is
// never deleted here.
func (c *Controller) deleteCurrentHandler(ctx echo.Context) error {
	c.mu.Lock()
	c.current = nil
	c.createdIDs = map[string]string{}
	c.mu.Unlock()
	return ctx.NoContent(http.StatusNoContent)
}

func (c *Controller) clearCurrentHandler(ctx echo.Context) error {
	c.mu.RLock()
	current := c.current
	c.mu.RUnlock()

	if current == nil {
		return ctx.JSON(http.StatusNotFound, httpresponse.Errorf("no current pact"))
	}
	current.ClearRecords()
	c.saveAsync(current.Clone())
	return ctx.NoContent(http.StatusNoContent)
}

func (c *Controller) currentRequestHandler(ctx echo.Context) error {
	return c.projectRecords(ctx, func(r *Record) interface{} { return r.Request })
}

func (c *Controller) currentResponseHandler(ctx echo.Context) error {
	return c.projectRecords(ctx, func(r *Record) interface{} { return r.Response })
}

// projectRecords dumps one side of every record of the current pact,
// optionally narrowed by a jsonpath query in the `path` query parameter.
func (c *Controller) projectRecords(ctx echo.Context, project func(*Record) interface{}) error {
	c.mu.RLock()
	current := c.current
	c.mu.RUnlock()

	if current == nil {
		return ctx.JSON(http.StatusNotFound, httpresponse.Errorf("no current pact"))
	}

	path := ctx.QueryParam("path")
	results := make([]interface{}, 0, current.Len())
	for _, record := range current.Clone().Records {
		value := project(record)
		if path == "" {
			results = append(results, value)
			continue
		}
		tree, err := toTree(value)
		if err != nil {
			continue
		}
		if projected, err := jsonpath.Get(path, tree); err == nil {
			results = append(results, projected)
		}
	}
	return ctx.JSON(http.StatusOK, results)
}

func toTree(value interface{}) (interface{}, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var tree interface{}
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

type logLevelRequest struct {
	Level string `json:"level"`
}

func (c *Controller) getLogHandler(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, logLevelRequest{Level: log.GetLevel().String()})
}

func (c *Controller) setLogHandler(ctx echo.Context) error {
	body := logLevelRequest{}
	if err := ctx.Bind(&body); err != nil {
		return ctx.JSON(http.StatusBadRequest, httpresponse.Errorf("unable to parse log level. %s", err.Error()))
	}
	level, err := log.ParseLevel(body.Level)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, httpresponse.Errorf("unsupported log level %q", body.Level))
	}
	log.SetLevel(level)
	return ctx.JSON(http.StatusOK, logLevelRequest{Level: level.String()})
}
