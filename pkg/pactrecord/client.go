package pactrecord

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const defaultResourcePath = "/c8yctrl"

// Client talks to the control plane of a running record/replay proxy.
type Client struct {
	client       http.Client
	url          string
	resourcePath string
}

func New(url string) *Client {
	return NewWithResourcePath(url, defaultResourcePath)
}

func NewWithResourcePath(url, resourcePath string) *Client {
	return &Client{
		client: http.Client{
			Timeout: 30 * time.Second,
		},
		url:          strings.TrimSuffix(url, "/"),
		resourcePath: "/" + strings.Trim(resourcePath, "/"),
	}
}

func (c *Client) endpoint(path string) string {
	return c.url + c.resourcePath + path
}

func (c *Client) do(method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to marshal request")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.endpoint(path), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	responseBody, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return errors.Errorf("%s %s failed with status %d: %s", method, path, res.StatusCode, string(responseBody))
	}
	if out != nil && len(responseBody) > 0 {
		return json.Unmarshal(responseBody, out)
	}
	return nil
}

// Ready reports whether the controller answers its liveness endpoint.
func (c *Client) Ready() bool {
	return c.do(http.MethodHead, "/", nil, nil) == nil
}

func (c *Client) Status() (*Status, error) {
	status := &Status{}
	if err := c.do(http.MethodGet, "/status", nil, status); err != nil {
		return nil, err
	}
	return status, nil
}

// SetCurrent loads or creates the active pact.
func (c *Client) SetCurrent(current CurrentPact) (*Pact, error) {
	pact := &Pact{}
	if err := c.do(http.MethodPost, "/current", current, pact); err != nil {
		return nil, err
	}
	return pact, nil
}

func (c *Client) GetCurrent() (*Pact, error) {
	pact := &Pact{}
	if err := c.do(http.MethodGet, "/current", nil, pact); err != nil {
		return nil, err
	}
	return pact, nil
}

// DeleteCurrent forgets the active pact on the controller. No file is
// deleted.
func (c *Client) DeleteCurrent() error {
	return c.do(http.MethodDelete, "/current", nil, nil)
}

// ClearCurrent empties the active pact's records.
func (c *Client) ClearCurrent() error {
	return c.do(http.MethodPost, "/current/clear", nil, nil)
}

func (c *Client) LogLevel() (string, error) {
	out := struct {
		Level string `json:"level"`
	}{}
	if err := c.do(http.MethodGet, "/log", nil, &out); err != nil {
		return "", err
	}
	return out.Level, nil
}

func (c *Client) SetLogLevel(level string) error {
	body := struct {
		Level string `json:"level"`
	}{Level: level}
	return c.do(http.MethodPut, "/log", body, nil)
}
