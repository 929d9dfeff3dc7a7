package pactrecord

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// PactFormat selects the on-disk serialization of a pact file.
type PactFormat string

const (
	FormatJSON PactFormat = "json"
	FormatYAML PactFormat = "yaml"
)

func ParsePactFormat(s string) (PactFormat, error) {
	switch format := PactFormat(strings.ToLower(strings.TrimSpace(s))); format {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatYAML:
		return format, nil
	default:
		return "", errors.Errorf("unsupported pact format %q", s)
	}
}

// FileAdapter stores one pact file per normalized id. Asynchronous saves are
// serialized per pact id through a queue goroutine, so a delayed earlier
// write can never clobber a later capture.
type FileAdapter struct {
	dir    string
	format PactFormat

	mu     sync.Mutex
	queues map[string]chan *Pact
	wg     sync.WaitGroup
}

func NewFileAdapter(dir string, format PactFormat) *FileAdapter {
	if format == "" {
		format = FormatJSON
	}
	return &FileAdapter{
		dir:    dir,
		format: format,
		queues: map[string]chan *Pact{},
	}
}

func (a *FileAdapter) path(id string) string {
	return filepath.Join(a.dir, NormalizePactID(id)+"."+string(a.format))
}

func (a *FileAdapter) LoadPact(id string) (*Pact, error) {
	data, err := os.ReadFile(a.path(id))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read pact file for '%s'", id)
	}

	pact := &Pact{}
	if err := a.unmarshal(data, pact); err != nil {
		return nil, errors.Wrapf(err, "pact file for '%s' is corrupt", id)
	}
	return pact, nil
}

func (a *FileAdapter) SavePact(pact *Pact) error {
	data, err := a.marshal(pact)
	if err != nil {
		return errors.Wrapf(err, "unable to serialize pact '%s'", pact.ID)
	}

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return errors.Wrap(err, "unable to create pact directory")
	}

	// transient fs errors get a couple of retries before the failure is
	// surfaced to the caller
	err = retry.Do(
		func() error { return os.WriteFile(a.path(pact.ID), data, 0o644) },
		retry.Attempts(3),
		retry.Delay(50*time.Millisecond),
	)
	return errors.Wrapf(err, "unable to write pact file for '%s'", pact.ID)
}

// SavePactAsync queues a snapshot of the pact for writing. Failures are
// logged, never surfaced; the serving path stays unaffected.
func (a *FileAdapter) SavePactAsync(pact *Pact) {
	if pact == nil {
		return
	}

	a.mu.Lock()
	queue, ok := a.queues[pact.ID]
	if !ok {
		queue = make(chan *Pact, 16)
		a.queues[pact.ID] = queue
		a.wg.Add(1)
		go a.writeLoop(queue)
	}
	a.mu.Unlock()

	queue <- pact
}

func (a *FileAdapter) writeLoop(queue chan *Pact) {
	defer a.wg.Done()
	for pact := range queue {
		if err := a.SavePact(pact); err != nil {
			log.WithField("pact", pact.ID).Error(err)
		}
	}
}

// Close drains the per-id write queues and waits for pending saves.
func (a *FileAdapter) Close() {
	a.mu.Lock()
	for id, queue := range a.queues {
		close(queue)
		delete(a.queues, id)
	}
	a.mu.Unlock()
	a.wg.Wait()
}

func (a *FileAdapter) DeletePact(id string) error {
	err := os.Remove(a.path(id))
	if os.IsNotExist(err) {
		return nil
	}
	return errors.Wrapf(err, "unable to delete pact file for '%s'", id)
}

func (a *FileAdapter) PactExists(id string) bool {
	_, err := os.Stat(a.path(id))
	return err == nil
}

func (a *FileAdapter) LoadPacts() (map[string]*Pact, error) {
	entries, err := os.ReadDir(a.dir)
	if os.IsNotExist(err) {
		return map[string]*Pact{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "unable to read pact directory")
	}

	pacts := make(map[string]*Pact)
	suffix := "." + string(a.format)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), suffix) {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), suffix)
		pact, err := a.LoadPact(id)
		if err != nil {
			return nil, err
		}
		if pact != nil {
			pacts[pact.ID] = pact
		}
	}
	return pacts, nil
}

func (a *FileAdapter) marshal(pact *Pact) ([]byte, error) {
	data, err := json.MarshalIndent(pact, "", "  ")
	if err != nil || a.format == FormatJSON {
		return data, err
	}

	// YAML files keep the JSON field names, so round-trip through a generic map
	var tree map[string]interface{}
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	return yaml.Marshal(tree)
}

func (a *FileAdapter) unmarshal(data []byte, pact *Pact) error {
	if a.format == FormatJSON {
		return json.Unmarshal(data, pact)
	}

	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return err
	}
	jsonData, err := json.Marshal(tree)
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonData, pact)
}
