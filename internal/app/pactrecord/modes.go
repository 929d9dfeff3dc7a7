package pactrecord

import (
	"strings"

	"github.com/pkg/errors"
)

// PactMode selects how the controller treats incoming requests.
type PactMode string

const (
	// ModeDisabled passes requests straight through to the target.
	ModeDisabled PactMode = "disabled"
	// ModeRecord proxies live and captures responses into the current pact.
	ModeRecord PactMode = "record"
	// ModeRecording is an accepted alias for ModeRecord.
	ModeRecording PactMode = "recording"
	// ModeApply proxies live and validates responses against the current pact.
	ModeApply PactMode = "apply"
	// ModeMock serves stored responses without contacting the target.
	ModeMock PactMode = "mock"
)

// ParsePactMode validates a mode string. The empty string means disabled.
func ParsePactMode(s string) (PactMode, error) {
	switch mode := PactMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case "":
		return ModeDisabled, nil
	case ModeDisabled, ModeApply, ModeMock:
		return mode, nil
	case ModeRecord, ModeRecording:
		return ModeRecord, nil
	default:
		return "", errors.Errorf("unsupported pact mode %q", s)
	}
}

// IsRecording reports whether captured live responses are stored.
func (m PactMode) IsRecording() bool {
	return m == ModeRecord || m == ModeRecording
}

// IsMocking reports whether stored records are served without proxying.
func (m PactMode) IsMocking() bool {
	return m == ModeMock
}

// RecordingMode is the policy for merging newly captured records into an
// existing pact.
type RecordingMode string

const (
	// RecordingModeAppend always adds captured records to the end.
	RecordingModeAppend RecordingMode = "append"
	// RecordingModeNew adds a record only if no equivalent request exists.
	RecordingModeNew RecordingMode = "new"
	// RecordingModeReplace overwrites the first equivalent record, else appends.
	RecordingModeReplace RecordingMode = "replace"
	// RecordingModeRefresh clears the pact at session start, then appends.
	RecordingModeRefresh RecordingMode = "refresh"
)

// ParseRecordingMode validates a recording mode string. The empty string
// means append.
func ParseRecordingMode(s string) (RecordingMode, error) {
	switch mode := RecordingMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case "":
		return RecordingModeAppend, nil
	case RecordingModeAppend, RecordingModeNew, RecordingModeReplace, RecordingModeRefresh:
		return mode, nil
	default:
		return "", errors.Errorf("unsupported recording mode %q", s)
	}
}
