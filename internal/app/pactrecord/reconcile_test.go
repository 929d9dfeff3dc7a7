package pactrecord

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func oneRecordPact(t *testing.T) *Pact {
	t.Helper()
	pact, err := NewPact("reconcile", PactInfo{})
	require.NoError(t, err)
	record := recordFor("GET", "/a")
	record.Response.Status = 200
	pact.AppendRecord(record, false)
	return pact
}

func TestReconcileAppend(t *testing.T) {
	pact := oneRecordPact(t)
	r := &Reconciler{Mode: RecordingModeAppend}

	assert.True(t, r.Reconcile(pact, recordFor("GET", "/a")))
	assert.Equal(t, 2, pact.Len())
}

func TestReconcileNewSkipsEquivalentRequest(t *testing.T) {
	pact := oneRecordPact(t)
	r := &Reconciler{Mode: RecordingModeNew}

	assert.False(t, r.Reconcile(pact, recordFor("GET", "/a")))
	assert.Equal(t, 1, pact.Len())

	assert.True(t, r.Reconcile(pact, recordFor("GET", "/b")))
	assert.Equal(t, 2, pact.Len())
}

func TestReconcileReplaceOverwritesInPlace(t *testing.T) {
	pact := oneRecordPact(t)
	r := &Reconciler{Mode: RecordingModeReplace}

	replacement := recordFor("GET", "/a")
	replacement.Response.Status = 404
	assert.True(t, r.Reconcile(pact, replacement))
	assert.Equal(t, 1, pact.Len())
	assert.Equal(t, 404, pact.Records[0].Response.Status)
}

func TestReconcileRefreshAfterSessionClear(t *testing.T) {
	pact := oneRecordPact(t)
	// the session-start clear belongs to the controller, refresh itself
	// appends
	pact.ClearRecords()

	r := &Reconciler{Mode: RecordingModeRefresh}
	assert.True(t, r.Reconcile(pact, recordFor("GET", "/fresh")))
	assert.Equal(t, 1, pact.Len())
}

func TestReconcileSaveRecordHookMutates(t *testing.T) {
	pact := oneRecordPact(t)
	r := &Reconciler{
		Mode: RecordingModeAppend,
		Hooks: Hooks{
			SaveRecord: func(record *Record, _ *Pact) *Record {
				record.Request.Headers = nil
				return record
			},
		},
	}

	captured := recordFor("GET", "/hooked")
	captured.Request.Headers = map[string]string{"Authorization": "Basic abc"}
	require.True(t, r.Reconcile(pact, captured))
	assert.Nil(t, pact.Records[1].Request.Headers)
}

func TestReconcileSaveRecordHookVetoes(t *testing.T) {
	pact := oneRecordPact(t)
	r := &Reconciler{
		Mode: RecordingModeAppend,
		Hooks: Hooks{
			SaveRecord: func(*Record, *Pact) *Record { return nil },
		},
	}

	assert.False(t, r.Reconcile(pact, recordFor("GET", "/vetoed")))
	assert.Equal(t, 1, pact.Len())
}

func TestPactForSaveHook(t *testing.T) {
	pact := oneRecordPact(t)

	t.Run("snapshot is detached", func(t *testing.T) {
		r := &Reconciler{}
		snapshot := r.PactForSave(pact)
		require.NotNil(t, snapshot)
		snapshot.Records[0].Response.Status = 500
		assert.Equal(t, 200, pact.Records[0].Response.Status)
	})

	t.Run("veto returns nil", func(t *testing.T) {
		r := &Reconciler{Hooks: Hooks{SavePact: func(*Pact) *Pact { return nil }}}
		assert.Nil(t, r.PactForSave(pact))
	})

	t.Run("hook may mutate the snapshot", func(t *testing.T) {
		r := &Reconciler{Hooks: Hooks{SavePact: func(p *Pact) *Pact {
			p.Info.Description = "from hook"
			return p
		}}}
		saved := r.PactForSave(pact)
		require.NotNil(t, saved)
		assert.Equal(t, "from hook", saved.Info.Description)
		assert.Empty(t, pact.Info.Description)
	})
}

func TestParsePactMode(t *testing.T) {
	tests := []struct {
		in      string
		want    PactMode
		wantErr bool
	}{
		{"", ModeDisabled, false},
		{"disabled", ModeDisabled, false},
		{"record", ModeRecord, false},
		{"recording", ModeRecord, false},
		{"APPLY", ModeApply, false},
		{"mock", ModeMock, false},
		{"bogus", "", true},
	}
	for _, tt := range tests {
		mode, err := ParsePactMode(tt.in)
		if tt.wantErr {
			assert.Errorf(t, err, "input %q", tt.in)
			continue
		}
		require.NoErrorf(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, mode)
	}
}

func TestParseRecordingMode(t *testing.T) {
	tests := []struct {
		in      string
		want    RecordingMode
		wantErr bool
	}{
		{"", RecordingModeAppend, false},
		{"append", RecordingModeAppend, false},
		{"New", RecordingModeNew, false},
		{"replace", RecordingModeReplace, false},
		{"refresh", RecordingModeRefresh, false},
		{"overwrite", "", true},
	}
	for _, tt := range tests {
		mode, err := ParseRecordingMode(tt.in)
		if tt.wantErr {
			assert.Errorf(t, err, "input %q", tt.in)
			continue
		}
		require.NoErrorf(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, mode)
	}
}

func TestMergePreprocessorOptions(t *testing.T) {
	no := false
	env := &PreprocessorOptions{Obfuscate: []string{"request.headers.authorization"}}
	instance := &PreprocessorOptions{ObfuscationPattern: "###", IgnoreCase: &no}
	perCall := &PreprocessorOptions{Obfuscate: []string{"response.body.password"}}

	merged := MergePreprocessorOptions(env, instance, perCall)

	// later sources override, unset fields fall through
	assert.Equal(t, []string{"response.body.password"}, merged.Obfuscate)
	assert.Equal(t, "###", merged.pattern())
	assert.False(t, merged.ignoreCase())
	assert.Nil(t, merged.Ignore)

	t.Run("defaults", func(t *testing.T) {
		merged := MergePreprocessorOptions(nil, &PreprocessorOptions{})
		assert.Equal(t, defaultObfuscationPattern, merged.pattern())
		assert.True(t, merged.ignoreCase())
	})
}
