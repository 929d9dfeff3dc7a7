package pactrecord

import (
	log "github.com/sirupsen/logrus"
)

// Hooks intercept captured records and pacts before they are persisted. A
// hook may mutate its argument or return nil to veto the write entirely.
type Hooks struct {
	SaveRecord func(record *Record, pact *Pact) *Record
	SavePact   func(pact *Pact) *Pact
}

func (h Hooks) applyRecord(record *Record, pact *Pact) *Record {
	if h.SaveRecord == nil {
		return record
	}
	return h.SaveRecord(record, pact)
}

func (h Hooks) applyPact(pact *Pact) *Pact {
	if h.SavePact == nil {
		return pact
	}
	return h.SavePact(pact)
}

// Reconciler merges newly captured records into a pact according to the
// active recording mode. It carries no state beyond the mode itself; the
// refresh clear happens once when a pact becomes current, after which refresh
// behaves like append.
type Reconciler struct {
	Mode  RecordingMode
	Hooks Hooks
}

// Reconcile runs the save-record hook and applies the mode's merge policy.
// It reports whether the pact changed; a vetoed record never reaches the
// container.
func (r *Reconciler) Reconcile(pact *Pact, record *Record) bool {
	if pact == nil || record == nil {
		return false
	}

	record = r.Hooks.applyRecord(record, pact)
	if record == nil {
		log.Debugf("record for pact '%s' vetoed by save hook", pact.ID)
		return false
	}

	switch r.Mode {
	case RecordingModeNew:
		return pact.AppendRecord(record, true)
	case RecordingModeReplace:
		return pact.ReplaceRecord(record)
	default:
		// append, and refresh after its session-start clear
		return pact.AppendRecord(record, false)
	}
}

// PactForSave runs the save-pact hook over a snapshot of the pact. It returns
// nil when the write is vetoed.
func (r *Reconciler) PactForSave(pact *Pact) *Pact {
	if pact == nil {
		return nil
	}
	snapshot := pact.Clone()
	if snapshot == nil {
		return nil
	}
	return r.Hooks.applyPact(snapshot)
}
