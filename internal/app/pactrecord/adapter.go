package pactrecord

// PactAdapter persists pacts. The core is agnostic to the storage format as
// long as this contract holds: LoadPact returns (nil, nil) for a missing
// pact and an error only for a present-but-unreadable one.
type PactAdapter interface {
	LoadPact(id string) (*Pact, error)
	SavePact(pact *Pact) error
	DeletePact(id string) error
	PactExists(id string) bool
	LoadPacts() (map[string]*Pact, error)
}
