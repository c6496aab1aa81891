package reconcile

import (
	"encoding/json"

	"github.com/mkarsli/cf-zone-provision/provider"
)

// DesiredRecord is the declared target state for one DNS record. Name is a
// subdomain label, with "@" for the apex. TTL of 1 (or lower) means
// "automatic" and matches any existing TTL.
type DesiredRecord struct {
	Name    string
	Type    string
	Content string
	Proxied bool
	TTL     int
}

const TTLAuto = 1

type DecisionKind string

const (
	DecisionNoOp   DecisionKind = "noop"
	DecisionCreate DecisionKind = "create"
	DecisionUpdate DecisionKind = "update"
)

// Decision is the reconciler's verdict for one (name, type) key.
type Decision struct {
	Kind    DecisionKind
	Desired DesiredRecord
	// ExistingID is set for updates: the provider record being rewritten.
	ExistingID string
}

type Plan struct {
	Decisions []Decision
}

func (p Plan) Count(kind DecisionKind) int {
	n := 0
	for _, d := range p.Decisions {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

// HasWork reports whether applying the plan would issue any network call.
func (p Plan) HasWork() bool {
	return p.Count(DecisionCreate)+p.Count(DecisionUpdate) > 0
}

type OperationResult struct {
	Op     DecisionKind
	Record provider.Record
	Error  string
	// Raw is the provider's error payload verbatim, when the failure came
	// from a success:false envelope.
	Raw json.RawMessage
}

type Results struct {
	Created  []provider.Record
	Updated  []provider.Record
	NoOps    int
	Failures []OperationResult
}

type SettingResult struct {
	Setting string
	Current string
	Desired string
	Changed bool
	Error   string
	Raw     json.RawMessage
}
