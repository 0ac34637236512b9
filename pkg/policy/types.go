package policy

import (
	"time"

	"github.com/radekpospisil/congress/pkg/datalog"
)

// Kind classifies a policy by the constraints placed on its contents.
type Kind string

const (
	// KindNonrecursive is the default: arbitrary safe, nonrecursive rules.
	KindNonrecursive Kind = "nonrecursive"

	// KindDatasource marks a policy materialized from a datasource. Only
	// facts may live in it; its tables are replaced wholesale on each poll.
	KindDatasource Kind = "datasource"

	// KindAction relaxes the safety checks, for policies describing actions
	// rather than derivations.
	KindAction Kind = "action"
)

// Info describes a policy without its contents.
type Info struct {
	// ID is the stable unique identifier.
	ID string `json:"id"`

	// Name is the unique policy name other policies reference.
	Name string `json:"name"`

	// Abbreviation is a short tag used in log output.
	Abbreviation string `json:"abbreviation,omitempty"`

	// Description is a human-readable summary.
	Description string `json:"description,omitempty"`

	// Kind classifies the policy.
	Kind Kind `json:"kind"`

	// CreatedAt is when the policy was created.
	CreatedAt time.Time `json:"created_at"`
}

// Event is the insert or delete of a single rule in a policy. Updates are
// expressed as event lists so a batch applies or fails as one unit.
type Event struct {
	// Policy names the target policy. Empty means the update's default.
	Policy string `json:"policy,omitempty"`

	// Rule is the rule being inserted or deleted.
	Rule datalog.Rule `json:"rule"`

	// Insert is true for insert, false for delete.
	Insert bool `json:"insert"`
}

// QueryResult carries the derived facts of a query together with timing.
type QueryResult struct {
	// Query is the atom that was evaluated.
	Query string `json:"query"`

	// Policy is the policy the query ran against.
	Policy string `json:"policy"`

	// Results are the derived ground atoms, rendered in rule syntax and
	// sorted.
	Results []string `json:"results"`

	// EvaluatedAt is when evaluation finished.
	EvaluatedAt time.Time `json:"evaluated_at"`

	// Duration is how long evaluation took.
	Duration time.Duration `json:"duration"`
}
