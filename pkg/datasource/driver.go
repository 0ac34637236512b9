package datasource

import (
	"context"
	"fmt"
	"sort"

	"github.com/radekpospisil/congress/pkg/datalog"
)

// Snapshot is the complete result of one poll: every table the driver
// publishes and the facts filling them. The manager clears tables that drop
// out between polls, so an empty snapshot empties the datasource.
type Snapshot struct {
	Tables []string
	Facts  []datalog.Fact
}

// NewSnapshot builds a snapshot from a table-to-tuples map.
func NewSnapshot(tables map[string][][]interface{}) (*Snapshot, error) {
	snap := &Snapshot{}
	for table, tuples := range tables {
		snap.Tables = append(snap.Tables, table)
		for _, tuple := range tuples {
			fact, err := datalog.NewFact(table, tuple...)
			if err != nil {
				return nil, err
			}
			snap.Facts = append(snap.Facts, fact)
		}
	}
	sort.Strings(snap.Tables)
	return snap, nil
}

// Driver translates one kind of external service into Datalog facts.
// Drivers are stateless; per-datasource settings arrive in the config map.
type Driver interface {
	// Name is the driver name datasource specs reference.
	Name() string

	// Validate checks a config map before a datasource is created.
	Validate(config map[string]string) error

	// Poll fetches the current state of the service as a snapshot.
	Poll(ctx context.Context, config map[string]string) (*Snapshot, error)
}

// requireConfig returns the named config value or an error naming the key.
func requireConfig(config map[string]string, key string) (string, error) {
	v, ok := config[key]
	if !ok || v == "" {
		return "", fmt.Errorf("config key %q is required", key)
	}
	return v, nil
}
