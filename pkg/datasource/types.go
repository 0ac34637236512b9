package datasource

import (
	"strings"
	"time"
)

// Spec is the user-supplied definition of a datasource.
type Spec struct {
	// Name is the unique datasource name. Rules reference its tables as
	// name:table.
	Name string `json:"name" yaml:"name" validate:"required"`

	// Driver names the driver that produces the facts.
	Driver string `json:"driver" yaml:"driver" validate:"required"`

	// Description is a human-readable summary.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Config holds driver-specific settings. Values under secret-like keys
	// are masked on read.
	Config map[string]string `json:"config,omitempty" yaml:"config,omitempty"`

	// PollInterval is the time between polls. Zero means the default.
	PollInterval time.Duration `json:"poll_interval,omitempty" yaml:"poll_interval,omitempty"`
}

// Status is the observed state of a datasource.
type Status struct {
	// LastPolledAt is when the last poll finished, zero before the first.
	LastPolledAt time.Time `json:"last_polled_at,omitzero"`

	// LastError is the message of the last failed poll, empty on success.
	LastError string `json:"last_error,omitempty"`

	// FactCount is the number of facts loaded by the last successful poll.
	FactCount int `json:"fact_count"`
}

// Datasource is a configured datasource together with its observed state.
type Datasource struct {
	ID        string    `json:"id"`
	Spec      Spec      `json:"spec"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// secretKeyWords mark config keys whose values never leave the manager.
var secretKeyWords = []string{"password", "secret", "token", "key"}

// maskConfig returns a copy of the config with secret values replaced.
func maskConfig(config map[string]string) map[string]string {
	if config == nil {
		return nil
	}
	out := make(map[string]string, len(config))
	for k, v := range config {
		out[k] = v
		lower := strings.ToLower(k)
		for _, word := range secretKeyWords {
			if strings.Contains(lower, word) {
				out[k] = "<hidden>"
				break
			}
		}
	}
	return out
}
