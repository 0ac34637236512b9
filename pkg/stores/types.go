package stores

import (
	"context"
	"time"
)

// PolicyRecord is a persisted policy without its rules.
type PolicyRecord struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Abbreviation string    `json:"abbreviation"`
	Description  string    `json:"description"`
	Kind         string    `json:"kind"`
	CreatedAt    time.Time `json:"created_at"`
}

// RuleRecord is a persisted rule, stored as source text and reparsed on load.
type RuleRecord struct {
	ID         string    `json:"id"`
	PolicyName string    `json:"policy_name"`
	Rule       string    `json:"rule"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"created_at"`
}

// DatasourceRecord is a persisted datasource definition. Config is a JSON
// blob of the driver settings, secrets included; the store is the one place
// they live unmasked.
type DatasourceRecord struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Driver       string        `json:"driver"`
	Description  string        `json:"description"`
	Config       string        `json:"config"`
	PollInterval time.Duration `json:"poll_interval"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Store defines the interface for the persistence layer.
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Policy operations
	CreatePolicy(ctx context.Context, record *PolicyRecord) error
	GetPolicyByName(ctx context.Context, name string) (*PolicyRecord, error)
	ListPolicies(ctx context.Context) ([]*PolicyRecord, error)
	DeletePolicy(ctx context.Context, name string) error

	// Rule operations
	InsertRule(ctx context.Context, record *RuleRecord) error
	DeleteRule(ctx context.Context, policyName, rule string) error
	ListRulesByPolicy(ctx context.Context, policyName string) ([]*RuleRecord, error)
	ReplacePolicyRules(ctx context.Context, policyName string, records []*RuleRecord) error

	// Datasource operations
	CreateDatasource(ctx context.Context, record *DatasourceRecord) error
	GetDatasource(ctx context.Context, name string) (*DatasourceRecord, error)
	ListDatasources(ctx context.Context) ([]*DatasourceRecord, error)
	DeleteDatasource(ctx context.Context, name string) error

	// Utility
	HealthCheck(ctx context.Context) error
}
