package stores

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{Path: filepath.Join(t.TempDir(), "congress.db")})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Init(ctx))
	require.NoError(t, store.Migrate(ctx))
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestSQLiteStore_Policies(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	record := &PolicyRecord{
		ID:        uuid.NewString(),
		Name:      "classification",
		Kind:      "nonrecursive",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreatePolicy(ctx, record))

	// Names are unique.
	dup := *record
	dup.ID = uuid.NewString()
	assert.Error(t, store.CreatePolicy(ctx, &dup))

	got, err := store.GetPolicyByName(ctx, "classification")
	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)
	assert.Equal(t, "nonrecursive", got.Kind)

	_, err = store.GetPolicyByName(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := store.ListPolicies(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, store.DeletePolicy(ctx, "classification"))
	assert.ErrorIs(t, store.DeletePolicy(ctx, "classification"), ErrNotFound)
}

func TestSQLiteStore_Rules(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreatePolicy(ctx, &PolicyRecord{
		ID:        uuid.NewString(),
		Name:      "classification",
		Kind:      "nonrecursive",
		CreatedAt: time.Now().UTC(),
	}))

	rule := &RuleRecord{
		ID:         uuid.NewString(),
		PolicyName: "classification",
		Rule:       `p(x) :- q(x)`,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, store.InsertRule(ctx, rule))

	// Same rule text again is a no-op.
	again := *rule
	again.ID = uuid.NewString()
	require.NoError(t, store.InsertRule(ctx, &again))

	rules, err := store.ListRulesByPolicy(ctx, "classification")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, `p(x) :- q(x)`, rules[0].Rule)

	require.NoError(t, store.ReplacePolicyRules(ctx, "classification", []*RuleRecord{
		{ID: uuid.NewString(), Rule: `a("1")`, CreatedAt: time.Now().UTC()},
		{ID: uuid.NewString(), Rule: `b("2")`, CreatedAt: time.Now().UTC()},
	}))
	rules, err = store.ListRulesByPolicy(ctx, "classification")
	require.NoError(t, err)
	assert.Len(t, rules, 2)

	require.NoError(t, store.DeleteRule(ctx, "classification", `a("1")`))
	rules, err = store.ListRulesByPolicy(ctx, "classification")
	require.NoError(t, err)
	assert.Len(t, rules, 1)

	// Deleting the policy cascades to its rules.
	require.NoError(t, store.DeletePolicy(ctx, "classification"))
	rules, err = store.ListRulesByPolicy(ctx, "classification")
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestSQLiteStore_Datasources(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	record := &DatasourceRecord{
		ID:           uuid.NewString(),
		Name:         "nova",
		Driver:       "http",
		Config:       `{"url": "https://example.com", "token": "s3cret"}`,
		PollInterval: 30 * time.Second,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, store.CreateDatasource(ctx, record))

	got, err := store.GetDatasource(ctx, "nova")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, got.PollInterval)
	assert.Contains(t, got.Config, "s3cret")

	list, err := store.ListDatasources(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, store.DeleteDatasource(ctx, "nova"))
	_, err = store.GetDatasource(ctx, "nova")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_HealthCheck(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.HealthCheck(context.Background()))

	uninitialized, err := NewSQLiteStore(Config{Path: "x.db"})
	require.NoError(t, err)
	assert.Error(t, uninitialized.HealthCheck(context.Background()))
}
