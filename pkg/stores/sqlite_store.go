package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

// Config holds SQLite store configuration.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	return &SQLiteStore{cfg: cfg}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.cfg.Path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Foreign keys are a connection-level setting.
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// CreatePolicy creates a policy record.
func (s *SQLiteStore) CreatePolicy(ctx context.Context, record *PolicyRecord) error {
	query := `
		INSERT INTO policies (id, name, abbreviation, description, kind, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		record.ID,
		record.Name,
		record.Abbreviation,
		record.Description,
		record.Kind,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create policy: %w", err)
	}
	return nil
}

// GetPolicyByName retrieves a policy record by name.
func (s *SQLiteStore) GetPolicyByName(ctx context.Context, name string) (*PolicyRecord, error) {
	query := `
		SELECT id, name, abbreviation, description, kind, created_at
		FROM policies
		WHERE name = ?
	`

	record := &PolicyRecord{}
	err := s.db.QueryRowContext(ctx, query, name).Scan(
		&record.ID,
		&record.Name,
		&record.Abbreviation,
		&record.Description,
		&record.Kind,
		&record.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: policy %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get policy: %w", err)
	}
	return record, nil
}

// ListPolicies returns all policy records ordered by name.
func (s *SQLiteStore) ListPolicies(ctx context.Context) ([]*PolicyRecord, error) {
	query := `
		SELECT id, name, abbreviation, description, kind, created_at
		FROM policies
		ORDER BY name
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	defer rows.Close()

	var records []*PolicyRecord
	for rows.Next() {
		record := &PolicyRecord{}
		if err := rows.Scan(
			&record.ID,
			&record.Name,
			&record.Abbreviation,
			&record.Description,
			&record.Kind,
			&record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// DeletePolicy removes a policy record; its rules cascade.
func (s *SQLiteStore) DeletePolicy(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM policies WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete policy: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: policy %s", ErrNotFound, name)
	}
	return nil
}

// InsertRule persists a rule. Inserting the same rule text twice for a
// policy is a no-op.
func (s *SQLiteStore) InsertRule(ctx context.Context, record *RuleRecord) error {
	query := `
		INSERT INTO rules (id, policy_name, rule, comment, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (policy_name, rule) DO NOTHING
	`

	_, err := s.db.ExecContext(ctx, query,
		record.ID,
		record.PolicyName,
		record.Rule,
		record.Comment,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert rule: %w", err)
	}
	return nil
}

// DeleteRule removes a rule by its source text.
func (s *SQLiteStore) DeleteRule(ctx context.Context, policyName, rule string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM rules WHERE policy_name = ? AND rule = ?`, policyName, rule)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	return nil
}

// ListRulesByPolicy returns the rules of a policy in insertion order.
func (s *SQLiteStore) ListRulesByPolicy(ctx context.Context, policyName string) ([]*RuleRecord, error) {
	query := `
		SELECT id, policy_name, rule, comment, created_at
		FROM rules
		WHERE policy_name = ?
		ORDER BY created_at, id
	`

	rows, err := s.db.QueryContext(ctx, query, policyName)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var records []*RuleRecord
	for rows.Next() {
		record := &RuleRecord{}
		if err := rows.Scan(
			&record.ID,
			&record.PolicyName,
			&record.Rule,
			&record.Comment,
			&record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// ReplacePolicyRules swaps the stored rules of a policy in one transaction.
func (s *SQLiteStore) ReplacePolicyRules(ctx context.Context, policyName string, records []*RuleRecord) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM rules WHERE policy_name = ?`, policyName); err != nil {
		return fmt.Errorf("failed to clear rules: %w", err)
	}

	insert := `
		INSERT INTO rules (id, policy_name, rule, comment, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	for _, record := range records {
		if _, err := tx.ExecContext(ctx, insert,
			record.ID,
			policyName,
			record.Rule,
			record.Comment,
			record.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert rule: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// CreateDatasource persists a datasource definition.
func (s *SQLiteStore) CreateDatasource(ctx context.Context, record *DatasourceRecord) error {
	query := `
		INSERT INTO datasources (id, name, driver, description, config, poll_interval_ns, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		record.ID,
		record.Name,
		record.Driver,
		record.Description,
		record.Config,
		int64(record.PollInterval),
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create datasource: %w", err)
	}
	return nil
}

// GetDatasource retrieves a datasource definition by name.
func (s *SQLiteStore) GetDatasource(ctx context.Context, name string) (*DatasourceRecord, error) {
	query := `
		SELECT id, name, driver, description, config, poll_interval_ns, created_at
		FROM datasources
		WHERE name = ?
	`

	record := &DatasourceRecord{}
	var intervalNS int64
	err := s.db.QueryRowContext(ctx, query, name).Scan(
		&record.ID,
		&record.Name,
		&record.Driver,
		&record.Description,
		&record.Config,
		&intervalNS,
		&record.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: datasource %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get datasource: %w", err)
	}
	record.PollInterval = time.Duration(intervalNS)
	return record, nil
}

// ListDatasources returns all datasource definitions ordered by name.
func (s *SQLiteStore) ListDatasources(ctx context.Context) ([]*DatasourceRecord, error) {
	query := `
		SELECT id, name, driver, description, config, poll_interval_ns, created_at
		FROM datasources
		ORDER BY name
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasources: %w", err)
	}
	defer rows.Close()

	var records []*DatasourceRecord
	for rows.Next() {
		record := &DatasourceRecord{}
		var intervalNS int64
		if err := rows.Scan(
			&record.ID,
			&record.Name,
			&record.Driver,
			&record.Description,
			&record.Config,
			&intervalNS,
			&record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan datasource: %w", err)
		}
		record.PollInterval = time.Duration(intervalNS)
		records = append(records, record)
	}
	return records, rows.Err()
}

// DeleteDatasource removes a datasource definition.
func (s *SQLiteStore) DeleteDatasource(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM datasources WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete datasource: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: datasource %s", ErrNotFound, name)
	}
	return nil
}

// HealthCheck verifies the database is reachable.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.db.PingContext(ctx)
}
