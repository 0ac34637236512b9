package datasource

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/radekpospisil/congress/pkg/policy"
	"github.com/radekpospisil/congress/pkg/telemetry"
	"github.com/rs/zerolog"
)

// DefaultPollInterval is used when a spec leaves the interval unset.
const DefaultPollInterval = 30 * time.Second

// Manager owns the configured datasources. Each datasource gets a facts-only
// policy named after it in the runtime and a background poller that replaces
// the policy's tables with every snapshot.
type Manager struct {
	mu       sync.RWMutex
	runtime  *policy.Runtime
	drivers  map[string]Driver
	sources  map[string]*Datasource
	pollers  map[string]*poller
	tables   map[string][]string
	validate *validator.Validate
	logger   zerolog.Logger
	metrics  *telemetry.Metrics

	// baseCtx is set by Start; pollers derive from it.
	baseCtx context.Context
	started bool
}

// NewManager creates a manager with the file and http drivers registered.
func NewManager(runtime *policy.Runtime, logger zerolog.Logger, metrics *telemetry.Metrics) *Manager {
	m := &Manager{
		runtime:  runtime,
		drivers:  make(map[string]Driver),
		sources:  make(map[string]*Datasource),
		pollers:  make(map[string]*poller),
		tables:   make(map[string][]string),
		validate: validator.New(),
		logger:   logger.With().Str("component", "datasource-manager").Logger(),
		metrics:  metrics,
	}
	m.RegisterDriver(NewFileDriver())
	m.RegisterDriver(NewHTTPDriver())
	return m
}

// RegisterDriver makes a driver available to datasource specs.
func (m *Manager) RegisterDriver(d Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[d.Name()] = d
}

// Drivers returns the registered driver names, sorted.
func (m *Manager) Drivers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.drivers))
	for name := range m.drivers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Add validates the spec, creates the backing policy, and registers the
// datasource. When the manager is started the poller launches immediately.
func (m *Manager) Add(ctx context.Context, spec Spec) (Datasource, error) {
	if err := m.validate.Struct(spec); err != nil {
		return Datasource{}, fmt.Errorf("invalid datasource spec: %w", err)
	}
	if spec.PollInterval <= 0 {
		spec.PollInterval = DefaultPollInterval
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sources[spec.Name]; exists {
		return Datasource{}, fmt.Errorf("datasource %s already exists", spec.Name)
	}
	driver, ok := m.drivers[spec.Driver]
	if !ok {
		return Datasource{}, fmt.Errorf("unknown driver %q", spec.Driver)
	}
	if err := driver.Validate(spec.Config); err != nil {
		return Datasource{}, fmt.Errorf("driver %s rejected config: %w", spec.Driver, err)
	}

	if _, err := m.runtime.CreatePolicy(policy.Info{
		Name:        spec.Name,
		Description: spec.Description,
		Kind:        policy.KindDatasource,
	}); err != nil {
		return Datasource{}, fmt.Errorf("failed to create backing policy: %w", err)
	}

	ds := &Datasource{
		ID:        uuid.NewString(),
		Spec:      spec,
		CreatedAt: time.Now(),
	}
	m.sources[spec.Name] = ds

	if m.started {
		m.startPollerLocked(ds, driver)
	}

	m.logger.Info().
		Str("datasource", spec.Name).
		Str("driver", spec.Driver).
		Dur("interval", spec.PollInterval).
		Msg("Datasource added")

	return m.maskedLocked(ds), nil
}

// Delete stops the poller and removes the datasource with its backing
// policy. It fails while rules in other policies still reference the
// datasource's tables; the poller is restarted in that case.
func (m *Manager) Delete(name string) error {
	m.mu.Lock()
	ds, ok := m.sources[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("datasource %s not found", name)
	}
	p := m.pollers[name]
	delete(m.pollers, name)
	m.mu.Unlock()

	// Stop outside the lock; a poll in flight needs the lock to record its
	// status.
	if p != nil {
		p.stop()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.runtime.DeletePolicy(name); err != nil {
		if m.started {
			m.startPollerLocked(ds, m.drivers[ds.Spec.Driver])
		}
		return fmt.Errorf("failed to delete backing policy: %w", err)
	}

	delete(m.sources, name)
	delete(m.tables, name)
	m.logger.Info().Str("datasource", name).Msg("Datasource deleted")
	return nil
}

// Get returns a datasource with secret config values masked.
func (m *Manager) Get(name string) (Datasource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ds, ok := m.sources[name]
	if !ok {
		return Datasource{}, fmt.Errorf("datasource %s not found", name)
	}
	return m.maskedLocked(ds), nil
}

// List returns all datasources sorted by name, with secrets masked.
func (m *Manager) List() []Datasource {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Datasource, 0, len(m.sources))
	for _, ds := range m.sources {
		out = append(out, m.maskedLocked(ds))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Spec.Name < out[j].Spec.Name })
	return out
}

// PollNow polls a datasource synchronously, outside its schedule.
func (m *Manager) PollNow(ctx context.Context, name string) error {
	m.mu.RLock()
	ds, ok := m.sources[name]
	var driver Driver
	if ok {
		driver = m.drivers[ds.Spec.Driver]
	}
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("datasource %s not found", name)
	}
	return m.pollOnce(ctx, name, driver, ds.Spec.Config)
}

// Start launches pollers for all registered datasources. Later Adds start
// their pollers immediately.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return
	}
	m.baseCtx = ctx
	m.started = true
	for _, ds := range m.sources {
		m.startPollerLocked(ds, m.drivers[ds.Spec.Driver])
	}
	m.logger.Info().Int("datasources", len(m.sources)).Msg("Datasource polling started")
}

// Stop stops all pollers and waits for them to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	pollers := make([]*poller, 0, len(m.pollers))
	for name, p := range m.pollers {
		pollers = append(pollers, p)
		delete(m.pollers, name)
	}
	m.started = false
	m.mu.Unlock()

	for _, p := range pollers {
		p.stop()
	}
}

// startPollerLocked launches the poll loop for a datasource. Callers hold
// the write lock.
func (m *Manager) startPollerLocked(ds *Datasource, driver Driver) {
	ctx, cancel := context.WithCancel(m.baseCtx)
	p := &poller{
		manager:  m,
		name:     ds.Spec.Name,
		driver:   driver,
		config:   ds.Spec.Config,
		interval: ds.Spec.PollInterval,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	m.pollers[ds.Spec.Name] = p
	go p.run(ctx)
}

// pollOnce runs one poll and pushes the snapshot into the runtime.
func (m *Manager) pollOnce(ctx context.Context, name string, driver Driver, config map[string]string) error {
	start := time.Now()
	snap, err := driver.Poll(ctx, config)
	if err == nil {
		// Tables of the previous poll that the snapshot no longer carries
		// must be cleared, not left holding stale facts.
		m.mu.RLock()
		prev := m.tables[name]
		m.mu.RUnlock()
		err = m.runtime.InitializeTables(name, unionTables(prev, snap.Tables), snap.Facts)
	}
	duration := time.Since(start)

	if err != nil {
		m.metrics.ObservePoll(name, "error", duration, 0)
		m.recordPoll(name, err, 0, nil)
		m.logger.Warn().Err(err).Str("datasource", name).Msg("Poll failed")
		return err
	}

	m.metrics.ObservePoll(name, "ok", duration, len(snap.Facts))
	m.recordPoll(name, nil, len(snap.Facts), snap.Tables)
	m.logger.Debug().
		Str("datasource", name).
		Int("facts", len(snap.Facts)).
		Dur("duration", duration).
		Msg("Poll completed")
	return nil
}

// recordPoll updates the observed status of a datasource. A successful poll
// also records the tables it published, for the next poll's clearing pass.
func (m *Manager) recordPoll(name string, err error, facts int, tables []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ds, ok := m.sources[name]
	if !ok {
		return
	}
	ds.Status.LastPolledAt = time.Now()
	if err != nil {
		ds.Status.LastError = err.Error()
		return
	}
	ds.Status.LastError = ""
	ds.Status.FactCount = facts
	m.tables[name] = tables
}

// unionTables merges two table lists without duplicates.
func unionTables(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, table := range list {
			if _, ok := seen[table]; ok {
				continue
			}
			seen[table] = struct{}{}
			out = append(out, table)
		}
	}
	return out
}

// maskedLocked returns a copy safe to hand out. Callers hold either lock.
func (m *Manager) maskedLocked(ds *Datasource) Datasource {
	out := *ds
	out.Spec.Config = maskConfig(ds.Spec.Config)
	return out
}
