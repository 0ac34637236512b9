package policy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/radekpospisil/congress/pkg/datalog"
	"github.com/rs/zerolog"
)

// PolicyFileExt is the extension of Datalog policy files.
const PolicyFileExt = ".dlog"

// PolicyFile is the parsed contents of one policy file. The policy name is
// the file base name without extension.
type PolicyFile struct {
	Path   string
	Policy string
	Rules  []datalog.Rule
}

// Loader reads Datalog policy files into the runtime. Each .dlog file maps
// to the policy named after the file, created on first load.
type Loader struct {
	runtime *Runtime
	logger  zerolog.Logger
	cache   map[string]*PolicyFile
	mu      sync.RWMutex
	watcher *fsnotify.Watcher
}

// NewLoader creates a loader bound to a runtime.
func NewLoader(runtime *Runtime, logger zerolog.Logger) *Loader {
	return &Loader{
		runtime: runtime,
		logger:  logger.With().Str("component", "policy-loader").Logger(),
		cache:   make(map[string]*PolicyFile),
	}
}

// LoadFromPaths loads policy files from a list of file or directory paths
// and defines each into the runtime.
func (l *Loader) LoadFromPaths(ctx context.Context, paths []string) ([]PolicyFile, error) {
	var loaded []PolicyFile

	for _, path := range paths {
		files, err := l.loadFromPath(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to load from path %s: %w", path, err)
		}
		loaded = append(loaded, files...)
	}

	for _, f := range dedupeByPolicy(loaded) {
		if err := l.define(f); err != nil {
			return nil, fmt.Errorf("failed to define policy %s: %w", f.Policy, err)
		}
	}

	l.logger.Info().
		Int("policies", len(loaded)).
		Int("sources", len(paths)).
		Msg("Policies loaded from paths")

	return loaded, nil
}

// dedupeByPolicy deduplicates by policy name, last file wins.
func dedupeByPolicy(loaded []PolicyFile) []PolicyFile {
	byPolicy := make(map[string]int, len(loaded))
	out := make([]PolicyFile, 0, len(loaded))
	for _, f := range loaded {
		if i, seen := byPolicy[f.Policy]; seen {
			out[i] = f
			continue
		}
		byPolicy[f.Policy] = len(out)
		out = append(out, f)
	}
	return out
}

// define creates the policy when missing and replaces its contents.
func (l *Loader) define(f PolicyFile) error {
	if _, err := l.runtime.GetPolicy(f.Policy); err != nil {
		if _, err := l.runtime.CreatePolicy(Info{Name: f.Policy}); err != nil {
			return err
		}
	}
	return l.runtime.Define(f.Policy, f.Rules)
}

// loadFromPath loads policy files from a single path (file or directory).
func (l *Loader) loadFromPath(ctx context.Context, path string) ([]PolicyFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	if info.IsDir() {
		return l.loadFromDirectory(ctx, path)
	}

	file, err := l.loadFromFile(path)
	if err != nil {
		return nil, err
	}
	return []PolicyFile{*file}, nil
}

// loadFromDirectory loads all .dlog files from a directory recursively.
func (l *Loader) loadFromDirectory(ctx context.Context, dirPath string) ([]PolicyFile, error) {
	var loaded []PolicyFile

	err := filepath.WalkDir(dirPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, PolicyFileExt) {
			return nil
		}

		file, err := l.loadFromFile(path)
		if err != nil {
			l.logger.Warn().Err(err).Str("path", path).Msg("Failed to load policy file")
			return nil // Continue processing other files
		}
		loaded = append(loaded, *file)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}
	return loaded, nil
}

// loadFromFile parses a single policy file.
func (l *Loader) loadFromFile(filePath string) (*PolicyFile, error) {
	// Check cache first
	l.mu.RLock()
	if cached, exists := l.cache[filePath]; exists {
		l.mu.RUnlock()
		return cached, nil
	}
	l.mu.RUnlock()

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	rules, err := datalog.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filePath, err)
	}

	name := strings.TrimSuffix(filepath.Base(filePath), PolicyFileExt)
	if err := validatePolicyName(name); err != nil {
		return nil, err
	}

	file := &PolicyFile{
		Path:   filePath,
		Policy: name,
		Rules:  rules,
	}

	l.mu.Lock()
	l.cache[filePath] = file
	l.mu.Unlock()

	l.logger.Debug().
		Str("path", filePath).
		Str("policy", name).
		Int("rules", len(rules)).
		Msg("Policy loaded from file")

	return file, nil
}

// Watch starts watching paths for policy changes and redefines affected
// policies on change.
func (l *Loader) Watch(ctx context.Context, paths []string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	l.watcher = watcher

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			l.logger.Warn().Err(err).Str("path", path).Msg("Failed to stat path for watching")
			continue
		}

		if info.IsDir() {
			if err := l.watchDirectory(path); err != nil {
				l.logger.Warn().Err(err).Str("path", path).Msg("Failed to watch directory")
			}
		} else {
			if err := watcher.Add(path); err != nil {
				l.logger.Warn().Err(err).Str("path", path).Msg("Failed to watch file")
			}
		}
	}

	go l.processEvents(ctx, paths)

	l.logger.Info().
		Int("paths", len(paths)).
		Msg("Started watching policy paths")

	return nil
}

// watchDirectory adds a directory tree to the watcher.
func (l *Loader) watchDirectory(dirPath string) error {
	return filepath.WalkDir(dirPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return l.watcher.Add(path)
		}
		return nil
	})
}

// processEvents processes file system events and triggers reloads.
func (l *Loader) processEvents(ctx context.Context, paths []string) {
	// Debounce reload events
	var reloadTimer *time.Timer
	reloadDelay := 500 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			if l.watcher != nil {
				_ = l.watcher.Close()
			}
			return

		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !strings.HasSuffix(event.Name, PolicyFileExt) {
				continue
			}

			l.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Policy file changed")

			// Clear cache for this file
			l.mu.Lock()
			delete(l.cache, event.Name)
			l.mu.Unlock()

			// A removed or renamed file is not seen by the reload walk, so
			// its policy is emptied here.
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				name := strings.TrimSuffix(filepath.Base(event.Name), PolicyFileExt)
				if err := l.runtime.Define(name, nil); err != nil {
					l.logger.Warn().Err(err).Str("policy", name).
						Msg("Failed to empty policy of removed file")
				}
			}

			// Debounce reload
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(reloadDelay, func() {
				if _, err := l.LoadFromPaths(ctx, paths); err != nil {
					l.logger.Error().Err(err).Msg("Failed to reload policies")
					return
				}
				l.logger.Info().Msg("Policies reloaded")
			})

		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

// StopWatching stops watching for file changes.
func (l *Loader) StopWatching() error {
	if l.watcher != nil {
		return l.watcher.Close()
	}
	return nil
}

// ClearCache drops all cached policy files.
func (l *Loader) ClearCache() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[string]*PolicyFile)
}
