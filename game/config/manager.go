package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/dgraph-io/ristretto"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"github.com/wricardo/partyroom/logging"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// configExtensions are tried in order when looking for a game's file.
var configExtensions = []string{".json", ".yaml", ".yml"}

// Manager serves default settings per game type.
type Manager struct {
	configDir string
	cache     *ristretto.Cache
	watcher   *fsnotify.Watcher
	logger    *log.Logger
	mu        sync.Mutex
}

// NewManager creates a manager reading from configDir. An empty configDir
// serves built-in defaults only; a configDir that does not exist is an
// error.
func NewManager(configDir string, logger *log.Logger) (*Manager, error) {
	if configDir != "" {
		if _, err := os.Stat(configDir); os.IsNotExist(err) {
			return nil, fmt.Errorf("config directory does not exist: %s", configDir)
		}
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e3,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create config cache: %w", err)
	}

	return &Manager{
		configDir: configDir,
		cache:     cache,
		logger:    logging.OrDiscard(logger),
	}, nil
}

// Load returns the default settings for a game type: cached value, file on
// disk merged onto the built-in defaults, or the built-in defaults.
func (m *Manager) Load(gameType GameType) (GameConfig, error) {
	builtin, err := Builtin(gameType)
	if err != nil {
		return nil, err
	}

	if cached, ok := m.cache.Get(string(gameType)); ok {
		if cfg, ok := cached.(GameConfig); ok {
			return cfg, nil
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cfg := builtin
	path := m.findFile(gameType)
	if path != "" {
		raw, err := readSettings(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		cfg = builtin.Merge(raw)
	}

	m.cache.Set(string(gameType), cfg, 1)
	m.cache.Wait()
	return cfg, nil
}

// Defaults returns the default settings of every game type. A game whose
// file cannot be read falls back to its built-in defaults.
func (m *Manager) Defaults() map[GameType]GameConfig {
	out := make(map[GameType]GameConfig, len(AllGameTypes()))
	for _, gt := range AllGameTypes() {
		cfg, err := m.Load(gt)
		if err != nil {
			m.logger.Warn("using built-in defaults", "game", gt, "err", err)
			cfg, _ = Builtin(gt)
		}
		out[gt] = cfg
	}
	return out
}

// Save validates raw against the current defaults and writes the result as
// <gametype>.json. The sanitized settings are returned.
func (m *Manager) Save(gameType GameType, raw map[string]any) (GameConfig, error) {
	if m.configDir == "" {
		return nil, fmt.Errorf("%w: no config directory configured", ErrInvalidConfig)
	}

	current, err := m.Load(gameType)
	if err != nil {
		return nil, err
	}
	cfg := current.Merge(raw)

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Other extensions would shadow the new file on the next load.
	for _, ext := range configExtensions[1:] {
		os.Remove(filepath.Join(m.configDir, string(gameType)+ext))
	}

	path := filepath.Join(m.configDir, string(gameType)+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write config file: %w", err)
	}

	m.cache.Set(string(gameType), cfg, 1)
	m.cache.Wait()
	return cfg, nil
}

// RefreshCache drops every cached value so the next Load rereads disk.
func (m *Manager) RefreshCache() {
	m.cache.Clear()
}

// Watch invalidates cached settings whenever a file in the config directory
// changes. It blocks until ctx is done.
func (m *Manager) Watch(ctx context.Context) error {
	if m.configDir == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(m.configDir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", m.configDir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			gameType, ok := gameTypeForFile(event.Name)
			if !ok {
				continue
			}
			m.cache.Del(string(gameType))
			m.logger.Info("game defaults changed on disk", "game", gameType, "op", event.Op.String())
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.logger.Warn("config watcher error", "err", err)
		}
	}
}

// Close releases the cache.
func (m *Manager) Close() {
	m.cache.Close()
}

func (m *Manager) findFile(gameType GameType) string {
	if m.configDir == "" {
		return ""
	}
	for _, ext := range configExtensions {
		path := filepath.Join(m.configDir, string(gameType)+ext)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func gameTypeForFile(path string) (GameType, bool) {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	known := false
	for _, e := range configExtensions {
		if e == ext {
			known = true
			break
		}
	}
	if !known {
		return "", false
	}
	gt, err := ParseGameType(strings.TrimSuffix(base, ext))
	if err != nil {
		return "", false
	}
	return gt, true
}

func readSettings(path string) (map[string]any, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return v.AllSettings(), nil
}
