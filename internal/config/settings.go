package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// Settings is the persistent TOML settings file backing show-config and
// update-config. Keys use dot notation (nested tables are flattened on
// load). Environment variables take precedence over settings values.
type Settings struct {
	mu       sync.RWMutex
	filePath string
	data     map[string]any
}

// DefaultSettingsPath returns the settings file location, honoring
// DOCSIFT_CONFIG when set.
func DefaultSettingsPath() string {
	if p := os.Getenv("DOCSIFT_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(home, ".docsift", "config.toml")
}

// OpenSettings loads the settings file at path, creating parent directories
// as needed. A missing file is not an error; the store starts empty.
func OpenSettings(path string) (*Settings, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create settings dir: %w", err)
	}
	s := &Settings{
		filePath: path,
		data:     make(map[string]any),
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load reads and flattens the TOML file. Missing file leaves the store empty.
func (s *Settings) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			s.data = make(map[string]any)
			return nil
		}
		return fmt.Errorf("read settings: %w", err)
	}

	var loaded map[string]any
	if err := toml.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parse settings: %w", err)
	}
	if loaded == nil {
		loaded = make(map[string]any)
	}
	s.data = flatten(loaded, "")
	return nil
}

// Get returns the raw value for a dot-notation key.
func (s *Settings) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *Settings) GetString(key string) string {
	v, ok := s.Get(key)
	if !ok {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	}
	return ""
}

func (s *Settings) GetInt(key string) (int, bool) {
	v, ok := s.Get(key)
	if !ok {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return int(val), true
	case int:
		return val, true
	}
	return 0, false
}

func (s *Settings) GetFloat(key string) (float64, bool) {
	v, ok := s.Get(key)
	if !ok {
		return 0, false
	}
	switch val := v.(type) {
	case float64:
		return val, true
	case int64:
		return float64(val), true
	}
	return 0, false
}

func (s *Settings) GetBool(key string) (bool, bool) {
	v, ok := s.Get(key)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// Set stores a value and persists the file immediately.
// String values that parse as bool, int, or float are stored typed.
func (s *Settings) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = coerce(value)
	return s.save()
}

// Keys returns all known keys, sorted.
func (s *Settings) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Path returns the settings file path.
func (s *Settings) Path() string {
	return s.filePath
}

// save marshals the data back into nested tables. Caller holds the lock.
func (s *Settings) save() error {
	nested := unflatten(s.data)
	out, err := toml.Marshal(nested)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	return os.WriteFile(s.filePath, out, 0600)
}

func coerce(v string) any {
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return v
}

// flatten converts nested maps to dot-notation keys:
// {"a": {"b": 1}} becomes {"a.b": 1}.
func flatten(m map[string]any, prefix string) map[string]any {
	out := make(map[string]any)
	for key, value := range m {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			for k, v := range flatten(nested, full) {
				out[k] = v
			}
		} else {
			out[full] = value
		}
	}
	return out
}

// unflatten rebuilds nested tables from dot-notation keys.
func unflatten(flat map[string]any) map[string]any {
	out := make(map[string]any)
	for key, value := range flat {
		cur := out
		for {
			i := strings.IndexByte(key, '.')
			if i < 0 {
				cur[key] = value
				break
			}
			head, rest := key[:i], key[i+1:]
			next, ok := cur[head].(map[string]any)
			if !ok {
				next = make(map[string]any)
				cur[head] = next
			}
			cur = next
			key = rest
		}
	}
	return out
}
