// Package settings holds the runtime-editable credentials and endpoints for
// Radarr, Sonarr and Discord.
//
// Values are layered with koanf: built-in defaults, then the JSON settings
// file, then environment variables (SONARR_API_KEY, RADARR_API_KEY,
// DISCORD_BOT_TOKEN, SONARR_URL, RADARR_URL). The admin surface can change
// them at runtime; every change is written back to the settings file.
// Callers take a Snapshot per operation, so an update only affects
// operations that start after it.
package settings

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	DefaultSonarrURL = "http://localhost:8989"
	DefaultRadarrURL = "http://localhost:7878"
)

// ErrInvalid is returned when an update carries an unusable value.
var ErrInvalid = errors.New("invalid settings")

// Settings is an immutable snapshot of the current values.
type Settings struct {
	SonarrAPIKey    string `koanf:"sonarr_api_key"    json:"sonarr_api_key"`
	RadarrAPIKey    string `koanf:"radarr_api_key"    json:"radarr_api_key"`
	DiscordBotToken string `koanf:"discord_bot_token" json:"discord_bot_token"`
	SonarrURL       string `koanf:"sonarr_url"        json:"sonarr_url"`
	RadarrURL       string `koanf:"radarr_url"        json:"radarr_url"`
}

// Update is a partial change. Nil fields are left as they are.
type Update struct {
	SonarrAPIKey    *string `json:"sonarr_api_key,omitempty"`
	RadarrAPIKey    *string `json:"radarr_api_key,omitempty"`
	DiscordBotToken *string `json:"discord_bot_token,omitempty"`
	SonarrURL       *string `json:"sonarr_url,omitempty"`
	RadarrURL       *string `json:"radarr_url,omitempty"`
}

// envKeys maps the recognized environment variables to settings keys.
var envKeys = map[string]string{
	"SONARR_API_KEY":    "sonarr_api_key",
	"RADARR_API_KEY":    "radarr_api_key",
	"DISCORD_BOT_TOKEN": "discord_bot_token",
	"SONARR_URL":        "sonarr_url",
	"RADARR_URL":        "radarr_url",
}

// Store guards the current Settings. It is safe for concurrent use.
type Store struct {
	path string

	mu  sync.RWMutex
	cur Settings
}

// Load builds a Store from defaults, the file at path (if it exists) and the
// environment. A missing file is not an error; an unreadable or malformed one is.
func Load(path string) (*Store, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"sonarr_url": DefaultSonarrURL,
		"radarr_url": DefaultRadarrURL,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), kjson.Parser()); err != nil {
				return nil, fmt.Errorf("load settings file %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat settings file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", func(key, value string) (string, interface{}) {
		name, ok := envKeys[key]
		if !ok || strings.TrimSpace(value) == "" {
			return "", nil
		}
		return name, value
	}), nil); err != nil {
		return nil, fmt.Errorf("load settings env: %w", err)
	}

	var s Settings
	if err := k.Unmarshal("", &s); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	return &Store{path: path, cur: s}, nil
}

// NewStore returns a Store holding s. An empty path disables persistence.
func NewStore(s Settings, path string) *Store {
	return &Store{path: path, cur: s}
}

// Snapshot returns the current values.
func (st *Store) Snapshot() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.cur
}

// Apply validates and merges u, writes the result to the settings file and
// only then makes it visible to readers. On error nothing changes.
func (st *Store) Apply(u Update) (Settings, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	next := st.cur
	set(&next.SonarrAPIKey, u.SonarrAPIKey)
	set(&next.RadarrAPIKey, u.RadarrAPIKey)
	set(&next.DiscordBotToken, u.DiscordBotToken)
	set(&next.SonarrURL, u.SonarrURL)
	set(&next.RadarrURL, u.RadarrURL)

	if err := validateURL("sonarr_url", next.SonarrURL); err != nil {
		return st.cur, err
	}
	if err := validateURL("radarr_url", next.RadarrURL); err != nil {
		return st.cur, err
	}

	if err := st.persist(next); err != nil {
		return st.cur, err
	}
	st.cur = next
	return next, nil
}

func (st *Store) persist(s Settings) error {
	if st.path == "" {
		return nil
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"sonarr_api_key":    s.SonarrAPIKey,
		"radarr_api_key":    s.RadarrAPIKey,
		"discord_bot_token": s.DiscordBotToken,
		"sonarr_url":        s.SonarrURL,
		"radarr_url":        s.RadarrURL,
	}, "."), nil); err != nil {
		return fmt.Errorf("stage settings: %w", err)
	}
	b, err := k.Marshal(kjson.Parser())
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	// Atomic replace via temp file + rename.
	tmp, err := os.CreateTemp(filepath.Dir(st.path), ".settings-*.json")
	if err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), st.path); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

func set(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func validateURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %s must be an absolute http(s) URL", ErrInvalid, field)
	}
	return nil
}
