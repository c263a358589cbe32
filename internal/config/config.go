package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"shiftcal/internal/layout"
	"shiftcal/internal/roster"
)

// DefaultPath is where the service looks for its config when no
// --config flag is given.
const DefaultPath = "/etc/shiftcal/config.yaml"

// RosterConfig describes a single roster source. Either URL (an ICS
// subscription) or Path (a local .ics or .json file) must be set.
type RosterConfig struct {
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" toml:"id" json:"id"`
	// Name is a human-friendly label shown in the UI.
	Name        string `yaml:"name" toml:"name" json:"name"`
	URL         string `yaml:"url,omitempty" toml:"url,omitempty" json:"url,omitempty"`
	Path        string `yaml:"path,omitempty" toml:"path,omitempty" json:"path,omitempty"`
	FranchiseID string `yaml:"franchise_id,omitempty" toml:"franchise_id,omitempty" json:"franchise_id,omitempty"`
}

// LayoutConfig mirrors layout.Options.
type LayoutConfig struct {
	ContainerWidthPx float64 `yaml:"container_width_px" toml:"container_width_px" json:"container_width_px"`
	MinCardWidthPx   float64 `yaml:"min_card_width_px" toml:"min_card_width_px" json:"min_card_width_px"`
	DeckOffsetPx     float64 `yaml:"deck_offset_px" toml:"deck_offset_px" json:"deck_offset_px"`
	MinHeightMinutes int     `yaml:"min_height_minutes" toml:"min_height_minutes" json:"min_height_minutes"`
	// Midnight is "end_of_day" (default) or "by_date".
	Midnight string `yaml:"midnight" toml:"midnight" json:"midnight"`
	Expand   bool   `yaml:"expand" toml:"expand" json:"expand"`
}

// CacheConfig selects the layout cache backend.
type CacheConfig struct {
	// Backend is "memory" (default), "redis" or "none".
	Backend string `yaml:"backend" toml:"backend" json:"backend"`
	// TTL is a Go duration string such as "15m".
	TTL           string `yaml:"ttl" toml:"ttl" json:"ttl"`
	RedisAddr     string `yaml:"redis_addr,omitempty" toml:"redis_addr,omitempty" json:"redis_addr,omitempty"`
	RedisPassword string `yaml:"redis_password,omitempty" toml:"redis_password,omitempty" json:"redis_password,omitempty"`
	RedisDB       int    `yaml:"redis_db,omitempty" toml:"redis_db,omitempty" json:"redis_db,omitempty"`
	Prefix        string `yaml:"prefix,omitempty" toml:"prefix,omitempty" json:"prefix,omitempty"`
}

// CaptureConfig controls the headless browser snapshot of the week page.
type CaptureConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled" json:"enabled"`
	// URL defaults to the local /week page.
	URL     string `yaml:"url,omitempty" toml:"url,omitempty" json:"url,omitempty"`
	Output  string `yaml:"output" toml:"output" json:"output"`
	Width   int    `yaml:"width" toml:"width" json:"width"`
	Height  int    `yaml:"height" toml:"height" json:"height"`
	Timeout string `yaml:"timeout" toml:"timeout" json:"timeout"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" toml:"username" json:"username"`
	Password string `yaml:"password" toml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" toml:"listen" json:"listen"`

	// Timezone is the IANA timezone used as display zone (e.g. "Europe/Madrid").
	Timezone string `yaml:"timezone" toml:"timezone" json:"timezone"`

	// WeekStart is "monday" (default) or "sunday".
	WeekStart string `yaml:"week_start" toml:"week_start" json:"week_start"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *").
	RefreshCron string `yaml:"refresh" toml:"refresh" json:"refresh"`

	// Days is the number of day columns shown by default.
	Days int `yaml:"days" toml:"days" json:"days"`

	// View is "full" (default) or "prime".
	View string `yaml:"view" toml:"view" json:"view"`

	// CacheDir holds the roster feed disk cache.
	CacheDir string `yaml:"cache_dir" toml:"cache_dir" json:"cache_dir"`

	Layout  LayoutConfig   `yaml:"layout" toml:"layout" json:"layout"`
	Roster  []RosterConfig `yaml:"roster" toml:"roster" json:"roster"`
	Cache   CacheConfig    `yaml:"cache" toml:"cache" json:"cache"`
	Capture CaptureConfig  `yaml:"capture" toml:"capture" json:"capture"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" toml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Normalize()
	return cfg
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "Europe/Madrid"
	}
	switch c.WeekStart {
	case "monday", "sunday":
	default:
		// Unknown value; fall back to monday to avoid surprising layouts.
		c.WeekStart = "monday"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/15 * * * *"
	}
	if c.Days <= 0 {
		c.Days = 7
	}
	if c.View != "prime" {
		c.View = "full"
	}
	if c.CacheDir == "" {
		c.CacheDir = "/var/lib/shiftcal/roster-cache"
	}

	d := layout.DefaultOptions()
	if c.Layout.ContainerWidthPx <= 0 {
		c.Layout.ContainerWidthPx = d.ContainerWidthPx
	}
	if c.Layout.MinCardWidthPx <= 0 {
		c.Layout.MinCardWidthPx = d.MinCardWidthPx
	}
	if c.Layout.DeckOffsetPx <= 0 {
		c.Layout.DeckOffsetPx = d.DeckOffsetPx
	}
	if c.Layout.MinHeightMinutes <= 0 {
		c.Layout.MinHeightMinutes = d.MinHeightMinutes
	}
	if c.Layout.Midnight != string(layout.MidnightByDate) {
		c.Layout.Midnight = string(layout.MidnightEndOfDay)
	}

	if c.Roster == nil {
		c.Roster = []RosterConfig{}
	}
	for i := range c.Roster {
		if c.Roster[i].ID == "" {
			c.Roster[i].ID = fmt.Sprintf("roster-%d", i+1)
		}
	}

	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
	if c.Cache.TTL == "" {
		c.Cache.TTL = "15m"
	}
	if c.Cache.Prefix == "" {
		c.Cache.Prefix = "shiftcal"
	}

	if c.Capture.Output == "" {
		c.Capture.Output = "/var/lib/shiftcal/week.png"
	}
	if c.Capture.Width <= 0 {
		c.Capture.Width = 1600
	}
	if c.Capture.Height <= 0 {
		c.Capture.Height = 1000
	}
	if c.Capture.Timeout == "" {
		c.Capture.Timeout = "30s"
	}
}

// Validate reports settings that cannot be fixed by Normalize.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	if _, err := time.ParseDuration(c.Cache.TTL); err != nil {
		return fmt.Errorf("config: cache.ttl %q: %w", c.Cache.TTL, err)
	}
	if _, err := time.ParseDuration(c.Capture.Timeout); err != nil {
		return fmt.Errorf("config: capture.timeout %q: %w", c.Capture.Timeout, err)
	}
	for _, r := range c.Roster {
		if r.URL == "" && r.Path == "" {
			return fmt.Errorf("config: roster %q has neither url nor path", r.ID)
		}
	}
	return nil
}

// Location loads the configured display timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// LayoutOptions converts the layout section into engine options.
func (c *Config) LayoutOptions() layout.Options {
	return layout.Options{
		ContainerWidthPx: c.Layout.ContainerWidthPx,
		MinCardWidthPx:   c.Layout.MinCardWidthPx,
		DeckOffsetPx:     c.Layout.DeckOffsetPx,
		MinHeightMinutes: c.Layout.MinHeightMinutes,
		Midnight:         layout.MidnightPolicy(c.Layout.Midnight),
		Expand:           c.Layout.Expand,
	}
}

// Sources converts the roster section into loader sources.
func (c *Config) Sources() []roster.Source {
	out := make([]roster.Source, 0, len(c.Roster))
	for _, r := range c.Roster {
		out = append(out, roster.Source{
			ID:          r.ID,
			Name:        r.Name,
			URL:         r.URL,
			Path:        r.Path,
			FranchiseID: r.FranchiseID,
		})
	}
	return out
}

// CacheTTL returns the parsed cache TTL, or 15 minutes if it is invalid.
func (c *Config) CacheTTL() time.Duration {
	d, err := time.ParseDuration(c.Cache.TTL)
	if err != nil {
		return 15 * time.Minute
	}
	return d
}

// CaptureTimeout returns the parsed capture timeout, or 30 seconds if it
// is invalid.
func (c *Config) CaptureTimeout() time.Duration {
	d, err := time.ParseDuration(c.Capture.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Load loads configuration from the given YAML or TOML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the file is decoded by extension (.toml or YAML) and
//     normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if isTOML(path) {
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

func encode(path string, cfg *Config) ([]byte, error) {
	if !isTOML(path) {
		return yaml.Marshal(cfg)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := encode(path, cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".shiftcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the
// package-level Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
