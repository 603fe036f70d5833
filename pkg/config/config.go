package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/semag-arcade/game-importer/pkg/logging"
	"sigs.k8s.io/yaml"
)

// Config holds the complete configuration shared by the import commands
type Config struct {
	Logging *logging.LogConfig `json:"logging"`

	// Outbound HTTP behaviour
	HTTP *HTTPConfig `json:"http"`

	// Parallel download pool
	Pool *PoolConfig `json:"pool"`

	// Courtesy delay for sequential requests
	Politeness *PolitenessConfig `json:"politeness"`

	// Asset localization rules
	Localize *LocalizeConfig `json:"localize"`

	// Directory admission rules
	Admission *AdmissionConfig `json:"admission"`

	// Catalog and game directories
	Paths *PathsConfig `json:"paths"`
}

// HTTPConfig configures the fetcher
type HTTPConfig struct {
	UserAgent      string   `json:"user_agent"`
	Accept         string   `json:"accept"`
	AcceptLanguage string   `json:"accept_language"`
	Timeout        Duration `json:"timeout"`
	MaxContentSize int64    `json:"max_content_size"` // bytes
	RespectRobots  bool     `json:"respect_robots"`
}

// PoolConfig configures the bounded worker pool
type PoolConfig struct {
	Workers    int      `json:"workers"`
	JobTimeout Duration `json:"job_timeout"`
}

// PolitenessConfig configures the per-host delay between sequential requests
type PolitenessConfig struct {
	Delay Duration `json:"delay"`
}

// LocalizeConfig configures which references get downloaded
type LocalizeConfig struct {
	CDNHosts []string `json:"cdn_hosts"`
	Exclude  []string `json:"exclude"`
}

// AdmissionConfig configures the validity check for game directories
type AdmissionConfig struct {
	PortalPatterns []string `json:"portal_patterns"`
	CDNPatterns    []string `json:"cdn_patterns"`
}

// PathsConfig holds catalog and output locations
type PathsConfig struct {
	GamesJSON string `json:"games_json"`
	GamesDir  string `json:"games_dir"`
	SemagDir  string `json:"semag_dir"`
	Source    string `json:"source"` // source tag written into new catalog entries
}

// Duration is a time.Duration that reads "500ms" style strings from config files
type Duration struct {
	time.Duration
}

// MarshalJSON writes the duration in its string form
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts either a duration string or a number of nanoseconds
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
	case string:
		parsed, err := time.ParseDuration(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		d.Duration = parsed
	default:
		return fmt.Errorf("invalid duration: %s", string(b))
	}
	return nil
}

// DefaultCDNHosts are external hosts that count as a valid engine dependency
var DefaultCDNHosts = []string{
	"gacembed.withgoogle.com",
	"jsdelivr.net",
	"unpkg.com",
	"cdnjs.cloudflare.com",
}

// DefaultConfig returns the configuration used when no file is given
func DefaultConfig() *Config {
	return &Config{
		Logging: logging.DefaultLogConfig(),

		HTTP: &HTTPConfig{
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			Accept:         "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			AcceptLanguage: "en-US,en;q=0.5",
			Timeout:        Duration{30 * time.Second},
			MaxContentSize: 512 * 1024 * 1024, // unity builds are large
			RespectRobots:  false,
		},

		Pool: &PoolConfig{
			Workers:    5,
			JobTimeout: Duration{5 * time.Minute},
		},

		Politeness: &PolitenessConfig{
			Delay: Duration{500 * time.Millisecond},
		},

		Localize: &LocalizeConfig{
			CDNHosts: append([]string(nil), DefaultCDNHosts...),
			Exclude: []string{
				"googlesyndication",
				"doubleclick",
				"google-analytics",
				"googletagmanager",
				"facebook",
				"twitter",
				"crazygames.com/portal",
				"crazygames.com/images",
			},
		},

		Admission: &AdmissionConfig{
			PortalPatterns: []string{
				`iframe.*lagged\.com`,
				`iframe.*crazygames`,
				`iframe.*kongregate`,
				`iframe.*gamejolt`,
				`iframe.*itch\.io`,
			},
			CDNPatterns: []string{
				`gacembed\.withgoogle\.com`,
				`jsdelivr\.net`,
				`unpkg\.com`,
				`cdnjs\.cloudflare\.com`,
			},
		},

		Paths: &PathsConfig{
			GamesJSON: "data/games.json",
			GamesDir:  "non-semag",
			SemagDir:  "semag",
			Source:    "non-semag",
		},
	}
}

// DevelopmentConfig returns a configuration with verbose logging
func DevelopmentConfig() *Config {
	config := DefaultConfig()
	config.Logging.Level = "debug"
	config.Pool.Workers = 2
	return config
}

// Load returns the defaults overlaid with the YAML (or JSON) file at path.
// An empty path returns the defaults.
func Load(path string) (*Config, error) {
	return loadOnto(DefaultConfig(), path)
}

// LoadDevelopment is Load starting from DevelopmentConfig
func LoadDevelopment(path string) (*Config, error) {
	return loadOnto(DevelopmentConfig(), path)
}

func loadOnto(config *Config, path string) (*Config, error) {
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return config, nil
}

// Validate checks that required sections are present and sane
func (c *Config) Validate() error {
	if c.Logging == nil || c.HTTP == nil || c.Pool == nil || c.Politeness == nil ||
		c.Localize == nil || c.Admission == nil || c.Paths == nil {
		return fmt.Errorf("config sections cannot be null")
	}
	if c.Pool.Workers < 1 {
		return fmt.Errorf("pool.workers must be at least 1, got %d", c.Pool.Workers)
	}
	if c.HTTP.Timeout.Duration <= 0 {
		return fmt.Errorf("http.timeout must be positive")
	}
	if c.Paths.GamesJSON == "" {
		return fmt.Errorf("paths.games_json cannot be empty")
	}
	return nil
}
