package mirror

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/PentesterFlow/OpenMirror/internal/auth"
	"github.com/PentesterFlow/OpenMirror/internal/output"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "OPENMIRROR_"

// DefaultCommonFiles are fetched from the site root before the start page.
var DefaultCommonFiles = []string{"robots.txt", "sitemap.xml", "favicon.ico", "manifest.json"}

// Config holds all mirror configuration.
type Config struct {
	// Start URL; https:// is added when no scheme is given
	Target string `json:"target" yaml:"target"`

	// Mirror root; defaults to the sanitized host name
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// Concurrent page workers
	Workers int `json:"workers" yaml:"workers"`

	// Concurrent asset downloads per page
	AssetWorkers int `json:"asset_workers" yaml:"asset_workers"`

	// Maximum link depth from the start page, 0 for unlimited
	MaxDepth int `json:"max_depth" yaml:"max_depth"`

	// Maximum pages admitted to the frontier, 0 for unlimited
	MaxPages int `json:"max_pages" yaml:"max_pages"`

	// Per-fetch timeout
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// Politeness delay between page fetches
	Delay time.Duration `json:"delay" yaml:"delay"`

	UserAgent string            `json:"user_agent" yaml:"user_agent"`
	Headers   map[string]string `json:"headers" yaml:"headers"`

	// Credentials sent with every request
	Auth auth.Credentials `json:"auth" yaml:"auth"`

	Scope ScopeConfig `json:"scope" yaml:"scope"`

	// Skip pages disallowed by robots.txt and honour its Crawl-delay
	RespectRobots bool `json:"respect_robots" yaml:"respect_robots"`

	// Admit same-host sitemap entries as depth 1 pages
	SeedSitemap bool `json:"seed_sitemap" yaml:"seed_sitemap"`

	// Files requested from the site root before the start page
	CommonFiles []string `json:"common_files" yaml:"common_files"`

	MaxBodySize int64 `json:"max_body_size" yaml:"max_body_size"`
	MaxRetries  int   `json:"max_retries" yaml:"max_retries"`

	// Rewrite anchors of pages saved before their targets
	Relink bool `json:"relink" yaml:"relink"`

	// Report file name at the mirror root
	ReportName string `json:"report_name" yaml:"report_name"`

	// Snapshot store path (.db bbolt, .json, .json.gz)
	StateFile string `json:"state_file" yaml:"state_file"`

	SkipTLSVerify bool `json:"skip_tls_verify" yaml:"skip_tls_verify"`

	Verbose bool `json:"verbose" yaml:"verbose"`
	Debug   bool `json:"debug" yaml:"debug"`
}

// ScopeConfig narrows or widens the set of pages followed.
type ScopeConfig struct {
	IncludePatterns []string `json:"include_patterns" yaml:"include_patterns"`
	ExcludePatterns []string `json:"exclude_patterns" yaml:"exclude_patterns"`
	AllowedDomains  []string `json:"allowed_domains" yaml:"allowed_domains"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Workers:      1,
		AssetWorkers: 4,
		Timeout:      30 * time.Second,
		Delay:        500 * time.Millisecond,
		CommonFiles:  append([]string(nil), DefaultCommonFiles...),
		MaxBodySize:  50 << 20,
		MaxRetries:   2,
		Relink:       true,
		ReportName:   output.ReportName,
	}
}

// LoadFromFile loads configuration from a file (YAML or JSON) over the
// defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, config); err != nil {
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	return config, nil
}

// SaveToFile saves configuration to a file, as JSON when the name ends in
// .json and YAML otherwise.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// LoadEnv loads the given .env files, or ./.env when none are named. A
// missing default file is not an error.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from OPENMIRROR_* environment variables.
func (c *Config) ApplyEnv() error {
	var errs []string
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, EnvPrefix+key)
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, EnvPrefix+key)
				return
			}
			*dst = d
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, EnvPrefix+key)
				return
			}
			*dst = b
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = splitList(v)
		}
	}

	str("TARGET", &c.Target)
	str("OUTPUT_DIR", &c.OutputDir)
	str("USER_AGENT", &c.UserAgent)
	str("STATE_FILE", &c.StateFile)
	str("REPORT_NAME", &c.ReportName)
	str("AUTH_TYPE", (*string)(&c.Auth.Type))
	str("AUTH_USERNAME", &c.Auth.Username)
	str("AUTH_PASSWORD", &c.Auth.Password)
	str("AUTH_TOKEN", &c.Auth.Token)
	str("AUTH_COOKIES", &c.Auth.Cookies)
	str("AUTH_API_KEY_HEADER", &c.Auth.APIKeyHeader)
	str("AUTH_API_KEY", &c.Auth.APIKey)
	num("WORKERS", &c.Workers)
	num("ASSET_WORKERS", &c.AssetWorkers)
	num("MAX_DEPTH", &c.MaxDepth)
	num("MAX_PAGES", &c.MaxPages)
	num("MAX_RETRIES", &c.MaxRetries)
	dur("TIMEOUT", &c.Timeout)
	dur("DELAY", &c.Delay)
	flag("RESPECT_ROBOTS", &c.RespectRobots)
	flag("SEED_SITEMAP", &c.SeedSitemap)
	flag("RELINK", &c.Relink)
	flag("SKIP_TLS_VERIFY", &c.SkipTLSVerify)
	flag("VERBOSE", &c.Verbose)
	flag("DEBUG", &c.Debug)
	list("INCLUDE", &c.Scope.IncludePatterns)
	list("EXCLUDE", &c.Scope.ExcludePatterns)
	list("ALLOWED_DOMAINS", &c.Scope.AllowedDomains)
	list("COMMON_FILES", &c.CommonFiles)

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment values: %s", strings.Join(errs, ", "))
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Target) == "" {
		return fmt.Errorf("target URL is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if c.AssetWorkers < 1 {
		return fmt.Errorf("asset workers must be at least 1")
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max depth cannot be negative")
	}
	if c.MaxPages < 0 {
		return fmt.Errorf("max pages cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if _, err := auth.NewProvider(c.Auth); err != nil {
		return fmt.Errorf("invalid auth: %w", err)
	}
	return nil
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	data, _ := json.Marshal(c)
	clone := &Config{}
	json.Unmarshal(data, clone)
	return clone
}
