package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-secure-stdlib/parseutil"
	"github.com/hashicorp/hcl/v2/hclsimple"
)

// Config is the configuration for the credvault service.
type Config struct {
	// MasterSecret is the root key material every per-encryption key is
	// derived from. When empty, a random process-lifetime secret is
	// generated: every credential stored under it becomes permanently
	// unrecoverable after a restart. Dev convenience only.
	MasterSecret string `hcl:"master_secret,optional"`

	// ClearOnStartup wipes the token table and its snapshot when the
	// service starts. Remedy for systemic corruption after a master-secret
	// rotation.
	ClearOnStartup bool `hcl:"clear_on_startup,optional"`

	// AllowGlobalReset enables the administrative global sweep of
	// inactive tokens. Keep disabled in production.
	AllowGlobalReset bool `hcl:"allow_global_reset,optional"`

	LogLevel  string `hcl:"log_level,optional"`
	LogFormat string `hcl:"log_format,optional"`
	LogFile   string `hcl:"log_file,optional"`

	ProbeTimeout string `hcl:"probe_timeout,optional"`

	Storage   *StorageBlock   `hcl:"storage,block"`
	RateLimit *RateLimitBlock `hcl:"rate_limit,block"`
}

// StorageBlock configures the snapshot backend.
type StorageBlock struct {
	Type string `hcl:"type,label"` // "inmem" or "file"

	// File storage specific config
	Path string `hcl:"path,optional"`
}

// Config returns the storage configuration as a map
func (s *StorageBlock) Config() map[string]string {
	config := make(map[string]string)
	config["type"] = s.Type
	if s.Path != "" {
		config["path"] = s.Path
	}
	return config
}

// RateLimitBlock configures the attempt limiter consulted before expensive
// network-validating calls.
type RateLimitBlock struct {
	MaxAttempts int    `hcl:"max_attempts,optional"`
	Window      string `hcl:"window,optional"`
}

// WindowDuration parses the configured window. Accepts duration strings
// ("15m") and bare seconds.
func (r *RateLimitBlock) WindowDuration() (time.Duration, error) {
	if r.Window == "" {
		return 15 * time.Minute, nil
	}
	d, err := parseutil.ParseDurationSecond(r.Window)
	if err != nil {
		return 0, fmt.Errorf("invalid rate_limit window %q: %w", r.Window, err)
	}
	return d, nil
}

// ProbeTimeoutDuration parses the configured probe timeout.
func (c *Config) ProbeTimeoutDuration() (time.Duration, error) {
	if c.ProbeTimeout == "" {
		return 10 * time.Second, nil
	}
	d, err := parseutil.ParseDurationSecond(c.ProbeTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid probe_timeout %q: %w", c.ProbeTimeout, err)
	}
	return d, nil
}

// LoadConfig reads and decodes an HCL configuration file.
func LoadConfig(configFile string) (*Config, error) {
	var config Config

	err := hclsimple.DecodeFile(configFile, nil, &config)
	if err != nil {
		return nil, err
	}

	if config.Storage == nil {
		config.Storage = &StorageBlock{Type: "inmem"}
	}
	if config.RateLimit == nil {
		config.RateLimit = &RateLimitBlock{MaxAttempts: 5}
	}
	if config.RateLimit.MaxAttempts == 0 {
		config.RateLimit.MaxAttempts = 5
	}

	return &config, nil
}
