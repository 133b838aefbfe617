package depositd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"depositcore/observability/logging"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	if value.Value == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	d.Duration = parsed
	return nil
}

// ContractConfig points at the external contract-generation collaborator.
type ContractConfig struct {
	BaseURL string   `yaml:"base_url"`
	Timeout Duration `yaml:"timeout"`
	// Strict makes contract-generation failures fatal for the request;
	// otherwise they degrade to a response warning.
	Strict bool `yaml:"strict"`
}

// Config captures the runtime configuration for depositd.
type Config struct {
	ListenAddress string              `yaml:"listen"`
	Environment   string              `yaml:"env"`
	LogLevel      string              `yaml:"log_level"`
	LogFile       *logging.FileConfig `yaml:"log_file"`
	DatabasePath  string              `yaml:"database"`
	// TaxRate is the flat withholding on interest and commissions as a 0-1
	// fraction.
	TaxRate float64 `yaml:"tax_rate"`
	// AdminToken guards deposit creation and the admin API. The
	// DEPOSITD_ADMIN_TOKEN environment variable overrides it so the secret
	// can stay out of config files.
	AdminToken string         `yaml:"admin_token"`
	Contract   ContractConfig `yaml:"contract"`
}

// LoadConfig reads, defaults and validates the service configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyDefaults()
	if token := strings.TrimSpace(os.Getenv("DEPOSITD_ADMIN_TOKEN")); token != "" {
		cfg.AdminToken = token
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddress == "" {
		c.ListenAddress = ":8084"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "depositd.db"
	}
	if c.TaxRate == 0 {
		c.TaxRate = 0.2
	}
	if c.Contract.Timeout.Duration == 0 {
		c.Contract.Timeout.Duration = 10 * time.Second
	}
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.TaxRate < 0 || c.TaxRate >= 1 {
		return fmt.Errorf("tax_rate must be in [0, 1), got %v", c.TaxRate)
	}
	if c.Contract.BaseURL != "" && !strings.HasPrefix(c.Contract.BaseURL, "http") {
		return fmt.Errorf("contract url must be http(s), got %q", c.Contract.BaseURL)
	}
	return nil
}
