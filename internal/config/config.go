package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration lets yaml carry values like "3s" or "30m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	Server struct {
		Port    int  `yaml:"port"`
		Verbose bool `yaml:"verbose"`
	} `yaml:"server"`

	StandaloneMode bool `yaml:"standalone_mode"`

	Payments struct {
		MinAmount int64  `yaml:"min_amount"`
		MaxAmount int64  `yaml:"max_amount"`
		Country   string `yaml:"country"`
		Direction string `yaml:"direction"`
		Memo      string `yaml:"memo"`
	} `yaml:"payments"`

	Endpoints struct {
		VerifyURL  string `yaml:"verify_url"`
		PayURL     string `yaml:"pay_url"`
		StatusBase string `yaml:"status_base"`
	} `yaml:"endpoints"`

	Link struct {
		Domain string `yaml:"domain"`
	} `yaml:"link"`

	Poll struct {
		Interval    Duration `yaml:"interval"`
		Step        Duration `yaml:"step"`
		MaxInterval Duration `yaml:"max_interval"`
		Timeout     Duration `yaml:"timeout"`
	} `yaml:"poll"`

	Branding struct {
		Name       string `yaml:"name"`
		Background string `yaml:"background"`
		Card       string `yaml:"card"`
		Accent     string `yaml:"accent"`
		Text       string `yaml:"text"`
	} `yaml:"branding"`

	Merchant struct {
		WebhookURL string `yaml:"webhook_url"`
	} `yaml:"merchant"`

	SessionTTL Duration `yaml:"session_ttl"`
}

const (
	defaultPort       = 8085
	defaultMinAmount  = 500
	defaultMaxAmount  = 50_000_000
	defaultCountry    = "UG"
	defaultDirection  = "paylink"
	defaultStatusBase = "https://api.munopay.com/api/v1/transactions"
	defaultSessionTTL = Duration(30 * time.Minute)
)

// Load reads config.yaml (path overridable via PAYLINK_CONFIG), applies
// defaults, then applies environment overrides.
func Load() (*Config, error) {
	path := valueOrDefault("PAYLINK_CONFIG", "config.yaml")

	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Missing file is fine, defaults plus env cover everything.
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Payments.MinAmount <= 0 {
		c.Payments.MinAmount = defaultMinAmount
	}
	if c.Payments.MaxAmount <= 0 {
		c.Payments.MaxAmount = defaultMaxAmount
	}
	if c.Payments.Country == "" {
		c.Payments.Country = defaultCountry
	}
	if c.Payments.Direction == "" {
		c.Payments.Direction = defaultDirection
	}
	if c.Endpoints.StatusBase == "" {
		c.Endpoints.StatusBase = defaultStatusBase
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = defaultSessionTTL
	}
}

func (c *Config) applyEnv() error {
	port, err := parseIntEnv("PAYLINK_PORT", c.Server.Port)
	if err != nil {
		return err
	}
	if port <= 0 || port > 65535 {
		return fmt.Errorf("port %d is out of range", port)
	}
	c.Server.Port = port

	c.Server.Verbose = parseBoolEnv("PAYLINK_VERBOSE", c.Server.Verbose)
	c.StandaloneMode = parseBoolEnv("PAYLINK_STANDALONE", c.StandaloneMode)

	c.Endpoints.VerifyURL = valueOrDefault("PAYLINK_VERIFY_URL", c.Endpoints.VerifyURL)
	c.Endpoints.PayURL = valueOrDefault("PAYLINK_PAY_URL", c.Endpoints.PayURL)
	c.Endpoints.StatusBase = valueOrDefault("PAYLINK_STATUS_BASE", c.Endpoints.StatusBase)
	c.Link.Domain = valueOrDefault("PAYLINK_DOMAIN", c.Link.Domain)
	c.Merchant.WebhookURL = valueOrDefault("PAYLINK_MERCHANT_WEBHOOK", c.Merchant.WebhookURL)

	min64, err := parseInt64Env("PAYLINK_MIN_AMOUNT", c.Payments.MinAmount)
	if err != nil {
		return err
	}
	c.Payments.MinAmount = min64

	max64, err := parseInt64Env("PAYLINK_MAX_AMOUNT", c.Payments.MaxAmount)
	if err != nil {
		return err
	}
	c.Payments.MaxAmount = max64

	if c.Payments.MinAmount > c.Payments.MaxAmount {
		return fmt.Errorf("min_amount %d exceeds max_amount %d", c.Payments.MinAmount, c.Payments.MaxAmount)
	}
	return nil
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBoolEnv(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if val, err := strconv.ParseBool(v); err == nil {
			return val
		}
	}
	return fallback
}

func parseIntEnv(key string, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		val, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
		}
		return val, nil
	}
	return fallback, nil
}

func parseInt64Env(key string, fallback int64) (int64, error) {
	if v := os.Getenv(key); v != "" {
		val, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
		}
		return val, nil
	}
	return fallback, nil
}
