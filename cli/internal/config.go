package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/devilmonastery/kitesession/internal/autologin"
	"github.com/devilmonastery/kitesession/internal/domain/entities"
	"github.com/devilmonastery/kitesession/internal/infrastructure/filestore"
)

// KiteConfig holds the account and API app settings. Values may reference
// environment variables as ${VAR}.
type KiteConfig struct {
	UserID           string        `yaml:"user_id"`
	Password         string        `yaml:"password,omitempty"`
	SecondFactor     string        `yaml:"second_factor,omitempty"`
	SecondFactorKind string        `yaml:"second_factor_kind,omitempty"`
	APIKey           string        `yaml:"api_key"`
	APISecret        string        `yaml:"api_secret"`
	RedirectURL      string        `yaml:"redirect_url"`
	BaseURI          string        `yaml:"base_uri,omitempty"`
	Timeout          time.Duration `yaml:"timeout,omitempty"`
}

// BrowserConfig controls the automated login browser
type BrowserConfig struct {
	Headless       *bool               `yaml:"headless,omitempty"`
	ExecPath       string              `yaml:"exec_path,omitempty"`
	Debug          bool                `yaml:"debug,omitempty"`
	WaitTimeout    time.Duration       `yaml:"wait_timeout,omitempty"`
	ElementTimeout time.Duration       `yaml:"element_timeout,omitempty"`
	Selectors      autologin.Selectors `yaml:"selectors,omitempty"`
}

// IsHeadless reports whether the browser runs without a window. Defaults to true.
func (b BrowserConfig) IsHeadless() bool {
	return b.Headless == nil || *b.Headless
}

// Context represents a named configuration context (like kubectl contexts)
type Context struct {
	Kite        KiteConfig    `yaml:"kite"`
	Browser     BrowserConfig `yaml:"browser,omitempty"`
	TokenFile   string        `yaml:"token_file,omitempty"`
	MetricsFile string        `yaml:"metrics_file,omitempty"`
	Rendering   struct {
		Theme string `yaml:"theme"`
	} `yaml:"rendering"`
}

// Config represents the CLI configuration with multiple contexts
type Config struct {
	CurrentContext string              `yaml:"current-context"`
	Contexts       map[string]*Context `yaml:"contexts"`
}

// DefaultConfig returns a single "default" context that reads every secret
// from the environment
func DefaultConfig() *Config {
	ctx := &Context{
		Kite: KiteConfig{
			UserID:       "${KITE_USER_ID}",
			Password:     "${KITE_PASSWORD}",
			SecondFactor: "${KITE_PIN}",
			APIKey:       "${KITE_API_KEY}",
			APISecret:    "${KITE_API_SECRET}",
			RedirectURL:  "${KITE_REDIRECT_URL}",
		},
	}
	ctx.Rendering.Theme = "auto"

	return &Config{
		CurrentContext: "default",
		Contexts: map[string]*Context{
			"default": ctx,
		},
	}
}

// GetCurrentContext returns the current active context
func (c *Config) GetCurrentContext() (*Context, error) {
	if c.CurrentContext == "" {
		return nil, fmt.Errorf("no current context set")
	}

	ctx, ok := c.Contexts[c.CurrentContext]
	if !ok {
		return nil, fmt.Errorf("current context %q not found", c.CurrentContext)
	}

	return ctx, nil
}

// SetCurrentContext sets the current active context
func (c *Config) SetCurrentContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q does not exist", name)
	}
	c.CurrentContext = name
	return nil
}

// AddContext adds or updates a context
func (c *Config) AddContext(name string, ctx *Context) {
	if c.Contexts == nil {
		c.Contexts = make(map[string]*Context)
	}
	c.Contexts[name] = ctx
}

// DeleteContext removes a context
func (c *Config) DeleteContext(name string) error {
	if name == c.CurrentContext {
		return fmt.Errorf("cannot delete current context %q", name)
	}
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q does not exist", name)
	}
	delete(c.Contexts, name)
	return nil
}

// configPathOverride is set by the --config flag
var configPathOverride string

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	if configPathOverride != "" {
		return configPathOverride, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".kitesession"), nil
}

// LoadConfig loads configuration from the config file, creating it with
// defaults on first use
func LoadConfig() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return loadConfigFile(configPath)
}

func loadConfigFile(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		defaultConfig := DefaultConfig()
		if err := saveConfigFile(configPath, defaultConfig); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return defaultConfig, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Ensure we have a valid current context
	if config.CurrentContext == "" && len(config.Contexts) > 0 {
		for name := range config.Contexts {
			config.CurrentContext = name
			break
		}
	}

	return &config, nil
}

// SaveConfig saves configuration to the config file
func SaveConfig(config *Config) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}
	return saveConfigFile(configPath, config)
}

func saveConfigFile(configPath string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// The file may hold secrets
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Credentials expands the kite section into login credentials
func (ctx *Context) Credentials() entities.Credentials {
	k := ctx.Kite
	return entities.Credentials{
		UserID:           os.ExpandEnv(k.UserID),
		Password:         os.ExpandEnv(k.Password),
		SecondFactor:     os.ExpandEnv(k.SecondFactor),
		SecondFactorKind: entities.SecondFactorKind(os.ExpandEnv(k.SecondFactorKind)),
		APIKey:           os.ExpandEnv(k.APIKey),
		APISecret:        os.ExpandEnv(k.APISecret),
		RedirectURL:      os.ExpandEnv(k.RedirectURL),
	}
}

// TokenPath returns the token file for this context, defaulting to
// access.token.txt in the working directory
func (ctx *Context) TokenPath() (string, error) {
	if ctx.TokenFile != "" {
		return os.ExpandEnv(ctx.TokenFile), nil
	}
	return filestore.DefaultTokenPath()
}

// MetricsPath returns the prometheus textfile path, or "" when disabled
func (ctx *Context) MetricsPath() string {
	return os.ExpandEnv(ctx.MetricsFile)
}

// Theme returns the glamour style, "auto" when unset
func (ctx *Context) Theme() string {
	if ctx.Rendering.Theme == "" {
		return "auto"
	}
	return ctx.Rendering.Theme
}
