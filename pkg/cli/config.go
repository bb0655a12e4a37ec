package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

const (
	// DefaultBaseDir is the base configuration directory name
	DefaultBaseDir = ".config"
	// DefaultConfigFile is the default configuration filename
	DefaultConfigFile = "config.yaml"
)

// Config represents the main configuration structure for a CLI app
type Config struct {
	// AppName is the application name (e.g., "doubaotts")
	AppName string `yaml:"-"`

	// CurrentContext is the name of the currently active context
	CurrentContext string `yaml:"current_context,omitempty"`

	// Contexts is a map of context name to context configuration
	Contexts map[string]*Context `yaml:"contexts,omitempty"`

	// configPath is the path to the config file
	configPath string
}

// Context is one named set of credentials and synthesis defaults.
type Context struct {
	// Name is the context name
	Name string `yaml:"name"`

	// AppID is the application ID, sent as X-Api-App-Key
	AppID string `yaml:"app_id"`

	// AccessKey is the access token, sent as X-Api-Access-Key
	AccessKey string `yaml:"access_key"`

	// ResourceID overrides X-Api-Resource-Id (optional)
	ResourceID string `yaml:"resource_id,omitempty"`

	// URL overrides the endpoint (optional)
	URL string `yaml:"url,omitempty"`

	// UserID is the uid sent in request payloads (optional)
	UserID string `yaml:"user_id,omitempty"`

	// Speaker is the default voice
	Speaker string `yaml:"speaker,omitempty"`

	// Format is the default audio format: pcm, mp3 or ogg_opus (optional)
	Format string `yaml:"format,omitempty"`

	// SampleRate is the default sample rate in Hz (optional)
	SampleRate int `yaml:"sample_rate,omitempty"`

	// HandshakeTimeout is the handshake timeout in seconds (optional)
	HandshakeTimeout int `yaml:"handshake_timeout,omitempty"`
}

// Validate reports missing credentials.
func (ctx *Context) Validate() error {
	var errs []error
	if ctx.AppID == "" {
		errs = append(errs, fmt.Errorf("context %q: app_id is required", ctx.Name))
	}
	if ctx.AccessKey == "" {
		errs = append(errs, fmt.Errorf("context %q: access_key is required", ctx.Name))
	}
	return errors.Join(errs...)
}

// Timeout returns HandshakeTimeout as a duration, or 0 when unset.
func (ctx *Context) Timeout() time.Duration {
	return time.Duration(ctx.HandshakeTimeout) * time.Second
}

// LoadConfig loads or creates configuration for the specified app
func LoadConfig(appName string) (*Config, error) {
	return LoadConfigWithPath(appName, "")
}

// LoadConfigWithPath loads configuration from a custom path. The default path
// is ~/.config/<app>/config.yaml.
func LoadConfigWithPath(appName, customPath string) (*Config, error) {
	var configPath string

	if customPath != "" {
		configPath = customPath
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, DefaultBaseDir, appName, DefaultConfigFile)
	}

	// Ensure config directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	cfg := &Config{
		AppName:    appName,
		Contexts:   make(map[string]*Context),
		configPath: configPath,
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.Save()
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Contexts == nil {
		cfg.Contexts = make(map[string]*Context)
	}
	for name, ctx := range cfg.Contexts {
		ctx.Name = name
	}

	cfg.AppName = appName
	cfg.configPath = configPath

	return cfg, nil
}

// Save saves the configuration to disk. The file holds access keys, so it is
// written owner-only.
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Path returns the config file path
func (c *Config) Path() string {
	return c.configPath
}

// AddContext adds or replaces a context
func (c *Config) AddContext(name string, ctx *Context) error {
	ctx.Name = name
	c.Contexts[name] = ctx
	return c.Save()
}

// DeleteContext removes a context
func (c *Config) DeleteContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	delete(c.Contexts, name)
	if c.CurrentContext == name {
		c.CurrentContext = ""
	}
	return c.Save()
}

// UseContext sets the current context
func (c *Config) UseContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	c.CurrentContext = name
	return c.Save()
}

// GetContext returns a specific context
func (c *Config) GetContext(name string) (*Context, error) {
	ctx, ok := c.Contexts[name]
	if !ok {
		return nil, fmt.Errorf("context %q not found", name)
	}
	return ctx, nil
}

// GetCurrentContext returns the current context
func (c *Config) GetCurrentContext() (*Context, error) {
	if c.CurrentContext == "" {
		return nil, fmt.Errorf("no current context set")
	}
	return c.GetContext(c.CurrentContext)
}

// ResolveContext returns the context by name, or current context if name is empty
func (c *Config) ResolveContext(name string) (*Context, error) {
	if name == "" {
		return c.GetCurrentContext()
	}
	return c.GetContext(name)
}

// ListContexts returns all context names in sorted order
func (c *Config) ListContexts() []string {
	names := make([]string, 0, len(c.Contexts))
	for name := range c.Contexts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MaskAPIKey masks a secret for display
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
