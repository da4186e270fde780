package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alnah/go-texbot/internal/fileutil"
	"github.com/alnah/go-texbot/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrFieldTooLong    = errors.New("field exceeds maximum length")
	ErrInvalidValue    = errors.New("invalid config value")
)

// Field length limits.
const (
	MaxPrefixLength  = 32   // "!tex"
	MaxHelpLength    = 2000 // help reply
	MaxURLLength     = 2048 // browser limit
	MaxChannelLength = 64   // Twitch channel names are at most 25
	MaxChannels      = 100
)

// Renderer names.
const (
	RendererLocal   = "local"
	RendererRemote  = "remote"
	RendererBrowser = "browser"
)

// Publish backends.
const (
	PublishURL = "url"
	PublishS3  = "s3"
)

// Config holds all configuration for the bot. It is loaded once at startup
// and passed explicitly to each component.
type Config struct {
	Bot       BotConfig       `yaml:"bot"`
	Render    RenderConfig    `yaml:"render"`
	Toolchain ToolchainConfig `yaml:"toolchain"`
	Remote    RemoteConfig    `yaml:"remote"`
	Browser   BrowserConfig   `yaml:"browser"`
	Paste     PasteConfig     `yaml:"paste"`
	Twitch    TwitchConfig    `yaml:"twitch"`
	HTTP      HTTPConfig      `yaml:"http"`
	Publish   PublishConfig   `yaml:"publish"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// BotConfig defines chat command recognition.
type BotConfig struct {
	RenderCommands   []string `yaml:"renderCommands"`   // inline mode, e.g. "!tex"
	EquationCommands []string `yaml:"equationCommands"` // displayed mode, e.g. "!eqn"
	HelpCommands     []string `yaml:"helpCommands"`     // exact match
	HelpText         string   `yaml:"helpText"`         // empty = built-in help
}

// RenderConfig defines the render pipeline.
type RenderConfig struct {
	WorkDir      string        `yaml:"workDir"`
	Renderer     string        `yaml:"renderer"`    // "local", "remote", "browser"
	Template     string        `yaml:"template"`    // template name
	TemplateDir  string        `yaml:"templateDir"` // empty = embedded templates only
	StageTimeout time.Duration `yaml:"stageTimeout"`
}

// ToolchainConfig defines the local TeX toolchain.
type ToolchainConfig struct {
	Compiler   string   `yaml:"compiler"`
	ExtraArgs  []string `yaml:"extraArgs"`
	Texfot     bool     `yaml:"texfot"`
	TexfotBin  string   `yaml:"texfotBin"`
	Crop       string   `yaml:"crop"`
	Margins    string   `yaml:"margins"` // empty = no cropping
	Convert    string   `yaml:"convert"` // "convert" (IM6) or "magick" (IM7)
	Density    int      `yaml:"density"`
	Quality    int      `yaml:"quality"`
	Background string   `yaml:"background"`
}

// RemoteConfig defines the tex2png-style HTTP renderer.
type RemoteConfig struct {
	URL string `yaml:"url"` // markup is appended, percent-encoded
}

// BrowserConfig defines the headless Chrome renderer.
type BrowserConfig struct {
	Bin        string `yaml:"bin"` // empty = auto-detect
	NoSandbox  bool   `yaml:"noSandbox"`
	MathJaxURL string `yaml:"mathJaxURL"`
}

// PasteConfig defines where long compile logs are uploaded.
type PasteConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	RawBase  string `yaml:"rawBase"`
	Token    string `yaml:"token"`
}

// TwitchConfig defines the Twitch chat connection.
type TwitchConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Username string   `yaml:"username"`
	Token    string   `yaml:"token"` // "oauth:..."; use ${TWITCH_TOKEN}
	Channels []string `yaml:"channels"`
	// Allow restricts replies to these channels; Deny ignores these.
	Allow []string `yaml:"allow"`
	Deny  []string `yaml:"deny"`
}

// HTTPConfig defines the HTTP server.
type HTTPConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Addr        string   `yaml:"addr"`
	PublicURL   string   `yaml:"publicURL"` // base for image links
	CORSOrigins []string `yaml:"corsOrigins"`
	RenderAPI   bool     `yaml:"renderAPI"` // expose POST /api/render
}

// PublishConfig defines how rendered images are exposed to chat users.
type PublishConfig struct {
	Backend string      `yaml:"backend"` // "url" or "s3"
	S3      S3Config    `yaml:"s3"`
	Index   IndexConfig `yaml:"index"`
}

// IndexConfig defines where the s3 backend records uploaded keys.
// Without a Redis address the index lives in process memory.
type IndexConfig struct {
	RedisAddr string        `yaml:"redisAddr"` // host:port
	Prefix    string        `yaml:"prefix"`
	TTL       time.Duration `yaml:"ttl"` // 0 = never expire
}

// S3Config defines the S3 publish backend.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`  // S3-compatible stores (MinIO, R2)
	PublicURL string `yaml:"publicURL"` // base for object links
}

// LogConfig defines operator logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // logrus level name
	Format string `yaml:"format"` // "text" or "json"
}

// TelemetryConfig defines metrics and tracing.
type TelemetryConfig struct {
	Metrics      bool   `yaml:"metrics"`
	OTLPEndpoint string `yaml:"otlpEndpoint"` // empty = tracing disabled
	ServiceName  string `yaml:"serviceName"`
}

// DefaultConfig returns a configuration that renders locally, serves images
// over HTTP and has chat disabled.
func DefaultConfig() *Config {
	return &Config{
		Bot: BotConfig{
			RenderCommands:   []string{"!tex"},
			EquationCommands: []string{"!eqn"},
			HelpCommands:     []string{"!texhelp"},
		},
		Render: RenderConfig{
			WorkDir:      "renders",
			Renderer:     RendererLocal,
			Template:     "default",
			StageTimeout: 30 * time.Second,
		},
		Toolchain: ToolchainConfig{
			Compiler:   "xelatex",
			TexfotBin:  "texfot",
			Crop:       "pdfcrop",
			Margins:    "5 0 5 0",
			Convert:    "convert",
			Density:    300,
			Quality:    90,
			Background: "white",
		},
		Paste: PasteConfig{
			Endpoint: "https://hastebin.com/documents",
			RawBase:  "https://hastebin.com/raw/",
		},
		HTTP: HTTPConfig{
			Enabled:   true,
			Addr:      ":8080",
			PublicURL: "http://localhost:8080",
		},
		Publish: PublishConfig{Backend: PublishURL},
		Log:     LogConfig{Level: "info", Format: "text"},
		Telemetry: TelemetryConfig{
			Metrics:     true,
			ServiceName: "texbot",
		},
	}
}

// Validate checks values and field lengths. Called automatically by
// LoadConfig, but available for consumers who construct Config manually.
func (c *Config) Validate() error {
	if err := c.validateBot(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateServices(); err != nil {
		return err
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return invalid("log.format", "%q (must be text or json)", c.Log.Format)
	}
	return nil
}

func (c *Config) validateBot() error {
	if len(c.Bot.RenderCommands) == 0 && len(c.Bot.EquationCommands) == 0 {
		return invalid("bot", "at least one render or equation command is required")
	}
	groups := map[string][]string{
		"bot.renderCommands":   c.Bot.RenderCommands,
		"bot.equationCommands": c.Bot.EquationCommands,
		"bot.helpCommands":     c.Bot.HelpCommands,
	}
	for field, prefixes := range groups {
		for i, p := range prefixes {
			name := fmt.Sprintf("%s[%d]", field, i)
			if strings.TrimSpace(p) == "" {
				return invalid(name, "command cannot be empty")
			}
			if err := validateFieldLength(name, p, MaxPrefixLength); err != nil {
				return err
			}
		}
	}
	return validateFieldLength("bot.helpText", c.Bot.HelpText, MaxHelpLength)
}

func (c *Config) validateRender() error {
	if c.Render.WorkDir == "" {
		return invalid("render.workDir", "cannot be empty")
	}
	if c.Render.StageTimeout < 0 {
		return invalid("render.stageTimeout", "must not be negative, got %s", c.Render.StageTimeout)
	}

	switch c.Render.Renderer {
	case RendererLocal:
		if c.Toolchain.Compiler == "" {
			return invalid("toolchain.compiler", "cannot be empty")
		}
		if c.Toolchain.Convert == "" {
			return invalid("toolchain.convert", "cannot be empty")
		}
		if c.Toolchain.Density < 1 || c.Toolchain.Density > 2400 {
			return invalid("toolchain.density", "must be between 1 and 2400, got %d", c.Toolchain.Density)
		}
		if c.Toolchain.Quality < 1 || c.Toolchain.Quality > 100 {
			return invalid("toolchain.quality", "must be between 1 and 100, got %d", c.Toolchain.Quality)
		}
	case RendererRemote:
		if !fileutil.IsURL(c.Remote.URL) {
			return invalid("remote.url", "must be an http(s) URL when renderer is remote")
		}
		if err := validateFieldLength("remote.url", c.Remote.URL, MaxURLLength); err != nil {
			return err
		}
	case RendererBrowser:
		if c.Browser.MathJaxURL != "" && !fileutil.IsURL(c.Browser.MathJaxURL) {
			return invalid("browser.mathJaxURL", "must be an http(s) URL")
		}
	default:
		return invalid("render.renderer", "%q (must be local, remote, or browser)", c.Render.Renderer)
	}
	return nil
}

func (c *Config) validateServices() error {
	if c.Paste.Enabled {
		if !fileutil.IsURL(c.Paste.Endpoint) {
			return invalid("paste.endpoint", "must be an http(s) URL")
		}
		if !fileutil.IsURL(c.Paste.RawBase) {
			return invalid("paste.rawBase", "must be an http(s) URL")
		}
	}

	if c.Twitch.Enabled {
		if c.Twitch.Username == "" || c.Twitch.Token == "" {
			return invalid("twitch", "username and token are required when enabled")
		}
		if len(c.Twitch.Channels) == 0 {
			return invalid("twitch.channels", "at least one channel is required when enabled")
		}
	}
	lists := map[string][]string{
		"twitch.channels": c.Twitch.Channels,
		"twitch.allow":    c.Twitch.Allow,
		"twitch.deny":     c.Twitch.Deny,
	}
	for field, list := range lists {
		if len(list) > MaxChannels {
			return invalid(field, "at most %d channels, got %d", MaxChannels, len(list))
		}
		for i, ch := range list {
			if err := validateFieldLength(fmt.Sprintf("%s[%d]", field, i), ch, MaxChannelLength); err != nil {
				return err
			}
		}
	}

	switch c.Publish.Backend {
	case PublishURL:
		if !c.HTTP.Enabled {
			return invalid("publish.backend", "url backend requires http.enabled")
		}
		if !fileutil.IsURL(c.HTTP.PublicURL) {
			return invalid("http.publicURL", "must be an http(s) URL")
		}
	case PublishS3:
		if c.Publish.S3.Bucket == "" {
			return invalid("publish.s3.bucket", "required for the s3 backend")
		}
		if c.Publish.S3.PublicURL != "" && !fileutil.IsURL(c.Publish.S3.PublicURL) {
			return invalid("publish.s3.publicURL", "must be an http(s) URL")
		}
		if c.Publish.Index.TTL < 0 {
			return invalid("publish.index.ttl", "must not be negative, got %s", c.Publish.Index.TTL)
		}
	default:
		return invalid("publish.backend", "%q (must be url or s3)", c.Publish.Backend)
	}
	return nil
}

func invalid(field, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidValue, field, fmt.Sprintf(format, args...))
}

// validateFieldLength checks if a field exceeds its maximum allowed length.
func validateFieldLength(fieldName, value string, maxLength int) error {
	if len(value) > maxLength {
		return fmt.Errorf("%w: %s (%d chars, max %d)", ErrFieldTooLong, fieldName, len(value), maxLength)
	}
	return nil
}

// LoadConfig loads configuration from a file path or config name.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's treated as a config name and searched in standard locations.
// ${VAR} references are expanded from the environment before parsing, and
// fields absent from the file keep their DefaultConfig values.
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	configPath := nameOrPath
	if !fileutil.IsFilePath(nameOrPath) {
		var err error
		configPath, err = resolveConfigPath(nameOrPath)
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- config path is operator-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	data, err = yamlutil.ExpandEnv(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	cfg := DefaultConfig()
	if err := yamlutil.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveConfigPath searches for a config file by name in standard locations.
// Tries extensions in order: .yaml, .yml
// Tries locations in order: current directory, ~/.config/go-texbot/
func resolveConfigPath(name string) (string, error) {
	extensions := []string{".yaml", ".yml"}
	triedPaths := make([]string, 0, len(extensions)*2)

	for _, ext := range extensions {
		localPath := name + ext
		if fileutil.FileExists(localPath) {
			return localPath, nil
		}
		triedPaths = append(triedPaths, localPath)
	}

	userConfigDir, err := os.UserConfigDir()
	if err == nil {
		for _, ext := range extensions {
			userPath := filepath.Join(userConfigDir, "go-texbot", name+ext)
			if fileutil.FileExists(userPath) {
				return userPath, nil
			}
			triedPaths = append(triedPaths, userPath)
		}
	}

	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(triedPaths, ", "))
}
