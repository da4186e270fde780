package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/alnah/go-texbot/internal/config"
)

// envConfig holds configuration from TEXBOT_* environment variables.
// Precedence: CLI flags > env vars > config file > defaults.
type envConfig struct {
	ConfigPath string        // TEXBOT_CONFIG
	WorkDir    string        // TEXBOT_WORK_DIR
	Renderer   string        // TEXBOT_RENDERER
	Timeout    time.Duration // TEXBOT_TIMEOUT
	LogLevel   string        // TEXBOT_LOG_LEVEL
	LogFormat  string        // TEXBOT_LOG_FORMAT
	HTTPAddr   string        // TEXBOT_HTTP_ADDR
	PublicURL  string        // TEXBOT_PUBLIC_URL
	OTLP       string        // TEXBOT_OTLP_ENDPOINT
}

// knownEnvVars lists valid TEXBOT_* environment variables.
var knownEnvVars = map[string]bool{
	"TEXBOT_CONFIG":        true,
	"TEXBOT_WORK_DIR":      true,
	"TEXBOT_RENDERER":      true,
	"TEXBOT_TIMEOUT":       true,
	"TEXBOT_LOG_LEVEL":     true,
	"TEXBOT_LOG_FORMAT":    true,
	"TEXBOT_HTTP_ADDR":     true,
	"TEXBOT_PUBLIC_URL":    true,
	"TEXBOT_OTLP_ENDPOINT": true,
}

// loadEnvConfig reads TEXBOT_* variables. Invalid durations are ignored.
func loadEnvConfig(getenv func(string) string) *envConfig {
	cfg := &envConfig{
		ConfigPath: getenv("TEXBOT_CONFIG"),
		WorkDir:    getenv("TEXBOT_WORK_DIR"),
		Renderer:   getenv("TEXBOT_RENDERER"),
		LogLevel:   getenv("TEXBOT_LOG_LEVEL"),
		LogFormat:  getenv("TEXBOT_LOG_FORMAT"),
		HTTPAddr:   getenv("TEXBOT_HTTP_ADDR"),
		PublicURL:  getenv("TEXBOT_PUBLIC_URL"),
		OTLP:       getenv("TEXBOT_OTLP_ENDPOINT"),
	}
	if timeout := getenv("TEXBOT_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil && d > 0 {
			cfg.Timeout = d
		}
	}
	return cfg
}

// warnUnknownEnvVars warns about unrecognized TEXBOT_* variables.
// Helps catch typos like TEXBOT_WORKDIR instead of TEXBOT_WORK_DIR.
func warnUnknownEnvVars(w io.Writer, environ []string) {
	for _, env := range environ {
		if strings.HasPrefix(env, "TEXBOT_") {
			name, _, _ := strings.Cut(env, "=")
			if !knownEnvVars[name] {
				fmt.Fprintf(w, "warning: unknown environment variable %s (typo?)\n", name)
			}
		}
	}
}

// applyEnvConfig overrides config values with set environment variables.
func applyEnvConfig(env *envConfig, cfg *config.Config) {
	if env.WorkDir != "" {
		cfg.Render.WorkDir = env.WorkDir
	}
	if env.Renderer != "" {
		cfg.Render.Renderer = env.Renderer
	}
	if env.Timeout > 0 {
		cfg.Render.StageTimeout = env.Timeout
	}
	if env.LogLevel != "" {
		cfg.Log.Level = env.LogLevel
	}
	if env.LogFormat != "" {
		cfg.Log.Format = env.LogFormat
	}
	if env.HTTPAddr != "" {
		cfg.HTTP.Addr = env.HTTPAddr
	}
	if env.PublicURL != "" {
		cfg.HTTP.PublicURL = env.PublicURL
	}
	if env.OTLP != "" {
		cfg.Telemetry.OTLPEndpoint = env.OTLP
	}
}
