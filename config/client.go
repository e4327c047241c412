package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ClientConfig configures campusctl.
type ClientConfig struct {
	// BaseURL is the campus API the client talks to.
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	// TokenFile stores the current session between invocations.
	// Defaults to $XDG_CONFIG_HOME/campusctl/session.json.
	TokenFile string `env:"TOKEN_FILE"`

	// Timeout bounds each backend call made by the coordinator.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

// Sanitize applies guardrails to client configuration values.
func (c *ClientConfig) Sanitize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if strings.TrimSpace(c.TokenFile) == "" {
		c.TokenFile = defaultTokenFile()
	}
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "campusctl", "session.json")
}
