package local

import (
	"strings"

	"github.com/pkg/errors"
)

// Config holds all information needed to open a local repository.
type Config struct {
	Path string

	Connections uint
}

// NewConfig returns a new config with default options applied.
func NewConfig() Config {
	return Config{
		Connections: 2,
	}
}

// ParseConfig parses a local backend config of the form "local:/path". A
// string without a scheme is taken as a plain path.
func ParseConfig(s string) (*Config, error) {
	cfg := NewConfig()
	switch {
	case strings.HasPrefix(s, "local:"):
		cfg.Path = s[6:]
	case strings.Contains(s, ":") && !strings.HasPrefix(s, "/") && !strings.HasPrefix(s, "."):
		return nil, errors.Errorf("invalid format %q, only the local backend is supported", s)
	default:
		cfg.Path = s
	}

	if cfg.Path == "" {
		return nil, errors.New("empty repository path")
	}
	return &cfg, nil
}
