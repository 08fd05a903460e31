package streamkit

import (
	"crypto/tls"
	"io"
	"log"
)

// Config bundles every construction-time, process-wide-but-immutable
// value a Server needs (§9 "Global configuration": an explicit record,
// never a mutable singleton), ported from the teacher's
// pkg/celeris/config.go and trimmed of the HTTP/2-only frame/window knobs.
type Config struct {
	Addr           string
	Multicore      bool
	NumEventLoop   int
	ReusePort      bool
	MaxConnections uint32
	Logger         *log.Logger

	DocumentRoot    string
	CompressMinSize int
	ServerName      string

	// TLSConfig, when non-nil, layers TLS over every accepted connection
	// (§9 Plain/Tls variant) before any HTTP bytes are parsed.
	TLSConfig *tls.Config
}

func newSilentLogger() *log.Logger { return log.New(io.Discard, "", 0) }

// DefaultConfig returns sensible defaults: silent logging, multicore
// event loops, and no TLS.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		Multicore:       true,
		ReusePort:       true,
		MaxConnections:  10000,
		Logger:          newSilentLogger(),
		CompressMinSize: 0,
		ServerName:      "streamcore",
	}
}

// Validate normalizes zero-valued fields to their defaults in place.
func (c *Config) Validate() error {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
	if c.MaxConnections == 0 {
		c.MaxConnections = 10000
	}
	if c.ServerName == "" {
		c.ServerName = "streamcore"
	}
	return nil
}
