// Package config loads the process configuration of the compactbook commands.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/jwtly10/compactbook/internal/playground"
)

const (
	EnvAPIURL      = "COMPACT_PLAYGROUND_API_URL"
	EnvEditable    = "COMPACT_PLAYGROUND_EDITABLE"
	EnvAutoRun     = "COMPACT_PLAYGROUND_AUTORUN"
	EnvPort        = "PORT"
	EnvBookDir     = "BOOK_DIR"
	EnvSessionSize = "SESSION_CACHE_SIZE"

	defaultPort        = ":8080"
	defaultSessionSize = 256
)

type Config struct {
	Port    string
	BookDir string
	Debug   bool
	// Maximum number of page sessions kept by the server, the least recently used is evicted
	SessionCacheSize int

	Playground playground.Config

	// Positional arguments left after the flags
	Args []string
}

// Load reads the configuration from a .env file if present, the environment and args.
// Flags given explicitly on the command line win over the environment. extra registers
// command specific flags on the same flag set.
func Load(name string, args []string, extra ...func(*flag.FlagSet)) (*Config, error) {
	_ = godotenv.Load()

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	port := fs.String("port", defaultPort, "server port")
	book := fs.String("book", ".", "mdBook output directory")
	debug := fs.Bool("debug", false, "enable debug logging")
	apiURL := fs.String("api-url", "", "compilation service base URL")
	editable := fs.Bool("editable", true, "make runnable blocks editable")
	autoRun := fs.Bool("autorun", false, "compile runnable blocks when a page is loaded")
	sessions := fs.Int("sessions", defaultSessionSize, "maximum number of page sessions")
	for _, register := range extra {
		register(fs)
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	explicit := map[string]bool{}
	fs.Visit(func(f *flag.Flag) {
		explicit[f.Name] = true
	})

	cfg := &Config{
		Port:             *port,
		BookDir:          *book,
		Debug:            *debug,
		SessionCacheSize: *sessions,
		Playground:       playground.DefaultConfig(),
	}
	if fs.NArg() > 0 {
		cfg.Args = fs.Args()
	}

	if v := env(EnvPort); v != "" && !explicit["port"] {
		cfg.Port = v
	}
	if !strings.HasPrefix(cfg.Port, ":") {
		cfg.Port = ":" + cfg.Port
	}
	if v := env(EnvBookDir); v != "" && !explicit["book"] {
		cfg.BookDir = v
	}
	if v := env(EnvSessionSize); v != "" && !explicit["sessions"] {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", EnvSessionSize, err)
		}
		cfg.SessionCacheSize = n
	}
	if cfg.SessionCacheSize <= 0 {
		return nil, fmt.Errorf("session cache size must be positive, got %d", cfg.SessionCacheSize)
	}

	pg := &cfg.Playground
	pg.APIURL = firstNonEmpty(*apiURL, env(EnvAPIURL), pg.APIURL)

	var err error
	if pg.Editable, err = boolSetting(EnvEditable, *editable, explicit["editable"]); err != nil {
		return nil, err
	}
	if pg.AutoRun, err = boolSetting(EnvAutoRun, *autoRun, explicit["autorun"]); err != nil {
		return nil, err
	}

	return cfg, nil
}

// boolSetting resolves a boolean from its flag and environment variable
func boolSetting(key string, flagValue, explicit bool) (bool, error) {
	raw := env(key)
	if explicit || raw == "" {
		return flagValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
