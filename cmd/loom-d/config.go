package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	defaultAddr     = "127.0.0.1:8091"
	defaultOplogMax = 1000
	defaultHTTPMode = "on"
)

// Config is the daemon configuration, layered env-then-flags.
type Config struct {
	Addr        string `validate:"required"`
	CatalogPath string
	OplogDB     string
	OplogMax    int `validate:"gt=0"`
	APIToken    string
	HTTPMode    string `validate:"oneof=on off"`
	Debug       bool
}

var validate = validator.New()

// LoadConfig reads configuration from the environment and then from flags,
// with flags winning. Relative paths resolve against the working directory.
func LoadConfig(args []string) (Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("failed to get cwd: %w", err)
	}

	addr := addrFromEnv(defaultAddr)
	catalogPath := os.Getenv("LOOM_CATALOG_PATH")
	oplogDB := os.Getenv("LOOM_OPLOG_DB")
	oplogMax := defaultOplogMax
	if maxEnv := os.Getenv("LOOM_OPLOG_MAX"); maxEnv != "" {
		parsed, err := strconv.Atoi(maxEnv)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOOM_OPLOG_MAX: %w", err)
		}
		oplogMax = parsed
	}
	apiToken := os.Getenv("LOOM_API_TOKEN")
	httpMode := envOrDefault("LOOM_HTTP", defaultHTTPMode)
	debug := isTruthy(os.Getenv("LOOM_DEBUG"))

	flagSet := flag.NewFlagSet("loom-d", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagAddr := flagSet.String("addr", addr, "ops API listen address")
	flagCatalog := flagSet.String("catalog", catalogPath, "path to a catalog YAML (embedded catalog if empty)")
	flagOplogDB := flagSet.String("oplog-db", oplogDB, "path to a SQLite oplog sink (in-memory only if empty)")
	flagOplogMax := flagSet.Int("oplog-max", oplogMax, "oplog ring capacity")
	flagAPIToken := flagSet.String("api-token", apiToken, "bearer token required by the ops API")
	flagHTTP := flagSet.String("http", httpMode, "ops API mode: on|off")
	flagDebug := flagSet.Bool("debug", debug, "verbose process logging")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			flagSet.SetOutput(os.Stdout)
			flagSet.PrintDefaults()
			return Config{}, err
		}
		return Config{}, err
	}

	config := Config{
		Addr:        strings.TrimSpace(*flagAddr),
		CatalogPath: resolvePath(*flagCatalog, cwd),
		OplogDB:     resolvePath(*flagOplogDB, cwd),
		OplogMax:    *flagOplogMax,
		APIToken:    strings.TrimSpace(*flagAPIToken),
		HTTPMode:    normalizeHTTPMode(*flagHTTP),
		Debug:       *flagDebug,
	}

	if err := validate.Struct(config); err != nil {
		return Config{}, formatValidationError(err)
	}

	return config, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func addrFromEnv(fallback string) string {
	if value := os.Getenv("LOOM_ADDR"); value != "" {
		return value
	}
	if port := os.Getenv("LOOM_PORT"); port != "" {
		return fmt.Sprintf("127.0.0.1:%s", port)
	}
	return fallback
}

func resolvePath(path string, cwd string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return trimmed
	}
	if filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Join(cwd, trimmed)
}

func normalizeHTTPMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "on", "enabled":
		return "on"
	case "off", "disabled", "none":
		return "off"
	default:
		return strings.ToLower(strings.TrimSpace(mode))
	}
}

func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "required":
			return fmt.Errorf("%s is required", fe.Field())
		case "oneof":
			return fmt.Errorf("%s must be one of: %s", fe.Field(), fe.Param())
		case "gt":
			return fmt.Errorf("%s must be greater than %s", fe.Field(), fe.Param())
		default:
			return fmt.Errorf("%s failed %s validation", fe.Field(), fe.Tag())
		}
	}
	return err
}
