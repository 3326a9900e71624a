package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/leapstack-labs/dsg/pkg/core"
	"github.com/spf13/pflag"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// flags that select where configuration comes from rather than carrying values.
var locatorFlags = map[string]bool{"config": true, "project-dir": true}

// pathFlags are resolved against the working directory, not the project root.
var pathFlags = map[string]bool{"output-dir": true}

// Load loads configuration.
// Precedence (highest to lowest): flags > env vars > .env > config file > defaults.
// A project without a config file is an error.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	root := inferProjectRoot(cfgFile, flags)

	if cfgFile == "" {
		cfgFile = findConfigFile(root)
	}
	if cfgFile == "" {
		return nil, &core.ConfigurationError{
			Subject: FileNames[0],
			Message: fmt.Sprintf("no %s found in %s (run 'dsg init' to create a project)", FileNames[0], root),
		}
	}

	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]any{
		"connection.type": DefaultConnectionType,
		"home_file":       core.DefaultHomeFile,
		"pages_dir":       core.DefaultPagesDir,
		"queries_dir":     core.DefaultQueriesDir,
		"output_dir":      core.DefaultOutputDir,
		"templates_dir":   core.DefaultTemplatesDir,
		"verbose":         false,
		"no_color":        false,
		"output":          DefaultOutput,
		"serve.host":      DefaultServeHost,
		"serve.port":      DefaultServePort,
		"serve.watch":     false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
		return nil, &core.ConfigurationError{Subject: cfgFile, Message: "cannot read config file", Err: err}
	}

	// 3. .env in the project root. Values are not exported to the process.
	dotenv, err := readDotEnv(root)
	if err != nil {
		return nil, err
	}
	if err := k.Load(confmap.Provider(prefixedKeys(dotenv), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	// 4. Environment variables
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 5. Flags, only the ones explicitly set
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed || locatorFlags[f.Name] {
				return "", nil
			}
			val := posflag.FlagVal(flags, f)
			if pathFlags[f.Name] {
				if s, ok := val.(string); ok && s != "" {
					if abs, err := filepath.Abs(s); err == nil {
						val = abs
					}
				}
			}
			return strings.ReplaceAll(f.Name, "-", "_"), val
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, &core.ConfigurationError{Subject: cfgFile, Message: "unable to decode config", Err: err}
	}
	cfg.ProjectRoot = root
	cfg.File = cfgFile

	lookup := func(name string) string {
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return dotenv[name]
	}
	normalize(&cfg, lookup)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Connection.Kind == "" {
		return &core.ConfigurationError{Subject: "connection.type", Message: "connection type is required"}
	}
	if c.Serve.Port < 0 || c.Serve.Port > 65535 {
		return &core.ConfigurationError{Subject: "serve.port", Message: fmt.Sprintf("invalid port %d", c.Serve.Port)}
	}
	return nil
}

// normalize fills derived values, expands ${VAR} references in connection
// settings and anchors a relative database file at the project root.
func normalize(cfg *Config, lookup func(string) string) {
	cfg.Connection.Kind = strings.ToLower(strings.TrimSpace(cfg.Connection.Kind))
	if cfg.Name == "" {
		cfg.Name = filepath.Base(cfg.ProjectRoot)
	}
	if cfg.DisplayName == "" {
		cfg.DisplayName = DisplayName(cfg.Name)
	}
	for key, val := range cfg.Connection.Settings {
		cfg.Connection.Settings[key] = expandEnvVars(val, lookup)
	}
	cfg.Connection = cfg.Connection.InRoot(cfg.ProjectRoot)
	cfg.ApplyDefaults()
}

// DisplayName turns a project name such as "sales_report" into "Sales Report".
func DisplayName(name string) string {
	words := strings.NewReplacer("_", " ", "-", " ").Replace(name)
	return cases.Title(language.English).String(strings.Join(strings.Fields(words), " "))
}

// envKey maps DSG_CONNECTION__SETTINGS__FILE to connection.settings.file.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// prefixedKeys selects the DSG_ variables of a .env file as config keys.
func prefixedKeys(vars map[string]string) map[string]any {
	out := make(map[string]any)
	for name, val := range vars {
		if strings.HasPrefix(name, EnvPrefix) {
			out[envKey(name)] = val
		}
	}
	return out
}

func readDotEnv(root string) (map[string]string, error) {
	path := filepath.Join(root, ".env")
	vars, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, &core.ConfigurationError{Subject: path, Message: "cannot parse .env file", Err: err}
	}
	return vars, nil
}

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} references. Unknown variables are left as is.
func expandEnvVars(s string, lookup func(string) string) string {
	return envRef.ReplaceAllStringFunc(s, func(match string) string {
		if val := lookup(match[2 : len(match)-1]); val != "" {
			return val
		}
		return match
	})
}

// findConfigFile returns the config file in dir, if any.
func findConfigFile(dir string) string {
	for _, name := range FileNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// findProjectRootUpward searches upward from startDir for a config file.
func findProjectRootUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if findConfigFile(dir) != "" {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// inferProjectRoot determines the project root.
// Priority:
//  1. Explicit --project-dir flag
//  2. Directory of an explicit config file
//  3. Nearest directory upward from the working directory holding a config file
//  4. The working directory
func inferProjectRoot(cfgFile string, flags *pflag.FlagSet) string {
	if flags != nil && flags.Changed("project-dir") {
		if dir, _ := flags.GetString("project-dir"); dir != "" {
			return absPath(dir)
		}
	}
	if cfgFile != "" {
		return filepath.Dir(absPath(cfgFile))
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	if root := findProjectRootUpward(cwd); root != "" {
		return root
	}
	return cwd
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

type (
	configKey struct{}
	loggerKey struct{}
)

// WithConfig stores cfg in ctx.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext returns the config stored in ctx, or nil.
func FromContext(ctx context.Context) *Config {
	if ctx == nil {
		return nil
	}
	cfg, _ := ctx.Value(configKey{}).(*Config)
	return cfg
}

// NewLogger creates the CLI logger. Verbose output includes debug records.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from ctx.
func GetLogger(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
			return l
		}
	}
	return slog.New(slog.DiscardHandler)
}
