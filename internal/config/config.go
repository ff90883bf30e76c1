// Package config holds the run configuration: built-in defaults, an optional
// TOML file, and the command-line overrides applied on top of both.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"

	"github.com/fedragon/go-takeout/internal/fs"
)

const (
	appName           = "go-takeout"
	configFileName    = "config.toml"
	hashCacheFileName = "hashes.db"

	DefaultMinPrefix = 10
	DefaultWorkers   = 4
	DefaultLogLevel  = "info"

	ManifestFileName = "migration_log.jsonl"
	LockFileName     = ".go-takeout.lock"
	AlbumsDirName    = "Albums"
)

type Config struct {
	Source string `toml:"source"`
	Output string `toml:"output"`
	DryRun bool   `toml:"-"`

	MediaExtensions  []string `toml:"media_extensions"`
	ContainerName    string   `toml:"container_name"`
	ExportRootPrefix string   `toml:"export_root_prefix"`
	MinPrefixLength  int      `toml:"min_prefix_length"`

	Workers        int    `toml:"workers"`
	DBPath         string `toml:"db_path"`
	NoCache        bool   `toml:"-"`
	LinkDuplicates bool   `toml:"link_duplicates"`
	Albums         bool   `toml:"albums"`
	LogLevel       string `toml:"log_level"`
}

func Default() Config {
	return Config{
		MediaExtensions:  append([]string(nil), fs.DefaultMediaTypes...),
		ContainerName:    fs.DefaultContainerName,
		ExportRootPrefix: fs.DefaultExportRootPrefix,
		MinPrefixLength:  DefaultMinPrefix,
		Workers:          DefaultWorkers,
		DBPath:           filepath.Join(xdg.CacheHome, appName, hashCacheFileName),
		Albums:           true,
		LogLevel:         DefaultLogLevel,
	}
}

// Load returns the defaults overlaid with the TOML file at path. An empty path
// means the default location under the XDG config directories, which may be
// absent; an explicit path must exist. The second return value is the file
// actually read, or "" if none was.
func Load(path string) (Config, string, error) {
	cfg := Default()

	resolved, err := resolvePath(path)
	if err != nil {
		return cfg, "", err
	}
	if resolved == "" {
		return cfg, "", nil
	}

	file, err := os.Open(resolved)
	if err != nil {
		return cfg, "", fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	if err := toml.NewDecoder(file).DisallowUnknownFields().Decode(&cfg); err != nil {
		return cfg, "", fmt.Errorf("parse config %v: %w", resolved, err)
	}

	return cfg, resolved, nil
}

func resolvePath(path string) (string, error) {
	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return "", err
		}
		if _, err := os.Stat(expanded); err != nil {
			return "", fmt.Errorf("config file: %w", err)
		}
		return expanded, nil
	}

	found, err := xdg.SearchConfigFile(filepath.Join(appName, configFileName))
	if err != nil {
		return "", nil
	}
	return found, nil
}

// Normalize expands ~ and makes every path absolute.
func (c *Config) Normalize() error {
	var err error
	if c.Source, err = ExpandPath(c.Source); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if c.Output, err = ExpandPath(c.Output); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	if c.DBPath, err = ExpandPath(c.DBPath); err != nil {
		return fmt.Errorf("db_path: %w", err)
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	return nil
}

// Validate rejects configurations no run can start with.
func (c *Config) Validate() error {
	if c.Source == "" {
		return errors.New("source directory is required")
	}
	if c.Output == "" {
		return errors.New("output directory is required")
	}
	if within(c.Source, c.Output) {
		return fmt.Errorf("output %v must not be inside source %v", c.Output, c.Source)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.MinPrefixLength < 1 {
		return fmt.Errorf("min_prefix_length must be at least 1, got %d", c.MinPrefixLength)
	}
	if len(fs.NewTypes(c.MediaExtensions)) == 0 {
		return errors.New("media_extensions must not be empty")
	}
	if strings.TrimSpace(c.ContainerName) == "" {
		return errors.New("container_name must not be empty")
	}
	if strings.TrimSpace(c.ExportRootPrefix) == "" {
		return errors.New("export_root_prefix must not be empty")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}

// ExpandPath resolves a leading ~ and returns the cleaned absolute path.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return path, nil
	}

	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("expand %q: %w", path, err)
	}

	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", expanded, err)
	}
	return abs, nil
}

func within(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
