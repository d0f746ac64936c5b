// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Copyright (c) 2017-2023 The Spacemesh developers

package server

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/swarmnet/arbiter/logging"
	"github.com/swarmnet/arbiter/scheduler"
)

const (
	defaultDbDirName   = "db"
	defaultDataDirname = "data"
	defaultLogDirname  = "logs"
	defaultRESTPort    = 8080

	defaultPublishRetries    = 3
	defaultPublishBackoff    = time.Second
	defaultBackoffMultiplier = 2.0
)

// Config defines the configuration options for the arbiter.
//
// See loadConfig for further details regarding the
// configuration loading+parsing process.
type Config struct {
	ArbiterDir      string `long:"arbiterdir"  description:"The base directory that contains the arbiter's data, logs, configuration file, etc."`
	ConfigFile      string `long:"configfile"  description:"Path to configuration file"                                                          short:"c"`
	DataDir         string `long:"datadir"     description:"The directory to store arbiter data within."                                         short:"b"`
	DbDir           string `long:"dbdir"       description:"The directory to store DBs within"`
	LogDir          string `long:"logdir"      description:"Directory to log output."`
	DebugLog        bool   `long:"debuglog"    description:"Enable debug logs"`
	JSONLog         bool   `long:"jsonlog"     description:"Whether to log in JSON format"`
	RawRESTListener string `long:"restlisten"  description:"The interface/port/socket to listen for REST connections"                            short:"w"`
	Capabilities    string `long:"capabilities" description:"Path to a capability catalog YAML overriding the embedded one"`
	DisableAudit    bool   `long:"disable-audit" description:"Disable per-round evidence archiving"`

	CPUProfile string `long:"cpuprofile" description:"Write CPU profile to the specified file"`
	Profile    string `long:"profile"    description:"Enable HTTP profiling on given port -- must be between 1024 and 65535"`

	Scheduler scheduler.Config `group:"Scheduler"`
	Ledger    LedgerConfig     `group:"Ledger"`
}

//nolint:lll
type LedgerConfig struct {
	URL               string        `long:"ledger-url"                 description:"Base URL of the ledger gateway; empty runs standalone with the static participant list"`
	Participants      []string      `long:"participant"                description:"Static participant id served in standalone mode (repeatable)"`
	PublishRetries    uint          `long:"publish-retries"            description:"Publish attempts before a round is abandoned"`
	PublishBackoff    time.Duration `long:"publish-backoff"            description:"Base backoff between publish attempts"`
	BackoffMultiplier float64       `long:"publish-backoff-multiplier" description:"Backoff growth factor between publish attempts"`
}

// DefaultConfig returns a config with default hardcoded values.
func DefaultConfig() *Config {
	arbiterDir := "./arbiter"
	cacheDir, err := os.UserCacheDir()
	if err == nil {
		arbiterDir = filepath.Join(cacheDir, "arbiter")
	}

	return &Config{
		ArbiterDir:      arbiterDir,
		DataDir:         filepath.Join(arbiterDir, defaultDataDirname),
		DbDir:           filepath.Join(arbiterDir, defaultDbDirName),
		LogDir:          filepath.Join(arbiterDir, defaultLogDirname),
		RawRESTListener: fmt.Sprintf("localhost:%d", defaultRESTPort),
		Scheduler:       scheduler.DefaultConfig(),
		Ledger: LedgerConfig{
			PublishRetries:    defaultPublishRetries,
			PublishBackoff:    defaultPublishBackoff,
			BackoffMultiplier: defaultBackoffMultiplier,
		},
	}
}

// ParseFlags reads values from command line arguments.
func ParseFlags(preCfg *Config) (*Config, error) {
	if _, err := flags.Parse(preCfg); err != nil {
		return nil, err
	}
	return preCfg, nil
}

// ReadConfigFile reads config from an ini file.
// It uses the provided `cfg` as a base config and overrides it with the values
// from the config file.
func ReadConfigFile(cfg *Config) (*Config, error) {
	if cfg.ConfigFile == "" {
		return cfg, nil
	}
	logging.FromContext(context.Background()).Sugar().Debugf("reading config from %s", cfg.ConfigFile)
	if err := flags.IniParse(cfg.ConfigFile, cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from %v: %w", cfg.ConfigFile, err)
	}

	return cfg, nil
}

// SetupConfig expands paths and initializes filesystem.
func SetupConfig(cfg *Config) (*Config, error) {
	// If the provided arbiter directory is not the default, we'll modify the
	// path to all of the files and directories that will live within it.
	defaultCfg := DefaultConfig()
	if cfg.ArbiterDir != defaultCfg.ArbiterDir {
		if cfg.DataDir == defaultCfg.DataDir {
			cfg.DataDir = filepath.Join(cfg.ArbiterDir, defaultDataDirname)
		}
		if cfg.LogDir == defaultCfg.LogDir {
			cfg.LogDir = filepath.Join(cfg.ArbiterDir, defaultLogDirname)
		}
		if cfg.DbDir == defaultCfg.DbDir {
			cfg.DbDir = filepath.Join(cfg.ArbiterDir, defaultDbDirName)
		}
	}

	// Create the arbiter directory if it doesn't already exist.
	if err := os.MkdirAll(cfg.ArbiterDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create %v: %w", cfg.ArbiterDir, err)
	}

	// As soon as we're done parsing configuration options, ensure all paths
	// to directories and files are cleaned and expanded before attempting
	// to use them later on.
	cfg.DataDir = cleanAndExpandPath(cfg.DataDir)
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	cfg.DbDir = cleanAndExpandPath(cfg.DbDir)

	return cfg, nil
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
// This function is taken from https://github.com/btcsuite/btcd
func cleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		var homeDir string
		user, err := user.Current()
		if err == nil {
			homeDir = user.HomeDir
		} else {
			homeDir = os.Getenv("HOME")
		}

		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}
