package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/cyface-de/cyup/internal/cliconfig"
	"github.com/cyface-de/cyup/pkg/log"
)

const longHelp = `
Upload finished Cyface measurements to a collector service.

Measurements are encoded in the compressed binary transfer format and sent
with the resumable upload protocol: a pre-request announces the upload, the
payload is transferred to the returned session location, and interrupted
uploads resume with a status check. Sessions survive restarts when the
sqlite or redis registry is used.

Configuration is read from $HOME/.cyup/config.toml, then CYUP_* environment
variables, then flags.
`

var exampleUsage = strings.TrimSpace(`
  cyup import trips.json
  cyup upload 42 43 --token-file /run/cyup/token
  cyup sync --once
  cyup sessions list
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// cli carries the loaded configuration to the subcommands.
type cli struct {
	cfg     cliconfig.Config
	cfgPath string
	logger  log.Logger
}

func main() {
	c := &cli{cfg: cliconfig.DefaultConfig()}
	c.logger = cliconfig.NewLogger(c.cfg.LogLevel)

	root := &cobra.Command{
		Use:               "cyup",
		Short:             "Upload Cyface measurements with the resumable upload protocol",
		Long:              strings.TrimSpace(longHelp),
		Example:           exampleUsage,
		Version:           fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return c.load(cmd) },
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.cfgPath, "config", "", "path to config file (default: $HOME/.cyup/config.toml)")
	flags.StringVar(&c.cfg.Endpoint, "endpoint", c.cfg.Endpoint, "collector API base URL")
	flags.StringVar(&c.cfg.AuthToken, "auth-token", c.cfg.AuthToken, "bearer token for the collector")
	flags.StringVar(&c.cfg.TokenFile, "token-file", c.cfg.TokenFile, "file holding the bearer token, reloaded on change")
	flags.StringVar(&c.cfg.StateDir, "state-dir", c.cfg.StateDir, "directory for the database and device id (default: $HOME/.cyup)")
	flags.StringVar(&c.cfg.Registry, "registry", c.cfg.Registry, "session registry: memory, sqlite or redis")
	flags.StringVar(&c.cfg.RedisURL, "redis-url", c.cfg.RedisURL, "redis URL for the redis registry")
	flags.StringVar(&c.cfg.Database, "database", c.cfg.Database, "sqlite database file (default: <state-dir>/cyup.db)")
	flags.DurationVar(&c.cfg.HTTPTimeout, "timeout", c.cfg.HTTPTimeout, "HTTP timeout per request")
	flags.IntVar(&c.cfg.MaxAttempts, "max-attempts", c.cfg.MaxAttempts, "failed attempts before an upload run gives up")
	flags.DurationVar(&c.cfg.BackoffInitial, "backoff-initial", c.cfg.BackoffInitial, "first retry delay")
	flags.DurationVar(&c.cfg.BackoffMax, "backoff-max", c.cfg.BackoffMax, "maximum retry delay")
	flags.DurationVar(&c.cfg.MaxRetryAfter, "max-retry-after", c.cfg.MaxRetryAfter, "cap for server requested Retry-After delays")
	flags.StringVar(&c.cfg.LogLevel, "log-level", c.cfg.LogLevel, "log level: debug, info, warn, error")

	root.AddCommand(
		newSyncCommand(c),
		newUploadCommand(c),
		newSessionsCommand(c),
		newInspectCommand(c),
		newImportCommand(c),
	)

	if err := root.Execute(); err != nil {
		c.logger.Error("cyup", log.Err(err))
		os.Exit(1)
	}
}

// load layers the config file and environment under the flags, then
// validates the result.
func (c *cli) load(cmd *cobra.Command) error {
	cfgFile := c.cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(&c.cfg, fc, changed); err != nil {
			return err
		}
	} else if c.cfgPath != "" {
		return fmt.Errorf("config file %s not found", c.cfgPath)
	}

	if err := cliconfig.ApplyEnvConfig(&c.cfg, changed); err != nil {
		return err
	}
	if err := c.cfg.Validate(); err != nil {
		return err
	}

	c.logger = cliconfig.NewLogger(c.cfg.LogLevel)
	c.logger.Debug("configuration", log.Any("config", c.cfg.Redacted()))
	return nil
}
