// Package cli provides the dbsight command-line interface
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vitebski/dbsight/internal/config"
	"github.com/vitebski/dbsight/internal/credential"
	"github.com/vitebski/dbsight/internal/driver"
	_ "github.com/vitebski/dbsight/internal/driver/mysql"
	_ "github.com/vitebski/dbsight/internal/driver/postgres"
	_ "github.com/vitebski/dbsight/internal/driver/sqlite"
	"github.com/vitebski/dbsight/internal/manager"
	"github.com/vitebski/dbsight/internal/utils"
)

// Version is set at build time
var Version = "0.1.0"

// app is the state shared by every command of one invocation
type app struct {
	settings *config.Settings
	logger   *logrus.Logger
	manager  *manager.Manager

	// creds overrides the store picked from settings
	creds credential.Store
}

func (a *app) out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}

// setup loads settings, logging and the connection document
func (a *app) setup(cmd *cobra.Command) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	env := utils.ReadEnvFile(envFile)

	settings, err := config.LoadSettings(cmd.Flags())
	if err != nil {
		return err
	}
	a.settings = settings

	var logFile *utils.LogFile
	if settings.LogFile != "" {
		logFile = &utils.LogFile{
			Path:       settings.LogFile,
			MaxSizeMB:  settings.LogMaxSize,
			MaxBackups: settings.LogMaxBackups,
			MaxAgeDays: settings.LogMaxAge,
		}
	}
	a.logger = utils.SetupLogging(settings.LogLevel, logFile)
	env.Log(a.logger)
	if settings.SettingsFileUsed != "" {
		a.logger.Debugf("Using settings file: %s", settings.SettingsFileUsed)
	}

	creds := a.creds
	if creds == nil {
		if settings.NoKeyring {
			a.logger.Warn("Keyring disabled, passwords are kept for this run only")
			creds = credential.NewMemoryStore()
		} else {
			creds = credential.NewKeyringStore()
		}
	}

	a.manager = manager.New(settings.ConnectionsPath(), creds,
		manager.WithLogger(a.logger),
		manager.WithDriverOptions(driver.Options{
			MaxOpenConns:   settings.PoolMaxConns,
			AcquireTimeout: settings.AcquireTimeout,
			Logger:         a.logger,
		}),
	)
	return a.manager.LoadConfig(cmd.Context())
}

func (a *app) teardown() {
	if a.manager == nil {
		return
	}
	if err := a.manager.CloseAll(); err != nil {
		a.logger.Warnf("Error closing connections: %v", err)
	}
}

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{})
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dbsight",
		Short: "Browse MySQL, PostgreSQL and SQLite databases from the terminal",
		Long: `dbsight keeps named connection profiles, stores their passwords in the
system keyring and lets you browse schemas, tables, columns and rows.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			return a.setup(cmd)
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			a.teardown()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config-dir", "", "Directory holding connections.json and settings.yaml")
	flags.StringP("log-level", "l", "", "Log level (debug, info, warn, error)")
	flags.String("log-file", "", "Also write logs to this rotating file")
	flags.Int("pool-max-conns", 0, "Maximum open connections per database")
	flags.Duration("acquire-timeout", 0, "How long to wait for a pooled connection")
	flags.Uint64("page-size", 0, "Default number of rows per data page")
	flags.Bool("no-keyring", false, "Keep passwords in memory instead of the system keyring")
	flags.StringP("env-file", "e", ".env", "Path to .env file")

	rootCmd.AddCommand(newConnectionsCommand(a))
	rootCmd.AddCommand(newSchemasCommand(a))
	rootCmd.AddCommand(newTablesCommand(a))
	rootCmd.AddCommand(newColumnsCommand(a))
	rootCmd.AddCommand(newDataCommand(a))
	rootCmd.AddCommand(newSandboxCommand(a))

	return rootCmd
}

// Execute runs the root command and returns the process exit code
func Execute() int {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", describeError(err))
		return 1
	}
	return 0
}
