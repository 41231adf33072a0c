package cmd

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/soundcheck/internal/config"
	"github.com/felixgeelhaar/soundcheck/internal/log"
)

// CommandContext holds the persistent flags every command reads.
// Extracting them once keeps commands free of global flag variables.
type CommandContext struct {
	Verbose    bool
	Quiet      bool
	Format     string
	NoColor    bool
	LogLevel   string
	ConfigPath string
}

// NewCommandContext extracts the persistent flags from a command.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return nil, err
	}

	quiet, err := cmd.Flags().GetBool("quiet")
	if err != nil {
		return nil, err
	}

	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return nil, err
	}

	noColor, err := cmd.Flags().GetBool("no-color")
	if err != nil {
		return nil, err
	}

	logLevel, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return nil, err
	}

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	return &CommandContext{
		Verbose:    verbose,
		Quiet:      quiet,
		Format:     format,
		NoColor:    noColor,
		LogLevel:   logLevel,
		ConfigPath: configPath,
	}, nil
}

// Logger builds the logger the flags ask for. --verbose wins over
// --log-level, --quiet wins over both.
func (c *CommandContext) Logger() *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(c.LogLevel)
	if c.Verbose {
		cfg.Level = log.LevelDebug
	}
	if c.Quiet {
		cfg.Level = log.LevelError
	}
	return log.New(cfg)
}

// LoadConfig loads the layered configuration for this invocation.
func (c *CommandContext) LoadConfig() (*config.Config, error) {
	return config.Load(c.ConfigPath)
}
