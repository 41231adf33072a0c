package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/soundcheck/internal/config"
	"github.com/felixgeelhaar/soundcheck/internal/errors"
	"github.com/felixgeelhaar/soundcheck/internal/tui"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a soundcheck.yaml configuration file",
	Long: `Create a configuration file in the current directory through a short
interactive wizard, or with the built-in defaults when --yes is set.

Examples:
  # Interactive setup
  soundcheck init

  # Non-interactive, defaults only
  soundcheck init --yes

  # Overwrite an existing file
  soundcheck init --force`,
	RunE: runInit,
}

var (
	initYes   bool
	initForce bool
)

func init() {
	f := initCmd.Flags()
	f.BoolVarP(&initYes, "yes", "y", false, "accept defaults without prompting")
	f.BoolVar(&initForce, "force", false, "overwrite an existing configuration file")

	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	path := cmdCtx.ConfigPath
	if path == "" {
		path = config.FileName
	}

	if _, err := os.Stat(path); err == nil && !initForce {
		if initYes {
			return errors.NewConfigInvalidError(fmt.Sprintf("%s already exists, use --force to overwrite", path))
		}
		overwrite, err := tui.PromptForConfirmation(fmt.Sprintf("%s already exists. Overwrite?", path), false)
		if err != nil {
			return err
		}
		if !overwrite {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
	}

	cfg := config.Default()
	if !initYes {
		if err := promptForConfig(cfg); err != nil {
			return err
		}
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.Write(path); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	fmt.Fprintln(cmd.OutOrStdout(), "Check the environment with 'soundcheck doctor', then 'soundcheck run'.")
	return nil
}

// promptForConfig walks the values a first run actually needs; the
// long tail of knobs stays on defaults and is edited in the file.
func promptForConfig(cfg *config.Config) error {
	model, err := tui.PromptForString(tui.Prompt{
		Message:  "Model path or hub id to serve",
		Default:  cfg.Server.Model,
		Required: true,
	})
	if err != nil {
		return err
	}
	cfg.Server.Model = model

	servedName, err := tui.PromptForString(tui.Prompt{
		Message:  "Served model name (announced on /v1/models)",
		Default:  cfg.Server.ServedModelName,
		Required: true,
	})
	if err != nil {
		return err
	}
	cfg.Server.ServedModelName = servedName

	host, err := tui.PromptForString(tui.Prompt{
		Message:  "Server host",
		Default:  cfg.Server.Host,
		Required: true,
	})
	if err != nil {
		return err
	}
	cfg.Server.Host = host

	portStr, err := tui.PromptForString(tui.Prompt{
		Message:  "Server port",
		Default:  strconv.Itoa(cfg.Server.Port),
		Required: true,
	})
	if err != nil {
		return err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return errors.NewConfigInvalidError(fmt.Sprintf("port %q is not a number", portStr))
	}
	cfg.Server.Port = port

	readiness, err := tui.PromptForSelect("Readiness predicate", []string{"models", "reachable"})
	if err != nil {
		return err
	}
	cfg.Probe.Readiness = readiness

	offline, err := tui.PromptForConfirmation("Run the server offline (HF_HUB_OFFLINE=1)?", cfg.Server.Offline)
	if err != nil {
		return err
	}
	cfg.Server.Offline = offline

	return nil
}
