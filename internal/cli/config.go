package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cperrin88/mediafetch/pkg/config"
	"github.com/cperrin88/mediafetch/pkg/fsutil"
	"github.com/cperrin88/mediafetch/pkg/hooks"
	"github.com/cperrin88/mediafetch/pkg/logger"
)

// NewConfigCmd creates the config command with subcommands.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long:  "View and modify mediafetch configuration settings",
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigSetCmd(),
		newConfigGetCmd(),
		newConfigInitCmd(),
	)

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var asYAML bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  "Display the current configuration settings and pipelines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runConfigShow(cmd.OutOrStdout(), cfg, asYAML)
		},
	}

	cmd.Flags().BoolVar(&asYAML, "yaml", false, "print the full configuration as YAML")

	return cmd
}

// Number of arguments expected by the set command.
const setCommandArgs = 2

func newConfigSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Long:  "Set a configuration key to a specific value",
		Args:  cobra.ExactArgs(setCommandArgs),
		RunE: func(_ *cobra.Command, args []string) error {
			return runConfigSet(args[0], args[1])
		},
	}

	return cmd
}

func newConfigGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get KEY",
		Short: "Get a configuration value",
		Long:  "Get the value of a specific configuration key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			value, err := cfg.GetValue(args[0])
			if err != nil {
				return fmt.Errorf("failed to get configuration value: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration file",
		Long:  "Create a default configuration file and a path script template next to it",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runConfigInit(getConfigPath(), force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration file")

	return cmd
}

func runConfigShow(out io.Writer, cfg *config.Config, asYAML bool) error {
	if asYAML {
		data, err := cfg.ToYAML()
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	}

	tabWriter := tabwriter.NewWriter(out, 0, 0, TabWidth, ' ', 0)
	_, _ = fmt.Fprintln(tabWriter, "SETTING\tVALUE")
	_, _ = fmt.Fprintln(tabWriter, "-------\t-----")

	settings := cfg.ToMap()
	keys := make([]string, 0, len(settings))
	for key := range settings {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		_, _ = fmt.Fprintf(tabWriter, "%s\t%s\n", key, settings[key])
	}

	_, _ = fmt.Fprintf(tabWriter, "\nPIPELINE\tKIND\tURLS\tRESULTS\tEXPIRES\n")
	for _, p := range cfg.Pipelines {
		_, _ = fmt.Fprintf(tabWriter, "%s\t%s\t%s\t%s\t%dd\n", p.Name, p.Kind, p.URLsField, p.ResultsField, p.Expiry().Days)
	}

	return tabWriter.Flush()
}

func runConfigSet(key, value string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := cfg.SetValue(key, value); err != nil {
		return fmt.Errorf("failed to set configuration value: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	if err := cfg.SaveConfig(getConfigPath()); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	logger.Success("Configuration updated", logger.Fields{"key": key, "value": value})
	return nil
}

func runConfigInit(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", configPath)
	}

	if err := config.DefaultConfig().SaveConfig(configPath); err != nil {
		return fmt.Errorf("failed to save default configuration: %w", err)
	}
	logger.Success("Configuration file created", logger.Fields{"path": configPath})

	scriptPath := filepath.Join(filepath.Dir(configPath), PathScriptFile)
	if fsutil.FileExists(scriptPath) && !force {
		return nil
	}
	if err := fsutil.WriteFileAtomic(scriptPath, []byte(hooks.PathScriptTemplate), fsutil.FileModeDefault); err != nil {
		return fmt.Errorf("failed to write path script template: %w", err)
	}
	logger.Info("Path script template written; set path_script on a pipeline to use it", logger.Fields{"path": scriptPath})
	return nil
}
