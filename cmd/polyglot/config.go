package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/kornysietsma/polyglot-code-scanner/internal/config"
)

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage scanner configuration",
		Long:  "View and manage configuration stored in .polyglot/config.toml",
	}
	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigValidateCmd())
	return configCmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [root]",
		Short: "Write the default configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(rootArg(args))
			if err := config.WriteDefault(path, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var (
		configPath string
		format     string
	)
	cmd := &cobra.Command{
		Use:   "show [root]",
		Short: "Show the effective configuration",
		Long: `Display the configuration a scan of root would use, after defaults,
the config file and POLYGLOT_* environment variables are merged.

Examples:
  polyglot config show
  polyglot config show --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(rootArg(args), configPath)
			if err != nil {
				return err
			}
			out, err := formatConfig(cfg, format)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Config file (default <root>/.polyglot/config.toml)")
	cmd.Flags().StringVar(&format, "format", "toml", "Output format (toml, json)")
	return cmd
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Check a configuration file",
		Long:  "Strictly parse a configuration file, rejecting unknown keys, and validate its values.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(".")
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := config.ValidateFile(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", path)
			return nil
		},
	}
}

func formatConfig(cfg *config.Config, format string) (string, error) {
	switch format {
	case "toml":
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return "", fmt.Errorf("failed to encode config: %w", err)
		}
		return buf.String(), nil
	case "json":
		out, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to encode config: %w", err)
		}
		return string(out) + "\n", nil
	default:
		return "", fmt.Errorf("unknown format %q", format)
	}
}

func rootArg(args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	return "."
}
