package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bdubs00/pscale-context-server/internal/catalog"
	"github.com/bdubs00/pscale-context-server/internal/config"
	"github.com/bdubs00/pscale-context-server/internal/policy"
)

var version = "v0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "pscale-context-server",
		Short:        "PlanetScale context server for AI assistants",
		SilenceUsage: true,
	}

	var opts serveOptions
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve function calls on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	serveCmd.Flags().StringVar(&opts.configPath, "config", "", "path to config file (default: built-in stub configuration)")
	serveCmd.Flags().StringVar(&opts.backendKind, "backend", "", "override backend kind (stub, cli)")
	serveCmd.Flags().StringVar(&opts.auditLog, "audit-log", "", "path to audit log file (default: stderr)")
	serveCmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "evaluate the access policy but run all calls")

	var validatePath string
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateConfig(cmd, validatePath)
		},
	}
	validateCmd.Flags().StringVar(&validatePath, "config", "", "path to config file")
	validateCmd.MarkFlagRequired("config")

	var functionsPath string
	functionsCmd := &cobra.Command{
		Use:   "functions",
		Short: "Print the capability announcement",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printFunctions(cmd, functionsPath)
		},
	}
	functionsCmd.Flags().StringVar(&functionsPath, "config", "", "path to config file")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "pscale-context-server "+version)
		},
	}

	root.AddCommand(serveCmd, validateCmd, functionsCmd, versionCmd)
	return root
}

func validateConfig(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (backend %s)\n", configPath, cfg.Backend.Kind)
	return nil
}

func printFunctions(cmd *cobra.Command, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	engine := policy.NewEngine(cfg.Policy)
	caps := catalog.NewCapabilities(cfg.Name, cfg.Description, engine.Advertised(catalog.Operations()))

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(caps)
}
