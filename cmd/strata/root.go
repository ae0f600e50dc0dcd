package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/syssam/strata/internal/cli"
	"github.com/syssam/strata/pkgen"
	"github.com/syssam/strata/translator"
)

var (
	// Global state set during PersistentPreRunE
	cfg        *cli.Config
	configPath string
	logger     *slog.Logger

	// Persistent flags
	cfgFile     string
	schemaFile  string
	dialectName string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "strata",
	Short: "Object-relational mapping core",
	Long: `strata - object-relational mapping core

Strata maps entities onto tables, translates object qualifiers to SQL for
several dialects and commits object graph changes in dependency order.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "version" {
			return nil
		}

		var err error
		cfg, configPath, err = cli.LoadConfig(cfgFile)
		if err != nil {
			return cli.ConfigError("loading configuration", err)
		}
		cfg.Schema = resolveString(schemaFile, cfg.Schema)
		cfg.Dialect = resolveString(dialectName, cfg.Dialect)
		if verbose {
			cfg.Log.Level = "debug"
		}
		logger, err = cfg.Logger(cmd.ErrOrStderr())
		return err
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Command group IDs
const (
	groupSchema  = "schema"
	groupUtility = "utility"
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: auto-discover strata.yaml)")
	rootCmd.PersistentFlags().StringVar(&schemaFile, "schema", "", "schema file (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&dialectName, "dialect", "d", "", "SQL dialect (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every statement")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupSchema, Title: "Schema:"},
		&cobra.Group{ID: groupUtility, Title: "Utility:"},
	)

	ddlCmd.GroupID = groupSchema
	selectCmd.GroupID = groupSchema
	rootCmd.AddCommand(ddlCmd)
	rootCmd.AddCommand(selectCmd)

	dialectsCmd.GroupID = groupUtility
	configCmd.GroupID = groupUtility
	versionCmd.GroupID = groupUtility
	rootCmd.AddCommand(dialectsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		cli.ExitWithError(err)
	}
}

// newTranslator loads the configured schema and returns a translator and
// key provider for the configured dialect.
func newTranslator() (*translator.Translator, *pkgen.Provider, error) {
	reg, err := cfg.Registry()
	if err != nil {
		return nil, nil, err
	}
	a, err := cfg.Adapter()
	if err != nil {
		return nil, nil, err
	}
	tr := translator.New(a, reg, translator.WithLogger(logger))
	return tr, pkgen.NewProvider(a, pkgen.WithCacheSize(cfg.Keys.CacheSize)), nil
}

// resolveString returns the first non-empty string from the provided values.
// Used to implement precedence: flag > config > default.
func resolveString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
