package main

import (
	"github.com/spf13/cobra"

	"github.com/syssam/strata/internal/cli"
)

var (
	ddlDrop  bool
	ddlApply bool
	ddlDSN   string
)

var ddlCmd = &cobra.Command{
	Use:   "ddl",
	Short: "Render or apply schema DDL",
	Long: `Render the DDL of a schema: tables, unique and foreign key constraints, and
the objects backing primary key generation (sequences or the AUTO_PK_SUPPORT
lookup table). With --apply the statements are executed instead.`,
	Example: `  # Print the PostgreSQL DDL of a schema
  strata ddl --schema art.yaml --dialect postgres

  # Print the DROP script
  strata ddl --schema art.yaml --drop

  # Create the tables in a SQLite database
  strata ddl --schema art.yaml --dialect sqlite --apply --dsn art.db`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tr, keys, err := newTranslator()
		if err != nil {
			return err
		}
		g := cli.NewGenerator(tr, keys)

		if !ddlApply {
			if ddlDrop {
				return cli.WriteScript(cmd.OutOrStdout(), g.DropStatements())
			}
			stmts, err := g.CreateStatements()
			if err != nil {
				return err
			}
			return cli.WriteScript(cmd.OutOrStdout(), stmts)
		}

		cfg.Database.DSN = resolveString(ddlDSN, cfg.Database.DSN)
		ctx := cmd.Context()
		db, err := cfg.Open(ctx, logger)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		if ddlDrop {
			err = g.Drop(ctx, db)
		} else {
			err = g.Create(ctx, db)
		}
		if err != nil {
			return err
		}
		logger.InfoContext(ctx, "schema applied", "drop", ddlDrop, "entities", len(tr.Registry().Entities()), "stats", db.Stats().String())
		return nil
	},
}

func init() {
	ddlCmd.Flags().BoolVar(&ddlDrop, "drop", false, "render DROP statements instead of CREATE")
	ddlCmd.Flags().BoolVar(&ddlApply, "apply", false, "execute the statements against the database")
	ddlCmd.Flags().StringVar(&ddlDSN, "dsn", "", "database connection string (overrides config)")
}
