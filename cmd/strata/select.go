package main

import (
	"github.com/spf13/cobra"

	"github.com/syssam/strata/internal/cli"
)

var (
	selectWhere []string
	selectLimit int
)

var selectCmd = &cobra.Command{
	Use:   "select <entity>",
	Short: "Render the SELECT of an entity",
	Long: `Render the SELECT statement fetching an entity, filtered by equality on
properties or, with a "db:" prefix, on columns. Bound values are printed as
comments after the statement.`,
	Example: `  # Select artists by name
  strata select Artist --where artistName=Monet

  # Filter on a column and page the result
  strata select Painting --where db:ARTIST_ID=7 --limit 10`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tr, _, err := newTranslator()
		if err != nil {
			return err
		}
		stmt, err := cli.Select(cmd.Context(), tr, args[0], selectWhere, selectLimit)
		if err != nil {
			return err
		}
		return cli.WriteStatement(cmd.OutOrStdout(), stmt)
	},
}

func init() {
	selectCmd.Flags().StringArrayVarP(&selectWhere, "where", "w", nil, "equality filter path=value (repeatable)")
	selectCmd.Flags().IntVar(&selectLimit, "limit", 0, "maximum number of rows")
}
