package main

import (
	"github.com/spf13/cobra"

	"github.com/syssam/strata/internal/cli"
)

var dialectsCmd = &cobra.Command{
	Use:   "dialects",
	Short: "List SQL dialects and their capabilities",
	RunE: func(cmd *cobra.Command, args []string) error {
		infos, err := cli.Dialects()
		if err != nil {
			return err
		}
		return cli.WriteDialects(cmd.OutOrStdout(), infos)
	},
}
