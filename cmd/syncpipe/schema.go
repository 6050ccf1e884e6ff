package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/velmie/syncpipe/mysql"
	"github.com/velmie/syncpipe/postgres"
)

func newSchemaCmd(st *state) *cobra.Command {
	var binary bool

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the DDL for the configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				ddl string
				err error
			)
			switch st.cfg.Store.Driver {
			case "mysql":
				if binary {
					ddl, err = mysql.SchemaBinary(st.cfg.Store.Table)
				} else {
					ddl, err = mysql.Schema(st.cfg.Store.Table)
				}
			case "postgres":
				ddl, err = postgres.Schema(st.cfg.Store.Table)
			default:
				return errSQLStoreRequired
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), ddl)

			return nil
		},
	}
	cmd.Flags().BoolVar(&binary, "binary", false, "MySQL only: store request data as LONGBLOB")

	return cmd
}
