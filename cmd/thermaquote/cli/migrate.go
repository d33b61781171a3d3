package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thermaquote/thermaquote/internal/platform/db"
)

func newMigrateCommand() *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if list {
				versions, err := db.Migrations()
				if err != nil {
					return err
				}
				for _, v := range versions {
					fmt.Fprintln(out, v)
				}
				return nil
			}

			e, err := loadEnv()
			if err != nil {
				return err
			}
			defer e.close()
			if err := e.connectDB(cmd.Context()); err != nil {
				return err
			}
			applied, err := db.RunMigrations(cmd.Context(), e.pool)
			for _, v := range applied {
				fmt.Fprintf(out, "applied %s\n", v)
			}
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(out, "schema up to date")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "print embedded migrations without applying them")
	return cmd
}
