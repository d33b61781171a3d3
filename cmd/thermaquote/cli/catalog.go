package cli

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/thermaquote/thermaquote/internal/app"
	"github.com/thermaquote/thermaquote/internal/catalog"
	"github.com/thermaquote/thermaquote/jobs"
)

func newImportCommand() *cobra.Command {
	var (
		dryRun bool
		async  bool
	)
	cmd := &cobra.Command{
		Use:   "import-catalog FILE",
		Short: "Upsert products by SKU from an .xlsx or .csv price list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			content, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			name := filepath.Base(path)

			if dryRun {
				rows, rowErrs, err := catalog.ParseProductRows(name, bytes.NewReader(content))
				if err != nil {
					return err
				}
				printImportRows(out, rows)
				printRowErrors(out, rowErrs)
				fmt.Fprintf(out, "%d usable, %d rejected\n", len(rows), len(rowErrs))
				return nil
			}

			e, err := loadEnv()
			if err != nil {
				return err
			}
			defer e.close()

			if async {
				task, err := jobs.NewCatalogImportTask(name, content)
				if err != nil {
					return err
				}
				client := jobs.NewClient(asynq.RedisClientOpt{Addr: e.cfg.RedisAddr})
				defer client.Close()
				info, err := client.Enqueue(cmd.Context(), task)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "enqueued %s as %s on %s\n", name, info.ID, info.Queue)
				return nil
			}

			if err := e.connectDB(cmd.Context()); err != nil {
				return err
			}
			e.connectRedis(cmd.Context())
			services := app.BuildServices(e.cfg, e.pool, e.redis, nil, e.logger)
			result, err := services.Catalog.Import(cmd.Context(), name, bytes.NewReader(content))
			if err != nil {
				return err
			}
			e.logger.Info("catalog imported",
				slog.String("file", name),
				slog.Int("created", result.Created),
				slog.Int("updated", result.Updated),
				slog.Int("rejected", len(result.Errors)),
			)
			printRowErrors(out, result.Errors)
			fmt.Fprintf(out, "%d created, %d updated, %d rejected\n", result.Created, result.Updated, len(result.Errors))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse and report rows without touching the database")
	cmd.Flags().BoolVar(&async, "async", false, "hand the file to the worker instead of importing in-process")
	return cmd
}

func printImportRows(out io.Writer, rows []catalog.ImportRow) {
	if len(rows) == 0 {
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROW\tSKU\tDESCRIPTION\tPACK PRICE\tPACK SIZE\tLABOUR")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", r.Row, r.SKU, r.Description,
			r.PackPrice.StringFixed(2), r.PackSize.String(), yesNo(r.IsLabour))
	}
	_ = tw.Flush()
}

func printRowErrors(out io.Writer, rowErrs []catalog.RowError) {
	for _, e := range rowErrs {
		fmt.Fprintf(out, "row %d: %s\n", e.Row, e.Message)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
