package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/thermaquote/thermaquote/jobs"
)

func newJobsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and trigger background jobs",
	}
	cmd.AddCommand(newJobsTriggerCommand(), newJobsStatusCommand())
	return cmd
}

func newJobsTriggerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "trigger NAME",
		Short: "Enqueue a job now (quote-expiry, catalog-warm)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := jobs.TaskByName(args[0])
			if err != nil {
				return err
			}
			e, err := loadEnv()
			if err != nil {
				return err
			}
			defer e.close()
			client := jobs.NewClient(asynq.RedisClientOpt{Addr: e.cfg.RedisAddr})
			defer client.Close()
			info, err := client.Enqueue(cmd.Context(), task)
			if err != nil {
				return fmt.Errorf("enqueue %s: %w", task.Type(), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
			return nil
		},
	}
}

func newJobsStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the default queue counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			defer e.close()
			inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: e.cfg.RedisAddr})
			defer inspector.Close()
			info, err := inspector.GetQueueInfo(jobs.QueueDefault)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "QUEUE\tPENDING\tACTIVE\tSCHEDULED\tRETRY\tFAILED")
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n", info.Queue, info.Pending, info.Active, info.Scheduled, info.Retry, info.Failed)
			return tw.Flush()
		},
	}
}
