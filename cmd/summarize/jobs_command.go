package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect recorded runs (requires DB_PATH)",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := ctx.ensureDeps(cmd.Context())
			if err != nil {
				return err
			}
			jobs, err := deps.Service.ListJobs(cmd.Context())
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs recorded")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATUS\tPROGRESS\tFILE\tCREATED")
			for _, j := range jobs {
				fmt.Fprintf(tw, "%s\t%s\t%d%%\t%s\t%s\n",
					j.ID, j.Status, j.Progress, j.Filename, j.CreatedAt.Local().Format(time.DateTime))
			}
			return tw.Flush()
		},
	}

	cmd.AddCommand(newJobsShowCommand(ctx))
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show the run log and result of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := ctx.ensureDeps(cmd.Context())
			if err != nil {
				return err
			}
			j, err := deps.Service.GetJob(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("job %s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeReport(out, j)
			}
			for _, s := range j.Steps {
				fmt.Fprintf(out, "%s  %-20s %-7s %s\n", s.At.Local().Format(time.TimeOnly), s.Step, s.Status, s.Message)
			}
			fmt.Fprintln(out)
			printResult(out, j)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the full report as JSON")
	return cmd
}
