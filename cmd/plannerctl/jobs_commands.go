package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/forgo/planner/api/internal/database"
	"github.com/forgo/planner/api/internal/model"
	"github.com/forgo/planner/api/internal/repository"
	"github.com/forgo/planner/api/internal/service"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect optimization jobs",
	}
	cmd.AddCommand(newJobsListCommand(ctx))
	return cmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(db *database.SurrealDB) error {
				jobs, err := readOnlyJobService(db, ctx).ListJobs(cmd.Context(), model.JobStatus(status), limit)
				if err != nil {
					return err
				}
				writeJobsTable(cmd.OutOrStdout(), jobs)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&status, "status", "s", string(model.JobStatusRunning), "Job status (queued, running, completed, failed, cancelled)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of jobs to show")
	return cmd
}

func newProgressCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "progress <job-id>",
		Short: "Show a job's progress history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(db *database.SurrealDB) error {
				records, err := readOnlyJobService(db, ctx).ListProgress(cmd.Context(), args[0], limit)
				if err != nil {
					return err
				}
				writeProgressTable(cmd.OutOrStdout(), records)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of records to show")
	return cmd
}

// readOnlyJobService has no publisher and must only serve reads
func readOnlyJobService(db *database.SurrealDB, ctx *commandContext) *service.JobService {
	return service.NewJobService(service.JobServiceConfig{
		JobRepo:      repository.NewJobRepository(db),
		ProgressRepo: repository.NewProgressRepository(db),
		Logger:       ctx.logger(false),
	})
}

func writeJobsTable(w io.Writer, jobs []*model.Job) {
	if len(jobs) == 0 {
		fmt.Fprintln(w, "No jobs found")
		return
	}
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		recruitment := "-"
		if job.RecruitmentID != nil {
			recruitment = *job.RecruitmentID
		}
		rows = append(rows, []string{
			job.ID,
			string(job.Status),
			strconv.Itoa(job.CurrentIteration),
			recruitment,
			formatTime(job.CreatedAt),
			formatTime(job.UpdatedAt),
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"ID", "Status", "Iteration", "Recruitment", "Created", "Updated"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight},
	))
}

func writeProgressTable(w io.Writer, records []*model.ProgressRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No progress recorded")
		return
	}
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			strconv.Itoa(rec.Iteration),
			formatTime(rec.Timestamp),
			rec.ID,
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"Iteration", "Reported", "Record"},
		rows,
		[]columnAlignment{alignRight},
	))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
