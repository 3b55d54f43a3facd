package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/forgo/planner/api/internal/database"
	"github.com/forgo/planner/api/internal/model"
	"github.com/forgo/planner/api/internal/repository"
	"github.com/forgo/planner/api/internal/service"
)

func newEvaluateCommand(ctx *commandContext) *cobra.Command {
	var trigger bool

	cmd := &cobra.Command{
		Use:   "evaluate <recruitment-id>",
		Short: "Check whether a recruitment is ready for optimization",
		Long: "Evaluates the trigger conditions of a draft recruitment without changing it.\n" +
			"With --trigger, a ready recruitment is moved to optimizing and a job is submitted.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			logger := ctx.logger(false)

			return ctx.withStore(cmd.Context(), func(db *database.SurrealDB) error {
				cfg := service.RecruitmentServiceConfig{
					RecruitmentRepo: repository.NewRecruitmentRepository(db),
					Problems:        repository.NewPreferencesRepository(db),
					Participants:    repository.NewParticipantRepository(db),
					Logger:          logger,
				}

				if !trigger {
					eval, err := service.NewRecruitmentService(cfg).EvaluateByID(cmd.Context(), id)
					if err != nil {
						return err
					}
					printEvaluation(cmd.OutOrStdout(), eval)
					return nil
				}

				mq, err := ctx.dialBroker(cmd.Context(), logger)
				if err != nil {
					return err
				}
				defer func() { _ = mq.Close() }()

				cfg.Jobs = service.NewJobService(service.JobServiceConfig{
					JobRepo:      repository.NewJobRepository(db),
					ProgressRepo: repository.NewProgressRepository(db),
					Publisher:    mq,
					Logger:       logger,
				})
				result, err := service.NewRecruitmentService(cfg).TriggerByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				printTriggerResult(cmd.OutOrStdout(), id, result)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&trigger, "trigger", false, "Submit an optimization job when the recruitment is ready")
	return cmd
}

func printEvaluation(w io.Writer, eval *model.RecruitmentEvaluation) {
	verdict := "not ready"
	if eval.ShouldTrigger {
		verdict = "ready"
	}
	fmt.Fprintf(w, "%s: %s (evaluated %s)\n", eval.RecruitmentID, verdict, eval.EvaluatedAt.Format(time.RFC3339))
}

func printTriggerResult(w io.Writer, id string, result *model.TriggerResult) {
	if !result.Triggered || result.Job == nil {
		fmt.Fprintf(w, "%s: not triggered\n", id)
		return
	}
	fmt.Fprintf(w, "%s: triggered job %s (%s)\n", id, result.Job.ID, result.Job.Status)
}
