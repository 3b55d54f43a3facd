package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/forgo/planner/api/internal/cache"
	"github.com/forgo/planner/api/internal/jobs"
	"github.com/forgo/planner/api/internal/repository"
	"github.com/forgo/planner/api/internal/service"
)

func newListenProgressCommand(ctx *commandContext) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "listen-progress",
		Short: "Consume worker progress reports until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.logger(verbose)

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			db, err := ctx.openStore(runCtx)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			mq, err := ctx.dialBroker(runCtx, logger)
			if err != nil {
				return err
			}
			defer func() { _ = mq.Close() }()

			jobRepo := repository.NewJobRepository(db)

			var statusCache service.StatusCache
			var events service.Broadcaster
			if client := ctx.redisClient(runCtx, logger); client != nil {
				defer func() { _ = client.Close() }()
				statusCache = cache.New(client, jobRepo, cfg.Cache.TTL, logger)
				events = cache.NewEventPublisher(client, logger)
			} else {
				logger.Warn("live subscribers will not see updates from this listener")
			}

			progressService := service.NewProgressService(service.ProgressServiceConfig{
				JobRepo:      jobRepo,
				ProgressRepo: repository.NewProgressRepository(db),
				Cache:        statusCache,
				Events:       events,
				Logger:       logger,
			})

			listener := jobs.NewProgressListener(jobs.ProgressListenerConfig{
				Source:       mq,
				Handler:      progressService,
				StoreTimeout: cfg.Consumer.StoreTimeout,
				Logger:       logger,
			})

			logger.Info("listening for progress", "queue", cfg.Broker.ProgressQueue)
			err = listener.Run(runCtx)

			handled, failed := listener.Stats()
			logger.Info("progress listener totals", "handled", handled, "failed", failed)
			return err
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log every applied update")
	return cmd
}
