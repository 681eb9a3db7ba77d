package main

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/retrocast/api/internal/model"
)

var pendingFlag bool

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process queued video jobs",
	RunE:  runWorker,
}

func init() {
	workerCmd.Flags().BoolVar(&pendingFlag, "pending", false, "List pending jobs in the queue and exit")
}

func runWorker(cmd *cobra.Command, args []string) error {
	if pendingFlag {
		return listPending(cmd)
	}

	ctx := cmd.Context()
	in, err := openInfra(ctx, cfg)
	if err != nil {
		return err
	}
	defer in.Close()

	videoWorker, err := newVideoWorker(ctx, cfg, in, publisher(in))
	if err != nil {
		return err
	}

	log.Info().Str("queue", cfg.Dispatch.Queue).Int("concurrency", cfg.Worker.Concurrency).Msg("Worker starting")
	// Run blocks until SIGINT/SIGTERM.
	return newQueueServer(cfg).Run(newQueueMux(videoWorker))
}

func listPending(cmd *cobra.Command) error {
	inspector := asynq.NewInspector(redisOpt(&cfg.Redis))
	defer inspector.Close()

	tasks, err := inspector.ListPendingTasks(cfg.Dispatch.Queue)
	if err != nil {
		return fmt.Errorf("list pending tasks: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(tasks) == 0 {
		fmt.Fprintln(out, "No pending jobs")
		return nil
	}
	for _, t := range tasks {
		var p model.VideoTaskPayload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			fmt.Fprintf(out, "%s\t%s\t(unreadable payload)\n", t.ID, t.Type)
			continue
		}
		fmt.Fprintf(out, "%s\t%s\tuser=%s video=%s style=%s ads=%d\n",
			t.ID, t.Type, p.UserID, p.VideoID, p.ShaderStyle, len(p.AdIDs))
	}
	return nil
}
