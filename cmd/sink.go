/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/qrtrack/apiserver/config"
	"github.com/qrtrack/apiserver/internal/logging"
	"github.com/qrtrack/apiserver/internal/sink"
	"github.com/spf13/cobra"
)

// sinkCmd runs the scan log worker: it drains the scan event channel and
// archives each event as an immutable object.
var sinkCmd = &cobra.Command{
	Use:   "sink",
	Short: "Runs the scan log sink worker",
	Long: `Consumes relayed scan events from the configured broker and appends
each one to object storage. Usage:

	qrtrack sink
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logging.Setup(cfg.Log.Level, cfg.Log.Format)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		broker, err := sink.NewMQFromConfig(ctx, cfg)
		if err != nil {
			return fmt.Errorf("connect broker: %w", err)
		}
		defer broker.Close()

		st, err := sink.NewStorageFromConfig(ctx, cfg)
		if err != nil {
			return fmt.Errorf("connect storage: %w", err)
		}
		if err := st.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("ensure bucket: %w", err)
		}

		worker := sink.NewWorker(broker, cfg.MQ.Channel, sink.NewObjectSink(st))
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sinkCmd)
}
