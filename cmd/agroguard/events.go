package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/agroguard/internal/store/rabbitmq"
	"go.uber.org/zap"
)

var eventsConcurrency int

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.Flags().IntVar(&eventsConcurrency, "concurrency", 2, "worker count (2..50)")
}

// eventsCmd drains the detection event queue and logs each event. It is the
// reference consumer for downstream integrations.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Consume and log detection events from RabbitMQ",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.RabbitURL == "" {
			return errors.New("RABBIT_URL is not set")
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		c, err := rabbitmq.NewConsumer(cfg.RabbitURL, cfg.RabbitQueue, eventsConcurrency, logger.Named("events"))
		if err != nil {
			return err
		}
		defer c.Close()

		return c.Run(ctx, func(ctx context.Context, ev rabbitmq.DetectionEvent) error {
			logger.Info("detection",
				zap.String("detection_id", ev.DetectionID),
				zap.String("owner_id", ev.OwnerID),
				zap.String("crop", string(ev.CropType)),
				zap.String("disease", ev.DiseaseName),
				zap.String("severity", string(ev.SeverityLevel)),
				zap.Float64("confidence", ev.ConfidenceScore),
				zap.Time("created_at", ev.CreatedAt))
			return nil
		})
	},
}
