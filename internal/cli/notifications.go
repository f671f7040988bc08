package cli

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/parking-reservation/internal/config"
	"github.com/iliyamo/parking-reservation/internal/queue"
)

// NewNotificationsCommand creates the notifications worker command.
func NewNotificationsCommand(rootOpts *RootOptions) *cobra.Command {
	var queueName string
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Consume queued notifications and deliver them",
		Long: `Consume the notification queue filled by the API and deliver each
message.  Deliveries are written to the structured log; the worker
reconnects to RabbitMQ with exponential backoff until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			broker := config.LoadBroker()
			if broker.URL == "" {
				return errors.New("RABBITMQ_URL is required")
			}
			if queueName != "" {
				broker.Queue = queueName
			}
			log, err := newLogger(rootOpts, os.Getenv("LOG_LEVEL"))
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c := queue.NewConsumer(broker.URL, broker.Queue, queue.LogHandler(log.Named("delivery")), log)
			log.Info("notification worker starting", zap.String("queue", broker.Queue))
			return c.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&queueName, "queue", "", "queue to consume (default NOTIFY_QUEUE)")
	return cmd
}
