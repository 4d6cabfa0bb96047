package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/document-request/internal/core/events"
	"github.com/frahmantamala/document-request/internal/docrequest"
	docrequestpostgres "github.com/frahmantamala/document-request/internal/docrequest/postgres"
	"github.com/frahmantamala/document-request/pkg/logger"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Inspect and replay document request events`,
}

var replayEventCmd = &cobra.Command{
	Use:   "replay [request-id]",
	Short: "Replay the audit event of a stored request",
	Long:  `Load a document request and run its submitted or reconciled event through the audit handlers again`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid request id %q", args[0])
		}
		return replayEvent(cmd.Context(), id)
	},
}

var (
	replaySMSSent      bool
	replayNotification bool
)

func replayEvent(ctx context.Context, id int64) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	lg := logger.LoggerWrapper()

	db, err := initDB(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	gormDB, err := initGorm(db)
	if err != nil {
		return err
	}

	req, err := docrequestpostgres.NewDocumentRequestRepository(gormDB).GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load request %d: %w", id, err)
	}

	eventBus := events.NewEventBus(lg)
	docrequest.NewEventHandler(lg).RegisterEventHandlers(eventBus)

	var event events.Event
	if req.GatewaySessionID != "" {
		event = events.NewDocumentRequestReconciledEvent(req.ID, req.GatewaySessionID, req.StudentID, req.TotalAmount, replaySMSSent, replayNotification)
	} else {
		event = events.NewDocumentRequestSubmittedEvent(req.StudentID, string(req.PaymentMethod), req.TotalAmount, req.ID, "")
	}

	lg.Info("replaying event", "event_type", event.EventType(), "event_id", event.EventID(), "request_id", req.ID)
	return eventBus.PublishSync(ctx, event)
}

func init() {
	replayEventCmd.Flags().BoolVar(&replaySMSSent, "sms-sent", true, "Mark the replayed reconciliation as having sent an SMS")
	replayEventCmd.Flags().BoolVar(&replayNotification, "notification-created", true, "Mark the replayed reconciliation as having created a notification")

	eventCmd.AddCommand(replayEventCmd)

	rootCmd.AddCommand(eventCmd)
}
