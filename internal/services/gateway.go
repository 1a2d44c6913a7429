package services

import (
	"context"
	"log/slog"

	"github.com/tradeguard/escrow/internal/domain"
	"github.com/tradeguard/escrow/internal/metrics"
	"github.com/tradeguard/escrow/internal/ports"
)

// Gateway fans notification events out to parties and admins. Every send is
// best-effort: failures are logged and counted, never propagated, so a
// committed transition can never be rolled back by a delivery problem.
type Gateway struct {
	notifier ports.Notifier
	adminIDs []string
	logger   *slog.Logger
}

func NewGateway(notifier ports.Notifier, adminIDs []string, logger *slog.Logger) *Gateway {
	return &Gateway{
		notifier: notifier,
		adminIDs: adminIDs,
		logger:   logger,
	}
}

func (g *Gateway) NotifyUser(ctx context.Context, recipientID string, event ports.Event, payload map[string]any) {
	if recipientID == "" {
		return
	}
	if err := g.notifier.Send(ctx, recipientID, event, payload); err != nil {
		metrics.NotificationFailures.Inc()
		g.logger.Warn("notification failed",
			"recipient", recipientID,
			"event", event,
			"error", err,
		)
	}
}

func (g *Gateway) NotifyAdmins(ctx context.Context, event ports.Event, payload map[string]any) {
	for _, id := range g.adminIDs {
		g.NotifyUser(ctx, id, event, payload)
	}
}

func (g *Gateway) NotifyParticipants(ctx context.Context, tx *domain.Transaction, event ports.Event, payload map[string]any) {
	for _, id := range tx.Participants() {
		g.NotifyUser(ctx, id, event, payload)
	}
}

// txPayload is the common notification context for a transaction.
func txPayload(tx *domain.Transaction) map[string]any {
	return map[string]any{
		"transactionId": tx.ID,
		"shortId":       tx.ShortID,
		"state":         string(tx.State),
		"accountType":   string(tx.AccountType),
		"amount":        tx.Amount,
	}
}
