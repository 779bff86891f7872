// Package notifier turns order events into customer emails. It runs in
// the worker binary, downstream of the order service via Kafka.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/vicentepr/storefront/internal/domain"
)

type Handler struct {
	emailServiceURL string
	httpClient      *http.Client
	logger          *slog.Logger
}

func NewHandler(emailServiceURL string, client *http.Client, logger *slog.Logger) *Handler {
	return &Handler{
		emailServiceURL: emailServiceURL,
		httpClient:      client,
		logger:          logger,
	}
}

func (h *Handler) HandleOrderCreated(ctx context.Context, payload []byte) error {
	var event domain.OrderCreatedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order created event: %w", err)
	}

	h.logger.Info("processing order created event", "order_id", event.OrderID, "user_id", event.UserID)

	body := map[string]string{
		"to":      event.UserID + "@example.com",
		"subject": "Order received: " + event.OrderID,
		"body": fmt.Sprintf("We received your order %s with %d items, totaling %d.",
			event.OrderID, len(event.Items), event.Total),
	}
	if err := h.sendEmail(ctx, body); err != nil {
		return fmt.Errorf("send order received email: %w", err)
	}

	h.logger.Info("order received email sent", "order_id", event.OrderID)
	return nil
}

func (h *Handler) HandleOrderClosed(ctx context.Context, payload []byte) error {
	var event domain.OrderClosedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order closed event: %w", err)
	}

	h.logger.Info("processing order closed event", "order_id", event.OrderID, "user_id", event.UserID)

	body := map[string]string{
		"to":      event.UserID + "@example.com",
		"subject": "Order confirmed: " + event.OrderID,
		"body":    fmt.Sprintf("Your order %s is confirmed. Total charged: %d.", event.OrderID, event.Total),
	}
	if err := h.sendEmail(ctx, body); err != nil {
		return fmt.Errorf("send order confirmed email: %w", err)
	}

	h.logger.Info("order confirmed email sent", "order_id", event.OrderID)
	return nil
}

func (h *Handler) sendEmail(ctx context.Context, body map[string]string) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}
