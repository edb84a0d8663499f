package notification

import (
	"context"
	"encoding/json"
	"log"

	"github.com/example/storefront/internal/email"
	"github.com/example/storefront/internal/events"
)

// Handler processes activity events for sending notifications
type Handler struct {
	emailService email.Sender
}

// NewHandler creates a new notification handler
func NewHandler(emailSvc email.Sender) *Handler {
	return &Handler{
		emailService: emailSvc,
	}
}

// HandleEvent processes an event from Kafka
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var envelope events.Envelope
	if err := json.Unmarshal(value, &envelope); err != nil {
		log.Printf("[Notifier] Failed to unmarshal event: %v", err)
		return err
	}

	// Only order submissions trigger an email
	if envelope.EventType == events.EventOrderSubmitted {
		return h.handleOrderSubmitted(envelope)
	}

	return nil
}

func (h *Handler) handleOrderSubmitted(envelope events.Envelope) error {
	var e events.OrderSubmitted
	if err := json.Unmarshal(envelope.Payload, &e); err != nil {
		log.Printf("[Notifier] Failed to unmarshal OrderSubmitted event: %v", err)
		return err
	}

	log.Printf("[Notifier] Processing OrderSubmitted event for order %s, shopper %s", e.OrderID, e.ShopperID)

	if e.Email == "" {
		log.Printf("[Notifier] No email address on order %s, skipping confirmation", e.OrderID)
		return nil
	}

	emailItems := make([]email.OrderItem, len(e.Items))
	for i, item := range e.Items {
		emailItems[i] = email.OrderItem{
			ProductID: item.ID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Price:     item.Price,
		}
	}

	if err := h.emailService.SendOrderConfirmation(e.Email, e.OrderID, e.Total, emailItems); err != nil {
		log.Printf("[Notifier] Failed to send email to %s: %v", e.Email, err)
		return err
	}

	log.Printf("[Notifier] Order confirmation email sent to %s for order %s", e.Email, e.OrderID)
	return nil
}
