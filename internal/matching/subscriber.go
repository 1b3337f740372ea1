package matching

import (
	"context"
	"fmt"

	"leadline_backend/internal/events"
	"leadline_backend/internal/leads"
	"leadline_backend/platform/logger"

	"github.com/google/uuid"
)

// LeadReader fetches leads for event-driven rematching.
type LeadReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (leads.Lead, error)
}

// RegisterSubscriber wires the engine to lead-created events so every new
// lead gets a ranked vendor audit without blocking the inbound pipeline.
func RegisterSubscriber(bus events.Bus, engine *Engine, reader LeadReader, log *logger.Logger) {
	bus.Subscribe(events.LeadCreated{}.EventName(), events.HandlerFunc(
		func(ctx context.Context, event events.Event) error {
			created, ok := event.(events.LeadCreated)
			if !ok {
				return fmt.Errorf("unexpected event type %T", event)
			}

			lead, err := reader.GetByID(ctx, created.LeadID)
			if err != nil {
				return fmt.Errorf("load lead %s: %w", created.LeadID, err)
			}

			matches, err := engine.MatchAndRecord(ctx, lead)
			if err != nil {
				return err
			}

			ids := make([]uuid.UUID, 0, len(matches))
			for _, m := range matches {
				ids = append(ids, m.VendorID)
			}
			log.Info("lead matched", "lead_id", lead.ID, "candidates", len(matches))
			bus.Publish(ctx, events.LeadMatched{
				BaseEvent: events.NewBaseEvent(),
				LeadID:    lead.ID,
				VendorIDs: ids,
			})
			return nil
		}))
}
