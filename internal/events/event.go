// Package events publishes ledger changes to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/contracts"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/models"
)

// Event types
const (
	TypeDetected = "opportunity.detected"
	TypeSettled  = "opportunity.settled"
)

// Event is the envelope written to every sink
type Event struct {
	Type        string             `json:"type"`
	Opportunity models.Opportunity `json:"opportunity"`
	EmittedAt   time.Time          `json:"emitted_at"`
}

func encode(eventType string, opp models.Opportunity) ([]byte, error) {
	data, err := json.Marshal(Event{Type: eventType, Opportunity: opp, EmittedAt: time.Now().UTC()})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}
	return data, nil
}

// Noop discards events
type Noop struct{}

var _ contracts.EventPublisher = Noop{}

func (Noop) PublishDetected(ctx context.Context, opp models.Opportunity) error { return nil }
func (Noop) PublishSettled(ctx context.Context, opp models.Opportunity) error  { return nil }
func (Noop) Close() error                                                      { return nil }
