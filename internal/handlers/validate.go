package handlers

import (
	"errors"
	"fmt"
	"time"

	"github.com/aggregator/pubsub-log-aggregator/internal/models"
)

const maxIdentifierLength = 255

// parseBatch performs the total, explicit parse of a PublishRequest
// into validated Events: accept or reject at the boundary, with no
// partially-parsed value flowing further inward. The whole batch is
// rejected together; there is no partial-success response for a
// single publish.
func parseBatch(req models.PublishRequest) ([]models.Event, error) {
	if len(req.Events) == 0 {
		return nil, errors.New("events must not be empty")
	}

	events := make([]models.Event, 0, len(req.Events))
	for i, in := range req.Events {
		ev, err := parseEvent(in)
		if err != nil {
			return nil, fmt.Errorf("events[%d]: %w", i, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

func parseEvent(in models.EventInput) (models.Event, error) {
	if err := requireNonEmpty("topic", in.Topic); err != nil {
		return models.Event{}, err
	}
	if len(in.Topic) > maxIdentifierLength {
		return models.Event{}, fmt.Errorf("topic exceeds %d characters", maxIdentifierLength)
	}
	if err := requireNonEmpty("event_id", in.EventID); err != nil {
		return models.Event{}, err
	}
	if len(in.EventID) > maxIdentifierLength {
		return models.Event{}, fmt.Errorf("event_id exceeds %d characters", maxIdentifierLength)
	}
	if err := requireNonEmpty("source", in.Source); err != nil {
		return models.Event{}, err
	}
	if err := requireNonEmpty("timestamp", in.Timestamp); err != nil {
		return models.Event{}, err
	}
	if len(in.Payload) == 0 {
		return models.Event{}, errors.New("payload is required")
	}

	ts, err := time.Parse(time.RFC3339, in.Timestamp)
	if err != nil {
		return models.Event{}, fmt.Errorf("timestamp must be RFC3339 with an offset: %w", err)
	}

	return models.Event{
		Topic:     in.Topic,
		EventID:   in.EventID,
		Timestamp: ts.UTC(),
		Source:    in.Source,
		Payload:   in.Payload,
	}, nil
}

func requireNonEmpty(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}
