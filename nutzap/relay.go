package nutzap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nbd-wtf/go-nostr"
)

// Querier reads events from relays. Satisfied by RelayClient; tests
// substitute their own.
type Querier interface {
	Query(ctx context.Context, filter nostr.Filter) ([]*nostr.Event, error)
}

// Publisher writes events to relays.
type Publisher interface {
	Publish(ctx context.Context, event *nostr.Event) error
}

// RelayClient talks to a set of nostr relays through one shared
// connection pool.
type RelayClient struct {
	pool   *nostr.SimplePool
	relays []string
	logger *slog.Logger
}

// NewRelayClient builds a client over the given relay urls. The
// context bounds the lifetime of the underlying connection pool.
func NewRelayClient(ctx context.Context, relays []string, logger *slog.Logger) (*RelayClient, error) {
	urls := make([]string, 0, len(relays))
	for _, relay := range relays {
		relay = strings.TrimSpace(relay)
		if relay == "" {
			continue
		}
		if !strings.HasPrefix(relay, "ws://") && !strings.HasPrefix(relay, "wss://") {
			return nil, fmt.Errorf("invalid relay url: %v", relay)
		}
		urls = append(urls, relay)
	}
	if len(urls) == 0 {
		return nil, errors.New("no relays configured")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &RelayClient{
		pool:   nostr.NewSimplePool(ctx),
		relays: urls,
		logger: logger,
	}, nil
}

// Relays returns the configured relay urls.
func (c *RelayClient) Relays() []string {
	return c.relays
}

// Query collects events matching the filter from all relays until the
// context expires or every relay is done. Duplicates delivered by
// multiple relays are collapsed on event id.
func (c *RelayClient) Query(ctx context.Context, filter nostr.Filter) ([]*nostr.Event, error) {
	relayCh := c.pool.SubscribeMany(ctx, c.relays, filter)

	seen := make(map[string]bool)
	var events []*nostr.Event
	for {
		select {
		case <-ctx.Done():
			return events, nil
		case relayEvent, ok := <-relayCh:
			if !ok {
				return events, nil
			}
			if relayEvent.Event == nil || seen[relayEvent.Event.ID] {
				continue
			}
			seen[relayEvent.Event.ID] = true
			events = append(events, relayEvent.Event)
			c.logger.Debug("relay event",
				slog.String("id", relayEvent.Event.ID),
				slog.Int("kind", relayEvent.Event.Kind))
		}
	}
}

// Publish sends the signed event to all relays. It succeeds as soon
// as one relay accepts the event and fails only when every relay
// rejected it.
func (c *RelayClient) Publish(ctx context.Context, event *nostr.Event) error {
	results := c.pool.PublishMany(ctx, c.relays, *event)

	var accepted int
	var firstErr error
	for {
		select {
		case <-ctx.Done():
			if accepted > 0 {
				return nil
			}
			return ctx.Err()
		case res, ok := <-results:
			if !ok {
				if accepted > 0 {
					return nil
				}
				if firstErr != nil {
					return fmt.Errorf("all relays rejected event: %w", firstErr)
				}
				return errors.New("no relays responded")
			}
			if res.Error != nil {
				if firstErr == nil {
					firstErr = res.Error
				}
				c.logger.Debug("relay rejected event",
					slog.String("event", event.ID), slog.Any("error", res.Error))
				continue
			}
			accepted++
		}
	}
}
