/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/friendsincode/waveform/internal/events"
)

// Relay publishes in-process bus events to NATS subjects so other instances
// and external consumers can observe them. Delivery is best-effort; the
// in-process bus remains the source of truth for local subscribers.
type Relay struct {
	logger zerolog.Logger
	bus    *events.Bus
	conn   *nats.Conn
	nodeID string
}

// relayedTypes lists the event types forwarded to NATS.
var relayedTypes = []events.EventType{
	events.EventTrackStarted,
	events.EventTrackEnded,
	events.EventStateChanged,
	events.EventQueueUpdated,
	events.EventHistoryRecorded,
	events.EventTrackLiked,
	events.EventTrackCommented,
	events.EventUserFollowed,
}

// NewRelay connects to NATS and returns a relay bound to bus. A connection
// failure is returned to the caller; pass an empty URL to disable relaying
// without error.
func NewRelay(natsURL string, bus *events.Bus, logger zerolog.Logger) (*Relay, error) {
	r := &Relay{
		logger: logger,
		bus:    bus,
		nodeID: nodeID(),
	}
	if natsURL == "" {
		return r, nil
	}

	conn, err := nats.Connect(natsURL,
		nats.Name("waveform"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	r.conn = conn
	logger.Info().Str("url", natsURL).Msg("NATS event relay connected")
	return r, nil
}

// Enabled reports whether a NATS connection is active.
func (r *Relay) Enabled() bool {
	return r != nil && r.conn != nil
}

// Run subscribes to the relayed event types and forwards payloads until
// stop is closed. Intended to run as a background worker.
func (r *Relay) Run(stop <-chan struct{}) {
	if !r.Enabled() {
		return
	}

	type envelope struct {
		eventType events.EventType
		payload   events.Payload
	}

	subs := make(map[events.EventType]events.Subscriber, len(relayedTypes))
	for _, et := range relayedTypes {
		subs[et] = r.bus.Subscribe(et)
	}

	out := make(chan envelope, 32)
	var wg sync.WaitGroup
	for et, sub := range subs {
		wg.Add(1)
		go func(et events.EventType, sub events.Subscriber) {
			defer wg.Done()
			for payload := range sub {
				out <- envelope{eventType: et, payload: payload}
			}
		}(et, sub)
	}

	defer func() {
		for et, sub := range subs {
			r.bus.Unsubscribe(et, sub)
		}
		go func() {
			wg.Wait()
			close(out)
		}()
		// Drain whatever the fan-in goroutines had in flight.
		for range out {
		}
	}()

	for {
		select {
		case <-stop:
			return
		case env := <-out:
			r.forward(env.eventType, env.payload)
		}
	}
}

func (r *Relay) forward(eventType events.EventType, payload events.Payload) {
	msg := relayMessage{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		NodeID:    r.nodeID,
		MessageID: uuid.NewString(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error().Err(err).Str("event", string(eventType)).Msg("marshal relay message")
		return
	}
	subject := fmt.Sprintf("waveform.events.%s", eventType)
	if err := r.conn.Publish(subject, data); err != nil {
		r.logger.Warn().Err(err).Str("subject", subject).Msg("publish relay message")
	}
}

// Close drains and closes the NATS connection.
func (r *Relay) Close() error {
	if r == nil || r.conn == nil {
		return nil
	}
	if err := r.conn.Drain(); err != nil {
		r.conn.Close()
		return err
	}
	return nil
}

// relayMessage is the wire format published to NATS subjects.
type relayMessage struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"`
}

func nodeID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return uuid.NewString()
	}
	return host + "-" + uuid.NewString()[:8]
}
