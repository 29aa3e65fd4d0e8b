/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import (
	"testing"
	"time"
)

func TestPublishDeliversToSubscribers(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventTrackStarted)

	bus.Publish(EventTrackStarted, Payload{"track_id": "t1"})

	select {
	case payload := <-sub:
		if payload["track_id"] != "t1" {
			t.Errorf("payload = %v", payload)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestPublishIgnoresOtherEventTypes(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventTrackStarted)

	bus.Publish(EventTrackEnded, Payload{"track_id": "t1"})

	select {
	case payload := <-sub:
		t.Fatalf("unexpected delivery: %v", payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishDropsWhenSubscriberFull(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventHealth)

	// Fill the subscriber's channel past capacity; Publish must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			bus.Publish(EventHealth, Payload{"n": i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on full subscriber")
	}

	if got := len(sub); got != cap(sub) {
		t.Errorf("buffered events = %d, want channel capacity %d", got, cap(sub))
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventHealth)

	bus.Unsubscribe(EventHealth, sub)

	if _, open := <-sub; open {
		t.Error("channel still open after unsubscribe")
	}

	// Publishing after unsubscribe must not panic on the closed channel.
	bus.Publish(EventHealth, Payload{})
}
