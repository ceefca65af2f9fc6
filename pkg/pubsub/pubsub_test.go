package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestRoomEventsChannel_RoundTrip(t *testing.T) {
	ch := RoomEventsChannel("abcDEF123456789")
	if ch != "rooms:abcDEF123456789:events" {
		t.Fatalf("unexpected channel %q", ch)
	}
	id, err := roomIDFromChannel(ch)
	if err != nil || id != "abcDEF123456789" {
		t.Fatalf("roomIDFromChannel = %q, %v", id, err)
	}
}

func TestRoomIDFromChannel_Invalid(t *testing.T) {
	for _, ch := range []string{"", "rooms::events", "room:x:events", "rooms:x:other", "rooms:x"} {
		t.Run(ch, func(t *testing.T) {
			if _, err := roomIDFromChannel(ch); err == nil {
				t.Fatalf("expected error for %q", ch)
			}
		})
	}
}

func TestNewEvent_Payload(t *testing.T) {
	evt, err := NewEvent(EventMemberLeft, "r1", MemberLeftPayload{RoomID: "r1", UserID: 9})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	var p MemberLeftPayload
	if err := json.Unmarshal(evt.Payload, &p); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if p.UserID != 9 || evt.Type != EventMemberLeft {
		t.Fatalf("unexpected event %+v payload %+v", evt, p)
	}
}

func TestNewPublisher_Drivers(t *testing.T) {
	p, err := NewPublisher(Config{Driver: "none"})
	if err != nil {
		t.Fatalf("none: %v", err)
	}
	if err := p.Publish(context.Background(), RoomEventsChannel("x"), &Event{}); err != nil {
		t.Fatalf("nop publish: %v", err)
	}
	if _, err := NewPublisher(Config{Driver: "carrier-pigeon"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestKafkaPublisher_UnreachableBroker(t *testing.T) {
	if testing.Short() {
		t.Skip("waits on kafka timeouts")
	}

	p, err := NewKafkaPublisher(KafkaConfig{
		Brokers:         "127.0.0.1:1",
		Topic:           "room-events-test",
		DeliveryTimeout: 300 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("topic bootstrap failure must not fail construction: %v", err)
	}
	defer p.Close()

	evt, err := NewEvent(EventRoomCreated, "abcdefghij12345", RoomCreatedPayload{RoomID: "abcdefghij12345"})
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Publish(context.Background(), RoomEventsChannel("abcdefghij12345"), evt); err == nil {
		t.Fatal("expected delivery to fail without a broker")
	}
	if err := p.Publish(context.Background(), "not-a-room-channel", evt); err == nil {
		t.Fatal("expected error for a malformed channel")
	}
}
