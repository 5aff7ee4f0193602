package events

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewEvent(t *testing.T) {
	e := NewEvent(AttemptStarted, 9, AttemptEventData{AttemptID: 1, PaperID: 2, UserID: 9, Status: "in_progress"})

	if e.ID == "" {
		t.Error("Event ID should not be empty")
	}
	if e.Source != Source {
		t.Errorf("Source = %q, want %q", e.Source, Source)
	}
	if e.Type != AttemptStarted || e.UserID != 9 {
		t.Errorf("unexpected event %+v", e)
	}
	if e.Timestamp.IsZero() || e.Timestamp.Location() != time.UTC {
		t.Errorf("Timestamp = %v, want UTC now", e.Timestamp)
	}
}

func TestGoChannelPublisher_DeliversJSON(t *testing.T) {
	logger := testLogger()
	publisher, pubSub := NewGoChannelPublisher("", logger)
	defer publisher.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	messages, err := pubSub.Subscribe(ctx, publisher.Topic())
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	score := 5.0
	event := NewEvent(AttemptCompleted, 3, AttemptEventData{AttemptID: 42, PaperID: 7, UserID: 3, Status: "completed", Score: &score})
	if err := publisher.Publish(ctx, event); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case msg := <-messages:
		msg.Ack()
		if msg.UUID != event.ID {
			t.Errorf("message UUID = %q, want %q", msg.UUID, event.ID)
		}
		if got := msg.Metadata.Get("event_type"); got != AttemptCompleted {
			t.Errorf("event_type metadata = %q", got)
		}

		var decoded struct {
			Type string           `json:"type"`
			Data AttemptEventData `json:"data"`
		}
		if err := json.Unmarshal(msg.Payload, &decoded); err != nil {
			t.Fatalf("payload is not JSON: %v", err)
		}
		if decoded.Type != AttemptCompleted || decoded.Data.AttemptID != 42 || *decoded.Data.Score != 5 {
			t.Errorf("decoded = %+v", decoded)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for message")
	}
}

func TestMockEventPublisher(t *testing.T) {
	m := NewMockEventPublisher(testLogger())
	ctx := context.Background()

	_ = m.Publish(ctx, NewEvent(AttemptStarted, 1, nil))
	_ = m.Publish(ctx, NewEvent(AttemptSubmitted, 1, nil))

	types := m.Types()
	if len(types) != 2 || types[0] != AttemptStarted || types[1] != AttemptSubmitted {
		t.Errorf("Types() = %v", types)
	}

	m.ClearEvents()
	if len(m.GetPublishedEvents()) != 0 {
		t.Error("ClearEvents() should drop recorded events")
	}
}
