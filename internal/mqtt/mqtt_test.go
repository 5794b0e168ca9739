package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dokzlo13/lampd/internal/classify"
)

func TestFormatPayload(t *testing.T) {
	jst := time.FixedZone("JST", 9*60*60)
	event := MinuteEvent{
		Timestamp: time.Date(2025, 8, 4, 8, 46, 0, 0, jst),
		State:     classify.AutoProcessing,
		Color:     classify.Green,
		Green:     512,
		Current:   0.25,
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Lamp.Timestamp != "2025-08-04T08:46:00+09:00" {
		t.Errorf("unexpected timestamp: %s", parsed.Lamp.Timestamp)
	}
	if parsed.Lamp.State != "auto_processing" || parsed.Lamp.Color != "green" {
		t.Errorf("unexpected state/color: %s/%s", parsed.Lamp.State, parsed.Lamp.Color)
	}
	if parsed.Lamp.Green != 512 || parsed.Lamp.Current != 0.25 {
		t.Errorf("unexpected readings: %+v", parsed.Lamp)
	}
}

func TestFormatSystemPayload(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Date(2025, 8, 4, 0, 0, 0, 0, time.UTC),
		Event:     "STARTUP",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != `{"system":{"timestamp":"2025-08-04T00:00:00Z","event":"STARTUP"}}` {
		t.Errorf("unexpected payload: %s", payload)
	}
	if SystemTopic(DefaultTopic) != "lampd/state/system" {
		t.Errorf("unexpected system topic: %s", SystemTopic(DefaultTopic))
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()
	var _ Publisher = f

	if err := f.Publish(MinuteEvent{State: classify.Alarm}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	f.PublishError = errors.New("broker down")
	if err := f.Publish(MinuteEvent{State: classify.Stopped}); err == nil {
		t.Error("expected PublishError")
	}

	got := f.Published()
	if len(got) != 1 || got[0].State != classify.Alarm {
		t.Errorf("unexpected events: %+v", got)
	}
	if len(f.Payloads) != 1 {
		t.Errorf("expected 1 payload, got %d", len(f.Payloads))
	}

	f.Close()
	if !f.Closed {
		t.Error("Close not recorded")
	}
}
