package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestPublishDeliversToSubscribers(t *testing.T) {
	b := NewWithConfig(2, 10)

	var mu sync.Mutex
	var got []string
	var wg sync.WaitGroup
	wg.Add(2)
	record := func(name string) Handler {
		return func(e Event) {
			defer wg.Done()
			mu.Lock()
			got = append(got, name+":"+e.Data["state"].(string))
			mu.Unlock()
		}
	}
	b.Subscribe(EventTypeSample, record("ledger"))
	b.Subscribe(EventTypeSample, record("mqtt"))
	b.Subscribe(EventTypeReading, func(Event) { t.Error("reading handler must not see sample events") })

	b.Publish(Event{Type: EventTypeSample, Data: map[string]interface{}{"state": "alarm"}})
	wg.Wait()
	b.Close(context.Background())

	if len(got) != 2 {
		t.Fatalf("expected 2 deliveries, got %v", got)
	}
}

func TestHandlerPanicDoesNotKillWorker(t *testing.T) {
	b := NewWithConfig(1, 10)

	done := make(chan struct{})
	calls := 0
	b.Subscribe(EventTypeSample, func(Event) {
		calls++
		if calls == 1 {
			panic("boom")
		}
		close(done)
	})

	b.Publish(Event{Type: EventTypeSample})
	b.Publish(Event{Type: EventTypeSample})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second event was not handled after a panic")
	}
	b.Close(context.Background())
}

func TestPublishAfterCloseIsDropped(t *testing.T) {
	b := NewWithConfig(1, 1)
	b.Subscribe(EventTypeSample, func(Event) { t.Error("handler ran after Close") })
	b.Close(context.Background())
	b.Close(context.Background())

	b.Publish(Event{Type: EventTypeSample})
}
