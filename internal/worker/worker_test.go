package worker

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opensource-media/magpie/internal/bus"
	"github.com/opensource-media/magpie/internal/detector"
	"github.com/opensource-media/magpie/internal/domain"
)

const (
	workerRealText = "The city council approved the annual budget on Tuesday after a public hearing."
	workerFakeText = "SHOCKING!!! You won't believe this miracle cure doctors don't want you to know!!!"
)

func TestWorker(t *testing.T) {
	// Create channel bus
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	// Rule-based detector only; no classifier or custom rules
	det := detector.New(nil, nil, nil)

	worker := NewWorker(eventBus, nil, det, nil)

	t.Run("StartAndStop", func(t *testing.T) {
		cfg := Config{
			TenantIDs:   []string{"tenant-001"},
			WorkerCount: 1,
		}

		err := worker.Start(cfg)
		if err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		stats := worker.GetStats()
		if stats.SubscriptionCount != 1 {
			t.Errorf("expected 1 subscription, got %d", stats.SubscriptionCount)
		}

		err = worker.Stop()
		if err != nil {
			t.Errorf("Stop failed: %v", err)
		}

		stats = worker.GetStats()
		if stats.SubscriptionCount != 0 {
			t.Errorf("expected 0 subscriptions after stop, got %d", stats.SubscriptionCount)
		}
	})

	t.Run("ProcessText", func(t *testing.T) {
		// Create fresh worker for this test
		w := NewWorker(eventBus, nil, det, nil)

		cfg := Config{
			TenantIDs: []string{"tenant-test"},
		}
		w.Start(cfg)
		defer w.Stop()

		// Track verdict results
		var verdictReceived atomic.Bool
		var verdictPayload []byte

		eventBus.Subscribe(context.Background(), "tenant-test", domain.TopicVerdict, func(ctx context.Context, msg *domain.Message) error {
			verdictPayload = msg.Payload
			verdictReceived.Store(true)
			return nil
		})

		// Allow subscriptions to be active
		time.Sleep(50 * time.Millisecond)

		textMsg := TextMessage{
			TextID:   "text-001",
			TenantID: "tenant-test",
			TraceID:  "trace-001",
			Text:     workerRealText,
		}

		payload, _ := json.Marshal(textMsg)
		err := eventBus.Publish(context.Background(), "tenant-test", domain.TopicTextIngested, payload)
		if err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		// Wait for processing
		time.Sleep(100 * time.Millisecond)

		if !verdictReceived.Load() {
			t.Fatal("expected verdict to be published")
		}

		var event verdictEvent
		if err := json.Unmarshal(verdictPayload, &event); err != nil {
			t.Fatalf("failed to parse verdict event: %v", err)
		}

		if event.TextID != "text-001" {
			t.Errorf("expected textID 'text-001', got '%s'", event.TextID)
		}
		if event.TenantID != "tenant-test" {
			t.Errorf("expected tenantID 'tenant-test', got '%s'", event.TenantID)
		}
		if event.TraceID != "trace-001" {
			t.Errorf("expected traceID 'trace-001', got '%s'", event.TraceID)
		}
		if event.Verdict.Label != domain.LabelReal {
			t.Errorf("expected label REAL, got '%s'", event.Verdict.Label)
		}
		if event.AnalysisID == "" {
			t.Error("expected analysisID to be set")
		}
	})

	t.Run("AlertPublishedForFake", func(t *testing.T) {
		w := NewWorker(eventBus, nil, det, nil)

		cfg := Config{
			TenantIDs: []string{"tenant-alert"},
		}
		w.Start(cfg)
		defer w.Stop()

		// Track alerts
		var alertReceived atomic.Bool

		eventBus.Subscribe(context.Background(), "tenant-alert", domain.TopicAlert, func(ctx context.Context, msg *domain.Message) error {
			alertReceived.Store(true)
			return nil
		})

		time.Sleep(50 * time.Millisecond)

		textMsg := TextMessage{
			TextID:   "text-alert",
			TenantID: "tenant-alert",
			Text:     workerFakeText,
		}

		payload, _ := json.Marshal(textMsg)
		eventBus.Publish(context.Background(), "tenant-alert", domain.TopicTextIngested, payload)

		time.Sleep(100 * time.Millisecond)

		if !alertReceived.Load() {
			t.Error("expected alert to be published for FAKE verdict")
		}
	})

	t.Run("NoAlertForReal", func(t *testing.T) {
		w := NewWorker(eventBus, nil, det, nil)

		cfg := Config{
			TenantIDs: []string{"tenant-quiet"},
		}
		w.Start(cfg)
		defer w.Stop()

		var alertReceived atomic.Bool

		eventBus.Subscribe(context.Background(), "tenant-quiet", domain.TopicAlert, func(ctx context.Context, msg *domain.Message) error {
			alertReceived.Store(true)
			return nil
		})

		time.Sleep(50 * time.Millisecond)

		textMsg := TextMessage{
			TextID:   "text-quiet",
			TenantID: "tenant-quiet",
			Text:     workerRealText,
		}

		payload, _ := json.Marshal(textMsg)
		eventBus.Publish(context.Background(), "tenant-quiet", domain.TopicTextIngested, payload)

		time.Sleep(100 * time.Millisecond)

		if alertReceived.Load() {
			t.Error("expected no alert for REAL verdict")
		}
	})

	t.Run("MultiTenant", func(t *testing.T) {
		w := NewWorker(eventBus, nil, det, nil)

		cfg := Config{
			TenantIDs: []string{"tenant-a", "tenant-b"},
		}
		w.Start(cfg)
		defer w.Stop()

		stats := w.GetStats()
		if stats.SubscriptionCount != 2 {
			t.Errorf("expected 2 subscriptions for 2 tenants, got %d", stats.SubscriptionCount)
		}
	})
}

func TestTextMessageParsing(t *testing.T) {
	msg := TextMessage{
		TextID:   "text-123",
		TenantID: "tenant-001",
		TraceID:  "trace-456",
		Text:     "Breaking news about the local election.",
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var parsed TextMessage
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if parsed.TextID != msg.TextID {
		t.Errorf("expected TextID '%s', got '%s'", msg.TextID, parsed.TextID)
	}
	if parsed.Text != msg.Text {
		t.Errorf("expected Text '%s', got '%s'", msg.Text, parsed.Text)
	}
}
