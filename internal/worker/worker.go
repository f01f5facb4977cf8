// Package worker provides async text processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-media/magpie/internal/detector"
	"github.com/opensource-media/magpie/internal/domain"
	"github.com/opensource-media/magpie/internal/history"
)

// Worker analyzes texts asynchronously from the EventBus.
type Worker struct {
	bus      domain.EventBus
	repo     domain.Repository
	detector *detector.Detector
	history  *history.Service

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all via wildcard if supported)
	TenantIDs []string

	// WorkerCount is the number of concurrent workers per tenant
	WorkerCount int
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, det *detector.Detector, hist *history.Service) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		repo:     repo,
		detector: det,
		history:  hist,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins processing messages for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	// Subscribe using a special "global" tenant ID
	// In production, you'd want to subscribe with wildcards or JetStream
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicTextIngested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts workers for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicTextIngested, func(ctx context.Context, msg *domain.Message) error {
		return w.processText(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicTextIngested,
	)

	return nil
}

// handleMessage handles messages from global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processText(ctx, msg.TenantID, msg)
}

// TextMessage is the message payload for async text analysis.
type TextMessage struct {
	TextID   string `json:"textId"`
	TenantID string `json:"tenantId"`
	TraceID  string `json:"traceId"`
	Text     string `json:"text"`
}

// verdictEvent is the payload published after a text is analyzed.
type verdictEvent struct {
	AnalysisID string         `json:"analysisId"`
	TextID     string         `json:"textId"`
	TenantID   string         `json:"tenantId"`
	TraceID    string         `json:"traceId"`
	Verdict    domain.Verdict `json:"verdict"`
}

// processText analyzes a text through the detector pipeline.
func (w *Worker) processText(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var textMsg TextMessage
	if err := json.Unmarshal(msg.Payload, &textMsg); err != nil {
		slog.Error("failed to parse text message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if textMsg.TenantID != "" {
		tenantID = textMsg.TenantID
	}

	traceID := textMsg.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	slog.Debug("processing text",
		"text_id", textMsg.TextID,
		"tenant_id", tenantID,
		"trace_id", traceID,
	)

	verdict := w.detector.Predict(ctx, tenantID, textMsg.Text)

	analysis := &domain.Analysis{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Text:      textMsg.Text,
		TextHash:  detector.HashText(textMsg.Text),
		Verdict:   *verdict,
		CreatedAt: time.Now().UTC(),
	}

	if w.repo != nil {
		if err := w.repo.SaveAnalysis(ctx, tenantID, analysis); err != nil {
			slog.Error("failed to save analysis",
				"text_id", textMsg.TextID,
				"error", err,
			)
		}
	}

	if w.history != nil {
		if err := w.history.Record(ctx, tenantID, verdict); err != nil {
			slog.Warn("failed to record analysis counters",
				"text_id", textMsg.TextID,
				"error", err,
			)
		}
	}

	event := verdictEvent{
		AnalysisID: analysis.ID,
		TextID:     textMsg.TextID,
		TenantID:   tenantID,
		TraceID:    traceID,
		Verdict:    *verdict,
	}
	payload, _ := json.Marshal(event)

	if err := w.bus.Publish(ctx, tenantID, domain.TopicVerdict, payload); err != nil {
		slog.Error("failed to publish verdict",
			"text_id", textMsg.TextID,
			"error", err,
		)
	}

	if verdict.Label == domain.LabelFake {
		if err := w.bus.Publish(ctx, tenantID, domain.TopicAlert, payload); err != nil {
			slog.Error("failed to publish alert",
				"text_id", textMsg.TextID,
				"error", err,
			)
		}
	}

	slog.Info("text processed",
		"text_id", textMsg.TextID,
		"tenant_id", tenantID,
		"label", verdict.Label,
		"fake_score", verdict.FakeScore,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
