// Package worker provides async message processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/openwelfare/sahayak/internal/domain"
	"github.com/openwelfare/sahayak/internal/history"
	"github.com/openwelfare/sahayak/internal/registry"
	"github.com/openwelfare/sahayak/internal/rules"
)

// Worker processes eligibility check requests asynchronously from the EventBus.
type Worker struct {
	bus      domain.EventBus
	registry *registry.Registry
	checker  *rules.Checker
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
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, reg *registry.Registry, checker *rules.Checker, hist *history.Service) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		registry: reg,
		checker:  checker,
		history:  hist,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins processing check requests for the given tenants.
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
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicCheckRequested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts workers for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicCheckRequested, func(ctx context.Context, msg *domain.Message) error {
		return w.processCheck(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicCheckRequested,
	)

	return nil
}

// handleMessage handles messages from global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processCheck(ctx, msg.TenantID, msg)
}

// CheckMessage is the message payload for async eligibility checks.
type CheckMessage struct {
	TenantID string         `json:"tenantId"`
	TraceID  string         `json:"traceId,omitempty"`
	UserID   string         `json:"userId"`
	Profile  map[string]any `json:"profile"`
	// SchemeIDs restricts the check to the listed schemes (empty = all).
	SchemeIDs []string `json:"schemeIds,omitempty"`
}

// processCheck evaluates a user profile against the tenant's scheme registry.
func (w *Worker) processCheck(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var chkMsg CheckMessage
	if err := json.Unmarshal(msg.Payload, &chkMsg); err != nil {
		slog.Error("failed to parse check message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if chkMsg.TenantID != "" {
		tenantID = chkMsg.TenantID
	}

	traceID := chkMsg.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	slog.Debug("processing check request",
		"user_id", chkMsg.UserID,
		"tenant_id", tenantID,
		"trace_id", traceID,
	)

	// 1. Collect the scheme documents to check
	docs := w.selectDocs(tenantID, chkMsg.SchemeIDs)

	// 2. Evaluate the profile against every scheme
	resp := w.checker.Check(ctx, domain.Profile(chkMsg.Profile), docs)
	resp.UserID = chkMsg.UserID

	// 3. Persist the check record
	if w.history != nil {
		payload, err := json.Marshal(resp)
		if err != nil {
			slog.Error("failed to encode check response",
				"check_id", resp.CheckID,
				"error", err,
			)
		} else {
			rec := &domain.CheckRecord{
				ID:            resp.CheckID,
				TenantID:      tenantID,
				UserID:        chkMsg.UserID,
				Profile:       domain.Profile(chkMsg.Profile),
				EligibleCount: len(resp.Eligible),
				NearMissCount: len(resp.NearMisses),
				Response:      payload,
				CreatedAt:     resp.Timestamp,
			}
			if err := w.history.RecordCheck(ctx, tenantID, rec); err != nil {
				slog.Error("failed to save check record",
					"check_id", resp.CheckID,
					"error", err,
				)
			}
		}
	}

	// 4. Publish completed result
	resultPayload, _ := json.Marshal(resp)
	if err := w.bus.Publish(ctx, tenantID, domain.TopicCheckCompleted, resultPayload); err != nil {
		slog.Error("failed to publish check result",
			"check_id", resp.CheckID,
			"error", err,
		)
	}

	// 5. If there are near misses, publish them for outreach consumers
	if len(resp.NearMisses) > 0 {
		nmPayload, _ := json.Marshal(map[string]any{
			"checkId":    resp.CheckID,
			"userId":     chkMsg.UserID,
			"nearMisses": resp.NearMisses,
		})
		if err := w.bus.Publish(ctx, tenantID, domain.TopicNearMiss, nmPayload); err != nil {
			slog.Error("failed to publish near misses",
				"check_id", resp.CheckID,
				"error", err,
			)
		}
	}

	slog.Info("check processed",
		"check_id", resp.CheckID,
		"tenant_id", tenantID,
		"user_id", chkMsg.UserID,
		"schemes", resp.SchemesChecked,
		"eligible", len(resp.Eligible),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// selectDocs returns the tenant's registered documents, optionally filtered
// to an explicit scheme list. Unknown scheme ids are skipped silently.
func (w *Worker) selectDocs(tenantID string, schemeIDs []string) []*domain.SchemeDoc {
	if len(schemeIDs) == 0 {
		return w.registry.List(tenantID)
	}
	docs := make([]*domain.SchemeDoc, 0, len(schemeIDs))
	for _, id := range schemeIDs {
		doc, err := w.registry.Get(tenantID, id)
		if err != nil {
			continue
		}
		docs = append(docs, doc)
	}
	return docs
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
