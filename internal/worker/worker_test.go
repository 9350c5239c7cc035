package worker

import (
	"context"
	"encoding/json"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openwelfare/sahayak/internal/bus"
	"github.com/openwelfare/sahayak/internal/domain"
	"github.com/openwelfare/sahayak/internal/history"
	"github.com/openwelfare/sahayak/internal/registry"
	"github.com/openwelfare/sahayak/internal/repository"
	"github.com/openwelfare/sahayak/internal/rules"
)

func testRegistry(t *testing.T, tenantID string) *registry.Registry {
	t.Helper()
	reg := registry.New(nil)

	docs := []*domain.SchemeDoc{
		{
			SchemeID: "farmer-aid",
			Rule: domain.SchemeRule{
				SchemeID:   "farmer-aid",
				SchemeName: "Farmer Aid",
				Eligibility: domain.Criteria{
					All: []domain.Condition{
						{Attribute: "age", Op: domain.OpGte, Value: 18},
						{Attribute: "is_farmer", Op: domain.OpTruthy},
					},
				},
			},
		},
		{
			SchemeID: "senior-pension",
			Rule: domain.SchemeRule{
				SchemeID:   "senior-pension",
				SchemeName: "Senior Pension",
				Eligibility: domain.Criteria{
					All: []domain.Condition{
						{Attribute: "age", Op: domain.OpGte, Value: 60},
					},
				},
			},
		},
	}
	for _, doc := range docs {
		if err := reg.Register(tenantID, doc); err != nil {
			t.Fatalf("failed to register scheme: %v", err)
		}
	}
	return reg
}

func TestWorker(t *testing.T) {
	// Create channel bus
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	checker := rules.NewChecker(domain.CheckConfig{NearMissThreshold: 2, MaxWorkers: 4}, nil)

	t.Run("StartAndStop", func(t *testing.T) {
		reg := testRegistry(t, "tenant-001")
		worker := NewWorker(eventBus, reg, checker, nil)

		cfg := Config{
			TenantIDs: []string{"tenant-001"},
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

	t.Run("ProcessCheck", func(t *testing.T) {
		reg := testRegistry(t, "tenant-test")
		w := NewWorker(eventBus, reg, checker, nil)

		cfg := Config{
			TenantIDs: []string{"tenant-test"},
		}
		w.Start(cfg)
		defer w.Stop()

		// Track completed results
		var resultReceived atomic.Bool
		var resultPayload []byte

		eventBus.Subscribe(context.Background(), "tenant-test", domain.TopicCheckCompleted, func(ctx context.Context, msg *domain.Message) error {
			resultPayload = msg.Payload
			resultReceived.Store(true)
			return nil
		})

		// Allow subscriptions to be active
		time.Sleep(50 * time.Millisecond)

		// Publish a check request
		chkMsg := CheckMessage{
			TenantID: "tenant-test",
			TraceID:  "trace-001",
			UserID:   "user-001",
			Profile: map[string]any{
				"age":       35,
				"is_farmer": true,
			},
		}

		payload, _ := json.Marshal(chkMsg)
		err := eventBus.Publish(context.Background(), "tenant-test", domain.TopicCheckRequested, payload)
		if err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		// Wait for processing
		time.Sleep(100 * time.Millisecond)

		if !resultReceived.Load() {
			t.Fatal("expected check result to be published")
		}

		var resp domain.CheckResponse
		if err := json.Unmarshal(resultPayload, &resp); err != nil {
			t.Fatalf("failed to parse check result: %v", err)
		}

		if resp.UserID != "user-001" {
			t.Errorf("expected userID 'user-001', got '%s'", resp.UserID)
		}
		if resp.SchemesChecked != 2 {
			t.Errorf("expected 2 schemes checked, got %d", resp.SchemesChecked)
		}
		if len(resp.Eligible) != 1 || resp.Eligible[0].SchemeID != "farmer-aid" {
			t.Errorf("expected eligibility for farmer-aid only, got %+v", resp.Eligible)
		}
	})

	t.Run("NearMissPublished", func(t *testing.T) {
		reg := testRegistry(t, "tenant-nm")
		w := NewWorker(eventBus, reg, checker, nil)

		cfg := Config{
			TenantIDs: []string{"tenant-nm"},
		}
		w.Start(cfg)
		defer w.Stop()

		var nearMissReceived atomic.Bool

		eventBus.Subscribe(context.Background(), "tenant-nm", domain.TopicNearMiss, func(ctx context.Context, msg *domain.Message) error {
			nearMissReceived.Store(true)
			return nil
		})

		time.Sleep(50 * time.Millisecond)

		// 55 fails only the senior-pension age condition: a near miss
		chkMsg := CheckMessage{
			TenantID: "tenant-nm",
			UserID:   "user-002",
			Profile: map[string]any{
				"age":       55,
				"is_farmer": true,
			},
		}

		payload, _ := json.Marshal(chkMsg)
		eventBus.Publish(context.Background(), "tenant-nm", domain.TopicCheckRequested, payload)

		time.Sleep(100 * time.Millisecond)

		if !nearMissReceived.Load() {
			t.Error("expected near misses to be published")
		}
	})

	t.Run("PersistsCheckRecord", func(t *testing.T) {
		tmpFile, err := os.CreateTemp("", "worker-test-*.db")
		if err != nil {
			t.Fatalf("failed to create temp file: %v", err)
		}
		tmpPath := tmpFile.Name()
		tmpFile.Close()
		defer os.Remove(tmpPath)

		repo, err := repository.New(domain.RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: tmpPath,
		})
		if err != nil {
			t.Fatalf("failed to create repository: %v", err)
		}
		defer repo.Close()

		hist := history.NewService(repo, nil)

		reg := testRegistry(t, "tenant-persist")
		w := NewWorker(eventBus, reg, checker, hist)

		cfg := Config{
			TenantIDs: []string{"tenant-persist"},
		}
		w.Start(cfg)
		defer w.Stop()

		time.Sleep(50 * time.Millisecond)

		chkMsg := CheckMessage{
			TenantID: "tenant-persist",
			UserID:   "user-003",
			Profile:  map[string]any{"age": 65},
		}
		payload, _ := json.Marshal(chkMsg)
		eventBus.Publish(context.Background(), "tenant-persist", domain.TopicCheckRequested, payload)

		time.Sleep(150 * time.Millisecond)

		recs, err := hist.GetUserHistory(context.Background(), "tenant-persist", "user-003", 3600)
		if err != nil {
			t.Fatalf("failed to fetch history: %v", err)
		}
		if len(recs) != 1 {
			t.Fatalf("expected 1 persisted check record, got %d", len(recs))
		}
		if recs[0].EligibleCount != 1 {
			t.Errorf("expected eligible count 1 (senior-pension), got %d", recs[0].EligibleCount)
		}
	})

	t.Run("SchemeFilter", func(t *testing.T) {
		reg := testRegistry(t, "tenant-filter")
		w := NewWorker(eventBus, reg, checker, nil)

		cfg := Config{
			TenantIDs: []string{"tenant-filter"},
		}
		w.Start(cfg)
		defer w.Stop()

		var resultPayload []byte
		var resultReceived atomic.Bool
		eventBus.Subscribe(context.Background(), "tenant-filter", domain.TopicCheckCompleted, func(ctx context.Context, msg *domain.Message) error {
			resultPayload = msg.Payload
			resultReceived.Store(true)
			return nil
		})

		time.Sleep(50 * time.Millisecond)

		chkMsg := CheckMessage{
			TenantID:  "tenant-filter",
			UserID:    "user-004",
			Profile:   map[string]any{"age": 70},
			SchemeIDs: []string{"senior-pension", "does-not-exist"},
		}
		payload, _ := json.Marshal(chkMsg)
		eventBus.Publish(context.Background(), "tenant-filter", domain.TopicCheckRequested, payload)

		time.Sleep(100 * time.Millisecond)

		if !resultReceived.Load() {
			t.Fatal("expected check result to be published")
		}
		var resp domain.CheckResponse
		if err := json.Unmarshal(resultPayload, &resp); err != nil {
			t.Fatalf("failed to parse check result: %v", err)
		}
		if resp.SchemesChecked != 1 {
			t.Errorf("expected 1 scheme checked with filter, got %d", resp.SchemesChecked)
		}
	})

	t.Run("MultiTenant", func(t *testing.T) {
		reg := testRegistry(t, "tenant-a")
		w := NewWorker(eventBus, reg, checker, nil)

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

func TestCheckMessageParsing(t *testing.T) {
	msg := CheckMessage{
		TenantID:  "tenant-001",
		TraceID:   "trace-456",
		UserID:    "user-123",
		Profile:   map[string]any{"age": 30.0, "caste": "SC"},
		SchemeIDs: []string{"pm-kisan"},
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var parsed CheckMessage
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if parsed.UserID != msg.UserID {
		t.Errorf("expected UserID '%s', got '%s'", msg.UserID, parsed.UserID)
	}
	if parsed.Profile["age"] != 30.0 {
		t.Errorf("expected age 30, got %v", parsed.Profile["age"])
	}
	if len(parsed.SchemeIDs) != 1 || parsed.SchemeIDs[0] != "pm-kisan" {
		t.Errorf("expected scheme filter preserved, got %v", parsed.SchemeIDs)
	}
}
