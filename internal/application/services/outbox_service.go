package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dapursambal/storefront/internal/domain/events"
	"github.com/dapursambal/storefront/internal/infrastructure/metrics"
	"github.com/dapursambal/storefront/internal/infrastructure/persistence"
	"github.com/dapursambal/storefront/pkg/constants"
)

// MaxRetryAttempts is how many times an event is published before it is parked as failed
const MaxRetryAttempts = 5

// OutboxService stores events in the same transaction as the change that
// raised them and publishes them from a background worker.
type OutboxService struct {
	db       *sql.DB
	repo     *persistence.OutboxRepository
	eventBus *EventBus

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewOutboxService creates a new OutboxService
func NewOutboxService(db *sql.DB, eventBus *EventBus) *OutboxService {
	return &OutboxService{
		db:       db,
		repo:     persistence.NewOutboxRepository(db),
		eventBus: eventBus,
		stopCh:   make(chan struct{}),
	}
}

// Enqueue stores an event using exec, normally the caller's open transaction
func (os *OutboxService) Enqueue(ctx context.Context, exec persistence.Executor, eventType events.EventType, payload events.Payload) error {
	if exec == nil {
		exec = os.db
	}
	id, err := os.repo.Enqueue(ctx, exec, eventType.String(), payload)
	if err != nil {
		return err
	}
	log.Printf("✅ [Outbox] Enqueued event %s (ID: %s)", eventType, id)
	return nil
}

// StartWorker polls for pending events every interval until StopWorker is called
func (os *OutboxService) StartWorker(interval time.Duration) {
	if interval <= 0 {
		interval = constants.OutboxPollInterval
	}
	os.wg.Add(1)
	go func() {
		defer os.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log.Printf("📤 Outbox worker started with %v interval", interval)

		for {
			select {
			case <-os.stopCh:
				log.Printf("📤 Outbox worker stopping...")
				return
			case <-ticker.C:
				if err := os.ProcessOutbox(context.Background()); err != nil {
					log.Printf("⚠️ Outbox worker error: %v", err)
				}
			}
		}
	}()
}

// StopWorker stops the background worker gracefully
func (os *OutboxService) StopWorker() {
	os.stopOnce.Do(func() {
		close(os.stopCh)
	})
	os.wg.Wait()
	log.Printf("📤 Outbox worker stopped")
}

// ProcessOutbox publishes one batch of pending events
func (os *OutboxService) ProcessOutbox(ctx context.Context) error {
	pending, err := os.repo.GetPendingEvents(ctx, constants.OutboxBatchSize)
	if err != nil {
		return err
	}

	if len(pending) > 0 {
		log.Printf("🔄 [Outbox] Processing %d pending events", len(pending))
	}

	for _, e := range pending {
		if err := os.processEventAtomic(ctx, e); err != nil {
			log.Printf("⚠️ Failed to process outbox event %s: %v", e.ID, err)
		}
	}
	return nil
}

// processEventAtomic claims an event, publishes it, and records the result in one transaction
func (os *OutboxService) processEventAtomic(ctx context.Context, e persistence.OutboxEvent) error {
	tx, err := os.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	claimedID, err := os.repo.ClaimEvent(ctx, tx, e.ID)
	if err != nil {
		return fmt.Errorf("failed to claim event: %w", err)
	}
	if claimedID == "" {
		return nil
	}

	var payload events.Payload
	if err := json.Unmarshal([]byte(e.Payload), &payload); err != nil {
		log.Printf("❌ [Outbox] Event %s failed payload unmarshal: %v", e.ID, err)
		if markErr := os.repo.MarkFailed(ctx, tx, e.ID, fmt.Sprintf("invalid payload: %v", err)); markErr != nil {
			return fmt.Errorf("failed to mark event as failed: %w", markErr)
		}
		metrics.OutboxEvents.WithLabelValues(e.EventType, "failed").Inc()
		return tx.Commit()
	}

	if err := os.eventBus.Publish(ctx, events.EventType(e.EventType), payload); err != nil {
		newRetryCount := e.RetryCount + 1
		if newRetryCount >= MaxRetryAttempts {
			if markErr := os.repo.MarkFailed(ctx, tx, e.ID, fmt.Sprintf("max retries exceeded: %v", err)); markErr != nil {
				return fmt.Errorf("failed to mark event as failed: %w", markErr)
			}
			log.Printf("❌ [Outbox] Event %s (%s) failed permanently: %v", e.ID, e.EventType, err)
			metrics.OutboxEvents.WithLabelValues(e.EventType, "failed").Inc()
			return tx.Commit()
		}

		if updateErr := os.repo.IncrementRetry(ctx, tx, e.ID, newRetryCount, err.Error()); updateErr != nil {
			return fmt.Errorf("failed to update retry count: %w", updateErr)
		}
		log.Printf("⚠️ [Outbox] Event %s failed (Attempt %d/%d). Error: %v", e.ID, newRetryCount, MaxRetryAttempts, err)
		metrics.OutboxEvents.WithLabelValues(e.EventType, "retry").Inc()
		return tx.Commit()
	}

	if err := os.repo.MarkProcessed(ctx, tx, e.ID); err != nil {
		return fmt.Errorf("failed to mark as processed: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	metrics.OutboxEvents.WithLabelValues(e.EventType, "processed").Inc()
	log.Printf("✅ [Outbox] Successfully processed event %s (Type: %s)", e.ID, e.EventType)
	return nil
}

// CleanupProcessed removes processed events older than olderThan
func (os *OutboxService) CleanupProcessed(ctx context.Context, olderThan time.Duration) (int64, error) {
	return os.repo.CleanupProcessed(ctx, time.Now().UTC().Add(-olderThan))
}

// Stats returns outbox counts by status
func (os *OutboxService) Stats(ctx context.Context) (map[string]int, error) {
	return os.repo.CountByStatus(ctx)
}
