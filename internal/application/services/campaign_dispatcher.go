package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/dapursambal/storefront/internal/domain/models"
	"github.com/dapursambal/storefront/internal/domain/ports"
	"github.com/dapursambal/storefront/internal/infrastructure/metrics"
	"github.com/dapursambal/storefront/internal/infrastructure/persistence"
	"github.com/dapursambal/storefront/pkg/constants"
	"github.com/dapursambal/storefront/pkg/errors"
	"github.com/dapursambal/storefront/pkg/expression"
	"github.com/dapursambal/storefront/pkg/utils"
)

// Run keys for campaigns that do not repeat per schedule tick
const (
	runKeyOnce = "once"
	runKeyDrip = "drip"
)

// CampaignDispatcher polls for due campaigns and sends them
type CampaignDispatcher struct {
	campaigns   *persistence.CampaignRepository
	subscribers *persistence.SubscriberRepository
	deliveries  *persistence.DeliveryRepository
	engine      *expression.Engine
	mailer      ports.Mailer
	siteURL     string
	interval    time.Duration
	now         func() time.Time

	stopChan chan struct{}
	done     chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
	stopped  bool
}

// NewCampaignDispatcher creates a new dispatcher
func NewCampaignDispatcher(db *sql.DB, engine *expression.Engine, mailer ports.Mailer, siteURL string, interval time.Duration) *CampaignDispatcher {
	return &CampaignDispatcher{
		campaigns:   persistence.NewCampaignRepository(db),
		subscribers: persistence.NewSubscriberRepository(db),
		deliveries:  persistence.NewDeliveryRepository(db),
		engine:      engine,
		mailer:      mailer,
		siteURL:     strings.TrimRight(siteURL, "/"),
		interval:    interval,
		now:         nowUTC,
		stopChan:    make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Start runs the poll loop until Stop is called
func (d *CampaignDispatcher) Start() {
	d.mu.Lock()
	if d.running || d.stopped {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()
	defer close(d.done)

	log.Println("⏰ Campaign dispatcher starting...")
	if n, err := d.campaigns.ResetRunning(context.Background()); err != nil {
		log.Printf("⚠️ Failed to reset stale campaign locks: %v", err)
	} else if n > 0 {
		log.Printf("🔄 Released %d stale campaign lock(s)", n)
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.runDue()

	for {
		select {
		case <-ticker.C:
			d.runDue()
		case <-d.stopChan:
			log.Println("⏰ Campaign dispatcher stopping...")
			d.wg.Wait()
			log.Println("⏰ Campaign dispatcher stopped")
			return
		}
	}
}

// Stop ends the poll loop and waits for in-flight runs. A dispatcher that
// was never started will not start afterwards.
func (d *CampaignDispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	wasRunning := d.running
	d.running = false
	d.stopped = true
	d.mu.Unlock()

	close(d.stopChan)
	if wasRunning {
		<-d.done
	}
}

func (d *CampaignDispatcher) runDue() {
	due, err := d.campaigns.ListDue(context.Background(), d.now())
	if err != nil {
		log.Printf("⚠️ Failed to list due campaigns: %v", err)
		return
	}
	for _, c := range due {
		d.wg.Add(1)
		go func(c *models.Campaign) {
			defer d.wg.Done()
			if _, err := d.Execute(context.Background(), c); err != nil && !errors.IsConflict(err) {
				log.Printf("❌ Campaign %s failed: %v", c.Name, err)
			}
		}(c)
	}
}

// Execute runs one campaign under its execution lock and records the outcome.
// It returns a ConflictError when another run holds the lock.
func (d *CampaignDispatcher) Execute(ctx context.Context, c *models.Campaign) (sent int, err error) {
	acquired, err := d.campaigns.AcquireExecutionLock(ctx, c.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to acquire lock for campaign %s: %w", c.ID, err)
	}
	if !acquired {
		log.Printf("⏭️ Campaign %s is running or no longer scheduled, skipping", c.Name)
		return 0, errors.NewConflictError("campaign", "status", "running or cancelled")
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("🔥 Panic in campaign %s: %v", c.Name, r)
			err = fmt.Errorf("campaign %s panicked: %v", c.ID, r)
			if c.Kind == models.CampaignBroadcast {
				_, _ = d.campaigns.SetRunStatus(context.Background(), c.ID, models.CampaignScheduled)
			}
		}
		if relErr := d.campaigns.ReleaseExecutionLock(context.Background(), c.ID); relErr != nil {
			log.Printf("⚠️ Failed to release execution lock for campaign %s: %v", c.ID, relErr)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, constants.CampaignMaxRuntime)
	defer cancel()

	startedAt := d.now()
	if c.Kind == models.CampaignBroadcast {
		changed, err := d.campaigns.SetRunStatus(ctx, c.ID, models.CampaignSending)
		if err != nil {
			return 0, err
		}
		if !changed {
			log.Printf("⏭️ Campaign %s was cancelled, skipping", c.Name)
			return 0, errors.NewConflictError("campaign", "status", models.CampaignCancelled)
		}
	}

	log.Printf("📤 Sending campaign %s (%s)", c.Name, c.Kind)
	sent, runErr := d.send(ctx, c, RunKey(c, startedAt), startedAt)
	if runErr != nil {
		log.Printf("❌ Campaign %s stopped after %d sends in %v: %v", c.Name, sent, time.Since(startedAt), runErr)
	} else {
		log.Printf("✅ Campaign %s sent %d email(s) in %v", c.Name, sent, time.Since(startedAt))
	}

	status, next := d.afterRun(c, startedAt, runErr)
	if err := d.campaigns.RecordRun(context.Background(), c.ID, status, startedAt, next, sent); err != nil {
		log.Printf("⚠️ Failed to record run for campaign %s: %v", c.ID, err)
	}
	return sent, runErr
}

// afterRun decides the campaign's status and next run once sending ends.
// A broadcast that did not finish stays scheduled so the next poll resumes it;
// deliveries already claimed for the run are not sent twice.
func (d *CampaignDispatcher) afterRun(c *models.Campaign, ranAt time.Time, runErr error) (string, *time.Time) {
	switch c.Kind {
	case models.CampaignBroadcast:
		if runErr != nil {
			return models.CampaignScheduled, &ranAt
		}
		return models.CampaignSent, nil
	case models.CampaignRecurring:
		next, err := NextRun(c, ranAt)
		if err != nil {
			log.Printf("⚠️ Campaign %s has no valid next run: %v", c.Name, err)
			return models.CampaignScheduled, nil
		}
		return models.CampaignScheduled, next
	}
	return models.CampaignScheduled, nil
}

// RunKey identifies one run of a campaign for delivery deduplication
func RunKey(c *models.Campaign, now time.Time) string {
	switch c.Kind {
	case models.CampaignRecurring:
		at := now
		if c.NextRunAt != nil {
			at = *c.NextRunAt
		}
		return at.UTC().Format("20060102T1504")
	case models.CampaignDrip:
		return runKeyDrip
	}
	return runKeyOnce
}

// Audience returns the active subscribers a run should reach
func (d *CampaignDispatcher) Audience(ctx context.Context, c *models.Campaign, now time.Time) ([]*models.Subscriber, error) {
	q := persistence.SubscriberQuery{Status: models.SubscriberActive}
	if c.Kind == models.CampaignDrip {
		from := c.CreatedDate
		to := now.Add(-time.Duration(c.DelayMinutes) * time.Minute)
		q.ConfirmedFrom = &from
		q.ConfirmedTo = &to
	}
	subscribers, err := d.subscribers.List(ctx, q)
	if err != nil {
		return nil, err
	}
	if c.Segment == "" {
		return subscribers, nil
	}

	matched := make([]*models.Subscriber, 0, len(subscribers))
	for _, sub := range subscribers {
		ok, err := d.engine.Match(c.Segment, sub.SegmentEnv(now))
		if err != nil {
			return nil, errors.NewValidationError("segment", err.Error())
		}
		if ok {
			matched = append(matched, sub)
		}
	}
	return matched, nil
}

func (d *CampaignDispatcher) send(ctx context.Context, c *models.Campaign, runKey string, now time.Time) (int, error) {
	compiled, err := compileCampaign(c)
	if err != nil {
		return 0, err
	}
	audience, err := d.Audience(ctx, c, now)
	if err != nil {
		return 0, err
	}
	delivered, err := d.deliveries.DeliveredSubscriberIDs(ctx, c.ID, runKey)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, sub := range audience {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if delivered[sub.ID] {
			continue
		}

		msg, err := compiled.message(sub, d.siteURL)
		if err != nil {
			log.Printf("⚠️ Campaign %s could not render for %s: %v", c.Name, sub.Email, err)
			metrics.CampaignSends.WithLabelValues(c.ID, models.DeliveryFailed).Inc()
			continue
		}

		delivery := &models.CampaignDelivery{
			ID:           utils.GenerateID(),
			CampaignID:   c.ID,
			SubscriberID: sub.ID,
			RunKey:       runKey,
			Email:        sub.Email,
			Status:       models.DeliverySent,
			SentAt:       d.now(),
		}
		claimed, err := d.deliveries.Claim(ctx, delivery)
		if err != nil {
			return sent, err
		}
		if !claimed {
			continue
		}

		if err := d.mailer.Send(ctx, msg); err != nil {
			log.Printf("⚠️ Campaign %s failed for %s: %v", c.Name, sub.Email, err)
			if markErr := d.deliveries.MarkFailed(ctx, delivery.ID, err.Error()); markErr != nil {
				log.Printf("⚠️ Failed to mark delivery %s failed: %v", delivery.ID, markErr)
			}
			metrics.CampaignSends.WithLabelValues(c.ID, models.DeliveryFailed).Inc()
			continue
		}
		metrics.CampaignSends.WithLabelValues(c.ID, models.DeliverySent).Inc()
		sent++
	}
	return sent, nil
}
