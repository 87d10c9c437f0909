package models

import "time"

// Campaign statuses
const (
	CampaignDraft     = "draft"
	CampaignScheduled = "scheduled"
	CampaignSending   = "sending"
	CampaignSent      = "sent"
	CampaignCancelled = "cancelled"
)

// Campaign kinds
const (
	CampaignBroadcast = "broadcast"
	CampaignRecurring = "recurring"
	CampaignDrip      = "drip"
)

// Campaign is an email send: one-off, cron-scheduled, or a drip after confirmation
type Campaign struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Subject          string     `json:"subject"`
	BodyTemplate     string     `json:"body_template"`
	Segment          string     `json:"segment,omitempty"`
	Status           string     `json:"status"`
	Kind             string     `json:"kind"`
	SendAt           *time.Time `json:"send_at,omitempty"`
	CronSchedule     string     `json:"cron_schedule,omitempty"`
	Timezone         string     `json:"timezone"`
	DelayMinutes     int        `json:"delay_minutes,omitempty"`
	NextRunAt        *time.Time `json:"next_run_at,omitempty"`
	LastRunAt        *time.Time `json:"last_run_at,omitempty"`
	IsRunning        bool       `json:"is_running"`
	SentCount        int        `json:"sent_count"`
	CreatedDate      time.Time  `json:"created_date"`
	LastModifiedDate time.Time  `json:"last_modified_date"`
}

// Delivery statuses
const (
	DeliverySent   = "sent"
	DeliveryFailed = "failed"
)

// CampaignDelivery records one send of a campaign run to one subscriber
type CampaignDelivery struct {
	ID           string    `json:"id"`
	CampaignID   string    `json:"campaign_id"`
	SubscriberID string    `json:"subscriber_id"`
	RunKey       string    `json:"run_key"`
	Email        string    `json:"email"`
	Status       string    `json:"status"`
	Error        string    `json:"error,omitempty"`
	SentAt       time.Time `json:"sent_at"`
}

// Experiment statuses
const (
	ExperimentDraft   = "draft"
	ExperimentRunning = "running"
	ExperimentStopped = "stopped"
)

// Variant is one arm of an A/B test
type Variant struct {
	Key     string                 `json:"key"`
	Weight  int                    `json:"weight"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Experiment is an A/B test. The first variant is the control.
type Experiment struct {
	ID               string    `json:"id"`
	Key              string    `json:"key"`
	Name             string    `json:"name"`
	Status           string    `json:"status"`
	Targeting        string    `json:"targeting,omitempty"`
	Variants         []Variant `json:"variants"`
	CreatedDate      time.Time `json:"created_date"`
	LastModifiedDate time.Time `json:"last_modified_date"`
}

// Control returns the first variant
func (e *Experiment) Control() Variant {
	if len(e.Variants) == 0 {
		return Variant{}
	}
	return e.Variants[0]
}

// Variant looks a variant up by key
func (e *Experiment) Variant(key string) (Variant, bool) {
	for _, v := range e.Variants {
		if v.Key == key {
			return v, true
		}
	}
	return Variant{}, false
}

// ExperimentAssignment pins a visitor to a variant
type ExperimentAssignment struct {
	ID           string     `json:"id"`
	ExperimentID string     `json:"experiment_id"`
	VisitorID    string     `json:"visitor_id"`
	VariantKey   string     `json:"variant_key"`
	AssignedAt   time.Time  `json:"assigned_at"`
	ConvertedAt  *time.Time `json:"converted_at,omitempty"`
}
