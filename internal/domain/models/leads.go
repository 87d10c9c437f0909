package models

import "time"

// Subscriber statuses
const (
	SubscriberPending      = "pending"
	SubscriberActive       = "active"
	SubscriberUnsubscribed = "unsubscribed"
)

// Subscriber sources
const (
	SourceFooter   = "footer"
	SourcePopup    = "popup"
	SourceCheckout = "checkout"
	SourceContact  = "contact"
)

// ValidSources lists the signup forms that may create a subscriber
var ValidSources = map[string]bool{
	SourceFooter:   true,
	SourcePopup:    true,
	SourceCheckout: true,
	SourceContact:  true,
}

// Subscriber is a newsletter address with double opt-in state
type Subscriber struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Name             string     `json:"name"`
	Source           string     `json:"source"`
	Status           string     `json:"status"`
	ConfirmToken     string     `json:"-"`
	UnsubscribeToken string     `json:"-"`
	SubscribedAt     time.Time  `json:"subscribed_at"`
	ConfirmedAt      *time.Time `json:"confirmed_at,omitempty"`
	UnsubscribedAt   *time.Time `json:"unsubscribed_at,omitempty"`
}

// DaysSubscribed counts whole days since signup
func (s *Subscriber) DaysSubscribed(now time.Time) int {
	if now.Before(s.SubscribedAt) {
		return 0
	}
	return int(now.Sub(s.SubscribedAt).Hours() / 24)
}

// SegmentEnv exposes the fields campaign segments may reference
func (s *Subscriber) SegmentEnv(now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"email":           s.Email,
		"name":            s.Name,
		"source":          s.Source,
		"days_subscribed": s.DaysSubscribed(now),
	}
}

// ContactMessage is a submission from the contact form
type ContactMessage struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone,omitempty"`
	Subject     string    `json:"subject"`
	Message     string    `json:"message"`
	IsRead      bool      `json:"is_read"`
	CreatedDate time.Time `json:"created_date"`
}
