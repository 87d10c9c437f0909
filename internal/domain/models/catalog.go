package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a sellable jar of sambal
type Product struct {
	ID               string          `json:"id"`
	Slug             string          `json:"slug"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	Category         string          `json:"category"`
	HeatLevel        int             `json:"heat_level"`
	Price            decimal.Decimal `json:"price"`
	WeightGrams      int             `json:"weight_grams"`
	Stock            int             `json:"stock"`
	IsActive         bool            `json:"is_active"`
	IsPreorder       bool            `json:"is_preorder"`
	ImageURL         string          `json:"image_url"`
	CreatedDate      time.Time       `json:"created_date"`
	LastModifiedDate time.Time       `json:"last_modified_date"`
}

// BlogPost is a markdown article. A nil PublishedAt means draft.
type BlogPost struct {
	ID               string     `json:"id"`
	Slug             string     `json:"slug"`
	Title            string     `json:"title"`
	Excerpt          string     `json:"excerpt"`
	BodyMarkdown     string     `json:"body_markdown,omitempty"`
	BodyHTML         string     `json:"body_html,omitempty"`
	Tags             []string   `json:"tags"`
	PublishedAt      *time.Time `json:"published_at,omitempty"`
	CreatedDate      time.Time  `json:"created_date"`
	LastModifiedDate time.Time  `json:"last_modified_date"`
}

// IsPublished reports whether the post is visible at now
func (p *BlogPost) IsPublished(now time.Time) bool {
	return p.PublishedAt != nil && !p.PublishedAt.After(now)
}
