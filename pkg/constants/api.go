package constants

import "time"

// HTTP headers and context keys
const (
	HeaderAuthorization = "Authorization"
	HeaderIfNoneMatch   = "If-None-Match"
	HeaderStripeSig     = "Stripe-Signature"
	ContextKeyAdmin     = "admin"
	ContextKeyToken     = "token"
	ContextKeyVisitorID = "visitor_id"
	VisitorCookie       = "ds_vid"
)

// Response keys
const (
	ResponseError = "error"
	FieldMessage  = "message"
)

// Worker and limit defaults
const (
	OutboxPollInterval     = 500 * time.Millisecond
	OutboxBatchSize        = 100
	CampaignMaxRuntime     = 30 * time.Minute
	ReportRowLimit         = 1000
	SearchDefaultLimit     = 20
	SearchMaxLimit         = 50
	SearchMaxTerms         = 8
	DefaultCampaignTZ      = "Asia/Jakarta"
	MaxOrderItems          = 20
	MaxItemQuantity        = 50
	ContactMessageMinRunes = 10
	ContactMessageMaxRunes = 5000
)
