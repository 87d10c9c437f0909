package constants

// Table names
const (
	TableProduct              = "products"
	TableBlogPost             = "blog_posts"
	TableSubscriber           = "subscribers"
	TableContactMessage       = "contact_messages"
	TableOrder                = "orders"
	TableOrderItem            = "order_items"
	TableCampaign             = "campaigns"
	TableCampaignDelivery     = "campaign_deliveries"
	TableExperiment           = "experiments"
	TableExperimentAssignment = "experiment_assignments"
	TableAdminUser            = "admin_users"
	TableSession              = "admin_sessions"
	TableOutboxEvent          = "outbox_events"
)

// reportableTables may appear in admin report queries. Credentials,
// sessions and raw contact messages are never reportable.
var reportableTables = map[string]bool{
	TableProduct:              true,
	TableOrder:                true,
	TableOrderItem:            true,
	TableSubscriber:           true,
	TableCampaignDelivery:     true,
	TableExperimentAssignment: true,
}

// IsReportableTable reports whether an admin report may read the table
func IsReportableTable(tableName string) bool {
	return reportableTables[tableName]
}

// ReportableTables lists the tables admin reports may read
func ReportableTables() []string {
	return []string{
		TableProduct,
		TableOrder,
		TableOrderItem,
		TableSubscriber,
		TableCampaignDelivery,
		TableExperimentAssignment,
	}
}
