package constants

// Static route constants
const (
	APIV1Route            = "/api/v1"
	ProcessorWebhookRoute = "/api/internal/webhooks/processor"
	DocsRoute             = "/docs/v1"
	MetricsRoute          = "/metrics"
)
