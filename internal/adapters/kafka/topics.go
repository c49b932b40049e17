package kafka

// Topic definitions for Kafka event streaming
const (
	// Engagement telemetry
	TopicEngagementSamples = "engagement.samples"

	// Pipeline events
	TopicScriptGenerated = "script.generated"
	TopicTrendRanked     = "trend.ranked"

	// Notifications
	TopicNotifications = "notifications.telegram"
)
