package kafka

// Topic definitions for Kafka event streaming
const (
	// Risk events
	TopicRiskScores = "tokenrisk.risk_scores"

	// Watch events
	TopicWhaleAlerts = "tokenrisk.whale_alerts"
	TopicPriceSurges = "tokenrisk.price_surges"
	TopicMintBirths  = "tokenrisk.mint_births"
)
