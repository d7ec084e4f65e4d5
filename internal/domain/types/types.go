// Package types contains common types used across the application
package types

// Stats is a point-in-time summary of the running service.
type Stats struct {
	Started          bool    `json:"started"`
	QueueDepth       int     `json:"queue_depth"`
	QueueCapacity    int     `json:"queue_capacity"`
	IdempotencyKeys  int64   `json:"idempotency_keys"`
	HistoryLength    int     `json:"history_length"`
	CoupleActivities int     `json:"couple_activities_completed"`
	Partner1Streak   int     `json:"partner1_streak"`
	Partner2Streak   int     `json:"partner2_streak"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
	StoreDriver      string  `json:"store_driver"`
}

// HistoryEntry is one row of the public history listing.
type HistoryEntry struct {
	Timestamp      string `json:"timestamp"`
	Partner        string `json:"partner,omitempty"`
	PartnerName    string `json:"partner_name,omitempty"`
	Action         string `json:"action"`
	CoupleActivity bool   `json:"couple_activity"`
}
