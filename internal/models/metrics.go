package models

import "time"

// AgentMetrics is a point-in-time summary of the agent's own counters.
type AgentMetrics struct {
	AttemptsSucceeded        uint64    `json:"attemptsSucceeded"`
	AttemptsFailed           uint64    `json:"attemptsFailed"`
	CacheHitRatio            float64   `json:"cacheHitRatio"`
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}
