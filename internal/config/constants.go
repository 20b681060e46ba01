package config

import "time"

// Application constants
const (
	// Application Info
	AppName    = "Daily Analytics"
	AppVersion = "1.0.0"

	// Rate Limiting
	DefaultRateLimitRPS = 100
	DefaultBurstSize    = 50

	// Network Timeouts
	DefaultHTTPTimeout  = 30 * time.Second
	WebSocketPingPeriod = 30 * time.Second
	WebSocketPongWait   = 60 * time.Second

	// File Paths (relative to the base directory)
	DefaultDataDir    = "data"
	DefaultModelsDir  = "data/models"
	DefaultReportsDir = "data/reports"
	DefaultLogsDir    = "logs"
	DefaultDataFile   = "data/analytics.csv"

	// Operation Timeouts
	DefaultJobTimeout = 30 * time.Minute

	// Regression pipeline defaults
	DefaultNEstimators  = 100
	DefaultRandomState  = 42
	DefaultTestSize     = 0.2
	DefaultTargetColumn = "target"

	// Stream client reconnect policy
	StreamMaxReconnectAttempts = 5
	StreamReconnectDelay       = 1 * time.Second
)

// API endpoints
const (
	APIBasePath       = "/api"
	DataEndpoint      = "/api/data"
	AnalyticsEndpoint = "/api/analytics"
	HealthEndpoint    = "/api/health"
	MetricsEndpoint   = "/metrics"
	WebSocketEndpoint = "/ws"
)
