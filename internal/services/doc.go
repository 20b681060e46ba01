// Package services implements the business logic behind the HTTP API, the
// CLI commands and the MCP tools.
//
// Services take their collaborators through constructors and log with an
// injected *slog.Logger:
//
//	DataService       loaded dataset status and summary reports
//	AnalyticsService  chart payloads from the analytics_data table
//	PipelineService   model training jobs with websocket progress
//	HealthService     health, readiness, liveness and version
//
// Services never write HTTP responses. They return sentinel or wrapped
// errors which the transport layer maps to problem details.
package services
