// Package http implements the JSON API handlers. Handlers decode and
// validate requests, call the service layer and render either a JSON body or
// an RFC 7807 problem.
//
// Routes (mounted under /api by the app package):
//
//	GET    /data                   dataset status report
//	GET    /data/analytics-report  advanced processor report
//	POST   /data/reload            reload the configured data file
//	GET    /analytics              chart payload for the dashboard
//	GET    /metrics/recent         analytics_data rows of the last seven days
//	POST   /metrics                insert an analytics_data row
//	POST   /pipeline/jobs          submit a training job
//	GET    /pipeline/jobs          list jobs
//	GET    /pipeline/jobs/{id}     job status
//	DELETE /pipeline/jobs/{id}     cancel a job
//	GET    /pipeline/datasets      training files in the data directory
//	GET    /health, /health/ready, /health/live, /version
package http
