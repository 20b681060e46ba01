// Package app wires configuration, logging, telemetry, storage, services and
// the HTTP router into a runnable server.
//
// # Initialization Flow
//
//	1. Load configuration from defaults, the YAML file and the environment
//	2. Initialize logging and OpenTelemetry
//	3. Open the analytics_data repository (Postgres or in-memory)
//	4. Start the websocket hub and the training job queue
//	5. Build the chi router and the HTTP server
//
// # Graceful Shutdown
//
// Run returns after SIGINT or SIGTERM once the HTTP server has drained,
// the job queue has stopped, websocket clients have been closed and the
// repository and telemetry providers have been shut down.
//
// All initialization errors are returned to the caller; the package never
// calls os.Exit.
package app
