// Command analytics-server serves the analytics HTTP API, the websocket
// stream and Prometheus metrics.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"dailyanalytics/internal/app"
	"dailyanalytics/internal/config"
)

func main() {
	ctx := context.Background()

	application, err := app.NewApplication(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize %s: %v\n", config.AppName, err)
		os.Exit(1)
	}

	if err := application.Run(ctx); err != nil {
		application.Logger.Error("Server stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
