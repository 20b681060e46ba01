// Command dashboard renders the analytics dashboard of a running server into
// an XLSX workbook, prints the component summary, or follows the live
// metric stream.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"dailyanalytics/internal/config"
	"dailyanalytics/internal/dashboard"
	"dailyanalytics/internal/infrastructure"
	"dailyanalytics/internal/stream"
)

type options struct {
	BaseURL   string
	Output    string
	Component bool
	Watch     time.Duration
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "analytics server base URL")
	out := flag.String("out", "dashboard.xlsx", "workbook to write; empty skips rendering")
	component := flag.Bool("component", false, "print the data component summary instead of rendering charts")
	watch := flag.Duration("watch", 0, "follow the live metric stream for this long after rendering")
	flag.Parse()

	logger, err := infrastructure.InitializeLogger(config.LoggingConfig{Level: "info", Output: "console"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := options{BaseURL: *baseURL, Output: *out, Component: *component, Watch: *watch}
	if err := run(ctx, opts, os.Stdout, logger); err != nil {
		logger.Error("Dashboard failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, stdout io.Writer, logger *slog.Logger) error {
	client := dashboard.NewClient(opts.BaseURL, &http.Client{Timeout: 30 * time.Second})

	if opts.Component {
		c := dashboard.NewAnalyticsComponent(client, logger)
		if err := c.Initialize(ctx); err != nil {
			return err
		}
		fmt.Fprintln(stdout, c.Render(ctx))
	} else {
		d := dashboard.NewAnalyticsDashboard(client, opts.Output, logger)
		if err := d.Initialize(ctx); err != nil {
			return err
		}
		if opts.Output != "" {
			fmt.Fprintf(stdout, "Wrote %s (%s)\n", opts.Output, strings.Join(d.Charts(), ", "))
		}
	}

	if opts.Watch <= 0 {
		return nil
	}
	wsURL, err := streamURL(opts.BaseURL)
	if err != nil {
		return err
	}
	return watch(ctx, wsURL, opts.Watch, stdout, logger)
}

// streamURL maps an http(s) base URL to the websocket endpoint.
func streamURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + config.WebSocketEndpoint
	return u.String(), nil
}

// watch prints every stream message as one JSON line until d elapses, ctx is
// done or the client gives up reconnecting.
func watch(ctx context.Context, wsURL string, d time.Duration, stdout io.Writer, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	messages := make(chan any, 64)
	client := stream.NewClient(wsURL,
		stream.WithLogger(logger),
		stream.WithMaxReconnectAttempts(config.StreamMaxReconnectAttempts),
		stream.WithReconnectDelay(config.StreamReconnectDelay))
	client.On(stream.EventData, func(data any) {
		select {
		case messages <- data:
		default:
			logger.Warn("Dropping stream message, output is behind")
		}
	})
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Disconnect()

	enc := json.NewEncoder(stdout)
	for {
		select {
		case msg := <-messages:
			if err := enc.Encode(msg); err != nil {
				return err
			}
		case <-client.Done():
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}
