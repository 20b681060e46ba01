package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"dailyanalytics/internal/config"
	"dailyanalytics/internal/services"
)

// AnalyticsComponent loads /api/data and renders a one-line summary.
type AnalyticsComponent struct {
	client *Client
	logger *slog.Logger

	mu   sync.RWMutex
	data *services.DataResponse
}

// NewAnalyticsComponent creates a component backed by client.
func NewAnalyticsComponent(client *Client, logger *slog.Logger) *AnalyticsComponent {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyticsComponent{
		client: client,
		logger: logger.With(slog.String("component", "analytics_component")),
	}
}

// Initialize loads the data and renders it.
func (c *AnalyticsComponent) Initialize(ctx context.Context) error {
	c.logger.InfoContext(ctx, "Analytics component initialized")
	if err := c.LoadData(ctx); err != nil {
		return err
	}
	c.Render(ctx)
	return nil
}

// LoadData fetches the dataset report.
func (c *AnalyticsComponent) LoadData(ctx context.Context) error {
	var resp services.DataResponse
	if err := c.client.GetJSON(ctx, config.DataEndpoint, &resp); err != nil {
		c.logger.ErrorContext(ctx, "Error loading data", slog.String("error", err.Error()))
		return fmt.Errorf("load data: %w", err)
	}

	c.mu.Lock()
	c.data = &resp
	c.mu.Unlock()
	return nil
}

// Data returns the loaded report, or nil.
func (c *AnalyticsComponent) Data() *services.DataResponse {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data
}

// Render logs the loaded report and returns its summary line.
func (c *AnalyticsComponent) Render(ctx context.Context) string {
	data := c.Data()

	var line string
	switch {
	case data == nil:
		line = "no data"
	case data.Summary == nil:
		line = fmt.Sprintf("status=%s, no dataset loaded", data.Status)
	default:
		line = fmt.Sprintf("status=%s, %d records, %d columns",
			data.Status, data.Summary.TotalRecords, len(data.Summary.Columns))
	}

	c.logger.InfoContext(ctx, "Component rendered successfully", slog.String("summary", line))
	return line
}
