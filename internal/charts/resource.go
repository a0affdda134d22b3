package charts

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// paintFunc draws chart data into an encoded document.
type paintFunc func(id string, data *ChartData, opts Options) (content []byte, contentType string, err error)

// paintedChart is a Resource that repaints itself onto its surface.
type paintedChart struct {
	mu        sync.Mutex
	id        string
	paint     paintFunc
	surface   Surface
	data      *ChartData
	opts      Options
	destroyed bool
}

func createPainted(ctx context.Context, paint paintFunc, surface Surface, data *ChartData, opts Options) (*paintedChart, error) {
	if surface == nil {
		return nil, fmt.Errorf("no surface to draw on")
	}
	c := &paintedChart{
		id:      "forecast-" + uuid.NewString(),
		paint:   paint,
		surface: surface,
		data:    data,
		opts:    opts,
	}
	if err := c.draw(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// ID identifies the resource in rendered output.
func (c *paintedChart) ID() string {
	return c.id
}

func (c *paintedChart) Data() *ChartData {
	return c.data
}

func (c *paintedChart) Update(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return ErrResourceDestroyed
	}
	return c.draw(ctx)
}

func (c *paintedChart) Destroy() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destroyed = true
	c.data = nil
	return nil
}

func (c *paintedChart) draw(ctx context.Context) error {
	content, contentType, err := c.paint(c.id, c.data, c.opts)
	if err != nil {
		return fmt.Errorf("failed to paint chart %s: %w", c.id, err)
	}
	if err := c.surface.Publish(ctx, content, contentType); err != nil {
		return fmt.Errorf("failed to publish chart to %s: %w", c.surface.Name(), err)
	}
	return nil
}
