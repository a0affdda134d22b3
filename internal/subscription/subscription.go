package subscription

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"weatherchart/internal/logger"
	"weatherchart/internal/models"
)

var (
	// ErrNotSubscribed is returned by a feed asked to release an unknown handle.
	ErrNotSubscribed = errors.New("not subscribed")
	// ErrFeedClosed is returned by a feed that was shut down for good.
	ErrFeedClosed = errors.New("feed closed")

	errSuperseded = errors.New("subscription superseded")
)

const resubscribeTimeout = 10 * time.Second

var log = logger.Component("subscription")

// UpdateFunc receives every forecast pushed by a feed.
type UpdateFunc func(points []models.ForecastPoint)

// Handle identifies one active feed subscription.
type Handle struct {
	ID           string
	EntityID     string
	ForecastType models.ForecastType
	// Lost is closed when the feed drops the subscription on its own, for
	// example with its connection. Nil when the feed never does.
	Lost <-chan struct{}
}

// Feed delivers forecast pushes for one entity and forecast type.
type Feed interface {
	Subscribe(ctx context.Context, entityID string, forecastType models.ForecastType, onUpdate UpdateFunc) (Handle, error)
	Unsubscribe(ctx context.Context, h Handle) error
}

// Scheduler runs a task at every top of the hour.
type Scheduler interface {
	Start(task func()) error
	Stop()
}

// Controller keeps at most one live subscription and one autoscroll timer.
type Controller struct {
	feed      Feed
	scheduler Scheduler
	onPush    UpdateFunc
	onTick    func()

	newBackOff func() backoff.BackOff

	// ops serializes subscription changes, timer serializes autoscroll
	// changes; mu guards the fields below.
	ops        sync.Mutex
	timer      sync.Mutex
	mu         sync.Mutex
	handle     *Handle
	changed    chan struct{}
	autoscroll bool
}

// NewController creates a controller. onPush receives forecasts from the
// current subscription only; onTick runs on every autoscroll firing.
func NewController(feed Feed, scheduler Scheduler, onPush UpdateFunc, onTick func()) *Controller {
	return &Controller{
		feed:       feed,
		scheduler:  scheduler,
		onPush:     onPush,
		onTick:     onTick,
		newBackOff: resubscribeBackOff,
		changed:    make(chan struct{}),
	}
}

// resubscribeBackOff retries forever, from one second up to a minute apart.
func resubscribeBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = time.Minute
	b.MaxElapsedTime = 0
	return b
}

// EnsureSubscription binds the controller to (entityID, forecastType). It is a
// no-op when already bound to that pair; otherwise the old subscription is
// released before the new one is made.
func (c *Controller) EnsureSubscription(ctx context.Context, entityID string, forecastType models.ForecastType) error {
	c.ops.Lock()
	defer c.ops.Unlock()

	if h, ok := c.Subscribed(); ok && h.EntityID == entityID && h.ForecastType == forecastType {
		return nil
	}

	c.supersede()
	if err := c.release(ctx); err != nil {
		return err
	}
	return c.subscribeLocked(ctx, entityID, forecastType)
}

// subscribeLocked makes a new subscription. The caller holds ops.
func (c *Controller) subscribeLocked(ctx context.Context, entityID string, forecastType models.ForecastType) error {
	// Installed before subscribing so a push delivered during Subscribe is kept.
	current := &Handle{EntityID: entityID, ForecastType: forecastType}
	c.mu.Lock()
	c.handle = current
	changed := c.changed
	c.mu.Unlock()

	h, err := c.feed.Subscribe(ctx, entityID, forecastType, func(points []models.ForecastPoint) {
		c.deliver(current, points)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.handle = nil
		return fmt.Errorf("failed to subscribe to %s forecast of %s: %w", forecastType, entityID, err)
	}
	current.ID = h.ID
	if h.Lost != nil {
		go c.watch(current, h.Lost, changed)
	}

	log.Info("Subscribed to forecast", map[string]interface{}{
		"entity":        entityID,
		"forecast_type": string(forecastType),
		"handle":        h.ID,
	})
	return nil
}

// supersede stops every pending resubscription. The caller holds ops.
func (c *Controller) supersede() {
	c.mu.Lock()
	defer c.mu.Unlock()
	close(c.changed)
	c.changed = make(chan struct{})
}

// watch waits for the feed to lose current, then returns the controller to
// unsubscribed and subscribes to the same pair again with backoff until it
// succeeds or the binding changes.
func (c *Controller) watch(current *Handle, lost, changed <-chan struct{}) {
	select {
	case <-changed:
		return
	case <-lost:
	}

	c.mu.Lock()
	if c.handle != current {
		c.mu.Unlock()
		return
	}
	c.handle = nil
	id := current.ID
	c.mu.Unlock()

	log.Warn("Forecast subscription lost, resubscribing", map[string]interface{}{
		"entity":        current.EntityID,
		"forecast_type": string(current.ForecastType),
		"handle":        id,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-changed:
			cancel()
		case <-ctx.Done():
		}
	}()

	resubscribe := func() error {
		c.ops.Lock()
		defer c.ops.Unlock()
		select {
		case <-changed:
			return backoff.Permanent(errSuperseded)
		default:
		}

		attemptCtx, attemptCancel := context.WithTimeout(ctx, resubscribeTimeout)
		defer attemptCancel()
		err := c.subscribeLocked(attemptCtx, current.EntityID, current.ForecastType)
		if errors.Is(err, ErrFeedClosed) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		log.Warn("Resubscribe failed", map[string]interface{}{
			"entity":   current.EntityID,
			"error":    err.Error(),
			"retry_in": wait.String(),
		})
	}

	err := backoff.RetryNotify(resubscribe, backoff.WithContext(c.newBackOff(), ctx), notify)
	switch {
	case err == nil, errors.Is(err, errSuperseded), errors.Is(err, context.Canceled):
	default:
		log.Error("Giving up on forecast subscription", err, map[string]interface{}{
			"entity":        current.EntityID,
			"forecast_type": string(current.ForecastType),
		})
	}
}

// deliver drops pushes from a handle that has since been replaced.
func (c *Controller) deliver(from *Handle, points []models.ForecastPoint) {
	c.mu.Lock()
	live, id := c.handle == from, from.ID
	c.mu.Unlock()

	if !live {
		log.Debug("Dropping forecast from released subscription", map[string]interface{}{
			"handle": id,
		})
		return
	}
	if c.onPush != nil {
		c.onPush(points)
	}
}

// Subscribed returns the current binding, if any.
func (c *Controller) Subscribed() (Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle == nil {
		return Handle{}, false
	}
	return *c.handle, true
}

// Teardown cancels autoscroll and releases the subscription. Safe to call
// repeatedly.
func (c *Controller) Teardown(ctx context.Context) error {
	c.DisableAutoscroll()

	c.ops.Lock()
	defer c.ops.Unlock()
	c.supersede()
	return c.release(ctx)
}

func (c *Controller) release(ctx context.Context) error {
	c.mu.Lock()
	if c.handle == nil {
		c.mu.Unlock()
		return nil
	}
	old := *c.handle
	c.handle = nil
	c.mu.Unlock()

	err := c.feed.Unsubscribe(ctx, old)
	if errors.Is(err, ErrNotSubscribed) {
		log.Debug("Subscription already released by feed", map[string]interface{}{
			"handle": old.ID,
		})
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to unsubscribe %s: %w", old.ID, err)
	}
	log.Info("Unsubscribed from forecast", map[string]interface{}{
		"entity":        old.EntityID,
		"forecast_type": string(old.ForecastType),
	})
	return nil
}

// EnableAutoscroll starts the hourly refresh. Enabling twice keeps one timer.
func (c *Controller) EnableAutoscroll() error {
	c.timer.Lock()
	defer c.timer.Unlock()

	if c.Autoscroll() {
		return nil
	}
	if err := c.scheduler.Start(c.tick); err != nil {
		return fmt.Errorf("failed to enable autoscroll: %w", err)
	}
	c.mu.Lock()
	c.autoscroll = true
	c.mu.Unlock()
	return nil
}

// DisableAutoscroll cancels the pending refresh. Stopping the scheduler may
// wait for a running tick, so it happens outside the state lock.
func (c *Controller) DisableAutoscroll() {
	c.timer.Lock()
	defer c.timer.Unlock()

	c.mu.Lock()
	was := c.autoscroll
	c.autoscroll = false
	c.mu.Unlock()

	if was {
		c.scheduler.Stop()
	}
}

// Autoscroll reports whether the hourly refresh is active.
func (c *Controller) Autoscroll() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.autoscroll
}

func (c *Controller) tick() {
	if c.onTick != nil {
		c.onTick()
	}
}
