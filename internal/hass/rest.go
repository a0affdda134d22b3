package hass

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"weatherchart/internal/logger"
	"weatherchart/internal/models"
)

var log = logger.Component("hass")

var (
	errNotFound    = errors.New("entity not found")
	errCircuitOpen = errors.New("circuit breaker open")
)

// UnitSystem is the host's globally configured display units.
type UnitSystem struct {
	Temperature string `json:"temperature"`
	Length      string `json:"length"`
	Pressure    string `json:"pressure"`
	WindSpeed   string `json:"wind_speed"`
	Accumulated string `json:"accumulated_precipitation"`
	Volume      string `json:"volume"`
	Mass        string `json:"mass"`
}

type configResponse struct {
	UnitSystem UnitSystem `json:"unit_system"`
	TimeZone   string     `json:"time_zone"`
	Language   string     `json:"language"`
}

// RESTClient reads entity state and the unit system from the Home Assistant
// REST API.
type RESTClient struct {
	client  *resty.Client
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter

	mu       sync.RWMutex
	units    UnitSystem
	timeZone string
}

// NewRESTClient creates a REST client for baseURL authenticated with token.
// rps and burst bound the request rate.
func NewRESTClient(baseURL, token string, rps float64, burst int) *RESTClient {
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(baseURL, "/"))
	client.SetAuthToken(token)
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(10 * time.Second)
	client.SetRetryCount(2)
	client.SetRetryWaitTime(500 * time.Millisecond)
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		return err != nil || r.StatusCode() >= http.StatusInternalServerError
	})

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "hass-rest",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// a missing entity is an answer, not an outage
			return err == nil || errors.Is(err, errNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed", map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})

	if burst < 1 {
		burst = 1
	}
	return &RESTClient{
		client:  client,
		breaker: breaker,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// get executes a rate limited, circuit protected GET into result.
func (c *RESTClient) get(ctx context.Context, path string, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait canceled: %w", err)
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.client.R().
			SetContext(ctx).
			SetResult(result).
			Get(path)
		if err != nil {
			return nil, fmt.Errorf("failed to request %s: %w", path, err)
		}
		switch {
		case resp.StatusCode() == http.StatusNotFound:
			return nil, errNotFound
		case resp.IsError():
			return nil, fmt.Errorf("request %s returned status %d", path, resp.StatusCode())
		}
		return nil, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", errCircuitOpen, err)
	}
	return err
}

// Lookup returns the current state of an entity. Failures are logged and
// reported as absent.
func (c *RESTClient) Lookup(ctx context.Context, entityID string) (*models.Entity, bool) {
	if entityID == "" {
		return nil, false
	}

	var entity models.Entity
	err := c.get(ctx, "/api/states/"+entityID, &entity)
	if errors.Is(err, errNotFound) {
		log.Debug("Entity not found", map[string]interface{}{"entity": entityID})
		return nil, false
	}
	if err != nil {
		log.Warn("Entity lookup failed", map[string]interface{}{
			"entity": entityID,
			"error":  err.Error(),
		})
		return nil, false
	}
	return &entity, true
}

// LoadUnitSystem fetches and caches the host unit system.
func (c *RESTClient) LoadUnitSystem(ctx context.Context) error {
	var cfg configResponse
	if err := c.get(ctx, "/api/config", &cfg); err != nil {
		return fmt.Errorf("failed to load unit system: %w", err)
	}

	c.mu.Lock()
	c.units = cfg.UnitSystem
	c.timeZone = cfg.TimeZone
	c.mu.Unlock()

	log.Info("Loaded unit system", map[string]interface{}{
		"temperature": cfg.UnitSystem.Temperature,
		"length":      cfg.UnitSystem.Length,
		"time_zone":   cfg.TimeZone,
	})
	return nil
}

// UnitFor returns the host unit for a category ("temperature", "length",
// "pressure", "wind_speed", ...), or "" before LoadUnitSystem succeeded.
func (c *RESTClient) UnitFor(category string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch category {
	case "temperature":
		return c.units.Temperature
	case "length":
		return c.units.Length
	case "pressure":
		return c.units.Pressure
	case "wind_speed":
		return c.units.WindSpeed
	case "accumulated_precipitation":
		return c.units.Accumulated
	case "volume":
		return c.units.Volume
	case "mass":
		return c.units.Mass
	default:
		return ""
	}
}

// Location returns the host time zone, falling back to the local zone.
func (c *RESTClient) Location() *time.Location {
	c.mu.RLock()
	tz := c.timeZone
	c.mu.RUnlock()

	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Warn("Unknown host time zone", map[string]interface{}{"time_zone": tz})
		return time.Local
	}
	return loc
}
