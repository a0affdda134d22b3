package hass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"weatherchart/internal/models"
	"weatherchart/internal/subscription"
)

var errConnectionClosed = errors.New("websocket connection closed")

// message covers every frame exchanged with the websocket API.
type message struct {
	ID           int             `json:"id,omitempty"`
	Type         string          `json:"type"`
	AccessToken  string          `json:"access_token,omitempty"`
	EntityID     string          `json:"entity_id,omitempty"`
	ForecastType string          `json:"forecast_type,omitempty"`
	Subscription int             `json:"subscription,omitempty"`
	Success      *bool           `json:"success,omitempty"`
	Error        *resultError    `json:"error,omitempty"`
	Event        json.RawMessage `json:"event,omitempty"`
	Message      string          `json:"message,omitempty"`
}

type resultError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type forecastEvent struct {
	Type     string            `json:"type"`
	Forecast []json.RawMessage `json:"forecast"`
}

// WebsocketFeed subscribes to weather forecasts over the Home Assistant
// websocket API. Pushes for one subscription are delivered in order on the
// read loop goroutine.
type WebsocketFeed struct {
	url    string
	token  string
	dialer *websocket.Dialer

	writeMu sync.Mutex
	mu      sync.Mutex
	conn    *websocket.Conn
	nextID  int
	pending map[int]chan message
	subs    map[int]*wsSub
	done    chan struct{}
	closed  bool
}

// wsSub is a live subscription. lost is closed when the connection drops.
type wsSub struct {
	onUpdate subscription.UpdateFunc
	lost     chan struct{}
}

// NewWebsocketFeed creates a feed for the instance at baseURL (http or https).
func NewWebsocketFeed(baseURL, token string) (*WebsocketFeed, error) {
	wsURL, err := websocketURL(baseURL)
	if err != nil {
		return nil, err
	}
	return &WebsocketFeed{
		url:    wsURL,
		token:  token,
		dialer: websocket.DefaultDialer,
	}, nil
}

func websocketURL(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid Home Assistant URL %q: %w", baseURL, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported Home Assistant URL scheme %q", u.Scheme)
	}
	u.Path += "/api/websocket"
	return u.String(), nil
}

// Connect dials and authenticates. Subscribe connects on demand.
func (f *WebsocketFeed) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connectLocked(ctx)
}

func (f *WebsocketFeed) connectLocked(ctx context.Context) error {
	if f.conn != nil {
		return nil
	}
	if f.closed {
		return fmt.Errorf("websocket %s: %w", f.url, subscription.ErrFeedClosed)
	}

	conn, _, err := f.dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", f.url, err)
	}
	if err := authenticate(conn, f.token); err != nil {
		conn.Close()
		return err
	}

	f.conn = conn
	f.nextID = 0
	f.pending = map[int]chan message{}
	f.subs = map[int]*wsSub{}
	f.done = make(chan struct{})
	go f.readLoop(conn, f.done)

	log.Info("Connected to Home Assistant websocket", map[string]interface{}{"url": f.url})
	return nil
}

func authenticate(conn *websocket.Conn, token string) error {
	var hello message
	if err := conn.ReadJSON(&hello); err != nil {
		return fmt.Errorf("failed to read auth request: %w", err)
	}
	if hello.Type != "auth_required" {
		return fmt.Errorf("unexpected handshake message %q", hello.Type)
	}
	if err := conn.WriteJSON(message{Type: "auth", AccessToken: token}); err != nil {
		return fmt.Errorf("failed to send auth: %w", err)
	}

	var reply message
	if err := conn.ReadJSON(&reply); err != nil {
		return fmt.Errorf("failed to read auth reply: %w", err)
	}
	if reply.Type != "auth_ok" {
		return fmt.Errorf("authentication rejected: %s", reply.Message)
	}
	return nil
}

func (f *WebsocketFeed) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			log.Warn("Websocket read loop stopped", map[string]interface{}{"error": err.Error()})
			f.dropConnection(conn)
			return
		}

		switch msg.Type {
		case "result":
			f.mu.Lock()
			ch, ok := f.pending[msg.ID]
			delete(f.pending, msg.ID)
			f.mu.Unlock()
			if ok {
				ch <- msg
			}
		case "event":
			f.mu.Lock()
			sub := f.subs[msg.ID]
			f.mu.Unlock()
			if sub == nil {
				continue
			}
			points, err := decodeForecast(msg.Event)
			if err != nil {
				log.Warn("Skipping malformed forecast event", map[string]interface{}{
					"subscription": msg.ID,
					"error":        err.Error(),
				})
				continue
			}
			sub.onUpdate(points)
		}
	}
}

// dropConnection forgets conn, fails every waiting request and marks every
// subscription lost.
func (f *WebsocketFeed) dropConnection(conn *websocket.Conn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn != conn {
		return
	}
	conn.Close()
	f.conn = nil
	for id, ch := range f.pending {
		close(ch)
		delete(f.pending, id)
	}
	for _, sub := range f.subs {
		close(sub.lost)
	}
	f.subs = nil
}

func decodeForecast(raw json.RawMessage) ([]models.ForecastPoint, error) {
	var event forecastEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, fmt.Errorf("failed to decode forecast event: %w", err)
	}
	if len(event.Forecast) == 0 {
		return nil, fmt.Errorf("forecast event has no points")
	}
	points := make([]models.ForecastPoint, 0, len(event.Forecast))
	for i, item := range event.Forecast {
		var p models.ForecastPoint
		if err := json.Unmarshal(item, &p); err != nil {
			return nil, fmt.Errorf("forecast point %d: %w", i, err)
		}
		points = append(points, p)
	}
	return points, nil
}

// call sends a command and waits for its result.
func (f *WebsocketFeed) call(ctx context.Context, msg message, register func(id int)) (message, error) {
	f.mu.Lock()
	if err := f.connectLocked(ctx); err != nil {
		f.mu.Unlock()
		return message{}, err
	}
	f.nextID++
	msg.ID = f.nextID
	ch := make(chan message, 1)
	f.pending[msg.ID] = ch
	if register != nil {
		register(msg.ID)
	}
	conn := f.conn
	f.mu.Unlock()

	f.writeMu.Lock()
	err := conn.WriteJSON(msg)
	f.writeMu.Unlock()
	if err != nil {
		f.dropConnection(conn)
		return message{}, fmt.Errorf("failed to send %s: %w", msg.Type, err)
	}

	select {
	case reply, ok := <-ch:
		if !ok {
			return message{}, errConnectionClosed
		}
		if reply.Success == nil || !*reply.Success {
			reason := "unknown error"
			if reply.Error != nil {
				reason = reply.Error.Code + ": " + reply.Error.Message
			}
			return reply, fmt.Errorf("%s rejected: %s", msg.Type, reason)
		}
		return reply, nil
	case <-ctx.Done():
		f.mu.Lock()
		delete(f.pending, msg.ID)
		f.mu.Unlock()
		return message{}, ctx.Err()
	}
}

// Subscribe starts a forecast subscription for entityID.
func (f *WebsocketFeed) Subscribe(ctx context.Context, entityID string, forecastType models.ForecastType, onUpdate subscription.UpdateFunc) (subscription.Handle, error) {
	var id int
	sub := &wsSub{onUpdate: onUpdate, lost: make(chan struct{})}
	_, err := f.call(ctx, message{
		Type:         "weather/subscribe_forecast",
		EntityID:     entityID,
		ForecastType: string(forecastType),
	}, func(msgID int) {
		// registered before sending so the first event is not missed
		id = msgID
		f.subs[msgID] = sub
	})
	if err != nil {
		f.mu.Lock()
		if f.subs != nil {
			delete(f.subs, id)
		}
		f.mu.Unlock()
		return subscription.Handle{}, err
	}

	return subscription.Handle{
		ID:           strconv.Itoa(id),
		EntityID:     entityID,
		ForecastType: forecastType,
		Lost:         sub.lost,
	}, nil
}

// Unsubscribe releases a subscription. Unknown handles, including those lost
// with a dropped connection, yield subscription.ErrNotSubscribed.
func (f *WebsocketFeed) Unsubscribe(ctx context.Context, h subscription.Handle) error {
	id, err := strconv.Atoi(h.ID)
	if err != nil {
		return fmt.Errorf("invalid handle %q: %w", h.ID, subscription.ErrNotSubscribed)
	}

	f.mu.Lock()
	_, ok := f.subs[id]
	delete(f.subs, id)
	f.mu.Unlock()
	if !ok {
		return subscription.ErrNotSubscribed
	}

	if _, err := f.call(ctx, message{Type: "unsubscribe_events", Subscription: id}, nil); err != nil {
		return fmt.Errorf("failed to unsubscribe %d: %w", id, err)
	}
	return nil
}

// Close shuts the connection down and waits for the read loop. The feed
// refuses to reconnect afterwards.
func (f *WebsocketFeed) Close() error {
	f.mu.Lock()
	f.closed = true
	conn, done := f.conn, f.done
	f.mu.Unlock()
	if conn == nil {
		return nil
	}

	f.writeMu.Lock()
	err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	f.writeMu.Unlock()
	if err != nil {
		// the peer may already be gone; the socket is closed regardless
		log.Debug("Failed to send websocket close frame", map[string]interface{}{"error": err.Error()})
	}
	f.dropConnection(conn)
	<-done
	return nil
}
