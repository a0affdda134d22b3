package hass

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"weatherchart/internal/models"
	"weatherchart/internal/subscription"
)

// fakeHass speaks just enough of the websocket API for the feed.
type fakeHass struct {
	t        *testing.T
	token    string
	upgrader websocket.Upgrader

	mu       sync.Mutex
	commands []message
	// drops is how many connections are closed right after their first
	// subscription has sent its events.
	drops int
}

func (h *fakeHass) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.t.Errorf("upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	conn.WriteJSON(message{Type: "auth_required"})
	var auth message
	if err := conn.ReadJSON(&auth); err != nil {
		return
	}
	if auth.AccessToken != h.token {
		conn.WriteJSON(message{Type: "auth_invalid", Message: "Invalid access token"})
		return
	}
	conn.WriteJSON(message{Type: "auth_ok"})

	ok, fail := true, false
	for {
		var cmd message
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		h.mu.Lock()
		h.commands = append(h.commands, cmd)
		h.mu.Unlock()

		switch cmd.Type {
		case "weather/subscribe_forecast":
			if cmd.EntityID == "weather.nowhere" {
				conn.WriteJSON(message{ID: cmd.ID, Type: "result", Success: &fail,
					Error: &resultError{Code: "not_found", Message: "Entity not found"}})
				continue
			}
			conn.WriteJSON(message{ID: cmd.ID, Type: "result", Success: &ok})
			conn.WriteJSON(message{ID: cmd.ID, Type: "event", Event: []byte(`{"type":"` + cmd.ForecastType + `","forecast":[
				{"datetime":"2024-05-10T12:00:00+00:00","temperature":21.6,"templow":14.2,"precipitation":2.3,"condition":"rainy"},
				{"datetime":"2024-05-11T12:00:00+00:00","temperature":"n/a","condition":"sunny"}
			]}`)})
			conn.WriteJSON(message{ID: cmd.ID, Type: "event", Event: []byte(`{"type":"daily","forecast":[{"datetime":"garbage"}]}`)})
			conn.WriteJSON(message{ID: cmd.ID, Type: "event", Event: []byte(`{"type":"daily","forecast":[
				{"datetime":"2024-05-12T12:00:00+00:00","temperature":18,"condition":"cloudy"}
			]}`)})
			h.mu.Lock()
			drop := h.drops > 0
			if drop {
				h.drops--
			}
			h.mu.Unlock()
			if drop {
				return
			}
		case "unsubscribe_events":
			conn.WriteJSON(message{ID: cmd.ID, Type: "result", Success: &ok})
		}
	}
}

func (h *fakeHass) commandTypes() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var types []string
	for _, c := range h.commands {
		types = append(types, c.Type)
	}
	return types
}

func (h *fakeHass) count(commandType string) int {
	n := 0
	for _, c := range h.commandTypes() {
		if c == commandType {
			n++
		}
	}
	return n
}

func newFakeHass(t *testing.T) (*fakeHass, *httptest.Server) {
	h := &fakeHass{t: t, token: "secret"}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return h, srv
}

func TestWebsocketURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"http://homeassistant.local:8123", "ws://homeassistant.local:8123/api/websocket", false},
		{"https://ha.example.com/", "wss://ha.example.com/api/websocket", false},
		{"ftp://ha", "", true},
	}
	for _, tt := range tests {
		got, err := websocketURL(tt.in)
		if tt.wantErr {
			require.Error(t, err)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, tt.want, got)
	}
}

func TestWebsocketFeedSubscribe(t *testing.T) {
	h, srv := newFakeHass(t)
	feed, err := NewWebsocketFeed(srv.URL, "secret")
	require.NoError(t, err)
	defer feed.Close()

	pushes := make(chan []models.ForecastPoint, 4)
	handle, err := feed.Subscribe(context.Background(), "weather.home", models.ForecastDaily, func(points []models.ForecastPoint) {
		pushes <- points
	})
	require.NoError(t, err)
	require.Equal(t, "weather.home", handle.EntityID)
	require.Equal(t, "1", handle.ID)

	first := receive(t, pushes)
	require.Len(t, first, 2)
	require.Equal(t, 21.6, first[0].Temperature)
	require.Equal(t, 14.2, *first[0].TempLow)
	require.Equal(t, "sunny", first[1].Condition)

	// the malformed event is skipped, the next one still arrives
	second := receive(t, pushes)
	require.Len(t, second, 1)
	require.Equal(t, "cloudy", second[0].Condition)

	require.NoError(t, feed.Unsubscribe(context.Background(), handle))
	require.ErrorIs(t, feed.Unsubscribe(context.Background(), handle), subscription.ErrNotSubscribed)
	require.Equal(t, []string{"weather/subscribe_forecast", "unsubscribe_events"}, h.commandTypes())
}

func TestWebsocketFeedRejectedSubscription(t *testing.T) {
	_, srv := newFakeHass(t)
	feed, err := NewWebsocketFeed(srv.URL, "secret")
	require.NoError(t, err)
	defer feed.Close()

	_, err = feed.Subscribe(context.Background(), "weather.nowhere", models.ForecastDaily, func([]models.ForecastPoint) {})
	require.ErrorContains(t, err, "not_found")
}

func TestWebsocketFeedBadToken(t *testing.T) {
	_, srv := newFakeHass(t)
	feed, err := NewWebsocketFeed(srv.URL, "wrong")
	require.NoError(t, err)

	err = feed.Connect(context.Background())
	require.ErrorContains(t, err, "Invalid access token")
}

func TestWebsocketFeedWithController(t *testing.T) {
	h, srv := newFakeHass(t)
	feed, err := NewWebsocketFeed(srv.URL, "secret")
	require.NoError(t, err)
	defer feed.Close()

	pushes := make(chan []models.ForecastPoint, 8)
	c := subscription.NewController(feed, nil, func(points []models.ForecastPoint) { pushes <- points }, nil)
	ctx := context.Background()

	require.NoError(t, c.EnsureSubscription(ctx, "weather.home", models.ForecastHourly))
	require.NoError(t, c.EnsureSubscription(ctx, "weather.home", models.ForecastHourly))
	receive(t, pushes)

	require.NoError(t, c.EnsureSubscription(ctx, "weather.home", models.ForecastDaily))
	require.NoError(t, c.Teardown(ctx))
	require.Equal(t, []string{
		"weather/subscribe_forecast",
		"unsubscribe_events",
		"weather/subscribe_forecast",
		"unsubscribe_events",
	}, h.commandTypes())
}

func TestWebsocketFeedCloseIsIdempotent(t *testing.T) {
	_, srv := newFakeHass(t)
	feed, err := NewWebsocketFeed(srv.URL, "secret")
	require.NoError(t, err)

	require.NoError(t, feed.Connect(context.Background()))
	require.NoError(t, feed.Close())
	require.NoError(t, feed.Close())

	err = feed.Unsubscribe(context.Background(), subscription.Handle{ID: "1"})
	require.True(t, errors.Is(err, subscription.ErrNotSubscribed))
}

func TestWebsocketFeedDroppedConnectionMarksSubscriptionLost(t *testing.T) {
	h, srv := newFakeHass(t)
	h.drops = 1
	feed, err := NewWebsocketFeed(srv.URL, "secret")
	require.NoError(t, err)
	defer feed.Close()

	handle, err := feed.Subscribe(context.Background(), "weather.home", models.ForecastDaily, func([]models.ForecastPoint) {})
	require.NoError(t, err)
	require.NotNil(t, handle.Lost)

	select {
	case <-handle.Lost:
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not marked lost after the connection dropped")
	}
	require.ErrorIs(t, feed.Unsubscribe(context.Background(), handle), subscription.ErrNotSubscribed)
}

func TestWebsocketFeedControllerResubscribesAfterDrop(t *testing.T) {
	h, srv := newFakeHass(t)
	h.drops = 1
	feed, err := NewWebsocketFeed(srv.URL, "secret")
	require.NoError(t, err)
	defer feed.Close()

	pushes := make(chan []models.ForecastPoint, 8)
	c := subscription.NewController(feed, nil, func(points []models.ForecastPoint) { pushes <- points }, nil)
	ctx := context.Background()
	require.NoError(t, c.EnsureSubscription(ctx, "weather.home", models.ForecastHourly))
	receive(t, pushes)
	receive(t, pushes)

	require.Eventually(t, func() bool {
		_, ok := c.Subscribed()
		return ok && h.count("weather/subscribe_forecast") == 2
	}, 3*time.Second, 10*time.Millisecond)

	// events on the new connection reach the card again
	third := receive(t, pushes)
	require.Equal(t, "rainy", third[0].Condition)

	require.NoError(t, c.Teardown(ctx))
	require.Equal(t, 1, h.count("unsubscribe_events"))
}

func TestWebsocketFeedRefusesToReconnectAfterClose(t *testing.T) {
	_, srv := newFakeHass(t)
	feed, err := NewWebsocketFeed(srv.URL, "secret")
	require.NoError(t, err)

	require.NoError(t, feed.Connect(context.Background()))
	require.NoError(t, feed.Close())

	_, err = feed.Subscribe(context.Background(), "weather.home", models.ForecastDaily, func([]models.ForecastPoint) {})
	require.ErrorIs(t, err, subscription.ErrFeedClosed)
}

func TestWebsocketFeedCloseWithBrokenSocket(t *testing.T) {
	_, srv := newFakeHass(t)
	feed, err := NewWebsocketFeed(srv.URL, "secret")
	require.NoError(t, err)
	require.NoError(t, feed.Connect(context.Background()))

	feed.mu.Lock()
	conn := feed.conn
	feed.mu.Unlock()
	// the close frame cannot be written once the socket is gone
	conn.UnderlyingConn().Close()

	closed := make(chan error, 1)
	go func() { closed <- feed.Close() }()
	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Close hung on a broken socket")
	}
}

func receive(t *testing.T, ch <-chan []models.ForecastPoint) []models.ForecastPoint {
	t.Helper()
	select {
	case points := <-ch:
		return points
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for forecast push")
		return nil
	}
}
