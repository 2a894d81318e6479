package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftforge/draftforge/internal/store"
	"github.com/draftforge/draftforge/internal/stream"
)

func setupWS(t *testing.T) (*stream.Hub, *httptest.Server, string, func()) {
	t.Helper()

	s, cleanupDB := store.SetupTestDB(t)
	user := store.CreateTestUser(t, s)

	auth := NewAuthHandler(s, authTestConfig())
	token, _, err := auth.issueToken(user, time.Hour)
	require.NoError(t, err)

	hub := stream.NewHub()
	h := NewWSHandler(hub, auth, []string{"http://localhost:5173"})

	r := SetupTestRouter()
	r.GET("/ws/:client_id", h.Handle)
	srv := httptest.NewServer(r)

	cleanup := func() {
		srv.Close()
		cleanupDB()
	}
	return hub, srv, token, cleanup
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

// waitSubscribers polls until the hub reaches the wanted subscriber count.
func waitSubscribers(t *testing.T, hub *stream.Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Subscribers() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("hub never reached %d subscribers", want)
}

func TestWS_StreamsEvents(t *testing.T) {
	hub, srv, token, cleanup := setupWS(t)
	defer cleanup()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/client-1?token="+token), nil)
	require.NoError(t, err)
	defer conn.Close()

	waitSubscribers(t, hub, 1)
	hub.Send("client-1", stream.Event{
		Type:      stream.EventSectionCompleted,
		Section:   &stream.SectionEvent{SectionID: "s1", Title: "Intro", Tokens: 42},
		Timestamp: time.Now(),
	})

	var ev stream.Event
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, stream.EventSectionCompleted, ev.Type)
	require.NotNil(t, ev.Section)
	assert.Equal(t, "Intro", ev.Section.Title)
	assert.Equal(t, 42, ev.Section.Tokens)
}

func TestWS_RequiresToken(t *testing.T) {
	_, srv, token, cleanup := setupWS(t)
	defer cleanup()

	t.Run("missing token", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/ws/client-1")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("invalid token", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/client-1?token=forged"), nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("valid token upgrades", func(t *testing.T) {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/client-1?token="+token), nil)
		require.NoError(t, err)
		conn.Close()
	})
}

func TestWS_ReconnectReplacesSubscriber(t *testing.T) {
	hub, srv, token, cleanup := setupWS(t)
	defer cleanup()

	first, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/client-1?token="+token), nil)
	require.NoError(t, err)
	defer first.Close()
	waitSubscribers(t, hub, 1)

	second, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/client-1?token="+token), nil)
	require.NoError(t, err)
	defer second.Close()

	// The first connection gets a going-away close
	require.NoError(t, first.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = first.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.CloseGoingAway, closeErr.Code)

	// Events now land on the second connection
	assert.Equal(t, 1, hub.Subscribers())
	hub.Send("client-1", stream.Event{Type: stream.EventJobCompleted, Timestamp: time.Now()})

	var ev stream.Event
	require.NoError(t, second.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, second.ReadJSON(&ev))
	assert.Equal(t, stream.EventJobCompleted, ev.Type)
}

func TestWS_OriginWhitelist(t *testing.T) {
	_, srv, token, cleanup := setupWS(t)
	defer cleanup()

	t.Run("whitelisted origin", func(t *testing.T) {
		header := http.Header{"Origin": []string{"http://localhost:5173"}}
		conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/client-1?token="+token), header)
		require.NoError(t, err)
		conn.Close()
	})

	t.Run("foreign origin refused", func(t *testing.T) {
		header := http.Header{"Origin": []string{"http://evil.test"}}
		_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/client-1?token="+token), header)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}
