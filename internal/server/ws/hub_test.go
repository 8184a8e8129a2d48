package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lpdesk/lpdesk/internal/domain"
)

type fakeWatcher struct {
	statuses []domain.FetchStatus
}

func (f *fakeWatcher) Apply(_ context.Context, _ string, res domain.PositionsResult, _ domain.Preferences) (string, domain.DerivedView) {
	f.statuses = append(f.statuses, res.Status)
	return "sess-1", domain.DerivedView{Account: res.Account, Positions: []domain.Position{}, Status: res.Status}
}

func (f *fakeWatcher) View(_ context.Context, session, account string, _ domain.Preferences) (string, domain.DerivedView, error) {
	f.statuses = append(f.statuses, domain.FetchReady)
	return session, domain.DerivedView{
		Account:   account,
		Positions: []domain.Position{{TokenID: big.NewInt(1), Liquidity: big.NewInt(1)}},
		Newest:    big.NewInt(1),
		Status:    domain.FetchReady,
	}, nil
}

func (f *fakeWatcher) Drop(string) bool { return true }

func startHub(t *testing.T, w PositionWatcher) *websocket.Conn {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := NewHub(nil, w, logger, Config{Mode: "server"})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func TestHub_StatusOnConnect(t *testing.T) {
	conn := startHub(t, nil)

	env := readFrame(t, conn)
	assert.Equal(t, "status", env.Type)
	assert.Contains(t, string(env.Payload), `"mode":"server"`)
}

func TestHub_WatchEmitsLoadingThenView(t *testing.T) {
	w := &fakeWatcher{}
	conn := startHub(t, w)
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "watch", "account": "0xabc"}))

	first := readFrame(t, conn)
	second := readFrame(t, conn)
	assert.Equal(t, ChannelPositions, first.Type)
	assert.Contains(t, string(first.Payload), `"status":"loading"`)
	assert.Contains(t, string(second.Payload), `"status":"ready"`)
	assert.Contains(t, string(second.Payload), `"session":"sess-1"`)
}

func TestHub_UnknownAction(t *testing.T) {
	conn := startHub(t, nil)
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "dance"}))

	env := readFrame(t, conn)
	assert.Equal(t, "error", env.Type)
}

func TestHub_FanOutRoutesPositionsBySession(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := NewHub(nil, nil, logger, Config{})
	mine := &client{send: make(chan []byte, 4), subs: map[string]bool{ChannelPositions: true}, session: "a"}
	other := &client{send: make(chan []byte, 4), subs: map[string]bool{ChannelPositions: true, ChannelLocks: true}, session: "b"}
	hub.clients[mine] = true
	hub.clients[other] = true

	hub.fanOut(broadcastMsg{channel: ChannelPositions, data: []byte(`{"session":"a","view":{}}`)})
	hub.fanOut(broadcastMsg{channel: ChannelLocks, data: []byte(`{"event":"locks_updated"}`)})

	assert.Len(t, mine.send, 1)
	assert.Len(t, other.send, 1, "other only gets the locks update")
}

func TestHub_LeaveAfterShutdownReturns(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := NewHub(nil, nil, logger, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		_ = hub.Run(ctx)
		close(stopped)
	}()

	c := &client{hub: hub, send: make(chan []byte, 1), subs: map[string]bool{}}
	require.True(t, hub.join(c))
	cancel()
	<-stopped

	left := make(chan struct{})
	go func() {
		hub.leave(c)
		close(left)
	}()
	select {
	case <-left:
	case <-time.After(time.Second):
		t.Fatal("leave blocked after the hub stopped")
	}
	assert.False(t, hub.join(&client{hub: hub}))
}
