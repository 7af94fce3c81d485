package web

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"sportlink/internal/telemetry"
)

type fixedSnapshot telemetry.Snapshot

func (f fixedSnapshot) Snapshot() telemetry.Snapshot { return telemetry.Snapshot(f) }

func newTestHandler(t *testing.T) (http.Handler, *LogBuffer, *Broadcaster) {
	t.Helper()
	logs := NewLogBuffer(10)
	live := NewBroadcaster()
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "sportlink_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Add(3)

	h := Handler(Options{
		Telemetry: fixedSnapshot{Source: "sim", Valid: true, LatE6: 52520817, AltMeters: 120},
		Logs:      logs,
		Live:      live,
		Gatherer:  reg,
		Logger:    zerolog.Nop(),
		Started:   time.Now().Add(-10 * time.Second),
	})
	return h, logs, live
}

func TestStatus(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "sportlink", resp.Service)
	require.GreaterOrEqual(t, resp.UptimeSec, int64(10))
	require.True(t, resp.Telemetry.Valid)
	require.Equal(t, int32(52520817), resp.Telemetry.LatE6)
	require.Equal(t, int16(120), resp.Telemetry.AltMeters)
}

func TestStatusRejectsPost(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/status", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.Equal(t, http.MethodGet, rec.Header().Get("Allow"))
}

func TestLogsEndpoint(t *testing.T) {
	h, logs, _ := newTestHandler(t)
	_, _ = logs.Write([]byte("one\ntwo\nthree\n"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/logs?tail=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp LogsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, []string{"two", "three"}, resp.Lines)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/logs?format=text", nil))
	require.Equal(t, "one\ntwo\nthree\n", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/logs?tail=0", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "sportlink_test_total 3")
}

func TestIndexAndNotFound(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.HasPrefix(rec.Body.String(), "sportlink"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLiveWebSocket(t *testing.T) {
	h, _, live := newTestHandler(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	require.Eventually(t, func() bool { return live.Subscribers() == 1 }, 2*time.Second, 5*time.Millisecond)

	live.Publish(telemetry.Snapshot{Source: "sim", LonE6: -1234567})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got telemetry.Snapshot
	require.NoError(t, conn.ReadJSON(&got))
	require.Equal(t, "sim", got.Source)
	require.Equal(t, int32(-1234567), got.LonE6)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	require.Eventually(t, func() bool { return live.Subscribers() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestServerShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	h, _, _ := newTestHandler(t)
	s := NewServer(ln.Addr().String(), h, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	var res *http.Response
	require.Eventually(t, func() bool {
		r, err := http.Get("http://" + ln.Addr().String() + "/api/status")
		if err != nil {
			return false
		}
		res = r
		return true
	}, 2*time.Second, 10*time.Millisecond)
	body, err := io.ReadAll(res.Body)
	_ = res.Body.Close()
	require.NoError(t, err)
	require.Contains(t, string(body), `"service": "sportlink"`)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
