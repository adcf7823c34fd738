package admin

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danmuck/udpstream/internal/receiver"
	"github.com/danmuck/udpstream/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	s.HTTPRouter().ServeHTTP(rr, req)
	return rr
}

func TestHealthAndNodeIdentity(t *testing.T) {
	testlog.Start(t)
	s := Appear("receiver", "recv-a", ":0", nil)
	require.Equal(t, "recv-a", s.NodeID())
	require.Equal(t, "receiver", s.Kind())

	rr := get(t, s, "/health")
	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
	require.Equal(t, "recv-a", body["service"])
}

func TestReadyTracksState(t *testing.T) {
	testlog.Start(t)
	s := Appear("receiver", "recv-a", ":0", nil)
	require.Equal(t, http.StatusServiceUnavailable, get(t, s, "/ready").Code)
	s.SetReady(true)
	require.Equal(t, http.StatusOK, get(t, s, "/ready").Code)
}

func TestStatsRoute(t *testing.T) {
	testlog.Start(t)
	s := Appear("receiver", "recv-a", ":0", nil)
	require.Equal(t, http.StatusNotFound, get(t, s, "/stats").Code)

	s.SetStats(func() any {
		return receiver.StatsSnapshot{Datagrams: 12, Completed: 3, Malformed: 1}
	})
	rr := get(t, s, "/stats")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Service string                 `json:"service"`
		Stats   receiver.StatsSnapshot `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "recv-a", body.Service)
	require.Equal(t, uint64(12), body.Stats.Datagrams)
	require.Equal(t, uint64(3), body.Stats.Completed)
}

func TestMetricsRoute(t *testing.T) {
	testlog.Start(t)
	s := Appear("receiver", "recv-a", ":0", nil)
	get(t, s, "/health")

	rr := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "udpstream_http_requests_total")
}

func TestServeStopsOnCancel(t *testing.T) {
	testlog.Start(t)
	s := Appear("sender", "send-a", "127.0.0.1:0", nil)
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ServeListener(ctx, lis) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + lis.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "server did not stop")
	}
}
