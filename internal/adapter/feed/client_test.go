package feed

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/quake-map-service/internal/domain"
	"github.com/couchcryptid/quake-map-service/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
	izmirPayload      = `{"data":{"Izmir":[{"Date":"2023-02-06","Time":"04:17","Depth":10,"Magnitude":6.5,"Coordinates":[27.1,38.4],"CityName":"Izmir"}]}}`
)

func testClient(liveURL, storedURL string, timeout time.Duration) *Client {
	return NewClient(liveURL, storedURL, timeout,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		observability.NewMetricsForTesting())
}

func TestClient_Fetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/live", r.URL.Path)
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(izmirPayload))
	}))
	defer srv.Close()

	c := testClient(srv.URL+"/live", srv.URL+"/stored", 5*time.Second)
	got := c.Fetch(context.Background(), domain.Live)

	require.Len(t, got["Izmir"], 1)
	assert.Equal(t, 6.5, got["Izmir"][0].Magnitude)
}

func TestClient_Fetch_UsesModeEndpoint(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL+"/live", srv.URL+"/stored", 5*time.Second)
	c.Fetch(context.Background(), domain.Stored)
	c.Fetch(context.Background(), domain.Live)

	assert.Equal(t, []string{"/stored", "/live"}, paths)
}

func TestClient_Fetch_MissingData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	got := testClient(srv.URL, srv.URL, 5*time.Second).Fetch(context.Background(), domain.Live)

	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestClient_Fetch_FailsSoft(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"message":"boom"}`))
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"data": [`))
			},
		},
		{
			name: "wrong shape",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"data": ["Izmir"]}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			got := testClient(srv.URL, srv.URL, 5*time.Second).Fetch(context.Background(), domain.Live)

			assert.NotNil(t, got)
			assert.Empty(t, got)
		})
	}
}

func TestClient_Fetch_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	got := testClient(url, url, time.Second).Fetch(context.Background(), domain.Live)

	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestClient_Fetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(izmirPayload))
	}))
	defer srv.Close()

	got := testClient(srv.URL, srv.URL, 50*time.Millisecond).Fetch(context.Background(), domain.Live)

	assert.Empty(t, got)
}

func TestClient_Fetch_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(izmirPayload))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	metrics := observability.NewMetricsForTesting()
	c := NewClient(srv.URL, srv.URL, 5*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)), metrics)

	got := c.Fetch(ctx, domain.Live)

	assert.Empty(t, got)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FetchRequests.WithLabelValues("live", "cancelled")))
	assert.Zero(t, testutil.ToFloat64(metrics.FetchRequests.WithLabelValues("live", "error")))
}

func TestClient_Fetch_ServerErrorCountsAsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	metrics := observability.NewMetricsForTesting()
	c := NewClient(srv.URL, srv.URL, 5*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)), metrics)

	assert.Empty(t, c.Fetch(context.Background(), domain.Stored))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FetchRequests.WithLabelValues("stored", "error")))
	assert.Zero(t, testutil.ToFloat64(metrics.FetchRequests.WithLabelValues("stored", "cancelled")))
}

func TestClient_Fetch_NoEndpoint(t *testing.T) {
	got := testClient("", "", time.Second).Fetch(context.Background(), domain.Stored)

	assert.NotNil(t, got)
	assert.Empty(t, got)
}
