package httpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/queuekit/pkg/httpserver"
)

type readiness struct {
	Status string `json:"status"`
	Checks map[string]struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	} `json:"checks"`
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRouter_Healthz(t *testing.T) {
	t.Parallel()
	r := httpserver.NewRouter(httpserver.WithGatherer(prometheus.NewRegistry()))

	rec := get(t, r, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ALIVE", rec.Body.String())
}

func TestRouter_Readyz(t *testing.T) {
	t.Parallel()

	t.Run("all checks pass", func(t *testing.T) {
		t.Parallel()
		r := httpserver.NewRouter(
			httpserver.WithGatherer(prometheus.NewRegistry()),
			httpserver.WithChecks(
				httpserver.NewCheck("store", func(context.Context) error { return nil }),
				httpserver.NewCheck("worker", func(context.Context) error { return nil }),
			),
		)

		rec := get(t, r, "/readyz")
		require.Equal(t, http.StatusOK, rec.Code)

		var body readiness
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ready", body.Status)
		assert.Equal(t, "ok", body.Checks["store"].Status)
		assert.Equal(t, "ok", body.Checks["worker"].Status)
	})

	t.Run("failing check", func(t *testing.T) {
		t.Parallel()
		r := httpserver.NewRouter(
			httpserver.WithGatherer(prometheus.NewRegistry()),
			httpserver.WithChecks(
				httpserver.NewCheck("store", func(context.Context) error { return errors.New("connection refused") }),
				httpserver.NewCheck("worker", func(context.Context) error { return nil }),
			),
		)

		rec := get(t, r, "/readyz")
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var body readiness
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "not_ready", body.Status)
		assert.Equal(t, "fail", body.Checks["store"].Status)
		assert.Equal(t, "connection refused", body.Checks["store"].Error)
		assert.Equal(t, "ok", body.Checks["worker"].Status)
	})

	t.Run("checks share a deadline", func(t *testing.T) {
		t.Parallel()
		r := httpserver.NewRouter(
			httpserver.WithGatherer(prometheus.NewRegistry()),
			httpserver.WithCheckTimeout(20*time.Millisecond),
			httpserver.WithChecks(httpserver.NewCheck("slow", func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			})),
		)

		rec := get(t, r, "/readyz")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "deadline exceeded")
	})

	t.Run("no checks", func(t *testing.T) {
		t.Parallel()
		r := httpserver.NewRouter(httpserver.WithGatherer(prometheus.NewRegistry()))
		assert.Equal(t, http.StatusOK, get(t, r, "/readyz").Code)
	})
}

func TestRouter_Metrics(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "queuekit_test_total",
		Help: "Test counter.",
	})
	reg.MustRegister(counter)
	counter.Add(3)

	r := httpserver.NewRouter(httpserver.WithGatherer(reg))

	rec := get(t, r, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "queuekit_test_total 3"))
}

func TestRouter_UnknownRoute(t *testing.T) {
	t.Parallel()
	r := httpserver.NewRouter(httpserver.WithGatherer(prometheus.NewRegistry()))
	assert.Equal(t, http.StatusNotFound, get(t, r, "/jobs").Code)
}
