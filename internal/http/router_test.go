package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/mflix-service/internal/http/middleware"
	"github.com/pribylovaa/mflix-service/mocks"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func do(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestRouter_Livez(t *testing.T) {
	h := NewRouter(pingFunc(func(context.Context) error { return errors.New("down") }), Options{})

	rec := do(t, h, "/livez")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get(middleware.HeaderRequestID))
}

func TestRouter_Healthz(t *testing.T) {
	ms := mocks.NewMockStorage(gomock.NewController(t))
	h := NewRouter(ms, Options{})

	ms.EXPECT().Ping(gomock.Any()).DoAndReturn(func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		require.True(t, ok, "ping must run with a deadline")
		return nil
	})
	rec := do(t, h, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)

	ms.EXPECT().Ping(gomock.Any()).Return(errors.New("no primary"))
	rec = do(t, h, "/healthz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "unavailable", body["status"])
}

func TestRouter_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "mflix_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	h := NewRouter(pingFunc(func(context.Context) error { return nil }), Options{Gatherer: reg})

	rec := do(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "mflix_test_total 1"))
}

func TestRouter_UnknownRoute(t *testing.T) {
	h := NewRouter(pingFunc(func(context.Context) error { return nil }), Options{})
	require.Equal(t, http.StatusNotFound, do(t, h, "/nope").Code)
}
