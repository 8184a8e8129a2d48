package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lpdesk/lpdesk/internal/server/handler"
	"github.com/lpdesk/lpdesk/internal/service"
)

func TestRoutes_AuthAndRouting(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	farms := service.NewFarmService(service.FarmLists{LP: []string{"0xa"}, Dual: []string{"0xb"}}, nil)
	h := Routes(Config{APIKey: "k"}, Handlers{
		Health: handler.NewHealthHandler(nil, logger),
		Farms:  handler.NewFarmHandler(farms, logger),
	}, nil, nil, logger)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "health needs no key")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/farms/dual", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/farms/dual", nil)
	req.Header.Set("X-API-Key", "k")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"addresses":["0xb"]}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/api/positions", nil)
	req.Header.Set("X-API-Key", "k")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code, "unregistered handlers are not routed")
}
