package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/couchcryptid/ispu-monitor-service/internal/adapter/ispuapi"
)

func TestCheckUpstream(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    bool
		wantLog string
	}{
		{"healthy", http.StatusOK, `{"success": true, "data": {"status": "ok"}}`, true, "upstream reachable"},
		{"unhealthy", http.StatusServiceUnavailable, "maintenance", false, "upstream health check failed"},
		{"unsuccessful envelope", http.StatusOK, `{"success": false}`, false, "API request failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, ispuapi.PathHealth, r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			t.Cleanup(srv.Close)

			var logs bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&logs, nil))
			client := ispuapi.NewClient(srv.URL, time.Second, nil, logger)

			assert.Equal(t, tt.want, checkUpstream(context.Background(), client, time.Second, logger))
			assert.Contains(t, logs.String(), tt.wantLog)
		})
	}
}
