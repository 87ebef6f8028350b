package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestLogger(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		status  int
		logged  int
	}{
		{name: "quiet success", verbose: false, status: http.StatusOK, logged: 0},
		{name: "quiet error", verbose: false, status: http.StatusBadGateway, logged: 1},
		{name: "verbose success", verbose: true, status: http.StatusOK, logged: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.InfoLevel)
			handler := RequestLogger(zap.New(core), tt.verbose)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte("body"))
			}))

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest("GET", "/alerts", nil))

			if id := rec.Header().Get("X-Request-ID"); len(id) != 8 {
				t.Errorf("X-Request-ID = %q, want 8 chars", id)
			}
			if logs.Len() != tt.logged {
				t.Fatalf("logged %d entries, want %d", logs.Len(), tt.logged)
			}
			if tt.logged > 0 {
				fields := logs.All()[0].ContextMap()
				if fields["status"] != int64(tt.status) || fields["size"] != int64(4) {
					t.Errorf("fields = %v", fields)
				}
			}
		})
	}
}

func TestResponseWriterFlushes(t *testing.T) {
	handler := RequestLogger(zap.NewNop(), false)(PrometheusMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, ok := w.(http.Flusher)
		if !ok {
			t.Fatal("wrapped writer is not a Flusher")
		}
		w.Write([]byte("data: x\n\n"))
		f.Flush()
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/dashboard/events", nil))
	if !rec.Flushed {
		t.Error("flush did not reach the recorder")
	}
}
