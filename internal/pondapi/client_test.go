package pondapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/good-yellow-bee/pondview/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := New(Config{BaseURL: server.URL, Timeout: 5 * time.Second}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
		errMsg  string
	}{
		{name: "empty config", config: Config{}, wantErr: true, errMsg: "base URL is required"},
		{name: "bad scheme", config: Config{BaseURL: "ftp://pond"}, wantErr: true, errMsg: "must start with"},
		{name: "negative rate", config: Config{BaseURL: "http://pond", RateLimit: -1}, wantErr: true, errMsg: "rate limit"},
		{name: "valid config", config: Config{BaseURL: "http://pond:1000"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error containing %q, got nil", tt.errMsg)
				} else if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("expected error containing %q, got %q", tt.errMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestLatestData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/latest-data/2" {
			t.Errorf("path = %s, want /api/latest-data/2", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"timestamp":"2024-01-01 08:00:00","temp":26.4,"psu":10,"ph":7.1,"do":6.2,"orp":250,"abnormal":{"temp":true}}`))
	})

	snap, err := c.LatestData(context.Background(), "2")
	if err != nil {
		t.Fatalf("LatestData: %v", err)
	}
	if snap.Timestamp != "2024-01-01 08:00:00" {
		t.Errorf("timestamp = %q", snap.Timestamp)
	}
	if !snap.IsAbnormal(models.SensorTemp) {
		t.Error("expected temp abnormal")
	}
}

func TestActionStatusQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("pool_id"); got != "3" {
			t.Errorf("pool_id = %q, want 3", got)
		}
		w.Write([]byte(`{"food":{"abnormal":true,"description":"殘餌過多"},"behavior":{"abnormal":false}}`))
	})

	status, err := c.ActionStatus(context.Background(), "3")
	if err != nil {
		t.Fatalf("ActionStatus: %v", err)
	}
	if !status.Food.Abnormal || status.Food.Description != "殘餌過多" {
		t.Errorf("food = %+v", status.Food)
	}
	if status.Behavior.Abnormal {
		t.Error("behavior should be normal")
	}
}

func TestFailureTaxonomy(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind Kind
		wantMsg  string
	}{
		{name: "non-2xx with message", status: http.StatusNotFound, body: `{"error":"No data found"}`, wantKind: KindStatus, wantMsg: "No data found"},
		{name: "non-2xx without body", status: http.StatusInternalServerError, body: ``, wantKind: KindStatus, wantMsg: "fallback"},
		{name: "html body", status: http.StatusBadGateway, body: `<html>bad gateway</html>`, wantKind: KindDecode, wantMsg: "伺服器回傳非 JSON（HTTP 502）：<html>bad gateway</html>"},
		{name: "success false", status: http.StatusOK, body: `{"success":false,"message":"已處理過"}`, wantKind: KindBusiness, wantMsg: "已處理過"},
		{name: "missing success", status: http.StatusOK, body: `{"status":"已處理"}`, wantKind: KindBusiness, wantMsg: "fallback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := c.MarkAlertHandled(context.Background(), "7")
			if err == nil {
				t.Fatal("expected error")
			}
			if !IsKind(err, tt.wantKind) {
				t.Errorf("error %v is not kind %v", err, tt.wantKind)
			}
			if got := Message(err, "fallback"); got != tt.wantMsg {
				t.Errorf("Message() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c, err := New(Config{BaseURL: url, Timeout: time.Second}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.LatestData(context.Background(), "1")
	if !IsKind(err, KindTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if got := Message(err, "無法取得資料"); got != "無法取得資料" {
		t.Errorf("Message() = %q", got)
	}
}

func TestDecodeSnippetIsTruncated(t *testing.T) {
	long := strings.Repeat("x", 500)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(long))
	})

	_, err := c.NotifyAlert(context.Background(), "1")
	var apiErr *Error
	if !IsKind(err, KindDecode) {
		t.Fatalf("expected decode error, got %v", err)
	}
	apiErr = err.(*Error)
	if len(apiErr.Snippet) != snippetLimit {
		t.Errorf("snippet length = %d, want %d", len(apiErr.Snippet), snippetLimit)
	}
}

func TestNotifyAlert(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/api/alerts/15/notify" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"success":true,"notified_at":"2024-01-01 00:00","notify_count":2}`))
	})

	res, err := c.NotifyAlert(context.Background(), "15")
	if err != nil {
		t.Fatalf("NotifyAlert: %v", err)
	}
	if res.NotifyCount != 2 || res.NotifiedAt != "2024-01-01 00:00" {
		t.Errorf("result = %+v", res)
	}
}

func TestAlertsQueryAndEmptyList(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("pool") != "1" || q.Get("event") != "all" {
			t.Errorf("query = %v", q)
		}
		w.Write([]byte(`[]`))
	})

	alerts, err := c.Alerts(context.Background(), "1", "all")
	if err != nil {
		t.Fatalf("Alerts: %v", err)
	}
	if alerts == nil || len(alerts) != 0 {
		t.Errorf("alerts = %#v, want empty non-nil slice", alerts)
	}
}

func TestSaveSettingBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
			t.Errorf("Content-Type = %s", ct)
		}
		body, _ := io.ReadAll(r.Body)
		var got map[string]any
		if err := json.Unmarshal(body, &got); err != nil {
			t.Fatalf("unmarshal body: %v", err)
		}
		if got["pool_id"] != "2" || got["setting_type"] != "feed" || got["value"] != float64(120) {
			t.Errorf("body = %v", got)
		}
		w.Write([]byte(`{"success":true,"value":120,"updated_at":"2024-03-01 10:00:00"}`))
	})

	res, err := c.SaveSetting(context.Background(), models.Setting{PoolID: "2", SettingType: models.SettingFeed, Value: 120})
	if err != nil {
		t.Fatalf("SaveSetting: %v", err)
	}
	if res.Value == nil || *res.Value != 120 {
		t.Errorf("value = %v", res.Value)
	}
}

func TestSaveThresholdsBusinessError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"success":false,"error":"temp_min missing"}`))
	})

	_, err := c.SaveThresholds(context.Background(), models.DefaultThresholds())
	if err == nil {
		t.Fatal("expected error")
	}
	if got := Message(err, ""); got != "temp_min missing" {
		t.Errorf("Message() = %q", got)
	}
}

func TestHistoryDataset(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"start_date":"2024-01-01 00:00:00"`) {
			t.Errorf("body = %s", body)
		}
		w.Write([]byte(`{"temp":{"pool1":[{"timestamp":"2024-01-01 00:00:00","value":25.1},{"timestamp":"2024-01-01 00:01:00","value":null}]},"ph":{}}`))
	})

	ds, err := c.History(context.Background(), "2024-01-01 00:00:00", "2024-01-02 00:00:00")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if !ds.HasData(models.SensorTemp) {
		t.Error("expected temp data")
	}
	if ds.HasData(models.SensorPH) {
		t.Error("expected no ph data")
	}
	if ds[models.SensorTemp]["pool1"][1].Value.Finite() {
		t.Error("null value should decode as non-finite")
	}
}

func TestRateLimiterHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c, err := New(Config{BaseURL: server.URL, RateLimit: 0.001, Burst: 1}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.ActionStatus(context.Background(), "1"); err != nil {
		t.Fatalf("first call: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.ActionStatus(ctx, "1"); !IsKind(err, KindTransport) {
		t.Errorf("expected limiter wait to fail as transport error, got %v", err)
	}
}
