package pondapi

import (
	"context"
	"net/http"

	"github.com/good-yellow-bee/pondview/internal/models"
)

// LatestData fetches the current sensor snapshot of a pond.
func (c *Client) LatestData(ctx context.Context, poolID string) (*models.SensorSnapshot, error) {
	var snap models.SensorSnapshot
	err := c.do(ctx, call{
		endpoint:   "latest_data",
		method:     http.MethodGet,
		path:       "/api/latest-data/{pool}",
		pathParams: map[string]string{"pool": poolID},
	}, &snap, false)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// ActionStatus fetches the automated-action health of a pond.
func (c *Client) ActionStatus(ctx context.Context, poolID string) (*models.ActionStatus, error) {
	var status models.ActionStatus
	err := c.do(ctx, call{
		endpoint: "action_status",
		method:   http.MethodGet,
		path:     "/api/action-status",
		query:    map[string]string{"pool_id": poolID},
	}, &status, false)
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// SettingResult is the server's view of one stored setting.
type SettingResult struct {
	Value     *float64 `json:"value"`
	UpdatedAt string   `json:"updated_at"`
}

// GetSetting fetches the stored value of a setting for a pond.
func (c *Client) GetSetting(ctx context.Context, poolID string, settingType models.SettingType) (*SettingResult, error) {
	var res SettingResult
	err := c.do(ctx, call{
		endpoint: "settings.get",
		method:   http.MethodGet,
		path:     "/api/settings",
		query: map[string]string{
			"pool_id":      poolID,
			"setting_type": string(settingType),
		},
	}, &res, true)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// SaveSetting stores a setting value and returns the confirmed value.
func (c *Client) SaveSetting(ctx context.Context, s models.Setting) (*SettingResult, error) {
	var res SettingResult
	err := c.do(ctx, call{
		endpoint: "settings.save",
		method:   http.MethodPost,
		path:     "/api/settings",
		body: map[string]any{
			"pool_id":      s.PoolID,
			"setting_type": s.SettingType,
			"value":        s.Value,
		},
	}, &res, true)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Alerts lists every alert matching the pool and event filters.
func (c *Client) Alerts(ctx context.Context, pool, event string) ([]models.Alert, error) {
	var alerts []models.Alert
	err := c.do(ctx, call{
		endpoint: "alerts.list",
		method:   http.MethodGet,
		path:     "/api/alerts",
		query:    map[string]string{"pool": pool, "event": event},
	}, &alerts, false)
	if err != nil {
		return nil, err
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}
	return alerts, nil
}

// MarkAlertHandled marks an alert handled and returns the new status.
func (c *Client) MarkAlertHandled(ctx context.Context, id models.AlertID) (string, error) {
	var res struct {
		Status string `json:"status"`
	}
	err := c.do(ctx, call{
		endpoint:   "alerts.status",
		method:     http.MethodPost,
		path:       "/api/alerts/{id}/status",
		pathParams: map[string]string{"id": string(id)},
	}, &res, true)
	if err != nil {
		return "", err
	}
	return res.Status, nil
}

// NotifyResult is the outcome of a manual alert notification.
type NotifyResult struct {
	NotifiedAt  string `json:"notified_at"`
	NotifyCount int    `json:"notify_count"`
}

// NotifyAlert sends (or resends) the notification for an alert.
func (c *Client) NotifyAlert(ctx context.Context, id models.AlertID) (*NotifyResult, error) {
	var res NotifyResult
	err := c.do(ctx, call{
		endpoint:   "alerts.notify",
		method:     http.MethodPost,
		path:       "/api/alerts/{id}/notify",
		pathParams: map[string]string{"id": string(id)},
	}, &res, true)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ThresholdsResult is the outcome of a batch threshold update.
type ThresholdsResult struct {
	CreatedAt string `json:"created_at"`
}

// SaveThresholds submits all sensor thresholds as one batch.
func (c *Client) SaveThresholds(ctx context.Context, t models.Thresholds) (*ThresholdsResult, error) {
	var res ThresholdsResult
	err := c.do(ctx, call{
		endpoint: "oddset",
		method:   http.MethodPost,
		path:     "/oddset",
		body:     t,
	}, &res, true)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// History fetches all readings between start and end, grouped by metric then pool.
// Dates use the server's "2006-01-02 15:04:05" format.
func (c *Client) History(ctx context.Context, start, end string) (models.HistoryDataset, error) {
	dataset := models.HistoryDataset{}
	err := c.do(ctx, call{
		endpoint: "history.range",
		method:   http.MethodPost,
		path:     "/api/history",
		body:     map[string]string{"start_date": start, "end_date": end},
	}, &dataset, false)
	if err != nil {
		return nil, err
	}
	return dataset, nil
}

// LatestHistory fetches the most recent rows of a pond, newest first.
func (c *Client) LatestHistory(ctx context.Context, poolID string) ([]models.HistoryRow, error) {
	var rows []models.HistoryRow
	err := c.do(ctx, call{
		endpoint:   "history.latest",
		method:     http.MethodGet,
		path:       "/api/history/latest/{pool}",
		pathParams: map[string]string{"pool": poolID},
	}, &rows, false)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
