package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Alert status values reported by the pond server.
const (
	AlertStatusHandled = "已處理"
	AlertStatusPending = "未處理"
)

// AlertID identifies an alert. The server may send it as a number or a string.
type AlertID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *AlertID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = AlertID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("alert id: %w", err)
	}
	*id = AlertID(n.String())
	return nil
}

// Alert is one abnormal event as listed by the pond server.
type Alert struct {
	ID          AlertID `json:"id"`
	Pool        string  `json:"pool"`
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Time        string  `json:"time"`
	EndTime     string  `json:"end_time"`
	Status      string  `json:"status"`
	Notified    bool    `json:"notified"`
	NotifiedAt  string  `json:"notified_at"`
	NotifyCount int     `json:"notify_count"`
}

// Handled reports whether the alert reached its terminal status.
func (a *Alert) Handled() bool {
	return a.Status == AlertStatusHandled
}

// DisplayStatus returns the status label, defaulting to pending.
func (a *Alert) DisplayStatus() string {
	if a.Status == "" {
		return AlertStatusPending
	}
	return a.Status
}
