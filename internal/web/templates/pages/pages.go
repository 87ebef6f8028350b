// Package pages renders the HTML pages and fragments of the web UI.
//
// The markup lives in the .templ files.
package pages

//go:generate templ generate

import (
	"net/url"
	"strconv"

	"github.com/good-yellow-bee/pondview/internal/alerts"
	"github.com/good-yellow-bee/pondview/internal/dashboard"
	"github.com/good-yellow-bee/pondview/internal/models"
	"github.com/good-yellow-bee/pondview/internal/settings"
)

// Page carries what every full page needs.
type Page struct {
	Title     string
	Active    string // nav entry: dashboard, alerts, history, thresholds
	User      string // logged in operator, empty when accounts are off
	CSRFToken string
	Nonce     string
}

type navItem struct {
	key, href, label string
}

var nav = []navItem{
	{"dashboard", "/dashboard", "即時監控"},
	{"alerts", "/alerts", "異常事件"},
	{"history", "/history", "歷史資料"},
	{"thresholds", "/thresholds", "閾值設定"},
}

const (
	htmxURL      = "https://cdn.jsdelivr.net/npm/htmx.org@2.0.4/dist/htmx.min.js"
	chartJSURL   = "https://cdn.jsdelivr.net/npm/chart.js@4.4.1/dist/chart.umd.min.js"
	highstockURL = "https://cdn.jsdelivr.net/npm/highcharts@11.4.8/highstock.js"
)

// csrfField is the form field gorilla/csrf reads the token from.
const csrfField = "gorilla.csrf.Token"

func csrfHeaders(token string) string {
	return `{"X-CSRF-Token": "` + token + `"}`
}

// DashboardData is the live dashboard page.
type DashboardData struct {
	Pools []string
	View  dashboard.View
}

type indicatorSlot struct {
	id string
	dashboard.Indicator
}

func indicators(v dashboard.View) []indicatorSlot {
	return []indicatorSlot{{"indicator-food", v.Food}, {"indicator-behavior", v.Behavior}}
}

var settingButtons = []models.SettingType{models.SettingInterval, models.SettingFeed}

func settingTitle(t models.SettingType) string {
	b, _ := settings.BoundsFor(t)
	return b.Title
}

// AlertsData is the alerts page.
type AlertsData struct {
	Pools []string
	Table alerts.TableView
}

var alertColumns = []string{"池號", "事件類型", "描述", "發生時間", "結束時間", "狀態", "通知"}

func alertCells(row alerts.Row) []string {
	a := row.Alert
	return []string{a.Pool, a.Type, a.Description, row.Time, row.EndTime}
}

var alertColspan = strconv.Itoa(len(alertColumns))

func alertActionURL(id models.AlertID, action string) string {
	return "/alerts/" + url.PathEscape(string(id)) + "/" + action
}

func pageURL(page int) string {
	return "/alerts/table?page=" + strconv.Itoa(page)
}

// HistoryData is the history page.
type HistoryData struct {
	Pools []string
	Pool  string
	Start string // datetime-local value
	End   string
}

// DateTimeInput is the layout of datetime-local form values.
const DateTimeInput = "2006-01-02T15:04"

// LoginData is the login page.
type LoginData struct {
	CSRFToken string
	Username  string
	Error     string
}

func poolLabel(pool string) string {
	return pool + " 號池"
}

func number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
