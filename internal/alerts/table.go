// Package alerts implements the paginated alerts table and its per-row
// operator actions.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/good-yellow-bee/pondview/internal/models"
	"github.com/good-yellow-bee/pondview/internal/pondapi"
)

// DefaultPageSize is the number of rows per page.
const DefaultPageSize = 8

// Event filter values understood by the pond server.
const (
	EventAll    = "allodd"
	EventWater  = "waterodd"
	EventAction = "actionodd"
	EventFood   = "foododd"
)

// PoolAll selects alerts of every pond.
const PoolAll = "all"

// Table messages.
const (
	EmptyText       = "沒有異常事件"
	ConfirmPrompt   = "是否確認已處理？"
	StatusFailed    = "狀態更新失敗"
	NotifyFailed    = "通知失敗"
	NotifyLabel     = "未通知"
	RenotifyLabel   = "重新通知"
	queryFailedText = "錯誤: %s"
)

// Events lists the event filters with their display labels, in menu order.
var Events = []struct {
	Value string
	Label string
}{
	{EventAll, "全部異常"},
	{EventWater, "水質異常"},
	{EventAction, "行為異常"},
	{EventFood, "飼料異常"},
}

var (
	// ErrAlreadyHandled is returned when marking a handled alert again.
	ErrAlreadyHandled = errors.New("alert already handled")
	// ErrInFlight is returned while the same action on the same alert is pending.
	ErrInFlight = errors.New("action already in progress")
	// ErrNotConfirmed is returned when the operator declines the confirmation.
	ErrNotConfirmed = errors.New("not confirmed")
	// ErrNotFound is returned for an alert missing from the cached result set.
	ErrNotFound = errors.New("alert not found")
)

// Filter selects which alerts a query returns.
type Filter struct {
	Pool  string
	Event string
}

// Normalize fills empty fields with their defaults.
func (f Filter) Normalize() Filter {
	if f.Pool == "" {
		f.Pool = PoolAll
	}
	if !ValidEvent(f.Event) {
		f.Event = EventAll
	}
	return f
}

// ValidEvent reports whether event is a known event filter.
func ValidEvent(event string) bool {
	for _, e := range Events {
		if e.Value == event {
			return true
		}
	}
	return false
}

// Source is the pond server surface the table needs. *pondapi.Client implements it.
type Source interface {
	Alerts(ctx context.Context, pool, event string) ([]models.Alert, error)
	MarkAlertHandled(ctx context.Context, id models.AlertID) (string, error)
	NotifyAlert(ctx context.Context, id models.AlertID) (*pondapi.NotifyResult, error)
}

// action is one of the two row buttons.
type action int

const (
	actionStatus action = iota
	actionNotify
)

// pendingKey identifies an action in flight. The two row actions of an
// alert run independently.
type pendingKey struct {
	id     models.AlertID
	action action
}

// Options configures a Table.
type Options struct {
	PageSize int // rows per page (default: 8)
	Logger   *zap.Logger
}

// Table caches the full result set of the last query and pages through it
// locally. It is safe for concurrent use.
type Table struct {
	source   Source
	pageSize int
	logger   *zap.Logger

	mu       sync.Mutex
	filter   Filter
	alerts   []models.Alert
	queryErr string
	page     int
	pending  map[pendingKey]bool
}

// NewTable creates an empty table.
func NewTable(source Source, opts Options) *Table {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Table{
		source:   source,
		pageSize: opts.PageSize,
		logger:   opts.Logger,
		filter:   Filter{Pool: PoolAll, Event: EventAll},
		pending:  make(map[pendingKey]bool),
	}
}

// Query fetches every alert matching f, replaces the cache and returns to
// page 1. On failure the cache is cleared and the error message is kept for
// display.
func (t *Table) Query(ctx context.Context, f Filter) error {
	f = f.Normalize()
	alerts, err := t.source.Alerts(ctx, f.Pool, f.Event)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.filter = f
	t.page = 1
	if err != nil {
		t.alerts = nil
		t.queryErr = pondapi.Message(err, err.Error())
		t.logger.Warn("alerts query failed",
			zap.String("pool", f.Pool),
			zap.String("event", f.Event),
			zap.Error(err),
		)
		return fmt.Errorf("query alerts: %w", err)
	}
	t.alerts = alerts
	t.queryErr = ""
	return nil
}

// Filter returns the filter of the last query.
func (t *Table) Filter() Filter {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.filter
}

// Len returns the number of cached alerts.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.alerts)
}

// PageSize returns the number of rows per page.
func (t *Table) PageSize() int {
	return t.pageSize
}

// TotalPages returns ceil(len/pageSize); zero when there are no alerts.
func (t *Table) TotalPages() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalPagesLocked()
}

func (t *Table) totalPagesLocked() int {
	return (len(t.alerts) + t.pageSize - 1) / t.pageSize
}

// Page returns the current page, or 0 when there are no alerts.
func (t *Table) Page() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pageLocked()
}

func (t *Table) pageLocked() int {
	total := t.totalPagesLocked()
	if total == 0 {
		return 0
	}
	return min(max(t.page, 1), total)
}

// SetPage moves to page n, clamped into [1, TotalPages].
func (t *Table) SetPage(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.page = n
	t.page = t.pageLocked()
}

// Prev moves one page back. It does nothing on the first page.
func (t *Table) Prev() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p := t.pageLocked(); p > 1 {
		t.page = p - 1
	}
}

// Next moves one page forward. It does nothing on the last page.
func (t *Table) Next() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p := t.pageLocked(); p < t.totalPagesLocked() {
		t.page = p + 1
	}
}

// Alert returns a copy of the cached alert with id.
func (t *Table) Alert(id models.AlertID) (models.Alert, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i := t.indexLocked(id); i >= 0 {
		return t.alerts[i], true
	}
	return models.Alert{}, false
}

// Alerts returns a copy of the full cached result set.
func (t *Table) Alerts() []models.Alert {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]models.Alert(nil), t.alerts...)
}

func (t *Table) indexLocked(id models.AlertID) int {
	for i := range t.alerts {
		if t.alerts[i].ID == id {
			return i
		}
	}
	return -1
}
