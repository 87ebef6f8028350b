package alerts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/good-yellow-bee/pondview/internal/models"
	"github.com/good-yellow-bee/pondview/internal/pondapi"
)

type fakeSource struct {
	mu        sync.Mutex
	alerts    []models.Alert
	listErr   error
	statusErr error
	status    string
	notify    *pondapi.NotifyResult
	notifyErr error

	lastPool, lastEvent string
	statusCalls         int
	notifyCalls         int
	block               chan struct{} // when set, actions wait on it
}

func (f *fakeSource) Alerts(ctx context.Context, pool, event string) ([]models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastPool, f.lastEvent = pool, event
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.Alert(nil), f.alerts...), nil
}

func (f *fakeSource) MarkAlertHandled(ctx context.Context, id models.AlertID) (string, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	return f.status, f.statusErr
}

func (f *fakeSource) NotifyAlert(ctx context.Context, id models.AlertID) (*pondapi.NotifyResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifyCalls++
	if f.notifyErr != nil {
		return nil, f.notifyErr
	}
	return f.notify, nil
}

func makeAlerts(n int) []models.Alert {
	out := make([]models.Alert, n)
	for i := range out {
		out[i] = models.Alert{
			ID:     models.AlertID(fmt.Sprint(i + 1)),
			Pool:   "1",
			Type:   "水質異常",
			Time:   "2024-01-01 08:00:00",
			Status: models.AlertStatusPending,
		}
	}
	return out
}

func newLoadedTable(t *testing.T, src *fakeSource) *Table {
	t.Helper()
	tbl := NewTable(src, Options{})
	if err := tbl.Query(context.Background(), Filter{}); err != nil {
		t.Fatalf("Query: %v", err)
	}
	return tbl
}

func TestQueryDefaultsFilter(t *testing.T) {
	src := &fakeSource{}
	tbl := NewTable(src, Options{})
	if err := tbl.Query(context.Background(), Filter{Event: "bogus"}); err != nil {
		t.Fatalf("Query: %v", err)
	}
	if src.lastPool != PoolAll || src.lastEvent != EventAll {
		t.Errorf("query = %q/%q, want all/allodd", src.lastPool, src.lastEvent)
	}
}

func TestEmptyTable(t *testing.T) {
	tbl := newLoadedTable(t, &fakeSource{alerts: []models.Alert{}})
	v := tbl.View()

	if v.Message != EmptyText {
		t.Errorf("Message = %q, want %q", v.Message, EmptyText)
	}
	if v.PageLabel != "第 0 頁（共 0 頁）" {
		t.Errorf("PageLabel = %q", v.PageLabel)
	}
	if !v.PrevDisabled || !v.NextDisabled {
		t.Error("both nav buttons should be disabled")
	}
	if len(v.Rows) != 0 {
		t.Errorf("rows = %d, want 0", len(v.Rows))
	}
}

func TestQueryFailure(t *testing.T) {
	src := &fakeSource{listErr: &pondapi.Error{Kind: pondapi.KindStatus, Status: 500, Message: "db locked"}}
	tbl := NewTable(src, Options{})
	if err := tbl.Query(context.Background(), Filter{}); err == nil {
		t.Fatal("expected error")
	}

	v := tbl.View()
	if v.Message != "錯誤: db locked" {
		t.Errorf("Message = %q", v.Message)
	}
	if v.PageLabel != "" {
		t.Errorf("PageLabel = %q, want empty", v.PageLabel)
	}
	if !v.PrevDisabled || !v.NextDisabled {
		t.Error("both nav buttons should be disabled")
	}
}

func TestTotalPages(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{0, 0}, {1, 1}, {8, 1}, {9, 2}, {16, 2}, {17, 3}, {100, 13},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.n), func(t *testing.T) {
			tbl := newLoadedTable(t, &fakeSource{alerts: makeAlerts(tt.n)})
			if got := tbl.TotalPages(); got != tt.want {
				t.Errorf("TotalPages() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPagination(t *testing.T) {
	tbl := newLoadedTable(t, &fakeSource{alerts: makeAlerts(20)})

	v := tbl.View()
	if v.Page != 1 || !v.PrevDisabled || v.NextDisabled {
		t.Errorf("page 1 view = %+v", v)
	}
	if len(v.Rows) != 8 {
		t.Errorf("rows = %d, want 8", len(v.Rows))
	}

	tbl.Prev()
	if tbl.Page() != 1 {
		t.Errorf("Prev on page 1 moved to %d", tbl.Page())
	}

	tbl.Next()
	tbl.Next()
	v = tbl.View()
	if v.Page != 3 || v.PrevDisabled || !v.NextDisabled {
		t.Errorf("page 3 view = %+v", v)
	}
	if len(v.Rows) != 4 {
		t.Errorf("last page rows = %d, want 4", len(v.Rows))
	}
	if v.PageLabel != "第 3 頁（共 3 頁）" {
		t.Errorf("PageLabel = %q", v.PageLabel)
	}

	tbl.Next()
	if tbl.Page() != 3 {
		t.Errorf("Next on last page moved to %d", tbl.Page())
	}

	tbl.SetPage(99)
	if tbl.Page() != 3 {
		t.Errorf("SetPage(99) = %d, want 3", tbl.Page())
	}
	tbl.SetPage(-4)
	if tbl.Page() != 1 {
		t.Errorf("SetPage(-4) = %d, want 1", tbl.Page())
	}
}

func TestQueryResetsToFirstPage(t *testing.T) {
	tbl := newLoadedTable(t, &fakeSource{alerts: makeAlerts(20)})
	tbl.SetPage(3)
	if err := tbl.Query(context.Background(), Filter{Pool: "2", Event: EventWater}); err != nil {
		t.Fatalf("Query: %v", err)
	}
	if tbl.Page() != 1 {
		t.Errorf("Page() = %d after query, want 1", tbl.Page())
	}
	if f := tbl.Filter(); f.Pool != "2" || f.Event != EventWater {
		t.Errorf("Filter() = %+v", f)
	}
}

func TestRowFallbacks(t *testing.T) {
	tbl := newLoadedTable(t, &fakeSource{alerts: []models.Alert{{ID: "1", Time: "2024-01-01 08:00:00"}}})
	row := tbl.View().Rows[0]
	if row.EndTime != "-" {
		t.Errorf("EndTime = %q, want -", row.EndTime)
	}
	if row.Status.Label != models.AlertStatusPending || row.Status.Disabled {
		t.Errorf("status button = %+v", row.Status)
	}
	if row.Notify.Label != NotifyLabel {
		t.Errorf("notify label = %q", row.Notify.Label)
	}
}

func TestMarkHandled(t *testing.T) {
	src := &fakeSource{alerts: makeAlerts(1), status: models.AlertStatusHandled}
	tbl := newLoadedTable(t, src)

	if err := tbl.MarkHandled(context.Background(), "1", Confirmed); err != nil {
		t.Fatalf("MarkHandled: %v", err)
	}
	row := tbl.View().Rows[0]
	if row.Status.Label != models.AlertStatusHandled || !row.Status.Disabled {
		t.Errorf("status button = %+v, want handled and disabled", row.Status)
	}

	err := tbl.MarkHandled(context.Background(), "1", Confirmed)
	if !errors.Is(err, ErrAlreadyHandled) {
		t.Errorf("second MarkHandled = %v, want ErrAlreadyHandled", err)
	}
	if src.statusCalls != 1 {
		t.Errorf("status calls = %d, want 1", src.statusCalls)
	}
}

func TestMarkHandledRequiresConfirmation(t *testing.T) {
	src := &fakeSource{alerts: makeAlerts(1)}
	tbl := newLoadedTable(t, src)

	var prompt string
	err := tbl.MarkHandled(context.Background(), "1", ConfirmFunc(func(p string) bool {
		prompt = p
		return false
	}))
	if !errors.Is(err, ErrNotConfirmed) {
		t.Errorf("err = %v, want ErrNotConfirmed", err)
	}
	if prompt != ConfirmPrompt {
		t.Errorf("prompt = %q", prompt)
	}
	if src.statusCalls != 0 {
		t.Error("declined confirmation must not reach the server")
	}
}

func TestMarkHandledFailureReenables(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{name: "server message", err: &pondapi.Error{Kind: pondapi.KindBusiness, Message: "找不到事件"}, wantMsg: "找不到事件"},
		{name: "no message", err: &pondapi.Error{Kind: pondapi.KindStatus, Status: 500}, wantMsg: StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := newLoadedTable(t, &fakeSource{alerts: makeAlerts(1), statusErr: tt.err})

			err := tbl.MarkHandled(context.Background(), "1", Confirmed)
			var actionErr *ActionError
			if !errors.As(err, &actionErr) {
				t.Fatalf("err = %v, want *ActionError", err)
			}
			if actionErr.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", actionErr.Message, tt.wantMsg)
			}
			row := tbl.View().Rows[0]
			if row.Status.Disabled {
				t.Error("status button should be re-enabled after failure")
			}
		})
	}
}

func TestRowActionsRunIndependently(t *testing.T) {
	src := &fakeSource{
		alerts: makeAlerts(1),
		status: models.AlertStatusHandled,
		notify: &pondapi.NotifyResult{NotifyCount: 1},
		block:  make(chan struct{}),
	}
	tbl := newLoadedTable(t, src)

	done := make(chan error)
	go func() { done <- tbl.MarkHandled(context.Background(), "1", Confirmed) }()

	// wait until mark-handled is pending
	for {
		tbl.mu.Lock()
		pending := tbl.pending[pendingKey{"1", actionStatus}]
		tbl.mu.Unlock()
		if pending {
			break
		}
		time.Sleep(time.Millisecond)
	}

	row := tbl.View().Rows[0]
	if !row.Status.Disabled {
		t.Error("status button should be disabled while in flight")
	}
	if row.Notify.Disabled {
		t.Error("notify button should stay enabled while mark-handled is in flight")
	}
	if err := tbl.MarkHandled(context.Background(), "1", Confirmed); !errors.Is(err, ErrInFlight) {
		t.Errorf("second MarkHandled = %v, want ErrInFlight", err)
	}

	if err := tbl.Notify(context.Background(), "1"); err != nil {
		t.Fatalf("Notify during mark-handled: %v", err)
	}
	src.mu.Lock()
	notifyCalls := src.notifyCalls
	src.mu.Unlock()
	if notifyCalls != 1 {
		t.Errorf("notifyCalls = %d, want 1", notifyCalls)
	}

	close(src.block)
	if err := <-done; err != nil {
		t.Fatalf("MarkHandled: %v", err)
	}
	row = tbl.View().Rows[0]
	if !row.Status.Disabled || row.Notify.Label != RenotifyLabel {
		t.Errorf("row after both actions = %+v", row)
	}
}

func TestNotify(t *testing.T) {
	src := &fakeSource{
		alerts: makeAlerts(1),
		notify: &pondapi.NotifyResult{NotifiedAt: "2024-01-01 09:00:00", NotifyCount: 2},
	}
	tbl := newLoadedTable(t, src)

	if err := tbl.Notify(context.Background(), "1"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	a, _ := tbl.Alert("1")
	if !a.Notified || a.NotifyCount != 2 || a.NotifiedAt != "2024-01-01 09:00:00" {
		t.Errorf("cached alert = %+v", a)
	}
	row := tbl.View().Rows[0]
	if row.Notify.Label != RenotifyLabel || row.Notify.Disabled {
		t.Errorf("notify button = %+v", row.Notify)
	}
}

func TestNotifyCountNeverDecreases(t *testing.T) {
	alerts := makeAlerts(1)
	alerts[0].NotifyCount = 5
	src := &fakeSource{alerts: alerts, notify: &pondapi.NotifyResult{}}
	tbl := newLoadedTable(t, src)

	if err := tbl.Notify(context.Background(), "1"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if a, _ := tbl.Alert("1"); a.NotifyCount != 5 {
		t.Errorf("NotifyCount = %d, want 5", a.NotifyCount)
	}
}

func TestNotifyDefaultsCountToOne(t *testing.T) {
	tbl := newLoadedTable(t, &fakeSource{alerts: makeAlerts(1), notify: &pondapi.NotifyResult{}})
	if err := tbl.Notify(context.Background(), "1"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if a, _ := tbl.Alert("1"); a.NotifyCount != 1 {
		t.Errorf("NotifyCount = %d, want 1", a.NotifyCount)
	}
}

func TestNotifyFailure(t *testing.T) {
	tbl := newLoadedTable(t, &fakeSource{alerts: makeAlerts(1), notifyErr: &pondapi.Error{Kind: pondapi.KindTransport}})

	err := tbl.Notify(context.Background(), "1")
	var actionErr *ActionError
	if !errors.As(err, &actionErr) || actionErr.Message != NotifyFailed {
		t.Fatalf("err = %v, want %q", err, NotifyFailed)
	}
	if row := tbl.View().Rows[0]; row.Notify.Disabled || row.Notify.Label != NotifyLabel {
		t.Errorf("notify button = %+v", row.Notify)
	}
}

func TestUnknownAlert(t *testing.T) {
	tbl := newLoadedTable(t, &fakeSource{alerts: makeAlerts(1)})
	if err := tbl.Notify(context.Background(), "42"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Notify(42) = %v, want ErrNotFound", err)
	}
}

func TestExport(t *testing.T) {
	alerts := makeAlerts(10)
	alerts[0].EndTime = "2024-01-01 08:30:00"
	alerts[0].NotifyCount = 3
	tbl := newLoadedTable(t, &fakeSource{alerts: alerts})

	var buf bytes.Buffer
	if err := tbl.Export(&buf); err != nil {
		t.Fatalf("Export: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(exportSheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 11 {
		t.Fatalf("rows = %d, want header + 10", len(rows))
	}
	if rows[0][0] != "池號" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][4] != "2024-01-01 08:30:00" || rows[1][6] != "3" {
		t.Errorf("first row = %v", rows[1])
	}
	if rows[2][4] != "-" {
		t.Errorf("second row end time = %q, want -", rows[2][4])
	}
}

func TestErrorText(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "action", err: &ActionError{AlertID: "1", Message: "server says no"}, want: "server says no"},
		{name: "already handled", err: ErrAlreadyHandled, want: AlreadyHandledText},
		{name: "in flight", err: ErrInFlight, want: InFlightText},
		{name: "not found", err: ErrNotFound, want: NotFoundText},
		{name: "declined", err: ErrNotConfirmed, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorText(tt.err); got != tt.want {
				t.Errorf("ErrorText() = %q, want %q", got, tt.want)
			}
		})
	}
}
