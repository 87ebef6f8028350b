package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/good-yellow-bee/pondview/internal/models"
)

// fakeSource serves canned responses. latest may block to simulate a slow server.
type fakeSource struct {
	latest func(ctx context.Context, pool string) (*models.SensorSnapshot, error)
	status func(ctx context.Context, pool string) (*models.ActionStatus, error)
}

func (f *fakeSource) LatestData(ctx context.Context, pool string) (*models.SensorSnapshot, error) {
	return f.latest(ctx, pool)
}

func (f *fakeSource) ActionStatus(ctx context.Context, pool string) (*models.ActionStatus, error) {
	if f.status == nil {
		return &models.ActionStatus{}, nil
	}
	return f.status(ctx, pool)
}

type recorder struct {
	mu    sync.Mutex
	views []View
}

func (r *recorder) Render(v View) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, v)
	return nil
}

func (r *recorder) all() []View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]View(nil), r.views...)
}

func (r *recorder) last() (View, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.views) == 0 {
		return View{}, false
	}
	return r.views[len(r.views)-1], true
}

func snapshotAt(ts string, temp float64) *models.SensorSnapshot {
	return &models.SensorSnapshot{Timestamp: ts, Temp: &temp}
}

func TestRefreshRendersSnapshot(t *testing.T) {
	src := &fakeSource{
		latest: func(ctx context.Context, pool string) (*models.SensorSnapshot, error) {
			return snapshotAt("2024-01-01 08:00:00", 25.34), nil
		},
		status: func(ctx context.Context, pool string) (*models.ActionStatus, error) {
			return &models.ActionStatus{Behavior: models.ActionHealth{Abnormal: true}}, nil
		},
	}
	rec := &recorder{}
	p := NewPoller(src, rec, Options{})
	p.SelectPool("1")

	v, ok := p.Refresh(context.Background())
	if !ok {
		t.Fatal("refresh was not rendered")
	}
	f, _ := v.Field(models.SensorTemp)
	if f.Text != "25.3 °C" {
		t.Errorf("temp text = %q", f.Text)
	}
	if v.LastUpdate != "2024/01/01 08:00:00" {
		t.Errorf("LastUpdate = %q", v.LastUpdate)
	}
	if v.Behavior.State != IndicatorAbnormal {
		t.Errorf("behavior = %v, want abnormal", v.Behavior.State)
	}

	views := rec.all()
	if len(views) != 2 {
		t.Fatalf("rendered %d views, want switching view + refresh", len(views))
	}
	if views[0].LastUpdate != SwitchingText {
		t.Errorf("first view LastUpdate = %q, want %q", views[0].LastUpdate, SwitchingText)
	}
}

func TestRefreshFailureShowsUnavailable(t *testing.T) {
	src := &fakeSource{
		latest: func(ctx context.Context, pool string) (*models.SensorSnapshot, error) {
			return nil, errors.New("connection refused")
		},
		status: func(ctx context.Context, pool string) (*models.ActionStatus, error) {
			return &models.ActionStatus{Food: models.ActionHealth{Abnormal: true}}, nil
		},
	}
	p := NewPoller(src, &recorder{}, Options{})
	p.SelectPool("1")

	v, ok := p.Refresh(context.Background())
	if !ok {
		t.Fatal("failure view should still be rendered")
	}
	if v.Available || v.LastUpdate != UnavailableText {
		t.Errorf("view = %+v, want unavailable", v)
	}
	if v.Food.State != IndicatorNeutral {
		t.Errorf("food = %v, want neutral", v.Food.State)
	}
}

func TestActionStatusFailureKeepsReadings(t *testing.T) {
	src := &fakeSource{
		latest: func(ctx context.Context, pool string) (*models.SensorSnapshot, error) {
			return snapshotAt("2024-01-01 08:00:00", 20), nil
		},
		status: func(ctx context.Context, pool string) (*models.ActionStatus, error) {
			return nil, errors.New("boom")
		},
	}
	p := NewPoller(src, &recorder{}, Options{})
	p.SelectPool("1")

	v, _ := p.Refresh(context.Background())
	if !v.Available {
		t.Fatal("readings should be shown when only action status fails")
	}
	if v.Food.State != IndicatorNeutral || v.Behavior.State != IndicatorNeutral {
		t.Error("indicators should be neutral")
	}
}

func TestRefreshWithoutPool(t *testing.T) {
	p := NewPoller(&fakeSource{}, &recorder{}, Options{})
	if _, ok := p.Refresh(context.Background()); ok {
		t.Error("refresh without a selected pool should not render")
	}
}

func TestOutOfOrderResponseIsDropped(t *testing.T) {
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex

	src := &fakeSource{
		latest: func(ctx context.Context, pool string) (*models.SensorSnapshot, error) {
			mu.Lock()
			calls++
			n := calls
			mu.Unlock()
			if n == 1 {
				<-release
				return snapshotAt("2024-01-01 08:00:00", 10), nil
			}
			return snapshotAt("2024-01-01 08:00:05", 20), nil
		},
	}
	rec := &recorder{}
	p := NewPoller(src, rec, Options{})
	p.SelectPool("1")

	slow := make(chan bool)
	go func() {
		_, ok := p.Refresh(context.Background())
		slow <- ok
	}()

	// wait until the slow refresh has been issued
	for {
		mu.Lock()
		n := calls
		mu.Unlock()
		if n == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if _, ok := p.Refresh(context.Background()); !ok {
		t.Fatal("newer refresh should render")
	}
	close(release)
	if ok := <-slow; ok {
		t.Error("older response should be dropped")
	}

	v, _ := rec.last()
	if v.LastUpdate != "2024/01/01 08:00:05" {
		t.Errorf("last rendered = %q, want newest snapshot", v.LastUpdate)
	}
}

func TestSelectCancelsInFlight(t *testing.T) {
	started := make(chan struct{}, 1)
	src := &fakeSource{
		latest: func(ctx context.Context, pool string) (*models.SensorSnapshot, error) {
			if pool == "1" {
				started <- struct{}{}
				<-ctx.Done()
				return nil, ctx.Err()
			}
			return snapshotAt("2024-01-01 09:00:00", 22), nil
		},
	}
	rec := &recorder{}
	p := NewPoller(src, rec, Options{})
	p.SelectPool("1")

	old := make(chan bool)
	go func() {
		_, ok := p.Refresh(context.Background())
		old <- ok
	}()
	<-started

	p.SelectPool("2")
	if ok := <-old; ok {
		t.Error("cancelled response for previous pond should be dropped")
	}

	v, ok := p.Refresh(context.Background())
	if !ok || v.PoolID != "2" {
		t.Fatalf("refresh = %+v, %v", v, ok)
	}
	for _, view := range rec.all() {
		if view.PoolID == "1" && view.LastUpdate == UnavailableText {
			t.Error("cancelled request must not render the unavailable view")
		}
	}
}

func TestRunPollsOnTicker(t *testing.T) {
	var mu sync.Mutex
	var calls int
	src := &fakeSource{
		latest: func(ctx context.Context, pool string) (*models.SensorSnapshot, error) {
			mu.Lock()
			calls++
			mu.Unlock()
			return snapshotAt("2024-01-01 08:00:00", 20), nil
		},
	}
	p := NewPoller(src, &recorder{}, Options{Interval: 10 * time.Millisecond})
	p.SelectPool("1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- p.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := calls
		mu.Unlock()
		if n >= 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("only %d polls before deadline", n)
		case <-time.After(5 * time.Millisecond):
		}
	}

	p.SetInterval(time.Hour)
	if p.Interval() != time.Hour {
		t.Errorf("Interval() = %v", p.Interval())
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}
}

func TestDefaultInterval(t *testing.T) {
	p := NewPoller(&fakeSource{}, &recorder{}, Options{})
	if p.Interval() != DefaultInterval {
		t.Errorf("Interval() = %v, want %v", p.Interval(), DefaultInterval)
	}
}

func TestSetIntervalWithoutRunDoesNotBlock(t *testing.T) {
	p := NewPoller(&fakeSource{}, &recorder{}, Options{})

	var wg sync.WaitGroup
	for i := 1; i <= 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			p.SetInterval(time.Duration(n) * time.Second)
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("concurrent SetInterval calls blocked")
	}

	if got := p.Interval(); got < time.Second || got > 8*time.Second {
		t.Errorf("Interval() = %v", got)
	}
	if len(p.intervalCh) != 1 {
		t.Errorf("pending interval changes = %d, want 1", len(p.intervalCh))
	}
}
