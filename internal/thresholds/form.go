package thresholds

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/good-yellow-bee/pondview/internal/metrics"
	"github.com/good-yellow-bee/pondview/internal/models"
	"github.com/good-yellow-bee/pondview/internal/pondapi"
)

// Form messages.
const (
	SavedText       = "儲存成功！"
	SaveFailedText  = "儲存失敗："
	ServerErrorText = "伺服器錯誤，請稍後再試。"
	NeverUpdated    = "尚無更新紀錄"
	lastUpdatedText = "最後更新時間：%s"
)

// ErrUnknownSensor is returned for a sensor the form has no slider for.
var ErrUnknownSensor = errors.New("unknown sensor")

// Saver stores a threshold batch. *pondapi.Client implements it.
type Saver interface {
	SaveThresholds(ctx context.Context, t models.Thresholds) (*pondapi.ThresholdsResult, error)
}

// Loader reads the thresholds currently in force from a pond's latest
// snapshot. *pondapi.Client implements it.
type Loader interface {
	LatestData(ctx context.Context, poolID string) (*models.SensorSnapshot, error)
}

// Options configures a Form.
type Options struct {
	Limits   map[models.Sensor]Limits // slider tracks (default: DefaultLimits)
	Location *time.Location           // zone of the last-update time (default: Asia/Taipei)
	Now      func() time.Time
	Logger   *zap.Logger
}

// RangeView is one rendered slider.
type RangeView struct {
	Sensor models.Sensor `json:"sensor"`
	Name   string        `json:"name"`
	Min    float64       `json:"min"`
	Max    float64       `json:"max"`
	Step   float64       `json:"step"`
	Lower  string        `json:"lower"`
	Upper  string        `json:"upper"`
	Label  string        `json:"label"`
}

// FormView is the rendered form.
type FormView struct {
	Ranges      []RangeView `json:"ranges"`
	Message     string      `json:"message,omitempty"`
	Success     bool        `json:"success"`
	LastUpdated string      `json:"last_updated"`
}

// Form holds one range per sensor and submits them as one batch. It is safe
// for concurrent use.
type Form struct {
	saver  Saver
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger

	mu          sync.Mutex
	ranges      map[models.Sensor]*Range
	message     string
	success     bool
	lastUpdated string
}

// Taipei returns the Asia/Taipei zone, or a fixed UTC+8 zone when the zone
// database is unavailable.
func Taipei() *time.Location {
	if loc, err := time.LoadLocation("Asia/Taipei"); err == nil {
		return loc
	}
	return time.FixedZone("CST", 8*60*60)
}

// NewForm creates a form prefilled with initial.
func NewForm(saver Saver, initial models.Thresholds, opts Options) *Form {
	if opts.Limits == nil {
		opts.Limits = DefaultLimits()
	}
	if opts.Location == nil {
		opts.Location = Taipei()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	f := &Form{
		saver:       saver,
		loc:         opts.Location,
		now:         opts.Now,
		logger:      opts.Logger,
		ranges:      make(map[models.Sensor]*Range, len(models.Sensors)),
		lastUpdated: fmt.Sprintf(lastUpdatedText, NeverUpdated),
	}
	defaults := DefaultLimits()
	for _, s := range models.Sensors {
		limits, ok := opts.Limits[s]
		if !ok {
			limits = defaults[s]
		}
		lower, upper := initial.Range(s)
		r := NewRange(s, limits, lower, upper)
		f.ranges[s] = &r
	}
	return f
}

// Reset replaces every range with t.
func (f *Form) Reset(t models.Thresholds) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range models.Sensors {
		lower, upper := t.Range(s)
		f.ranges[s].SetHandles(lower, upper)
	}
}

// Load prefills the form with the thresholds echoed in a pond's latest
// snapshot. Defaults are kept when the snapshot carries none.
func (f *Form) Load(ctx context.Context, l Loader, poolID string) error {
	snap, err := l.LatestData(ctx, poolID)
	if err != nil {
		return fmt.Errorf("load thresholds: %w", err)
	}
	if snap.Oddset != nil {
		f.Reset(*snap.Oddset)
	}
	return nil
}

// SetInputs applies the typed lower and upper text of one sensor.
func (f *Form) SetInputs(sensor models.Sensor, lower, upper string) (Range, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.ranges[sensor]
	if !ok {
		return Range{}, fmt.Errorf("%w: %s", ErrUnknownSensor, sensor)
	}
	r.SetInputs(lower, upper)
	return *r, nil
}

// SetHandles applies a slider drag of one sensor.
func (f *Form) SetHandles(sensor models.Sensor, lower, upper float64) (Range, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.ranges[sensor]
	if !ok {
		return Range{}, fmt.Errorf("%w: %s", ErrUnknownSensor, sensor)
	}
	r.SetHandles(lower, upper)
	return *r, nil
}

// Range returns the current range of one sensor.
func (f *Form) Range(sensor models.Sensor) (Range, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.ranges[sensor]
	if !ok {
		return Range{}, false
	}
	return *r, true
}

// Thresholds returns the batch the form would submit.
func (f *Form) Thresholds() models.Thresholds {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.thresholdsLocked()
}

func (f *Form) thresholdsLocked() models.Thresholds {
	var t models.Thresholds
	for _, s := range models.Sensors {
		r := f.ranges[s]
		t.SetRange(s, r.Lower, r.Upper)
	}
	return t
}

// Submit posts every range in one batch and records the outcome message.
func (f *Form) Submit(ctx context.Context) error {
	t := f.Thresholds()

	_, err := f.saver.SaveThresholds(ctx, t)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		metrics.ActionsTotal.WithLabelValues("thresholds", "error").Inc()
		f.logger.Warn("save thresholds failed", zap.Error(err))
		f.success = false
		if pondapi.IsKind(err, pondapi.KindTransport) || pondapi.IsKind(err, pondapi.KindDecode) {
			f.message = ServerErrorText
		} else {
			f.message = SaveFailedText + pondapi.Message(err, err.Error())
		}
		return fmt.Errorf("save thresholds: %w", err)
	}

	metrics.ActionsTotal.WithLabelValues("thresholds", "ok").Inc()
	f.logger.Info("thresholds saved")
	f.success = true
	f.message = SavedText
	f.lastUpdated = fmt.Sprintf(lastUpdatedText, f.now().In(f.loc).Format(models.DisplayLayout))
	return nil
}

// View renders the form.
func (f *Form) View() FormView {
	f.mu.Lock()
	defer f.mu.Unlock()

	v := FormView{
		Ranges:      make([]RangeView, 0, len(models.Sensors)),
		Message:     f.message,
		Success:     f.success,
		LastUpdated: f.lastUpdated,
	}
	for _, s := range models.Sensors {
		r := f.ranges[s]
		v.Ranges = append(v.Ranges, RangeView{
			Sensor: s,
			Name:   s.Info().Name,
			Min:    r.Min,
			Max:    r.Max,
			Step:   r.Step,
			Lower:  r.InputText(r.Lower),
			Upper:  r.InputText(r.Upper),
			Label:  r.Label(),
		})
	}
	return v
}
