// Package settings implements the per-pond settings modal: a bounded numeric
// input kept in sync with a slider, prefilled from and saved to the pond
// server.
package settings

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/good-yellow-bee/pondview/internal/metrics"
	"github.com/good-yellow-bee/pondview/internal/models"
	"github.com/good-yellow-bee/pondview/internal/pondapi"
)

// Inline messages.
const (
	InvalidValueText      = "請輸入有效的正數"
	NoSettingTypeText     = "請先選擇設定項目"
	SaveFailedText        = "設定失敗"
	NotSetText            = "尚未設定"
	StatusUnavailableText = "無法取得目前設定"
)

var (
	// ErrInvalidValue is returned when the input is not a positive number.
	ErrInvalidValue = errors.New("value must be a positive number")
	// ErrNoSettingType is returned when submitting without a setting type.
	ErrNoSettingType = errors.New("no setting type selected")
)

// Bounds describes the allowed range of a setting.
type Bounds struct {
	Min     float64
	Max     float64
	Step    float64
	Default float64
	Title   string
	Unit    string
}

// Clamp limits v to [Min, Max].
func (b Bounds) Clamp(v float64) float64 {
	return math.Min(math.Max(v, b.Min), b.Max)
}

var bounds = map[models.SettingType]Bounds{
	models.SettingInterval: {Min: 1, Max: 240, Step: 1, Default: 5, Title: "設定平台升降間隔（分）", Unit: "分"},
	models.SettingFeed:     {Min: 1, Max: 500, Step: 10, Default: 100, Title: "設定每次飼料量（克）", Unit: "克"},
}

// BoundsFor returns the bounds of a setting type.
func BoundsFor(t models.SettingType) (Bounds, bool) {
	b, ok := bounds[t]
	return b, ok
}

// Store reads and writes settings. *pondapi.Client implements it.
type Store interface {
	GetSetting(ctx context.Context, poolID string, settingType models.SettingType) (*pondapi.SettingResult, error)
	SaveSetting(ctx context.Context, s models.Setting) (*pondapi.SettingResult, error)
}

// View is the rendered modal.
type View struct {
	Open        bool               `json:"open"`
	PoolID      string             `json:"pool_id"`
	SettingType models.SettingType `json:"setting_type"`
	Title       string             `json:"title"`
	Unit        string             `json:"unit"`
	Min         float64            `json:"min"`
	Max         float64            `json:"max"`
	Step        float64            `json:"step"`
	Input       string             `json:"input"`
	Slider      float64            `json:"slider"`
	Error       string             `json:"error,omitempty"`
	Status      string             `json:"status"`
}

// Modal holds the state of one settings modal. It is safe for concurrent use.
type Modal struct {
	store  Store
	logger *zap.Logger

	mu          sync.Mutex
	open        bool
	pool        string
	settingType models.SettingType
	bounds      Bounds
	input       string
	slider      float64
	errText     string
	status      string
}

// NewModal creates a closed modal for pool.
func NewModal(store Store, pool string, logger *zap.Logger) *Modal {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Modal{store: store, logger: logger, pool: pool, status: NotSetText}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// StatusLabel formats the current stored value of a setting.
func StatusLabel(b Bounds, value float64, updatedAt string) string {
	label := fmt.Sprintf("目前設定：%s %s", formatNumber(value), b.Unit)
	if updatedAt != "" {
		label += fmt.Sprintf("（更新時間：%s）", models.FormatTimestamp(updatedAt))
	}
	return label
}

// Open configures the modal for settingType and prefills it with the value
// stored for the current pond.
func (m *Modal) Open(ctx context.Context, settingType models.SettingType) error {
	b, ok := BoundsFor(settingType)
	if !ok {
		return ErrNoSettingType
	}

	m.mu.Lock()
	m.open = true
	m.settingType = settingType
	m.bounds = b
	m.input = formatNumber(b.Default)
	m.slider = b.Default
	m.errText = ""
	m.status = NotSetText
	m.mu.Unlock()

	m.refreshStatus(ctx)
	return nil
}

// Close hides the modal.
func (m *Modal) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = false
	m.errText = ""
}

// SwitchPool changes the pond. When the modal is open, the stored value of
// the new pond is fetched.
func (m *Modal) SwitchPool(ctx context.Context, pool string) {
	m.mu.Lock()
	m.pool = pool
	open := m.open
	m.mu.Unlock()

	if open {
		m.refreshStatus(ctx)
	}
}

// SetPool changes the pond without fetching, for callers that Open next.
func (m *Modal) SetPool(pool string) {
	m.mu.Lock()
	m.pool = pool
	m.mu.Unlock()
}

// refreshStatus fetches the stored value. The result is dropped when the
// pond or setting type changed while the request was running.
func (m *Modal) refreshStatus(ctx context.Context) {
	m.mu.Lock()
	pool, settingType := m.pool, m.settingType
	m.mu.Unlock()

	res, err := m.store.GetSetting(ctx, pool, settingType)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pool != pool || m.settingType != settingType {
		return
	}
	if err != nil {
		m.logger.Warn("fetch setting failed",
			zap.String("pool", pool),
			zap.String("setting_type", string(settingType)),
			zap.Error(err),
		)
		m.status = StatusUnavailableText
		return
	}
	if res == nil || res.Value == nil {
		m.status = NotSetText
		return
	}
	v := m.bounds.Clamp(*res.Value)
	m.input = formatNumber(v)
	m.slider = v
	m.status = StatusLabel(m.bounds, *res.Value, res.UpdatedAt)
}

// SetInput applies an edit of the text input. A numeric value is clamped
// into bounds and copied to the slider; other text is kept as typed.
func (m *Modal) SetInput(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := parseNumber(text)
	if !ok {
		m.input = text
		return
	}
	if m.bounds.Max > 0 {
		v = m.bounds.Clamp(v)
	}
	m.input = formatNumber(v)
	m.slider = v
}

// SetSlider applies a slider move and copies the value to the text input.
func (m *Modal) SetSlider(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.bounds.Max > 0 {
		v = m.bounds.Clamp(v)
	}
	m.slider = v
	m.input = formatNumber(v)
}

// Submit validates the input and saves it. Validation failures never reach
// the server. Failures keep the modal open with an inline error; success
// closes it and updates the status label.
func (m *Modal) Submit(ctx context.Context) (*models.Setting, error) {
	m.mu.Lock()
	if m.settingType == "" {
		m.errText = NoSettingTypeText
		m.mu.Unlock()
		return nil, ErrNoSettingType
	}
	v, ok := parseNumber(m.input)
	if !ok || v <= 0 {
		m.errText = InvalidValueText
		m.mu.Unlock()
		return nil, ErrInvalidValue
	}
	setting := models.Setting{PoolID: m.pool, SettingType: m.settingType, Value: v}
	b := m.bounds
	m.errText = ""
	m.mu.Unlock()

	res, err := m.store.SaveSetting(ctx, setting)
	if err != nil {
		metrics.ActionsTotal.WithLabelValues("setting", "error").Inc()
		m.logger.Warn("save setting failed",
			zap.String("pool", setting.PoolID),
			zap.String("setting_type", string(setting.SettingType)),
			zap.Error(err),
		)
		m.mu.Lock()
		m.errText = pondapi.Message(err, SaveFailedText)
		m.mu.Unlock()
		return nil, fmt.Errorf("save setting: %w", err)
	}
	if res != nil {
		if res.Value != nil {
			setting.Value = *res.Value
		}
		setting.UpdatedAt = res.UpdatedAt
	}
	metrics.ActionsTotal.WithLabelValues("setting", "ok").Inc()
	m.logger.Info("setting saved",
		zap.String("pool", setting.PoolID),
		zap.String("setting_type", string(setting.SettingType)),
		zap.Float64("value", setting.Value),
	)

	m.mu.Lock()
	m.open = false
	m.status = StatusLabel(b, setting.Value, setting.UpdatedAt)
	m.mu.Unlock()
	return &setting, nil
}

// View renders the modal.
func (m *Modal) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return View{
		Open:        m.open,
		PoolID:      m.pool,
		SettingType: m.settingType,
		Title:       m.bounds.Title,
		Unit:        m.bounds.Unit,
		Min:         m.bounds.Min,
		Max:         m.bounds.Max,
		Step:        m.bounds.Step,
		Input:       m.input,
		Slider:      m.slider,
		Error:       m.errText,
		Status:      m.status,
	}
}
