package alerts

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/good-yellow-bee/pondview/internal/metrics"
	"github.com/good-yellow-bee/pondview/internal/models"
	"github.com/good-yellow-bee/pondview/internal/pondapi"
)

// Confirmer asks the operator to confirm an action.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

// Confirm implements Confirmer.
func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// Confirmed is a Confirmer for callers that already collected the
// confirmation, such as a browser confirm dialog.
var Confirmed Confirmer = ConfirmFunc(func(string) bool { return true })

// ActionError is a failed row action. Message is what the operator sees.
type ActionError struct {
	AlertID models.AlertID
	Message string
	Err     error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("alert %s: %s", e.AlertID, e.Message)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// Row action messages.
const (
	AlreadyHandledText = "此事件已處理"
	InFlightText       = "處理中，請稍候"
	NotFoundText       = "找不到此異常事件，請重新查詢"
)

// ErrorText returns the operator-facing text of a row action error.
func ErrorText(err error) string {
	var actionErr *ActionError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &actionErr):
		return actionErr.Message
	case errors.Is(err, ErrAlreadyHandled):
		return AlreadyHandledText
	case errors.Is(err, ErrInFlight):
		return InFlightText
	case errors.Is(err, ErrNotFound):
		return NotFoundText
	case errors.Is(err, ErrNotConfirmed):
		return ""
	}
	return err.Error()
}

// begin marks act on id as in flight, disabling that button only.
func (t *Table) begin(id models.AlertID, act action) (models.Alert, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.indexLocked(id)
	if i < 0 {
		return models.Alert{}, ErrNotFound
	}
	key := pendingKey{id: id, action: act}
	if t.pending[key] {
		return models.Alert{}, ErrInFlight
	}
	t.pending[key] = true
	return t.alerts[i], nil
}

func (t *Table) end(id models.AlertID, act action) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, pendingKey{id: id, action: act})
}

// MarkHandled asks c for confirmation, then marks the alert handled on the
// server. On success the cached row takes the returned status and its
// status button stays disabled. A handled alert is rejected without a
// network call.
func (t *Table) MarkHandled(ctx context.Context, id models.AlertID, c Confirmer) error {
	if a, ok := t.Alert(id); ok && a.Handled() {
		return ErrAlreadyHandled
	}
	if c != nil && !c.Confirm(ConfirmPrompt) {
		return ErrNotConfirmed
	}

	a, err := t.begin(id, actionStatus)
	if err != nil {
		return err
	}
	defer t.end(id, actionStatus)
	if a.Handled() {
		return ErrAlreadyHandled
	}

	status, err := t.source.MarkAlertHandled(ctx, id)
	if err != nil {
		metrics.ActionsTotal.WithLabelValues("alert_status", "error").Inc()
		t.logger.Warn("mark alert handled failed", zap.String("alert_id", string(id)), zap.Error(err))
		return &ActionError{AlertID: id, Message: pondapi.Message(err, StatusFailed), Err: err}
	}
	if status == "" {
		status = models.AlertStatusHandled
	}

	t.mu.Lock()
	if i := t.indexLocked(id); i >= 0 {
		t.alerts[i].Status = status
	}
	t.mu.Unlock()

	metrics.ActionsTotal.WithLabelValues("alert_status", "ok").Inc()
	t.logger.Info("alert marked handled", zap.String("alert_id", string(id)), zap.String("status", status))
	return nil
}

// Notify sends (or resends) the notification for an alert. The cached
// notify count never decreases.
func (t *Table) Notify(ctx context.Context, id models.AlertID) error {
	if _, err := t.begin(id, actionNotify); err != nil {
		return err
	}
	defer t.end(id, actionNotify)

	res, err := t.source.NotifyAlert(ctx, id)
	if err != nil {
		metrics.ActionsTotal.WithLabelValues("alert_notify", "error").Inc()
		t.logger.Warn("notify alert failed", zap.String("alert_id", string(id)), zap.Error(err))
		return &ActionError{AlertID: id, Message: pondapi.Message(err, NotifyFailed), Err: err}
	}

	count := 1
	var notifiedAt string
	if res != nil {
		if res.NotifyCount > 0 {
			count = res.NotifyCount
		}
		notifiedAt = res.NotifiedAt
	}

	t.mu.Lock()
	if i := t.indexLocked(id); i >= 0 {
		a := &t.alerts[i]
		a.Notified = true
		a.NotifiedAt = notifiedAt
		a.NotifyCount = max(a.NotifyCount, count)
	}
	t.mu.Unlock()

	metrics.ActionsTotal.WithLabelValues("alert_notify", "ok").Inc()
	t.logger.Info("alert notified", zap.String("alert_id", string(id)), zap.Int("notify_count", count))
	return nil
}
