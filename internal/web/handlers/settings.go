package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/pondview/internal/models"
	"github.com/good-yellow-bee/pondview/internal/settings"
	"github.com/good-yellow-bee/pondview/internal/web/templates/pages"
)

func (h *Handler) writeModal(w http.ResponseWriter, r *http.Request, status int, m *settings.Modal) {
	if wantsJSON(r) {
		writeJSON(w, status, m.View())
		return
	}
	h.render(w, r, http.StatusOK, pages.SettingsModal(m.View()))
}

// OpenSetting opens the settings modal for one setting type of the selected
// pond, prefilled with the stored value.
func (h *Handler) OpenSetting(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	settingType, ok := models.ParseSettingType(chi.URLParam(r, "type"))
	if !ok {
		writeJSONError(w, http.StatusNotFound, settings.NoSettingTypeText)
		return
	}

	pool := h.resolvePool(r, sess)
	sess.SetPool(pool)
	sess.Settings.SetPool(pool)
	// A failed prefill still opens the modal with its status message.
	sess.Settings.Open(r.Context(), settingType)
	h.writeModal(w, r, http.StatusOK, sess.Settings)
}

// SaveSetting applies the submitted value and saves it. Invalid input and
// server failures keep the modal open with the error shown.
func (h *Handler) SaveSetting(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	m := sess.Settings
	pool := r.FormValue("pool")
	switchPool := pool != "" && h.knownPool(pool)
	if t, ok := models.ParseSettingType(r.FormValue("setting_type")); ok && m.View().SettingType != t {
		if switchPool {
			m.SetPool(pool)
		}
		m.Open(r.Context(), t)
	} else if switchPool {
		m.SwitchPool(r.Context(), pool)
	}
	if r.Form.Has("value") {
		m.SetInput(r.FormValue("value"))
	}

	status := http.StatusOK
	if _, err := m.Submit(r.Context()); err != nil {
		switch {
		case errors.Is(err, settings.ErrInvalidValue), errors.Is(err, settings.ErrNoSettingType):
			status = http.StatusBadRequest
		default:
			status = http.StatusBadGateway
		}
	}
	h.writeModal(w, r, status, m)
}

// CloseSetting closes the settings modal without saving.
func (h *Handler) CloseSetting(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.Settings.Close()
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, sess.Settings.View())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
}
