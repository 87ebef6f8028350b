package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/good-yellow-bee/pondview/internal/dashboard"
	"github.com/good-yellow-bee/pondview/internal/metrics"
	"github.com/good-yellow-bee/pondview/internal/web/templates/pages"
)

// ShowDashboard renders the live dashboard shell for the selected pond.
func (h *Handler) ShowDashboard(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	pool := h.resolvePool(r, sess)
	sess.SetPool(pool)

	view := dashboard.BuildView(pool, nil, nil)
	view.LastUpdate = dashboard.SwitchingText
	h.render(w, r, http.StatusOK, pages.Dashboard(h.page(r, "即時監控", "dashboard"), pages.DashboardData{
		Pools: h.Pools(),
		View:  view,
	}))
}

// viewQueue hands rendered views from a poller to the stream loop. Only the
// newest undelivered view is kept.
type viewQueue chan dashboard.View

func (q viewQueue) Render(v dashboard.View) error {
	for {
		select {
		case q <- v:
			return nil
		default:
		}
		select {
		case <-q:
		default:
		}
	}
}

func (h *Handler) trackStream(p *dashboard.Poller) (untrack func()) {
	h.mu.Lock()
	h.streams[p] = struct{}{}
	h.mu.Unlock()
	metrics.StreamsActive.Inc()
	return func() {
		h.mu.Lock()
		delete(h.streams, p)
		h.mu.Unlock()
		metrics.StreamsActive.Dec()
	}
}

// StreamDashboard streams dashboard views of the selected pond as
// Server-Sent Events. Each view is sent as a "dashboard" event carrying the
// view JSON; the poller behind the stream follows pond switches posted to
// SelectPool.
func (h *Handler) StreamDashboard(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.maxStream)
	defer cancel()

	pool := h.resolvePool(r, sess)
	sess.SetPool(pool)

	views := make(viewQueue, 1)
	poller := dashboard.NewPoller(h.api, views, dashboard.Options{
		Interval: h.PollInterval(),
		Logger:   h.logger.With(zap.String("stream", sess.ID[:min(8, len(sess.ID))])),
	})
	defer h.trackStream(poller)()
	defer sess.AttachStream(ctx, poller)()

	stream, err := openViewStream(w, 3*time.Second)
	if err != nil {
		h.logger.Warn("open dashboard stream", zap.Error(err))
		return
	}

	poller.SelectPool(pool)
	done := make(chan struct{})
	go func() {
		defer close(done)
		poller.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				stream.SendClose("timeout")
			}
			return
		case v := <-views:
			if err := stream.SendView(v); err != nil {
				h.logger.Debug("dashboard stream ended", zap.Error(err))
				return
			}
		case <-heartbeat.C:
			if err := stream.Heartbeat(); err != nil {
				return
			}
		}
	}
}

// SelectPool switches the viewer's open stream to another pond. Without an
// open stream it only records the choice for the next page load.
func (h *Handler) SelectPool(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	pool := r.FormValue("pool")
	if !h.knownPool(pool) {
		writeJSONError(w, http.StatusBadRequest, "unknown pool")
		return
	}
	sess.SetPool(pool)
	if poller, ctx, ok := sess.Stream(); ok {
		poller.Select(ctx, pool)
	}
	w.WriteHeader(http.StatusNoContent)
}
