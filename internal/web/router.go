package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/csrf"

	"github.com/good-yellow-bee/pondview/internal/web/middleware"
)

// plaintextAware marks plain-HTTP requests so the CSRF check does not
// demand an HTTPS Referer.
func plaintextAware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !middleware.IsRequestSecure(r) {
			r = csrf.PlaintextHTTPRequest(r)
		}
		next.ServeHTTP(w, r)
	})
}

// Routes builds the router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(s.logger, s.verbose))
	r.Use(middleware.PrometheusMiddleware)
	r.Use(middleware.SecurityHeaders(s.logger))
	r.Use(middleware.Recoverer(s.logger))

	h := s.handler
	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
	r.Handle("/static/*", http.StripPrefix("/static/", s.StaticFS()))

	r.Group(func(r chi.Router) {
		r.Use(plaintextAware)
		r.Use(csrf.Protect(
			s.csrfKey,
			csrf.Secure(s.useSecureCookies),
			csrf.Path("/"),
		))

		r.Get("/login", h.ShowLogin)
		r.Post("/login", h.HandleLogin)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession(s.sessions, s.accounts, s.useSecureCookies, s.logger))
			s.pageRoutes(r)
		})
	})

	return r
}

// pageRoutes are the operator pages; every one of them needs a session.
func (s *Server) pageRoutes(r chi.Router) {
	h := s.handler

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
	})
	r.Post("/logout", h.HandleLogout)

	r.Get("/dashboard", h.ShowDashboard)
	r.Get("/dashboard/events", h.StreamDashboard)
	r.Post("/dashboard/pool", h.SelectPool)

	r.Get("/alerts", h.ShowAlerts)
	r.Get("/alerts/table", h.AlertsTable)
	r.Get("/alerts/export", h.ExportAlerts)
	r.Post("/alerts/{id}/status", h.MarkAlertHandled)
	r.Post("/alerts/{id}/notify", h.NotifyAlert)

	r.Get("/settings/{type}", h.OpenSetting)
	r.Post("/settings", h.SaveSetting)
	r.Post("/settings/close", h.CloseSetting)

	r.Get("/thresholds", h.ShowThresholds)
	r.Post("/thresholds", h.SaveThresholds)
	r.Post("/thresholds/range", h.NormalizeRange)

	r.Get("/history", h.ShowHistory)
	r.Get("/history/trend", h.Trend)
	r.Get("/history/lines", h.LineCharts)
}
