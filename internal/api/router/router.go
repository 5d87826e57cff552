package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/wolfman30/leaddesk/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/leaddesk/internal/http/middleware"
	"github.com/wolfman30/leaddesk/internal/leads"
	"github.com/wolfman30/leaddesk/internal/profiles"
	"github.com/wolfman30/leaddesk/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	LeadsHandler       *leads.Handler
	Dashboard          *handlers.DashboardHandler
	ProfilesHandler    *profiles.Handler
	Realtime           http.Handler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// AuthSecret signs dashboard session tokens. Authenticated routes reject everything when empty.
	AuthSecret string
	// WebFormKey guards POST /leads/web when set.
	WebFormKey string

	// Members enables the company membership check (optional).
	Members ProfileGetter
	// Sessions is touched on every authenticated request to keep background sync alive (optional).
	Sessions    httpmiddleware.Toucher
	RateLimiter *httpmiddleware.RateLimiter
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", health)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.LeadsHandler != nil {
			public.With(
				requireFormKey(cfg.WebFormKey),
				requireCompanyID,
				httpmiddleware.RateLimit(cfg.RateLimiter),
			).Post("/leads/web", cfg.LeadsHandler.CreateWebLead)
		}
	})

	// Dashboard API, scoped to the signed-in user's company
	r.Group(func(api chi.Router) {
		api.Use(httpmiddleware.Auth(cfg.AuthSecret))
		api.Use(requireCompanyMember(cfg.Members, cfg.Logger))
		api.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
		api.Use(httpmiddleware.TouchSession(cfg.Sessions))

		if cfg.Realtime != nil {
			api.Get("/ws", cfg.Realtime.ServeHTTP)
		}
		if cfg.ProfilesHandler != nil {
			api.Get("/me", cfg.ProfilesHandler.GetMe)
		}

		api.Group(func(r chi.Router) {
			r.Use(middleware.Compress(5))

			if cfg.Dashboard != nil {
				r.Get("/leads", cfg.Dashboard.ListLeads)
				r.Get("/leads/groups", cfg.Dashboard.LeadGroups)
				r.Post("/leads/refresh", cfg.Dashboard.Refresh)
				r.Get("/leads/{leadID}/tracking", cfg.Dashboard.LeadTracking)
			}
			if cfg.LeadsHandler != nil {
				r.Post("/leads", cfg.LeadsHandler.CreateLead)
				r.Get("/leads/{leadID}", cfg.LeadsHandler.GetLead)
				r.Delete("/leads/{leadID}", cfg.LeadsHandler.DeleteLead)
				r.Patch("/leads/{leadID}/status", cfg.LeadsHandler.UpdateStatus)
				r.Post("/leads/{leadID}/contacted", cfg.LeadsHandler.MarkContacted)
				r.Post("/leads/{leadID}/notes", cfg.LeadsHandler.AddNote)
				r.Post("/leads/{leadID}/calls", cfg.LeadsHandler.RecordCall)
				r.Post("/leads/{leadID}/insights", cfg.LeadsHandler.RegenerateInsights)
			}
		})
	})

	return r
}

func health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
