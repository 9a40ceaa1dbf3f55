package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prudhvinik1/fieldsync/internal/connectivity"
)

type RouterConfig struct {
	Auth    Authenticator
	Engine  SyncService
	Jobs    JobStatusProvider
	Oracle  connectivity.Oracle
	Metrics http.Handler
	// OriginPatterns is passed to websocket.Accept. Empty means same-origin only.
	OriginPatterns []string
}

func NewRouter(cfg RouterConfig) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"online": cfg.Oracle.IsAvailable(),
		})
	})
	if cfg.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	auth := NewAuthHandler(cfg.Auth)
	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", auth.Register)
		r.Post("/login", auth.Login)
		r.Post("/logout", auth.Logout)
	})

	beneficiaries := NewBeneficiaryHandler(cfg.Engine)
	syncs := NewSyncHandler(cfg.Engine, cfg.Jobs)
	streams := NewStreamHandler(cfg.Engine, cfg.Oracle, cfg.OriginPatterns)

	router.Group(func(r chi.Router) {
		r.Use(RequireAuth(cfg.Auth))

		r.Route("/beneficiaries", func(r chi.Router) {
			r.Post("/", beneficiaries.Create)
			r.Get("/", beneficiaries.List)
			r.Delete("/", beneficiaries.Clear)
			r.Get("/{id}", beneficiaries.Get)
			r.Patch("/{id}", beneficiaries.Update)
			r.Delete("/{id}", beneficiaries.Delete)
		})

		r.Route("/sync", func(r chi.Router) {
			r.Post("/", syncs.Reconcile)
			r.Post("/retry", syncs.RetryExhausted)
			r.Get("/status", syncs.Status)
			r.Get("/queue", syncs.Queue)
		})
		r.Get("/remote/*", syncs.Remote)

		r.Get("/ws/beneficiaries", streams.Beneficiaries)
		r.Get("/ws/connectivity", streams.Connectivity)
	})

	return router
}
