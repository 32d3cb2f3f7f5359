package router

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"advisory-cms/internal/config"
	"advisory-cms/internal/handler"
	"advisory-cms/internal/middleware"
	"advisory-cms/internal/model"
)

type Handlers struct {
	Auth *handler.AuthHandler
	Page *handler.PageHandler

	// Health is the readiness probe, typically database.DB.Health. Nil
	// means the process itself is the only signal.
	Health func(ctx context.Context) error
}

func New(cfg *config.Config, authMiddleware *middleware.AuthMiddleware, handlers Handlers) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if handlers.Health != nil {
			if err := handlers.Health(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("unavailable"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/admin", func(admin chi.Router) {
		admin.Use(middleware.Timeout(cfg.RequestTimeout))

		admin.Route("/auth", func(auth chi.Router) {
			auth.Post("/login", handlers.Auth.Login)
			auth.Post("/refresh-token", handlers.Auth.Refresh)
			auth.Post("/logout", handlers.Auth.Logout)
			auth.With(authMiddleware.RequireAuth, authMiddleware.RequireRole(model.RoleSuperAdmin)).Post("/register", handlers.Auth.Register)
			auth.With(authMiddleware.RequireAuth).Get("/profile", handlers.Auth.Profile)
			auth.With(authMiddleware.RequireAuth).Put("/profile", handlers.Auth.UpdateProfile)
			auth.With(authMiddleware.RequireAuth).Put("/change-password", handlers.Auth.ChangePassword)
		})

		// Content routes stand in for the CMS's CRUD controllers: every one
		// sits behind the auth gate, writes need admin, deletes super_admin.
		admin.Route("/pages", func(pages chi.Router) {
			pages.Use(authMiddleware.RequireAuth)
			pages.Get("/", handlers.Page.List)
			pages.Get("/{slug}", handlers.Page.Get)
			pages.With(authMiddleware.RequireRole(model.RoleAdmin)).Post("/", handlers.Page.Create)
			pages.With(authMiddleware.RequireRole(model.RoleAdmin)).Put("/{slug}", handlers.Page.Update)
			pages.With(authMiddleware.RequireRole(model.RoleSuperAdmin)).Delete("/{slug}", handlers.Page.Delete)
		})
	})

	return r
}
