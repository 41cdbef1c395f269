package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"identity-server/internal/config"
	"identity-server/internal/handler"
	"identity-server/internal/middleware"
)

// New wires the HTTP surface. Public routes are limited to health,
// register, login and refresh; everything else requires a valid token.
func New(cfg *config.Config, auth *middleware.AuthMiddleware, users *handler.UserHandler, roles *handler.RoleHandler) http.Handler {
	r := chi.NewRouter()

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(rateLimiter.Handler)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Route("/user", func(user chi.Router) {
			user.Post("/register", users.Register)
			user.Post("/login", users.Login)
			user.Post("/refresh", users.Refresh)

			user.With(auth.RequireAuth).Get("/{username}", users.Get)
			user.With(auth.RequireAuth).Put("/update", users.Update)
			user.With(auth.RequireAuth, auth.RequireRoles("Admin")).Delete("/remove/{username}", users.Delete)
		})

		api.Route("/role", func(role chi.Router) {
			role.With(auth.RequireAuth).Get("/", roles.List)
			role.With(auth.RequireAuth).Get("/{name}", roles.Get)

			role.With(auth.RequireAuth, auth.RequireRoles("Admin")).Post("/", roles.Create)
			role.With(auth.RequireAuth, auth.RequireRoles("Admin")).Put("/", roles.Rename)
			role.With(auth.RequireAuth, auth.RequireRoles("Admin")).Delete("/", roles.Delete)
		})
	})

	return r
}
