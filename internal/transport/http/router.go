package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/kset/verifikator/internal/application/verification"
	"github.com/kset/verifikator/internal/config"
	"github.com/kset/verifikator/internal/transport/http/handler"
	appmiddleware "github.com/kset/verifikator/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// 5 requests/second with a burst of 10 on the roster-probing endpoints,
	// the obvious enumeration target.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	verifSvc := verification.NewService(verification.ServiceDeps{
		Attempts:  deps.Attempts,
		Roster:    deps.Roster,
		Exchanger: deps.Exchanger,
		Mailer:    deps.Mailer,
		Publisher: deps.Publisher,
		Receipts:  deps.Receipts,
		Window:    cfg.AttemptWindow,
	})

	healthH := handler.NewHealthHandler()
	rosterH := handler.NewRosterHandler(deps.Roster)
	oauthH := handler.NewOAuthHandler(verifSvc)
	cacheH := handler.NewCacheHandler(deps.Roster)

	r.Get("/health-check/{action}", healthH.Ping)

	r.With(sensitiveRL.Limit).Post("/verify-email", rosterH.VerifyEmail)
	r.With(sensitiveRL.Limit).Post("/verify-emails", rosterH.VerifyEmails)
	r.With(sensitiveRL.Limit).Post("/generate-oauth-link", oauthH.GenerateLink)

	r.Get("/oauth/status", oauthH.Status)
	r.Get("/oauth/callback", oauthH.Callback)

	// Cache administration, guarded when ADMIN_TOKEN is configured.
	r.Group(func(r chi.Router) {
		r.Use(appmiddleware.AdminToken(cfg.AdminToken))
		r.Post("/refresh-cache", cacheH.Refresh)
		r.Post("/clear-cache", cacheH.Clear)
	})

	return r
}
