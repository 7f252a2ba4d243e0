package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/testiflow-api/internal/config"
	"github.com/testiflow-api/internal/transport/http/handler"
	appmiddleware "github.com/testiflow-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(appmiddleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Instrument)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.Auth)

	// 5 requests/second, burst of 10, applied to public endpoints.
	publicRL := deps.PublicLimiter
	if publicRL == nil {
		publicRL = appmiddleware.NewRateLimiter(rate.Limit(5), 10)
	}

	cookies := handler.CookieConfig{Domain: cfg.CookieDomain, Secure: cfg.IsProduction()}
	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(deps.Auth, cookies)
	accountH := handler.NewAccountHandler(deps.Account, cookies)
	spaceH := handler.NewSpaceHandler(deps.Space)
	insightH := handler.NewInsightHandler(deps.Insight)
	fileH := handler.NewFileHandler(deps.File)

	r.Get("/health-check/{action}", healthH.Ping)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Route("/api/auth", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(publicRL.Limit)
			r.Post("/signup", authH.Signup)
			r.Post("/login", authH.Login)
			r.Post("/verify-email", authH.VerifyEmail)
			r.Post("/forgot-password", authH.ForgotPassword)
			r.Post("/reset-password/{token}", authH.ResetPassword)
			r.Post("/googleAuth", authH.Google)
			r.Post("/google", authH.Google)
			r.Post("/createReview", spaceH.SubmitReview)
		})
		r.Post("/logout", authH.Logout)
		r.Get("/getSpaceByLink/{link}", spaceH.GetByLink)
		r.Get("/wallOfLove/{link}", spaceH.WallOfLove)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/check-auth", accountH.CheckAuth)
			r.Put("/profile", accountH.UpdateProfile)
			r.Delete("/deleteUser/{id}", accountH.Delete)
			r.Post("/resend-verification", authH.ResendVerification)
			r.Post("/setPass", authH.SetPassword)

			r.Post("/createSpace", spaceH.Create)
			r.Put("/editSpace", spaceH.Edit)
			r.Get("/getSpaces", spaceH.List)
			r.Get("/spaces/{spaceId}", spaceH.Get)
			r.Delete("/spaces/{spaceId}", spaceH.Delete)
			r.Post("/toggleFavourite", spaceH.ToggleFavourite)
			r.Put("/deleteTestimonial/spaces/{spaceId}/reviews/{reviewId}", spaceH.DeleteReview)

			r.Post("/generateQuestions", insightH.GenerateQuestions)
			r.Post("/spaces/{spaceId}/reviews/{reviewId}/summary", insightH.SummarizeReview)
			r.Post("/spaces/{spaceId}/caseStudy", insightH.CaseStudy)

			r.Post("/uploadLogo", fileH.UploadLogo)
		})
	})

	return r
}
