package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/saurabhp75/epic-web/internal/auth"
	"github.com/saurabhp75/epic-web/internal/handlers"
	"github.com/saurabhp75/epic-web/internal/middleware"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	verifyHandler *handlers.VerifyHandler,
	twoFactorHandler *handlers.TwoFactorHandler,
	connectionHandler *handlers.ConnectionHandler,
	userHandler *handlers.UserHandler,
	noteHandler *handlers.NoteHandler,
) {
	authLimit := middleware.RateLimitByIP(middleware.DefaultAuthRateLimit())
	apiLimit := middleware.RateLimitByUser(middleware.DefaultAPIRateLimit())

	// Credential endpoints share a tight per-IP budget
	router.With(authLimit).Post("/auth/login", authHandler.Login)
	router.With(authLimit).Post("/auth/signup", authHandler.Signup)
	router.With(authLimit).Post("/verify", verifyHandler.Verify)
	router.With(authLimit).Post("/onboarding", authHandler.Onboarding)

	// OAuth handshake
	router.With(authLimit).Post("/auth/{provider}", connectionHandler.Start)
	router.Get("/auth/{provider}/callback", connectionHandler.Callback)

	// Public profile, note listings, and note images
	router.With(apiLimit).Get("/users/{username}", userHandler.GetByUsername)
	router.With(apiLimit).Get("/users/{username}/notes", userHandler.ListNotes)
	router.Get("/images/{id}", noteHandler.ServeImage)

	// Authenticated routes
	router.Group(func(r chi.Router) {
		r.Use(auth.RequireUser)
		r.Use(apiLimit)

		r.Post("/auth/logout", authHandler.Logout)
		r.Post("/auth/logout-others", authHandler.LogoutOtherSessions)

		r.Get("/me", userHandler.Me)
		r.Put("/me/profile", userHandler.UpdateProfile)
		r.Post("/me/password", userHandler.ChangePassword)
		r.Delete("/me", userHandler.DeleteAccount)

		r.Get("/settings/two-factor", twoFactorHandler.Status)
		r.Post("/settings/two-factor", twoFactorHandler.Enroll)
		r.Post("/settings/two-factor/verify", twoFactorHandler.Confirm)
		r.Delete("/settings/two-factor", twoFactorHandler.Disable)

		r.Get("/settings/connections", connectionHandler.List)
		r.Delete("/settings/connections/{id}", connectionHandler.Disconnect)

		r.Post("/notes", noteHandler.Create)
		r.Get("/notes", noteHandler.List)
		r.Get("/notes/{id}", noteHandler.Get)
		r.Put("/notes/{id}", noteHandler.Update)
		r.Delete("/notes/{id}", noteHandler.Delete)
		r.Post("/notes/{id}/images", noteHandler.AttachImage)
		r.Delete("/notes/images/{id}", noteHandler.RemoveImage)
	})
}
