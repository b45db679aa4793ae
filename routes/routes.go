package routes

import (
	"log/slog"
	"net/http"

	"github.com/Dosada05/round-matches/handlers"
	"github.com/Dosada05/round-matches/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Options struct {
	JWTSecret      string
	AdminEmail     string
	AllowedOrigins []string
	Logger         *slog.Logger
}

func SetupRoutes(
	router chi.Router,
	opts Options,
	userHandler *handlers.UserHandler,
	matchHandler *handlers.MatchHandler,
	adminHandler *handlers.AdminHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", handlers.HealthCheck)

	authenticate := middleware.Authenticate(opts.JWTSecret, opts.Logger)

	router.Group(func(r chi.Router) {
		r.Use(authenticate)

		r.Route("/users", func(r chi.Router) {
			r.Post("/", userHandler.Register)
			r.Get("/me", userHandler.GetMe)
			r.Patch("/me", userHandler.UpdateMe)
			r.Get("/{userID}", userHandler.GetUserByID)
		})

		r.Route("/matches", func(r chi.Router) {
			r.Get("/", matchHandler.ListMatches)
			r.Get("/me", matchHandler.ListMyMatches)
			r.Get("/{matchID}", matchHandler.GetMatch)
			r.Post("/{matchID}/result", matchHandler.ReportResult)
		})

		r.Get("/rounds/{round}/matches", matchHandler.ListRoundMatches)
		r.Get("/ws/rounds/{round}", webSocketHandler.ServeRoundWs)
	})

	router.Route("/admin", func(r chi.Router) {
		r.Use(authenticate)
		r.Use(middleware.RequireAdmin(opts.AdminEmail))

		r.Get("/users", adminHandler.ListUsers)
		r.Get("/players", adminHandler.ListPlayers)

		r.Post("/matches", adminHandler.CreateMatch)
		r.Post("/matches/bulk", adminHandler.BulkCreateMatches)
		r.Put("/matches/{matchID}/players", adminHandler.UpdateMatchPlayers)
		r.Delete("/matches/{matchID}", adminHandler.DeleteMatch)

		r.Get("/rounds/{round}/assigned", adminHandler.AssignedPlayers)
		r.Put("/rounds/{round}/matches", adminHandler.SyncRound)
		r.Post("/rounds/{round}/export", adminHandler.ExportRound)
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"the requested resource could not be found"}` + "\n"))
	})
}
