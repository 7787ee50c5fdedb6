package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/bracketops/tournament-engine/docs"
	"github.com/bracketops/tournament-engine/handlers"
	"github.com/bracketops/tournament-engine/middleware"
	"github.com/bracketops/tournament-engine/models"
)

// SetupRoutes mounts every endpoint on the router. Read endpoints are
// public; mutations sit behind JWT authentication and game catalog
// mutations additionally behind the admin role.
func SetupRoutes(
	router *chi.Mux,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	teamHandler *handlers.TeamHandler,
	gameHandler *handlers.GameHandler,
	tournamentHandler *handlers.TournamentHandler,
	matchHandler *handlers.MatchHandler,
	wsHandler *handlers.WebSocketHandler,
	authn *middleware.Authenticator,
	corsOrigins []string,
) {
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Post("/auth/register", authHandler.Register)
	router.Post("/auth/login", authHandler.Login)

	router.Route("/users", func(r chi.Router) {
		r.Get("/{userID}", userHandler.GetProfile)

		r.Group(func(r chi.Router) {
			r.Use(authn.Authenticate)
			r.Patch("/{userID}", userHandler.UpdateProfile)
			r.Put("/{userID}/password", userHandler.ChangePassword)
		})
	})

	router.Route("/teams", func(r chi.Router) {
		r.Get("/{teamID}", teamHandler.GetTeam)

		r.Group(func(r chi.Router) {
			r.Use(authn.Authenticate)
			r.Post("/", teamHandler.CreateTeam)
			r.Patch("/{teamID}", teamHandler.UpdateTeam)
			r.Delete("/{teamID}", teamHandler.DeleteTeam)
		})
	})

	router.Route("/games", func(r chi.Router) {
		r.Get("/", gameHandler.ListGames)
		r.Get("/{gameID}", gameHandler.GetGame)

		r.Group(func(r chi.Router) {
			r.Use(authn.Authenticate)
			r.Use(middleware.RequireRole(models.RoleAdmin))
			r.Post("/", gameHandler.CreateGame)
			r.Patch("/{gameID}", gameHandler.UpdateGame)
			r.Delete("/{gameID}", gameHandler.DeleteGame)
			r.Post("/{gameID}/logo", gameHandler.UploadLogo)
		})
	})

	router.Route("/tournaments", func(r chi.Router) {
		r.Get("/", tournamentHandler.List)
		r.Get("/nearest", tournamentHandler.ListNearest)

		r.Group(func(r chi.Router) {
			r.Use(authn.Authenticate)
			r.Post("/", tournamentHandler.Create)
		})

		r.Route("/{tournamentID}", func(r chi.Router) {
			r.Get("/", tournamentHandler.GetByID)
			r.Get("/group-stage", tournamentHandler.GetStandings)
			r.Get("/playoff-stage", tournamentHandler.GetBracket)
			r.Get("/prize-table", tournamentHandler.GetPrizes)
			r.Get("/matches", matchHandler.ListByTournament)
			r.Get("/matches/{matchID}", matchHandler.GetMatch)

			r.Group(func(r chi.Router) {
				r.Use(authn.Authenticate)
				r.Patch("/", tournamentHandler.UpdateDetails)
				r.Delete("/", tournamentHandler.Delete)
				r.Post("/register", tournamentHandler.Register)
				r.Post("/unregister", tournamentHandler.Unregister)
				r.Post("/start", tournamentHandler.Start)
				r.Post("/reset", tournamentHandler.Reset)
				r.Post("/cancel", tournamentHandler.Cancel)
				r.Post("/complete", tournamentHandler.Complete)
				r.Post("/banner", tournamentHandler.UploadBanner)
				r.Patch("/highlight", tournamentHandler.SetHighlight)

				r.Post("/matches/{matchID}/start", matchHandler.StartMatch)
				r.Post("/matches/{matchID}/complete", matchHandler.CompleteMatch)
				r.Patch("/matches/{matchID}/result", matchHandler.UpdateResult)
				r.Post("/matches/{matchID}/maps/{mapID}/complete", matchHandler.CompleteMap)
			})
		})
	})

	router.Get("/ws/tournaments/{tournamentID}", wsHandler.ServeWS)

	router.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(docs.OpenAPI)
	})
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}
