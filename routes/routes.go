package routes

import (
	"net/http"

	"github.com/Dosada05/chess-clubs/docs"
	"github.com/Dosada05/chess-clubs/handlers"
	"github.com/Dosada05/chess-clubs/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // Alias to avoid conflict
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

// Handlers собирает все HTTP-обработчики приложения.
type Handlers struct {
	Auth       *handlers.AuthHandler
	Club       *handlers.ClubHandler
	Tournament *handlers.TournamentHandler
	Bracket    *handlers.BracketHandler
	WebSocket  *handlers.WebSocketHandler
}

type Options struct {
	JWTSecret      []byte
	AllowedOrigins []string
	Logger         *zap.Logger
}

func SetupRoutes(router chi.Router, h Handlers, opts Options) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.RequestLogger(opts.Logger))
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/swagger/doc.json", docs.Handler)
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	authenticate := middleware.Authenticate(opts.JWTSecret)

	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Auth.Register)
		r.Post("/login", h.Auth.Login)
	})

	router.Route("/clubs", func(r chi.Router) {
		// Публичные маршруты для просмотра клубов
		r.Get("/", h.Club.ListClubs)
		r.Get("/{clubID}", h.Club.GetClub)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Post("/", h.Club.CreateClub)
			r.Delete("/{clubID}", h.Club.DeleteClub)
			r.Put("/{clubID}/logo", h.Club.UploadLogo)

			r.Post("/{clubID}/applications", h.Club.Apply)
			r.Delete("/{clubID}/applications/{membershipID}", h.Club.DeclineApplication)

			r.Get("/{clubID}/members", h.Club.ListMembers)
			r.Post("/{clubID}/members/{membershipID}/approve", h.Club.ApproveApplication)
			r.Post("/{clubID}/members/{membershipID}/promote", h.Club.PromoteToOfficer)
			r.Post("/{clubID}/members/{membershipID}/transfer-ownership", h.Club.TransferOwnership)

			r.Get("/{clubID}/tournaments", h.Tournament.ListClubTournaments)
			r.Post("/{clubID}/tournaments", h.Tournament.CreateTournament)
			r.Get("/{clubID}/tournaments/joinable", h.Tournament.ListJoinable)
			r.Get("/{clubID}/tournaments/mine", h.Tournament.ListMine)
		})
	})

	router.Route("/tournaments/{tournamentID}", func(r chi.Router) {
		r.Use(authenticate)

		r.Get("/", h.Tournament.GetBracket)

		r.Post("/participants", h.Tournament.Join)
		r.Delete("/participants/me", h.Tournament.Leave)

		r.Get("/co-organisers", h.Tournament.ListCoOrganisers)
		r.Post("/co-organisers/{membershipID}", h.Tournament.AddCoOrganiser)
		r.Delete("/co-organisers/{membershipID}", h.Tournament.RemoveCoOrganiser)

		r.Post("/rounds", h.Bracket.AdvanceRound)
		r.Post("/matches/{matchID}/conclusion", h.Bracket.ResolveMatch)
	})

	router.With(authenticate).Get("/ws/tournaments/{tournamentID}", h.WebSocket.ServeWs)
}

// NewRouter returns a chi router with every application route mounted.
func NewRouter(h Handlers, opts Options) *chi.Mux {
	router := chi.NewRouter()
	SetupRoutes(router, h, opts)
	return router
}
