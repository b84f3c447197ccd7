// cmd/server/main.go
package main

import (
	"log"
	"net/http"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/playgrid/arcade/internal/auth"
	"github.com/playgrid/arcade/internal/cache"
	"github.com/playgrid/arcade/internal/database"
	"github.com/playgrid/arcade/internal/handlers"
	"github.com/playgrid/arcade/internal/middleware"
	"github.com/playgrid/arcade/internal/workers"
	"github.com/sirupsen/logrus"
)

func main() {
	auth.Init()
	database.ConnectDB()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	if err := cache.ConnectRedis(); err != nil {
		// The move ledger is best-effort; the server stays up without it.
		logger.Warnf("redis unavailable, move ledger disabled: %v", err)
	}

	srv := handlers.NewServer(logger)

	mux := http.NewServeMux()
	logged := middleware.LogMiddleware(logger)

	// user endpoints
	mux.Handle("POST /user/create", logged(http.HandlerFunc(handlers.CreateUserHandler)))
	mux.Handle("POST /user/login", logged(http.HandlerFunc(handlers.LoginHandler)))
	mux.Handle("GET /user/me", logged(http.HandlerFunc(handlers.MeHandler)))

	// matchmaking
	mux.Handle("POST /match/find", logged(handlers.FindMatchHandler(srv)))
	mux.Handle("POST /match/cancel", logged(handlers.CancelMatchHandler(srv)))

	// invites
	mux.Handle("POST /invite/create", logged(handlers.CreateInviteHandler(srv)))
	mux.Handle("POST /invite/respond", logged(handlers.RespondInviteHandler(srv)))
	mux.Handle("GET /invite/list", logged(http.HandlerFunc(handlers.ListInvitesHandler)))
	mux.Handle("GET /invite/{id}", logged(http.HandlerFunc(handlers.GetInviteHandler)))

	// game state + turns
	mux.Handle("GET /game/{id}", logged(http.HandlerFunc(handlers.GetGameHandler)))
	mux.Handle("GET /game/{id}/moves", logged(http.HandlerFunc(handlers.ListMovesHandler)))
	mux.Handle("POST /game/turn", logged(handlers.SubmitTurnHandler(srv)))

	// Realtime feeds are not wrapped in LogMiddleware: the status recorder
	// would hide the Hijacker the websocket upgrade needs. The handlers log
	// connect/disconnect themselves.
	mux.Handle("GET /game/feed/{id}", handlers.GameFeedHandler(logger, srv))
	mux.Handle("GET /invite/feed/{id}", handlers.InviteFeedHandler(logger, srv))

	sweeper := workers.NewForfeitSweeper(srv.Hub, logger)
	if err := sweeper.Start(); err != nil {
		log.Fatalf("failed to start forfeit sweeper: %v", err)
	}
	defer sweeper.Stop()

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
