// internal/handlers/server.go
package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/playgrid/arcade/internal/auth"
	"github.com/playgrid/arcade/internal/realtime"
	"github.com/sirupsen/logrus"
)

// Server bundles the per-process realtime hub and logger shared by the
// match, invite, turn and feed handlers.
type Server struct {
	Hub    *realtime.Hub
	Logger *logrus.Logger
}

func NewServer(logger *logrus.Logger) *Server {
	return &Server{
		Hub:    realtime.NewHub(),
		Logger: logger,
	}
}

// authedUser resolves the caller from either the auth_token cookie (browser
// clients) or an Authorization: Bearer header (the Go sync client).
func authedUser(r *http.Request) (uuid.UUID, error) {
	token := bearerToken(r)
	if token == "" {
		token = extractCookieToken(r.Header.Get("Cookie"), "auth_token")
	}
	if token == "" {
		return uuid.Nil, errMissingToken
	}
	userIDStr, err := auth.AuthenticateJWT(token)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(userIDStr)
}
