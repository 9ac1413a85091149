// Package httpapi exposes the session engine over HTTP. Requests and
// responses are JSON; protected routes take an "Authorization: Bearer"
// header.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/gorilla/mux"
)

const shutdownTimeout = 10 * time.Second

// AuthService is the part of services.AuthService the handlers depend on.
type AuthService interface {
	Signup(ctx context.Context, in services.SignupInput) (*services.AuthResult, error)
	Login(ctx context.Context, in services.LoginInput) (*services.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Authorize(ctx context.Context, token string) (*models.Identity, error)
	Logout(ctx context.Context, userID int64) (int64, error)
	GetProfile(ctx context.Context, userID int64) (*models.Profile, error)
	ListSessions(ctx context.Context, userID int64, limit int) ([]*models.LoginRecord, error)
	SetSessionStatus(ctx context.Context, userID, sessionID int64, active bool, ip *string) (*models.LoginRecord, error)
}

type HTTPServer struct {
	address string
	auth    AuthService
	logger  logging.Logger
}

func NewHTTPServer(address string, l logging.Logger, svc AuthService) *HTTPServer {
	return &HTTPServer{
		address: address,
		auth:    svc,
		logger:  l.With("module", "http_server"),
	}
}

// Handler builds the router with every route and middleware attached.
func (s *HTTPServer) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)

	a := r.PathPrefix("/auth").Subrouter()
	a.HandleFunc("/signup", s.signup).Methods(http.MethodPost)
	a.HandleFunc("/login", s.login).Methods(http.MethodPost)
	a.HandleFunc("/refresh", s.refresh).Methods(http.MethodPost)
	a.HandleFunc("/logout", s.requireAuth(s.logout)).Methods(http.MethodPost)
	a.HandleFunc("/me", s.requireAuth(s.me)).Methods(http.MethodGet)
	a.HandleFunc("/sessions", s.requireAuth(s.listSessions)).Methods(http.MethodGet)
	a.HandleFunc("/sessions/{id:[0-9]+}", s.requireAuth(s.setSessionStatus)).Methods(http.MethodPatch)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "ROUTE_NOT_FOUND", "route not found", nil)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})

	return r
}

// Run serves until ctx is cancelled and then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	done := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.logger.Info(context.Background(), "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		done <- srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-done
}
