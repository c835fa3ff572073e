package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/quipper/lti/nrps/internal/config"
	nrpsHandler "github.com/quipper/lti/nrps/internal/controller/http/nrps"
	"github.com/quipper/lti/nrps/internal/membership"
	sqliteRepo "github.com/quipper/lti/nrps/internal/repositories/lti/sqlite"
	rosterSqlite "github.com/quipper/lti/nrps/internal/repositories/roster/sqlite"
	"github.com/quipper/lti/nrps/pkg/common/jwkscache"
	"github.com/quipper/lti/nrps/pkg/common/keys"
	"github.com/quipper/lti/nrps/pkg/common/logger"
	"github.com/quipper/lti/nrps/pkg/lti/validator"
	"github.com/quipper/lti/nrps/pkg/nrps/server"
)

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept")
		w.Header().Set("Access-Control-Expose-Headers", "Link")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config: %v", err)
		os.Exit(1)
	}
	logger.Initialize(cfg.LogLevel)
	if cfg.LogFormat == "json" {
		logger.UseJSON()
	}
	logger.Info("starting server")

	platformKeys, err := keys.Load(keys.Source{
		Kid:       cfg.PlatformKid,
		PEM:       cfg.PlatformPrivateKeyPEM,
		PEMBase64: cfg.PlatformPrivateKeyB64,
	})
	if err != nil {
		logger.Error("init keys: %v", err)
		os.Exit(1)
	}

	repo, err := sqliteRepo.NewSQLiteRepo(cfg.SQLitePath)
	if err != nil {
		logger.Error("init registrations repo: %v", err)
		os.Exit(1)
	}

	// Roster repository (NRPS storage)
	rosterRepo, err := rosterSqlite.NewSQLiteRepo(cfg.RosterSQLitePath)
	if err != nil {
		logger.Error("init roster repo: %v", err)
		os.Exit(1)
	}

	keySet := validator.StaticKeySet(platformKeys.PublicSet())
	if cfg.AccessTokenJWKSURL != "" {
		keySet = jwkscache.Provider(jwkscache.Default(), cfg.AccessTokenJWKSURL)
	}
	tokenValidator := validator.New(keySet, repo, cfg.AccessTokenAudience)
	builder := membership.NewRosterBuilder(rosterRepo, cfg.DefaultPageSize, cfg.MaxPageSize)
	service := validator.NewServiceServer(tokenValidator, server.NewHandler(builder))

	h := nrpsHandler.NewHandler(repo, rosterRepo, platformKeys, service, cfg.PublicBaseURL)
	router := chi.NewRouter()
	const maxBodySize = 2_100_000
	router.Use(middleware.RequestSize(maxBodySize))
	router.Use(middleware.Recoverer)
	router.Mount("/", h.Router())

	addr := ":" + cfg.Port
	srv := &http.Server{Addr: addr, Handler: withCORS(router), ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logger.Info("listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen: %v", err)
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown: %v", err)
	}
	repo.Disconnect()
	rosterRepo.Disconnect()
	logger.Info("server stopped")
}
