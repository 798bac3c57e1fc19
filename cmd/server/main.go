package main

import (
	"database/sql"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/puntogamer/gamestore/internal/catalog"
	"github.com/puntogamer/gamestore/internal/config"
	"github.com/puntogamer/gamestore/internal/db"
	"github.com/puntogamer/gamestore/internal/importer"
	"github.com/puntogamer/gamestore/internal/migrations"
	"github.com/puntogamer/gamestore/internal/seed"
)

type server struct {
	auth       *authService
	db         *sql.DB
	store      *catalog.Store
	importer   *importer.Importer
	feedClient *http.Client
	batchSize  int
	log        zerolog.Logger
}

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg := config.Load()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer database.Close()

	if cfg.IsDev() {
		if err := migrations.Up(database, "migrations"); err != nil {
			logger.Fatal().Err(err).Msg("failed to run database migrations")
		}
	}

	if _, err := seed.Run(database, seed.Config{
		AdminEmail:    cfg.AdminEmail,
		AdminPassword: cfg.AdminPassword,
	}); err != nil {
		logger.Fatal().Err(err).Msg("failed to run startup seed")
	}

	store := catalog.NewStore(database)
	srv := &server{
		auth:       newAuthService(database, cfg.SessionSecret),
		db:         database,
		store:      store,
		importer:   importer.New(store, cfg.BatchSize),
		feedClient: &http.Client{Timeout: cfg.FeedTimeout},
		batchSize:  cfg.BatchSize,
		log:        logger,
	}

	r := chi.NewRouter()
	r.Use(srv.authMiddleware)
	r.Get("/healthz", srv.handleHealth)
	r.Post("/login", srv.handleLogin)
	r.Post("/logout", srv.handleLogout)
	r.Get("/api/settings", srv.handleGetSettings)
	r.Put("/api/settings", srv.handleUpdateSettings)
	r.Get("/api/products", srv.handleListProducts)
	r.Post("/api/products", srv.handleCreateProduct)
	r.Put("/api/products/{id}", srv.handleUpdateProduct)
	r.Post("/api/sync", srv.handleSync)
	r.Post("/api/import", srv.handleImport)
	r.Post("/api/recalculate", srv.handleRecalculate)
	r.Get("/api/sync/runs", srv.handleListSyncRuns)

	addr := ":" + cfg.Port
	logger.Info().Str("addr", addr).Msg("listening")
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func (s *server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" || r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		if !isAuthenticated(r, s.auth) {
			respondError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
