package main

import (
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"plantmeter-cloud/internal/auth"
	"plantmeter-cloud/internal/calendar"
	curvepostgres "plantmeter-cloud/internal/curve/infrastructure/postgres"
	fleet "plantmeter-cloud/internal/fleet/domain"
	fleetpostgres "plantmeter-cloud/internal/fleet/infrastructure/postgres"
	fleetregistry "plantmeter-cloud/internal/fleet/infrastructure/registry"
	"plantmeter-cloud/internal/ingest"
	apihttp "plantmeter-cloud/internal/interfaces/http"
	"plantmeter-cloud/internal/observability/metrics"
	"plantmeter-cloud/internal/production"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)

	resolver, err := calendar.NewResolver(cfg.Timezone)
	if err != nil {
		logger.Fatalf("timezone error: %v", err)
	}

	store := curvepostgres.NewStore(db)
	provider, err := buildFleetProvider(db, cfg, logger)
	if err != nil {
		logger.Fatalf("fleet provider error: %v", err)
	}

	ingestService, err := ingest.NewService(store, resolver, provider, nil, logger)
	if err != nil {
		logger.Fatalf("ingest service error: %v", err)
	}
	productionService, err := production.NewService(store, resolver, provider, logger)
	if err != nil {
		logger.Fatalf("production service error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/production", apihttp.NewProductionHandler(productionService))
	mux.Handle("/api/v1/production/update", apihttp.NewUpdateProductionHandler(ingestService, provider))
	mux.Handle("/api/v1/production/measurement-range", apihttp.NewMeasurementRangeHandler(productionService))
	mux.Handle("/api/v1/shares", apihttp.NewSharesHandler(productionService))
	mux.Handle("/api/v1/exports/production.xlsx", apihttp.NewExportProductionXLSXHandler(productionService))
	mux.Handle("/api/v1/exports/production.pdf", apihttp.NewExportProductionPDFHandler(productionService))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s timezone=%s", cfg.HTTPAddr, cfg.Timezone)
	logger.Fatal(server.ListenAndServe())
}

// buildFleetProvider prefers the yaml registry file when configured,
// otherwise reads the fleet tables from postgres.
func buildFleetProvider(db *sql.DB, cfg config, logger *log.Logger) (fleet.Provider, error) {
	if cfg.FleetRegistry != "" {
		provider, err := fleetregistry.Load(cfg.FleetRegistry)
		if err != nil {
			return nil, err
		}
		logger.Printf("fleet registry loaded from %s", cfg.FleetRegistry)
		return provider, nil
	}
	return fleetpostgres.NewProvider(db), nil
}

type config struct {
	DatabaseURL   string
	HTTPAddr      string
	Timezone      string
	FleetRegistry string
	JWTSecret     string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:   getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:      getenvDefault("HTTP_ADDR", ":8080"),
		Timezone:      getenvDefault("PLANT_TZ", "Europe/Madrid"),
		FleetRegistry: getenvDefault("FLEET_REGISTRY", ""),
		JWTSecret:     getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
