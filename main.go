package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"octopus-importer/internal/consumption/adapters/kraken"
	"octopus-importer/internal/consumption/application"
	consumptionhttp "octopus-importer/internal/consumption/interfaces/http"
	krakenapi "octopus-importer/internal/kraken"
	"octopus-importer/internal/observability/metrics"
	"octopus-importer/internal/statstore"
	statstorememory "octopus-importer/internal/statstore/memory"
	statstorepostgres "octopus-importer/internal/statstore/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	importerCfg, err := application.LoadConfig()
	if err != nil {
		logger.Fatalf("importer config error: %v", err)
	}

	var store statstore.Store
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("db open error: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatalf("db ping error: %v", err)
		}
		store, err = statstorepostgres.NewStore(db)
		if err != nil {
			logger.Fatalf("statistics store error: %v", err)
		}
	} else {
		logger.Printf("DATABASE_URL not set, statistics will not survive restarts")
		store = statstorememory.NewStore()
	}

	metrics.Init()

	client, err := krakenapi.NewClient(
		krakenapi.Credentials{Email: cfg.Email, Password: cfg.Password, APIKey: cfg.APIKey},
		krakenapi.WithEndpoint(cfg.GraphQLEndpoint),
	)
	if err != nil {
		logger.Fatalf("kraken client error: %v", err)
	}
	adapter, err := kraken.NewAdapter(client)
	if err != nil {
		logger.Fatalf("kraken adapter error: %v", err)
	}

	live := application.NewLiveState()
	importer, err := application.NewImporter(store, adapter, live, logger,
		application.WithWindow(importerCfg.WindowDays, importerCfg.MarginDays),
		application.WithBillingReader(adapter),
	)
	if err != nil {
		logger.Fatalf("importer error: %v", err)
	}

	var accounts application.AccountLister = adapter
	if len(importerCfg.Accounts) > 0 {
		accounts = application.StaticAccounts(importerCfg.Accounts)
	}

	controller, err := application.NewController(importer, accounts, logger)
	if err != nil {
		logger.Fatalf("controller error: %v", err)
	}
	scheduler, err := application.NewScheduler(controller, importerCfg.UpdateInterval, logger)
	if err != nil {
		logger.Fatalf("scheduler error: %v", err)
	}
	go scheduler.Start(context.Background())

	seriesHandler, err := consumptionhttp.NewSeriesHandler(live, store)
	if err != nil {
		logger.Fatalf("series handler error: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/series", seriesHandler)
	mux.Handle("/api/v1/series/", seriesHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(mux, logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL     string
	HTTPAddr        string
	Email           string
	Password        string
	APIKey          string
	GraphQLEndpoint string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:     getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:        getenvDefault("HTTP_ADDR", ":8080"),
		Email:           getenvDefault("OCTOPUS_EMAIL", ""),
		Password:        getenvDefault("OCTOPUS_PASSWORD", ""),
		APIKey:          getenvDefault("OCTOPUS_API_KEY", ""),
		GraphQLEndpoint: getenvDefault("OCTOPUS_GRAPHQL_ENDPOINT", ""),
	}
	if cfg.APIKey == "" && (cfg.Email == "" || cfg.Password == "") {
		log.Fatal("OCTOPUS_API_KEY or OCTOPUS_EMAIL/OCTOPUS_PASSWORD is required")
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
