package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/studikumbang/relay-coordination/internal/audit"
	"github.com/studikumbang/relay-coordination/internal/auth"
	"github.com/studikumbang/relay-coordination/internal/coordination"
	"github.com/studikumbang/relay-coordination/internal/eventing"
	masterdata "github.com/studikumbang/relay-coordination/internal/masterdata/domain"
	memoryrepo "github.com/studikumbang/relay-coordination/internal/masterdata/infrastructure/memory"
	masterdatarepo "github.com/studikumbang/relay-coordination/internal/masterdata/infrastructure/postgres"
	masterdatahttp "github.com/studikumbang/relay-coordination/internal/masterdata/interfaces/http"
	"github.com/studikumbang/relay-coordination/internal/observability/metrics"
	protectionapp "github.com/studikumbang/relay-coordination/internal/protection/application"
	protectionhttp "github.com/studikumbang/relay-coordination/internal/protection/interfaces/http"
	"github.com/studikumbang/relay-coordination/internal/protection/notify"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	var (
		db       *sql.DB
		sensors  masterdata.SensorRepository
		breakers masterdata.BreakerRepository
		relays   masterdata.RelayRepository
	)

	if cfg.DatabaseURL != "" {
		var err error
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("db open error: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatalf("db ping error: %v", err)
		}
		sensors = masterdatarepo.NewSensorRepository(db)
		breakers = masterdatarepo.NewBreakerRepository(db)
		relays = masterdatarepo.NewRelayRepository(db)
	} else {
		sensorRepo := memoryrepo.NewSensorRepository()
		breakerRepo := memoryrepo.NewBreakerRepository()
		relayRepo := memoryrepo.NewRelayRepository()
		fleetFile, err := protectionapp.LoadFleetFile(cfg.FleetConfig)
		if err != nil {
			logger.Fatalf("fleet config error: %v", err)
		}
		if err := fleetFile.Seed(context.Background(), sensorRepo, breakerRepo, relayRepo); err != nil {
			logger.Fatalf("fleet seed error: %v", err)
		}
		if cfg.TenantID == "" {
			cfg.TenantID = fleetFile.TenantID
		}
		sensors, breakers, relays = sensorRepo, breakerRepo, relayRepo
		logger.Printf("fleet loaded from %s: %d relays", cfg.FleetConfig, len(fleetFile.Relays))
	}

	metrics.Init(db, logger)

	bus := eventing.NewInMemoryBus()
	if cfg.WebhookURL != "" {
		templates, err := notify.NewTemplates(cfg.BreakerTemplate, cfg.DiagnosticTemplate)
		if err != nil {
			logger.Fatalf("notify template error: %v", err)
		}
		opts := []notify.Option{}
		if cfg.NotifyDedupeWindow > 0 {
			opts = append(opts, notify.WithDedupeWindow(cfg.NotifyDedupeWindow))
		}
		notifier, err := notify.NewNotifier(notify.NewWebhookChannel(cfg.WebhookURL), templates, logger, opts...)
		if err != nil {
			logger.Fatalf("notifier error: %v", err)
		}
		notifier.Subscribe(bus)
	}

	fleets, err := protectionapp.NewFleetBuilder(sensors, breakers, relays)
	if err != nil {
		logger.Fatalf("fleet builder error: %v", err)
	}

	studyOpts := []protectionapp.StudyOption{protectionapp.WithEventBus(bus)}
	if db != nil {
		studyOpts = append(studyOpts, protectionapp.WithAuditLogger(audit.NewRepository(db)))
	}
	studyService, err := protectionapp.NewStudyService(fleets, coordination.NewAnalyzer(), cfg.TenantID, logger, studyOpts...)
	if err != nil {
		logger.Fatalf("study service error: %v", err)
	}

	handler, err := protectionhttp.NewHandler(studyService)
	if err != nil {
		logger.Fatalf("http handler error: %v", err)
	}
	settingsHandler, err := masterdatahttp.NewHandler(sensors, breakers, relays, cfg.TenantID)
	if err != nil {
		logger.Fatalf("settings handler error: %v", err)
	}
	settingsHandler = settingsHandler.WithFleetInvalidator(studyService)
	if db != nil {
		settingsHandler = settingsHandler.WithAuditLogger(audit.NewRepository(db))
	}

	mux := http.NewServeMux()
	handler.Register(mux)
	settingsHandler.Register(mux)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	var root http.Handler = mux
	if cfg.JWTSecret != "" {
		policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
		root = auth.NewMiddleware([]byte(cfg.JWTSecret), policy).Wrap(mux)
	} else {
		logger.Printf("AUTH_JWT_SECRET not set, running without authentication")
	}

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(root, logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL        string
	FleetConfig        string
	HTTPAddr           string
	TenantID           string
	JWTSecret          string
	WebhookURL         string
	BreakerTemplate    string
	DiagnosticTemplate string
	NotifyDedupeWindow time.Duration
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:        getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		FleetConfig:        getenvDefault("FLEET_CONFIG", ""),
		HTTPAddr:           getenvDefault("HTTP_ADDR", ":8080"),
		TenantID:           getenvDefault("TENANT_ID", ""),
		JWTSecret:          getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		WebhookURL:         getenvDefault("WEBHOOK_URL", ""),
		BreakerTemplate:    getenvDefault("BREAKER_NOTIFY_TEMPLATE", ""),
		DiagnosticTemplate: getenvDefault("DIAGNOSTIC_NOTIFY_TEMPLATE", ""),
		NotifyDedupeWindow: getenvDuration("NOTIFY_DEDUP_WINDOW", 0),
	}
	if cfg.DatabaseURL == "" && cfg.FleetConfig == "" {
		log.Fatal("DATABASE_URL or FLEET_CONFIG is required")
	}
	if cfg.DatabaseURL != "" && cfg.TenantID == "" {
		log.Fatal("TENANT_ID is required when running against a database")
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

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		elapsed := time.Since(start)
		metrics.ObserveHTTPRequest(r.URL.Path, strconv.Itoa(resp.status), elapsed)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, elapsed)
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
