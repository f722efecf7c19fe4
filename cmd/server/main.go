package main

import (
	"context"
	"fmt"
	"net/http"

	"cloud.google.com/go/firestore"
	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/budgetme/prediction-api/internal/auth"
	"github.com/budgetme/prediction-api/internal/config"
	"github.com/budgetme/prediction-api/internal/forecast"
	"github.com/budgetme/prediction-api/internal/insights"
	"github.com/budgetme/prediction-api/internal/service"
	"github.com/budgetme/prediction-api/internal/store"
	"github.com/budgetme/prediction-api/internal/usage"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	var storeImpl store.Store
	var firebaseAuth *auth.FirebaseAuth

	if cfg.UseMemoryStore {
		log.Info("using in-memory store for local development")
		storeImpl = store.NewMemoryStore()
	} else {
		firestoreClient, err := firestore.NewClient(ctx, cfg.GoogleCloudProject)
		if err != nil {
			log.WithError(err).Fatal("failed to create Firestore client")
		}
		storeImpl = store.NewFirestoreStore(firestoreClient)
	}
	defer storeImpl.Close() //nolint:errcheck

	// Memory-store mode always runs without real auth for a seamless local
	// setup; otherwise SKIP_AUTH must be set explicitly.
	skipAuth := cfg.SkipAuth || cfg.UseMemoryStore
	if skipAuth {
		log.Warn("authentication disabled - development mode only")
	} else {
		var err error
		firebaseAuth, err = auth.NewFirebaseAuth(ctx, cfg.FirebaseCredentialsFile)
		if err != nil {
			log.WithError(err).Fatal("failed to initialize Firebase Auth")
		}
	}

	usageSvc := usage.NewService(storeImpl, cfg.MaxPredictionsPerMonth, log)
	pipeline := forecast.NewPipeline(forecast.PipelineOptions{
		MaxConcurrentFits: cfg.MaxConcurrentFits,
		Logger:            log,
	})

	var generator insights.Generator
	if cfg.OpenRouterAPIKey != "" {
		generator = insights.NewOpenRouterGenerator(insights.OpenRouterConfig{
			APIKey: cfg.OpenRouterAPIKey,
			Model:  cfg.OpenRouterModel,
			Logger: log,
		})
	} else {
		log.Info("no OpenRouter API key configured, using rule-based insights")
		generator = insights.NewFallbackGenerator()
	}

	predictionService := service.New(pipeline, storeImpl, usageSvc, generator, log)

	// Expired quota windows recover hourly even for inactive users.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@hourly", func() {
		swept, err := usageSvc.SweepExpired(context.Background())
		if err != nil {
			log.WithError(err).Warn("usage sweep failed")
			return
		}
		if swept > 0 {
			log.WithField("records", swept).Info("reset expired usage windows")
		}
	}); err != nil {
		log.WithError(err).Fatal("failed to schedule usage sweep")
	}
	scheduler.Start()
	defer scheduler.Stop()

	router := mux.NewRouter()
	router.HandleFunc("/health", service.HealthHandler).Methods("GET")

	authed := router.PathPrefix("/api/v1").Subrouter()
	var verifier auth.TokenVerifier
	if firebaseAuth != nil {
		verifier = firebaseAuth
	}
	authed.Use(auth.Middleware(verifier, skipAuth, log))
	authed.Use(service.RequestLogging(log))
	predictionService.Routes(authed)
	predictionService.AdminRoutes(authed)

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Debug-Impersonate-User",
		},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: h2c.NewHandler(c.Handler(router), &http2.Server{}),
	}

	log.WithField("port", cfg.Port).Info("starting prediction server")
	if err := srv.ListenAndServe(); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}
