// Package api serves the analysis over HTTP under /api/v1.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/gilchrisn/trail-community-service/pkg/metrics"
)

// SetupRoutes registers every endpoint on router
func SetupRoutes(router *mux.Router, handlers *Handlers) {
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", handlers.HealthCheck).Methods("GET")

	// Dataset management
	datasets := api.PathPrefix("/datasets").Subrouter()
	datasets.HandleFunc("", handlers.ListDatasets).Methods("GET")
	datasets.HandleFunc("", handlers.UploadDataset).Methods("POST")
	datasets.HandleFunc("/{datasetId}", handlers.GetDataset).Methods("GET")
	datasets.HandleFunc("/{datasetId}", handlers.DeleteDataset).Methods("DELETE")
	datasets.HandleFunc("/{datasetId}/years", handlers.ListYears).Methods("GET")
	datasets.HandleFunc("/{datasetId}/trend", handlers.GetTrend).Methods("GET")

	// Per-year analysis
	years := datasets.PathPrefix("/{datasetId}/years/{year:[0-9]+}").Subrouter()
	years.HandleFunc("/communities", handlers.GetCommunities).Methods("GET")
	years.HandleFunc("/statistics", handlers.GetStatistics).Methods("GET")
	years.HandleFunc("/graph", handlers.GetGraph).Methods("GET")
	years.HandleFunc("/trajectories", handlers.GetTrajectories).Methods("GET")
	years.HandleFunc("/communities/{communityId:[0-9]+}/frames", handlers.GetFrames).Methods("GET")
}

// NewRouter assembles routes, middleware, CORS and the metrics endpoint
func NewRouter(handlers *Handlers, mw *Middleware, m *metrics.Metrics, allowedOrigins []string) http.Handler {
	router := mux.NewRouter()
	SetupRoutes(router, handlers)
	if m != nil {
		router.Handle("/metrics", m.Handler()).Methods("GET")
	}

	router.Use(mw.RequestID)
	router.Use(mw.Logging)
	router.Use(mw.Recovery)
	router.Use(mw.RateLimit)

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{RequestIDHeader},
	})
	return c.Handler(router)
}
