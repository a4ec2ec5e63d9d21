package router

import (
	"io"
	"net/http"
	"strings"

	"pubsubfn/internal/api/v1/handler"
	"pubsubfn/internal/config"
	"pubsubfn/internal/metrics"
	"pubsubfn/internal/middleware"
	"pubsubfn/internal/pubsub"
	"pubsubfn/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// New builds the HTTP handler of the standalone service. publisher is owned
// by the caller.
func New(cfg *config.Config, logger zerolog.Logger, publisher pubsub.Publisher, reg *metrics.Registry) http.Handler {
	logger.Info().Str("environment", cfg.Environment).Bool("emulator", cfg.IsLocal()).Msg("Router initialized")

	// 1. Initialize validator
	validate := validator.New(validator.WithRequiredStructEnabled())

	// 2. Initialize services & handlers
	publishSvc := service.NewPublishService(publisher, validate, reg, logger)
	subscribeSvc := service.NewSubscribeService(reg, logger)

	publishHandler := handler.NewPublishHandler(publishSvc, logger)
	subscribeHandler := handler.NewSubscribeHandler(subscribeSvc, logger)

	// 3. Initialize middleware
	pubsubAuthMiddleware := middleware.PubSubAuthMiddleware(cfg.IsLocal(), cfg.PubSubPushAudience, cfg.PubSubPushServiceAccountEmail, logger)

	// 4. Create ServeMux router
	mux := http.NewServeMux()

	apiV1Mux := http.NewServeMux()
	publishHandler.RegisterRoutes(apiV1Mux)
	subscribeHandler.RegisterRoutes(apiV1Mux, pubsubAuthMiddleware)

	// Mount the API v1 routes under /v1
	mux.Handle("/v1/", http.StripPrefix("/v1", apiV1Mux))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok")
	})
	if reg != nil {
		mux.Handle("/metrics", reg.Handler())
	}

	// Redirect /api/* to /v1/* for backward compatibility
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/")
		http.Redirect(w, r, "/v1/"+rest, http.StatusPermanentRedirect)
	})

	// Redirect all other root-level requests to /v1/{path}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" || strings.HasPrefix(r.URL.Path, "/v1/") || strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/v1"+r.URL.Path, http.StatusPermanentRedirect)
	})

	// 5. Apply CORS middleware
	c := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})

	return middleware.LoggerMiddleware(logger)(c.Handler(mux))
}
