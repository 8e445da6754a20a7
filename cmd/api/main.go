package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	restful "github.com/emicklei/go-restful/v3"
	"github.com/go-openapi/spec"
	"github.com/joho/godotenv"
	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/answer"
	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/middleware"
	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/setup"
	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/setup/logger"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

func enrichSwaggerObject(swo *spec.Swagger) {
	swo.Info = &spec.Info{
		InfoProps: spec.InfoProps{
			Title:       "KB Legal Assistant API",
			Description: "Retrieval-grounded answers for Spanish immigration law questions",
			Version:     "1.0.0",
		},
	}
	swo.Tags = []spec.Tag{
		{TagProps: spec.TagProps{Name: "health", Description: "Health checks"}},
		{TagProps: spec.TagProps{Name: "answer", Description: "Question answering"}},
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found")
	}

	cfg := setup.LoadConfig()
	appLogger := logger.New(cfg.LogLevel, cfg.LogPretty)
	log.Logger = appLogger

	appLogger.Info().Msg("Starting KB Legal Assistant API server")

	ctx := context.Background()
	deps, err := setup.Wire(ctx, cfg, &appLogger)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	container := restful.NewContainer()
	container.Filter(middleware.Logger)
	container.Filter(middleware.RecoverPanic)

	answer.RegisterRoutes(container, deps.Handler)

	openAPIConfig := restfulspec.Config{
		WebServices:                   container.RegisteredWebServices(),
		APIPath:                       "/api/v1/openapi.json",
		PostBuildSwaggerObjectHandler: enrichSwaggerObject,
	}
	container.Add(restfulspec.NewOpenAPIService(openAPIConfig))

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})

	addr := fmt.Sprintf(":%s", cfg.Port)
	appLogger.Info().Str("address", addr).Msg("Starting server")

	server := http.Server{
		Addr:        addr,
		Handler:     corsHandler.Handler(container),
		ReadTimeout: 15 * time.Second,
		// No write timeout: the stream endpoint holds the connection open
		// for the duration of generation.
		IdleTimeout: 60 * time.Second,
	}

	if err := server.ListenAndServe(); err != nil {
		appLogger.Fatal().Err(err).Msg("Server failed to start")
	}
}
