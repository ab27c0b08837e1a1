package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/corpuskit/knowledge-engine/api/handlers"
	"github.com/corpuskit/knowledge-engine/api/routes"
	"github.com/corpuskit/knowledge-engine/internal/app"
	"github.com/corpuskit/knowledge-engine/internal/service/autofill"
	"github.com/corpuskit/knowledge-engine/internal/service/document"
	"github.com/corpuskit/knowledge-engine/internal/service/form"
	"github.com/corpuskit/knowledge-engine/internal/service/retrieval"
	"github.com/corpuskit/knowledge-engine/pkg/logger"
)

func main() {
	log, err := logger.NewLogger(
		logger.WithLevel("info"),
		logger.WithEncoding("json"),
		logger.WithOutputPaths([]string{"stdout", "logs/server.log"}),
		logger.WithConfigFile("config/logger.yaml"),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	components, err := app.Build(context.Background(), log)
	if err != nil {
		log.Fatal("Failed to build components", logger.Error(err))
	}
	defer components.Close()

	docService := document.NewService(
		components.DocStore, components.Storage, components.Extractor,
		components.Queue, components.Index, log,
	)
	retrievalService := retrieval.NewService(
		components.Embedder, components.Index, components.Rewriter,
		components.Generator, components.Config, log,
	)
	autofillService := autofill.NewService(
		components.FormStore, components.Storage, retrievalService,
		components.Config, log,
	)
	formService := form.NewService(components.FormStore, components.Storage, log)

	h := handlers.NewHandlers(docService, retrievalService, formService, autofillService, log)
	r := gin.New()
	r.Use(gin.Recovery())
	routes.SetupRoutes(r, h)

	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	go func() {
		log.Info("Server starting on port 8080")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error", logger.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", logger.Error(err))
	}
}
