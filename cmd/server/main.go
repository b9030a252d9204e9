package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"moldetect-service/internal/config"
	"moldetect-service/internal/detector"
	"moldetect-service/internal/handler"
	"moldetect-service/internal/middleware"
	"moldetect-service/internal/service"
	"moldetect-service/internal/store"
	"moldetect-service/internal/visualizer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	initLogger(cfg)

	// The output directory must be usable before any request arrives.
	outputStore, err := store.New(cfg.Output.Dir)
	if err != nil {
		log.Fatalf("prepare output directory: %v", err)
	}
	log.WithField("dir", outputStore.Dir()).Info("output directory ready")

	if err := detector.Initialize(cfg.Model.OnnxLibPath); err != nil {
		log.Fatalf("initialize onnx runtime: %v", err)
	}
	defer detector.Shutdown()

	// A missing checkpoint degrades the service instead of killing it:
	// the instance starts, /health reports unhealthy, and the probe
	// supervisor decides what to do with the container.
	pool := buildPool(cfg)
	if pool != nil {
		defer pool.Close()
	}

	renderer, err := visualizer.New()
	if err != nil {
		log.Fatalf("initialize visualizer: %v", err)
	}

	detectionSvc := service.NewDetectionService(poolOrNil(pool))
	visualizationSvc := service.NewVisualizationService(detectionSvc, renderer, outputStore)

	h := handler.New(detectionSvc, visualizationSvc, statsOrNil(pool))

	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Logging(), gin.Recovery())
	h.RegisterRoutes(router)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		log.Infof("starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("server forced shutdown: %v", err)
	}

	log.Info("server stopped")
}

func buildPool(cfg *config.Config) *detector.Pool {
	opts := detector.Options{
		ModelPath:      cfg.Model.Path,
		Device:         cfg.Model.Device,
		InputSize:      cfg.Model.InputSize,
		ScoreThreshold: cfg.Model.ScoreThreshold,
		IoUThreshold:   cfg.Model.IoUThreshold,
	}

	pool, err := detector.NewPool(func() (detector.Predictor, error) {
		return detector.NewSession(opts)
	}, cfg.Model.PoolSize)
	if err != nil {
		log.WithError(err).Warn("model load failed, starting degraded")
		return nil
	}

	log.WithFields(log.Fields{
		"model":  cfg.Model.Path,
		"device": pool.Device(),
		"pool":   cfg.Model.PoolSize,
	}).Info("model loaded")
	return pool
}

// poolOrNil avoids handing a typed-nil *detector.Pool to the service as
// a non-nil interface.
func poolOrNil(pool *detector.Pool) service.SessionPool {
	if pool == nil {
		return nil
	}
	return pool
}

func statsOrNil(pool *detector.Pool) handler.PoolStats {
	if pool == nil {
		return nil
	}
	return pool
}

func initLogger(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Logger.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}
