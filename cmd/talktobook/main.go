// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	recording_routers "github.com/YamazakiYusuke/TalkToBook-sub002/api/routers"
	"github.com/YamazakiYusuke/TalkToBook-sub002/config"
	internal_audio "github.com/YamazakiYusuke/TalkToBook-sub002/internal/audio"
	internal_entity "github.com/YamazakiYusuke/TalkToBook-sub002/internal/entity"
	internal_recording "github.com/YamazakiYusuke/TalkToBook-sub002/internal/recording"
	internal_session "github.com/YamazakiYusuke/TalkToBook-sub002/internal/session"
	internal_timer "github.com/YamazakiYusuke/TalkToBook-sub002/internal/timer"
	internal_transcription "github.com/YamazakiYusuke/TalkToBook-sub002/internal/transcription"
	"github.com/YamazakiYusuke/TalkToBook-sub002/pkg/commons"
	"github.com/YamazakiYusuke/TalkToBook-sub002/pkg/connectors"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

func main() {
	v, err := config.InitConfig()
	if err != nil {
		log.Fatalf("failed to read configuration: %v", err)
	}
	cfg, err := config.GetAppConfig(v)
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger, err := commons.NewApplicationLogger(
		commons.Name(cfg.Name),
		commons.Path(cfg.LogPath),
		commons.Level(cfg.LogLevel),
	)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	database, err := connectors.NewDatabaseConnector(cfg, logger)
	if err != nil {
		logger.Fatalf("database connection failed: %v", err)
	}
	defer database.Close()

	if err := database.DB(context.Background()).AutoMigrate(&internal_entity.Recording{}); err != nil {
		logger.Fatalf("migration failed: %v", err)
	}

	redisConn, err := connectors.NewRedisConnector(cfg, logger)
	if err != nil {
		logger.Fatalf("redis connection failed: %v", err)
	}
	defer redisConn.Close()

	files, err := internal_audio.NewFileManager(logger, cfg.Audio.Directory, cfg.Audio.CacheLimitBytes)
	if err != nil {
		logger.Fatalf("audio storage setup failed: %v", err)
	}
	if err := files.EnforceCacheLimit(); err != nil {
		logger.Warnf("cache limit enforcement failed: %v", err)
	}

	store := internal_recording.NewStore(database, logger)
	tracker := internal_timer.NewTracker()

	deviceFactory := func() internal_audio.CaptureDevice {
		source, err := internal_audio.NewMicSource(logger)
		if err != nil {
			logger.Errorf("mic source unavailable: %v", err)
			source = nil
		}
		return internal_audio.NewWAVDevice(logger, source, true)
	}
	sessions := internal_session.NewManager(logger, store, files, tracker, deviceFactory)

	transcriber := internal_transcription.NewOpenAITranscriber(logger, &cfg.Transcription)
	cache := internal_transcription.NewRedisCache(logger, redisConn, cfg.Transcription.CacheTTL)
	connectivity := internal_transcription.NewProbeChecker(logger, cfg.Transcription.ProbeURL, cfg.Transcription.ProbePeriod)
	processor := internal_transcription.NewProcessor(logger, store, transcriber, cache, connectivity, files)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	recording_routers.HealthCheckRoutes(cfg, engine, logger, database)
	recording_routers.RecordingApiRoutes(cfg, engine, logger, store, sessions, processor)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Infof("%s %s listening on %s", cfg.Name, cfg.Version, server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		// A live capture must be released before the process exits.
		sessions.Cleanup()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Fatalf("server exited: %v", err)
	}
	logger.Info("shutdown complete")
}
