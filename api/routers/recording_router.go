// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package recording_routers

import (
	"net/http"

	recordingApi "github.com/YamazakiYusuke/TalkToBook-sub002/api/recording-api"
	"github.com/YamazakiYusuke/TalkToBook-sub002/config"
	internal_recording "github.com/YamazakiYusuke/TalkToBook-sub002/internal/recording"
	internal_session "github.com/YamazakiYusuke/TalkToBook-sub002/internal/session"
	internal_transcription "github.com/YamazakiYusuke/TalkToBook-sub002/internal/transcription"
	"github.com/YamazakiYusuke/TalkToBook-sub002/pkg/commons"
	"github.com/YamazakiYusuke/TalkToBook-sub002/pkg/connectors"
	"github.com/gin-gonic/gin"
)

func RecordingApiRoutes(
	cfg *config.AppConfig,
	engine *gin.Engine,
	logger commons.Logger,
	store internal_recording.Store,
	sessions *internal_session.Manager,
	processor *internal_transcription.Processor,
) {
	logger.Info("Recording routes added to engine.")
	api := recordingApi.NewRecordingApi(cfg, logger, store, sessions, processor)
	apiv1 := engine.Group("/v1")
	{
		apiv1.POST("/recordings", api.StartRecording)
		apiv1.GET("/recordings", api.ListRecordings)
		apiv1.GET("/recordings/:id", api.GetRecording)
		apiv1.POST("/recordings/:id/pause", api.PauseRecording)
		apiv1.POST("/recordings/:id/resume", api.ResumeRecording)
		apiv1.POST("/recordings/:id/stop", api.StopRecording)
		apiv1.PUT("/recordings/:id/status", api.UpdateStatus)
		apiv1.POST("/recordings/:id/retry", api.RetryTranscription)
		apiv1.POST("/transcriptions/process", api.ProcessQueue)
		apiv1.GET("/session", api.SessionStatus)
	}
}

func HealthCheckRoutes(cfg *config.AppConfig, engine *gin.Engine, logger commons.Logger, database connectors.DatabaseConnector) {
	logger.Info("HealthCheck routes added to engine.")
	engine.GET("/healthz", func(c *gin.Context) {
		if err := database.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": cfg.Version})
	})
}
