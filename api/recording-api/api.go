// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package recording_api

import (
	"net/http"

	"github.com/YamazakiYusuke/TalkToBook-sub002/config"
	internal_recording "github.com/YamazakiYusuke/TalkToBook-sub002/internal/recording"
	internal_session "github.com/YamazakiYusuke/TalkToBook-sub002/internal/session"
	internal_transcription "github.com/YamazakiYusuke/TalkToBook-sub002/internal/transcription"
	"github.com/YamazakiYusuke/TalkToBook-sub002/pkg/commons"
	"github.com/YamazakiYusuke/TalkToBook-sub002/pkg/types"
	"github.com/YamazakiYusuke/TalkToBook-sub002/pkg/utils"
	"github.com/gin-gonic/gin"
)

// RecordingApi exposes the session manager and queue processor operations to
// the presentation layer. Every handler returns either the recording (or an
// explicit null on a graceful no-op) or a classified error, never a raw
// platform failure.
type RecordingApi struct {
	cfg       *config.AppConfig
	logger    commons.Logger
	store     internal_recording.Store
	sessions  *internal_session.Manager
	processor *internal_transcription.Processor
}

func NewRecordingApi(
	cfg *config.AppConfig,
	logger commons.Logger,
	store internal_recording.Store,
	sessions *internal_session.Manager,
	processor *internal_transcription.Processor,
) *RecordingApi {
	return &RecordingApi{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		sessions:  sessions,
		processor: processor,
	}
}

func (a *RecordingApi) StartRecording(c *gin.Context) {
	rec, err := a.sessions.Start(c.Request.Context())
	if err != nil {
		a.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"recording": rec})
}

// recordingID pulls and shape-checks the :id path parameter. Returns false
// after writing the response when the identifier is unusable.
func (a *RecordingApi) recordingID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if utils.IsEmpty(id) || !utils.IsValidUUID(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recording id"})
		return "", false
	}
	return id, true
}

func (a *RecordingApi) PauseRecording(c *gin.Context) {
	id, ok := a.recordingID(c)
	if !ok {
		return
	}
	rec, err := a.sessions.Pause(c.Request.Context(), id)
	if err != nil {
		a.renderError(c, err)
		return
	}
	// rec is null when pause is unsupported on this platform tier.
	c.JSON(http.StatusOK, gin.H{"recording": rec})
}

func (a *RecordingApi) ResumeRecording(c *gin.Context) {
	id, ok := a.recordingID(c)
	if !ok {
		return
	}
	rec, err := a.sessions.Resume(c.Request.Context(), id)
	if err != nil {
		a.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recording": rec})
}

func (a *RecordingApi) StopRecording(c *gin.Context) {
	id, ok := a.recordingID(c)
	if !ok {
		return
	}
	rec := a.sessions.Stop(c.Request.Context(), id)
	c.JSON(http.StatusOK, gin.H{"recording": rec})
}

func (a *RecordingApi) GetRecording(c *gin.Context) {
	id, ok := a.recordingID(c)
	if !ok {
		return
	}
	rec, err := a.store.GetByID(c.Request.Context(), id)
	if err != nil {
		a.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recording": rec})
}

func (a *RecordingApi) ListRecordings(c *gin.Context) {
	recs, err := a.store.GetAll(c.Request.Context())
	if err != nil {
		a.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recordings": recs})
}

func (a *RecordingApi) SessionStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"active":      a.sessions.IsActive(),
		"recordingId": a.sessions.CurrentRecordingID(),
	})
}

func (a *RecordingApi) ProcessQueue(c *gin.Context) {
	completed, failed, err := a.processor.ProcessQueue(c.Request.Context())
	if err != nil {
		a.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"completed": completed, "failed": failed})
}

func (a *RecordingApi) RetryTranscription(c *gin.Context) {
	id, ok := a.recordingID(c)
	if !ok {
		return
	}
	rec, err := a.processor.Retry(c.Request.Context(), id)
	if err != nil {
		a.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recording": rec})
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (a *RecordingApi) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, ok := a.recordingID(c)
	if !ok {
		return
	}
	if err := a.processor.UpdateStatus(c.Request.Context(), id, req.Status); err != nil {
		a.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": req.Status})
}

func (a *RecordingApi) renderError(c *gin.Context, err error) {
	kind := types.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case types.SessionConflict:
		status = http.StatusConflict
	case types.NotFound:
		status = http.StatusNotFound
	case types.StateViolation:
		status = http.StatusUnprocessableEntity
	case types.NoConnectivity, types.Timeout:
		status = http.StatusServiceUnavailable
	}
	a.logger.Warnf("request failed: kind=%s: %v", kind, err)
	c.JSON(status, gin.H{"kind": kind, "error": err.Error()})
}
