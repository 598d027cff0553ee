// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_recording

import (
	"context"
	"errors"
	"fmt"
	"time"

	internal_entity "github.com/YamazakiYusuke/TalkToBook-sub002/internal/entity"
	"github.com/YamazakiYusuke/TalkToBook-sub002/pkg/commons"
	"github.com/YamazakiYusuke/TalkToBook-sub002/pkg/connectors"
	"github.com/YamazakiYusuke/TalkToBook-sub002/pkg/types"
	"gorm.io/gorm"
)

// Store provides operations to save and retrieve recordings.
//
// Recordings are shared by the session manager, the queue processor and the
// presentation layer; all mutation goes through this narrow operation set so
// no caller can partially update a row outside the status machine.
type Store interface {
	// Insert persists a new recording. An empty ID is generated on create.
	Insert(ctx context.Context, rec *internal_entity.Recording) error

	// Update writes the full row back. The status transition is validated
	// against the current persisted status.
	Update(ctx context.Context, rec *internal_entity.Recording) error

	// GetByID retrieves a recording regardless of its status. Returns a
	// NotFound kind error when the row is absent.
	GetByID(ctx context.Context, id string) (*internal_entity.Recording, error)

	// GetAll returns every recording, newest first.
	GetAll(ctx context.Context) ([]*internal_entity.Recording, error)

	// GetByStatus returns recordings in the given status, oldest first, so
	// the queue processes captures in arrival order.
	GetByStatus(ctx context.Context, status string) ([]*internal_entity.Recording, error)

	// MarkInProgress atomically transitions a recording from one of the
	// given statuses to IN_PROGRESS. Only one concurrent caller can win;
	// losers get an error because the row is no longer in a claimable
	// status. This is the lease that keeps two writers off the same row
	// during queue processing.
	MarkInProgress(ctx context.Context, id string, from ...string) error

	// UpdateStatus is a direct status write-through for callers that
	// already hold a definitive outcome. The transition table still
	// applies; nothing leaves COMPLETED.
	UpdateStatus(ctx context.Context, id string, status string) error

	// SetOutcome writes the terminal result of a transcription attempt:
	// the text (nil on failure) and COMPLETED or FAILED.
	SetOutcome(ctx context.Context, id string, text *string, status string) error

	// UpdateDuration finalizes the accumulated active capture time.
	UpdateDuration(ctx context.Context, id string, durationMs int64) error

	// Delete removes a recording row.
	Delete(ctx context.Context, rec *internal_entity.Recording) error
}

type gormStore struct {
	database connectors.DatabaseConnector
	logger   commons.Logger
}

// NewStore creates a recording store backed by the configured database.
func NewStore(database connectors.DatabaseConnector, logger commons.Logger) Store {
	return &gormStore{
		database: database,
		logger:   logger,
	}
}

func (s *gormStore) Insert(ctx context.Context, rec *internal_entity.Recording) error {
	db := s.database.DB(ctx)
	if err := db.Create(rec).Error; err != nil {
		return types.NewError(types.IOFailure,
			fmt.Sprintf("failed to insert recording %s", rec.ID), err)
	}
	s.logger.Infof("inserted recording: id=%s, path=%s", rec.ID, rec.AudioFilePath)
	return nil
}

func (s *gormStore) Update(ctx context.Context, rec *internal_entity.Recording) error {
	current, err := s.GetByID(ctx, rec.ID)
	if err != nil {
		return err
	}
	if !internal_entity.CanTransition(current.Status, rec.Status) {
		return types.NewStateViolation(
			fmt.Sprintf("illegal status transition on recording %s", rec.ID),
			current.Status, rec.Status)
	}

	now := time.Now()
	rec.UpdatedDate = &now
	db := s.database.DB(ctx)
	if err := db.Save(rec).Error; err != nil {
		return types.NewError(types.IOFailure,
			fmt.Sprintf("failed to update recording %s", rec.ID), err)
	}
	s.logger.Debugf("updated recording: id=%s, status=%s", rec.ID, rec.Status)
	return nil
}

func (s *gormStore) GetByID(ctx context.Context, id string) (*internal_entity.Recording, error) {
	db := s.database.DB(ctx)
	var rec internal_entity.Recording
	if err := db.Where("id = ?", id).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NewError(types.NotFound,
				fmt.Sprintf("recording not found: %s", id), err)
		}
		return nil, types.NewError(types.IOFailure,
			fmt.Sprintf("failed to fetch recording %s", id), err)
	}
	return &rec, nil
}

func (s *gormStore) GetAll(ctx context.Context) ([]*internal_entity.Recording, error) {
	db := s.database.DB(ctx)
	var recs []*internal_entity.Recording
	if err := db.Order("timestamp DESC").Find(&recs).Error; err != nil {
		return nil, types.NewError(types.IOFailure, "failed to fetch recordings", err)
	}
	return recs, nil
}

func (s *gormStore) GetByStatus(ctx context.Context, status string) ([]*internal_entity.Recording, error) {
	if !internal_entity.ValidStatus(status) {
		return nil, types.NewError(types.Unclassified,
			fmt.Sprintf("unknown recording status: %s", status), nil)
	}
	db := s.database.DB(ctx)
	var recs []*internal_entity.Recording
	if err := db.Where("status = ?", status).Order("timestamp ASC").Find(&recs).Error; err != nil {
		return nil, types.NewError(types.IOFailure,
			fmt.Sprintf("failed to fetch recordings with status %s", status), err)
	}
	return recs, nil
}

// MarkInProgress uses an atomic UPDATE ... WHERE status IN ? so only one
// caller can win the lease on a row.
func (s *gormStore) MarkInProgress(ctx context.Context, id string, from ...string) error {
	if len(from) == 0 {
		from = []string{internal_entity.StatusPending, internal_entity.StatusFailed}
	}
	db := s.database.DB(ctx)
	result := db.Model(&internal_entity.Recording{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(map[string]interface{}{
			"status":       internal_entity.StatusInProgress,
			"updated_date": time.Now(),
		})
	if result.Error != nil {
		return types.NewError(types.IOFailure,
			fmt.Sprintf("failed to mark recording %s in progress", id), result.Error)
	}
	if result.RowsAffected == 0 {
		return types.NewError(types.NotFound,
			fmt.Sprintf("recording %s not found or not claimable", id), nil)
	}
	s.logger.Debugf("claimed recording for transcription: id=%s", id)
	return nil
}

// UpdateStatus folds the allowed source statuses into the WHERE clause so the
// transition check and the write are one atomic statement, like the
// MarkInProgress lease. The follow-up read only classifies a zero-row result.
func (s *gormStore) UpdateStatus(ctx context.Context, id string, status string) error {
	if !internal_entity.ValidStatus(status) {
		return types.NewError(types.Unclassified,
			fmt.Sprintf("unknown recording status: %s", status), nil)
	}
	db := s.database.DB(ctx)
	result := db.Model(&internal_entity.Recording{}).
		Where("id = ? AND status IN ?", id, internal_entity.TransitionSources(status)).
		Updates(map[string]interface{}{
			"status":       status,
			"updated_date": time.Now(),
		})
	if result.Error != nil {
		return types.NewError(types.IOFailure,
			fmt.Sprintf("failed to update status on recording %s", id), result.Error)
	}
	if result.RowsAffected == 0 {
		current, err := s.GetByID(ctx, id)
		if err != nil {
			return err
		}
		return types.NewStateViolation(
			fmt.Sprintf("illegal status transition on recording %s", id),
			current.Status, status)
	}
	s.logger.Debugf("updated recording status: id=%s, status=%s", id, status)
	return nil
}

func (s *gormStore) SetOutcome(ctx context.Context, id string, text *string, status string) error {
	if status != internal_entity.StatusCompleted && status != internal_entity.StatusFailed {
		return types.NewError(types.Unclassified,
			fmt.Sprintf("outcome status must be terminal, got %s", status), nil)
	}
	db := s.database.DB(ctx)
	result := db.Model(&internal_entity.Recording{}).
		Where("id = ? AND status = ?", id, internal_entity.StatusInProgress).
		Updates(map[string]interface{}{
			"transcribed_text": text,
			"status":           status,
			"updated_date":     time.Now(),
		})
	if result.Error != nil {
		return types.NewError(types.IOFailure,
			fmt.Sprintf("failed to set outcome on recording %s", id), result.Error)
	}
	if result.RowsAffected == 0 {
		return types.NewError(types.NotFound,
			fmt.Sprintf("recording %s not found or not in progress", id), nil)
	}
	s.logger.Infof("recording outcome: id=%s, status=%s", id, status)
	return nil
}

func (s *gormStore) UpdateDuration(ctx context.Context, id string, durationMs int64) error {
	db := s.database.DB(ctx)
	result := db.Model(&internal_entity.Recording{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"duration":     durationMs,
			"updated_date": time.Now(),
		})
	if result.Error != nil {
		return types.NewError(types.IOFailure,
			fmt.Sprintf("failed to update duration on recording %s", id), result.Error)
	}
	if result.RowsAffected == 0 {
		return types.NewError(types.NotFound,
			fmt.Sprintf("recording not found: %s", id), nil)
	}
	return nil
}

func (s *gormStore) Delete(ctx context.Context, rec *internal_entity.Recording) error {
	db := s.database.DB(ctx)
	if err := db.Where("id = ?", rec.ID).Delete(&internal_entity.Recording{}).Error; err != nil {
		return types.NewError(types.IOFailure,
			fmt.Sprintf("failed to delete recording %s", rec.ID), err)
	}
	s.logger.Debugf("deleted recording: id=%s", rec.ID)
	return nil
}
