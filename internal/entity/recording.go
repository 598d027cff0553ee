// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Recording status constants. Transitions are one-directional:
// PENDING → IN_PROGRESS → COMPLETED/FAILED, FAILED → IN_PROGRESS on retry.
// Nothing leaves COMPLETED.
const (
	StatusPending    = "PENDING"     // captured, waiting for transcription
	StatusInProgress = "IN_PROGRESS" // transcription call in flight (acts as a lease)
	StatusCompleted  = "COMPLETED"   // transcript written, terminal
	StatusFailed     = "FAILED"      // transcription failed, retryable
)

// Recording is the persisted voice capture and its transcription outcome.
// One audio file per recording, referenced by absolute path, created once at
// session start and never renamed.
type Recording struct {
	ID              string     `json:"id" gorm:"column:id;type:varchar(36);primaryKey;<-:create"`
	Timestamp       time.Time  `json:"timestamp" gorm:"column:timestamp;type:timestamp;not null;<-:create"`
	AudioFilePath   string     `json:"audioFilePath" gorm:"column:audio_file_path;type:text;not null;<-:create"`
	TranscribedText *string    `json:"transcribedText" gorm:"column:transcribed_text;type:text"`
	Status          string     `json:"status" gorm:"column:status;type:varchar(20);not null;default:PENDING;index"`
	Duration        int64      `json:"duration" gorm:"column:duration;type:bigint;not null;default:0"`
	Title           *string    `json:"title" gorm:"column:title;type:varchar(200)"`
	CreatedDate     time.Time  `json:"createdDate" gorm:"column:created_date;type:timestamp;not null;<-:create"`
	UpdatedDate     *time.Time `json:"updatedDate" gorm:"column:updated_date;type:timestamp"`
}

func (Recording) TableName() string {
	return "recordings"
}

func (r *Recording) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	now := time.Now()
	if r.Timestamp.IsZero() {
		r.Timestamp = now
	}
	if r.CreatedDate.IsZero() {
		r.CreatedDate = now
	}
	if r.Status == "" {
		r.Status = StatusPending
	}
	return nil
}

// ValidStatus reports whether s is a known recording status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// TransitionSources lists every status allowed to move to target, target
// itself included. Lets status writes fold the transition check into a
// single conditional UPDATE.
func TransitionSources(target string) []string {
	var from []string
	for _, s := range []string{StatusPending, StatusInProgress, StatusCompleted, StatusFailed} {
		if CanTransition(s, target) {
			from = append(from, s)
		}
	}
	return from
}

// CanTransition reports whether a status write from → to is allowed.
// COMPLETED is terminal; FAILED may only go back through IN_PROGRESS.
func CanTransition(from, to string) bool {
	if from == to {
		return true
	}
	switch from {
	case StatusPending:
		return to == StatusInProgress
	case StatusInProgress:
		return to == StatusCompleted || to == StatusFailed
	case StatusFailed:
		return to == StatusInProgress
	case StatusCompleted:
		return false
	}
	return false
}
