// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	internal_audio "github.com/YamazakiYusuke/TalkToBook-sub002/internal/audio"
	internal_entity "github.com/YamazakiYusuke/TalkToBook-sub002/internal/entity"
	internal_recording "github.com/YamazakiYusuke/TalkToBook-sub002/internal/recording"
	internal_timer "github.com/YamazakiYusuke/TalkToBook-sub002/internal/timer"
	"github.com/YamazakiYusuke/TalkToBook-sub002/pkg/commons"
	"github.com/YamazakiYusuke/TalkToBook-sub002/pkg/types"
	"github.com/google/uuid"
)

// session pairs a recording identifier with its open capture-device handle.
// It exists only between Start and the terminal Stop/Cleanup and is owned
// exclusively by the Manager.
type session struct {
	recordingID string
	device      internal_audio.CaptureDevice
	path        string
}

// DeviceFactory builds a fresh capture-device handle for each session. The
// previous handle always ends in Released, so handles are never reused.
type DeviceFactory func() internal_audio.CaptureDevice

// Manager serializes all session-affecting operations, owns the single
// capture-device handle and guarantees its release on every exit path.
type Manager struct {
	logger    commons.Logger
	store     internal_recording.Store
	files     *internal_audio.FileManager
	tracker   *internal_timer.Tracker
	newDevice DeviceFactory

	// opMu makes start/pause/resume/stop/cleanup mutually exclusive.
	opMu sync.Mutex
	// sessionMu guards the session pointer so read-only introspection does
	// not queue behind device calls.
	sessionMu sync.RWMutex
	current   *session
}

func NewManager(
	logger commons.Logger,
	store internal_recording.Store,
	files *internal_audio.FileManager,
	tracker *internal_timer.Tracker,
	newDevice DeviceFactory,
) *Manager {
	return &Manager{
		logger:    logger,
		store:     store,
		files:     files,
		tracker:   tracker,
		newDevice: newDevice,
	}
}

// Start creates a new recording, allocates its capture file, brings the
// device to Recording and persists the initial row. Fails with
// SessionConflict when a session is already active. On any setup failure the
// device is released, ephemeral state cleared and the tracker reset before
// the classified error is surfaced.
func (m *Manager) Start(ctx context.Context) (*internal_entity.Recording, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.snapshot() != nil {
		return nil, types.NewError(types.SessionConflict,
			"a recording session is already active", nil)
	}

	rec := &internal_entity.Recording{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		Status:    internal_entity.StatusPending,
	}

	device := m.newDevice()
	path, err := m.files.CreateRecordingFile(m.files.GenerateUniqueFileName())
	if err != nil {
		m.releaseAll(device, path)
		return nil, classify(fmt.Errorf("start: %w", err))
	}
	rec.AudioFilePath = path

	if err := device.Prepare(path); err != nil {
		m.releaseAll(device, path)
		return nil, classify(fmt.Errorf("start: %w", err))
	}
	if err := device.Start(); err != nil {
		m.releaseAll(device, path)
		return nil, classify(fmt.Errorf("start: %w", err))
	}

	m.tracker.Start()

	if err := m.store.Insert(ctx, rec); err != nil {
		m.releaseAll(device, path)
		return nil, classify(fmt.Errorf("start: %w", err))
	}

	m.setSession(&session{recordingID: rec.ID, device: device, path: path})
	m.logger.Infof("recording session started: id=%s, path=%s", rec.ID, path)
	return rec, nil
}

// Pause suspends capture and duration accounting. Best-effort: a platform
// tier without mid-capture pause, a mismatched session or any device failure
// all surface as a nil recording with no error, since the caller's degraded
// alternative is simply "nothing changed".
func (m *Manager) Pause(ctx context.Context, recordingID string) (*internal_entity.Recording, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	sess := m.snapshot()
	if sess == nil || sess.recordingID != recordingID {
		m.logger.Warnf("pause requested without matching session: id=%s", recordingID)
		return nil, nil
	}
	if !sess.device.SupportsPause() {
		// Capability gap, not an error.
		return nil, nil
	}
	if err := internal_audio.Guard(sess.device.State(), internal_audio.StateRecording); err != nil {
		m.logger.Warnf("pause rejected: %v", err)
		return nil, nil
	}
	if err := sess.device.Pause(); err != nil {
		m.logger.Warnf("device pause failed: id=%s: %v", recordingID, err)
		return nil, nil
	}
	if err := m.tracker.Pause(); err != nil {
		m.logger.Warnf("tracker pause failed: id=%s: %v", recordingID, err)
	}

	rec, err := m.store.GetByID(ctx, recordingID)
	if err != nil {
		m.logger.Warnf("pause could not load recording %s: %v", recordingID, err)
		return nil, nil
	}
	m.logger.Debugf("recording paused: id=%s", recordingID)
	return rec, nil
}

// Resume is the mirror of Pause: requires a paused device, restarts capture
// and duration accounting, and degrades to nil on capability gap or failure.
func (m *Manager) Resume(ctx context.Context, recordingID string) (*internal_entity.Recording, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	sess := m.snapshot()
	if sess == nil || sess.recordingID != recordingID {
		m.logger.Warnf("resume requested without matching session: id=%s", recordingID)
		return nil, nil
	}
	if !sess.device.SupportsPause() {
		return nil, nil
	}
	if err := internal_audio.Guard(sess.device.State(), internal_audio.StatePaused); err != nil {
		m.logger.Warnf("resume rejected: %v", err)
		return nil, nil
	}
	if err := sess.device.Resume(); err != nil {
		m.logger.Warnf("device resume failed: id=%s: %v", recordingID, err)
		return nil, nil
	}
	if pausedMs, err := m.tracker.Resume(); err != nil {
		m.logger.Warnf("tracker resume failed: id=%s: %v", recordingID, err)
	} else {
		m.logger.Debugf("recording resumed: id=%s, pausedMs=%d", recordingID, pausedMs)
	}

	rec, err := m.store.GetByID(ctx, recordingID)
	if err != nil {
		m.logger.Warnf("resume could not load recording %s: %v", recordingID, err)
		return nil, nil
	}
	return rec, nil
}

// Stop finalizes the session. Tolerant of missing or mismatched session
// state: with no active session it falls back to whatever is persisted for
// the identifier. When the session matches, the device is stopped if its
// state allows, the accumulated active duration is persisted, and the
// release sequence runs regardless of whether the stop succeeded. Stop never propagates an error; it returns the best available
// snapshot, logging internally, because losing a capture in progress must
// never crash the caller.
func (m *Manager) Stop(ctx context.Context, recordingID string) *internal_entity.Recording {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	sess := m.snapshot()
	if sess == nil || sess.recordingID != recordingID {
		rec, err := m.store.GetByID(ctx, recordingID)
		if err != nil {
			m.logger.Warnf("stop fallback lookup failed: id=%s: %v", recordingID, err)
			return nil
		}
		return rec
	}

	// Guaranteed cleanup phase: runs whatever happens above it.
	defer func() {
		m.releaseAll(sess.device, "")
		m.setSession(nil)
	}()

	state := sess.device.State()
	if internal_audio.Guard(state, internal_audio.StateRecording, internal_audio.StatePaused) == nil {
		if err := sess.device.Stop(); err != nil {
			m.logger.Errorf("device stop failed: id=%s: %v", recordingID, err)
		}
	} else {
		m.logger.Warnf("device not stoppable at stop: id=%s, state=%s", recordingID, state)
	}

	durationMs := m.tracker.TotalDuration()
	if err := m.store.UpdateDuration(ctx, recordingID, durationMs); err != nil {
		m.logger.Errorf("failed to persist duration: id=%s: %v", recordingID, err)
	}

	rec, err := m.store.GetByID(ctx, recordingID)
	if err != nil {
		m.logger.Errorf("stop could not load recording %s: %v", recordingID, err)
		return nil
	}
	m.logger.Infof("recording session stopped: id=%s, durationMs=%d", recordingID, durationMs)
	return rec
}

// Cleanup is the unconditional forced release used during teardown or
// recovery. Failures are logged and swallowed; it never panics past its own
// boundary.
func (m *Manager) Cleanup() {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	sess := m.snapshot()
	if sess == nil {
		m.tracker.Reset()
		return
	}
	m.logger.Warnf("forced session cleanup: id=%s", sess.recordingID)
	m.releaseAll(sess.device, "")
	m.setSession(nil)
	m.tracker.Reset()
}

// CurrentRecordingID returns the identifier of the active session, or empty.
// Read-only, does not queue behind session operations.
func (m *Manager) CurrentRecordingID() string {
	m.sessionMu.RLock()
	defer m.sessionMu.RUnlock()
	if m.current == nil {
		return ""
	}
	return m.current.recordingID
}

// IsActive reports whether a capture session exists.
func (m *Manager) IsActive() bool {
	m.sessionMu.RLock()
	defer m.sessionMu.RUnlock()
	return m.current != nil
}

func (m *Manager) snapshot() *session {
	m.sessionMu.RLock()
	defer m.sessionMu.RUnlock()
	return m.current
}

func (m *Manager) setSession(s *session) {
	m.sessionMu.Lock()
	m.current = s
	m.sessionMu.Unlock()
}

// releaseAll is the single release sequence used by every exit path. The
// device always ends in Released; a failed setup additionally removes the
// orphan capture file.
func (m *Manager) releaseAll(device internal_audio.CaptureDevice, orphanPath string) {
	if device != nil {
		if err := device.Release(); err != nil {
			m.logger.Warnf("device release reported error: %v", err)
		}
	}
	if orphanPath != "" {
		m.files.DeleteFile(orphanPath)
	}
	m.tracker.Reset()
}

// classify maps a setup failure onto the domain taxonomy: IOFailure and
// StateViolation pass through, anything else becomes Unclassified.
func classify(err error) error {
	var de *types.Error
	if errors.As(err, &de) {
		switch de.Kind {
		case types.IOFailure, types.StateViolation, types.NotFound:
			return err
		}
	}
	return types.NewError(types.Unclassified, "recording session failure", err)
}
