// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_session

import (
	"context"
	"sync"
	"testing"
	"time"

	internal_audio "github.com/YamazakiYusuke/TalkToBook-sub002/internal/audio"
	internal_entity "github.com/YamazakiYusuke/TalkToBook-sub002/internal/entity"
	internal_timer "github.com/YamazakiYusuke/TalkToBook-sub002/internal/timer"
	"github.com/YamazakiYusuke/TalkToBook-sub002/pkg/commons"
	"github.com/YamazakiYusuke/TalkToBook-sub002/pkg/types"
	"github.com/stretchr/testify/assert"
)

func newTestLogger(t *testing.T) commons.Logger {
	t.Helper()
	logger, err := commons.NewApplicationLogger(
		commons.Name("test-session"),
		commons.Level("debug"),
	)
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	return logger
}

// fakeDevice tracks state transitions and counts Release calls so tests can
// assert exactly-once release across every exit path.
type fakeDevice struct {
	mu           sync.Mutex
	state        internal_audio.DeviceState
	releaseCount int
	canPause     bool

	failPrepare bool
	failStart   bool
	failPause   bool
	failStop    bool
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{state: internal_audio.StateInitial, canPause: true}
}

func (d *fakeDevice) Prepare(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failPrepare {
		d.state = internal_audio.StateError
		return types.NewError(types.IOFailure, "injected prepare failure", nil)
	}
	d.state = internal_audio.StatePrepared
	return nil
}

func (d *fakeDevice) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failStart {
		d.state = internal_audio.StateError
		return types.NewError(types.IOFailure, "injected start failure", nil)
	}
	d.state = internal_audio.StateRecording
	return nil
}

func (d *fakeDevice) Pause() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failPause {
		return types.NewError(types.Unclassified, "injected pause failure", nil)
	}
	d.state = internal_audio.StatePaused
	return nil
}

func (d *fakeDevice) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = internal_audio.StateRecording
	return nil
}

func (d *fakeDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failStop {
		d.state = internal_audio.StateError
		return types.NewError(types.IOFailure, "injected stop failure", nil)
	}
	d.state = internal_audio.StateStopped
	return nil
}

func (d *fakeDevice) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.releaseCount++
	d.state = internal_audio.StateReleased
	return nil
}

func (d *fakeDevice) State() internal_audio.DeviceState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *fakeDevice) SupportsPause() bool { return d.canPause }

// memoryStore is an in-memory recording store for session tests.
type memoryStore struct {
	mu         sync.Mutex
	rows       map[string]*internal_entity.Recording
	failInsert bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rows: map[string]*internal_entity.Recording{}}
}

func (s *memoryStore) Insert(ctx context.Context, rec *internal_entity.Recording) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failInsert {
		return types.NewError(types.IOFailure, "injected insert failure", nil)
	}
	cp := *rec
	s.rows[rec.ID] = &cp
	return nil
}

func (s *memoryStore) Update(ctx context.Context, rec *internal_entity.Recording) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.rows[rec.ID] = &cp
	return nil
}

func (s *memoryStore) GetByID(ctx context.Context, id string) (*internal_entity.Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.rows[id]
	if !ok {
		return nil, types.NewError(types.NotFound, "recording not found: "+id, nil)
	}
	cp := *rec
	return &cp, nil
}

func (s *memoryStore) GetAll(ctx context.Context) ([]*internal_entity.Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*internal_entity.Recording
	for _, rec := range s.rows {
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memoryStore) GetByStatus(ctx context.Context, status string) ([]*internal_entity.Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*internal_entity.Recording
	for _, rec := range s.rows {
		if rec.Status == status {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memoryStore) MarkInProgress(ctx context.Context, id string, from ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.rows[id]
	if !ok {
		return types.NewError(types.NotFound, "recording not found: "+id, nil)
	}
	rec.Status = internal_entity.StatusInProgress
	return nil
}

func (s *memoryStore) UpdateStatus(ctx context.Context, id string, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.rows[id]
	if !ok {
		return types.NewError(types.NotFound, "recording not found: "+id, nil)
	}
	rec.Status = status
	return nil
}

func (s *memoryStore) SetOutcome(ctx context.Context, id string, text *string, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.rows[id]
	if !ok {
		return types.NewError(types.NotFound, "recording not found: "+id, nil)
	}
	rec.TranscribedText = text
	rec.Status = status
	return nil
}

func (s *memoryStore) UpdateDuration(ctx context.Context, id string, durationMs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.rows[id]
	if !ok {
		return types.NewError(types.NotFound, "recording not found: "+id, nil)
	}
	rec.Duration = durationMs
	return nil
}

func (s *memoryStore) Delete(ctx context.Context, rec *internal_entity.Recording) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, rec.ID)
	return nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *testClock) read() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

type fixture struct {
	manager *Manager
	store   *memoryStore
	device  *fakeDevice
	clock   *testClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := newTestLogger(t)
	store := newMemoryStore()
	files, err := internal_audio.NewFileManager(logger, t.TempDir(), 1<<20)
	if err != nil {
		t.Fatalf("file manager: %v", err)
	}
	clock := &testClock{now: time.Unix(1700000000, 0)}
	tracker := internal_timer.NewTrackerWithClock(clock.read)
	f := &fixture{store: store, device: newFakeDevice(), clock: clock}
	// The factory reads f.device so tests can swap in a fresh handle
	// between sessions.
	f.manager = NewManager(logger, store, files, tracker, func() internal_audio.CaptureDevice {
		return f.device
	})
	return f
}

func TestStartCreatesActiveSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.manager.Start(ctx)
	assert.NoError(t, err)
	assert.NotNil(t, rec)
	assert.NotEmpty(t, rec.ID)
	assert.NotEmpty(t, rec.AudioFilePath)
	assert.Equal(t, internal_entity.StatusPending, rec.Status)
	assert.True(t, f.manager.IsActive())
	assert.Equal(t, rec.ID, f.manager.CurrentRecordingID())
	assert.Equal(t, internal_audio.StateRecording, f.device.State())
}

func TestStartWhileActiveFailsWithSessionConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.manager.Start(ctx)
	assert.NoError(t, err)

	second, err := f.manager.Start(ctx)
	assert.Nil(t, second)
	assert.True(t, types.IsKind(err, types.SessionConflict))

	// First session untouched.
	assert.Equal(t, first.ID, f.manager.CurrentRecordingID())
	assert.Equal(t, internal_audio.StateRecording, f.device.State())
	assert.Equal(t, 0, f.device.releaseCount)
}

func TestStartFailureReleasesDeviceAndClearsState(t *testing.T) {
	cases := []struct {
		name   string
		inject func(f *fixture)
		kind   types.ErrorKind
	}{
		{"prepare fails", func(f *fixture) { f.device.failPrepare = true }, types.IOFailure},
		{"device start fails", func(f *fixture) { f.device.failStart = true }, types.IOFailure},
		{"persist fails", func(f *fixture) { f.store.failInsert = true }, types.IOFailure},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			tc.inject(f)

			rec, err := f.manager.Start(context.Background())
			assert.Nil(t, rec)
			assert.True(t, types.IsKind(err, tc.kind), "got %v", err)

			assert.Equal(t, 1, f.device.releaseCount, "device must be released exactly once")
			assert.False(t, f.manager.IsActive())
			assert.Equal(t, "", f.manager.CurrentRecordingID())
		})
	}
}

func TestPauseResumeStopLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.manager.Start(ctx)
	assert.NoError(t, err)

	f.clock.advance(100 * time.Millisecond)
	paused, err := f.manager.Pause(ctx, rec.ID)
	assert.NoError(t, err)
	assert.NotNil(t, paused)
	assert.Equal(t, internal_audio.StatePaused, f.device.State())

	f.clock.advance(30 * time.Millisecond)
	resumed, err := f.manager.Resume(ctx, rec.ID)
	assert.NoError(t, err)
	assert.NotNil(t, resumed)
	assert.Equal(t, internal_audio.StateRecording, f.device.State())

	f.clock.advance(20 * time.Millisecond)
	stopped := f.manager.Stop(ctx, rec.ID)
	assert.NotNil(t, stopped)
	assert.Equal(t, int64(120), stopped.Duration, "duration must exclude paused time")

	assert.False(t, f.manager.IsActive())
	assert.Equal(t, 1, f.device.releaseCount)
}

func TestPauseWithoutCapabilityIsGracefulNoop(t *testing.T) {
	f := newFixture(t)
	f.device.canPause = false
	ctx := context.Background()

	rec, err := f.manager.Start(ctx)
	assert.NoError(t, err)

	paused, err := f.manager.Pause(ctx, rec.ID)
	assert.NoError(t, err)
	assert.Nil(t, paused)
	// Capture keeps running.
	assert.Equal(t, internal_audio.StateRecording, f.device.State())
}

func TestPauseFailureDegradesToNil(t *testing.T) {
	f := newFixture(t)
	f.device.failPause = true
	ctx := context.Background()

	rec, err := f.manager.Start(ctx)
	assert.NoError(t, err)

	paused, err := f.manager.Pause(ctx, rec.ID)
	assert.NoError(t, err)
	assert.Nil(t, paused)
}

func TestPauseWithWrongIdIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.manager.Start(ctx)
	assert.NoError(t, err)

	paused, err := f.manager.Pause(ctx, "some-other-id")
	assert.NoError(t, err)
	assert.Nil(t, paused)
	assert.Equal(t, internal_audio.StateRecording, f.device.State())
}

func TestStopWithNoSessionReturnsPersistedSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec := &internal_entity.Recording{
		ID:            "persisted-1",
		AudioFilePath: "/tmp/persisted-1.wav",
		Status:        internal_entity.StatusCompleted,
		Duration:      4200,
	}
	assert.NoError(t, f.store.Insert(ctx, rec))

	got := f.manager.Stop(ctx, "persisted-1")
	assert.NotNil(t, got)
	assert.Equal(t, int64(4200), got.Duration)
	assert.Equal(t, 0, f.device.releaseCount)
}

func TestStopWithUnknownIdReturnsNil(t *testing.T) {
	f := newFixture(t)
	got := f.manager.Stop(context.Background(), "missing")
	assert.Nil(t, got)
}

func TestStopReleasesEvenWhenDeviceStopFails(t *testing.T) {
	f := newFixture(t)
	f.device.failStop = true
	ctx := context.Background()

	rec, err := f.manager.Start(ctx)
	assert.NoError(t, err)

	f.clock.advance(50 * time.Millisecond)
	stopped := f.manager.Stop(ctx, rec.ID)
	assert.NotNil(t, stopped, "stop must return the best snapshot on partial failure")
	assert.Equal(t, int64(50), stopped.Duration)

	assert.Equal(t, 1, f.device.releaseCount, "release must run despite stop failure")
	assert.False(t, f.manager.IsActive())
}

func TestCleanupForcesRelease(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.Start(context.Background())
	assert.NoError(t, err)

	f.manager.Cleanup()
	assert.False(t, f.manager.IsActive())
	assert.Equal(t, 1, f.device.releaseCount)

	// Cleanup with no session is harmless.
	f.manager.Cleanup()
	assert.Equal(t, 1, f.device.releaseCount)
}

func TestSessionCanRestartAfterStop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.manager.Start(ctx)
	assert.NoError(t, err)
	f.manager.Stop(ctx, first.ID)

	// Fresh device handle for the new session.
	f.device = newFakeDevice()
	second, err := f.manager.Start(ctx)
	assert.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, f.manager.IsActive())
}
