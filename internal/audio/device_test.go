// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_audio

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/YamazakiYusuke/TalkToBook-sub002/pkg/commons"
	"github.com/YamazakiYusuke/TalkToBook-sub002/pkg/types"
)

func newTestLogger(t *testing.T) commons.Logger {
	t.Helper()
	logger, err := commons.NewApplicationLogger(
		commons.Name("test-audio"),
		commons.Level("debug"),
	)
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	return logger
}

func pcm(val byte, length int) []byte {
	buf := make([]byte, length)
	for i := range buf {
		buf[i] = val
	}
	return buf
}

// blockingSource serves one PCM payload then blocks until closed, so tests
// control exactly how much audio lands in the file. Counts Close calls so
// tests can assert the device shuts the source down.
type blockingSource struct {
	data   *bytes.Reader
	closed chan struct{}

	mu         sync.Mutex
	closeCount int
}

func newBlockingSource(data []byte) *blockingSource {
	return &blockingSource{data: bytes.NewReader(data), closed: make(chan struct{})}
}

func (s *blockingSource) Read(p []byte) (int, error) {
	if s.data.Len() > 0 {
		return s.data.Read(p)
	}
	<-s.closed
	return 0, os.ErrClosed
}

func (s *blockingSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCount++
	if s.closeCount == 1 {
		close(s.closed)
	}
	return nil
}

func (s *blockingSource) closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCount
}

func waitForWritten(t *testing.T, d *wavDevice, want int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		d.mu.Lock()
		written := d.written
		d.mu.Unlock()
		if written >= want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d bytes, have %d", want, written)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestDeviceLifecycleWritesWAV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.wav")
	data := pcm(0x7f, 640)
	source := newBlockingSource(data)
	defer source.Close()

	dev := NewWAVDevice(newTestLogger(t), source, true).(*wavDevice)

	if err := dev.Prepare(path); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if got := dev.State(); got != StatePrepared {
		t.Fatalf("expected PREPARED, got %s", got)
	}
	if err := dev.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForWritten(t, dev, len(data))

	if err := dev.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if got := dev.State(); got != StateStopped {
		t.Fatalf("expected STOPPED, got %s", got)
	}
	if err := dev.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}

	wav, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read wav: %v", err)
	}
	if len(wav) != wavHeaderSize+len(data) {
		t.Fatalf("expected %d bytes, got %d", wavHeaderSize+len(data), len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Error("missing RIFF/WAVE header")
	}
	if sr := binary.LittleEndian.Uint32(wav[24:28]); sr != SampleRate {
		t.Errorf("sample rate: got %d", sr)
	}
	if dataLen := binary.LittleEndian.Uint32(wav[40:44]); int(dataLen) != len(data) {
		t.Errorf("data chunk size: expected %d, got %d", len(data), dataLen)
	}
}

func TestGuardReportsActualAndExpected(t *testing.T) {
	err := Guard(StateStopped, StateRecording, StatePaused)
	if err == nil {
		t.Fatal("expected state violation")
	}
	var de *types.Error
	if !types.IsKind(err, types.StateViolation) {
		t.Fatalf("expected StateViolation, got %v", err)
	}
	de = err.(*types.Error)
	if de.Actual != "STOPPED" {
		t.Errorf("actual: got %s", de.Actual)
	}
	if len(de.Expected) != 2 {
		t.Errorf("expected states: got %v", de.Expected)
	}
}

func TestDeviceRejectsOutOfOrderCalls(t *testing.T) {
	dir := t.TempDir()
	source := newBlockingSource(nil)
	defer source.Close()
	dev := NewWAVDevice(newTestLogger(t), source, true)

	if err := dev.Start(); !types.IsKind(err, types.StateViolation) {
		t.Errorf("start before prepare: got %v", err)
	}
	if err := dev.Pause(); !types.IsKind(err, types.StateViolation) {
		t.Errorf("pause before recording: got %v", err)
	}
	if err := dev.Stop(); !types.IsKind(err, types.StateViolation) {
		t.Errorf("stop before recording: got %v", err)
	}

	if err := dev.Prepare(filepath.Join(dir, "a.wav")); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := dev.Resume(); !types.IsKind(err, types.StateViolation) {
		t.Errorf("resume while prepared: got %v", err)
	}
}

func TestPauseDropsFrames(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.wav")
	first := pcm(0x01, 320)
	source := newBlockingSource(first)
	defer source.Close()

	dev := NewWAVDevice(newTestLogger(t), source, true).(*wavDevice)
	if err := dev.Prepare(path); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := dev.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForWritten(t, dev, len(first))

	if err := dev.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if got := dev.State(); got != StatePaused {
		t.Fatalf("expected PAUSED, got %s", got)
	}
	if err := dev.Resume(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if err := dev.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	wav, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read wav: %v", err)
	}
	// Only the pre-pause audio landed in the file.
	if len(wav) != wavHeaderSize+len(first) {
		t.Errorf("expected %d bytes, got %d", wavHeaderSize+len(first), len(wav))
	}
}

func TestReleaseFromAnyStateIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	source := newBlockingSource(nil)
	defer source.Close()
	dev := NewWAVDevice(newTestLogger(t), source, true)

	// Straight from Initial.
	if err := dev.Release(); err != nil {
		t.Fatalf("release from initial: %v", err)
	}
	if got := dev.State(); got != StateReleased {
		t.Fatalf("expected RELEASED, got %s", got)
	}
	// Double release is a no-op.
	if err := dev.Release(); err != nil {
		t.Fatalf("double release: %v", err)
	}

	// Release mid-recording finalizes the file.
	dev2 := NewWAVDevice(newTestLogger(t), newBlockingSource(nil), true)
	path := filepath.Join(dir, "b.wav")
	if err := dev2.Prepare(path); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := dev2.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := dev2.Release(); err != nil {
		t.Fatalf("release mid-recording: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("capture file must survive release: %v", err)
	}
}

func TestReleaseClosesCaptureSource(t *testing.T) {
	dir := t.TempDir()
	data := pcm(0x7f, 320)
	source := newBlockingSource(data)
	dev := NewWAVDevice(newTestLogger(t), source, true).(*wavDevice)

	if err := dev.Prepare(filepath.Join(dir, "a.wav")); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := dev.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForWritten(t, dev, len(data))
	if err := dev.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := dev.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}

	// The source holds an open capture process; release must shut it down.
	if got := source.closes(); got != 1 {
		t.Fatalf("expected source closed exactly once, got %d", got)
	}
	if err := dev.Release(); err != nil {
		t.Fatalf("double release: %v", err)
	}
	if got := source.closes(); got != 1 {
		t.Errorf("double release must not close the source again, got %d", got)
	}

	// Release mid-recording closes the source too.
	source2 := newBlockingSource(nil)
	dev2 := NewWAVDevice(newTestLogger(t), source2, true)
	if err := dev2.Prepare(filepath.Join(dir, "b.wav")); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := dev2.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := dev2.Release(); err != nil {
		t.Fatalf("release mid-recording: %v", err)
	}
	if got := source2.closes(); got != 1 {
		t.Errorf("expected mid-recording release to close the source, got %d closes", got)
	}
}

func TestStartWithoutSourceFails(t *testing.T) {
	dir := t.TempDir()
	dev := NewWAVDevice(newTestLogger(t), nil, true)
	if err := dev.Prepare(filepath.Join(dir, "a.wav")); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := dev.Start(); !types.IsKind(err, types.IOFailure) {
		t.Errorf("expected IOFailure, got %v", err)
	}
	if got := dev.State(); got != StateError {
		t.Errorf("expected ERROR, got %s", got)
	}
}
