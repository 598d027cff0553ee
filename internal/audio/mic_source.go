// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_audio

import (
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"sync"

	"github.com/YamazakiYusuke/TalkToBook-sub002/pkg/commons"
)

// micSource captures the default input device through ffmpeg, streaming raw
// LINEAR16 PCM at the fixed capture format. Lazily started on the first
// Read, stopped when the consumer goes away.
type micSource struct {
	logger commons.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdout io.ReadCloser
}

// NewMicSource builds the default platform SampleSource. Requires ffmpeg on
// PATH.
func NewMicSource(logger commons.Logger) (SampleSource, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("ffmpeg not found on PATH: %w", err)
	}
	return &micSource{logger: logger}, nil
}

func inputArgs() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"-f", "avfoundation", "-i", ":default"}
	case "linux":
		return []string{"-f", "pulse", "-i", "default"}
	default:
		return []string{"-f", "dshow", "-i", "audio=default"}
	}
}

func (m *micSource) start() error {
	args := append(inputArgs(),
		"-ac", fmt.Sprintf("%d", Channels),
		"-ar", fmt.Sprintf("%d", SampleRate),
		"-f", "s16le",
		"-loglevel", "error",
		"pipe:1",
	)
	cmd := exec.Command("ffmpeg", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open ffmpeg pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg capture: %w", err)
	}
	m.cmd = cmd
	m.stdout = stdout
	m.logger.Debugf("mic capture started: pid=%d", cmd.Process.Pid)
	return nil
}

func (m *micSource) Read(p []byte) (int, error) {
	m.mu.Lock()
	if m.cmd == nil {
		if err := m.start(); err != nil {
			m.mu.Unlock()
			return 0, err
		}
	}
	stdout := m.stdout
	m.mu.Unlock()
	return stdout.Read(p)
}

// Close terminates the capture process. Safe to call more than once.
func (m *micSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cmd == nil {
		return nil
	}
	cmd := m.cmd
	m.cmd = nil
	m.stdout = nil
	if cmd.Process != nil {
		cmd.Process.Kill()
	}
	return cmd.Wait()
}
