// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/YamazakiYusuke/TalkToBook-sub002/pkg/commons"
	"github.com/YamazakiYusuke/TalkToBook-sub002/pkg/types"
)

// Fixed capture format: LINEAR16, 16 kHz mono.
const (
	SampleRate          = 16000
	Channels            = 1
	AudioBytesPerSample = 2  // LINEAR16 → 2 bytes per sample
	AudioBitsPerSample  = 16 // LINEAR16 → 16 bits per sample
	AudioPCMFormat      = 1  // WAV PCM format tag

	wavHeaderSize = 44
)

// SampleSource supplies raw PCM frames from the platform input engine.
// Reads block until samples are available; io.EOF ends the capture.
type SampleSource interface {
	io.Reader
}

// wavDevice is the reference CaptureDevice: it pumps PCM from a SampleSource
// into a single WAV file. The header is written on Prepare and patched with
// the final sizes on Stop.
type wavDevice struct {
	logger commons.Logger
	source SampleSource

	mu       sync.Mutex
	state    DeviceState
	file     *os.File
	written  int
	done     chan struct{}
	pumpErr  error
	canPause bool
}

// NewWAVDevice builds a capture device writing to a WAV file. canPause
// models the platform capability tier: when false, Pause/Resume report a
// capability gap.
func NewWAVDevice(logger commons.Logger, source SampleSource, canPause bool) CaptureDevice {
	return &wavDevice{
		logger:   logger,
		source:   source,
		state:    StateInitial,
		canPause: canPause,
	}
}

func (d *wavDevice) State() DeviceState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *wavDevice) SupportsPause() bool { return d.canPause }

func (d *wavDevice) Prepare(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := Guard(d.state, StateInitial); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		d.state = StateError
		return types.NewError(types.IOFailure,
			fmt.Sprintf("failed to open capture file %s", path), err)
	}
	// Placeholder header, patched with real sizes on Stop.
	if err := writeWAVHeader(f, 0); err != nil {
		f.Close()
		d.state = StateError
		return types.NewError(types.IOFailure, "failed to write WAV header", err)
	}
	d.file = f
	d.written = 0
	d.state = StatePrepared
	return nil
}

func (d *wavDevice) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := Guard(d.state, StatePrepared); err != nil {
		return err
	}
	if d.source == nil {
		d.state = StateError
		return types.NewError(types.IOFailure, "no capture source available", nil)
	}
	d.done = make(chan struct{})
	d.state = StateRecording
	go d.pump(d.done, d.source)
	return nil
}

// pump copies PCM from the source into the file until Stop closes done.
// Paused stretches drop frames instead of writing them, so paused time never
// lands in the file.
func (d *wavDevice) pump(done chan struct{}, src SampleSource) {
	buf := make([]byte, SampleRate*Channels*AudioBytesPerSample/10) // 100ms frames
	for {
		select {
		case <-done:
			return
		default:
		}
		n, err := src.Read(buf)
		if n > 0 {
			d.mu.Lock()
			if d.state == StateRecording && d.file != nil {
				if _, werr := d.file.Write(buf[:n]); werr != nil {
					d.pumpErr = werr
					d.state = StateError
					d.logger.Errorf("capture write failed: %v", werr)
					d.mu.Unlock()
					return
				}
				d.written += n
			}
			d.mu.Unlock()
		}
		if err != nil {
			if err != io.EOF {
				d.mu.Lock()
				d.pumpErr = err
				d.mu.Unlock()
				d.logger.Warnf("capture source read failed: %v", err)
			}
			return
		}
	}
}

func (d *wavDevice) Pause() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := Guard(d.state, StateRecording); err != nil {
		return err
	}
	d.state = StatePaused
	return nil
}

func (d *wavDevice) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := Guard(d.state, StatePaused); err != nil {
		return err
	}
	d.state = StateRecording
	return nil
}

func (d *wavDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := Guard(d.state, StateRecording, StatePaused); err != nil {
		return err
	}
	if d.done != nil {
		close(d.done)
		d.done = nil
	}
	if err := d.finalize(); err != nil {
		d.state = StateError
		d.closeSource()
		return err
	}
	d.state = StateStopped
	return nil
}

// closeSource shuts down the PCM source when it holds platform resources (an
// open capture process, a device handle). Caller holds the lock; closes at
// most once.
func (d *wavDevice) closeSource() {
	if d.source == nil {
		return
	}
	if c, ok := d.source.(io.Closer); ok {
		if err := c.Close(); err != nil {
			d.logger.Warnf("capture source close reported error: %v", err)
		}
	}
	d.source = nil
}

// finalize patches the WAV header with the real data size and closes the
// file. Caller holds the lock.
func (d *wavDevice) finalize() error {
	if d.file == nil {
		return nil
	}
	f := d.file
	d.file = nil
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return types.NewError(types.IOFailure, "failed to rewind capture file", err)
	}
	if err := writeWAVHeader(f, d.written); err != nil {
		f.Close()
		return types.NewError(types.IOFailure, "failed to finalize WAV header", err)
	}
	if err := f.Close(); err != nil {
		return types.NewError(types.IOFailure, "failed to close capture file", err)
	}
	return nil
}

// Release frees the handle from any state. Never returns a StateViolation:
// release must always succeed so the session manager can guarantee it on
// every exit path.
func (d *wavDevice) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == StateReleased {
		return nil
	}
	if d.done != nil {
		close(d.done)
		d.done = nil
	}
	var err error
	if d.file != nil {
		err = d.finalize()
	}
	d.closeSource()
	d.state = StateReleased
	if err != nil {
		d.logger.Warnf("release finalized capture file with error: %v", err)
	}
	return err
}

func writeWAVHeader(w io.Writer, dataLen int) error {
	bps := SampleRate * Channels * AudioBytesPerSample
	if _, err := w.Write([]byte("RIFF")); err != nil {
		return err
	}
	binary.Write(w, binary.LittleEndian, uint32(36+dataLen))
	if _, err := w.Write([]byte("WAVE")); err != nil {
		return err
	}
	w.Write([]byte("fmt "))
	binary.Write(w, binary.LittleEndian, uint32(16))
	binary.Write(w, binary.LittleEndian, uint16(AudioPCMFormat))
	binary.Write(w, binary.LittleEndian, uint16(Channels))
	binary.Write(w, binary.LittleEndian, uint32(SampleRate))
	binary.Write(w, binary.LittleEndian, uint32(bps))
	binary.Write(w, binary.LittleEndian, uint16(AudioBytesPerSample))
	binary.Write(w, binary.LittleEndian, uint16(AudioBitsPerSample))
	w.Write([]byte("data"))
	return binary.Write(w, binary.LittleEndian, uint32(dataLen))
}
