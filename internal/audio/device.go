// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_audio

import (
	"fmt"

	"github.com/YamazakiYusuke/TalkToBook-sub002/pkg/types"
)

// DeviceState is the capture device lifecycle. Any state can fall to
// StateError on a platform failure; only Release is reachable from there.
type DeviceState int

const (
	StateInitial DeviceState = iota
	StatePrepared
	StateRecording
	StatePaused
	StateStopped
	StateReleased
	StateError
)

func (s DeviceState) String() string {
	switch s {
	case StateInitial:
		return "INITIAL"
	case StatePrepared:
		return "PREPARED"
	case StateRecording:
		return "RECORDING"
	case StatePaused:
		return "PAUSED"
	case StateStopped:
		return "STOPPED"
	case StateReleased:
		return "RELEASED"
	case StateError:
		return "ERROR"
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(s))
}

// CaptureDevice abstracts the platform audio-input engine. Exactly one
// handle exists and it is owned exclusively by the session manager.
//
// The session manager calls Guard before every mutating call; implementations
// must keep State consistent with the lifecycle in DeviceState.
type CaptureDevice interface {
	// Prepare configures the device to write LINEAR16 audio to path.
	// Initial → Prepared.
	Prepare(path string) error
	// Start begins capture. Prepared → Recording.
	Start() error
	// Pause suspends capture. Recording → Paused.
	Pause() error
	// Resume continues capture. Paused → Recording.
	Resume() error
	// Stop finalizes the audio file. Recording/Paused → Stopped.
	Stop() error
	// Release frees the device handle and shuts down the capture source.
	// Reachable from every state, always ends in Released.
	Release() error
	// State returns the current lifecycle state.
	State() DeviceState
	// SupportsPause reports whether the platform tier can pause
	// mid-capture. When false, Pause/Resume are capability gaps, not
	// failures.
	SupportsPause() bool
}

// Guard checks the device is in one of the expected states before a mutating
// call. A mismatch is a StateViolation carrying actual and expected states
// for diagnostics.
func Guard(actual DeviceState, expected ...DeviceState) error {
	for _, e := range expected {
		if actual == e {
			return nil
		}
	}
	names := make([]string, len(expected))
	for i, e := range expected {
		names[i] = e.String()
	}
	return types.NewStateViolation("capture device in unexpected state", actual.String(), names...)
}
