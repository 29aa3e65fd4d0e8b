/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

// Output is the audio device boundary. The session issues commands through
// it; the device reports back through the session's Handle* methods
// (started, paused, ended, time update, duration change, error).
//
// The production implementation forwards commands to a connected client
// over WebSocket. Commands are fire-and-forget; failures surface
// asynchronously as device error events.
type Output interface {
	// Load assigns a new stream URL to the device and begins loading.
	Load(url string)
	Play()
	Pause()
	// Seek moves the device position, in seconds.
	Seek(position float64)
	// SetVolume sets the effective output level in [0, 1].
	SetVolume(volume float64)
}

// nullOutput discards all commands. Sessions use it until a client
// attaches an output, so queue and state mutations never nil-check.
type nullOutput struct{}

func (nullOutput) Load(string) {}
func (nullOutput) Play() {}
func (nullOutput) Pause() {}
func (nullOutput) Seek(float64) {}
func (nullOutput) SetVolume(float64) {}
