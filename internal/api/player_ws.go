/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	ws "nhooyr.io/websocket"

	"github.com/friendsincode/waveform/internal/player"
	"github.com/friendsincode/waveform/internal/telemetry"
)

const outputWriteTimeout = 5 * time.Second

// wsOutput delivers playback commands to a connected device over its
// output socket. Session goroutines call these methods concurrently, so
// writes are serialized behind a mutex.
type wsOutput struct {
	mu     sync.Mutex
	conn   *ws.Conn
	logger zerolog.Logger
}

func (o *wsOutput) send(command string, fields map[string]any) {
	msg := map[string]any{"command": command}
	for key, value := range fields {
		msg[key] = value
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), outputWriteTimeout)
	defer cancel()
	if err := o.conn.Write(ctx, ws.MessageText, data); err != nil {
		o.logger.Debug().Err(err).Str("command", command).Msg("output write failed")
	}
}

func (o *wsOutput) Load(url string) { o.send("load", map[string]any{"url": url}) }
func (o *wsOutput) Play()           { o.send("play", nil) }
func (o *wsOutput) Pause()          { o.send("pause", nil) }
func (o *wsOutput) Seek(position float64) {
	o.send("seek", map[string]any{"position": position})
}
func (o *wsOutput) SetVolume(volume float64) {
	o.send("volume", map[string]any{"volume": volume})
}

// deviceEvent is what the device reports back about its audio element.
type deviceEvent struct {
	Type     string  `json:"type"`
	Position float64 `json:"position"`
	Duration float64 `json:"duration"`
	Message  string  `json:"message"`
}

// handlePlayerOutput is the device side of a playback session. The
// server sends load/play/pause/seek/volume commands down this socket and
// the device reports its element events back up.
func (a *API) handlePlayerOutput(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(w, r)
	if !ok {
		return
	}
	if a.players == nil {
		writeError(w, http.StatusServiceUnavailable, "player_not_available")
		return
	}
	sess := a.players.Session(userID)

	conn, err := ws.Accept(w, r, &ws.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		a.logger.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusInternalError, "server error")

	telemetry.APIWebSocketConnections.Inc()
	defer telemetry.APIWebSocketConnections.Dec()
	telemetry.PlayerConnectedOutputs.Inc()
	defer telemetry.PlayerConnectedOutputs.Dec()

	out := &wsOutput{conn: conn, logger: a.logger}
	sess.AttachOutput(out)
	defer sess.AttachOutput(nil)

	// Bring a freshly connected device up to the session's state.
	a.syncOutput(sess, out)

	ctx := r.Context()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			conn.Close(ws.StatusNormalClosure, "device disconnected")
			return
		}

		var evt deviceEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			a.logger.Debug().Err(err).Msg("malformed device event")
			continue
		}

		switch evt.Type {
		case "started":
			sess.HandleStarted()
		case "paused":
			sess.HandlePaused()
		case "ended":
			sess.HandleEnded()
		case "timeupdate":
			sess.HandleTimeUpdate(evt.Position)
		case "durationchange":
			sess.HandleDurationChange(evt.Duration)
		case "error":
			sess.HandleError(evt.Message)
		default:
			a.logger.Debug().Str("type", evt.Type).Msg("unknown device event")
		}
	}
}

// syncOutput replays the current session state onto a device that just
// connected, so a reload or second tab picks up mid-track.
func (a *API) syncOutput(sess *player.Session, out *wsOutput) {
	snap := sess.Snapshot()
	if snap.CurrentTrack == nil || snap.CurrentTrack.AudioURL == "" {
		return
	}
	out.Load(snap.CurrentTrack.AudioURL)
	if snap.Position > 0 {
		out.Seek(snap.Position)
	}
	if snap.State == player.StatePlaying || snap.State == player.StateLoading {
		out.Play()
	}
}
