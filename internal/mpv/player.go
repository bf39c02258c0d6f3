package mpv

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"

	"m3uplay/internal/engine"
)

// observed property ids
const (
	propPause int64 = iota + 1
	propPausedForCache
)

// Player is one mpv process controlled over its IPC socket.
type Player struct {
	log    *zap.Logger
	ipc    *ipcClient
	cmd    *exec.Cmd
	waitCh chan error
	socket string

	mu        sync.Mutex
	state     engine.State
	loaded    bool
	paused    bool
	buffering bool
	released  bool
	events    chan engine.Event

	releaseOnce sync.Once
	releaseErr  error
}

var _ engine.Player = (*Player)(nil)

func newPlayer(conn net.Conn, log *zap.Logger) *Player {
	p := &Player{
		log:    log,
		state:  engine.StateIdle,
		events: make(chan engine.Event, 32),
	}
	p.ipc = newIPCClient(conn, p.handleEvent, p.handleClose)
	return p
}

func (p *Player) observe() error {
	if _, err := p.ipc.command("observe_property", propPause, "pause"); err != nil {
		return err
	}
	_, err := p.ipc.command("observe_property", propPausedForCache, "paused-for-cache")
	return err
}

func (p *Player) handleEvent(msg message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch msg.Event {
	case "start-file":
		p.loaded = true
		p.buffering = false
		p.setStateLocked(engine.StateOpening, nil)
	case "file-loaded", "playback-restart":
		if p.loaded {
			p.setStateLocked(p.runningStateLocked(), nil)
		}
	case "end-file":
		p.loaded = false
		p.buffering = false
		switch msg.Reason {
		case "eof":
			p.setStateLocked(engine.StateEnded, nil)
		case "error":
			reason := msg.FileError
			if reason == "" {
				reason = "unknown error"
			}
			p.setStateLocked(engine.StateError, fmt.Errorf("mpv: %s", reason))
		case "redirect":
			// mpv follows the redirect with another start-file
		default:
			p.setStateLocked(engine.StateStopped, nil)
		}
	case "property-change":
		var on bool
		if err := json.Unmarshal(msg.Data, &on); err != nil {
			// property unavailable while idle
			return
		}
		switch msg.ID {
		case propPause:
			p.paused = on
		case propPausedForCache:
			p.buffering = on
		default:
			return
		}
		if p.loaded && p.state != engine.StateOpening {
			p.setStateLocked(p.runningStateLocked(), nil)
		}
	}
}

func (p *Player) runningStateLocked() engine.State {
	switch {
	case p.paused:
		return engine.StatePaused
	case p.buffering:
		return engine.StateBuffering
	default:
		return engine.StatePlaying
	}
}

func (p *Player) setStateLocked(s engine.State, err error) {
	if p.state == s && err == nil {
		return
	}
	p.state = s
	if p.released {
		return
	}
	select {
	case p.events <- engine.Event{State: s, Err: err}:
	default:
		p.log.Warn("mpv event dropped, receiver too slow", zap.Stringer("state", s))
	}
}

func (p *Player) handleClose(err error) {
	p.log.Error("mpv ipc connection lost", zap.Error(err))
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loaded = false
	p.setStateLocked(engine.StateError, fmt.Errorf("%w: %w", engine.ErrEngineGone, err))
}

func (p *Player) isLoaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loaded
}

func (p *Player) Load(target string, opts engine.MediaOptions) error {
	if opts.UserAgent != "" {
		if _, err := p.ipc.command("set_property", "user-agent", opts.UserAgent); err != nil {
			return err
		}
	}
	// pause is sticky across files in mpv
	if _, err := p.ipc.command("set_property", "pause", false); err != nil {
		return err
	}
	_, err := p.ipc.command("loadfile", target, "replace")
	return err
}

func (p *Player) Play() error {
	if !p.isLoaded() {
		return engine.ErrNoMedia
	}
	_, err := p.ipc.command("set_property", "pause", false)
	return err
}

func (p *Player) Pause() error {
	if !p.isLoaded() {
		return engine.ErrNoMedia
	}
	_, err := p.ipc.command("set_property", "pause", true)
	return err
}

func (p *Player) Stop() error {
	_, err := p.ipc.command("stop")
	return err
}

func (p *Player) Seek(pos time.Duration) error {
	if !p.isLoaded() {
		return engine.ErrNoMedia
	}
	_, err := p.ipc.command("seek", pos.Seconds(), "absolute")
	return err
}

func (p *Player) Length() (time.Duration, error) {
	return p.seconds("duration")
}

func (p *Player) Position() (time.Duration, error) {
	return p.seconds("time-pos")
}

func (p *Player) seconds(prop string) (time.Duration, error) {
	data, err := p.ipc.command("get_property", prop)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", engine.ErrUnavailable, err)
	}
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return 0, fmt.Errorf("%w: %s is %s", engine.ErrUnavailable, prop, string(data))
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func (p *Player) Volume() (int, error) {
	data, err := p.ipc.command("get_property", "volume")
	if err != nil {
		return 0, err
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return 0, fmt.Errorf("mpv volume: %w", err)
	}
	return int(v + 0.5), nil
}

func (p *Player) SetVolume(percent int) error {
	_, err := p.ipc.command("set_property", "volume", percent)
	return err
}

func (p *Player) State() engine.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Player) CanPause() bool {
	return p.isLoaded()
}

func (p *Player) SetVideoSurface(id int64) error {
	_, err := p.ipc.command("set_property", "wid", id)
	return err
}

func (p *Player) Events() <-chan engine.Event { return p.events }

// Release asks mpv to quit, then kills its process group if it has not
// exited in time. The events channel is closed afterwards.
func (p *Player) Release() error {
	p.releaseOnce.Do(func() {
		p.ipc.expectClose()
		_, _ = p.ipc.command("quit")
		p.releaseErr = p.ipc.close()

		if p.cmd != nil {
			select {
			case <-p.waitCh:
			case <-time.After(exitTimeout):
				p.log.Warn("mpv did not exit, killing", zap.Int("pid", p.cmd.Process.Pid))
				if err := KillCmd(p.cmd); err != nil && !errors.Is(err, os.ErrProcessDone) {
					p.releaseErr = errors.Join(p.releaseErr, err)
				}
			}
		}
		if p.socket != "" {
			_ = os.Remove(p.socket)
		}

		p.mu.Lock()
		p.released = true
		close(p.events)
		p.mu.Unlock()
	})
	return p.releaseErr
}
