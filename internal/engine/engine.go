// Package engine describes the external media engine the players drive.
// Decoding, network transport and rendering all happen inside the engine;
// this package only names its handles, states and notifications.
package engine

import (
	"context"
	"errors"
	"time"
)

type State int

const (
	StateIdle State = iota
	StateOpening
	StateBuffering
	StatePlaying
	StatePaused
	StateStopped
	StateEnded
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateOpening:
		return "OPENING"
	case StateBuffering:
		return "BUFFERING"
	case StatePlaying:
		return "PLAYING"
	case StatePaused:
		return "PAUSED"
	case StateStopped:
		return "STOPPED"
	case StateEnded:
		return "ENDED"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Active reports whether media is loaded and the session has not finished.
func (s State) Active() bool {
	switch s {
	case StateOpening, StateBuffering, StatePlaying, StatePaused:
		return true
	}
	return false
}

// Event is an asynchronous state-change notification. It is delivered on an
// engine goroutine, never on the UI goroutine.
type Event struct {
	State State
	Err   error
}

var (
	ErrNoMedia     = errors.New("no media loaded")
	ErrEngineGone  = errors.New("media engine connection lost")
	ErrUnavailable = errors.New("value not available")
)

// Options are fixed when an engine instance starts.
type Options struct {
	Binary         string
	TitleOverlay   bool
	NetworkCaching time.Duration
	// WindowID embeds video into an existing native window (X11 window id,
	// Win32 HWND or NSView pointer). Zero lets the engine open its own.
	WindowID  int64
	ExtraArgs []string
}

// MediaOptions are applied to a single Load.
type MediaOptions struct {
	UserAgent string
}

type Instance interface {
	NewPlayer(ctx context.Context) (Player, error)
	Release() error
}

type Player interface {
	Load(target string, opts MediaOptions) error
	Play() error
	Pause() error
	Stop() error
	Seek(pos time.Duration) error
	Length() (time.Duration, error)
	Position() (time.Duration, error)
	Volume() (int, error)
	SetVolume(percent int) error
	State() State
	CanPause() bool
	SetVideoSurface(id int64) error
	Events() <-chan Event
	Release() error
}
