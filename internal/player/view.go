package player

import (
	"fmt"

	"m3uplay/internal/engine"
)

// Controls says which playback controls the view should enable.
type Controls struct {
	PlayPause bool
	Stop      bool
	// Playing selects the pause glyph over the play glyph.
	Playing bool
}

// View is the part of the presentation layer the controller drives. All
// methods are called on the UI goroutine.
type View interface {
	SetStatus(msg string)
	SetTitle(title string)
	SetControls(c Controls)
	// Highlight marks the list row that is playing; -1 clears it.
	Highlight(index int)
}

// Dispatcher runs f on the UI goroutine.
type Dispatcher interface {
	Dispatch(f func())
}

// DispatchFunc adapts a plain function to Dispatcher.
type DispatchFunc func(f func())

func (d DispatchFunc) Dispatch(f func()) { d(f) }

// Affordances is what the UI shows for one engine state.
type Affordances struct {
	Status   string
	Title    string
	Controls Controls
	// Release is set when the session is over and the selection must go.
	Release bool
}

var statusText = map[engine.State]string{
	engine.StateIdle:      "Ready",
	engine.StateOpening:   "Opening...",
	engine.StateBuffering: "Buffering...",
	engine.StatePlaying:   "Playing",
	engine.StatePaused:    "Paused",
	engine.StateStopped:   "Stopped",
	engine.StateEnded:     "Ended",
	engine.StateError:     "Error",
}

// Describe maps an engine state and the selected item name to affordances.
func Describe(s engine.State, name, appTitle string) Affordances {
	status, ok := statusText[s]
	if !ok {
		status = fmt.Sprintf("Unknown state (%d)", int(s))
	}
	a := Affordances{
		Status: status,
		Title:  appTitle,
		Controls: Controls{
			PlayPause: s == engine.StatePlaying || s == engine.StatePaused,
			Stop:      s.Active(),
			Playing:   s == engine.StatePlaying,
		},
		Release: s == engine.StateStopped || s == engine.StateEnded || s == engine.StateError,
	}
	if name == "" {
		return a
	}
	switch s {
	case engine.StateOpening, engine.StateBuffering, engine.StatePlaying:
		a.Status = status + ": " + name
		a.Title = "Playing: " + name + " - " + appTitle
	case engine.StatePaused:
		a.Status = status + ": " + name
		a.Title = "Paused: " + name + " - " + appTitle
	case engine.StateError:
		a.Status = "Playback error: " + name
	}
	return a
}
