// Package player turns UI actions into media engine calls and engine
// notifications into UI updates.
package player

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"m3uplay/internal/engine"
	"m3uplay/internal/m3u"
)

var (
	ErrPlaybackStart = errors.New("playback could not be started")
	ErrNoURL         = errors.New("channel has no playable address")
)

// selection is the list row being played. It names the row, it does not
// own the channel or the list.
type selection struct {
	index int
	name  string
}

// Controller is owned by the composition root and used from the UI
// goroutine only; engine events reach it through Run and the Dispatcher.
type Controller struct {
	instance  engine.Instance
	player    engine.Player
	view      View
	ui        Dispatcher
	log       *zap.Logger
	appTitle  string
	userAgent string
	surface   int64

	current *selection
	// set between Load and the engine's Opening notification, so the
	// Stopped notification for the replaced media keeps the new selection
	awaitingOpen bool
	state        engine.State
}

type Config struct {
	AppTitle  string
	UserAgent string
	// VideoSurface is the native window id video is bound to before each
	// load; 0 leaves the engine's own window.
	VideoSurface int64
}

func New(inst engine.Instance, p engine.Player, view View, ui Dispatcher, conf Config, log *zap.Logger) *Controller {
	return &Controller{
		instance:  inst,
		player:    p,
		view:      view,
		ui:        ui,
		log:       log,
		appTitle:  conf.AppTitle,
		userAgent: conf.UserAgent,
		surface:   conf.VideoSurface,
		state:     engine.StateIdle,
	}
}

// Run forwards engine notifications onto the UI goroutine until ctx is done
// or the engine closes its event stream.
func (c *Controller) Run(ctx context.Context) {
	if c.player == nil {
		return
	}
	events := c.player.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.ui.Dispatch(func() { c.apply(ev) })
		}
	}
}

func (c *Controller) apply(ev engine.Event) {
	if c.awaitingOpen {
		if ev.State != engine.StateOpening && !ev.State.Active() && ev.State != engine.StateError {
			c.log.Debug("ignoring notification for replaced media", zap.Stringer("state", ev.State))
			return
		}
		c.awaitingOpen = false
	}
	c.state = ev.State

	name := ""
	if c.current != nil {
		name = c.current.name
	}
	if ev.Err != nil {
		c.log.Warn("engine reported error", zap.String("name", name), zap.Error(ev.Err))
	} else {
		c.log.Debug("engine state changed", zap.Stringer("state", ev.State), zap.String("name", name))
	}

	a := Describe(ev.State, name, c.appTitle)
	c.view.SetStatus(a.Status)
	c.view.SetTitle(a.Title)
	c.view.SetControls(a.Controls)
	if a.Release && c.current != nil {
		c.view.Highlight(-1)
		c.current = nil
	}
}

// Load plays ch, which sits at index in the presentation list (-1 when
// it is not part of a list). On failure the controller is left stopped.
func (c *Controller) Load(index int, ch m3u.Channel) error {
	if ch.URL == "" {
		return ErrNoURL
	}
	if c.player == nil {
		return fmt.Errorf("%w: no media engine", ErrPlaybackStart)
	}
	c.log.Info("playback requested", zap.String("name", ch.Name), zap.String("url", ch.URL))
	c.view.SetStatus("Preparing: " + ch.Name + "...")

	if st := c.player.State(); st != engine.StateStopped && st != engine.StateIdle {
		if err := c.player.Stop(); err != nil {
			c.log.Warn("stop before load failed", zap.Error(err))
		}
	}

	if c.surface != 0 {
		if err := c.player.SetVideoSurface(c.surface); err != nil {
			c.log.Warn("video surface not bound", zap.Int64("window", c.surface), zap.Error(err))
		}
	}

	var opts engine.MediaOptions
	if isHTTP(ch.URL) {
		opts.UserAgent = c.userAgent
	}
	err := c.player.Load(ch.URL, opts)
	if err == nil {
		err = c.player.Play()
		if errors.Is(err, engine.ErrNoMedia) {
			// loadfile starts playback on its own
			err = nil
		}
	}
	if err != nil {
		c.log.Error("playback start failed", zap.String("name", ch.Name), zap.Error(err))
		c.Stop()
		c.view.SetStatus("Playback failed: " + ch.Name)
		return fmt.Errorf("%w: %s: %w", ErrPlaybackStart, ch.Name, err)
	}

	c.view.SetTitle("Loading: " + ch.Name + " - " + c.appTitle)
	if c.current != nil && c.current.index != index {
		c.view.Highlight(-1)
	}
	if index >= 0 {
		c.view.Highlight(index)
	}
	c.current = &selection{index: index, name: ch.Name}
	c.awaitingOpen = true
	return nil
}

// TogglePlayPause pauses while playing and resumes when the engine can.
func (c *Controller) TogglePlayPause() {
	if c.player == nil {
		return
	}
	var err error
	switch {
	case c.player.State() == engine.StatePlaying:
		err = c.player.Pause()
	case c.player.CanPause():
		err = c.player.Play()
	default:
		return
	}
	if err != nil {
		c.log.Warn("play/pause failed", zap.Error(err))
	}
}

// Stop halts playback and resets the view to its idle look.
func (c *Controller) Stop() {
	c.log.Debug("stop requested")
	if c.player != nil && c.player.State() != engine.StateStopped {
		if err := c.player.Stop(); err != nil {
			c.log.Warn("engine stop failed", zap.Error(err))
		}
	}
	c.awaitingOpen = false
	c.view.SetControls(Controls{})
	c.view.SetStatus("Stopped")
	c.view.SetTitle(c.appTitle)
	if c.current != nil {
		c.view.Highlight(-1)
		c.current = nil
	}
}

// SetVolume clamps percent into [0,100], forwards it and returns the value
// applied.
func (c *Controller) SetVolume(percent int) int {
	percent = ClampVolume(percent)
	if c.player == nil {
		return percent
	}
	if err := c.player.SetVolume(percent); err != nil {
		c.log.Warn("set volume failed", zap.Int("volume", percent), zap.Error(err))
	}
	return percent
}

// Volume returns the engine volume clamped to [0,100], or fallback when the
// engine cannot tell.
func (c *Controller) Volume(fallback int) int {
	if c.player == nil {
		return ClampVolume(fallback)
	}
	v, err := c.player.Volume()
	if err != nil || v < 0 || v > 100 {
		return ClampVolume(fallback)
	}
	return v
}

func ClampVolume(percent int) int {
	switch {
	case percent < 0:
		return 0
	case percent > 100:
		return 100
	}
	return percent
}

// Seek moves to pos, clamped to the media length, and resumes playback.
func (c *Controller) Seek(pos time.Duration) error {
	if c.player == nil || !c.player.CanPause() {
		return engine.ErrNoMedia
	}
	if pos < 0 {
		pos = 0
	}
	if length, err := c.player.Length(); err == nil && length > 0 && pos > length {
		pos = length
	}
	if err := c.player.Seek(pos); err != nil {
		return err
	}
	return c.player.Play()
}

// SeekBy seeks relative to the current position.
func (c *Controller) SeekBy(delta time.Duration) error {
	if c.player == nil {
		return engine.ErrNoMedia
	}
	pos, err := c.player.Position()
	if err != nil {
		return err
	}
	return c.Seek(pos + delta)
}

// Progress reports position and length; both are zero when unknown.
func (c *Controller) Progress() (pos, length time.Duration) {
	if c.player == nil || !c.player.CanPause() {
		return 0, 0
	}
	if l, err := c.player.Length(); err == nil {
		length = l
	}
	if p, err := c.player.Position(); err == nil {
		pos = p
	}
	return pos, length
}

// Playing reports whether the last engine notification was Playing.
func (c *Controller) Playing() bool {
	return c.state == engine.StatePlaying
}

// State is the last engine state applied to the view.
func (c *Controller) State() engine.State {
	return c.state
}

// Close stops playback and releases the player and then the instance. A
// failing step is logged and the remaining steps still run.
func (c *Controller) Close() {
	c.log.Info("releasing media engine")
	c.Stop()
	if c.player != nil {
		if err := c.player.Release(); err != nil {
			c.log.Error("player release failed", zap.Error(err))
		}
		c.player = nil
	}
	if c.instance != nil {
		if err := c.instance.Release(); err != nil {
			c.log.Error("engine instance release failed", zap.Error(err))
		}
		c.instance = nil
	}
	c.log.Info("media engine released")
}

func isHTTP(target string) bool {
	t := strings.ToLower(target)
	return strings.HasPrefix(t, "http://") || strings.HasPrefix(t, "https://")
}
