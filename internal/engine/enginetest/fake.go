// Package enginetest provides an in-memory engine for controller tests.
package enginetest

import (
	"context"
	"sync"
	"time"

	"m3uplay/internal/engine"
)

// Journal collects calls across an Instance and its players in order.
type Journal struct {
	mu    sync.Mutex
	calls []string
}

func (j *Journal) add(call string) {
	j.mu.Lock()
	j.calls = append(j.calls, call)
	j.mu.Unlock()
}

func (j *Journal) Calls() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, len(j.calls))
	copy(out, j.calls)
	return out
}

func (j *Journal) Reset() {
	j.mu.Lock()
	j.calls = nil
	j.mu.Unlock()
}

type Instance struct {
	Journal    *Journal
	Player     *Player
	NewErr     error
	ReleaseErr error
}

func NewInstance() *Instance {
	j := &Journal{}
	return &Instance{Journal: j, Player: NewPlayer(j)}
}

func (i *Instance) NewPlayer(ctx context.Context) (engine.Player, error) {
	i.Journal.add("instance.new_player")
	if i.NewErr != nil {
		return nil, i.NewErr
	}
	return i.Player, nil
}

func (i *Instance) Release() error {
	i.Journal.add("instance.release")
	return i.ReleaseErr
}

// Player records every call. Errors set in Errs are returned by the method
// of the same name ("load", "play", "stop", ...).
type Player struct {
	Journal *Journal
	Errs    map[string]error

	mu       sync.Mutex
	state    engine.State
	target   string
	opts     engine.MediaOptions
	volume   int
	position time.Duration
	length   time.Duration
	surface  int64
	events   chan engine.Event
}

func NewPlayer(j *Journal) *Player {
	if j == nil {
		j = &Journal{}
	}
	return &Player{
		Journal: j,
		Errs:    map[string]error{},
		state:   engine.StateIdle,
		volume:  100,
		events:  make(chan engine.Event, 16),
	}
}

func (p *Player) call(name string) error {
	p.Journal.add("player." + name)
	return p.Errs[name]
}

// Emit sets the state and delivers the notification like the engine would.
func (p *Player) Emit(ev engine.Event) {
	p.SetState(ev.State)
	p.events <- ev
}

func (p *Player) SetState(s engine.State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *Player) SetTimes(pos, length time.Duration) {
	p.mu.Lock()
	p.position, p.length = pos, length
	p.mu.Unlock()
}

func (p *Player) Loaded() (string, engine.MediaOptions) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.target, p.opts
}

func (p *Player) Surface() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.surface
}

func (p *Player) Load(target string, opts engine.MediaOptions) error {
	if err := p.call("load"); err != nil {
		return err
	}
	p.mu.Lock()
	p.target, p.opts = target, opts
	p.mu.Unlock()
	return nil
}

func (p *Player) Play() error  { return p.call("play") }
func (p *Player) Pause() error { return p.call("pause") }

func (p *Player) Stop() error {
	if err := p.call("stop"); err != nil {
		return err
	}
	p.SetState(engine.StateStopped)
	return nil
}

func (p *Player) Seek(pos time.Duration) error {
	if err := p.call("seek"); err != nil {
		return err
	}
	p.mu.Lock()
	p.position = pos
	p.mu.Unlock()
	return nil
}

func (p *Player) Length() (time.Duration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.length == 0 {
		return 0, engine.ErrUnavailable
	}
	return p.length, nil
}

func (p *Player) Position() (time.Duration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position, nil
}

func (p *Player) Volume() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume, nil
}

func (p *Player) SetVolume(percent int) error {
	if err := p.call("set_volume"); err != nil {
		return err
	}
	p.mu.Lock()
	p.volume = percent
	p.mu.Unlock()
	return nil
}

func (p *Player) State() engine.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Player) CanPause() bool {
	return p.State().Active()
}

func (p *Player) SetVideoSurface(id int64) error {
	if err := p.call("set_video_surface"); err != nil {
		return err
	}
	p.mu.Lock()
	p.surface = id
	p.mu.Unlock()
	return nil
}

func (p *Player) Events() <-chan engine.Event { return p.events }

func (p *Player) Release() error {
	return p.call("release")
}
