package mpv

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"m3uplay/internal/engine"
)

// fakeMPV answers IPC requests on the far end of a pipe.
type fakeMPV struct {
	conn net.Conn

	wmu sync.Mutex
	mu  sync.Mutex
	got [][]interface{}
	// replies overrides the data/error returned for a command name
	replies map[string]message
}

func startFake(t *testing.T) (*Player, *fakeMPV) {
	client, server := net.Pipe()
	f := &fakeMPV{conn: server, replies: map[string]message{}}
	go f.serve()
	p := newPlayer(client, zap.NewNop())
	t.Cleanup(func() { _ = p.Release() })
	return p, f
}

func (f *fakeMPV) serve() {
	scanner := bufio.NewScanner(f.conn)
	for scanner.Scan() {
		var req request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			continue
		}
		f.mu.Lock()
		f.got = append(f.got, req.Command)
		reply, ok := f.replies[req.Command[0].(string)]
		f.mu.Unlock()

		if req.Command[0] == "quit" {
			_ = f.conn.Close()
			return
		}
		if !ok {
			reply = message{Error: "success"}
		}
		reply.RequestID = req.RequestID
		f.send(reply)
	}
}

func (f *fakeMPV) send(msg message) {
	f.wmu.Lock()
	defer f.wmu.Unlock()
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	_, _ = f.conn.Write(append(data, '\n'))
}

func (f *fakeMPV) reply(cmd string, msg message) {
	f.mu.Lock()
	f.replies[cmd] = msg
	f.mu.Unlock()
}

func (f *fakeMPV) commands() [][]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]interface{}(nil), f.got...)
}

func nextEvent(t *testing.T, p *Player) engine.Event {
	t.Helper()
	select {
	case ev := <-p.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no engine event")
		return engine.Event{}
	}
}

func TestLoadSendsUserAgentThenLoadfile(t *testing.T) {
	p, f := startFake(t)

	require.NoError(t, p.Load("http://example.com/live.m3u8", engine.MediaOptions{UserAgent: "UA"}))

	cmds := f.commands()
	require.Len(t, cmds, 3)
	assert.Equal(t, []interface{}{"set_property", "user-agent", "UA"}, cmds[0])
	assert.Equal(t, []interface{}{"set_property", "pause", false}, cmds[1])
	assert.Equal(t, []interface{}{"loadfile", "http://example.com/live.m3u8", "replace"}, cmds[2])
}

func TestLoadWithoutUserAgent(t *testing.T) {
	p, f := startFake(t)

	require.NoError(t, p.Load("/media/film.mkv", engine.MediaOptions{}))

	cmds := f.commands()
	require.Len(t, cmds, 2)
	assert.Equal(t, "loadfile", cmds[1][0])
}

func TestCommandError(t *testing.T) {
	p, f := startFake(t)
	f.reply("loadfile", message{Error: "invalid parameter"})

	err := p.Load("nowhere", engine.MediaOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid parameter")
}

func TestPlayRequiresMedia(t *testing.T) {
	p, _ := startFake(t)

	assert.ErrorIs(t, p.Play(), engine.ErrNoMedia)
	assert.ErrorIs(t, p.Pause(), engine.ErrNoMedia)
	assert.False(t, p.CanPause())
}

func TestEventStateMapping(t *testing.T) {
	p, f := startFake(t)

	f.send(message{Event: "start-file"})
	assert.Equal(t, engine.StateOpening, nextEvent(t, p).State)

	f.send(message{Event: "file-loaded"})
	assert.Equal(t, engine.StatePlaying, nextEvent(t, p).State)
	assert.True(t, p.CanPause())

	f.send(message{Event: "property-change", ID: propPausedForCache, Name: "paused-for-cache", Data: json.RawMessage("true")})
	assert.Equal(t, engine.StateBuffering, nextEvent(t, p).State)

	f.send(message{Event: "property-change", ID: propPausedForCache, Name: "paused-for-cache", Data: json.RawMessage("false")})
	assert.Equal(t, engine.StatePlaying, nextEvent(t, p).State)

	f.send(message{Event: "property-change", ID: propPause, Name: "pause", Data: json.RawMessage("true")})
	assert.Equal(t, engine.StatePaused, nextEvent(t, p).State)

	f.send(message{Event: "property-change", ID: propPause, Name: "pause", Data: json.RawMessage("false")})
	assert.Equal(t, engine.StatePlaying, nextEvent(t, p).State)

	f.send(message{Event: "end-file", Reason: "eof"})
	assert.Equal(t, engine.StateEnded, nextEvent(t, p).State)
	assert.Equal(t, engine.StateEnded, p.State())
}

func TestEndFileReasons(t *testing.T) {
	tests := []struct {
		reason string
		want   engine.State
	}{
		{"stop", engine.StateStopped},
		{"quit", engine.StateStopped},
		{"error", engine.StateError},
	}

	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			p, f := startFake(t)
			f.send(message{Event: "start-file"})
			nextEvent(t, p)

			f.send(message{Event: "end-file", Reason: tt.reason, FileError: "loading failed"})
			ev := nextEvent(t, p)
			assert.Equal(t, tt.want, ev.State)
			if tt.want == engine.StateError {
				require.Error(t, ev.Err)
				assert.Contains(t, ev.Err.Error(), "loading failed")
			}
		})
	}
}

func TestPauseBeforeLoadIgnored(t *testing.T) {
	p, f := startFake(t)

	f.send(message{Event: "property-change", ID: propPause, Name: "pause", Data: json.RawMessage("false")})
	f.send(message{Event: "start-file"})

	assert.Equal(t, engine.StateOpening, nextEvent(t, p).State)
}

func TestTimes(t *testing.T) {
	p, f := startFake(t)
	f.reply("get_property", message{Error: "success", Data: json.RawMessage("83.5")})

	length, err := p.Length()
	require.NoError(t, err)
	assert.Equal(t, 83500*time.Millisecond, length)

	f.reply("get_property", message{Error: "property unavailable"})
	_, err = p.Position()
	assert.ErrorIs(t, err, engine.ErrUnavailable)
}

func TestVolume(t *testing.T) {
	p, f := startFake(t)
	f.reply("get_property", message{Error: "success", Data: json.RawMessage("69.6")})

	v, err := p.Volume()
	require.NoError(t, err)
	assert.Equal(t, 70, v)

	require.NoError(t, p.SetVolume(40))
	cmds := f.commands()
	assert.Equal(t, []interface{}{"set_property", "volume", float64(40)}, cmds[len(cmds)-1])
}

func TestConnectionLossReportsError(t *testing.T) {
	p, f := startFake(t)

	_ = f.conn.Close()

	ev := nextEvent(t, p)
	assert.Equal(t, engine.StateError, ev.State)
	assert.True(t, errors.Is(ev.Err, engine.ErrEngineGone))
	assert.ErrorIs(t, p.Stop(), engine.ErrEngineGone)
}

func TestReleaseClosesEvents(t *testing.T) {
	p, f := startFake(t)

	require.NoError(t, p.Release())

	_, ok := <-p.Events()
	assert.False(t, ok)
	assert.Equal(t, "quit", f.commands()[0][0])
	require.NoError(t, p.Release())
}

func TestArgs(t *testing.T) {
	i := &Instance{opts: engine.Options{
		NetworkCaching: 1500 * time.Millisecond,
		WindowID:       0x3a00007,
		ExtraArgs:      []string{"--hwdec=auto"},
	}}

	args := i.Args("/tmp/x.sock")
	assert.Contains(t, args, "--input-ipc-server=/tmp/x.sock")
	assert.Contains(t, args, "--osd-level=0")
	assert.Contains(t, args, "--cache-secs=1.500")
	assert.Contains(t, args, "--wid=60817415")
	assert.Equal(t, "--hwdec=auto", args[len(args)-1])

	i.opts = engine.Options{TitleOverlay: true}
	args = i.Args("/tmp/y.sock")
	assert.NotContains(t, args, "--osd-level=0")
	for _, a := range args {
		assert.NotContains(t, a, "--wid")
		assert.NotContains(t, a, "--cache-secs")
	}
}
